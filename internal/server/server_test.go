package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/internal/provider"
)

func tileServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	data := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Write(data)
	}))
}

func setupTestServer(t *testing.T, tileBase string) *httptest.Server {
	t.Helper()
	cfg := provider.Config{Provider: provider.KindTMS, BaseURL: tileBase}
	svc := imagery.NewService(cfg, fetch.New("", zap.NewNop()), zap.NewNop())
	srv := New(svc, Config{Version: "test", CacheTTL: time.Minute}, zap.NewNop())
	return httptest.NewServer(srv.Routes(30 * time.Second))
}

func imageRequestBody(t *testing.T, zoom *int, square bool) *bytes.Buffer {
	t.Helper()
	feature := json.RawMessage(`{
		"type": "Feature",
		"properties": {},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[4.88,52.36],[4.92,52.36],[4.92,52.38],[4.88,52.38],[4.88,52.36]]]
		}
	}`)
	body, err := json.Marshal(ImageRequest{Feature: feature, Zoom: zoom, RequireSquare: square})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])
}

func TestImageEndpoint(t *testing.T) {
	tiles := tileServer(t, nil)
	defer tiles.Close()
	ts := setupTestServer(t, tiles.URL)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, nil, false))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "EPSG:4326", resp.Header.Get("X-Raster-CRS"))
	assert.NotEmpty(t, resp.Header.Get("X-Raster-Bounds"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestImageEndpointSquare(t *testing.T) {
	tiles := tileServer(t, nil)
	defer tiles.Close()
	ts := setupTestServer(t, tiles.URL)
	defer ts.Close()

	zoom := 13
	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, &zoom, true))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestImageEndpointCachesIdenticalRequests(t *testing.T) {
	var hits atomic.Int64
	tiles := tileServer(t, &hits)
	defer tiles.Close()
	ts := setupTestServer(t, tiles.URL)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, nil, false))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	first := hits.Load()
	assert.Positive(t, first)
	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, nil, false))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, first, hits.Load(), "identical request must be served from cache")
}

func TestImageEndpointBudgetExceeded(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	zoom := 21
	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, &zoom, false))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "TILE_BUDGET_EXCEEDED", body.Code)
	assert.Contains(t, body.Error, "exceeds the maximum allowed (100)")
	assert.NotEmpty(t, body.RequestID)
}

func TestImageEndpointInvalidGeometry(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	body, err := json.Marshal(ImageRequest{Feature: json.RawMessage(`{
		"type": "Feature",
		"properties": {},
		"geometry": {"type": "Point", "coordinates": [4.9, 52.37]}
	}`)})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", bytes.NewBuffer(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var er errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&er))
	assert.Equal(t, "INVALID_GEOMETRY", er.Code)
}

func TestImageEndpointUpstreamFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()
	ts := setupTestServer(t, failing.URL)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", imageRequestBody(t, nil, false))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestImageEndpointRejectsBadJSON(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/image", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestKeyDistinguishesOptions(t *testing.T) {
	zoom := 12
	a := &ImageRequest{Feature: json.RawMessage(`{"a":1}`)}
	b := &ImageRequest{Feature: json.RawMessage(`{"a":1}`), Zoom: &zoom}
	c := &ImageRequest{Feature: json.RawMessage(`{"a":1}`), RequireSquare: true}

	keys := map[string]bool{requestKey(a): true, requestKey(b): true, requestKey(c): true}
	assert.Len(t, keys, 3, "different options must hash to different cache keys")
	assert.Equal(t, requestKey(a), requestKey(&ImageRequest{Feature: json.RawMessage(`{"a":1}`)}))
}

func TestImageEndpointMissingFeature(t *testing.T) {
	ts := setupTestServer(t, "https://unused.test")
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/image", "application/json", bytes.NewBufferString(fmt.Sprintf(`{"zoom": %d}`, 10)))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
