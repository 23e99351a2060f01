// Package fetch retrieves and decodes the tiles named in a grid. All fetches
// for one mosaic run concurrently and the operation is all-or-nothing: the
// first failure aborts everything, no partial mosaic is ever produced.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geosnap/georaster/internal/grid"
)

const defaultConcurrency = 8

// Image is a decoded tile pixel buffer, packed row-major. Channels is 3 for
// JPEG sources and 4 for PNG.
type Image struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
}

// Error wraps a single tile failure with its URL and, when available, the
// HTTP status.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch tile %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch tile %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher downloads tiles over HTTP. Safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	userAgent   string
	concurrency int
	log         *zap.Logger
}

// New creates a Fetcher with a 30s request timeout.
func New(userAgent string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = "georaster/1.0"
	}
	return &Fetcher{
		client:      &http.Client{Timeout: 30 * time.Second},
		userAgent:   userAgent,
		concurrency: defaultConcurrency,
		log:         logger,
	}
}

// FetchGrid retrieves every tile in g concurrently, preserving grid order.
// The first failing tile cancels the remaining fetches and the whole call
// fails.
func (f *Fetcher) FetchGrid(ctx context.Context, g *grid.Grid, headers map[string]string) ([][]Image, error) {
	start := time.Now()
	tiles := make([][]Image, g.Rows())
	for i := range tiles {
		tiles[i] = make([]Image, g.Cols())
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.concurrency)

	for i, row := range g.Cells {
		for j, cell := range row {
			i, j, cell := i, j, cell
			eg.Go(func() error {
				img, err := f.fetchOne(ctx, cell.URL, headers)
				if err != nil {
					tilesFailed.Inc()
					return err
				}
				tilesFetched.Inc()
				tiles[i][j] = *img
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	f.log.Debug("grid fetched",
		zap.Int("tiles", g.Count()),
		zap.Int("zoom", g.Zoom),
		zap.Duration("elapsed", time.Since(start)))
	fetchDuration.Observe(time.Since(start).Seconds())
	return tiles, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url string, headers map[string]string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	img, err := Decode(data)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return img, nil
}

// Decode sniffs the image format from its magic bytes and decodes into a raw
// pixel buffer. PNG yields RGBA, JPEG yields RGB.
func Decode(data []byte) (*Image, error) {
	switch {
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x89, 0x50, 0x4E, 0x47}):
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		return rasterize(img, 4), nil
	case len(data) >= 2 && bytes.Equal(data[:2], []byte{0xFF, 0xD8}):
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return rasterize(img, 3), nil
	default:
		return nil, fmt.Errorf("unrecognized image format")
	}
}

func rasterize(img image.Image, channels int) *Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := make([]byte, w*h*channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*w + x) * channels
			buf[i] = byte(r >> 8)
			buf[i+1] = byte(g >> 8)
			buf[i+2] = byte(bl >> 8)
			if channels == 4 {
				buf[i+3] = byte(a >> 8)
			}
		}
	}
	return &Image{Pix: buf, Width: w, Height: h, Channels: channels}
}
