// Package server exposes the imagery entrypoint over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/grid"
	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/internal/provider"
	"github.com/geosnap/georaster/pkg/raster"
)

// ImageRequest is the POST /api/v1/image body.
type ImageRequest struct {
	Feature       json.RawMessage `json:"feature"`
	Bands         []int           `json:"bands,omitempty"`
	Expression    string          `json:"expression,omitempty"`
	Zoom          *int            `json:"zoom,omitempty"`
	RequireSquare bool            `json:"requiresSquare,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId"`
}

// Config tunes the server.
type Config struct {
	Version   string
	CacheTTL  time.Duration
	CacheSize int64
}

// Server handles HTTP requests, delegating to the imagery service. Completed
// rasters are held in an explicit cache keyed by the request hash, so
// identical requests within the TTL skip re-fetching.
type Server struct {
	svc       *imagery.Service
	cache     *rasterCache
	log       *zap.Logger
	version   string
	startTime time.Time
}

// New creates a Server around an imagery service.
func New(svc *imagery.Service, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	return &Server{
		svc:       svc,
		cache:     newRasterCache(cfg.CacheSize, cfg.CacheTTL),
		log:       logger,
		version:   cfg.Version,
		startTime: time.Now(),
	}
}

// Routes builds the router with the full middleware stack.
func (s *Server) Routes(timeout time.Duration) chi.Router {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/image", s.handleImage)
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "healthy",
		"version": s.version,
		"uptime":  int(time.Since(s.startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("encode health response", zap.Error(err))
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON in request body", requestID)
		return
	}
	if len(req.Feature) == 0 {
		s.writeError(w, http.StatusBadRequest, "INVALID_GEOMETRY", "missing feature", requestID)
		return
	}
	feature, err := geojson.UnmarshalFeature(req.Feature)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_GEOMETRY", fmt.Sprintf("parse feature: %v", err), requestID)
		return
	}

	opts := imagery.Options{
		Bands:         req.Bands,
		Expression:    req.Expression,
		RequireSquare: req.RequireSquare,
	}
	if req.Zoom != nil {
		opts.Zoom = *req.Zoom
		opts.ZoomSet = true
	}

	img, err := s.cache.getImage(r.Context(), s.svc, &req, feature, opts)
	if err != nil {
		s.handleImageryError(w, err, requestID)
		return
	}

	data, err := img.EncodePNG()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "ENCODE_FAILED", err.Error(), requestID)
		return
	}

	b := img.Bounds()
	resX, resY := img.Transform().Resolution()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Raster-CRS", img.CRS())
	w.Header().Set("X-Raster-Bounds", fmt.Sprintf("%g,%g,%g,%g", b.West, b.South, b.East, b.North))
	w.Header().Set("X-Raster-Pixel-Size", fmt.Sprintf("%g,%g", resX, resY))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Error("write image response", zap.Error(err))
	}
}

// handleImageryError maps the error taxonomy onto HTTP statuses.
func (s *Server) handleImageryError(w http.ResponseWriter, err error, requestID string) {
	var budgetErr *grid.BudgetError
	var fetchErr *fetch.Error
	var channelErr *raster.ChannelMismatchError

	switch {
	case errors.Is(err, imagery.ErrInvalidGeometry):
		s.writeError(w, http.StatusBadRequest, "INVALID_GEOMETRY", err.Error(), requestID)
	case errors.As(err, &budgetErr):
		s.writeError(w, http.StatusBadRequest, "TILE_BUDGET_EXCEEDED", err.Error(), requestID)
	case errors.As(err, &fetchErr):
		s.writeError(w, http.StatusBadGateway, "TILE_FETCH_FAILURE", err.Error(), requestID)
	case errors.As(err, &channelErr):
		s.writeError(w, http.StatusInternalServerError, "CHANNEL_MISMATCH", err.Error(), requestID)
	case errors.Is(err, provider.ErrMissingCredentials), errors.Is(err, provider.ErrMissingBaseURL), errors.Is(err, provider.ErrUnknownProvider):
		s.writeError(w, http.StatusBadRequest, "PROVIDER_CONFIG", err.Error(), requestID)
	default:
		s.writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), requestID)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg, requestID string) {
	s.log.Warn("request failed",
		zap.String("code", code),
		zap.String("requestId", requestID),
		zap.String("error", msg))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: code, RequestID: requestID}); err != nil {
		s.log.Error("encode error response", zap.Error(err))
	}
}
