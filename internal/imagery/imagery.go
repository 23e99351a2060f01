// Package imagery is the consumer-facing entrypoint: it turns a GeoJSON
// polygon into a georeferenced mosaic raster. Control flow: polygon -> bbox
// -> zoom selection -> tile grid + URLs -> concurrent fetch -> stitch ->
// GeoRaster.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/grid"
	"github.com/geosnap/georaster/internal/mosaic"
	"github.com/geosnap/georaster/internal/provider"
	"github.com/geosnap/georaster/pkg/geo"
	"github.com/geosnap/georaster/pkg/raster"
)

// CRS of every raster produced here: the transform is linear in lon/lat.
const CRS = "EPSG:4326"

// ErrInvalidGeometry signals an empty or degenerate input polygon. Raised
// before any network call.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Options tune one GetImage call. The zero value selects zoom automatically,
// applies the default tile budget and permits non-square output.
type Options struct {
	// Bands selects source bands for dynamically rendered providers.
	Bands []int
	// Expression is a band-math expression for dynamically rendered providers.
	Expression string
	// Zoom forces an explicit zoom level when ZoomSet is true; it is
	// validated against the tile budget and never auto-adjusted.
	Zoom    int
	ZoomSet bool
	// RequireSquare guarantees width == height on the returned raster.
	RequireSquare bool
	// MaxTiles overrides the tile-count cap; 0 applies the default.
	MaxTiles int
}

// Service wires zoom selection, grid building, fetching and stitching behind
// one entrypoint. It holds no mutable state between calls and performs no
// caching; every call re-fetches.
type Service struct {
	provider provider.Config
	fetcher  *fetch.Fetcher
	log      *zap.Logger
}

// NewService creates a Service for one provider configuration.
func NewService(cfg provider.Config, fetcher *fetch.Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: cfg, fetcher: fetcher, log: logger}
}

// GetImage fetches the imagery mosaic covering the feature's polygon and
// returns it with geographic referencing attached. Any tile failure aborts
// the whole operation; callers retry with different parameters if desired.
func (s *Service) GetImage(ctx context.Context, feature *geojson.Feature, opts Options) (*raster.GeoRaster, error) {
	start := time.Now()

	bounds, err := featureBounds(feature)
	if err != nil {
		return nil, err
	}

	zoom, err := grid.SelectZoom(bounds, opts.Zoom, opts.ZoomSet, opts.MaxTiles)
	if err != nil {
		return nil, err
	}

	strategy, err := provider.New(s.providerConfig(opts))
	if err != nil {
		return nil, err
	}

	g, err := grid.Build(bounds, zoom, strategy, opts.RequireSquare, opts.MaxTiles)
	if err != nil {
		return nil, err
	}

	tiles, err := s.fetcher.FetchGrid(ctx, g, strategy.Headers())
	if err != nil {
		return nil, err
	}

	m, err := mosaic.Stitch(g, tiles)
	if err != nil {
		return nil, err
	}

	out, err := raster.New(m.Pix, m.Width, m.Height, m.Channels, m.Bounds, CRS)
	if err != nil {
		return nil, err
	}

	s.log.Info("mosaic assembled",
		zap.Int("zoom", zoom),
		zap.Int("tiles", g.Count()),
		zap.Int("width", m.Width),
		zap.Int("height", m.Height),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// providerConfig merges per-request band selection into the base provider
// configuration.
func (s *Service) providerConfig(opts Options) provider.Config {
	cfg := s.provider
	if len(opts.Bands) > 0 {
		cfg.Bands = opts.Bands
	}
	if opts.Expression != "" {
		cfg.Expression = opts.Expression
	}
	return cfg
}

// featureBounds validates the feature and derives its bounding box.
func featureBounds(feature *geojson.Feature) (geo.Bounds, error) {
	if feature == nil || feature.Geometry == nil {
		return geo.Bounds{}, fmt.Errorf("%w: feature has no geometry", ErrInvalidGeometry)
	}

	switch gm := feature.Geometry.(type) {
	case orb.Polygon:
		if len(gm) == 0 || len(gm[0]) < 3 {
			return geo.Bounds{}, fmt.Errorf("%w: polygon has no usable ring", ErrInvalidGeometry)
		}
	case orb.MultiPolygon:
		if len(gm) == 0 {
			return geo.Bounds{}, fmt.Errorf("%w: multipolygon is empty", ErrInvalidGeometry)
		}
	default:
		return geo.Bounds{}, fmt.Errorf("%w: expected Polygon or MultiPolygon, got %s", ErrInvalidGeometry, feature.Geometry.GeoJSONType())
	}

	b := feature.Geometry.Bound()
	if b.Min.X() >= b.Max.X() || b.Min.Y() >= b.Max.Y() {
		return geo.Bounds{}, fmt.Errorf("%w: zero-area bounding box", ErrInvalidGeometry)
	}
	return geo.BoundsFromOrb(b), nil
}
