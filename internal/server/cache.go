package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/paulmach/orb/geojson"

	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/pkg/raster"
)

const (
	defaultCacheSize = 64
	defaultCacheTTL  = 5 * time.Minute
)

// rasterCache is an explicit, TTL-bounded cache of completed rasters owned by
// the server layer. The imagery core stays cache-free; keying by the full
// request hash keeps invalidation trivial and testable.
type rasterCache struct {
	cache *ccache.Cache[*raster.GeoRaster]
	ttl   time.Duration
}

func newRasterCache(maxSize int64, ttl time.Duration) *rasterCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &rasterCache{
		cache: ccache.New(ccache.Configure[*raster.GeoRaster]().MaxSize(maxSize)),
		ttl:   ttl,
	}
}

// getImage returns the cached raster for an identical previous request, or
// runs the imagery pipeline and stores the result. Failures are never cached.
func (c *rasterCache) getImage(ctx context.Context, svc *imagery.Service, req *ImageRequest, feature *geojson.Feature, opts imagery.Options) (*raster.GeoRaster, error) {
	key := requestKey(req)
	if item := c.cache.Get(key); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	img, err := svc.GetImage(ctx, feature, opts)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, img, c.ttl)
	return img, nil
}

func requestKey(req *ImageRequest) string {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
