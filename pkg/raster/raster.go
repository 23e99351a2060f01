// Package raster provides the georeferenced image entity returned by mosaic
// assembly and consumed by model inference code.
package raster

import (
	"errors"
	"fmt"

	"github.com/geosnap/georaster/pkg/geo"
)

var (
	// ErrEmptyPatchGrid signals an empty or non-rectangular patch grid passed
	// to FromPatches.
	ErrEmptyPatchGrid = errors.New("patch grid is empty or not rectangular")
	// ErrPatchSize signals patch dimensions that do not divide the raster and
	// padding was disabled.
	ErrPatchSize = errors.New("raster dimensions not divisible by patch size")
)

// ChannelMismatchError reports channel counts that cannot be reconciled by
// dropping an alpha channel.
type ChannelMismatchError struct {
	Got  int
	Want int
}

func (e *ChannelMismatchError) Error() string {
	return fmt.Sprintf("channel mismatch: got %d channels, want %d", e.Got, e.Want)
}

// GeoRaster is a pixel buffer with geographic referencing attached. The
// transform is derived from bounds and dimensions at construction and never
// mutated afterwards. The pixel buffer is owned by the holder of the
// reference; treat it as immutable once received.
type GeoRaster struct {
	pix       []byte
	width     int
	height    int
	channels  int
	bounds    geo.Bounds
	transform geo.Affine
	crs       string
}

// New constructs a GeoRaster, deriving the affine transform from bounds and
// pixel dimensions. The pixel buffer must be exactly width*height*channels
// bytes, packed row-major.
func New(pix []byte, width, height, channels int, bounds geo.Bounds, crs string) (*GeoRaster, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%dx%d", width, height, channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("pixel buffer is %d bytes, want %d", len(pix), width*height*channels)
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &GeoRaster{
		pix:       pix,
		width:     width,
		height:    height,
		channels:  channels,
		bounds:    bounds,
		transform: geo.NewAffine(bounds, width, height),
		crs:       crs,
	}, nil
}

// Bounds returns the geographic extent of the raster.
func (r *GeoRaster) Bounds() geo.Bounds { return r.bounds }

// CRS returns the coordinate reference system identifier.
func (r *GeoRaster) CRS() string { return r.crs }

// Width returns the pixel width.
func (r *GeoRaster) Width() int { return r.width }

// Height returns the pixel height.
func (r *GeoRaster) Height() int { return r.height }

// Channels returns the number of interleaved channels per pixel.
func (r *GeoRaster) Channels() int { return r.channels }

// Pix exposes the raw pixel buffer. Callers must not modify it; use Clone for
// a mutable copy.
func (r *GeoRaster) Pix() []byte { return r.pix }

// Transform returns the pixel-to-world affine transform.
func (r *GeoRaster) Transform() geo.Affine { return r.transform }

// PixelToWorld maps a pixel coordinate to lon/lat.
func (r *GeoRaster) PixelToWorld(x, y float64) (lon, lat float64) {
	return r.transform.PixelToWorld(x, y)
}

// WorldToPixel maps lon/lat to the nearest integer pixel coordinate.
func (r *GeoRaster) WorldToPixel(lon, lat float64) (x, y int, err error) {
	return r.transform.WorldToPixel(lon, lat)
}

// Clone returns a deep copy of the raster.
func (r *GeoRaster) Clone() *GeoRaster {
	pix := make([]byte, len(r.pix))
	copy(pix, r.pix)
	c := *r
	c.pix = pix
	return &c
}
