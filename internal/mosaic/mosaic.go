// Package mosaic merges a fetched tile grid into one contiguous pixel
// buffer with normalized channel layout.
package mosaic

import (
	"errors"
	"fmt"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/grid"
	"github.com/geosnap/georaster/pkg/geo"
	"github.com/geosnap/georaster/pkg/raster"
)

// TargetChannels is the channel layout models consume. Four-channel tiles
// have their alpha stripped to match.
const TargetChannels = 3

var errEmptyGrid = errors.New("mosaic: empty tile grid")

// Mosaic is the stitched output handed to GeoRaster construction.
type Mosaic struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
	Bounds   geo.Bounds
}

// Stitch copies each decoded tile into its grid offset, row-major. Every tile
// must share the dimensions of the first; channel counts normalize to
// TargetChannels by alpha-stripping, anything else fails with
// ChannelMismatchError. The combined bounds aggregate the per-tile bounds.
func Stitch(g *grid.Grid, tiles [][]fetch.Image) (*Mosaic, error) {
	if g == nil || g.Count() == 0 || len(tiles) == 0 {
		return nil, errEmptyGrid
	}
	if len(tiles) != g.Rows() {
		return nil, fmt.Errorf("mosaic: got %d tile rows, grid has %d", len(tiles), g.Rows())
	}

	tileW := tiles[0][0].Width
	tileH := tiles[0][0].Height
	width := g.Cols() * tileW
	height := g.Rows() * tileH
	out := make([]byte, width*height*TargetChannels)

	for i, row := range tiles {
		if len(row) != g.Cols() {
			return nil, fmt.Errorf("mosaic: tile row %d has %d tiles, grid has %d columns", i, len(row), g.Cols())
		}
		for j, t := range row {
			if t.Width != tileW || t.Height != tileH {
				return nil, fmt.Errorf("mosaic: tile %d,%d is %dx%d, want %dx%d", i, j, t.Width, t.Height, tileW, tileH)
			}
			if t.Channels != TargetChannels && t.Channels != 4 {
				return nil, &raster.ChannelMismatchError{Got: t.Channels, Want: TargetChannels}
			}
			copyTile(out, width, t, j*tileW, i*tileH)
		}
	}

	return &Mosaic{
		Pix:      out,
		Width:    width,
		Height:   height,
		Channels: TargetChannels,
		Bounds:   g.Bounds(),
	}, nil
}

// copyTile blits one tile into the output at (xoff, yoff), dropping alpha for
// four-channel sources.
func copyTile(dst []byte, dstW int, t fetch.Image, xoff, yoff int) {
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			si := (y*t.Width + x) * t.Channels
			di := ((yoff+y)*dstW + xoff + x) * TargetChannels
			dst[di] = t.Pix[si]
			dst[di+1] = t.Pix[si+1]
			dst[di+2] = t.Pix[si+2]
		}
	}
}
