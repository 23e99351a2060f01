package mosaic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/grid"
	"github.com/geosnap/georaster/internal/provider"
	"github.com/geosnap/georaster/pkg/geo"
	"github.com/geosnap/georaster/pkg/raster"
	"github.com/geosnap/georaster/pkg/tile"
)

func buildGrid(t *testing.T, x0, y0, x1, y1, zoom int) *grid.Grid {
	t.Helper()
	s, err := provider.New(provider.Config{Provider: provider.KindTMS, BaseURL: "https://tiles.test"})
	require.NoError(t, err)

	tl := tile.Coord{X: x0, Y: y0, Z: zoom}.Bounds()
	br := tile.Coord{X: x1, Y: y1, Z: zoom}.Bounds()
	b := geo.Bounds{
		West:  (tl.West + tl.East) / 2,
		North: (tl.North + tl.South) / 2,
		East:  (br.West + br.East) / 2,
		South: (br.North + br.South) / 2,
	}
	g, err := grid.Build(b, zoom, s, false, 100)
	require.NoError(t, err)
	return g
}

// solid builds a w x h tile where every pixel carries the given RGB(A).
func solid(w, h, channels int, vals ...byte) fetch.Image {
	pix := make([]byte, w*h*channels)
	for i := 0; i < len(pix); i += channels {
		copy(pix[i:i+channels], vals[:channels])
	}
	return fetch.Image{Pix: pix, Width: w, Height: h, Channels: channels}
}

func TestStitchPlacesTilesRowMajor(t *testing.T) {
	g := buildGrid(t, 4, 4, 5, 5, 5) // 2x2
	tiles := [][]fetch.Image{
		{solid(4, 4, 3, 1, 1, 1), solid(4, 4, 3, 2, 2, 2)},
		{solid(4, 4, 3, 3, 3, 3), solid(4, 4, 3, 4, 4, 4)},
	}

	m, err := Stitch(g, tiles)
	require.NoError(t, err)
	assert.Equal(t, 8, m.Width)
	assert.Equal(t, 8, m.Height)
	assert.Equal(t, 3, m.Channels)

	at := func(x, y int) byte { return m.Pix[(y*m.Width+x)*3] }
	assert.Equal(t, byte(1), at(0, 0))
	assert.Equal(t, byte(2), at(7, 0))
	assert.Equal(t, byte(3), at(0, 7))
	assert.Equal(t, byte(4), at(7, 7))
	// Tile seams land on the 4-pixel boundary.
	assert.Equal(t, byte(1), at(3, 3))
	assert.Equal(t, byte(4), at(4, 4))
}

func TestStitchStripsAlpha(t *testing.T) {
	g := buildGrid(t, 4, 4, 5, 4, 5) // 2x1
	tiles := [][]fetch.Image{
		{solid(2, 2, 4, 9, 8, 7, 255), solid(2, 2, 3, 1, 2, 3)},
	}

	m, err := Stitch(g, tiles)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Channels)
	assert.Equal(t, []byte{9, 8, 7}, m.Pix[:3])
	assert.Equal(t, []byte{1, 2, 3}, m.Pix[2*3:2*3+3])
}

func TestStitchChannelMismatch(t *testing.T) {
	g := buildGrid(t, 4, 4, 4, 4, 5)
	tiles := [][]fetch.Image{{solid(2, 2, 1, 5)}}

	_, err := Stitch(g, tiles)
	var cme *raster.ChannelMismatchError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, 1, cme.Got)
}

func TestStitchRejectsUnevenTiles(t *testing.T) {
	g := buildGrid(t, 4, 4, 5, 4, 5)
	tiles := [][]fetch.Image{
		{solid(4, 4, 3, 1, 1, 1), solid(2, 2, 3, 2, 2, 2)},
	}
	_, err := Stitch(g, tiles)
	require.Error(t, err)
}

func TestStitchRejectsShapeMismatch(t *testing.T) {
	g := buildGrid(t, 4, 4, 5, 5, 5)
	_, err := Stitch(g, [][]fetch.Image{{solid(2, 2, 3, 1, 1, 1)}})
	require.Error(t, err)
}

func TestStitchBoundsAggregateTiles(t *testing.T) {
	g := buildGrid(t, 4, 4, 5, 5, 5)
	tiles := [][]fetch.Image{
		{solid(2, 2, 3, 0, 0, 0), solid(2, 2, 3, 0, 0, 0)},
		{solid(2, 2, 3, 0, 0, 0), solid(2, 2, 3, 0, 0, 0)},
	}
	m, err := Stitch(g, tiles)
	require.NoError(t, err)

	nw := tile.Coord{X: 4, Y: 4, Z: 5}.Bounds()
	se := tile.Coord{X: 5, Y: 5, Z: 5}.Bounds()
	assert.InDelta(t, nw.North, m.Bounds.North, 1e-9)
	assert.InDelta(t, nw.West, m.Bounds.West, 1e-9)
	assert.InDelta(t, se.South, m.Bounds.South, 1e-9)
	assert.InDelta(t, se.East, m.Bounds.East, 1e-9)
}
