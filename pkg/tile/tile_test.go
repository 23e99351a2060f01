package tile

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orb/maptile serves as an independent oracle for the slippy formulas.
func TestLonLatToTileAgainstMaptile(t *testing.T) {
	points := []struct {
		lon, lat float64
		zoom     int
	}{
		{0, 0, 0},
		{0, 0, 10},
		{13.4, 52.52, 12},     // Berlin
		{-122.42, 37.77, 15},  // San Francisco
		{151.21, -33.87, 13},  // Sydney
		{-43.18, -22.91, 17},  // Rio
		{179.9, 65.0, 8},      // near antimeridian
		{-179.9, -65.0, 8},
	}
	for _, p := range points {
		got := LonLatToTile(p.lon, p.lat, p.zoom)
		want := maptile.At([2]float64{p.lon, p.lat}, maptile.Zoom(p.zoom))
		assert.Equal(t, int(want.X), got.X, "x mismatch at %+v", p)
		assert.Equal(t, int(want.Y), got.Y, "y mismatch at %+v", p)
	}
}

func TestTileBoundsAgainstMaptile(t *testing.T) {
	c := Coord{X: 2200, Y: 1343, Z: 12}
	b := c.Bounds()
	ob := maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Z)).Bound()

	assert.InDelta(t, ob.Min.X(), b.West, 1e-9)
	assert.InDelta(t, ob.Max.X(), b.East, 1e-9)
	assert.InDelta(t, ob.Min.Y(), b.South, 1e-9)
	assert.InDelta(t, ob.Max.Y(), b.North, 1e-9)
	require.NoError(t, b.Validate())
}

func TestTileBoundsContainsItsCenter(t *testing.T) {
	for _, z := range []int{1, 5, 12, 18} {
		c := LonLatToTile(4.5, 51.9, z)
		b := c.Bounds()
		assert.True(t, b.Contains(4.5, 51.9), "zoom %d", z)
		// Mapping the center back must return the same tile.
		back := LonLatToTile((b.West+b.East)/2, (b.South+b.North)/2, z)
		assert.Equal(t, c, back, "zoom %d", z)
	}
}

func TestFlipRowOrigin(t *testing.T) {
	tests := []struct {
		y, zoom, want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 1, 0},
		{0, 10, 1023},
		{1023, 10, 0},
		{511, 10, 512},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FlipRowOrigin(tc.y, tc.zoom))
		// Self-inverse.
		assert.Equal(t, tc.y, FlipRowOrigin(FlipRowOrigin(tc.y, tc.zoom), tc.zoom))
	}
}

func TestLonLatToTileClampsOutOfDomain(t *testing.T) {
	n := 1 << 10
	c := LonLatToTile(-180.0001, 89.9, 10)
	assert.Equal(t, 0, c.X)
	assert.Equal(t, 0, c.Y)
	c = LonLatToTile(180.0001, -89.9, 10)
	assert.Equal(t, n-1, c.X)
	assert.Equal(t, n-1, c.Y)
	assert.True(t, c.Valid())
}
