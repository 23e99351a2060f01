// Package tile implements slippy-map tile arithmetic under the standard
// Web-Mercator tiling scheme.
// http://wiki.openstreetmap.org/wiki/Slippy_map_tilenames
package tile

import (
	"fmt"
	"math"

	"github.com/geosnap/georaster/pkg/geo"
)

// Size is the edge length in pixels of a standard slippy tile.
const Size = 256

// MaxZoom is the deepest zoom level the mapper accepts.
const MaxZoom = 22

// Coord addresses one tile at a zoom level. Invariant: 0 <= X,Y < 2^Z.
type Coord struct {
	X int
	Y int
	Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether the coordinate lies within the tile range of its zoom.
func (c Coord) Valid() bool {
	if c.Z < 0 || c.Z > MaxZoom {
		return false
	}
	n := 1 << uint(c.Z)
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// LonLatToTile maps a lon/lat to the tile containing it at the given zoom.
// Coordinates outside the Web-Mercator domain clamp to the edge tiles.
func LonLatToTile(lon, lat float64, zoom int) Coord {
	n := float64(int(1) << uint(zoom))
	latRad := lat * math.Pi / 180

	x := int(math.Floor(n * (lon + 180) / 360))
	y := int(math.Floor(n * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2))

	return Coord{X: clamp(x, 0, int(n)-1), Y: clamp(y, 0, int(n)-1), Z: zoom}
}

// Bounds returns the geographic extent of the tile.
func (c Coord) Bounds() geo.Bounds {
	n := float64(int(1) << uint(c.Z))
	return geo.Bounds{
		West:  360*float64(c.X)/n - 180,
		East:  360*float64(c.X+1)/n - 180,
		North: rowEdgeLat(float64(c.Y), n),
		South: rowEdgeLat(float64(c.Y+1), n),
	}
}

// FlipRowOrigin converts a tile row between top-left-origin (Web Mercator) and
// bottom-left-origin (TMS) indexing. The function is its own inverse. Kept
// separate because a sign error here silently shifts output imagery.
func FlipRowOrigin(y, zoom int) int {
	return (1 << uint(zoom)) - 1 - y
}

// rowEdgeLat is the latitude of the top edge of tile row y.
func rowEdgeLat(y, n float64) float64 {
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return latRad * 180 / math.Pi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
