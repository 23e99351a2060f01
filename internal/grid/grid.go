// Package grid enumerates the rectangular tile grid covering a bounding box
// and resolves each tile's fetch URL through a provider strategy.
package grid

import (
	"github.com/geosnap/georaster/internal/provider"
	"github.com/geosnap/georaster/pkg/geo"
	"github.com/geosnap/georaster/pkg/tile"
)

// Cell is one tile slot in the grid.
type Cell struct {
	Coord  tile.Coord
	URL    string
	Bounds geo.Bounds
}

// Grid is the rectangular 2D tile layout for one mosaic request, row-major
// from the north-west corner. It is built fresh per request and discarded
// after stitching.
type Grid struct {
	Cells [][]Cell
	Zoom  int
}

// Rows returns the number of tile rows.
func (g *Grid) Rows() int { return len(g.Cells) }

// Cols returns the number of tile columns.
func (g *Grid) Cols() int {
	if len(g.Cells) == 0 {
		return 0
	}
	return len(g.Cells[0])
}

// Count returns the total number of tiles.
func (g *Grid) Count() int { return g.Rows() * g.Cols() }

// Bounds aggregates the combined extent of every tile in the grid.
func (g *Grid) Bounds() geo.Bounds {
	b := g.Cells[0][0].Bounds
	for _, row := range g.Cells {
		for _, c := range row {
			b = b.Union(c.Bounds)
		}
	}
	return b
}

// Build enumerates the tile grid covering b at the given zoom. When square is
// set the minor axis is widened symmetrically (alternating sides, clamped at
// the tile-range edge) until the grid is square, which guarantees a square
// mosaic. The final count is validated against maxTiles.
func Build(b geo.Bounds, zoom int, strategy provider.URLStrategy, square bool, maxTiles int) (*Grid, error) {
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	tl := tile.LonLatToTile(b.West, b.North, zoom)
	br := tile.LonLatToTile(b.East, b.South, zoom)
	x0, x1 := tl.X, br.X
	y0, y1 := tl.Y, br.Y

	if square {
		x0, x1, y0, y1 = squareRange(x0, x1, y0, y1, zoom)
	}

	if n := (x1 - x0 + 1) * (y1 - y0 + 1); n > maxTiles {
		return nil, &BudgetError{Requested: n, Max: maxTiles}
	}

	g := &Grid{Zoom: zoom}
	for y := y0; y <= y1; y++ {
		row := make([]Cell, 0, x1-x0+1)
		for x := x0; x <= x1; x++ {
			c := tile.Coord{X: x, Y: y, Z: zoom}
			u, err := strategy.TileURL(c)
			if err != nil {
				return nil, err
			}
			row = append(row, Cell{Coord: c, URL: u, Bounds: c.Bounds()})
		}
		g.Cells = append(g.Cells, row)
	}
	return g, nil
}

// squareRange grows the shorter axis of the tile range, alternating sides so
// growth stays centered on the original bbox. When one side hits the world
// edge the remaining growth goes to the other side.
func squareRange(x0, x1, y0, y1, zoom int) (int, int, int, int) {
	max := (1 << uint(zoom)) - 1
	low := false
	for x1-x0 < y1-y0 {
		switch {
		case low && x0 > 0:
			x0--
		case x1 < max:
			x1++
		case x0 > 0:
			x0--
		default:
			return x0, x1, y0, y1
		}
		low = !low
	}
	for y1-y0 < x1-x0 {
		switch {
		case low && y0 > 0:
			y0--
		case y1 < max:
			y1++
		case y0 > 0:
			y0--
		default:
			return x0, x1, y0, y1
		}
		low = !low
	}
	return x0, x1, y0, y1
}
