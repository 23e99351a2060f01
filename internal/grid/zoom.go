package grid

import (
	"fmt"

	"github.com/geosnap/georaster/pkg/geo"
	"github.com/geosnap/georaster/pkg/tile"
)

const (
	// DefaultMaxTiles is the tile-count cap applied when callers do not
	// configure one. It is the sole backpressure against oversized bounding
	// boxes.
	DefaultMaxTiles = 100

	// searchStartZoom is where the adaptive search begins.
	searchStartZoom = 21
	// zoomFloor guarantees termination for pathological bounding boxes.
	zoomFloor = 0
	// gridThreshold: the search stops once both grid dimensions are at or
	// below this.
	gridThreshold = 2
)

// BudgetError reports a tile grid exceeding the configured cap.
type BudgetError struct {
	Requested int
	Max       int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("Requested %d tiles, which exceeds the maximum allowed (%d)", e.Requested, e.Max)
}

// Dimensions computes the tile-grid size covering b at the given zoom from
// the bbox corner tiles.
func Dimensions(b geo.Bounds, zoom int) (cols, rows int) {
	tl := tile.LonLatToTile(b.West, b.North, zoom)
	br := tile.LonLatToTile(b.East, b.South, zoom)
	return br.X - tl.X + 1, br.Y - tl.Y + 1
}

// SelectZoom picks the zoom level for b. An explicit zoom (> -1 via the
// explicitSet flag) is validated against the cap and never auto-adjusted.
// Otherwise the search starts high and decrements until both grid dimensions
// are small or the floor is hit; the resulting grid is then validated against
// the cap.
func SelectZoom(b geo.Bounds, explicit int, explicitSet bool, maxTiles int) (int, error) {
	if maxTiles <= 0 {
		maxTiles = DefaultMaxTiles
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	if explicitSet {
		if explicit < zoomFloor || explicit > tile.MaxZoom {
			return 0, fmt.Errorf("zoom %d out of range [%d, %d]", explicit, zoomFloor, tile.MaxZoom)
		}
		if err := checkBudget(b, explicit, maxTiles); err != nil {
			return 0, err
		}
		return explicit, nil
	}

	z := searchStartZoom
	for z > zoomFloor {
		cols, rows := Dimensions(b, z)
		if cols <= gridThreshold && rows <= gridThreshold {
			break
		}
		z--
	}
	if err := checkBudget(b, z, maxTiles); err != nil {
		return 0, err
	}
	return z, nil
}

func checkBudget(b geo.Bounds, zoom, maxTiles int) error {
	cols, rows := Dimensions(b, zoom)
	if n := cols * rows; n > maxTiles {
		return &BudgetError{Requested: n, Max: maxTiles}
	}
	return nil
}
