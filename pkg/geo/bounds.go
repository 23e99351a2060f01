package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	// ErrInvalidBounds signals a bounding box that violates north>south / east>west.
	ErrInvalidBounds = errors.New("invalid bounds: requires north > south and east > west")
	// ErrDegenerateTransform signals a zero-area extent whose affine transform
	// cannot be inverted.
	ErrDegenerateTransform = errors.New("degenerate transform: zero-area bounds")
)

// Bounds is a geographic bounding box in lon/lat degrees.
type Bounds struct {
	North float64
	South float64
	East  float64
	West  float64
}

// BoundsFromOrb converts an orb.Bound into Bounds.
func BoundsFromOrb(b orb.Bound) Bounds {
	return Bounds{
		North: b.Max.Y(),
		South: b.Min.Y(),
		East:  b.Max.X(),
		West:  b.Min.X(),
	}
}

// ToOrb converts back to an orb.Bound.
func (b Bounds) ToOrb() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Validate checks the north>south, east>west invariant.
func (b Bounds) Validate() error {
	if b.North <= b.South || b.East <= b.West {
		return fmt.Errorf("%w: got n=%g s=%g e=%g w=%g", ErrInvalidBounds, b.North, b.South, b.East, b.West)
	}
	return nil
}

// Width returns the east-west extent in degrees.
func (b Bounds) Width() float64 {
	return b.East - b.West
}

// Height returns the north-south extent in degrees.
func (b Bounds) Height() float64 {
	return b.North - b.South
}

// Union returns the smallest bounds covering both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	u := b
	if o.North > u.North {
		u.North = o.North
	}
	if o.South < u.South {
		u.South = o.South
	}
	if o.East > u.East {
		u.East = o.East
	}
	if o.West < u.West {
		u.West = o.West
	}
	return u
}

// Contains reports whether the point lies inside or on the edge of b.
func (b Bounds) Contains(lon, lat float64) bool {
	return lon >= b.West && lon <= b.East && lat >= b.South && lat <= b.North
}
