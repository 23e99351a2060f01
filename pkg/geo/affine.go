package geo

import "math"

// Affine maps pixel coordinates to world coordinates:
//
//	lon = A*x + B*y + C
//	lat = D*x + E*y + F
//
// This is the same layout as the Affine package used by rasterio.
type Affine struct {
	A float64
	B float64
	C float64
	D float64
	E float64
	F float64
}

// NewAffine derives the north-up transform for a raster covering bounds with
// the given pixel dimensions. Row 0 is the northern edge, so E is negative.
func NewAffine(b Bounds, width, height int) Affine {
	return Affine{
		A: b.Width() / float64(width),
		B: 0,
		C: b.West,
		D: 0,
		E: -b.Height() / float64(height),
		F: b.North,
	}
}

// Determinant of the 2x2 linear part. Zero means the transform cannot be
// inverted.
func (t Affine) Determinant() float64 {
	return t.A*t.E - t.B*t.D
}

// PixelToWorld applies the transform to a pixel coordinate.
func (t Affine) PixelToWorld(x, y float64) (lon, lat float64) {
	return t.A*x + t.B*y + t.C, t.D*x + t.E*y + t.F
}

// WorldToPixel inverts the transform and rounds to the nearest integer pixel.
// Returns ErrDegenerateTransform when the determinant is zero.
func (t Affine) WorldToPixel(lon, lat float64) (x, y int, err error) {
	det := t.Determinant()
	if det == 0 {
		return 0, 0, ErrDegenerateTransform
	}
	fx := (t.E*(lon-t.C) - t.B*(lat-t.F)) / det
	fy := (-t.D*(lon-t.C) + t.A*(lat-t.F)) / det
	return int(math.Round(fx)), int(math.Round(fy)), nil
}

// Resolution returns the absolute x and y pixel sizes in world units.
func (t Affine) Resolution() (float64, float64) {
	return math.Abs(t.A), math.Abs(t.E)
}
