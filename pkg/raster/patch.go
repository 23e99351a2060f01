package raster

import "github.com/geosnap/georaster/pkg/geo"

// ToPatches splits the raster into a 2D grid of patchHeight x patchWidth
// sub-rasters for batched model inference. When pad is true (the usual mode)
// the source is zero-padded on the bottom and right edges so every patch is
// full sized; the padded area extends the bounds through the parent transform
// so georeferencing stays consistent. When pad is false the dimensions must
// divide evenly.
//
// Each patch's bounds are obtained by mapping its pixel-corner range through
// the parent transform, never recomputed independently.
func (r *GeoRaster) ToPatches(patchHeight, patchWidth int, pad bool) ([][]*GeoRaster, error) {
	if patchHeight <= 0 || patchWidth <= 0 {
		return nil, ErrPatchSize
	}

	src := r
	if r.width%patchWidth != 0 || r.height%patchHeight != 0 {
		if !pad {
			return nil, ErrPatchSize
		}
		var err error
		src, err = r.padded(ceilMultiple(r.width, patchWidth), ceilMultiple(r.height, patchHeight))
		if err != nil {
			return nil, err
		}
	}

	rows := src.height / patchHeight
	cols := src.width / patchWidth
	patches := make([][]*GeoRaster, rows)
	for i := 0; i < rows; i++ {
		patches[i] = make([]*GeoRaster, cols)
		for j := 0; j < cols; j++ {
			x0, y0 := j*patchWidth, i*patchHeight
			p, err := src.slice(x0, y0, patchWidth, patchHeight)
			if err != nil {
				return nil, err
			}
			patches[i][j] = p
		}
	}
	return patches, nil
}

// FromPatches reassembles a rectangular patch grid into a single raster.
// Patch channel counts are normalized by dropping alpha (4 -> 3) where
// needed; anything else mismatched fails with ChannelMismatchError. Total
// width is the sum of the first row's patch widths, total height the sum of
// the first column's patch heights.
func FromPatches(patches [][]*GeoRaster, bounds geo.Bounds, crs string) (*GeoRaster, error) {
	if len(patches) == 0 || len(patches[0]) == 0 {
		return nil, ErrEmptyPatchGrid
	}
	cols := len(patches[0])
	channels := patches[0][0].channels
	for _, row := range patches {
		if len(row) != cols {
			return nil, ErrEmptyPatchGrid
		}
		for _, p := range row {
			if p == nil {
				return nil, ErrEmptyPatchGrid
			}
			if p.channels < channels {
				channels = p.channels
			}
		}
	}

	width := 0
	for _, p := range patches[0] {
		width += p.width
	}
	height := 0
	for _, row := range patches {
		height += row[0].height
	}

	out := make([]byte, width*height*channels)
	yoff := 0
	for _, row := range patches {
		xoff := 0
		for _, p := range row {
			if p.channels != channels && !(p.channels == 4 && channels == 3) {
				return nil, &ChannelMismatchError{Got: p.channels, Want: channels}
			}
			blit(out, width, channels, p.pix, p.width, p.height, p.channels, xoff, yoff)
			xoff += p.width
		}
		yoff += row[0].height
	}

	return New(out, width, height, channels, bounds, crs)
}

// padded returns a copy grown to newW x newH with zero pixels on the bottom
// and right, bounds extended through the original transform.
func (r *GeoRaster) padded(newW, newH int) (*GeoRaster, error) {
	pix := make([]byte, newW*newH*r.channels)
	for y := 0; y < r.height; y++ {
		src := r.pix[y*r.width*r.channels : (y+1)*r.width*r.channels]
		copy(pix[y*newW*r.channels:], src)
	}
	east, south := r.transform.PixelToWorld(float64(newW), float64(newH))
	b := geo.Bounds{North: r.bounds.North, South: south, East: east, West: r.bounds.West}
	return New(pix, newW, newH, r.channels, b, r.crs)
}

// slice copies the w x h window at (x0, y0) into a new patch whose bounds are
// derived from the parent transform.
func (r *GeoRaster) slice(x0, y0, w, h int) (*GeoRaster, error) {
	pix := make([]byte, w*h*r.channels)
	for y := 0; y < h; y++ {
		srcOff := ((y0+y)*r.width + x0) * r.channels
		copy(pix[y*w*r.channels:(y+1)*w*r.channels], r.pix[srcOff:srcOff+w*r.channels])
	}
	west, north := r.transform.PixelToWorld(float64(x0), float64(y0))
	east, south := r.transform.PixelToWorld(float64(x0+w), float64(y0+h))
	b := geo.Bounds{North: north, South: south, East: east, West: west}
	return New(pix, w, h, r.channels, b, r.crs)
}

// blit copies src pixels into dst at (xoff, yoff), dropping alpha when the
// source carries one channel more than the destination.
func blit(dst []byte, dstW, dstCh int, src []byte, srcW, srcH, srcCh, xoff, yoff int) {
	for y := 0; y < srcH; y++ {
		for x := 0; x < srcW; x++ {
			si := (y*srcW + x) * srcCh
			di := ((yoff+y)*dstW + xoff + x) * dstCh
			copy(dst[di:di+dstCh], src[si:si+dstCh])
		}
	}
}

func ceilMultiple(v, m int) int {
	if v%m == 0 {
		return v
	}
	return (v/m + 1) * m
}
