package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG serializes the raster as a PNG. Grayscale, RGB and RGBA channel
// layouts are supported.
func (r *GeoRaster) EncodePNG() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, r.width, r.height))
	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			si := (y*r.width + x) * r.channels
			di := y*img.Stride + x*4
			switch r.channels {
			case 1:
				v := r.pix[si]
				img.Pix[di], img.Pix[di+1], img.Pix[di+2], img.Pix[di+3] = v, v, v, 255
			case 3:
				img.Pix[di] = r.pix[si]
				img.Pix[di+1] = r.pix[si+1]
				img.Pix[di+2] = r.pix[si+2]
				img.Pix[di+3] = 255
			case 4:
				copy(img.Pix[di:di+4], r.pix[si:si+4])
			default:
				return nil, &ChannelMismatchError{Got: r.channels, Want: 3}
			}
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// WorldFile renders the six-line ESRI world file for the raster, derived from
// its affine transform.
func (r *GeoRaster) WorldFile() []byte {
	var buf bytes.Buffer
	t := r.transform
	fmt.Fprintf(&buf, "%24.10f\n", t.A)
	fmt.Fprintf(&buf, "%24.10f\n", t.D)
	fmt.Fprintf(&buf, "%24.10f\n", t.B)
	fmt.Fprintf(&buf, "%24.10f\n", t.E)
	fmt.Fprintf(&buf, "%24.10f\n", t.C)
	fmt.Fprintf(&buf, "%24.10f\n", t.F)
	return buf.Bytes()
}
