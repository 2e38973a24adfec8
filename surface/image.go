package surface

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// WrapMode decides how UVs outside [0,1]² are sampled.
type WrapMode string

const (
	WrapRepeat WrapMode = "repeat"
	WrapExtend WrapMode = "extend"
	WrapClip   WrapMode = "clip"
)

// Image is a decoded RGBA image with float channels in [0, 1]. Row 0 is the
// bottom of the image so that v=0 maps to the first row.
type Image struct {
	Name   string
	Width  int
	Height int
	Pix    [][4]float64
	Wrap   WrapMode
}

// LoadImage decodes an image file (png, jpeg, gif, bmp, tiff, webp).
func LoadImage(name, path string, wrap WrapMode) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %s: %w", name, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", name, err)
	}
	return FromImage(name, img, wrap), nil
}

// FromImage converts a decoded image.
func FromImage(name string, img image.Image, wrap WrapMode) *Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := &Image{Name: name, Width: w, Height: h, Pix: make([][4]float64, w*h), Wrap: wrap}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bb, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px := [4]float64{float64(r) / 0xffff, float64(g) / 0xffff, float64(bb) / 0xffff, float64(a) / 0xffff}
			if px[3] > 0 {
				// Un-premultiply.
				px[0] /= px[3]
				px[1] /= px[3]
				px[2] /= px[3]
			}
			out.Pix[(h-1-y)*w+x] = px
		}
	}
	return out
}

// NewImage builds an image from rows of pixels, bottom row first.
func NewImage(name string, w, h int, pix [][4]float64, wrap WrapMode) *Image {
	return &Image{Name: name, Width: w, Height: h, Pix: pix, Wrap: wrap}
}

// texel returns the pixel at integer coordinates after wrapping. ok is false
// for clipped lookups.
func (im *Image) texel(x, y int) ([4]float64, bool) {
	switch im.Wrap {
	case WrapClip:
		if x < 0 || y < 0 || x >= im.Width || y >= im.Height {
			return [4]float64{}, false
		}
	case WrapExtend:
		x = clampInt(x, 0, im.Width-1)
		y = clampInt(y, 0, im.Height-1)
	default:
		x = ((x % im.Width) + im.Width) % im.Width
		y = ((y % im.Height) + im.Height) % im.Height
	}
	return im.Pix[y*im.Width+x], true
}

// Sample returns the bilinearly filtered color at (u, v).
func (im *Image) Sample(u, v float64) [4]float64 {
	if im == nil || im.Width == 0 || im.Height == 0 {
		return [4]float64{0, 0, 0, 1}
	}
	if im.Wrap == WrapClip && (u < 0 || u > 1 || v < 0 || v > 1) {
		return [4]float64{}
	}
	fx := u*float64(im.Width) - 0.5
	fy := v*float64(im.Height) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	var out [4]float64
	weights := [4]float64{(1 - tx) * (1 - ty), tx * (1 - ty), (1 - tx) * ty, tx * ty}
	coords := [4][2]int{{x0, y0}, {x0 + 1, y0}, {x0, y0 + 1}, {x0 + 1, y0 + 1}}
	if im.Wrap == WrapClip {
		// Edge texels clamp rather than fade to transparent inside [0,1]².
		for i := range coords {
			coords[i][0] = clampInt(coords[i][0], 0, im.Width-1)
			coords[i][1] = clampInt(coords[i][1], 0, im.Height-1)
		}
	}
	for i, c := range coords {
		px, ok := im.texel(c[0], c[1])
		if !ok {
			continue
		}
		for k := 0; k < 4; k++ {
			out[k] += weights[i] * px[k]
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
