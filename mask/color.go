package mask

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

// Epsilon is the fixed tolerance of the pure black and pure white modes.
const Epsilon = 0.01

// Luma returns the Rec. 709 luminance of an RGB color.
func Luma(c [4]float64) float64 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}

// SampleColor maps an RGBA sample to [0, 1] with the given rule. id and tol
// are only read by the color-picker rule, which matches when every channel
// is within tol of id.
func SampleColor(c [4]float64, mode scatter.ColorSample, id [3]float64, tol float64) float64 {
	switch mode {
	case scatter.SampleRed:
		return geom.Clamp01(c[0])
	case scatter.SampleGreen:
		return geom.Clamp01(c[1])
	case scatter.SampleBlue:
		return geom.Clamp01(c[2])
	case scatter.SampleAlpha:
		return geom.Clamp01(c[3])
	case scatter.SampleBlack:
		if math.Max(c[0], math.Max(c[1], c[2])) <= Epsilon {
			return 1
		}
		return 0
	case scatter.SampleWhite:
		if math.Min(c[0], math.Min(c[1], c[2])) >= 1-Epsilon {
			return 1
		}
		return 0
	case scatter.SampleIDColor:
		if ColorMatch(c, id, tol) {
			return 1
		}
		return 0
	case scatter.SampleHue, scatter.SampleSat, scatter.SampleValue, scatter.SampleLight:
		col := colorful.Color{R: geom.Clamp01(c[0]), G: geom.Clamp01(c[1]), B: geom.Clamp01(c[2])}
		switch mode {
		case scatter.SampleHue:
			h, _, _ := col.Hsv()
			return geom.Clamp01(h / 360)
		case scatter.SampleSat:
			_, s, _ := col.Hsv()
			return geom.Clamp01(s)
		case scatter.SampleValue:
			_, _, v := col.Hsv()
			return geom.Clamp01(v)
		default:
			_, _, l := col.Hsl()
			return geom.Clamp01(l)
		}
	}
	return geom.Clamp01(Luma(c))
}

// ColorMatch reports whether the RGB channels of c are all within tol of id.
func ColorMatch(c [4]float64, id [3]float64, tol float64) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(c[i]-id[i]) > tol {
			return false
		}
	}
	return true
}
