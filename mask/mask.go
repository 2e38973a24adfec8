// Package mask evaluates universal masks, falloff remaps and the mask
// category features. Every evaluator method returns a scalar in [0, 1]
// where 1 keeps a point untouched.
package mask

import (
	"fmt"
	"sync"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// Evaluator evaluates masks for the points of one system during one
// compute. It is safe for concurrent use.
type Evaluator struct {
	System   *scatter.System
	Attrs    *transfer.Transfer
	Report   *scatter.Report
	Surfaces []*surface.Object

	curves sync.Map // feature -> *geom.CurveMap
	usable sync.Map // feature -> bool
}

// NewEvaluator resolves the system's surfaces in the transfer's scene.
func NewEvaluator(sys *scatter.System, attrs *transfer.Transfer, report *scatter.Report) *Evaluator {
	e := &Evaluator{System: sys, Attrs: attrs, Report: report}
	if sc := attrs.Scene(); sc != nil {
		for _, name := range sys.Surfaces {
			if o, ok := sc.Object(name); ok {
				e.Surfaces = append(e.Surfaces, o)
			}
		}
	}
	return e
}

// Scene returns the snapshot being evaluated.
func (e *Evaluator) Scene() *surface.Scene { return e.Attrs.Scene() }

// Seed derives a per-feature seed from the system's master seed.
func (e *Evaluator) Seed(feature string, seed int) uint64 { return e.System.Seed(feature, seed) }

func (e *Evaluator) report(kind scatter.Kind, feature, format string, args ...any) {
	e.Report.Add(scatter.Errorf(kind, e.System.ID, feature, format, args...))
}

// Universal evaluates m at p. Disabled masks, and masks whose source cannot
// be resolved, return 1 so the owning feature applies in full.
func (e *Evaluator) Universal(m *scatter.UniversalMask, feature string, p *scatter.Point) float64 {
	if m == nil || !m.Allow {
		return 1
	}
	if !e.ready(m, feature) {
		return 1
	}
	var v float64
	switch m.Method {
	case scatter.MaskVertexGroup:
		v, _ = e.Attrs.VertexGroup(p, m.Ptr)
	case scatter.MaskColorAttr:
		c, _ := e.Attrs.Color(p, m.Ptr)
		v = SampleColor(c, m.ColorSample, m.IDColor, m.IDTolerance)
	case scatter.MaskImage:
		im, _ := e.Scene().Image(m.BitmapPtr)
		uv, _ := e.Attrs.UV(p, m.UVPtr)
		v = SampleColor(im.Sample(uv[0], uv[1]), m.ColorSample, m.IDColor, m.IDTolerance)
	case scatter.MaskNoise:
		tex := noise.Texture{
			Basis:      noise.BasisGradient,
			Scale:      m.NoiseScale,
			Seed:       int64(e.Seed(feature+"_mask_noise", m.NoiseSeed)),
			Octaves:    2,
			Brightness: m.NoiseBrightness,
			Contrast:   m.NoiseContrast,
		}
		v = tex.Sample(e.Attrs.Position(p, m.NoiseSpace))
	default:
		return 1
	}
	if m.Reverse {
		v = 1 - v
	}
	return geom.Clamp01(v)
}

// ready resolves the mask source once per feature and reports problems.
func (e *Evaluator) ready(m *scatter.UniversalMask, feature string) bool {
	key := feature + "|" + string(m.Method) + "|" + m.Ptr + "|" + m.BitmapPtr + "|" + m.UVPtr
	if v, ok := e.usable.Load(key); ok {
		return v.(bool)
	}
	ok := true
	field := feature + "_mask_ptr"
	switch m.Method {
	case scatter.MaskVertexGroup:
		ok = e.attr(transfer.AttrVertexGroup, m.Ptr, field)
	case scatter.MaskColorAttr:
		ok = e.attr(transfer.AttrColor, m.Ptr, field)
	case scatter.MaskImage:
		if _, found := e.Scene().Image(m.BitmapPtr); !found {
			e.report(scatter.KindInvalidReference, feature+"_mask_bitmap_ptr", "image %q not found", m.BitmapPtr)
			ok = false
		} else {
			ok = e.attr(transfer.AttrUV, m.UVPtr, feature+"_mask_bitmap_uv_ptr")
		}
	case scatter.MaskNoise:
	default:
		e.report(scatter.KindInvalidConfig, feature+"_mask_method", "unknown mask method %q", m.Method)
		ok = false
	}
	e.usable.Store(key, ok)
	return ok
}

// attr checks that an attribute exists on the system's surfaces. Partial
// coverage is reported but usable: surfaces without it read defaults.
func (e *Evaluator) attr(a transfer.Attr, name, feature string) bool {
	cov, err := transfer.Shared(e.Surfaces, a, name, e.System.ID, feature)
	if err != nil {
		e.Report.Add(err)
	}
	return cov != transfer.CoverNone
}

// Falloff remaps x in [0, 1] (the position within a transition) through
// f's curve and adds its noise overlay.
func (e *Evaluator) Falloff(f *scatter.Falloff, feature string, x float64, p *scatter.Point) float64 {
	var curve *geom.CurveMap
	if f.RemapAllow {
		curve = e.Curve(f, feature)
	}
	pos := p.Pos
	if f.NoisyStrength != 0 {
		pos = e.Attrs.Position(p, f.NoisySpace)
	}
	return ApplyFalloff(f, curve, e.Seed(feature+"_fallnoisy", f.NoisySeed), x, pos)
}

// Curve returns f's curve map, fitted once per feature.
func (e *Evaluator) Curve(f *scatter.Falloff, feature string) *geom.CurveMap {
	key := fmt.Sprintf("%s|%v", feature, f.RemapData)
	if c, ok := e.curves.Load(key); ok {
		return c.(*geom.CurveMap)
	}
	c := geom.NewCurveMap(f.RemapData)
	e.curves.Store(key, c)
	return c
}

// ApplyFalloff is the pure falloff remap. curve may be nil for the identity
// remap. Noise only perturbs values strictly inside the transition, so the
// fully kept and fully removed regions stay exact.
func ApplyFalloff(f *scatter.Falloff, curve *geom.CurveMap, seed uint64, x float64, pos geom.Vec) float64 {
	x = geom.Clamp01(x)
	y := x
	if f.RemapAllow && curve != nil {
		y = curve.Eval(x)
		if f.RemapRevert {
			y = 1 - y
		}
	}
	if f.NoisyStrength != 0 && x > 0 && x < 1 {
		scale := f.NoisyScale
		if scale == 0 {
			scale = 1
		}
		n := noise.SimplexFor(int64(seed)).Eval3(pos.X/scale, pos.Y/scale, pos.Z/scale)
		y += (n - 0.5) * 2 * f.NoisyStrength
	}
	return geom.Clamp01(y)
}
