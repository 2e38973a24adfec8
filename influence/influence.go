// Package influence folds mask and field outputs into each point's keep
// probability and scale.
package influence

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/fields"
	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
)

// Factor is the multiplier a feature value v in [0, 1] contributes when its
// influence is allowed with magnitude pct in [0, 100]. A value of 1 is
// always identity.
func Factor(allow bool, pct float64, revert bool, v float64) float64 {
	if !allow {
		return 1
	}
	if revert {
		v = 1 - v
	}
	return 1 - geom.Clamp01(pct/100)*(1-geom.Clamp01(v))
}

// Masked fades a factor toward identity where strength is below one.
func Masked(strength, f float64) float64 {
	return 1 - geom.Clamp01(strength)*(1-f)
}

// Resolver combines the category masks and field samples of one system.
// It is safe for concurrent use.
type Resolver struct {
	Mask      *mask.CategoryMask
	GroupMask *mask.CategoryMask
	Fields    *fields.Evaluator
}

// Result is what a point picked up from its modulators.
type Result struct {
	Density float64
	Scale   geom.Vec
}

// Resolve evaluates every modulator at p. buf is scratch space for field
// samples and is returned for reuse.
func (r *Resolver) Resolve(p *scatter.Point, buf []fields.Sample) (Result, []fields.Sample) {
	res := Result{Density: 1, Scale: geom.One}
	if r.Mask != nil {
		res.Density *= r.Mask.Keep(p)
	}
	if r.GroupMask != nil {
		res.Density *= r.GroupMask.Keep(p)
	}
	if r.Fields == nil || res.Density == 0 {
		return res, buf
	}
	buf = r.Fields.Eval(p, buf[:0])
	for i := range buf {
		s := &buf[i]
		if s.Infl == nil {
			continue
		}
		in := s.Infl
		res.Density *= Masked(s.Strength, Factor(in.DistAllow, in.Dist, in.DistRevert, s.Value))
		f := Masked(s.Strength, Factor(in.ScaleAllow, in.Scale, in.ScaleRevert, s.Value))
		res.Scale = r3.Scale(f, res.Scale)
	}
	return res, buf
}

// Apply resolves p and writes the result into it. Density above one is
// clamped: this stage never adds points. Rotation influences of proximity
// features tilt the normal and spin the tangent toward the repelling
// element.
func (r *Resolver) Apply(p *scatter.Point, buf []fields.Sample) []fields.Sample {
	res, buf := r.Resolve(p, buf)
	p.Keep = geom.Clamp01(p.Keep * math.Min(res.Density, 1))
	p.Scale = geom.Mul(p.Scale, res.Scale)
	for i := range buf {
		if s := &buf[i]; s.Rot != nil {
			rotate(p, s)
		}
	}
	return buf
}

// rotate applies a proximity sample's normal and tangent influences.
func rotate(p *scatter.Point, s *fields.Sample) {
	ri := s.Rot
	away := s.Away
	if r3.Norm2(away) == 0 {
		return
	}
	if ri.NorAllow {
		w := s.Strength * (1 - Factor(true, ri.Nor, ri.NorRevert, s.Value))
		if w > 0 {
			p.Normal = geom.Unit(geom.LerpVec(p.Normal, away, geom.Clamp01(w)), p.Normal)
		}
	}
	if ri.TanAllow {
		w := s.Strength * (1 - Factor(true, ri.Tan, ri.TanRevert, s.Value))
		if w > 0 {
			flat := r3.Sub(away, r3.Scale(r3.Dot(away, p.Normal), p.Normal))
			target := geom.Unit(flat, p.Tangent)
			p.Tangent = geom.LerpVec(p.Tangent, target, geom.Clamp01(w))
		}
	}
	p.Tangent = geom.Orthonormalize(p.Normal, p.Tangent)
}
