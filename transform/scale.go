package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

func (s *Stage) scale(p *scatter.Point) {
	sc := &s.sys.Scale
	if !sc.Master {
		s.groupBoost(p)
		return
	}
	if d := &sc.Default; d.Allow {
		v := r3.Scale(d.Multiplier, d.Value)
		if d.Space == scatter.SpaceLocal {
			v = geom.Mul(v, absVec(s.surfaceTransform(p).Scale))
		}
		p.Scale = geom.Mul(p.Scale, v)
	}
	if r := &sc.Random; r.Allow {
		s.randomScale(p, r)
	}
	if m := &sc.Shrink; m.Allow {
		s.maskedScale(p, m, "s_scale_shrink")
	}
	if m := &sc.Grow; m.Allow {
		s.maskedScale(p, m, "s_scale_grow")
	}
	s.groupBoost(p)
	if m := &sc.Min; m.Allow {
		size := geom.MaxAbs(p.Scale)
		if size < m.Value {
			if m.Method == scatter.MinRemove || size == 0 {
				p.Keep = 0
				return
			}
			p.Scale = r3.Scale(m.Value/size, p.Scale)
		}
	}
	if m := &sc.Mirror; m.Allow {
		s.mirror(p, m)
	}
	if f := &sc.Fading; f.Allow && s.sc.Camera != nil {
		d := s.sc.Camera.Distance(p.Pos)
		t := geom.Ramp(d, f.DistanceMin, f.DistanceMax-f.DistanceMin)
		if t > 0 && t < 1 {
			t = s.ev.Falloff(&f.Falloff, "s_scale_fading", t, p)
		}
		p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, f.Factor, t))
	}
	s.distributionScale(p)
}

// randomScale multiplies scale by a factor drawn between Factor and one.
// Probability is the percentage of points affected.
func (s *Stage) randomScale(p *scatter.Point, r *scatter.ScaleRandom) {
	const feature = "s_scale_random"
	if s.rand(feature, r.Seed, 0, p)*100 >= r.Probability {
		return
	}
	strength := s.strength(&r.Mask, feature, p)
	if strength == 0 {
		return
	}
	var f geom.Vec
	if r.Method == scatter.RandomVectorial {
		f = geom.V(
			geom.Lerp(r.Factor.X, 1, s.rand(feature, r.Seed, 1, p)),
			geom.Lerp(r.Factor.Y, 1, s.rand(feature, r.Seed, 2, p)),
			geom.Lerp(r.Factor.Z, 1, s.rand(feature, r.Seed, 3, p)),
		)
	} else {
		h := s.rand(feature, r.Seed, 1, p)
		f = geom.V(geom.Lerp(r.Factor.X, 1, h), geom.Lerp(r.Factor.Y, 1, h), geom.Lerp(r.Factor.Z, 1, h))
	}
	p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, f, strength))
}

// maskedScale applies Factor in proportion to the feature mask.
func (s *Stage) maskedScale(p *scatter.Point, m *scatter.ScaleMasked, feature string) {
	strength := s.strength(&m.Mask, feature, p)
	p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, m.Factor, strength))
}

func (s *Stage) groupBoost(p *scatter.Point) {
	f := s.group.ScaleFactor()
	if f == geom.One {
		return
	}
	strength := s.strength(&s.group.Scale.Boost.Mask, "s_gr_scale_boost", p)
	p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, f, strength))
}

// mirror flips the selected axes on about half of the points.
func (s *Stage) mirror(p *scatter.Point, m *scatter.ScaleMirror) {
	const feature = "s_scale_mirror"
	strength := s.strength(&m.Mask, feature, p)
	if strength == 0 {
		return
	}
	flip := func(axis uint64) bool { return s.rand(feature, m.Seed, axis, p) < 0.5*strength }
	if m.X && flip(0) {
		p.Scale.X = -p.Scale.X
	}
	if m.Y && flip(1) {
		p.Scale.Y = -p.Scale.Y
	}
	if m.Z && flip(2) {
		p.Scale.Z = -p.Scale.Z
	}
}

// distributionScale applies the scaling tied to the generator that emitted
// the point: clump falloff, face area, edge length, curve radius and empty
// scale.
func (s *Stage) distributionScale(p *scatter.Point) {
	sc := &s.sys.Scale
	switch s.sys.Distribution.Method {
	case scatter.GenClumping:
		c, ok := s.clumps[p.ClumpID]
		if !sc.Clump.Allow || !ok || c.maxDist == 0 {
			return
		}
		// Children shrink toward Value at the clump edge.
		t := geom.Clamp01(p.ClumpDist / c.maxDist)
		p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, sc.Clump.Value, t))
	case scatter.GenFaces:
		if sc.Faces.Allow {
			p.Scale = r3.Scale(geom.Lerp(1, math.Sqrt(math.Max(p.Weight, 0)), sc.Faces.Value), p.Scale)
		}
	case scatter.GenEdges:
		if sc.Edges.Allow {
			f := sc.Edges.VecFactor
			w := p.Weight
			p.Scale = geom.Mul(p.Scale, geom.V(geom.Lerp(1, w, f.X), geom.Lerp(1, w, f.Y), geom.Lerp(1, w, f.Z)))
		}
	case scatter.GenProjBezLine:
		if sc.ProjBezLine.Allow {
			p.Scale = r3.Scale(geom.Lerp(1, p.Weight, sc.ProjBezLine.Value), p.Scale)
		}
	case scatter.GenProjEmpties:
		if sc.ProjEmpties.Allow {
			p.Scale = r3.Scale(geom.Lerp(1, p.Weight, sc.ProjEmpties.Value), p.Scale)
		}
	}
}

func absVec(v geom.Vec) geom.Vec {
	return geom.V(math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z))
}
