package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
)

func (s *Stage) push(p *scatter.Point) {
	pu := &s.sys.Push
	if o := &pu.Offset; o.Allow {
		s.offset(p, o)
	}
	if d := &pu.Dir; d.Allow {
		s.pushDir(p, d)
	}
	if n := &pu.Noise; n.Allow {
		s.pushNoise(p, n)
	}
	if f := &pu.Fall; f.Allow {
		s.fall(p, f)
	}
}

// offset adds a fixed and random translation, rotation and scale.
func (s *Stage) offset(p *scatter.Point, o *scatter.PushOffset) {
	const feature = "s_push_offset"
	k := s.strength(&o.Mask, feature, p)
	if k == 0 {
		return
	}
	jitter := func(base, rnd geom.Vec, k0 uint64) geom.Vec {
		return r3.Add(base, geom.Mul(rnd, geom.V(
			s.signed(feature, o.Seed, k0, p), s.signed(feature, o.Seed, k0+1, p), s.signed(feature, o.Seed, k0+2, p))))
	}
	move := s.toWorld(p, jitter(o.AddValue, o.AddRandom, 0), o.Space)
	p.Pos = r3.Add(p.Pos, r3.Scale(k, move))
	if e := jitter(o.RotateValue, o.RotateRandom, 3); e != geom.Zero {
		p.Rot = geom.Compose(p.Rot, geom.Euler(r3.Scale(k, e)))
		syncAxes(p)
	}
	p.Scale = geom.Mul(p.Scale, geom.LerpVec(geom.One, jitter(o.ScaleValue, o.ScaleRandom, 6), k))
}

// pushDir moves p along an axis.
func (s *Stage) pushDir(p *scatter.Point, d *scatter.PushDir) {
	const feature = "s_push_dir"
	k := s.strength(&d.Mask, feature, p)
	if k == 0 {
		return
	}
	var axis geom.Vec
	switch d.Method {
	case scatter.PushPoint:
		axis = geom.Rotate(p.Rot, geom.AxisZ)
	case scatter.PushLocalZ:
		axis = s.surfaceTransform(p).Normal(geom.AxisZ)
	case scatter.PushGlobalZ:
		axis = geom.AxisZ
	default:
		axis = p.Normal
	}
	dist := d.AddValue + d.AddRandom*s.signed(feature, d.Seed, 0, p)
	if d.Space == scatter.SpaceLocal {
		dist *= meanAbs(s.surfaceTransform(p).Scale)
	}
	p.Pos = r3.Add(p.Pos, r3.Scale(k*dist, axis))
}

// pushNoise displaces p by a noise vector in [-Vector, Vector]. Animated
// noise scrolls through the field at Speed per second.
func (s *Stage) pushNoise(p *scatter.Point, n *scatter.PushNoise) {
	const feature = "s_push_noise"
	k := s.strength(&n.Mask, feature, p)
	if k == 0 {
		return
	}
	pos := s.ev.Attrs.Position(p, n.Space)
	if n.IsAnimated {
		t := s.sc.Time() * n.Speed
		pos = r3.Add(pos, geom.V(t, t, t))
	}
	seed := int64(s.sys.Seed(feature, n.Seed))
	v := geom.V(
		2*noise.Texture{Seed: seed, Octaves: 2}.Sample(pos)-1,
		2*noise.Texture{Seed: seed + 1, Octaves: 2}.Sample(pos)-1,
		2*noise.Texture{Seed: seed + 2, Octaves: 2}.Sample(pos)-1,
	)
	move := s.toWorld(p, geom.Mul(v, n.Vector), n.Space)
	p.Pos = r3.Add(p.Pos, r3.Scale(k, move))
}

// fall animates p dropping from Key1Height to Key2Height between the two
// key frames. Height staggers the start height per point.
func (s *Stage) fall(p *scatter.Point, f *scatter.PushFall) {
	const feature = "s_push_fall"
	k := s.strength(&f.Mask, feature, p)
	if k == 0 {
		return
	}
	t := 1.0
	if span := float64(f.Key2Pos - f.Key1Pos); span > 0 {
		t = geom.Clamp01((s.sc.Frame - float64(f.Key1Pos)) / span)
	}
	stagger := f.Height * s.rand(feature, f.Seed, 0, p) * (1 - t)
	dz := geom.Lerp(f.Key1Height, f.Key2Height, t) + stagger
	if f.StopAtInitialZ {
		dz = math.Max(dz, 0)
	}
	up := s.toWorld(p, geom.AxisZ, f.Space)
	p.Pos = r3.Add(p.Pos, r3.Scale(k*dz, up))

	if f.TurbulenceAllow && t < 1 && dz > 0 {
		// Turbulence dies out as the point lands.
		seed := int64(s.sys.Seed(feature+"_turbulence", f.Seed))
		q := r3.Add(p.Pos, geom.V(0, 0, s.sc.Time()*f.TurbulenceSpeed))
		n := geom.V(
			2*noise.Texture{Seed: seed, Octaves: 2}.Sample(q)-1,
			2*noise.Texture{Seed: seed + 1, Octaves: 2}.Sample(q)-1,
			2*noise.Texture{Seed: seed + 2, Octaves: 2}.Sample(q)-1,
		)
		fade := k * (1 - t)
		p.Pos = r3.Add(p.Pos, r3.Scale(fade, geom.Mul(n, f.TurbulenceSpread)))
		e := r3.Scale(fade*f.TurbulenceRotFactor, geom.Mul(n, f.TurbulenceRotVector))
		p.Rot = geom.Compose(p.Rot, geom.Euler(e))
		syncAxes(p)
	}
}

func meanAbs(v geom.Vec) float64 {
	return (math.Abs(v.X) + math.Abs(v.Y) + math.Abs(v.Z)) / 3
}
