package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/transfer"
)

func (s *Stage) prepareWind() {
	w := &s.sys.Wind
	if !w.Master || !w.Wave.Allow || w.Wave.DirMethod != scatter.WindDirVCol {
		return
	}
	cov, err := transfer.Shared(s.ev.Surfaces, transfer.AttrColor, w.Wave.FlowmapPtr, s.sys.ID, "s_wind_wave_flowmap_ptr")
	s.ev.Report.Add(err)
	s.windFlow = cov != transfer.CoverNone
}

func (s *Stage) wind(p *scatter.Point) {
	if w := &s.sys.Wind.Wave; w.Allow {
		s.wave(p, w)
	}
	if n := &s.sys.Wind.Noise; n.Allow {
		s.windNoise(p, n)
	}
}

// wave leans p away from the wind with a noise wave travelling along the
// wind direction.
func (s *Stage) wave(p *scatter.Point, w *scatter.WindWave) {
	const feature = "s_wind_wave"
	k := s.strength(&w.Mask, feature, p)
	if k == 0 {
		return
	}
	dir := s.windDirection(p, w)
	pos := s.ev.Attrs.Position(p, w.Space)
	tex := noise.Texture{
		Scale:      w.TextureScale,
		Seed:       int64(s.sys.Seed(feature, 0)),
		Octaves:    1 + int(math.Round(w.TextureTurbulence)),
		Distortion: w.TextureDistortion,
		Brightness: w.TextureBrightness,
		Contrast:   w.TextureContrast,
	}
	v := s.animate(w.Method, w.LoopAllow, w.LoopStart, w.LoopEnd, w.Speed, func(t float64) float64 {
		return tex.Sample(r3.Sub(pos, r3.Scale(t, dir)))
	})
	if w.Swinging {
		v = geom.Lerp(v, 2*v-1, w.SwingingFactor)
	}
	force := w.Force
	if w.ScaleInfluence {
		force *= geom.Lerp(1, geom.MaxAbs(p.Scale), w.ScaleInfluenceF)
	}
	s.lean(p, dir, k*force*v)
}

// windDirection is the unit horizontal direction the wave travels in.
func (s *Stage) windDirection(p *scatter.Point, w *scatter.WindWave) geom.Vec {
	if w.DirMethod == scatter.WindDirVCol && s.windFlow {
		if c, ok := s.ev.Attrs.Color(p, w.FlowmapPtr); ok {
			if d := geom.V(2*c[0]-1, 2*c[1]-1, 0); r3.Norm2(d) > 1e-12 {
				return r3.Unit(d)
			}
		}
	}
	a := w.Direction + w.DirectionRandom*s.signed("s_wind_wave_direction", 0, 0, p)
	return geom.V(math.Cos(a), math.Sin(a), 0)
}

// windNoise shakes p in a turbulent direction.
func (s *Stage) windNoise(p *scatter.Point, n *scatter.WindNoise) {
	const feature = "s_wind_noise"
	k := s.strength(&n.Mask, feature, p)
	if k == 0 {
		return
	}
	pos := s.ev.Attrs.Position(p, n.Space)
	seed := int64(s.sys.Seed(feature, 0))
	channel := func(off int64) float64 {
		return s.animate(n.Method, n.LoopAllow, n.LoopStart, n.LoopEnd, n.Speed, func(t float64) float64 {
			q := r3.Add(pos, geom.V(0, 0, t))
			return noise.Texture{Seed: seed + off, Octaves: 3}.Sample(q)
		})
	}
	dir := geom.V(2*channel(0)-1, 2*channel(1)-1, 0)
	m := r3.Norm(dir)
	if m < 1e-9 {
		return
	}
	s.lean(p, r3.Scale(1/m, dir), k*n.Force*m)
}

// animate evaluates sample at the scene time scaled by speed. Loopable
// animations crossfade sample(t) into sample(t-L) over each clip of
// length L so the first and last frames match.
func (s *Stage) animate(method scatter.WindMethod, loopAllow bool, start, end int, speed float64, sample func(t float64) float64) float64 {
	fps := s.sc.FPS
	if fps <= 0 {
		fps = 24
	}
	if method != scatter.WindLoopable {
		return sample(s.sc.Time() * speed)
	}
	if !loopAllow {
		start, end = s.sc.FrameStart, s.sc.FrameEnd
	}
	frames := float64(end - start + 1)
	if frames <= 1 {
		return sample(0)
	}
	phase := math.Mod(s.sc.Frame-float64(start), frames)
	if phase < 0 {
		phase += frames
	}
	t := phase / fps * speed
	l := frames / fps * speed
	return geom.Lerp(sample(t), sample(t-l), phase/frames)
}

// lean rotates p around the horizontal axis perpendicular to dir by
// amount quarter turns.
func (s *Stage) lean(p *scatter.Point, dir geom.Vec, amount float64) {
	if amount == 0 {
		return
	}
	axis := r3.Unit(r3.Cross(geom.AxisZ, dir))
	p.Rot = geom.Compose(geom.AxisAngle(axis, amount*math.Pi/2), p.Rot)
	syncAxes(p)
}
