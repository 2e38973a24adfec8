package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

// BezierPoint is one control point of a bezier spline.
type BezierPoint struct {
	Co          geom.Vec
	HandleLeft  geom.Vec
	HandleRight geom.Vec
	Radius      float64
}

// Spline is a bezier spline. Points with equal handles and Co describe a
// polyline.
type Spline struct {
	Points []BezierPoint
	Cyclic bool
}

// Curve is a set of bezier splines in local space.
type Curve struct {
	ID        uint32
	Name      string
	Splines   []Spline
	Transform geom.Transform
	Rev       uint64
}

// CurveSample is one evaluated position along a spline.
type CurveSample struct {
	Pos     geom.Vec // world
	Tangent geom.Vec // world, unit
	Radius  float64
	Length  float64 // arc length from spline start
}

// Polyline evaluates spline s into world-space samples with res segments per
// bezier span.
func (c *Curve) Polyline(s int, res int) []CurveSample {
	if res < 1 {
		res = 1
	}
	sp := c.Splines[s]
	n := len(sp.Points)
	if n == 0 {
		return nil
	}
	spans := n - 1
	if sp.Cyclic {
		spans = n
	}
	var out []CurveSample
	for i := 0; i < spans; i++ {
		p0 := sp.Points[i]
		p1 := sp.Points[(i+1)%n]
		for k := 0; k < res; k++ {
			t := float64(k) / float64(res)
			out = append(out, c.sample(p0, p1, t))
		}
	}
	if !sp.Cyclic {
		last := sp.Points[n-1]
		if n == 1 {
			out = append(out, c.sample(last, last, 0))
		} else {
			out = append(out, c.sample(sp.Points[n-2], last, 1))
		}
	} else {
		out = append(out, c.sample(sp.Points[n-1], sp.Points[0], 1))
	}
	for i := 1; i < len(out); i++ {
		out[i].Length = out[i-1].Length + geom.Dist(out[i-1].Pos, out[i].Pos)
	}
	return out
}

func (c *Curve) sample(p0, p1 BezierPoint, t float64) CurveSample {
	a, b, cc, d := p0.Co, p0.HandleRight, p1.HandleLeft, p1.Co
	u := 1 - t
	pos := r3.Add(r3.Add(r3.Scale(u*u*u, a), r3.Scale(3*u*u*t, b)),
		r3.Add(r3.Scale(3*u*t*t, cc), r3.Scale(t*t*t, d)))
	der := r3.Add(r3.Add(r3.Scale(3*u*u, r3.Sub(b, a)), r3.Scale(6*u*t, r3.Sub(cc, b))),
		r3.Scale(3*t*t, r3.Sub(d, cc)))
	if r3.Norm2(der) < 1e-18 {
		der = r3.Sub(d, a)
	}
	radius := geom.Lerp(p0.Radius, p1.Radius, t)
	return CurveSample{
		Pos:     c.Transform.Point(pos),
		Tangent: geom.Unit(c.Transform.Vector(der), geom.AxisX),
		Radius:  radius,
	}
}

// Length returns the world-space arc length of spline s.
func (c *Curve) Length(s, res int) float64 {
	pl := c.Polyline(s, res)
	if len(pl) == 0 {
		return 0
	}
	return pl[len(pl)-1].Length
}

// At returns the sample at arc length l along a polyline from Polyline.
func At(pl []CurveSample, l float64) CurveSample {
	if len(pl) == 0 {
		return CurveSample{}
	}
	if l <= 0 {
		return pl[0]
	}
	for i := 1; i < len(pl); i++ {
		if pl[i].Length >= l {
			seg := pl[i].Length - pl[i-1].Length
			t := 0.0
			if seg > 0 {
				t = (l - pl[i-1].Length) / seg
			}
			return CurveSample{
				Pos:     geom.LerpVec(pl[i-1].Pos, pl[i].Pos, t),
				Tangent: geom.Unit(geom.LerpVec(pl[i-1].Tangent, pl[i].Tangent, t), pl[i].Tangent),
				Radius:  geom.Lerp(pl[i-1].Radius, pl[i].Radius, t),
				Length:  l,
			}
		}
	}
	return pl[len(pl)-1]
}

// Area is a closed planar region built from the cyclic splines of a curve,
// projected on a plane. Holes follow the even-odd rule.
type Area struct {
	loops  [][2][]float64 // xs, ys per loop in plane coordinates
	plane  geom.Transform
	bounds [4]float64 // minX, minY, maxX, maxY
	area   float64
}

// ClosedArea builds the planar region of c's cyclic splines in the curve's
// local XY plane. world positions are recovered with the curve transform.
func (c *Curve) ClosedArea(res int) *Area {
	a := &Area{plane: c.Transform, bounds: [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}}
	for s, sp := range c.Splines {
		if !sp.Cyclic || len(sp.Points) < 2 {
			continue
		}
		pl := c.Polyline(s, res)
		xs := make([]float64, 0, len(pl))
		ys := make([]float64, 0, len(pl))
		for _, smp := range pl {
			l := c.Transform.InversePoint(smp.Pos)
			xs = append(xs, l.X)
			ys = append(ys, l.Y)
			a.bounds[0] = math.Min(a.bounds[0], l.X)
			a.bounds[1] = math.Min(a.bounds[1], l.Y)
			a.bounds[2] = math.Max(a.bounds[2], l.X)
			a.bounds[3] = math.Max(a.bounds[3], l.Y)
		}
		a.loops = append(a.loops, [2][]float64{xs, ys})
	}
	a.area = a.estimateArea()
	return a
}

// Empty reports whether the region has no loops.
func (a *Area) Empty() bool { return len(a.loops) == 0 }

// Bounds returns the local-plane bounding rectangle.
func (a *Area) Bounds() (minX, minY, maxX, maxY float64) {
	return a.bounds[0], a.bounds[1], a.bounds[2], a.bounds[3]
}

// Contains reports whether local-plane point (x, y) is inside the region.
func (a *Area) Contains(x, y float64) bool {
	in := false
	for _, l := range a.loops {
		if geom.PointInPolygon2D(x, y, l[0], l[1]) {
			in = !in
		}
	}
	return in
}

// ContainsWorld projects p on the region plane and tests containment.
func (a *Area) ContainsWorld(p geom.Vec) bool {
	l := a.plane.InversePoint(p)
	return a.Contains(l.X, l.Y)
}

// ToWorld maps a local-plane point to world space.
func (a *Area) ToWorld(x, y float64) geom.Vec { return a.plane.Point(geom.V(x, y, 0)) }

// Normal returns the region plane normal in world space.
func (a *Area) Normal() geom.Vec { return a.plane.Normal(geom.AxisZ) }

// LocalArea returns the region area in the curve's local units.
func (a *Area) LocalArea() float64 { return a.area }

// WorldArea returns the region area after the curve transform.
func (a *Area) WorldArea() float64 {
	return a.area * math.Abs(a.plane.Scale.X*a.plane.Scale.Y)
}

func (a *Area) estimateArea() float64 {
	// Shoelace per loop, signed by nesting depth so holes subtract.
	total := 0.0
	for i, l := range a.loops {
		xs, ys := l[0], l[1]
		s := 0.0
		for j := range xs {
			k := (j + 1) % len(xs)
			s += xs[j]*ys[k] - xs[k]*ys[j]
		}
		s = math.Abs(s) / 2
		depth := 0
		for j, o := range a.loops {
			if j != i && geom.PointInPolygon2D(xs[0], ys[0], o[0], o[1]) {
				depth++
			}
		}
		if depth%2 == 1 {
			total -= s
		} else {
			total += s
		}
	}
	return math.Abs(total)
}
