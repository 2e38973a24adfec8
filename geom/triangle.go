package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleArea returns the area of triangle abc.
func TriangleArea(a, b, c Vec) float64 {
	return 0.5 * r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)))
}

// TriangleNormal returns the unit normal of triangle abc (counter-clockwise
// winding).
func TriangleNormal(a, b, c Vec) Vec {
	return Unit(r3.Cross(r3.Sub(b, a), r3.Sub(c, a)), AxisZ)
}

// Barycentric returns the point at barycentric weights (u, v, w).
func Barycentric(a, b, c Vec, u, v, w float64) Vec {
	return r3.Add(r3.Add(r3.Scale(u, a), r3.Scale(v, b)), r3.Scale(w, c))
}

// UniformBarycentric maps two uniform numbers in [0,1) to uniformly
// distributed barycentric weights.
func UniformBarycentric(r1, r2 float64) (u, v, w float64) {
	s := math.Sqrt(r1)
	u = 1 - s
	v = s * (1 - r2)
	w = s * r2
	return u, v, w
}

// RayTriangle intersects the ray o + t*d with triangle abc using
// Möller–Trumbore. It returns t and the barycentric weights of the hit.
func RayTriangle(o, d, a, b, c Vec) (t, u, v float64, ok bool) {
	const eps = 1e-12
	e1 := r3.Sub(b, a)
	e2 := r3.Sub(c, a)
	p := r3.Cross(d, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < eps {
		return 0, 0, 0, false
	}
	inv := 1 / det
	s := r3.Sub(o, a)
	u = r3.Dot(s, p) * inv
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	q := r3.Cross(s, e1)
	v = r3.Dot(d, q) * inv
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = r3.Dot(e2, q) * inv
	if t < 0 {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// ClosestOnTriangle returns the point of triangle abc closest to p and its
// barycentric weights (for a, b, c).
func ClosestOnTriangle(p, a, b, c Vec) (Vec, [3]float64) {
	ab := r3.Sub(b, a)
	ac := r3.Sub(c, a)
	ap := r3.Sub(p, a)
	d1 := r3.Dot(ab, ap)
	d2 := r3.Dot(ac, ap)
	if d1 <= 0 && d2 <= 0 {
		return a, [3]float64{1, 0, 0}
	}
	bp := r3.Sub(p, b)
	d3 := r3.Dot(ab, bp)
	d4 := r3.Dot(ac, bp)
	if d3 >= 0 && d4 <= d3 {
		return b, [3]float64{0, 1, 0}
	}
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return r3.Add(a, r3.Scale(v, ab)), [3]float64{1 - v, v, 0}
	}
	cp := r3.Sub(p, c)
	d5 := r3.Dot(ab, cp)
	d6 := r3.Dot(ac, cp)
	if d6 >= 0 && d5 <= d6 {
		return c, [3]float64{0, 0, 1}
	}
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return r3.Add(a, r3.Scale(w, ac)), [3]float64{1 - w, 0, w}
	}
	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return r3.Add(b, r3.Scale(w, r3.Sub(c, b))), [3]float64{0, 1 - w, w}
	}
	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return r3.Add(a, r3.Add(r3.Scale(v, ab), r3.Scale(w, ac))), [3]float64{1 - v - w, v, w}
}

// SegmentDistance returns the distance from p to segment ab and the
// parameter t of the closest point.
func SegmentDistance(p, a, b Vec) (float64, float64) {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return Dist(p, a), 0
	}
	t := Clamp01(r3.Dot(r3.Sub(p, a), ab) / l2)
	return Dist(p, r3.Add(a, r3.Scale(t, ab))), t
}

// PointInPolygon2D reports whether (x, y) lies inside the polygon given by
// xs, ys (even-odd rule).
func PointInPolygon2D(x, y float64, xs, ys []float64) bool {
	in := false
	n := len(xs)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if (ys[i] > y) != (ys[j] > y) &&
			x < (xs[j]-xs[i])*(y-ys[i])/(ys[j]-ys[i])+xs[i] {
			in = !in
		}
	}
	return in
}
