// Package geom provides the small amount of 3D math the pipeline needs on
// top of gonum's r3 and quat packages: hashing, boxes, transforms, triangle
// queries and spatial indexes.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec is a 3D vector.
type Vec = r3.Vec

// Common axes.
var (
	Zero  = Vec{}
	AxisX = Vec{X: 1}
	AxisY = Vec{Y: 1}
	AxisZ = Vec{Z: 1}
	One   = Vec{X: 1, Y: 1, Z: 1}
)

// V is shorthand for constructing a Vec.
func V(x, y, z float64) Vec { return Vec{X: x, Y: y, Z: z} }

// Unit returns v normalized, or fallback when v has no length.
func Unit(v, fallback Vec) Vec {
	n := r3.Norm(v)
	if n < 1e-12 {
		return fallback
	}
	return r3.Scale(1/n, v)
}

// Dist returns the euclidean distance between a and b.
func Dist(a, b Vec) float64 { return r3.Norm(r3.Sub(a, b)) }

// Dist2 returns the squared distance between a and b.
func Dist2(a, b Vec) float64 { return r3.Norm2(r3.Sub(a, b)) }

// Mul multiplies two vectors component-wise.
func Mul(a, b Vec) Vec { return Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z} }

// LerpVec interpolates between a and b.
func LerpVec(a, b Vec, t float64) Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// MaxAbs returns the largest absolute component of v.
func MaxAbs(v Vec) float64 {
	return math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
}

// Component returns the i-th component of v (0=x, 1=y, 2=z).
func Component(v Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Perpendicular returns a unit vector orthogonal to n.
func Perpendicular(n Vec) Vec {
	ref := AxisX
	if math.Abs(n.X) > 0.9 {
		ref = AxisY
	}
	return Unit(r3.Cross(n, ref), AxisY)
}

// Orthonormalize returns t projected onto the plane orthogonal to unit n and
// normalized. If t is parallel to n an arbitrary perpendicular is returned.
func Orthonormalize(n, t Vec) Vec {
	p := r3.Sub(t, r3.Scale(r3.Dot(n, t), n))
	if r3.Norm2(p) < 1e-18 {
		return Perpendicular(n)
	}
	return r3.Unit(p)
}

// Angle returns the angle in radians between two vectors.
func Angle(a, b Vec) float64 {
	na, nb := r3.Norm(a), r3.Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Acos(Clamp(r3.Dot(a, b)/(na*nb), -1, 1))
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp01 clamps v to [0, 1].
func Clamp01(v float64) float64 { return Clamp(v, 0, 1) }

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Smoothstep is the cubic Hermite step between edge0 and edge1.
func Smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := Clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// Ramp maps x to [0,1] rising linearly from lo to lo+transition. A zero
// transition is a hard step at lo.
func Ramp(x, lo, transition float64) float64 {
	if transition <= 0 {
		if x >= lo {
			return 1
		}
		return 0
	}
	return Clamp01((x - lo) / transition)
}

// Band returns 1 inside [lo, hi], fading to 0 over transition on both
// sides.
func Band(x, lo, hi, transition float64) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if transition <= 0 {
		if x >= lo && x <= hi {
			return 1
		}
		return 0
	}
	return math.Min(Ramp(x, lo-transition, transition), 1-Ramp(x, hi, transition))
}
