package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quat is a rotation quaternion (Real = w).
type Quat = quat.Number

// Identity is the identity rotation.
var Identity = Quat{Real: 1}

// AxisAngle returns the rotation of angle radians around axis.
func AxisAngle(axis Vec, angle float64) Quat {
	a := Unit(axis, AxisZ)
	s, c := math.Sincos(angle / 2)
	return Quat{Real: c, Imag: a.X * s, Jmag: a.Y * s, Kmag: a.Z * s}
}

// Euler returns the rotation for XYZ euler angles (X applied first).
func Euler(e Vec) Quat {
	qx := AxisAngle(AxisX, e.X)
	qy := AxisAngle(AxisY, e.Y)
	qz := AxisAngle(AxisZ, e.Z)
	return quat.Mul(qz, quat.Mul(qy, qx))
}

// Compose returns the rotation that applies b then a.
func Compose(a, b Quat) Quat { return Normalize(quat.Mul(a, b)) }

// Normalize returns q scaled to unit length. A zero quaternion becomes the
// identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n < 1e-12 {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Rotate applies q to v.
func Rotate(q Quat, v Vec) Vec {
	p := Quat{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Between returns the shortest rotation taking unit vector a onto unit
// vector b.
func Between(a, b Vec) Quat {
	d := r3.Dot(a, b)
	if d > 1-1e-12 {
		return Identity
	}
	if d < -1+1e-12 {
		return AxisAngle(Perpendicular(a), math.Pi)
	}
	c := r3.Cross(a, b)
	return Normalize(Quat{Real: 1 + d, Imag: c.X, Jmag: c.Y, Kmag: c.Z})
}

// FromBasis returns the rotation mapping the local X, Y and Z axes onto the
// given orthonormal basis.
func FromBasis(x, y, z Vec) Quat {
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z
	tr := m00 + m11 + m22
	var q Quat
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q = Quat{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = Quat{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = Quat{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = Quat{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
	return Normalize(q)
}

// LookAlong returns the rotation whose local Z axis is normal and whose local
// Y axis is tangent (orthogonalized against normal).
func LookAlong(normal, tangent Vec) Quat {
	z := Unit(normal, AxisZ)
	y := Orthonormalize(z, tangent)
	x := r3.Cross(y, z)
	return FromBasis(x, y, z)
}

// Snap rounds each euler angle to the nearest multiple of step.
func Snap(e Vec, step float64) Vec {
	if step <= 0 {
		return e
	}
	return Vec{
		X: math.Round(e.X/step) * step,
		Y: math.Round(e.Y/step) * step,
		Z: math.Round(e.Z/step) * step,
	}
}
