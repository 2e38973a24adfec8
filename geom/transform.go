package geom

import "gonum.org/v1/gonum/spatial/r3"

// Transform is a translation/rotation/scale placement. Points map as
// Loc + Rot(Scale*p).
type Transform struct {
	Loc   Vec
	Rot   Quat
	Scale Vec
}

// IdentityTransform returns the transform that leaves points unchanged.
func IdentityTransform() Transform {
	return Transform{Rot: Identity, Scale: One}
}

// IsIdentity reports whether t leaves points unchanged.
func (t Transform) IsIdentity() bool {
	return t.Loc == Zero && t.Rot == Identity && t.Scale == One
}

// Point maps a local point to world space.
func (t Transform) Point(p Vec) Vec {
	return r3.Add(t.Loc, Rotate(t.Rot, Mul(t.Scale, p)))
}

// Vector maps a local direction (no translation).
func (t Transform) Vector(v Vec) Vec {
	return Rotate(t.Rot, Mul(t.Scale, v))
}

// Normal maps a local normal, keeping it unit length.
func (t Transform) Normal(n Vec) Vec {
	inv := V(safeInv(t.Scale.X), safeInv(t.Scale.Y), safeInv(t.Scale.Z))
	return Unit(Rotate(t.Rot, Mul(inv, n)), AxisZ)
}

// InversePoint maps a world point back to local space.
func (t Transform) InversePoint(p Vec) Vec {
	conj := Quat{Real: t.Rot.Real, Imag: -t.Rot.Imag, Jmag: -t.Rot.Jmag, Kmag: -t.Rot.Kmag}
	l := Rotate(conj, r3.Sub(p, t.Loc))
	return V(l.X*safeInv(t.Scale.X), l.Y*safeInv(t.Scale.Y), l.Z*safeInv(t.Scale.Z))
}

// InverseVector maps a world direction back to local space.
func (t Transform) InverseVector(v Vec) Vec {
	conj := Quat{Real: t.Rot.Real, Imag: -t.Rot.Imag, Jmag: -t.Rot.Jmag, Kmag: -t.Rot.Kmag}
	l := Rotate(conj, v)
	return V(l.X*safeInv(t.Scale.X), l.Y*safeInv(t.Scale.Y), l.Z*safeInv(t.Scale.Z))
}

// InverseNormal maps a world normal back to local space, keeping it unit
// length.
func (t Transform) InverseNormal(n Vec) Vec {
	conj := Quat{Real: t.Rot.Real, Imag: -t.Rot.Imag, Jmag: -t.Rot.Jmag, Kmag: -t.Rot.Kmag}
	return Unit(Mul(t.Scale, Rotate(conj, n)), AxisZ)
}

// AreaFactor approximates how much t scales surface area.
func (t Transform) AreaFactor() float64 {
	s := t.Scale
	return (abs(s.X*s.Y) + abs(s.Y*s.Z) + abs(s.X*s.Z)) / 3
}

// VolumeFactor returns how much t scales volume.
func (t Transform) VolumeFactor() float64 {
	return abs(t.Scale.X * t.Scale.Y * t.Scale.Z)
}

func safeInv(v float64) float64 {
	if v == 0 {
		return 0
	}
	return 1 / v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
