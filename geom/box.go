package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis-aligned bounding box. The zero Box is not empty; use
// EmptyBox to start accumulating.
type Box struct {
	Min, Max Vec
}

// EmptyBox returns a box that contains nothing and grows with Extend.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{Min: V(inf, inf, inf), Max: V(-inf, -inf, -inf)}
}

// IsEmpty reports whether b contains no points.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns b grown to include p.
func (b Box) Extend(p Vec) Box {
	return Box{
		Min: V(math.Min(b.Min.X, p.X), math.Min(b.Min.Y, p.Y), math.Min(b.Min.Z, p.Z)),
		Max: V(math.Max(b.Max.X, p.X), math.Max(b.Max.Y, p.Y), math.Max(b.Max.Z, p.Z)),
	}
}

// Union returns the smallest box containing both.
func (b Box) Union(o Box) Box {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Size returns the box extent.
func (b Box) Size() Vec {
	if b.IsEmpty() {
		return Zero
	}
	return r3.Sub(b.Max, b.Min)
}

// Center returns the box midpoint.
func (b Box) Center() Vec { return r3.Scale(0.5, r3.Add(b.Min, b.Max)) }

// Contains reports whether p lies inside or on b.
func (b Box) Contains(p Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Expand returns b grown by d on every side.
func (b Box) Expand(d float64) Box {
	o := V(d, d, d)
	return Box{Min: r3.Sub(b.Min, o), Max: r3.Add(b.Max, o)}
}

// Distance returns the distance from p to the box surface. Points inside
// return a negative distance to the nearest face.
func (b Box) Distance(p Vec) float64 {
	if b.Contains(p) {
		d := math.Min(p.X-b.Min.X, b.Max.X-p.X)
		d = math.Min(d, math.Min(p.Y-b.Min.Y, b.Max.Y-p.Y))
		d = math.Min(d, math.Min(p.Z-b.Min.Z, b.Max.Z-p.Z))
		return -d
	}
	dx := math.Max(math.Max(b.Min.X-p.X, 0), p.X-b.Max.X)
	dy := math.Max(math.Max(b.Min.Y-p.Y, 0), p.Y-b.Max.Y)
	dz := math.Max(math.Max(b.Min.Z-p.Z, 0), p.Z-b.Max.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// RayHit reports whether the ray o + t*d hits b for t in [0, maxT].
func (b Box) RayHit(o, invD Vec, maxT float64) bool {
	tmin, tmax := 0.0, maxT
	for i := 0; i < 3; i++ {
		lo := (Component(b.Min, i) - Component(o, i)) * Component(invD, i)
		hi := (Component(b.Max, i) - Component(o, i)) * Component(invD, i)
		if lo > hi {
			lo, hi = hi, lo
		}
		tmin = math.Max(tmin, lo)
		tmax = math.Min(tmax, hi)
		if tmax < tmin {
			return false
		}
	}
	return true
}

// Corners returns the eight corners of b.
func (b Box) Corners() [8]Vec {
	var c [8]Vec
	for i := range c {
		c[i] = V(pick(i&1 != 0, b.Max.X, b.Min.X), pick(i&2 != 0, b.Max.Y, b.Min.Y), pick(i&4 != 0, b.Max.Z, b.Min.Z))
	}
	return c
}

func pick(cond bool, a, b float64) float64 {
	if cond {
		return a
	}
	return b
}
