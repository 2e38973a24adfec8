package noise

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

// Gradient is lattice gradient noise. Corner gradients are hashed from the
// lattice coordinates and the seed, so there is no permutation table and
// the field does not repeat every 256 cells.
type Gradient struct {
	seed uint64
}

const gradientSalt = 0x6A7D1E

// cubeEdges are the twelve cube edge directions, normalized.
var cubeEdges = func() [12]geom.Vec {
	var out [12]geom.Vec
	i := 0
	for axis := 0; axis < 3; axis++ {
		for _, a := range []float64{-1, 1} {
			for _, b := range []float64{-1, 1} {
				v := [3]float64{}
				v[(axis+1)%3], v[(axis+2)%3] = a, b
				out[i] = r3.Scale(1/math.Sqrt2, geom.V(v[0], v[1], v[2]))
				i++
			}
		}
	}
	return out
}()

// NewGradient returns a gradient source for seed.
func NewGradient(seed int64) *Gradient {
	return &Gradient{seed: geom.MixSeed(uint64(seed), gradientSalt)}
}

// Eval3 returns noise at (x, y, z).
func (g *Gradient) Eval3(x, y, z float64) float64 { return g.At(geom.V(x, y, z)) }

// At returns noise at p in [0, 1]. Lattice points sit at exactly 0.5.
func (g *Gradient) At(p geom.Vec) float64 {
	cell := geom.V(math.Floor(p.X), math.Floor(p.Y), math.Floor(p.Z))
	f := r3.Sub(p, cell)

	var c [8]float64
	for i := range c {
		o := geom.V(float64(i&1), float64(i>>1&1), float64(i>>2&1))
		c[i] = r3.Dot(g.corner(r3.Add(cell, o)), r3.Sub(f, o))
	}
	// Collapse the cube one axis at a time: x pairs, then y, then z.
	for axis, t := range [3]float64{quintic(f.X), quintic(f.Y), quintic(f.Z)} {
		for i := 0; i < 8>>(axis+1); i++ {
			c[i] = c[2*i] + t*(c[2*i+1]-c[2*i])
		}
	}
	// Unit gradients bound the raw value by sqrt(3)/2.
	return geom.Clamp01(0.5 + c[0]/math.Sqrt(3))
}

func (g *Gradient) corner(c geom.Vec) geom.Vec {
	h := geom.MixSeed(g.seed, uint64(int64(c.X)), uint64(int64(c.Y)), uint64(int64(c.Z)))
	return cubeEdges[h%12]
}

func quintic(t float64) float64 { return t * t * t * (t*(t*6-15) + 10) }
