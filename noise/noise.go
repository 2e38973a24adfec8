// Package noise provides the coherent noise sources used by procedural
// masks, noise push, wind and falloff overlays.
package noise

import (
	"math"
	"sync"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/scatter/geom"
)

// Source is a 3D coherent noise function returning values in [0, 1].
type Source interface {
	Eval3(x, y, z float64) float64
}

// Simplex wraps OpenSimplex noise normalized to [0, 1].
type Simplex struct {
	n opensimplex.Noise
}

// NewSimplex returns a simplex source for seed.
func NewSimplex(seed int64) *Simplex {
	return &Simplex{n: opensimplex.NewNormalized(seed)}
}

// Eval3 returns noise at (x, y, z).
func (s *Simplex) Eval3(x, y, z float64) float64 { return s.n.Eval3(x, y, z) }

var (
	simplexMu    sync.Mutex
	simplexCache = map[int64]*Simplex{}
)

// SimplexFor returns a shared simplex source for seed. Sources are
// immutable, so sharing across goroutines is safe.
func SimplexFor(seed int64) *Simplex {
	simplexMu.Lock()
	defer simplexMu.Unlock()
	s, ok := simplexCache[seed]
	if !ok {
		s = NewSimplex(seed)
		simplexCache[seed] = s
	}
	return s
}

// FBM sums octaves of src (fractal Brownian motion), normalized to [0, 1].
func FBM(src Source, p geom.Vec, octaves int, lacunarity, gain float64) float64 {
	if octaves < 1 {
		octaves = 1
	}
	sum, amp, norm, freq := 0.0, 1.0, 0.0, 1.0
	for i := 0; i < octaves; i++ {
		sum += amp * src.Eval3(p.X*freq, p.Y*freq, p.Z*freq)
		norm += amp
		amp *= gain
		freq *= lacunarity
	}
	return sum / norm
}

// Turbulence is FBM over |2n-1|, giving ridged billows in [0, 1].
func Turbulence(src Source, p geom.Vec, octaves int) float64 {
	if octaves < 1 {
		octaves = 1
	}
	sum, amp, norm, freq := 0.0, 1.0, 0.0, 1.0
	for i := 0; i < octaves; i++ {
		sum += amp * math.Abs(2*src.Eval3(p.X*freq, p.Y*freq, p.Z*freq)-1)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return sum / norm
}

// Distorted samples src after offsetting p by a second noise lookup scaled
// by amount.
func Distorted(src Source, p geom.Vec, amount float64) float64 {
	if amount == 0 {
		return src.Eval3(p.X, p.Y, p.Z)
	}
	dx := src.Eval3(p.X+5.2, p.Y+1.3, p.Z+7.1)*2 - 1
	dy := src.Eval3(p.X+1.7, p.Y+9.2, p.Z+3.4)*2 - 1
	return src.Eval3(p.X+dx*amount, p.Y+dy*amount, p.Z)
}

// BrightnessContrast remaps v by a brightness multiplier and a contrast
// slope around 0.5, clamped to [0, 1].
func BrightnessContrast(v, brightness, contrast float64) float64 {
	v = (v-0.5)*contrast + 0.5
	return geom.Clamp01(v * brightness)
}

// Basis selects the noise function behind a Texture.
type Basis int

const (
	BasisSimplex Basis = iota
	BasisGradient
)

// Source returns the seeded source for b.
func (b Basis) Source(seed int64) Source {
	if b == BasisGradient {
		return NewGradient(seed)
	}
	return SimplexFor(seed)
}

// Texture is a parametrized noise texture as used by masks and wind.
type Texture struct {
	Basis      Basis
	Scale      float64
	Seed       int64
	Octaves    int
	Distortion float64
	Brightness float64
	Contrast   float64
	Offset     geom.Vec
}

// Sample evaluates the texture at p.
func (t Texture) Sample(p geom.Vec) float64 {
	scale := t.Scale
	if scale == 0 {
		scale = 1
	}
	src := t.Basis.Source(t.Seed)
	q := geom.V((p.X+t.Offset.X)/scale, (p.Y+t.Offset.Y)/scale, (p.Z+t.Offset.Z)/scale)
	var v float64
	if t.Distortion != 0 {
		v = Distorted(src, q, t.Distortion)
	} else {
		v = FBM(src, q, t.Octaves, 2, 0.5)
	}
	b, c := t.Brightness, t.Contrast
	if b == 0 {
		b = 1
	}
	if c == 0 {
		c = 1
	}
	return BrightnessContrast(v, b, c)
}
