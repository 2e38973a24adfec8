package geom

import "math"

// Hash64 mixes a seed and an id into a well-distributed 64-bit value
// (splitmix64 finalizer).
func Hash64(seed, id uint64) uint64 {
	z := seed*0x9E3779B97F4A7C15 ^ id
	z += 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Hash01 returns a deterministic value in [0, 1) for (seed, id).
func Hash01(seed, id uint64) float64 {
	return float64(Hash64(seed, id)>>11) / (1 << 53)
}

// HashRange returns a deterministic value in [lo, hi).
func HashRange(seed, id uint64, lo, hi float64) float64 {
	return lo + (hi-lo)*Hash01(seed, id)
}

// HashVec returns three independent values in [lo, hi).
func HashVec(seed, id uint64, lo, hi float64) Vec {
	return Vec{
		X: HashRange(seed, id*3, lo, hi),
		Y: HashRange(seed, id*3+1, lo, hi),
		Z: HashRange(seed, id*3+2, lo, hi),
	}
}

// MixSeed combines seeds so that features with the same user seed still
// produce independent sequences.
func MixSeed(seeds ...uint64) uint64 {
	h := uint64(0xCBF29CE484222325)
	for _, s := range seeds {
		h = Hash64(h, s)
	}
	return h
}

// StringSeed hashes a string (FNV-1a) for use as a seed salt.
func StringSeed(s string) uint64 {
	h := uint64(0xCBF29CE484222325)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 0x100000001B3
	}
	return h
}

// Rand is a small deterministic generator for sequential sampling. It is not
// safe for concurrent use.
type Rand struct {
	state uint64
}

// NewRand returns a generator seeded with seed.
func NewRand(seed uint64) *Rand {
	return &Rand{state: Hash64(seed, 0x5CA77E4)}
}

// Uint64 returns the next raw value.
func (r *Rand) Uint64() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a value in [0, 1).
func (r *Rand) Float64() float64 {
	return float64(r.Uint64()>>11) / (1 << 53)
}

// Range returns a value in [lo, hi).
func (r *Rand) Range(lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.Uint64() % uint64(n))
}

// Disk returns a uniformly distributed point in the unit disk.
func (r *Rand) Disk() (x, y float64) {
	rad := math.Sqrt(r.Float64())
	s, c := math.Sincos(2 * math.Pi * r.Float64())
	return rad * c, rad * s
}
