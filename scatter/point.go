package scatter

import (
	"math"
	"slices"

	"github.com/pthm-cable/scatter/geom"
)

// NoClump marks a point that does not belong to a clump.
const NoClump = -1

// Point is one placement flowing through the pipeline.
type Point struct {
	// ID is the stable id; seeds combined with it drive every random choice.
	ID uint64

	Pos      geom.Vec
	Normal   geom.Vec
	Tangent  geom.Vec
	Scale    geom.Vec
	Rot      geom.Quat
	Instance int

	// Surface is the emitting object id. Tri < 0 when the point does not
	// lie on a mesh triangle.
	Surface uint32
	Face    int
	Tri     int
	Bary    [3]float64

	ClumpID   int64
	ClumpDist float64

	// Weight is a generator magnitude: face area, edge length, curve radius
	// or empty scale.
	Weight float64

	// Keep is the accumulated density keep probability.
	Keep float64

	// Attrs holds the per-point attribute columns of the stream schema.
	Attrs []float64
}

// NewPoint returns a point with identity attributes at pos.
func NewPoint(id uint64, pos, normal geom.Vec) Point {
	n := geom.Unit(normal, geom.AxisZ)
	return Point{
		ID:      id,
		Pos:     pos,
		Normal:  n,
		Tangent: geom.Perpendicular(n),
		Scale:   geom.One,
		Rot:     geom.Identity,
		Face:    -1,
		Tri:     -1,
		ClumpID: NoClump,
		Weight:  1,
		Keep:    1,
	}
}

// Clone returns a copy with its own attribute storage.
func (p Point) Clone() Point {
	p.Attrs = slices.Clone(p.Attrs)
	return p
}

// Record is the output form of a point.
type Record struct {
	PX       float32 `csv:"px"`
	PY       float32 `csv:"py"`
	PZ       float32 `csv:"pz"`
	NX       float32 `csv:"nx"`
	NY       float32 `csv:"ny"`
	NZ       float32 `csv:"nz"`
	TX       float32 `csv:"tx"`
	TY       float32 `csv:"ty"`
	TZ       float32 `csv:"tz"`
	SX       float32 `csv:"sx"`
	SY       float32 `csv:"sy"`
	SZ       float32 `csv:"sz"`
	QW       float32 `csv:"qw"`
	QX       float32 `csv:"qx"`
	QY       float32 `csv:"qy"`
	QZ       float32 `csv:"qz"`
	Instance uint32  `csv:"instance_index"`
	Surface  uint32  `csv:"surface_id"`
}

// Record converts p to its output form.
func (p Point) Record() Record {
	inst := p.Instance
	if inst < 0 {
		inst = 0
	}
	return Record{
		PX: float32(p.Pos.X), PY: float32(p.Pos.Y), PZ: float32(p.Pos.Z),
		NX: float32(p.Normal.X), NY: float32(p.Normal.Y), NZ: float32(p.Normal.Z),
		TX: float32(p.Tangent.X), TY: float32(p.Tangent.Y), TZ: float32(p.Tangent.Z),
		SX: float32(p.Scale.X), SY: float32(p.Scale.Y), SZ: float32(p.Scale.Z),
		QW: float32(p.Rot.Real), QX: float32(p.Rot.Imag), QY: float32(p.Rot.Jmag), QZ: float32(p.Rot.Kmag),
		Instance: uint32(inst),
		Surface:  p.Surface,
	}
}

// Equal reports whether two points are bit-identical.
func (p Point) Equal(o Point) bool {
	if p.ID != o.ID || p.Instance != o.Instance || p.Surface != o.Surface ||
		p.Face != o.Face || p.Tri != o.Tri || p.ClumpID != o.ClumpID {
		return false
	}
	f := []float64{
		p.Pos.X, p.Pos.Y, p.Pos.Z, p.Normal.X, p.Normal.Y, p.Normal.Z,
		p.Tangent.X, p.Tangent.Y, p.Tangent.Z, p.Scale.X, p.Scale.Y, p.Scale.Z,
		p.Rot.Real, p.Rot.Imag, p.Rot.Jmag, p.Rot.Kmag, p.ClumpDist, p.Weight, p.Keep,
	}
	g := []float64{
		o.Pos.X, o.Pos.Y, o.Pos.Z, o.Normal.X, o.Normal.Y, o.Normal.Z,
		o.Tangent.X, o.Tangent.Y, o.Tangent.Z, o.Scale.X, o.Scale.Y, o.Scale.Z,
		o.Rot.Real, o.Rot.Imag, o.Rot.Jmag, o.Rot.Kmag, o.ClumpDist, o.Weight, o.Keep,
	}
	for i := range f {
		if math.Float64bits(f[i]) != math.Float64bits(g[i]) {
			return false
		}
	}
	if len(p.Attrs) != len(o.Attrs) {
		return false
	}
	for i := range p.Attrs {
		if math.Float64bits(p.Attrs[i]) != math.Float64bits(o.Attrs[i]) {
			return false
		}
	}
	return true
}
