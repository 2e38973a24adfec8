// Package sampler produces the initial point stream of a system: positions,
// normals, tangents, surface ids and barycentric locations, drawn by one of
// the generator families.
package sampler

import (
	"context"
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// Budget caps what one compute may allocate.
type Budget struct {
	MaxVoxels int
	MaxPoints int
}

// Input is everything a generator reads.
type Input struct {
	System *scatter.System
	Group  *scatter.Group
	Scene  *surface.Scene
	Attrs  *transfer.Transfer
	Report *scatter.Report
	Budget Budget

	// CurveResolution is the number of segments per bezier span.
	CurveResolution int
	// GridCellFactor scales the limit-distance grid cell (cell = d * factor).
	GridCellFactor float64
	// Prefilter, when set, drops points before they enter the stream. It is
	// applied after limit-distance rejection so survivors do not change.
	Prefilter func(geom.Vec) bool
}

// Sample runs the system's generator. Sampler-level failures are added to
// the report and produce an empty stream; the returned error is only set
// when ctx is cancelled.
func Sample(ctx context.Context, in Input) (*scatter.PointStream, error) {
	r := newRun(ctx, in)
	stream := &scatter.PointStream{
		System:  in.System.ID,
		Display: in.System.Display,
		Color:   in.System.Color,
	}
	pts, err := r.generate()
	if err != nil {
		var se *scatter.Error
		if errors.As(err, &se) {
			in.Report.Add(se)
			return stream, nil
		}
		return nil, err
	}
	if in.Prefilter != nil {
		pts = slices.DeleteFunc(pts, func(p scatter.Point) bool { return !in.Prefilter(p.Pos) })
	}
	stream.Points = pts
	return stream, nil
}

type run struct {
	ctx   context.Context
	in    Input
	sys   *scatter.System
	objs  []*surface.Object
	mesh  []*surface.Mesh
	bvh   *surface.BVH
	ticks int
	total int
}

func newRun(ctx context.Context, in Input) *run {
	if in.Attrs == nil {
		in.Attrs = transfer.New(in.Scene, nil)
	}
	if in.CurveResolution <= 0 {
		in.CurveResolution = 12
	}
	if in.GridCellFactor <= 0 {
		in.GridCellFactor = 1
	}
	r := &run{ctx: ctx, in: in, sys: in.System}
	for _, name := range in.System.Surfaces {
		o, ok := in.Scene.Object(name)
		if !ok {
			r.fail(scatter.KindInvalidReference, "surfaces", "surface %q not found", name)
			continue
		}
		r.objs = append(r.objs, o)
		if o.Kind == surface.KindMesh {
			r.mesh = append(r.mesh, o.Mesh)
		}
	}
	return r
}

func (r *run) generate() ([]scatter.Point, error) {
	d := &r.sys.Distribution
	switch d.Method {
	case scatter.GenRandom:
		return r.random()
	case scatter.GenStable:
		return r.stable()
	case scatter.GenClumping:
		return r.clumping()
	case scatter.GenVerts:
		return r.verts()
	case scatter.GenFaces:
		return r.faces()
	case scatter.GenEdges:
		return r.edges()
	case scatter.GenVolume:
		return r.volume()
	case scatter.GenProjBezArea:
		return r.projBezArea()
	case scatter.GenProjBezLine:
		return r.projBezLine()
	case scatter.GenProjEmpties:
		return r.projEmpties()
	case scatter.GenManual:
		return r.manual()
	}
	return nil, r.errorf(scatter.KindInvalidConfig, "s_distribution_method", "unknown generator %q", d.Method)
}

func (r *run) errorf(kind scatter.Kind, feature, format string, args ...any) *scatter.Error {
	return scatter.Errorf(kind, r.sys.ID, feature, format, args...)
}

// fail reports a problem that does not stop sampling.
func (r *run) fail(kind scatter.Kind, feature, format string, args ...any) {
	r.in.Report.Add(r.errorf(kind, feature, format, args...))
}

// tick checks for cancellation every few thousand iterations.
func (r *run) tick() error {
	r.ticks++
	if r.ticks&4095 == 0 {
		return r.ctx.Err()
	}
	return nil
}

// reserve accounts for n more points against the point budget.
func (r *run) reserve(n int) error {
	r.total += n
	if max := r.in.Budget.MaxPoints; max > 0 && r.total > max {
		return r.errorf(scatter.KindResourceBudget, "s_distribution", "%d points exceed the budget of %d", r.total, max)
	}
	return nil
}

// needMeshes fails when the system has no mesh surface to sample.
func (r *run) needMeshes() error {
	if len(r.mesh) == 0 {
		return r.errorf(scatter.KindInvalidReference, "surfaces", "no mesh surface to sample")
	}
	return nil
}

func (r *run) surfaceBVH() *surface.BVH {
	if r.bvh == nil {
		r.bvh = surface.NewBVH(r.mesh...)
	}
	return r.bvh
}

// seed derives a generator seed from a feature name, its user seed and a
// per-surface salt.
func (r *run) seed(feature string, seed int, salt string) uint64 {
	return geom.MixSeed(r.sys.Seed(feature, seed), geom.StringSeed(salt))
}

// pointID packs the emitting surface and a per-surface counter.
func pointID(surface uint32, n int) uint64 {
	return uint64(surface)<<40 | uint64(n)
}

func densityCount(density, area float64) int {
	if density <= 0 || area <= 0 {
		return 0
	}
	return int(math.Round(density * area))
}

// apportion splits total across weights by the largest remainder so the
// parts add up exactly.
func apportion(total int, weights []float64) []int {
	out := make([]int, len(weights))
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if total <= 0 || sum <= 0 {
		return out
	}
	type rem struct {
		i int
		f float64
	}
	rems := make([]rem, len(weights))
	given := 0
	for i, w := range weights {
		exact := float64(total) * w / sum
		out[i] = int(math.Floor(exact))
		given += out[i]
		rems[i] = rem{i, exact - float64(out[i])}
	}
	slices.SortStableFunc(rems, func(a, b rem) int {
		switch {
		case a.f > b.f:
			return -1
		case a.f < b.f:
			return 1
		}
		return 0
	})
	for k := 0; given < total; k++ {
		out[rems[k%len(rems)].i]++
		given++
	}
	return out
}

// limit rejects points closer than d to an already accepted point. The
// stable mode visits points by stable id, the fast mode in emission order.
// Survivors keep their emission order.
func limit(pts []scatter.Point, d float64, mode scatter.LimitMode, cellFactor float64) []scatter.Point {
	if d <= 0 || len(pts) < 2 {
		return pts
	}
	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	if mode != scatter.LimitFast {
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case pts[a].ID < pts[b].ID:
				return -1
			case pts[a].ID > pts[b].ID:
				return 1
			}
			return 0
		})
	}
	grid := geom.NewSpatialGrid(d * cellFactor)
	keep := make([]bool, len(pts))
	for _, i := range order {
		if grid.AnyWithin(pts[i].Pos, d) {
			continue
		}
		grid.Insert(pts[i].Pos)
		keep[i] = true
	}
	out := pts[:0]
	for i, p := range pts {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

func (r *run) limit(pts []scatter.Point, allow bool, d float64) []scatter.Point {
	if !allow {
		return pts
	}
	return limit(pts, d, r.sys.Distribution.LimitMode, r.in.GridCellFactor)
}

// withFrame sets the normal and a tangent following ref projected on the
// normal plane.
func withFrame(p *scatter.Point, normal, ref geom.Vec) {
	p.Normal = geom.Unit(normal, geom.AxisZ)
	p.Tangent = geom.Orthonormalize(p.Normal, ref)
}

// onHit moves p onto a surface hit.
func onHit(p *scatter.Point, h surface.Hit) {
	p.Pos = h.Pos
	withFrame(p, h.Normal, p.Tangent)
	p.Surface = h.Mesh.ID
	p.Tri = h.Tri
	p.Face = h.Mesh.Topo().Tris[h.Tri].Face
	p.Bary = h.Bary
}

// project drops points along -axis onto the system surfaces. Points that
// miss within the reach are removed.
func (r *run) project(pts []scatter.Point, pr scatter.Projection, axis func(*scatter.Point) geom.Vec) ([]scatter.Point, error) {
	if !pr.Enabled {
		return pts, nil
	}
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	bvh := r.surfaceBVH()
	out := pts[:0]
	for i := range pts {
		if err := r.tick(); err != nil {
			return nil, err
		}
		p := pts[i]
		ax := geom.AxisZ
		if pr.Axis == scatter.ProjLocalZ {
			ax = geom.Unit(axis(&p), geom.AxisZ)
		}
		o := r3.Add(p.Pos, r3.Scale(pr.Length, ax))
		h, ok := bvh.Raycast(o, r3.Scale(-1, ax), 2*pr.Length)
		if !ok {
			continue
		}
		onHit(&p, h)
		out = append(out, p)
	}
	return out, nil
}
