package sampler

import (
	"math"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// projEmpties emits one point per object of a collection, oriented by the
// object's placement.
func (r *run) projEmpties() ([]scatter.Point, error) {
	pe := &r.sys.Distribution.ProjEmpties
	objs, missing, ok := r.in.Scene.Collection(pe.CollPtr)
	if !ok {
		return nil, r.errorf(scatter.KindInvalidReference, "s_distribution_projempties_coll_ptr",
			"collection %q not found", pe.CollPtr)
	}
	if len(missing) > 0 {
		r.fail(scatter.KindInvalidReference, "s_distribution_projempties_coll_ptr",
			"collection %q references missing objects %v", pe.CollPtr, missing)
	}
	if err := r.reserve(len(objs)); err != nil {
		return nil, err
	}
	var pts []scatter.Point
	for i, o := range objs {
		if pe.EmptyOnly && o.Kind != surface.KindEmpty {
			continue
		}
		w := o.World()
		p := scatter.NewPoint(pointID(o.ID, i), w.Loc, w.Normal(geom.AxisZ))
		p.Tangent = geom.Orthonormalize(p.Normal, w.Vector(geom.AxisY))
		p.Rot = w.Rot
		p.Surface = o.ID
		p.Weight = (math.Abs(w.Scale.X) + math.Abs(w.Scale.Y) + math.Abs(w.Scale.Z)) / 3
		pts = append(pts, p)
	}
	// Each point projects along its own empty's Z axis.
	return r.project(pts, pe.Projection, func(p *scatter.Point) geom.Vec { return p.Normal })
}

// manual reads points painted by the host. Points near a surface are bound
// to it so attribute lookups work.
func (r *run) manual() ([]scatter.Point, error) {
	src := r.in.Scene.ManualPoints[r.sys.ID]
	if err := r.reserve(len(src)); err != nil {
		return nil, err
	}
	var bvh *surface.BVH
	if len(r.mesh) > 0 {
		bvh = r.surfaceBVH()
	}
	pts := make([]scatter.Point, 0, len(src))
	for i, mp := range src {
		p := scatter.NewPoint(pointID(0, i), mp.Pos, mp.Normal)
		if mp.Scale != geom.Zero {
			p.Scale = mp.Scale
		}
		p.Rot = geom.Euler(mp.Rot)
		p.Instance = mp.Index
		if bvh != nil {
			if h, ok := bvh.Closest(mp.Pos, 1e-3); ok {
				p.Surface = h.Mesh.ID
				p.Tri = h.Tri
				p.Face = h.Mesh.Topo().Tris[h.Tri].Face
				p.Bary = h.Bary
			}
		}
		pts = append(pts, p)
	}
	return pts, nil
}
