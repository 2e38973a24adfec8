package fields

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// contact measures the distance to a set of elements.
type contact interface {
	// distance returns the distance from p to the nearest element and the
	// nearest location on it.
	distance(p geom.Vec) (float64, geom.Vec)
	// inside reports whether p lies within a closed element.
	inside(p geom.Vec) bool
}

type pointContact struct{ idx *geom.PointIndex }

func (c pointContact) distance(p geom.Vec) (float64, geom.Vec) {
	d, at, ok := c.idx.Nearest(p)
	if !ok {
		return math.Inf(1), p
	}
	return d, at
}

func (pointContact) inside(geom.Vec) bool { return false }

type meshContact struct{ bvh *surface.BVH }

func (c meshContact) distance(p geom.Vec) (float64, geom.Vec) {
	h, ok := c.bvh.Closest(p, math.Inf(1))
	if !ok {
		return math.Inf(1), p
	}
	return h.Dist, h.Pos
}

func (c meshContact) inside(p geom.Vec) bool { return c.bvh.Inside(p) }

type boxContact struct{ boxes []geom.Box }

func (c boxContact) distance(p geom.Vec) (float64, geom.Vec) {
	best, at := math.Inf(1), p
	for _, b := range c.boxes {
		d := math.Max(b.Distance(p), 0)
		if d < best {
			best = d
			at = geom.V(geom.Clamp(p.X, b.Min.X, b.Max.X), geom.Clamp(p.Y, b.Min.Y, b.Max.Y), geom.Clamp(p.Z, b.Min.Z, b.Max.Z))
		}
	}
	return best, at
}

func (c boxContact) inside(p geom.Vec) bool {
	for _, b := range c.boxes {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

type hullContact struct{ hulls []*geom.Hull }

func (c hullContact) distance(p geom.Vec) (float64, geom.Vec) {
	best, at := math.Inf(1), p
	for _, h := range c.hulls {
		if d, q := h.Closest(p); d < best {
			best, at = d, q
		}
	}
	return best, at
}

func (c hullContact) inside(p geom.Vec) bool {
	for _, h := range c.hulls {
		if h.Contains(p) {
			return true
		}
	}
	return false
}

// multiContact is the nearest of several contacts.
type multiContact []contact

func (m multiContact) distance(p geom.Vec) (float64, geom.Vec) {
	best, at := math.Inf(1), p
	for _, c := range m {
		if d, q := c.distance(p); d < best {
			best, at = d, q
		}
	}
	return best, at
}

func (m multiContact) inside(p geom.Vec) bool {
	for _, c := range m {
		if c.inside(p) {
			return true
		}
	}
	return false
}

// objectContact measures against scene objects. Objects without geometry
// count as their origin for every type but bounding boxes.
func objectContact(objs []*surface.Object, typ scatter.ContactType) contact {
	var origins, verts []geom.Vec
	var meshes []*surface.Mesh
	var boxes []geom.Box
	var hulls []*geom.Hull
	for _, o := range objs {
		if o.Kind != surface.KindMesh {
			origins = append(origins, o.Location())
			boxes = append(boxes, o.Bounds())
			continue
		}
		meshes = append(meshes, o.Mesh)
		boxes = append(boxes, o.Bounds())
		ws := make([]geom.Vec, len(o.Mesh.Verts))
		for i := range ws {
			ws[i] = o.Mesh.WorldVert(i)
		}
		verts = append(verts, ws...)
		if typ == scatter.ContactConvexHull {
			hulls = append(hulls, geom.NewHull(ws))
		}
	}
	var out multiContact
	switch typ {
	case scatter.ContactOrigin:
		all := origins
		for _, m := range meshes {
			all = append(all, m.Transform.Loc)
		}
		return pointContact{geom.NewPointIndex(all)}
	case scatter.ContactBBox:
		return boxContact{boxes}
	case scatter.ContactConvexHull:
		out = append(out, hullContact{hulls})
	case scatter.ContactPointCloud:
		return pointContact{geom.NewPointIndex(append(verts, origins...))}
	default:
		if len(meshes) > 0 {
			out = append(out, meshContact{surface.NewBVH(meshes...)})
		}
	}
	if len(origins) > 0 {
		out = append(out, pointContact{geom.NewPointIndex(origins)})
	}
	return out
}

// pointSetContact measures against another system's points.
func pointSetContact(pts []geom.Vec, typ scatter.ContactType) contact {
	switch typ {
	case scatter.ContactBBox:
		b := geom.EmptyBox()
		for _, p := range pts {
			b = b.Extend(p)
		}
		return boxContact{[]geom.Box{b}}
	case scatter.ContactConvexHull:
		return hullContact{[]*geom.Hull{geom.NewHull(pts)}}
	}
	return pointContact{geom.NewPointIndex(pts)}
}

// away is the unit direction from the nearest element toward p.
func away(p, at, fallback geom.Vec) geom.Vec {
	return geom.Unit(r3.Sub(p, at), fallback)
}
