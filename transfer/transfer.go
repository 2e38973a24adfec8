// Package transfer looks up per-surface attributes (vertex groups, color
// attributes, UV maps, material slots, integer attributes) at the
// barycentric position of a point.
//
// Lookups interpolate per-triangle corner tables that are built on first use
// and cached by (surface id, attribute, modification counter), so repeated
// computes over an unchanged surface reuse them.
package transfer

import (
	"fmt"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// Defaults returned for attributes a surface does not carry.
var (
	DefaultColor = [4]float64{0, 0, 0, 1}
	DefaultUV    = [2]float64{0, 0}
)

// Attr is an attribute family.
type Attr string

const (
	AttrVertexGroup Attr = "vg"
	AttrColor       Attr = "vcol"
	AttrUV          Attr = "uv"
	AttrMaterial    Attr = "mat"
	AttrInt         Attr = "int"
	AttrFaceSet     Attr = "faceset"
)

// Transfer resolves points to their emitting surface and samples its
// attributes. It is safe for concurrent use.
type Transfer struct {
	scene   *surface.Scene
	cache   *Cache
	objects map[uint32]*surface.Object
}

// New indexes the scene objects by id. A nil cache gets a private one.
func New(sc *surface.Scene, cache *Cache) *Transfer {
	if cache == nil {
		cache = NewCache()
	}
	t := &Transfer{scene: sc, cache: cache, objects: map[uint32]*surface.Object{}}
	if sc != nil {
		for _, o := range sc.Objects {
			t.objects[o.ID] = o
		}
	}
	return t
}

// Scene returns the snapshot the transfer reads from.
func (t *Transfer) Scene() *surface.Scene { return t.scene }

// Object returns the object a point was emitted from.
func (t *Transfer) Object(p *scatter.Point) (*surface.Object, bool) {
	o, ok := t.objects[p.Surface]
	return o, ok
}

// Mesh returns the mesh a point lies on, or nil.
func (t *Transfer) Mesh(p *scatter.Point) *surface.Mesh {
	o, ok := t.objects[p.Surface]
	if !ok || o.Kind != surface.KindMesh {
		return nil
	}
	return o.Mesh
}

// Local maps the point position into the local space of its surface. Points
// without a surface are returned unchanged.
func (t *Transfer) Local(p *scatter.Point) geom.Vec {
	o, ok := t.objects[p.Surface]
	if !ok {
		return p.Pos
	}
	return o.World().InversePoint(p.Pos)
}

// Position returns the point position in the requested space.
func (t *Transfer) Position(p *scatter.Point, space scatter.Space) geom.Vec {
	if space == scatter.SpaceLocal {
		return t.Local(p)
	}
	return p.Pos
}

func (t *Transfer) onMesh(p *scatter.Point) (*surface.Mesh, surface.Tri, bool) {
	m := t.Mesh(p)
	if m == nil || p.Tri < 0 {
		return m, surface.Tri{}, false
	}
	topo := m.Topo()
	if p.Tri >= len(topo.Tris) {
		return m, surface.Tri{}, false
	}
	return m, topo.Tris[p.Tri], true
}

// VertexGroup returns the weight of group name at p. ok is false when the
// surface has no such group; the weight is then 0.
func (t *Transfer) VertexGroup(p *scatter.Point, name string) (float64, bool) {
	m, _, on := t.onMesh(p)
	if m == nil || !m.HasVertexGroup(name) {
		return 0, false
	}
	if !on {
		return 0, true
	}
	tab := t.cache.vertexGroup(m, name)
	c := tab[p.Tri]
	return p.Bary[0]*c[0] + p.Bary[1]*c[1] + p.Bary[2]*c[2], true
}

// Color returns the RGBA of color attribute name at p, or DefaultColor.
func (t *Transfer) Color(p *scatter.Point, name string) ([4]float64, bool) {
	m, _, on := t.onMesh(p)
	if m == nil || !m.HasColorAttr(name) {
		return DefaultColor, false
	}
	if !on {
		return DefaultColor, true
	}
	tab := t.cache.color(m, name)
	var out [4]float64
	for k := 0; k < 3; k++ {
		for ch := 0; ch < 4; ch++ {
			out[ch] += p.Bary[k] * tab[p.Tri][k][ch]
		}
	}
	return out, true
}

// UV returns the coordinates of UV map name at p, or DefaultUV.
func (t *Transfer) UV(p *scatter.Point, name string) ([2]float64, bool) {
	m, _, on := t.onMesh(p)
	if m == nil || !m.HasUVMap(name) {
		return DefaultUV, false
	}
	if !on {
		return DefaultUV, true
	}
	tab := t.cache.uv(m, name)
	c := tab[p.Tri]
	if !c.mapped {
		return DefaultUV, false
	}
	var out [2]float64
	for k := 0; k < 3; k++ {
		out[0] += p.Bary[k] * c.uv[k][0]
		out[1] += p.Bary[k] * c.uv[k][1]
	}
	return out, true
}

// Material returns the material slot index and name of the face under p.
// Points off a mesh, or faces without an assignment, get the first slot.
func (t *Transfer) Material(p *scatter.Point) (int, string) {
	m := t.Mesh(p)
	if m == nil {
		return 0, ""
	}
	face := p.Face
	if face < 0 && p.Tri >= 0 && p.Tri < len(m.Topo().Tris) {
		face = m.Topo().Tris[p.Tri].Face
	}
	idx := 0
	if face >= 0 && face < len(m.MaterialIndex) {
		idx = m.MaterialIndex[face]
	}
	name := ""
	if idx >= 0 && idx < len(m.Materials) {
		name = m.Materials[idx]
	}
	return idx, name
}

// Int returns the integer attribute name of the vertex nearest to p.
func (t *Transfer) Int(p *scatter.Point, name string) (int, bool) {
	m, tr, on := t.onMesh(p)
	if m == nil {
		return 0, false
	}
	vals, ok := m.IntAttrs[name]
	if !ok {
		return 0, false
	}
	if !on {
		return 0, true
	}
	best := 0
	for k := 1; k < 3; k++ {
		if p.Bary[k] > p.Bary[best] {
			best = k
		}
	}
	v := tr.V[best]
	if v >= len(vals) {
		return 0, true
	}
	return vals[v], true
}

// InFaceSet reports whether the face under p belongs to face set name.
// Points off a mesh are never in a face set.
func (t *Transfer) InFaceSet(p *scatter.Point, name string) bool {
	m, tr, on := t.onMesh(p)
	if m == nil || !on {
		return false
	}
	set, ok := m.FaceSets[name]
	if !ok || tr.Face >= len(set) {
		return false
	}
	return set[tr.Face]
}

// Has reports whether surface object o carries attribute name of family a.
func Has(o *surface.Object, a Attr, name string) bool {
	if o == nil || o.Kind != surface.KindMesh {
		return false
	}
	m := o.Mesh
	switch a {
	case AttrVertexGroup:
		return m.HasVertexGroup(name)
	case AttrColor:
		return m.HasColorAttr(name)
	case AttrUV:
		return m.HasUVMap(name)
	case AttrMaterial:
		for _, n := range m.Materials {
			if n == name {
				return true
			}
		}
		return false
	case AttrInt:
		_, ok := m.IntAttrs[name]
		return ok
	case AttrFaceSet:
		_, ok := m.FaceSets[name]
		return ok
	}
	return false
}

// Coverage tells on how many of a set of surfaces an attribute exists.
type Coverage int

const (
	CoverNone Coverage = iota
	CoverSome
	CoverAll
)

// Shared checks attribute name across the mesh surfaces of objs. It returns
// the coverage and, unless every surface carries the attribute, a
// missing_attribute error naming the surfaces without it.
func Shared(objs []*surface.Object, a Attr, name, system, feature string) (Coverage, *scatter.Error) {
	var missing []string
	meshes := 0
	for _, o := range objs {
		if o == nil || o.Kind != surface.KindMesh {
			continue
		}
		meshes++
		if !Has(o, a, name) {
			missing = append(missing, o.Name)
		}
	}
	switch {
	case meshes == 0 || len(missing) == meshes:
		return CoverNone, scatter.Errorf(scatter.KindMissingAttribute, system, feature,
			"%s %q not found on any surface", a, name)
	case len(missing) > 0:
		return CoverSome, scatter.Errorf(scatter.KindMissingAttribute, system, feature,
			"%s %q not shared across surfaces (missing on %v)", a, name, missing)
	}
	return CoverAll, nil
}

// Fill evaluates the stream's declared columns into each point's Attrs.
// Column sources are "<family>:<name>[.<channel>]", e.g. "vg:density",
// "vcol:Col.g", "uv:UVMap.u", "mat", "int:manual_index".
func (t *Transfer) Fill(s *scatter.PointStream) error {
	if len(s.Columns) == 0 {
		return nil
	}
	lookups := make([]func(*scatter.Point) float64, len(s.Columns))
	for i, c := range s.Columns {
		fn, err := t.column(c.Source)
		if err != nil {
			return fmt.Errorf("column %s: %w", c.Name, err)
		}
		lookups[i] = fn
	}
	for i := range s.Points {
		p := &s.Points[i]
		p.Attrs = make([]float64, len(lookups))
		for k, fn := range lookups {
			p.Attrs[k] = fn(p)
		}
	}
	return nil
}
