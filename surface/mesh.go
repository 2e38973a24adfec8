// Package surface holds the read-only host snapshot the pipeline samples
// from: meshes, bezier curves, empties, collections, images and the scene
// that ties them together.
package surface

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

// Mesh is a polygon mesh with its attribute tables. Vertex positions are in
// local space; Transform places the mesh in the world.
type Mesh struct {
	ID        uint32         `json:"id"`
	Name      string         `json:"name"`
	Verts     []geom.Vec     `json:"verts"`
	Faces     [][]int        `json:"faces"`
	Transform geom.Transform `json:"transform"`

	// VertexGroups maps a group name to one weight per vertex.
	VertexGroups map[string][]float64 `json:"vertex_groups,omitempty"`
	// ColorAttrs maps a layer name to one RGBA per vertex.
	ColorAttrs map[string][][4]float64 `json:"color_attrs,omitempty"`
	// UVMaps maps a layer name to one UV per face corner, indexed [face][corner].
	UVMaps map[string][][][2]float64 `json:"uv_maps,omitempty"`
	// MaterialIndex holds the material slot of each face.
	MaterialIndex []int    `json:"material_index,omitempty"`
	Materials     []string `json:"materials,omitempty"`
	// FaceSets are named face selections (face preview).
	FaceSets map[string][]bool `json:"face_sets,omitempty"`
	// PointAttrs are integer point attributes (manual instance index).
	IntAttrs map[string][]int `json:"int_attrs,omitempty"`

	// Rev is the host modification counter; caches are keyed by it.
	Rev uint64 `json:"rev"`

	mu   sync.Mutex
	topo *Topology
}

// Tri is one triangle of a fan-triangulated face.
type Tri struct {
	Face   int
	V      [3]int // vertex indices
	Corner [3]int // corner index within the face
}

// Topology is derived, cached mesh structure.
type Topology struct {
	Rev        uint64
	Tris       []Tri
	LocalArea  []float64 // per triangle
	WorldArea  []float64 // per triangle
	FaceArea   []float64 // per face, world
	Edges      []Edge
	VertNormal []geom.Vec // local space, area-weighted
	Neighbors  [][]int    // vertex adjacency
	Boundary   []bool     // per vertex
	Curvature  []float64  // per vertex, signed mean curvature estimate
	Bounds     geom.Box   // world
	LocalBox   geom.Box
}

// Edge is an undirected mesh edge with the faces using it.
type Edge struct {
	A, B  int
	Faces []int
}

// IsBoundary reports whether the edge borders exactly one face.
func (e Edge) IsBoundary() bool { return len(e.Faces) == 1 }

// IsLoose reports whether no face uses the edge.
func (e Edge) IsLoose() bool { return len(e.Faces) == 0 }

// Topo returns the cached topology, rebuilding it when Rev changed.
func (m *Mesh) Topo() *Topology {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topo != nil && m.topo.Rev == m.Rev {
		return m.topo
	}
	m.topo = m.buildTopology()
	return m.topo
}

// Touch bumps the modification counter, invalidating cached data.
func (m *Mesh) Touch() { m.Rev++ }

// WorldVert returns vertex i in world space.
func (m *Mesh) WorldVert(i int) geom.Vec { return m.Transform.Point(m.Verts[i]) }

// FaceNormal returns the world-space normal of face f.
func (m *Mesh) FaceNormal(f int) geom.Vec {
	face := m.Faces[f]
	if len(face) < 3 {
		return geom.AxisZ
	}
	// Newell's method handles non-planar polygons.
	var n geom.Vec
	for i := range face {
		a := m.WorldVert(face[i])
		b := m.WorldVert(face[(i+1)%len(face)])
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return geom.Unit(n, geom.AxisZ)
}

// FaceCenter returns the world-space centroid of face f.
func (m *Mesh) FaceCenter(f int) geom.Vec {
	var c geom.Vec
	for _, vi := range m.Faces[f] {
		c = r3.Add(c, m.WorldVert(vi))
	}
	return r3.Scale(1/float64(len(m.Faces[f])), c)
}

// Area returns the total surface area in local or world space.
func (m *Mesh) Area(world bool) float64 {
	t := m.Topo()
	a := t.LocalArea
	if world {
		a = t.WorldArea
	}
	sum := 0.0
	for _, v := range a {
		sum += v
	}
	return sum
}

// TriWorld returns the world-space corners of triangle i.
func (m *Mesh) TriWorld(i int) (a, b, c geom.Vec) {
	tr := m.Topo().Tris[i]
	return m.WorldVert(tr.V[0]), m.WorldVert(tr.V[1]), m.WorldVert(tr.V[2])
}

// SmoothNormal interpolates world-space vertex normals over triangle i.
func (m *Mesh) SmoothNormal(i int, bary [3]float64) geom.Vec {
	t := m.Topo()
	tr := t.Tris[i]
	var n geom.Vec
	for k := 0; k < 3; k++ {
		n = r3.Add(n, r3.Scale(bary[k], t.VertNormal[tr.V[k]]))
	}
	return m.Transform.Normal(geom.Unit(n, geom.AxisZ))
}

func (m *Mesh) buildTopology() *Topology {
	t := &Topology{Rev: m.Rev, Bounds: geom.EmptyBox(), LocalBox: geom.EmptyBox()}
	nv := len(m.Verts)
	for _, v := range m.Verts {
		t.LocalBox = t.LocalBox.Extend(v)
		t.Bounds = t.Bounds.Extend(m.Transform.Point(v))
	}

	t.FaceArea = make([]float64, len(m.Faces))
	for f, face := range m.Faces {
		for k := 1; k+1 < len(face); k++ {
			tri := Tri{Face: f, V: [3]int{face[0], face[k], face[k+1]}, Corner: [3]int{0, k, k + 1}}
			if !validTri(tri, nv) {
				continue
			}
			la := geom.TriangleArea(m.Verts[tri.V[0]], m.Verts[tri.V[1]], m.Verts[tri.V[2]])
			wa := geom.TriangleArea(m.WorldVert(tri.V[0]), m.WorldVert(tri.V[1]), m.WorldVert(tri.V[2]))
			t.Tris = append(t.Tris, tri)
			t.LocalArea = append(t.LocalArea, la)
			t.WorldArea = append(t.WorldArea, wa)
			t.FaceArea[f] += wa
		}
	}

	type key struct{ a, b int }
	index := map[key]int{}
	addEdge := func(a, b, f int) {
		if a > b {
			a, b = b, a
		}
		k := key{a, b}
		i, ok := index[k]
		if !ok {
			i = len(t.Edges)
			index[k] = i
			t.Edges = append(t.Edges, Edge{A: a, B: b})
		}
		if f >= 0 {
			t.Edges[i].Faces = append(t.Edges[i].Faces, f)
		}
	}
	for f, face := range m.Faces {
		if len(face) == 2 {
			addEdge(face[0], face[1], -1)
			continue
		}
		for i := range face {
			addEdge(face[i], face[(i+1)%len(face)], f)
		}
	}

	t.Neighbors = make([][]int, nv)
	t.Boundary = make([]bool, nv)
	for _, e := range t.Edges {
		if e.A >= nv || e.B >= nv {
			continue
		}
		t.Neighbors[e.A] = append(t.Neighbors[e.A], e.B)
		t.Neighbors[e.B] = append(t.Neighbors[e.B], e.A)
		if e.IsBoundary() {
			t.Boundary[e.A] = true
			t.Boundary[e.B] = true
		}
	}

	t.VertNormal = make([]geom.Vec, nv)
	for _, tri := range t.Tris {
		a, b, c := m.Verts[tri.V[0]], m.Verts[tri.V[1]], m.Verts[tri.V[2]]
		n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a)) // area weighted
		for _, vi := range tri.V {
			t.VertNormal[vi] = r3.Add(t.VertNormal[vi], n)
		}
	}
	for i := range t.VertNormal {
		t.VertNormal[i] = geom.Unit(t.VertNormal[i], geom.AxisZ)
	}

	// Umbrella-operator curvature: the Laplacian projected on the normal.
	// Positive values are convex.
	t.Curvature = make([]float64, nv)
	for i := 0; i < nv; i++ {
		nb := t.Neighbors[i]
		if len(nb) == 0 {
			continue
		}
		var avg geom.Vec
		mean := 0.0
		for _, j := range nb {
			avg = r3.Add(avg, m.Verts[j])
			mean += geom.Dist(m.Verts[i], m.Verts[j])
		}
		avg = r3.Scale(1/float64(len(nb)), avg)
		mean /= float64(len(nb))
		if mean == 0 {
			continue
		}
		lap := r3.Sub(m.Verts[i], avg)
		t.Curvature[i] = r3.Dot(lap, t.VertNormal[i]) / mean
	}
	return t
}

func validTri(t Tri, nv int) bool {
	for _, v := range t.V {
		if v < 0 || v >= nv {
			return false
		}
	}
	return true
}

// HasVertexGroup reports whether the named vertex group exists.
func (m *Mesh) HasVertexGroup(name string) bool {
	_, ok := m.VertexGroups[name]
	return ok
}

// HasColorAttr reports whether the named color layer exists.
func (m *Mesh) HasColorAttr(name string) bool {
	_, ok := m.ColorAttrs[name]
	return ok
}

// HasUVMap reports whether the named UV layer exists.
func (m *Mesh) HasUVMap(name string) bool {
	_, ok := m.UVMaps[name]
	return ok
}

// UVAt returns the UV of corner c of face f in the named layer.
func (m *Mesh) UVAt(layer string, f, c int) ([2]float64, bool) {
	uv, ok := m.UVMaps[layer]
	if !ok || f >= len(uv) || c >= len(uv[f]) {
		return [2]float64{}, false
	}
	return uv[f][c], true
}
