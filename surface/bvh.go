package surface

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

const bvhLeafSize = 4

// Hit describes a ray or closest-point query result.
type Hit struct {
	Mesh   *Mesh
	Tri    int // triangle index within Mesh.Topo().Tris
	Pos    geom.Vec
	Normal geom.Vec // geometric face normal, world space
	Dist   float64
	Bary   [3]float64
}

type bvhTri struct {
	mesh     int
	tri      int
	a, b, c  geom.Vec
	box      geom.Box
	centroid geom.Vec
}

type bvhNode struct {
	box         geom.Box
	left, right int // child node indices; -1 for leaves
	start, end  int // triangle range for leaves
}

// BVH is a bounding volume hierarchy over the world-space triangles of a
// mesh set. It is immutable once built and safe for concurrent queries.
type BVH struct {
	meshes []*Mesh
	tris   []bvhTri
	nodes  []bvhNode
}

// NewBVH builds a hierarchy over meshes.
func NewBVH(meshes ...*Mesh) *BVH {
	b := &BVH{meshes: meshes}
	for mi, m := range meshes {
		topo := m.Topo()
		for ti, tr := range topo.Tris {
			a, bb, c := m.WorldVert(tr.V[0]), m.WorldVert(tr.V[1]), m.WorldVert(tr.V[2])
			box := geom.EmptyBox().Extend(a).Extend(bb).Extend(c)
			b.tris = append(b.tris, bvhTri{
				mesh: mi, tri: ti, a: a, b: bb, c: c, box: box,
				centroid: r3.Scale(1.0/3, r3.Add(r3.Add(a, bb), c)),
			})
		}
	}
	if len(b.tris) > 0 {
		b.build(0, len(b.tris))
	}
	return b
}

// Len returns the number of triangles.
func (b *BVH) Len() int { return len(b.tris) }

// Bounds returns the world bounds of all triangles.
func (b *BVH) Bounds() geom.Box {
	if len(b.nodes) == 0 {
		return geom.EmptyBox()
	}
	return b.nodes[0].box
}

func (b *BVH) build(start, end int) int {
	box := geom.EmptyBox()
	cbox := geom.EmptyBox()
	for _, t := range b.tris[start:end] {
		box = box.Union(t.box)
		cbox = cbox.Extend(t.centroid)
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, bvhNode{box: box, left: -1, right: -1, start: start, end: end})
	if end-start <= bvhLeafSize {
		return idx
	}
	size := cbox.Size()
	axis := 0
	if size.Y > size.X && size.Y >= size.Z {
		axis = 1
	} else if size.Z > size.X && size.Z > size.Y {
		axis = 2
	}
	part := b.tris[start:end]
	sort.Slice(part, func(i, j int) bool {
		return geom.Component(part[i].centroid, axis) < geom.Component(part[j].centroid, axis)
	})
	mid := (start + end) / 2
	left := b.build(start, mid)
	right := b.build(mid, end)
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx
}

// Raycast returns the nearest hit of the ray o + t*d for t in [0, maxDist].
// d need not be normalized; Dist is measured along unit d.
func (b *BVH) Raycast(o, d geom.Vec, maxDist float64) (Hit, bool) {
	if len(b.nodes) == 0 {
		return Hit{}, false
	}
	d = geom.Unit(d, geom.AxisZ)
	inv := geom.V(1/d.X, 1/d.Y, 1/d.Z)
	best := Hit{Dist: maxDist}
	found := false
	stack := []int{0}
	for len(stack) > 0 {
		n := b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if !n.box.RayHit(o, inv, best.Dist) {
			continue
		}
		if n.left < 0 {
			for i := n.start; i < n.end; i++ {
				t := b.tris[i]
				dist, u, v, ok := geom.RayTriangle(o, d, t.a, t.b, t.c)
				if ok && dist <= best.Dist {
					best = b.hit(t, r3.Add(o, r3.Scale(dist, d)), dist, [3]float64{1 - u - v, u, v})
					found = true
				}
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
	return best, found
}

// Occluded reports whether anything blocks the segment from o toward d
// before maxDist.
func (b *BVH) Occluded(o, d geom.Vec, maxDist float64) bool {
	_, ok := b.Raycast(o, d, maxDist)
	return ok
}

// Closest returns the nearest surface point to p within maxDist.
func (b *BVH) Closest(p geom.Vec, maxDist float64) (Hit, bool) {
	if len(b.nodes) == 0 {
		return Hit{}, false
	}
	best := Hit{Dist: maxDist}
	found := false
	stack := []int{0}
	for len(stack) > 0 {
		n := b.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.box.Distance(p) > best.Dist {
			continue
		}
		if n.left < 0 {
			for i := n.start; i < n.end; i++ {
				t := b.tris[i]
				q, w := geom.ClosestOnTriangle(p, t.a, t.b, t.c)
				if d := geom.Dist(p, q); d <= best.Dist {
					best = b.hit(t, q, d, w)
					found = true
				}
			}
			continue
		}
		// Visit the nearer child first.
		l, r := n.left, n.right
		if b.nodes[l].box.Distance(p) < b.nodes[r].box.Distance(p) {
			l, r = r, l
		}
		stack = append(stack, l, r)
	}
	return best, found
}

// Inside reports whether p lies inside the closed volume formed by the
// meshes, by counting ray crossings along a slightly skewed +Z ray.
func (b *BVH) Inside(p geom.Vec) bool {
	if len(b.nodes) == 0 || !b.nodes[0].box.Contains(p) {
		return false
	}
	d := geom.Unit(geom.V(1e-4, 2e-4, 1), geom.AxisZ)
	crossings := 0
	o := p
	for i := 0; i < 1024; i++ {
		h, ok := b.Raycast(o, d, math.Inf(1))
		if !ok {
			break
		}
		crossings++
		o = r3.Add(h.Pos, r3.Scale(1e-7, d))
	}
	return crossings%2 == 1
}

// SignedDistance returns the distance to the surface, negative inside.
func (b *BVH) SignedDistance(p geom.Vec) float64 {
	h, ok := b.Closest(p, math.Inf(1))
	if !ok {
		return math.Inf(1)
	}
	if b.Inside(p) {
		return -h.Dist
	}
	return h.Dist
}

func (b *BVH) hit(t bvhTri, pos geom.Vec, dist float64, w [3]float64) Hit {
	return Hit{
		Mesh:   b.meshes[t.mesh],
		Tri:    t.tri,
		Pos:    pos,
		Normal: geom.TriangleNormal(t.a, t.b, t.c),
		Dist:   dist,
		Bary:   w,
	}
}
