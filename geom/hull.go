package geom

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hull is the convex hull of a point set. Solid hulls are closed triangle
// meshes with outward normals. Flat sets give a polygon fan, collinear
// sets a single segment and a lone point a zero-length segment.
type Hull struct {
	Tris  [][3]Vec
	Solid bool

	planes []hullPlane
	seg    [2]Vec
	eps    float64
	empty  bool
}

type hullPlane struct {
	n Vec
	d float64
}

type hullFace struct {
	v       [3]int
	n       Vec
	d       float64
	outside []int
	dead    bool
}

func (f *hullFace) dist(p Vec) float64 { return r3.Dot(f.n, p) - f.d }

func newHullFace(pts []Vec, a, b, c int) *hullFace {
	n := r3.Cross(r3.Sub(pts[b], pts[a]), r3.Sub(pts[c], pts[a]))
	if l := r3.Norm(n); l > 0 {
		n = r3.Scale(1/l, n)
	}
	return &hullFace{v: [3]int{a, b, c}, n: n, d: r3.Dot(n, pts[a])}
}

// NewHull builds the convex hull of pts with quickhull.
func NewHull(pts []Vec) *Hull {
	h := &Hull{}
	if len(pts) == 0 {
		h.empty = true
		return h
	}
	box := EmptyBox()
	for _, p := range pts {
		box = box.Extend(p)
	}
	h.eps = 1e-9 * math.Max(MaxAbs(r3.Sub(box.Max, box.Min)), MaxAbs(box.Max)+MaxAbs(box.Min))

	i0, i1 := extremePair(pts)
	if Dist(pts[i0], pts[i1]) <= h.eps {
		h.seg = [2]Vec{pts[i0], pts[i0]}
		return h
	}
	i2, far := -1, h.eps
	for i, p := range pts {
		if d, _ := LineDistance(p, pts[i0], pts[i1]); d > far {
			i2, far = i, d
		}
	}
	if i2 < 0 {
		h.seg = lineExtent(pts, pts[i0], pts[i1])
		return h
	}
	base := newHullFace(pts, i0, i1, i2)
	i3, far := -1, h.eps
	for i, p := range pts {
		if d := math.Abs(base.dist(p)); d > far {
			i3, far = i, d
		}
	}
	if i3 < 0 {
		h.flat(pts, base.n)
		return h
	}
	h.solid(pts, [4]int{i0, i1, i2, i3})
	return h
}

// extremePair returns the two most distant of the six axis extremes.
func extremePair(pts []Vec) (int, int) {
	var ext [6]int
	for i, p := range pts {
		for k := 0; k < 3; k++ {
			if Component(p, k) < Component(pts[ext[2*k]], k) {
				ext[2*k] = i
			}
			if Component(p, k) > Component(pts[ext[2*k+1]], k) {
				ext[2*k+1] = i
			}
		}
	}
	a, b, best := ext[0], ext[1], -1.0
	for i := range ext {
		for j := i + 1; j < len(ext); j++ {
			if d := Dist2(pts[ext[i]], pts[ext[j]]); d > best {
				a, b, best = ext[i], ext[j], d
			}
		}
	}
	return a, b
}

// LineDistance returns the distance from p to the infinite line
// through a and b, and the line parameter of the foot point.
func LineDistance(p, a, b Vec) (float64, float64) {
	ab := r3.Sub(b, a)
	l2 := r3.Norm2(ab)
	if l2 == 0 {
		return Dist(p, a), 0
	}
	t := r3.Dot(r3.Sub(p, a), ab) / l2
	return Dist(p, r3.Add(a, r3.Scale(t, ab))), t
}

func lineExtent(pts []Vec, a, b Vec) [2]Vec {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		_, t := LineDistance(p, a, b)
		lo, hi = math.Min(lo, t), math.Max(hi, t)
	}
	ab := r3.Sub(b, a)
	return [2]Vec{r3.Add(a, r3.Scale(lo, ab)), r3.Add(a, r3.Scale(hi, ab))}
}

// flat builds the polygon hull of a planar set with a monotone chain in
// the plane and fans it into triangles.
func (h *Hull) flat(pts []Vec, n Vec) {
	u := Perpendicular(n)
	v := r3.Cross(n, u)
	type p2 struct {
		x, y float64
		i    int
	}
	ps := make([]p2, len(pts))
	for i, p := range pts {
		ps[i] = p2{r3.Dot(p, u), r3.Dot(p, v), i}
	}
	slices.SortFunc(ps, func(a, b p2) int {
		if a.x != b.x {
			return cmpFloat(a.x, b.x)
		}
		return cmpFloat(a.y, b.y)
	})
	cross := func(o, a, b p2) float64 { return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x) }
	ring := make([]p2, 0, 2*len(ps))
	for _, p := range ps {
		for len(ring) >= 2 && cross(ring[len(ring)-2], ring[len(ring)-1], p) <= 0 {
			ring = ring[:len(ring)-1]
		}
		ring = append(ring, p)
	}
	lower := len(ring) + 1
	for i := len(ps) - 2; i >= 0; i-- {
		p := ps[i]
		for len(ring) >= lower && cross(ring[len(ring)-2], ring[len(ring)-1], p) <= 0 {
			ring = ring[:len(ring)-1]
		}
		ring = append(ring, p)
	}
	ring = ring[:len(ring)-1]
	for i := 1; i+1 < len(ring); i++ {
		h.Tris = append(h.Tris, [3]Vec{pts[ring[0].i], pts[ring[i].i], pts[ring[i+1].i]})
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// solid runs quickhull from the tetrahedron tet.
func (h *Hull) solid(pts []Vec, tet [4]int) {
	centre := r3.Scale(0.25, r3.Add(r3.Add(pts[tet[0]], pts[tet[1]]), r3.Add(pts[tet[2]], pts[tet[3]])))
	var faces []*hullFace
	for _, f := range [4][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}} {
		a, b, c := tet[f[0]], tet[f[1]], tet[f[2]]
		face := newHullFace(pts, a, b, c)
		if face.dist(centre) > 0 {
			face = newHullFace(pts, a, c, b)
		}
		faces = append(faces, face)
	}
	assign := func(idx []int, to []*hullFace) {
		for _, i := range idx {
			for _, f := range to {
				if f.dist(pts[i]) > h.eps {
					f.outside = append(f.outside, i)
					break
				}
			}
		}
	}
	all := make([]int, 0, len(pts))
	for i := range pts {
		if !slices.Contains(tet[:], i) {
			all = append(all, i)
		}
	}
	assign(all, faces)

	for {
		var cur *hullFace
		for _, f := range faces {
			if !f.dead && len(f.outside) > 0 {
				cur = f
				break
			}
		}
		if cur == nil {
			break
		}
		apex, far := cur.outside[0], -1.0
		for _, i := range cur.outside {
			if d := cur.dist(pts[i]); d > far {
				apex, far = i, d
			}
		}

		type edge struct{ a, b int }
		visible := map[edge]bool{}
		var orphans []int
		for _, f := range faces {
			if f.dead || f.dist(pts[apex]) <= h.eps {
				continue
			}
			f.dead = true
			for k := 0; k < 3; k++ {
				visible[edge{f.v[k], f.v[(k+1)%3]}] = true
			}
			orphans = append(orphans, f.outside...)
			f.outside = nil
		}
		var created []*hullFace
		for e := range visible {
			if !visible[edge{e.b, e.a}] {
				created = append(created, newHullFace(pts, e.a, e.b, apex))
			}
		}
		slices.SortFunc(created, func(x, y *hullFace) int {
			if x.v[0] != y.v[0] {
				return x.v[0] - y.v[0]
			}
			return x.v[1] - y.v[1]
		})
		orphans = slices.DeleteFunc(orphans, func(i int) bool { return i == apex })
		assign(orphans, created)
		faces = append(slices.DeleteFunc(faces, func(f *hullFace) bool { return f.dead }), created...)
	}

	h.Solid = true
	for _, f := range faces {
		h.Tris = append(h.Tris, [3]Vec{pts[f.v[0]], pts[f.v[1]], pts[f.v[2]]})
		h.planes = append(h.planes, hullPlane{f.n, f.d})
	}
}

// Contains reports whether p lies inside a solid hull.
func (h *Hull) Contains(p Vec) bool {
	if !h.Solid {
		return false
	}
	for _, pl := range h.planes {
		if r3.Dot(pl.n, p)-pl.d > h.eps {
			return false
		}
	}
	return true
}

// Closest returns the distance from p to the hull and the nearest hull
// point. Points inside a solid hull are at distance zero.
func (h *Hull) Closest(p Vec) (float64, Vec) {
	if h.Contains(p) {
		return 0, p
	}
	if h.empty {
		return math.Inf(1), p
	}
	if len(h.Tris) == 0 {
		d, t := SegmentDistance(p, h.seg[0], h.seg[1])
		return d, LerpVec(h.seg[0], h.seg[1], t)
	}
	best, at := math.Inf(1), p
	for _, t := range h.Tris {
		q, _ := ClosestOnTriangle(p, t[0], t[1], t[2])
		if d := Dist2(p, q); d < best {
			best, at = d, q
		}
	}
	return math.Sqrt(best), at
}
