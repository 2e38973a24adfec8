package sampler

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// triPicker selects triangles of a mesh proportionally to a weight.
type triPicker struct {
	m   *surface.Mesh
	cum []float64
}

func newTriPicker(m *surface.Mesh, weights []float64) *triPicker {
	tp := &triPicker{m: m, cum: make([]float64, len(weights))}
	sum := 0.0
	for i, w := range weights {
		if w > 0 {
			sum += w
		}
		tp.cum[i] = sum
	}
	return tp
}

func (tp *triPicker) total() float64 {
	if len(tp.cum) == 0 {
		return 0
	}
	return tp.cum[len(tp.cum)-1]
}

// pick returns a triangle and a uniform barycentric location on it.
func (tp *triPicker) pick(rng *geom.Rand) (int, [3]float64) {
	x := rng.Float64() * tp.total()
	// The first triangle whose cumulative weight exceeds x; zero-weight
	// triangles are never selected.
	i := sort.Search(len(tp.cum), func(i int) bool { return tp.cum[i] > x })
	if i >= len(tp.cum) {
		i = len(tp.cum) - 1
	}
	u, v, w := geom.UniformBarycentric(rng.Float64(), rng.Float64())
	return i, [3]float64{u, v, w}
}

// meshPoint builds the point at bary on triangle tri of m.
func meshPoint(m *surface.Mesh, id uint64, tri int, bary [3]float64) scatter.Point {
	a, b, c := m.TriWorld(tri)
	pos := geom.Barycentric(a, b, c, bary[0], bary[1], bary[2])
	p := scatter.NewPoint(id, pos, geom.TriangleNormal(a, b, c))
	p.Tangent = geom.Orthonormalize(p.Normal, m.Transform.Vector(geom.AxisY))
	p.Surface = m.ID
	p.Tri = tri
	p.Face = m.Topo().Tris[tri].Face
	p.Bary = bary
	return p
}

// surfaceCounts returns how many points each mesh receives for a density or
// an exact total split by area.
func (r *run) surfaceCounts(isCount bool, count int, density float64, space scatter.Space) []int {
	boost := r.in.Group.DensityFactor()
	areas := make([]float64, len(r.mesh))
	for i, m := range r.mesh {
		areas[i] = m.Area(space == scatter.SpaceGlobal)
	}
	if isCount {
		return apportion(int(math.Round(float64(count)*boost)), areas)
	}
	out := make([]int, len(r.mesh))
	for i, a := range areas {
		out[i] = densityCount(density*boost, a)
	}
	return out
}

// scatterOn draws counts[i] area-uniform points on each mesh.
func (r *run) scatterOn(counts []int, feature string, seed int) ([]scatter.Point, error) {
	n := 0
	for _, c := range counts {
		n += c
	}
	if err := r.reserve(n); err != nil {
		return nil, err
	}
	pts := make([]scatter.Point, 0, n)
	for i, m := range r.mesh {
		if counts[i] == 0 {
			continue
		}
		tp := newTriPicker(m, m.Topo().WorldArea)
		if tp.total() <= 0 {
			continue
		}
		rng := geom.NewRand(r.seed(feature, seed, m.Name))
		for k := 0; k < counts[i]; k++ {
			if err := r.tick(); err != nil {
				return nil, err
			}
			tri, bary := tp.pick(rng)
			pts = append(pts, meshPoint(m, pointID(m.ID, k), tri, bary))
		}
	}
	return pts, nil
}

func (r *run) random() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	d := &r.sys.Distribution
	counts := r.surfaceCounts(d.IsCount, d.Count, d.Density, d.Space)
	pts, err := r.scatterOn(counts, "s_distribution", d.Seed)
	if err != nil {
		return nil, err
	}
	return r.limit(pts, d.LimitDistanceAllow, d.LimitDistance), nil
}

// stable samples uniformly in UV space. Positions are recovered from the
// barycentric location, so points ride along when the surface deforms.
func (r *run) stable() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	st := &r.sys.Distribution.Stable
	for _, m := range r.mesh {
		if !m.HasUVMap(st.UVPtr) {
			return nil, r.errorf(scatter.KindMissingAttribute, "s_distribution_stable_uv_ptr",
				"uv map %q missing on surface %q", st.UVPtr, m.Name)
		}
	}
	counts := r.surfaceCounts(st.IsCount, st.Count, st.Density, scatter.SpaceLocal)
	total := 0
	for _, c := range counts {
		total += c
	}
	if err := r.reserve(total); err != nil {
		return nil, err
	}
	var pts []scatter.Point
	for i, m := range r.mesh {
		uvs, mapped := r.in.Attrs.UVTriangles(m, st.UVPtr)
		weights := make([]float64, len(uvs))
		for t, c := range uvs {
			if mapped[t] {
				weights[t] = uvArea(c)
			}
		}
		tp := newTriPicker(m, weights)
		if tp.total() <= 0 {
			continue
		}
		rng := geom.NewRand(r.seed("s_distribution_stable", st.Seed, m.Name))
		for k := 0; k < counts[i]; k++ {
			if err := r.tick(); err != nil {
				return nil, err
			}
			tri, bary := tp.pick(rng)
			c := uvs[tri]
			u := bary[0]*c[0][0] + bary[1]*c[1][0] + bary[2]*c[2][0]
			v := bary[0]*c[0][1] + bary[1]*c[1][1] + bary[2]*c[2][1]
			if u < 0 || u > 1 || v < 0 || v > 1 {
				continue
			}
			pts = append(pts, meshPoint(m, pointID(m.ID, k), tri, bary))
		}
	}
	return r.limit(pts, st.LimitDistanceAllow, st.LimitDistance), nil
}

func uvArea(c [3][2]float64) float64 {
	return math.Abs((c[1][0]-c[0][0])*(c[2][1]-c[0][1])-(c[2][0]-c[0][0])*(c[1][1]-c[0][1])) / 2
}

// clumping scatters clump parents, then children around each parent within
// the clump radius plus its transition band.
func (r *run) clumping() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	c := &r.sys.Distribution.Clump
	counts := r.surfaceCounts(false, 0, c.Density, c.Space)
	parents, err := r.scatterOn(counts, "s_distribution_clump", c.Seed)
	if err != nil {
		return nil, err
	}
	parents = r.limit(parents, c.LimitDistanceAllow, c.LimitDistance)

	var curve *geom.CurveMap
	if c.RemapAllow {
		curve = geom.NewCurveMap(c.RemapData)
	}
	fallSeed := r.sys.Seed("s_distribution_clump_fallnoisy", c.NoisySeed)
	radiusSeed := r.sys.Seed("s_distribution_clump_random_factor", c.Seed)
	bvh := r.surfaceBVH()
	boost := r.in.Group.DensityFactor()

	var pts []scatter.Point
	for _, parent := range parents {
		radius := c.MaxDistance * (1 - c.RandomFactor*0.5*geom.Hash01(radiusSeed, parent.ID))
		outer := radius + c.Transition
		n := densityCount(c.ChildrenDensity*boost, math.Pi*outer*outer)
		if err := r.reserve(n); err != nil {
			return nil, err
		}
		rng := geom.NewRand(geom.MixSeed(r.sys.Seed("s_distribution_clump_children", c.ChildrenSeed), parent.ID))
		side := geom.Orthonormalize(parent.Normal, parent.Tangent)
		bi := r3.Cross(parent.Normal, side)
		var children []scatter.Point
		for k := 0; k < n; k++ {
			if err := r.tick(); err != nil {
				return nil, err
			}
			x, y := rng.Disk()
			guess := r3.Add(parent.Pos, r3.Add(r3.Scale(x*outer, side), r3.Scale(y*outer, bi)))
			keepRoll := rng.Float64()
			h, ok := bvh.Closest(guess, outer)
			if !ok {
				continue
			}
			dist := geom.Dist(h.Pos, parent.Pos)
			if dist > outer {
				continue
			}
			if dist > radius && c.Transition > 0 {
				fade := 1 - mask.ApplyFalloff(&c.Falloff, curve, fallSeed, (dist-radius)/c.Transition, h.Pos)
				if keepRoll >= fade {
					continue
				}
			}
			child := scatter.NewPoint(geom.Hash64(parent.ID, uint64(k)), h.Pos, h.Normal)
			child.Tangent = parent.Tangent
			onHit(&child, h)
			child.ClumpID = int64(parent.ID)
			child.ClumpDist = dist
			children = append(children, child)
		}
		pts = append(pts, r.limit(children, c.ChildrenLimitDistanceAllow, c.ChildrenLimitDistance)...)
	}
	return pts, nil
}

// verts emits one point per vertex.
func (r *run) verts() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	var pts []scatter.Point
	for _, m := range r.mesh {
		topo := m.Topo()
		if err := r.reserve(len(m.Verts)); err != nil {
			return nil, err
		}
		// First triangle and corner using each vertex.
		at := make([][2]int, len(m.Verts))
		for i := range at {
			at[i] = [2]int{-1, 0}
		}
		for t, tr := range topo.Tris {
			for k, v := range tr.V {
				if at[v][0] < 0 {
					at[v] = [2]int{t, k}
				}
			}
		}
		for i := range m.Verts {
			if err := r.tick(); err != nil {
				return nil, err
			}
			p := scatter.NewPoint(pointID(m.ID, i), m.WorldVert(i), m.Transform.Normal(topo.VertNormal[i]))
			p.Tangent = geom.Orthonormalize(p.Normal, m.Transform.Vector(geom.AxisY))
			p.Surface = m.ID
			if t := at[i][0]; t >= 0 {
				p.Tri = t
				p.Face = topo.Tris[t].Face
				p.Bary[at[i][1]] = 1
			}
			pts = append(pts, p)
		}
	}
	return pts, nil
}

// faces emits one point per face at its center, weighted by its area.
func (r *run) faces() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	world := r.sys.Distribution.VFESpace == scatter.SpaceGlobal
	var pts []scatter.Point
	for _, m := range r.mesh {
		topo := m.Topo()
		if err := r.reserve(len(m.Faces)); err != nil {
			return nil, err
		}
		first := make([]int, len(m.Faces))
		area := make([]float64, len(m.Faces))
		for i := range first {
			first[i] = -1
		}
		for t, tr := range topo.Tris {
			if first[tr.Face] < 0 {
				first[tr.Face] = t
			}
			if world {
				area[tr.Face] += topo.WorldArea[t]
			} else {
				area[tr.Face] += topo.LocalArea[t]
			}
		}
		for f := range m.Faces {
			if err := r.tick(); err != nil {
				return nil, err
			}
			if first[f] < 0 {
				continue
			}
			p := scatter.NewPoint(pointID(m.ID, f), m.FaceCenter(f), m.FaceNormal(f))
			p.Tangent = geom.Orthonormalize(p.Normal, m.Transform.Vector(geom.AxisY))
			p.Surface = m.ID
			p.Face = f
			p.Weight = area[f]
			// Attribute lookups read the first triangle of the face.
			a, b, c := m.TriWorld(first[f])
			_, w := geom.ClosestOnTriangle(p.Pos, a, b, c)
			p.Tri, p.Bary = first[f], w
			pts = append(pts, p)
		}
	}
	return pts, nil
}

// edges emits one point per selected edge, weighted by its length.
func (r *run) edges() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	d := &r.sys.Distribution
	world := d.VFESpace == scatter.SpaceGlobal
	var pts []scatter.Point
	for _, m := range r.mesh {
		topo := m.Topo()
		faceTris := make([][]int, len(m.Faces))
		for t, tr := range topo.Tris {
			faceTris[tr.Face] = append(faceTris[tr.Face], t)
		}
		rng := geom.NewRand(r.seed("s_distribution_edges", d.Edges.Seed, m.Name))
		for i, e := range topo.Edges {
			if err := r.tick(); err != nil {
				return nil, err
			}
			switch d.Edges.Selection {
			case scatter.EdgesBoundary:
				if !e.IsBoundary() {
					continue
				}
			case scatter.EdgesUnconnected:
				if !e.IsLoose() {
					continue
				}
			}
			t := 0.5
			if d.Edges.Position == scatter.EdgeAlong {
				t = rng.Float64()
			}
			a, b := m.WorldVert(e.A), m.WorldVert(e.B)
			normal := geom.Zero
			for _, f := range e.Faces {
				normal = r3.Add(normal, m.FaceNormal(f))
			}
			dir := r3.Sub(b, a)
			if r3.Norm2(normal) < 1e-18 {
				normal = geom.Perpendicular(geom.Unit(dir, geom.AxisX))
			}
			p := scatter.NewPoint(pointID(m.ID, i), geom.LerpVec(a, b, t), normal)
			p.Tangent = geom.Orthonormalize(p.Normal, dir)
			p.Surface = m.ID
			p.Weight = r3.Norm(dir)
			if !world {
				p.Weight = geom.Dist(m.Verts[e.A], m.Verts[e.B])
			}
			if len(e.Faces) > 0 {
				p.Face = e.Faces[0]
				p.Tri, p.Bary = edgeTri(topo, faceTris[e.Faces[0]], e, t)
			}
			if err := r.reserve(1); err != nil {
				return nil, err
			}
			pts = append(pts, p)
		}
	}
	return pts, nil
}

// edgeTri finds the triangle of a face holding both ends of e and the
// barycentric location of the point at t along it.
func edgeTri(topo *surface.Topology, tris []int, e surface.Edge, t float64) (int, [3]float64) {
	for _, ti := range tris {
		var bary [3]float64
		found := 0
		for k, v := range topo.Tris[ti].V {
			switch v {
			case e.A:
				bary[k] = 1 - t
				found++
			case e.B:
				bary[k] = t
				found++
			}
		}
		if found == 2 {
			return ti, bary
		}
	}
	return -1, [3]float64{}
}
