package fields

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

func (b *builder) abiotic(a *scatter.AbioticCategory) {
	if a.Elev.Allow {
		b.elevation(&a.Elev)
	}
	if a.Slope.Allow {
		s := &a.Slope
		b.add(gauge{
			feature: "s_abiotic_slope", falloff: &s.Falloff, infl: &s.Influence, mask: &s.Mask,
			eval: func(p *scatter.Point) (float64, geom.Vec) {
				n := b.normal(p, s.Space, s.SmoothingAllow, s.SmoothingValue)
				angle := geom.Angle(n, geom.AxisZ)
				if s.Absolute && angle > math.Pi/2 {
					angle = math.Pi - angle
				}
				return band(angle, s.MinValue, s.MinFalloff, s.MaxValue, s.MaxFalloff), geom.Zero
			},
		})
	}
	if a.Dir.Allow {
		d := &a.Dir
		dir := geom.Unit(d.Direction, geom.AxisZ)
		b.add(gauge{
			feature: "s_abiotic_dir", falloff: &d.Falloff, infl: &d.Influence, mask: &d.Mask,
			eval: func(p *scatter.Point) (float64, geom.Vec) {
				n := b.normal(p, d.Space, d.SmoothingAllow, d.SmoothingValue)
				return band(geom.Angle(n, dir), 0, 0, d.Threshold, d.Max), geom.Zero
			},
		})
	}
	if a.Cur.Allow {
		b.curvature(&a.Cur)
	}
	if a.Border.Allow {
		b.border(&a.Border)
	}
}

// normal returns the point normal in the requested space, optionally
// blended toward the interpolated vertex normals.
func (b *builder) normal(p *scatter.Point, space scatter.Space, smooth bool, amount float64) geom.Vec {
	n := p.Normal
	m := b.ev.Attrs.Mesh(p)
	if smooth && m != nil && p.Tri >= 0 {
		n = geom.Unit(geom.LerpVec(n, m.SmoothNormal(p.Tri, p.Bary), geom.Clamp01(amount)), n)
	}
	if space == scatter.SpaceLocal && m != nil {
		n = m.Transform.InverseNormal(n)
	}
	return n
}

func (b *builder) elevation(el *scatter.AbioticElev) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range b.meshes() {
		box := m.Topo().Bounds
		if el.Space == scatter.SpaceLocal {
			box = m.Topo().LocalBox
		}
		lo = math.Min(lo, box.Min.Z)
		hi = math.Max(hi, box.Max.Z)
	}
	b.add(gauge{
		feature: "s_abiotic_elev", falloff: &el.Falloff, infl: &el.Influence, mask: &el.Mask,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			z := b.ev.Attrs.Position(p, el.Space).Z
			if el.Method == scatter.ElevPercentage {
				if hi <= lo {
					z = 0
				} else {
					z = (z - lo) / (hi - lo) * 100
				}
			}
			return band(z, el.MinValue, el.MinFalloff, el.MaxValue, el.MaxFalloff), geom.Zero
		},
	})
}

// curvature keeps points by signed mean curvature, in percent of the
// strongest curvature of their surface.
func (b *builder) curvature(c *scatter.AbioticCur) {
	var tables sync.Map // *surface.Mesh -> []float64
	table := func(m *surface.Mesh) []float64 {
		if v, ok := tables.Load(m); ok {
			return v.([]float64)
		}
		v, _ := tables.LoadOrStore(m, curvaturePercent(m, c.SmoothingAllow, c.SmoothingValue))
		return v.([]float64)
	}
	b.add(gauge{
		feature: "s_abiotic_cur", falloff: &c.Falloff, infl: &c.Influence, mask: &c.Mask,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			m := b.ev.Attrs.Mesh(p)
			if m == nil || p.Tri < 0 {
				return 1, geom.Zero
			}
			tr := m.Topo().Tris[p.Tri]
			pct := table(m)
			x := p.Bary[0]*pct[tr.V[0]] + p.Bary[1]*pct[tr.V[1]] + p.Bary[2]*pct[tr.V[2]]
			switch c.Type {
			case scatter.CurvConcave:
				x = -x
			case scatter.CurvBoth:
				x = math.Abs(x)
			}
			return geom.Ramp(x, c.Threshold, c.Max-c.Threshold), geom.Zero
		},
	})
}

// curvaturePercent normalizes vertex curvature to [-100, 100], optionally
// averaged with the one-ring neighborhood.
func curvaturePercent(m *surface.Mesh, smooth bool, amount float64) []float64 {
	topo := m.Topo()
	cur := topo.Curvature
	if smooth && amount > 0 {
		s := geom.Clamp01(amount)
		out := make([]float64, len(cur))
		for i, c := range cur {
			nb := topo.Neighbors[i]
			if len(nb) == 0 {
				out[i] = c
				continue
			}
			mean := 0.0
			for _, j := range nb {
				mean += cur[j]
			}
			out[i] = (1-s)*c + s*mean/float64(len(nb))
		}
		cur = out
	}
	peak := 0.0
	for _, c := range cur {
		peak = math.Max(peak, math.Abs(c))
	}
	pct := make([]float64, len(cur))
	if peak == 0 {
		return pct
	}
	for i, c := range cur {
		pct[i] = c / peak * 100
	}
	return pct
}

// border fades points out near the open boundary of their surface.
func (b *builder) border(bd *scatter.AbioticBorder) {
	var indexes sync.Map // *surface.Mesh -> *geom.PointIndex
	local := bd.Space == scatter.SpaceLocal
	spacing := math.Max((bd.Threshold+bd.Max)/16, 1e-3)
	index := func(m *surface.Mesh) *geom.PointIndex {
		if v, ok := indexes.Load(m); ok {
			return v.(*geom.PointIndex)
		}
		v, _ := indexes.LoadOrStore(m, boundaryIndex(m, local, spacing))
		return v.(*geom.PointIndex)
	}
	b.add(gauge{
		feature: "s_abiotic_border", falloff: &bd.Falloff, infl: &bd.Influence, mask: &bd.Mask,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			m := b.ev.Attrs.Mesh(p)
			if m == nil {
				return 1, geom.Zero
			}
			pos := p.Pos
			if local {
				pos = m.Transform.InversePoint(pos)
			}
			d := index(m).NearestDist(pos)
			return geom.Ramp(d, bd.Threshold, bd.Max), geom.Zero
		},
	})
}

// maxBorderSamples bounds the densified boundary of one mesh.
const maxBorderSamples = 200_000

// boundaryIndex densifies the boundary edges of m into an index.
func boundaryIndex(m *surface.Mesh, local bool, spacing float64) *geom.PointIndex {
	topo := m.Topo()
	vert := m.WorldVert
	if local {
		vert = func(i int) geom.Vec { return m.Verts[i] }
	}
	total := 0.0
	for _, e := range topo.Edges {
		if e.IsBoundary() {
			total += geom.Dist(vert(e.A), vert(e.B))
		}
	}
	if total/spacing > maxBorderSamples {
		spacing = total / maxBorderSamples
	}
	var pts []geom.Vec
	for _, e := range topo.Edges {
		if !e.IsBoundary() {
			continue
		}
		a, c := vert(e.A), vert(e.B)
		n := max(1, int(math.Ceil(geom.Dist(a, c)/spacing)))
		for k := 0; k <= n; k++ {
			pts = append(pts, r3.Add(a, r3.Scale(float64(k)/float64(n), r3.Sub(c, a))))
		}
	}
	return geom.NewPointIndex(pts)
}
