package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

func (s *Stage) prepareRotation() {
	rot := &s.sys.Rotation
	if !rot.Master {
		return
	}
	if rot.AlignZ.Allow && rot.AlignZ.Method == scatter.AlignObject {
		s.alignZObj = s.lookupObject(rot.AlignZ.Object, "s_rot_align_z_object")
	}
	if y := &rot.AlignY; y.Allow {
		switch y.Method {
		case scatter.AlignObject:
			s.alignYObj = s.lookupObject(y.Object, "s_rot_align_y_object")
		case scatter.AlignBoundary:
			s.boundary = newBoundaryIndex(s.ev.Surfaces)
		case scatter.AlignFlowmap:
			s.flowImage = s.flowSource(y.FlowMethod, y.VColPtr, y.TexturePtr, y.UVPtr, "s_rot_align_y")
		}
	}
	if t := &rot.Tilt; t.Allow {
		s.tiltImage = s.flowSource(t.Method, t.VColPtr, t.TexturePtr, t.UVPtr, "s_rot_tilt")
	}
}

func (s *Stage) lookupObject(name, feature string) *surface.Object {
	o, ok := s.sc.Object(name)
	if !ok {
		s.report(scatter.KindInvalidReference, feature, "object %q not found", name)
		return nil
	}
	return o
}

// flowSource checks a flowmap's inputs. It returns the image for texture
// flowmaps; vertex-color and noise flowmaps need none.
func (s *Stage) flowSource(src scatter.FlowSource, vcol, tex, uv, feature string) *surface.Image {
	switch src {
	case scatter.FlowVCol:
		_, err := transfer.Shared(s.ev.Surfaces, transfer.AttrColor, vcol, s.sys.ID, feature+"_vcol_ptr")
		s.ev.Report.Add(err)
	case scatter.FlowTexture:
		im, ok := s.sc.Image(tex)
		if !ok {
			s.report(scatter.KindInvalidReference, feature+"_texture_ptr", "image %q not found", tex)
			return nil
		}
		_, err := transfer.Shared(s.ev.Surfaces, transfer.AttrUV, uv, s.sys.ID, feature+"_uv_ptr")
		s.ev.Report.Add(err)
		return im
	}
	return nil
}

func (s *Stage) report(kind scatter.Kind, feature, format string, args ...any) {
	s.ev.Report.Add(scatter.Errorf(kind, s.sys.ID, feature, format, args...))
}

// flowColor reads a flowmap color at p. Missing data reads as a neutral
// color with no direction.
func (s *Stage) flowColor(p *scatter.Point, src scatter.FlowSource, vcol, uv string, im *surface.Image, scale float64, space scatter.Space, feature string) [4]float64 {
	switch src {
	case scatter.FlowVCol:
		c, ok := s.ev.Attrs.Color(p, vcol)
		if !ok {
			return [4]float64{0.5, 0.5, 0, 1}
		}
		return c
	case scatter.FlowTexture:
		if im == nil {
			return [4]float64{0.5, 0.5, 0, 1}
		}
		c, _ := s.ev.Attrs.UV(p, uv)
		return im.Sample(c[0], c[1])
	}
	pos := s.ev.Attrs.Position(p, space)
	seed := int64(s.sys.Seed(feature+"_noise", 0))
	r := noise.Texture{Scale: scale, Seed: seed, Octaves: 2}.Sample(pos)
	g := noise.Texture{Scale: scale, Seed: seed + 1, Octaves: 2}.Sample(pos)
	return [4]float64{r, g, 1, 1}
}

func (s *Stage) rotate(p *scatter.Point) {
	rot := &s.sys.Rotation
	if rot.AlignZ.Allow || rot.AlignY.Allow {
		z := geom.Rotate(p.Rot, geom.AxisZ)
		if rot.AlignZ.Allow {
			z = s.alignZ(p, &rot.AlignZ)
		}
		y := geom.Rotate(p.Rot, geom.AxisY)
		if rot.AlignY.Allow {
			y = s.alignY(p, &rot.AlignY, z)
		}
		p.Rot = geom.LookAlong(z, y)
	}
	if r := &rot.Random; r.Allow {
		const feature = "s_rot_random"
		if k := s.strength(&r.Mask, feature, p); k > 0 {
			tilt := r.TiltValue * math.Pi * s.signed(feature, r.Seed, 0, p) * k
			yaw := r.YawValue * 2 * math.Pi * s.rand(feature, r.Seed, 1, p) * k
			z := geom.Rotate(p.Rot, geom.AxisZ)
			y := geom.Rotate(p.Rot, geom.AxisY)
			p.Rot = geom.Compose(geom.AxisAngle(z, yaw), geom.Compose(geom.AxisAngle(y, tilt), p.Rot))
		}
	}
	if a := &rot.Add; a.Allow {
		const feature = "s_rot_add"
		if k := s.strength(&a.Mask, feature, p); k > 0 {
			e := r3.Add(a.Default, geom.Mul(a.Random, geom.V(
				s.signed(feature, a.Seed, 0, p), s.signed(feature, a.Seed, 1, p), s.signed(feature, a.Seed, 2, p))))
			e = r3.Scale(k, geom.Snap(e, a.Snap))
			p.Rot = geom.Compose(p.Rot, geom.Euler(e))
		}
	}
	if t := &rot.Tilt; t.Allow {
		s.tilt(p, t)
	}
	syncAxes(p)
}

func (s *Stage) alignZ(p *scatter.Point, a *scatter.AlignZ) geom.Vec {
	z := p.Normal
	switch a.Method {
	case scatter.AlignNormal:
		if m := s.ev.Attrs.Mesh(p); a.SmoothingAllow && m != nil && p.Tri >= 0 {
			z = geom.Unit(geom.LerpVec(z, m.SmoothNormal(p.Tri, p.Bary), geom.Clamp01(a.SmoothingValue)), z)
		}
	case scatter.AlignLocal:
		z = s.surfaceTransform(p).Normal(geom.AxisZ)
	case scatter.AlignGlobal:
		z = geom.AxisZ
	case scatter.AlignObject:
		if s.alignZObj != nil {
			z = geom.Unit(r3.Sub(s.alignZObj.Location(), p.Pos), z)
		}
	case scatter.AlignRandom:
		z = s.randomDir("s_rot_align_z_random", a.RandomSeed, p)
	case scatter.AlignOrigin:
		z = geom.Unit(r3.Sub(p.Pos, s.surfaceTransform(p).Loc), z)
	case scatter.AlignCamera:
		if s.sc.Camera != nil {
			z = geom.Unit(r3.Sub(s.sc.Camera.Loc, p.Pos), z)
		}
	}
	if a.Revert {
		z = r3.Scale(-1, z)
	}
	if a.InfluenceAllow && a.InfluenceValue != 0 {
		// Negative values lean away from up.
		z = geom.Unit(geom.LerpVec(z, geom.AxisZ, geom.Clamp(a.InfluenceValue, -1, 1)), z)
	}
	if c, ok := s.clumps[p.ClumpID]; a.ClumpAllow && ok && c.maxDist > 0 {
		out := r3.Sub(p.Pos, c.centre)
		out.Z = 0
		if r3.Norm2(out) > 0 {
			t := geom.Clamp01(p.ClumpDist/c.maxDist) * a.ClumpValue
			z = geom.Unit(geom.LerpVec(z, r3.Unit(out), t), z)
		}
	}
	return z
}

func (s *Stage) alignY(p *scatter.Point, a *scatter.AlignY, z geom.Vec) geom.Vec {
	y := p.Tangent
	switch a.Method {
	case scatter.AlignGlobal:
		y = geom.AxisY
	case scatter.AlignLocal:
		y = s.surfaceTransform(p).Vector(geom.AxisY)
	case scatter.AlignObject:
		if s.alignYObj != nil {
			y = r3.Sub(s.alignYObj.Location(), p.Pos)
		}
	case scatter.AlignRandom:
		angle := 2 * math.Pi * s.rand("s_rot_align_y_random", a.RandomSeed, 0, p)
		base := geom.Perpendicular(z)
		y = geom.Rotate(geom.AxisAngle(z, angle), base)
	case scatter.AlignOrigin:
		y = r3.Sub(p.Pos, s.surfaceTransform(p).Loc)
	case scatter.AlignCamera:
		if s.sc.Camera != nil {
			y = r3.Sub(s.sc.Camera.Loc, p.Pos)
		}
	case scatter.AlignDownslope:
		n := p.Normal
		if m := s.ev.Attrs.Mesh(p); a.DownslopeSmoothingAllow && m != nil && p.Tri >= 0 {
			n = geom.Unit(geom.LerpVec(n, m.SmoothNormal(p.Tri, p.Bary), geom.Clamp01(a.DownslopeSmoothingValue)), n)
		}
		up := geom.AxisZ
		if a.DownslopeSpace == scatter.SpaceLocal {
			up = s.surfaceTransform(p).Normal(geom.AxisZ)
		}
		// Steepest descent within the tangent plane.
		y = r3.Scale(-1, r3.Sub(up, r3.Scale(r3.Dot(up, n), n)))
	case scatter.AlignBoundary:
		if s.boundary != nil {
			if d, ok := s.boundary.direction(p.Pos); ok {
				y = d
			}
		}
	case scatter.AlignFlowmap:
		c := s.flowColor(p, a.FlowMethod, a.VColPtr, a.UVPtr, s.flowImage, 1, scatter.SpaceGlobal, "s_rot_align_y_flow")
		dir := geom.V(2*c[0]-1, 2*c[1]-1, 0)
		y = geom.Rotate(geom.AxisAngle(geom.AxisZ, a.FlowDirection), dir)
	}
	if a.Revert {
		y = r3.Scale(-1, y)
	}
	return geom.Orthonormalize(z, y)
}

// randomDir is a uniformly distributed unit vector.
func (s *Stage) randomDir(feature string, seed int, p *scatter.Point) geom.Vec {
	z := s.signed(feature, seed, 0, p)
	phi := 2 * math.Pi * s.rand(feature, seed, 1, p)
	r := math.Sqrt(math.Max(0, 1-z*z))
	return geom.V(r*math.Cos(phi), r*math.Sin(phi), z)
}

// tilt leans points along a flowmap direction. The blue channel scales the
// lean by BlueInfluence.
func (s *Stage) tilt(p *scatter.Point, t *scatter.RotTilt) {
	const feature = "s_rot_tilt"
	k := s.strength(&t.Mask, feature, p)
	if k == 0 {
		return
	}
	c := s.flowColor(p, t.Method, t.VColPtr, t.UVPtr, s.tiltImage, t.NoiseScale, t.NoiseSpace, feature)
	var dir geom.Vec
	if t.DirMethod == scatter.TiltDirFixed {
		dir = geom.V(math.Cos(t.Direction), math.Sin(t.Direction), 0)
	} else {
		dir = geom.V(2*c[0]-1, 2*c[1]-1, 0)
	}
	if r3.Norm2(dir) < 1e-12 {
		return
	}
	amount := k * t.Force * geom.Lerp(1, c[2], geom.Clamp01(t.BlueInfluence))
	axis := r3.Unit(r3.Cross(geom.AxisZ, dir))
	p.Rot = geom.Compose(geom.AxisAngle(axis, amount*math.Pi/2), p.Rot)
}

// boundaryIndex finds the nearest open mesh edge of the system's surfaces.
type boundaryIndex struct {
	grid *geom.SpatialGrid
	segs [][2]geom.Vec
	cell float64
}

func newBoundaryIndex(objs []*surface.Object) *boundaryIndex {
	var segs [][2]geom.Vec
	total := 0.0
	for _, o := range objs {
		if o.Kind != surface.KindMesh {
			continue
		}
		m := o.Mesh
		for _, e := range m.Topo().Edges {
			if e.IsBoundary() {
				a, b := m.WorldVert(e.A), m.WorldVert(e.B)
				segs = append(segs, [2]geom.Vec{a, b})
				total += geom.Dist(a, b)
			}
		}
	}
	if len(segs) == 0 {
		return nil
	}
	cell := math.Max(total/float64(len(segs)), 1e-6)
	g := geom.NewSpatialGrid(cell)
	for _, sg := range segs {
		g.Insert(geom.LerpVec(sg[0], sg[1], 0.5))
	}
	return &boundaryIndex{grid: g, segs: segs, cell: cell}
}

// direction returns the direction of the closest boundary edge to p.
func (b *boundaryIndex) direction(p geom.Vec) (geom.Vec, bool) {
	var nb []geom.Neighbor
	for r := b.cell; r < b.cell*1024; r *= 2 {
		nb = b.grid.QueryRadiusInto(nb[:0], p, r, -1)
		if len(nb) > 0 {
			// Midpoints are only a proxy; widen once to catch long edges.
			nb = b.grid.QueryRadiusInto(nb[:0], p, 2*r, -1)
			break
		}
	}
	best, bestDist := -1, math.Inf(1)
	if len(nb) == 0 {
		for i := range b.segs {
			nb = append(nb, geom.Neighbor{ID: i})
		}
	}
	for _, n := range nb {
		sg := b.segs[n.ID]
		if d, _ := geom.SegmentDistance(p, sg[0], sg[1]); d < bestDist {
			best, bestDist = n.ID, d
		}
	}
	if best < 0 {
		return geom.Zero, false
	}
	sg := b.segs[best]
	return geom.Unit(r3.Sub(sg[1], sg[0]), geom.AxisY), true
}
