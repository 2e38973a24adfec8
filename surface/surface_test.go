package surface

import (
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
)

func TestGridArea(t *testing.T) {
	m := Grid("g", 10, 10, 4, 4)
	if got := m.Area(false); math.Abs(got-100) > 1e-9 {
		t.Errorf("local area = %v, want 100", got)
	}
	m.Transform.Scale = geom.V(2, 2, 1)
	m.Touch()
	if got := m.Area(true); math.Abs(got-400) > 1e-9 {
		t.Errorf("world area = %v, want 400", got)
	}
	if got := m.Area(false); math.Abs(got-100) > 1e-9 {
		t.Errorf("local area after scaling = %v, want 100", got)
	}
}

func TestCubeTopology(t *testing.T) {
	m := Cube("c", 2)
	topo := m.Topo()
	if len(topo.Tris) != 12 {
		t.Fatalf("tris = %d, want 12", len(topo.Tris))
	}
	for i, e := range topo.Edges {
		if e.IsBoundary() {
			t.Errorf("edge %d is boundary on a closed cube", i)
		}
	}
	// Every face normal points away from the center.
	for f := range m.Faces {
		n := m.FaceNormal(f)
		c := m.FaceCenter(f)
		if n.X*c.X+n.Y*c.Y+n.Z*c.Z <= 0 {
			t.Errorf("face %d normal %v points inward", f, n)
		}
	}
}

func TestGridBoundary(t *testing.T) {
	m := Grid("g", 2, 2, 2, 2)
	topo := m.Topo()
	// 3x3 vertices; only the center is interior.
	interior := 0
	for _, b := range topo.Boundary {
		if !b {
			interior++
		}
	}
	if interior != 1 {
		t.Errorf("interior vertices = %d, want 1", interior)
	}
}

func TestTopologyCachedByRev(t *testing.T) {
	m := Plane("p", 1)
	a := m.Topo()
	if m.Topo() != a {
		t.Error("topology rebuilt without a revision change")
	}
	m.Touch()
	if m.Topo() == a {
		t.Error("topology not rebuilt after Touch")
	}
}

func TestBVHQueries(t *testing.T) {
	cube := Cube("c", 2)
	b := NewBVH(cube)

	h, ok := b.Raycast(geom.V(0, 0, 5), geom.V(0, 0, -1), 100)
	if !ok || math.Abs(h.Dist-4) > 1e-9 {
		t.Fatalf("raycast hit=%v dist=%v, want 4", ok, h.Dist)
	}
	if math.Abs(h.Normal.Z-1) > 1e-9 {
		t.Errorf("hit normal = %v, want +Z", h.Normal)
	}
	if _, ok := b.Raycast(geom.V(5, 5, 5), geom.V(0, 0, 1), 100); ok {
		t.Error("ray pointing away should miss")
	}

	c, ok := b.Closest(geom.V(3, 0, 0), math.Inf(1))
	if !ok || math.Abs(c.Dist-2) > 1e-9 {
		t.Errorf("closest dist = %v, want 2", c.Dist)
	}

	if !b.Inside(geom.V(0.1, 0.2, 0.3)) {
		t.Error("center should be inside the cube")
	}
	if b.Inside(geom.V(3, 0, 0)) {
		t.Error("point outside reported inside")
	}
	if d := b.SignedDistance(geom.V(0, 0, 0.5)); math.Abs(d+0.5) > 1e-9 {
		t.Errorf("signed distance = %v, want -0.5", d)
	}
}

func TestCurvePolylineLength(t *testing.T) {
	c := &Curve{Name: "line", Transform: geom.IdentityTransform()}
	c.Splines = []Spline{{Points: []BezierPoint{
		{Co: geom.V(0, 0, 0), HandleLeft: geom.V(0, 0, 0), HandleRight: geom.V(0, 0, 0), Radius: 1},
		{Co: geom.V(10, 0, 0), HandleLeft: geom.V(10, 0, 0), HandleRight: geom.V(10, 0, 0), Radius: 1},
	}}}
	if got := c.Length(0, 8); math.Abs(got-10) > 1e-9 {
		t.Errorf("length = %v, want 10", got)
	}
	mid := At(c.Polyline(0, 8), 5)
	if geom.Dist(mid.Pos, geom.V(5, 0, 0)) > 1e-9 {
		t.Errorf("At(5) = %v", mid.Pos)
	}
}

func square(size float64) *Curve {
	h := size / 2
	var pts []BezierPoint
	for _, p := range []geom.Vec{geom.V(-h, -h, 0), geom.V(h, -h, 0), geom.V(h, h, 0), geom.V(-h, h, 0)} {
		pts = append(pts, BezierPoint{Co: p, HandleLeft: p, HandleRight: p, Radius: 1})
	}
	return &Curve{Name: "sq", Transform: geom.IdentityTransform(), Splines: []Spline{{Points: pts, Cyclic: true}}}
}

func TestClosedArea(t *testing.T) {
	a := square(4).ClosedArea(4)
	if math.Abs(a.LocalArea()-16) > 1e-9 {
		t.Errorf("area = %v, want 16", a.LocalArea())
	}
	if !a.Contains(0, 0) || a.Contains(3, 0) {
		t.Error("containment wrong")
	}
}

func TestImageSample(t *testing.T) {
	pix := [][4]float64{
		{0, 0, 0, 1}, {1, 1, 1, 1},
		{0, 0, 0, 1}, {1, 1, 1, 1},
	}
	im := NewImage("i", 2, 2, pix, WrapExtend)
	left := im.Sample(0.1, 0.5)
	right := im.Sample(0.9, 0.5)
	if left[0] > 0.01 || right[0] < 0.99 {
		t.Errorf("left=%v right=%v", left, right)
	}
	mid := im.Sample(0.5, 0.5)
	if math.Abs(mid[0]-0.5) > 1e-9 {
		t.Errorf("bilinear midpoint = %v, want 0.5", mid[0])
	}
	clip := NewImage("c", 2, 2, pix, WrapClip)
	if got := clip.Sample(1.5, 0.5); got[3] != 0 {
		t.Errorf("clipped sample alpha = %v, want 0", got[3])
	}
}

func TestParseScene(t *testing.T) {
	data := []byte(`{
		"frame": 5,
		"objects": [
			{"name": "Ground", "type": "mesh", "primitive": "grid", "size": [10, 10], "subdivisions": [2, 2]},
			{"name": "Rock", "type": "mesh", "primitive": "cube", "size": [1], "location": [1, 2, 0]},
			{"name": "Marker", "type": "empty", "location": [3, 0, 0]}
		],
		"collections": {"Rocks": ["Rock", "Ghost"]},
		"camera": {"location": [0, -10, 5], "target": [0, 0, 0], "fov_deg": 60}
	}`)
	s, err := ParseScene(data, ".")
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	g, ok := s.Mesh("Ground")
	if !ok || math.Abs(g.Area(true)-100) > 1e-9 {
		t.Fatalf("ground missing or wrong area")
	}
	objs, missing, ok := s.Collection("Rocks")
	if !ok || len(objs) != 1 || len(missing) != 1 || missing[0] != "Ghost" {
		t.Errorf("collection = %v %v %v", objs, missing, ok)
	}
	if s.Camera == nil {
		t.Error("camera not parsed")
	}
	if s.Frame != 5 {
		t.Errorf("frame = %v, want 5", s.Frame)
	}
	if _, err := ParseScene([]byte(`{"objects":[{"name":"x","type":"blob"}]}`), "."); err == nil {
		t.Error("expected error for unknown object type")
	}
}
