package mask

import (
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

func TestSampleColor(t *testing.T) {
	red := [4]float64{1, 0, 0, 0.5}
	tests := []struct {
		name string
		c    [4]float64
		mode scatter.ColorSample
		want float64
	}{
		{"grey", [4]float64{1, 1, 1, 1}, scatter.SampleGrey, 1},
		{"r", red, scatter.SampleRed, 1},
		{"g", red, scatter.SampleGreen, 0},
		{"b", red, scatter.SampleBlue, 0},
		{"a", red, scatter.SampleAlpha, 0.5},
		{"black hit", [4]float64{0.005, 0, 0, 1}, scatter.SampleBlack, 1},
		{"black miss", [4]float64{0.2, 0, 0, 1}, scatter.SampleBlack, 0},
		{"white hit", [4]float64{1, 0.995, 1, 1}, scatter.SampleWhite, 1},
		{"white miss", red, scatter.SampleWhite, 0},
		{"id hit", [4]float64{0.95, 0.05, 0, 1}, scatter.SampleIDColor, 1},
		{"id miss", [4]float64{0.5, 0.5, 0, 1}, scatter.SampleIDColor, 0},
		{"hue of green", [4]float64{0, 1, 0, 1}, scatter.SampleHue, 1.0 / 3},
		{"saturation", red, scatter.SampleSat, 1},
		{"value", [4]float64{0.4, 0.2, 0.1, 1}, scatter.SampleValue, 0.4},
		{"lightness", red, scatter.SampleLight, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleColor(tt.c, tt.mode, [3]float64{1, 0, 0}, 0.1)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("SampleColor(%v, %s) = %v, want %v", tt.c, tt.mode, got, tt.want)
			}
		})
	}
}

func TestApplyFalloff(t *testing.T) {
	f := scatter.DefaultFalloff()
	for _, x := range []float64{0, 0.25, 0.5, 1} {
		if got := ApplyFalloff(&f, nil, 1, x, geom.Zero); math.Abs(got-x) > 1e-12 {
			t.Errorf("identity falloff(%v) = %v", x, got)
		}
	}

	f.RemapAllow = true
	f.RemapData = [][2]float64{{0, 0}, {0.5, 0.9}, {1, 1}}
	curve := geom.NewCurveMap(f.RemapData)
	if got := ApplyFalloff(&f, curve, 1, 0.5, geom.Zero); math.Abs(got-0.9) > 1e-9 {
		t.Errorf("remapped falloff(0.5) = %v, want 0.9", got)
	}
	f.RemapRevert = true
	if got := ApplyFalloff(&f, curve, 1, 0.5, geom.Zero); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("reverted falloff(0.5) = %v, want 0.1", got)
	}

	// Noise never moves the ends of the transition.
	f = scatter.DefaultFalloff()
	f.NoisyStrength = 1
	for _, x := range []float64{0, 1} {
		if got := ApplyFalloff(&f, nil, 7, x, geom.V(0.3, 0.7, 0)); got != x {
			t.Errorf("noisy falloff(%v) = %v", x, got)
		}
	}
}

// fixture is a 10x10 plane whose "half" group covers x > 0.
func fixture(t *testing.T) (*Evaluator, *surface.Mesh) {
	t.Helper()
	sc := surface.NewScene()
	m := surface.Grid("ground", 10, 10, 4, 1)
	w := make([]float64, len(m.Verts))
	for i, v := range m.Verts {
		if v.X > 0 {
			w[i] = 1
		}
	}
	m.VertexGroups = map[string][]float64{"half": w}
	sc.AddMesh(m)

	rock := surface.Cube("rock", 2)
	rock.Transform.Loc = geom.V(3, 0, 0)
	sc.AddMesh(rock)
	sc.Collections["rocks"] = []string{"rock"}

	sys := scatter.NewSystem("sys", "sys")
	sys.Surfaces = []string{"ground"}
	return NewEvaluator(sys, transfer.New(sc, nil), &scatter.Report{}), m
}

func at(m *surface.Mesh, pos geom.Vec) scatter.Point {
	p := scatter.NewPoint(1, pos, geom.AxisZ)
	p.Surface = m.ID
	// Locate the triangle under pos.
	topo := m.Topo()
	for i := range topo.Tris {
		a, b, c := m.TriWorld(i)
		_, w := geom.ClosestOnTriangle(pos, a, b, c)
		if q := geom.Barycentric(a, b, c, w[0], w[1], w[2]); geom.Dist(q, pos) < 1e-9 {
			p.Tri, p.Bary, p.Face = i, w, topo.Tris[i].Face
			break
		}
	}
	return p
}

func TestUniversalVertexGroup(t *testing.T) {
	ev, m := fixture(t)
	um := scatter.DefaultUniversalMask()
	um.Allow = true
	um.Ptr = "half"

	right := at(m, geom.V(4, 1, 0))
	left := at(m, geom.V(-4, 1, 0))
	if got := ev.Universal(&um, "s_scale_random", &right); math.Abs(got-1) > 1e-9 {
		t.Errorf("mask right = %v, want 1", got)
	}
	if got := ev.Universal(&um, "s_scale_random", &left); got != 0 {
		t.Errorf("mask left = %v, want 0", got)
	}
	um.Reverse = true
	if got := ev.Universal(&um, "s_scale_random", &left); got != 1 {
		t.Errorf("reversed mask left = %v, want 1", got)
	}

	um.Allow = false
	if got := ev.Universal(&um, "s_scale_random", &left); got != 1 {
		t.Errorf("disabled mask = %v, want 1", got)
	}
}

func TestUniversalMissingSourceIsIdentity(t *testing.T) {
	ev, m := fixture(t)
	um := scatter.DefaultUniversalMask()
	um.Allow = true
	um.Ptr = "absent"
	p := at(m, geom.V(-4, 1, 0))
	if got := ev.Universal(&um, "s_rot_random", &p); got != 1 {
		t.Errorf("mask with missing group = %v, want 1", got)
	}
	if !ev.Report.Has(scatter.KindMissingAttribute) {
		t.Error("missing group was not reported")
	}

	um.Method = scatter.MaskImage
	um.BitmapPtr = "nowhere.png"
	if got := ev.Universal(&um, "s_rot_add", &p); got != 1 {
		t.Errorf("mask with missing image = %v, want 1", got)
	}
	if !ev.Report.Has(scatter.KindInvalidReference) {
		t.Error("missing image was not reported")
	}
}

func TestUniversalNoiseDeterministic(t *testing.T) {
	ev, m := fixture(t)
	um := scatter.DefaultUniversalMask()
	um.Allow = true
	um.Method = scatter.MaskNoise
	p := at(m, geom.V(1.3, -2.1, 0))
	a := ev.Universal(&um, "s_push_offset", &p)
	b := ev.Universal(&um, "s_push_offset", &p)
	if a != b || a < 0 || a > 1 {
		t.Errorf("noise mask = %v then %v", a, b)
	}
}

func TestCategoryKeep(t *testing.T) {
	ev, m := fixture(t)
	cat := scatter.DefaultMaskCategory()
	cat.Master = true
	cat.VG = scatter.VGMask{Allow: true, Ptr: "half"}
	cm := ev.Category(&cat, "s_mask")

	right := at(m, geom.V(4, 2, 0))
	left := at(m, geom.V(-4, 2, 0))
	if got := cm.Keep(&right); math.Abs(got-1) > 1e-9 {
		t.Errorf("keep right = %v, want 1", got)
	}
	if got := cm.Keep(&left); got != 0 {
		t.Errorf("keep left = %v, want 0", got)
	}

	cat.Master = false
	if got := ev.Category(&cat, "s_mask").Keep(&left); got != 1 {
		t.Errorf("keep with master off = %v, want 1", got)
	}
}

func TestCategoryVolumes(t *testing.T) {
	ev, m := fixture(t)
	cat := scatter.DefaultMaskCategory()
	cat.Master = true
	cat.BoolVol = scatter.CollMask{Allow: true, CollPtr: "rocks"}
	cm := ev.Category(&cat, "s_mask")

	// The rock spans x in [2, 4], z in [-1, 1].
	inside := at(m, geom.V(3, 0, 0))
	outside := at(m, geom.V(-3, 0, 0))
	if got := cm.Keep(&inside); got != 0 {
		t.Errorf("boolvol inside = %v, want 0", got)
	}
	if got := cm.Keep(&outside); got != 1 {
		t.Errorf("boolvol outside = %v, want 1", got)
	}

	cat.BoolVol.Allow = false
	cat.Upward = scatter.CollMask{Allow: true, CollPtr: "rocks"}
	cm = ev.Category(&cat, "s_mask")
	under := at(m, geom.V(3, 0.5, -2))
	if got := cm.Keep(&under); got != 0 {
		t.Errorf("upward under rock = %v, want 0", got)
	}
	if got := cm.Keep(&outside); got != 1 {
		t.Errorf("upward in the open = %v, want 1", got)
	}

	cat.Upward.CollPtr = "missing"
	ev.Category(&cat, "s_mask")
	if !ev.Report.Has(scatter.KindInvalidReference) {
		t.Error("missing collection was not reported")
	}
}

func TestCategoryCurveArea(t *testing.T) {
	ev, m := fixture(t)
	sq := func(x, y float64) surface.BezierPoint {
		v := geom.V(x, y, 0)
		return surface.BezierPoint{Co: v, HandleLeft: v, HandleRight: v, Radius: 1}
	}
	ev.Scene().AddCurve(&surface.Curve{
		Name:    "zone",
		Splines: []surface.Spline{{Cyclic: true, Points: []surface.BezierPoint{sq(-1, -1), sq(1, -1), sq(1, 1), sq(-1, 1)}}},
	})
	cat := scatter.DefaultMaskCategory()
	cat.Master = true
	cat.Curve = scatter.CurveMask{Allow: true, Ptr: "zone"}
	cm := ev.Category(&cat, "s_mask")

	in := at(m, geom.V(0.5, 0.5, 0))
	out := at(m, geom.V(3, 3, 0))
	if cm.Keep(&in) != 1 || cm.Keep(&out) != 0 {
		t.Errorf("curve keep = %v inside, %v outside", cm.Keep(&in), cm.Keep(&out))
	}
}
