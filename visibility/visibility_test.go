package visibility

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/scatter/camera"
	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// scene is a 10x10 ground of four faces seen by a camera 20m south and 5m
// up, with a 2m wall cube halfway along the line of sight to the origin.
func scene() (*surface.Scene, *surface.Mesh) {
	sc := surface.NewScene()
	ground := surface.Grid("ground", 10, 10, 2, 2)
	sc.AddMesh(ground)
	wall := surface.Cube("wall", 2)
	wall.Transform.Loc = geom.V(0, -10, 2.5)
	sc.AddMesh(wall)
	sc.Collections["walls"] = []string{"wall"}
	sc.Camera = camera.New(geom.V(0, -20, 5), geom.Zero, 40*math.Pi/180, 16.0/9)
	return sc, ground
}

func newCuller(sc *surface.Scene, sys *scatter.System, state scatter.EvalState, b Budget) (*Culler, *scatter.Report) {
	sys.Surfaces = []string{"ground"}
	sys.Visibility.Master = true
	rep := &scatter.Report{}
	ev := mask.NewEvaluator(sys, transfer.New(sc, nil), rep)
	return New(ev, state, b), rep
}

// onGround locates pos on m so face-level attributes resolve.
func onGround(m *surface.Mesh, id uint64, pos geom.Vec) scatter.Point {
	p := scatter.NewPoint(id, pos, geom.AxisZ)
	p.Surface = m.ID
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

func grid(n int) []scatter.Point {
	pts := make([]scatter.Point, n)
	for i := range pts {
		pts[i] = scatter.NewPoint(uint64(i), geom.V(float64(i%40)*0.1-2, float64(i/40)*0.1-2, 0), geom.AxisZ)
	}
	return pts
}

func TestPercentage(t *testing.T) {
	sc, _ := scene()
	tests := []struct {
		name    string
		state   scatter.EvalState
		n       int
		percent float64
		want    int
	}{
		{"viewport", scatter.StateViewport, 1000, 30, 700},
		{"render ignores", scatter.StateRender, 1000, 30, 1000},
		{"small stream", scatter.StateViewport, 7, 30, 5},
		{"rounds half up", scatter.StateViewport, 10, 25, 7},
		{"all", scatter.StateViewport, 40, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Visibility.View.Allow = true
			sys.Visibility.View.Percentage = tt.percent
			c, _ := newCuller(sc, sys, tt.state, Budget{})
			pts, err := c.Cull(context.Background(), grid(tt.n), nil)
			if err != nil {
				t.Fatal(err)
			}
			if len(pts) != tt.want {
				t.Errorf("kept %d of %d, want %d", len(pts), tt.n, tt.want)
			}
			for i := 1; i < len(pts); i++ {
				if pts[i].ID <= pts[i-1].ID {
					t.Fatalf("order changed at %d", i)
				}
			}
		})
	}
}

// A point in view of two framings survives the percentage in both or in
// neither.
func TestPercentageIgnoresFraming(t *testing.T) {
	framings := []*camera.Camera{
		camera.New(geom.V(0, -20, 5), geom.Zero, 40*math.Pi/180, 16.0/9),
		camera.New(geom.V(6, -12, 9), geom.V(-1, -1.5, 0), 25*math.Pi/180, 4.0/3),
	}
	var cullers []*Culler
	var kept []map[uint64]bool
	for _, cam := range framings {
		sc, _ := scene()
		sc.Camera = cam
		sys := scatter.NewSystem("grass", "grass")
		sys.Visibility.View.Allow = true
		sys.Visibility.View.Percentage = 50
		sys.Visibility.Cam.Allow = true
		sys.Visibility.CamClip.Allow = true
		c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
		out, err := c.Cull(context.Background(), grid(400), nil)
		if err != nil {
			t.Fatal(err)
		}
		ids := map[uint64]bool{}
		for _, p := range out {
			ids[p.ID] = true
		}
		cullers = append(cullers, c)
		kept = append(kept, ids)
	}

	shared := 0
	for _, p := range grid(400) {
		if !cullers[0].InView(&p) || !cullers[1].InView(&p) {
			continue
		}
		shared++
		if kept[0][p.ID] != kept[1][p.ID] {
			t.Errorf("point %d kept=%v in one framing and %v in the other", p.ID, kept[0][p.ID], kept[1][p.ID])
		}
	}
	if shared == 0 {
		t.Fatal("no point is in view of both framings")
	}
}

// Every stream size stays within one point of the exact share.
func TestPercentageWithinOnePoint(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.View.Allow = true
	sys.Visibility.View.Percentage = 37
	c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
	for n := 0; n <= 120; n++ {
		got := len(c.Percentage(grid(n)))
		exact := float64(n) * 0.63
		if math.Abs(float64(got)-exact) > 1 {
			t.Errorf("n=%d: kept %d, exact share %.2f", n, got, exact)
		}
	}
}

func TestFacePreview(t *testing.T) {
	sc, ground := scene()
	ground.FaceSets = map[string][]bool{"preview": {true, false, false, false}}
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.FacePreview.Allow = true
	c, rep := newCuller(sc, sys, scatter.StateViewport, Budget{})

	in := onGround(ground, 1, geom.V(-2.5, -2.5, 0))
	out := onGround(ground, 2, geom.V(2.5, 2.5, 0))
	if !c.Visible(&in) {
		t.Error("point on the preview face culled")
	}
	if c.Visible(&out) {
		t.Error("point off the preview face kept")
	}
	if len(rep.Entries()) != 0 {
		t.Errorf("unexpected report entries: %v", rep.Entries())
	}
}

func TestFacePreviewMissing(t *testing.T) {
	sc, ground := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.FacePreview.Allow = true
	c, rep := newCuller(sc, sys, scatter.StateViewport, Budget{})
	p := onGround(ground, 1, geom.V(2.5, 2.5, 0))
	if !c.Visible(&p) {
		t.Error("missing face set should not cull")
	}
	if !rep.Has(scatter.KindMissingAttribute) {
		t.Errorf("expected missing_attribute, got %v", rep.Entries())
	}
}

func TestFrustum(t *testing.T) {
	sc, _ := scene()
	tests := []struct {
		name      string
		pos       geom.Vec
		proximity bool
		want      bool
	}{
		{"centre", geom.Zero, false, true},
		{"far side", geom.V(100, 0, 0), false, false},
		{"behind camera", geom.V(0, -21, 5.25), false, false},
		{"behind camera near", geom.V(0, -21, 5.25), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Visibility.Cam.Allow = true
			sys.Visibility.CamClip.Allow = true
			sys.Visibility.CamClip.ProximityAllow = tt.proximity
			c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
			p := scatter.NewPoint(1, tt.pos, geom.AxisZ)
			if got := c.Visible(&p); got != tt.want {
				t.Errorf("Visible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrustumFromLens(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	clip := &sys.Visibility.CamClip
	clip.Autofill = false
	clip.Lens, clip.SensorWidth = 18, 36
	cam, ok := resolveCamera(sc, clip)
	if !ok {
		t.Fatal("camera not resolved")
	}
	if math.Abs(cam.FOV-math.Pi/2) > 1e-12 {
		t.Errorf("FOV = %v, want pi/2", cam.FOV)
	}
	if math.Abs(cam.Aspect-16.0/9) > 1e-12 {
		t.Errorf("Aspect = %v, want 16/9", cam.Aspect)
	}
	if sc.Camera.FOV == cam.FOV {
		t.Error("scene camera was modified")
	}
}

func TestCamDist(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.Cam.Allow = true
	sys.Visibility.CamDist.Allow = true
	sys.Visibility.CamDist.Min = 10
	sys.Visibility.CamDist.Max = 20
	c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})

	near := scatter.NewPoint(1, geom.V(0, -15, 3.75), geom.AxisZ)
	far := scatter.NewPoint(2, geom.Zero, geom.AxisZ)
	if !c.Visible(&near) {
		t.Error("point inside Min culled")
	}
	if c.Visible(&far) {
		t.Error("point beyond Max kept")
	}
}

func TestOcclusion(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.Cam.Allow = true
	sys.Visibility.CamOccl.Allow = true
	sys.Visibility.CamOccl.Method = scatter.OcclBoth
	sys.Visibility.CamOccl.CollPtr = "walls"
	c, rep := newCuller(sc, sys, scatter.StateViewport, Budget{})

	hidden := scatter.NewPoint(1, geom.Zero, geom.AxisZ)
	open := scatter.NewPoint(2, geom.V(4, 0, 0), geom.AxisZ)
	if c.Visible(&hidden) {
		t.Error("point behind the wall kept")
	}
	if !c.Visible(&open) {
		t.Error("unobstructed point culled")
	}
	if len(rep.Entries()) != 0 {
		t.Errorf("unexpected report entries: %v", rep.Entries())
	}
}

func TestOcclusionBudget(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.Cam.Allow = true
	sys.Visibility.CamOccl.Allow = true
	sys.Visibility.CamOccl.Method = scatter.OcclColliders
	sys.Visibility.CamOccl.CollPtr = "walls"
	c, rep := newCuller(sc, sys, scatter.StateViewport, Budget{MaxOcclusionRays: 1})

	pts := []scatter.Point{
		scatter.NewPoint(1, geom.V(4, 0, 0), geom.AxisZ),
		scatter.NewPoint(2, geom.Zero, geom.AxisZ),
	}
	out, err := c.Cull(context.Background(), pts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("kept %d points, want 2 once the budget is spent", len(out))
	}
	if !rep.Has(scatter.KindResourceBudget) {
		t.Errorf("expected resource_budget, got %v", rep.Entries())
	}
}

func TestMissingCamera(t *testing.T) {
	sc, _ := scene()
	sc.Camera = nil
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.Cam.Allow = true
	sys.Visibility.CamClip.Allow = true
	c, rep := newCuller(sc, sys, scatter.StateViewport, Budget{})
	p := scatter.NewPoint(1, geom.V(100, 0, 0), geom.AxisZ)
	if !c.Visible(&p) {
		t.Error("camera tests should be skipped without a camera")
	}
	if !rep.Has(scatter.KindInvalidReference) {
		t.Errorf("expected invalid_reference, got %v", rep.Entries())
	}
}

func TestMaxLoad(t *testing.T) {
	sc, _ := scene()
	t.Run("limit", func(t *testing.T) {
		sys := scatter.NewSystem("grass", "grass")
		sys.Visibility.MaxLoad.Allow = true
		sys.Visibility.MaxLoad.Threshold = 10
		c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
		a := c.MaxLoad(grid(100))
		b := c.MaxLoad(grid(100))
		if len(a) != 10 {
			t.Fatalf("len = %d, want 10", len(a))
		}
		for i := range a {
			if a[i].ID != b[i].ID {
				t.Fatalf("limit is not deterministic at %d: %d vs %d", i, a[i].ID, b[i].ID)
			}
			if i > 0 && a[i].ID <= a[i-1].ID {
				t.Fatalf("order not preserved: %d after %d", a[i].ID, a[i-1].ID)
			}
		}
	})
	t.Run("shutdown", func(t *testing.T) {
		sys := scatter.NewSystem("grass", "grass")
		sys.Visibility.MaxLoad.Allow = true
		sys.Visibility.MaxLoad.Method = scatter.MaxLoadShutdown
		sys.Visibility.MaxLoad.Threshold = 10
		c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
		if got := c.MaxLoad(grid(100)); len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
		if got := c.MaxLoad(grid(10)); len(got) != 10 {
			t.Errorf("under threshold: len = %d, want 10", len(got))
		}
	})
}

func TestPrefilter(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("grass", "grass")
	sys.Visibility.Cam.Allow = true
	sys.Visibility.Cam.PreDistAllow = true
	sys.Visibility.CamClip.Allow = true
	c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
	f := c.Prefilter()
	if f == nil {
		t.Fatal("Prefilter = nil")
	}
	for _, pos := range []geom.Vec{geom.Zero, geom.V(100, 0, 0), geom.V(3, 2, 0)} {
		p := scatter.NewPoint(1, pos, geom.AxisZ)
		if f(pos) != c.Visible(&p) {
			t.Errorf("prefilter disagrees with the frustum at %v", pos)
		}
	}

	disabling := []struct {
		name string
		set  func(*scatter.System)
	}{
		{"push", func(s *scatter.System) { s.Push.Master = true }},
		{"clumping", func(s *scatter.System) { s.Distribution.Method = scatter.GenClumping }},
		{"percentage", func(s *scatter.System) {
			s.Visibility.View.Allow = true
			s.Visibility.View.Percentage = 40
		}},
		{"outskirt", func(s *scatter.System) {
			s.Proximity.Master = true
			s.Proximity.Outskirt.Allow = true
		}},
	}
	for _, tt := range disabling {
		t.Run(tt.name, func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Visibility.Cam.Allow = true
			sys.Visibility.Cam.PreDistAllow = true
			sys.Visibility.CamClip.Allow = true
			tt.set(sys)
			c, _ := newCuller(sc, sys, scatter.StateViewport, Budget{})
			if c.Prefilter() != nil {
				t.Error("Prefilter should be nil when a later stage needs the whole stream")
			}
		})
	}
}
