package transform

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

func stage(t *testing.T, sys *scatter.System, pts []scatter.Point) (*Stage, *scatter.Report) {
	t.Helper()
	sc := surface.NewScene()
	sc.AddMesh(surface.Grid("ground", 10, 10, 2, 2))
	rep := &scatter.Report{}
	ev := mask.NewEvaluator(sys, transfer.New(sc, nil), rep)
	return New(ev, nil, pts), rep
}

func points(n int) []scatter.Point {
	pts := make([]scatter.Point, n)
	for i := range pts {
		pts[i] = scatter.NewPoint(uint64(i), geom.V(float64(i%50)*0.1, float64(i/50)*0.1, 0), geom.AxisZ)
	}
	return pts
}

func TestRandomScaleWithMinRemove(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Scale.Master = true
	sys.Scale.Random.Allow = true
	sys.Scale.Random.Factor = geom.Zero
	sys.Scale.Min.Allow = true
	sys.Scale.Min.Method = scatter.MinRemove
	sys.Scale.Min.Value = 0.1

	pts := points(2000)
	s, _ := stage(t, sys, pts)
	kept := 0
	for i := range pts {
		s.Apply(&pts[i])
		if pts[i].Keep > 0 {
			kept++
			if geom.MaxAbs(pts[i].Scale) < 0.1 {
				t.Fatalf("point %d kept with scale %v", i, pts[i].Scale)
			}
		}
	}
	if ratio := float64(kept) / float64(len(pts)); ratio < 0.86 || ratio > 0.94 {
		t.Errorf("kept ratio = %v, want about 0.9", ratio)
	}
}

func TestMinScaleRescales(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Scale.Master = true
	sys.Scale.Default.Allow = true
	sys.Scale.Default.Space = scatter.SpaceGlobal
	sys.Scale.Default.Value = geom.V(0.01, 0.02, 0.01)
	sys.Scale.Min.Allow = true
	sys.Scale.Min.Method = scatter.MinScaling
	sys.Scale.Min.Value = 0.1

	pts := points(1)
	s, _ := stage(t, sys, pts)
	s.Apply(&pts[0])
	if pts[0].Keep != 1 {
		t.Fatalf("Keep = %v, want 1", pts[0].Keep)
	}
	if got := geom.MaxAbs(pts[0].Scale); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("max scale = %v, want 0.1", got)
	}
	if math.Abs(pts[0].Scale.X-0.05) > 1e-12 {
		t.Errorf("Scale.X = %v, want proportions kept", pts[0].Scale.X)
	}
}

func TestMirror(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Scale.Master = true
	sys.Scale.Mirror.Allow = true
	sys.Scale.Mirror.X = true
	sys.Scale.Mirror.Y = false

	pts := points(2000)
	s, _ := stage(t, sys, pts)
	flipped := 0
	for i := range pts {
		s.Apply(&pts[i])
		if pts[i].Scale.X < 0 {
			flipped++
		}
		if pts[i].Scale.Y != 1 || pts[i].Scale.Z != 1 {
			t.Fatalf("point %d: unselected axis flipped: %v", i, pts[i].Scale)
		}
	}
	if ratio := float64(flipped) / float64(len(pts)); ratio < 0.45 || ratio > 0.55 {
		t.Errorf("flipped ratio = %v, want about 0.5", ratio)
	}
}

func TestClumpScale(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Distribution.Method = scatter.GenClumping
	sys.Scale.Master = true
	sys.Scale.Clump.Allow = true
	sys.Scale.Clump.Value = geom.V(0.5, 0.5, 0.5)

	pts := points(2)
	for i := range pts {
		pts[i].ClumpID = 7
		pts[i].ClumpDist = float64(i) * 2
	}
	s, _ := stage(t, sys, pts)
	for i := range pts {
		s.Apply(&pts[i])
	}
	if pts[0].Scale != geom.One {
		t.Errorf("centre scale = %v, want one", pts[0].Scale)
	}
	if math.Abs(pts[1].Scale.X-0.5) > 1e-12 {
		t.Errorf("edge scale = %v, want 0.5", pts[1].Scale)
	}
}

func TestRotationOrthonormal(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Rotation.Master = true
	sys.Rotation.AlignZ.Allow = true
	sys.Rotation.AlignZ.Method = scatter.AlignRandom
	sys.Rotation.Random.Allow = true
	sys.Rotation.Random.TiltValue = 0.3
	sys.Rotation.Random.YawValue = 1
	sys.Rotation.Add.Allow = true
	sys.Rotation.Add.Random = geom.V(1, 1, 1)

	pts := points(200)
	s, _ := stage(t, sys, pts)
	for i := range pts {
		p := &pts[i]
		s.Apply(p)
		if d := math.Abs(r3.Norm(p.Normal) - 1); d > 1e-9 {
			t.Fatalf("point %d: |normal| off by %v", i, d)
		}
		if d := math.Abs(r3.Norm(p.Tangent) - 1); d > 1e-9 {
			t.Fatalf("point %d: |tangent| off by %v", i, d)
		}
		if d := math.Abs(r3.Dot(p.Normal, p.Tangent)); d > 1e-9 {
			t.Fatalf("point %d: normal.tangent = %v", i, d)
		}
	}
}

func TestPushDir(t *testing.T) {
	tests := []struct {
		name   string
		method scatter.PushAxis
		normal geom.Vec
		want   geom.Vec
	}{
		{"global z", scatter.PushGlobalZ, geom.AxisX, geom.V(0, 0, 2)},
		{"normal", scatter.PushNormal, geom.AxisX, geom.V(2, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Push.Master = true
			sys.Push.Dir.Allow = true
			sys.Push.Dir.Space = scatter.SpaceGlobal
			sys.Push.Dir.Method = tt.method
			sys.Push.Dir.AddValue = 2

			p := scatter.NewPoint(1, geom.Zero, tt.normal)
			s, _ := stage(t, sys, []scatter.Point{p})
			s.Apply(&p)
			if geom.Dist(p.Pos, tt.want) > 1e-9 {
				t.Errorf("Pos = %v, want %v", p.Pos, tt.want)
			}
		})
	}
}

func TestFall(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Push.Master = true
	f := &sys.Push.Fall
	f.Allow = true
	f.Space = scatter.SpaceGlobal
	f.Height = 0
	f.Key1Pos, f.Key1Height = 0, 20
	f.Key2Pos, f.Key2Height = 100, 0

	tests := []struct {
		frame float64
		want  float64
	}{
		{0, 20},
		{50, 10},
		{100, 0},
		{200, 0},
	}
	for _, tt := range tests {
		p := scatter.NewPoint(1, geom.Zero, geom.AxisZ)
		s, _ := stage(t, sys, []scatter.Point{p})
		s.sc.Frame = tt.frame
		s.Apply(&p)
		if math.Abs(p.Pos.Z-tt.want) > 1e-9 {
			t.Errorf("frame %v: z = %v, want %v", tt.frame, p.Pos.Z, tt.want)
		}
	}
}

func TestLoopableAnimationWraps(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	s, _ := stage(t, sys, nil)
	s.sc.FPS = 10
	ident := func(t float64) float64 { return t }

	s.sc.Frame = 1
	start := s.animate(scatter.WindLoopable, true, 1, 20, 1, ident)
	s.sc.Frame = 20.999
	end := s.animate(scatter.WindLoopable, true, 1, 20, 1, ident)
	if math.Abs(start-end) > 1e-3 {
		t.Errorf("loop does not close: start %v, end %v", start, end)
	}
	s.sc.Frame = 21
	if again := s.animate(scatter.WindLoopable, true, 1, 20, 1, ident); math.Abs(again-start) > 1e-12 {
		t.Errorf("second loop starts at %v, want %v", again, start)
	}
}

func TestWaveLeansAlongWind(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Wind.Master = true
	w := &sys.Wind.Wave
	w.Allow = true
	w.Direction = 0
	w.TextureBrightness = 1
	w.TextureContrast = 0.0001
	w.Force = 1

	p := scatter.NewPoint(1, geom.Zero, geom.AxisZ)
	s, rep := stage(t, sys, []scatter.Point{p})
	s.Apply(&p)
	if len(rep.Entries()) != 0 {
		t.Fatalf("unexpected report entries: %v", rep.Entries())
	}
	// A flat texture reads 0.5 everywhere: a 45 degree lean toward +X.
	if math.Abs(p.Normal.X-math.Sqrt2/2) > 1e-3 || math.Abs(p.Normal.Y) > 1e-9 {
		t.Errorf("Normal = %v, want leaning 45 degrees toward +X", p.Normal)
	}
}

func TestWaveMissingFlowmap(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Surfaces = []string{"ground"}
	sys.Wind.Master = true
	sys.Wind.Wave.Allow = true
	sys.Wind.Wave.DirMethod = scatter.WindDirVCol
	sys.Wind.Wave.FlowmapPtr = "flow"

	_, rep := stage(t, sys, nil)
	if !rep.Has(scatter.KindMissingAttribute) {
		t.Errorf("expected missing_attribute, got %v", rep.Entries())
	}
}
