package sampler

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

func planeScene(size float64) (*surface.Scene, *surface.Mesh) {
	sc := surface.NewScene()
	m := surface.Grid("ground", size, size, 4, 4)
	sc.AddMesh(m)
	return sc, m
}

func sample(t *testing.T, sc *surface.Scene, sys *scatter.System) (*scatter.PointStream, *scatter.Report) {
	t.Helper()
	rep := &scatter.Report{}
	st, err := Sample(context.Background(), Input{System: sys, Scene: sc, Report: rep})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	return st, rep
}

func newSys(surfaces ...string) *scatter.System {
	sys := scatter.NewSystem("sys", "sys")
	sys.Surfaces = surfaces
	return sys
}

func TestRandomDensity(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.Density = 1
	st, rep := sample(t, sc, sys)
	if n := st.Len(); n < 95 || n > 105 {
		t.Errorf("random density 1 on 100 m² gave %d points", n)
	}
	if len(rep.Entries()) != 0 {
		t.Errorf("unexpected report: %v", rep.Entries())
	}
	for _, p := range st.Points {
		if math.Abs(p.Pos.X) > 5+1e-9 || math.Abs(p.Pos.Y) > 5+1e-9 || p.Pos.Z != 0 {
			t.Fatalf("point %v off the plane", p.Pos)
		}
		if p.Tri < 0 || math.Abs(p.Bary[0]+p.Bary[1]+p.Bary[2]-1) > 1e-9 {
			t.Fatalf("point %d has no surface location", p.ID)
		}
	}

	again, _ := sample(t, sc, sys)
	for i := range st.Points {
		if !st.Points[i].Equal(again.Points[i]) {
			t.Fatal("same inputs produced different points")
		}
	}
}

func TestRandomCountAndBoost(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.IsCount = true
	sys.Distribution.Count = 37
	if st, _ := sample(t, sc, sys); st.Len() != 37 {
		t.Errorf("count mode gave %d points, want 37", st.Len())
	}

	g := scatter.NewGroup("g")
	g.Distrib.Master = true
	g.Distrib.Boost = scatter.DensityBoost{Allow: true, Factor: 2}
	st, err := Sample(context.Background(), Input{System: sys, Group: g, Scene: sc, Report: &scatter.Report{}})
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 74 {
		t.Errorf("boosted count gave %d points, want 74", st.Len())
	}
}

func TestApportion(t *testing.T) {
	tests := []struct {
		total   int
		weights []float64
		want    []int
	}{
		{10, []float64{1, 1}, []int{5, 5}},
		{10, []float64{1, 2}, []int{3, 7}},
		{7, []float64{1, 1, 1}, []int{3, 2, 2}},
		{5, []float64{0, 0}, []int{0, 0}},
	}
	for _, tt := range tests {
		got := apportion(tt.total, tt.weights)
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("apportion(%d, %v) = %v, want %v", tt.total, tt.weights, got, tt.want)
				break
			}
		}
	}
}

func TestLimitDistance(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.Density = 20
	sys.Distribution.LimitDistanceAllow = true
	sys.Distribution.LimitDistance = 0.5

	for _, mode := range []scatter.LimitMode{scatter.LimitStable, scatter.LimitFast} {
		t.Run(string(mode), func(t *testing.T) {
			sys.Distribution.LimitMode = mode
			st, _ := sample(t, sc, sys)
			if st.Len() == 0 || st.Len() >= 2000 {
				t.Fatalf("limit distance kept %d of 2000 points", st.Len())
			}
			for i := range st.Points {
				for j := i + 1; j < len(st.Points); j++ {
					if d := geom.Dist(st.Points[i].Pos, st.Points[j].Pos); d < 0.5 {
						t.Fatalf("points %d and %d are %.3f apart", i, j, d)
					}
				}
			}
		})
	}
}

func TestLimitStableIgnoresEmissionOrder(t *testing.T) {
	pts := []scatter.Point{
		scatter.NewPoint(3, geom.V(0.1, 0, 0), geom.AxisZ),
		scatter.NewPoint(1, geom.V(0, 0, 0), geom.AxisZ),
		scatter.NewPoint(2, geom.V(5, 0, 0), geom.AxisZ),
	}
	out := limit(append([]scatter.Point(nil), pts...), 1, scatter.LimitStable, 1)
	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 2 {
		t.Errorf("stable limit kept %v", ids(out))
	}
	out = limit(append([]scatter.Point(nil), pts...), 1, scatter.LimitFast, 1)
	if len(out) != 2 || out[0].ID != 3 || out[1].ID != 2 {
		t.Errorf("fast limit kept %v", ids(out))
	}
}

func ids(pts []scatter.Point) []uint64 {
	out := make([]uint64, len(pts))
	for i, p := range pts {
		out[i] = p.ID
	}
	return out
}

func TestStableNeedsUVMap(t *testing.T) {
	sc, m := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.Method = scatter.GenStable
	sys.Distribution.Stable.Density = 1

	st, rep := sample(t, sc, sys)
	if st.Len() < 95 || st.Len() > 105 {
		t.Errorf("stable density 1 on 100 m² gave %d points", st.Len())
	}
	if len(rep.Entries()) != 0 {
		t.Errorf("unexpected report: %v", rep.Entries())
	}

	delete(m.UVMaps, "UVMap")
	m.Touch()
	st, rep = sample(t, sc, sys)
	if st.Len() != 0 {
		t.Errorf("missing uv map gave %d points", st.Len())
	}
	if !rep.Has(scatter.KindMissingAttribute) {
		t.Error("missing uv map was not reported")
	}
}

func TestClumping(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.Method = scatter.GenClumping
	c := &sys.Distribution.Clump
	c.Density = 0.1
	c.ChildrenDensity = 50
	c.MaxDistance = 0.5
	c.Transition = 0
	c.RandomFactor = 0

	st, _ := sample(t, sc, sys)
	clumps := map[int64]int{}
	for _, p := range st.Points {
		if p.ClumpID == scatter.NoClump {
			t.Fatalf("child %d has no clump", p.ID)
		}
		if p.ClumpDist > 0.5+1e-9 {
			t.Fatalf("child %d is %.3f from its clump center", p.ID, p.ClumpDist)
		}
		clumps[p.ClumpID]++
	}
	if n := len(clumps); n < 9 || n > 11 {
		t.Errorf("got %d clumps, want 10", n)
	}
	// 50/m² over a 0.5 m disk.
	want := int(math.Round(50 * math.Pi * 0.25))
	for id, n := range clumps {
		if n != want {
			t.Errorf("clump %d has %d children, want %d", id, n, want)
		}
	}
}

func TestFacesOnCube(t *testing.T) {
	sc := surface.NewScene()
	cube := surface.Cube("cube", 2)
	sc.AddMesh(cube)
	sys := newSys("cube")
	sys.Distribution.Method = scatter.GenFaces

	st, _ := sample(t, sc, sys)
	if st.Len() != 12 {
		t.Fatalf("faces on a cube gave %d points, want 12", st.Len())
	}
	for _, p := range st.Points {
		a, b, c := cube.WorldVert(cube.Faces[p.Face][0]), cube.WorldVert(cube.Faces[p.Face][1]), cube.WorldVert(cube.Faces[p.Face][2])
		n := geom.TriangleNormal(a, b, c)
		if geom.Dist(p.Normal, n) > 1e-9 {
			t.Errorf("face %d normal %v, want %v", p.Face, p.Normal, n)
		}
		if math.Abs(p.Weight-2) > 1e-9 {
			t.Errorf("face %d weight %v, want its area 2", p.Face, p.Weight)
		}
	}
}

func TestVertsAndEdges(t *testing.T) {
	sc := surface.NewScene()
	sc.AddMesh(surface.Plane("p", 2))
	sys := newSys("p")

	sys.Distribution.Method = scatter.GenVerts
	st, _ := sample(t, sc, sys)
	if st.Len() != 4 {
		t.Fatalf("verts gave %d points, want 4", st.Len())
	}
	for _, p := range st.Points {
		if geom.Dist(p.Normal, geom.AxisZ) > 1e-9 || p.Tri < 0 {
			t.Errorf("vertex point %v normal %v tri %d", p.Pos, p.Normal, p.Tri)
		}
	}

	sys.Distribution.Method = scatter.GenEdges
	sys.Distribution.Edges.Selection = scatter.EdgesBoundary
	st, _ = sample(t, sc, sys)
	if st.Len() != 4 {
		t.Fatalf("boundary edges gave %d points, want 4", st.Len())
	}
	for _, p := range st.Points {
		if math.Abs(p.Weight-2) > 1e-9 {
			t.Errorf("edge weight %v, want 2", p.Weight)
		}
		if math.Abs(math.Abs(p.Pos.X)+math.Abs(p.Pos.Y)-1) > 1e-9 {
			t.Errorf("edge midpoint %v", p.Pos)
		}
	}
}

func TestVolume(t *testing.T) {
	sc := surface.NewScene()
	sc.AddMesh(surface.Cube("cube", 2))
	sys := newSys("cube")
	sys.Distribution.Method = scatter.GenVolume
	v := &sys.Distribution.Volume

	v.Method = scatter.VolumeGrid
	v.GridSpacing = geom.V(0.6, 0.6, 0.6)
	st, _ := sample(t, sc, sys)
	if st.Len() != 64 {
		t.Errorf("grid volume gave %d points, want 64", st.Len())
	}

	v.Method = scatter.VolumeRandom
	v.IsCount = true
	v.Count = 50
	st, _ = sample(t, sc, sys)
	if st.Len() != 50 {
		t.Errorf("random volume gave %d points, want 50", st.Len())
	}
	for _, p := range st.Points {
		if geom.MaxAbs(p.Pos) > 1 {
			t.Fatalf("point %v outside the cube", p.Pos)
		}
	}

	rep := &scatter.Report{}
	st, err := Sample(context.Background(), Input{System: sys, Scene: sc, Report: rep, Budget: Budget{MaxVoxels: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if st.Len() != 0 || !rep.Has(scatter.KindResourceBudget) {
		t.Errorf("voxel budget: %d points, report %v", st.Len(), rep.Entries())
	}
}

func squareCurve(name string, half float64) *surface.Curve {
	pt := func(x, y float64) surface.BezierPoint {
		v := geom.V(x, y, 0)
		return surface.BezierPoint{Co: v, HandleLeft: v, HandleRight: v, Radius: 1}
	}
	return &surface.Curve{
		Name:      name,
		Transform: geom.IdentityTransform(),
		Splines: []surface.Spline{{Cyclic: true, Points: []surface.BezierPoint{
			pt(-half, -half), pt(half, -half), pt(half, half), pt(-half, half),
		}}},
	}
}

func TestProjBezArea(t *testing.T) {
	sc, m := planeScene(10)
	m.Transform.Loc = geom.V(0, 0, -3)
	cv := squareCurve("zone", 1)
	sc.AddCurve(cv)
	sys := newSys("ground")
	sys.Distribution.Method = scatter.GenProjBezArea
	pb := &sys.Distribution.ProjBezArea
	pb.CurvePtr = "zone"
	pb.Density = 10
	pb.Enabled = true
	pb.Length = 5

	st, _ := sample(t, sc, sys)
	if st.Len() != 40 {
		t.Fatalf("projected area gave %d points, want 40", st.Len())
	}
	for _, p := range st.Points {
		if math.Abs(p.Pos.Z+3) > 1e-9 || math.Abs(p.Pos.X) > 1 || math.Abs(p.Pos.Y) > 1 {
			t.Fatalf("point %v not projected inside the area", p.Pos)
		}
		if p.Surface != m.ID {
			t.Fatalf("projected point bound to surface %d", p.Surface)
		}
	}

	// Out of reach: every point misses.
	pb.Length = 1
	if st, _ = sample(t, sc, sys); st.Len() != 0 {
		t.Errorf("short projection kept %d points", st.Len())
	}

	pb.CurvePtr = "nothing"
	st, rep := sample(t, sc, sys)
	if st.Len() != 0 || !rep.Has(scatter.KindInvalidReference) {
		t.Errorf("missing curve: %d points, report %v", st.Len(), rep.Entries())
	}
}

func TestProjBezLine(t *testing.T) {
	sc, _ := planeScene(10)
	line := &surface.Curve{
		Name:      "path",
		Transform: geom.IdentityTransform(),
		Splines: []surface.Spline{{Points: []surface.BezierPoint{
			{Co: geom.V(-2, 0, 0), HandleLeft: geom.V(-2, 0, 0), HandleRight: geom.V(-2, 0, 0), Radius: 1},
			{Co: geom.V(2, 0, 0), HandleLeft: geom.V(2, 0, 0), HandleRight: geom.V(2, 0, 0), Radius: 1},
		}}},
	}
	sc.AddCurve(line)
	sys := newSys("ground")
	sys.Distribution.Method = scatter.GenProjBezLine
	pl := &sys.Distribution.ProjBezLine
	pl.CurvePtr = "path"
	pl.IsCount = true
	pl.Count = 8

	st, _ := sample(t, sc, sys)
	if st.Len() != 8 {
		t.Fatalf("onspline gave %d points, want 8", st.Len())
	}
	for i, p := range st.Points {
		want := -2 + 0.5*(float64(i)+0.5)
		if math.Abs(p.Pos.X-want) > 1e-9 || math.Abs(p.Pos.Y) > 1e-9 {
			t.Errorf("point %d at %v, want x=%v", i, p.Pos, want)
		}
	}

	pl.RowsAllow = true
	pl.Rows = 3
	pl.RowDist = 1
	pl.RowSide = scatter.RowBoth
	st, _ = sample(t, sc, sys)
	if st.Len() != 24 {
		t.Fatalf("three rows gave %d points, want 24", st.Len())
	}
	ys := map[float64]int{}
	for _, p := range st.Points {
		ys[math.Round(p.Pos.Y)]++
	}
	if ys[-1] != 8 || ys[0] != 8 || ys[1] != 8 {
		t.Errorf("rows by y: %v", ys)
	}
}

func TestProjEmptiesAndManual(t *testing.T) {
	sc, _ := planeScene(10)
	for i, x := range []float64{-2, 0, 2} {
		tr := geom.IdentityTransform()
		tr.Loc = geom.V(x, float64(i), 4)
		sc.AddEmpty([]string{"a", "b", "c"}[i], tr)
	}
	sc.AddMesh(surface.Cube("not-empty", 1))
	sc.Collections["markers"] = []string{"a", "b", "c", "not-empty"}

	sys := newSys("ground")
	sys.Distribution.Method = scatter.GenProjEmpties
	sys.Distribution.ProjEmpties.CollPtr = "markers"
	sys.Distribution.ProjEmpties.EmptyOnly = true
	sys.Distribution.ProjEmpties.Enabled = true
	sys.Distribution.ProjEmpties.Length = 10
	sys.Distribution.ProjEmpties.Axis = scatter.ProjGlobalZ

	st, _ := sample(t, sc, sys)
	if st.Len() != 3 {
		t.Fatalf("empties gave %d points, want 3", st.Len())
	}
	for _, p := range st.Points {
		if math.Abs(p.Pos.Z) > 1e-9 {
			t.Errorf("empty point %v not projected to the ground", p.Pos)
		}
	}

	sc.ManualPoints["sys"] = []surface.ManualPoint{
		{Pos: geom.V(1, 1, 0), Normal: geom.AxisZ, Index: 2},
		{Pos: geom.V(-1, 1, 0), Normal: geom.AxisZ, Scale: geom.V(2, 2, 2)},
	}
	sys.Distribution.Method = scatter.GenManual
	st, _ = sample(t, sc, sys)
	if st.Len() != 2 {
		t.Fatalf("manual gave %d points, want 2", st.Len())
	}
	if st.Points[0].Instance != 2 || st.Points[0].Scale != geom.One || st.Points[1].Scale != geom.V(2, 2, 2) {
		t.Errorf("manual points %+v", st.Points)
	}
	if st.Points[0].Tri < 0 {
		t.Error("manual point on the ground was not bound to it")
	}
}

func TestPointBudgetAndCancel(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground")
	sys.Distribution.Density = 100

	rep := &scatter.Report{}
	st, err := Sample(context.Background(), Input{System: sys, Scene: sc, Report: rep, Budget: Budget{MaxPoints: 500}})
	if err != nil || st.Len() != 0 || !rep.Has(scatter.KindResourceBudget) {
		t.Errorf("point budget: err %v, %d points, report %v", err, st.Len(), rep.Entries())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Sample(ctx, Input{System: sys, Scene: sc, Report: &scatter.Report{}}); err == nil {
		t.Error("cancelled sample returned no error")
	}
}

func TestMissingSurface(t *testing.T) {
	sc, _ := planeScene(10)
	sys := newSys("ground", "ghost")
	st, rep := sample(t, sc, sys)
	if st.Len() == 0 {
		t.Error("remaining surface was not sampled")
	}
	if !rep.Has(scatter.KindInvalidReference) {
		t.Error("missing surface was not reported")
	}
}
