package instances

import (
	"context"
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// scene is a ground plane and a "trees" collection of three empties.
func scene() (*surface.Scene, *surface.Mesh) {
	sc := surface.NewScene()
	ground := surface.Grid("ground", 10, 10, 2, 2)
	sc.AddMesh(ground)
	for _, n := range []string{"oak", "pine", "birch"} {
		sc.AddEmpty(n, geom.IdentityTransform())
	}
	sc.Collections["trees"] = []string{"oak", "pine", "birch"}
	return sc, ground
}

func picker(sc *surface.Scene, sys *scatter.System) (*Picker, *scatter.Report) {
	sys.Surfaces = []string{"ground"}
	if sys.Instances.CollPtr == "" {
		sys.Instances.CollPtr = "trees"
	}
	rep := &scatter.Report{}
	return New(mask.NewEvaluator(sys, transfer.New(sc, nil), rep)), rep
}

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

func points(n int) []scatter.Point {
	pts := make([]scatter.Point, n)
	for i := range pts {
		pts[i] = scatter.NewPoint(uint64(i), geom.V(float64(i%60)*0.1-3, float64(i/60)*0.1-3, 0), geom.AxisZ)
	}
	return pts
}

func histogram(pts []scatter.Point, n int) []int {
	h := make([]int, n)
	for _, p := range pts {
		h[p.Instance]++
	}
	return h
}

func TestMissingCollection(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("forest", "forest")
	sys.Instances.CollPtr = "shrubs"
	pk, rep := picker(sc, sys)
	out, err := pk.Apply(context.Background(), points(10), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("len = %d, want every point culled", len(out))
	}
	if !rep.Has(scatter.KindInvalidReference) {
		t.Errorf("expected invalid_reference, got %v", rep.Entries())
	}
}

func TestEmptyCollection(t *testing.T) {
	sc, _ := scene()
	sc.Collections["none"] = nil
	sys := scatter.NewSystem("forest", "forest")
	sys.Instances.CollPtr = "none"
	pk, _ := picker(sc, sys)
	out, _ := pk.Apply(context.Background(), points(10), nil)
	if len(out) != 0 {
		t.Errorf("len = %d, want every point culled", len(out))
	}
}

func TestRandom(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("forest", "forest")
	pk, _ := picker(sc, sys)
	pts, _ := pk.Apply(context.Background(), points(3000), nil)
	for i, c := range histogram(pts, 3) {
		if r := float64(c) / 3000; r < 0.28 || r > 0.39 {
			t.Errorf("instance %d ratio = %v, want about 1/3", i, r)
		}
	}
}

func TestRate(t *testing.T) {
	sc, _ := scene()
	t.Run("weighted", func(t *testing.T) {
		sys := scatter.NewSystem("forest", "forest")
		sys.Instances.Method = scatter.PickRate
		sys.Instances.Slots[0].Rate = 25
		sys.Instances.Slots[1].Rate = 0
		sys.Instances.Slots[2].Rate = 75
		pk, _ := picker(sc, sys)
		pts, _ := pk.Apply(context.Background(), points(3000), nil)
		h := histogram(pts, 3)
		if h[1] != 0 {
			t.Errorf("zero-rate instance picked %d times", h[1])
		}
		if r := float64(h[0]) / 3000; r < 0.2 || r > 0.3 {
			t.Errorf("instance 0 ratio = %v, want about 0.25", r)
		}
	})
	t.Run("clamped to 100", func(t *testing.T) {
		sys := scatter.NewSystem("forest", "forest")
		sys.Instances.Method = scatter.PickRate
		sys.Instances.Slots[0].Rate = 100
		sys.Instances.Slots[1].Rate = 0
		sys.Instances.Slots[2].Rate = 300
		pk, _ := picker(sc, sys)
		pts, _ := pk.Apply(context.Background(), points(3000), nil)
		if r := float64(histogram(pts, 3)[0]) / 3000; r < 0.44 || r > 0.56 {
			t.Errorf("instance 0 ratio = %v, want about 0.5 once 300 clamps to 100", r)
		}
	})
	t.Run("all zero", func(t *testing.T) {
		sys := scatter.NewSystem("forest", "forest")
		sys.Instances.Method = scatter.PickRate
		pk, _ := picker(sc, sys)
		pts, _ := pk.Apply(context.Background(), points(300), nil)
		for i, c := range histogram(pts, 3) {
			if c == 0 {
				t.Errorf("instance %d never picked", i)
			}
		}
	})
}

func TestScale(t *testing.T) {
	sc, _ := scene()
	tests := []struct {
		name      string
		method    scatter.IDScaleMethod
		size      float64
		want      int
		wantScale float64
	}{
		{"fixed", scatter.IDScaleFixed, 0.75, 1, 1},
		{"dynamic", scatter.IDScaleDynamic, 0.75, 1, 0.75},
		{"dynamic small", scatter.IDScaleDynamic, 0.25, 0, 0.5},
		{"default", scatter.IDScaleDefault, 1.5, 2, 1.5},
		{"no match", scatter.IDScaleDefault, 5, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := scatter.NewSystem("forest", "forest")
			sys.Instances.Method = scatter.PickScale
			sys.Instances.ScaleMethod = tt.method
			sys.Instances.Slots[0] = scatter.InstanceSlot{ScaleMin: 0, ScaleMax: 0.5}
			sys.Instances.Slots[1] = scatter.InstanceSlot{ScaleMin: 0.5, ScaleMax: 1}
			sys.Instances.Slots[2] = scatter.InstanceSlot{ScaleMin: 1, ScaleMax: 2}
			pk, _ := picker(sc, sys)
			p := scatter.NewPoint(1, geom.Zero, geom.AxisZ)
			p.Scale = geom.V(tt.size, tt.size, tt.size)
			pk.Pick(&p)
			if p.Instance != tt.want {
				t.Errorf("Instance = %d, want %d", p.Instance, tt.want)
			}
			if math.Abs(p.Scale.X-tt.wantScale) > 1e-12 {
				t.Errorf("Scale = %v, want %v", p.Scale.X, tt.wantScale)
			}
		})
	}
}

func TestColor(t *testing.T) {
	sc, ground := scene()
	red := make([][4]float64, len(ground.Verts))
	for i := range red {
		red[i] = [4]float64{1, 0, 0, 1}
	}
	ground.ColorAttrs = map[string][][4]float64{"Col": red}

	sys := scatter.NewSystem("forest", "forest")
	sys.Instances.Method = scatter.PickColor
	sys.Instances.VColPtr = "Col"
	sys.Instances.Slots[0].Color = [3]float64{0, 0, 1}
	sys.Instances.Slots[1].Color = [3]float64{0.9, 0.1, 0}
	sys.Instances.Slots[2].Color = [3]float64{1, 0, 0}
	pk, rep := picker(sc, sys)
	p := onGround(ground, 1, geom.V(1, 1, 0))
	pk.Pick(&p)
	if p.Instance != 1 {
		t.Errorf("Instance = %d, want first match 1", p.Instance)
	}
	if len(rep.Entries()) != 0 {
		t.Errorf("unexpected report entries: %v", rep.Entries())
	}

	sys.Instances.VColPtr = "Missing"
	pk, rep = picker(sc, sys)
	p = onGround(ground, 1, geom.V(1, 1, 0))
	pk.Pick(&p)
	if p.Instance != 0 {
		t.Errorf("Instance = %d, want fallback 0", p.Instance)
	}
	if !rep.Has(scatter.KindMissingAttribute) {
		t.Errorf("expected missing_attribute, got %v", rep.Entries())
	}
}

func TestIndex(t *testing.T) {
	tests := []struct {
		value, want int
	}{
		{0, 0},
		{4, 1},
		{-1, 2},
	}
	for _, tt := range tests {
		sc, ground := scene()
		idx := make([]int, len(ground.Verts))
		for i := range idx {
			idx[i] = tt.value
		}
		ground.IntAttrs = map[string][]int{"manual_index": idx}
		sys := scatter.NewSystem("forest", "forest")
		sys.Instances.Method = scatter.PickIndex
		pk, _ := picker(sc, sys)
		p := onGround(ground, 1, geom.V(1, 1, 0))
		pk.Pick(&p)
		if p.Instance != tt.want {
			t.Errorf("index %d: Instance = %d, want %d", tt.value, p.Instance, tt.want)
		}
	}
}

func TestClusterClumps(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("forest", "forest")
	sys.Instances.Method = scatter.PickCluster
	sys.Instances.PickClump = true
	pk, _ := picker(sc, sys)

	byClump := map[int64]int{}
	seen := map[int]bool{}
	pts := points(500)
	for i := range pts {
		pts[i].ClumpID = int64(i % 50)
		pk.Pick(&pts[i])
		if prev, ok := byClump[pts[i].ClumpID]; ok && prev != pts[i].Instance {
			t.Fatalf("clump %d split across instances %d and %d", pts[i].ClumpID, prev, pts[i].Instance)
		}
		byClump[pts[i].ClumpID] = pts[i].Instance
		seen[pts[i].Instance] = true
	}
	if len(seen) < 2 {
		t.Errorf("all clumps picked the same instance")
	}
}

func TestClusterCells(t *testing.T) {
	sc, _ := scene()
	sys := scatter.NewSystem("forest", "forest")
	sys.Instances.Method = scatter.PickCluster
	sys.Instances.ClusterProjection = scatter.ClusterGlobal
	sys.Instances.ClusterScale = 1
	sys.Instances.ClusterBlur = 0
	pk, _ := picker(sc, sys)

	a := scatter.NewPoint(1, geom.V(0.1, 0.1, 0), geom.AxisZ)
	b := scatter.NewPoint(2, geom.V(0.9, 0.8, 0), geom.AxisZ)
	pk.Pick(&a)
	pk.Pick(&b)
	if a.Instance != b.Instance {
		t.Errorf("points in one cell picked %d and %d", a.Instance, b.Instance)
	}
}
