package fields

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

// scene is a 10x10 ground plane with a 2m cube in the "rocks" collection.
func scene() *surface.Scene {
	sc := surface.NewScene()
	sc.AddMesh(surface.Grid("ground", 10, 10, 4, 4))
	rock := surface.Cube("rock", 2)
	rock.Transform.Loc = geom.V(3, 0, 0)
	sc.AddMesh(rock)
	sc.Collections["rocks"] = []string{"rock"}
	return sc
}

func prepare(t *testing.T, sc *surface.Scene, sys *scatter.System, in Input) (*Evaluator, *scatter.Report) {
	t.Helper()
	rep := &scatter.Report{}
	sys.Surfaces = []string{"ground"}
	in.Mask = mask.NewEvaluator(sys, transfer.New(sc, nil), rep)
	e, err := Prepare(context.Background(), in)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return e, rep
}

// value evaluates the single feature named at pos.
func value(t *testing.T, e *Evaluator, feature string, pos geom.Vec) float64 {
	t.Helper()
	p := scatter.NewPoint(1, pos, geom.AxisZ)
	return valueOf(t, e, feature, &p)
}

func valueOf(t *testing.T, e *Evaluator, feature string, p *scatter.Point) float64 {
	t.Helper()
	for _, s := range e.Eval(p, nil) {
		if s.Feature == feature {
			return s.Value
		}
	}
	t.Fatalf("feature %s not evaluated", feature)
	return 0
}

func stream(id string, pts ...geom.Vec) *scatter.PointStream {
	s := &scatter.PointStream{System: id}
	for i, p := range pts {
		s.Points = append(s.Points, scatter.NewPoint(uint64(i), p, geom.AxisZ))
	}
	return s
}

func TestBand(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{"inside", 5, 1},
		{"lower edge", 2, 1},
		{"below hard", -1, 0},
		{"above fading", 11, 0.5},
		{"above gone", 13, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := band(tt.x, 2, 0, 10, 2); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("band(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestNothingEnabled(t *testing.T) {
	e, _ := prepare(t, scene(), scatter.NewSystem("a", "a"), Input{})
	if e.Len() != 0 {
		t.Fatalf("Len = %d, want 0", e.Len())
	}
}

func TestEcosystemRepulsion(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Ecosystem.Master = true
	r := &sys.Ecosystem.Repulsion
	r.Allow = true
	r.Slots[0] = scatter.EcoSlot{Ptr: "rocks", Type: scatter.ContactOrigin, MaxValue: 1}

	up := map[string]*scatter.PointStream{"rocks": stream("rocks", geom.V(0, 0, 0))}
	e, _ := prepare(t, scene(), sys, Input{Upstream: up})

	if got := value(t, e, "s_ecosystem_repulsion", geom.V(0.5, 0, 0)); got != 0 {
		t.Errorf("within 1m = %v, want 0", got)
	}
	if got := value(t, e, "s_ecosystem_repulsion", geom.V(1.5, 0, 0)); got != 1 {
		t.Errorf("beyond 1m = %v, want 1", got)
	}
}

func TestEcosystemAffinity(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Ecosystem.Master = true
	a := &sys.Ecosystem.Affinity
	a.Allow = true
	a.Slots[0] = scatter.EcoSlot{Ptr: "trees", Type: scatter.ContactOrigin, MaxValue: 1, MaxFalloff: 1, LimitDistance: 0.2}

	up := map[string]*scatter.PointStream{"trees": stream("trees", geom.V(0, 0, 0))}
	e, _ := prepare(t, scene(), sys, Input{Upstream: up})

	tests := []struct {
		x    float64
		want float64
	}{
		{0.1, 0},
		{0.5, 1},
		{1.5, 0.5},
		{3, 0},
	}
	for _, tt := range tests {
		if got := value(t, e, "s_ecosystem_affinity", geom.V(tt.x, 0, 0)); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("affinity at %v = %v, want %v", tt.x, got, tt.want)
		}
	}
}

func TestEcosystemEmptyUpstream(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Ecosystem.Master = true
	sys.Ecosystem.Repulsion.Allow = true
	sys.Ecosystem.Repulsion.Slots[0].Ptr = "gone"
	e, _ := prepare(t, scene(), sys, Input{Upstream: map[string]*scatter.PointStream{"gone": stream("gone")}})
	if e.Len() != 0 {
		t.Fatalf("Len = %d, want 0 for an empty upstream", e.Len())
	}
}

func TestEcosystemDensity(t *testing.T) {
	up := map[string]*scatter.PointStream{"trees": stream("trees",
		geom.V(0.1, 0.1, 0.1), geom.V(0.2, 0.1, 0.1), geom.V(0.3, 0.3, 0.1), geom.V(0.4, 0.2, 0.2),
		geom.V(2.1, 0.1, 0.1),
	)}
	tests := []struct {
		method      scatter.DensityMethod
		dense, thin float64
	}{
		{scatter.DensityDense, 1, 0},
		{scatter.DensityScarce, 0, 1},
		{scatter.DensityNormalized, 1, 0.25},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Ecosystem.Master = true
			d := &sys.Ecosystem.Density
			d.Allow = true
			d.Slots[0].Ptr = "trees"
			d.Method = tt.method
			d.VoxelSize = 0.5
			d.Min = 3
			d.Transition = 0
			e, _ := prepare(t, scene(), sys, Input{Upstream: up})

			if got := value(t, e, "s_ecosystem_density", geom.V(0.2, 0.2, 0.2)); math.Abs(got-tt.dense) > 1e-9 {
				t.Errorf("dense voxel = %v, want %v", got, tt.dense)
			}
			if got := value(t, e, "s_ecosystem_density", geom.V(2.2, 0.2, 0.2)); math.Abs(got-tt.thin) > 1e-9 {
				t.Errorf("thin voxel = %v, want %v", got, tt.thin)
			}
		})
	}
}

func TestRepel(t *testing.T) {
	tests := []struct {
		typ  scatter.ContactType
		near geom.Vec
		far  geom.Vec
	}{
		{scatter.ContactOrigin, geom.V(2.5, 0, 0), geom.V(1, 0, 0)},
		{scatter.ContactMesh, geom.V(1.5, 0, 0), geom.V(0, 0, 0)},
		{scatter.ContactBBox, geom.V(1.5, 0, 0), geom.V(0, 0, 0)},
		{scatter.ContactConvexHull, geom.V(1.5, 0, 0), geom.V(0, 0, 0)},
		{scatter.ContactPointCloud, geom.V(1.5, 0.8, 0.8), geom.V(0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			sys := scatter.NewSystem("grass", "grass")
			sys.Proximity.Master = true
			r := &sys.Proximity.Repel1
			r.Allow = true
			r.CollPtr = "rocks"
			r.Type = tt.typ
			r.Threshold = 1
			r.Max = 0
			e, _ := prepare(t, scene(), sys, Input{})

			if got := value(t, e, "s_proximity_repel1", tt.near); got != 0 {
				t.Errorf("near = %v, want 0", got)
			}
			if got := value(t, e, "s_proximity_repel1", tt.far); got != 1 {
				t.Errorf("far = %v, want 1", got)
			}
		})
	}
}

func TestRepelVolume(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Proximity.Master = true
	r := &sys.Proximity.Repel1
	r.Allow = true
	r.CollPtr = "rocks"
	r.Type = scatter.ContactMesh
	r.Threshold = 0.5
	r.Max = 0
	r.VolumeAllow = true
	e, _ := prepare(t, scene(), sys, Input{})

	// 0.7m from the nearest rock face, but inside it.
	if got := value(t, e, "s_proximity_repel1", geom.V(3.3, 0.1, 0.1)); got != 0 {
		t.Errorf("inside = %v, want 0", got)
	}
	if got := value(t, e, "s_proximity_repel1", geom.V(0, 0, 0)); got != 1 {
		t.Errorf("outside = %v, want 1", got)
	}
}

func TestRepelSimulation(t *testing.T) {
	sc := scene()
	ball := sc.AddEmpty("ball", geom.Transform{Loc: geom.V(4, 0, 0), Rot: geom.Identity, Scale: geom.One})
	ball.Keys = []surface.Keyframe{{Frame: 1, Loc: geom.V(-4, 0, 0)}, {Frame: 10, Loc: geom.V(4, 0, 0)}}
	sc.Collections["balls"] = []string{"ball"}
	sc.Frame = 10

	sys := scatter.NewSystem("grass", "grass")
	sys.Proximity.Master = true
	r := &sys.Proximity.Repel1
	r.Allow = true
	r.CollPtr = "balls"
	r.Type = scatter.ContactOrigin
	r.Threshold = 1
	r.Max = 0

	e, _ := prepare(t, sc, sys, Input{})
	if got := value(t, e, "s_proximity_repel1", geom.V(0, 0, 0)); got != 1 {
		t.Errorf("without imprint = %v, want 1", got)
	}

	r.SimulationAllow = true
	e, _ = prepare(t, sc, sys, Input{})
	if got := value(t, e, "s_proximity_repel1", geom.V(0, 0, 0)); got != 0 {
		t.Errorf("on the path = %v, want 0", got)
	}
	if got := value(t, e, "s_proximity_repel1", geom.V(0, 3, 0)); got != 1 {
		t.Errorf("off the path = %v, want 1", got)
	}

	// A short fade forgets the early part of the path.
	r.FadeAllow = true
	r.FadeValue = 2
	e, _ = prepare(t, sc, sys, Input{})
	if got := value(t, e, "s_proximity_repel1", geom.V(-3.5, 0, 0)); got != 1 {
		t.Errorf("faded = %v, want 1", got)
	}
}

func TestImprintFrames(t *testing.T) {
	tests := []struct {
		start, now float64
		n          int
	}{
		{1, 1, 1},
		{1, 10, 10},
		{1, 201, 51},
	}
	for _, tt := range tests {
		got := imprintFrames(tt.start, tt.now)
		if len(got) != tt.n {
			t.Errorf("imprintFrames(%v, %v) has %d frames, want %d", tt.start, tt.now, len(got), tt.n)
		}
		if got[len(got)-1] != tt.now {
			t.Errorf("imprintFrames(%v, %v) ends at %v", tt.start, tt.now, got[len(got)-1])
		}
	}
}

func TestRepelMissingCollection(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Proximity.Master = true
	sys.Proximity.Repel1.Allow = true
	sys.Proximity.Repel1.CollPtr = "nowhere"
	e, rep := prepare(t, scene(), sys, Input{})
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
	if !rep.Has(scatter.KindInvalidReference) {
		t.Errorf("missing collection not reported: %v", rep.Entries())
	}
}

func TestOutskirt(t *testing.T) {
	var pts []scatter.Point
	for i := 0; i <= 10; i++ {
		for j := 0; j <= 10; j++ {
			pts = append(pts, scatter.NewPoint(uint64(len(pts)), geom.V(float64(i)*0.5, float64(j)*0.5, 0), geom.AxisZ))
		}
	}
	sys := scatter.NewSystem("grass", "grass")
	sys.Proximity.Master = true
	o := &sys.Proximity.Outskirt
	o.Allow = true
	o.Detection = 0.75
	o.Precision = 1
	o.Threshold = 0
	o.Max = 1
	e, _ := prepare(t, scene(), sys, Input{Points: pts})

	eval := func(i int) float64 {
		for _, s := range e.Eval(&pts[i], nil) {
			return s.Value
		}
		t.Fatal("no sample")
		return 0
	}
	centre := eval(5*11 + 5)
	corner := eval(0)
	if centre != 1 {
		t.Errorf("centre = %v, want 1", centre)
	}
	if corner >= 0.5 {
		t.Errorf("corner = %v, want < 0.5", corner)
	}
}

func TestBezBorderNeedsArea(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Proximity.Master = true
	sys.Proximity.BezBorder.Allow = true
	_, rep := prepare(t, scene(), sys, Input{})
	if !rep.Has(scatter.KindInvalidConfig) {
		t.Errorf("bezier border on a random distribution not reported: %v", rep.Entries())
	}
}

func TestAbioticElevationAltitude(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Abiotic.Master = true
	el := &sys.Abiotic.Elev
	el.Allow = true
	el.Space = scatter.SpaceGlobal
	el.Method = scatter.ElevAltitude
	el.MinValue, el.MinFalloff = 0, 0
	el.MaxValue, el.MaxFalloff = 1, 1
	e, _ := prepare(t, scene(), sys, Input{})

	tests := []struct {
		z, want float64
	}{
		{-1, 0},
		{0.5, 1},
		{1.5, 0.5},
		{3, 0},
	}
	for _, tt := range tests {
		if got := value(t, e, "s_abiotic_elev", geom.V(0, 0, tt.z)); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("elevation at %v = %v, want %v", tt.z, got, tt.want)
		}
	}
}

func TestAbioticSlope(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Abiotic.Master = true
	s := &sys.Abiotic.Slope
	s.Allow = true
	s.Space = scatter.SpaceGlobal
	s.MinValue, s.MaxValue = 0, math.Pi/6
	e, _ := prepare(t, scene(), sys, Input{})

	flat := scatter.NewPoint(1, geom.Zero, geom.AxisZ)
	wall := scatter.NewPoint(2, geom.Zero, geom.V(1, 0, 0))
	if got := e.Eval(&flat, nil)[0].Value; got != 1 {
		t.Errorf("flat = %v, want 1", got)
	}
	if got := e.Eval(&wall, nil)[0].Value; got != 0 {
		t.Errorf("wall = %v, want 0", got)
	}
}

func TestAbioticBorder(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Abiotic.Master = true
	bd := &sys.Abiotic.Border
	bd.Allow = true
	bd.Space = scatter.SpaceGlobal
	bd.Threshold = 1
	bd.Max = 0
	e, _ := prepare(t, scene(), sys, Input{})

	ground, _ := scene().Object("ground")
	edge := scatter.NewPoint(1, geom.V(4.5, 0, 0), geom.AxisZ)
	centre := scatter.NewPoint(2, geom.Zero, geom.AxisZ)
	edge.Surface, centre.Surface = ground.ID, ground.ID
	if got := valueOf(t, e, "s_abiotic_border", &edge); got != 0 {
		t.Errorf("near the edge = %v, want 0", got)
	}
	if got := valueOf(t, e, "s_abiotic_border", &centre); got != 1 {
		t.Errorf("centre = %v, want 1", got)
	}
}

func TestNoisePattern(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Pattern.Master = true
	sys.Pattern.Pattern1.Allow = true
	sys.Pattern.Pattern1.Space = scatter.SpaceGlobal
	e, _ := prepare(t, scene(), sys, Input{})
	again, _ := prepare(t, scene(), sys, Input{})

	for i := 0; i < 20; i++ {
		pos := geom.V(float64(i)*0.37, float64(i)*-0.21, 0)
		v := value(t, e, "s_pattern1", pos)
		if v < 0 || v > 1 {
			t.Fatalf("pattern at %v = %v, out of range", pos, v)
		}
		if w := value(t, again, "s_pattern1", pos); w != v {
			t.Fatalf("pattern at %v not deterministic: %v vs %v", pos, v, w)
		}
	}
}

func TestImagePatternMissingTexture(t *testing.T) {
	sys := scatter.NewSystem("grass", "grass")
	sys.Pattern.Master = true
	sys.Pattern.Pattern2.Allow = true
	sys.Pattern.Pattern2.Source = scatter.PatternImage
	sys.Pattern.Pattern2.TexturePtr = "nope"
	e, rep := prepare(t, scene(), sys, Input{})
	if e.Len() != 0 {
		t.Errorf("Len = %d, want 0", e.Len())
	}
	if !rep.Has(scatter.KindInvalidReference) {
		t.Errorf("missing texture not reported: %v", rep.Entries())
	}
}

func TestContacts(t *testing.T) {
	cube := surface.Cube("c", 2)
	sc := surface.NewScene()
	o := sc.AddMesh(cube)
	for _, typ := range []scatter.ContactType{scatter.ContactBBox, scatter.ContactConvexHull, scatter.ContactMesh} {
		t.Run(string(typ), func(t *testing.T) {
			c := objectContact([]*surface.Object{o}, typ)
			if d, _ := c.distance(geom.V(3, 0, 0)); math.Abs(d-2) > 1e-9 {
				t.Errorf("face distance = %v, want 2", d)
			}
			if d, _ := c.distance(geom.V(2, 2, 0)); math.Abs(d-math.Sqrt2) > 1e-9 {
				t.Errorf("edge distance = %v, want sqrt2", d)
			}
			if !c.inside(geom.V(0.1, 0.2, 0.3)) {
				t.Error("centre not inside")
			}
		})
	}

	t.Run("flat hull", func(t *testing.T) {
		o := sc.AddMesh(surface.Grid("sheet", 2, 2, 2, 2))
		c := objectContact([]*surface.Object{o}, scatter.ContactConvexHull)
		if d, _ := c.distance(geom.V(0.3, 0.2, 1.5)); math.Abs(d-1.5) > 1e-9 {
			t.Errorf("height above sheet = %v, want 1.5", d)
		}
		if c.inside(geom.V(0.3, 0.2, 0)) {
			t.Error("a flat hull has no inside")
		}
	})
}
