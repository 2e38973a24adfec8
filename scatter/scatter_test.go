package scatter

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"scale", CatScale, true},
		{"s_scale", CatScale, true},
		{"rot", CatRotation, true},
		{"rotation", CatRotation, true},
		{"s_ecosystem", CatEcosystem, true},
		{"bogus", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("err = %v, want ok=%v", err, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategoryOfKey(t *testing.T) {
	tests := []struct {
		key  string
		want Category
		ok   bool
	}{
		{"s_distribution_density", CatDistribution, true},
		{"s_mask_vg_allow", CatMask, true},
		{"s_rot_align_z_method", CatRotation, true},
		{"s_visibility_camclip_cam_lens", CatVisibility, true},
		{"s_pattern_master_allow", CatPattern, true},
		{"s_pattern1_allow", CatPattern, true},
		{"s_pattern3_id_color_tolerence", CatPattern, true},
		{"s_pattern4_allow", 0, false},
		{"s_scale1_allow", 0, false},
		{"s_scalex", 0, false},
		{"s_gr_mask_vg_allow", 0, false},
	}
	for _, tt := range tests {
		got, ok := CategoryOfKey(tt.key)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("CategoryOfKey(%q) = %v,%v want %v,%v", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNewChangePatternKey(t *testing.T) {
	rec, err := NewChange("grass", "s_pattern1_allow", true)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Category != CatPattern {
		t.Errorf("category = %v, want pattern", rec.Category)
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("compute: %w", Errorf(KindMissingAttribute, "sys1", "s_mask_vg", "vertex group %q", "density"))
	if !errors.Is(err, ErrMissingAttribute) {
		t.Error("expected errors.Is to match the kind sentinel")
	}
	if errors.Is(err, ErrInvalidReference) {
		t.Error("unexpected match on another kind")
	}
	if !errors.Is(err, &Error{Kind: KindMissingAttribute, System: "sys1"}) {
		t.Error("expected match on kind+system")
	}
	if errors.Is(err, &Error{Kind: KindMissingAttribute, System: "sys2"}) {
		t.Error("unexpected match on other system")
	}
	if k, ok := KindOf(err); !ok || k != KindMissingAttribute {
		t.Errorf("KindOf = %v,%v", k, ok)
	}
}

func TestReportDedupe(t *testing.T) {
	var r Report
	for i := 0; i < 10; i++ {
		r.Add(Errorf(KindMissingAttribute, "a", "vg", "missing"))
	}
	r.Add(Errorf(KindResourceBudget, "a", "volume", "too many voxels"))
	r.Add(nil)
	if n := len(r.Entries()); n != 2 {
		t.Fatalf("entries = %d, want 2", n)
	}
	if !r.Has(KindResourceBudget) || r.Has(KindCycle) {
		t.Error("Has reported wrong kinds")
	}
}

func TestNewSystemValid(t *testing.T) {
	s := NewSystem("a", "Grass")
	if err := s.Validate(); err != nil {
		t.Fatalf("default system invalid: %v", err)
	}
	for _, c := range Categories() {
		if c.HasMaster() && s.Enabled(c) {
			t.Errorf("category %v enabled by default", c)
		}
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	s := NewSystem("a", "Grass")
	s.Distribution.Method = "spiral"
	s.Distribution.Density = -1
	s.Visibility.View.Percentage = 140
	err := s.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid_config, got %v", err)
	}
	for _, feature := range []string{"s_distribution_method", "s_distribution_density", "s_visibility_view_percentage"} {
		if !errors.Is(err, &Error{Kind: KindInvalidConfig, Feature: feature}) {
			t.Errorf("missing problem for %s", feature)
		}
	}
}

func TestResetCategory(t *testing.T) {
	s := NewSystem("a", "")
	s.Scale.Master = true
	s.Scale.Random.Allow = true
	s.Scale.Default.Value = geom.V(2, 2, 2)
	s.Rotation.Master = true
	s.ResetCategory(CatScale)
	if s.Scale.Master || s.Scale.Random.Allow || s.Scale.Default.Value != geom.One {
		t.Errorf("scale not reset: %+v", s.Scale.Default)
	}
	if !s.Rotation.Master {
		t.Error("reset leaked into another category")
	}
}

func TestLocks(t *testing.T) {
	s := NewSystem("a", "")
	s.SetLocked(CatMask, true)
	if !s.Locked(CatMask) || s.Locked(CatScale) {
		t.Error("lock state wrong")
	}
	s.SetLocked(CatMask, false)
	if s.Locked(CatMask) {
		t.Error("unlock failed")
	}
}

func TestSeedIndependence(t *testing.T) {
	s := NewSystem("a", "")
	if s.Seed("scale_random", 0) == s.Seed("rot_random", 0) {
		t.Error("features with the same seed share a stream")
	}
	before := s.Seed("scale_random", 3)
	s.MasterSeed = 7
	if s.Seed("scale_random", 3) == before {
		t.Error("master seed not mixed in")
	}
}

func TestEcosystemPtrs(t *testing.T) {
	s := NewSystem("a", "")
	s.Ecosystem.Affinity.Slots[0].Ptr = "b"
	s.Ecosystem.Repulsion.Slots[1].Ptr = "c"
	if got := s.EcosystemPtrs(); len(got) != 0 {
		t.Errorf("disabled ecosystem returned %v", got)
	}
	s.Ecosystem.Master = true
	s.Ecosystem.Affinity.Allow = true
	s.Ecosystem.Repulsion.Allow = true
	got := s.EcosystemPtrs()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("ptrs = %v", got)
	}
}

func TestViewportMethodActive(t *testing.T) {
	tests := []struct {
		m    ViewportMethod
		st   EvalState
		want bool
	}{
		{ViewportOnly, StateViewport, true},
		{ViewportOnly, StateShaded, false},
		{ViewportOnly, StateRender, false},
		{ExceptRendered, StateViewport, true},
		{ExceptRendered, StateShaded, true},
		{ExceptRendered, StateRender, false},
		{ViewportAndRender, StateRender, true},
	}
	for _, tt := range tests {
		if got := tt.m.Active(tt.st); got != tt.want {
			t.Errorf("%s.Active(%s) = %v, want %v", tt.m, tt.st, got, tt.want)
		}
	}
}

func TestGroupFactors(t *testing.T) {
	var nilGroup *Group
	if nilGroup.ScaleFactor() != geom.One || nilGroup.DensityFactor() != 1 {
		t.Error("nil group is not identity")
	}
	g := NewGroup("forest")
	if g.ScaleFactor() != geom.One {
		t.Error("disabled boost is not identity")
	}
	g.Scale.Master = true
	g.Scale.Boost.Allow = true
	g.Scale.Boost.Value = geom.V(2, 1, 1)
	g.Scale.Boost.Multiplier = 1.5
	got := g.ScaleFactor()
	if math.Abs(got.X-3) > 1e-12 || math.Abs(got.Y-1.5) > 1e-12 {
		t.Errorf("ScaleFactor = %v", got)
	}
}

func TestStreamEqualAndClone(t *testing.T) {
	s := &PointStream{System: "a"}
	for i := 3; i > 0; i-- {
		p := NewPoint(uint64(i), geom.V(float64(i), 0, 0), geom.AxisZ)
		p.Attrs = []float64{float64(i)}
		s.Points = append(s.Points, p)
	}
	s.SortByID()
	if s.Points[0].ID != 1 || s.Points[2].ID != 3 {
		t.Fatalf("not sorted: %d %d", s.Points[0].ID, s.Points[2].ID)
	}
	c := s.Clone()
	if !s.Equal(c) {
		t.Fatal("clone differs")
	}
	c.Points[1].Attrs[0] = 42
	if s.Points[1].Attrs[0] == 42 {
		t.Error("clone shares attribute storage")
	}
	if s.Equal(c) {
		t.Error("Equal missed an attribute change")
	}
}

func TestPointRecord(t *testing.T) {
	p := NewPoint(9, geom.V(1, 2, 3), geom.V(0, 0, 2))
	p.Instance = 4
	p.Surface = 7
	r := p.Record()
	if r.PX != 1 || r.PY != 2 || r.PZ != 3 || r.NZ != 1 || r.QW != 1 {
		t.Errorf("record = %+v", r)
	}
	if r.Instance != 4 || r.Surface != 7 {
		t.Errorf("instance/surface = %d/%d", r.Instance, r.Surface)
	}
}

func TestNewChange(t *testing.T) {
	c, err := NewChange("a", "s_scale_random_allow", true)
	if err != nil || c.Category != CatScale {
		t.Fatalf("NewChange = %+v, %v", c, err)
	}
	if _, err := NewChange("a", "bogus", 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected invalid_config, got %v", err)
	}
	if c, err := NewChange("a", MasterSeedKey, 3); err != nil || c.Category != CatDistribution {
		t.Errorf("master seed change = %+v, %v", c, err)
	}
}
