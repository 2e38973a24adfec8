package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		want Tag
	}{
		{"", Tag{Kind: TagSkip}},
		{"density", Tag{Name: "density", Kind: TagScalar}},
		{"random,group", Tag{Name: "random", Kind: TagGroup}},
		{"1,group,attach", Tag{Name: "1", Kind: TagGroup, Attach: true}},
		{",inline", Tag{Kind: TagInline}},
		{"mask_dict,dict", Tag{Name: "mask_dict", Kind: TagDict}},
		{"id,slots", Tag{Name: "id", Kind: TagSlots}},
		{"scale,category", Tag{Name: "scale", Kind: TagCategory}},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			if got := ParseTag(tt.tag); got != tt.want {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	keys := Keys(scatter.NewSystem("a", "a"))
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
	for _, want := range []string{
		"s_master_seed",
		"s_distribution_density",
		"s_distribution_clump_fallremap_data",
		"s_distribution_projbezarea_projlength",
		"s_mask_vg_allow",
		"s_scale_random_factor",
		"s_scale_random_mask_method",
		"s_rot_align_z_method",
		"s_pattern1_allow",
		"s_pattern3_id_color_tolerence",
		"s_abiotic_dir_treshold",
		"s_proximity_repel2_coll_ptr",
		"s_proximity_repel1_nor_infl_allow",
		"s_ecosystem_affinity_01_ptr",
		"s_ecosystem_repulsion_03_limit_distance",
		"s_ecosystem_density_02_ptr",
		"s_push_fall_key1_pos",
		"s_wind_wave_texture_distorsion",
		"s_visibility_camclip_cam_boost_xy",
		"s_visibility_maxload_treshold",
		"s_instances_pick_method",
		"s_instances_id_20_scale_max",
		"s_display_placeholder_type",
	} {
		if !seen[want] {
			t.Errorf("missing key %s", want)
		}
	}
	for k := range seen {
		if k != scatter.MasterSeedKey {
			if _, ok := scatter.CategoryOfKey(k); !ok {
				t.Errorf("key %s has no category", k)
			}
		}
	}
}

func TestGroupKeys(t *testing.T) {
	var keys []string
	WalkGroup(scatter.NewGroup("g"), func(f Field) { keys = append(keys, f.Key) })
	joined := strings.Join(keys, " ")
	for _, want := range []string{
		"s_gr_mask_vg_allow", "s_gr_scale_boost_value", "s_gr_pattern1_allow",
		"s_gr_distribution_density_boost_factor",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing group key %s", want)
		}
	}
}

func TestFlattenDefaultsOmitsDisabled(t *testing.T) {
	d := Flatten(scatter.NewSystem("a", "a"), Options{})
	for k := range d {
		c, ok := scatter.CategoryOfKey(strings.TrimSuffix(k, "_mask_dict"))
		if !ok {
			continue
		}
		if c.HasMaster() {
			t.Errorf("disabled category %v emitted %s", c, k)
		}
	}
	if _, ok := d["s_distribution_method"]; !ok {
		t.Error("distribution method missing")
	}
}

func TestFlattenNestsMaskDict(t *testing.T) {
	s := scatter.NewSystem("a", "a")
	s.Scale.Master = true
	s.Scale.Random.Allow = true
	s.Scale.Random.Mask.Allow = true
	s.Scale.Random.Mask.Ptr = "density"
	d := Flatten(s, Options{})
	md, ok := d["s_scale_random_mask_dict"].(map[string]any)
	if !ok {
		t.Fatalf("mask dict missing: %v", d)
	}
	if md["s_scale_random_mask_ptr"] != "density" {
		t.Errorf("mask ptr = %v", md["s_scale_random_mask_ptr"])
	}
	if _, ok := d["s_scale_random_mask_ptr"]; ok {
		t.Error("mask key leaked to top level")
	}
}

func TestFlattenPatternOnly(t *testing.T) {
	s := scatter.NewSystem("a", "a")
	s.Pattern.Master = true
	s.Pattern.Pattern1.Allow = true
	s.Pattern.Pattern2.Allow = true
	d := Flatten(s, Options{Categories: []scatter.Category{scatter.CatPattern}})
	for _, k := range []string{"s_pattern_master_allow", "s_pattern1_allow", "s_pattern2_allow"} {
		if d[k] != true {
			t.Errorf("%s = %v, want true", k, d[k])
		}
	}
	for k := range d {
		if k != scatter.MasterSeedKey && !strings.HasPrefix(k, "s_pattern") {
			t.Errorf("pattern-only flatten emitted %s", k)
		}
	}
}

func mutated() *scatter.System {
	s := scatter.NewSystem("a", "a")
	s.MasterSeed = 12
	s.Distribution.Method = scatter.GenClumping
	s.Distribution.Clump.MaxDistance = 0.5
	s.Distribution.Clump.RemapData = [][2]float64{{0, 0}, {0.5, 0.8}, {1, 1}}
	s.Scale.Master = true
	s.Scale.Random.Allow = true
	s.Scale.Random.Factor = geom.V(0.2, 0.3, 0.4)
	s.Scale.Random.Mask.Allow = true
	s.Scale.Random.Mask.Method = scatter.MaskNoise
	s.Scale.Mirror.Allow = true
	s.Pattern.Master = true
	s.Pattern.Pattern2.Allow = true
	s.Pattern.Pattern2.IDColor = [3]float64{1, 0.5, 0}
	s.Ecosystem.Master = true
	s.Ecosystem.Repulsion.Allow = true
	s.Ecosystem.Repulsion.Slots[1].Ptr = "b"
	s.Ecosystem.Repulsion.Slots[1].MaxValue = 1
	s.Instances.Method = scatter.PickRate
	s.Instances.Slots[4].Rate = 35
	// Disabled feature holding a non-default value must survive too.
	s.Rotation.Random.TiltValue = 0.3
	return s
}

func TestRoundTripThroughJSON(t *testing.T) {
	src := mutated()
	b, err := json.Marshal(Flatten(src, Options{}))
	if err != nil {
		t.Fatal(err)
	}
	var d map[string]any
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatal(err)
	}
	got, res, err := Parse("a", d)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Ignored) != 0 {
		t.Errorf("ignored keys: %v", res.Ignored)
	}
	got.Name = src.Name
	if !reflect.DeepEqual(got, src) {
		for _, c := range scatter.Categories() {
			if !reflect.DeepEqual(got.Category(c), src.Category(c)) {
				t.Errorf("category %v differs after round trip", c)
			}
		}
		if got.MasterSeed != src.MasterSeed {
			t.Errorf("master seed %d != %d", got.MasterSeed, src.MasterSeed)
		}
	}
}

func TestApplyUnknownAndBadValues(t *testing.T) {
	s := scatter.NewSystem("a", "a")
	res, err := Apply(s, map[string]any{
		"s_distribution_densty":  5.0,
		"qqq":                    1.0,
		"s_distribution_count":   2.5,
		"s_distribution_density": 3.0,
	})
	if !errors.Is(err, scatter.ErrInvalidConfig) {
		t.Errorf("expected invalid_config for fractional count, got %v", err)
	}
	if s.Distribution.Density != 3 {
		t.Errorf("density = %v, want 3", s.Distribution.Density)
	}
	if len(res.Ignored) != 2 {
		t.Errorf("ignored = %v", res.Ignored)
	}
	if res.Suggestions["s_distribution_densty"] != "s_distribution_density" {
		t.Errorf("suggestions = %v", res.Suggestions)
	}
	if _, ok := res.Suggestions["qqq"]; ok {
		t.Error("suggested a key for an unrelated name")
	}
}

func TestGetSet(t *testing.T) {
	s := scatter.NewSystem("a", "a")
	if err := Set(s, "s_scale_default_value", []any{2.0, 2.0, 2.0}); err != nil {
		t.Fatal(err)
	}
	if s.Scale.Default.Value != geom.V(2, 2, 2) {
		t.Errorf("value = %v", s.Scale.Default.Value)
	}
	v, ok := Get(s, "s_scale_default_value")
	if !ok || !reflect.DeepEqual(v, []float64{2, 2, 2}) {
		t.Errorf("Get = %v,%v", v, ok)
	}
	if err := Set(s, "s_scale_nope", 1.0); !errors.Is(err, scatter.ErrInvalidConfig) {
		t.Errorf("unknown key error = %v", err)
	}
	if err := Set(s, "s_rot_align_z_method", "camera"); err != nil || s.Rotation.AlignZ.Method != scatter.AlignCamera {
		t.Errorf("enum set = %v, %v", s.Rotation.AlignZ.Method, err)
	}
}

func TestPresetRoundTripAndIdempotence(t *testing.T) {
	src := mutated()
	p := NewPreset(src, "my preset", nil)
	var buf bytes.Buffer
	if err := WritePreset(&buf, p); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	if !strings.Contains(text, sentinel("scale")) || !strings.Contains(text, `"name": "my preset"`) {
		t.Errorf("preset text missing sentinel or name:\n%s", text)
	}
	if strings.Contains(text, `\u003e`) {
		t.Error("sentinels were HTML-escaped")
	}
	got, err := ReadPreset(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Coverage, DefaultCoverage()) {
		t.Errorf("coverage = %v", got.Coverage)
	}

	dst := scatter.NewSystem("b", "b")
	dst.Scale.Default.Value = geom.V(9, 9, 9)
	dst.Mask.Master = true
	if _, err := ApplyPreset(dst, got); err != nil {
		t.Fatal(err)
	}
	once := Flatten(dst, Options{Full: true})
	if _, err := ApplyPreset(dst, got); err != nil {
		t.Fatal(err)
	}
	twice := Flatten(dst, Options{Full: true})
	if !reflect.DeepEqual(once, twice) {
		t.Error("applying a preset twice changed the configuration")
	}
	if dst.Scale.Default.Value != geom.One {
		t.Errorf("covered category not reset: %v", dst.Scale.Default.Value)
	}
	if !dst.Mask.Master {
		t.Error("uncovered category was touched")
	}
	if !reflect.DeepEqual(dst.Scale, src.Scale) || !reflect.DeepEqual(dst.Ecosystem, src.Ecosystem) {
		t.Error("covered categories differ from source")
	}
}

func TestApplyPresetRespectsLocks(t *testing.T) {
	src := mutated()
	p := NewPreset(src, "p", nil)
	dst := scatter.NewSystem("b", "b")
	dst.SetLocked(scatter.CatScale, true)
	if _, err := ApplyPreset(dst, p); err != nil {
		t.Fatal(err)
	}
	if dst.Scale.Master {
		t.Error("locked category was changed")
	}
	if !dst.Ecosystem.Master {
		t.Error("unlocked category not applied")
	}
}

func TestReadPresetVersion(t *testing.T) {
	if _, err := ReadPreset(strings.NewReader(`{"name":"x","version":"9.0.0"}`)); !errors.Is(err, scatter.ErrInvalidConfig) {
		t.Errorf("expected incompatible version error, got %v", err)
	}
	p, err := ReadPreset(strings.NewReader(`{"name":"x","s_distribution_density":4,">>>> DISTRIBUTION":""}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Values) != 1 {
		t.Errorf("values = %v", p.Values)
	}
}

func TestPresetFileName(t *testing.T) {
	cat := scatter.CatScale
	if got := PresetFileName("my preset", &cat); got != "s_scale___my_preset.preset" {
		t.Errorf("got %s", got)
	}
	if got := PresetFileName("a/b", nil); got != "a_b.preset" {
		t.Errorf("got %s", got)
	}
}

func TestBiome(t *testing.T) {
	dir := t.TempDir()
	src := mutated()
	if _, err := SavePreset(dir, NewPreset(src, "forest.layer01", nil), nil); err != nil {
		t.Fatal(err)
	}
	biome := `{
  "info": {"name": "Forest", "type": "Biome", "layercount": 1},
  "01": {
    "name": "Trees",
    "color": [0.1, 0.5, 0.2, 1],
    "preset": "BASENAME.layer01.preset",
    "instances": ["tree", "ghost"],
    "display": {"s_display_method": "point"}
  }
}`
	path := filepath.Join(dir, "forest.biome")
	if err := os.WriteFile(path, []byte(biome), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := ReadBiome(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Layers) != 1 || b.Layers[0].LayerPreset() == nil {
		t.Fatalf("layers = %+v", b.Layers)
	}

	sc := surface.NewScene()
	sc.AddEmpty("tree", geom.IdentityTransform())
	var report scatter.Report
	systems, group, err := BindBiome(b, sc, []string{"ground"}, &report)
	if err != nil {
		t.Fatal(err)
	}
	if len(systems) != 1 || group.Name != "Forest" {
		t.Fatalf("systems=%d group=%s", len(systems), group.Name)
	}
	s := systems[0]
	if s.Name != "Trees" || s.Group != "Forest" || s.Surfaces[0] != "ground" {
		t.Errorf("system = %+v", s)
	}
	if s.Display.Method != scatter.DisplayPoint {
		t.Errorf("display method = %s", s.Display.Method)
	}
	if s.Color != [3]float64{0.1, 0.5, 0.2} {
		t.Errorf("color = %v", s.Color)
	}
	if got := sc.Collections[s.Instances.CollPtr]; len(got) != 1 || got[0] != "tree" {
		t.Errorf("instances = %v", got)
	}
	if !report.Has(scatter.KindInvalidReference) {
		t.Error("missing instance not reported")
	}
	if !reflect.DeepEqual(s.Scale, src.Scale) {
		t.Error("layer preset not applied")
	}
}
