package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/pthm-cable/scatter/scatter"
)

// PresetVersion is written to every preset. Readers accept any preset with
// the same major version.
const PresetVersion = "1.1.0"

var presetCompat = mustConstraint("^" + PresetVersion[:strings.Index(PresetVersion, ".")])

func mustConstraint(c string) *semver.Constraints {
	v, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return v
}

// Sentinel keys separate sections for human readers; readers skip them.
const sentinelPrefix = ">>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>>"

func sentinel(section string) string { return sentinelPrefix + " " + strings.ToUpper(section) }

// IsSentinel reports whether key is a section separator.
func IsSentinel(key string) bool { return strings.HasPrefix(key, ">>>") }

// DefaultCoverage is the set of categories a system preset carries unless
// told otherwise. Mask, proximity, visibility and display depend on the
// scene, not the look of a system.
func DefaultCoverage() []scatter.Category {
	return []scatter.Category{
		scatter.CatDistribution, scatter.CatScale, scatter.CatRotation, scatter.CatPattern,
		scatter.CatAbiotic, scatter.CatEcosystem, scatter.CatPush, scatter.CatWind,
		scatter.CatInstances,
	}
}

// Preset is a named, partial system configuration.
type Preset struct {
	Name    string
	Version string
	// EstimatedDensity is informational (points per square metre).
	EstimatedDensity float64
	Color            *[3]float64
	// Coverage lists the categories the preset resets and sets.
	Coverage []scatter.Category
	Values   map[string]any
}

// Covers reports whether the preset covers category c.
func (p *Preset) Covers(c scatter.Category) bool {
	for _, v := range p.Coverage {
		if v == c {
			return true
		}
	}
	return false
}

// NewPreset captures the given categories of s. A nil cats uses
// DefaultCoverage.
func NewPreset(s *scatter.System, name string, cats []scatter.Category) *Preset {
	if cats == nil {
		cats = DefaultCoverage()
	}
	color := s.Color
	p := &Preset{
		Name:     name,
		Version:  PresetVersion,
		Color:    &color,
		Coverage: append([]scatter.Category(nil), cats...),
		Values:   Flatten(s, Options{Categories: cats}),
	}
	return p
}

// marshalRaw encodes v on one line without HTML escaping, so the ">>>>"
// section sentinels stay readable.
func marshalRaw(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(b.Bytes(), []byte("\n")), nil
}

// WritePreset writes p as JSON with one section per covered category.
// Keys are written in a fixed order so identical presets produce identical
// files.
func WritePreset(w io.Writer, p *Preset) error {
	var buf bytes.Buffer
	first := true
	put := func(key string, v any) error {
		b, err := marshalRaw(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		k, _ := marshalRaw(key)
		if !first {
			buf.WriteString(",\n")
		}
		first = false
		buf.WriteString("    ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(b)
		return nil
	}

	buf.WriteString("{\n")
	version := p.Version
	if version == "" {
		version = PresetVersion
	}
	coverage := map[string]bool{}
	for _, c := range scatter.Categories() {
		coverage[c.Prefix()] = p.Covers(c)
	}
	head := []struct {
		k string
		v any
	}{
		{sentinel("information"), ""},
		{"name", p.Name},
		{"version", version},
		{"estimated_density", p.EstimatedDensity},
		{"coverage", coverage},
	}
	for _, h := range head {
		if err := put(h.k, h.v); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := put(sentinel("color"), ""); err != nil {
			return err
		}
		if err := put("s_color", p.Color[:]); err != nil {
			return err
		}
	}

	// Group values by category in pipeline order.
	byCat := map[scatter.Category][]string{}
	var loose []string
	for k := range p.Values {
		if c, ok := scatter.CategoryOfKey(strings.TrimSuffix(k, "_mask_dict")); ok {
			byCat[c] = append(byCat[c], k)
		} else {
			loose = append(loose, k)
		}
	}
	sort.Strings(loose)
	for _, k := range loose {
		if err := put(k, p.Values[k]); err != nil {
			return err
		}
	}
	for _, c := range scatter.Categories() {
		keys := byCat[c]
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)
		if err := put(sentinel(c.String()), ""); err != nil {
			return err
		}
		for _, k := range keys {
			if err := put(k, p.Values[k]); err != nil {
				return err
			}
		}
	}
	buf.WriteString("\n}\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadPreset parses a preset. Sentinels are dropped; unknown keys are kept
// in Values and ignored when applied. Presets without coverage flags cover
// DefaultCoverage.
func ReadPreset(r io.Reader) (*Preset, error) {
	var raw map[string]any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding preset: %w", err)
	}
	p := &Preset{Values: map[string]any{}}
	for k, v := range raw {
		if IsSentinel(k) {
			continue
		}
		switch k {
		case "name":
			p.Name, _ = v.(string)
		case "version":
			p.Version, _ = v.(string)
		case "estimated_density":
			p.EstimatedDensity, _ = v.(float64)
		case "coverage":
			m, ok := v.(map[string]any)
			if !ok {
				return nil, scatter.Errorf(scatter.KindInvalidConfig, "", "coverage", "expected an object")
			}
			for _, c := range scatter.Categories() {
				if on, _ := m[c.Prefix()].(bool); on {
					p.Coverage = append(p.Coverage, c)
				}
			}
		case "s_color":
			f, err := floats(v, 3)
			if err != nil {
				if f4, err4 := floats(v, 4); err4 == nil {
					f, err = f4[:3], nil
				}
			}
			if err != nil {
				return nil, scatter.Errorf(scatter.KindInvalidConfig, "", "s_color", "%v", err)
			}
			p.Color = &[3]float64{f[0], f[1], f[2]}
		default:
			p.Values[k] = v
		}
	}
	if p.Version != "" {
		v, err := semver.NewVersion(p.Version)
		if err != nil {
			return nil, scatter.Errorf(scatter.KindInvalidConfig, "", "version", "bad preset version %q: %v", p.Version, err)
		}
		if !presetCompat.Check(v) {
			return nil, scatter.Errorf(scatter.KindInvalidConfig, "", "version",
				"preset version %s is not compatible with %s", v, PresetVersion)
		}
	}
	if _, ok := raw["coverage"]; !ok {
		p.Coverage = DefaultCoverage()
	}
	return p, nil
}

// ApplyPreset resets every covered category of s to its defaults and then
// applies the preset values, so applying a preset twice is the same as
// applying it once. Locked categories are left untouched.
func ApplyPreset(s *scatter.System, p *Preset) (Result, error) {
	var cats []scatter.Category
	for _, c := range p.Coverage {
		if !s.Locked(c) {
			cats = append(cats, c)
		}
	}
	for _, c := range cats {
		s.ResetCategory(c)
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	values := map[string]any{}
	var skipped []string
	for k, v := range p.Values {
		c, ok := scatter.CategoryOfKey(strings.TrimSuffix(k, "_mask_dict"))
		if ok && !containsCat(cats, c) {
			skipped = append(skipped, k)
			continue
		}
		values[k] = v
	}
	res, err := Apply(s, values)
	sort.Strings(skipped)
	res.Ignored = append(res.Ignored, skipped...)
	return res, err
}

func containsCat(cats []scatter.Category, c scatter.Category) bool {
	for _, v := range cats {
		if v == c {
			return true
		}
	}
	return false
}

// PresetFileName returns the file name of a preset. Category presets are
// prefixed with the category (s_scale___name.preset).
func PresetFileName(name string, cat *scatter.Category) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	clean = strings.ReplaceAll(clean, " ", "_")
	if cat != nil {
		return cat.Prefix() + "___" + clean + ".preset"
	}
	return clean + ".preset"
}

// SavePreset writes p into dir under PresetFileName.
func SavePreset(dir string, p *Preset, cat *scatter.Category) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating preset dir: %w", err)
	}
	path := filepath.Join(dir, PresetFileName(p.Name, cat))
	var buf bytes.Buffer
	if err := WritePreset(&buf, p); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing preset: %w", err)
	}
	return path, nil
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening preset: %w", err)
	}
	defer f.Close()
	p, err := ReadPreset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), ".preset")
	}
	return p, nil
}
