package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// BiomeInfo is the descriptive header of a biome file.
type BiomeInfo struct {
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	Keywords         string  `json:"keywords,omitempty"`
	Author           string  `json:"author,omitempty"`
	Website          string  `json:"website,omitempty"`
	Description      string  `json:"description,omitempty"`
	LayerCount       int     `json:"layercount"`
	EstimatedDensity float64 `json:"estimated_density"`
}

// BiomeLayer is one system of a biome.
type BiomeLayer struct {
	Key       string         `json:"-"`
	Name      string         `json:"name"`
	Color     []float64      `json:"color"`
	Preset    string         `json:"preset"`
	AssetFile string         `json:"asset_file,omitempty"`
	Instances []string       `json:"instances"`
	Display   map[string]any `json:"display,omitempty"`

	preset *Preset
}

// Biome is a set of preset layers sharing one group.
type Biome struct {
	Info   BiomeInfo
	Layers []BiomeLayer
	Path   string
}

// ReadBiome loads a biome file and the preset of every layer. Preset paths
// are relative to the biome; BASENAME expands to the biome file name
// without extension.
func ReadBiome(path string) (*Biome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading biome: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding biome %s: %w", path, err)
	}
	b := &Biome{Path: path}
	if info, ok := raw["info"]; ok {
		if err := json.Unmarshal(info, &b.Info); err != nil {
			return nil, fmt.Errorf("decoding biome info: %w", err)
		}
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.HasSuffix(base, ".biome") {
		base = strings.TrimSuffix(base, ".biome")
	}
	if b.Info.Name == "" {
		b.Info.Name = base
	}
	dir := filepath.Dir(path)

	var keys []string
	for k := range raw {
		if isLayerKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var l BiomeLayer
		if err := json.Unmarshal(raw[k], &l); err != nil {
			return nil, fmt.Errorf("decoding biome layer %s: %w", k, err)
		}
		l.Key = k
		if l.Preset == "" {
			return nil, scatter.Errorf(scatter.KindInvalidReference, l.Name, "preset", "layer %s has no preset", k)
		}
		ppath := filepath.Join(dir, strings.ReplaceAll(l.Preset, "BASENAME", base))
		p, err := LoadPreset(ppath)
		if err != nil {
			return nil, scatter.Errorf(scatter.KindInvalidReference, l.Name, "preset", "layer %s: %v", k, err)
		}
		l.preset = p
		b.Layers = append(b.Layers, l)
	}
	return b, nil
}

func isLayerKey(k string) bool {
	if k == "" {
		return false
	}
	for _, r := range k {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LayerPreset returns the loaded preset of a layer.
func (l *BiomeLayer) LayerPreset() *Preset { return l.preset }

// BindBiome creates one system per layer on the given surfaces. Each layer's
// instances are registered as a collection named after the system so the
// instance picker can resolve them; instances missing from the scene are
// reported and the layer keeps the ones found. All systems join a group
// named after the biome.
func BindBiome(b *Biome, sc *surface.Scene, surfaces []string, report *scatter.Report) ([]*scatter.System, *scatter.Group, error) {
	group := scatter.NewGroup(b.Info.Name)
	systems := make([]*scatter.System, 0, len(b.Layers))
	for i := range b.Layers {
		l := &b.Layers[i]
		id := fmt.Sprintf("%s.%s", b.Info.Name, l.Key)
		name := l.Name
		if name == "" {
			name = id
		}
		s := scatter.NewSystem(id, name)
		s.Surfaces = append([]string(nil), surfaces...)
		s.Group = group.Name
		if l.preset != nil {
			res, err := ApplyPreset(s, l.preset)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %s: %w", l.Key, err)
			}
			for _, k := range res.Ignored {
				report.Add(scatter.Errorf(scatter.KindInvalidConfig, id, k, "ignored preset key%s", res.hint(k)))
			}
		}
		if len(l.Color) >= 3 {
			s.Color = [3]float64{l.Color[0], l.Color[1], l.Color[2]}
		}
		if len(l.Display) > 0 {
			if _, err := Apply(s, l.Display); err != nil {
				return nil, nil, fmt.Errorf("layer %s display: %w", l.Key, err)
			}
		}

		coll := id + ".instances"
		var found []string
		for _, inst := range l.Instances {
			if _, ok := sc.Object(inst); ok {
				found = append(found, inst)
				continue
			}
			report.Add(scatter.Errorf(scatter.KindInvalidReference, id, "s_instances_coll_ptr", "instance %q not in scene", inst))
		}
		sc.Collections[coll] = found
		s.Instances.CollPtr = coll
		systems = append(systems, s)
	}
	return systems, group, nil
}
