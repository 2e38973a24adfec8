// Package project persists an emitter session between CLI invocations: the
// scene path, groups, systems with their settings, sync channels and the
// clipboard. The file is TOML; system settings use the same property keys
// as presets.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
	"github.com/pthm-cable/scatter/surface"
)

// DefaultFile is the project file name used when none is given.
const DefaultFile = "scatter.toml"

// Project is the persisted session.
type Project struct {
	Scene     string        `toml:"scene"`
	PresetDir string        `toml:"preset_dir,omitempty"`
	Active    string        `toml:"active,omitempty"`

	// Collections are added to the scene on load, e.g. the instance
	// collections created by add-system and biome.
	Collections map[string][]string `toml:"collections,omitempty"`

	Groups    []GroupDoc    `toml:"group,omitempty"`
	Systems   []SystemDoc   `toml:"system,omitempty"`
	Channels  []ChannelDoc  `toml:"channel,omitempty"`
	Clipboard *ClipboardDoc `toml:"clipboard,omitempty"`

	path string
}

// GroupDoc is a persisted group.
type GroupDoc struct {
	Name     string         `toml:"name"`
	Settings map[string]any `toml:"settings,omitempty"`
}

// SystemDoc is a persisted system.
type SystemDoc struct {
	ID       string             `toml:"id"`
	Name     string             `toml:"name"`
	Color    [3]float64         `toml:"color"`
	Surfaces []string           `toml:"surfaces"`
	Group    string             `toml:"group,omitempty"`
	Selected bool               `toml:"selected,omitempty"`
	Locked   []scatter.Category `toml:"locked,omitempty"`
	Columns  []ColumnDoc        `toml:"column,omitempty"`
	Settings map[string]any     `toml:"settings,omitempty"`
}

// ColumnDoc is a declared attribute column.
type ColumnDoc struct {
	Name   string `toml:"name"`
	Source string `toml:"source"`
}

// ChannelDoc is a persisted sync channel.
type ChannelDoc struct {
	Name    string      `toml:"name"`
	Enabled bool        `toml:"enabled"`
	Members []MemberDoc `toml:"member,omitempty"`
}

// MemberDoc is one (system, category) pair of a channel.
type MemberDoc struct {
	System   string           `toml:"system"`
	Category scatter.Category `toml:"category"`
}

// ClipboardDoc is the persisted clipboard.
type ClipboardDoc struct {
	Category *scatter.Category `toml:"category,omitempty"`
	Source   string            `toml:"source,omitempty"`
	Values   map[string]any    `toml:"values,omitempty"`
	Systems  []SystemDoc       `toml:"system,omitempty"`
}

// New returns an empty project stored at path.
func New(path, scene string) (*Project, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding project path: %w", err)
	}
	return &Project{Scene: scene, path: full}, nil
}

// Load reads the project file at path. A leading ~ is expanded.
func Load(path string) (*Project, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding project path: %w", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading project: %w", err)
	}
	p := &Project{}
	if err := toml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing project %s: %w", full, err)
	}
	p.path = full
	return p, nil
}

// Exists reports whether a project file is present at path.
func Exists(path string) bool {
	full, err := homedir.Expand(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return !errors.Is(err, os.ErrNotExist)
}

// Path returns the file the project is stored in.
func (p *Project) Path() string { return p.path }

// Save writes the project back to its file, replacing it atomically.
func (p *Project) Save() error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding project: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("writing project: %w", err)
	}
	return nil
}

// resolve expands ~ in path and makes it relative to the project file.
func (p *Project) resolve(path string) (string, error) {
	full, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(full) {
		return full, nil
	}
	return filepath.Join(filepath.Dir(p.path), full), nil
}

// ScenePath returns the scene file path, or "" for an empty scene.
func (p *Project) ScenePath() (string, error) {
	if p.Scene == "" {
		return "", nil
	}
	return p.resolve(p.Scene)
}

// Presets returns the preset directory, defaulting to ~/.scatter/presets.
func (p *Project) Presets() (string, error) {
	if p.PresetDir == "" {
		return homedir.Expand("~/.scatter/presets")
	}
	return p.resolve(p.PresetDir)
}

// LoadScene reads the project scene and adds the project collections. A
// project without a scene gets an empty one.
func (p *Project) LoadScene() (*surface.Scene, error) {
	path, err := p.ScenePath()
	if err != nil {
		return nil, fmt.Errorf("resolving scene path: %w", err)
	}
	sc := surface.NewScene()
	if path != "" {
		if sc, err = surface.LoadScene(path); err != nil {
			return nil, err
		}
	}
	for name, objs := range p.Collections {
		sc.Collections[name] = append([]string(nil), objs...)
	}
	return sc, nil
}

// Open builds an emitter holding the project's systems. Unknown setting
// keys are reported and otherwise ignored.
func (p *Project) Open(opts pipeline.Options) (*pipeline.Emitter, *scatter.Report, error) {
	sc, err := p.LoadScene()
	if err != nil {
		return nil, nil, err
	}
	rep := &scatter.Report{}
	e := pipeline.New(sc, opts)

	for _, gd := range p.Groups {
		g := e.AddGroup(gd.Name)
		res, err := settings.ApplyGroup(g, gd.Settings)
		if err != nil {
			return nil, nil, fmt.Errorf("group %s: %w", gd.Name, err)
		}
		reportIgnored(rep, gd.Name, res)
	}
	for _, sd := range p.Systems {
		sys, res, err := sd.System()
		if err != nil {
			return nil, nil, err
		}
		reportIgnored(rep, sd.ID, res)
		if err := e.AddSystem(sys); err != nil {
			return nil, nil, err
		}
		if len(sd.Columns) > 0 {
			if err := e.SetColumns(sd.ID, sd.columns()); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, cd := range p.Channels {
		if err := e.AddSyncChannel(cd.Name); err != nil {
			return nil, nil, err
		}
		for _, m := range cd.Members {
			if err := e.SyncJoin(cd.Name, m.System, m.Category); err != nil {
				return nil, nil, fmt.Errorf("channel %s: %w", cd.Name, err)
			}
		}
		if err := e.SetSyncEnabled(cd.Name, cd.Enabled); err != nil {
			return nil, nil, err
		}
	}
	if p.Clipboard != nil {
		clip, err := p.Clipboard.clipboard()
		if err != nil {
			return nil, nil, err
		}
		e.SetClipboard(clip)
	}
	return e, rep, nil
}

func reportIgnored(rep *scatter.Report, owner string, res settings.Result) {
	for _, k := range res.Ignored {
		msg := "ignored key"
		if s, ok := res.Suggestions[k]; ok {
			msg = fmt.Sprintf("ignored key, did you mean %s", s)
		}
		rep.Add(scatter.Errorf(scatter.KindInvalidConfig, owner, k, "%s", msg))
	}
}

// Capture replaces the project contents with the state of e.
func (p *Project) Capture(e *pipeline.Emitter) {
	p.Groups = p.Groups[:0]
	for _, name := range e.Groups() {
		g, _ := e.Group(name)
		p.Groups = append(p.Groups, GroupDoc{Name: name, Settings: settings.FlattenGroup(g, settings.Options{})})
	}

	p.Systems = p.Systems[:0]
	active := false
	for _, sys := range e.Systems() {
		p.Systems = append(p.Systems, NewSystemDoc(sys, e.Columns(sys.ID)))
		active = active || sys.ID == p.Active
	}
	if !active {
		p.Active = ""
	}

	p.Channels = p.Channels[:0]
	for _, ch := range e.SyncChannels() {
		cd := ChannelDoc{Name: ch.Name, Enabled: ch.Enabled}
		for _, m := range ch.Members {
			cd.Members = append(cd.Members, MemberDoc{System: m.System, Category: m.Category})
		}
		p.Channels = append(p.Channels, cd)
	}

	p.Clipboard = newClipboardDoc(e.Clipboard())
}

// NewSystemDoc captures sys and its columns.
func NewSystemDoc(sys *scatter.System, cols []scatter.Column) SystemDoc {
	d := SystemDoc{
		ID:       sys.ID,
		Name:     sys.Name,
		Color:    sys.Color,
		Surfaces: append([]string(nil), sys.Surfaces...),
		Group:    sys.Group,
		Selected: sys.Selected,
		Settings: settings.Flatten(sys, settings.Options{}),
	}
	for _, c := range scatter.Categories() {
		if sys.Locked(c) {
			d.Locked = append(d.Locked, c)
		}
	}
	for _, c := range cols {
		d.Columns = append(d.Columns, ColumnDoc(c))
	}
	return d
}

// System decodes the document into a system.
func (d SystemDoc) System() (*scatter.System, settings.Result, error) {
	sys, res, err := settings.Parse(d.ID, d.Settings)
	if err != nil {
		return nil, res, fmt.Errorf("system %s: %w", d.ID, err)
	}
	sys.Name = d.Name
	if sys.Name == "" {
		sys.Name = d.ID
	}
	sys.Color = d.Color
	sys.Surfaces = append([]string(nil), d.Surfaces...)
	sys.Group = d.Group
	sys.Selected = d.Selected
	for _, c := range d.Locked {
		sys.SetLocked(c, true)
	}
	return sys, res, nil
}

func (d SystemDoc) columns() []scatter.Column {
	out := make([]scatter.Column, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = scatter.Column(c)
	}
	return out
}

func newClipboardDoc(c pipeline.Clipboard) *ClipboardDoc {
	d := &ClipboardDoc{}
	if cat, src, ok := c.Category(); ok {
		d.Category = &cat
		d.Source = src
		d.Values = settings.Flatten(c.CategoryBuffer(), settings.Options{Categories: []scatter.Category{cat}, Full: true})
	}
	for _, s := range c.SystemBuffers() {
		d.Systems = append(d.Systems, NewSystemDoc(s, nil))
	}
	if d.Category == nil && len(d.Systems) == 0 {
		return nil
	}
	return d
}

func (d *ClipboardDoc) clipboard() (pipeline.Clipboard, error) {
	var buf *scatter.System
	if d.Category != nil {
		sys, _, err := settings.Parse(d.Source, d.Values)
		if err != nil {
			return pipeline.Clipboard{}, fmt.Errorf("clipboard: %w", err)
		}
		buf = sys
	}
	var systems []*scatter.System
	for _, sd := range d.Systems {
		sys, _, err := sd.System()
		if err != nil {
			return pipeline.Clipboard{}, fmt.Errorf("clipboard: %w", err)
		}
		systems = append(systems, sys)
	}
	return pipeline.NewClipboard(d.Category, d.Source, buf, systems), nil
}
