package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
)

// Clipboard holds one copied category and one set of copied systems. The
// two slots are independent.
type Clipboard struct {
	hasCategory bool
	category    scatter.Category
	catSource   string
	catBuf      *scatter.System

	systems []*scatter.System
}

// Category returns the copied category and the system it came from.
func (c Clipboard) Category() (cat scatter.Category, source string, ok bool) {
	return c.category, c.catSource, c.hasCategory
}

// Systems returns the ids of the copied systems.
func (c Clipboard) Systems() []string {
	out := make([]string, len(c.systems))
	for i, s := range c.systems {
		out[i] = s.ID
	}
	return out
}

// CategoryBuffer returns the system holding the copied category, or nil.
func (c Clipboard) CategoryBuffer() *scatter.System { return c.catBuf }

// SystemBuffers returns the copied systems.
func (c Clipboard) SystemBuffers() []*scatter.System { return slices.Clone(c.systems) }

// NewClipboard builds clipboard contents, e.g. from a saved session. A nil
// cat leaves the category slot empty.
func NewClipboard(cat *scatter.Category, source string, catBuf *scatter.System, systems []*scatter.System) Clipboard {
	c := Clipboard{systems: slices.Clone(systems)}
	if cat != nil && catBuf != nil {
		c.hasCategory = true
		c.category = *cat
		c.catSource = source
		c.catBuf = catBuf
	}
	return c
}

// Describe renders the clipboard contents as "key = value" lines.
func (c Clipboard) Describe() string {
	var b strings.Builder
	if c.hasCategory {
		fmt.Fprintf(&b, "# category %s from %s\n", c.category, c.catSource)
		writeKeys(&b, settings.Flatten(c.catBuf, settings.Options{Categories: []scatter.Category{c.category}, Full: true}))
	}
	for _, s := range c.systems {
		fmt.Fprintf(&b, "# system %s (%s)\n", s.ID, s.Name)
		writeKeys(&b, settings.Flatten(s, settings.Options{}))
	}
	return b.String()
}

func writeKeys(b *strings.Builder, d map[string]any) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s = %v\n", k, d[k])
	}
}

// Clipboard returns a snapshot of the clipboard.
func (e *Emitter) Clipboard() Clipboard {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clip
}

// SetClipboard replaces the clipboard contents.
func (e *Emitter) SetClipboard(c Clipboard) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clip = c
}

// CopyCategory copies category c of id to the clipboard.
func (e *Emitter) CopyCategory(id string, c scatter.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	buf := scatter.NewSystem(id, cfg.System.Name)
	if err := copyCategory(buf, cfg.System, c); err != nil {
		return err
	}
	e.clip.hasCategory = true
	e.clip.category = c
	e.clip.catSource = id
	e.clip.catBuf = buf
	return nil
}

// PasteCategory pastes the clipboard category onto ids, or onto the
// selection when ids is empty. A locked target aborts the paste before
// anything is written.
func (e *Emitter) PasteCategory(ids ...string) error {
	e.mu.Lock()
	err := e.pasteCategory(ids)
	auto := err == nil && e.autoAfter(false)
	e.unlock()
	if auto {
		e.autoCompute()
	}
	return err
}

func (e *Emitter) pasteCategory(ids []string) error {
	if !e.clip.hasCategory {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "clipboard", "no category copied")
	}
	c := e.clip.category
	if len(ids) == 0 {
		ids = e.selected()
	}
	if len(ids) == 0 {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "clipboard", "no target systems")
	}
	for _, id := range ids {
		cfg, _, _, ok := e.get(id)
		if !ok {
			return errNotFound(id)
		}
		if cfg.System.Locked(c) {
			return fmt.Errorf("paste %s on %s: %w", c, id, ErrLocked)
		}
	}
	for _, id := range ids {
		cfg, _, _, _ := e.get(id)
		if err := copyCategory(cfg.System, e.clip.catBuf, c); err != nil {
			return err
		}
	}
	e.invalidate(ids...)
	return nil
}

// CopySystems copies ids, or the selection when ids is empty, to the
// clipboard.
func (e *Emitter) CopySystems(ids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(ids) == 0 {
		ids = e.selected()
	}
	if len(ids) == 0 {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "clipboard", "no systems to copy")
	}
	copies := make([]*scatter.System, 0, len(ids))
	for _, id := range ids {
		cfg, _, _, ok := e.get(id)
		if !ok {
			return errNotFound(id)
		}
		cp, err := cloneSystem(cfg.System)
		if err != nil {
			return err
		}
		copies = append(copies, cp)
	}
	e.clip.systems = copies
	return nil
}

// PasteSystems adds a copy of every clipboard system under a free
// ".NNN"-suffixed id and name. With sync each copy joins a new channel
// "sync.<source id>" together with its source, on every category.
func (e *Emitter) PasteSystems(sync bool) ([]string, error) {
	e.mu.Lock()
	defer e.unlock()
	if len(e.clip.systems) == 0 {
		return nil, scatter.Errorf(scatter.KindInvalidConfig, "", "clipboard", "no systems copied")
	}
	var added []string
	for _, src := range e.clip.systems {
		sys, err := cloneSystem(src)
		if err != nil {
			return added, err
		}
		suffix := e.freeSuffix(src.ID)
		sys.ID = src.ID + suffix
		sys.Name = src.Name + suffix
		sys.Selected = false
		if _, ok := e.groups[sys.Group]; !ok {
			sys.Group = ""
		}
		if err := e.addSystem(sys); err != nil {
			return added, err
		}
		added = append(added, sys.ID)
		if sync {
			e.syncPair("sync."+src.ID, src.ID, sys.ID)
		}
	}
	e.log.Info("systems pasted", "systems", added, "sync", sync)
	return added, nil
}

// freeSuffix returns the first ".NNN" suffix that makes id unused.
func (e *Emitter) freeSuffix(id string) string {
	for n := 1; ; n++ {
		s := fmt.Sprintf(".%03d", n)
		if _, ok := e.byID[id+s]; !ok {
			return s
		}
	}
}

// syncPair joins src (when it still exists) and dst to channel name on
// every category, creating the channel if needed.
func (e *Emitter) syncPair(name, src, dst string) {
	ch, _ := e.channel(name)
	if ch == nil {
		ch = &SyncChannel{Name: name, Enabled: true}
		e.channels = append(e.channels, ch)
	}
	for _, id := range []string{src, dst} {
		if _, _, _, ok := e.get(id); !ok {
			continue
		}
		for _, c := range scatter.Categories() {
			if m := (SyncMember{System: id, Category: c}); !ch.has(m) {
				ch.Members = append(ch.Members, m)
			}
		}
	}
}

func (e *Emitter) selected() []string {
	var out []string
	for _, id := range e.ids {
		if cfg, _, _, _ := e.get(id); cfg.System.Selected {
			out = append(out, id)
		}
	}
	return out
}
