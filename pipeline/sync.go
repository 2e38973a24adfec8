package pipeline

import (
	"slices"

	"github.com/pthm-cable/scatter/scatter"
)

// SyncMember is one (system, category) pair of a sync channel.
type SyncMember struct {
	System   string
	Category scatter.Category
}

// SyncChannel mirrors writes across its members. A write to a member's
// category is repeated on every other member holding the same category,
// in membership order.
type SyncChannel struct {
	Name    string
	Enabled bool
	Members []SyncMember
}

func (ch *SyncChannel) has(m SyncMember) bool { return slices.Contains(ch.Members, m) }

func (e *Emitter) channel(name string) (*SyncChannel, int) {
	for i, ch := range e.channels {
		if ch.Name == name {
			return ch, i
		}
	}
	return nil, -1
}

func errNoChannel(name string) error {
	return scatter.Errorf(scatter.KindInvalidReference, "", "sync", "sync channel %q not found", name)
}

// AddSyncChannel creates an enabled, empty channel.
func (e *Emitter) AddSyncChannel(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if name == "" {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "sync", "empty channel name")
	}
	if ch, _ := e.channel(name); ch != nil {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "sync", "sync channel %q already exists", name)
	}
	e.channels = append(e.channels, &SyncChannel{Name: name, Enabled: true})
	return nil
}

// RemoveSyncChannel deletes a channel. Member configurations are kept.
func (e *Emitter) RemoveSyncChannel(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, i := e.channel(name)
	if i < 0 {
		return errNoChannel(name)
	}
	e.channels = slices.Delete(e.channels, i, i+1)
	return nil
}

// SyncJoin adds categories of system to a channel. No categories means all
// of them. Joining does not copy anything; members converge on the next
// write.
func (e *Emitter) SyncJoin(name, system string, cats ...scatter.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.channel(name)
	if ch == nil {
		return errNoChannel(name)
	}
	if _, _, _, ok := e.get(system); !ok {
		return errNotFound(system)
	}
	if len(cats) == 0 {
		cats = scatter.Categories()
	}
	for _, c := range cats {
		if m := (SyncMember{System: system, Category: c}); !ch.has(m) {
			ch.Members = append(ch.Members, m)
		}
	}
	return nil
}

// SyncLeave removes categories of system from a channel. No categories
// removes the system entirely.
func (e *Emitter) SyncLeave(name, system string, cats ...scatter.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.channel(name)
	if ch == nil {
		return errNoChannel(name)
	}
	ch.Members = slices.DeleteFunc(ch.Members, func(m SyncMember) bool {
		return m.System == system && (len(cats) == 0 || slices.Contains(cats, m.Category))
	})
	return nil
}

// SetSyncEnabled turns mirroring through a channel on or off.
func (e *Emitter) SetSyncEnabled(name string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch, _ := e.channel(name)
	if ch == nil {
		return errNoChannel(name)
	}
	ch.Enabled = on
	return nil
}

// SyncChannels returns copies of every channel in creation order.
func (e *Emitter) SyncChannels() []SyncChannel {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]SyncChannel, len(e.channels))
	for i, ch := range e.channels {
		out[i] = SyncChannel{Name: ch.Name, Enabled: ch.Enabled, Members: slices.Clone(ch.Members)}
	}
	return out
}

// siblings returns the systems mirroring category c of id through enabled
// channels, in channel then membership order, without id itself.
func (e *Emitter) siblings(id string, c scatter.Category) []string {
	self := SyncMember{System: id, Category: c}
	var out []string
	for _, ch := range e.channels {
		if !ch.Enabled || !ch.has(self) {
			continue
		}
		for _, m := range ch.Members {
			if m.Category == c && m.System != id && !slices.Contains(out, m.System) {
				out = append(out, m.System)
			}
		}
	}
	return out
}
