package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/pthm-cable/scatter/components"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
	"github.com/pthm-cable/scatter/telemetry"
)

// Write sets one property of id, mirrored through enabled sync channels.
func (e *Emitter) Write(id, key string, value any) error {
	rec, err := scatter.NewChange(id, key, value)
	if err != nil {
		return err
	}
	rec.Modifiers.Sync = true
	return e.Set(rec)
}

// Set applies a change record. The write lands on rec.System, on every
// selected system when Alt is set, and on the sync siblings of each of
// those when Sync is set. Either every target is written or none is: a
// locked category or a bad value on any target aborts the whole write.
func (e *Emitter) Set(rec scatter.ChangeRecord) error {
	e.mu.Lock()
	err := e.set(rec)
	auto := err == nil && e.autoAfter(rec.Modifiers.Delay)
	e.unlock()
	if auto {
		e.autoCompute()
	}
	return err
}

func (e *Emitter) set(rec scatter.ChangeRecord) error {
	if _, _, _, ok := e.get(rec.System); !ok {
		return errNotFound(rec.System)
	}
	targets := e.targets(rec)
	systems := make([]*scatter.System, len(targets))
	for i, id := range targets {
		cfg, _, _, _ := e.get(id)
		if cfg.System.Locked(rec.Category) {
			return fmt.Errorf("set %s on %s: %w", rec.Property, id, ErrLocked)
		}
		systems[i] = cfg.System
	}

	snaps := make([]*scatter.System, 0, len(systems))
	for _, sys := range systems {
		snap, err := snapshotCategory(sys, rec.Category)
		if err == nil {
			err = settings.Set(sys, rec.Property, rec.Value)
		}
		if err != nil {
			for i := len(snaps) - 1; i >= 0; i-- {
				restoreCategory(systems[i], snaps[i], rec.Category)
			}
			if snap != nil {
				restoreCategory(sys, snap, rec.Category)
			}
			return fmt.Errorf("set %s on %s: %w", rec.Property, sys.ID, err)
		}
		snaps = append(snaps, snap)
	}

	e.invalidate(targets...)
	e.log.Debug("set", "change", rec.String(), "targets", len(targets))
	return nil
}

// targets lists the systems a change record writes to, without duplicates,
// primary first and sync siblings in channel membership order.
func (e *Emitter) targets(rec scatter.ChangeRecord) []string {
	ids := []string{rec.System}
	if rec.Modifiers.Alt {
		for _, id := range e.ids {
			if cfg, _, _, _ := e.get(id); cfg.System.Selected && id != rec.System {
				ids = append(ids, id)
			}
		}
	}
	if rec.Modifiers.Sync {
		for _, id := range slices.Clone(ids) {
			ids = append(ids, e.siblings(id, rec.Category)...)
		}
	}
	var out []string
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// snapshotCategory deep-copies category c of sys, plus the master seed
// which lives outside every category record.
func snapshotCategory(sys *scatter.System, c scatter.Category) (*scatter.System, error) {
	snap := &scatter.System{ID: sys.ID, MasterSeed: sys.MasterSeed}
	if err := copier.CopyWithOption(snap.Category(c), sys.Category(c), copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("snapshot %s of %s: %w", c, sys.ID, err)
	}
	return snap, nil
}

func restoreCategory(sys, snap *scatter.System, c scatter.Category) {
	sys.ResetCategory(c)
	_ = copier.CopyWithOption(sys.Category(c), snap.Category(c), copier.Option{DeepCopy: true})
	sys.MasterSeed = snap.MasterSeed
}

// Mutate runs fn on the live configuration of id and mirrors category c to
// the system's sync siblings. fn must only change category c. If fn fails
// the category is restored.
func (e *Emitter) Mutate(id string, c scatter.Category, fn func(*scatter.System) error) error {
	e.mu.Lock()
	err := e.mutate(id, c, fn)
	auto := err == nil && e.autoAfter(false)
	e.unlock()
	if auto {
		e.autoCompute()
	}
	return err
}

func (e *Emitter) mutate(id string, c scatter.Category, fn func(*scatter.System) error) error {
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	sys := cfg.System
	sibs := e.siblings(id, c)
	for _, sid := range append([]string{id}, sibs...) {
		if scfg, _, _, _ := e.get(sid); scfg.System.Locked(c) {
			return fmt.Errorf("mutate %s on %s: %w", c, sid, ErrLocked)
		}
	}
	snap, err := snapshotCategory(sys, c)
	if err != nil {
		return err
	}
	if err := fn(sys); err != nil {
		restoreCategory(sys, snap, c)
		return fmt.Errorf("mutate %s on %s: %w", c, id, err)
	}
	for _, sid := range sibs {
		scfg, _, _, _ := e.get(sid)
		if err := copyCategory(scfg.System, sys, c); err != nil {
			return err
		}
	}
	e.invalidate(append([]string{id}, sibs...)...)
	return nil
}

// copyCategory deep-copies category c from src into dst.
func copyCategory(dst, src *scatter.System, c scatter.Category) error {
	dst.ResetCategory(c)
	if err := copier.CopyWithOption(dst.Category(c), src.Category(c), copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("copy %s from %s to %s: %w", c, src.ID, dst.ID, err)
	}
	if c == scatter.CatDistribution {
		dst.MasterSeed = src.MasterSeed
	}
	return nil
}

// SetGroup sets one s_gr_ property of a group and marks its members dirty.
func (e *Emitter) SetGroup(name, key string, value any) error {
	e.mu.Lock()
	err := e.setGroup(name, key, value)
	auto := err == nil && e.autoAfter(false)
	e.unlock()
	if auto {
		e.autoCompute()
	}
	return err
}

func (e *Emitter) setGroup(name, key string, value any) error {
	g, ok := e.groups[name]
	if !ok {
		return scatter.Errorf(scatter.KindInvalidReference, name, "group", "group not found")
	}
	res, err := settings.ApplyGroup(g, map[string]any{key: value})
	if err != nil {
		return fmt.Errorf("set %s on group %s: %w", key, name, err)
	}
	if len(res.Ignored) > 0 {
		return scatter.Errorf(scatter.KindInvalidConfig, name, key, "unknown group property")
	}
	e.invalidate(e.members(name)...)
	return nil
}

// ApplyPreset applies p to each of ids. Locked categories are skipped by
// the preset itself; unknown keys are logged and otherwise ignored.
func (e *Emitter) ApplyPreset(p *settings.Preset, ids ...string) error {
	e.mu.Lock()
	err := e.applyPreset(p, ids)
	auto := err == nil && e.autoAfter(false)
	e.unlock()
	if auto {
		e.autoCompute()
	}
	return err
}

func (e *Emitter) applyPreset(p *settings.Preset, ids []string) error {
	for _, id := range ids {
		if _, _, _, ok := e.get(id); !ok {
			return errNotFound(id)
		}
	}
	for _, id := range ids {
		cfg, _, _, _ := e.get(id)
		res, err := settings.ApplyPreset(cfg.System, p)
		if err != nil {
			e.invalidate(id)
			return fmt.Errorf("apply preset %q to %s: %w", p.Name, id, err)
		}
		if len(res.Ignored) > 0 {
			e.log.Debug("preset keys ignored", "system", id, "preset", p.Name, "keys", res.Ignored)
		}
	}
	e.invalidate(ids...)
	return nil
}

// Lock makes category c of id refuse writes.
func (e *Emitter) Lock(id string, c scatter.Category) error {
	return e.setLocked(id, c, true)
}

// Unlock lets category c of id accept writes again.
func (e *Emitter) Unlock(id string, c scatter.Category) error {
	return e.setLocked(id, c, false)
}

func (e *Emitter) setLocked(id string, c scatter.Category, locked bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	cfg.System.SetLocked(c, locked)
	return nil
}

// Invalidate marks ids and everything downstream of them dirty.
func (e *Emitter) Invalidate(ids ...string) {
	e.mu.Lock()
	defer e.unlock()
	e.invalidate(ids...)
}

// invalidate marks ids and every system downstream of them dirty. Inside a
// pause the ids are queued until the outermost release.
func (e *Emitter) invalidate(ids ...string) {
	if e.paused > 0 {
		for _, id := range ids {
			if !slices.Contains(e.pending, id) {
				e.pending = append(e.pending, id)
			}
		}
		return
	}
	for _, id := range e.downstream(ids) {
		e.setDirty(id)
	}
}

// downstream returns ids plus every system that transitively reads them,
// in insertion order.
func (e *Emitter) downstream(ids []string) []string {
	seen := map[string]bool{}
	queue := slices.Clone(ids)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		queue = append(queue, e.dependents(id)...)
	}
	var out []string
	for _, id := range e.ids {
		if seen[id] {
			out = append(out, id)
		}
	}
	return out
}

func (e *Emitter) setDirty(id string) {
	_, run, _, ok := e.get(id)
	if !ok {
		return
	}
	switch run.State {
	case components.StateComputing:
		run.WrittenDuring = true
	case components.StateDirty:
	default:
		run.State = components.StateDirty
		e.emit(telemetry.NewDirtyEvent(id))
	}
}

// Pause suspends dirty propagation until the returned release function is
// called. Pauses nest; when the outermost one is released the queued
// systems are invalidated at once and, with AutoCompute, recomputed in a
// single pass. release is safe to call more than once, so it can be
// deferred on every path.
func (e *Emitter) Pause() (release func()) {
	e.mu.Lock()
	e.paused++
	e.mu.Unlock()
	var once sync.Once
	return func() { once.Do(e.resume) }
}

func (e *Emitter) resume() {
	e.mu.Lock()
	e.paused--
	auto := false
	if e.paused == 0 {
		ids := e.pending
		e.pending = nil
		e.invalidate(ids...)
		auto = e.opts.AutoCompute && e.pendingAuto
		e.pendingAuto = false
	}
	e.unlock()
	if auto {
		e.autoCompute()
	}
}

// autoAfter reports whether a write should trigger a recompute now. Inside
// a pause it records the request for the release instead.
func (e *Emitter) autoAfter(delay bool) bool {
	if !e.opts.AutoCompute || delay {
		return false
	}
	if e.paused > 0 {
		e.pendingAuto = true
		return false
	}
	return true
}

func (e *Emitter) autoCompute() {
	if err := e.ComputeAll(context.Background(), e.opts.State); err != nil {
		e.log.Warn("auto compute", "error", err)
	}
}
