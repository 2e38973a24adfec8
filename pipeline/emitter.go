// Package pipeline composes the stages into per-system computes and owns
// the systems of one emitter: their state machine, dirty propagation across
// ecosystem references, sync channels, update pauses and the clipboard.
package pipeline

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/scatter/components"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/telemetry"
	"github.com/pthm-cable/scatter/transfer"
)

var (
	// ErrLocked is returned for writes to a locked category.
	ErrLocked = errors.New("category locked")
	// ErrSuperseded is returned by a compute that a newer compute of the
	// same system replaced.
	ErrSuperseded = errors.New("compute superseded")
)

// Emitter owns a set of systems. Every system is an entity of an ECS world
// carrying its Config, Run state and last READY Output. Methods are safe
// for concurrent use; computes are serialized.
type Emitter struct {
	mu sync.Mutex

	world  *ecs.World
	mapper *ecs.Map3[components.Config, components.Run, components.Output]
	filter *ecs.Filter3[components.Config, components.Run, components.Output]
	byID   map[string]ecs.Entity
	ids    []string // insertion order
	serial int

	groups     map[string]*scatter.Group
	groupNames []string

	scene *surface.Scene
	cache *transfer.Cache

	opts     Options
	log      *slog.Logger
	pool     *pool
	registry *StageRegistry

	computeMu sync.Mutex
	epoch     uint64

	paused      int
	pending     []string
	pendingAuto bool

	channels []*SyncChannel
	clip     Clipboard

	subs    []subscriber
	nextSub int
	events  []telemetry.Event
}

type subscriber struct {
	id int
	fn func(telemetry.Event)
}

// New creates an emitter over sc.
func New(sc *surface.Scene, opts Options) *Emitter {
	if sc == nil {
		sc = surface.NewScene()
	}
	if opts.CyclePolicy == "" {
		opts.CyclePolicy = CycleStale
	}
	if opts.State == "" {
		opts.State = scatter.StateViewport
	}
	world := ecs.NewWorld()
	return &Emitter{
		world:  world,
		mapper: ecs.NewMap3[components.Config, components.Run, components.Output](world),
		filter: ecs.NewFilter3[components.Config, components.Run, components.Output](world),
		byID:   make(map[string]ecs.Entity),
		groups: make(map[string]*scatter.Group),
		scene:  sc,
		cache:  transfer.NewCache(),
		opts:   opts,
		log:    opts.logger(),
		pool:   newPool(opts),
		registry: NewStageRegistry(),
	}
}

// unlock releases mu and then delivers the events queued while it was held,
// so subscribers may call back into the emitter.
func (e *Emitter) unlock() {
	events := e.events
	e.events = nil
	subs := slices.Clone(e.subs)
	e.mu.Unlock()
	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}

func (e *Emitter) emit(ev telemetry.Event) {
	e.events = append(e.events, ev)
}

// Subscribe registers fn for every emitter event. The returned function
// removes it.
func (e *Emitter) Subscribe(fn func(telemetry.Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs = append(e.subs, subscriber{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.subs = slices.DeleteFunc(e.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Stages returns the stage registry.
func (e *Emitter) Stages() *StageRegistry { return e.registry }

// Cache returns the attribute cache shared by all computes.
func (e *Emitter) Cache() *transfer.Cache { return e.cache }

func errNotFound(id string) error {
	return scatter.Errorf(scatter.KindInvalidReference, id, "", "system not found")
}

func (e *Emitter) get(id string) (*components.Config, *components.Run, *components.Output, bool) {
	ent, ok := e.byID[id]
	if !ok {
		return nil, nil, nil, false
	}
	cfg, run, out := e.mapper.Get(ent)
	return cfg, run, out, true
}

// AddSystem adds sys in the CLEAN state. Its group, if any, must exist.
func (e *Emitter) AddSystem(sys *scatter.System) error {
	if sys == nil {
		return errors.New("add system: nil system")
	}
	e.mu.Lock()
	defer e.unlock()
	return e.addSystem(sys)
}

func (e *Emitter) addSystem(sys *scatter.System) error {
	if strings.TrimSpace(sys.ID) == "" {
		return scatter.Errorf(scatter.KindInvalidConfig, "", "", "empty system id")
	}
	if _, ok := e.byID[sys.ID]; ok {
		return scatter.Errorf(scatter.KindInvalidConfig, sys.ID, "", "system already exists")
	}
	if sys.Group != "" {
		if _, ok := e.groups[sys.Group]; !ok {
			return scatter.Errorf(scatter.KindInvalidReference, sys.ID, "group", "group %q not found", sys.Group)
		}
	}
	cfg := components.Config{System: sys, Order: e.serial}
	run := components.Run{State: components.StateClean}
	out := components.Output{}
	e.serial++
	e.byID[sys.ID] = e.mapper.NewEntity(&cfg, &run, &out)
	e.ids = append(e.ids, sys.ID)
	e.emit(telemetry.Event{Type: telemetry.EventSystemAdded, System: sys.ID})
	e.log.Info("system added", "system", sys.ID, "name", sys.Name)

	// Systems that already pointed at this one now have an upstream.
	e.invalidate(e.dependents(sys.ID)...)
	return nil
}

// RemoveSystem removes a system, cancelling its running compute. Its
// dependents become dirty.
func (e *Emitter) RemoveSystem(id string) error {
	e.mu.Lock()
	defer e.unlock()
	ent, ok := e.byID[id]
	if !ok {
		return errNotFound(id)
	}
	_, run, _ := e.mapper.Get(ent)
	if run.Cancel != nil {
		run.Cancel()
	}
	deps := e.dependents(id)
	e.world.RemoveEntity(ent)
	delete(e.byID, id)
	e.ids = slices.DeleteFunc(e.ids, func(s string) bool { return s == id })
	e.pending = slices.DeleteFunc(e.pending, func(s string) bool { return s == id })
	for _, ch := range e.channels {
		ch.Members = slices.DeleteFunc(ch.Members, func(m SyncMember) bool { return m.System == id })
	}
	e.emit(telemetry.Event{Type: telemetry.EventSystemRemoved, System: id})
	e.log.Info("system removed", "system", id)
	e.invalidate(deps...)
	return nil
}

// System returns the live configuration of id. Mutate it only through Set,
// Write or Mutate so the change is tracked.
func (e *Emitter) System(id string) (*scatter.System, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return nil, false
	}
	return cfg.System, true
}

// Systems returns every system in insertion order.
func (e *Emitter) Systems() []*scatter.System {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*scatter.System, 0, len(e.ids))
	for _, id := range e.ids {
		cfg, _, _, _ := e.get(id)
		out = append(out, cfg.System)
	}
	return out
}

// IDs returns every system id in insertion order.
func (e *Emitter) IDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.ids)
}

// resolve maps an ecosystem pointer to a system id. Pointers name a system
// by id, or by display name when no id matches.
func (e *Emitter) resolve(ptr string) (string, bool) {
	if _, ok := e.byID[ptr]; ok {
		return ptr, true
	}
	for _, id := range e.ids {
		if cfg, _, _, _ := e.get(id); cfg.System.Name == ptr {
			return id, true
		}
	}
	return "", false
}

// upstreams returns the distinct systems id reads through its ecosystem
// pointers.
func (e *Emitter) upstreams(id string) []string {
	cfg, _, _, ok := e.get(id)
	if !ok {
		return nil
	}
	var out []string
	for _, ptr := range cfg.System.EcosystemPtrs() {
		if u, ok := e.resolve(ptr); ok && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// dependents returns the systems that read id, in insertion order.
func (e *Emitter) dependents(id string) []string {
	var out []string
	for _, other := range e.ids {
		if other != id && slices.Contains(e.upstreams(other), id) {
			out = append(out, other)
		}
	}
	return out
}

// Stream returns the most recent READY stream of id, or nil. The stream is
// shared and must not be modified.
func (e *Emitter) Stream(id string) *scatter.PointStream {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, out, ok := e.get(id)
	if !ok {
		return nil
	}
	return out.Stream
}

// Report returns the report of the most recent READY stream of id.
func (e *Emitter) Report(id string) *scatter.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _, out, ok := e.get(id)
	if !ok {
		return nil
	}
	return out.Report
}

// State returns the compute state of id. Unknown systems read as CLEAN.
func (e *Emitter) State(id string) components.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, run, _, ok := e.get(id)
	if !ok {
		return components.StateClean
	}
	return run.State
}

// Status is a snapshot of one system's compute state.
type Status struct {
	System string
	State  components.State
	Err    error
	Epoch  uint64
	Points int
	Stale  bool
}

// LogValue implements slog.LogValuer.
func (s Status) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("system", s.System),
		slog.String("state", s.State.String()),
		slog.Uint64("epoch", s.Epoch),
		slog.Int("points", s.Points),
	}
	if s.Stale {
		attrs = append(attrs, slog.Bool("stale", true))
	}
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Status returns the compute state of id.
func (e *Emitter) Status(id string) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, run, out, ok := e.get(id)
	if !ok {
		return Status{}, false
	}
	return Status{System: id, State: run.State, Err: run.Err, Epoch: out.Epoch, Points: out.Stream.Len(), Stale: out.Stale}, true
}

// Pending returns the systems that are not READY, in insertion order.
func (e *Emitter) Pending() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	type entry struct {
		id    string
		order int
	}
	var found []entry
	query := e.filter.Query()
	for query.Next() {
		cfg, run, _ := query.Get()
		if run.State != components.StateReady {
			found = append(found, entry{cfg.System.ID, cfg.Order})
		}
	}
	slices.SortFunc(found, func(a, b entry) int { return a.order - b.order })
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.id
	}
	return out
}

// Scene returns the current scene snapshot.
func (e *Emitter) Scene() *surface.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

// SetScene replaces the scene snapshot and marks every system dirty.
func (e *Emitter) SetScene(sc *surface.Scene) {
	e.mu.Lock()
	defer e.unlock()
	if sc == nil {
		sc = surface.NewScene()
	}
	e.scene = sc
	e.invalidate(e.ids...)
}

// SetColumns declares the per-point attribute columns of id's stream.
func (e *Emitter) SetColumns(id string, cols []scatter.Column) error {
	e.mu.Lock()
	defer e.unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	cfg.Columns = slices.Clone(cols)
	e.invalidate(id)
	return nil
}

// Columns returns the attribute columns declared for id.
func (e *Emitter) Columns(id string) []scatter.Column {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return nil
	}
	return slices.Clone(cfg.Columns)
}

// Select sets the selection flag of id. Selection is not a configuration
// write and leaves the stream untouched.
func (e *Emitter) Select(id string, on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	cfg.System.Selected = on
	return nil
}

// Selected returns the selected systems in insertion order.
func (e *Emitter) Selected() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected()
}

// AddGroup returns the group called name, creating it if needed.
func (e *Emitter) AddGroup(name string) *scatter.Group {
	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok := e.groups[name]; ok {
		return g
	}
	g := scatter.NewGroup(name)
	e.groups[name] = g
	e.groupNames = append(e.groupNames, name)
	return g
}

// Group returns the group called name.
func (e *Emitter) Group(name string) (*scatter.Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.groups[name]
	return g, ok
}

// Groups returns the group names in creation order.
func (e *Emitter) Groups() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.groupNames)
}

// JoinGroup moves id into group. An empty group leaves the current one.
func (e *Emitter) JoinGroup(id, group string) error {
	e.mu.Lock()
	defer e.unlock()
	cfg, _, _, ok := e.get(id)
	if !ok {
		return errNotFound(id)
	}
	if group != "" {
		if _, ok := e.groups[group]; !ok {
			return scatter.Errorf(scatter.KindInvalidReference, id, "group", "group %q not found", group)
		}
	}
	if cfg.System.Group == group {
		return nil
	}
	cfg.System.Group = group
	e.invalidate(id)
	return nil
}

// Members returns the systems of group in insertion order.
func (e *Emitter) Members(group string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.members(group)
}

func (e *Emitter) members(group string) []string {
	var out []string
	for _, id := range e.ids {
		if cfg, _, _, _ := e.get(id); cfg.System.Group == group {
			out = append(out, id)
		}
	}
	return out
}
