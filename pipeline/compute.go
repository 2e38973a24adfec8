package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jinzhu/copier"

	"github.com/pthm-cable/scatter/components"
	"github.com/pthm-cable/scatter/fields"
	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/influence"
	"github.com/pthm-cable/scatter/instances"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/sampler"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/telemetry"
	"github.com/pthm-cable/scatter/transfer"
	"github.com/pthm-cable/scatter/transform"
	"github.com/pthm-cable/scatter/visibility"
)

// job is one compute of one system. Everything it reads is captured when
// it starts, so writes made while it runs do not reach the stages.
type job struct {
	id     string
	gen    uint64
	epoch  uint64
	state  scatter.EvalState
	ctx    context.Context
	cancel context.CancelFunc

	sys      *scatter.System
	group    *scatter.Group
	columns  []scatter.Column
	scene    *surface.Scene
	upstream map[string]*scatter.PointStream
	report   *scatter.Report
	stale    bool
}

// Compute recomputes id for state, whatever its current state. A compute
// already running for id is cancelled and returns ErrSuperseded. Upstream
// systems are not computed: their most recent READY streams are used.
func (e *Emitter) Compute(ctx context.Context, id string, state scatter.EvalState) (*scatter.PointStream, error) {
	e.mu.Lock()
	e.epoch++
	j, err := e.begin(ctx, id, state, e.epoch)
	e.unlock()
	if err != nil {
		return nil, err
	}
	return e.execute(j)
}

// ComputeAll computes every system that has no READY stream for state, in
// Order. One pass shares one epoch. Failures of individual systems are
// joined into the returned error; cancellation stops the pass.
func (e *Emitter) ComputeAll(ctx context.Context, state scatter.EvalState) error {
	e.mu.Lock()
	ids, _ := e.order()
	e.epoch++
	epoch := e.epoch
	e.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mu.Lock()
		_, run, out, ok := e.get(id)
		if !ok || (run.State == components.StateReady && out.State == state) {
			e.mu.Unlock()
			continue
		}
		j, err := e.begin(ctx, id, state, epoch)
		e.unlock()
		if err == nil {
			_, err = e.execute(j)
		}
		switch {
		case err == nil, errors.Is(err, ErrSuperseded):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// begin moves id to COMPUTING and captures its inputs. Configuration and
// cycle errors fail the system right away. Must hold mu.
func (e *Emitter) begin(ctx context.Context, id string, state scatter.EvalState, epoch uint64) (*job, error) {
	cfg, run, _, ok := e.get(id)
	if !ok {
		return nil, errNotFound(id)
	}
	if run.Cancel != nil {
		run.Cancel()
		run.Cancel = nil
	}
	run.Gen++
	run.WrittenDuring = false
	run.Err = nil

	sys := cfg.System
	if err := sys.Validate(); err != nil {
		return nil, e.fail(id, run, err)
	}
	_, cycles := e.order()
	if members, ok := cycles[id]; ok && e.opts.CyclePolicy == CycleFail {
		return nil, e.fail(id, run, scatter.Errorf(scatter.KindCycle, id, "s_ecosystem", "ecosystem cycle through %v", members))
	}

	j := &job{
		id:       id,
		gen:      run.Gen,
		epoch:    epoch,
		state:    state,
		columns:  slices.Clone(cfg.Columns),
		scene:    e.scene,
		upstream: make(map[string]*scatter.PointStream),
		report:   &scatter.Report{},
	}
	var err error
	if j.sys, err = cloneSystem(sys); err != nil {
		return nil, e.fail(id, run, err)
	}
	if g, ok := e.groups[sys.Group]; ok {
		if j.group, err = cloneGroup(g); err != nil {
			return nil, e.fail(id, run, err)
		}
	}
	if _, ok := cycles[id]; ok {
		j.stale = true
	}
	e.resolveUpstream(j)

	j.ctx, j.cancel = context.WithCancel(ctx)
	run.Cancel = j.cancel
	run.State = components.StateComputing
	return j, nil
}

// resolveUpstream collects the READY streams of the systems j reads.
// Missing systems are reported; an upstream without a READY stream reads
// as empty and makes the result stale.
func (e *Emitter) resolveUpstream(j *job) {
	for _, ptr := range j.sys.EcosystemPtrs() {
		if _, ok := j.upstream[ptr]; ok {
			continue
		}
		uid, ok := e.resolve(ptr)
		if !ok {
			j.report.Add(scatter.Errorf(scatter.KindInvalidReference, j.id, "s_ecosystem", "system %q not found", ptr))
			continue
		}
		_, urun, uout, _ := e.get(uid)
		if !uout.Ready() {
			j.report.Add(scatter.Errorf(scatter.KindStaleDependency, j.id, "s_ecosystem", "system %q has no ready stream", ptr))
			j.stale = true
			continue
		}
		if urun.State != components.StateReady {
			j.stale = true
		}
		j.upstream[ptr] = uout.Stream
	}
}

// fail moves id to FAILED. Must hold mu.
func (e *Emitter) fail(id string, run *components.Run, err error) error {
	run.State = components.StateFailed
	run.Err = err
	e.emit(telemetry.NewFailedEvent(id, err))
	e.log.Warn("compute failed", "system", id, "error", err)
	return err
}

// execute runs the stages of j. Computes are serialized so the per-worker
// scratch buffers and the perf collector are never shared.
func (e *Emitter) execute(j *job) (*scatter.PointStream, error) {
	e.computeMu.Lock()
	perf := e.opts.Perf
	perf.StartCompute(j.id)
	stream, err := e.stages(j)
	sample := perf.EndCompute(stream.Len())
	e.computeMu.Unlock()

	if perf != nil && err == nil {
		e.log.Debug("perf", "compute", sample)
	}
	return e.finish(j, stream, err)
}

// stages runs the pipeline of one system. Sampler and per-feature
// problems go to the report; the returned error is cancellation or a
// column that cannot be evaluated.
func (e *Emitter) stages(j *job) (*scatter.PointStream, error) {
	ctx, sys, perf := j.ctx, j.sys, e.opts.Perf
	attrs := transfer.New(j.scene, e.cache)
	ev := mask.NewEvaluator(sys, attrs, j.report)
	culler := visibility.New(ev, j.state, visibility.Budget{MaxOcclusionRays: e.opts.MaxOcclusionRays})

	perf.StartStage(telemetry.StageSample)
	stream, err := sampler.Sample(ctx, sampler.Input{
		System:          sys,
		Group:           j.group,
		Scene:           j.scene,
		Attrs:           attrs,
		Report:          j.report,
		Budget:          sampler.Budget{MaxVoxels: e.opts.MaxVoxels, MaxPoints: e.opts.MaxPoints},
		CurveResolution: e.opts.CurveResolution,
		GridCellFactor:  e.opts.GridCellFactor,
		Prefilter:       culler.Prefilter(),
	})
	if err != nil {
		return nil, err
	}
	stream.Epoch = j.epoch
	pts := stream.Points

	perf.StartStage(telemetry.StageTransfer)
	res := &influence.Resolver{}
	if m := ev.Category(&sys.Mask, "s_mask"); m.Active() {
		res.Mask = m
	}
	if j.group != nil {
		if m := ev.Category(&j.group.Mask, "s_gr_mask"); m.Active() {
			res.GroupMask = m
		}
	}

	perf.StartStage(telemetry.StageFields)
	fe, err := fields.Prepare(ctx, fields.Input{Mask: ev, Group: j.group, Points: pts, Upstream: j.upstream})
	if err != nil {
		return nil, err
	}
	if fe.Len() > 0 {
		res.Fields = fe
	}

	perf.StartStage(telemetry.StageInfluence)
	if res.Mask != nil || res.GroupMask != nil || res.Fields != nil {
		err = e.pool.each(ctx, pts, func(s *workerScratch, p *scatter.Point) {
			s.Samples = res.Apply(p, s.Samples)
		})
		if err != nil {
			return nil, err
		}
		pts = compact(sys.Seed("s_keep", 0), pts)
	}

	perf.StartStage(telemetry.StageTransform)
	st := transform.New(ev, j.group, pts)
	if err := e.pool.each(ctx, pts, func(_ *workerScratch, p *scatter.Point) { st.Apply(p) }); err != nil {
		return nil, err
	}
	pts = slices.DeleteFunc(pts, func(p scatter.Point) bool { return p.Keep == 0 })

	perf.StartStage(telemetry.StageVisibility)
	if pts, err = culler.Cull(ctx, pts, e.pool.filter); err != nil {
		return nil, err
	}

	perf.StartStage(telemetry.StageInstances)
	if pts, err = instances.New(ev).Apply(ctx, pts, e.pool.points); err != nil {
		return nil, err
	}

	perf.StartStage(telemetry.StageFinalize)
	stream.Points = pts
	stream.Columns = j.columns
	stream.SortByID()
	if err := attrs.Fill(stream); err != nil {
		return nil, scatter.Errorf(scatter.KindMissingAttribute, sys.ID, "columns", "%v", err)
	}
	return stream, ctx.Err()
}

// compact drops points by their resolved keep value. A fractional keep is
// a survival probability decided by a per-point hash, so the same points
// survive every compute.
func compact(seed uint64, pts []scatter.Point) []scatter.Point {
	return slices.DeleteFunc(pts, func(p scatter.Point) bool {
		return p.Keep <= 0 || (p.Keep < 1 && geom.Hash01(seed, p.ID) >= p.Keep)
	})
}

// finish publishes the outcome of j. Cancelled computes leave the system
// DIRTY; superseded ones change nothing.
func (e *Emitter) finish(j *job, stream *scatter.PointStream, err error) (*scatter.PointStream, error) {
	e.mu.Lock()
	defer e.unlock()
	defer j.cancel()

	_, run, out, ok := e.get(j.id)
	if !ok {
		return nil, errNotFound(j.id)
	}
	if run.Gen != j.gen {
		return nil, ErrSuperseded
	}
	run.Cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			run.State = components.StateDirty
			e.emit(telemetry.Event{Type: telemetry.EventCancelled, System: j.id, Err: err})
			e.log.Info("compute cancelled", "system", j.id)
			return nil, err
		}
		return nil, e.fail(j.id, run, fmt.Errorf("compute %s: %w", j.id, err))
	}

	out.Stream = stream
	out.Report = j.report
	out.Epoch = j.epoch
	out.State = j.state
	out.Stale = j.stale
	if run.WrittenDuring {
		run.State = components.StateDirty
		run.WrittenDuring = false
		e.emit(telemetry.NewDirtyEvent(j.id))
	} else {
		run.State = components.StateReady
	}
	e.emit(telemetry.NewComputedEvent(j.id, j.epoch, stream.Len()))
	if j.stale {
		e.emit(telemetry.Event{Type: telemetry.EventStale, System: j.id, Epoch: j.epoch})
	}
	e.log.Debug("computed", "system", j.id, "epoch", j.epoch, "points", stream.Len(), "report", j.report)
	return stream, nil
}

func cloneSystem(sys *scatter.System) (*scatter.System, error) {
	dst := new(scatter.System)
	if err := copier.CopyWithOption(dst, sys, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("clone system %s: %w", sys.ID, err)
	}
	return dst, nil
}

func cloneGroup(g *scatter.Group) (*scatter.Group, error) {
	dst := new(scatter.Group)
	if err := copier.CopyWithOption(dst, g, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("clone group %s: %w", g.Name, err)
	}
	return dst, nil
}
