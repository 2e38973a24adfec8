package pipeline

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/pthm-cable/scatter/config"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/telemetry"
)

// CyclePolicy decides what happens to systems whose ecosystem references
// form a cycle.
type CyclePolicy string

const (
	// CycleStale computes cycle members against the previous READY stream
	// of their upstream, one epoch out of date.
	CycleStale CyclePolicy = "stale"
	// CycleFail fails every cycle member with cycle_in_ecosystem.
	CycleFail CyclePolicy = "fail"
)

// Options configures an Emitter.
type Options struct {
	Workers           int // 0 = GOMAXPROCS
	ParallelThreshold int // Below this many points stages run inline
	ChunkSize         int // Points per work item; 0 splits evenly

	State       scatter.EvalState
	CyclePolicy CyclePolicy

	MaxVoxels        int
	MaxOcclusionRays int
	MaxPoints        int

	CurveResolution int
	GridCellFactor  float64

	// AutoCompute recomputes every stale system after a write that is not
	// delayed, and once when the outermost pause is released.
	AutoCompute bool

	Logger *slog.Logger
	Perf   *telemetry.PerfCollector
}

// DefaultOptions returns options for inline use in tests and tools.
func DefaultOptions() Options {
	return Options{
		ParallelThreshold: 2048,
		ChunkSize:         1024,
		State:             scatter.StateViewport,
		CyclePolicy:       CycleStale,
		CurveResolution:   12,
		GridCellFactor:    1,
	}
}

// OptionsFromConfig maps runtime settings onto emitter options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	opts.Workers = cfg.Derived.Workers
	opts.ParallelThreshold = cfg.Pipeline.ParallelThreshold
	opts.ChunkSize = cfg.Pipeline.ChunkSize
	state, err := ParseState(cfg.Pipeline.EvaluationState)
	if err != nil {
		return opts, err
	}
	opts.State = state
	switch p := CyclePolicy(cfg.Pipeline.CyclePolicy); p {
	case CycleStale, CycleFail:
		opts.CyclePolicy = p
	default:
		return opts, fmt.Errorf("unknown cycle policy %q", cfg.Pipeline.CyclePolicy)
	}
	opts.MaxVoxels = cfg.Budget.MaxVoxels
	opts.MaxOcclusionRays = cfg.Budget.MaxOcclusionRays
	opts.MaxPoints = cfg.Budget.MaxPoints
	opts.CurveResolution = cfg.Sampler.CurveResolution
	opts.GridCellFactor = cfg.Sampler.GridCellFactor
	return opts, nil
}

// ParseState parses an evaluation state name.
func ParseState(s string) (scatter.EvalState, error) {
	switch s {
	case "", "viewport":
		return scatter.StateViewport, nil
	case "shaded":
		return scatter.StateShaded, nil
	case "render":
		return scatter.StateRender, nil
	}
	return scatter.StateViewport, fmt.Errorf("unknown evaluation state %q", s)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
