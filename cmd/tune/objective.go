package main

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/scatter/pipeline"
	"github.com/pthm-cable/scatter/scatter"
)

// failPenalty is the objective of an evaluation whose compute failed.
const failPenalty = 1e6

// Evaluation is the outcome of one objective call.
type Evaluation struct {
	N         int
	Values    []float64 // Clamped raw values
	Points    int
	Objective float64
	Err       error
}

// Evaluator writes parameter vectors into one system and scores the
// resulting point count against a target.
type Evaluator struct {
	ctx    context.Context
	em     *pipeline.Emitter
	id     string
	state  scatter.EvalState
	params *ParamVector
	target int

	evals int
	best  Evaluation
	last  Evaluation
}

// NewEvaluator creates an evaluator for system id.
func NewEvaluator(ctx context.Context, em *pipeline.Emitter, id string, state scatter.EvalState, params *ParamVector, target int) (*Evaluator, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target must be positive, got %d", target)
	}
	if _, ok := em.System(id); !ok {
		return nil, fmt.Errorf("system %q not found", id)
	}
	return &Evaluator{
		ctx:    ctx,
		em:     em,
		id:     id,
		state:  state,
		params: params,
		target: target,
		best:   Evaluation{Objective: math.Inf(1)},
	}, nil
}

// Apply writes raw values into the system without touching its sync
// siblings.
func (ev *Evaluator) Apply(raw []float64) error {
	for i, v := range ev.params.Values(raw) {
		rec, err := scatter.NewChange(ev.id, ev.params.Specs[i].Key, v)
		if err != nil {
			return err
		}
		if err := ev.em.Set(rec); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate scores a normalized parameter vector. Lower is better: the
// squared relative distance of the point count from the target.
func (ev *Evaluator) Evaluate(x []float64) float64 {
	ev.evals++
	e := Evaluation{N: ev.evals, Values: ev.params.Clamp(ev.params.Denormalize(x))}
	e.Objective, e.Points, e.Err = ev.score(e.Values)
	ev.last = e
	if e.Objective < ev.best.Objective {
		ev.best = e
	}
	return e.Objective
}

func (ev *Evaluator) score(raw []float64) (float64, int, error) {
	if err := ev.ctx.Err(); err != nil {
		return failPenalty, 0, err
	}
	if err := ev.Apply(raw); err != nil {
		return failPenalty, 0, err
	}
	stream, err := ev.em.Compute(ev.ctx, ev.id, ev.state)
	if err != nil {
		return failPenalty, 0, err
	}
	n := stream.Len()
	rel := float64(n-ev.target) / float64(ev.target)
	return rel * rel, n, nil
}

// Best returns the best evaluation so far.
func (ev *Evaluator) Best() Evaluation { return ev.best }

// Evals returns the number of evaluations run.
func (ev *Evaluator) Evals() int { return ev.evals }

// Last returns the most recent evaluation.
func (ev *Evaluator) Last() Evaluation { return ev.last }

// thresholdConverge stops once the objective reaches threshold and
// otherwise falls back to function convergence.
type thresholdConverge struct {
	threshold float64
	optimize.FunctionConverge
}

func (c *thresholdConverge) Converged(loc *optimize.Location) optimize.Status {
	if loc.F <= c.threshold {
		return optimize.FunctionThreshold
	}
	return c.FunctionConverge.Converged(loc)
}

// TuneOptions configures a tuning run.
type TuneOptions struct {
	MaxEvals   int
	Population int     // 0 = auto
	Tolerance  float64 // Accepted relative count error
}

// Tune searches the parameter space with CMA-ES. onEval runs after every
// evaluation. The best evaluation is returned even when the search ends
// early.
func Tune(ev *Evaluator, opts TuneOptions, onEval func(Evaluation)) (Evaluation, optimize.Status, error) {
	dim := ev.params.Dim()
	initX := ev.params.Normalize(ev.params.DefaultVector())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f := ev.Evaluate(x)
			if onEval != nil {
				onEval(ev.Last())
			}
			return f
		},
	}

	popSize := opts.Population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	settings := &optimize.Settings{
		FuncEvaluations: opts.MaxEvals,
		Concurrent:      0, // evaluations share the emitter
		Converger: &thresholdConverge{
			threshold:        opts.Tolerance * opts.Tolerance,
			FunctionConverge: optimize.FunctionConverge{Absolute: 1e-10, Iterations: 20},
		},
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	// Running out of evaluations ends the search without failing it; the
	// caller reads the status.
	result, err := optimize.Minimize(problem, initX, settings, method)
	if cerr := ev.ctx.Err(); cerr != nil {
		return ev.Best(), optimize.Failure, cerr
	}
	if result == nil {
		return ev.Best(), optimize.Failure, err
	}
	return ev.Best(), result.Status, nil
}
