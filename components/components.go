// Package components defines ECS components for the emitter world. Every
// scatter system is one entity carrying its configuration, its compute
// state and its last computed stream.
package components

import (
	"context"

	"github.com/pthm-cable/scatter/scatter"
)

// State is the compute state of a system's stream.
type State uint8

const (
	StateClean     State = iota // Created, never written or computed
	StateDirty                  // Configuration changed since the last compute
	StateComputing              // A compute is running
	StateReady                  // Output holds the stream of the current configuration
	StateFailed                 // The last compute failed; Run.Err holds the reason
)

// Config holds what a system computes from. The emitter owns System; stages
// only ever see a deep copy taken when a compute starts.
type Config struct {
	System  *scatter.System
	Columns []scatter.Column // Per-point attribute columns of the output stream
	Order   int              // Insertion order, used to break ties
}

// Run tracks the compute state machine of one system.
type Run struct {
	State State
	Err   error // Reason of StateFailed

	// Gen increments on every compute start; a finishing compute whose
	// generation is no longer current was superseded and is discarded.
	Gen    uint64
	Cancel context.CancelFunc

	// WrittenDuring is set when the configuration changed while a compute
	// was running, so the finished stream is already stale.
	WrittenDuring bool
}

// Output is the most recent READY stream of a system.
type Output struct {
	Stream *scatter.PointStream
	Report *scatter.Report
	Epoch  uint64
	State  scatter.EvalState // Evaluation state the stream was computed for
	// Stale is set when the stream was computed against an upstream that
	// was itself out of date (ecosystem cycle or missing upstream).
	Stale bool
}

// Ready reports whether o holds a stream.
func (o *Output) Ready() bool { return o != nil && o.Stream != nil }
