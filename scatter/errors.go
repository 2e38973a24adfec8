package scatter

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Kind classifies pipeline errors.
type Kind string

const (
	KindInvalidReference Kind = "invalid_reference"
	KindMissingAttribute Kind = "missing_attribute"
	KindCycle            Kind = "cycle_in_ecosystem"
	KindStaleDependency  Kind = "stale_dependency"
	KindResourceBudget   Kind = "resource_budget"
	KindInvalidConfig    Kind = "invalid_config"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrInvalidReference = &Error{Kind: KindInvalidReference}
	ErrMissingAttribute = &Error{Kind: KindMissingAttribute}
	ErrCycle            = &Error{Kind: KindCycle}
	ErrStaleDependency  = &Error{Kind: KindStaleDependency}
	ErrResourceBudget   = &Error{Kind: KindResourceBudget}
	ErrInvalidConfig    = &Error{Kind: KindInvalidConfig}
)

// Error is a typed pipeline error naming the offending system and feature.
type Error struct {
	Kind    Kind
	System  string
	Feature string
	Err     error
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, system, feature, format string, args ...any) *Error {
	return &Error{Kind: kind, System: system, Feature: feature, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.System != "" {
		msg += " in system " + e.System
	}
	if e.Feature != "" {
		msg += " (" + e.Feature + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the package sentinels work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.System == "" || t.System == e.System) && (t.Feature == "" || t.Feature == e.Feature)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Report collects the non-fatal errors of one compute. It is safe for
// concurrent use by per-point workers.
type Report struct {
	mu      sync.Mutex
	entries []*Error
	seen    map[string]bool
}

// Add records err. Duplicate (kind, system, feature, message) entries from
// per-point workers are collapsed.
func (r *Report) Add(err *Error) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := err.Error()
	if r.seen == nil {
		r.seen = map[string]bool{}
	}
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.entries = append(r.entries, err)
}

// Entries returns a copy of the recorded errors in insertion order.
func (r *Report) Entries() []*Error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Error(nil), r.entries...)
}

// Empty reports whether nothing was recorded.
func (r *Report) Empty() bool { return len(r.Entries()) == 0 }

// Has reports whether an entry of kind was recorded.
func (r *Report) Has(kind Kind) bool {
	for _, e := range r.Entries() {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// LogValue renders the report for slog.
func (r *Report) LogValue() slog.Value {
	entries := r.Entries()
	attrs := make([]slog.Attr, 0, len(entries))
	for i, e := range entries {
		attrs = append(attrs, slog.Group(fmt.Sprintf("e%d", i),
			"kind", string(e.Kind),
			"system", e.System,
			"feature", e.Feature,
			"msg", errString(e.Err),
		))
	}
	return slog.GroupValue(attrs...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
