package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/settings"
)

// ParamSpec defines a single tunable setting of a system.
type ParamSpec struct {
	Key     string  // Flat settings key, e.g. s_distribution_density
	Min     float64 // Lower bound
	Max     float64 // Upper bound; 0 = derive from the current value
	Default float64 // Current value, filled from the system
	Int     bool    // Written as an int
}

// ParseParam parses "key", "key=max" or "key=min:max".
func ParseParam(s string) (ParamSpec, error) {
	key, bounds, hasBounds := strings.Cut(strings.TrimSpace(s), "=")
	spec := ParamSpec{Key: strings.TrimSpace(key)}
	if spec.Key == "" {
		return spec, fmt.Errorf("param %q: missing key", s)
	}
	if !hasBounds {
		return spec, nil
	}
	lo, hi, hasMin := strings.Cut(bounds, ":")
	if !hasMin {
		lo, hi = "0", bounds
	}
	var err error
	if spec.Min, err = strconv.ParseFloat(strings.TrimSpace(lo), 64); err != nil {
		return spec, fmt.Errorf("param %q: bad minimum: %w", s, err)
	}
	if spec.Max, err = strconv.ParseFloat(strings.TrimSpace(hi), 64); err != nil {
		return spec, fmt.Errorf("param %q: bad maximum: %w", s, err)
	}
	if spec.Max <= spec.Min {
		return spec, fmt.Errorf("param %q: maximum must exceed minimum", s)
	}
	return spec, nil
}

// paramFlag collects repeated -param flags.
type paramFlag []ParamSpec

func (p *paramFlag) String() string {
	keys := make([]string, len(*p))
	for i, s := range *p {
		keys[i] = s.Key
	}
	return strings.Join(keys, ",")
}

func (p *paramFlag) Set(v string) error {
	spec, err := ParseParam(v)
	if err != nil {
		return err
	}
	*p = append(*p, spec)
	return nil
}

// ParamVector holds the set of tuned parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector reads the current value of every spec from sys. Specs
// without an upper bound get four times the current value, or 1 when the
// current value is zero.
func NewParamVector(sys *scatter.System, specs []ParamSpec) (*ParamVector, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no parameters to tune")
	}
	pv := &ParamVector{Specs: make([]ParamSpec, len(specs))}
	for i, spec := range specs {
		v, ok := settings.Get(sys, spec.Key)
		if !ok {
			return nil, fmt.Errorf("system %s has no setting %q", sys.ID, spec.Key)
		}
		switch n := v.(type) {
		case float64:
			spec.Default = n
		case int:
			spec.Default = float64(n)
			spec.Int = true
		case int64:
			spec.Default = float64(n)
			spec.Int = true
		case uint64:
			spec.Default = float64(n)
			spec.Int = true
		default:
			return nil, fmt.Errorf("setting %q is %T, not a number", spec.Key, v)
		}
		if spec.Max == 0 {
			spec.Max = math.Max(4*spec.Default, spec.Min+1)
		}
		spec.Default = math.Max(spec.Min, math.Min(spec.Max, spec.Default))
		pv.Specs[i] = spec
	}
	return pv, nil
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the starting values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw values to the [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp keeps every value within bounds and rounds int parameters.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := math.Max(spec.Min, math.Min(spec.Max, v[i]))
		if spec.Int {
			val = math.Round(val)
		}
		clamped[i] = val
	}
	return clamped
}

// Values converts clamped raw values into settings values.
func (pv *ParamVector) Values(raw []float64) []any {
	clamped := pv.Clamp(raw)
	out := make([]any, len(clamped))
	for i, v := range clamped {
		if pv.Specs[i].Int {
			out[i] = int(v)
		} else {
			out[i] = v
		}
	}
	return out
}
