// Package fields evaluates the scalar fields that modulate a system's
// points: pattern textures, abiotic factors, proximity repel and ecosystem
// coupling with other systems.
//
// Each enabled feature is prepared once per compute into a gauge. Eval then
// runs every gauge at a point and reports one Sample per feature, which the
// influence stage turns into density and scale modulation.
package fields

import (
	"context"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// Sample is the outcome of one feature at one point.
type Sample struct {
	Feature string
	// Value is in [0, 1] after the feature's falloff; 1 keeps the point.
	Value float64
	// Strength is the feature's universal-mask value; 0 makes the feature
	// identity at this point.
	Strength float64
	Infl     *scatter.Influence
	// Rot and Away drive the normal and tangent influences of proximity
	// features. Away points from the nearest element toward the point.
	Rot  *scatter.RotInfluence
	Away geom.Vec
}

// Input is what Prepare reads besides the system itself.
type Input struct {
	Mask  *mask.Evaluator
	Group *scatter.Group
	// Points is the system's stream as sampled, used by features that look
	// at the distribution itself.
	Points []scatter.Point
	// Upstream holds the streams of the systems named by ecosystem
	// pointers. Missing entries read as empty streams.
	Upstream map[string]*scatter.PointStream
}

// gauge evaluates one feature. t is the transition position in [0, 1]
// before the falloff remap.
type gauge struct {
	feature string
	falloff *scatter.Falloff
	infl    *scatter.Influence
	rot     *scatter.RotInfluence
	mask    *scatter.UniversalMask
	eval    func(p *scatter.Point) (t float64, away geom.Vec)
	// value skips the falloff: eval already returns the final value.
	value bool
}

// Evaluator holds the prepared gauges of one system. It is safe for
// concurrent use by per-point workers.
type Evaluator struct {
	ev     *mask.Evaluator
	gauges []gauge
}

// Prepare builds the gauges of every enabled feature. Features whose
// references cannot be resolved are reported and skipped. The only error
// returned is ctx's.
func Prepare(ctx context.Context, in Input) (*Evaluator, error) {
	e := &Evaluator{ev: in.Mask}
	sys := in.Mask.System
	b := &builder{ctx: ctx, in: in, ev: in.Mask, sys: sys}

	b.patterns(&sys.Pattern, "s_pattern")
	if in.Group != nil && in.Group.Pattern.Master {
		b.pattern(&in.Group.Pattern.Pattern1, "s_gr_pattern1")
	}
	if sys.Abiotic.Master {
		b.abiotic(&sys.Abiotic)
	}
	if sys.Proximity.Master {
		if err := b.proximity(&sys.Proximity); err != nil {
			return nil, err
		}
	}
	if sys.Ecosystem.Master {
		if err := b.ecosystem(&sys.Ecosystem); err != nil {
			return nil, err
		}
	}
	e.gauges = b.gauges
	return e, ctx.Err()
}

// Len returns the number of active features.
func (e *Evaluator) Len() int { return len(e.gauges) }

// Eval appends one sample per active feature at p to dst.
func (e *Evaluator) Eval(p *scatter.Point, dst []Sample) []Sample {
	for i := range e.gauges {
		pr := &e.gauges[i]
		strength := e.ev.Universal(pr.mask, pr.feature, p)
		if strength == 0 {
			continue
		}
		t, away := pr.eval(p)
		v := t
		if !pr.value && pr.falloff != nil && t > 0 && t < 1 {
			v = e.ev.Falloff(pr.falloff, pr.feature, t, p)
		}
		dst = append(dst, Sample{
			Feature:  pr.feature,
			Value:    geom.Clamp01(v),
			Strength: strength,
			Infl:     pr.infl,
			Rot:      pr.rot,
			Away:     away,
		})
	}
	return dst
}

type builder struct {
	ctx    context.Context
	in     Input
	ev     *mask.Evaluator
	sys    *scatter.System
	gauges []gauge
}

func (b *builder) add(p gauge) { b.gauges = append(b.gauges, p) }

func (b *builder) report(kind scatter.Kind, feature, format string, args ...any) {
	b.ev.Report.Add(scatter.Errorf(kind, b.sys.ID, feature, format, args...))
}

// meshes returns the mesh surfaces of the system.
func (b *builder) meshes() []*surface.Mesh {
	var out []*surface.Mesh
	for _, o := range b.ev.Surfaces {
		if o.Kind == surface.KindMesh {
			out = append(out, o.Mesh)
		}
	}
	return out
}

// band is 1 inside [lo, hi] and fades to 0 over loFall below lo and hiFall
// above hi.
func band(x, lo, loFall, hi, hiFall float64) float64 {
	switch {
	case x < lo:
		if loFall <= 0 {
			return 0
		}
		return geom.Clamp01(1 - (lo-x)/loFall)
	case x > hi:
		if hiFall <= 0 {
			return 0
		}
		return geom.Clamp01(1 - (x-hi)/hiFall)
	}
	return 1
}
