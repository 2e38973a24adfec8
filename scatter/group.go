package scatter

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

// Group aggregates systems of one emitter. Its features compose with the
// members' own: masks multiply into the keep value, the scale boost
// multiplies scale and the density boost scales generator density.
type Group struct {
	Name string

	Mask    MaskCategory `prop:"mask,category"`
	Scale   GroupScale   `prop:"scale,category"`
	Pattern GroupPattern `prop:"pattern,category"`
	Distrib GroupDistrib `prop:"distribution,category"`
}

// GroupScale is s_gr_scale.
type GroupScale struct {
	Master bool       `prop:"master_allow"`
	Boost  ScaleBoost `prop:"boost,group"`
}

// ScaleBoost multiplies member scales by Value*Multiplier.
type ScaleBoost struct {
	Allow      bool          `prop:"allow"`
	Value      geom.Vec      `prop:"value"`
	Multiplier float64       `prop:"multiplier"`
	Mask       UniversalMask `prop:"mask_dict,dict"`
}

// GroupPattern is s_gr_pattern.
type GroupPattern struct {
	Master   bool        `prop:"master_allow"`
	Pattern1 PatternSlot `prop:"1,group,attach"`
}

// GroupDistrib is s_gr_distribution.
type GroupDistrib struct {
	Master bool         `prop:"master_allow"`
	Boost  DensityBoost `prop:"density_boost,group"`
}

// DensityBoost scales generator density. Factors above one add points at
// sampling time, the only place new points may appear.
type DensityBoost struct {
	Allow  bool    `prop:"allow"`
	Factor float64 `prop:"factor"`
}

// NewGroup returns a group with every feature off.
func NewGroup(name string) *Group {
	return &Group{
		Name:    name,
		Mask:    DefaultMaskCategory(),
		Scale:   GroupScale{Boost: ScaleBoost{Value: geom.One, Multiplier: 1, Mask: DefaultUniversalMask()}},
		Pattern: GroupPattern{Pattern1: DefaultPatternSlot()},
		Distrib: GroupDistrib{Boost: DensityBoost{Factor: 1}},
	}
}

// ScaleFactor is the boost multiplier, or one when disabled.
func (g *Group) ScaleFactor() geom.Vec {
	if g == nil || !g.Scale.Master || !g.Scale.Boost.Allow {
		return geom.One
	}
	return r3.Scale(g.Scale.Boost.Multiplier, g.Scale.Boost.Value)
}

// DensityFactor is the density boost, or one when disabled.
func (g *Group) DensityFactor() float64 {
	if g == nil || !g.Distrib.Master || !g.Distrib.Boost.Allow {
		return 1
	}
	return g.Distrib.Boost.Factor
}
