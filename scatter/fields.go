package scatter

import (
	"math"

	"github.com/pthm-cable/scatter/geom"
)

// PatternSource selects image- or noise-backed pattern textures.
type PatternSource string

const (
	PatternImage PatternSource = "image"
	PatternNoise PatternSource = "noise"
)

// PatternCategory is the s_pattern category.
type PatternCategory struct {
	Master   bool        `prop:"master_allow"`
	Pattern1 PatternSlot `prop:"1,group,attach"`
	Pattern2 PatternSlot `prop:"2,group,attach"`
	Pattern3 PatternSlot `prop:"3,group,attach"`
}

// Slots returns the pattern slots in order.
func (p *PatternCategory) Slots() []*PatternSlot {
	return []*PatternSlot{&p.Pattern1, &p.Pattern2, &p.Pattern3}
}

// PatternSlot is one texture-driven density/scale modulator.
type PatternSlot struct {
	Allow  bool          `prop:"allow"`
	Source PatternSource `prop:"source"`
	// TexturePtr names an image for image patterns.
	TexturePtr string  `prop:"texture_ptr"`
	UVPtr      string  `prop:"uv_ptr"`
	Space      Space   `prop:"space"`
	Scale      float64 `prop:"scale"`
	Seed       int     `prop:"seed"`
	Brightness float64 `prop:"brightness"`
	Contrast   float64 `prop:"contrast"`

	ColorSample ColorSample `prop:"color_sample_method"`
	IDColor     [3]float64  `prop:"id_color_ptr"`
	IDTolerance float64     `prop:"id_color_tolerence"`

	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// DefaultPatternSlot returns a disabled noise pattern.
func DefaultPatternSlot() PatternSlot {
	return PatternSlot{
		Source: PatternNoise, UVPtr: "UVMap", Space: SpaceLocal, Scale: 1,
		Brightness: 1, Contrast: 1, ColorSample: SampleGrey, IDTolerance: 0.15,
		Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
	}
}

// DefaultPatternCategory returns the pattern category with every slot off.
func DefaultPatternCategory() PatternCategory {
	return PatternCategory{
		Pattern1: DefaultPatternSlot(),
		Pattern2: DefaultPatternSlot(),
		Pattern3: DefaultPatternSlot(),
	}
}

// ElevationMethod measures elevation relative to the surface bounds or in
// absolute units.
type ElevationMethod string

const (
	ElevPercentage ElevationMethod = "percentage"
	ElevAltitude   ElevationMethod = "altitude"
)

// CurvatureType selects which curvature sign is kept.
type CurvatureType string

const (
	CurvConvex  CurvatureType = "convex"
	CurvConcave CurvatureType = "concave"
	CurvBoth    CurvatureType = "both"
)

// AbioticCategory is the s_abiotic category.
type AbioticCategory struct {
	Master bool          `prop:"master_allow"`
	Elev   AbioticElev   `prop:"elev,group"`
	Slope  AbioticSlope  `prop:"slope,group"`
	Dir    AbioticDir    `prop:"dir,group"`
	Cur    AbioticCur    `prop:"cur,group"`
	Border AbioticBorder `prop:"border,group"`
}

// AbioticElev keeps points within an elevation band.
type AbioticElev struct {
	Allow      bool            `prop:"allow"`
	Space      Space           `prop:"space"`
	Method     ElevationMethod `prop:"method"`
	MinValue   float64         `prop:"min_value"`
	MinFalloff float64         `prop:"min_falloff"`
	MaxValue   float64         `prop:"max_value"`
	MaxFalloff float64         `prop:"max_falloff"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// AbioticSlope keeps points within a slope band. Angles are in radians.
type AbioticSlope struct {
	Allow          bool    `prop:"allow"`
	Space          Space   `prop:"space"`
	Absolute       bool    `prop:"absolute"`
	MinValue       float64 `prop:"min_value"`
	MinFalloff     float64 `prop:"min_falloff"`
	MaxValue       float64 `prop:"max_value"`
	MaxFalloff     float64 `prop:"max_falloff"`
	SmoothingAllow bool    `prop:"smoothing_allow"`
	SmoothingValue float64 `prop:"smoothing_value"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// AbioticDir keeps points whose normal faces a direction. Threshold is the
// accepted angle and Max the transition angle, in radians.
type AbioticDir struct {
	Allow          bool     `prop:"allow"`
	Space          Space    `prop:"space"`
	Direction      geom.Vec `prop:"direction"`
	Threshold      float64  `prop:"treshold"`
	Max            float64  `prop:"max"`
	SmoothingAllow bool     `prop:"smoothing_allow"`
	SmoothingValue float64  `prop:"smoothing_value"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// AbioticCur keeps points by curvature, in percent of the surface's
// strongest curvature.
type AbioticCur struct {
	Allow          bool          `prop:"allow"`
	Type           CurvatureType `prop:"type"`
	Threshold      float64       `prop:"treshold"`
	Max            float64       `prop:"max"`
	SmoothingAllow bool          `prop:"smoothing_allow"`
	SmoothingValue float64       `prop:"smoothing_value"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// AbioticBorder keeps points away from mesh boundaries.
type AbioticBorder struct {
	Allow     bool    `prop:"allow"`
	Space     Space   `prop:"space"`
	Threshold float64 `prop:"treshold"`
	Max       float64 `prop:"max"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// DefaultAbioticCategory returns the abiotic category with every feature
// off.
func DefaultAbioticCategory() AbioticCategory {
	return AbioticCategory{
		Elev: AbioticElev{
			Space: SpaceLocal, Method: ElevPercentage, MinValue: 0, MinFalloff: 0,
			MaxValue: 100, MaxFalloff: 0,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Slope: AbioticSlope{
			Space: SpaceLocal, MinValue: 0, MaxValue: math.Pi / 6, SmoothingValue: 0.5,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Dir: AbioticDir{
			Space: SpaceLocal, Direction: geom.V(0.701299, 0.493506, 0.514423),
			Threshold: math.Pi / 4, Max: math.Pi / 12, SmoothingValue: 0.5,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Cur: AbioticCur{
			Type: CurvConvex, Threshold: 0, Max: 75, SmoothingValue: 0.5,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Border: AbioticBorder{
			Space: SpaceLocal, Threshold: 0.5, Max: 1,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
	}
}

// VolumeSide selects which side of a closed volume is affected.
type VolumeSide string

const (
	VolumeOutside VolumeSide = "out"
	VolumeInside  VolumeSide = "in"
)

// FadeMethod measures simulation imprint age in frames or seconds.
type FadeMethod string

const (
	FadePerFrame  FadeMethod = "frame"
	FadePerSecond FadeMethod = "sec"
)

// ProximityCategory is the s_proximity category.
type ProximityCategory struct {
	Master    bool          `prop:"master_allow"`
	Repel1    RepelSlot     `prop:"repel1,group"`
	Repel2    RepelSlot     `prop:"repel2,group"`
	Outskirt  ProxOutskirt  `prop:"outskirt,group"`
	BezBorder ProxBezBorder `prop:"projbezarea_border,group"`
}

// Slots returns both repel slots.
func (p *ProximityCategory) Slots() []*RepelSlot {
	return []*RepelSlot{&p.Repel1, &p.Repel2}
}

// RepelSlot pushes points away from the objects of a collection.
type RepelSlot struct {
	Allow   bool        `prop:"allow"`
	CollPtr string      `prop:"coll_ptr"`
	Type    ContactType `prop:"type"`

	VolumeAllow bool       `prop:"volume_allow"`
	VolumeSide  VolumeSide `prop:"volume_method"`

	Threshold float64 `prop:"treshold"`
	Max       float64 `prop:"max"`

	SimulationAllow bool       `prop:"simulation_allow"`
	FadeAllow       bool       `prop:"simulation_fadeaway_allow"`
	FadeMethod      FadeMethod `prop:"simulation_fadeaway_method"`
	FadeValue       float64    `prop:"simulation_fadeaway_value"`

	Falloff      `prop:",inline"`
	Influence    `prop:",inline"`
	RotInfluence `prop:",inline"`
	Mask         UniversalMask `prop:"mask_dict,dict"`
}

// ProxOutskirt fades the edges of the distribution itself, detected by
// neighbor count within Detection.
type ProxOutskirt struct {
	Allow     bool    `prop:"allow"`
	Detection float64 `prop:"detection"`
	Precision float64 `prop:"precision"`
	Threshold float64 `prop:"treshold"`
	Max       float64 `prop:"max"`

	Falloff      `prop:",inline"`
	Influence    `prop:",inline"`
	RotInfluence `prop:",inline"`
}

// ProxBezBorder fades points near the border of a projected bezier area.
type ProxBezBorder struct {
	Allow     bool    `prop:"allow"`
	Threshold float64 `prop:"treshold"`
	Max       float64 `prop:"max"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
}

// DefaultRepelSlot returns a disabled repel slot.
func DefaultRepelSlot() RepelSlot {
	return RepelSlot{
		Type: ContactMesh, VolumeSide: VolumeOutside, Threshold: 0.5, Max: 0.5,
		FadeMethod: FadePerFrame, FadeValue: 1,
		Falloff: DefaultFalloff(), Influence: DefaultInfluence(),
		RotInfluence: DefaultRotInfluence(), Mask: DefaultUniversalMask(),
	}
}

// DefaultProximityCategory returns the proximity category with every feature
// off.
func DefaultProximityCategory() ProximityCategory {
	return ProximityCategory{
		Repel1: DefaultRepelSlot(),
		Repel2: DefaultRepelSlot(),
		Outskirt: ProxOutskirt{
			Detection: 0.7, Precision: 0.7, Threshold: 0, Max: 1,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), RotInfluence: DefaultRotInfluence(),
		},
		BezBorder: ProxBezBorder{
			Threshold: 0, Max: 1, Falloff: DefaultFalloff(), Influence: DefaultInfluence(),
		},
	}
}

// DensityMethod maps a neighbor count to a field value.
type DensityMethod string

const (
	DensityDense      DensityMethod = "dense"
	DensityScarce     DensityMethod = "scarce"
	DensityNormalized DensityMethod = "normalized"
)

// EcosystemCategory is the s_ecosystem category.
type EcosystemCategory struct {
	Master    bool         `prop:"master_allow"`
	Affinity  EcoAffinity  `prop:"affinity,group"`
	Repulsion EcoRepulsion `prop:"repulsion,group"`
	Density   EcoDensity   `prop:"density,group"`
}

// EcoSlot references another system's point stream.
type EcoSlot struct {
	Ptr        string      `prop:"ptr"`
	Type       ContactType `prop:"type"`
	MaxValue   float64     `prop:"max_value"`
	MaxFalloff float64     `prop:"max_falloff"`
	// LimitDistance keeps a gap around affinity targets.
	LimitDistance float64 `prop:"limit_distance"`
}

// EcoAffinity keeps points near other systems' points.
type EcoAffinity struct {
	Allow bool       `prop:"allow"`
	Space Space      `prop:"space"`
	Slots [3]EcoSlot `prop:",slots"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// EcoRepulsion keeps points away from other systems' points.
type EcoRepulsion struct {
	Allow bool       `prop:"allow"`
	Space Space      `prop:"space"`
	Slots [3]EcoSlot `prop:",slots"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// EcoDensitySlot references another system for voxel counting.
type EcoDensitySlot struct {
	Ptr string `prop:"ptr"`
}

// EcoDensity modulates by how many points of other systems share a voxel.
type EcoDensity struct {
	Allow      bool              `prop:"allow"`
	Space      Space             `prop:"space"`
	Slots      [3]EcoDensitySlot `prop:",slots"`
	Method     DensityMethod     `prop:"method"`
	VoxelSize  float64           `prop:"voxelsize"`
	Min        float64           `prop:"min"`
	Transition float64           `prop:"falloff"`

	Falloff   `prop:",inline"`
	Influence `prop:",inline"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// Ptrs returns the non-empty system references of all ecosystem features
// that are enabled.
func (e *EcosystemCategory) Ptrs() []string {
	var out []string
	if !e.Master {
		return nil
	}
	if e.Affinity.Allow {
		for _, s := range e.Affinity.Slots {
			if s.Ptr != "" {
				out = append(out, s.Ptr)
			}
		}
	}
	if e.Repulsion.Allow {
		for _, s := range e.Repulsion.Slots {
			if s.Ptr != "" {
				out = append(out, s.Ptr)
			}
		}
	}
	if e.Density.Allow {
		for _, s := range e.Density.Slots {
			if s.Ptr != "" {
				out = append(out, s.Ptr)
			}
		}
	}
	return out
}

// DefaultEcosystemCategory returns the ecosystem category with every
// feature off.
func DefaultEcosystemCategory() EcosystemCategory {
	slot := EcoSlot{Type: ContactOrigin, MaxValue: 0.5, MaxFalloff: 0.5}
	return EcosystemCategory{
		Affinity: EcoAffinity{
			Space: SpaceGlobal, Slots: [3]EcoSlot{slot, slot, slot},
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Repulsion: EcoRepulsion{
			Space: SpaceGlobal, Slots: [3]EcoSlot{slot, slot, slot},
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
		Density: EcoDensity{
			Space: SpaceGlobal, Method: DensityDense, VoxelSize: 0.5, Min: 3, Transition: 2,
			Falloff: DefaultFalloff(), Influence: DefaultInfluence(), Mask: DefaultUniversalMask(),
		},
	}
}
