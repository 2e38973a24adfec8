package scatter

// Space selects local (object) or global (world) evaluation.
type Space string

const (
	SpaceLocal  Space = "local"
	SpaceGlobal Space = "global"
)

// ColorSample maps an RGBA sample to a scalar.
type ColorSample string

const (
	SampleGrey    ColorSample = "grey"
	SampleRed     ColorSample = "r"
	SampleGreen   ColorSample = "g"
	SampleBlue    ColorSample = "b"
	SampleBlack   ColorSample = "black"
	SampleWhite   ColorSample = "white"
	SampleIDColor ColorSample = "id_picker"
	SampleHue     ColorSample = "h"
	SampleSat     ColorSample = "s"
	SampleValue   ColorSample = "v"
	SampleLight   ColorSample = "l"
	SampleAlpha   ColorSample = "a"
)

// ColorSamples lists every sampling rule.
var ColorSamples = []ColorSample{
	SampleGrey, SampleRed, SampleGreen, SampleBlue, SampleBlack, SampleWhite,
	SampleIDColor, SampleHue, SampleSat, SampleValue, SampleLight, SampleAlpha,
}

// MaskMethod selects a UniversalMask variant.
type MaskMethod string

const (
	MaskVertexGroup MaskMethod = "mask_vg"
	MaskColorAttr   MaskMethod = "mask_vcol"
	MaskImage       MaskMethod = "mask_bitmap"
	MaskNoise       MaskMethod = "mask_noise"
)

// UniversalMask is the mask specification any feature can carry.
type UniversalMask struct {
	Allow  bool       `prop:"mask_allow"`
	Method MaskMethod `prop:"mask_method"`
	// Ptr names the vertex group or color attribute.
	Ptr string `prop:"mask_ptr"`
	// Image variant.
	BitmapPtr string `prop:"mask_bitmap_ptr"`
	UVPtr     string `prop:"mask_bitmap_uv_ptr"`

	ColorSample ColorSample `prop:"mask_color_sample_method"`
	IDColor     [3]float64  `prop:"mask_id_color_ptr"`
	IDTolerance float64     `prop:"mask_id_color_tolerance"`
	Reverse     bool        `prop:"mask_reverse"`

	NoiseSpace      Space   `prop:"mask_noise_space"`
	NoiseScale      float64 `prop:"mask_noise_scale"`
	NoiseSeed       int     `prop:"mask_noise_seed"`
	NoiseBrightness float64 `prop:"mask_noise_brightness"`
	NoiseContrast   float64 `prop:"mask_noise_contrast"`
}

// DefaultUniversalMask returns a disabled vertex-group mask.
func DefaultUniversalMask() UniversalMask {
	return UniversalMask{
		Method:          MaskVertexGroup,
		UVPtr:           "UVMap",
		ColorSample:     SampleGrey,
		IDTolerance:     0.15,
		NoiseSpace:      SpaceLocal,
		NoiseScale:      0.2,
		NoiseBrightness: 1,
		NoiseContrast:   3,
	}
}

// Falloff remaps a transition value through a curve with optional noise.
type Falloff struct {
	RemapAllow  bool         `prop:"fallremap_allow"`
	RemapData   [][2]float64 `prop:"fallremap_data"`
	RemapRevert bool         `prop:"fallremap_revert"`

	NoisyStrength float64 `prop:"fallnoisy_strength"`
	NoisyScale    float64 `prop:"fallnoisy_scale"`
	NoisySeed     int     `prop:"fallnoisy_seed"`
	NoisySpace    Space   `prop:"fallnoisy_space"`
}

// DefaultFalloff returns the identity falloff.
func DefaultFalloff() Falloff {
	return Falloff{
		RemapData:  [][2]float64{{0, 0}, {1, 1}},
		NoisyScale: 1,
		NoisySpace: SpaceLocal,
	}
}

// Influence describes how a field value modulates density and scale.
// Percentages are in [0, 100].
type Influence struct {
	DistAllow  bool    `prop:"dist_infl_allow"`
	Dist       float64 `prop:"dist_influence"`
	DistRevert bool    `prop:"dist_revert"`

	ScaleAllow  bool    `prop:"scale_infl_allow"`
	Scale       float64 `prop:"scale_influence"`
	ScaleRevert bool    `prop:"scale_revert"`
}

// DefaultInfluence returns full density influence and a 70% scale
// influence that is off.
func DefaultInfluence() Influence {
	return Influence{DistAllow: true, Dist: 100, Scale: 70}
}

// RotInfluence tilts normals and spins tangents from a field value.
type RotInfluence struct {
	NorAllow  bool    `prop:"nor_infl_allow"`
	Nor       float64 `prop:"nor_influence"`
	NorRevert bool    `prop:"nor_revert"`

	TanAllow  bool    `prop:"tan_infl_allow"`
	Tan       float64 `prop:"tan_influence"`
	TanRevert bool    `prop:"tan_revert"`
}

// DefaultRotInfluence returns disabled rotation influences.
func DefaultRotInfluence() RotInfluence {
	return RotInfluence{Nor: 50, Tan: 50}
}

// EvalState is the host evaluation context a compute runs for.
type EvalState string

const (
	StateViewport EvalState = "viewport"
	StateShaded   EvalState = "shaded"
	StateRender   EvalState = "render"
)

// ViewportMethod selects the evaluation states a visibility feature is
// active in.
type ViewportMethod string

const (
	ViewportOnly      ViewportMethod = "viewport_only"
	ExceptRendered    ViewportMethod = "except_rendered"
	ViewportAndRender ViewportMethod = "viewport_and_render"
)

// Active reports whether the method applies in state.
func (m ViewportMethod) Active(state EvalState) bool {
	switch m {
	case ViewportOnly:
		return state == StateViewport
	case ExceptRendered:
		return state != StateRender
	case ViewportAndRender:
		return true
	}
	return state == StateViewport
}

// ContactType selects what "distance to an object" measures.
type ContactType string

const (
	ContactOrigin     ContactType = "origin"
	ContactMesh       ContactType = "mesh"
	ContactBBox       ContactType = "bb"
	ContactConvexHull ContactType = "convexhull"
	ContactPointCloud ContactType = "pointcloud"
)
