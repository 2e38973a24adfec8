package scatter

import "github.com/pthm-cable/scatter/geom"

// PushCategory is the s_push category.
type PushCategory struct {
	Master bool       `prop:"master_allow"`
	Offset PushOffset `prop:"offset,group"`
	Dir    PushDir    `prop:"dir,group"`
	Noise  PushNoise  `prop:"noise,group"`
	Fall   PushFall   `prop:"fall,group"`
}

// PushOffset adds a fixed plus random offset, rotation and scale.
type PushOffset struct {
	Allow        bool          `prop:"allow"`
	Space        Space         `prop:"space"`
	AddValue     geom.Vec      `prop:"add_value"`
	AddRandom    geom.Vec      `prop:"add_random"`
	RotateValue  geom.Vec      `prop:"rotate_value"`
	RotateRandom geom.Vec      `prop:"rotate_random"`
	ScaleValue   geom.Vec      `prop:"scale_value"`
	ScaleRandom  geom.Vec      `prop:"scale_random"`
	Seed         int           `prop:"seed"`
	Mask         UniversalMask `prop:"mask_dict,dict"`
}

// PushAxis selects the axis a directional push follows.
type PushAxis string

const (
	PushNormal  PushAxis = "push_normal"
	PushPoint   PushAxis = "push_point"
	PushLocalZ  PushAxis = "push_local"
	PushGlobalZ PushAxis = "push_global"
)

// PushDir moves points along an axis by Value plus a random amount.
type PushDir struct {
	Allow     bool          `prop:"allow"`
	Space     Space         `prop:"space"`
	Method    PushAxis      `prop:"method"`
	AddValue  float64       `prop:"add_value"`
	AddRandom float64       `prop:"add_random"`
	Seed      int           `prop:"seed"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// PushNoise displaces points by a noise vector, optionally animated.
type PushNoise struct {
	Allow      bool          `prop:"allow"`
	Space      Space         `prop:"space"`
	Vector     geom.Vec      `prop:"vector"`
	IsAnimated bool          `prop:"is_animated"`
	Speed      float64       `prop:"speed"`
	Seed       int           `prop:"seed"`
	Mask       UniversalMask `prop:"mask_dict,dict"`
}

// PushFall animates points falling from Height between two keyframes.
type PushFall struct {
	Allow      bool    `prop:"allow"`
	Space      Space   `prop:"space"`
	Height     float64 `prop:"height"`
	Key1Pos    int     `prop:"key1_pos"`
	Key1Height float64 `prop:"key1_height"`
	Key2Pos    int     `prop:"key2_pos"`
	Key2Height float64 `prop:"key2_height"`
	// StopAtInitialZ rests points once they reach their sampled height.
	StopAtInitialZ bool `prop:"stop_when_initial_z"`

	TurbulenceAllow     bool     `prop:"turbulence_allow"`
	TurbulenceSpread    geom.Vec `prop:"turbulence_spread"`
	TurbulenceSpeed     float64  `prop:"turbulence_speed"`
	TurbulenceRotVector geom.Vec `prop:"turbulence_rot_vector"`
	TurbulenceRotFactor float64  `prop:"turbulence_rot_factor"`

	Seed int           `prop:"seed"`
	Mask UniversalMask `prop:"mask_dict,dict"`
}

// DefaultPushCategory returns the push category with every feature off.
func DefaultPushCategory() PushCategory {
	return PushCategory{
		Offset: PushOffset{Space: SpaceLocal, ScaleValue: geom.One, Mask: DefaultUniversalMask()},
		Dir: PushDir{
			Space: SpaceLocal, Method: PushNormal, AddValue: 1, Mask: DefaultUniversalMask(),
		},
		Noise: PushNoise{
			Space: SpaceLocal, Vector: geom.V(1, 1, 1), Speed: 1, Mask: DefaultUniversalMask(),
		},
		Fall: PushFall{
			Space: SpaceLocal, Height: 20, Key1Pos: 0, Key1Height: 20, Key2Pos: 100,
			TurbulenceSpread: geom.V(1, 1, 0.5), TurbulenceSpeed: 1,
			TurbulenceRotVector: geom.V(0.5, 0.5, 0.5), TurbulenceRotFactor: 1,
			Mask: DefaultUniversalMask(),
		},
	}
}

// WindMethod selects a fixed or loopable wind animation.
type WindMethod string

const (
	WindFixed    WindMethod = "wind_wave_fixed"
	WindLoopable WindMethod = "wind_wave_loopable"
)

// WindDirection selects a fixed or flowmap-driven wave direction.
type WindDirection string

const (
	WindDirFixed WindDirection = "fixed"
	WindDirVCol  WindDirection = "vcol"
)

// WindCategory is the s_wind category.
type WindCategory struct {
	Master bool      `prop:"master_allow"`
	Wave   WindWave  `prop:"wave,group"`
	Noise  WindNoise `prop:"noise,group"`
}

// WindWave tilts instances with a travelling noise wave. Direction is an
// angle around +Z in radians.
type WindWave struct {
	Allow           bool       `prop:"allow"`
	Space           Space      `prop:"space"`
	Method          WindMethod `prop:"method"`
	LoopAllow       bool       `prop:"loopable_cliplength_allow"`
	LoopStart       int        `prop:"loopable_frame_start"`
	LoopEnd         int        `prop:"loopable_frame_end"`
	Speed           float64    `prop:"speed"`
	Force           float64    `prop:"force"`
	Swinging        bool       `prop:"swinging"`
	SwingingFactor  float64    `prop:"swinging_factor"`
	ScaleInfluence  bool       `prop:"scale_influence"`
	ScaleInfluenceF float64    `prop:"scale_influence_factor"`

	TextureScale      float64 `prop:"texture_scale"`
	TextureTurbulence float64 `prop:"texture_turbulence"`
	TextureDistortion float64 `prop:"texture_distorsion"`
	TextureBrightness float64 `prop:"texture_brightness"`
	TextureContrast   float64 `prop:"texture_contrast"`

	DirMethod       WindDirection `prop:"dir_method"`
	FlowmapPtr      string        `prop:"flowmap_ptr"`
	Direction       float64       `prop:"direction"`
	DirectionRandom float64       `prop:"direction_random"`

	Mask UniversalMask `prop:"mask_dict,dict"`
}

// WindNoise adds turbulent per-instance tilt.
type WindNoise struct {
	Allow     bool       `prop:"allow"`
	Space     Space      `prop:"space"`
	Method    WindMethod `prop:"method"`
	LoopAllow bool       `prop:"loopable_cliplength_allow"`
	LoopStart int        `prop:"loopable_frame_start"`
	LoopEnd   int        `prop:"loopable_frame_end"`
	Force     float64    `prop:"force"`
	Speed     float64    `prop:"speed"`

	Mask UniversalMask `prop:"mask_dict,dict"`
}

// DefaultWindCategory returns the wind category with every feature off.
func DefaultWindCategory() WindCategory {
	return WindCategory{
		Wave: WindWave{
			Space: SpaceGlobal, Method: WindFixed, LoopStart: 1, LoopEnd: 250,
			Speed: 1, Force: 1, SwingingFactor: 1, ScaleInfluenceF: 1,
			TextureScale: 0.1, TextureTurbulence: 0, TextureDistortion: 0,
			TextureBrightness: 1, TextureContrast: 2, DirMethod: WindDirFixed,
			Direction: 0.7853981633974483, Mask: DefaultUniversalMask(),
		},
		Noise: WindNoise{
			Space: SpaceGlobal, Method: WindFixed, LoopStart: 1, LoopEnd: 250,
			Force: 0.5, Speed: 1, Mask: DefaultUniversalMask(),
		},
	}
}
