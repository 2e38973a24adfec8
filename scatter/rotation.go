package scatter

import "github.com/pthm-cable/scatter/geom"

// AlignMethod selects an alignment target for the Z or Y axis.
type AlignMethod string

const (
	AlignNormal    AlignMethod = "normal"
	AlignLocal     AlignMethod = "local"
	AlignGlobal    AlignMethod = "global"
	AlignObject    AlignMethod = "object"
	AlignRandom    AlignMethod = "random"
	AlignOrigin    AlignMethod = "origin"
	AlignCamera    AlignMethod = "camera"
	AlignDownslope AlignMethod = "downslope"
	AlignBoundary  AlignMethod = "boundary"
	AlignFlowmap   AlignMethod = "flowmap"
)

// FlowSource selects where a flowmap is read from.
type FlowSource string

const (
	FlowVCol    FlowSource = "vcol"
	FlowTexture FlowSource = "texture"
	FlowNoise   FlowSource = "noise"
)

// RotationCategory is the s_rot category.
type RotationCategory struct {
	Master bool      `prop:"master_allow"`
	AlignZ AlignZ    `prop:"align_z,group"`
	AlignY AlignY    `prop:"align_y,group"`
	Random RotRandom `prop:"random,group"`
	Add    RotAdd    `prop:"add,group"`
	Tilt   RotTilt   `prop:"tilt,group"`
}

// AlignZ orients each point's local Z.
type AlignZ struct {
	Allow          bool        `prop:"allow"`
	Method         AlignMethod `prop:"method"`
	Revert         bool        `prop:"revert"`
	Object         string      `prop:"object"`
	RandomSeed     int         `prop:"random_seed"`
	InfluenceAllow bool        `prop:"influence_allow"`
	InfluenceValue float64     `prop:"influence_value"`
	SmoothingAllow bool        `prop:"smoothing_allow"`
	SmoothingValue float64     `prop:"smoothing_value"`
	ClumpAllow     bool        `prop:"clump_allow"`
	ClumpValue     float64     `prop:"clump_value"`
}

// AlignY orients each point's local Y around its Z.
type AlignY struct {
	Allow      bool        `prop:"allow"`
	Method     AlignMethod `prop:"method"`
	Revert     bool        `prop:"revert"`
	Object     string      `prop:"object"`
	RandomSeed int         `prop:"random_seed"`

	DownslopeSpace          Space   `prop:"downslope_space"`
	DownslopeSmoothingAllow bool    `prop:"downslope_smoothing_allow"`
	DownslopeSmoothingValue float64 `prop:"downslope_smoothing_value"`

	FlowMethod    FlowSource `prop:"flow_method"`
	FlowDirection float64    `prop:"flow_direction"`
	VColPtr       string     `prop:"vcol_ptr"`
	TexturePtr    string     `prop:"texture_ptr"`
	UVPtr         string     `prop:"uv_ptr"`
}

// RotRandom applies random tilt around the tangent and yaw around the
// normal. Values are fractions of a half (tilt) or full (yaw) turn.
type RotRandom struct {
	Allow     bool          `prop:"allow"`
	TiltValue float64       `prop:"tilt_value"`
	YawValue  float64       `prop:"yaw_value"`
	Seed      int           `prop:"seed"`
	Mask      UniversalMask `prop:"mask_dict,dict"`
}

// RotAdd adds a fixed and a random euler rotation.
type RotAdd struct {
	Allow   bool          `prop:"allow"`
	Default geom.Vec      `prop:"default"`
	Random  geom.Vec      `prop:"random"`
	Seed    int           `prop:"seed"`
	Snap    float64       `prop:"snap"`
	Mask    UniversalMask `prop:"mask_dict,dict"`
}

// TiltDirMethod chooses whether tilt direction comes from the flowmap or a
// fixed angle.
type TiltDirMethod string

const (
	TiltDirFlowmap TiltDirMethod = "flowmap"
	TiltDirFixed   TiltDirMethod = "fix"
)

// RotTilt tilts points along a flowmap. Red/green give the direction and
// blue the strength.
type RotTilt struct {
	Allow         bool          `prop:"allow"`
	Method        FlowSource    `prop:"method"`
	DirMethod     TiltDirMethod `prop:"dir_method"`
	Direction     float64       `prop:"direction"`
	VColPtr       string        `prop:"vcol_ptr"`
	TexturePtr    string        `prop:"texture_ptr"`
	UVPtr         string        `prop:"uv_ptr"`
	NoiseScale    float64       `prop:"noise_scale"`
	NoiseSpace    Space         `prop:"noise_space"`
	Force         float64       `prop:"force"`
	BlueInfluence float64       `prop:"blue_influence"`
	Mask          UniversalMask `prop:"mask_dict,dict"`
}

// DefaultRotationCategory returns the rotation category with every feature
// off.
func DefaultRotationCategory() RotationCategory {
	return RotationCategory{
		AlignZ: AlignZ{Method: AlignNormal, InfluenceValue: 0.7, SmoothingValue: 0.5, ClumpValue: 0.3},
		AlignY: AlignY{
			Method: AlignGlobal, DownslopeSpace: SpaceGlobal, DownslopeSmoothingValue: 0.5,
			FlowMethod: FlowVCol, UVPtr: "UVMap",
		},
		Random: RotRandom{TiltValue: 0.1, YawValue: 1, Mask: DefaultUniversalMask()},
		Add:    RotAdd{Mask: DefaultUniversalMask()},
		Tilt: RotTilt{
			Method: FlowVCol, DirMethod: TiltDirFlowmap, UVPtr: "UVMap", NoiseScale: 0.5,
			NoiseSpace: SpaceLocal, Force: 0.7, BlueInfluence: 1, Mask: DefaultUniversalMask(),
		},
	}
}
