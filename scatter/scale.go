package scatter

import "github.com/pthm-cable/scatter/geom"

// ScaleCategory is the s_scale category.
type ScaleCategory struct {
	Master  bool         `prop:"master_allow"`
	Default ScaleDefault `prop:"default,group"`
	Random  ScaleRandom  `prop:"random,group"`
	Shrink  ScaleMasked  `prop:"shrink,group"`
	Grow    ScaleMasked  `prop:"grow,group"`
	Min     ScaleMin     `prop:"min,group"`
	Mirror  ScaleMirror  `prop:"mirror,group"`
	Fading  ScaleFading  `prop:"fading,group"`

	// Distribution-specific scaling.
	Clump       ScaleVec   `prop:"clump,group"`
	Faces       ScaleValue `prop:"faces,group"`
	Edges       ScaleVecF  `prop:"edges,group"`
	ProjBezLine ScaleValue `prop:"projbezline_radius,group"`
	ProjEmpties ScaleValue `prop:"projempties,group"`
}

// ScaleDefault sets the base scale.
type ScaleDefault struct {
	Allow      bool     `prop:"allow"`
	Space      Space    `prop:"space"`
	Value      geom.Vec `prop:"value"`
	Multiplier float64  `prop:"multiplier"`
}

// RandomScaleMethod picks uniform or per-axis random scaling.
type RandomScaleMethod string

const (
	RandomUniform   RandomScaleMethod = "random_uniform"
	RandomVectorial RandomScaleMethod = "random_vectorial"
)

// ScaleRandom multiplies scale by a random factor between Factor and 1.
type ScaleRandom struct {
	Allow       bool              `prop:"allow"`
	Factor      geom.Vec          `prop:"factor"`
	Probability float64           `prop:"probability"`
	Method      RandomScaleMethod `prop:"method"`
	Seed        int               `prop:"seed"`
	Mask        UniversalMask     `prop:"mask_dict,dict"`
}

// ScaleMasked multiplies scale by Factor where its mask is set.
type ScaleMasked struct {
	Allow  bool          `prop:"allow"`
	Factor geom.Vec      `prop:"factor"`
	Mask   UniversalMask `prop:"mask_dict,dict"`
}

// MinScaleMethod chooses what happens to undersized points.
type MinScaleMethod string

const (
	MinRemove  MinScaleMethod = "remove"
	MinScaling MinScaleMethod = "scaling"
)

// ScaleMin removes or rescales points below a minimum scale.
type ScaleMin struct {
	Allow  bool           `prop:"allow"`
	Method MinScaleMethod `prop:"method"`
	Value  float64        `prop:"value"`
}

// ScaleMirror flips scale axes at random.
type ScaleMirror struct {
	Allow bool          `prop:"allow"`
	X     bool          `prop:"is_x"`
	Y     bool          `prop:"is_y"`
	Z     bool          `prop:"is_z"`
	Seed  int           `prop:"seed"`
	Mask  UniversalMask `prop:"mask_dict,dict"`
}

// ScaleFading scales points by their distance to the camera.
type ScaleFading struct {
	Allow       bool     `prop:"allow"`
	DistanceMin float64  `prop:"distance_min"`
	DistanceMax float64  `prop:"distance_max"`
	Factor      geom.Vec `prop:"factor"`

	Falloff `prop:",inline"`
}

// ScaleVec is a per-axis scale target.
type ScaleVec struct {
	Allow bool     `prop:"allow"`
	Value geom.Vec `prop:"value"`
}

// ScaleValue blends scale toward a distribution-provided factor.
type ScaleValue struct {
	Allow bool    `prop:"allow"`
	Value float64 `prop:"value"`
}

// ScaleVecF scales per axis by a distribution-provided length.
type ScaleVecF struct {
	Allow     bool     `prop:"allow"`
	VecFactor geom.Vec `prop:"vec_factor"`
}

// DefaultScaleCategory returns the scale category with every feature off.
func DefaultScaleCategory() ScaleCategory {
	return ScaleCategory{
		Default: ScaleDefault{Space: SpaceLocal, Value: geom.One, Multiplier: 1},
		Random: ScaleRandom{
			Factor: geom.V(0.5, 0.5, 0.5), Probability: 100, Method: RandomUniform,
			Mask: DefaultUniversalMask(),
		},
		Shrink: ScaleMasked{Factor: geom.V(0.1, 0.1, 0.1), Mask: DefaultUniversalMask()},
		Grow:   ScaleMasked{Factor: geom.V(3, 3, 3), Mask: DefaultUniversalMask()},
		Min:    ScaleMin{Method: MinRemove, Value: 0.05},
		Mirror: ScaleMirror{X: true, Y: true, Mask: DefaultUniversalMask()},
		Fading: ScaleFading{
			DistanceMin: 30, DistanceMax: 40, Factor: geom.V(2, 2, 2), Falloff: DefaultFalloff(),
		},
		Clump:       ScaleVec{Value: geom.V(0.3, 0.3, 0.3)},
		Faces:       ScaleValue{Value: 1},
		Edges:       ScaleVecF{VecFactor: geom.V(1, 1, 1)},
		ProjBezLine: ScaleValue{Value: 1},
		ProjEmpties: ScaleValue{Value: 1},
	}
}
