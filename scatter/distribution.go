package scatter

import "github.com/pthm-cable/scatter/geom"

// Generator is a distribution family.
type Generator string

const (
	GenRandom      Generator = "random"
	GenStable      Generator = "stable"
	GenClumping    Generator = "clumping"
	GenVerts       Generator = "verts"
	GenFaces       Generator = "faces"
	GenEdges       Generator = "edges"
	GenVolume      Generator = "volume"
	GenProjBezArea Generator = "projbezarea"
	GenProjBezLine Generator = "projbezline"
	GenProjEmpties Generator = "projempties"
	GenManual      Generator = "manual"
)

// Generators lists every family in declaration order.
var Generators = []Generator{
	GenRandom, GenStable, GenClumping, GenVerts, GenFaces, GenEdges, GenVolume,
	GenProjBezArea, GenProjBezLine, GenProjEmpties, GenManual,
}

// LimitMode decides the order limit-distance rejection runs in. Stable
// orders candidates by stable id so re-seeding one feature does not
// reshuffle survivors; fast keeps emission order.
type LimitMode string

const (
	LimitStable LimitMode = "stable"
	LimitFast   LimitMode = "fast"
)

// Distribution is the s_distribution category.
type Distribution struct {
	Method Generator `prop:"method"`

	// random
	Space              Space     `prop:"space"`
	IsCount            bool      `prop:"is_count_method"`
	Density            float64   `prop:"density"`
	Count              int       `prop:"count"`
	Seed               int       `prop:"seed"`
	LimitDistanceAllow bool      `prop:"limit_distance_allow"`
	LimitDistance      float64   `prop:"limit_distance"`
	LimitMode          LimitMode `prop:"limit_mode"`

	Stable      StableDist      `prop:"stable,group"`
	Clump       ClumpDist       `prop:"clump,group"`
	VFESpace    Space           `prop:"vfe_space"`
	Edges       EdgesDist       `prop:"edges,group"`
	Volume      VolumeDist      `prop:"volume,group"`
	ProjBezArea ProjBezAreaDist `prop:"projbezarea,group"`
	ProjBezLine ProjBezLineDist `prop:"projbezline,group"`
	ProjEmpties ProjEmptiesDist `prop:"projempties,group"`
}

// StableDist samples in UV space so points follow surface deformation.
type StableDist struct {
	UVPtr              string  `prop:"uv_ptr"`
	IsCount            bool    `prop:"is_count_method"`
	Density            float64 `prop:"density"`
	Count              int     `prop:"count"`
	Seed               int     `prop:"seed"`
	LimitDistanceAllow bool    `prop:"limit_distance_allow"`
	LimitDistance      float64 `prop:"limit_distance"`
}

// ClumpDist is the two-pass clump generator.
type ClumpDist struct {
	Space              Space   `prop:"space"`
	Density            float64 `prop:"density"`
	Seed               int     `prop:"seed"`
	LimitDistanceAllow bool    `prop:"limit_distance_allow"`
	LimitDistance      float64 `prop:"limit_distance"`
	// MaxDistance is the clump radius R; Transition widens it with a
	// density fade.
	MaxDistance  float64 `prop:"max_distance"`
	Transition   float64 `prop:"falloff"`
	RandomFactor float64 `prop:"random_factor"`

	ChildrenDensity            float64 `prop:"children_density"`
	ChildrenSeed               int     `prop:"children_seed"`
	ChildrenLimitDistanceAllow bool    `prop:"children_limit_distance_allow"`
	ChildrenLimitDistance      float64 `prop:"children_limit_distance"`

	Falloff `prop:",inline"`
}

// EdgeSelection picks which mesh edges the edge generator uses.
type EdgeSelection string

const (
	EdgesAll         EdgeSelection = "all"
	EdgesBoundary    EdgeSelection = "boundary"
	EdgesUnconnected EdgeSelection = "unconnected"
)

// EdgePosition places a point on its edge.
type EdgePosition string

const (
	EdgeMidpoint EdgePosition = "center"
	EdgeAlong    EdgePosition = "along"
)

// EdgesDist configures the per-edge generator.
type EdgesDist struct {
	Selection EdgeSelection `prop:"selection_method"`
	Position  EdgePosition  `prop:"position_method"`
	Seed      int           `prop:"seed"`
}

// VolumeMethod selects random or grid volume filling.
type VolumeMethod string

const (
	VolumeRandom VolumeMethod = "random"
	VolumeGrid   VolumeMethod = "grid"
)

// VolumeDist fills the closed volume of the surfaces.
type VolumeDist struct {
	Method             VolumeMethod `prop:"method"`
	Space              Space        `prop:"space"`
	IsCount            bool         `prop:"is_count_method"`
	Density            float64      `prop:"density"`
	Count              int          `prop:"count"`
	Seed               int          `prop:"seed"`
	VoxelSize          float64      `prop:"voxelsize"`
	GridSpacing        geom.Vec     `prop:"grid_spacing"`
	LimitDistanceAllow bool         `prop:"limit_distance_allow"`
	LimitDistance      float64      `prop:"limit_distance"`
}

// ProjAxis is the projection direction for curve and empty generators.
type ProjAxis string

const (
	ProjLocalZ  ProjAxis = "local_z"
	ProjGlobalZ ProjAxis = "global_z"
)

// Projection projects generated points onto the surfaces.
type Projection struct {
	Enabled bool     `prop:"projenabled"`
	Length  float64  `prop:"projlength"`
	Axis    ProjAxis `prop:"projaxis"`
}

// ProjBezAreaDist samples the inside of a closed bezier area.
type ProjBezAreaDist struct {
	CurvePtr           string  `prop:"curve_ptr"`
	Space              Space   `prop:"space"`
	Density            float64 `prop:"density"`
	Seed               int     `prop:"seed"`
	LimitDistanceAllow bool    `prop:"limit_distance_allow"`
	LimitDistance      float64 `prop:"limit_distance"`

	Projection `prop:",inline"`
}

// BezLineMethod selects spline sampling.
type BezLineMethod string

const (
	BezOnSpline BezLineMethod = "onspline"
	BezPathArea BezLineMethod = "patharea"
)

// RowSide places duplicated rows relative to the spline.
type RowSide string

const (
	RowLeft  RowSide = "left"
	RowRight RowSide = "right"
	RowBoth  RowSide = "both"
)

// ProjBezLineDist samples along or around a bezier spline.
type ProjBezLineDist struct {
	CurvePtr string        `prop:"curve_ptr"`
	Method   BezLineMethod `prop:"method"`
	Space    Space         `prop:"space"`
	Seed     int           `prop:"seed"`

	IsCount         bool    `prop:"is_count_method"`
	Count           int     `prop:"count"`
	OnSplineDensity float64 `prop:"onspline_density"`

	PathAreaDensity    float64 `prop:"patharea_density"`
	PathAreaWidth      float64 `prop:"patharea_width"`
	PathAreaFalloff    float64 `prop:"patharea_falloff"`
	RadiusInflAllow    bool    `prop:"patharea_radiusinfl_allow"`
	RadiusInflFactor   float64 `prop:"patharea_radiusinfl_factor"`
	LimitDistanceAllow bool    `prop:"limit_distance_allow"`
	LimitDistance      float64 `prop:"limit_distance"`

	RandOffAllow bool    `prop:"randoff_allow"`
	RandOffDist  float64 `prop:"randoff_dist"`

	RowsAllow bool    `prop:"creatrow_allow"`
	Rows      int     `prop:"creatrow_rows"`
	RowDist   float64 `prop:"creatrow_dist"`
	RowSide   RowSide `prop:"creatrow_dir"`
	RowShift  float64 `prop:"creatrow_shift"`

	SpreadAllow  bool    `prop:"spread_allow"`
	SpreadOffset float64 `prop:"spread_offset"`

	Projection `prop:",inline"`
	Falloff    `prop:",inline"`
}

// ProjEmptiesDist places one point per empty of a collection.
type ProjEmptiesDist struct {
	CollPtr   string `prop:"coll_ptr"`
	EmptyOnly bool   `prop:"empty_only"`

	Projection `prop:",inline"`
}

// DefaultDistribution returns a 10/m² random distribution.
func DefaultDistribution() Distribution {
	return Distribution{
		Method:        GenRandom,
		Space:         SpaceLocal,
		Density:       10,
		Count:         1000,
		LimitDistance: 0.2,
		LimitMode:     LimitStable,
		Stable: StableDist{
			UVPtr: "UVMap", Density: 10, Count: 1000, LimitDistance: 0.2,
		},
		Clump: ClumpDist{
			Space: SpaceLocal, Density: 0.15, LimitDistance: 0.2, MaxDistance: 0.7,
			Transition: 0.5, RandomFactor: 1, ChildrenDensity: 15, ChildrenSeed: 1,
			ChildrenLimitDistance: 0.2, Falloff: DefaultFalloff(),
		},
		VFESpace: SpaceLocal,
		Edges:    EdgesDist{Selection: EdgesAll, Position: EdgeMidpoint},
		Volume: VolumeDist{
			Method: VolumeRandom, Space: SpaceLocal, Density: 1, Count: 1000,
			VoxelSize: 0.3, GridSpacing: geom.V(0.4, 0.4, 0.4), LimitDistance: 0.2,
		},
		ProjBezArea: ProjBezAreaDist{
			Space: SpaceLocal, Density: 10, LimitDistance: 0.2,
			Projection: Projection{Length: 20, Axis: ProjLocalZ},
		},
		ProjBezLine: ProjBezLineDist{
			Method: BezOnSpline, Space: SpaceLocal, Count: 20, OnSplineDensity: 2,
			PathAreaDensity: 5, PathAreaWidth: 0.5, RadiusInflFactor: 1,
			LimitDistance: 0.2, RandOffDist: 0.1, Rows: 2, RowDist: 0.5,
			RowSide: RowBoth, SpreadOffset: 0.5,
			Projection: Projection{Length: 20, Axis: ProjLocalZ},
			Falloff:    DefaultFalloff(),
		},
		ProjEmpties: ProjEmptiesDist{Projection: Projection{Length: 20, Axis: ProjLocalZ}},
	}
}
