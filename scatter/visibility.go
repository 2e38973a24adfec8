package scatter

// VisibilityCategory is the s_visibility category.
type VisibilityCategory struct {
	Master      bool          `prop:"master_allow"`
	FacePreview VisFace       `prop:"facepreview,group"`
	View        VisPercentage `prop:"view,group"`
	Cam         VisCam        `prop:"cam,group"`
	CamClip     VisCamClip    `prop:"camclip,group"`
	CamDist     VisCamDist    `prop:"camdist,group"`
	CamOccl     VisCamOccl    `prop:"camoccl,group"`
	MaxLoad     VisMaxLoad    `prop:"maxload,group"`
}

// VisFace keeps only points on faces of the preview face set.
type VisFace struct {
	Allow          bool           `prop:"allow"`
	FaceSet        string         `prop:"ptr"`
	ViewportMethod ViewportMethod `prop:"viewport_method"`
}

// VisPercentage drops Percentage percent of points.
type VisPercentage struct {
	Allow          bool           `prop:"allow"`
	Percentage     float64        `prop:"percentage"`
	ViewportMethod ViewportMethod `prop:"viewport_method"`
}

// VisCam toggles the camera culling phase. Its sub-features live in
// camclip, camdist and camoccl.
type VisCam struct {
	Allow bool `prop:"allow"`
	// PreDist culls at the sampler stage when the generator supports it.
	PreDistAllow   bool           `prop:"predist_allow"`
	ViewportMethod ViewportMethod `prop:"viewport_method"`
}

// VisCamClip is the frustum test. Lens and sensor width are in millimetres.
type VisCamClip struct {
	Allow       bool       `prop:"allow"`
	Autofill    bool       `prop:"cam_autofill"`
	Lens        float64    `prop:"cam_lens"`
	SensorWidth float64    `prop:"cam_sensor_width"`
	ResXY       [2]float64 `prop:"cam_res_xy"`
	ShiftXY     [2]float64 `prop:"cam_shift_xy"`
	BoostXY     [2]float64 `prop:"cam_boost_xy"`

	ProximityAllow    bool    `prop:"proximity_allow"`
	ProximityDistance float64 `prop:"proximity_distance"`
}

// VisCamDist fades points out between Min and Max camera distance.
type VisCamDist struct {
	Allow bool    `prop:"allow"`
	Min   float64 `prop:"min"`
	Max   float64 `prop:"max"`

	Falloff `prop:",inline"`
}

// OcclusionMethod picks the occluders tested by camera occlusion.
type OcclusionMethod string

const (
	OcclSurface   OcclusionMethod = "surface_only"
	OcclColliders OcclusionMethod = "obj_only"
	OcclBoth      OcclusionMethod = "both"
)

// VisCamOccl culls points hidden from the camera.
type VisCamOccl struct {
	Allow     bool            `prop:"allow"`
	Method    OcclusionMethod `prop:"method"`
	Threshold float64         `prop:"threshold"`
	CollPtr   string          `prop:"coll_ptr"`
}

// MaxLoadMethod is what happens when the stream exceeds its threshold.
type MaxLoadMethod string

const (
	MaxLoadLimit    MaxLoadMethod = "maxload_limit"
	MaxLoadShutdown MaxLoadMethod = "maxload_shutdown"
)

// VisMaxLoad caps the number of emitted points.
type VisMaxLoad struct {
	Allow          bool           `prop:"allow"`
	Method         MaxLoadMethod  `prop:"cull_method"`
	Threshold      int            `prop:"treshold"`
	ViewportMethod ViewportMethod `prop:"viewport_method"`
}

// DefaultVisibilityCategory returns the visibility category with every
// feature off.
func DefaultVisibilityCategory() VisibilityCategory {
	return VisibilityCategory{
		FacePreview: VisFace{FaceSet: "preview", ViewportMethod: ExceptRendered},
		View:        VisPercentage{Percentage: 80, ViewportMethod: ExceptRendered},
		Cam:         VisCam{ViewportMethod: ExceptRendered},
		CamClip: VisCamClip{
			Autofill: true, Lens: 50, SensorWidth: 36, ResXY: [2]float64{1920, 1080},
			BoostXY: [2]float64{0, 0}, ProximityDistance: 4,
		},
		CamDist: VisCamDist{Min: 10, Max: 40, Falloff: DefaultFalloff()},
		CamOccl: VisCamOccl{Method: OcclSurface, Threshold: 0.01},
		MaxLoad: VisMaxLoad{Method: MaxLoadLimit, Threshold: 199000, ViewportMethod: ExceptRendered},
	}
}

// ActiveIn reports whether the face preview runs in state.
func (v VisFace) ActiveIn(state EvalState) bool { return v.Allow && v.ViewportMethod.Active(state) }

// ActiveIn reports whether percentage culling runs in state.
func (v VisPercentage) ActiveIn(state EvalState) bool {
	return v.Allow && v.ViewportMethod.Active(state)
}

// ActiveIn reports whether camera culling runs in state.
func (v VisCam) ActiveIn(state EvalState) bool { return v.Allow && v.ViewportMethod.Active(state) }

// ActiveIn reports whether max load gating runs in state.
func (v VisMaxLoad) ActiveIn(state EvalState) bool {
	return v.Allow && v.ViewportMethod.Active(state)
}
