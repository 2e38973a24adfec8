package scatter

// PickMethod is an instance picking strategy.
type PickMethod string

const (
	PickRandom  PickMethod = "pick_random"
	PickRate    PickMethod = "pick_rate"
	PickScale   PickMethod = "pick_scale"
	PickColor   PickMethod = "pick_color"
	PickIndex   PickMethod = "pick_idx"
	PickCluster PickMethod = "pick_cluster"
)

// IDScaleMethod controls how scale picking rewrites point scale.
type IDScaleMethod string

const (
	IDScaleFixed   IDScaleMethod = "fixed_scale"
	IDScaleDynamic IDScaleMethod = "dynamic_scale"
	IDScaleDefault IDScaleMethod = "default_scale"
)

// ColorSource selects where color picking reads its color.
type ColorSource string

const (
	ColorFromVCol    ColorSource = "vcol"
	ColorFromTexture ColorSource = "texture"
)

// ClusterProjection selects the space clusters are formed in.
type ClusterProjection string

const (
	ClusterLocal  ClusterProjection = "local"
	ClusterGlobal ClusterProjection = "global"
)

// MaxInstanceSlots is the number of per-instance slots carried by a system.
const MaxInstanceSlots = 20

// InstanceSlot carries per-instance picking parameters.
type InstanceSlot struct {
	Rate     float64    `prop:"rate"`
	ScaleMin float64    `prop:"scale_min"`
	ScaleMax float64    `prop:"scale_max"`
	Color    [3]float64 `prop:"color"`
}

// InstancesCategory is the s_instances category.
type InstancesCategory struct {
	// CollPtr names the collection holding the instance objects.
	CollPtr string     `prop:"coll_ptr"`
	Seed    int        `prop:"seed"`
	Method  PickMethod `prop:"pick_method"`

	ScaleMethod    IDScaleMethod `prop:"id_scale_method"`
	ColorTolerance float64       `prop:"id_color_tolerence"`
	ColorSource    ColorSource   `prop:"id_color_sample_method"`
	VColPtr        string        `prop:"vcol_ptr"`
	TexturePtr     string        `prop:"texture_ptr"`
	UVPtr          string        `prop:"uv_ptr"`
	IdxPtr         string        `prop:"idx_ptr"`

	ClusterProjection ClusterProjection `prop:"pick_cluster_projection_method"`
	ClusterScale      float64           `prop:"pick_cluster_scale"`
	ClusterBlur       float64           `prop:"pick_cluster_blur"`
	PickClump         bool              `prop:"pick_clump"`

	Slots [MaxInstanceSlots]InstanceSlot `prop:"id,slots"`
}

// DefaultInstancesCategory returns random picking with neutral slots.
func DefaultInstancesCategory() InstancesCategory {
	c := InstancesCategory{
		Method:            PickRandom,
		ScaleMethod:       IDScaleDynamic,
		ColorTolerance:    0.3,
		ColorSource:       ColorFromVCol,
		UVPtr:             "UVMap",
		IdxPtr:            "manual_index",
		ClusterProjection: ClusterLocal,
		ClusterScale:      0.3,
		ClusterBlur:       0.5,
	}
	for i := range c.Slots {
		c.Slots[i] = InstanceSlot{Rate: 0, ScaleMin: 0, ScaleMax: 0.5, Color: [3]float64{1, 0, 0}}
	}
	return c
}

// DisplayMethod is how the host previews instances.
type DisplayMethod string

const (
	DisplayPlaceholder       DisplayMethod = "placeholder"
	DisplayPlaceholderCustom DisplayMethod = "placeholder_custom"
	DisplayPoint             DisplayMethod = "point"
	DisplayCloud             DisplayMethod = "cloud"
	DisplayBBox              DisplayMethod = "bb"
	DisplayConvexHull        DisplayMethod = "convexhull"
)

// DisplayCategory is the s_display category. It only annotates the stream.
type DisplayCategory struct {
	Master bool `prop:"master_allow"`

	Allow            bool           `prop:"allow"`
	Method           DisplayMethod  `prop:"method"`
	PlaceholderType  string         `prop:"placeholder_type"`
	CustomPtr        string         `prop:"custom_placeholder_ptr"`
	PlaceholderScale [3]float64     `prop:"placeholder_scale"`
	PointRadius      float64        `prop:"point_radius"`
	CloudRadius      float64        `prop:"cloud_radius"`
	CloudDensity     float64        `prop:"cloud_density"`
	ViewportMethod   ViewportMethod `prop:"viewport_method"`

	CamDistAllow    bool    `prop:"camdist_allow"`
	CamDistDistance float64 `prop:"camdist_distance"`
}

// DefaultDisplayCategory returns the display category with display
// replacement off.
func DefaultDisplayCategory() DisplayCategory {
	return DisplayCategory{
		Method:           DisplayPlaceholder,
		PlaceholderType:  "SCATTER5_placeholder_pyramidal_square",
		PlaceholderScale: [3]float64{0.3, 0.3, 0.3},
		PointRadius:      0.3,
		CloudRadius:      0.1,
		CloudDensity:     1,
		ViewportMethod:   ExceptRendered,
		CamDistDistance:  5,
	}
}
