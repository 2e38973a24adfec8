package scatter

// MaskCategory is the s_mask category (also used for group masks).
type MaskCategory struct {
	Master   bool         `prop:"master_allow"`
	VG       VGMask       `prop:"vg,group"`
	VCol     ColorMask    `prop:"vcol,group"`
	Bitmap   BitmapMask   `prop:"bitmap,group"`
	Material MaterialMask `prop:"material,group"`
	Curve    CurveMask    `prop:"curve,group"`
	BoolVol  CollMask     `prop:"boolvol,group"`
	Upward   CollMask     `prop:"upward,group"`
}

// VGMask keeps points by vertex-group weight.
type VGMask struct {
	Allow  bool   `prop:"allow"`
	Ptr    string `prop:"ptr"`
	Revert bool   `prop:"revert"`
}

// ColorMask keeps points by a sampled color attribute.
type ColorMask struct {
	Allow       bool        `prop:"allow"`
	Ptr         string      `prop:"ptr"`
	ColorSample ColorSample `prop:"color_sample_method"`
	IDColor     [3]float64  `prop:"id_color_ptr"`
	IDTolerance float64     `prop:"id_color_tolerance"`
	Revert      bool        `prop:"revert"`
}

// BitmapMask keeps points by an image sampled in a UV map.
type BitmapMask struct {
	Allow       bool        `prop:"allow"`
	Ptr         string      `prop:"ptr"`
	UVPtr       string      `prop:"uv_ptr"`
	ColorSample ColorSample `prop:"color_sample_method"`
	IDColor     [3]float64  `prop:"id_color_ptr"`
	IDTolerance float64     `prop:"id_color_tolerance"`
	Revert      bool        `prop:"revert"`
}

// MaterialMask keeps points on faces using a material.
type MaterialMask struct {
	Allow  bool   `prop:"allow"`
	Ptr    string `prop:"ptr"`
	Revert bool   `prop:"revert"`
}

// CurveMask keeps points inside a closed bezier area.
type CurveMask struct {
	Allow  bool   `prop:"allow"`
	Ptr    string `prop:"ptr"`
	Revert bool   `prop:"revert"`
}

// CollMask tests points against a collection: boolvol removes points inside
// the collection volumes, upward removes points covered from above.
type CollMask struct {
	Allow   bool   `prop:"allow"`
	CollPtr string `prop:"coll_ptr"`
	Revert  bool   `prop:"revert"`
}

// DefaultMaskCategory returns the mask category with every feature off.
func DefaultMaskCategory() MaskCategory {
	return MaskCategory{
		VCol:   ColorMask{ColorSample: SampleGrey, IDTolerance: 0.15},
		Bitmap: BitmapMask{UVPtr: "UVMap", ColorSample: SampleGrey, IDTolerance: 0.15},
	}
}
