package surface

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pthm-cable/scatter/camera"
	"github.com/pthm-cable/scatter/geom"
)

type vec3 [3]float64

func (v vec3) vec() geom.Vec { return geom.V(v[0], v[1], v[2]) }

type sceneFile struct {
	Frame      float64                      `json:"frame"`
	FPS        float64                      `json:"fps"`
	FrameStart int                          `json:"frame_start"`
	FrameEnd   int                          `json:"frame_end"`
	Objects    []objectFile                 `json:"objects"`
	Collection map[string][]string          `json:"collections"`
	Images     []imageFile                  `json:"images"`
	Camera     *cameraFile                  `json:"camera"`
	Manual     map[string][]manualPointFile `json:"manual_points"`
}

type objectFile struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"`
	Location vec3        `json:"location"`
	Rotation vec3        `json:"rotation"` // euler, degrees
	Scale    *vec3       `json:"scale"`
	Color    *[4]float64 `json:"color"`

	// Mesh primitives: "grid", "plane", "cube".
	Primitive    string     `json:"primitive"`
	Size         [2]float64 `json:"size"`
	Subdivisions [2]int     `json:"subdivisions"`

	Verts         []vec3                    `json:"verts"`
	Faces         [][]int                   `json:"faces"`
	VertexGroups  map[string][]float64      `json:"vertex_groups"`
	ColorAttrs    map[string][][4]float64   `json:"color_attrs"`
	UVMaps        map[string][][][2]float64 `json:"uv_maps"`
	MaterialIndex []int                     `json:"material_index"`
	Materials     []string                  `json:"materials"`
	FaceSets      map[string][]bool         `json:"face_sets"`
	IntAttrs      map[string][]int          `json:"int_attrs"`

	Splines []splineFile `json:"splines"`

	Keyframes []struct {
		Frame    int  `json:"frame"`
		Location vec3 `json:"location"`
	} `json:"keyframes"`
}

type splineFile struct {
	Cyclic bool `json:"cyclic"`
	Points []struct {
		Co     vec3     `json:"co"`
		Left   *vec3    `json:"left"`
		Right  *vec3    `json:"right"`
		Radius *float64 `json:"radius"`
	} `json:"points"`
}

type imageFile struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Wrap string `json:"wrap"`
}

type cameraFile struct {
	Location  vec3    `json:"location"`
	Target    vec3    `json:"target"`
	FOVDeg    float64 `json:"fov_deg"`
	Aspect    float64 `json:"aspect"`
	ClipStart float64 `json:"clip_start"`
	ClipEnd   float64 `json:"clip_end"`
}

type manualPointFile struct {
	Location vec3  `json:"location"`
	Normal   *vec3 `json:"normal"`
	Scale    *vec3 `json:"scale"`
	Rotation vec3  `json:"rotation"`
	Index    int   `json:"index"`
}

// LoadScene reads a scene snapshot from a JSON file. Image paths are
// resolved relative to the scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	return ParseScene(data, filepath.Dir(path))
}

// ParseScene decodes a scene snapshot. baseDir resolves relative image paths.
func ParseScene(data []byte, baseDir string) (*Scene, error) {
	var sf sceneFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing scene: %w", err)
	}
	s := NewScene()
	if sf.Frame != 0 {
		s.Frame = sf.Frame
	}
	if sf.FPS != 0 {
		s.FPS = sf.FPS
	}
	if sf.FrameStart != 0 {
		s.FrameStart = sf.FrameStart
	}
	if sf.FrameEnd != 0 {
		s.FrameEnd = sf.FrameEnd
	}

	for _, of := range sf.Objects {
		if of.Name == "" {
			return nil, fmt.Errorf("parsing scene: object without name")
		}
		if _, dup := s.Objects[of.Name]; dup {
			return nil, fmt.Errorf("parsing scene: duplicate object %q", of.Name)
		}
		o, err := s.addObject(of)
		if err != nil {
			return nil, err
		}
		if of.Color != nil {
			o.Color = *of.Color
		}
		for _, k := range of.Keyframes {
			o.Keys = append(o.Keys, Keyframe{Frame: k.Frame, Loc: k.Location.vec()})
		}
	}

	for name, members := range sf.Collection {
		s.Collections[name] = append([]string(nil), members...)
	}

	for _, imf := range sf.Images {
		p := imf.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		wrap := WrapMode(imf.Wrap)
		if wrap == "" {
			wrap = WrapRepeat
		}
		im, err := LoadImage(imf.Name, p, wrap)
		if err != nil {
			return nil, err
		}
		s.Images[imf.Name] = im
	}

	if c := sf.Camera; c != nil {
		fov := c.FOVDeg
		if fov == 0 {
			fov = 50
		}
		aspect := c.Aspect
		if aspect == 0 {
			aspect = 16.0 / 9
		}
		cam := camera.New(c.Location.vec(), c.Target.vec(), fov*math.Pi/180, aspect)
		if c.ClipStart > 0 {
			cam.ClipStart = c.ClipStart
		}
		if c.ClipEnd > 0 {
			cam.ClipEnd = c.ClipEnd
		}
		s.Camera = cam
	}

	for sys, pts := range sf.Manual {
		for _, mp := range pts {
			p := ManualPoint{Pos: mp.Location.vec(), Normal: geom.AxisZ, Scale: geom.One, Rot: mp.Rotation.vec(), Index: mp.Index}
			if mp.Normal != nil {
				p.Normal = geom.Unit(mp.Normal.vec(), geom.AxisZ)
			}
			if mp.Scale != nil {
				p.Scale = mp.Scale.vec()
			}
			s.ManualPoints[sys] = append(s.ManualPoints[sys], p)
		}
	}
	return s, nil
}

func (of objectFile) transform() geom.Transform {
	t := geom.IdentityTransform()
	t.Loc = of.Location.vec()
	deg := math.Pi / 180
	t.Rot = geom.Euler(geom.V(of.Rotation[0]*deg, of.Rotation[1]*deg, of.Rotation[2]*deg))
	if of.Scale != nil {
		t.Scale = of.Scale.vec()
	}
	return t
}

func (s *Scene) addObject(of objectFile) (*Object, error) {
	switch of.Type {
	case "mesh", "":
		m, err := of.mesh()
		if err != nil {
			return nil, err
		}
		return s.AddMesh(m), nil
	case "curve":
		c := &Curve{Name: of.Name, Transform: of.transform()}
		for _, sp := range of.Splines {
			var spline Spline
			spline.Cyclic = sp.Cyclic
			for _, p := range sp.Points {
				bp := BezierPoint{Co: p.Co.vec(), HandleLeft: p.Co.vec(), HandleRight: p.Co.vec(), Radius: 1}
				if p.Left != nil {
					bp.HandleLeft = p.Left.vec()
				}
				if p.Right != nil {
					bp.HandleRight = p.Right.vec()
				}
				if p.Radius != nil {
					bp.Radius = *p.Radius
				}
				spline.Points = append(spline.Points, bp)
			}
			c.Splines = append(c.Splines, spline)
		}
		return s.AddCurve(c), nil
	case "empty":
		return s.AddEmpty(of.Name, of.transform()), nil
	}
	return nil, fmt.Errorf("parsing scene: object %q has unknown type %q", of.Name, of.Type)
}

func (of objectFile) mesh() (*Mesh, error) {
	var m *Mesh
	switch of.Primitive {
	case "":
		m = &Mesh{Name: of.Name}
		for _, v := range of.Verts {
			m.Verts = append(m.Verts, v.vec())
		}
		m.Faces = of.Faces
	case "grid":
		nx, ny := of.Subdivisions[0], of.Subdivisions[1]
		m = Grid(of.Name, orOne(of.Size[0]), orOne(of.Size[1]), nx, ny)
	case "plane":
		m = Plane(of.Name, orOne(of.Size[0]))
	case "cube":
		m = Cube(of.Name, orOne(of.Size[0]))
	default:
		return nil, fmt.Errorf("parsing scene: object %q has unknown primitive %q", of.Name, of.Primitive)
	}
	m.Transform = of.transform()
	for f, face := range m.Faces {
		for _, vi := range face {
			if vi < 0 || vi >= len(m.Verts) {
				return nil, fmt.Errorf("parsing scene: object %q face %d references vertex %d of %d", of.Name, f, vi, len(m.Verts))
			}
		}
	}
	if of.VertexGroups != nil {
		m.VertexGroups = of.VertexGroups
	}
	if of.ColorAttrs != nil {
		m.ColorAttrs = of.ColorAttrs
	}
	if of.UVMaps != nil {
		m.UVMaps = of.UVMaps
	}
	if of.MaterialIndex != nil {
		m.MaterialIndex = of.MaterialIndex
	}
	m.Materials = of.Materials
	m.FaceSets = of.FaceSets
	m.IntAttrs = of.IntAttrs
	return m, nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
