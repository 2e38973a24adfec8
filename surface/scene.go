package surface

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/camera"
	"github.com/pthm-cable/scatter/geom"
)

// ObjectKind tells which geometry an Object carries.
type ObjectKind string

const (
	KindMesh  ObjectKind = "mesh"
	KindCurve ObjectKind = "curve"
	KindEmpty ObjectKind = "empty"
)

// Keyframe is an animated object location.
type Keyframe struct {
	Frame int
	Loc   geom.Vec
}

// Object is a named scene object.
type Object struct {
	ID    uint32
	Name  string
	Kind  ObjectKind
	Mesh  *Mesh
	Curve *Curve
	// Placement for empties. Meshes and curves carry their own.
	Transform geom.Transform
	Color     [4]float64
	Keys      []Keyframe
}

// World returns the object's placement.
func (o *Object) World() geom.Transform {
	switch o.Kind {
	case KindMesh:
		return o.Mesh.Transform
	case KindCurve:
		return o.Curve.Transform
	}
	return o.Transform
}

// Location returns the object origin in world space.
func (o *Object) Location() geom.Vec { return o.World().Loc }

// Bounds returns the world bounding box. Empties are a single point.
func (o *Object) Bounds() geom.Box {
	switch o.Kind {
	case KindMesh:
		return o.Mesh.Topo().Bounds
	case KindCurve:
		b := geom.EmptyBox()
		for s := range o.Curve.Splines {
			for _, smp := range o.Curve.Polyline(s, 4) {
				b = b.Extend(smp.Pos)
			}
		}
		return b
	}
	return geom.EmptyBox().Extend(o.Transform.Loc)
}

// Radius returns the bounding radius of the object around its origin, in
// local units (scaled by the point's instance scale at use sites).
func (o *Object) Radius() float64 {
	if o.Kind != KindMesh {
		return 0
	}
	r := 0.0
	for _, v := range o.Mesh.Verts {
		r = math.Max(r, r3.Norm(v))
	}
	return r
}

// LocationAt returns the object origin at frame, interpolating keyframes.
func (o *Object) LocationAt(frame float64) geom.Vec {
	if len(o.Keys) == 0 {
		return o.Location()
	}
	if frame <= float64(o.Keys[0].Frame) {
		return o.Keys[0].Loc
	}
	for i := 1; i < len(o.Keys); i++ {
		k0, k1 := o.Keys[i-1], o.Keys[i]
		if frame <= float64(k1.Frame) {
			t := (frame - float64(k0.Frame)) / float64(k1.Frame-k0.Frame)
			return geom.LerpVec(k0.Loc, k1.Loc, t)
		}
	}
	return o.Keys[len(o.Keys)-1].Loc
}

// ManualPoint is a host-painted point fed to the manual distribution.
type ManualPoint struct {
	Pos    geom.Vec
	Normal geom.Vec
	Scale  geom.Vec
	Rot    geom.Vec // euler
	Index  int
}

// Scene is the read-only snapshot a compute works on.
type Scene struct {
	Objects     map[string]*Object
	Collections map[string][]string
	Images      map[string]*Image
	Camera      *camera.Camera

	Frame      float64
	FPS        float64
	FrameStart int
	FrameEnd   int

	// ManualPoints holds externally painted points keyed by system id.
	ManualPoints map[string][]ManualPoint

	nextID uint32
}

// NewScene returns an empty scene at frame 1.
func NewScene() *Scene {
	return &Scene{
		Objects:      map[string]*Object{},
		Collections:  map[string][]string{},
		Images:       map[string]*Image{},
		ManualPoints: map[string][]ManualPoint{},
		Frame:        1,
		FPS:          24,
		FrameStart:   1,
		FrameEnd:     250,
	}
}

// AddMesh registers a mesh object and assigns its id.
func (s *Scene) AddMesh(m *Mesh) *Object {
	s.nextID++
	m.ID = s.nextID
	if m.Transform.Rot == (geom.Quat{}) {
		m.Transform = geom.IdentityTransform()
	}
	o := &Object{ID: m.ID, Name: m.Name, Kind: KindMesh, Mesh: m, Color: [4]float64{1, 1, 1, 1}}
	s.Objects[m.Name] = o
	return o
}

// AddCurve registers a curve object.
func (s *Scene) AddCurve(c *Curve) *Object {
	s.nextID++
	c.ID = s.nextID
	if c.Transform.Rot == (geom.Quat{}) {
		c.Transform = geom.IdentityTransform()
	}
	o := &Object{ID: c.ID, Name: c.Name, Kind: KindCurve, Curve: c, Color: [4]float64{1, 1, 1, 1}}
	s.Objects[c.Name] = o
	return o
}

// AddEmpty registers an empty object.
func (s *Scene) AddEmpty(name string, t geom.Transform) *Object {
	s.nextID++
	o := &Object{ID: s.nextID, Name: name, Kind: KindEmpty, Transform: t, Color: [4]float64{1, 1, 1, 1}}
	s.Objects[name] = o
	return o
}

// Object looks up an object by name.
func (s *Scene) Object(name string) (*Object, bool) {
	o, ok := s.Objects[name]
	return o, ok
}

// Mesh looks up a mesh object by name.
func (s *Scene) Mesh(name string) (*Mesh, bool) {
	o, ok := s.Objects[name]
	if !ok || o.Kind != KindMesh {
		return nil, false
	}
	return o.Mesh, true
}

// Curve looks up a curve object by name.
func (s *Scene) Curve(name string) (*Curve, bool) {
	o, ok := s.Objects[name]
	if !ok || o.Kind != KindCurve {
		return nil, false
	}
	return o.Curve, true
}

// Image looks up an image by name.
func (s *Scene) Image(name string) (*Image, bool) {
	im, ok := s.Images[name]
	return im, ok
}

// Collection resolves a collection's objects in declaration order. Names
// that do not resolve are reported in missing.
func (s *Scene) Collection(name string) (objs []*Object, missing []string, ok bool) {
	names, ok := s.Collections[name]
	if !ok {
		return nil, nil, false
	}
	for _, n := range names {
		if o, found := s.Objects[n]; found {
			objs = append(objs, o)
		} else {
			missing = append(missing, n)
		}
	}
	return objs, missing, true
}

// ObjectNames returns all object names sorted.
func (s *Scene) ObjectNames() []string {
	names := make([]string, 0, len(s.Objects))
	for n := range s.Objects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Time returns the scene time in seconds at the current frame.
func (s *Scene) Time() float64 {
	if s.FPS <= 0 {
		return s.Frame
	}
	return s.Frame / s.FPS
}
