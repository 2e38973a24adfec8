// Package transform computes the final scale, rotation and offset of each
// point. Stages run in a fixed order: scale, rotation, push, wind.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// Stage is the prepared transform of one system. Apply is safe for
// concurrent use once New returns.
type Stage struct {
	ev    *mask.Evaluator
	sys   *scatter.System
	group *scatter.Group
	sc    *surface.Scene

	// clumps holds per-clump centres and extents for clump scaling and
	// clump-aware alignment.
	clumps map[int64]clump

	alignZObj, alignYObj *surface.Object
	tiltImage, flowImage *surface.Image
	windFlow             bool
	boundary             *boundaryIndex
}

type clump struct {
	centre  geom.Vec
	maxDist float64
}

// New prepares the transform for pts, the system's points after density
// resolution. References that cannot be resolved are reported through the
// evaluator and the features using them become identity.
func New(ev *mask.Evaluator, group *scatter.Group, pts []scatter.Point) *Stage {
	s := &Stage{ev: ev, sys: ev.System, group: group, sc: ev.Scene()}
	s.prepareClumps(pts)
	s.prepareRotation()
	s.prepareWind()
	return s
}

func (s *Stage) prepareClumps(pts []scatter.Point) {
	type acc struct {
		sum geom.Vec
		n   int
		max float64
	}
	byID := map[int64]*acc{}
	for i := range pts {
		p := &pts[i]
		if p.ClumpID == scatter.NoClump {
			continue
		}
		a := byID[p.ClumpID]
		if a == nil {
			a = &acc{}
			byID[p.ClumpID] = a
		}
		a.sum = r3.Add(a.sum, p.Pos)
		a.n++
		a.max = math.Max(a.max, p.ClumpDist)
	}
	if len(byID) == 0 {
		return
	}
	s.clumps = make(map[int64]clump, len(byID))
	for id, a := range byID {
		s.clumps[id] = clump{centre: r3.Scale(1/float64(a.n), a.sum), maxDist: a.max}
	}
}

// Apply runs every enabled stage on p. Points removed by the minimum
// scale policy get a zero Keep.
func (s *Stage) Apply(p *scatter.Point) {
	if s.sys.Scale.Master || s.group.ScaleFactor() != geom.One {
		s.scale(p)
	}
	if p.Keep == 0 {
		return
	}
	if s.sys.Rotation.Master {
		s.rotate(p)
	} else {
		p.Tangent = geom.Orthonormalize(p.Normal, p.Tangent)
	}
	if s.sys.Push.Master {
		s.push(p)
	}
	if s.sys.Wind.Master {
		s.wind(p)
	}
}

// syncAxes derives Normal and Tangent from Rot.
func syncAxes(p *scatter.Point) {
	p.Normal = geom.Rotate(p.Rot, geom.AxisZ)
	p.Tangent = geom.Orthonormalize(p.Normal, geom.Rotate(p.Rot, geom.AxisY))
}

// rand returns the k-th deterministic draw in [0, 1) of a feature for p.
func (s *Stage) rand(feature string, seed int, k uint64, p *scatter.Point) float64 {
	return geom.Hash01(geom.MixSeed(s.sys.Seed(feature, seed), k), p.ID)
}

// signed returns a draw in [-1, 1).
func (s *Stage) signed(feature string, seed int, k uint64, p *scatter.Point) float64 {
	return 2*s.rand(feature, seed, k, p) - 1
}

func (s *Stage) strength(m *scatter.UniversalMask, feature string, p *scatter.Point) float64 {
	return s.ev.Universal(m, feature, p)
}

// object returns the surface object p was emitted from.
func (s *Stage) object(p *scatter.Point) (*surface.Object, bool) {
	return s.ev.Attrs.Object(p)
}

// surfaceTransform is the placement of p's surface, or identity.
func (s *Stage) surfaceTransform(p *scatter.Point) geom.Transform {
	if o, ok := s.object(p); ok {
		return o.World()
	}
	return geom.IdentityTransform()
}

// toWorld maps a local-space vector of p's surface into world space.
func (s *Stage) toWorld(p *scatter.Point, v geom.Vec, space scatter.Space) geom.Vec {
	if space != scatter.SpaceLocal {
		return v
	}
	return s.surfaceTransform(p).Vector(v)
}
