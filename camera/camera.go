// Package camera provides the scene camera used for frustum, distance and
// occlusion culling, and a 2D viewport for top-down previews.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
)

// Camera is a pinhole camera looking down its local -Z axis with +Y up.
type Camera struct {
	Loc geom.Vec
	Rot geom.Quat

	// FOV is the horizontal field of view in radians.
	FOV float64
	// Aspect is width / height.
	Aspect float64

	ClipStart float64
	ClipEnd   float64

	// Lens shift in fractions of the sensor width.
	ShiftX, ShiftY float64
}

// New creates a camera at loc looking at target.
func New(loc, target geom.Vec, fov, aspect float64) *Camera {
	fwd := geom.Unit(r3.Sub(target, loc), geom.V(0, 1, 0))
	// Local -Z maps to fwd; local +Y stays as close to world +Z as possible.
	up := geom.AxisZ
	if math.Abs(r3.Dot(fwd, up)) > 0.999 {
		up = geom.AxisY
	}
	z := r3.Scale(-1, fwd)
	x := geom.Unit(r3.Cross(up, z), geom.AxisX)
	y := r3.Cross(z, x)
	return &Camera{
		Loc:       loc,
		Rot:       geom.FromBasis(x, y, z),
		FOV:       fov,
		Aspect:    aspect,
		ClipStart: 0.1,
		ClipEnd:   1000,
	}
}

// Forward returns the world-space view direction.
func (c *Camera) Forward() geom.Vec {
	return geom.Rotate(c.Rot, geom.V(0, 0, -1))
}

// ToLocal maps a world point into camera space.
func (c *Camera) ToLocal(p geom.Vec) geom.Vec {
	conj := geom.Quat{Real: c.Rot.Real, Imag: -c.Rot.Imag, Jmag: -c.Rot.Jmag, Kmag: -c.Rot.Kmag}
	return geom.Rotate(conj, r3.Sub(p, c.Loc))
}

// Distance returns the distance from the camera to p.
func (c *Camera) Distance(p geom.Vec) float64 { return geom.Dist(c.Loc, p) }

// Frustum returns the culling frustum with the field of view widened by
// boost (1 = unchanged).
func (c *Camera) Frustum(boost float64) Frustum {
	if boost <= 0 {
		boost = 1
	}
	aspect := c.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	tanH := math.Tan(c.FOV/2) * boost
	tanV := tanH / aspect
	if aspect < 1 {
		// Portrait sensors fit the field of view vertically.
		tanV = math.Tan(c.FOV/2) * boost
		tanH = tanV * aspect
	}
	return Frustum{cam: c, tanH: tanH, tanV: tanV}
}

// Frustum is a view volume test.
type Frustum struct {
	cam        *Camera
	tanH, tanV float64
}

// Contains reports whether a sphere of radius r at p intersects the view
// volume between the clip planes.
func (f Frustum) Contains(p geom.Vec, r float64) bool {
	l := f.cam.ToLocal(p)
	depth := -l.Z
	if depth+r < f.cam.ClipStart || (f.cam.ClipEnd > 0 && depth-r > f.cam.ClipEnd) {
		return false
	}
	sx := f.cam.ShiftX * 2 * f.tanH * depth
	sy := f.cam.ShiftY * 2 * f.tanH * depth
	// Lateral slack for the sphere radius, measured perpendicular to the planes.
	slackH := r * math.Sqrt(1+f.tanH*f.tanH)
	slackV := r * math.Sqrt(1+f.tanV*f.tanV)
	return math.Abs(l.X-sx) <= depth*f.tanH+slackH && math.Abs(l.Y-sy) <= depth*f.tanV+slackV
}
