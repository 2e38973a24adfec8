// Package visibility culls points for display: face preview, percentage
// reduction, camera frustum, distance and occlusion tests, and the max load
// gate. Each feature only runs in the evaluation states its viewport method
// selects.
package visibility

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/camera"
	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// Budget caps the work one compute may spend on visibility.
type Budget struct {
	// MaxOcclusionRays is the ray limit of the occlusion test. Zero means
	// unlimited.
	MaxOcclusionRays int
}

// Culler holds the prepared visibility state of one system. Visible is safe
// for concurrent use.
type Culler struct {
	ev    *mask.Evaluator
	sys   *scatter.System
	vis   *scatter.VisibilityCategory
	state scatter.EvalState

	face    bool
	noFaces map[uint32]bool

	cam     *camera.Camera
	frustum camera.Frustum
	clip    bool
	dist    bool

	occluders []*surface.BVH
	maxRays   int64
	rays      atomic.Int64
	overrun   sync.Once
}

// New prepares the culler for state. Unresolved references are reported and
// the features using them are skipped.
func New(ev *mask.Evaluator, state scatter.EvalState, budget Budget) *Culler {
	sys := ev.System
	c := &Culler{ev: ev, sys: sys, vis: &sys.Visibility, state: state, maxRays: int64(budget.MaxOcclusionRays)}
	if !c.vis.Master {
		return c
	}
	if f := &c.vis.FacePreview; f.ActiveIn(state) {
		c.prepareFaces(f)
	}
	if c.vis.Cam.ActiveIn(state) {
		c.prepareCamera()
	}
	return c
}

func (c *Culler) report(kind scatter.Kind, feature, format string, args ...any) {
	c.ev.Report.Add(scatter.Errorf(kind, c.sys.ID, feature, format, args...))
}

// prepareFaces resolves the preview face set. Surfaces without it keep all
// their points.
func (c *Culler) prepareFaces(f *scatter.VisFace) {
	cov, err := transfer.Shared(c.ev.Surfaces, transfer.AttrFaceSet, f.FaceSet, c.sys.ID, "s_visibility_facepreview_ptr")
	c.ev.Report.Add(err)
	if cov == transfer.CoverNone {
		return
	}
	c.face = true
	for _, o := range c.ev.Surfaces {
		if !transfer.Has(o, transfer.AttrFaceSet, f.FaceSet) {
			if c.noFaces == nil {
				c.noFaces = map[uint32]bool{}
			}
			c.noFaces[o.ID] = true
		}
	}
}

func (c *Culler) prepareCamera() {
	v := c.vis
	if !v.CamClip.Allow && !v.CamDist.Allow && !v.CamOccl.Allow {
		return
	}
	cam, ok := resolveCamera(c.ev.Scene(), &v.CamClip)
	if !ok {
		c.report(scatter.KindInvalidReference, "s_visibility_cam", "scene has no active camera")
		return
	}
	c.cam = cam
	if v.CamClip.Allow {
		c.clip = true
		c.frustum = cam.Frustum(1 + max(v.CamClip.BoostXY[0], v.CamClip.BoostXY[1]))
	}
	c.dist = v.CamDist.Allow
	if o := &v.CamOccl; o.Allow {
		if o.Method == scatter.OcclSurface || o.Method == scatter.OcclBoth {
			var meshes []*surface.Mesh
			for _, s := range c.ev.Surfaces {
				if s.Kind == surface.KindMesh {
					meshes = append(meshes, s.Mesh)
				}
			}
			c.occluders = append(c.occluders, surface.NewBVH(meshes...))
		}
		if o.Method == scatter.OcclColliders || o.Method == scatter.OcclBoth {
			if b := c.ev.CollectionBVH(o.CollPtr, "s_visibility_camoccl_coll_ptr"); b != nil {
				c.occluders = append(c.occluders, b)
			}
		}
	}
}

// resolveCamera returns the camera the clip test uses: the scene camera
// itself when autofilled, otherwise the scene camera's placement with the
// lens, sensor, resolution and shift of the feature.
func resolveCamera(sc *surface.Scene, clip *scatter.VisCamClip) (*camera.Camera, bool) {
	if sc == nil || sc.Camera == nil {
		return nil, false
	}
	if clip.Autofill {
		return sc.Camera, true
	}
	cam := *sc.Camera
	if clip.Lens > 0 && clip.SensorWidth > 0 {
		cam.FOV = 2 * math.Atan(clip.SensorWidth/2/clip.Lens)
	}
	if clip.ResXY[1] > 0 {
		cam.Aspect = clip.ResXY[0] / clip.ResXY[1]
	}
	cam.ShiftX, cam.ShiftY = clip.ShiftXY[0], clip.ShiftXY[1]
	return &cam, true
}

// Visible runs both per-point phases on p: face preview and the camera
// tests. The percentage sits between them, see Cull.
func (c *Culler) Visible(p *scatter.Point) bool {
	return c.OnFace(p) && c.InView(p)
}

// OnFace is the face preview phase.
func (c *Culler) OnFace(p *scatter.Point) bool {
	if !c.vis.Master || !c.face || c.noFaces[p.Surface] {
		return true
	}
	return c.ev.Attrs.InFaceSet(p, c.vis.FacePreview.FaceSet)
}

// InView is the camera phase: frustum, distance and occlusion.
func (c *Culler) InView(p *scatter.Point) bool {
	if !c.vis.Master || c.cam == nil {
		return true
	}
	d := c.cam.Distance(p.Pos)
	if c.clip && !c.frustum.Contains(p.Pos, 0) {
		clip := &c.vis.CamClip
		if !clip.ProximityAllow || d > clip.ProximityDistance {
			return false
		}
	}
	if c.dist && !c.keepDistance(p, d) {
		return false
	}
	if len(c.occluders) > 0 && c.occluded(p) {
		return false
	}
	return true
}

// keepDistance removes points beyond Max and thins points between Min and
// Max by the falloff.
func (c *Culler) keepDistance(p *scatter.Point, d float64) bool {
	f := &c.vis.CamDist
	if d <= f.Min {
		return true
	}
	if d >= f.Max {
		return false
	}
	t := c.ev.Falloff(&f.Falloff, "s_visibility_camdist", (d-f.Min)/(f.Max-f.Min), p)
	return geom.Hash01(c.sys.Seed("s_visibility_camdist", 0), p.ID) >= t
}

// occluded casts a ray from p toward the camera. Past the ray budget the
// test is skipped and points stay visible.
func (c *Culler) occluded(p *scatter.Point) bool {
	if c.maxRays > 0 && c.rays.Add(1) > c.maxRays {
		c.overrun.Do(func() {
			c.report(scatter.KindResourceBudget, "s_visibility_camoccl", "occlusion exceeds the budget of %d rays", c.maxRays)
		})
		return false
	}
	off := math.Max(c.vis.CamOccl.Threshold, 1e-6)
	to := r3.Sub(c.cam.Loc, p.Pos)
	d := r3.Norm(to)
	if d <= 2*off {
		return false
	}
	dir := r3.Scale(1/d, to)
	o := r3.Add(p.Pos, r3.Scale(off, dir))
	for _, b := range c.occluders {
		if b.Occluded(o, dir, d-2*off) {
			return true
		}
	}
	return false
}

// Filter keeps the points of pts for which keep returns true, in order.
// keep may run concurrently.
type Filter func(ctx context.Context, pts []scatter.Point, keep func(*scatter.Point) bool) ([]scatter.Point, error)

// Sequential is a Filter running keep on one goroutine.
func Sequential(ctx context.Context, pts []scatter.Point, keep func(*scatter.Point) bool) ([]scatter.Point, error) {
	out := pts[:0]
	for i := range pts {
		if i&4095 == 4095 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if keep(&pts[i]) {
			out = append(out, pts[i])
		}
	}
	return out, nil
}

// Cull runs the phases in order: face preview, percentage, camera, max
// load. The percentage ranks the points on the preview faces, so the
// camera framing never changes which of them it removes. pts is filtered
// in place; a nil filter means Sequential.
func (c *Culler) Cull(ctx context.Context, pts []scatter.Point, filter Filter) ([]scatter.Point, error) {
	if !c.vis.Master {
		return pts, nil
	}
	if filter == nil {
		filter = Sequential
	}
	var err error
	if c.face {
		if pts, err = filter(ctx, pts, c.OnFace); err != nil {
			return nil, err
		}
	}
	pts = c.Percentage(pts)
	if c.cam != nil {
		if pts, err = filter(ctx, pts, c.InView); err != nil {
			return nil, err
		}
	}
	return c.MaxLoad(pts), nil
}

// Percentage removes the view percentage of pts, rounded to the nearest
// point, so the kept count is within one point of the exact share at any
// stream size. The removed points are those with the lowest id hash.
func (c *Culler) Percentage(pts []scatter.Point) []scatter.Point {
	v := &c.vis.View
	if !c.vis.Master || !v.ActiveIn(c.state) || v.Percentage <= 0 {
		return pts
	}
	drop := int(math.Round(float64(len(pts)) * math.Min(v.Percentage, 100) / 100))
	seed := c.sys.Seed("s_visibility_view", 0)
	return lowest(pts, len(pts)-drop, func(id uint64) uint64 { return ^geom.Hash64(seed, id) })
}

// MaxLoad caps pts at the threshold. The limit method keeps the points with
// the lowest id hash, in their original order; shutdown empties the stream.
func (c *Culler) MaxLoad(pts []scatter.Point) []scatter.Point {
	m := &c.vis.MaxLoad
	if !c.vis.Master || !m.ActiveIn(c.state) || len(pts) <= max(m.Threshold, 0) {
		return pts
	}
	if m.Method == scatter.MaxLoadShutdown {
		return pts[:0]
	}
	seed := c.sys.Seed("s_visibility_maxload", 0)
	return lowest(pts, m.Threshold, func(id uint64) uint64 { return geom.Hash64(seed, id) })
}

// lowest keeps the n points of pts with the lowest priority, in order. The
// slice is filtered in place.
func lowest(pts []scatter.Point, n int, prio func(id uint64) uint64) []scatter.Point {
	if n >= len(pts) {
		return pts
	}
	if n <= 0 {
		return pts[:0]
	}
	p := make([]uint64, len(pts))
	for i := range pts {
		p[i] = prio(pts[i].ID)
	}
	sorted := slices.Clone(p)
	slices.Sort(sorted)
	cut := sorted[n-1]
	out := pts[:0]
	for i := range pts {
		if p[i] <= cut && len(out) < n {
			out = append(out, pts[i])
		}
	}
	return out
}

// Prefilter returns a position test equivalent to the frustum phase, for use
// at the sampler. It is nil whenever a later stage looks at more than the
// point itself: moved positions (push), neighbour counts within the
// system's own points, clump centres and extents (clumping), and the
// percentage ranking, which runs before the frustum.
func (c *Culler) Prefilter() func(geom.Vec) bool {
	v := c.vis
	if !v.Master || !c.clip || !v.Cam.PreDistAllow || c.sys.Push.Master {
		return nil
	}
	if c.sys.Proximity.Master && c.sys.Proximity.Outskirt.Allow {
		return nil
	}
	if c.sys.Distribution.Method == scatter.GenClumping {
		return nil
	}
	if v.View.ActiveIn(c.state) && v.View.Percentage > 0 {
		return nil
	}
	clip := v.CamClip
	cam, frustum := c.cam, c.frustum
	return func(p geom.Vec) bool {
		if frustum.Contains(p, 0) {
			return true
		}
		return clip.ProximityAllow && cam.Distance(p) <= clip.ProximityDistance
	}
}
