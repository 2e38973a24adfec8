package fields

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

// maxImprintFrames caps how many past frames a simulation imprint samples.
const maxImprintFrames = 64

func (b *builder) proximity(px *scatter.ProximityCategory) error {
	for i, slot := range px.Slots() {
		if !slot.Allow {
			continue
		}
		if err := b.repel(slot, fmt.Sprintf("s_proximity_repel%d", i+1)); err != nil {
			return err
		}
	}
	if px.Outskirt.Allow {
		b.outskirt(&px.Outskirt)
	}
	if px.BezBorder.Allow {
		b.bezBorder(&px.BezBorder)
	}
	return b.ctx.Err()
}

// repel fades points out near the objects of a collection.
func (b *builder) repel(slot *scatter.RepelSlot, feature string) error {
	objs, missing, ok := b.ev.Scene().Collection(slot.CollPtr)
	if !ok {
		b.report(scatter.KindInvalidReference, feature+"_coll_ptr", "collection %q not found", slot.CollPtr)
		return nil
	}
	if len(missing) > 0 {
		b.report(scatter.KindInvalidReference, feature+"_coll_ptr", "collection %q references missing objects %v", slot.CollPtr, missing)
	}
	if len(objs) == 0 {
		return nil
	}

	value := func(c contact, pos geom.Vec) (float64, geom.Vec) {
		d, at := c.distance(pos)
		if slot.VolumeAllow {
			in := c.inside(pos)
			if slot.VolumeSide == scatter.VolumeInside {
				in = !in
			}
			if in {
				d = 0
			}
		}
		return geom.Ramp(d, slot.Threshold, slot.Max), at
	}

	pr := gauge{feature: feature, falloff: &slot.Falloff, infl: &slot.Influence, rot: &slot.RotInfluence, mask: &slot.Mask}
	if !slot.SimulationAllow {
		c := objectContact(objs, slot.Type)
		pr.eval = func(p *scatter.Point) (float64, geom.Vec) {
			t, at := value(c, p.Pos)
			return t, away(p.Pos, at, p.Normal)
		}
		b.add(pr)
		return nil
	}

	// The imprint remembers where the objects went since the first frame.
	// Each object keeps its own contact, queried at the point shifted by
	// the object's motion between that frame and now.
	sc := b.ev.Scene()
	per := make([]contact, len(objs))
	for i, o := range objs {
		per[i] = objectContact([]*surface.Object{o}, slot.Type)
		if err := b.ctx.Err(); err != nil {
			return err
		}
	}
	frames := imprintFrames(float64(sc.FrameStart), sc.Frame)
	type shift struct {
		delta  []geom.Vec
		weight float64
	}
	shifts := make([]shift, 0, len(frames))
	for _, f := range frames {
		age := sc.Frame - f
		if slot.FadeMethod == scatter.FadePerSecond && sc.FPS > 0 {
			age /= sc.FPS
		}
		w := 1.0
		if slot.FadeAllow && age > 0 {
			if slot.FadeValue <= 0 {
				continue
			}
			w = geom.Clamp01(1 - age/slot.FadeValue)
		}
		if w == 0 {
			continue
		}
		s := shift{delta: make([]geom.Vec, len(objs)), weight: w}
		for i, o := range objs {
			s.delta[i] = r3.Sub(o.LocationAt(f), o.LocationAt(sc.Frame))
		}
		shifts = append(shifts, s)
	}
	pr.eval = func(p *scatter.Point) (float64, geom.Vec) {
		best, dir := 1.0, p.Normal
		for _, s := range shifts {
			for i, c := range per {
				q := r3.Sub(p.Pos, s.delta[i])
				t, at := value(c, q)
				if v := 1 - s.weight*(1-t); v < best {
					best, dir = v, away(q, at, p.Normal)
				}
			}
		}
		return best, dir
	}
	b.add(pr)
	return nil
}

// imprintFrames returns up to maxImprintFrames frames from start to now,
// always ending at now.
func imprintFrames(start, now float64) []float64 {
	if now <= start {
		return []float64{now}
	}
	step := math.Max(1, math.Ceil((now-start)/maxImprintFrames))
	var out []float64
	for f := start; f < now; f += step {
		out = append(out, f)
	}
	return append(out, now)
}

// outskirt fades the sparse edges of the system's own distribution.
func (b *builder) outskirt(o *scatter.ProxOutskirt) {
	pts := b.in.Points
	if len(pts) == 0 || o.Detection <= 0 {
		return
	}
	grid := geom.NewSpatialGrid(o.Detection)
	for _, p := range pts {
		grid.Insert(p.Pos)
	}
	type edge struct {
		count float64
		out   geom.Vec
	}
	stats := make(map[uint64]edge, len(pts))
	var nb []geom.Neighbor
	total := 0.0
	for i, p := range pts {
		nb = grid.QueryRadiusInto(nb[:0], p.Pos, o.Detection, i)
		var centroid geom.Vec
		for _, n := range nb {
			centroid = r3.Add(centroid, grid.Position(n.ID))
		}
		dir := p.Normal
		if len(nb) > 0 {
			centroid = r3.Scale(1/float64(len(nb)), centroid)
			dir = geom.Unit(r3.Sub(p.Pos, centroid), p.Normal)
		}
		stats[p.ID] = edge{count: float64(len(nb)), out: dir}
		total += float64(len(nb))
	}
	mean := total / float64(len(pts))
	precision := o.Precision
	if precision <= 0 {
		precision = 1
	}
	b.add(gauge{
		feature: "s_proximity_outskirt", falloff: &o.Falloff, infl: &o.Influence, rot: &o.RotInfluence,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			s, ok := stats[p.ID]
			if !ok || mean == 0 {
				return 1, p.Normal
			}
			ratio := geom.Clamp01(s.count / (mean * precision))
			return geom.Ramp(ratio, o.Threshold, o.Max-o.Threshold), s.out
		},
	})
}

// bezBorder fades points near the border of the projected bezier area the
// system was sampled from.
func (b *builder) bezBorder(bb *scatter.ProxBezBorder) {
	d := &b.sys.Distribution
	if d.Method != scatter.GenProjBezArea {
		b.report(scatter.KindInvalidConfig, "s_proximity_projbezarea_border", "only applies to the projbezarea distribution")
		return
	}
	cv, ok := b.ev.Scene().Curve(d.ProjBezArea.CurvePtr)
	if !ok {
		return
	}
	// Border segments in the curve's local plane.
	var segs [][2]geom.Vec
	for s, sp := range cv.Splines {
		if !sp.Cyclic {
			continue
		}
		pl := cv.Polyline(s, 12)
		for i := 1; i < len(pl); i++ {
			a := flat(cv.Transform.InversePoint(pl[i-1].Pos))
			c := flat(cv.Transform.InversePoint(pl[i].Pos))
			segs = append(segs, [2]geom.Vec{a, c})
		}
	}
	if len(segs) == 0 {
		return
	}
	b.add(gauge{
		feature: "s_proximity_projbezarea_border", falloff: &bb.Falloff, infl: &bb.Influence,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			q := flat(cv.Transform.InversePoint(p.Pos))
			best := math.Inf(1)
			for _, s := range segs {
				dist, _ := geom.SegmentDistance(q, s[0], s[1])
				best = math.Min(best, dist)
			}
			return geom.Ramp(best, bb.Threshold, bb.Max), geom.Zero
		},
	})
}

func flat(v geom.Vec) geom.Vec { return geom.V(v.X, v.Y, 0) }
