package fields

import (
	"math"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

// ecoSlot is a prepared affinity or repulsion reference.
type ecoSlot struct {
	slot *scatter.EcoSlot
	c    contact
}

func (b *builder) ecosystem(eco *scatter.EcosystemCategory) error {
	if eco.Affinity.Allow {
		a := &eco.Affinity
		if slots := b.ecoSlots(a.Slots[:]); len(slots) > 0 {
			b.add(gauge{
				feature: "s_ecosystem_affinity", falloff: &a.Falloff, infl: &a.Influence, mask: &a.Mask,
				eval: func(p *scatter.Point) (float64, geom.Vec) {
					best, dir := 0.0, p.Normal
					for _, s := range slots {
						d, at := s.c.distance(p.Pos)
						d *= b.spaceScale(p, a.Space)
						v := 1 - geom.Ramp(d, s.slot.MaxValue, s.slot.MaxFalloff)
						if s.slot.LimitDistance > 0 && d < s.slot.LimitDistance {
							v = 0
						}
						if v > best {
							best, dir = v, away(p.Pos, at, p.Normal)
						}
					}
					return best, dir
				},
			})
		}
	}
	if eco.Repulsion.Allow {
		r := &eco.Repulsion
		if slots := b.ecoSlots(r.Slots[:]); len(slots) > 0 {
			b.add(gauge{
				feature: "s_ecosystem_repulsion", falloff: &r.Falloff, infl: &r.Influence, mask: &r.Mask,
				eval: func(p *scatter.Point) (float64, geom.Vec) {
					worst, dir := 1.0, p.Normal
					for _, s := range slots {
						d, at := s.c.distance(p.Pos)
						d *= b.spaceScale(p, r.Space)
						if v := geom.Ramp(d, s.slot.MaxValue, s.slot.MaxFalloff); v < worst {
							worst, dir = v, away(p.Pos, at, p.Normal)
						}
					}
					return worst, dir
				},
			})
		}
	}
	if eco.Density.Allow {
		b.ecoDensity(&eco.Density)
	}
	return b.ctx.Err()
}

// ecoSlots prepares the slots that reference a non-empty upstream stream.
// Slots without points contribute nothing.
func (b *builder) ecoSlots(slots []scatter.EcoSlot) []ecoSlot {
	var out []ecoSlot
	for i := range slots {
		s := &slots[i]
		pts := b.upstream(s.Ptr)
		if len(pts) == 0 {
			continue
		}
		out = append(out, ecoSlot{slot: s, c: pointSetContact(pts, s.Type)})
	}
	return out
}

func (b *builder) upstream(ptr string) []geom.Vec {
	if ptr == "" {
		return nil
	}
	return b.in.Upstream[ptr].Positions()
}

// spaceScale converts world distances to the point's surface units in
// local space.
func (b *builder) spaceScale(p *scatter.Point, space scatter.Space) float64 {
	if space != scatter.SpaceLocal {
		return 1
	}
	o, ok := b.ev.Attrs.Object(p)
	if !ok {
		return 1
	}
	s := o.World().Scale
	mean := (math.Abs(s.X) + math.Abs(s.Y) + math.Abs(s.Z)) / 3
	if mean == 0 {
		return 1
	}
	return 1 / mean
}

// ecoDensity modulates by how many upstream points share the point's voxel.
func (b *builder) ecoDensity(ed *scatter.EcoDensity) {
	size := ed.VoxelSize
	if size <= 0 {
		b.report(scatter.KindInvalidConfig, "s_ecosystem_density_voxelsize", "voxel size must be positive")
		return
	}
	grid := geom.NewSpatialGrid(size)
	for _, s := range ed.Slots {
		for _, p := range b.upstream(s.Ptr) {
			grid.Insert(p)
		}
	}
	if grid.Len() == 0 {
		return
	}
	peak := float64(grid.MaxCellCount())
	b.add(gauge{
		feature: "s_ecosystem_density", falloff: &ed.Falloff, infl: &ed.Influence, mask: &ed.Mask,
		eval: func(p *scatter.Point) (float64, geom.Vec) {
			c := float64(grid.CellCount(p.Pos))
			switch ed.Method {
			case scatter.DensityScarce:
				return 1 - geom.Ramp(c, ed.Min, ed.Transition), geom.Zero
			case scatter.DensityNormalized:
				return c / peak, geom.Zero
			}
			return geom.Ramp(c, ed.Min, ed.Transition), geom.Zero
		},
	})
}
