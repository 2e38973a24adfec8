package mask

import (
	"math"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// CategoryMask is a prepared mask category. The system's s_mask and a
// group's s_gr_mask both evaluate through it.
type CategoryMask struct {
	ev     *Evaluator
	cat    *scatter.MaskCategory
	prefix string

	vg, vcol, bitmap, material bool
	image                      *surface.Image
	area                       *surface.Area
	boolvol                    *surface.BVH
	upward                     *surface.BVH
}

// Category prepares cat for evaluation. prefix names its features in
// reports ("s_mask" or "s_gr_mask"). Features whose references do not
// resolve are reported and left out.
func (e *Evaluator) Category(cat *scatter.MaskCategory, prefix string) *CategoryMask {
	c := &CategoryMask{ev: e, cat: cat, prefix: prefix}
	if cat == nil || !cat.Master {
		return c
	}
	if cat.VG.Allow {
		c.vg = e.attr(transfer.AttrVertexGroup, cat.VG.Ptr, prefix+"_vg_ptr")
	}
	if cat.VCol.Allow {
		c.vcol = e.attr(transfer.AttrColor, cat.VCol.Ptr, prefix+"_vcol_ptr")
	}
	if cat.Bitmap.Allow {
		if im, ok := e.Scene().Image(cat.Bitmap.Ptr); ok {
			c.image = im
			c.bitmap = e.attr(transfer.AttrUV, cat.Bitmap.UVPtr, prefix+"_bitmap_uv_ptr")
		} else {
			e.report(scatter.KindInvalidReference, prefix+"_bitmap_ptr", "image %q not found", cat.Bitmap.Ptr)
		}
	}
	if cat.Material.Allow {
		c.material = e.attr(transfer.AttrMaterial, cat.Material.Ptr, prefix+"_material_ptr")
	}
	if cat.Curve.Allow {
		if cv, ok := e.Scene().Curve(cat.Curve.Ptr); ok {
			if a := cv.ClosedArea(16); !a.Empty() {
				c.area = a
			} else {
				e.report(scatter.KindInvalidReference, prefix+"_curve_ptr", "curve %q has no closed spline", cat.Curve.Ptr)
			}
		} else {
			e.report(scatter.KindInvalidReference, prefix+"_curve_ptr", "curve %q not found", cat.Curve.Ptr)
		}
	}
	if cat.BoolVol.Allow {
		c.boolvol = e.CollectionBVH(cat.BoolVol.CollPtr, prefix+"_boolvol_coll_ptr")
	}
	if cat.Upward.Allow {
		c.upward = e.CollectionBVH(cat.Upward.CollPtr, prefix+"_upward_coll_ptr")
	}
	return c
}

// CollectionBVH builds a hierarchy over the meshes of a collection. A
// missing collection is reported and yields nil.
func (e *Evaluator) CollectionBVH(name, feature string) *surface.BVH {
	objs, missing, ok := e.Scene().Collection(name)
	if !ok {
		e.report(scatter.KindInvalidReference, feature, "collection %q not found", name)
		return nil
	}
	if len(missing) > 0 {
		e.report(scatter.KindInvalidReference, feature, "collection %q references missing objects %v", name, missing)
	}
	var meshes []*surface.Mesh
	for _, o := range objs {
		if o.Kind == surface.KindMesh {
			meshes = append(meshes, o.Mesh)
		}
	}
	return surface.NewBVH(meshes...)
}

// Active reports whether any feature of the category will run.
func (c *CategoryMask) Active() bool {
	return c.vg || c.vcol || c.bitmap || c.material || c.area != nil || c.boolvol != nil || c.upward != nil
}

// Keep returns the product of every enabled feature at p.
func (c *CategoryMask) Keep(p *scatter.Point) float64 {
	if !c.Active() {
		return 1
	}
	cat := c.cat
	keep := 1.0
	if c.vg {
		w, _ := c.ev.Attrs.VertexGroup(p, cat.VG.Ptr)
		keep *= flip(w, cat.VG.Revert)
	}
	if c.vcol {
		col, _ := c.ev.Attrs.Color(p, cat.VCol.Ptr)
		keep *= flip(SampleColor(col, cat.VCol.ColorSample, cat.VCol.IDColor, cat.VCol.IDTolerance), cat.VCol.Revert)
	}
	if c.bitmap {
		uv, _ := c.ev.Attrs.UV(p, cat.Bitmap.UVPtr)
		col := c.image.Sample(uv[0], uv[1])
		keep *= flip(SampleColor(col, cat.Bitmap.ColorSample, cat.Bitmap.IDColor, cat.Bitmap.IDTolerance), cat.Bitmap.Revert)
	}
	if c.material {
		_, name := c.ev.Attrs.Material(p)
		keep *= flip(bool01(name == cat.Material.Ptr), cat.Material.Revert)
	}
	if c.area != nil {
		keep *= flip(bool01(c.area.ContainsWorld(p.Pos)), cat.Curve.Revert)
	}
	if c.boolvol != nil {
		// Points inside the volumes are removed.
		keep *= flip(bool01(!c.boolvol.Inside(p.Pos)), cat.BoolVol.Revert)
	}
	if c.upward != nil {
		// Points with an obstruction above them are removed.
		o := r3Offset(p.Pos, 1e-4)
		keep *= flip(bool01(!c.upward.Occluded(o, geom.AxisZ, math.Inf(1))), cat.Upward.Revert)
	}
	return geom.Clamp01(keep)
}

func flip(v float64, revert bool) float64 {
	if revert {
		return 1 - v
	}
	return v
}

func bool01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func r3Offset(p geom.Vec, dz float64) geom.Vec {
	return geom.V(p.X, p.Y, p.Z+dz)
}
