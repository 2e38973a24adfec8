package sampler

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

func (r *run) curve(name, feature string) (*surface.Curve, error) {
	cv, ok := r.in.Scene.Curve(name)
	if !ok {
		return nil, r.errorf(scatter.KindInvalidReference, feature, "curve %q not found", name)
	}
	return cv, nil
}

// curveAxis projects along the curve's local Z.
func curveAxis(cv *surface.Curve) func(*scatter.Point) geom.Vec {
	up := cv.Transform.Normal(geom.AxisZ)
	return func(*scatter.Point) geom.Vec { return up }
}

// projBezArea samples the inside of the closed splines of a curve and
// optionally drops the points onto the surfaces.
func (r *run) projBezArea() ([]scatter.Point, error) {
	pb := &r.sys.Distribution.ProjBezArea
	cv, err := r.curve(pb.CurvePtr, "s_distribution_projbezarea_curve_ptr")
	if err != nil {
		return nil, err
	}
	area := cv.ClosedArea(r.in.CurveResolution)
	if area.Empty() {
		return nil, r.errorf(scatter.KindInvalidReference, "s_distribution_projbezarea_curve_ptr",
			"curve %q has no closed spline", pb.CurvePtr)
	}
	size := area.LocalArea()
	if pb.Space == scatter.SpaceGlobal {
		size = area.WorldArea()
	}
	n := densityCount(pb.Density*r.in.Group.DensityFactor(), size)
	if err := r.reserve(n); err != nil {
		return nil, err
	}
	minX, minY, maxX, maxY := area.Bounds()
	rng := geom.NewRand(r.seed("s_distribution_projbezarea", pb.Seed, cv.Name))
	normal := area.Normal()
	pts := make([]scatter.Point, 0, n)
	for tries := 0; len(pts) < n && tries < 32*n; tries++ {
		if err := r.tick(); err != nil {
			return nil, err
		}
		x, y := rng.Range(minX, maxX), rng.Range(minY, maxY)
		if !area.Contains(x, y) {
			continue
		}
		p := scatter.NewPoint(pointID(cv.ID, len(pts)), area.ToWorld(x, y), normal)
		p.Tangent = geom.Orthonormalize(normal, cv.Transform.Vector(geom.AxisY))
		p.Surface = cv.ID
		pts = append(pts, p)
	}
	pts, err = r.project(pts, pb.Projection, curveAxis(cv))
	if err != nil {
		return nil, err
	}
	return r.limit(pts, pb.LimitDistanceAllow, pb.LimitDistance), nil
}

// projBezLine samples along the splines of a curve, or inside a ribbon of
// fixed width around them.
func (r *run) projBezLine() ([]scatter.Point, error) {
	pl := &r.sys.Distribution.ProjBezLine
	cv, err := r.curve(pl.CurvePtr, "s_distribution_projbezline_curve_ptr")
	if err != nil {
		return nil, err
	}
	up := cv.Transform.Normal(geom.AxisZ)
	boost := r.in.Group.DensityFactor()
	rng := geom.NewRand(r.seed("s_distribution_projbezline", pl.Seed, cv.Name))
	offSeed := r.sys.Seed("s_distribution_projbezline_randoff", pl.Seed)
	var curve *geom.CurveMap
	if pl.RemapAllow {
		curve = geom.NewCurveMap(pl.RemapData)
	}
	fallSeed := r.sys.Seed("s_distribution_projbezline_fallnoisy", pl.NoisySeed)

	var pts []scatter.Point
	next := 0
	emit := func(smp surface.CurveSample, lateral, along float64) {
		side := geom.Unit(r3.Cross(up, smp.Tangent), geom.Perpendicular(up))
		pos := r3.Add(smp.Pos, r3.Add(r3.Scale(lateral, side), r3.Scale(along, smp.Tangent)))
		id := pointID(cv.ID, next)
		next++
		if pl.RandOffAllow && pl.RandOffDist > 0 {
			dx := geom.HashRange(offSeed, id, -1, 1) * pl.RandOffDist
			dy := geom.HashRange(offSeed^0x9E37, id, -1, 1) * pl.RandOffDist
			pos = r3.Add(pos, r3.Add(r3.Scale(dx, side), r3.Scale(dy, smp.Tangent)))
		}
		p := scatter.NewPoint(id, pos, up)
		p.Tangent = geom.Orthonormalize(p.Normal, smp.Tangent)
		p.Surface = cv.ID
		p.Weight = smp.Radius
		pts = append(pts, p)
	}
	// rows places the duplicated rows of one base sample.
	rows := func(smp surface.CurveSample, lateral float64) {
		emit(smp, lateral, 0)
		if !pl.RowsAllow {
			return
		}
		for k := 1; k < pl.Rows; k++ {
			off := float64(k) * pl.RowDist
			switch pl.RowSide {
			case scatter.RowRight:
				off = -off
			case scatter.RowBoth:
				off = float64((k+1)/2) * pl.RowDist
				if k%2 == 0 {
					off = -off
				}
			}
			emit(smp, lateral+off, float64(k)*pl.RowShift)
		}
	}

	for s := range cv.Splines {
		poly := cv.Polyline(s, r.in.CurveResolution)
		if len(poly) < 2 {
			continue
		}
		length := poly[len(poly)-1].Length
		switch pl.Method {
		case scatter.BezPathArea:
			n := densityCount(pl.PathAreaDensity*boost, length*pl.PathAreaWidth)
			if err := r.reserve(n * max(1, pl.Rows)); err != nil {
				return nil, err
			}
			for k := 0; k < n; k++ {
				if err := r.tick(); err != nil {
					return nil, err
				}
				smp := surface.At(poly, rng.Float64()*length)
				w := pl.PathAreaWidth
				if pl.RadiusInflAllow {
					w *= smp.Radius * pl.RadiusInflFactor
				}
				o := (rng.Float64() - 0.5) * w
				roll := rng.Float64()
				if pl.PathAreaFalloff > 0 {
					edge := w/2 - math.Abs(o)
					if edge < pl.PathAreaFalloff {
						keep := mask.ApplyFalloff(&pl.Falloff, curve, fallSeed, edge/pl.PathAreaFalloff, smp.Pos)
						if roll >= keep {
							continue
						}
					}
				}
				rows(smp, o)
			}
		default:
			n := pl.Count
			if !pl.IsCount {
				n = densityCount(pl.OnSplineDensity*boost, length)
			}
			if err := r.reserve(n * max(1, pl.Rows)); err != nil {
				return nil, err
			}
			for k := 0; k < n; k++ {
				if err := r.tick(); err != nil {
					return nil, err
				}
				smp := surface.At(poly, (float64(k)+0.5)/float64(n)*length)
				lateral := 0.0
				if pl.SpreadAllow {
					lateral = pl.SpreadOffset
					if k%2 == 1 {
						lateral = -lateral
					}
				}
				rows(smp, lateral)
			}
		}
	}
	pts, err = r.project(pts, pl.Projection, curveAxis(cv))
	if err != nil {
		return nil, err
	}
	return r.limit(pts, pl.LimitDistanceAllow, pl.LimitDistance), nil
}
