// Package instances assigns an instance index to every point from the
// system's instance collection.
package instances

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/mask"
	"github.com/pthm-cable/scatter/noise"
	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
	"github.com/pthm-cable/scatter/transfer"
)

// Picker is the prepared instance picker of one system. Pick is safe for
// concurrent use.
type Picker struct {
	ev  *mask.Evaluator
	sys *scatter.System
	ic  *scatter.InstancesCategory

	names []string
	seed  uint64
	image *surface.Image

	// cdf is the cumulative slot rate for rate picking; nil picks
	// uniformly.
	cdf []float64
}

// New resolves the instance collection. A missing collection is reported
// and leaves the picker empty, which culls every point.
func New(ev *mask.Evaluator) *Picker {
	sys := ev.System
	pk := &Picker{ev: ev, sys: sys, ic: &sys.Instances, seed: sys.Seed("s_instances", sys.Instances.Seed)}
	ic := pk.ic
	if sc := ev.Scene(); sc != nil {
		objs, missing, ok := sc.Collection(ic.CollPtr)
		if !ok {
			pk.report(scatter.KindInvalidReference, "s_instances_coll_ptr", "collection %q not found", ic.CollPtr)
			return pk
		}
		if len(missing) > 0 {
			pk.report(scatter.KindInvalidReference, "s_instances_coll_ptr", "collection %q references missing objects %v", ic.CollPtr, missing)
		}
		for _, o := range objs {
			pk.names = append(pk.names, o.Name)
		}
	}
	switch ic.Method {
	case scatter.PickRate:
		pk.prepareRates()
	case scatter.PickColor:
		pk.prepareColor()
	case scatter.PickIndex:
		_, err := transfer.Shared(ev.Surfaces, transfer.AttrInt, ic.IdxPtr, sys.ID, "s_instances_idx_ptr")
		ev.Report.Add(err)
	}
	return pk
}

func (pk *Picker) report(kind scatter.Kind, feature, format string, args ...any) {
	pk.ev.Report.Add(scatter.Errorf(kind, pk.sys.ID, feature, format, args...))
}

func (pk *Picker) prepareRates() {
	total := 0.0
	cdf := make([]float64, len(pk.names))
	for i := range pk.names {
		total += pk.slot(i).Rate
		cdf[i] = total
	}
	if total > 0 {
		pk.cdf = cdf
	}
}

func (pk *Picker) prepareColor() {
	ic := pk.ic
	if ic.ColorSource == scatter.ColorFromTexture {
		im, ok := pk.ev.Scene().Image(ic.TexturePtr)
		if !ok {
			pk.report(scatter.KindInvalidReference, "s_instances_texture_ptr", "image %q not found", ic.TexturePtr)
			return
		}
		pk.image = im
		_, err := transfer.Shared(pk.ev.Surfaces, transfer.AttrUV, ic.UVPtr, pk.sys.ID, "s_instances_uv_ptr")
		pk.ev.Report.Add(err)
		return
	}
	_, err := transfer.Shared(pk.ev.Surfaces, transfer.AttrColor, ic.VColPtr, pk.sys.ID, "s_instances_vcol_ptr")
	pk.ev.Report.Add(err)
}

// Names returns the instance object names in pick order.
func (pk *Picker) Names() []string { return pk.names }

// Len is the number of instances.
func (pk *Picker) Len() int { return len(pk.names) }

// slot returns the picking parameters of instance i. Instances past the
// slot table use zero rate and an open scale range.
func (pk *Picker) slot(i int) scatter.InstanceSlot {
	if i < len(pk.ic.Slots) {
		s := pk.ic.Slots[i]
		s.Rate = geom.Clamp(s.Rate, 0, 100)
		return s
	}
	return scatter.InstanceSlot{ScaleMax: math.Inf(1)}
}

// Pick sets p.Instance. It returns false when there is nothing to pick
// from.
func (pk *Picker) Pick(p *scatter.Point) bool {
	n := len(pk.names)
	if n == 0 {
		return false
	}
	switch pk.ic.Method {
	case scatter.PickRate:
		p.Instance = pk.byRate(p)
	case scatter.PickScale:
		p.Instance = pk.byScale(p)
	case scatter.PickColor:
		p.Instance = pk.byColor(p)
	case scatter.PickIndex:
		i, _ := pk.ev.Attrs.Int(p, pk.ic.IdxPtr)
		p.Instance = ((i % n) + n) % n
	case scatter.PickCluster:
		p.Instance = int(geom.Hash64(pk.seed, pk.cluster(p)) % uint64(n))
	default:
		p.Instance = int(geom.Hash64(pk.seed, p.ID) % uint64(n))
	}
	return true
}

func (pk *Picker) byRate(p *scatter.Point) int {
	if pk.cdf == nil {
		return int(geom.Hash64(pk.seed, p.ID) % uint64(len(pk.names)))
	}
	u := geom.Hash01(pk.seed, p.ID) * pk.cdf[len(pk.cdf)-1]
	for i, c := range pk.cdf {
		if u < c {
			return i
		}
	}
	return len(pk.cdf) - 1
}

// byScale picks the first instance whose range holds the point's size and
// rewrites the scale per the scale method.
func (pk *Picker) byScale(p *scatter.Point) int {
	size := geom.MaxAbs(p.Scale)
	pick := 0
	for i := range pk.names {
		s := pk.slot(i)
		if size >= s.ScaleMin && size <= s.ScaleMax {
			pick = i
			break
		}
	}
	switch pk.ic.ScaleMethod {
	case scatter.IDScaleFixed:
		p.Scale = geom.One
	case scatter.IDScaleDynamic:
		if m := pk.slot(pick).ScaleMax; m > 0 && !math.IsInf(m, 1) {
			p.Scale = r3.Scale(1/m, p.Scale)
		}
	}
	return pick
}

// byColor picks the first instance whose id color matches the sampled
// color, or the first instance.
func (pk *Picker) byColor(p *scatter.Point) int {
	ic := pk.ic
	var c [4]float64
	if ic.ColorSource == scatter.ColorFromTexture {
		if pk.image == nil {
			return 0
		}
		uv, _ := pk.ev.Attrs.UV(p, ic.UVPtr)
		c = pk.image.Sample(uv[0], uv[1])
	} else {
		var ok bool
		if c, ok = pk.ev.Attrs.Color(p, ic.VColPtr); !ok {
			return 0
		}
	}
	for i := range pk.names {
		if mask.ColorMatch(c, pk.slot(i).Color, ic.ColorTolerance) {
			return i
		}
	}
	return 0
}

// cluster returns the cluster key of p: its clump when clump reuse is on,
// otherwise the grid cell of its noise-blurred position.
func (pk *Picker) cluster(p *scatter.Point) uint64 {
	ic := pk.ic
	if ic.PickClump && p.ClumpID != scatter.NoClump {
		return uint64(p.ClumpID)
	}
	space := scatter.SpaceLocal
	if ic.ClusterProjection == scatter.ClusterGlobal {
		space = scatter.SpaceGlobal
	}
	pos := pk.ev.Attrs.Position(p, space)
	size := ic.ClusterScale
	if size <= 0 {
		size = 1
	}
	if ic.ClusterBlur > 0 {
		seed := int64(pk.sys.Seed("s_instances_pick_cluster_blur", 0))
		amp := 2 * ic.ClusterBlur * size
		pos = r3.Add(pos, geom.V(
			amp*(noise.Texture{Scale: size, Seed: seed, Octaves: 2}.Sample(pos)-0.5),
			amp*(noise.Texture{Scale: size, Seed: seed + 1, Octaves: 2}.Sample(pos)-0.5),
			0,
		))
	}
	return geom.MixSeed(
		uint64(int64(math.Floor(pos.X/size))),
		uint64(int64(math.Floor(pos.Y/size))),
		uint64(int64(math.Floor(pos.Z/size))),
	)
}

// Each calls fn on every point of pts. fn may run concurrently.
type Each func(ctx context.Context, pts []scatter.Point, fn func(*scatter.Point)) error

// Sequential is an Each running fn on one goroutine.
func Sequential(ctx context.Context, pts []scatter.Point, fn func(*scatter.Point)) error {
	for i := range pts {
		if i&4095 == 4095 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(&pts[i])
	}
	return nil
}

// Apply picks an instance for every point. Points are all culled when the
// collection is empty or missing. A nil each means Sequential.
func (pk *Picker) Apply(ctx context.Context, pts []scatter.Point, each Each) ([]scatter.Point, error) {
	if len(pk.names) == 0 {
		return pts[:0], nil
	}
	if each == nil {
		each = Sequential
	}
	if err := each(ctx, pts, func(p *scatter.Point) { pk.Pick(p) }); err != nil {
		return nil, err
	}
	return pts, nil
}
