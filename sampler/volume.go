package sampler

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/scatter/geom"
	"github.com/pthm-cable/scatter/scatter"
)

// volume fills the closed volume of the surfaces, either at random inside
// the occupied voxels or on a regular grid.
func (r *run) volume() ([]scatter.Point, error) {
	if err := r.needMeshes(); err != nil {
		return nil, err
	}
	v := &r.sys.Distribution.Volume
	bvh := r.surfaceBVH()
	box := bvh.Bounds()
	if box.IsEmpty() {
		return nil, nil
	}
	owner := r.mesh[0]
	if v.Method == scatter.VolumeGrid {
		return r.volumeGrid(box.Min, box.Size())
	}

	vs := v.VoxelSize
	if vs <= 0 {
		return nil, r.errorf(scatter.KindInvalidConfig, "s_distribution_volume_voxelsize", "voxel size must be positive")
	}
	size := box.Size()
	nx := max(1, int(math.Ceil(size.X/vs)))
	ny := max(1, int(math.Ceil(size.Y/vs)))
	nz := max(1, int(math.Ceil(size.Z/vs)))
	if err := r.voxelBudget(nx, ny, nz); err != nil {
		return nil, err
	}
	var filled []geom.Vec // voxel corners
	for z := 0; z < nz; z++ {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				corner := r3.Add(box.Min, geom.V(float64(x)*vs, float64(y)*vs, float64(z)*vs))
				if bvh.Inside(r3.Add(corner, geom.V(vs/2, vs/2, vs/2))) {
					filled = append(filled, corner)
				}
			}
		}
	}
	if len(filled) == 0 {
		return nil, nil
	}

	n := int(math.Round(float64(v.Count) * r.in.Group.DensityFactor()))
	if !v.IsCount {
		vol := float64(len(filled)) * vs * vs * vs
		if v.Space != scatter.SpaceGlobal {
			if f := owner.Transform.VolumeFactor(); f > 0 {
				vol /= f
			}
		}
		n = densityCount(v.Density*r.in.Group.DensityFactor(), vol)
	}
	if err := r.reserve(n); err != nil {
		return nil, err
	}
	rng := geom.NewRand(r.seed("s_distribution_volume", v.Seed, owner.Name))
	pts := make([]scatter.Point, 0, n)
	// Voxels straddling the boundary reject some draws; retry a bounded
	// number of times to reach the requested count.
	for tries := 0; len(pts) < n && tries < 8*n; tries++ {
		if err := r.tick(); err != nil {
			return nil, err
		}
		c := filled[rng.Intn(len(filled))]
		pos := r3.Add(c, geom.V(rng.Float64()*vs, rng.Float64()*vs, rng.Float64()*vs))
		if !bvh.Inside(pos) {
			continue
		}
		p := scatter.NewPoint(pointID(owner.ID, len(pts)), pos, geom.AxisZ)
		p.Surface = owner.ID
		pts = append(pts, p)
	}
	return r.limit(pts, v.LimitDistanceAllow, v.LimitDistance), nil
}

func (r *run) volumeGrid(origin, size geom.Vec) ([]scatter.Point, error) {
	v := &r.sys.Distribution.Volume
	sp := v.GridSpacing
	if sp.X <= 0 || sp.Y <= 0 || sp.Z <= 0 {
		return nil, r.errorf(scatter.KindInvalidConfig, "s_distribution_volume_grid_spacing", "grid spacing must be positive")
	}
	nx := int(math.Floor(size.X/sp.X)) + 1
	ny := int(math.Floor(size.Y/sp.Y)) + 1
	nz := int(math.Floor(size.Z/sp.Z)) + 1
	if err := r.voxelBudget(nx, ny, nz); err != nil {
		return nil, err
	}
	// Center the lattice in the bounds.
	start := r3.Add(origin, geom.V(
		(size.X-float64(nx-1)*sp.X)/2,
		(size.Y-float64(ny-1)*sp.Y)/2,
		(size.Z-float64(nz-1)*sp.Z)/2,
	))
	owner := r.mesh[0]
	bvh := r.surfaceBVH()
	var pts []scatter.Point
	i := 0
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				if err := r.tick(); err != nil {
					return nil, err
				}
				pos := r3.Add(start, geom.V(float64(x)*sp.X, float64(y)*sp.Y, float64(z)*sp.Z))
				id := i
				i++
				if !bvh.Inside(pos) {
					continue
				}
				p := scatter.NewPoint(pointID(owner.ID, id), pos, geom.AxisZ)
				p.Surface = owner.ID
				pts = append(pts, p)
			}
		}
	}
	if err := r.reserve(len(pts)); err != nil {
		return nil, err
	}
	return r.limit(pts, v.LimitDistanceAllow, v.LimitDistance), nil
}

func (r *run) voxelBudget(nx, ny, nz int) error {
	total := float64(nx) * float64(ny) * float64(nz)
	if max := r.in.Budget.MaxVoxels; max > 0 && total > float64(max) {
		return r.errorf(scatter.KindResourceBudget, "s_distribution_volume",
			"%dx%dx%d cells exceed the voxel budget of %d", nx, ny, nz, max)
	}
	return nil
}
