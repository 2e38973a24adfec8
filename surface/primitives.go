package surface

import "github.com/pthm-cable/scatter/geom"

// Grid builds a flat XY grid mesh of sizeX by sizeY centered on the origin
// with nx by ny quads.
func Grid(name string, sizeX, sizeY float64, nx, ny int) *Mesh {
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	m := &Mesh{Name: name, Transform: geom.IdentityTransform()}
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x := -sizeX/2 + sizeX*float64(i)/float64(nx)
			y := -sizeY/2 + sizeY*float64(j)/float64(ny)
			m.Verts = append(m.Verts, geom.V(x, y, 0))
		}
	}
	uv := make([][][2]float64, 0, nx*ny)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			a := j*(nx+1) + i
			m.Faces = append(m.Faces, []int{a, a + 1, a + nx + 2, a + nx + 1})
			u0, u1 := float64(i)/float64(nx), float64(i+1)/float64(nx)
			v0, v1 := float64(j)/float64(ny), float64(j+1)/float64(ny)
			uv = append(uv, [][2]float64{{u0, v0}, {u1, v0}, {u1, v1}, {u0, v1}})
		}
	}
	m.UVMaps = map[string][][][2]float64{"UVMap": uv}
	return m
}

// Plane builds a single-quad square plane of the given edge size.
func Plane(name string, size float64) *Mesh {
	return Grid(name, size, size, 1, 1)
}

// Cube builds an axis-aligned cube of the given edge size, triangulated into
// 12 faces with outward normals.
func Cube(name string, size float64) *Mesh {
	h := size / 2
	m := &Mesh{Name: name, Transform: geom.IdentityTransform()}
	m.Verts = []geom.Vec{
		geom.V(-h, -h, -h), geom.V(h, -h, -h), geom.V(h, h, -h), geom.V(-h, h, -h),
		geom.V(-h, -h, h), geom.V(h, -h, h), geom.V(h, h, h), geom.V(-h, h, h),
	}
	quads := [][4]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{2, 3, 7, 6}, // +Y
		{1, 2, 6, 5}, // +X
		{3, 0, 4, 7}, // -X
	}
	for _, q := range quads {
		m.Faces = append(m.Faces, []int{q[0], q[1], q[2]}, []int{q[0], q[2], q[3]})
	}
	return m
}
