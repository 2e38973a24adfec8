package geom

import (
	"math"
	"testing"
)

func cubeCorners(half float64) []Vec {
	var pts []Vec
	for _, x := range []float64{-half, half} {
		for _, y := range []float64{-half, half} {
			for _, z := range []float64{-half, half} {
				pts = append(pts, V(x, y, z))
			}
		}
	}
	return pts
}

func TestHullCube(t *testing.T) {
	pts := append(cubeCorners(1), V(0, 0, 0), V(0.5, -0.2, 0.9), V(1, 0, 0))
	h := NewHull(pts)
	if !h.Solid {
		t.Fatal("cube hull is not solid")
	}
	if len(h.Tris) != 12 {
		t.Errorf("cube hull has %d triangles, want 12", len(h.Tris))
	}
	tests := []struct {
		name string
		p    Vec
		want float64
	}{
		{"inside", V(0.2, 0.3, -0.4), 0},
		{"face", V(3, 0, 0), 2},
		{"edge", V(2, 2, 0), math.Sqrt2},
		{"corner", V(2, 2, 2), math.Sqrt(3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, at := h.Closest(tt.p)
			if math.Abs(d-tt.want) > 1e-9 {
				t.Errorf("distance = %v, want %v", d, tt.want)
			}
			if math.Abs(Dist(at, tt.p)-d) > 1e-9 {
				t.Errorf("nearest point %v is %v away, reported %v", at, Dist(at, tt.p), d)
			}
		})
	}
}

// A skewed tetrahedron has faces no axis-aligned or diagonal slab can
// bound, so distances must come from the faces themselves.
func TestHullSkewedTetrahedron(t *testing.T) {
	a, b, c, d := V(0, 0, 0), V(2, 0, 0), V(0, 3, 0), V(0.4, 0.7, 5)
	faces := [][3]Vec{{a, b, c}, {a, b, d}, {a, c, d}, {b, c, d}}
	var pts []Vec
	pts = append(pts, a, b, c, d)
	for i := 0; i < 50; i++ {
		u, v, w := UniformBarycentric(Hash01(1, uint64(i)), Hash01(2, uint64(i)))
		s := Hash01(3, uint64(i))
		pts = append(pts, LerpVec(Barycentric(a, b, c, u, v, w), d, s))
	}
	h := NewHull(pts)
	if len(h.Tris) != 4 {
		t.Fatalf("tetrahedron hull has %d triangles, want 4", len(h.Tris))
	}
	for i := 0; i < 200; i++ {
		p := V(8*Hash01(4, uint64(i))-3, 8*Hash01(5, uint64(i))-3, 10*Hash01(6, uint64(i))-3)
		want := math.Inf(1)
		for _, f := range faces {
			q, _ := ClosestOnTriangle(p, f[0], f[1], f[2])
			want = math.Min(want, Dist(p, q))
		}
		got, _ := h.Closest(p)
		if h.Contains(p) {
			continue
		}
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("distance from %v = %v, want %v", p, got, want)
		}
	}
	if !h.Contains(V(0.3, 0.4, 0.5)) {
		t.Error("interior point not contained")
	}
	if h.Contains(V(1.5, 1.5, 0.5)) {
		t.Error("point beyond the slanted face contained")
	}
}

func TestHullDegenerate(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		h := NewHull([]Vec{V(-1, -1, 0), V(1, -1, 0), V(1, 1, 0), V(-1, 1, 0), V(0, 0, 0), V(0.5, 0.5, 0)})
		if h.Solid || len(h.Tris) != 2 {
			t.Fatalf("square hull: solid=%v tris=%d, want flat with 2", h.Solid, len(h.Tris))
		}
		if d, _ := h.Closest(V(0.3, 0.2, 2)); math.Abs(d-2) > 1e-9 {
			t.Errorf("height above square = %v, want 2", d)
		}
		if d, _ := h.Closest(V(3, 0, 0)); math.Abs(d-2) > 1e-9 {
			t.Errorf("distance beside square = %v, want 2", d)
		}
	})
	t.Run("collinear", func(t *testing.T) {
		h := NewHull([]Vec{V(0, 0, 0), V(1, 0, 0), V(4, 0, 0), V(2, 0, 0)})
		if d, _ := h.Closest(V(5, 0, 0)); math.Abs(d-1) > 1e-9 {
			t.Errorf("distance past the end = %v, want 1", d)
		}
		if d, _ := h.Closest(V(2, 3, 0)); math.Abs(d-3) > 1e-9 {
			t.Errorf("distance beside the segment = %v, want 3", d)
		}
	})
	t.Run("point", func(t *testing.T) {
		if d, _ := NewHull([]Vec{V(1, 1, 1)}).Closest(V(1, 1, 3)); math.Abs(d-2) > 1e-9 {
			t.Errorf("distance = %v, want 2", d)
		}
	})
	t.Run("empty", func(t *testing.T) {
		if d, _ := NewHull(nil).Closest(V(0, 0, 0)); !math.IsInf(d, 1) {
			t.Errorf("distance = %v, want +Inf", d)
		}
	})
}
