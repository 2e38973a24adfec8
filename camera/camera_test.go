package camera

import (
	"math"
	"testing"

	"github.com/pthm-cable/scatter/geom"
)

func TestForward(t *testing.T) {
	cam := New(geom.V(0, -10, 0), geom.V(0, 0, 0), math.Pi/2, 1)
	fwd := cam.Forward()
	if geom.Dist(fwd, geom.V(0, 1, 0)) > 1e-9 {
		t.Errorf("forward = %v, want +Y", fwd)
	}
}

func TestFrustumContains(t *testing.T) {
	cam := New(geom.V(0, -10, 0), geom.V(0, 0, 0), math.Pi/2, 1)
	f := cam.Frustum(1)

	tests := []struct {
		name string
		p    geom.Vec
		r    float64
		want bool
	}{
		{"center", geom.V(0, 0, 0), 0, true},
		{"behind", geom.V(0, -20, 0), 0, false},
		{"far left", geom.V(-50, 0, 0), 0, false},
		{"edge inside", geom.V(9, 0, 0), 0, true},
		{"edge outside", geom.V(11, 0, 0), 0, false},
		{"outside but radius overlaps", geom.V(11, 0, 0), 2, true},
		{"beyond clip end", geom.V(0, 2000, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Contains(tt.p, tt.r); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.p, tt.r, got, tt.want)
			}
		})
	}
}

func TestFrustumBoost(t *testing.T) {
	cam := New(geom.V(0, -10, 0), geom.V(0, 0, 0), math.Pi/2, 1)
	p := geom.V(12, 0, 0)
	if cam.Frustum(1).Contains(p, 0) {
		t.Fatal("point should be outside unboosted frustum")
	}
	if !cam.Frustum(1.5).Contains(p, 0) {
		t.Error("boosted frustum should include the point")
	}
}

func TestViewportRoundtrip(t *testing.T) {
	v := NewViewport(1280, 720, -10, -10, 10, 10)
	tests := []struct{ sx, sy float32 }{
		{640, 360},
		{100, 100},
		{1200, 600},
	}
	for _, tc := range tests {
		wx, wy := v.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := v.WorldToScreen(wx, wy)
		if math.Abs(float64(sx-tc.sx)) > 0.01 || math.Abs(float64(sy-tc.sy)) > 0.01 {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)", tc.sx, tc.sy, wx, wy, sx, sy)
		}
	}
}

func TestViewportYUp(t *testing.T) {
	v := NewViewport(800, 800, -1, -1, 1, 1)
	_, syTop := v.WorldToScreen(0, 1)
	_, syBottom := v.WorldToScreen(0, -1)
	if syTop >= syBottom {
		t.Errorf("world +Y should be higher on screen: top=%f bottom=%f", syTop, syBottom)
	}
}

func TestViewportFitPoints(t *testing.T) {
	v := NewViewport(800, 800, -1, -1, 1, 1)
	v.FitPoints([]float32{2, 6, 4}, []float32{-3, 1, 0}, 0)
	if v.X != 4 || v.Y != -1 {
		t.Errorf("center = (%v, %v), want (4, -1)", v.X, v.Y)
	}
	if math.Abs(float64(v.Zoom-800/4*0.9)) > 1e-3 {
		t.Errorf("zoom = %v", v.Zoom)
	}
	before := *v
	v.FitPoints(nil, nil, 1)
	if *v != before {
		t.Error("empty fit changed the view")
	}
}

func TestViewportZoomClamp(t *testing.T) {
	v := NewViewport(800, 800, -1, -1, 1, 1)
	v.ZoomBy(1e9)
	if v.Zoom != v.MaxZoom {
		t.Errorf("zoom = %v, want max %v", v.Zoom, v.MaxZoom)
	}
	v.ZoomBy(1e-12)
	if v.Zoom != v.MinZoom {
		t.Errorf("zoom = %v, want min %v", v.Zoom, v.MinZoom)
	}
}
