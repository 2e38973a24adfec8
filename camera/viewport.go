package camera

import "github.com/chewxy/math32"

// Viewport controls a top-down 2D view onto the XY plane. It supports pan
// and zoom; world Y grows upward while screen Y grows downward.
type Viewport struct {
	// Position is the view center in world coordinates
	X, Y float32

	// Zoom in pixels per world unit
	Zoom float32

	// Screen dimensions
	ScreenW, ScreenH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// NewViewport creates a viewport fitting the world rectangle
// [minX,maxX]×[minY,maxY] into the screen.
func NewViewport(screenW, screenH, minX, minY, maxX, maxY float32) *Viewport {
	v := &Viewport{ScreenW: screenW, ScreenH: screenH, MaxZoom: 10000}
	v.Fit(minX, minY, maxX, maxY)
	v.MinZoom = v.Zoom / 20
	return v
}

// Fit centers the view on a rectangle and zooms so it fills the screen.
func (v *Viewport) Fit(minX, minY, maxX, maxY float32) {
	v.X = (minX + maxX) / 2
	v.Y = (minY + maxY) / 2
	w, h := maxX-minX, maxY-minY
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	v.Zoom = math32.Min(v.ScreenW/w, v.ScreenH/h) * 0.9
}

// WorldToScreen converts world coordinates to screen coordinates.
func (v *Viewport) WorldToScreen(wx, wy float32) (sx, sy float32) {
	sx = v.ScreenW/2 + (wx-v.X)*v.Zoom
	sy = v.ScreenH/2 - (wy-v.Y)*v.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (v *Viewport) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	wx = v.X + (sx-v.ScreenW/2)/v.Zoom
	wy = v.Y - (sy-v.ScreenH/2)/v.Zoom
	return wx, wy
}

// IsVisible returns true if a circle at (wx, wy) with given radius could be
// visible on screen.
func (v *Viewport) IsVisible(wx, wy, radius float32) bool {
	halfW := v.ScreenW/(2*v.Zoom) + radius
	halfH := v.ScreenH/(2*v.Zoom) + radius
	return math32.Abs(wx-v.X) <= halfW && math32.Abs(wy-v.Y) <= halfH
}

// Pan moves the view by the given delta in screen pixels.
func (v *Viewport) Pan(dx, dy float32) {
	v.X -= dx / v.Zoom
	v.Y += dy / v.Zoom
}

// ZoomBy multiplies the current zoom by factor, clamped to the limits.
func (v *Viewport) ZoomBy(factor float32) {
	v.Zoom = math32.Max(v.MinZoom, math32.Min(v.Zoom*factor, v.MaxZoom))
}

// Resize updates the screen dimensions.
func (v *Viewport) Resize(screenW, screenH float32) {
	v.ScreenW = screenW
	v.ScreenH = screenH
}

// FitPoints fits the view to the bounds of the points (xs[i], ys[i]), padded by pad world
// units. Empty input leaves the view unchanged.
func (v *Viewport) FitPoints(xs, ys []float32, pad float32) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return
	}
	minX, maxX := xs[0], xs[0]
	minY, maxY := ys[0], ys[0]
	for i := range xs {
		minX, maxX = math32.Min(minX, xs[i]), math32.Max(maxX, xs[i])
		minY, maxY = math32.Min(minY, ys[i]), math32.Max(maxY, ys[i])
	}
	v.Fit(minX-pad, minY-pad, maxX+pad, maxY+pad)
}
