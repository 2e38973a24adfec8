package geom

import (
	"sort"

	"gonum.org/v1/gonum/interp"
)

// CurveMap is a monotone remap curve over [0,1] defined by control points.
// Three or more points are fitted with a Fritsch–Butland monotone cubic,
// two with a straight line.
type CurveMap struct {
	xs, ys []float64
	pred   interp.Predictor
}

// NewCurveMap fits a curve through pts. Points are sorted by x and
// duplicates dropped. Fewer than two usable points yield the identity curve.
func NewCurveMap(pts [][2]float64) *CurveMap {
	sorted := make([][2]float64, len(pts))
	copy(sorted, pts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	cm := &CurveMap{}
	for _, p := range sorted {
		x := Clamp01(p[0])
		if n := len(cm.xs); n > 0 && x <= cm.xs[n-1] {
			continue
		}
		cm.xs = append(cm.xs, x)
		cm.ys = append(cm.ys, Clamp01(p[1]))
	}
	switch {
	case len(cm.xs) >= 3:
		var fb interp.FritschButland
		if err := fb.Fit(cm.xs, cm.ys); err == nil {
			cm.pred = &fb
		}
	case len(cm.xs) == 2:
		var pl interp.PiecewiseLinear
		if err := pl.Fit(cm.xs, cm.ys); err == nil {
			cm.pred = &pl
		}
	}
	return cm
}

// IsIdentity reports whether the curve maps every x to itself.
func (c *CurveMap) IsIdentity() bool {
	if c == nil || c.pred == nil {
		return true
	}
	return len(c.xs) == 2 && c.xs[0] == 0 && c.ys[0] == 0 && c.xs[1] == 1 && c.ys[1] == 1
}

// Eval maps x through the curve. Inputs outside the control range take the
// end values.
func (c *CurveMap) Eval(x float64) float64 {
	if c == nil || c.pred == nil {
		return Clamp01(x)
	}
	if x <= c.xs[0] {
		return c.ys[0]
	}
	if x >= c.xs[len(c.xs)-1] {
		return c.ys[len(c.ys)-1]
	}
	return Clamp01(c.pred.Predict(x))
}
