package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// PointIndex answers nearest-point queries over a fixed point set.
type PointIndex struct {
	tree *kdtree.Tree
	n    int
}

// NewPointIndex builds an index over pts.
func NewPointIndex(pts []Vec) *PointIndex {
	if len(pts) == 0 {
		return &PointIndex{}
	}
	kp := make(kdtree.Points, len(pts))
	for i, p := range pts {
		kp[i] = kdtree.Point{p.X, p.Y, p.Z}
	}
	return &PointIndex{tree: kdtree.New(kp, false), n: len(pts)}
}

// Len returns the number of indexed points.
func (x *PointIndex) Len() int { return x.n }

// Nearest returns the distance from p to the closest indexed point and that
// point. ok is false for an empty index.
func (x *PointIndex) Nearest(p Vec) (dist float64, at Vec, ok bool) {
	if x == nil || x.tree == nil {
		return math.Inf(1), Zero, false
	}
	c, d2 := x.tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
	kp, isPoint := c.(kdtree.Point)
	if !isPoint || len(kp) < 3 {
		return math.Inf(1), Zero, false
	}
	return math.Sqrt(d2), V(kp[0], kp[1], kp[2]), true
}

// NearestDist is Nearest without the location.
func (x *PointIndex) NearestDist(p Vec) float64 {
	d, _, _ := x.Nearest(p)
	return d
}
