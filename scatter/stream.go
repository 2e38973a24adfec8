package scatter

import (
	"cmp"
	"slices"

	"github.com/pthm-cable/scatter/geom"
)

// Column declares one per-point attribute column, e.g. "vg:density" or
// "vcol:Col.r".
type Column struct {
	Name string `json:"name"`
	// Source is the attribute lookup that fills the column.
	Source string `json:"source"`
}

// PointStream is the ordered output of a system.
type PointStream struct {
	System  string
	Epoch   uint64
	Columns []Column
	Points  []Point

	// Display is carried for the host; it never changes points.
	Display DisplayCategory
	Color   [3]float64
}

// Len returns the number of points.
func (s *PointStream) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// SortByID orders points by stable id.
func (s *PointStream) SortByID() {
	slices.SortStableFunc(s.Points, func(a, b Point) int { return cmp.Compare(a.ID, b.ID) })
}

// Clone returns a deep copy.
func (s *PointStream) Clone() *PointStream {
	if s == nil {
		return nil
	}
	out := *s
	out.Columns = slices.Clone(s.Columns)
	out.Points = make([]Point, len(s.Points))
	for i, p := range s.Points {
		out.Points[i] = p.Clone()
	}
	return &out
}

// Positions returns the point positions in order.
func (s *PointStream) Positions() []geom.Vec {
	if s == nil {
		return nil
	}
	out := make([]geom.Vec, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Pos
	}
	return out
}

// Records converts the stream to output records.
func (s *PointStream) Records() []Record {
	if s == nil {
		return nil
	}
	out := make([]Record, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Record()
	}
	return out
}

// Column returns the index of the named column, or -1.
func (s *PointStream) Column(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two streams are bit-identical.
func (s *PointStream) Equal(o *PointStream) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s == nil || o == nil {
		return true
	}
	if !slices.Equal(s.Columns, o.Columns) {
		return false
	}
	for i := range s.Points {
		if !s.Points[i].Equal(o.Points[i]) {
			return false
		}
	}
	return true
}
