package geom

import "math"

// Neighbor holds a nearby item with its precomputed squared distance.
type Neighbor struct {
	ID     int
	DistSq float64
}

type cellKey struct{ x, y, z int32 }

// SpatialGrid provides neighbor lookups using a hashed cell grid. Unlike a
// dense grid it has no fixed extent, so items may lie anywhere.
type SpatialGrid struct {
	cellSize float64
	cells    map[cellKey][]int
	pos      []Vec
}

// NewSpatialGrid creates a grid with the given cell size.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

// CellSize returns the grid cell edge length.
func (g *SpatialGrid) CellSize() float64 { return g.cellSize }

// Len returns the number of inserted items.
func (g *SpatialGrid) Len() int { return len(g.pos) }

// Clear removes all items from the grid.
func (g *SpatialGrid) Clear() {
	for k := range g.cells {
		delete(g.cells, k)
	}
	g.pos = g.pos[:0]
}

// Insert adds a point and returns its id (insertion index).
func (g *SpatialGrid) Insert(p Vec) int {
	id := len(g.pos)
	g.pos = append(g.pos, p)
	k := g.key(p)
	g.cells[k] = append(g.cells[k], id)
	return id
}

// Position returns the position of item id.
func (g *SpatialGrid) Position(id int) Vec { return g.pos[id] }

// QueryRadiusInto appends items within radius of p to dst, skipping exclude
// (pass -1 to keep all). Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []Neighbor, p Vec, radius float64, exclude int) []Neighbor {
	r := int32(math.Ceil(radius / g.cellSize))
	c := g.key(p)
	r2 := radius * radius
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				for _, id := range g.cells[cellKey{c.x + dx, c.y + dy, c.z + dz}] {
					if id == exclude {
						continue
					}
					d2 := Dist2(p, g.pos[id])
					if d2 <= r2 {
						dst = append(dst, Neighbor{ID: id, DistSq: d2})
					}
				}
			}
		}
	}
	return dst
}

// AnyWithin reports whether any item lies strictly closer than radius to p.
func (g *SpatialGrid) AnyWithin(p Vec, radius float64) bool {
	r := int32(math.Ceil(radius / g.cellSize))
	c := g.key(p)
	r2 := radius * radius
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				for _, id := range g.cells[cellKey{c.x + dx, c.y + dy, c.z + dz}] {
					if Dist2(p, g.pos[id]) < r2 {
						return true
					}
				}
			}
		}
	}
	return false
}

// CellCount returns how many items share p's cell.
func (g *SpatialGrid) CellCount(p Vec) int {
	return len(g.cells[g.key(p)])
}

// MaxCellCount returns the population of the fullest cell.
func (g *SpatialGrid) MaxCellCount() int {
	m := 0
	for _, ids := range g.cells {
		if len(ids) > m {
			m = len(ids)
		}
	}
	return m
}

// Cells returns the number of occupied cells.
func (g *SpatialGrid) Cells() int { return len(g.cells) }

func (g *SpatialGrid) key(p Vec) cellKey {
	return cellKey{
		x: int32(math.Floor(p.X / g.cellSize)),
		y: int32(math.Floor(p.Y / g.cellSize)),
		z: int32(math.Floor(p.Z / g.cellSize)),
	}
}
