package transfer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pthm-cable/scatter/scatter"
	"github.com/pthm-cable/scatter/surface"
)

type cacheKey struct {
	surface uint32
	attr    string
	rev     uint64
}

type uvCorners struct {
	uv     [3][2]float64
	mapped bool
}

// Cache holds per-triangle corner tables. Entries for an older
// modification counter of the same (surface, attribute) are dropped when a
// newer table is built.
type Cache struct {
	mu     sync.Mutex
	tables map[cacheKey]any
	latest map[cacheKey]uint64 // rev-less key -> rev in tables

	hits, builds int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{tables: map[cacheKey]any{}, latest: map[cacheKey]uint64{}}
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}

// Stats returns how many lookups reused a table and how many built one.
func (c *Cache) Stats() (hits, builds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.builds
}

func (c *Cache) get(m *surface.Mesh, attr string, build func() any) any {
	k := cacheKey{surface: m.ID, attr: attr, rev: m.Rev}
	c.mu.Lock()
	if v, ok := c.tables[k]; ok {
		c.hits++
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	// Build outside the lock; a concurrent duplicate build is harmless.
	v := build()

	c.mu.Lock()
	defer c.mu.Unlock()
	base := cacheKey{surface: m.ID, attr: attr}
	if old, ok := c.latest[base]; ok && old != m.Rev {
		delete(c.tables, cacheKey{surface: m.ID, attr: attr, rev: old})
	}
	c.latest[base] = m.Rev
	c.tables[k] = v
	c.builds++
	return v
}

func (c *Cache) vertexGroup(m *surface.Mesh, name string) [][3]float64 {
	return c.get(m, "vg:"+name, func() any {
		w := m.VertexGroups[name]
		tris := m.Topo().Tris
		out := make([][3]float64, len(tris))
		for i, tr := range tris {
			for k, v := range tr.V {
				if v < len(w) {
					out[i][k] = w[v]
				}
			}
		}
		return out
	}).([][3]float64)
}

func (c *Cache) color(m *surface.Mesh, name string) [][3][4]float64 {
	return c.get(m, "vcol:"+name, func() any {
		cols := m.ColorAttrs[name]
		tris := m.Topo().Tris
		out := make([][3][4]float64, len(tris))
		for i, tr := range tris {
			for k, v := range tr.V {
				if v < len(cols) {
					out[i][k] = cols[v]
				} else {
					out[i][k] = DefaultColor
				}
			}
		}
		return out
	}).([][3][4]float64)
}

func (c *Cache) uv(m *surface.Mesh, name string) []uvCorners {
	return c.get(m, "uv:"+name, func() any {
		tris := m.Topo().Tris
		out := make([]uvCorners, len(tris))
		for i, tr := range tris {
			out[i].mapped = true
			for k, corner := range tr.Corner {
				uv, ok := m.UVAt(name, tr.Face, corner)
				if !ok {
					out[i].mapped = false
					break
				}
				out[i].uv[k] = uv
			}
		}
		return out
	}).([]uvCorners)
}

// UVTriangles returns the UV corners of every triangle of m in map name and
// whether each triangle is mapped.
func (t *Transfer) UVTriangles(m *surface.Mesh, name string) ([][3][2]float64, []bool) {
	tab := t.cache.uv(m, name)
	uvs := make([][3][2]float64, len(tab))
	mapped := make([]bool, len(tab))
	for i, c := range tab {
		uvs[i] = c.uv
		mapped[i] = c.mapped
	}
	return uvs, mapped
}

func (t *Transfer) column(source string) (func(*scatter.Point) float64, error) {
	family, rest, _ := strings.Cut(source, ":")
	name, channel := rest, ""
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		name, channel = rest[:i], rest[i+1:]
	}
	switch Attr(family) {
	case AttrVertexGroup:
		return func(p *scatter.Point) float64 {
			w, _ := t.VertexGroup(p, rest)
			return w
		}, nil
	case AttrColor:
		ch := strings.Index("rgba", channel)
		if ch < 0 || len(channel) != 1 {
			return nil, fmt.Errorf("color channel %q: want r, g, b or a", channel)
		}
		return func(p *scatter.Point) float64 {
			c, _ := t.Color(p, name)
			return c[ch]
		}, nil
	case AttrUV:
		ch := strings.Index("uv", channel)
		if ch < 0 || len(channel) != 1 {
			return nil, fmt.Errorf("uv channel %q: want u or v", channel)
		}
		return func(p *scatter.Point) float64 {
			uv, _ := t.UV(p, name)
			return uv[ch]
		}, nil
	case AttrMaterial:
		return func(p *scatter.Point) float64 {
			idx, _ := t.Material(p)
			return float64(idx)
		}, nil
	case AttrInt:
		return func(p *scatter.Point) float64 {
			v, _ := t.Int(p, rest)
			return float64(v)
		}, nil
	}
	return nil, fmt.Errorf("unknown attribute family %q", family)
}
