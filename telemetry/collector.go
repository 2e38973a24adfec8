package telemetry

import (
	"log/slog"
	"sync"
)

// Collector counts emitter events per type and per system. It is safe for
// concurrent use and is usually registered as an emitter subscriber.
type Collector struct {
	mu       sync.Mutex
	counts   map[EventType]int
	points   map[string]int
	failures map[string]int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		counts:   make(map[EventType]int),
		points:   make(map[string]int),
		failures: make(map[string]int),
	}
}

// Record counts e.
func (c *Collector) Record(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[e.Type]++
	switch e.Type {
	case EventComputed:
		c.points[e.System] = e.Points
	case EventFailed:
		c.failures[e.System]++
	case EventSystemRemoved:
		delete(c.points, e.System)
		delete(c.failures, e.System)
	}
}

// Count returns how many events of type t were recorded.
func (c *Collector) Count(t EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}

// Points returns the point count of the last computed stream of system.
func (c *Collector) Points(system string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points[system]
}

// Failures returns how many computes of system failed.
func (c *Collector) Failures(system string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures[system]
}

// LogValue implements slog.LogValuer.
func (c *Collector) LogValue() slog.Value {
	c.mu.Lock()
	defer c.mu.Unlock()
	var attrs []slog.Attr
	for t := range eventNames {
		if n := c.counts[EventType(t)]; n > 0 {
			attrs = append(attrs, slog.Int(EventType(t).String(), n))
		}
	}
	total := 0
	for _, n := range c.points {
		total += n
	}
	attrs = append(attrs, slog.Int("points", total))
	return slog.GroupValue(attrs...)
}
