package cache

import (
	"sync"

	"github.com/OCAP2/datamaps/pkg/core"
)

// MarkerRegistry looks up live markers by identity.
// Positional IDs can collide; the most recent marker wins.
type MarkerRegistry struct {
	m       sync.Mutex
	markers map[string]*core.Marker
}

func NewMarkerRegistry() *MarkerRegistry {
	return &MarkerRegistry{
		markers: make(map[string]*core.Marker),
	}
}

func (c *MarkerRegistry) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.markers = make(map[string]*core.Marker)
}

func (c *MarkerRegistry) Add(m *core.Marker) {
	c.m.Lock()
	defer c.m.Unlock()
	c.markers[m.ID] = m
}

func (c *MarkerRegistry) Get(id string) (*core.Marker, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	m, ok := c.markers[id]
	return m, ok
}

// Remove drops m only if it is still the registered marker for its ID
func (c *MarkerRegistry) Remove(m *core.Marker) {
	c.m.Lock()
	defer c.m.Unlock()
	if cur, ok := c.markers[m.ID]; ok && cur == m {
		delete(c.markers, m.ID)
	}
}

func (c *MarkerRegistry) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.markers)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Add(n int) {
	c.mu.Lock()
	c.v += n
	c.mu.Unlock()
}
