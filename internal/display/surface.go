package display

import (
	"sort"
	"sync"

	"github.com/OCAP2/datamaps/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Surface is where constructed markers are shown. Adding a present marker or
// removing an absent one is a no-op.
type Surface interface {
	AddMarker(m *core.Marker)
	RemoveMarker(m *core.Marker)
	HasMarker(m *core.Marker) bool
	SetMaxBounds(env geom.Envelope)
}

// Shape is a background overlay translated into display space
type Shape struct {
	Name     string
	Kind     core.OverlayKind
	Image    string
	Envelope geom.Envelope
	Path     geom.LineString
}

// Canvas is an in-memory Surface that records what is currently shown
type Canvas struct {
	mu        sync.RWMutex
	markers   map[*core.Marker]struct{}
	maxBounds geom.Envelope
	image     string
	imageAt   geom.Envelope
	overlays  []Shape
}

// NewCanvas creates an empty Canvas
func NewCanvas() *Canvas {
	return &Canvas{
		markers: make(map[*core.Marker]struct{}),
	}
}

func (c *Canvas) AddMarker(m *core.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[m] = struct{}{}
}

func (c *Canvas) RemoveMarker(m *core.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, m)
}

func (c *Canvas) HasMarker(m *core.Marker) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.markers[m]
	return ok
}

func (c *Canvas) SetMaxBounds(env geom.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxBounds = env
}

// MaxBounds returns the last pan limit set
func (c *Canvas) MaxBounds() geom.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxBounds
}

// SetBackground replaces the base image and its overlays
func (c *Canvas) SetBackground(image string, at geom.Envelope, overlays []Shape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.image = image
	c.imageAt = at
	c.overlays = append([]Shape(nil), overlays...)
}

// Background returns the current base image and overlays
func (c *Canvas) Background() (string, []Shape) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.image, append([]Shape(nil), c.overlays...)
}

// Count returns the number of markers shown
func (c *Canvas) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers)
}

// Markers returns shown markers ordered by ID
func (c *Canvas) Markers() []*core.Marker {
	c.mu.RLock()
	out := make([]*core.Marker, 0, len(c.markers))
	for m := range c.markers {
		out = append(out, m)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Envelope covers the background image, overlays and every shown marker
func (c *Canvas) Envelope() geom.Envelope {
	c.mu.RLock()
	defer c.mu.RUnlock()
	env := c.imageAt
	for _, s := range c.overlays {
		env = env.ExpandToIncludeEnvelope(s.Envelope)
	}
	for m := range c.markers {
		env = env.ExpandToIncludeXY(m.Position)
	}
	return env
}
