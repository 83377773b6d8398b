package display

import (
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/datamaps/pkg/core"
)

// BackgroundSurface is implemented by surfaces that can draw base images
type BackgroundSurface interface {
	SetBackground(image string, at geom.Envelope, overlays []Shape)
}

// Holder stands in for a surface that is attached later. Calls made before
// Attach are dropped.
type Holder struct {
	mu      sync.RWMutex
	surface Surface
}

// NewHolder creates an empty Holder
func NewHolder() *Holder {
	return &Holder{}
}

// Attach sets the surface every later call is forwarded to
func (h *Holder) Attach(s Surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.surface = s
}

// Surface returns the attached surface, or nil
func (h *Holder) Surface() Surface {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.surface
}

func (h *Holder) AddMarker(m *core.Marker) {
	if s := h.Surface(); s != nil {
		s.AddMarker(m)
	}
}

func (h *Holder) RemoveMarker(m *core.Marker) {
	if s := h.Surface(); s != nil {
		s.RemoveMarker(m)
	}
}

func (h *Holder) HasMarker(m *core.Marker) bool {
	if s := h.Surface(); s != nil {
		return s.HasMarker(m)
	}
	return false
}

func (h *Holder) SetMaxBounds(env geom.Envelope) {
	if s := h.Surface(); s != nil {
		s.SetMaxBounds(env)
	}
}

// SetBackground forwards when the attached surface draws backgrounds
func (h *Holder) SetBackground(image string, at geom.Envelope, overlays []Shape) {
	if bs, ok := h.Surface().(BackgroundSurface); ok {
		bs.SetBackground(image, at, overlays)
	}
}
