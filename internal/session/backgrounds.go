package session

import (
	"fmt"

	"github.com/peterstace/simplefeatures/geom"

	"github.com/OCAP2/datamaps/internal/display"
	"github.com/OCAP2/datamaps/internal/events"
	"github.com/OCAP2/datamaps/pkg/core"
)

// BoundsPadding is added around content bounds before limiting the view,
// in display units along X and Y
var BoundsPadding = [2]float64{150, 200}

// BackgroundProperty is the marker property tied to the current background
const BackgroundProperty = "bg"

type background struct {
	core.Background
	envelope geom.Envelope
	shapes   []display.Shape
}

func (m *Map) prepareBackgrounds() ([]background, error) {
	out := make([]background, 0, len(m.cfg.Backgrounds))
	for i, bg := range m.cfg.Backgrounds {
		prepared := background{Background: bg, envelope: m.transform.TranslateBox(*bg.At)}
		for j, ov := range bg.Overlays {
			shape := display.Shape{Name: ov.Name, Kind: ov.Kind(), Image: ov.Image}
			switch shape.Kind {
			case core.OverlayPolyline:
				path, err := m.transform.TranslatePath(ov.Path)
				if err != nil {
					return nil, &core.ConfigurationError{Unit: fmt.Sprintf("background %d overlay %d", i, j), Err: err}
				}
				shape.Path = path
				shape.Envelope = path.Envelope()
			default:
				if ov.At == nil {
					m.logger.Warn("skipping overlay without a box", "background", i, "overlay", j)
					continue
				}
				shape.Envelope = m.transform.TranslateBox(*ov.At)
			}
			prepared.shapes = append(prepared.shapes, shape)
		}
		out = append(out, prepared)
	}
	return out, nil
}

// SetCurrentBackground switches the shown background without touching the
// stored preference. An out of range index selects the first background.
// Markers tied to another background are hidden.
func (m *Map) SetCurrentBackground(index int) int {
	m.mu.Lock()
	if len(m.backgrounds) == 0 {
		m.mu.Unlock()
		return 0
	}
	if index < 0 || index >= len(m.backgrounds) {
		index = 0
	}
	m.bgIndex = index
	bg := m.backgrounds[index]
	m.mu.Unlock()

	m.holder.SetBackground(bg.Image, bg.envelope, bg.shapes)
	layer := bg.Layer
	m.engine.SetOptionalPropertyRequirement(BackgroundProperty, &layer)

	m.bus.Fire(events.BackgroundChange, index, bg.Background)
	return index
}

// SetBackgroundPreference switches the background and remembers the choice
func (m *Map) SetBackgroundPreference(index int) error {
	if !m.isInitialised() {
		return ErrNotInitialised
	}
	index = m.SetCurrentBackground(index)
	return m.scopes.Local.SetBackground(index)
}

// CurrentBackground returns the index of the shown background
func (m *Map) CurrentBackground() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bgIndex
}

// BackgroundIndex finds the background with the given layer tag
func (m *Map) BackgroundIndex(layer string) (int, bool) {
	for i, bg := range m.cfg.Backgrounds {
		if bg.Layer == layer {
			return i, true
		}
	}
	return -1, false
}

// FocusMarker brings a marker into view: when it is tied to a background
// other than the current one, that background is shown first.
func (m *Map) FocusMarker(mk *core.Marker) error {
	if !m.isInitialised() {
		return ErrNotInitialised
	}
	if layer, ok := mk.Property(BackgroundProperty); ok {
		if i, found := m.BackgroundIndex(layer); found && i != m.CurrentBackground() {
			m.SetCurrentBackground(i)
		}
	}
	m.bus.Fire(events.MarkerFocus, mk)
	return nil
}

// FocusMarkerByID focuses a marker by its identity
func (m *Map) FocusMarkerByID(id string) (*core.Marker, error) {
	mk, ok := m.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("marker %q not found", id)
	}
	return mk, m.FocusMarker(mk)
}

func (m *Map) isInitialised() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialised
}

// ContentBounds covers the current background, its overlays and every
// shown marker
func (m *Map) ContentBounds() geom.Envelope {
	var env geom.Envelope
	m.mu.Lock()
	if len(m.backgrounds) > 0 {
		bg := m.backgrounds[m.bgIndex]
		env = bg.envelope
		for _, s := range bg.shapes {
			env = env.ExpandToIncludeEnvelope(s.Envelope)
		}
	}
	m.mu.Unlock()

	for _, mk := range m.engine.Markers() {
		if m.holder.HasMarker(mk) {
			env = env.ExpandToIncludeXY(mk.Position)
		}
	}
	return env
}

// PaddedContentBounds returns ContentBounds grown by BoundsPadding
func (m *Map) PaddedContentBounds() geom.Envelope {
	lo, hi, ok := m.ContentBounds().MinMaxXYs()
	if !ok {
		return geom.Envelope{}
	}
	return geom.Envelope{}.
		ExpandToIncludeXY(geom.XY{X: lo.X - BoundsPadding[0], Y: lo.Y - BoundsPadding[1]}).
		ExpandToIncludeXY(geom.XY{X: hi.X + BoundsPadding[0], Y: hi.Y + BoundsPadding[1]})
}

// RefreshMaxBounds limits the surface view to the padded content bounds
func (m *Map) RefreshMaxBounds() {
	env := m.PaddedContentBounds()
	if env.IsEmpty() {
		return
	}
	m.holder.SetMaxBounds(env)
}
