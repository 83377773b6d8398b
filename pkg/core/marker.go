// pkg/core/marker.go
package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/peterstace/simplefeatures/geom"
)

// Marker is a constructed display object. Its layer list is ordered and the
// first entry is always the group.
type Marker struct {
	ID       string
	Group    *Group
	Instance Instance
	Position geom.XY
	Style    RenderStyle

	mu         sync.RWMutex
	layers     []string
	properties map[string]string
	dismissed  bool
	detached   bool
}

// NewMarker builds a marker over a copy of layers
func NewMarker(id string, group *Group, inst Instance, pos geom.XY, style RenderStyle, layers []string) *Marker {
	m := &Marker{
		ID:         id,
		Group:      group,
		Instance:   inst,
		Position:   pos,
		Style:      style,
		layers:     append([]string(nil), layers...),
		properties: make(map[string]string),
	}
	for _, l := range layers {
		if prop, value, ok := SplitPropertyToken(l); ok {
			m.properties[prop] = value
		}
	}
	return m
}

// GroupID returns the first layer token
func (m *Marker) GroupID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.layers) == 0 {
		return ""
	}
	return m.layers[0]
}

// Layers returns a copy of the attached layer list
func (m *Marker) Layers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.layers...)
}

// LayerKey is the canonical space-joined layer list
func (m *Marker) LayerKey() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return strings.Join(m.layers, " ")
}

// HasLayer reports whether name is attached
func (m *Marker) HasLayer(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.layers {
		if l == name {
			return true
		}
	}
	return false
}

// AppendLayer attaches one more layer. It returns false if already present.
func (m *Marker) AppendLayer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l == name {
			return false
		}
	}
	m.layers = append(m.layers, name)
	if prop, value, ok := SplitPropertyToken(name); ok {
		m.properties[prop] = value
	}
	return true
}

// Property returns a scoped property value such as the bg tie-in
func (m *Marker) Property(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.properties[name]
	return v, ok
}

// Dismissed reports the collection state
func (m *Marker) Dismissed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dismissed
}

// SetDismissed records the collection state
func (m *Marker) SetDismissed(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dismissed = v
}

// Detach marks the marker as removed; it cannot be attached again
func (m *Marker) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
}

// Detached reports whether the marker has been removed
func (m *Marker) Detached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.detached
}

// Label returns the state label, falling back to the group name
func (m *Marker) Label() string {
	if m.Instance.State != nil && m.Instance.State.Label != "" {
		return m.Instance.State.Label
	}
	if m.Group != nil && m.Group.Config.Name != "" {
		return m.Group.Config.Name
	}
	return m.GroupID()
}

// MarkerID derives a stable identity: the explicit uid, or the group plus
// the position at three decimals.
func MarkerID(groupID string, inst Instance) string {
	if inst.State != nil && inst.State.UID != "" {
		return inst.State.UID
	}
	return fmt.Sprintf("M%s@%.3f:%.3f", groupID, inst.Lat, inst.Lon)
}

// PropertyToken builds a synthetic `prop:value` layer token
func PropertyToken(prop, value string) string {
	return prop + ":" + value
}

// SplitPropertyToken splits a `prop:value` token
func SplitPropertyToken(token string) (prop, value string, ok bool) {
	i := strings.IndexByte(token, ':')
	if i <= 0 {
		return "", "", false
	}
	return token[:i], token[i+1:], true
}

// LinkedEvent is relayed between map instances on the same page
type LinkedEvent struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId,omitempty"`
	State   bool   `json:"state"`
	Origin  string `json:"origin,omitempty"`
}
