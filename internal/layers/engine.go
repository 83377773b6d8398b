package layers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OCAP2/datamaps/internal/cache"
	"github.com/OCAP2/datamaps/internal/display"
	"github.com/OCAP2/datamaps/pkg/core"
)

var (
	ErrEmptyLayerList    = errors.New("empty layer list")
	ErrDuplicateLayer    = errors.New("duplicate layer token")
	ErrUnregisteredLayer = errors.New("layer is not registered")
	ErrAlreadyAttached   = errors.New("marker is already attached")
	ErrNotAttached       = errors.New("marker is not attached")
	ErrDetached          = errors.New("marker has been removed")
)

// Option configures an Engine
type Option func(*Engine)

// WithLegacyRequirementMatching stops the group token (first layer) from
// satisfying a hard requirement.
func WithLegacyRequirementMatching() Option {
	return func(e *Engine) {
		e.legacyRequirements = true
	}
}

// Engine owns marker layer membership and decides which markers are shown.
//
// Visibility is a pure function of a marker's layer list and four predicate
// sets, evaluated in order:
//  1. every requireAll layer must be present
//  2. if requireAny is non-empty, at least one of its layers must be present
//  3. no excluded layer may be present
//  4. for each required property, a list carrying any `prop:` token must
//     carry `prop:value`
//
// Results are cached per canonical layer list and the cache is dropped whole
// whenever a predicate changes.
type Engine struct {
	mu       sync.Mutex
	surface  display.Surface
	byLayer  map[string][]*core.Marker
	markers  []*core.Marker
	attached map[*core.Marker]struct{}

	requireAll map[string]struct{}
	requireAny map[string]struct{}
	excluded   map[string]struct{}
	properties map[string]string

	cache              *cache.VisibilityCache
	deferUpdates       bool
	legacyRequirements bool
}

// New creates an Engine that shows markers on surface
func New(surface display.Surface, opts ...Option) *Engine {
	e := &Engine{
		surface:    surface,
		byLayer:    make(map[string][]*core.Marker),
		attached:   make(map[*core.Marker]struct{}),
		requireAll: make(map[string]struct{}),
		requireAny: make(map[string]struct{}),
		excluded:   make(map[string]struct{}),
		properties: make(map[string]string),
		cache:      cache.NewVisibilityCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register ensures a bucket exists for name
func (e *Engine) Register(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registerLocked(name)
}

func (e *Engine) registerLocked(name string) {
	if _, ok := e.byLayer[name]; !ok {
		e.byLayer[name] = nil
	}
}

// IsRegistered reports whether a bucket exists for name
func (e *Engine) IsRegistered(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.byLayer[name]
	return ok
}

// Layers returns every registered layer name, sorted
func (e *Engine) Layers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.byLayer))
	for name := range e.byLayer {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateLayers checks a layer list before any marker is built from it
func (e *Engine) ValidateLayers(layers []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.validateLocked(layers)
}

func (e *Engine) validateLocked(layers []string) error {
	if len(layers) == 0 {
		return ErrEmptyLayerList
	}
	seen := make(map[string]struct{}, len(layers))
	for _, l := range layers {
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateLayer, l)
		}
		seen[l] = struct{}{}
		if _, ok := e.byLayer[l]; !ok {
			return fmt.Errorf("%w: %q", ErrUnregisteredLayer, l)
		}
	}
	return nil
}

// AddMember attaches a marker under its canonical layer list, files it in
// every referenced bucket and applies its initial visibility.
func (e *Engine) AddMember(m *core.Marker) error {
	if m.Detached() {
		return ErrDetached
	}
	layers := m.Layers()

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attached[m]; ok {
		return ErrAlreadyAttached
	}
	if err := e.validateLocked(layers); err != nil {
		return err
	}
	for _, l := range layers {
		e.byLayer[l] = append(e.byLayer[l], m)
	}
	e.markers = append(e.markers, m)
	e.attached[m] = struct{}{}
	e.updateMemberLocked(m)
	return nil
}

// AddMarkerToLayer appends one more layer to an attached marker and
// recomputes its visibility. The layer is registered if needed.
func (e *Engine) AddMarkerToLayer(m *core.Marker, name string) error {
	if m.Detached() {
		return ErrDetached
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.attached[m]; !ok {
		return ErrNotAttached
	}
	if !m.AppendLayer(name) {
		return nil
	}
	e.registerLocked(name)
	e.byLayer[name] = append(e.byLayer[name], m)
	e.updateMemberLocked(m)
	return nil
}

// RemoveMember detaches a marker from the surface and every bucket.
// The marker cannot be added again.
func (e *Engine) RemoveMember(m *core.Marker) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.surface.RemoveMarker(m)
	m.Detach()
	if _, ok := e.attached[m]; !ok {
		return
	}
	delete(e.attached, m)
	for _, l := range m.Layers() {
		e.byLayer[l] = without(e.byLayer[l], m)
	}
	e.markers = without(e.markers, m)
}

func without(list []*core.Marker, m *core.Marker) []*core.Marker {
	for i, x := range list {
		if x == m {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// SetRequirement adds or removes a layer every visible marker must carry
func (e *Engine) SetRequirement(layer string, required bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	setMember(e.requireAll, layer, required)
	e.cache.Reset()
	e.updateMembersLocked("")
}

// SetInclusion adds or removes a layer from the any-of set
func (e *Engine) SetInclusion(layer string, included bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	setMember(e.requireAny, layer, included)
	e.cache.Reset()
	e.updateMembersLocked("")
}

// SetExclusion hides or unhides every marker carrying layer. Only that
// layer's markers are recomputed.
func (e *Engine) SetExclusion(layer string, excluded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	setMember(e.excluded, layer, excluded)
	e.cache.Reset()
	e.updateMembersLocked(layer)
}

// SetOptionalPropertyRequirement requires markers carrying a `prop:` token
// to carry `prop:value`. A nil value lifts the requirement.
func (e *Engine) SetOptionalPropertyRequirement(prop string, value *string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == nil {
		delete(e.properties, prop)
	} else {
		e.properties[prop] = *value
	}
	e.cache.Reset()
	e.updateMembersLocked("")
}

// SetDeferVisibilityUpdates suspends recomputation while true. Switching it
// off recomputes every marker once.
func (e *Engine) SetDeferVisibilityUpdates(deferred bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deferUpdates = deferred
	if !deferred {
		e.updateMembersLocked("")
	}
}

// VisibilityUpdatesDeferred reports whether recomputation is suspended
func (e *Engine) VisibilityUpdatesDeferred() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deferUpdates
}

func setMember(set map[string]struct{}, key string, on bool) {
	if on {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}
}

// ShouldBeVisible evaluates a layer list against the current predicates
func (e *Engine) ShouldBeVisible(layers []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shouldBeVisibleLocked(strings.Join(layers, " "), layers)
}

func (e *Engine) shouldBeVisibleLocked(key string, layers []string) bool {
	if v, ok := e.cache.Get(key); ok {
		return v
	}
	v := e.evaluate(layers)
	e.cache.Set(key, v)
	return v
}

func (e *Engine) evaluate(layers []string) bool {
	for req := range e.requireAll {
		idx := indexOf(layers, req)
		if idx < 0 || (e.legacyRequirements && idx == 0) {
			return false
		}
	}

	if len(e.requireAny) > 0 {
		found := false
		for _, l := range layers {
			if _, ok := e.requireAny[l]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, l := range layers {
		if _, ok := e.excluded[l]; ok {
			return false
		}
	}

	for prop, value := range e.properties {
		prefix := prop + ":"
		want := prefix + value
		carries, matches := false, false
		for _, l := range layers {
			if strings.HasPrefix(l, prefix) {
				carries = true
				if l == want {
					matches = true
				}
			}
		}
		if carries && !matches {
			return false
		}
	}
	return true
}

func indexOf(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

// UpdateMember recomputes one marker
func (e *Engine) UpdateMember(m *core.Marker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateMemberLocked(m)
}

// UpdateMembers recomputes the markers of layer, or every marker when layer
// is empty
func (e *Engine) UpdateMembers(layer string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateMembersLocked(layer)
}

func (e *Engine) updateMembersLocked(layer string) {
	if e.deferUpdates {
		return
	}
	list := e.markers
	if layer != "" {
		list = e.byLayer[layer]
	}
	for _, m := range list {
		e.updateMemberLocked(m)
	}
}

func (e *Engine) updateMemberLocked(m *core.Marker) {
	if e.deferUpdates {
		return
	}
	if _, ok := e.attached[m]; !ok {
		return
	}
	layers := m.Layers()
	if e.shouldBeVisibleLocked(strings.Join(layers, " "), layers) {
		e.surface.AddMarker(m)
	} else {
		e.surface.RemoveMarker(m)
	}
}

// ByLayer returns the markers filed under name
func (e *Engine) ByLayer(name string) []*core.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*core.Marker(nil), e.byLayer[name]...)
}

// Markers returns every attached marker in insertion order
func (e *Engine) Markers() []*core.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*core.Marker(nil), e.markers...)
}

// CachedKeys reports how many layer lists currently have a cached result
func (e *Engine) CachedKeys() int {
	return e.cache.Len()
}
