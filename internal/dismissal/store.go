package dismissal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/OCAP2/datamaps/internal/storage"
	"github.com/OCAP2/datamaps/pkg/core"
)

const (
	keyPrefix   = "datamaps."
	localScope  = "local"
	globalScope = "global"
	groupPrefix = "#"
)

// LocalKey is the storage key of a map's own scope. Map IDs live under
// their own namespace so no ID can name the global scope.
func LocalKey(mapID string) string {
	return keyPrefix + localScope + "." + mapID
}

// GlobalKey is the storage key shared by every map
func GlobalKey() string {
	return keyPrefix + globalScope
}

// blob is the persisted layout of one scope
type blob struct {
	Dismissed  []string `json:"dismissed"`
	Background *int     `json:"background,omitempty"`
}

// Store records which markers and groups are dismissed in one scope.
// Reads and toggles are served from memory; Commit persists.
type Store struct {
	mu         sync.RWMutex
	backend    storage.Backend
	key        string
	dismissed  map[string]struct{}
	background *int
}

// Open loads the scope stored under key
func Open(backend storage.Backend, key string) (*Store, error) {
	s := &Store{
		backend:   backend,
		key:       key,
		dismissed: make(map[string]struct{}),
	}
	raw, ok, err := backend.Load(key)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok {
		return s, nil
	}
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	for _, id := range b.Dismissed {
		s.dismissed[id] = struct{}{}
	}
	s.background = b.Background
	return s, nil
}

// Key returns the storage key of this scope
func (s *Store) Key() string {
	return s.key
}

func entryID(id string, isGroup bool) string {
	if isGroup {
		return groupPrefix + id
	}
	return id
}

// IsDismissed reports whether a marker, or a whole group, is dismissed
func (s *Store) IsDismissed(id string, isGroup bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dismissed[entryID(id, isGroup)]
	return ok
}

// ToggleDismissal flips the state and persists it. The new state is visible
// to IsDismissed before persistence is attempted.
func (s *Store) ToggleDismissal(id string, isGroup bool) (bool, error) {
	s.mu.Lock()
	key := entryID(id, isGroup)
	_, was := s.dismissed[key]
	if was {
		delete(s.dismissed, key)
	} else {
		s.dismissed[key] = struct{}{}
	}
	s.mu.Unlock()

	return !was, s.Commit()
}

// Apply sets a state already committed elsewhere, without persisting
func (s *Store) Apply(id string, isGroup, dismissed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entryID(id, isGroup)
	if dismissed {
		s.dismissed[key] = struct{}{}
	} else {
		delete(s.dismissed, key)
	}
}

// Background returns the stored background preference
func (s *Store) Background() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.background == nil {
		return 0, false
	}
	return *s.background, true
}

// SetBackground stores the background preference and persists it
func (s *Store) SetBackground(index int) error {
	s.mu.Lock()
	s.background = &index
	s.mu.Unlock()
	return s.Commit()
}

// Dismissed returns every dismissed entry, groups prefixed with '#', sorted
func (s *Store) Dismissed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []string {
	out := make([]string, 0, len(s.dismissed))
	for id := range s.dismissed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear forgets every dismissal and persists the empty state
func (s *Store) Clear() error {
	s.mu.Lock()
	s.dismissed = make(map[string]struct{})
	s.mu.Unlock()
	return s.Commit()
}

// Commit writes the current state to the backend
func (s *Store) Commit() error {
	s.mu.RLock()
	b := blob{Dismissed: s.sortedLocked(), Background: s.background}
	s.mu.RUnlock()

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.key, err)
	}
	if err := s.backend.Save(s.key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", s.key, err)
	}
	return nil
}

// Scopes pairs a map's local store with the page-wide global store
type Scopes struct {
	Local  *Store
	Global *Store
}

// OpenScopes loads both scopes for mapID from one backend
func OpenScopes(backend storage.Backend, mapID string) (*Scopes, error) {
	local, err := Open(backend, LocalKey(mapID))
	if err != nil {
		return nil, err
	}
	global, err := Open(backend, GlobalKey())
	if err != nil {
		return nil, err
	}
	return &Scopes{Local: local, Global: global}, nil
}

// ForGroup returns the global store for global-group collectibles and the
// local store otherwise
func (s *Scopes) ForGroup(mode core.CollectibleMode) *Store {
	if mode == core.CollectibleGlobalGroup {
		return s.Global
	}
	return s.Local
}

// StateOf reads the dismissal state a marker should start with
func (s *Scopes) StateOf(m *core.Marker) bool {
	if m.Group == nil || m.Group.Collectible == core.CollectibleNone {
		return false
	}
	if m.Group.Collectible == core.CollectibleIndividual {
		return s.Local.IsDismissed(m.ID, false)
	}
	return s.ForGroup(m.Group.Collectible).IsDismissed(m.Group.ID, true)
}
