package cache

import "sync"

// VisibilityCache maps canonical layer lists to their computed visibility.
// It is only ever cleared as a whole.
type VisibilityCache struct {
	mu      sync.RWMutex
	entries map[string]bool
}

// NewVisibilityCache creates a new VisibilityCache
func NewVisibilityCache() *VisibilityCache {
	return &VisibilityCache{
		entries: make(map[string]bool),
	}
}

// Get retrieves a cached result by layer key
func (c *VisibilityCache) Get(key string) (visible bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	visible, ok = c.entries[key]
	return visible, ok
}

// Set stores a result by layer key
func (c *VisibilityCache) Set(key string, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = visible
}

// Reset clears every cached result
func (c *VisibilityCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]bool)
}

// Len returns the number of cached layer keys
func (c *VisibilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
