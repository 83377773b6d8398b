// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/OCAP2/datamaps/internal/config"
)

// Backend keeps blobs in memory, optionally mirrored to a JSON file
type Backend struct {
	cfg   config.MemoryConfig
	blobs map[string][]byte
	dirty bool
	mu    sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		blobs: make(map[string][]byte),
	}
}

// Init loads the mirror file when one is configured and present
func (b *Backend) Init() error {
	if b.cfg.FilePath == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.importFile()
}

// Close flushes pending changes to the mirror file
func (b *Backend) Close() error {
	return b.Flush()
}

// Flush writes the mirror file if anything changed since the last write
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.FilePath == "" || !b.dirty {
		return nil
	}
	if err := b.exportFile(); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

func (b *Backend) Load(key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	blob, ok := b.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (b *Backend) Save(key string, blob []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = append([]byte(nil), blob...)
	b.dirty = true
	return nil
}

// Keys returns every stored key
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.blobs))
	for k := range b.blobs {
		keys = append(keys, k)
	}
	return keys
}
