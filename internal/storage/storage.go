// internal/storage/storage.go
package storage

// Backend is the interface all storage implementations must satisfy.
// It persists small JSON blobs, one per scope key.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Load returns the blob stored under key; ok is false when nothing is stored
	Load(key string) (blob []byte, ok bool, err error)
	// Save replaces the blob stored under key
	Save(key string, blob []byte) error
}
