// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// Snapshot is the mirror file layout: scope key to raw blob
type Snapshot struct {
	Version int                        `json:"version"`
	Blobs   map[string]json.RawMessage `json:"blobs"`
}

const snapshotVersion = 1

// exportFile writes every blob to the mirror file, gzipped when configured.
// Caller holds b.mu.
func (b *Backend) exportFile() error {
	snap := Snapshot{Version: snapshotVersion, Blobs: make(map[string]json.RawMessage, len(b.blobs))}
	for k, v := range b.blobs {
		snap.Blobs[k] = json.RawMessage(v)
	}

	if err := os.MkdirAll(filepath.Dir(b.cfg.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp := b.cfg.FilePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create mirror file: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.Compress {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode mirror file: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close mirror file: %w", err)
	}
	return os.Rename(tmp, b.cfg.FilePath)
}

// importFile replaces the in-memory blobs with the mirror file contents.
// A missing file is not an error. Caller holds b.mu.
func (b *Backend) importFile() error {
	f, err := os.Open(b.cfg.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open mirror file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.Compress {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode mirror file: %w", err)
	}
	b.blobs = make(map[string][]byte, len(snap.Blobs))
	for k, v := range snap.Blobs {
		b.blobs[k] = []byte(v)
	}
	return nil
}
