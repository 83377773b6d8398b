// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/logging"
	"github.com/OCAP2/datamaps/internal/storage/memory"
	"github.com/OCAP2/datamaps/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/datamaps/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		b, err := postgres.New(cfg.Postgres, logManager)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, logManager)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
