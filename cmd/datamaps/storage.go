package main

import (
	"fmt"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/storage"
)

// openStorage creates and initialises the configured blob backend
func openStorage() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, SlogManager)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return nil, fmt.Errorf("initializing %s storage: %w", storageCfg.Type, err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

func closeStorage(backend storage.Backend) {
	if err := backend.Close(); err != nil {
		Logger.Warn("Failed to close storage backend", "error", err)
	}
}
