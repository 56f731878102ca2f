// Package storage selects a StoreAdapter for a persistent collection from its
// StorageConfig.
package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/internal/kvfile"
	"github.com/mesh-intelligence/bloomstate/internal/sqlite"
	"github.com/mesh-intelligence/bloomstate/internal/zkstore"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Factory builds the adapter for a named collection. Instances take a Factory
// so tests can substitute in-memory adapters.
type Factory func(cfg types.StorageConfig, name string, schema types.Schema) (types.StoreAdapter, error)

// New validates cfg and returns an unopened adapter for the backend it names.
func New(cfg types.StorageConfig, name string, schema types.Schema) (types.StoreAdapter, error) {
	return NewWithLogger(zap.NewNop())(cfg, name, schema)
}

// NewWithLogger returns a Factory whose adapters log through log.
func NewWithLogger(log *zap.Logger) Factory {
	return func(cfg types.StorageConfig, name string, schema types.Schema) (types.StoreAdapter, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		switch cfg.Backend {
		case types.BackendEmbeddedDB:
			return sqlite.New(name, schema, cfg.DataDir), nil
		case types.BackendKVEngine:
			return kvfile.New(name, schema, cfg.DataDir), nil
		case types.BackendCoordinationService:
			return zkstore.New(name, schema, cfg.Path, cfg.Address, zkstore.WithLogger(log)), nil
		default:
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownStorageEngine, cfg.Backend)
		}
	}
}
