package types

import (
	"errors"
	"fmt"
)

// StorageConfig holds backend selection and parameters for a persistent
// collection. It is assembled by the sync and store declarations.
type StorageConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Supported backend names.
const (
	BackendEmbeddedDB          = "embedded_db"
	BackendKVEngine            = "kv_engine"
	BackendCoordinationService = "coordination_service"
)

// DefaultCoordinationAddress is used when a coordination-service store does
// not name an address.
const DefaultCoordinationAddress = "localhost:2181"

// Option keys recognised by the store declaration.
const (
	OptionPath    = "path"
	OptionAddress = "address"
)

// Storage configuration errors.
var (
	ErrBackendEmpty          = errors.New("backend must not be empty")
	ErrUnknownStorageEngine  = errors.New("unknown storage engine")
	ErrMissingRequiredOption = errors.New("missing required option")
	ErrInvalidOption         = errors.New("invalid option")
	ErrStoreClosed           = errors.New("store is closed")
	ErrNotFound              = errors.New("tuple not found")
)

// syncBackends lists the backends a sync declaration accepts.
var syncBackends = map[string]bool{
	BackendEmbeddedDB: true,
	BackendKVEngine:   true,
}

// asyncBackends lists the backends a store declaration accepts.
var asyncBackends = map[string]bool{
	BackendCoordinationService: true,
}

// IsSyncBackend reports whether name selects a synchronously flushed backend.
func IsSyncBackend(name string) bool { return syncBackends[name] }

// IsAsyncBackend reports whether name selects an asynchronously flushed backend.
func IsAsyncBackend(name string) bool { return asyncBackends[name] }

// Persistence returns the persistence class implied by the backend, or
// Transient when the backend is unknown.
func (c StorageConfig) Persistence() Persistence {
	switch {
	case syncBackends[c.Backend]:
		return DurableSync
	case asyncBackends[c.Backend]:
		return DurableAsync
	default:
		return Transient
	}
}

// Validate checks that the StorageConfig is well-formed and fills in the
// coordination-service address default. It returns a sentinel error from this
// package on failure.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !syncBackends[c.Backend] && !asyncBackends[c.Backend] {
		return fmt.Errorf("%w: %s", ErrUnknownStorageEngine, c.Backend)
	}
	if c.Backend == BackendCoordinationService {
		if c.Path == "" {
			return fmt.Errorf("%w: %s requires %q", ErrMissingRequiredOption, c.Backend, OptionPath)
		}
		if c.Address == "" {
			c.Address = DefaultCoordinationAddress
		}
	}
	return nil
}
