// Package bloom is the public entry point: a process-wide lattice catalog and
// per-instance collection registries built against it, with implementation
// details kept internal.
//
// Example:
//
//	catalog, err := bloom.NewCatalog(bloom.WithBuiltins())
//	if err != nil {
//	    return err
//	}
//	defer catalog.Close()
//
//	in := bloom.NewInstance(catalog, bloom.WithDataDir(".bloom-db"))
//	link, err := in.Table("link", &types.Schema{Key: []string{"from", "to"}, Value: []string{"cost"}})
package bloom

import (
	"github.com/mesh-intelligence/bloomstate/internal/lattice"
	"github.com/mesh-intelligence/bloomstate/internal/state"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Version is the bloomstate release.
const Version = "0.1.0"

type (
	// Catalog is the process-wide lattice kind registry and verifier.
	Catalog = lattice.Catalog
	// CatalogOption configures a Catalog.
	CatalogOption = lattice.Option
	// Def is the stock LatticeKind implementation.
	Def = lattice.Def

	// Instance is one runtime instance's collection namespace.
	Instance = state.Instance
	// InstanceOption configures an Instance.
	InstanceOption = state.Option
	// LatticeOptions configures a lattice declaration.
	LatticeOptions = state.LatticeOptions
)

// Catalog options.
var (
	WithBuiltins         = lattice.WithBuiltins
	WithCatalogLogger    = lattice.WithLogger
	WithStrictCollisions = lattice.WithStrictCollisions
	WithRegisterer       = lattice.WithRegisterer
	WithAllowList        = lattice.WithAllowList
)

// Instance options.
var (
	WithDataDir        = state.WithDataDir
	WithLogger         = state.WithLogger
	WithReserved       = state.WithReserved
	WithStorageFactory = state.WithStorageFactory
)

// NewCatalog creates a lattice catalog. Call Close at shutdown.
func NewCatalog(opts ...CatalogOption) (*Catalog, error) {
	return lattice.NewCatalog(opts...)
}

// NewInstance creates an empty instance resolving lattice kinds through
// catalog.
func NewInstance(catalog *Catalog, opts ...InstanceOption) *Instance {
	return state.New(catalog, opts...)
}

// NewKind starts a lattice kind definition with the given merge function.
func NewKind(name string, merge types.MergeFunc) *Def {
	return lattice.NewDef(name, merge)
}
