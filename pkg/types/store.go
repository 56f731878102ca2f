package types

import "context"

// StoreAdapter is the contract between a persistent collection and its
// storage backend. Adapters are constructed without I/O; Open performs it.
// Keys are the schema's key columns.
type StoreAdapter interface {
	// Open connects to or creates the backing storage.
	Open(ctx context.Context) error

	// Put writes a tuple, replacing any tuple with the same key.
	Put(ctx context.Context, t Tuple) error

	// Get returns the tuple stored under key, or ErrNotFound.
	Get(ctx context.Context, key []any) (Tuple, error)

	// Delete removes the tuple stored under key. Returns ErrNotFound if absent.
	Delete(ctx context.Context, key []any) error

	// Scan returns every stored tuple.
	Scan(ctx context.Context) ([]Tuple, error)

	// Close releases backend resources. Idempotent.
	Close() error
}
