package state

import (
	"fmt"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// LatticeOptions configures a lattice declaration.
type LatticeOptions struct {
	// Scratch resets the value to bottom at the end of every tick.
	Scratch bool
}

// Wrapper binds a verified lattice kind to a named, instance-scoped value.
type Wrapper struct {
	name    string
	kind    types.LatticeKind
	scratch bool
	value   any
}

func (w *Wrapper) Name() string            { return w.name }
func (w *Wrapper) Kind() types.LatticeKind { return w.kind }
func (w *Wrapper) ResetsEachTick() bool    { return w.scratch }

// Persistence is Transient for scratch lattices and Durable otherwise.
func (w *Wrapper) Persistence() types.Persistence {
	if w.scratch {
		return types.Transient
	}
	return types.Durable
}

// Merge folds v into the current value with the kind's merge function.
func (w *Wrapper) Merge(v any) error {
	merged, err := w.kind.MergeFunc()(w.value, v)
	if err != nil {
		return fmt.Errorf("merge into %s: %w", w.name, err)
	}
	w.value = merged
	return nil
}

// Value returns the current value, or nil when the lattice is at bottom.
func (w *Wrapper) Value() any { return w.value }

// Reset returns the value to bottom.
func (w *Wrapper) Reset() { w.value = nil }
