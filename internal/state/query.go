package state

import (
	"fmt"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Handle is the typed reference returned by Lookup. Exactly one of
// Collection and Lattice is set.
type Handle struct {
	Collection types.Collection
	Lattice    *Wrapper
}

// Name returns the declared name behind the handle.
func (h Handle) Name() string {
	if h.Lattice != nil {
		return h.Lattice.Name()
	}
	return h.Collection.Name()
}

// IsLattice reports whether the handle refers to a lattice wrapper.
func (h Handle) IsLattice() bool { return h.Lattice != nil }

// ProjectFunc maps a tuple to a derived tuple. Returning false drops it.
type ProjectFunc func(types.Tuple) (types.Tuple, bool)

// Projection is a derived view over a collection. It is evaluated each time
// Tuples is called and never modifies the source.
type Projection struct {
	src types.Collection
	fn  ProjectFunc
}

// Source returns the collection the projection reads from.
func (p *Projection) Source() types.Collection { return p.src }

// Tuples evaluates the projection against the source's current contents.
func (p *Projection) Tuples() []types.Tuple {
	in := p.src.Tuples()
	out := make([]types.Tuple, 0, len(in))
	for _, t := range in {
		if p.fn == nil {
			out = append(out, t)
			continue
		}
		if mapped, ok := p.fn(t); ok {
			out = append(out, mapped)
		}
	}
	return out
}

// Lookup resolves a declared collection or lattice by name.
func (in *Instance) Lookup(name string) (Handle, error) {
	if c, ok := in.tables[name]; ok {
		return Handle{Collection: c}, nil
	}
	if w, ok := in.lattices[name]; ok {
		return Handle{Lattice: w}, nil
	}
	return Handle{}, fmt.Errorf("%w: %s", types.ErrCollectionNotFound, name)
}

// Collection returns the named collection.
func (in *Instance) Collection(name string) (types.Collection, error) {
	h, err := in.Lookup(name)
	if err != nil {
		return nil, err
	}
	if h.IsLattice() {
		return nil, fmt.Errorf("%w: %s is a lattice", types.ErrCollectionNotFound, name)
	}
	return h.Collection, nil
}

// LatticeWrapper returns the named lattice wrapper.
func (in *Instance) LatticeWrapper(name string) (*Wrapper, error) {
	w, ok := in.lattices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrCollectionNotFound, name)
	}
	return w, nil
}

// Query returns a lazy projection of the named collection through fn. A nil
// fn yields the collection's tuples unchanged. Lattices have no query form.
func (in *Instance) Query(name string, fn ProjectFunc) (*Projection, error) {
	h, err := in.Lookup(name)
	if err != nil {
		return nil, err
	}
	if h.IsLattice() {
		return nil, fmt.Errorf("%w: %s is a lattice", types.ErrNotQueryable, name)
	}
	return &Projection{src: h.Collection, fn: fn}, nil
}
