package types

import (
	"errors"
	"fmt"
)

// Classification is the monotonicity class the catalog records for an
// operation name.
type Classification int

const (
	Unclassified Classification = iota
	// Morphism marks an operation that preserves the lattice order.
	Morphism
	// OrdMap marks an order-embedding into another ordered representation.
	OrdMap
)

func (c Classification) String() string {
	switch c {
	case Morphism:
		return "morphism"
	case OrdMap:
		return "ord_map"
	default:
		return "unclassified"
	}
}

// MergeFunc combines two lattice values. It must be idempotent, commutative
// and associative. A nil accumulator stands for the lattice's bottom.
type MergeFunc func(acc, v any) (any, error)

// LatticeKind is a user-extensible merge type. Implementations declare their
// operations explicitly; nothing is discovered by reflection.
type LatticeKind interface {
	// KindName is the name used to declare collections of this kind.
	KindName() string

	// MergeFunc returns the kind's merge, or nil if it defines none.
	MergeFunc() MergeFunc

	Morphisms() []string
	OrdMaps() []string

	// Methods is the full set of operation names the kind defines, including
	// its morphisms and ord-maps.
	Methods() []string
}

// Lattice kind errors.
var (
	ErrMissingMergeFunction      = errors.New("lattice does not define a merge function")
	ErrMustBeOrdMap              = errors.New("method must be an ord_map")
	ErrMustBeMorphism            = errors.New("method must be a morphism")
	ErrMustBeMonotone            = errors.New("method must be monotone")
	ErrCollectionMethodCollision = errors.New("monotone method collides with a collection method")
	ErrUnknownLatticeKind        = errors.New("unknown lattice kind")
	ErrInvalidLatticeValue       = errors.New("value does not belong to the lattice")
	ErrCatalogClosed             = errors.New("lattice catalog is closed")
)

// KindError reports a verification failure for one operation of a lattice
// kind. Op is empty when the failure concerns the kind as a whole.
type KindError struct {
	Kind string
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("lattice %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("method %s in lattice %s: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }
