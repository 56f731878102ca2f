package lattice

import (
	"fmt"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Builtin kind names.
const (
	KindMax  = "lmax"
	KindMin  = "lmin"
	KindBool = "lbool"
	KindSet  = "lset"
	KindBag  = "lbag"
)

// Set is the value type of lset: a set of comparable elements.
type Set map[any]struct{}

// Bag is the value type of lbag: element multiplicities.
type Bag map[any]int

// Builtins returns fresh definitions of the stock lattice kinds.
func Builtins() []*Def {
	return []*Def{
		NewDef(KindMax, mergeMax).
			Morph("gt", "ge", "plus", "minus").
			Method("reveal"),
		NewDef(KindMin, mergeMin).
			Morph("lt", "le", "plus", "minus").
			Method("reveal"),
		NewDef(KindBool, mergeBool).
			Morph("when_true").
			Method("reveal"),
		NewDef(KindSet, mergeSet).
			Morph("intersect", "pro", "contains").
			OrdMap("size").
			Method("reveal"),
		NewDef(KindBag, mergeBag).
			Morph("intersect", "contains", "times").
			OrdMap("size").
			Method("reveal"),
	}
}

func mergeMax(acc, v any) (any, error) { return mergeOrdered(acc, v, 1) }

func mergeMin(acc, v any) (any, error) { return mergeOrdered(acc, v, -1) }

// mergeOrdered keeps whichever of acc and v compares as dir (1 keeps the
// larger, -1 the smaller).
func mergeOrdered(acc, v any, dir int) (any, error) {
	if acc == nil {
		if _, err := compareNumbers(v, v); err != nil {
			return nil, err
		}
		return v, nil
	}
	c, err := compareNumbers(acc, v)
	if err != nil {
		return nil, err
	}
	if c*dir >= 0 {
		return acc, nil
	}
	return v, nil
}

func mergeBool(acc, v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: lbool got %T", types.ErrInvalidLatticeValue, v)
	}
	if acc == nil {
		return b, nil
	}
	a, ok := acc.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: lbool got %T", types.ErrInvalidLatticeValue, acc)
	}
	return a || b, nil
}

func mergeSet(acc, v any) (any, error) {
	s, ok := v.(Set)
	if !ok {
		return nil, fmt.Errorf("%w: lset got %T", types.ErrInvalidLatticeValue, v)
	}
	out := make(Set, len(s))
	if acc != nil {
		a, ok := acc.(Set)
		if !ok {
			return nil, fmt.Errorf("%w: lset got %T", types.ErrInvalidLatticeValue, acc)
		}
		for e := range a {
			out[e] = struct{}{}
		}
	}
	for e := range s {
		out[e] = struct{}{}
	}
	return out, nil
}

// mergeBag takes the larger multiplicity per element.
func mergeBag(acc, v any) (any, error) {
	b, ok := v.(Bag)
	if !ok {
		return nil, fmt.Errorf("%w: lbag got %T", types.ErrInvalidLatticeValue, v)
	}
	out := make(Bag, len(b))
	if acc != nil {
		a, ok := acc.(Bag)
		if !ok {
			return nil, fmt.Errorf("%w: lbag got %T", types.ErrInvalidLatticeValue, acc)
		}
		for e, n := range a {
			out[e] = n
		}
	}
	for e, n := range b {
		if n < 0 {
			return nil, fmt.Errorf("%w: negative multiplicity for %v", types.ErrInvalidLatticeValue, e)
		}
		if n > out[e] {
			out[e] = n
		}
	}
	return out, nil
}

// compareNumbers orders two numeric values. Integers compare exactly; any
// float operand promotes both sides to float64.
func compareNumbers(a, b any) (int, error) {
	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		return cmp3(ai, bi), nil
	}
	af, ok := asFloat(a)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not numeric", types.ErrInvalidLatticeValue, a)
	}
	bf, ok := asFloat(b)
	if !ok {
		return 0, fmt.Errorf("%w: %T is not numeric", types.ErrInvalidLatticeValue, b)
	}
	return cmp3(af, bf), nil
}

func cmp3[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
