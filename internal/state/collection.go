package state

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// base holds the keyed tuple set shared by every collection variant.
type base struct {
	name        string
	kind        types.Kind
	schema      types.Schema
	persistence types.Persistence
	access      types.AccessMode

	rows  map[string]types.Tuple
	order []string
}

func newBase(name string, kind types.Kind, schema types.Schema, p types.Persistence) *base {
	return &base{
		name:        name,
		kind:        kind,
		schema:      schema,
		persistence: p,
		rows:        make(map[string]types.Tuple),
	}
}

func (b *base) Name() string                   { return b.name }
func (b *base) Kind() types.Kind               { return b.kind }
func (b *base) Schema() (types.Schema, error)  { return b.schema.Clone(), nil }
func (b *base) Persistence() types.Persistence { return b.persistence }
func (b *base) Access() types.AccessMode       { return b.access }
func (b *base) Len() int                       { return len(b.rows) }

func (b *base) Insert(t types.Tuple) error {
	_, err := b.insert(t)
	return err
}

// insert adds t and reports whether it was new. An identical tuple is a
// no-op; a different tuple under the same key fails ErrKeyConflict.
func (b *base) insert(t types.Tuple) (bool, error) {
	if len(t) != b.schema.Arity() {
		return false, fmt.Errorf("%w: %s expects %d columns, got %d", types.ErrArityMismatch, b.name, b.schema.Arity(), len(t))
	}
	k, err := types.EncodeKey(types.KeyOf(b.schema, t))
	if err != nil {
		return false, err
	}
	if prev, ok := b.rows[k]; ok {
		if types.SameTuple(prev, t) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %s key %s", types.ErrKeyConflict, b.name, k)
	}
	b.rows[k] = append(types.Tuple(nil), t...)
	b.order = append(b.order, k)
	return true, nil
}

func (b *base) Tuples() []types.Tuple {
	out := make([]types.Tuple, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, append(types.Tuple(nil), b.rows[k]...))
	}
	return out
}

func (b *base) Reset() {
	b.rows = make(map[string]types.Tuple)
	b.order = nil
}

// Table is an in-memory collection whose contents last for the lifetime of
// the instance.
type Table struct{ *base }

// Scratch is a transient collection cleared at the end of every tick.
// Interface collections are scratches with an input or output access mode.
type Scratch struct{ *base }

// ReadOnly is a transient collection that may be written once per tick.
type ReadOnly struct {
	*base
	written bool
}

// Insert writes a single tuple; it counts as the tick's one write.
func (r *ReadOnly) Insert(t types.Tuple) error { return r.Write(t) }

// Write fills the collection with ts. A second Write before Reset fails
// ErrReadOnlyCollection.
func (r *ReadOnly) Write(ts ...types.Tuple) error {
	if r.written {
		return fmt.Errorf("%w: %s already written this tick", types.ErrReadOnlyCollection, r.name)
	}
	for _, t := range ts {
		if _, err := r.insert(t); err != nil {
			r.base.Reset()
			return err
		}
	}
	r.written = true
	return nil
}

func (r *ReadOnly) Reset() {
	r.base.Reset()
	r.written = false
}

// Temp is a transient collection whose schema is fixed by the first
// assignment rather than at declaration.
type Temp struct {
	*base
	resolved bool
}

// Resolved reports whether the schema has been set.
func (t *Temp) Resolved() bool { return t.resolved }

// ResolveSchema sets the schema. Resolving again with an equal schema is a
// no-op; a different schema fails ErrSchemaResolved.
func (t *Temp) ResolveSchema(s types.Schema) error {
	if t.resolved {
		if t.schema.Equal(s) {
			return nil
		}
		return fmt.Errorf("%w: %s has schema %s", types.ErrSchemaResolved, t.name, t.schema)
	}
	if err := plainSchema(s); err != nil {
		return err
	}
	t.schema = s.Clone()
	t.resolved = true
	return nil
}

func (t *Temp) Schema() (types.Schema, error) {
	if !t.resolved {
		return types.Schema{}, fmt.Errorf("%w: %s", types.ErrSchemaUnresolved, t.name)
	}
	return t.schema.Clone(), nil
}

func (t *Temp) Insert(tu types.Tuple) error {
	if !t.resolved {
		return fmt.Errorf("%w: %s", types.ErrSchemaUnresolved, t.name)
	}
	return t.base.Insert(tu)
}

// schemaOrDefault validates an optional declared schema.
func schemaOrDefault(s *types.Schema) (types.Schema, error) {
	if s == nil {
		return types.DefaultSchema(), nil
	}
	if err := plainSchema(*s); err != nil {
		return types.Schema{}, err
	}
	return s.Clone(), nil
}

// plainSchema validates a schema that may not carry address fields.
func plainSchema(s types.Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, f := range s.Columns() {
		if strings.HasPrefix(f, types.AddressMarker) {
			return fmt.Errorf("%w: address field %q is only valid on channels", types.ErrInvalidSchema, f)
		}
	}
	return nil
}
