package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// AddressMarker prefixes a field name to mark it as carrying a network address.
const AddressMarker = "@"

// Default field names for collections declared without a schema.
const (
	DefaultKeyField   = "key"
	DefaultValueField = "val"
	AddressField      = "address"
)

// Schema is the ordered pair of key and value field lists that describes the
// tuples stored in a collection.
type Schema struct {
	Key   []string `json:"key" yaml:"key"`
	Value []string `json:"value" yaml:"value"`
}

// DefaultSchema returns the schema used when a declaration supplies none:
// key => [val].
func DefaultSchema() Schema {
	return Schema{Key: []string{DefaultKeyField}, Value: []string{DefaultValueField}}
}

// NewSchema builds a Schema from key and value field lists.
func NewSchema(key []string, value ...string) Schema {
	return Schema{Key: append([]string(nil), key...), Value: append([]string(nil), value...)}
}

// Validate checks that the schema has at least one key field and that no
// field name is empty or repeated. Field names may carry the address marker.
func (s Schema) Validate() error {
	if len(s.Key) == 0 {
		return fmt.Errorf("%w: at least one key field is required", ErrInvalidSchema)
	}
	seen := make(map[string]bool, s.Arity())
	for _, f := range s.Columns() {
		name := strings.TrimPrefix(f, AddressMarker)
		if name == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidSchema)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidSchema, name)
		}
		seen[name] = true
	}
	return nil
}

// Columns returns key fields followed by value fields.
func (s Schema) Columns() []string {
	cols := make([]string, 0, s.Arity())
	cols = append(cols, s.Key...)
	return append(cols, s.Value...)
}

// Arity is the number of columns in a tuple of this schema.
func (s Schema) Arity() int { return len(s.Key) + len(s.Value) }

// Equal reports whether two schemas have the same fields in the same order.
func (s Schema) Equal(o Schema) bool {
	return equalFields(s.Key, o.Key) && equalFields(s.Value, o.Value)
}

// Clone returns a deep copy of s.
func (s Schema) Clone() Schema {
	return NewSchema(s.Key, s.Value...)
}

// String renders the schema as [k1, k2] => [v1].
func (s Schema) String() string {
	return fmt.Sprintf("[%s] => [%s]", strings.Join(s.Key, ", "), strings.Join(s.Value, ", "))
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Tuple is one fact of a collection: key columns followed by value columns.
type Tuple []any

// KeyOf returns the key columns of t under schema s.
func KeyOf(s Schema, t Tuple) []any {
	return append([]any(nil), t[:len(s.Key)]...)
}

// EncodeKey renders key columns as a stable string, used to index tuples.
func EncodeKey(key []any) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	return string(b), nil
}

// SameTuple reports whether a and b hold the same values once encoded. Tuples
// read back from a store carry numbers as float64, so 1 and 1.0 compare equal.
func SameTuple(a, b Tuple) bool {
	if len(a) != len(b) {
		return false
	}
	ea, errA := json.Marshal(a)
	eb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ea, eb)
}
