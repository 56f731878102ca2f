package types

import "errors"

// Kind identifies the collection variant a declaration produced.
type Kind int

const (
	KindTable Kind = iota
	KindScratch
	KindTemp
	KindReadOnly
	KindChannel
	KindFileReader
	KindPeriodic
	KindTerminal
	KindSyncStore
	KindAsyncStore
)

var kindNames = [...]string{
	KindTable:      "table",
	KindScratch:    "scratch",
	KindTemp:       "temp",
	KindReadOnly:   "readonly",
	KindChannel:    "channel",
	KindFileReader: "file_reader",
	KindPeriodic:   "periodic",
	KindTerminal:   "terminal",
	KindSyncStore:  "sync",
	KindAsyncStore: "store",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Persistence tells the evaluation engine whether a collection's contents
// survive the end of a tick.
type Persistence int

const (
	// Transient contents are cleared at the end of every tick.
	Transient Persistence = iota
	// Durable contents live in memory for the lifetime of the instance.
	Durable
	// DurableSync contents are flushed synchronously to a storage backend.
	DurableSync
	// DurableAsync contents are flushed asynchronously to a storage backend.
	DurableAsync
)

func (p Persistence) String() string {
	switch p {
	case Transient:
		return "transient"
	case Durable:
		return "durable"
	case DurableSync:
		return "durable-sync"
	case DurableAsync:
		return "durable-async"
	default:
		return "unknown"
	}
}

// SurvivesTick reports whether state persists across evaluation ticks.
func (p Persistence) SurvivesTick() bool { return p != Transient }

// AccessMode records whether a collection is part of a module's interface.
type AccessMode int

const (
	Internal AccessMode = iota
	Input
	Output
)

func (m AccessMode) String() string {
	switch m {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "internal"
	}
}

// IsInput reports whether m marks an input interface.
func (m AccessMode) IsInput() bool { return m == Input }

// IsOutput reports whether m marks an output interface.
func (m AccessMode) IsOutput() bool { return m == Output }

// ParseAccessMode maps "input" and "output" to their modes.
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "input":
		return Input, nil
	case "output":
		return Output, nil
	default:
		return Internal, ErrInvalidMode
	}
}

// Collection is the capability every declared collection provides: a stable
// name, a schema, a persistence class and tuple access for the engine.
type Collection interface {
	Name() string
	Kind() Kind

	// Schema returns the collection's schema, or ErrSchemaUnresolved for a
	// temp collection that has not been assigned one yet.
	Schema() (Schema, error)

	Persistence() Persistence
	Access() AccessMode

	// Insert adds a tuple. Returns ErrKeyConflict when a different tuple with
	// the same key is already present.
	Insert(t Tuple) error

	// Tuples returns the current contents in insertion order.
	Tuples() []Tuple

	Len() int

	// Reset clears the contents; the engine calls it at tick end for
	// transient collections.
	Reset()
}

// CollectionMethods lists the operations of the generic, non-monotonic
// collection surface. Lattice operations sharing one of these names risk
// being confused with the collection method by rule rewriting.
var CollectionMethods = []string{
	"name", "kind", "schema", "insert", "tuples", "len", "reset",
	"each", "group", "argmin", "argmax", "reduce", "inspected",
	"notin", "exists", "include", "keys", "values", "sort",
}

// Collection declaration errors.
var (
	ErrNameConflict          = errors.New("name conflict")
	ErrInvalidName           = errors.New("invalid collection name")
	ErrInvalidSchema         = errors.New("invalid schema")
	ErrInvalidMode           = errors.New("interface mode must be input or output")
	ErrConflictingSingleton  = errors.New("conflicting terminal registration")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrInvalidPeriod         = errors.New("period must be a positive whole number of seconds")
	ErrMissingAddress        = errors.New("channel schema must start with an @address key field")
)

// Collection access errors.
var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrNotQueryable       = errors.New("lattice collections have no query form")
	ErrKeyConflict        = errors.New("key conflict")
	ErrArityMismatch      = errors.New("tuple arity does not match schema")
	ErrSchemaUnresolved   = errors.New("schema not resolved")
	ErrSchemaResolved     = errors.New("schema already resolved")
	ErrReadOnlyCollection = errors.New("collection does not accept inserts")
)
