package lattice

import (
	"sort"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// MergeMethod is the operation name every lattice kind must define.
const MergeMethod = "merge"

// Def is the stock LatticeKind implementation. Operations are registered
// explicitly with Morph, OrdMap and Method when the kind is defined.
type Def struct {
	name    string
	merge   types.MergeFunc
	morphs  map[string]bool
	ordMaps map[string]bool
	methods map[string]bool
}

var _ types.LatticeKind = (*Def)(nil)

// NewDef starts a kind definition. merge may be nil, in which case the
// catalog rejects the kind when it is verified.
func NewDef(name string, merge types.MergeFunc) *Def {
	return &Def{
		name:    name,
		merge:   merge,
		morphs:  make(map[string]bool),
		ordMaps: make(map[string]bool),
		methods: make(map[string]bool),
	}
}

// Morph declares ops as morphisms of the kind.
func (d *Def) Morph(ops ...string) *Def {
	for _, op := range ops {
		d.morphs[op] = true
		d.methods[op] = true
	}
	return d
}

// OrdMap declares ops as order-embeddings of the kind.
func (d *Def) OrdMap(ops ...string) *Def {
	for _, op := range ops {
		d.ordMaps[op] = true
		d.methods[op] = true
	}
	return d
}

// Method declares ops as plain, unclassified operations of the kind.
func (d *Def) Method(ops ...string) *Def {
	for _, op := range ops {
		d.methods[op] = true
	}
	return d
}

func (d *Def) KindName() string { return d.name }

func (d *Def) MergeFunc() types.MergeFunc { return d.merge }

func (d *Def) Morphisms() []string { return sortedKeys(d.morphs) }

func (d *Def) OrdMaps() []string { return sortedKeys(d.ordMaps) }

func (d *Def) Methods() []string {
	ms := sortedKeys(d.methods)
	if d.merge != nil && !d.methods[MergeMethod] {
		ms = append(ms, MergeMethod)
		sort.Strings(ms)
	}
	return ms
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
