package state

import "github.com/mesh-intelligence/bloomstate/pkg/types"

// Binding is one interface collection of a module: its name and direction.
type Binding struct {
	Name string           `json:"name" yaml:"name"`
	Mode types.AccessMode `json:"mode" yaml:"mode"`
}

// Boundary records the input and output collections other instances bind to.
type Boundary struct {
	bindings []Binding
}

// Record adds a binding.
func (b *Boundary) Record(name string, mode types.AccessMode) {
	b.bindings = append(b.bindings, Binding{Name: name, Mode: mode})
}

// Bindings returns every binding in declaration order.
func (b *Boundary) Bindings() []Binding {
	return append([]Binding(nil), b.bindings...)
}

// Inputs returns the names of input collections.
func (b *Boundary) Inputs() []string { return b.names(types.Input) }

// Outputs returns the names of output collections.
func (b *Boundary) Outputs() []string { return b.names(types.Output) }

func (b *Boundary) names(mode types.AccessMode) []string {
	var out []string
	for _, e := range b.bindings {
		if e.Mode == mode {
			out = append(out, e.Name)
		}
	}
	return out
}
