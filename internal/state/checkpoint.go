package state

// Checkpoint marks how far an instance's declarations reached.
type Checkpoint struct {
	decls    int
	channels int
	stores   int
	bindings int
	terminal *Terminal
}

// Checkpoint returns a mark that Rollback can return the instance to.
func (in *Instance) Checkpoint() Checkpoint {
	return Checkpoint{
		decls:    len(in.order),
		channels: len(in.channels),
		stores:   len(in.stores),
		bindings: len(in.boundary.bindings),
		terminal: in.terminal,
	}
}

// Rollback removes every collection and lattice declared after cp. Stores
// declared after cp are closed. Lattice kinds verified in the meantime stay
// verified in the catalog.
func (in *Instance) Rollback(cp Checkpoint) {
	if cp.decls > len(in.order) {
		return
	}
	for _, n := range in.order[cp.decls:] {
		delete(in.tables, n)
		delete(in.lattices, n)
		delete(in.periodics, n)
	}
	for _, s := range in.stores[cp.stores:] {
		_ = s.Close()
	}
	in.order = in.order[:cp.decls]
	in.channels = in.channels[:cp.channels]
	in.stores = in.stores[:cp.stores]
	in.boundary.bindings = in.boundary.bindings[:cp.bindings]
	in.terminal = cp.terminal
}
