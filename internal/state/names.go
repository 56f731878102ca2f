package state

import (
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// verbs are the instance's own declaration and accessor names. A collection
// may not shadow them.
var verbs = []string{
	"table", "scratch", "readonly", "temp", "channel", "loopback",
	"file_reader", "periodic", "terminal", "sync", "store", "interface",
	"lattice", "input", "output",
	"lookup", "collection", "query", "collections", "channels", "periodics",
	"stores", "lattices", "interfaces", "tick", "end_tick", "open", "flush",
	"close", "id",
}

// checkName enforces that name is an identifier, is not yet declared and
// does not shadow a reserved identifier.
func (in *Instance) checkName(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
	}
	if _, ok := in.tables[name]; ok {
		return fmt.Errorf("%w: collection already exists: %s", types.ErrNameConflict, name)
	}
	if _, ok := in.lattices[name]; ok {
		return fmt.Errorf("%w: collection already exists: %s", types.ErrNameConflict, name)
	}
	if in.reserved[name] {
		return fmt.Errorf("%w: %s is reserved", types.ErrNameConflict, name)
	}
	if in.catalog != nil && in.catalog.Has(name) {
		return fmt.Errorf("%w: %s names a lattice kind", types.ErrNameConflict, name)
	}
	return nil
}
