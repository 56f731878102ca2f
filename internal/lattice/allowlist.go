package lattice

// MonotoneAllowList names the operators rule rewriting treats as monotone
// a priori. A lattice kind that defines one of them must classify it as a
// morphism or an ord-map.
var MonotoneAllowList = []string{
	"eq", "plus", "minus", "lt", "le", "gt", "ge", "times",
	"pairs", "matches", "combos", "flatten", "lefts", "rights",
	"map", "flat_map", "pro",
	"cols", "key_cols", "val_cols", "payloads", "current_value",
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
