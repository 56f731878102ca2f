// Package types defines the Collection, StoreAdapter and LatticeKind
// interfaces, the schema and tuple vocabulary, and the standard error values
// shared by the bloomstate packages.
package types
