// Package lattice implements the process-wide lattice catalog: the registry
// of lattice kinds, the global table of monotone operation classifications,
// and the verifier that keeps every kind consistent with that table.
//
// A classification, once published by a verified kind, binds every other
// kind that defines an operation of the same name. Checks run against the
// accumulated table and also look back at kinds verified earlier, so the
// accept/reject outcome of a set of kinds does not depend on load order.
package lattice

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Catalog holds lattice kind definitions and the global classification
// table. Create one per process with NewCatalog and Close it at shutdown.
type Catalog struct {
	mu     sync.RWMutex
	closed bool

	defined  map[string]types.LatticeKind
	verified map[string]*entry

	// op name -> kinds that published the classification
	ordMaps map[string]map[string]bool
	morphs  map[string]map[string]bool

	allow       map[string]bool
	collMethods map[string]bool
	strict      bool

	log     *zap.Logger
	reg     prometheus.Registerer
	metrics *catalogMetrics
}

// entry caches the operation sets of a verified kind.
type entry struct {
	kind    types.LatticeKind
	methods map[string]bool
	morphs  map[string]bool
	ordMaps map[string]bool
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for advisory warnings.
func WithLogger(log *zap.Logger) Option {
	return func(c *Catalog) { c.log = log }
}

// WithStrictCollisions turns collection-method collision advisories into
// verification failures.
func WithStrictCollisions(strict bool) Option {
	return func(c *Catalog) { c.strict = strict }
}

// WithRegisterer registers the catalog's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Catalog) { c.reg = reg }
}

// WithAllowList replaces the builtin monotone allow-list.
func WithAllowList(ops ...string) Option {
	return func(c *Catalog) { c.allow = toSet(ops) }
}

// WithBuiltins defines and verifies the stock lattice kinds.
func WithBuiltins() Option {
	return func(c *Catalog) {
		for _, k := range Builtins() {
			c.defined[k.KindName()] = k
		}
	}
}

// NewCatalog creates an empty catalog. Builtin kinds requested with
// WithBuiltins are verified before NewCatalog returns.
func NewCatalog(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		defined:     make(map[string]types.LatticeKind),
		verified:    make(map[string]*entry),
		ordMaps:     make(map[string]map[string]bool),
		morphs:      make(map[string]map[string]bool),
		allow:       toSet(MonotoneAllowList),
		collMethods: toSet(types.CollectionMethods),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	m, err := newCatalogMetrics(c.reg)
	if err != nil {
		return nil, err
	}
	c.metrics = m

	names := make([]string, 0, len(c.defined))
	for name := range c.defined {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := c.Verify(name); err != nil {
			c.metrics.unregister(c.reg)
			return nil, fmt.Errorf("verify builtin: %w", err)
		}
	}
	return c, nil
}

// Close tears the catalog down. Subsequent operations return
// ErrCatalogClosed. Close is idempotent.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.defined = nil
	c.verified = nil
	c.ordMaps = nil
	c.morphs = nil
	c.metrics.unregister(c.reg)
	return nil
}

// Define records a kind without verifying it. Redefining a name with the
// same kind value is a no-op; a different value fails with
// ErrDuplicateRegistration.
func (c *Catalog) Define(k types.LatticeKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrCatalogClosed
	}
	name := k.KindName()
	if name == "" {
		return fmt.Errorf("%w: empty lattice kind name", types.ErrInvalidName)
	}
	if prev, ok := c.defined[name]; ok {
		if sameKind(prev, k) {
			return nil
		}
		return fmt.Errorf("%w: lattice kind %s", types.ErrDuplicateRegistration, name)
	}
	c.defined[name] = k
	return nil
}

// Register defines and verifies k.
func (c *Catalog) Register(k types.LatticeKind) error {
	if err := c.Define(k); err != nil {
		return err
	}
	_, err := c.Verify(k.KindName())
	return err
}

// Verify checks the named kind against the global classification table and
// publishes its classifications. The check and the publication happen under
// one lock so concurrent verifications cannot both pass against a stale
// table. A kind is verified at most once; later calls return the cached kind.
func (c *Catalog) Verify(name string) (types.LatticeKind, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrCatalogClosed
	}
	if e, ok := c.verified[name]; ok {
		return e.kind, nil
	}
	k, ok := c.defined[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownLatticeKind, name)
	}

	e := newEntry(k)
	if err := c.check(name, e); err != nil {
		c.metrics.rejected.WithLabelValues(reason(err)).Inc()
		return nil, err
	}
	c.commit(name, e)
	c.metrics.verified.Inc()
	c.log.Debug("lattice kind verified",
		zap.String("kind", name),
		zap.Strings("morphisms", k.Morphisms()),
		zap.Strings("ord_maps", k.OrdMaps()))
	return k, nil
}

// check runs the verification steps. The caller must hold c.mu.
func (c *Catalog) check(name string, e *entry) error {
	if e.kind.MergeFunc() == nil {
		return &types.KindError{Kind: name, Err: types.ErrMissingMergeFunction}
	}

	methods := sortedKeys(e.methods)

	// An operation classified as an ord_map anywhere must be one here too.
	for _, op := range methods {
		if _, ok := c.ordMaps[op]; ok && !e.ordMaps[op] {
			return &types.KindError{Kind: name, Op: op, Err: types.ErrMustBeOrdMap}
		}
	}
	for _, op := range methods {
		if _, ok := c.morphs[op]; ok && !e.morphs[op] {
			return &types.KindError{Kind: name, Op: op, Err: types.ErrMustBeMorphism}
		}
	}

	for _, op := range methods {
		if c.allow[op] && !e.ordMaps[op] && !e.morphs[op] {
			return &types.KindError{Kind: name, Op: op, Err: types.ErrMustBeMonotone}
		}
	}

	// Classifications this kind introduces bind kinds verified before it.
	if err := c.checkEarlier(name, e.ordMaps, c.ordMaps, func(o *entry) map[string]bool { return o.ordMaps }, types.ErrMustBeOrdMap); err != nil {
		return err
	}
	if err := c.checkEarlier(name, e.morphs, c.morphs, func(o *entry) map[string]bool { return o.morphs }, types.ErrMustBeMorphism); err != nil {
		return err
	}

	for _, op := range sortedKeys(union(e.ordMaps, e.morphs)) {
		if c.allow[op] || !c.collMethods[op] {
			continue
		}
		if c.strict {
			return &types.KindError{Kind: name, Op: op, Err: types.ErrCollectionMethodCollision}
		}
		c.metrics.advisories.Inc()
		c.log.Warn("monotone lattice method conflicts with non-monotonic collection method",
			zap.String("kind", name),
			zap.String("method", op))
	}
	return nil
}

// checkEarlier rejects name when it publishes a new classification for an op
// that an already verified kind defines without that classification.
func (c *Catalog) checkEarlier(name string, mine map[string]bool, global map[string]map[string]bool, class func(*entry) map[string]bool, sentinel error) error {
	for _, op := range sortedKeys(mine) {
		if _, ok := global[op]; ok {
			continue
		}
		for _, other := range sortedEntryNames(c.verified) {
			o := c.verified[other]
			if o.methods[op] && !class(o)[op] {
				return fmt.Errorf("lattice %s conflicts with %w", name,
					&types.KindError{Kind: other, Op: op, Err: sentinel})
			}
		}
	}
	return nil
}

// commit publishes the kind's classifications. The caller must hold c.mu.
func (c *Catalog) commit(name string, e *entry) {
	for op := range e.ordMaps {
		publish(c.ordMaps, op, name)
	}
	for op := range e.morphs {
		publish(c.morphs, op, name)
	}
	c.verified[name] = e
}

func publish(table map[string]map[string]bool, op, kind string) {
	kinds, ok := table[op]
	if !ok {
		kinds = make(map[string]bool)
		table[op] = kinds
	}
	kinds[kind] = true
}

// Lookup returns the kind defined under name, verified or not.
func (c *Catalog) Lookup(name string) (types.LatticeKind, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	k, ok := c.defined[name]
	return k, ok
}

// Has reports whether a kind is defined under name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// IsVerified reports whether the named kind has passed verification.
func (c *Catalog) IsVerified(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.verified[name]
	return ok
}

// Kinds returns the names of verified kinds in sorted order.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return sortedEntryNames(c.verified)
}

// Classification returns the published class of op. Ord-map wins when a
// kind published both.
func (c *Catalog) Classification(op string) types.Classification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.ordMaps[op]; ok {
		return types.OrdMap
	}
	if _, ok := c.morphs[op]; ok {
		return types.Morphism
	}
	return types.Unclassified
}

// Publishers returns the kinds that published a classification for op.
func (c *Catalog) Publishers(op string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return sortedKeys(union(c.ordMaps[op], c.morphs[op]))
}

func newEntry(k types.LatticeKind) *entry {
	e := &entry{
		kind:    k,
		methods: toSet(k.Methods()),
		morphs:  toSet(k.Morphisms()),
		ordMaps: toSet(k.OrdMaps()),
	}
	// Classified operations are methods even if the kind forgot to list them.
	for op := range union(e.morphs, e.ordMaps) {
		e.methods[op] = true
	}
	if k.MergeFunc() != nil {
		e.methods[MergeMethod] = true
	}
	return e
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func sortedEntryNames(m map[string]*entry) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// sameKind compares kind values without panicking on uncomparable types.
func sameKind(a, b types.LatticeKind) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.TypeOf(a).Comparable() {
		return false
	}
	return a == b
}

func reason(err error) string {
	switch {
	case errors.Is(err, types.ErrMissingMergeFunction):
		return "missing_merge"
	case errors.Is(err, types.ErrMustBeOrdMap):
		return "must_be_ord_map"
	case errors.Is(err, types.ErrMustBeMorphism):
		return "must_be_morphism"
	case errors.Is(err, types.ErrMustBeMonotone):
		return "must_be_monotone"
	case errors.Is(err, types.ErrCollectionMethodCollision):
		return "collision"
	default:
		return "other"
	}
}
