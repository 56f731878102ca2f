// Package state implements the per-instance collection registry: the
// declaration verbs for every collection variant, the interface boundary,
// lattice wrappers and the end-of-tick reset the engine relies on.
//
// An Instance is owned by one runtime instance and is not safe for concurrent
// use. Lattice kinds come from a shared, process-wide catalog.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/internal/storage"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// KindCatalog is the view of the lattice catalog an instance needs.
type KindCatalog interface {
	Has(name string) bool
	Verify(name string) (types.LatticeKind, error)
}

// Option configures an Instance.
type Option func(*Instance)

// WithDataDir sets the directory synchronous stores write under.
func WithDataDir(dir string) Option {
	return func(in *Instance) { in.dataDir = dir }
}

// WithLogger sets the instance logger.
func WithLogger(log *zap.Logger) Option {
	return func(in *Instance) {
		if log != nil {
			in.log = log
		}
	}
}

// WithReserved adds identifiers collections may not be named after.
func WithReserved(names ...string) Option {
	return func(in *Instance) {
		for _, n := range names {
			in.reserved[n] = true
		}
	}
}

// WithStorageFactory replaces the adapter factory used by Sync and Store.
func WithStorageFactory(f storage.Factory) Option {
	return func(in *Instance) { in.factory = f }
}

// Instance is one runtime instance's namespace of collections and lattices.
type Instance struct {
	id       uuid.UUID
	catalog  KindCatalog
	log      *zap.Logger
	dataDir  string
	factory  storage.Factory
	reserved map[string]bool

	order     []string
	tables    map[string]types.Collection
	lattices  map[string]*Wrapper
	channels  []string
	periodics map[string]*Periodic
	stores    []*Store
	terminal  *Terminal
	boundary  Boundary
	ticks     int
}

// New creates an empty instance that resolves lattice kinds through catalog.
func New(catalog KindCatalog, opts ...Option) *Instance {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	in := &Instance{
		id:        id,
		catalog:   catalog,
		log:       zap.NewNop(),
		reserved:  make(map[string]bool, len(verbs)),
		tables:    make(map[string]types.Collection),
		lattices:  make(map[string]*Wrapper),
		periodics: make(map[string]*Periodic),
	}
	for _, v := range verbs {
		in.reserved[v] = true
	}
	for _, o := range opts {
		o(in)
	}
	in.log = in.log.With(zap.String("instance", id.String()))
	if in.factory == nil {
		in.factory = storage.NewWithLogger(in.log)
	}
	return in
}

// ID returns the instance identifier.
func (in *Instance) ID() uuid.UUID { return in.id }

// bind records a constructed collection under its name.
func (in *Instance) bind(c types.Collection) {
	in.tables[c.Name()] = c
	in.order = append(in.order, c.Name())
	in.log.Debug("collection declared",
		zap.String("name", c.Name()),
		zap.Stringer("kind", c.Kind()),
		zap.Stringer("persistence", c.Persistence()))
}

// Table declares an in-memory collection that lasts for the instance's
// lifetime. A nil schema selects [key] => [val].
func (in *Instance) Table(name string, schema *types.Schema) (*Table, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	s, err := schemaOrDefault(schema)
	if err != nil {
		return nil, err
	}
	t := &Table{newBase(name, types.KindTable, s, types.Durable)}
	in.bind(t)
	return t, nil
}

// Scratch declares a transient collection.
func (in *Instance) Scratch(name string, schema *types.Schema) (*Scratch, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	s, err := schemaOrDefault(schema)
	if err != nil {
		return nil, err
	}
	sc := &Scratch{newBase(name, types.KindScratch, s, types.Transient)}
	in.bind(sc)
	return sc, nil
}

// ReadOnly declares a transient collection written at most once per tick.
func (in *Instance) ReadOnly(name string, schema *types.Schema) (*ReadOnly, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	s, err := schemaOrDefault(schema)
	if err != nil {
		return nil, err
	}
	r := &ReadOnly{base: newBase(name, types.KindReadOnly, s, types.Transient)}
	in.bind(r)
	return r, nil
}

// Temp declares a transient collection. A nil schema leaves it unresolved
// until ResolveSchema is called.
func (in *Instance) Temp(name string, schema *types.Schema) (*Temp, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	t := &Temp{base: newBase(name, types.KindTemp, types.Schema{}, types.Transient)}
	if schema != nil {
		if err := t.ResolveSchema(*schema); err != nil {
			return nil, err
		}
	}
	in.bind(t)
	return t, nil
}

// Channel declares a transient network collection. Without a schema it is
// [@address, val] => []; a non-loopback schema must start with an
// address field.
func (in *Instance) Channel(name string, schema *types.Schema, loopback bool) (*Channel, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	s, idx, err := channelSchema(schema, loopback)
	if err != nil {
		return nil, err
	}
	c := &Channel{
		base:         newBase(name, types.KindChannel, s, types.Transient),
		loopback:     loopback,
		addressIndex: idx,
	}
	in.bind(c)
	in.channels = append(in.channels, name)
	return c, nil
}

// Loopback declares a channel that delivers to the local instance. Without
// a schema it is [key] => [val].
func (in *Instance) Loopback(name string, schema *types.Schema) (*Channel, error) {
	return in.Channel(name, schema, true)
}

// FileReader declares a collection read from filename, split on delimiter.
// An empty delimiter selects DefaultDelimiter.
func (in *Instance) FileReader(name, filename, delimiter string) (*FileReader, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("%w: file_reader %s requires a filename", types.ErrMissingRequiredOption, name)
	}
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	f := &FileReader{
		base:      newBase(name, types.KindFileReader, fileReaderSchema(), types.Transient),
		filename:  filename,
		delimiter: delimiter,
	}
	in.bind(f)
	return f, nil
}

// Periodic declares a collection filled every period. The period must be a
// positive whole number of seconds. Redeclaring a periodic name fails
// ErrDuplicateRegistration.
func (in *Instance) Periodic(name string, period time.Duration) (*Periodic, error) {
	if _, ok := in.periodics[name]; ok {
		return nil, fmt.Errorf("%w: periodic %s", types.ErrDuplicateRegistration, name)
	}
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	if period <= 0 || period%time.Second != 0 {
		return nil, fmt.Errorf("%w: %s has period %s", types.ErrInvalidPeriod, name, period)
	}
	p := &Periodic{
		base:     newBase(name, types.KindPeriodic, types.DefaultSchema(), types.Transient),
		period:   period,
		schedule: cron.Every(period),
	}
	in.bind(p)
	in.periodics[name] = p
	return p, nil
}

// Terminal declares the instance's line-oriented I/O collection. Declaring
// the same name again returns the existing terminal; a second name fails
// ErrConflictingSingleton.
func (in *Instance) Terminal(name string) (*Terminal, error) {
	if in.terminal != nil {
		if in.terminal.Name() == name {
			return in.terminal, nil
		}
		return nil, fmt.Errorf("%w: can't register %s in addition to %s", types.ErrConflictingSingleton, name, in.terminal.Name())
	}
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	t := &Terminal{newBase(name, types.KindTerminal, terminalSchema(), types.Transient)}
	in.bind(t)
	in.channels = append(in.channels, name)
	in.terminal = t
	return t, nil
}

// Sync declares a collection flushed synchronously to an embedded_db or
// kv_engine backend.
func (in *Instance) Sync(name, backend string, schema *types.Schema) (*Store, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	if !types.IsSyncBackend(backend) {
		return nil, fmt.Errorf("%w: unknown synchronous storage engine %q", types.ErrUnknownStorageEngine, backend)
	}
	s, err := schemaOrDefault(schema)
	if err != nil {
		return nil, err
	}
	cfg := types.StorageConfig{Backend: backend, DataDir: in.dataDir}
	return in.newStore(name, types.KindSyncStore, cfg, s)
}

// Store declares a collection flushed asynchronously to a
// coordination_service backend. options must carry "path"; "address"
// defaults to types.DefaultCoordinationAddress; "key" and "value" override
// the schema.
func (in *Instance) Store(name, backend string, options map[string]any) (*Store, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	if !types.IsAsyncBackend(backend) {
		return nil, fmt.Errorf("%w: unknown async storage engine %q", types.ErrUnknownStorageEngine, backend)
	}
	cfg, schema, err := storeOptions(backend, options)
	if err != nil {
		return nil, err
	}
	s, err := schemaOrDefault(schema)
	if err != nil {
		return nil, err
	}
	return in.newStore(name, types.KindAsyncStore, cfg, s)
}

func (in *Instance) newStore(name string, kind types.Kind, cfg types.StorageConfig, s types.Schema) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := in.factory(cfg, name, s)
	if err != nil {
		return nil, err
	}
	st := &Store{
		base:    newBase(name, kind, s, cfg.Persistence()),
		cfg:     cfg,
		adapter: adapter,
		log:     in.log,
	}
	in.bind(st)
	in.stores = append(in.stores, st)
	return st, nil
}

// Interface declares a scratch collection as an input or output of the
// module and records it on the boundary.
func (in *Instance) Interface(mode types.AccessMode, name string, schema *types.Schema) (*Scratch, error) {
	if !mode.IsInput() && !mode.IsOutput() {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidMode, mode)
	}
	sc, err := in.Scratch(name, schema)
	if err != nil {
		return nil, err
	}
	sc.access = mode
	in.boundary.Record(name, mode)
	return sc, nil
}

// Lattice declares a lattice-valued collection of the given kind. The kind
// is verified against the catalog before the wrapper is bound.
func (in *Instance) Lattice(kind, name string, opts LatticeOptions) (*Wrapper, error) {
	if err := in.checkName(name); err != nil {
		return nil, err
	}
	if in.catalog == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownLatticeKind, kind)
	}
	k, err := in.catalog.Verify(kind)
	if err != nil {
		return nil, err
	}
	w := &Wrapper{name: name, kind: k, scratch: opts.Scratch}
	in.lattices[name] = w
	in.order = append(in.order, name)
	in.log.Debug("lattice declared",
		zap.String("name", name),
		zap.String("kind", kind),
		zap.Bool("scratch", opts.Scratch))
	return w, nil
}

// Collections returns every declared collection in declaration order.
func (in *Instance) Collections() []types.Collection {
	out := make([]types.Collection, 0, len(in.tables))
	for _, n := range in.order {
		if c, ok := in.tables[n]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Channels returns the channels and the terminal, in declaration order.
func (in *Instance) Channels() []types.Collection {
	out := make([]types.Collection, 0, len(in.channels))
	for _, n := range in.channels {
		out = append(out, in.tables[n])
	}
	return out
}

// Periodics returns the periodic collections in declaration order.
func (in *Instance) Periodics() []*Periodic {
	var out []*Periodic
	for _, n := range in.order {
		if p, ok := in.periodics[n]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Stores returns the persistent collections in declaration order.
func (in *Instance) Stores() []*Store {
	return append([]*Store(nil), in.stores...)
}

// Lattices returns the lattice wrappers in declaration order.
func (in *Instance) Lattices() []*Wrapper {
	var out []*Wrapper
	for _, n := range in.order {
		if w, ok := in.lattices[n]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Interfaces returns the module boundary.
func (in *Instance) Interfaces() []Binding { return in.boundary.Bindings() }

// Boundary returns the instance's interface boundary.
func (in *Instance) Boundary() *Boundary { return &in.boundary }

// TerminalCollection returns the declared terminal, if any.
func (in *Instance) TerminalCollection() (*Terminal, bool) {
	return in.terminal, in.terminal != nil
}

// Ticks returns how many ticks have ended.
func (in *Instance) Ticks() int { return in.ticks }

// EndTick clears every transient collection and scratch lattice.
func (in *Instance) EndTick() {
	for _, n := range in.order {
		if c, ok := in.tables[n]; ok && !c.Persistence().SurvivesTick() {
			c.Reset()
		}
		if w, ok := in.lattices[n]; ok && w.ResetsEachTick() {
			w.Reset()
		}
	}
	in.ticks++
}

// Open opens every store and loads its rows.
func (in *Instance) Open(ctx context.Context) error {
	for _, s := range in.stores {
		if err := s.Open(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes queued store inserts through their adapters.
func (in *Instance) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range in.stores {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every opened store.
func (in *Instance) Close() error {
	var errs []error
	for _, s := range in.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
