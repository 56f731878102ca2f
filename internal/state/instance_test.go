package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bloomstate/internal/lattice"
	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

func newCatalog(t *testing.T) *lattice.Catalog {
	t.Helper()
	c, err := lattice.NewCatalog(lattice.WithBuiltins())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func newInstance(t *testing.T, opts ...Option) *Instance {
	t.Helper()
	return New(newCatalog(t), opts...)
}

func schemaOf(t *testing.T, c types.Collection) types.Schema {
	t.Helper()
	s, err := c.Schema()
	require.NoError(t, err)
	return s
}

func schemaPtr(key []string, value ...string) *types.Schema {
	s := types.NewSchema(key, value...)
	return &s
}

func TestNew_AssignsV7ID(t *testing.T) {
	in := newInstance(t)
	assert.Equal(t, uuid.Version(7), in.ID().Version())
	assert.NotEqual(t, in.ID(), newInstance(t).ID())
}

func TestDeclare_NameUniqueness(t *testing.T) {
	declarations := map[string]func(in *Instance, name string) error{
		"table":       func(in *Instance, n string) error { _, err := in.Table(n, nil); return err },
		"scratch":     func(in *Instance, n string) error { _, err := in.Scratch(n, nil); return err },
		"readonly":    func(in *Instance, n string) error { _, err := in.ReadOnly(n, nil); return err },
		"temp":        func(in *Instance, n string) error { _, err := in.Temp(n, nil); return err },
		"channel":     func(in *Instance, n string) error { _, err := in.Channel(n, nil, false); return err },
		"loopback":    func(in *Instance, n string) error { _, err := in.Loopback(n, nil); return err },
		"file_reader": func(in *Instance, n string) error { _, err := in.FileReader(n, "in.txt", ""); return err },
		"periodic":    func(in *Instance, n string) error { _, err := in.Periodic(n, time.Second); return err },
		"interface": func(in *Instance, n string) error {
			_, err := in.Interface(types.Input, n, nil)
			return err
		},
		"lattice": func(in *Instance, n string) error {
			_, err := in.Lattice(lattice.KindMax, n, LatticeOptions{})
			return err
		},
	}

	for first, declFirst := range declarations {
		for second, declSecond := range declarations {
			t.Run(first+"_then_"+second, func(t *testing.T) {
				in := newInstance(t)
				require.NoError(t, declFirst(in, "dup"))
				require.NoError(t, declSecond(in, "other"))

				err := declSecond(in, "dup")
				if first == "periodic" && second == "periodic" {
					assert.ErrorIs(t, err, types.ErrDuplicateRegistration)
					return
				}
				assert.ErrorIs(t, err, types.ErrNameConflict)
			})
		}
	}
}

func TestDeclare_ReservedNames(t *testing.T) {
	in := newInstance(t, WithReserved("budtime"))

	tests := []struct {
		name    string
		wantErr error
	}{
		{"table", types.ErrNameConflict},
		{"lattices", types.ErrNameConflict},
		{"budtime", types.ErrNameConflict},
		{lattice.KindSet, types.ErrNameConflict},
		{"", types.ErrInvalidName},
		{"9lives", types.ErrInvalidName},
		{"has space", types.ErrInvalidName},
		{"ok_name2", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Scratch(tt.name, nil)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			_, lookupErr := in.Lookup(tt.name)
			assert.ErrorIs(t, lookupErr, types.ErrCollectionNotFound)
		})
	}
}

func TestDeclare_DefaultSchemas(t *testing.T) {
	in := newInstance(t)
	opts := cmpopts.EquateEmpty()

	tbl, err := in.Table("t", nil)
	require.NoError(t, err)
	sc, err := in.Scratch("s", nil)
	require.NoError(t, err)
	for _, c := range []types.Collection{tbl, sc} {
		if diff := cmp.Diff(types.DefaultSchema(), schemaOf(t, c), opts); diff != "" {
			t.Errorf("%s schema mismatch (-want +got):\n%s", c.Name(), diff)
		}
	}

	ch, err := in.Channel("c", nil, false)
	require.NoError(t, err)
	want := types.NewSchema([]string{"address", "val"})
	if diff := cmp.Diff(want, schemaOf(t, ch), opts); diff != "" {
		t.Errorf("channel schema mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, ch.AddressIndex())
	assert.Equal(t, "address", ch.AddressField())
	assert.False(t, ch.Loopback())

	lb, err := in.Loopback("lb", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(types.DefaultSchema(), schemaOf(t, lb), opts); diff != "" {
		t.Errorf("loopback schema mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, lb.Loopback())
	assert.Equal(t, -1, lb.AddressIndex())
	assert.Equal(t, "", lb.AddressField())
}

func TestDeclare_PersistenceClasses(t *testing.T) {
	in := newInstance(t, WithStorageFactory(memFactory(newMemAdapters())))

	tbl, _ := in.Table("t", nil)
	sc, _ := in.Scratch("s", nil)
	ro, _ := in.ReadOnly("r", nil)
	ch, _ := in.Channel("c", nil, false)
	sy, err := in.Sync("kv", types.BackendKVEngine, nil)
	require.NoError(t, err)
	st, err := in.Store("zk", types.BackendCoordinationService, map[string]any{"path": "/a"})
	require.NoError(t, err)

	assert.Equal(t, types.Durable, tbl.Persistence())
	assert.Equal(t, types.Transient, sc.Persistence())
	assert.Equal(t, types.Transient, ro.Persistence())
	assert.Equal(t, types.Transient, ch.Persistence())
	assert.Equal(t, types.DurableSync, sy.Persistence())
	assert.Equal(t, types.DurableAsync, st.Persistence())
	assert.Equal(t, types.KindSyncStore, sy.Kind())
	assert.Equal(t, types.KindAsyncStore, st.Kind())
}

func TestChannel_Schema(t *testing.T) {
	tests := []struct {
		name     string
		schema   *types.Schema
		loopback bool
		wantKey  []string
		wantIdx  int
		wantErr  error
	}{
		{
			name:    "address first",
			schema:  schemaPtr([]string{"@dst", "id"}, "body"),
			wantKey: []string{"dst", "id"},
			wantIdx: 0,
		},
		{
			name:    "no address",
			schema:  schemaPtr([]string{"dst", "id"}, "body"),
			wantErr: types.ErrMissingAddress,
		},
		{
			name:    "address not first",
			schema:  schemaPtr([]string{"id", "@dst"}, "body"),
			wantErr: types.ErrInvalidSchema,
		},
		{
			name:    "address in value",
			schema:  schemaPtr([]string{"@dst"}, "@body"),
			wantErr: types.ErrInvalidSchema,
		},
		{
			name:     "loopback without address",
			schema:   schemaPtr([]string{"id"}, "body"),
			loopback: true,
			wantKey:  []string{"id"},
			wantIdx:  -1,
		},
		{
			name:     "loopback with address",
			schema:   schemaPtr([]string{"@dst", "id"}, "body"),
			loopback: true,
			wantKey:  []string{"dst", "id"},
			wantIdx:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newInstance(t)
			ch, err := in.Channel("msg", tt.schema, tt.loopback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, in.Channels())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, schemaOf(t, ch).Key)
			assert.Equal(t, tt.wantIdx, ch.AddressIndex())
		})
	}
}

func TestDeclare_AddressFieldOutsideChannel(t *testing.T) {
	in := newInstance(t)
	_, err := in.Table("t", schemaPtr([]string{"@dst"}, "v"))
	assert.ErrorIs(t, err, types.ErrInvalidSchema)
	_, err = in.Lookup("t")
	assert.ErrorIs(t, err, types.ErrCollectionNotFound)
}

func TestTerminal_Singleton(t *testing.T) {
	in := newInstance(t)

	a, err := in.Terminal("stdio")
	require.NoError(t, err)
	again, err := in.Terminal("stdio")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = in.Terminal("other")
	assert.ErrorIs(t, err, types.ErrConflictingSingleton)

	got, ok := in.TerminalCollection()
	require.True(t, ok)
	assert.Equal(t, "stdio", got.Name())
	assert.Equal(t, []string{"line"}, schemaOf(t, got).Key)

	require.Len(t, in.Channels(), 1)
	assert.Equal(t, "stdio", in.Channels()[0].Name())
	assert.Len(t, in.Collections(), 1)
}

func TestTerminal_Lines(t *testing.T) {
	in := newInstance(t)
	term, err := in.Terminal("stdio")
	require.NoError(t, err)

	require.NoError(t, term.Insert(types.Tuple{"hello"}))
	require.NoError(t, term.Insert(types.Tuple{"world"}))
	assert.Equal(t, []string{"hello", "world"}, term.Lines())
}

func TestPeriodic_Dedup(t *testing.T) {
	in := newInstance(t)

	_, err := in.Periodic("p", 5*time.Second)
	require.NoError(t, err)
	_, err = in.Periodic("p", 10*time.Second)
	assert.ErrorIs(t, err, types.ErrDuplicateRegistration)

	_, err = in.Periodic("p1", 5*time.Second)
	require.NoError(t, err)
	_, err = in.Periodic("p2", 5*time.Second)
	require.NoError(t, err)

	names := []string{}
	for _, p := range in.Periodics() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"p", "p1", "p2"}, names)
}

func TestPeriodic_InvalidPeriod(t *testing.T) {
	for _, period := range []time.Duration{0, -time.Second, 500 * time.Millisecond, 1500 * time.Millisecond} {
		t.Run(period.String(), func(t *testing.T) {
			in := newInstance(t)
			_, err := in.Periodic("p", period)
			assert.ErrorIs(t, err, types.ErrInvalidPeriod)
			// Nothing was registered, so the name is still free.
			_, err = in.Periodic("p", time.Second)
			assert.NoError(t, err)
		})
	}
}

func TestPeriodic_ScheduleMatchesPeriod(t *testing.T) {
	in := newInstance(t)
	p, err := in.Periodic("p", 3*time.Second)
	require.NoError(t, err)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start.Add(p.Period()), p.Next(start))
}

func TestSync_Backends(t *testing.T) {
	tests := []struct {
		backend string
		wantErr error
	}{
		{types.BackendEmbeddedDB, nil},
		{types.BackendKVEngine, nil},
		{"unknown", types.ErrUnknownStorageEngine},
		{types.BackendCoordinationService, types.ErrUnknownStorageEngine},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			in := newInstance(t, WithDataDir(t.TempDir()))
			st, err := in.Sync("x", tt.backend, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, in.Stores())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.backend, st.Backend())
			assert.Equal(t, types.DurableSync, st.Persistence())
		})
	}
}

func TestStore_Options(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		in := newInstance(t)
		_, err := in.Store("x", types.BackendCoordinationService, map[string]any{})
		assert.ErrorIs(t, err, types.ErrMissingRequiredOption)
		_, err = in.Lookup("x")
		assert.ErrorIs(t, err, types.ErrCollectionNotFound)
	})

	t.Run("address defaulted", func(t *testing.T) {
		in := newInstance(t)
		st, err := in.Store("x", types.BackendCoordinationService, map[string]any{"path": "/a"})
		require.NoError(t, err)
		assert.Equal(t, "localhost:2181", st.Config().Address)
		assert.Equal(t, "/a", st.Config().Path)
	})

	t.Run("explicit address and schema", func(t *testing.T) {
		in := newInstance(t)
		st, err := in.Store("x", types.BackendCoordinationService, map[string]any{
			"path":    "/a",
			"address": "zk:2181",
			"key":     []any{"host"},
			"value":   []string{"port"},
		})
		require.NoError(t, err)
		assert.Equal(t, "zk:2181", st.Config().Address)
		assert.Equal(t, types.NewSchema([]string{"host"}, "port"), schemaOf(t, st))
	})

	t.Run("unknown option", func(t *testing.T) {
		in := newInstance(t)
		_, err := in.Store("x", types.BackendCoordinationService, map[string]any{"path": "/a", "ttl": 5})
		assert.ErrorIs(t, err, types.ErrInvalidOption)
	})

	t.Run("sync backend rejected", func(t *testing.T) {
		in := newInstance(t)
		_, err := in.Store("x", types.BackendKVEngine, map[string]any{"path": "/a"})
		assert.ErrorIs(t, err, types.ErrUnknownStorageEngine)
	})
}

func TestInterface_Boundary(t *testing.T) {
	in := newInstance(t)

	req, err := in.Interface(types.Input, "req", nil)
	require.NoError(t, err)
	resp, err := in.Interface(types.Output, "resp", schemaPtr([]string{"id"}, "body"))
	require.NoError(t, err)

	assert.Equal(t, types.KindScratch, req.Kind())
	assert.True(t, req.Access().IsInput())
	assert.True(t, resp.Access().IsOutput())
	assert.Equal(t, []Binding{{Name: "req", Mode: types.Input}, {Name: "resp", Mode: types.Output}}, in.Interfaces())
	assert.Equal(t, []string{"req"}, in.Boundary().Inputs())
	assert.Equal(t, []string{"resp"}, in.Boundary().Outputs())

	_, err = in.Interface(types.Internal, "x", nil)
	assert.ErrorIs(t, err, types.ErrInvalidMode)

	// A failed declaration does not leave a binding behind.
	_, err = in.Interface(types.Input, "req", nil)
	assert.ErrorIs(t, err, types.ErrNameConflict)
	assert.Len(t, in.Interfaces(), 2)
}

func TestLattice_Declare(t *testing.T) {
	in := newInstance(t)

	best, err := in.Lattice(lattice.KindMax, "best", LatticeOptions{})
	require.NoError(t, err)
	seen, err := in.Lattice(lattice.KindSet, "seen", LatticeOptions{Scratch: true})
	require.NoError(t, err)

	assert.False(t, best.ResetsEachTick())
	assert.Equal(t, types.Durable, best.Persistence())
	assert.True(t, seen.ResetsEachTick())
	assert.Equal(t, lattice.KindMax, best.Kind().KindName())

	_, err = in.Lattice("lnope", "x", LatticeOptions{})
	assert.ErrorIs(t, err, types.ErrUnknownLatticeKind)
	_, err = in.Lookup("x")
	assert.ErrorIs(t, err, types.ErrCollectionNotFound)

	names := []string{}
	for _, w := range in.Lattices() {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"best", "seen"}, names)
}

func TestLattice_RejectedKindIsNotBound(t *testing.T) {
	c := newCatalog(t)
	require.NoError(t, c.Define(lattice.NewDef("lbroken", nil)))
	in := New(c)

	_, err := in.Lattice("lbroken", "b", LatticeOptions{})
	assert.ErrorIs(t, err, types.ErrMissingMergeFunction)
	assert.Empty(t, in.Lattices())
}

func TestLattice_MergeAndReset(t *testing.T) {
	in := newInstance(t)
	w, err := in.Lattice(lattice.KindMax, "best", LatticeOptions{Scratch: true})
	require.NoError(t, err)

	assert.Nil(t, w.Value())
	require.NoError(t, w.Merge(3))
	require.NoError(t, w.Merge(7))
	require.NoError(t, w.Merge(5))
	assert.EqualValues(t, 7, w.Value())

	err = w.Merge("seven")
	assert.ErrorIs(t, err, types.ErrInvalidLatticeValue)

	in.EndTick()
	assert.Nil(t, w.Value())
}

func TestLookupAndQuery(t *testing.T) {
	in := newInstance(t)
	tbl, err := in.Table("link", schemaPtr([]string{"from", "to"}, "cost"))
	require.NoError(t, err)
	_, err = in.Lattice(lattice.KindMax, "best", LatticeOptions{})
	require.NoError(t, err)

	h, err := in.Lookup("link")
	require.NoError(t, err)
	assert.False(t, h.IsLattice())
	assert.Same(t, tbl, h.Collection)

	h, err = in.Lookup("best")
	require.NoError(t, err)
	assert.True(t, h.IsLattice())
	assert.Equal(t, "best", h.Name())

	_, err = in.Lookup("missing")
	assert.ErrorIs(t, err, types.ErrCollectionNotFound)
	_, err = in.Collection("best")
	assert.ErrorIs(t, err, types.ErrCollectionNotFound)
	_, err = in.LatticeWrapper("link")
	assert.ErrorIs(t, err, types.ErrCollectionNotFound)

	cheap, err := in.Query("link", func(tu types.Tuple) (types.Tuple, bool) {
		if tu[2].(int) > 5 {
			return nil, false
		}
		return types.Tuple{tu[0], tu[1]}, true
	})
	require.NoError(t, err)

	require.NoError(t, tbl.Insert(types.Tuple{"a", "b", 1}))
	require.NoError(t, tbl.Insert(types.Tuple{"b", "c", 9}))
	// Evaluated lazily, after the inserts.
	assert.Equal(t, []types.Tuple{{"a", "b"}}, cheap.Tuples())
	assert.Equal(t, 2, tbl.Len())

	all, err := in.Query("link", nil)
	require.NoError(t, err)
	assert.Len(t, all.Tuples(), 2)

	_, err = in.Query("best", nil)
	assert.ErrorIs(t, err, types.ErrNotQueryable)
}

func TestEndTick(t *testing.T) {
	in := newInstance(t)
	tbl, _ := in.Table("t", nil)
	sc, _ := in.Scratch("s", nil)
	ch, _ := in.Channel("c", nil, false)
	durable, _ := in.Lattice(lattice.KindMax, "d", LatticeOptions{})

	require.NoError(t, tbl.Insert(types.Tuple{1, "a"}))
	require.NoError(t, sc.Insert(types.Tuple{1, "a"}))
	require.NoError(t, ch.Insert(types.Tuple{"10.0.0.1:80", "hi"}))
	require.NoError(t, durable.Merge(4))

	in.EndTick()

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 0, sc.Len())
	assert.Equal(t, 0, ch.Len())
	assert.EqualValues(t, 4, durable.Value())
	assert.Equal(t, 1, in.Ticks())
}

func TestCollections_DeclarationOrder(t *testing.T) {
	in := newInstance(t)
	_, _ = in.Scratch("b", nil)
	_, _ = in.Table("a", nil)
	_, _ = in.Lattice(lattice.KindBool, "flag", LatticeOptions{})
	_, _ = in.Channel("c", nil, false)

	var names []string
	for _, c := range in.Collections() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}
