// Package kvfile implements the key-value-engine storage backend: tuples are
// held in a keyed map and the whole map is rewritten to a JSONL file,
// atomically, on every write. A write returns only after the file is synced.
//
// Values round-trip through JSON, so numbers come back as float64.
package kvfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// record is one line of the JSONL file.
type record struct {
	Key   []any       `json:"key"`
	Tuple types.Tuple `json:"tuple"`
}

// Store is a StoreAdapter persisting one collection to <dataDir>/<name>.jsonl.
type Store struct {
	mu     sync.Mutex
	name   string
	path   string
	schema types.Schema
	opened bool

	rows  map[string]types.Tuple
	order []string
}

var _ types.StoreAdapter = (*Store)(nil)

// New creates a store for the named collection. No I/O happens until Open.
func New(name string, schema types.Schema, dataDir string) *Store {
	if dataDir == "" {
		dataDir = "."
	}
	return &Store{
		name:   name,
		path:   filepath.Join(dataDir, name+".jsonl"),
		schema: schema,
		rows:   make(map[string]types.Tuple),
	}
}

// Path returns the JSONL file backing the store.
func (s *Store) Path() string { return s.path }

// Open creates the data directory and loads any existing JSONL file.
// Opening an already open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opened {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s.rows = make(map[string]types.Tuple)
	s.order = nil
	records, err := readJSONL(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", s.name, err)
	}
	for _, raw := range records {
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		k, err := types.EncodeKey(rec.Key)
		if err != nil {
			continue
		}
		if _, ok := s.rows[k]; !ok {
			s.order = append(s.order, k)
		}
		s.rows[k] = rec.Tuple
	}
	s.opened = true
	return nil
}

func (s *Store) Put(ctx context.Context, t types.Tuple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t) != s.schema.Arity() {
		return fmt.Errorf("%w: %s expects %d columns, got %d", types.ErrArityMismatch, s.name, s.schema.Arity(), len(t))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return types.ErrStoreClosed
	}
	k, err := types.EncodeKey(types.KeyOf(s.schema, t))
	if err != nil {
		return err
	}
	prev, existed := s.rows[k]
	if !existed {
		s.order = append(s.order, k)
	}
	s.rows[k] = append(types.Tuple(nil), t...)
	if err := s.persistLocked(); err != nil {
		// Keep memory consistent with the file.
		if existed {
			s.rows[k] = prev
		} else {
			delete(s.rows, k)
			s.order = s.order[:len(s.order)-1]
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []any) (types.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil, types.ErrStoreClosed
	}
	k, err := types.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	t, ok := s.rows[k]
	if !ok {
		return nil, types.ErrNotFound
	}
	return append(types.Tuple(nil), t...), nil
}

func (s *Store) Delete(ctx context.Context, key []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return types.ErrStoreClosed
	}
	k, err := types.EncodeKey(key)
	if err != nil {
		return err
	}
	prev, ok := s.rows[k]
	if !ok {
		return types.ErrNotFound
	}
	delete(s.rows, k)
	if err := s.persistLocked(); err != nil {
		s.rows[k] = prev
		return err
	}
	s.removeOrderLocked(k)
	return nil
}

func (s *Store) Scan(ctx context.Context) ([]types.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil, types.ErrStoreClosed
	}
	out := make([]types.Tuple, 0, len(s.rows))
	for _, k := range s.order {
		if t, ok := s.rows[k]; ok {
			out = append(out, append(types.Tuple(nil), t...))
		}
	}
	return out, nil
}

// Close marks the store closed. Data is already on disk. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = false
	return nil
}

// persistLocked rewrites the JSONL file from the in-memory rows.
// The caller must hold s.mu.
func (s *Store) persistLocked() error {
	records := make([]json.RawMessage, 0, len(s.rows))
	for _, k := range s.order {
		t, ok := s.rows[k]
		if !ok {
			continue
		}
		raw, err := json.Marshal(record{Key: types.KeyOf(s.schema, t), Tuple: t})
		if err != nil {
			return fmt.Errorf("marshal tuple: %w", err)
		}
		records = append(records, raw)
	}
	if err := writeJSONL(s.path, records); err != nil {
		return fmt.Errorf("persist %s: %w", s.name, err)
	}
	return nil
}

func (s *Store) removeOrderLocked(k string) {
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
