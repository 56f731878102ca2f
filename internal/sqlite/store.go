// Package sqlite implements the embedded-DB storage backend on SQLite. Every
// write is a committed statement with synchronous=FULL, so a Put has reached
// disk when it returns.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Store is a StoreAdapter persisting one collection to <dataDir>/<name>.db.
type Store struct {
	mu     sync.RWMutex
	name   string
	path   string
	schema types.Schema
	db     *sql.DB
}

var _ types.StoreAdapter = (*Store)(nil)

// New creates a store for the named collection. The store is not opened;
// call Open to create the database.
func New(name string, schema types.Schema, dataDir string) *Store {
	if dataDir == "" {
		dataDir = "."
	}
	return &Store{
		name:   name,
		path:   filepath.Join(dataDir, name+".db"),
		schema: schema,
	}
}

// Path returns the database file backing the store.
func (s *Store) Path() string { return s.path }

// Open creates the data directory and database, and applies the schema.
// Opening an already open store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	for _, stmt := range []string{pragmaSynchronous, createTuples} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("init %s: %w", s.name, err)
		}
	}
	s.db = db
	return nil
}

func (s *Store) Put(ctx context.Context, t types.Tuple) error {
	if len(t) != s.schema.Arity() {
		return fmt.Errorf("%w: %s expects %d columns, got %d", types.ErrArityMismatch, s.name, s.schema.Arity(), len(t))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return types.ErrStoreClosed
	}
	key, err := types.EncodeKey(types.KeyOf(s.schema, t))
	if err != nil {
		return err
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tuple: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertTuple, key, string(raw)); err != nil {
		return fmt.Errorf("put %s: %w", s.name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []any) (types.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	k, err := types.EncodeKey(key)
	if err != nil {
		return nil, err
	}
	var raw string
	err = s.db.QueryRowContext(ctx, selectTuple, k).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.name, err)
	}
	return decodeTuple(raw)
}

func (s *Store) Delete(ctx context.Context, key []any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return types.ErrStoreClosed
	}
	k, err := types.EncodeKey(key)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, deleteTuple, k)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *Store) Scan(ctx context.Context) ([]types.Tuple, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, types.ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx, selectTuples)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.name, err)
	}
	defer rows.Close()

	var out []types.Tuple
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := decodeTuple(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func decodeTuple(raw string) (types.Tuple, error) {
	var t types.Tuple
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode tuple: %w", err)
	}
	return t, nil
}
