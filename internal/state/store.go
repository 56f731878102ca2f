package state

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// Store is a persistent collection backed by a storage adapter. Inserts land
// in memory and are queued; Flush writes the queue through the adapter.
type Store struct {
	*base
	cfg     types.StorageConfig
	adapter types.StoreAdapter
	log     *zap.Logger

	opened  bool
	pending []types.Tuple
}

// Config returns the validated storage configuration.
func (s *Store) Config() types.StorageConfig { return s.cfg }

// Backend names the storage backend.
func (s *Store) Backend() string { return s.cfg.Backend }

// Adapter returns the underlying storage adapter.
func (s *Store) Adapter() types.StoreAdapter { return s.adapter }

// Pending returns the number of inserts not yet flushed.
func (s *Store) Pending() int { return len(s.pending) }

func (s *Store) Insert(t types.Tuple) error {
	added, err := s.insert(t)
	if err != nil {
		return err
	}
	if added {
		s.pending = append(s.pending, append(types.Tuple(nil), t...))
	}
	return nil
}

// Reset is a no-op: store contents survive the tick.
func (s *Store) Reset() {}

// Open opens the adapter and loads its rows. Stored rows replace what is in
// memory; inserts queued before Open stay queued. A queued insert that
// conflicts with a stored row fails Open and changes nothing.
func (s *Store) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}
	if err := s.adapter.Open(ctx); err != nil {
		return fmt.Errorf("open %s: %w", s.name, err)
	}
	rows, err := s.adapter.Scan(ctx)
	if err != nil {
		s.adapter.Close()
		return fmt.Errorf("load %s: %w", s.name, err)
	}

	// A conflicting queued insert leaves memory and the queue untouched.
	loaded := newBase(s.name, s.kind, s.schema, s.persistence)
	for _, t := range rows {
		if _, err := loaded.insert(t); err != nil {
			s.log.Warn("skipping stored tuple",
				zap.String("collection", s.name),
				zap.Error(err))
		}
	}
	var queued []types.Tuple
	for _, t := range s.pending {
		added, err := loaded.insert(t)
		if err != nil {
			s.adapter.Close()
			return fmt.Errorf("open %s: queued insert: %w", s.name, err)
		}
		if added {
			queued = append(queued, t)
		}
	}
	s.rows, s.order = loaded.rows, loaded.order
	s.pending = queued
	s.opened = true
	s.log.Debug("store opened",
		zap.String("collection", s.name),
		zap.String("backend", s.cfg.Backend),
		zap.Int("tuples", s.Len()))
	return nil
}

// Flush writes queued inserts through the adapter. Tuples that fail stay
// queued.
func (s *Store) Flush(ctx context.Context) error {
	if !s.opened {
		return fmt.Errorf("%w: %s", types.ErrStoreClosed, s.name)
	}
	var errs []error
	remaining := s.pending[:0]
	for _, t := range s.pending {
		if err := s.adapter.Put(ctx, t); err != nil {
			errs = append(errs, err)
			remaining = append(remaining, t)
		}
	}
	s.pending = remaining
	return errors.Join(errs...)
}

// Close releases the adapter. Idempotent.
func (s *Store) Close() error {
	if !s.opened {
		return nil
	}
	s.opened = false
	return s.adapter.Close()
}

// storeOptions splits a store declaration's options into storage settings
// and an optional schema override.
func storeOptions(backend string, options map[string]any) (types.StorageConfig, *types.Schema, error) {
	cfg := types.StorageConfig{Backend: backend}
	var key, value []string
	var haveKey, haveValue bool
	for name, v := range options {
		var err error
		switch name {
		case types.OptionPath:
			cfg.Path, err = stringOption(name, v)
		case types.OptionAddress:
			cfg.Address, err = stringOption(name, v)
		case "key":
			key, err = fieldsOption(name, v)
			haveKey = true
		case "value":
			value, err = fieldsOption(name, v)
			haveValue = true
		default:
			err = fmt.Errorf("%w: unknown option %q", types.ErrInvalidOption, name)
		}
		if err != nil {
			return cfg, nil, err
		}
	}
	if !haveKey && !haveValue {
		return cfg, nil, nil
	}
	s := types.DefaultSchema()
	if haveKey {
		s.Key = key
	}
	if haveValue {
		s.Value = value
	}
	return cfg, &s, nil
}

func stringOption(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: option %q must be a string, got %T", types.ErrInvalidOption, name, v)
	}
	return s, nil
}

func fieldsOption(name string, v any) ([]string, error) {
	switch fs := v.(type) {
	case []string:
		return append([]string(nil), fs...), nil
	case []any:
		out := make([]string, 0, len(fs))
		for _, f := range fs {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("%w: option %q fields must be strings, got %T", types.ErrInvalidSchema, name, f)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: option %q must be a list of fields, got %T", types.ErrInvalidSchema, name, v)
	}
}
