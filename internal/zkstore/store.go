// Package zkstore implements the coordination-service storage backend on
// ZooKeeper. Each tuple is one znode under the store's root path, named by
// the escaped JSON encoding of its key.
package zkstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/bloomstate/pkg/types"
)

// DefaultSessionTimeout is the ZooKeeper session timeout used by Open.
const DefaultSessionTimeout = 10 * time.Second

// conn is the subset of *zk.Conn the store uses.
type conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Delete(path string, version int32) error
	Children(path string) ([]string, *zk.Stat, error)
	Exists(path string) (bool, *zk.Stat, error)
	Close()
}

type dialFunc func(address string, timeout time.Duration, log *zap.Logger) (conn, error)

func dialZK(address string, timeout time.Duration, log *zap.Logger) (conn, error) {
	c, _, err := zk.Connect(strings.Split(address, ","), timeout, zk.WithLogger(zkLogger{log.Sugar()}))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// zkLogger routes the client's log lines to zap at debug level.
type zkLogger struct{ s *zap.SugaredLogger }

func (l zkLogger) Printf(format string, args ...any) { l.s.Debugf(format, args...) }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for client events.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSessionTimeout overrides DefaultSessionTimeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// Store is a StoreAdapter persisting one collection below a znode path.
type Store struct {
	mu      sync.RWMutex
	name    string
	root    string
	address string
	schema  types.Schema
	timeout time.Duration
	log     *zap.Logger
	dial    dialFunc
	conn    conn
}

var _ types.StoreAdapter = (*Store)(nil)

// New creates a store rooted at root on the ensemble at address. An empty
// address selects DefaultCoordinationAddress. No connection is made until Open.
func New(name string, schema types.Schema, root, address string, opts ...Option) *Store {
	if address == "" {
		address = types.DefaultCoordinationAddress
	}
	s := &Store{
		name:    name,
		root:    normalizeRoot(root),
		address: address,
		schema:  schema,
		timeout: DefaultSessionTimeout,
		log:     zap.NewNop(),
		dial:    dialZK,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the znode path holding the store's tuples.
func (s *Store) Root() string { return s.root }

// Address returns the ensemble address the store connects to.
func (s *Store) Address() string { return s.address }

// Open connects to the ensemble and creates the root path if missing.
func (s *Store) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}
	c, err := s.dial(s.address, s.timeout, s.log)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.address, err)
	}
	if err := ensurePath(c, s.root); err != nil {
		c.Close()
		return fmt.Errorf("create %s: %w", s.root, err)
	}
	s.conn = c
	s.log.Debug("coordination store opened",
		zap.String("collection", s.name),
		zap.String("path", s.root),
		zap.String("address", s.address))
	return nil
}

func (s *Store) Put(ctx context.Context, t types.Tuple) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t) != s.schema.Arity() {
		return fmt.Errorf("%w: %s expects %d columns, got %d", types.ErrArityMismatch, s.name, s.schema.Arity(), len(t))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return types.ErrStoreClosed
	}
	p, err := s.nodePath(types.KeyOf(s.schema, t))
	if err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tuple: %w", err)
	}
	_, err = s.conn.Create(p, data, 0, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		_, err = s.conn.Set(p, data, -1)
	}
	if err != nil {
		return fmt.Errorf("put %s: %w", s.name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key []any) (types.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil, types.ErrStoreClosed
	}
	p, err := s.nodePath(key)
	if err != nil {
		return nil, err
	}
	data, _, err := s.conn.Get(p)
	if errors.Is(err, zk.ErrNoNode) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.name, err)
	}
	return decodeTuple(data)
}

func (s *Store) Delete(ctx context.Context, key []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return types.ErrStoreClosed
	}
	p, err := s.nodePath(key)
	if err != nil {
		return err
	}
	err = s.conn.Delete(p, -1)
	if errors.Is(err, zk.ErrNoNode) {
		return types.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.name, err)
	}
	return nil
}

// Scan returns every tuple under the root, oldest znode first.
func (s *Store) Scan(ctx context.Context) ([]types.Tuple, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.conn == nil {
		return nil, types.ErrStoreClosed
	}
	children, _, err := s.conn.Children(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.name, err)
	}

	type node struct {
		czxid int64
		tuple types.Tuple
	}
	nodes := make([]node, 0, len(children))
	for _, child := range children {
		data, stat, err := s.conn.Get(path.Join(s.root, child))
		if errors.Is(err, zk.ErrNoNode) {
			// Deleted between Children and Get.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.name, err)
		}
		t, err := decodeTuple(data)
		if err != nil {
			return nil, err
		}
		var czxid int64
		if stat != nil {
			czxid = stat.Czxid
		}
		nodes = append(nodes, node{czxid: czxid, tuple: t})
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].czxid < nodes[j].czxid })

	out := make([]types.Tuple, len(nodes))
	for i, n := range nodes {
		out[i] = n.tuple
	}
	return out, nil
}

// Close ends the session. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.conn.Close()
	s.conn = nil
	return nil
}

func (s *Store) nodePath(key []any) (string, error) {
	k, err := types.EncodeKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(s.root, EscapeKey(k)), nil
}

// EscapeKey turns an encoded key into a single znode name.
func EscapeKey(encoded string) string {
	return url.PathEscape(encoded)
}

func normalizeRoot(root string) string {
	if root == "" {
		return "/"
	}
	return path.Clean("/" + root)
}

// ensurePath creates every missing znode along p.
func ensurePath(c conn, p string) error {
	if p == "/" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		cur += "/" + part
		ok, _, err := c.Exists(cur)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := c.Create(cur, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}
	return nil
}

func decodeTuple(data []byte) (types.Tuple, error) {
	var t types.Tuple
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tuple: %w", err)
	}
	return t, nil
}
