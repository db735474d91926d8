// Package memory provides an in-process tree.Store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jacentio/nestedset/internal/workset"
	"github.com/jacentio/nestedset/tree"
)

// Store keeps nodes in memory. Transactions run on a copy of the data that
// replaces the live set on success, so a failed transaction leaves no trace.
// Transactions are serialized; reads outside a transaction see committed data
// only.
type Store struct {
	mu  sync.Mutex
	set *workset.Set
}

// New creates a store holding copies of nodes. Seed nodes are taken as is, so
// tests can load deliberately broken data.
func New(nodes ...*tree.Node) *Store {
	set := workset.New()
	set.Load(nodes...)
	return &Store{set: set}
}

// Len returns the number of stored nodes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Len()
}

// Scopes lists every scope holding at least one node.
func (s *Store) Scopes() ([]tree.Scope, error) {
	s.mu.Lock()
	keys := s.set.Scopes()
	s.mu.Unlock()

	scopes := make([]tree.Scope, 0, len(keys))
	for _, k := range keys {
		sc, err := tree.ParseScope(k)
		if err != nil {
			return nil, fmt.Errorf("parse scope %q: %w", k, err)
		}
		scopes = append(scopes, sc)
	}
	return scopes, nil
}

func (s *Store) view(ctx context.Context, fn func(set *workset.Set) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.set)
}

// Select returns the committed nodes of scope matching q, in q.Order.
func (s *Store) Select(ctx context.Context, scope tree.Scope, q tree.Query) ([]*tree.Node, error) {
	var out []*tree.Node
	err := s.view(ctx, func(set *workset.Set) error {
		out = set.Select(scope, q)
		return nil
	})
	return out, err
}

// Get returns a copy of the committed node with id, or tree.ErrNotFound.
func (s *Store) Get(ctx context.Context, id tree.ID) (*tree.Node, error) {
	var out *tree.Node
	err := s.view(ctx, func(set *workset.Set) error {
		out = get(set, id)
		if out == nil {
			return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
		}
		return nil
	})
	return out, err
}

// Insert adds n to the committed set.
func (s *Store) Insert(ctx context.Context, n *tree.Node) error {
	return s.view(ctx, func(set *workset.Set) error { return set.Insert(n) })
}

// Save overwrites the committed nodes with the same IDs.
func (s *Store) Save(ctx context.Context, nodes []*tree.Node) error {
	return s.view(ctx, func(set *workset.Set) error { return set.Save(nodes) })
}

// UpdateAll applies a to every committed node of scope.
func (s *Store) UpdateAll(ctx context.Context, scope tree.Scope, a tree.Assignment) (int64, error) {
	var n int64
	err := s.view(ctx, func(set *workset.Set) error {
		n = set.UpdateAll(scope, a)
		return nil
	})
	return n, err
}

// DeleteAll removes the committed nodes of scope matching p.
func (s *Store) DeleteAll(ctx context.Context, scope tree.Scope, p tree.Predicate) (int64, error) {
	var n int64
	err := s.view(ctx, func(set *workset.Set) error {
		n = set.DeleteAll(scope, p)
		return nil
	})
	return n, err
}

// Max returns the largest f in scope; ok is false for an empty scope.
func (s *Store) Max(ctx context.Context, scope tree.Scope, f tree.Field) (int64, bool, error) {
	var (
		max int64
		ok  bool
	)
	err := s.view(ctx, func(set *workset.Set) error {
		max, ok = set.Max(scope, f)
		return nil
	})
	return max, ok, err
}

// Transaction runs fn against a private copy and publishes it if fn succeeds.
func (s *Store) Transaction(ctx context.Context, fn func(tx tree.Store) error) error {
	return s.view(ctx, func(set *workset.Set) error {
		work := set.Clone()
		if err := fn(&txStore{set: work}); err != nil {
			return err
		}
		s.set = work
		return nil
	})
}

func get(set *workset.Set, id tree.ID) *tree.Node {
	n, ok := set.Get(id)
	if !ok {
		return nil
	}
	return n
}

// txStore is the view handed to a transaction callback. The owning Store holds
// its lock for the whole callback.
type txStore struct {
	set *workset.Set
}

// Select reads from the transaction's copy.
func (t *txStore) Select(ctx context.Context, scope tree.Scope, q tree.Query) ([]*tree.Node, error) {
	return t.set.Select(scope, q), ctx.Err()
}

// Get returns a copy of the node with id as the transaction sees it.
func (t *txStore) Get(ctx context.Context, id tree.ID) (*tree.Node, error) {
	if n := get(t.set, id); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
}

// Insert adds n to the copy; the ID must be unused in every scope.
func (t *txStore) Insert(ctx context.Context, n *tree.Node) error {
	return t.set.Insert(n)
}

// Save overwrites the stored nodes with the same IDs.
func (t *txStore) Save(ctx context.Context, nodes []*tree.Node) error {
	return t.set.Save(nodes)
}

// UpdateAll applies a to every node of scope and reports how many changed.
func (t *txStore) UpdateAll(ctx context.Context, scope tree.Scope, a tree.Assignment) (int64, error) {
	return t.set.UpdateAll(scope, a), nil
}

// DeleteAll removes the nodes of scope matching p and reports how many.
func (t *txStore) DeleteAll(ctx context.Context, scope tree.Scope, p tree.Predicate) (int64, error) {
	return t.set.DeleteAll(scope, p), nil
}

// Max returns the largest f in scope; ok is false for an empty scope.
func (t *txStore) Max(ctx context.Context, scope tree.Scope, f tree.Field) (int64, bool, error) {
	max, ok := t.set.Max(scope, f)
	return max, ok, nil
}

// Transaction joins the enclosing transaction. A failing nested callback still
// rolls back everything once the error reaches the outer Transaction.
func (t *txStore) Transaction(ctx context.Context, fn func(tx tree.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}
