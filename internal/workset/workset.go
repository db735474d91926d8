// Package workset holds nodes in memory and evaluates store operations on them.
// It backs the memory store and the write overlay of the DynamoDB store.
package workset

import (
	"fmt"

	"github.com/jacentio/nestedset/tree"
)

// Set is an in-memory collection of nodes across scopes. A Set is not safe for
// concurrent use; callers serialize access.
type Set struct {
	nodes   map[tree.ID]*tree.Node
	byScope map[string]map[tree.ID]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{
		nodes:   make(map[tree.ID]*tree.Node),
		byScope: make(map[string]map[tree.ID]struct{}),
	}
}

// Load adds or replaces nodes without any existence checks.
func (s *Set) Load(nodes ...*tree.Node) {
	for _, n := range nodes {
		s.put(n.Clone())
	}
}

func (s *Set) put(n *tree.Node) {
	if old, ok := s.nodes[n.ID]; ok {
		s.unindex(old)
	}
	s.nodes[n.ID] = n
	key := n.Scope.Key()
	ids, ok := s.byScope[key]
	if !ok {
		ids = make(map[tree.ID]struct{})
		s.byScope[key] = ids
	}
	ids[n.ID] = struct{}{}
}

func (s *Set) unindex(n *tree.Node) {
	key := n.Scope.Key()
	if ids, ok := s.byScope[key]; ok {
		delete(ids, n.ID)
		if len(ids) == 0 {
			delete(s.byScope, key)
		}
	}
}

func (s *Set) remove(id tree.ID) {
	if n, ok := s.nodes[id]; ok {
		s.unindex(n)
		delete(s.nodes, id)
	}
}

// Len returns the number of nodes across all scopes.
func (s *Set) Len() int {
	return len(s.nodes)
}

// HasScope reports whether any node of scope is held.
func (s *Set) HasScope(scope tree.Scope) bool {
	_, ok := s.byScope[scope.Key()]
	return ok
}

// Scopes returns the keys of every scope held.
func (s *Set) Scopes() []string {
	keys := make([]string, 0, len(s.byScope))
	for k := range s.byScope {
		keys = append(keys, k)
	}
	return keys
}

// Get returns a copy of the node with id.
func (s *Set) Get(id tree.ID) (*tree.Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

func (s *Set) scope(scope tree.Scope) []*tree.Node {
	ids := s.byScope[scope.Key()]
	out := make([]*tree.Node, 0, len(ids))
	for id := range ids {
		out = append(out, s.nodes[id])
	}
	return out
}

// Select returns copies of the matching nodes in q's order.
func (s *Set) Select(scope tree.Scope, q tree.Query) []*tree.Node {
	var out []*tree.Node
	for _, n := range s.scope(scope) {
		if q.Where.Match(n) {
			out = append(out, n.Clone())
		}
	}
	tree.SortNodes(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Insert adds a new node.
func (s *Set) Insert(n *tree.Node) error {
	if _, ok := s.nodes[n.ID]; ok {
		return fmt.Errorf("%w: %s", tree.ErrAlreadyExists, n.ID)
	}
	s.put(n.Clone())
	return nil
}

// Save overwrites existing nodes. Nothing is written if any node is missing.
func (s *Set) Save(nodes []*tree.Node) error {
	for _, n := range nodes {
		if _, ok := s.nodes[n.ID]; !ok {
			return fmt.Errorf("%w: %s", tree.ErrNotFound, n.ID)
		}
	}
	for _, n := range nodes {
		s.put(n.Clone())
	}
	return nil
}

// UpdateAll applies a to every node of scope.
func (s *Set) UpdateAll(scope tree.Scope, a tree.Assignment) int64 {
	var changed int64
	for _, n := range s.scope(scope) {
		if a.Apply(n) {
			changed++
		}
	}
	return changed
}

// DeleteAll removes every node of scope matching p.
func (s *Set) DeleteAll(scope tree.Scope, p tree.Predicate) int64 {
	var deleted int64
	for _, n := range s.scope(scope) {
		if p.Match(n) {
			s.remove(n.ID)
			deleted++
		}
	}
	return deleted
}

// Max returns the largest value of an integer field in scope.
func (s *Set) Max(scope tree.Scope, f tree.Field) (int64, bool) {
	var max int64
	found := false
	for _, n := range s.scope(scope) {
		var v int64
		switch f {
		case tree.FieldLeft:
			v = n.Left
		case tree.FieldRight:
			v = n.Right
		case tree.FieldWidth:
			v = n.Right - n.Left
		default:
			continue
		}
		if !found || v > max {
			max, found = v, true
		}
	}
	return max, found
}

// Clone returns a deep copy.
func (s *Set) Clone() *Set {
	c := New()
	for _, n := range s.nodes {
		c.put(n.Clone())
	}
	return c
}

// Diff lists what turns before into after: nodes to write (new or changed) and
// nodes to delete.
func Diff(before, after *Set) (put, del []*tree.Node) {
	for id, n := range after.nodes {
		old, ok := before.nodes[id]
		if !ok || !Same(old, n) {
			put = append(put, n.Clone())
		}
	}
	for id, n := range before.nodes {
		if _, ok := after.nodes[id]; !ok {
			del = append(del, n.Clone())
		}
	}
	tree.SortNodes(put, tree.OrderByLeft)
	tree.SortNodes(del, tree.OrderByLeft)
	return put, del
}

// Same reports whether two nodes hold identical values.
func Same(a, b *tree.Node) bool {
	return a.ID == b.ID &&
		a.Left == b.Left &&
		a.Right == b.Right &&
		a.ParentID == b.ParentID &&
		a.Level == b.Level &&
		a.Slug == b.Slug &&
		a.Path == b.Path &&
		a.Scope.Equal(b.Scope)
}
