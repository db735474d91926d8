package tree

import (
	"context"
	"strings"
)

// Batch collects inserts and reparentings for one scope without relocating
// anything, then reconciles the whole scope with a single rebuild on Commit.
// Between the first write and Commit the scope's intervals are stale; readers
// that need them must wait for Commit. A Batch is not safe for concurrent use.
type Batch struct {
	tree    *Tree
	scope   Scope
	pending int
}

// Batch starts a batch session for scope.
func (t *Tree) Batch(scope Scope) *Batch {
	return &Batch{tree: t, scope: scope}
}

// Pending returns the number of writes since the last Commit.
func (b *Batch) Pending() int {
	return b.pending
}

// Create inserts n at the end of the scope with the parent named by req. IDs
// are assigned as in Tree.Create.
// Neighbor hints only choose the parent; sibling order is decided on Commit.
// Paths resolve against the paths as of the last commit.
func (b *Batch) Create(ctx context.Context, n *Node, req MoveRequest) error {
	if !n.Scope.Equal(b.scope) {
		return impossible("node scope %s is not the batch scope %s", n.Scope, b.scope)
	}
	err := assignID(n)
	if err != nil {
		return err
	}
	if n.ParentID != "" {
		if n.ParentID, err = ParseID(n.ParentID); err != nil {
			return err
		}
	}
	parent, err := b.parentFor(ctx, n.ParentID, req)
	if err != nil {
		return err
	}
	n.Left, n.Right = 0, 0
	if err := b.tree.initAsNode(ctx, b.tree.store, n); err != nil {
		return err
	}
	n.ParentID = parent
	if err := b.tree.store.Insert(ctx, n); err != nil {
		return err
	}
	b.pending++
	return nil
}

// Reparent points n at the parent named by req without moving its interval.
func (b *Batch) Reparent(ctx context.Context, n *Node, req MoveRequest) error {
	node, err := b.tree.store.Get(ctx, n.ID)
	if err != nil {
		return err
	}
	if !node.Scope.Equal(b.scope) {
		return impossible("node scope %s is not the batch scope %s", node.Scope, b.scope)
	}
	parent, err := b.parentFor(ctx, node.ParentID, req)
	if err != nil {
		return err
	}
	if parent == node.ID {
		return impossible("a node can't be moved to itself")
	}
	node.ParentID = parent
	if err := b.tree.store.Save(ctx, []*Node{node}); err != nil {
		return err
	}
	n.ParentID = parent
	b.pending++
	return nil
}

// Commit rebuilds the scope from parent pointers.
func (b *Batch) Commit(ctx context.Context, sortKey SortKey) error {
	if err := b.tree.RebuildFromParents(ctx, b.scope, sortKey); err != nil {
		return err
	}
	b.pending = 0
	return nil
}

func (b *Batch) parentFor(ctx context.Context, current ID, req MoveRequest) (ID, error) {
	s := b.tree.store
	switch {
	case req.Path != "":
		idx := strings.LastIndex(req.Path, b.tree.config.PathSeparator)
		if idx < 0 {
			return "", nil
		}
		matches, err := s.Select(ctx, b.scope, Query{Where: Where(PathIs(req.Path[:idx])), Limit: 1})
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", impossible("no node at path %q", req.Path[:idx])
		}
		return matches[0].ID, nil
	case req.Parent.Cleared():
		return "", nil
	case req.Parent.IsSet():
		return b.member(ctx, req.Parent.ID(), false)
	case req.Left.IsSet():
		return b.member(ctx, req.Left.ID(), true)
	case req.Right.IsSet():
		return b.member(ctx, req.Right.ID(), true)
	}
	return current, nil
}

// member resolves id inside the batch scope and returns it, or its parent when
// the hint names a neighbor.
func (b *Batch) member(ctx context.Context, id ID, neighbor bool) (ID, error) {
	n, err := b.tree.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !n.Scope.Equal(b.scope) {
		return "", impossible("a node can't be moved to a different scope")
	}
	if neighbor {
		return n.ParentID, nil
	}
	return n.ID, nil
}
