package tree

import (
	"context"

	"github.com/google/uuid"
)

// InitAsNode assigns n the rightmost free slot of its scope. Nodes that already
// have an interval are left alone.
func (t *Tree) InitAsNode(ctx context.Context, n *Node) error {
	return t.initAsNode(ctx, t.store, n)
}

func (t *Tree) initAsNode(ctx context.Context, s Store, n *Node) error {
	if n.HasInterval() {
		return nil
	}
	max, _, err := s.Max(ctx, n.Scope, FieldRight)
	if err != nil {
		return err
	}
	n.Left = max + 1
	n.Right = max + 2
	n.Level = 0
	if t.config.TrackPath {
		n.Path = t.segment(n)
	}
	return nil
}

// Create inserts n at the end of its scope and then relocates it according to
// req, all in one transaction. An empty ID is replaced by a random UUID, any
// other ID is stored in its canonical form (see ParseID). When req is empty and
// n.ParentID is set, n becomes the last child of that parent.
func (t *Tree) Create(ctx context.Context, n *Node, req MoveRequest) error {
	if err := assignID(n); err != nil {
		return err
	}
	if req.IsZero() && n.ParentID != "" {
		parent, err := ParseID(n.ParentID)
		if err != nil {
			return err
		}
		req = ByParent(parent)
	}
	n.ParentID = ""
	n.Left, n.Right = 0, 0

	return t.store.Transaction(ctx, func(tx Store) error {
		if err := t.initAsNode(ctx, tx, n); err != nil {
			return err
		}
		if err := tx.Insert(ctx, n); err != nil {
			return err
		}
		if err := t.moveByAttributes(ctx, tx, n, req); err != nil {
			return err
		}
		fresh, err := tx.Get(ctx, n.ID)
		if err != nil {
			return err
		}
		n.refresh(fresh)
		return nil
	})
}

// assignID mints an ID for n or canonicalises the one it has, so a node is
// found by the same ID that hint parsing produces.
func assignID(n *Node) error {
	if n.ID == "" {
		n.ID = ID(uuid.NewString())
		return nil
	}
	id, err := ParseID(n.ID)
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

// PruneBranch deletes every node strictly inside n and closes the gap left by
// n's interval. n itself is not deleted: callers either delete it in the same
// transaction (see Destroy) or call this after n was removed by other means.
// Nodes without an interval are ignored.
func (t *Tree) PruneBranch(ctx context.Context, n *Node) error {
	if !n.HasInterval() {
		return nil
	}
	return t.store.Transaction(ctx, func(tx Store) error {
		return t.pruneBranch(ctx, tx, n)
	})
}

func (t *Tree) pruneBranch(ctx context.Context, s Store, n *Node) error {
	width := n.Right - n.Left + 1
	deleted, err := s.DeleteAll(ctx, n.Scope, Where(Gt(FieldLeft, n.Left), Lt(FieldRight, n.Right)))
	if err != nil {
		return err
	}
	if _, err := s.UpdateAll(ctx, n.Scope, Assignment{
		Left:  ShiftFrom(n.Right, -width),
		Right: ShiftFrom(n.Right, -width),
	}); err != nil {
		return err
	}
	t.metrics.observePrune()
	t.logger.Debug("pruned branch", "id", n.ID, "scope", n.Scope.String(), "descendants", deleted, "width", width)
	return nil
}

// Destroy deletes n together with its subtree and closes the gap.
func (t *Tree) Destroy(ctx context.Context, n *Node) error {
	return t.store.Transaction(ctx, func(tx Store) error {
		node, err := tx.Get(ctx, n.ID)
		if err != nil {
			return err
		}
		if node.HasInterval() {
			if err := t.pruneBranch(ctx, tx, node); err != nil {
				return err
			}
		}
		_, err = tx.DeleteAll(ctx, node.Scope, Where(IDIs(node.ID)))
		return err
	})
}

// Reclaim cleans up after n was removed from the store by other means, such as
// a storage TTL. Every node that descends from n by parent pointer is deleted
// and the scope is renumbered in its current order. Stale bounds on n do not
// matter: the gap is closed from the parent pointers of what remains.
func (t *Tree) Reclaim(ctx context.Context, n *Node) error {
	var deleted int
	err := t.store.Transaction(ctx, func(tx Store) error {
		nodes, err := tx.Select(ctx, n.Scope, Query{})
		if err != nil {
			return err
		}
		children := make(map[ID][]ID, len(nodes))
		for _, c := range nodes {
			if c.ParentID != "" {
				children[c.ParentID] = append(children[c.ParentID], c.ID)
			}
		}

		doomed := map[ID]bool{n.ID: true}
		queue := []ID{n.ID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, c := range children[id] {
				if !doomed[c] {
					doomed[c] = true
					queue = append(queue, c)
				}
			}
		}
		for id := range doomed {
			count, err := tx.DeleteAll(ctx, n.Scope, Where(IDIs(id)))
			if err != nil {
				return err
			}
			deleted += int(count)
		}

		_, err = t.rebuildFromParents(ctx, tx, n.Scope, SortByLeft)
		return err
	})
	if err != nil {
		return err
	}
	t.metrics.observePrune()
	t.logger.Info("reclaimed branch", "id", n.ID, "scope", n.Scope.String(), "deleted", deleted)
	return nil
}
