package tree

import (
	"context"
	"sort"
	"strings"
)

// MoveTo relocates n to pos relative to the node identified by target, or to the
// end of the root list for PositionRoot (target is then ignored). On success n is
// refreshed with its new bounds and parent.
func (t *Tree) MoveTo(ctx context.Context, n *Node, target ID, pos Position) error {
	return t.moveTo(ctx, t.store, n, target, pos)
}

// MoveToChildOf makes n the last child of target. A nil target moves n to root.
func (t *Tree) MoveToChildOf(ctx context.Context, n, target *Node) error {
	if target == nil {
		return t.MoveToRoot(ctx, n)
	}
	return t.moveToNode(ctx, n, target, PositionChild)
}

// MoveToLeftOf places n immediately left of target. A nil target makes n the
// rightmost of its current siblings.
func (t *Tree) MoveToLeftOf(ctx context.Context, n, target *Node) error {
	if target != nil {
		return t.moveToNode(ctx, n, target, PositionLeft)
	}
	siblings, err := t.Siblings(ctx, n)
	if err != nil || len(siblings) == 0 {
		return err
	}
	return t.moveToNode(ctx, n, siblings[len(siblings)-1], PositionRight)
}

// MoveToRightOf places n immediately right of target. A nil target makes n the
// leftmost of its current siblings.
func (t *Tree) MoveToRightOf(ctx context.Context, n, target *Node) error {
	if target != nil {
		return t.moveToNode(ctx, n, target, PositionRight)
	}
	siblings, err := t.Siblings(ctx, n)
	if err != nil || len(siblings) == 0 {
		return err
	}
	return t.moveToNode(ctx, n, siblings[0], PositionLeft)
}

// MoveToRoot makes n the last root of its scope.
func (t *Tree) MoveToRoot(ctx context.Context, n *Node) error {
	return t.moveTo(ctx, t.store, n, "", PositionRoot)
}

// MoveLeft swaps n with its left sibling, if any.
func (t *Tree) MoveLeft(ctx context.Context, n *Node) error {
	prev, err := t.PreviousSibling(ctx, n)
	if err != nil || prev == nil {
		return err
	}
	return t.moveToNode(ctx, n, prev, PositionLeft)
}

// MoveRight swaps n with its right sibling, if any.
func (t *Tree) MoveRight(ctx context.Context, n *Node) error {
	next, err := t.NextSibling(ctx, n)
	if err != nil || next == nil {
		return err
	}
	return t.moveToNode(ctx, n, next, PositionRight)
}

// MoveToPath reparents n under the node whose path is everything before the last
// separator of p. A path without separator moves n to root.
func (t *Tree) MoveToPath(ctx context.Context, n *Node, p string) error {
	return t.moveToPath(ctx, t.store, n, p)
}

func (t *Tree) moveToPath(ctx context.Context, s Store, n *Node, p string) error {
	sep := t.config.PathSeparator
	idx := strings.LastIndex(p, sep)
	if idx < 0 {
		return t.moveTo(ctx, s, n, "", PositionRoot)
	}
	parentPath := p[:idx]
	matches, err := s.Select(ctx, n.Scope, Query{Where: Where(PathIs(parentPath)), Limit: 1})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return impossible("no node at path %q", parentPath)
	}
	return t.moveTo(ctx, s, n, matches[0].ID, PositionChild)
}

func (t *Tree) moveToNode(ctx context.Context, n, target *Node, pos Position) error {
	if err := t.moveTo(ctx, t.store, n, target.ID, pos); err != nil {
		return err
	}
	fresh, err := t.store.Get(ctx, target.ID)
	if err != nil {
		return err
	}
	target.refresh(fresh)
	return nil
}

func (t *Tree) moveTo(ctx context.Context, s Store, n *Node, target ID, pos Position) error {
	if !pos.Valid() {
		return impossible("position must be one of child, left, right, root but is %s", pos)
	}
	noop := false
	err := s.Transaction(ctx, func(tx Store) error {
		node, err := reload(ctx, tx, n)
		if err != nil {
			return err
		}

		var tgt *Node
		if pos != PositionRoot {
			if target == "" {
				return impossible("position %s needs a target", pos)
			}
			tgt, err = tx.Get(ctx, target)
			if err != nil {
				if isNotFound(err) {
					return impossible("target %s does not exist", target)
				}
				return err
			}
		}
		if err := CheckMove(node, recordOrNil(tgt), pos); err != nil {
			return err
		}
		if err := t.hooks.beforeMove(ctx, node); err != nil {
			return err
		}
		if noop, err = t.relocate(ctx, tx, node, tgt, pos); err != nil {
			return err
		}
		return t.hooks.afterMove(ctx, tx, node.ID)
	})
	if err != nil {
		return err
	}

	t.metrics.observeMove(pos, noop)
	if noop {
		t.logger.Debug("move is a no-op", "id", n.ID, "target", target, "position", pos.String())
	} else {
		t.logger.Debug("moved node", "id", n.ID, "target", target, "position", pos.String())
	}

	fresh, err := s.Get(ctx, n.ID)
	if err != nil {
		return err
	}
	n.refresh(fresh)
	return nil
}

// relocate rewrites the bounds of node's scope for the move. It reports a
// no-op when node already sits at the requested place.
func (t *Tree) relocate(ctx context.Context, tx Store, node, tgt *Node, pos Position) (bool, error) {
	raw, empty, err := rawBound(ctx, tx, node, tgt, pos)
	if err != nil {
		return false, err
	}
	if empty {
		return false, t.placeFirstRoot(ctx, tx, node)
	}

	bound, other := raw, node.Left-1
	if raw > node.Right {
		bound, other = raw-1, node.Right+1
	}
	if bound == node.Right || bound == node.Left {
		return true, nil
	}

	b := []int64{node.Left, node.Right, bound, other}
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })

	if _, err := tx.UpdateAll(ctx, node.Scope, Assignment{
		Left:     Transposition(b[0], b[1], b[2], b[3]),
		Right:    Transposition(b[0], b[1], b[2], b[3]),
		Reparent: &Reparent{ID: node.ID, Parent: newParent(tgt, pos)},
	}); err != nil {
		return false, err
	}
	return false, t.annotate(ctx, tx, node.Scope)
}

// rawBound computes the insertion bound for pos. empty reports a root move into
// a scope that has no roots at all.
func rawBound(ctx context.Context, s Store, node, target *Node, pos Position) (raw int64, empty bool, err error) {
	switch pos {
	case PositionChild:
		return target.Right, false, nil
	case PositionLeft:
		return target.Left, false, nil
	case PositionRight:
		return target.Right + 1, false, nil
	}
	roots, err := s.Select(ctx, node.Scope, Query{Where: Where(ParentIs("")), Order: OrderByLeftDesc, Limit: 1})
	if err != nil {
		return 0, false, err
	}
	if len(roots) == 0 {
		return 1, true, nil
	}
	return roots[0].Right + 1, false, nil
}

// placeFirstRoot handles a root move in a scope without roots by renumbering the
// node's subtree to start at 1. A leaf lands on [1,2].
func (t *Tree) placeFirstRoot(ctx context.Context, s Store, node *Node) error {
	delta := 1 - node.Left
	span := []Shift{{From: node.Left, To: node.Right, Delta: delta}}
	if _, err := s.UpdateAll(ctx, node.Scope, Assignment{
		Left:     span,
		Right:    span,
		Reparent: &Reparent{ID: node.ID},
	}); err != nil {
		return err
	}
	return t.annotate(ctx, s, node.Scope)
}

func newParent(target *Node, pos Position) ID {
	switch pos {
	case PositionChild:
		return target.ID
	case PositionRoot:
		return ""
	}
	return target.ParentID
}

func recordOrNil(n *Node) Record {
	if n == nil {
		return nil
	}
	return n
}
