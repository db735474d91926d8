package tree

import "context"

// MoveByAttributes resolves a sparse request into at most one move:
//  1. a left neighbor other than n moves n right of it;
//  2. else a right neighbor other than n moves n left of it;
//  3. else a given parent different from n's parent moves n under it, or to
//     root when the parent was cleared.
//
// A cleared left neighbor means "become leftmost" and a cleared right neighbor
// "become rightmost" among the siblings under the resolved parent. Contradicting
// hints fail with ErrInconsistentMove before anything is written.
func (t *Tree) MoveByAttributes(ctx context.Context, n *Node, req MoveRequest) error {
	return t.moveByAttributes(ctx, t.store, n, req)
}

func (t *Tree) moveByAttributes(ctx context.Context, s Store, n *Node, req MoveRequest) error {
	if req.IsZero() {
		return nil
	}
	if req.Path != "" {
		if req.Parent.Given() || req.Left.Given() || req.Right.Given() {
			return inconsistent("a path (%q) can not be combined with other hints", req.Path)
		}
		return t.moveToPath(ctx, s, n, req.Path)
	}

	return s.Transaction(ctx, func(tx Store) error {
		node, err := reload(ctx, tx, n)
		if err != nil {
			return err
		}

		h := hints{parentGiven: req.Parent.Given()}
		if req.Parent.IsSet() {
			if h.parent, err = resolve(ctx, tx, req.Parent.ID(), "parent"); err != nil {
				return err
			}
		}

		left, right := req.Left, req.Right
		if left.Cleared() || right.Cleared() {
			siblingParent := h.parent
			if !h.parentGiven && node.ParentID != "" {
				if siblingParent, err = resolve(ctx, tx, node.ParentID, "parent"); err != nil {
					return err
				}
			}
			var parentID ID
			if siblingParent != nil {
				parentID = siblingParent.ID
			}
			siblings, err := tx.Select(ctx, node.Scope, Query{Where: Where(ParentIs(parentID))})
			if err != nil {
				return err
			}
			if left.Cleared() {
				left = Ref{}
				if len(siblings) > 0 {
					right = SetRef(siblings[0].ID)
				}
			}
			if right.Cleared() {
				right = Ref{}
				if len(siblings) > 0 {
					left = SetRef(siblings[len(siblings)-1].ID)
				}
			}
		}

		if left.IsSet() {
			if h.left, err = resolve(ctx, tx, left.ID(), "left"); err != nil {
				return err
			}
		}
		if right.IsSet() {
			if h.right, err = resolve(ctx, tx, right.ID(), "right"); err != nil {
				return err
			}
		}
		if h.left != nil && h.right != nil {
			if h.leftNext, err = rightSiblingOf(ctx, tx, h.left); err != nil {
				return err
			}
		}
		if err := checkHints(h); err != nil {
			return err
		}

		switch {
		case h.left != nil && h.left.ID != node.ID:
			return t.moveTo(ctx, tx, n, h.left.ID, PositionRight)
		case h.right != nil && h.right.ID != node.ID:
			return t.moveTo(ctx, tx, n, h.right.ID, PositionLeft)
		case h.parentGiven:
			var target ID
			if h.parent != nil {
				target = h.parent.ID
			}
			if target == node.ParentID {
				return nil
			}
			if target == "" {
				return t.moveTo(ctx, tx, n, "", PositionRoot)
			}
			return t.moveTo(ctx, tx, n, target, PositionChild)
		}
		return nil
	})
}

// resolve loads a hinted node so identities compare by record, not by the
// literal the caller sent.
func resolve(ctx context.Context, s Store, id ID, role string) (*Node, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, inconsistent("%s %s does not exist", role, id)
		}
		return nil, err
	}
	return n, nil
}

func rightSiblingOf(ctx context.Context, s Store, n *Node) (*Node, error) {
	next, err := s.Select(ctx, n.Scope, Query{Where: Where(Eq(FieldLeft, n.Right+1)), Limit: 1})
	if err != nil || len(next) == 0 {
		return nil, err
	}
	return next[0], nil
}
