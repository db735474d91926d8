package tree

import "context"

// Scope-level predicates. They compose with Predicate.And and run through
// Tree.Find or Store.Select.

// Roots matches top-level nodes.
func Roots() Predicate { return Where(ParentIs("")) }

// Leaves matches nodes without descendants.
func Leaves() Predicate { return Where(IsLeafCond()) }

// WithAncestors matches nodes enclosing the interval [l, r].
func WithAncestors(l, r int64, includeSelf bool) Predicate {
	if includeSelf {
		return Where(Le(FieldLeft, l), Ge(FieldRight, r))
	}
	return Where(Lt(FieldLeft, l), Gt(FieldRight, r))
}

// WithDescendants matches nodes inside the interval [l, r].
func WithDescendants(l, r int64, includeSelf bool) Predicate {
	if includeSelf {
		return Where(Ge(FieldLeft, l), Le(FieldRight, r))
	}
	return Where(Gt(FieldLeft, l), Lt(FieldRight, r))
}

// WithParent matches children of id, or roots for an empty id.
func WithParent(id ID) Predicate { return Where(ParentIs(id)) }

// WithLeftSibling matches the left sibling of a node starting at left.
func WithLeftSibling(left int64) Predicate { return Where(Eq(FieldRight, left-1)) }

// WithRightSibling matches the right sibling of a node ending at right.
func WithRightSibling(right int64) Predicate { return Where(Eq(FieldLeft, right+1)) }

// Find runs q against scope.
func (t *Tree) Find(ctx context.Context, scope Scope, q Query) ([]*Node, error) {
	return t.store.Select(ctx, scope, q)
}

func (t *Tree) first(ctx context.Context, scope Scope, p Predicate, o Order) (*Node, error) {
	nodes, err := t.store.Select(ctx, scope, Query{Where: p, Order: o, Limit: 1})
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Get loads a node by ID.
func (t *Tree) Get(ctx context.Context, id ID) (*Node, error) {
	return t.store.Get(ctx, id)
}

// Roots returns the top-level nodes of scope in order.
func (t *Tree) Roots(ctx context.Context, scope Scope) ([]*Node, error) {
	return t.Find(ctx, scope, Query{Where: Roots()})
}

// Root returns the first root of scope, or nil when the scope is empty.
func (t *Tree) Root(ctx context.Context, scope Scope) (*Node, error) {
	return t.first(ctx, scope, Roots(), OrderByLeft)
}

// Leaves returns every leaf of scope in order.
func (t *Tree) Leaves(ctx context.Context, scope Scope) ([]*Node, error) {
	return t.Find(ctx, scope, Query{Where: Leaves()})
}

// Parent returns n's parent, or nil for a root.
func (t *Tree) Parent(ctx context.Context, n *Node) (*Node, error) {
	if n.ParentID == "" {
		return nil, nil
	}
	p, err := t.store.Get(ctx, n.ParentID)
	if isNotFound(err) {
		return nil, nil
	}
	return p, err
}

// Children returns the direct children of n in order.
func (t *Tree) Children(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithParent(n.ID)})
}

// Ancestors returns the nodes enclosing n, outermost first.
func (t *Tree) Ancestors(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithAncestors(n.Left, n.Right, false)})
}

// SelfAndAncestors is Ancestors followed by n itself.
func (t *Tree) SelfAndAncestors(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithAncestors(n.Left, n.Right, true)})
}

// Descendants returns n's subtree without n, in pre-order.
func (t *Tree) Descendants(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithDescendants(n.Left, n.Right, false)})
}

// SelfAndDescendants returns n's subtree in pre-order, starting with n.
func (t *Tree) SelfAndDescendants(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithDescendants(n.Left, n.Right, true)})
}

// Siblings returns the other children of n's parent, or the other roots.
func (t *Tree) Siblings(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithParent(n.ParentID).And(IDIsNot(n.ID))})
}

// SelfAndSiblings is Siblings including n.
func (t *Tree) SelfAndSiblings(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithParent(n.ParentID)})
}

// PreviousSibling returns the sibling directly left of n, or nil.
func (t *Tree) PreviousSibling(ctx context.Context, n *Node) (*Node, error) {
	return t.first(ctx, n.Scope, WithLeftSibling(n.Left), OrderByLeft)
}

// NextSibling returns the sibling directly right of n, or nil.
func (t *Tree) NextSibling(ctx context.Context, n *Node) (*Node, error) {
	return t.first(ctx, n.Scope, WithRightSibling(n.Right), OrderByLeft)
}

// RootOf returns the top-level ancestor of n, which is n itself for a root.
func (t *Tree) RootOf(ctx context.Context, n *Node) (*Node, error) {
	return t.first(ctx, n.Scope, WithAncestors(n.Left, n.Right, true).And(ParentIs("")), OrderByLeft)
}

// LeavesOf returns the leaves inside n's subtree.
func (t *Tree) LeavesOf(ctx context.Context, n *Node) ([]*Node, error) {
	return t.Find(ctx, n.Scope, Query{Where: WithDescendants(n.Left, n.Right, false).And(IsLeafCond())})
}
