package tree

import (
	"context"
	"errors"
	"fmt"
)

// annotate recomputes level and path of every node in scope from the intervals
// and saves the rows whose values changed.
func (t *Tree) annotate(ctx context.Context, s Store, scope Scope) error {
	if !t.tracksStructure() {
		return nil
	}
	nodes, err := s.Select(ctx, scope, Query{})
	if err != nil {
		return err
	}
	var changed []*Node
	walkIntervals(nodes, func(n *Node, stack []*Node) {
		level, path := n.Level, n.Path
		if t.config.TrackLevel {
			level = len(stack)
		}
		if t.config.TrackPath {
			path = t.segment(n)
			if len(stack) > 0 {
				path = stack[len(stack)-1].Path + t.config.PathSeparator + path
			}
		}
		if level != n.Level || path != n.Path {
			n.Level, n.Path = level, path
			changed = append(changed, n)
		}
	})
	if len(changed) == 0 {
		return nil
	}
	return s.Save(ctx, changed)
}

func (t *Tree) segment(n *Node) string {
	if n.Slug != "" {
		return n.Slug
	}
	return string(n.ID)
}

// walkIntervals visits nodes sorted by left bound, passing the chain of open
// ancestors. Nodes are visited in the order given, so callers must sort first.
func walkIntervals(nodes []*Node, visit func(n *Node, ancestors []*Node)) {
	var stack []*Node
	for _, n := range nodes {
		for len(stack) > 0 && stack[len(stack)-1].Right < n.Left {
			stack = stack[:len(stack)-1]
		}
		visit(n, stack)
		stack = append(stack, n)
	}
}

// Check verifies the interval invariants over the nodes of one scope: every
// interval is well formed and holds an even number of bounds, intervals are
// disjoint or properly nested, parent pointers match interval containment and
// the first root starts at 1. All violations are returned joined, each wrapping
// ErrCorrupt.
func Check(nodes []*Node) error {
	sorted := make([]*Node, len(nodes))
	copy(sorted, nodes)
	SortNodes(sorted, OrderByLeft)

	var errs []error
	corrupt := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...)))
	}

	seen := make(map[int64]ID, 2*len(sorted))
	for _, n := range sorted {
		if n.Left >= n.Right {
			corrupt("%s has left >= right", n)
			continue
		}
		if (n.Right-n.Left-1)%2 != 0 {
			corrupt("%s spans an odd number of bounds", n)
		}
		for _, b := range []int64{n.Left, n.Right} {
			if other, ok := seen[b]; ok {
				corrupt("bound %d shared by %s and %s", b, other, n.ID)
			}
			seen[b] = n.ID
		}
	}

	firstRoot := true
	walkIntervals(sorted, func(n *Node, ancestors []*Node) {
		if n.Left >= n.Right {
			return
		}
		var parent *Node
		if len(ancestors) > 0 {
			parent = ancestors[len(ancestors)-1]
			if n.Right > parent.Right {
				corrupt("%s partially overlaps %s", n, parent)
				return
			}
		}
		switch {
		case parent == nil && n.ParentID != "":
			corrupt("%s is top level but has parent %s", n, n.ParentID)
		case parent != nil && n.ParentID != parent.ID:
			corrupt("%s is contained by %s but has parent %q", n, parent.ID, n.ParentID)
		}
		if parent == nil {
			if firstRoot && n.Left != 1 {
				corrupt("first root %s does not start at 1", n)
			}
			firstRoot = false
		}
	})
	return errors.Join(errs...)
}

// Verify loads a scope and runs Check on it.
func (t *Tree) Verify(ctx context.Context, scope Scope) error {
	nodes, err := t.store.Select(ctx, scope, Query{})
	if err != nil {
		return err
	}
	return Check(nodes)
}
