package tree

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
)

// SortKey orders siblings during a rebuild.
type SortKey func(a, b *Node) int

var (
	// SortByLeft keeps the current sibling order; ties fall back to ID.
	SortByLeft SortKey = func(a, b *Node) int {
		if c := cmp.Compare(a.Left, b.Left); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	}

	// SortBySlug orders siblings alphabetically by slug.
	SortBySlug SortKey = func(a, b *Node) int {
		if c := strings.Compare(a.Slug, b.Slug); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	}

	// SortByID orders siblings by ID, numerically where IDs are numbers.
	SortByID SortKey = func(a, b *Node) int {
		return compareIDs(a.ID, b.ID)
	}
)

// renumbering is one pre-order numbering pass.
type renumbering struct {
	t       *Tree
	counter int64
}

func (r *renumbering) open(n *Node, depth int, parent *Node) {
	r.counter++
	n.Left = r.counter
	if r.t.config.TrackLevel {
		n.Level = depth
	}
	if r.t.config.TrackPath {
		n.Path = r.t.segment(n)
		if parent != nil {
			n.Path = parent.Path + r.t.config.PathSeparator + n.Path
		}
	}
}

func (r *renumbering) close(n *Node) {
	r.counter++
	n.Right = r.counter
}

// RebuildFromParents renumbers every node of scope from its parent pointer.
// Roots come first, in sortKey order; nodes whose parent is missing from the
// scope and nodes caught in parent cycles become roots afterwards. Siblings are
// ordered by sortKey at every depth; a nil sortKey means SortByLeft.
func (t *Tree) RebuildFromParents(ctx context.Context, scope Scope, sortKey SortKey) error {
	if sortKey == nil {
		sortKey = SortByLeft
	}
	start := time.Now()
	var count int
	err := t.store.Transaction(ctx, func(tx Store) error {
		var err error
		count, err = t.rebuildFromParents(ctx, tx, scope, sortKey)
		return err
	})
	if err != nil {
		return err
	}
	t.metrics.observeRebuild("parents", start, count)
	t.logger.Info("rebuilt scope from parents", "scope", scope.String(), "nodes", count, "duration", time.Since(start))
	return nil
}

func (t *Tree) rebuildFromParents(ctx context.Context, tx Store, scope Scope, sortKey SortKey) (int, error) {
	nodes, err := tx.Select(ctx, scope, Query{})
	if err != nil {
		return 0, err
	}

	byID := make(map[ID]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	children := make(map[ID][]*Node, len(nodes))
	var roots, orphans []*Node
	for _, n := range nodes {
		_, hasParent := byID[n.ParentID]
		switch {
		case n.ParentID == "":
			roots = append(roots, n)
		case !hasParent || n.ParentID == n.ID:
			orphans = append(orphans, n)
		default:
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	slices.SortStableFunc(roots, sortKey)
	slices.SortStableFunc(orphans, func(a, b *Node) int {
		if c := compareIDs(a.ParentID, b.ParentID); c != 0 {
			return c
		}
		return sortKey(a, b)
	})
	for _, kids := range children {
		slices.SortStableFunc(kids, sortKey)
	}

	r := &renumbering{t: t}
	visited := make(map[ID]bool, len(nodes))
	var number func(n *Node, depth int, parent *Node)
	number = func(n *Node, depth int, parent *Node) {
		visited[n.ID] = true
		r.open(n, depth, parent)
		for _, c := range children[n.ID] {
			if !visited[c.ID] {
				number(c, depth+1, n)
			}
		}
		r.close(n)
	}

	for _, n := range roots {
		number(n, 0, nil)
	}
	for _, n := range orphans {
		t.logger.Warn("rebuild: parent missing, promoting to root", "id", n.ID, "parent", n.ParentID)
		n.ParentID = ""
		number(n, 0, nil)
	}
	// Whatever is left hangs off a parent cycle.
	rest := slices.Clone(nodes)
	slices.SortStableFunc(rest, sortKey)
	for _, n := range rest {
		if !visited[n.ID] {
			t.logger.Warn("rebuild: parent cycle, promoting to root", "id", n.ID, "parent", n.ParentID)
			n.ParentID = ""
			number(n, 0, nil)
		}
	}

	return len(nodes), tx.Save(ctx, nodes)
}

// RebuildFromPaths renumbers every node of scope from its path. A node is a
// descendant of another when its path starts with the other's path plus the
// separator. Parent pointers are realigned with the path ancestry.
func (t *Tree) RebuildFromPaths(ctx context.Context, scope Scope) error {
	start := time.Now()
	var count int
	sep := t.config.PathSeparator
	err := t.store.Transaction(ctx, func(tx Store) error {
		nodes, err := tx.Select(ctx, scope, Query{Order: OrderByPath})
		if err != nil {
			return err
		}
		count = len(nodes)
		SortNodes(nodes, OrderByPath)

		r := &renumbering{t: t}
		var renumber func(list []*Node, depth int, parent *Node)
		renumber = func(list []*Node, depth int, parent *Node) {
			for len(list) > 0 {
				n := list[0]
				list = list[1:]

				r.counter++
				n.Left = r.counter
				if t.config.TrackLevel {
					n.Level = depth
				}
				n.ParentID = ""
				if parent != nil {
					n.ParentID = parent.ID
				}

				prefix := n.Path + sep
				var kids, rest []*Node
				for _, c := range list {
					if strings.HasPrefix(c.Path, prefix) {
						kids = append(kids, c)
					} else {
						rest = append(rest, c)
					}
				}
				renumber(kids, depth+1, n)
				r.close(n)
				list = rest
			}
		}
		renumber(nodes, 0, nil)

		return tx.Save(ctx, nodes)
	})
	if err != nil {
		return err
	}
	t.metrics.observeRebuild("paths", start, count)
	t.logger.Info("rebuilt scope from paths", "scope", scope.String(), "nodes", count, "duration", time.Since(start))
	return nil
}
