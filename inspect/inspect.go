// Package inspect renders nested sets as text trees.
//
// Nesting is taken from the intervals, not from parent pointers, so the
// output shows what queries will see:
//
//	.
//	└── root[1,8]
//	    ├── child_1[2,3]
//	    └── child_2[4,7]
//	        └── child_2_1[5,6]
package inspect

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/jacentio/nestedset/tree"
)

// Label formats one node.
type Label func(n *tree.Node) string

// Bounds labels a node with its ID and interval.
func Bounds(n *tree.Node) string {
	return n.String()
}

// Fields labels a node with the named columns: id, lft, rgt, parent_id, slug,
// path, level. Unknown names are skipped.
func Fields(names ...string) Label {
	return func(n *tree.Node) string {
		parts := make([]string, 0, len(names))
		for _, name := range names {
			var v string
			switch name {
			case "id":
				v = string(n.ID)
			case "lft":
				v = strconv.FormatInt(n.Left, 10)
			case "rgt":
				v = strconv.FormatInt(n.Right, 10)
			case "parent_id":
				v = string(n.ParentID)
			case "slug":
				v = n.Slug
			case "path":
				v = n.Path
			case "level":
				v = strconv.Itoa(n.Level)
			default:
				continue
			}
			parts = append(parts, name+": "+v)
		}
		return strings.Join(parts, ", ")
	}
}

// Render draws nodes of one scope. Nodes may come in any order.
func Render(nodes []*tree.Node, label Label) string {
	if label == nil {
		label = Bounds
	}
	sorted := make([]*tree.Node, len(nodes))
	copy(sorted, nodes)
	tree.SortNodes(sorted, tree.OrderByLeft)

	type frame struct {
		right  int64
		branch treeprint.Tree
	}
	root := treeprint.New()
	var stack []frame
	for _, n := range sorted {
		for len(stack) > 0 && stack[len(stack)-1].right < n.Left {
			stack = stack[:len(stack)-1]
		}
		parent := root
		if len(stack) > 0 {
			parent = stack[len(stack)-1].branch
		}
		stack = append(stack, frame{right: n.Right, branch: parent.AddBranch(label(n))})
	}
	return root.String()
}

// Scope draws every node of scope.
func Scope(ctx context.Context, t *tree.Tree, scope tree.Scope, label Label) (string, error) {
	nodes, err := t.Find(ctx, scope, tree.Query{})
	if err != nil {
		return "", fmt.Errorf("inspect scope %s: %w", scope, err)
	}
	return Render(nodes, label), nil
}

// Subtree draws n and its descendants.
func Subtree(ctx context.Context, t *tree.Tree, n *tree.Node, label Label) (string, error) {
	nodes, err := t.SelfAndDescendants(ctx, n)
	if err != nil {
		return "", fmt.Errorf("inspect %s: %w", n.ID, err)
	}
	return Render(nodes, label), nil
}
