package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/store/memory"
	"github.com/jacentio/nestedset/tree"
)

var menu = tree.NewScope("menu_id", "1")

// seedNodes is the four node fixture:
//
//	root [1,8]
//	├── child_1 [2,3]
//	└── child_2 [4,7]
//	    └── child_2_1 [5,6]
func seedNodes() []*tree.Node {
	return []*tree.Node{
		{ID: "root", Left: 1, Right: 8, Scope: menu, Path: "root"},
		{ID: "child_1", Left: 2, Right: 3, ParentID: "root", Scope: menu, Level: 1, Path: "root/child_1"},
		{ID: "child_2", Left: 4, Right: 7, ParentID: "root", Scope: menu, Level: 1, Path: "root/child_2"},
		{ID: "child_2_1", Left: 5, Right: 6, ParentID: "child_2", Scope: menu, Level: 2, Path: "root/child_2/child_2_1"},
	}
}

func newFixture(t *testing.T) (context.Context, *tree.Tree, *memory.Store) {
	t.Helper()
	s := memory.New(seedNodes()...)
	return context.Background(), tree.New(s, tree.DefaultConfig()), s
}

func load(t *testing.T, tr *tree.Tree, id tree.ID) *tree.Node {
	t.Helper()
	n, err := tr.Get(context.Background(), id)
	require.NoError(t, err, "load %s", id)
	return n
}

func assertBounds(t *testing.T, tr *tree.Tree, id tree.ID, left, right int64) {
	t.Helper()
	n := load(t, tr, id)
	assert.Equal(t, [2]int64{left, right}, [2]int64{n.Left, n.Right}, "bounds of %s", id)
}

func assertParent(t *testing.T, tr *tree.Tree, id, parent tree.ID) {
	t.Helper()
	assert.Equal(t, parent, load(t, tr, id).ParentID, "parent of %s", id)
}

func assertValid(t *testing.T, tr *tree.Tree, scope tree.Scope) {
	t.Helper()
	assert.NoError(t, tr.Verify(context.Background(), scope))
}

func ids(nodes []*tree.Node) []tree.ID {
	out := make([]tree.ID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
