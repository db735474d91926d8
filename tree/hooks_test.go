package tree_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/tree"
)

// recordHooks logs "before <parent>" and "after <parent>" for every move.
func recordHooks(tr *tree.Tree) *[]string {
	var calls []string
	tr.SetHooks(tree.Hooks{
		BeforeMove: func(ctx context.Context, n *tree.Node) error {
			calls = append(calls, "before "+string(n.ParentID))
			return nil
		},
		AfterMove: func(ctx context.Context, n *tree.Node) error {
			calls = append(calls, "after "+string(n.ParentID))
			return nil
		},
	})
	return &calls
}

func TestHooks_MoveExistingNode(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	calls := recordHooks(tr)

	require.NoError(t, tr.MoveToLeftOf(ctx, load(t, tr, "child_2_1"), load(t, tr, "child_1")))

	assert.Equal(t, []string{"before child_2", "after root"}, *calls)
}

func TestHooks_AfterMoveSeesNewParent(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	calls := recordHooks(tr)

	require.NoError(t, tr.MoveToChildOf(ctx, load(t, tr, "child_1"), load(t, tr, "child_2")))

	assert.Equal(t, []string{"before root", "after child_2"}, *calls)
}

func TestHooks_Create(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	calls := recordHooks(tr)

	require.NoError(t, tr.Create(ctx, &tree.Node{ID: "new", ParentID: "child_2", Scope: menu}, tree.Clear()))

	assert.Equal(t, []string{"before ", "after child_2"}, *calls)
}

func TestHooks_NoopMove(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	calls := recordHooks(tr)

	require.NoError(t, tr.MoveToLeftOf(ctx, load(t, tr, "child_1"), load(t, tr, "child_2")))

	assert.Equal(t, []string{"before root", "after root"}, *calls)
	assertBounds(t, tr, "child_1", 2, 3)
}

func TestHooks_ErrorRollsBack(t *testing.T) {
	errVeto := errors.New("veto")
	tests := []struct {
		name  string
		hooks tree.Hooks
	}{
		{"before", tree.Hooks{BeforeMove: func(context.Context, *tree.Node) error { return errVeto }}},
		{"after", tree.Hooks{AfterMove: func(context.Context, *tree.Node) error { return errVeto }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, tr, _ := newFixture(t)
			tr.SetHooks(tt.hooks)

			err := tr.MoveToRoot(ctx, load(t, tr, "child_2"))

			assert.ErrorIs(t, err, errVeto)
			assertBounds(t, tr, "child_2", 4, 7)
			assertParent(t, tr, "child_2", "root")
			assertBounds(t, tr, "root", 1, 8)
		})
	}
}
