// Package storetest is a conformance suite for tree.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/tree"
)

// Opener returns an empty store for one subtest.
type Opener func(t *testing.T) tree.Store

var (
	scopeA = tree.NewScope("menu_id", "1")
	scopeB = tree.NewScope("menu_id", "2")
)

// Fixture is the four node tree used by the suite:
//
//	root [1,8]
//	├── child_1 [2,3]
//	└── child_2 [4,7]
//	    └── child_2_1 [5,6]
func Fixture(scope tree.Scope) []*tree.Node {
	return []*tree.Node{
		{ID: "root", Left: 1, Right: 8, Scope: scope, Path: "root"},
		{ID: "child_1", Left: 2, Right: 3, ParentID: "root", Scope: scope, Level: 1, Path: "root/child_1"},
		{ID: "child_2", Left: 4, Right: 7, ParentID: "root", Scope: scope, Level: 1, Path: "root/child_2"},
		{ID: "child_2_1", Left: 5, Right: 6, ParentID: "child_2", Scope: scope, Level: 2, Path: "root/child_2/child_2_1"},
	}
}

// Seed inserts nodes into s.
func Seed(t *testing.T, s tree.Store, nodes ...*tree.Node) {
	t.Helper()
	ctx := context.Background()
	for _, n := range nodes {
		require.NoError(t, s.Insert(ctx, n), "seed %s", n.ID)
	}
}

// Run exercises the store contract and the tree scenarios against open.
func Run(t *testing.T, open Opener) {
	t.Run("Contract", func(t *testing.T) { runContract(t, open) })
	t.Run("Scenarios", func(t *testing.T) { runScenarios(t, open) })
}

func seeded(t *testing.T, open Opener) (context.Context, tree.Store) {
	t.Helper()
	s := open(t)
	Seed(t, s, Fixture(scopeA)...)
	Seed(t, s, &tree.Node{ID: "other", Left: 1, Right: 2, Scope: scopeB, Path: "other"})
	return context.Background(), s
}

func nodeIDs(nodes []*tree.Node) []tree.ID {
	out := make([]tree.ID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func bounds(t *testing.T, s tree.Store, id tree.ID) [2]int64 {
	t.Helper()
	n, err := s.Get(context.Background(), id)
	require.NoError(t, err, "get %s", id)
	return [2]int64{n.Left, n.Right}
}

func runContract(t *testing.T, open Opener) {
	t.Run("GetRoundTrip", func(t *testing.T) {
		ctx, s := seeded(t, open)
		n, err := s.Get(ctx, "child_2_1")
		require.NoError(t, err)
		assert.Equal(t, tree.ID("child_2"), n.ParentID)
		assert.True(t, n.Scope.Equal(scopeA))
		assert.Equal(t, 2, n.Level)
		assert.Equal(t, "root/child_2/child_2_1", n.Path)

		root, err := s.Get(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, tree.ID(""), root.ParentID)
	})

	t.Run("GetMissing", func(t *testing.T) {
		ctx, s := seeded(t, open)
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, tree.ErrNotFound)
	})

	t.Run("InsertDuplicate", func(t *testing.T) {
		ctx, s := seeded(t, open)
		err := s.Insert(ctx, &tree.Node{ID: "root", Left: 9, Right: 10, Scope: scopeA})
		assert.ErrorIs(t, err, tree.ErrAlreadyExists)
	})

	t.Run("SelectScopedAndOrdered", func(t *testing.T) {
		ctx, s := seeded(t, open)
		all, err := s.Select(ctx, scopeA, tree.Query{})
		require.NoError(t, err)
		assert.Equal(t, []tree.ID{"root", "child_1", "child_2", "child_2_1"}, nodeIDs(all))

		desc, err := s.Select(ctx, scopeA, tree.Query{Order: tree.OrderByLeftDesc, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []tree.ID{"child_2_1", "child_2"}, nodeIDs(desc))

		byPath, err := s.Select(ctx, scopeA, tree.Query{Order: tree.OrderByPath})
		require.NoError(t, err)
		assert.Equal(t, []tree.ID{"root", "child_1", "child_2", "child_2_1"}, nodeIDs(byPath))
	})

	t.Run("SelectPredicates", func(t *testing.T) {
		ctx, s := seeded(t, open)
		tests := []struct {
			name string
			p    tree.Predicate
			want []tree.ID
		}{
			{"roots", tree.Where(tree.ParentIs("")), []tree.ID{"root"}},
			{"children", tree.Where(tree.ParentIs("root")), []tree.ID{"child_1", "child_2"}},
			{"leaves", tree.Where(tree.IsLeafCond()), []tree.ID{"child_1", "child_2_1"}},
			{"inside", tree.Where(tree.Gt(tree.FieldLeft, 1), tree.Lt(tree.FieldRight, 8)), []tree.ID{"child_1", "child_2", "child_2_1"}},
			{"path under", tree.Where(tree.PathUnder("root/child_2", "/")), []tree.ID{"child_2_1"}},
			{"path under is case sensitive", tree.Where(tree.PathUnder("ROOT", "/")), []tree.ID{}},
			{"path is", tree.Where(tree.PathIs("root/child_1")), []tree.ID{"child_1"}},
			{"not id", tree.Where(tree.ParentIs("root"), tree.IDIsNot("child_1")), []tree.ID{"child_2"}},
			{"has parent", tree.Where(tree.Cond{Field: tree.FieldParent, Op: tree.OpNotNull}), []tree.ID{"child_1", "child_2", "child_2_1"}},
		}
		for _, tt := range tests {
			got, err := s.Select(ctx, scopeA, tree.Query{Where: tt.p})
			require.NoError(t, err, tt.name)
			assert.Equal(t, tt.want, nodeIDs(got), tt.name)
		}
	})

	t.Run("Save", func(t *testing.T) {
		ctx, s := seeded(t, open)
		n, err := s.Get(ctx, "child_1")
		require.NoError(t, err)
		n.Slug, n.Path, n.ParentID = "first", "root/first", ""
		require.NoError(t, s.Save(ctx, []*tree.Node{n}))

		got, err := s.Get(ctx, "child_1")
		require.NoError(t, err)
		assert.Equal(t, "first", got.Slug)
		assert.Equal(t, "root/first", got.Path)
		assert.Equal(t, tree.ID(""), got.ParentID)

		err = s.Save(ctx, []*tree.Node{{ID: "ghost", Scope: scopeA}})
		assert.ErrorIs(t, err, tree.ErrNotFound)
	})

	t.Run("UpdateAllTransposes", func(t *testing.T) {
		ctx, s := seeded(t, open)
		_, err := s.UpdateAll(ctx, scopeA, tree.Assignment{
			Left:     tree.Transposition(2, 3, 4, 7),
			Right:    tree.Transposition(2, 3, 4, 7),
			Reparent: &tree.Reparent{ID: "child_1", Parent: "child_2"},
		})
		require.NoError(t, err)
		assert.Equal(t, [2]int64{6, 7}, bounds(t, s, "child_1"))
		assert.Equal(t, [2]int64{2, 5}, bounds(t, s, "child_2"))
		assert.Equal(t, [2]int64{3, 4}, bounds(t, s, "child_2_1"))
		assert.Equal(t, [2]int64{1, 8}, bounds(t, s, "root"))
		assert.Equal(t, [2]int64{1, 2}, bounds(t, s, "other"))

		n, err := s.Get(ctx, "child_1")
		require.NoError(t, err)
		assert.Equal(t, tree.ID("child_2"), n.ParentID)
		n, err = s.Get(ctx, "child_2_1")
		require.NoError(t, err)
		assert.Equal(t, tree.ID("child_2"), n.ParentID)
	})

	t.Run("UpdateAllReparentToRoot", func(t *testing.T) {
		ctx, s := seeded(t, open)
		_, err := s.UpdateAll(ctx, scopeA, tree.Assignment{Reparent: &tree.Reparent{ID: "child_1"}})
		require.NoError(t, err)
		roots, err := s.Select(ctx, scopeA, tree.Query{Where: tree.Where(tree.ParentIs(""))})
		require.NoError(t, err)
		assert.Equal(t, []tree.ID{"root", "child_1"}, nodeIDs(roots))
	})

	t.Run("DeleteAllAndMax", func(t *testing.T) {
		ctx, s := seeded(t, open)
		max, ok, err := s.Max(ctx, scopeA, tree.FieldRight)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(8), max)

		deleted, err := s.DeleteAll(ctx, scopeA, tree.Where(tree.Ge(tree.FieldLeft, 4)))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		_, ok, err = s.Max(ctx, tree.NewScope("menu_id", "404"), tree.FieldRight)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TransactionRollsBack", func(t *testing.T) {
		ctx, s := seeded(t, open)
		boom := errors.New("boom")
		err := s.Transaction(ctx, func(tx tree.Store) error {
			if _, err := tx.DeleteAll(ctx, scopeA, tree.Where(tree.IDIs("child_1"))); err != nil {
				return err
			}
			return tx.Transaction(ctx, func(inner tree.Store) error {
				if err := inner.Insert(ctx, &tree.Node{ID: "tmp", Left: 9, Right: 10, Scope: scopeA}); err != nil {
					return err
				}
				return boom
			})
		})
		assert.ErrorIs(t, err, boom)
		_, err = s.Get(ctx, "child_1")
		assert.NoError(t, err)
		_, err = s.Get(ctx, "tmp")
		assert.ErrorIs(t, err, tree.ErrNotFound)
	})

	t.Run("TransactionCommits", func(t *testing.T) {
		ctx, s := seeded(t, open)
		err := s.Transaction(ctx, func(tx tree.Store) error {
			if err := tx.Insert(ctx, &tree.Node{ID: "tmp", Left: 9, Right: 10, Scope: scopeA}); err != nil {
				return err
			}
			n, err := tx.Get(ctx, "tmp")
			if err != nil {
				return err
			}
			n.Path = "tmp"
			return tx.Save(ctx, []*tree.Node{n})
		})
		require.NoError(t, err)
		n, err := s.Get(ctx, "tmp")
		require.NoError(t, err)
		assert.Equal(t, "tmp", n.Path)
	})
}

func runScenarios(t *testing.T, open Opener) {
	newTree := func(t *testing.T) (context.Context, *tree.Tree) {
		ctx, s := seeded(t, open)
		return ctx, tree.New(s, tree.DefaultConfig())
	}
	get := func(t *testing.T, tr *tree.Tree, id tree.ID) *tree.Node {
		t.Helper()
		n, err := tr.Get(context.Background(), id)
		require.NoError(t, err)
		return n
	}

	t.Run("MoveToLeftOfParent", func(t *testing.T) {
		ctx, tr := newTree(t)
		require.NoError(t, tr.MoveToLeftOf(ctx, get(t, tr, "child_2_1"), get(t, tr, "child_2")))
		kids, err := tr.Children(ctx, get(t, tr, "root"))
		require.NoError(t, err)
		assert.Equal(t, []tree.ID{"child_1", "child_2_1", "child_2"}, nodeIDs(kids))
		assert.Equal(t, tree.ID("root"), get(t, tr, "child_2_1").ParentID)
		assert.NoError(t, tr.Verify(ctx, scopeA))
	})

	t.Run("DestroySubtree", func(t *testing.T) {
		ctx, tr := newTree(t)
		require.NoError(t, tr.Destroy(ctx, get(t, tr, "child_2")))
		assert.Equal(t, [2]int64{1, 4}, bounds(t, tr.Store(), "root"))
		assert.Equal(t, [2]int64{2, 3}, bounds(t, tr.Store(), "child_1"))
		_, err := tr.Get(ctx, "child_2_1")
		assert.ErrorIs(t, err, tree.ErrNotFound)
		assert.Equal(t, [2]int64{1, 2}, bounds(t, tr.Store(), "other"))
		assert.NoError(t, tr.Verify(ctx, scopeA))
	})

	t.Run("CreateUnderParent", func(t *testing.T) {
		ctx, tr := newTree(t)
		n := &tree.Node{ID: "new", Scope: scopeA}
		require.NoError(t, tr.Create(ctx, n, tree.ByParent("child_2")))
		assert.Equal(t, [2]int64{7, 8}, [2]int64{n.Left, n.Right})
		assert.Equal(t, [2]int64{4, 9}, bounds(t, tr.Store(), "child_2"))
		assert.Equal(t, "root/child_2/new", n.Path)
		assert.NoError(t, tr.Verify(ctx, scopeA))
	})

	t.Run("MoveToSelf", func(t *testing.T) {
		ctx, tr := newTree(t)
		err := tr.MoveToChildOf(ctx, get(t, tr, "child_1"), get(t, tr, "child_1"))
		assert.ErrorIs(t, err, tree.ErrImpossibleMove)
	})

	t.Run("RootAsBothNeighbors", func(t *testing.T) {
		ctx, tr := newTree(t)
		req := tree.ByLeftNeighbor("root").WithRight("root")
		err := tr.MoveByAttributes(ctx, get(t, tr, "child_2"), req)
		assert.ErrorIs(t, err, tree.ErrInconsistentMove)
		assert.Equal(t, [2]int64{4, 7}, bounds(t, tr.Store(), "child_2"))
	})

	t.Run("RebuildFromParents", func(t *testing.T) {
		ctx, tr := newTree(t)
		nodes, err := tr.Find(ctx, scopeA, tree.Query{})
		require.NoError(t, err)
		for _, n := range nodes {
			n.Left, n.Right = 0, 0
		}
		require.NoError(t, tr.Store().Save(ctx, nodes))

		require.NoError(t, tr.RebuildFromParents(ctx, scopeA, nil))
		for _, want := range Fixture(scopeA) {
			assert.Equal(t, [2]int64{want.Left, want.Right}, bounds(t, tr.Store(), want.ID), want.ID)
		}
		assert.NoError(t, tr.Verify(ctx, scopeA))
	})
}
