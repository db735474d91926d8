package tree_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/store/memory"
	"github.com/jacentio/nestedset/tree"
)

// TestRandomOperations runs a seeded mix of creates, moves and destroys and
// checks the interval invariants plus level and path after every step.
func TestRandomOperations(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	s := memory.New()
	tr := tree.New(s, tree.DefaultConfig())
	positions := []tree.Position{tree.PositionChild, tree.PositionLeft, tree.PositionRight, tree.PositionRoot}

	var live []tree.ID
	pick := func() tree.ID { return live[rng.IntN(len(live))] }

	for step := 0; step < 300; step++ {
		switch op := rng.IntN(10); {
		case op < 4 || len(live) < 2:
			n := &tree.Node{ID: tree.ID(fmt.Sprintf("n%d", step)), Scope: menu}
			req := tree.Clear()
			if len(live) > 0 && rng.IntN(3) > 0 {
				req = tree.ByParent(pick())
			}
			require.NoError(t, tr.Create(ctx, n, req), "step %d", step)
			live = append(live, n.ID)
		case op < 9:
			n := load(t, tr, pick())
			err := tr.MoveTo(ctx, n, pick(), positions[rng.IntN(len(positions))])
			if err != nil && !errors.Is(err, tree.ErrImpossibleMove) {
				t.Fatalf("step %d: %v", step, err)
			}
		default:
			require.NoError(t, tr.Destroy(ctx, load(t, tr, pick())), "step %d", step)
			live = live[:0]
			nodes, err := tr.Find(ctx, menu, tree.Query{})
			require.NoError(t, err)
			live = append(live, ids(nodes)...)
		}

		require.NoError(t, tr.Verify(ctx, menu), "step %d", step)
		assertAnnotations(t, tr, step)
	}
}

func assertAnnotations(t *testing.T, tr *tree.Tree, step int) {
	t.Helper()
	ctx := context.Background()
	nodes, err := tr.Find(ctx, menu, tree.Query{})
	require.NoError(t, err)
	for _, n := range nodes {
		anc, err := tr.Ancestors(ctx, n)
		require.NoError(t, err)
		require.Equal(t, len(anc), n.Level, "step %d: level of %s", step, n.ID)
		want := string(n.ID)
		if len(anc) > 0 {
			want = anc[len(anc)-1].Path + "/" + want
		}
		require.Equal(t, want, n.Path, "step %d: path of %s", step, n.ID)
		desc, err := tr.Descendants(ctx, n)
		require.NoError(t, err)
		require.Equal(t, int64(len(desc)), n.DescendantCount(), "step %d: width of %s", step, n.ID)
	}
}

func TestMoveIsReversible(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	n := load(t, tr, "child_1")

	require.NoError(t, tr.MoveToChildOf(ctx, n, load(t, tr, "child_2_1")))
	require.NoError(t, tr.MoveToLeftOf(ctx, n, load(t, tr, "child_2")))

	for _, want := range seedNodes() {
		got := load(t, tr, want.ID)
		assert.Equal(t, [2]int64{want.Left, want.Right}, [2]int64{got.Left, got.Right}, want.ID)
		assert.Equal(t, want.ParentID, got.ParentID, want.ID)
		assert.Equal(t, want.Path, got.Path, want.ID)
	}
}

func TestMetrics(t *testing.T) {
	ctx, tr, _ := newFixture(t)
	reg := prometheus.NewRegistry()
	tr.SetMetrics(tree.NewMetrics(reg))

	require.NoError(t, tr.MoveToRoot(ctx, load(t, tr, "root")))
	require.NoError(t, tr.MoveLeft(ctx, load(t, tr, "child_2")))
	require.NoError(t, tr.Destroy(ctx, load(t, tr, "child_2")))
	require.NoError(t, tr.RebuildFromParents(ctx, menu, nil))

	count, err := testutil.GatherAndCount(reg, "nestedset_moves_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // root/noop and left/moved series

	count, err = testutil.GatherAndCount(reg, "nestedset_prunes_total", "nestedset_rebuilds_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
