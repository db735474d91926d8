package dynamo_test

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/internal/storetest"
	"github.com/jacentio/nestedset/store/dynamo"
	"github.com/jacentio/nestedset/tree"
)

var menu = tree.NewScope("menu_id", "1")

func newStore(t *testing.T) (*dynamo.Store, *fakeDB) {
	t.Helper()
	db := newFakeDB()
	return dynamo.New(db, dynamo.DefaultConfig(), nil), db
}

func seeded(t *testing.T) (context.Context, *dynamo.Store, *fakeDB) {
	t.Helper()
	s, db := newStore(t)
	storetest.Seed(t, s, storetest.Fixture(menu)...)
	return context.Background(), s, db
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tree.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := dynamo.DefaultConfig()

	assert.Equal(t, "nestedset_nodes", cfg.Table)
	assert.Equal(t, "id-index", cfg.IDIndex)
	assert.Equal(t, "scope#", cfg.PartitionPrefix)
	assert.Equal(t, 100, cfg.MaxTransactItems)
}

func TestStore_ItemLayout(t *testing.T) {
	_, _, db := seeded(t)

	it := db.item("child_2_1")
	require.NotNil(t, it)
	assert.Equal(t, "scope#menu_id=1", it["pk"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "child_2_1", it["id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "child_2", it["parent_id"].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "1", it["version"].(*types.AttributeValueMemberN).Value)
	assert.NotContains(t, db.item("root"), "parent_id")
}

func TestStore_ReadsDoNotWrite(t *testing.T) {
	ctx, s, db := seeded(t)
	before := db.commits

	_, err := s.Select(ctx, menu, tree.Query{})
	require.NoError(t, err)
	_, err = s.Get(ctx, "child_1")
	require.NoError(t, err)

	assert.Equal(t, before, db.commits)
}

func TestStore_MoveIsOneCommit(t *testing.T) {
	ctx, s, db := seeded(t)
	tr := tree.New(s, tree.DefaultConfig())
	before := db.commits

	n, err := tr.Get(ctx, "child_2")
	require.NoError(t, err)
	require.NoError(t, tr.MoveToLeftOf(ctx, n, &tree.Node{ID: "child_1"}))

	assert.Equal(t, before+1, db.commits)
	assert.Equal(t, "2", db.item("child_2")["version"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "1", db.item("root")["version"].(*types.AttributeValueMemberN).Value)
	require.NoError(t, tr.Verify(ctx, menu))
}

func TestStore_ConcurrentModification(t *testing.T) {
	ctx, s, _ := seeded(t)

	err := s.Transaction(ctx, func(tx tree.Store) error {
		n, err := tx.Get(ctx, "child_1")
		if err != nil {
			return err
		}
		// another writer gets in first
		other := n.Clone()
		other.Slug = "theirs"
		require.NoError(t, s.Save(ctx, []*tree.Node{other}))

		n.Slug = "mine"
		return tx.Save(ctx, []*tree.Node{n})
	})
	require.ErrorIs(t, err, dynamo.ErrConcurrentModification)

	n, err := s.Get(ctx, "child_1")
	require.NoError(t, err)
	assert.Equal(t, "theirs", n.Slug)
}

func TestStore_InsertRace(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	err := s.Transaction(ctx, func(tx tree.Store) error {
		if err := tx.Insert(ctx, &tree.Node{ID: "x", Left: 1, Right: 2, Scope: menu}); err != nil {
			return err
		}
		// committed by someone else before this transaction
		return s.Insert(ctx, &tree.Node{ID: "x", Left: 1, Right: 2, Scope: menu})
	})
	assert.ErrorIs(t, err, tree.ErrAlreadyExists)
}

func TestStore_TransactionTooLarge(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	cfg := dynamo.DefaultConfig()
	cfg.MaxTransactItems = 3
	s := dynamo.New(db, cfg, nil)

	err := s.Transaction(ctx, func(tx tree.Store) error {
		for i, id := range []tree.ID{"a", "b", "c", "d"} {
			left := int64(2*i + 1)
			if err := tx.Insert(ctx, &tree.Node{ID: id, Left: left, Right: left + 1, Scope: menu}); err != nil {
				return err
			}
		}
		return nil
	})
	require.ErrorIs(t, err, dynamo.ErrTransactionTooLarge)
	assert.Equal(t, 0, db.len())
}

func TestStore_IDsUniqueAcrossScopes(t *testing.T) {
	ctx, s, _ := seeded(t)

	err := s.Insert(ctx, &tree.Node{ID: "root", Left: 1, Right: 2, Scope: tree.NewScope("menu_id", "2")})
	assert.ErrorIs(t, err, tree.ErrAlreadyExists)
}

func TestStore_LongScopeKey(t *testing.T) {
	ctx := context.Background()
	s, db := newStore(t)
	scope := tree.NewScope("site", strings.Repeat("x", 3000))
	storetest.Seed(t, s, &tree.Node{ID: "1", Left: 1, Right: 2, Scope: scope})

	n, err := s.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, n.Scope.Equal(scope))
	pk := db.item("1")["pk"].(*types.AttributeValueMemberS).Value
	assert.True(t, strings.HasPrefix(pk, "scope#sha256:"), pk)
}

func TestStore_Expire(t *testing.T) {
	ctx, s, db := seeded(t)

	require.NoError(t, s.Expire(ctx, "child_1", time.Now().Add(-time.Minute)))

	_, err := s.Get(ctx, "child_1")
	assert.ErrorIs(t, err, tree.ErrNotFound)
	nodes, err := s.Select(ctx, menu, tree.Query{})
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
	// still stored until DynamoDB removes it
	assert.NotNil(t, db.item("child_1"))
}

func TestStore_ExpireIsIdempotent(t *testing.T) {
	ctx, s, db := seeded(t)
	at := time.Now().Add(time.Hour)

	require.NoError(t, s.Expire(ctx, "child_1", at))
	require.NoError(t, s.Expire(ctx, "child_1", at.Add(time.Hour)))

	assert.Equal(t, "2", db.item("child_1")["version"].(*types.AttributeValueMemberN).Value)
}

func TestStore_ExpireMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	err := s.Expire(ctx, "nope", time.Now())
	assert.ErrorIs(t, err, tree.ErrNotFound)
}

func TestStore_MoveKeepsPendingExpiry(t *testing.T) {
	ctx, s, db := seeded(t)
	tr := tree.New(s, tree.DefaultConfig())
	require.NoError(t, s.Expire(ctx, "child_1", time.Now().Add(time.Hour)))

	n, err := tr.Get(ctx, "child_1")
	require.NoError(t, err)
	require.NoError(t, tr.MoveToRightOf(ctx, n, &tree.Node{ID: "child_2"}))

	it := db.item("child_1")
	assert.Contains(t, it, "ttl")
	assert.Equal(t, "3", it["version"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, [2]int64{6, 7}, [2]int64{n.Left, n.Right})
}

func TestStore_ReclaimAfterExpiry(t *testing.T) {
	ctx, s, _ := seeded(t)
	tr := tree.New(s, tree.DefaultConfig())
	gone, err := tr.Get(ctx, "child_2")
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, "child_2", time.Now().Add(-time.Second)))

	require.NoError(t, tr.Reclaim(ctx, gone))

	nodes, err := s.Select(ctx, menu, tree.Query{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, [2]int64{1, 4}, [2]int64{nodes[0].Left, nodes[0].Right})
	require.NoError(t, tr.Verify(ctx, menu))
}

func TestStore_ExpireHidesBranch(t *testing.T) {
	ctx, s, db := seeded(t)
	before := db.commits

	require.NoError(t, s.Expire(ctx, "child_2", time.Now().Add(-time.Minute)))

	assert.Equal(t, before+1, db.commits)
	for _, id := range []tree.ID{"child_2", "child_2_1"} {
		_, err := s.Get(ctx, id)
		assert.ErrorIs(t, err, tree.ErrNotFound, id)
		assert.Contains(t, db.item(string(id)), "ttl", id)
	}
	nodes, err := s.Select(ctx, menu, tree.Query{})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestStore_RebuildDuringExpiryKeepsBranchHidden(t *testing.T) {
	ctx, s, _ := seeded(t)
	tr := tree.New(s, tree.DefaultConfig())
	gone, err := tr.Get(ctx, "child_2")
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, "child_2", time.Now().Add(-time.Second)))

	require.NoError(t, tr.RebuildFromParents(ctx, menu, nil))
	require.NoError(t, tr.Reclaim(ctx, gone))

	nodes, err := s.Select(ctx, menu, tree.Query{})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.NotEqual(t, tree.ID("child_2_1"), n.ID)
	}
	assert.Equal(t, [2]int64{1, 4}, [2]int64{nodes[0].Left, nodes[0].Right})
	require.NoError(t, tr.Verify(ctx, menu))
}

func TestStore_ExpireKeepsScheduledDescendants(t *testing.T) {
	ctx, s, db := seeded(t)
	first := time.Now().Add(time.Hour)

	require.NoError(t, s.Expire(ctx, "child_2_1", first))
	require.NoError(t, s.Expire(ctx, "child_2", first.Add(time.Hour)))

	it := db.item("child_2_1")
	assert.Equal(t, strconv.FormatInt(first.Unix(), 10), it["ttl"].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "2", it["version"].(*types.AttributeValueMemberN).Value)
	parent := db.item("child_2")
	assert.Equal(t, strconv.FormatInt(first.Add(time.Hour).Unix(), 10), parent["ttl"].(*types.AttributeValueMemberN).Value)
}

func TestStore_ExpireBranchTooLarge(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	cfg := dynamo.DefaultConfig()
	cfg.MaxTransactItems = 1
	s := dynamo.New(db, cfg, nil)
	storetest.Seed(t, s, storetest.Fixture(menu)...)

	err := s.Expire(ctx, "child_2", time.Now())
	require.ErrorIs(t, err, dynamo.ErrTransactionTooLarge)
	assert.NotContains(t, db.item("child_2"), "ttl")
	assert.NotContains(t, db.item("child_2_1"), "ttl")
}
