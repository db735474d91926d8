package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacentio/nestedset/internal/storetest"
	"github.com/jacentio/nestedset/store/memory"
	"github.com/jacentio/nestedset/tree"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tree.Store { return memory.New() })
}

func TestStore_Scopes(t *testing.T) {
	s := memory.New(storetest.Fixture(tree.NewScope("menu_id", "1"))...)
	storetest.Seed(t, s, &tree.Node{ID: "x", Left: 1, Right: 2, Scope: tree.NewScope("menu_id", "2")})

	scopes, err := s.Scopes()
	require.NoError(t, err)
	assert.Len(t, scopes, 2)
	assert.Equal(t, 5, s.Len())
}

func TestStore_CanceledContext(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, nil, tree.Query{})
	assert.ErrorIs(t, err, context.Canceled)
	err = s.Transaction(ctx, func(tree.Store) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	scope := tree.NewScope("menu_id", "1")
	tr := tree.New(memory.New(), tree.DefaultConfig())
	root := &tree.Node{ID: "root", Scope: scope}
	require.NoError(t, tr.Create(ctx, root, tree.Clear()))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- tr.Create(ctx, &tree.Node{Scope: scope}, tree.ByParent("root"))
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, tr.Verify(ctx, scope))
	kids, err := tr.Children(ctx, root)
	require.NoError(t, err)
	assert.Len(t, kids, 20)
}
