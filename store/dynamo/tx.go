package dynamo

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/internal/workset"
	"github.com/jacentio/nestedset/tree"
)

// txStore buffers one transaction. base holds the nodes as read, work the
// nodes as the transaction left them.
type txStore struct {
	s      *Store
	base   *workset.Set
	work   *workset.Set
	meta   map[tree.ID]meta
	loaded map[string]bool
}

func (s *Store) begin() *txStore {
	return &txStore{
		s:      s,
		base:   workset.New(),
		work:   workset.New(),
		meta:   make(map[tree.ID]meta),
		loaded: make(map[string]bool),
	}
}

// ensure reads scope into the transaction on first use.
func (t *txStore) ensure(ctx context.Context, scope tree.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := scope.Key()
	if t.loaded[key] {
		return nil
	}
	nodes, metas, err := t.s.queryScope(ctx, key)
	if err != nil {
		return err
	}
	t.base.Load(nodes...)
	t.work.Load(nodes...)
	for id, m := range metas {
		t.meta[id] = m
	}
	t.loaded[key] = true
	return nil
}

func (t *txStore) Select(ctx context.Context, scope tree.Scope, q tree.Query) ([]*tree.Node, error) {
	if err := t.ensure(ctx, scope); err != nil {
		return nil, err
	}
	return t.work.Select(scope, q), nil
}

func (t *txStore) Get(ctx context.Context, id tree.ID) (*tree.Node, error) {
	if n, ok := t.work.Get(id); ok {
		return n, nil
	}
	if _, ok := t.base.Get(id); ok {
		// deleted in this transaction
		return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}
	scopeKey, found, err := t.s.lookupScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if found {
		scope, err := tree.ParseScope(scopeKey)
		if err != nil {
			return nil, err
		}
		if err := t.ensure(ctx, scope); err != nil {
			return nil, err
		}
		if n, ok := t.work.Get(id); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", tree.ErrNotFound, id)
}

func (t *txStore) Insert(ctx context.Context, n *tree.Node) error {
	if err := t.ensure(ctx, n.Scope); err != nil {
		return err
	}
	if _, ok := t.base.Get(n.ID); !ok {
		// IDs are unique across scopes.
		_, found, err := t.s.lookupScope(ctx, n.ID)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", tree.ErrAlreadyExists, n.ID)
		}
	}
	return t.work.Insert(n)
}

func (t *txStore) Save(ctx context.Context, nodes []*tree.Node) error {
	for _, n := range nodes {
		if err := t.ensure(ctx, n.Scope); err != nil {
			return err
		}
		if _, ok := t.work.Get(n.ID); !ok {
			if _, err := t.Get(ctx, n.ID); err != nil {
				return err
			}
		}
	}
	return t.work.Save(nodes)
}

func (t *txStore) UpdateAll(ctx context.Context, scope tree.Scope, a tree.Assignment) (int64, error) {
	if err := t.ensure(ctx, scope); err != nil {
		return 0, err
	}
	return t.work.UpdateAll(scope, a), nil
}

func (t *txStore) DeleteAll(ctx context.Context, scope tree.Scope, p tree.Predicate) (int64, error) {
	if err := t.ensure(ctx, scope); err != nil {
		return 0, err
	}
	return t.work.DeleteAll(scope, p), nil
}

func (t *txStore) Max(ctx context.Context, scope tree.Scope, f tree.Field) (int64, bool, error) {
	if err := t.ensure(ctx, scope); err != nil {
		return 0, false, err
	}
	max, ok := t.work.Max(scope, f)
	return max, ok, nil
}

// Transaction joins the enclosing transaction.
func (t *txStore) Transaction(ctx context.Context, fn func(tx tree.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}

func versionCondition(version int64) (string, map[string]string, map[string]types.AttributeValue) {
	return "#version = :v",
		map[string]string{"#version": "version"},
		map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(version, 10)},
		}
}

// commit writes the difference between base and work in one TransactWriteItems.
func (t *txStore) commit(ctx context.Context) error {
	put, del := workset.Diff(t.base, t.work)
	items := make([]types.TransactWriteItem, 0, len(put)+len(del))
	inserts := make(map[int]tree.ID)

	deleteItem := func(n *tree.Node) {
		cond, names, values := versionCondition(t.meta[n.ID].version)
		items = append(items, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                 aws.String(t.s.config.Table),
				Key:                       t.s.nodeKey(n.Scope.Key(), n.ID),
				ConditionExpression:       aws.String(cond),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
			},
		})
	}

	for _, n := range del {
		deleteItem(n)
	}
	for _, n := range put {
		old, existed := t.base.Get(n.ID)
		if existed && !old.Scope.Equal(n.Scope) {
			deleteItem(old)
			existed = false
		}

		m := meta{version: 1}
		if existed {
			m = meta{version: t.meta[n.ID].version + 1, ttl: t.meta[n.ID].ttl}
		}
		av, err := t.s.marshalNode(n, m)
		if err != nil {
			return err
		}
		p := &types.Put{
			TableName: aws.String(t.s.config.Table),
			Item:      av,
		}
		if existed {
			cond, names, values := versionCondition(t.meta[n.ID].version)
			p.ConditionExpression = aws.String(cond)
			p.ExpressionAttributeNames = names
			p.ExpressionAttributeValues = values
		} else {
			inserts[len(items)] = n.ID
			p.ConditionExpression = aws.String("attribute_not_exists(pk)")
		}
		items = append(items, types.TransactWriteItem{Put: p})
	}

	if len(items) == 0 {
		return nil
	}
	if len(items) > t.s.config.MaxTransactItems {
		return fmt.Errorf("%w: %d items, limit %d", ErrTransactionTooLarge, len(items), t.s.config.MaxTransactItems)
	}

	_, err := t.s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err = t.s.mapTransactionError(err, inserts); err != nil {
		t.s.logger.Warn("transaction commit failed", "items", len(items), "error", err)
		return err
	}
	t.s.logger.Debug("transaction committed", "puts", len(put), "deletes", len(del))
	return nil
}
