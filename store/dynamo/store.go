package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/tree"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	dynamodb.QueryAPIClient
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store keeps nodes in one DynamoDB table, one partition per scope.
//
// Every operation runs in a transaction. A transaction reads whole scopes
// into memory the first time it touches them, applies the engine's updates
// there and writes the difference back with a single TransactWriteItems call.
// Each written item is guarded by the version it was read at, so a
// transaction that lost a race fails with ErrConcurrentModification and
// leaves the table untouched.
type Store struct {
	client API
	config Config
	logger *slog.Logger
}

// New creates a new Store instance.
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
	}
}

// Open creates a Store with a client built from the default AWS configuration.
func Open(ctx context.Context, config Config, logger *slog.Logger, optFns ...func(*awsconfig.LoadOptions) error) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(cfg), config, logger), nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// Select reads the live items of scope in a read-only transaction.
func (s *Store) Select(ctx context.Context, scope tree.Scope, q tree.Query) ([]*tree.Node, error) {
	var out []*tree.Node
	err := s.Transaction(ctx, func(tx tree.Store) error {
		var err error
		out, err = tx.Select(ctx, scope, q)
		return err
	})
	return out, err
}

// Get resolves id through the ID index and returns the live node.
func (s *Store) Get(ctx context.Context, id tree.ID) (*tree.Node, error) {
	var out *tree.Node
	err := s.Transaction(ctx, func(tx tree.Store) error {
		var err error
		out, err = tx.Get(ctx, id)
		return err
	})
	return out, err
}

// Insert writes n in its own transaction, failing if the ID is taken.
func (s *Store) Insert(ctx context.Context, n *tree.Node) error {
	return s.Transaction(ctx, func(tx tree.Store) error { return tx.Insert(ctx, n) })
}

// Save rewrites nodes in one version-checked transaction.
func (s *Store) Save(ctx context.Context, nodes []*tree.Node) error {
	return s.Transaction(ctx, func(tx tree.Store) error { return tx.Save(ctx, nodes) })
}

// UpdateAll applies a to scope in one transaction.
func (s *Store) UpdateAll(ctx context.Context, scope tree.Scope, a tree.Assignment) (int64, error) {
	var n int64
	err := s.Transaction(ctx, func(tx tree.Store) error {
		var err error
		n, err = tx.UpdateAll(ctx, scope, a)
		return err
	})
	return n, err
}

// DeleteAll removes the matching nodes of scope in one transaction.
func (s *Store) DeleteAll(ctx context.Context, scope tree.Scope, p tree.Predicate) (int64, error) {
	var n int64
	err := s.Transaction(ctx, func(tx tree.Store) error {
		var err error
		n, err = tx.DeleteAll(ctx, scope, p)
		return err
	})
	return n, err
}

// Max returns the largest f among the live items of scope.
func (s *Store) Max(ctx context.Context, scope tree.Scope, f tree.Field) (int64, bool, error) {
	var (
		max int64
		ok  bool
	)
	err := s.Transaction(ctx, func(tx tree.Store) error {
		var err error
		max, ok, err = tx.Max(ctx, scope, f)
		return err
	})
	return max, ok, err
}

// Transaction runs fn against a buffered view of the table and commits its
// writes atomically. Transactions that only read write nothing.
func (s *Store) Transaction(ctx context.Context, fn func(tx tree.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

// Expire schedules n and every node below it for removal by DynamoDB TTL, in
// one transaction. The branch is hidden from reads once at has passed; closing
// the gap it leaves is up to the stream handler. Nodes that already carry a TTL
// keep it, so expiring a scheduled branch again is a no-op.
func (s *Store) Expire(ctx context.Context, id tree.ID, at time.Time) error {
	scopeKey, found, err := s.lookupScope(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}
	nodes, metas, err := s.queryScope(ctx, scopeKey)
	if err != nil {
		return err
	}
	branch := branchOf(nodes, id)
	if len(branch) == 0 {
		return fmt.Errorf("%w: %s", tree.ErrNotFound, id)
	}

	ttl := &types.AttributeValueMemberN{Value: strconv.FormatInt(at.Unix(), 10)}
	var items []types.TransactWriteItem
	for _, nid := range branch {
		m := metas[nid]
		if m.ttl != 0 {
			continue
		}
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(s.config.Table),
				Key:                 s.nodeKey(scopeKey, nid),
				UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
				ConditionExpression: aws.String("#version = :v AND attribute_not_exists(#ttl)"),
				ExpressionAttributeNames: map[string]string{
					"#ttl":     ttlAttr,
					"#version": "version",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":ttl": ttl,
					":one": &types.AttributeValueMemberN{Value: "1"},
					":v":   &types.AttributeValueMemberN{Value: strconv.FormatInt(m.version, 10)},
				},
			},
		})
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > s.config.MaxTransactItems {
		return fmt.Errorf("%w: branch of %s has %d nodes, limit %d", ErrTransactionTooLarge, id, len(items), s.config.MaxTransactItems)
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err = s.mapTransactionError(err, nil); err != nil {
		return err
	}
	s.logger.Info("scheduled branch expiry", "id", id, "nodes", len(items), "at", at.UTC().Format(time.RFC3339))
	return nil
}

// branchOf returns id and every node below it by parent pointer, or nil when
// id is not among nodes.
func branchOf(nodes []*tree.Node, id tree.ID) []tree.ID {
	children := make(map[tree.ID][]tree.ID, len(nodes))
	present := false
	for _, n := range nodes {
		if n.ID == id {
			present = true
		}
		if n.ParentID != "" {
			children[n.ParentID] = append(children[n.ParentID], n.ID)
		}
	}
	if !present {
		return nil
	}
	seen := map[tree.ID]bool{id: true}
	branch := []tree.ID{id}
	for i := 0; i < len(branch); i++ {
		for _, c := range children[branch[i]] {
			if !seen[c] {
				seen[c] = true
				branch = append(branch, c)
			}
		}
	}
	return branch
}

// lookupScope finds the scope key of a live node through the ID index.
func (s *Store) lookupScope(ctx context.Context, id tree.ID) (string, bool, error) {
	now := time.Now()
	out, err := s.client.Query(ctx, liveOnly(&dynamodb.QueryInput{
		TableName:                 aws.String(s.config.Table),
		IndexName:                 aws.String(s.config.IDIndex),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": "id"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: string(id)}},
	}, now))
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", id, err)
	}
	for _, raw := range out.Items {
		if expiredAt(raw, now) {
			continue
		}
		if v, ok := raw["scope_key"].(*types.AttributeValueMemberS); ok {
			return v.Value, true, nil
		}
	}
	return "", false, nil
}

// queryScope reads every live node of a scope.
func (s *Store) queryScope(ctx context.Context, scopeKey string) ([]*tree.Node, map[tree.ID]meta, error) {
	now := time.Now()
	paginator := dynamodb.NewQueryPaginator(s.client, liveOnly(&dynamodb.QueryInput{
		TableName:                 aws.String(s.config.Table),
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ConsistentRead:            aws.Bool(true),
		ExpressionAttributeNames:  map[string]string{"#pk": "pk"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: s.partitionKey(scopeKey)}},
	}, now))

	var nodes []*tree.Node
	metas := make(map[tree.ID]meta)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("query scope %q: %w", scopeKey, err)
		}
		for _, raw := range page.Items {
			if expiredAt(raw, now) {
				continue
			}
			n, m, err := unmarshalNode(raw)
			if err != nil {
				return nil, nil, err
			}
			// Hashed partition keys may in principle collide.
			if n.Scope.Key() != scopeKey {
				continue
			}
			nodes = append(nodes, n)
			metas[n.ID] = m
		}
	}
	return nodes, metas, nil
}

// mapTransactionError maps DynamoDB transaction errors for a commit.
// inserts holds the indices of puts that create new items.
func (s *Store) mapTransactionError(err error, inserts map[int]tree.ID) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if id, ok := inserts[i]; ok {
					return fmt.Errorf("%w: %s", tree.ErrAlreadyExists, id)
				}
				return ErrConcurrentModification
			}
		}
	}

	return err
}
