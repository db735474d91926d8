package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/internal/scopekey"
	"github.com/jacentio/nestedset/tree"
)

// item is the stored form of a node. sk holds the node ID; id repeats it so
// the ID index can be keyed on it.
type item struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	ID       string `dynamodbav:"id"`
	ScopeKey string `dynamodbav:"scope_key"`
	Left     int64  `dynamodbav:"lft"`
	Right    int64  `dynamodbav:"rgt"`
	ParentID string `dynamodbav:"parent_id,omitempty"`
	Level    int    `dynamodbav:"level"`
	Slug     string `dynamodbav:"slug,omitempty"`
	Path     string `dynamodbav:"path,omitempty"`
	Version  int64  `dynamodbav:"version"`
	TTL      int64  `dynamodbav:"ttl,omitempty"`
}

// meta is the bookkeeping a transaction keeps for every node it read.
type meta struct {
	version int64
	ttl     int64
}

func (s *Store) partitionKey(scopeKey string) string {
	return scopekey.PartitionKey(s.config.PartitionPrefix, scopeKey)
}

func (s *Store) marshalNode(n *tree.Node, m meta) (map[string]types.AttributeValue, error) {
	key := n.Scope.Key()
	it := item{
		PK:       s.partitionKey(key),
		SK:       string(n.ID),
		ID:       string(n.ID),
		ScopeKey: key,
		Left:     n.Left,
		Right:    n.Right,
		ParentID: string(n.ParentID),
		Level:    n.Level,
		Slug:     n.Slug,
		Path:     n.Path,
		Version:  m.version,
		TTL:      m.ttl,
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, fmt.Errorf("marshal node %s: %w", n.ID, err)
	}
	return av, nil
}

// unmarshalNode converts a DynamoDB item to a node and its bookkeeping.
func unmarshalNode(raw map[string]types.AttributeValue) (*tree.Node, meta, error) {
	var it item
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, meta{}, fmt.Errorf("unmarshal node: %w", err)
	}
	scope, err := tree.ParseScope(it.ScopeKey)
	if err != nil {
		return nil, meta{}, fmt.Errorf("node %s: %w", it.ID, err)
	}
	n := &tree.Node{
		ID:       tree.ID(it.ID),
		Left:     it.Left,
		Right:    it.Right,
		ParentID: tree.ID(it.ParentID),
		Scope:    scope,
		Level:    it.Level,
		Slug:     it.Slug,
		Path:     it.Path,
	}
	return n, meta{version: it.Version, ttl: it.TTL}, nil
}

// nodeKey returns the primary key of a node's item.
func (s *Store) nodeKey(scopeKey string, id tree.ID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: s.partitionKey(scopeKey)},
		"sk": &types.AttributeValueMemberS{Value: string(id)},
	}
}

// UnmarshalNode converts a raw item, such as a stream image, to a node.
func UnmarshalNode(raw map[string]types.AttributeValue) (*tree.Node, error) {
	n, _, err := unmarshalNode(raw)
	return n, err
}
