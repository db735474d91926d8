package dynamo

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/tree"
)

// --- mapTransactionError Tests ---

func TestMapTransactionError_NilError(t *testing.T) {
	s := &Store{}
	if err := s.mapTransactionError(nil, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMapTransactionError_NonTransactionError(t *testing.T) {
	s := &Store{}
	originalErr := errors.New("some other error")
	err := s.mapTransactionError(originalErr, nil)
	if err != originalErr {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestMapTransactionError_InsertFailure(t *testing.T) {
	s := &Store{}
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("None")},
			{Code: aws.String("ConditionalCheckFailed")}, // Index 1 - new item
		},
	}

	err := s.mapTransactionError(txErr, map[int]tree.ID{1: "x"})
	if !errors.Is(err, tree.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMapTransactionError_VersionFailure(t *testing.T) {
	s := &Store{}
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("ConditionalCheckFailed")}, // Index 0 - existing item
			{Code: aws.String("None")},
		},
	}

	err := s.mapTransactionError(txErr, map[int]tree.ID{1: "x"})
	if !errors.Is(err, ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestMapTransactionError_OtherCancellationCode(t *testing.T) {
	s := &Store{}
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: aws.String("TransactionConflict")},
		},
	}

	err := s.mapTransactionError(txErr, nil)
	if err != txErr {
		t.Errorf("expected original transaction error, got %v", err)
	}
}

func TestMapTransactionError_NilCode(t *testing.T) {
	s := &Store{}
	txErr := &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: nil}},
	}

	if err := s.mapTransactionError(txErr, nil); err != txErr {
		t.Errorf("expected original error for nil code, got %v", err)
	}
}

// --- Config Tests ---

func TestConfigValidate_Defaults(t *testing.T) {
	var cfg Config
	cfg.validate()

	if cfg != DefaultConfig() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestConfigValidate_MaxTransactItems(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 100},
		{-1, 100},
		{25, 25},
		{100, 100},
		{101, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			cfg := Config{MaxTransactItems: tt.in}
			cfg.validate()
			if cfg.MaxTransactItems != tt.want {
				t.Errorf("expected %d, got %d", tt.want, cfg.MaxTransactItems)
			}
		})
	}
}

func TestConfigValidate_PreservesCustomNames(t *testing.T) {
	cfg := Config{Table: "menus", IDIndex: "by-id", PartitionPrefix: "menu#"}
	cfg.validate()

	if cfg.Table != "menus" || cfg.IDIndex != "by-id" || cfg.PartitionPrefix != "menu#" {
		t.Errorf("custom names overwritten: %+v", cfg)
	}
}

// --- Item Tests ---

func TestMarshalNode_RoundTrip(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)
	n := &tree.Node{
		ID:       "child_2_1",
		Left:     5,
		Right:    6,
		ParentID: "child_2",
		Scope:    tree.NewScope("menu_id", "1", "lang", "en"),
		Level:    2,
		Slug:     "faq",
		Path:     "root/child_2/faq",
	}

	av, err := s.marshalNode(n, meta{version: 4, ttl: 1700000000})
	if err != nil {
		t.Fatal(err)
	}
	if pk := av["pk"].(*types.AttributeValueMemberS).Value; pk != "scope#menu_id=1&lang=en" {
		t.Errorf("unexpected pk %q", pk)
	}

	got, m, err := unmarshalNode(av)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, n) {
		t.Errorf("expected %+v, got %+v", n, got)
	}
	if m.version != 4 || m.ttl != 1700000000 {
		t.Errorf("unexpected meta %+v", m)
	}
}

func TestMarshalNode_OmitsEmpty(t *testing.T) {
	s := New(nil, DefaultConfig(), nil)
	av, err := s.marshalNode(&tree.Node{ID: "root", Left: 1, Right: 2}, meta{version: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, attr := range []string{"parent_id", "slug", "path", "ttl"} {
		if _, ok := av[attr]; ok {
			t.Errorf("expected %s to be omitted", attr)
		}
	}
}

func TestUnmarshalNode_BadScope(t *testing.T) {
	raw := map[string]types.AttributeValue{
		"id":        &types.AttributeValueMemberS{Value: "1"},
		"scope_key": &types.AttributeValueMemberS{Value: "broken"},
	}
	if _, _, err := unmarshalNode(raw); err == nil {
		t.Error("expected error for malformed scope key")
	}
}

// --- TTL Tests ---

func TestExpiredAt(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		name     string
		item     map[string]types.AttributeValue
		expected bool
	}{
		{
			name:     "no TTL attribute",
			item:     map[string]types.AttributeValue{},
			expected: false,
		},
		{
			name: "TTL in past",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberN{Value: "1000000000"},
			},
			expected: true,
		},
		{
			name: "TTL equal to now",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberN{Value: "1700000000"},
			},
			expected: true,
		},
		{
			name: "TTL in future",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberN{Value: "1700003600"},
			},
			expected: false,
		},
		{
			name: "TTL not a number",
			item: map[string]types.AttributeValue{
				"ttl": &types.AttributeValueMemberS{Value: "soon"},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expiredAt(tt.item, now); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLiveOnly(t *testing.T) {
	now := time.Unix(1700000000, 0)
	in := liveOnly(&dynamodb.QueryInput{
		KeyConditionExpression:    aws.String("#pk = :pk"),
		ExpressionAttributeNames:  map[string]string{"#pk": "pk"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: "scope#"}},
	}, now)

	if aws.ToString(in.FilterExpression) != "attribute_not_exists(#ttl) OR #ttl > :now" {
		t.Errorf("unexpected filter %q", aws.ToString(in.FilterExpression))
	}
	if len(in.ExpressionAttributeNames) != 2 || in.ExpressionAttributeNames["#ttl"] != "ttl" || in.ExpressionAttributeNames["#pk"] != "pk" {
		t.Errorf("unexpected names %v", in.ExpressionAttributeNames)
	}
	if v, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN); !ok || v.Value != "1700000000" {
		t.Errorf("unexpected :now %v", in.ExpressionAttributeValues[":now"])
	}
	if _, ok := in.ExpressionAttributeValues[":pk"]; !ok {
		t.Error("expected :pk to be kept")
	}
}

func TestLiveOnly_NilMaps(t *testing.T) {
	in := liveOnly(&dynamodb.QueryInput{}, time.Unix(5, 0))
	if in.ExpressionAttributeNames["#ttl"] != "ttl" {
		t.Errorf("unexpected names %v", in.ExpressionAttributeNames)
	}
	if v, ok := in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN); !ok || v.Value != "5" {
		t.Errorf("unexpected :now %v", in.ExpressionAttributeValues[":now"])
	}
}

// --- Branch Tests ---

func TestBranchOf(t *testing.T) {
	nodes := []*tree.Node{
		{ID: "root"},
		{ID: "child_1", ParentID: "root"},
		{ID: "child_2", ParentID: "root"},
		{ID: "child_2_1", ParentID: "child_2"},
		{ID: "child_2_1_1", ParentID: "child_2_1"},
		{ID: "other"},
	}

	tests := []struct {
		id   tree.ID
		want []tree.ID
	}{
		{"root", []tree.ID{"root", "child_1", "child_2", "child_2_1", "child_2_1_1"}},
		{"child_2", []tree.ID{"child_2", "child_2_1", "child_2_1_1"}},
		{"child_1", []tree.ID{"child_1"}},
		{"other", []tree.ID{"other"}},
		{"missing", nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := branchOf(nodes, tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
