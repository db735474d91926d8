package dynamo_test

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/store/dynamo"
)

// fakeDB is an in-memory stand-in for the DynamoDB operations the store
// issues. It understands exactly the expressions the store writes.
type fakeDB struct {
	mu      sync.Mutex
	items   map[[2]string]map[string]types.AttributeValue
	commits int
}

var _ dynamo.API = (*fakeDB)(nil)

func newFakeDB() *fakeDB {
	return &fakeDB{items: make(map[[2]string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	if v, ok := av.(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return ""
}

func keyOf(item map[string]types.AttributeValue) [2]string {
	return [2]string{str(item["pk"]), str(item["sk"])}
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// item returns the raw stored item of id, or nil.
func (f *fakeDB) item(id string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, it := range f.items {
		if k[1] == id {
			return clone(it)
		}
	}
	return nil
}

func (f *fakeDB) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([][2]string, 0, len(f.items))
	for k := range f.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	var out []map[string]types.AttributeValue
	for _, k := range keys {
		it := f.items[k]
		if in.IndexName != nil {
			if str(it["id"]) != str(in.ExpressionAttributeValues[":id"]) {
				continue
			}
		} else if k[0] != str(in.ExpressionAttributeValues[":pk"]) {
			continue
		}
		if in.FilterExpression != nil && expiredBy(it, in.ExpressionAttributeValues[":now"]) {
			continue
		}
		out = append(out, clone(it))
	}
	return &dynamodb.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

// expiredBy mirrors the live-item filter: an item with a ttl at or before now
// is dropped.
func expiredBy(item map[string]types.AttributeValue, now types.AttributeValue) bool {
	if _, ok := item["ttl"]; !ok {
		return false
	}
	ttl, err := strconv.ParseInt(str(item["ttl"]), 10, 64)
	if err != nil {
		return false
	}
	cutoff, _ := strconv.ParseInt(str(now), 10, 64)
	return ttl <= cutoff
}

func (f *fakeDB) versionMatches(key [2]string, values map[string]types.AttributeValue) bool {
	it, ok := f.items[key]
	return ok && str(it["version"]) == str(values[":v"])
}

func (f *fakeDB) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		ok := true
		switch {
		case ti.Put != nil:
			key := keyOf(ti.Put.Item)
			if aws.ToString(ti.Put.ConditionExpression) == "attribute_not_exists(pk)" {
				_, exists := f.items[key]
				ok = !exists
			} else {
				ok = f.versionMatches(key, ti.Put.ExpressionAttributeValues)
			}
		case ti.Delete != nil:
			ok = f.versionMatches(keyOf(ti.Delete.Key), ti.Delete.ExpressionAttributeValues)
		case ti.Update != nil:
			key := keyOf(ti.Update.Key)
			_, hasTTL := f.items[key]["ttl"]
			ok = f.versionMatches(key, ti.Update.ExpressionAttributeValues) && !hasTTL
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[keyOf(ti.Put.Item)] = clone(ti.Put.Item)
		case ti.Delete != nil:
			delete(f.items, keyOf(ti.Delete.Key))
		case ti.Update != nil:
			f.expire(keyOf(ti.Update.Key), ti.Update.ExpressionAttributeValues[":ttl"])
		}
	}
	f.commits++
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// expire applies the one update the store issues: set ttl, bump version.
func (f *fakeDB) expire(key [2]string, ttl types.AttributeValue) {
	it := clone(f.items[key])
	version, _ := strconv.ParseInt(str(it["version"]), 10, 64)
	it["ttl"] = ttl
	it["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(version+1, 10)}
	f.items[key] = it
}
