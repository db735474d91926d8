package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ttlAttr holds the epoch second after which DynamoDB may remove an item.
const ttlAttr = "ttl"

// expiredAt reports whether the TTL of a raw item has passed at now. DynamoDB
// removes such items some time later; until then the store treats them as
// gone.
func expiredAt(item map[string]types.AttributeValue, now time.Time) bool {
	n, ok := item[ttlAttr].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	return err == nil && ttl <= now.Unix()
}

// liveOnly adds a filter to in that drops items expired at now. Readers also
// drop items with expiredAt against the same now.
func liveOnly(in *dynamodb.QueryInput, now time.Time) *dynamodb.QueryInput {
	in.FilterExpression = aws.String("attribute_not_exists(#ttl) OR #ttl > :now")
	if in.ExpressionAttributeNames == nil {
		in.ExpressionAttributeNames = make(map[string]string, 1)
	}
	in.ExpressionAttributeNames["#ttl"] = ttlAttr
	if in.ExpressionAttributeValues == nil {
		in.ExpressionAttributeValues = make(map[string]types.AttributeValue, 1)
	}
	in.ExpressionAttributeValues[":now"] = &types.AttributeValueMemberN{
		Value: strconv.FormatInt(now.Unix(), 10),
	}
	return in
}
