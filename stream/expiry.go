// Package stream provides DynamoDB Streams handlers that keep nested sets
// compact after DynamoDB removes expired nodes.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nestedset/store/dynamo"
	"github.com/jacentio/nestedset/tree"
)

// Reclaimer removes what is left of a node deleted outside the engine.
// *tree.Tree implements it.
type Reclaimer interface {
	Reclaim(ctx context.Context, n *tree.Node) error
}

// Handler processes DynamoDB stream events for expired nodes.
type Handler struct {
	reclaimer Reclaimer
	logger    *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(r Reclaimer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		reclaimer: r,
		logger:    logger,
	}
}

// HandleExpiry reclaims the branch of every node removed by DynamoDB TTL.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleExpiry(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	// Only TTL removals; deletes issued by the engine already closed their gap.
	if record.EventName != "REMOVE" || !isTTLRemoval(record) {
		return nil
	}
	image := record.Change.OldImage
	if getStringAttr(image, "id") == "" {
		h.logger.Warn("skipping removal without node id", "eventID", record.EventID)
		return nil
	}

	n, err := dynamo.UnmarshalNode(ConvertImage(image))
	if err != nil {
		return fmt.Errorf("decode old image: %w", err)
	}

	h.logger.Info("reclaiming expired node",
		"id", n.ID,
		"scope", n.Scope.String(),
		"ttl", getNumberAttr(image, "ttl"),
	)
	if err := h.reclaimer.Reclaim(ctx, n); err != nil {
		return fmt.Errorf("reclaim %s: %w", n.ID, err)
	}
	return nil
}

// isTTLRemoval reports whether DynamoDB itself removed the item.
func isTTLRemoval(record events.DynamoDBEventRecord) bool {
	id := record.UserIdentity
	return id != nil && id.Type == "Service" && id.PrincipalID == "dynamodb.amazonaws.com"
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// ConvertImage converts a DynamoDB stream image to SDK attribute values.
// Attributes of types the node layout never uses are dropped.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		switch v.DataType() {
		case events.DataTypeString:
			result[k] = &types.AttributeValueMemberS{Value: v.String()}
		case events.DataTypeNumber:
			result[k] = &types.AttributeValueMemberN{Value: v.Number()}
		case events.DataTypeBinary:
			result[k] = &types.AttributeValueMemberB{Value: v.Binary()}
		case events.DataTypeBoolean:
			result[k] = &types.AttributeValueMemberBOOL{Value: v.Boolean()}
		}
	}
	return result
}
