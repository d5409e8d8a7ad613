// Package queue carries orders between pipeline stages over gocloud.dev/pubsub.
//
// Delivery is at-least-once. A BatchHandler receives the messages of one
// invocation and reports which of them must be redelivered; every other
// message is acknowledged.
package queue

import (
	"context"
)

// Attribute keys set on published messages.
const (
	AttributeMessageID               = "message_id"
	AttributeOrderID                 = "order_id"
	AttributeOrderStatus             = "order_status"
	AttributeApproximateReceiveCount = "approximate_receive_count"
	AttributeDeadLetterReason        = "dead_letter_reason"
)

// DeadLetterReasonMaxDeliveries marks a message forwarded by a Consumer after
// its delivery budget ran out.
const DeadLetterReasonMaxDeliveries = "max_deliveries_exceeded"

// Message is a transport-neutral view of one delivered message.
type Message struct {
	ID           string
	Body         []byte
	Attributes   map[string]string
	ReceiveCount int
}

// BatchSummary reports how a handler disposed of a batch.
type BatchSummary struct {
	Processed int
	Failed    int
	Total     int

	// FailedMessageIDs lists messages whose handling raised an error and
	// should be redelivered by the transport.
	FailedMessageIDs []string
}

// NewBatchSummary returns a summary for a batch of total messages.
func NewBatchSummary(total int) BatchSummary {
	return BatchSummary{Total: total}
}

// RecordProcessed counts a message handled to completion.
func (s *BatchSummary) RecordProcessed() {
	s.Processed++
}

// RecordFailed counts a message whose outcome was a failure. When redeliver is
// true the message is also listed for redelivery.
func (s *BatchSummary) RecordFailed(messageID string, redeliver bool) {
	s.Failed++
	if redeliver {
		s.FailedMessageIDs = append(s.FailedMessageIDs, messageID)
	}
}

// ShouldRedeliver reports whether messageID was listed for redelivery.
func (s BatchSummary) ShouldRedeliver(messageID string) bool {
	for _, id := range s.FailedMessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// BatchHandler processes the messages of one invocation.
type BatchHandler interface {
	ProcessBatch(ctx context.Context, messages []Message) BatchSummary
}

// BatchHandlerFunc adapts a function to BatchHandler.
type BatchHandlerFunc func(ctx context.Context, messages []Message) BatchSummary

// ProcessBatch calls f.
func (f BatchHandlerFunc) ProcessBatch(ctx context.Context, messages []Message) BatchSummary {
	return f(ctx, messages)
}
