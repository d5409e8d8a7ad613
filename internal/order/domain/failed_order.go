package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProcessorVersion is recorded on every archive record written by a stage.
const ProcessorVersion = "1.0"

// FailureSource identifies which path archived a record.
type FailureSource string

const (
	FailureSourceFulfillment          FailureSource = "FULFILLMENT"
	FailureSourceFulfillmentProcessor FailureSource = "FULFILLMENT_PROCESSOR_ERROR"
	FailureSourceDLQ                  FailureSource = "DLQ"
	FailureSourceDLQProcessor         FailureSource = "DLQ_PROCESSOR_ERROR"
)

// UnknownReceiveCount is stored when the transport did not report a delivery count.
const UnknownReceiveCount = "unknown"

// FailureMetadata carries transport provenance for manual recovery.
type FailureMetadata struct {
	ProcessedAt             time.Time
	ProcessorVersion        string
	MessageAttributes       map[string]string
	ApproximateReceiveCount string
	ProcessingError         bool
}

// FailedOrder is a terminal record in the failed-order archive. It is not a
// full Order: dead-lettered messages may carry no recoverable order at all.
type FailedOrder struct {
	OrderID       string
	Status        Status
	FailedAt      time.Time
	FailureSource FailureSource
	ErrorMessage  string
	MessageID     string
	Environment   string
	RetryCount    int

	// OriginalMessage and OriginalOrderData hold JSON with exact decimal text.
	OriginalMessage   json.RawMessage
	OriginalOrderData json.RawMessage

	OrderValue    *decimal.Decimal
	ItemCount     *int
	CustomerName  string
	CustomerEmail string

	Metadata FailureMetadata
}

// SyntheticDLQOrderID builds the identifier for a dead-lettered message whose
// body carried no order_id.
func SyntheticDLQOrderID(messageID string, at time.Time) string {
	return fmt.Sprintf("dlq-%s-%d", messageID, at.Unix())
}

// SyntheticErrorOrderID builds the identifier for a record describing a
// message a stage failed to process.
func SyntheticErrorOrderID(messageID string, at time.Time) string {
	return fmt.Sprintf("error-%s-%d", messageID, at.Unix())
}
