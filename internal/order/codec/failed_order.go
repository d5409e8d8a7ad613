package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/allisson/orderflow/internal/order/domain"
)

type failureMetadataDocument struct {
	ProcessedAt             time.Time         `json:"processed_at"`
	ProcessorVersion        string            `json:"processor_version"`
	MessageAttributes       map[string]string `json:"message_attributes,omitempty"`
	ApproximateReceiveCount string            `json:"approximate_receive_count,omitempty"`
	ProcessingError         bool              `json:"processing_error,omitempty"`
}

type failedOrderDocument struct {
	OrderID           string                  `json:"order_id"`
	Status            string                  `json:"status"`
	FailedAt          time.Time               `json:"failed_at"`
	FailureSource     string                  `json:"failure_source"`
	ErrorMessage      string                  `json:"error_message,omitempty"`
	MessageID         string                  `json:"message_id,omitempty"`
	Environment       string                  `json:"environment,omitempty"`
	RetryCount        int                     `json:"retry_count,omitempty"`
	OriginalMessage   json.RawMessage         `json:"original_message,omitempty"`
	OriginalOrderData json.RawMessage         `json:"original_order_data,omitempty"`
	OrderValue        *Number                 `json:"order_value,omitempty"`
	ItemCount         *int                    `json:"item_count,omitempty"`
	CustomerName      string                  `json:"customer_name,omitempty"`
	CustomerEmail     string                  `json:"customer_email,omitempty"`
	Metadata          failureMetadataDocument `json:"dlq_metadata"`
}

// EncodeFailedOrder serializes an archive record. The order value is written
// as an exact decimal string; raw payloads are kept byte for byte.
func EncodeFailedOrder(f *domain.FailedOrder) ([]byte, error) {
	if f == nil {
		return nil, fmt.Errorf("codec: nil failed order")
	}
	doc := failedOrderDocument{
		OrderID:           f.OrderID,
		Status:            string(f.Status),
		FailedAt:          f.FailedAt,
		FailureSource:     string(f.FailureSource),
		ErrorMessage:      f.ErrorMessage,
		MessageID:         f.MessageID,
		Environment:       f.Environment,
		RetryCount:        f.RetryCount,
		OriginalMessage:   f.OriginalMessage,
		OriginalOrderData: f.OriginalOrderData,
		ItemCount:         f.ItemCount,
		CustomerName:      f.CustomerName,
		CustomerEmail:     f.CustomerEmail,
		Metadata: failureMetadataDocument{
			ProcessedAt:             f.Metadata.ProcessedAt,
			ProcessorVersion:        f.Metadata.ProcessorVersion,
			MessageAttributes:       f.Metadata.MessageAttributes,
			ApproximateReceiveCount: f.Metadata.ApproximateReceiveCount,
			ProcessingError:         f.Metadata.ProcessingError,
		},
	}
	if f.OrderValue != nil {
		value := newNumber(*f.OrderValue, FormStore)
		doc.OrderValue = &value
	}
	return json.Marshal(doc)
}

// DecodeFailedOrder parses an archive record.
func DecodeFailedOrder(data []byte) (*domain.FailedOrder, error) {
	var doc failedOrderDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	f := &domain.FailedOrder{
		OrderID:           doc.OrderID,
		Status:            domain.Status(doc.Status),
		FailedAt:          doc.FailedAt,
		FailureSource:     domain.FailureSource(doc.FailureSource),
		ErrorMessage:      doc.ErrorMessage,
		MessageID:         doc.MessageID,
		Environment:       doc.Environment,
		RetryCount:        doc.RetryCount,
		OriginalMessage:   doc.OriginalMessage,
		OriginalOrderData: doc.OriginalOrderData,
		ItemCount:         doc.ItemCount,
		CustomerName:      doc.CustomerName,
		CustomerEmail:     doc.CustomerEmail,
		Metadata: domain.FailureMetadata{
			ProcessedAt:             doc.Metadata.ProcessedAt,
			ProcessorVersion:        doc.Metadata.ProcessorVersion,
			MessageAttributes:       doc.Metadata.MessageAttributes,
			ApproximateReceiveCount: doc.Metadata.ApproximateReceiveCount,
			ProcessingError:         doc.Metadata.ProcessingError,
		},
	}
	if doc.OrderValue != nil {
		value := doc.OrderValue.Decimal
		f.OrderValue = &value
	}
	return f, nil
}

// RawJSON returns body when it is valid JSON, or body quoted as a JSON string.
func RawJSON(body []byte) json.RawMessage {
	if len(body) > 0 && json.Valid(body) {
		return json.RawMessage(body)
	}
	return json.RawMessage(strconv.Quote(string(body)))
}
