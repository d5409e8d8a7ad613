package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/order/domain"
)

// SubmitOrderMessage is returned with every accepted submission.
const SubmitOrderMessage = "Order received and processing started"

// SubmitOrderResponse is the body of a 202 Accepted submission.
type SubmitOrderResponse struct {
	Message        string `json:"message"`
	OrderID        string `json:"order_id"`
	QueueMessageID string `json:"queue_message_id,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

// MapStoreResultToSubmitResponse converts a store result to a submission response.
func MapStoreResultToSubmitResponse(result *domain.StoreResult) SubmitOrderResponse {
	return SubmitOrderResponse{
		Message:        SubmitOrderMessage,
		OrderID:        result.Order.OrderID,
		QueueMessageID: result.QueueMessageID,
		Duplicate:      result.Duplicate,
	}
}

// ItemResponse represents an order line. Amounts are decimal strings.
type ItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// FulfillmentDetailsResponse represents the outcome of a successful fulfillment.
type FulfillmentDetailsResponse struct {
	FulfillmentCenter string    `json:"fulfillment_center"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
	ShippingMethod    string    `json:"shipping_method"`
	ItemsFulfilled    int       `json:"items_fulfilled"`
}

// OrderResponse represents a live order record.
type OrderResponse struct {
	OrderID               string                      `json:"order_id"`
	Status                string                      `json:"status"`
	CustomerName          string                      `json:"customer_name"`
	CustomerEmail         string                      `json:"customer_email"`
	Items                 []ItemResponse              `json:"items"`
	TotalAmount           *decimal.Decimal            `json:"total_amount,omitempty"`
	CalculatedTotalAmount decimal.Decimal             `json:"calculated_total_amount"`
	RetryCount            int                         `json:"retry_count"`
	CreatedAt             *time.Time                  `json:"created_at,omitempty"`
	StorageTimestamp      *time.Time                  `json:"storage_timestamp,omitempty"`
	FulfillmentTimestamp  *time.Time                  `json:"fulfillment_timestamp,omitempty"`
	UpdatedAt             *time.Time                  `json:"updated_at,omitempty"`
	TrackingNumber        string                      `json:"tracking_number,omitempty"`
	FulfillmentDetails    *FulfillmentDetailsResponse `json:"fulfillment_details,omitempty"`
	ErrorMessage          string                      `json:"error_message,omitempty"`
	QueueMessageID        string                      `json:"queue_message_id,omitempty"`
}

// MapOrderToResponse converts a domain order to an API response.
func MapOrderToResponse(order *domain.Order) OrderResponse {
	items := make([]ItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	response := OrderResponse{
		OrderID:               order.OrderID,
		Status:                string(order.Status),
		CustomerName:          order.CustomerName,
		CustomerEmail:         order.CustomerEmail,
		Items:                 items,
		TotalAmount:           order.TotalAmount,
		CalculatedTotalAmount: order.CalculatedTotalAmount,
		RetryCount:            order.RetryCount,
		CreatedAt:             order.CreatedAt,
		StorageTimestamp:      order.StorageTimestamp,
		FulfillmentTimestamp:  order.FulfillmentTimestamp,
		UpdatedAt:             order.UpdatedAt,
		TrackingNumber:        order.TrackingNumber,
		ErrorMessage:          order.ErrorMessage,
		QueueMessageID:        order.QueueMessageID,
	}
	if d := order.FulfillmentDetails; d != nil {
		response.FulfillmentDetails = &FulfillmentDetailsResponse{
			FulfillmentCenter: d.FulfillmentCenter,
			EstimatedDelivery: d.EstimatedDelivery,
			ShippingMethod:    d.ShippingMethod,
			ItemsFulfilled:    d.ItemsFulfilled,
		}
	}
	return response
}

// FailedOrderResponse represents an archive record.
type FailedOrderResponse struct {
	OrderID                 string           `json:"order_id"`
	Status                  string           `json:"status"`
	FailureSource           string           `json:"failure_source"`
	FailedAt                time.Time        `json:"failed_at"`
	ErrorMessage            string           `json:"error_message"`
	MessageID               string           `json:"message_id,omitempty"`
	Environment             string           `json:"environment,omitempty"`
	RetryCount              int              `json:"retry_count"`
	OrderValue              *decimal.Decimal `json:"order_value,omitempty"`
	ItemCount               *int             `json:"item_count,omitempty"`
	CustomerName            string           `json:"customer_name,omitempty"`
	CustomerEmail           string           `json:"customer_email,omitempty"`
	ApproximateReceiveCount string           `json:"approximate_receive_count,omitempty"`
	OriginalMessage         json.RawMessage  `json:"original_message,omitempty"`
	OriginalOrderData       json.RawMessage  `json:"original_order_data,omitempty"`
}

// MapFailedOrderToResponse converts an archive record to an API response.
func MapFailedOrderToResponse(failed *domain.FailedOrder) FailedOrderResponse {
	return FailedOrderResponse{
		OrderID:                 failed.OrderID,
		Status:                  string(failed.Status),
		FailureSource:           string(failed.FailureSource),
		FailedAt:                failed.FailedAt,
		ErrorMessage:            failed.ErrorMessage,
		MessageID:               failed.MessageID,
		Environment:             failed.Environment,
		RetryCount:              failed.RetryCount,
		OrderValue:              failed.OrderValue,
		ItemCount:               failed.ItemCount,
		CustomerName:            failed.CustomerName,
		CustomerEmail:           failed.CustomerEmail,
		ApproximateReceiveCount: failed.Metadata.ApproximateReceiveCount,
		OriginalMessage:         rawJSON(failed.OriginalMessage),
		OriginalOrderData:       rawJSON(failed.OriginalOrderData),
	}
}

// ListFailedOrdersResponse represents a page of archive records.
type ListFailedOrdersResponse struct {
	Data []FailedOrderResponse `json:"data"`
}

// MapFailedOrdersToListResponse converts archive records to a list response.
func MapFailedOrdersToListResponse(failedOrders []*domain.FailedOrder) ListFailedOrdersResponse {
	data := make([]FailedOrderResponse, 0, len(failedOrders))
	for _, failed := range failedOrders {
		data = append(data, MapFailedOrderToResponse(failed))
	}
	return ListFailedOrdersResponse{Data: data}
}

// rawJSON drops values that would not embed as JSON.
func rawJSON(data json.RawMessage) json.RawMessage {
	if len(data) == 0 || !json.Valid(data) {
		return nil
	}
	return data
}
