package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/allisson/orderflow/internal/order/domain"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testOrder(orderID string) *domain.Order {
	validatedAt := testNow.Add(-time.Second)
	total := decimal.RequireFromString("10.10")
	order := &domain.Order{
		OrderID:       orderID,
		Status:        domain.StatusValidated,
		CustomerName:  "A",
		CustomerEmail: "a@b.com",
		Items: []domain.Item{
			{ProductID: "p1", Quantity: decimal.NewFromInt(3), Price: decimal.RequireFromString("3.30")},
			{ProductID: "p2", Quantity: decimal.NewFromInt(1), Price: decimal.RequireFromString("0.2")},
		},
		TotalAmount:         &total,
		ValidationTimestamp: &validatedAt,
	}
	order.CalculatedTotalAmount = domain.CalculateTotal(order.Items)
	return domain.PrepareForStorage(order, testNow)
}

func testFailedFulfillment(orderID string, retries int, updatedAt time.Time) *domain.Order {
	order := testOrder(orderID)
	order.Status = domain.StatusFulfillmentFailed
	order.RetryCount = retries
	order.UpdatedAt = &updatedAt
	return order
}

func testFailedOrder(orderID string) *domain.FailedOrder {
	value := decimal.RequireFromString("10.50")
	count := 2
	return &domain.FailedOrder{
		OrderID:           orderID,
		Status:            domain.StatusDLQProcessingFailed,
		FailedAt:          testNow,
		FailureSource:     domain.FailureSourceDLQ,
		ErrorMessage:      domain.ErrTransportExhausted.Error(),
		MessageID:         "m1",
		Environment:       "test",
		OriginalMessage:   []byte(`{"order_id":"` + orderID + `","items":[{"quantity":2,"price":5.0}]}`),
		OriginalOrderData: []byte(`{"order_id":"` + orderID + `"}`),
		OrderValue:        &value,
		ItemCount:         &count,
		CustomerName:      "A",
		CustomerEmail:     "a@b.com",
		Metadata: domain.FailureMetadata{
			ProcessedAt:             testNow,
			ProcessorVersion:        domain.ProcessorVersion,
			MessageAttributes:       map[string]string{"order_id": orderID},
			ApproximateReceiveCount: "4",
		},
	}
}
