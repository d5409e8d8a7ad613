// Package service provides the fulfillment backend used by the fulfillment stage.
//
// The only implementation is a stochastic simulator standing in for real
// payment and inventory integrations.
package service

import (
	"time"

	"github.com/allisson/orderflow/internal/order/domain"
)

// FulfillmentService attempts to fulfill an order.
type FulfillmentService interface {
	// Fulfill returns the outcome of one fulfillment attempt. A declined
	// fulfillment is a normal outcome, not an error.
	Fulfill(order *domain.Order, now time.Time) domain.FulfillmentOutcome
}
