package domain

import (
	"fmt"

	"github.com/allisson/orderflow/internal/errors"
)

// Order-specific error definitions.
var (
	// ErrOrderNotFound indicates no live order exists for the given order_id.
	ErrOrderNotFound = errors.Wrap(errors.ErrNotFound, "order not found")

	// ErrFailedOrderNotFound indicates no archive record exists for the given order_id.
	ErrFailedOrderNotFound = errors.Wrap(errors.ErrNotFound, "failed order not found")

	// ErrDuplicateOrder is returned by a conditional create when the order_id is
	// already stored. The store stage treats it as idempotent success.
	ErrDuplicateOrder = errors.Wrap(errors.ErrConflict, "order already exists")

	// ErrConcurrentUpdate is returned by a conditional update when the live
	// record changed since it was read.
	ErrConcurrentUpdate = errors.Wrap(errors.ErrConflict, "order changed concurrently")

	// ErrStoreUnavailable marks a transient failure of the order store or the archive.
	ErrStoreUnavailable = errors.Wrap(errors.ErrUnavailable, "order store unavailable")

	// ErrQueueUnavailable marks a failed publication to the fulfillment queue.
	ErrQueueUnavailable = errors.Wrap(errors.ErrUnavailable, "fulfillment queue unavailable")

	// ErrSimulatedFulfillment is the business outcome of a declined fulfillment.
	// It is recorded on the order and never returned past a stage boundary.
	ErrSimulatedFulfillment = errors.New("simulated fulfillment failure")

	// ErrTransportExhausted marks a message the transport gave up delivering.
	ErrTransportExhausted = errors.New("transport delivery attempts exhausted")

	// ErrMalformedMessage indicates a queue message body that is not an order.
	ErrMalformedMessage = errors.Wrap(errors.ErrInvalidInput, "malformed order message")
)

// ValidationError names the field and rule an order submission violated.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return errors.ErrInvalidInput
}

// StoreUnavailable wraps a storage driver failure as ErrStoreUnavailable.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// SimulatedFulfillmentFailure wraps a decline reason as ErrSimulatedFulfillment.
func SimulatedFulfillmentFailure(reason string) error {
	return fmt.Errorf("%w: %s", ErrSimulatedFulfillment, reason)
}
