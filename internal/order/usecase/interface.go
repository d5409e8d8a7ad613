// Package usecase implements the order lifecycle stages: admission, idempotent
// storage with dispatch, fulfillment with bounded retries, dead-letter capture
// and the redrive of failed fulfillments.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/queue"
)

// OrderRepository persists live orders.
type OrderRepository interface {
	// Create writes order at domain.InitialVersion only if no record with its
	// order_id exists, and returns domain.ErrDuplicateOrder otherwise.
	Create(ctx context.Context, order *domain.Order) error
	// Update writes order only if the stored version equals order.Version,
	// and returns domain.ErrConcurrentUpdate otherwise. The stored version is
	// incremented on success.
	Update(ctx context.Context, order *domain.Order) error
	// GetByID returns the live record with its current Version.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	// ListPendingRetry returns FULFILLMENT_FAILED orders below the retry
	// ceiling last updated before olderThan.
	ListPendingRetry(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
}

// FailedOrderRepository persists archive records.
type FailedOrderRepository interface {
	Save(ctx context.Context, failed *domain.FailedOrder) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.FailedOrder, error)
	// List returns archive records, most recent failure first.
	List(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error)
}

// Publisher sends a message to the fulfillment queue under a caller-chosen id,
// so the id can be recorded before the message becomes visible to consumers.
type Publisher interface {
	Publish(ctx context.Context, messageID string, body []byte, attrs map[string]string) error
}

// ValidatorUseCase admits raw order submissions.
type ValidatorUseCase interface {
	Validate(ctx context.Context, raw map[string]any) (*domain.Order, error)
}

// StoreUseCase durably records a validated order and dispatches it to fulfillment.
type StoreUseCase interface {
	Store(ctx context.Context, order *domain.Order) (*domain.StoreResult, error)
}

// FulfillmentUseCase handles batches from the fulfillment queue.
type FulfillmentUseCase interface {
	queue.BatchHandler
}

// DeadLetterUseCase handles batches from the dead-letter queue.
type DeadLetterUseCase interface {
	queue.BatchHandler
}

// RedriveUseCase republishes failed fulfillments below the retry ceiling.
type RedriveUseCase interface {
	Redrive(ctx context.Context) (int, error)
}

// OrderQueryUseCase reads the audit trail.
type OrderQueryUseCase interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetFailedOrder(ctx context.Context, orderID string) (*domain.FailedOrder, error)
	ListFailedOrders(ctx context.Context, offset, limit int) ([]*domain.FailedOrder, error)
}

// IdempotencyStore maps an ingress Idempotency-Key to the order it created.
type IdempotencyStore interface {
	// TryLock claims key for an in-flight submission. It reports false when
	// another submission holds the key.
	TryLock(ctx context.Context, key string) (bool, error)
	// Remember maps key to orderID.
	Remember(ctx context.Context, key, orderID string) error
	// Recall returns the order mapped to key, if any.
	Recall(ctx context.Context, key string) (string, bool, error)
	// Release drops the claim on key after a failed submission.
	Release(ctx context.Context, key string) error
}
