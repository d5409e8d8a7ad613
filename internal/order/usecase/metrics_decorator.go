package usecase

import (
	"context"
	"time"

	"github.com/allisson/orderflow/internal/metrics"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/queue"
)

const metricsDomain = "orders"

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// validatorUseCaseWithMetrics decorates ValidatorUseCase with metrics instrumentation.
type validatorUseCaseWithMetrics struct {
	next    ValidatorUseCase
	metrics metrics.BusinessMetrics
}

// NewValidatorUseCaseWithMetrics wraps a ValidatorUseCase with metrics recording.
func NewValidatorUseCaseWithMetrics(useCase ValidatorUseCase, m metrics.BusinessMetrics) ValidatorUseCase {
	return &validatorUseCaseWithMetrics{next: useCase, metrics: m}
}

// Validate records metrics for order admission.
func (v *validatorUseCaseWithMetrics) Validate(ctx context.Context, raw map[string]any) (*domain.Order, error) {
	start := time.Now()
	order, err := v.next.Validate(ctx, raw)

	status := statusOf(err)
	v.metrics.RecordOperation(ctx, metricsDomain, "order_validate", status)
	v.metrics.RecordDuration(ctx, metricsDomain, "order_validate", time.Since(start), status)

	return order, err
}

// storeUseCaseWithMetrics decorates StoreUseCase with metrics instrumentation.
type storeUseCaseWithMetrics struct {
	next    StoreUseCase
	metrics metrics.BusinessMetrics
}

// NewStoreUseCaseWithMetrics wraps a StoreUseCase with metrics recording.
func NewStoreUseCaseWithMetrics(useCase StoreUseCase, m metrics.BusinessMetrics) StoreUseCase {
	return &storeUseCaseWithMetrics{next: useCase, metrics: m}
}

// Store records metrics for order storage. Duplicates are labelled separately.
func (s *storeUseCaseWithMetrics) Store(ctx context.Context, order *domain.Order) (*domain.StoreResult, error) {
	start := time.Now()
	result, err := s.next.Store(ctx, order)

	status := statusOf(err)
	if err == nil && result.Duplicate {
		status = "duplicate"
	}
	s.metrics.RecordOperation(ctx, metricsDomain, "order_store", status)
	s.metrics.RecordDuration(ctx, metricsDomain, "order_store", time.Since(start), status)

	return result, err
}

// batchHandlerWithMetrics records one operation per message outcome and one
// duration per batch.
type batchHandlerWithMetrics struct {
	next      queue.BatchHandler
	metrics   metrics.BusinessMetrics
	operation string
}

// ProcessBatch records metrics for a batch.
func (b *batchHandlerWithMetrics) ProcessBatch(ctx context.Context, messages []queue.Message) queue.BatchSummary {
	start := time.Now()
	summary := b.next.ProcessBatch(ctx, messages)

	for i := 0; i < summary.Processed; i++ {
		b.metrics.RecordOperation(ctx, metricsDomain, b.operation, "success")
	}
	for i := 0; i < summary.Failed; i++ {
		b.metrics.RecordOperation(ctx, metricsDomain, b.operation, "error")
	}

	status := "success"
	if summary.Failed > 0 {
		status = "partial"
	}
	b.metrics.RecordDuration(ctx, metricsDomain, b.operation+"_batch", time.Since(start), status)

	return summary
}

// NewFulfillmentUseCaseWithMetrics wraps a FulfillmentUseCase with metrics recording.
func NewFulfillmentUseCaseWithMetrics(useCase FulfillmentUseCase, m metrics.BusinessMetrics) FulfillmentUseCase {
	return &batchHandlerWithMetrics{next: useCase, metrics: m, operation: "order_fulfill"}
}

// NewDeadLetterUseCaseWithMetrics wraps a DeadLetterUseCase with metrics recording.
func NewDeadLetterUseCaseWithMetrics(useCase DeadLetterUseCase, m metrics.BusinessMetrics) DeadLetterUseCase {
	return &batchHandlerWithMetrics{next: useCase, metrics: m, operation: "dead_letter_capture"}
}

// redriveUseCaseWithMetrics decorates RedriveUseCase with metrics instrumentation.
type redriveUseCaseWithMetrics struct {
	next    RedriveUseCase
	metrics metrics.BusinessMetrics
}

// NewRedriveUseCaseWithMetrics wraps a RedriveUseCase with metrics recording.
func NewRedriveUseCaseWithMetrics(useCase RedriveUseCase, m metrics.BusinessMetrics) RedriveUseCase {
	return &redriveUseCaseWithMetrics{next: useCase, metrics: m}
}

// Redrive records metrics for one redrive pass.
func (r *redriveUseCaseWithMetrics) Redrive(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.next.Redrive(ctx)

	status := statusOf(err)
	r.metrics.RecordOperation(ctx, metricsDomain, "order_redrive", status)
	r.metrics.RecordDuration(ctx, metricsDomain, "order_redrive", time.Since(start), status)

	return count, err
}
