package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/service"
	"github.com/allisson/orderflow/internal/queue"
)

// fulfillmentResult is the disposition of one well-formed message.
type fulfillmentResult int

const (
	resultFulfilled fulfillmentResult = iota
	resultRetryPending
	resultArchived
	resultSkipped
)

// fulfillmentUseCase implements FulfillmentUseCase.
type fulfillmentUseCase struct {
	orderRepo       OrderRepository
	failedOrderRepo FailedOrderRepository
	fulfillment     service.FulfillmentService
	environment     string
	logger          *slog.Logger
	now             func() time.Time
}

// NewFulfillmentUseCase creates a new FulfillmentUseCase.
func NewFulfillmentUseCase(
	orderRepo OrderRepository,
	failedOrderRepo FailedOrderRepository,
	fulfillment service.FulfillmentService,
	environment string,
	logger *slog.Logger,
) FulfillmentUseCase {
	return &fulfillmentUseCase{
		orderRepo:       orderRepo,
		failedOrderRepo: failedOrderRepo,
		fulfillment:     fulfillment,
		environment:     environment,
		logger:          logger,
		now:             time.Now,
	}
}

// ProcessBatch fulfills each message independently. Declined fulfillments
// count as failures but are acknowledged; messages that raised an error are
// listed for redelivery unless their body can never be parsed.
func (f *fulfillmentUseCase) ProcessBatch(ctx context.Context, messages []queue.Message) queue.BatchSummary {
	summary := queue.NewBatchSummary(len(messages))

	for _, m := range messages {
		result, err := f.processMessage(ctx, m)
		if err != nil {
			f.logger.Error("error processing record",
				slog.String("message_id", m.ID),
				slog.Any("error", err),
			)
			f.recordProcessingError(ctx, m, err)
			summary.RecordFailed(m.ID, !apperrors.Is(err, domain.ErrMalformedMessage))
			continue
		}

		switch result {
		case resultRetryPending, resultArchived:
			summary.RecordFailed(m.ID, false)
		default:
			summary.RecordProcessed()
		}
	}

	f.logger.Info("fulfillment processing complete",
		slog.Int("processed", summary.Processed),
		slog.Int("failed", summary.Failed),
		slog.Int("total", summary.Total),
	)

	return summary
}

func (f *fulfillmentUseCase) processMessage(ctx context.Context, m queue.Message) (fulfillmentResult, error) {
	order, err := codec.DecodeMessage(m.Body)
	if err != nil {
		return 0, err
	}

	// The live record is authoritative for status and retry count; the
	// message may be a stale copy from an earlier dispatch.
	current, err := f.orderRepo.GetByID(ctx, order.OrderID)
	exists := err == nil
	switch {
	case exists:
		order = current
	case apperrors.Is(err, domain.ErrOrderNotFound):
		if order.Status == "" {
			order.Status = domain.StatusStored
		}
	default:
		return 0, storeError("failed to load order", err)
	}

	now := f.now().UTC()

	if order.Status == domain.StatusFulfillmentFailed && order.RetriesExhausted() {
		return f.settleExhausted(ctx, m, order, now)
	}
	if !order.Status.CanTransitionTo(domain.StatusFulfilled) {
		f.logger.Info("order already settled, skipping",
			slog.String("order_id", order.OrderID),
			slog.String("status", order.Status.String()),
			slog.Int("retry_count", order.RetryCount),
		)
		return resultSkipped, nil
	}

	f.logger.Info("processing order fulfillment", slog.String("order_id", order.OrderID))

	outcome := f.fulfillment.Fulfill(order, now)

	if outcome.Success {
		fulfilled := domain.MarkFulfilled(order, outcome.TrackingNumber, outcome.Details, now)
		if err := f.write(ctx, fulfilled, exists, "failed to save fulfilled order"); err != nil {
			return 0, err
		}
		f.logger.Info("order fulfilled successfully",
			slog.String("order_id", order.OrderID),
			slog.String("tracking_number", outcome.TrackingNumber),
		)
		return resultFulfilled, nil
	}

	failed, exhausted := domain.MarkFulfillmentFailed(order, outcome.FailureReason, now)
	f.logger.Warn("fulfillment failed",
		slog.String("order_id", order.OrderID),
		slog.String("reason", outcome.FailureReason),
		slog.Int("retry_count", failed.RetryCount),
	)

	if !exhausted {
		if err := f.write(ctx, failed, exists, "failed to save failed order"); err != nil {
			return 0, err
		}
		return resultRetryPending, nil
	}

	// The shadow copy goes first: once the live record shows the final retry
	// count no redelivery simulates again, and a failed archive below is
	// completed by settleExhausted.
	if err := f.write(ctx, failed, exists, "failed to save archived order shadow"); err != nil {
		return 0, err
	}
	if err := f.archive(ctx, m, failed, now); err != nil {
		return 0, err
	}
	f.logger.Info("order moved to failed orders",
		slog.String("order_id", order.OrderID),
		slog.Int("retry_count", failed.RetryCount),
	)
	return resultArchived, nil
}

// settleExhausted handles a message for an order whose live record already
// carries the final retry count. The order is archived if an earlier attempt
// wrote the shadow copy but not the archive record.
func (f *fulfillmentUseCase) settleExhausted(
	ctx context.Context,
	m queue.Message,
	order *domain.Order,
	now time.Time,
) (fulfillmentResult, error) {
	_, err := f.failedOrderRepo.GetByOrderID(ctx, order.OrderID)
	switch {
	case err == nil:
		f.logger.Info("order already archived, skipping",
			slog.String("order_id", order.OrderID),
			slog.Int("retry_count", order.RetryCount),
		)
		return resultSkipped, nil
	case !apperrors.Is(err, domain.ErrFailedOrderNotFound):
		return 0, storeError("failed to load archived order", err)
	}

	if err := f.archive(ctx, m, order, now); err != nil {
		return 0, err
	}
	f.logger.Info("order moved to failed orders after interrupted archive",
		slog.String("order_id", order.OrderID),
		slog.Int("retry_count", order.RetryCount),
	)
	return resultArchived, nil
}

// write stores order conditionally: an update against the version that was
// read, or a create when no live record existed. Losing either race returns
// domain.ErrConcurrentUpdate so the message is redelivered against the
// winner's record.
func (f *fulfillmentUseCase) write(ctx context.Context, order *domain.Order, exists bool, op string) error {
	var err error
	if exists {
		err = f.orderRepo.Update(ctx, order)
	} else if err = f.orderRepo.Create(ctx, order); apperrors.Is(err, domain.ErrDuplicateOrder) {
		err = domain.ErrConcurrentUpdate
	}

	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, domain.ErrConcurrentUpdate):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return storeError(op, err)
	}
}

func (f *fulfillmentUseCase) archive(ctx context.Context, m queue.Message, order *domain.Order, now time.Time) error {
	data, err := codec.EncodeStore(order)
	if err != nil {
		return fmt.Errorf("failed to encode order %s: %w", order.OrderID, err)
	}

	value := order.CalculatedTotalAmount
	count := len(order.Items)
	record := &domain.FailedOrder{
		OrderID:           order.OrderID,
		Status:            domain.StatusFulfillmentFailed,
		FailedAt:          now,
		FailureSource:     domain.FailureSourceFulfillment,
		ErrorMessage:      order.ErrorMessage,
		MessageID:         m.ID,
		Environment:       f.environment,
		RetryCount:        order.RetryCount,
		OriginalOrderData: data,
		OrderValue:        &value,
		ItemCount:         &count,
		CustomerName:      order.CustomerName,
		CustomerEmail:     order.CustomerEmail,
		Metadata:          f.metadata(m, now, false),
	}

	if err := f.failedOrderRepo.Save(ctx, record); err != nil {
		return storeError("failed to archive order", err)
	}
	return nil
}

// recordProcessingError makes one attempt to archive a message that could not
// be handled. A failure here is logged and dropped.
func (f *fulfillmentUseCase) recordProcessingError(ctx context.Context, m queue.Message, cause error) {
	now := f.now().UTC()
	record := &domain.FailedOrder{
		OrderID:         domain.SyntheticErrorOrderID(m.ID, now),
		Status:          domain.StatusProcessingError,
		FailedAt:        now,
		FailureSource:   domain.FailureSourceFulfillmentProcessor,
		ErrorMessage:    cause.Error(),
		MessageID:       m.ID,
		Environment:     f.environment,
		OriginalMessage: codec.RawJSON(m.Body),
		Metadata:        f.metadata(m, now, true),
	}

	if err := f.failedOrderRepo.Save(ctx, record); err != nil {
		f.logger.Error("failed to save error record to failed orders",
			slog.String("message_id", m.ID),
			slog.Any("error", err),
		)
	}
}

func (f *fulfillmentUseCase) metadata(m queue.Message, now time.Time, processingError bool) domain.FailureMetadata {
	return domain.FailureMetadata{
		ProcessedAt:             now,
		ProcessorVersion:        domain.ProcessorVersion,
		MessageAttributes:       m.Attributes,
		ApproximateReceiveCount: receiveCount(m),
		ProcessingError:         processingError,
	}
}

// receiveCount prefers the count reported by the transport.
func receiveCount(m queue.Message) string {
	if count := m.Attributes[queue.AttributeApproximateReceiveCount]; count != "" {
		return count
	}
	if m.ReceiveCount > 0 {
		return strconv.Itoa(m.ReceiveCount)
	}
	return domain.UnknownReceiveCount
}
