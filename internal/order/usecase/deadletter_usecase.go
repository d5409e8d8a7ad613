package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/queue"
)

// deadLetterUseCase implements DeadLetterUseCase.
type deadLetterUseCase struct {
	failedOrderRepo FailedOrderRepository
	environment     string
	logger          *slog.Logger
	now             func() time.Time
}

// NewDeadLetterUseCase creates a new DeadLetterUseCase.
func NewDeadLetterUseCase(
	failedOrderRepo FailedOrderRepository,
	environment string,
	logger *slog.Logger,
) DeadLetterUseCase {
	return &deadLetterUseCase{
		failedOrderRepo: failedOrderRepo,
		environment:     environment,
		logger:          logger,
		now:             time.Now,
	}
}

// ProcessBatch writes one archive record per dead-lettered message. Nothing is
// ever redelivered: a message whose records both fail to save is lost and logged.
func (d *deadLetterUseCase) ProcessBatch(ctx context.Context, messages []queue.Message) queue.BatchSummary {
	summary := queue.NewBatchSummary(len(messages))

	d.logger.Info("processing dlq messages", slog.Int("count", len(messages)))

	for _, m := range messages {
		if err := d.capture(ctx, m); err != nil {
			d.logger.Error("error processing dlq record",
				slog.String("message_id", m.ID),
				slog.Any("error", err),
			)
			summary.RecordFailed(m.ID, false)
			d.captureFallback(ctx, m, err)
			continue
		}
		summary.RecordProcessed()
	}

	d.logger.Info("dlq processing complete",
		slog.Int("processed_count", summary.Processed),
		slog.Int("error_count", summary.Failed),
		slog.Int("total_records", summary.Total),
		slog.String("environment", d.environment),
	)

	return summary
}

func (d *deadLetterUseCase) capture(ctx context.Context, m queue.Message) error {
	now := d.now().UTC()
	payload := codec.ParseDeadLetter(m.Body)

	orderID := payload.OrderID
	if orderID == "" {
		orderID = domain.SyntheticDLQOrderID(m.ID, now)
	}

	record := &domain.FailedOrder{
		OrderID:         orderID,
		Status:          domain.StatusDLQProcessingFailed,
		FailedAt:        now,
		FailureSource:   domain.FailureSourceDLQ,
		ErrorMessage:    deadLetterReason(m),
		MessageID:       m.ID,
		Environment:     d.environment,
		OriginalMessage: codec.RawJSON(m.Body),
		Metadata: domain.FailureMetadata{
			ProcessedAt:             now,
			ProcessorVersion:        domain.ProcessorVersion,
			MessageAttributes:       m.Attributes,
			ApproximateReceiveCount: receiveCount(m),
		},
	}
	if payload.HasOrderData() {
		record.OriginalOrderData = payload.OrderData
		record.CustomerName = payload.CustomerName
		record.CustomerEmail = payload.CustomerEmail
		record.OrderValue = payload.OrderValue
		record.ItemCount = payload.ItemCount
	}

	if err := d.failedOrderRepo.Save(ctx, record); err != nil {
		return storeError("failed to archive dead-lettered message", err)
	}

	d.logger.Info("dlq message processed successfully",
		slog.String("order_id", orderID),
		slog.String("message_id", m.ID),
		slog.String("failure_source", string(domain.FailureSourceDLQ)),
	)
	return nil
}

// captureFallback is the second and last write attempt for a message.
func (d *deadLetterUseCase) captureFallback(ctx context.Context, m queue.Message, cause error) {
	now := d.now().UTC()
	record := &domain.FailedOrder{
		OrderID:         domain.SyntheticErrorOrderID(m.ID, now),
		Status:          domain.StatusDLQProcessorFailed,
		FailedAt:        now,
		FailureSource:   domain.FailureSourceDLQProcessor,
		ErrorMessage:    cause.Error(),
		MessageID:       m.ID,
		Environment:     d.environment,
		OriginalMessage: codec.RawJSON(m.Body),
		Metadata: domain.FailureMetadata{
			ProcessedAt:      now,
			ProcessorVersion: domain.ProcessorVersion,
			ProcessingError:  true,
		},
	}

	if err := d.failedOrderRepo.Save(ctx, record); err != nil {
		d.logger.Error("failed to save error record for dlq message processing failure",
			slog.String("message_id", m.ID),
			slog.Any("error", err),
		)
	}
}

func deadLetterReason(m queue.Message) string {
	if reason := m.Attributes[queue.AttributeDeadLetterReason]; reason != "" {
		return fmt.Sprintf("%s: %s", domain.ErrTransportExhausted, reason)
	}
	return domain.ErrTransportExhausted.Error()
}
