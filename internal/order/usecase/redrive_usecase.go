package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/orderflow/internal/database"
	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/codec"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/queue"
)

// RedriveConfig holds redrive settings.
type RedriveConfig struct {
	// Interval is both the polling period and the minimum age of an order
	// before it is republished.
	Interval  time.Duration
	BatchSize int
}

// RedriveWorker runs a RedriveUseCase on a fixed interval.
type RedriveWorker struct {
	interval time.Duration
	useCase  RedriveUseCase
	logger   *slog.Logger
}

// NewRedriveWorker creates a new RedriveWorker.
func NewRedriveWorker(interval time.Duration, useCase RedriveUseCase, logger *slog.Logger) *RedriveWorker {
	return &RedriveWorker{interval: interval, useCase: useCase, logger: logger}
}

// Start runs Redrive on every tick until ctx is cancelled.
func (w *RedriveWorker) Start(ctx context.Context) error {
	w.logger.Info("starting fulfillment redrive", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping fulfillment redrive")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.useCase.Redrive(ctx); err != nil {
				w.logger.Error("failed to redrive orders", slog.Any("error", err))
			}
		}
	}
}

// redriveUseCase implements RedriveUseCase.
type redriveUseCase struct {
	config    RedriveConfig
	txManager database.TxManager
	orderRepo OrderRepository
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	newMessageID func() (string, error)
}

// NewRedriveUseCase creates a new RedriveUseCase.
func NewRedriveUseCase(
	config RedriveConfig,
	txManager database.TxManager,
	orderRepo OrderRepository,
	publisher Publisher,
	logger *slog.Logger,
) RedriveUseCase {
	return &redriveUseCase{
		config:    config,
		txManager: txManager,
		orderRepo: orderRepo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,

		newMessageID: queue.NewMessageID,
	}
}

// Redrive republishes FULFILLMENT_FAILED orders below the retry ceiling that
// have not been touched for one interval. Each order is first touched with a
// conditional update recording the message id it is about to be sent under,
// so the next tick skips it and an order that a consumer moved on in the
// meantime is left alone.
func (r *redriveUseCase) Redrive(ctx context.Context) (int, error) {
	republished := 0

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		now := r.now().UTC()
		orders, err := r.orderRepo.ListPendingRetry(ctx, now.Add(-r.config.Interval), r.config.BatchSize)
		if err != nil {
			return storeError("failed to list orders pending retry", err)
		}

		if len(orders) == 0 {
			return nil
		}

		r.logger.Info("redriving orders", slog.Int("count", len(orders)))

		for _, order := range orders {
			messageID, err := r.newMessageID()
			if err != nil {
				return err
			}
			touched := domain.MarkRedriven(order, messageID, now)

			body, err := codec.EncodeWire(touched)
			if err != nil {
				r.logger.Error("failed to encode order",
					slog.String("order_id", order.OrderID),
					slog.Any("error", err),
				)
				continue
			}

			if err := r.orderRepo.Update(ctx, touched); err != nil {
				if apperrors.Is(err, domain.ErrConcurrentUpdate) {
					r.logger.Info("order changed since listing, skipping redrive",
						slog.String("order_id", order.OrderID),
					)
					continue
				}
				return storeError("failed to save redriven order", err)
			}

			err = r.publisher.Publish(ctx, messageID, body, map[string]string{
				queue.AttributeOrderID:     order.OrderID,
				queue.AttributeOrderStatus: string(order.Status),
			})
			if err != nil {
				return fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err)
			}

			r.logger.Info("order republished for fulfillment",
				slog.String("order_id", order.OrderID),
				slog.Int("retry_count", order.RetryCount),
				slog.String("queue_message_id", messageID),
			)
			republished++
		}

		return nil
	})

	return republished, err
}
