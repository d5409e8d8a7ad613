// Package orchestrator runs the synchronous part of the order pipeline: the
// validator followed by the store stage. Fulfillment continues asynchronously
// from the queue.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/allisson/orderflow/internal/errors"
	"github.com/allisson/orderflow/internal/order/domain"
	"github.com/allisson/orderflow/internal/order/usecase"
)

// Config holds the retry policy applied to each step.
type Config struct {
	// MaxAttempts is how many times a failing step runs before its error is returned.
	MaxAttempts int
	// RetryInterval is the pause between attempts.
	RetryInterval time.Duration
}

// Pipeline runs an order submission through validation and storage.
type Pipeline struct {
	config    Config
	validator usecase.ValidatorUseCase
	store     usecase.StoreUseCase
	logger    *slog.Logger
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	config Config,
	validator usecase.ValidatorUseCase,
	store usecase.StoreUseCase,
	logger *slog.Logger,
) *Pipeline {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Pipeline{
		config:    config,
		validator: validator,
		store:     store,
		logger:    logger,
	}
}

// Submit validates raw and stores the resulting order. Validation failures
// are returned at once. Any other step error is retried with a fixed pause
// until the attempts run out or ctx is done.
func (p *Pipeline) Submit(ctx context.Context, raw map[string]any) (*domain.StoreResult, error) {
	var order *domain.Order
	err := p.run(ctx, "validate", func(ctx context.Context) error {
		validated, err := p.validator.Validate(ctx, raw)
		if err != nil {
			return err
		}
		order = validated
		return nil
	})
	if err != nil {
		return nil, err
	}

	var result *domain.StoreResult
	err = p.run(ctx, "store", func(ctx context.Context) error {
		stored, err := p.store.Store(ctx, order)
		if err != nil {
			return err
		}
		result = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("order pipeline completed",
		slog.String("order_id", result.Order.OrderID),
		slog.String("queue_message_id", result.QueueMessageID),
		slog.Bool("duplicate", result.Duplicate),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, step string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if apperrors.Is(err, apperrors.ErrInvalidInput) {
			return err
		}

		p.logger.Warn("order pipeline step failed",
			slog.String("step", step),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", p.config.MaxAttempts),
			slog.Any("error", err),
		)

		if attempt == p.config.MaxAttempts {
			break
		}
		if waitErr := p.wait(ctx); waitErr != nil {
			return fmt.Errorf("%s step interrupted: %w", step, err)
		}
	}
	return fmt.Errorf("%s step failed after %d attempts: %w", step, p.config.MaxAttempts, err)
}

func (p *Pipeline) wait(ctx context.Context) error {
	if p.config.RetryInterval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.config.RetryInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
