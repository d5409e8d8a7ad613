package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/orderflow/internal/app"
	"github.com/allisson/orderflow/internal/config"
)

// Worker is a background loop that runs until its context is cancelled.
type Worker interface {
	Start(ctx context.Context) error
}

// RunWorkers runs every worker until ctx is cancelled or one of them fails.
// The first failure cancels the others. Cancellation itself is not an error.
func RunWorkers(ctx context.Context, logger *slog.Logger, workers map[string]Worker) error {
	if len(workers) == 0 {
		return errors.New("no workers to run")
	}

	g, gctx := errgroup.WithContext(ctx)
	for name, worker := range workers {
		g.Go(func() error {
			logger.Info("starting worker", slog.String("worker", name))
			if err := worker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s worker: %w", name, err)
			}
			logger.Info("worker stopped", slog.String("worker", name))
			return nil
		})
	}
	return g.Wait()
}

// RunWorker starts the fulfillment consumer, the dead-letter consumer and the
// redrive worker, and blocks until SIGINT/SIGTERM or a worker failure.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	workers, err := buildWorkers(container)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return RunWorkers(ctx, logger, workers)
}

// buildWorkers collects the workers enabled by configuration.
func buildWorkers(container *app.Container) (map[string]Worker, error) {
	cfg := container.Config()
	workers := make(map[string]Worker)

	fulfillmentConsumer, err := container.FulfillmentConsumer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fulfillment consumer: %w", err)
	}
	workers["fulfillment"] = fulfillmentConsumer

	if cfg.DeadLetterQueueURL != "" {
		deadLetterConsumer, err := container.DeadLetterConsumer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize dead-letter consumer: %w", err)
		}
		workers["dead-letter"] = deadLetterConsumer
	}

	if cfg.RedriveEnabled {
		redriveWorker, err := container.RedriveWorker()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redrive worker: %w", err)
		}
		workers["redrive"] = redriveWorker
	}

	return workers, nil
}
