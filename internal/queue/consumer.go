package queue

import (
	"context"
	"log/slog"
	"maps"
	"strconv"
	"sync"
	"time"

	"gocloud.dev/pubsub"
)

// ConsumerConfig holds consumer settings.
type ConsumerConfig struct {
	// Name labels log lines.
	Name string
	// BatchSize caps the messages handed to the handler per invocation.
	BatchSize int
	// BatchWindow is how long to keep collecting after the first message.
	BatchWindow time.Duration
	// MaxDeliveries is the delivery budget of a message. When it is exceeded
	// the message is forwarded to the dead-letter topic and acknowledged.
	// Zero leaves dead-lettering to the broker.
	MaxDeliveries int
}

// Consumer receives batches from a subscription and dispatches them to a
// BatchHandler.
type Consumer struct {
	config     ConsumerConfig
	sub        *pubsub.Subscription
	handler    BatchHandler
	deadLetter *pubsub.Topic
	logger     *slog.Logger

	mu         sync.Mutex
	deliveries map[string]int
}

// NewConsumer creates a Consumer. deadLetter may be nil when MaxDeliveries is zero.
func NewConsumer(
	config ConsumerConfig,
	sub *pubsub.Subscription,
	handler BatchHandler,
	deadLetter *pubsub.Topic,
	logger *slog.Logger,
) *Consumer {
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	return &Consumer{
		config:     config,
		sub:        sub,
		handler:    handler,
		deadLetter: deadLetter,
		logger:     logger,
		deliveries: make(map[string]int),
	}
}

// Start runs the receive loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting queue consumer",
		slog.String("consumer", c.config.Name),
		slog.Int("batch_size", c.config.BatchSize),
		slog.Int("max_deliveries", c.config.MaxDeliveries),
	)

	for {
		if err := c.ReceiveBatch(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("stopping queue consumer", slog.String("consumer", c.config.Name))
				return ctx.Err()
			}
			return err
		}
	}
}

// ReceiveBatch blocks for one message, collects more for up to BatchWindow,
// and dispatches them. It returns an error only when the subscription fails.
func (c *Consumer) ReceiveBatch(ctx context.Context) error {
	first, err := c.sub.Receive(ctx)
	if err != nil {
		return err
	}
	received := []*pubsub.Message{first}

	if c.config.BatchSize > 1 && c.config.BatchWindow > 0 {
		windowCtx, cancel := context.WithTimeout(ctx, c.config.BatchWindow)
		for len(received) < c.config.BatchSize {
			m, err := c.sub.Receive(windowCtx)
			if err != nil {
				break
			}
			received = append(received, m)
		}
		cancel()
	}

	c.dispatch(ctx, received)
	return nil
}

func (c *Consumer) dispatch(ctx context.Context, received []*pubsub.Message) {
	batch := make([]Message, 0, len(received))
	pending := make([]*pubsub.Message, 0, len(received))

	for _, m := range received {
		id := messageID(m)
		count := c.recordDelivery(id)

		if c.config.MaxDeliveries > 0 && count > c.config.MaxDeliveries {
			c.forwardToDeadLetter(ctx, m, id, count)
			continue
		}

		batch = append(batch, Message{
			ID:           id,
			Body:         m.Body,
			Attributes:   m.Metadata,
			ReceiveCount: count,
		})
		pending = append(pending, m)
	}

	if len(batch) == 0 {
		return
	}

	summary := c.handler.ProcessBatch(ctx, batch)

	c.logger.Info("batch processed",
		slog.String("consumer", c.config.Name),
		slog.Int("processed", summary.Processed),
		slog.Int("failed", summary.Failed),
		slog.Int("total", summary.Total),
	)

	for i, m := range pending {
		id := batch[i].ID
		if !summary.ShouldRedeliver(id) {
			m.Ack()
			c.forget(id)
			continue
		}
		// Brokers without nack support redeliver after the ack deadline.
		if m.Nackable() {
			m.Nack()
		}
	}
}

// forwardToDeadLetter moves a message past its delivery budget to the
// dead-letter topic. The original is acknowledged only once the copy is sent.
func (c *Consumer) forwardToDeadLetter(ctx context.Context, m *pubsub.Message, id string, count int) {
	if c.deadLetter == nil {
		c.logger.Error("delivery budget exceeded without a dead-letter topic",
			slog.String("consumer", c.config.Name),
			slog.String("message_id", id),
			slog.Int("receive_count", count),
		)
		m.Ack()
		c.forget(id)
		return
	}

	metadata := make(map[string]string, len(m.Metadata)+3)
	maps.Copy(metadata, m.Metadata)
	metadata[AttributeMessageID] = id
	metadata[AttributeApproximateReceiveCount] = strconv.Itoa(count)
	metadata[AttributeDeadLetterReason] = DeadLetterReasonMaxDeliveries

	err := c.deadLetter.Send(ctx, &pubsub.Message{Body: m.Body, Metadata: metadata})
	if err != nil {
		c.logger.Error("failed to forward message to dead-letter topic",
			slog.String("consumer", c.config.Name),
			slog.String("message_id", id),
			slog.Any("error", err),
		)
		if m.Nackable() {
			m.Nack()
		}
		return
	}

	c.logger.Warn("message forwarded to dead-letter topic",
		slog.String("consumer", c.config.Name),
		slog.String("message_id", id),
		slog.Int("receive_count", count),
	)
	m.Ack()
	c.forget(id)
}

func (c *Consumer) recordDelivery(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries[id]++
	return c.deliveries[id]
}

func (c *Consumer) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.deliveries, id)
}
