package queue

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gocloud.dev/pubsub"
	"gocloud.dev/pubsub/mempubsub"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]Message
	fail    func(m Message) bool
}

func (h *recordingHandler) ProcessBatch(_ context.Context, messages []Message) BatchSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.batches = append(h.batches, messages)

	summary := NewBatchSummary(len(messages))
	for _, m := range messages {
		if h.fail != nil && h.fail(m) {
			summary.RecordFailed(m.ID, true)
			continue
		}
		summary.RecordProcessed()
	}
	return summary
}

func (h *recordingHandler) seen() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var all []Message
	for _, b := range h.batches {
		all = append(all, b...)
	}
	return all
}

type fixture struct {
	topic   *pubsub.Topic
	sub     *pubsub.Subscription
	dlq     *pubsub.Topic
	dlqSub  *pubsub.Subscription
	publish *Publisher
	once    sync.Once
}

func (f *fixture) shutdown() {
	f.once.Do(func() {
		ctx := context.Background()
		_ = f.sub.Shutdown(ctx)
		_ = f.dlqSub.Shutdown(ctx)
		_ = f.topic.Shutdown(ctx)
		_ = f.dlq.Shutdown(ctx)
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	topic := mempubsub.NewTopic()
	dlq := mempubsub.NewTopic()
	f := &fixture{
		topic:   topic,
		sub:     mempubsub.NewSubscription(topic, time.Minute),
		dlq:     dlq,
		dlqSub:  mempubsub.NewSubscription(dlq, time.Minute),
		publish: NewPublisher(topic),
	}
	t.Cleanup(f.shutdown)
	return f
}

// send publishes body under a fresh message id and returns the id.
func (f *fixture) send(t *testing.T, body string, attrs map[string]string) string {
	t.Helper()
	id, err := NewMessageID()
	require.NoError(t, err)
	require.NoError(t, f.publish.Publish(context.Background(), id, []byte(body), attrs))
	return id
}

func TestNewMessageID(t *testing.T) {
	first, err := NewMessageID()
	require.NoError(t, err)
	second, err := NewMessageID()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	attrs := map[string]string{AttributeOrderID: "o1"}
	require.NoError(t, f.publish.Publish(ctx, "msg-1", []byte(`{"order_id":"o1"}`), attrs))

	m, err := f.sub.Receive(ctx)
	require.NoError(t, err)
	m.Ack()

	assert.Equal(t, "msg-1", m.Metadata[AttributeMessageID])
	assert.Equal(t, "o1", m.Metadata[AttributeOrderID])
	assert.Equal(t, "msg-1", messageID(m))
	assert.Len(t, attrs, 1, "caller attributes are not modified")
}

func TestConsumer_ReceiveBatch(t *testing.T) {
	t.Run("Success_AcksWholeBatch", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		handler := &recordingHandler{}
		consumer := NewConsumer(
			ConsumerConfig{Name: "test", BatchSize: 10, BatchWindow: 500 * time.Millisecond},
			f.sub, handler, nil, discardLogger(),
		)

		for _, body := range []string{"a", "b", "c"} {
			f.send(t, body, nil)
		}

		require.NoError(t, consumer.ReceiveBatch(ctx))

		seen := handler.seen()
		require.Len(t, seen, 3)
		for _, m := range seen {
			assert.Equal(t, 1, m.ReceiveCount)
		}

		// Nothing is redelivered once acknowledged.
		shortCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		assert.Error(t, consumer.ReceiveBatch(shortCtx))
	})

	t.Run("Success_RedeliversFailedMessages", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		attempts := 0
		handler := &recordingHandler{fail: func(Message) bool {
			attempts++
			return attempts == 1
		}}
		consumer := NewConsumer(
			ConsumerConfig{Name: "test", BatchSize: 1, MaxDeliveries: 3},
			f.sub, handler, f.dlq, discardLogger(),
		)

		id := f.send(t, "retry-me", nil)

		require.NoError(t, consumer.ReceiveBatch(ctx))
		require.NoError(t, consumer.ReceiveBatch(ctx))

		seen := handler.seen()
		require.Len(t, seen, 2)
		assert.Equal(t, id, seen[1].ID)
		assert.Equal(t, 2, seen[1].ReceiveCount)
	})

	t.Run("Success_ForwardsToDeadLetterAfterBudget", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		handler := &recordingHandler{fail: func(Message) bool { return true }}
		consumer := NewConsumer(
			ConsumerConfig{Name: "test", BatchSize: 1, MaxDeliveries: 2},
			f.sub, handler, f.dlq, discardLogger(),
		)

		id := f.send(t, `{"order_id":"o9"}`, map[string]string{AttributeOrderID: "o9"})

		for i := 0; i < 3; i++ {
			require.NoError(t, consumer.ReceiveBatch(ctx))
		}
		assert.Len(t, handler.seen(), 2)

		dead, err := f.dlqSub.Receive(ctx)
		require.NoError(t, err)
		dead.Ack()

		assert.Equal(t, `{"order_id":"o9"}`, string(dead.Body))
		assert.Equal(t, id, dead.Metadata[AttributeMessageID])
		assert.Equal(t, "o9", dead.Metadata[AttributeOrderID])
		assert.Equal(t, "3", dead.Metadata[AttributeApproximateReceiveCount])
		assert.Equal(t, DeadLetterReasonMaxDeliveries, dead.Metadata[AttributeDeadLetterReason])
	})
}

func TestConsumer_Start(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := newFixture(t)
	handler := &recordingHandler{}
	consumer := NewConsumer(
		ConsumerConfig{Name: "test", BatchSize: 5, BatchWindow: 10 * time.Millisecond},
		f.sub, handler, nil, discardLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	f.send(t, "x", nil)

	require.Eventually(t, func() bool { return len(handler.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	f.shutdown()
}

func TestBatchSummary(t *testing.T) {
	summary := NewBatchSummary(3)
	summary.RecordProcessed()
	summary.RecordFailed("m2", false)
	summary.RecordFailed("m3", true)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 3, summary.Total)
	assert.False(t, summary.ShouldRedeliver("m2"))
	assert.True(t, summary.ShouldRedeliver("m3"))
}
