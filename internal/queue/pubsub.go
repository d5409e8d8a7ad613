package queue

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"gocloud.dev/pubsub"

	// Register pubsub drivers
	_ "gocloud.dev/pubsub/awssnssqs"
	_ "gocloud.dev/pubsub/mempubsub"
)

// OpenTopic opens a topic by URL. Supports mem:// and awssqs:// (plus any other
// registered gocloud.dev/pubsub scheme).
func OpenTopic(ctx context.Context, url string) (*pubsub.Topic, error) {
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open topic %q: %w", url, err)
	}
	return topic, nil
}

// OpenSubscription opens a subscription by URL. For mem:// URLs the topic
// with the same name must be opened first.
func OpenSubscription(ctx context.Context, url string) (*pubsub.Subscription, error) {
	sub, err := pubsub.OpenSubscription(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open subscription %q: %w", url, err)
	}
	return sub, nil
}

// Publisher sends message bodies to a topic.
type Publisher struct {
	topic *pubsub.Topic
}

// NewPublisher creates a Publisher for topic.
func NewPublisher(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// NewMessageID returns a time-ordered id for a message about to be published.
func NewMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	return id.String(), nil
}

// Publish sends body with attrs under messageID. The id travels in the
// message_id attribute so consumers see the same value on every broker.
func (p *Publisher) Publish(ctx context.Context, messageID string, body []byte, attrs map[string]string) error {
	metadata := make(map[string]string, len(attrs)+1)
	maps.Copy(metadata, attrs)
	metadata[AttributeMessageID] = messageID

	if err := p.topic.Send(ctx, &pubsub.Message{Body: body, Metadata: metadata}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// messageID returns the id set by Publisher, or the broker's loggable id.
func messageID(m *pubsub.Message) string {
	if id := m.Metadata[AttributeMessageID]; id != "" {
		return id
	}
	return m.LoggableID
}
