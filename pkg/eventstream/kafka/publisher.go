// Package kafka publishes run events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	segmentio "github.com/segmentio/kafka-go"

	"github.com/quillworksco/quill/pkg/eventstream"
)

// Publisher writes run events to a Kafka topic, keyed by session id so all
// events for one session land on the same partition in order.
type Publisher struct {
	writer *segmentio.Writer
}

// NewPublisher creates a Kafka-backed publisher. Brokers is a list of
// bootstrap addresses, e.g. []string{"localhost:9092"}.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &segmentio.Writer{
			Addr:     segmentio.TCP(brokers...),
			Topic:    topic,
			Balancer: &segmentio.Hash{},
			// Fire-and-forget would lose events on broker restart; one ack
			// is enough for an audit stream.
			RequiredAcks: segmentio.RequireOne,
		},
	}
}

// PublishRun marshals the event as JSON and writes it to the topic.
func (p *Publisher) PublishRun(ctx context.Context, event *eventstream.RunPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilRunEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding run event: %w", err)
	}

	msg := segmentio.Message{
		Key:   []byte(event.RunMeta.SessionID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing run event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
