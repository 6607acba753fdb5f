package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
)

// Publisher writes ledger events to a Kafka topic. Messages are keyed
// by the event subject so all events about one aggregate land on the
// same partition, in order.
type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

// NewPublisher creates a Kafka-backed event publisher
func NewPublisher(brokers []string, topic string, log *logger.Logger) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
		logger: log.WithField("component", "kafka_publisher"),
	}
}

// Publish writes the event to the topic
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Subject),
		Value: data,
	})
	if err != nil {
		p.logger.Error("failed to publish event", "type", event.Type, "subject", event.Subject, "error", err)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published", "type", event.Type, "subject", event.Subject)
	return nil
}

// Close flushes and closes the underlying writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
