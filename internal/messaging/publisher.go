package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// Publisher announces UserRecord changes to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
	Close() error
}

// messageWriter is the part of kafka.Writer the producer needs; tests swap it.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes change events keyed by email, so every change to
// one user lands on the same partition in order.
//
// The writer is asynchronous: Publish only enqueues, and delivery failures
// are logged from the completion callback. Close flushes what is pending.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NewKafkaPublisher builds an asynchronous publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: newWriter(brokers, logger), topic: topic}
}

func newWriter(brokers []string, logger *slog.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range msgs {
				logger.Warn("change event delivery failed",
					slog.String("topic", m.Topic),
					slog.String("email", string(m.Key)),
					slog.String("error", err.Error()),
				)
			}
		},
	}
}

// Publish enqueues ev. With the asynchronous writer an error here only
// reports a message that could not be enqueued.
func (p *KafkaPublisher) Publish(ctx context.Context, ev models.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize change event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(ev.Email),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s for %s: %w", ev.Type, ev.Email, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.ChangeEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
