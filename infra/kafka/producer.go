package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"ddbstream/domain/changelog"
)

// messageWriter is satisfied by *kafka.Writer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes change envelopes onto the change-log topic, standing
// in for a table's change capture when the kafka source is configured.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// PublishChange writes env keyed by the item key, so every change of one
// item lands on the same partition and keeps its order.
func (p *Producer) PublishChange(ctx context.Context, key string, env changelog.Envelope) error {
	value, err := env.Encode()
	if err != nil {
		return changelog.Parse("encode envelope", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	}); err != nil {
		return changelog.Connectivity("kafka write", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
