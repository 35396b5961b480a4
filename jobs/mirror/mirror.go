package mirror

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"ddbstream/domain/changelog"
	"ddbstream/infra/metrics"
	"ddbstream/service"
)

// Mirror republishes every broadcast to a Kafka topic. It is an ordinary
// registry subscriber: if it falls behind it is evicted like any client,
// and it registers again.
type Mirror struct {
	registry *service.Registry
	producer sarama.SyncProducer
	topic    string
	metrics  *metrics.Collector
	log      *slog.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewProducer builds the synchronous producer used by the mirror.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	return sarama.NewSyncProducer(brokers, cfg)
}

func New(
	registry *service.Registry,
	producer sarama.SyncProducer,
	topic string,
	m *metrics.Collector,
	logger *slog.Logger,
) *Mirror {
	return &Mirror{
		registry: registry,
		producer: producer,
		topic:    topic,
		metrics:  m,
		log:      logger,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run mirrors until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	m.log.Info("mirror started", "topic", m.topic)

	for {
		sub := m.registry.NewSubscriber(ctx, "kafka-mirror")
		m.registry.Register(sub)

		m.forward(ctx, sub)

		if ctx.Err() != nil || m.registry.Closed() {
			m.registry.Unregister(sub.ID())
			m.log.Info("mirror stopped")
			return
		}
		m.log.Warn("mirror was dropped by the registry, registering again")
	}
}

// forward returns when ctx is done or the registry closes sub.
func (m *Mirror) forward(ctx context.Context, sub *service.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.IsPing() {
				continue
			}
			m.publish(ev)
		}
	}
}

func (m *Mirror) publish(ev changelog.Event) {
	msg := &sarama.ProducerMessage{
		Topic: m.topic,
		Value: sarama.StringEncoder(ev.Data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(ev.Kind)},
		},
	}

	// key by item id so updates of one item stay on one partition
	var item changelog.Item
	if err := json.Unmarshal([]byte(ev.Data), &item); err == nil && item.ID != "" {
		msg.Key = sarama.StringEncoder(item.ID)
	}

	_, _, err := m.producer.SendMessage(msg)
	m.metrics.MirrorResult(err == nil)
	if err != nil {
		m.log.Warn("mirror publish failed", "err", err)
	}
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (m *Mirror) Close() error {
	return m.producer.Close()
}
