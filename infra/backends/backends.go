// Package backends turns a validated config into the change log, item
// store and writer the binaries run against.
package backends

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ddbstream/config"
	"ddbstream/domain/changelog"
	"ddbstream/infra/aws"
	"ddbstream/infra/kafka"
	"ddbstream/infra/logging"
	"ddbstream/infra/pebble"
)

// Writer puts an item into the configured store.
type Writer interface {
	PutItem(ctx context.Context, item changelog.Item) error
}

// Set is everything opened for one process. Log is nil when only the store
// was asked for.
type Set struct {
	Log    changelog.ChangeLog
	Store  changelog.ItemStore
	Writer Writer

	closers []func() error
}

// Close releases every opened resource, newest first.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open builds the item store and the change log named by cfg.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Set, error) {
	return open(ctx, cfg, logger, true)
}

// OpenStore builds only the item store and its writer. With the kafka
// source the writer also publishes each change onto the topic, since
// nothing else captures changes for it.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Set, error) {
	return open(ctx, cfg, logger, false)
}

func open(ctx context.Context, cfg config.Config, logger *slog.Logger, withLog bool) (set *Set, err error) {
	set = &Set{}
	defer func() {
		if err != nil {
			_ = set.Close()
			set = nil
		}
	}()

	var clients *aws.Clients
	awsClients := func() (*aws.Clients, error) {
		if clients != nil {
			return clients, nil
		}
		c, err := aws.NewClients(ctx, aws.Options{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint})
		if err != nil {
			return nil, changelog.Connectivity("aws config", err)
		}
		clients = c
		return c, nil
	}

	// ---------------- Store ----------------

	var pebbleStore *pebble.Store
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		st := aws.NewItemStore(c.DynamoDB, cfg.Table.Name, cfg.Table.KeyAttribute, cfg.Table.ValueAttribute)
		set.Store, set.Writer = st, st
	case config.BackendPebble:
		st, err := pebble.Open(pebble.Options{
			Dir:       cfg.Pebble.Dir,
			Shards:    cfg.Pebble.Shards,
			Table:     cfg.Table.Name,
			KeyAttr:   cfg.Table.KeyAttribute,
			ValueAttr: cfg.Table.ValueAttribute,
			Limit:     cfg.Stream.BatchLimit,
			Logger:    logging.Component(logger, "pebble"),
		})
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
		set.closers = append(set.closers, st.Close)
		pebbleStore = st
		set.Store, set.Writer = st, st
	default:
		return nil, fmt.Errorf("unknown store.backend %q", cfg.Store.Backend)
	}

	if cfg.Stream.Source == config.SourceKafka {
		p := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		set.closers = append(set.closers, p.Close)
		set.Writer = &publishingWriter{
			store:     set.Store,
			writer:    set.Writer,
			publisher: p,
			table:     cfg.Table.Name,
			keyAttr:   cfg.Table.KeyAttribute,
			valueAttr: cfg.Table.ValueAttribute,
			now:       time.Now,
		}
	}

	if !withLog {
		return set, nil
	}

	// ---------------- Change log ----------------

	limit := cfg.Stream.BatchLimit
	switch cfg.Stream.Source {
	case config.SourceKinesis:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		set.Log = aws.NewKinesisLog(c.Kinesis, cfg.Stream.Name, int32(limit))
	case config.SourceDynamoDBStreams:
		c, err := awsClients()
		if err != nil {
			return nil, err
		}
		set.Log = aws.NewStreamsLog(c.Streams, cfg.Stream.ARN, int32(limit))
	case config.SourceKafka:
		src := kafka.NewSource(cfg.Kafka.Brokers, cfg.Kafka.Topic, limit, cfg.Kafka.MaxWait)
		set.closers = append(set.closers, src.Close)
		set.Log = src
	case config.SourcePebble:
		if pebbleStore == nil {
			return nil, fmt.Errorf("stream.source=%s needs store.backend=%s", config.SourcePebble, config.BackendPebble)
		}
		set.Log = pebbleStore
	default:
		return nil, fmt.Errorf("unknown stream.source %q", cfg.Stream.Source)
	}

	logger.Info("backends opened",
		"store", cfg.Store.Backend,
		"source", cfg.Stream.Source,
	)
	return set, nil
}

// -------------------- Publishing writer --------------------

type publisher interface {
	PublishChange(ctx context.Context, key string, env changelog.Envelope) error
}

// publishingWriter stores the item, then publishes its change envelope.
type publishingWriter struct {
	store     changelog.ItemStore
	writer    Writer
	publisher publisher

	table     string
	keyAttr   string
	valueAttr string
	now       func() time.Time
}

func (w *publishingWriter) PutItem(ctx context.Context, item changelog.Item) error {
	eventName := "MODIFY"
	if _, err := w.store.GetItem(ctx, item.ID); errors.Is(err, changelog.ErrNotFound) {
		eventName = "INSERT"
	} else if err != nil {
		return err
	}

	if err := w.writer.PutItem(ctx, item); err != nil {
		return err
	}

	env := changelog.NewEnvelope(eventName, w.table, w.keyAttr, w.valueAttr, item, w.now())
	return w.publisher.PublishChange(ctx, item.ID, env)
}
