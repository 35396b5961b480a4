package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"ddbstream/domain/changelog"
)

// fetcher is the broker surface Source needs.
type fetcher interface {
	Partitions(ctx context.Context) ([]int, error)
	LastOffset(ctx context.Context, partition int) (int64, error)
	Fetch(ctx context.Context, partition int, offset int64, max int) ([]kafka.Message, error)
	Close() error
}

// Source is a change log backed by a Kafka topic carrying change
// envelopes. Partitions are shards and cursors are the next offset to
// read, so a partition never closes.
type Source struct {
	f     fetcher
	topic string
	limit int
}

// NewSource reads topic from brokers. limit caps records per fetch; 0
// means no cap beyond the fetch size.
func NewSource(brokers []string, topic string, limit int, maxWait time.Duration) *Source {
	return newSource(&connFetcher{
		brokers: brokers,
		topic:   topic,
		maxWait: maxWait,
		conns:   map[int]*kafka.Conn{},
	}, topic, limit)
}

func newSource(f fetcher, topic string, limit int) *Source {
	return &Source{f: f, topic: topic, limit: limit}
}

func (s *Source) ListShards(ctx context.Context) ([]changelog.ShardID, error) {
	parts, err := s.f.Partitions(ctx)
	if err != nil {
		return nil, changelog.Connectivity("kafka read partitions", err)
	}
	sort.Ints(parts)

	shards := make([]changelog.ShardID, 0, len(parts))
	for _, p := range parts {
		shards = append(shards, changelog.ShardID(strconv.Itoa(p)))
	}
	return shards, nil
}

func (s *Source) LatestCursor(ctx context.Context, shard changelog.ShardID) (changelog.Cursor, error) {
	p, err := partitionOf(shard)
	if err != nil {
		return "", err
	}
	off, err := s.f.LastOffset(ctx, p)
	if err != nil {
		return "", changelog.Connectivity("kafka read last offset", err)
	}
	return offsetCursor(off), nil
}

func (s *Source) GetRecords(ctx context.Context, shard changelog.ShardID, cur changelog.Cursor) (changelog.Batch, error) {
	p, err := partitionOf(shard)
	if err != nil {
		return changelog.Batch{}, err
	}
	off, err := strconv.ParseInt(string(cur), 10, 64)
	if err != nil {
		return changelog.Batch{}, changelog.Parse("kafka cursor", err)
	}

	msgs, err := s.f.Fetch(ctx, p, off, s.limit)
	if err != nil {
		return changelog.Batch{}, changelog.Connectivity("kafka fetch", fmt.Errorf("%s/%d@%d: %w", s.topic, p, off, err))
	}

	next := off
	b := changelog.Batch{Records: make([]changelog.Record, 0, len(msgs))}
	for _, m := range msgs {
		b.Records = append(b.Records, changelog.Record{
			Sequence: strconv.FormatInt(m.Offset, 10),
			Data:     m.Value,
		})
		next = m.Offset + 1
	}
	b.Next = changelog.NextCursor(strconv.FormatInt(next, 10))
	return b, nil
}

func (s *Source) Close() error {
	return s.f.Close()
}

func partitionOf(shard changelog.ShardID) (int, error) {
	p, err := strconv.Atoi(string(shard))
	if err != nil {
		return 0, changelog.Parse("kafka shard", err)
	}
	return p, nil
}

func offsetCursor(off int64) changelog.Cursor {
	return changelog.Cursor(strconv.FormatInt(off, 10))
}

// -------------------- Broker access --------------------

// connFetcher keeps one leader connection per partition. The poller never
// fetches the same partition concurrently, so a connection has a single
// user at a time.
type connFetcher struct {
	brokers []string
	topic   string
	maxWait time.Duration

	mu    sync.Mutex
	conns map[int]*kafka.Conn
}

func (c *connFetcher) Partitions(ctx context.Context) ([]int, error) {
	conn, err := c.dialAny(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	parts, err := conn.ReadPartitions(c.topic)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (c *connFetcher) LastOffset(ctx context.Context, partition int) (int64, error) {
	conn, err := c.leader(ctx, partition)
	if err != nil {
		return 0, err
	}
	off, err := conn.ReadLastOffset()
	if err != nil {
		c.drop(partition)
		return 0, err
	}
	return off, nil
}

func (c *connFetcher) Fetch(ctx context.Context, partition int, offset int64, max int) ([]kafka.Message, error) {
	conn, err := c.leader(ctx, partition)
	if err != nil {
		return nil, err
	}

	msgs, err := c.fetch(conn, offset, max)
	if err != nil {
		c.drop(partition)
		return nil, err
	}
	return msgs, nil
}

func (c *connFetcher) fetch(conn *kafka.Conn, offset int64, max int) ([]kafka.Message, error) {
	if _, err := conn.Seek(offset, kafka.SeekAbsolute); err != nil {
		return nil, err
	}
	// leave the broker room to answer an empty fetch before the socket
	// deadline trips
	if err := conn.SetReadDeadline(time.Now().Add(2*c.maxWait + time.Second)); err != nil {
		return nil, err
	}

	batch := conn.ReadBatchWith(kafka.ReadBatchConfig{
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  c.maxWait,
	})

	var msgs []kafka.Message
	for max <= 0 || len(msgs) < max {
		m, err := batch.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				batch.Close()
				return nil, err
			}
			break
		}
		msgs = append(msgs, m)
	}
	if err := batch.Close(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *connFetcher) leader(ctx context.Context, partition int) (*kafka.Conn, error) {
	c.mu.Lock()
	conn, ok := c.conns[partition]
	c.mu.Unlock()
	if ok {
		return conn, nil
	}

	var lastErr error
	for _, b := range c.brokers {
		conn, err := kafka.DialLeader(ctx, "tcp", b, c.topic, partition)
		if err != nil {
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.conns[partition] = conn
		c.mu.Unlock()
		return conn, nil
	}
	return nil, fmt.Errorf("dial leader for %s/%d: %w", c.topic, partition, lastErr)
}

func (c *connFetcher) dialAny(ctx context.Context) (*kafka.Conn, error) {
	var lastErr error
	for _, b := range c.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("dial brokers %v: %w", c.brokers, lastErr)
}

func (c *connFetcher) drop(partition int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[partition]; ok {
		conn.Close()
		delete(c.conns, partition)
	}
}

func (c *connFetcher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, conn := range c.conns {
		conn.Close()
		delete(c.conns, p)
	}
	return nil
}
