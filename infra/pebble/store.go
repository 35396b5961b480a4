// Package pebble is a single-node backend on cockroachdb/pebble: an item
// store plus a sharded change log of envelopes written in the same batch as
// the item. It stands in for DynamoDB and its change capture in local runs
// and tests.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"ddbstream/domain/changelog"
)

// -------------------- Keys --------------------

// item/<id>                   -> item JSON
// log/<shard:04d>/<seq:020d>  -> change envelope JSON

const (
	itemPrefix = "item/"
	logPrefix  = "log/"
)

func itemKey(id string) []byte { return []byte(itemPrefix + id) }

func logKey(shard int, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%04d/%020d", logPrefix, shard, seq))
}

func shardBounds(shard int) (lower, upper []byte) {
	p := fmt.Sprintf("%s%04d/", logPrefix, shard)
	return []byte(p), []byte(p + "~")
}

func shardID(shard int) changelog.ShardID {
	return changelog.ShardID(fmt.Sprintf("%04d", shard))
}

// -------------------- Store --------------------

type Options struct {
	Dir       string
	Shards    int
	Table     string
	KeyAttr   string
	ValueAttr string
	// Limit caps records per GetRecords; 0 means 1000.
	Limit  int
	Logger *slog.Logger
}

// Store implements changelog.ItemStore and changelog.ChangeLog.
type Store struct {
	db   *pebble.DB
	opts Options

	mu   sync.Mutex // serializes writers so log sequences stay dense
	last []uint64   // last written sequence per shard, 0 = none

	now func() time.Time
}

func Open(opts Options) (*Store, error) {
	if opts.Shards < 1 {
		return nil, fmt.Errorf("pebble store needs at least one shard, got %d", opts.Shards)
	}
	if opts.Limit <= 0 {
		opts.Limit = 1000
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	db, err := pebble.Open(opts.Dir, &pebble.Options{
		Logger: logBridge{opts.Logger},
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, opts: opts, last: make([]uint64, opts.Shards), now: time.Now}
	for shard := range s.last {
		seq, err := s.lastSeq(shard)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.last[shard] = seq
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// -------------------- Items --------------------

func (s *Store) GetItem(_ context.Context, key string) (changelog.Item, error) {
	val, closer, err := s.db.Get(itemKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return changelog.Item{}, changelog.Lookup("pebble get", fmt.Errorf("%w: %q", changelog.ErrNotFound, key))
	}
	if err != nil {
		return changelog.Item{}, changelog.Connectivity("pebble get", err)
	}
	defer closer.Close()

	var item changelog.Item
	if err := json.Unmarshal(val, &item); err != nil {
		return changelog.Item{}, changelog.Parse("pebble decode item", err)
	}
	if item.ID == "" {
		return changelog.Item{}, changelog.Parse("pebble decode item", fmt.Errorf("item %q has no id", key))
	}
	return item, nil
}

// PutItem stores item and appends its change envelope to the item's shard
// in one atomic batch.
func (s *Store) PutItem(_ context.Context, item changelog.Item) error {
	doc, err := json.Marshal(item)
	if err != nil {
		return changelog.Parse("pebble encode item", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event := "INSERT"
	if _, closer, err := s.db.Get(itemKey(item.ID)); err == nil {
		closer.Close()
		event = "MODIFY"
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return changelog.Connectivity("pebble get", err)
	}

	env := changelog.NewEnvelope(event, s.opts.Table, s.opts.KeyAttr, s.opts.ValueAttr, item, s.now())
	env.EventSource = "ddbstream:pebble"
	data, err := env.Encode()
	if err != nil {
		return changelog.Parse("pebble encode envelope", err)
	}

	shard := s.shardFor(item.ID)
	seq := s.last[shard] + 1

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(itemKey(item.ID), doc, nil); err != nil {
		return changelog.Connectivity("pebble batch", err)
	}
	if err := b.Set(logKey(shard, seq), data, nil); err != nil {
		return changelog.Connectivity("pebble batch", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return changelog.Connectivity("pebble commit", err)
	}

	s.last[shard] = seq
	return nil
}

func (s *Store) shardFor(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(s.opts.Shards))
}

// -------------------- Change log --------------------

func (s *Store) ListShards(context.Context) ([]changelog.ShardID, error) {
	out := make([]changelog.ShardID, 0, s.opts.Shards)
	for i := 0; i < s.opts.Shards; i++ {
		out = append(out, shardID(i))
	}
	return out, nil
}

// LatestCursor points just past the newest envelope of the shard.
func (s *Store) LatestCursor(_ context.Context, id changelog.ShardID) (changelog.Cursor, error) {
	shard, err := s.parseShard(id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	next := s.last[shard] + 1
	s.mu.Unlock()
	return seqCursor(next), nil
}

func (s *Store) GetRecords(_ context.Context, id changelog.ShardID, cur changelog.Cursor) (changelog.Batch, error) {
	shard, err := s.parseShard(id)
	if err != nil {
		return changelog.Batch{}, err
	}
	from, err := strconv.ParseUint(string(cur), 10, 64)
	if err != nil {
		return changelog.Batch{}, changelog.Parse("pebble cursor", err)
	}

	_, upper := shardBounds(shard)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: logKey(shard, from),
		UpperBound: upper,
	})
	if err != nil {
		return changelog.Batch{}, changelog.Connectivity("pebble iter", err)
	}
	defer iter.Close()

	next := from
	var b changelog.Batch
	for iter.First(); iter.Valid() && len(b.Records) < s.opts.Limit; iter.Next() {
		seq, err := parseSeq(iter.Key())
		if err != nil {
			return changelog.Batch{}, changelog.Parse("pebble log key", err)
		}
		b.Records = append(b.Records, changelog.Record{
			Sequence: strconv.FormatUint(seq, 10),
			Data:     append([]byte(nil), iter.Value()...),
		})
		next = seq + 1
	}
	if err := iter.Error(); err != nil {
		return changelog.Batch{}, changelog.Connectivity("pebble iter", err)
	}

	b.Next = changelog.NextCursor(string(seqCursor(next)))
	return b, nil
}

func (s *Store) parseShard(id changelog.ShardID) (int, error) {
	shard, err := strconv.Atoi(string(id))
	if err != nil || shard < 0 || shard >= s.opts.Shards {
		return 0, changelog.Parse("pebble shard", fmt.Errorf("unknown shard %q", id))
	}
	return shard, nil
}

func (s *Store) lastSeq(shard int) (uint64, error) {
	lower, upper := shardBounds(shard)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseSeq(iter.Key())
}

func seqCursor(seq uint64) changelog.Cursor {
	return changelog.Cursor(strconv.FormatUint(seq, 10))
}

// parseSeq reads the sequence from a log key.
func parseSeq(key []byte) (uint64, error) {
	// log/0000/00000000000000000001
	const seqLen = 20
	if len(key) < seqLen {
		return 0, fmt.Errorf("short log key %q", key)
	}
	return strconv.ParseUint(string(key[len(key)-seqLen:]), 10, 64)
}

// -------------------- Logging --------------------

// logBridge routes pebble's logs into slog.
type logBridge struct{ l *slog.Logger }

func (b logBridge) Infof(format string, args ...interface{}) {
	b.l.Info(fmt.Sprintf(format, args...), "component", "pebble")
}

func (b logBridge) Fatalf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "pebble")
	os.Exit(1)
}
