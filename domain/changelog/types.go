package changelog

import "context"

// ShardID identifies one ordered partition of the change log.
type ShardID string

// Cursor is an opaque read position inside a shard.
type Cursor string

// Record is one raw change envelope as delivered by the log.
type Record struct {
	// Sequence is the source's position token for the record, used for logging.
	Sequence string
	Data     []byte
}

// Batch is the result of one fetch against a shard.
//
// Next is nil when the shard is closed and must not be read again.
type Batch struct {
	Records []Record
	Next    *Cursor
}

// Closed reports whether the shard has no further positions.
func (b Batch) Closed() bool { return b.Next == nil }

// NextCursor is a helper for backends building a Batch.
func NextCursor(c string) *Cursor {
	cur := Cursor(c)
	return &cur
}

// ChangeLog is the change-capture transport.
type ChangeLog interface {
	// ListShards returns every shard of the log.
	ListShards(ctx context.Context) ([]ShardID, error)
	// LatestCursor returns a cursor positioned after the newest record of
	// the shard, so the backlog is skipped.
	LatestCursor(ctx context.Context, shard ShardID) (Cursor, error)
	// GetRecords fetches the records after cur.
	GetRecords(ctx context.Context, shard ShardID, cur Cursor) (Batch, error)
}

// Item is the current state of an entity in the backing store.
type Item struct {
	ID    string   `json:"id"`
	Value *float64 `json:"value"`
}

// ItemStore resolves an entity by primary key.
type ItemStore interface {
	// GetItem returns a Lookup error when no item exists for key.
	GetItem(ctx context.Context, key string) (Item, error)
}
