package poller

import (
	"context"
	"fmt"
	"sync"

	"ddbstream/domain/changelog"
)

// fakeLog serves scripted batches per shard and records every fetch.
type fakeLog struct {
	mu      sync.Mutex
	shards  []changelog.ShardID
	latest  map[changelog.ShardID]changelog.Cursor
	batches map[changelog.ShardID]map[changelog.Cursor]changelog.Batch
	fetches map[changelog.ShardID][]changelog.Cursor

	listErr   error
	latestErr map[changelog.ShardID]error
	fetchErr  map[changelog.ShardID]error
}

func newFakeLog(shards ...changelog.ShardID) *fakeLog {
	f := &fakeLog{
		shards:    shards,
		latest:    map[changelog.ShardID]changelog.Cursor{},
		batches:   map[changelog.ShardID]map[changelog.Cursor]changelog.Batch{},
		fetches:   map[changelog.ShardID][]changelog.Cursor{},
		latestErr: map[changelog.ShardID]error{},
		fetchErr:  map[changelog.ShardID]error{},
	}
	for _, s := range shards {
		f.latest[s] = changelog.Cursor(string(s) + "-c0")
		f.batches[s] = map[changelog.Cursor]changelog.Batch{}
	}
	return f
}

func (f *fakeLog) ListShards(context.Context) ([]changelog.ShardID, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.shards, nil
}

func (f *fakeLog) LatestCursor(_ context.Context, s changelog.ShardID) (changelog.Cursor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.latestErr[s]; err != nil {
		return "", err
	}
	return f.latest[s], nil
}

func (f *fakeLog) GetRecords(_ context.Context, s changelog.ShardID, c changelog.Cursor) (changelog.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[s] = append(f.fetches[s], c)
	if err := f.fetchErr[s]; err != nil {
		return changelog.Batch{}, err
	}
	if b, ok := f.batches[s][c]; ok {
		return b, nil
	}
	// idle shard: same cursor, nothing new
	return changelog.Batch{Next: changelog.NextCursor(string(c))}, nil
}

func (f *fakeLog) script(s changelog.ShardID, from changelog.Cursor, b changelog.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[s][from] = b
}

func (f *fakeLog) fetchCount(s changelog.ShardID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches[s])
}

func envelope(id string) []byte {
	return []byte(fmt.Sprintf(`{"eventName":"MODIFY","dynamodb":{"Keys":{"id":{"S":%q}}}}`, id))
}

type memStore struct {
	mu    sync.Mutex
	items map[string]changelog.Item
}

func (m *memStore) GetItem(_ context.Context, key string) (changelog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return changelog.Item{}, changelog.Lookup("get item", changelog.ErrNotFound)
	}
	return it, nil
}
