package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ddbstream/domain/changelog"
)

// memStore is an ItemStore over a map.
type memStore struct {
	mu    sync.Mutex
	items map[string]changelog.Item
	err   error
	calls int
}

func (m *memStore) GetItem(_ context.Context, key string) (changelog.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return changelog.Item{}, m.err
	}
	it, ok := m.items[key]
	if !ok {
		return changelog.Item{}, changelog.Lookup("get item", changelog.ErrNotFound)
	}
	return it, nil
}

func ptr(f float64) *float64 { return &f }

func TestEnrichUsesStoredStateNotImage(t *testing.T) {
	store := &memStore{items: map[string]changelog.Item{
		"a": {ID: "a", Value: ptr(42)},
	}}
	e := NewEnricher(store, "id")

	rec := changelog.Record{
		Sequence: "1",
		Data:     []byte(`{"dynamodb":{"Keys":{"id":{"S":"a"}},"NewImage":{"id":{"S":"a"},"value":{"N":"7"}}}}`),
	}

	ev, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if ev.Kind != changelog.KindBroadcast || ev.Data != `{"id":"a","value":42}` {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestEnrichResolvesEveryTime(t *testing.T) {
	store := &memStore{items: map[string]changelog.Item{"a": {ID: "a", Value: ptr(1)}}}
	e := NewEnricher(store, "id")
	rec := changelog.Record{Data: []byte(`{"dynamodb":{"Keys":{"id":{"S":"a"}}}}`)}

	if _, err := e.Enrich(context.Background(), rec); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	store.items["a"] = changelog.Item{ID: "a", Value: ptr(2)}
	ev, err := e.Enrich(context.Background(), rec)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if ev.Data != `{"id":"a","value":2}` || store.calls != 2 {
		t.Fatalf("expected fresh lookup, got %s after %d calls", ev.Data, store.calls)
	}
}

func TestEnrichErrorKinds(t *testing.T) {
	cases := []struct {
		name  string
		data  string
		store *memStore
		want  changelog.ErrorKind
	}{
		{"bad json", `nope`, &memStore{}, changelog.KindParse},
		{"missing key", `{"dynamodb":{"Keys":{"other":{"S":"a"}}}}`, &memStore{}, changelog.KindParse},
		{"numeric key", `{"dynamodb":{"Keys":{"id":{"N":"7"}}}}`, &memStore{}, changelog.KindParse},
		{"no item", `{"dynamodb":{"Keys":{"id":{"S":"zz"}}}}`, &memStore{}, changelog.KindLookup},
		{
			"store down",
			`{"dynamodb":{"Keys":{"id":{"S":"a"}}}}`,
			&memStore{err: changelog.Connectivity("query", errors.New("timeout"))},
			changelog.KindConnectivity,
		},
	}

	for _, c := range cases {
		e := NewEnricher(c.store, "id")
		_, err := e.Enrich(context.Background(), changelog.Record{Sequence: "9", Data: []byte(c.data)})
		if err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
		if changelog.KindOf(err) != c.want {
			t.Fatalf("%s: expected %s, got %v", c.name, c.want, err)
		}
		if c.want == changelog.KindParse && c.store.calls != 0 {
			t.Fatalf("%s: store queried for an unparseable record", c.name)
		}
	}
}

func TestEnrichMissingValueIsNull(t *testing.T) {
	store := &memStore{items: map[string]changelog.Item{"b": {ID: "b"}}}
	ev, err := NewEnricher(store, "id").Enrich(context.Background(),
		changelog.Record{Data: []byte(`{"dynamodb":{"Keys":{"id":{"S":"b"}}}}`)})
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if ev.Data != `{"id":"b","value":null}` {
		t.Fatalf("unexpected data %s", ev.Data)
	}
}
