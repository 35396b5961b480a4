package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"go.uber.org/goleak"

	"ddbstream/domain/changelog"
	"ddbstream/infra/logging"
	"ddbstream/infra/sequence"
	"ddbstream/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func ptr(f float64) *float64 { return &f }

type harness struct {
	log      *fakeLog
	store    *memStore
	registry *service.Registry
	clock    *testclock.Clock
}

func newHarness(shards ...changelog.ShardID) *harness {
	return &harness{
		log:      newFakeLog(shards...),
		store:    &memStore{items: map[string]changelog.Item{}},
		registry: service.NewRegistry(64, sequence.New(0), nil, logging.Discard()),
		clock:    testclock.NewClock(time.Unix(0, 0)),
	}
}

func (h *harness) poller(t *testing.T) *Poller {
	t.Helper()
	cursors, err := Bootstrap(context.Background(), h.log, logging.Discard())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return New(h.log, cursors, service.NewEnricher(h.store, "id"), h.registry,
		h.clock, time.Second, nil, logging.Discard())
}

func next(t *testing.T, s *service.Subscriber) changelog.Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return changelog.Event{}
}

func TestBootstrapPositionsEveryShard(t *testing.T) {
	f := newFakeLog("s1", "s2", "s3")

	cursors, err := Bootstrap(context.Background(), f, logging.Discard())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(cursors) != 3 || cursors["s2"] != "s2-c0" {
		t.Fatalf("unexpected cursors %v", cursors)
	}
}

func TestBootstrapFailsOnAnyShard(t *testing.T) {
	f := newFakeLog("s1", "s2")
	f.latestErr["s2"] = changelog.Connectivity("get shard iterator", errors.New("throttled"))

	if _, err := Bootstrap(context.Background(), f, logging.Discard()); !changelog.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}

	f = newFakeLog("s1")
	f.listErr = changelog.Connectivity("list shards", errors.New("denied"))
	if _, err := Bootstrap(context.Background(), f, logging.Discard()); !changelog.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestScenarioTwoSubscribersGetEnrichedItem(t *testing.T) {
	h := newHarness("s1")
	h.store.items["a"] = changelog.Item{ID: "a", Value: ptr(42)}
	h.log.script("s1", "s1-c0", changelog.Batch{
		Records: []changelog.Record{{Sequence: "1", Data: envelope("a")}},
		Next:    changelog.NextCursor("s1-c1"),
	})

	x := h.registry.NewSubscriber(context.Background(), "x")
	y := h.registry.NewSubscriber(context.Background(), "y")
	h.registry.Register(x)
	h.registry.Register(y)

	p := h.poller(t)
	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	for _, s := range []*service.Subscriber{x, y} {
		ev := next(t, s)
		if ev.Kind != changelog.KindBroadcast || ev.Data != `{"id":"a","value":42}` {
			t.Fatalf("subscriber %s: unexpected %+v", s.Label(), ev)
		}
	}
	if p.cursors["s1"] != "s1-c1" {
		t.Fatalf("cursor not advanced: %v", p.cursors)
	}

	// the next cycle reads from the advanced cursor
	if err := p.cycle(context.Background()); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	h.log.mu.Lock()
	fetches := append([]changelog.Cursor(nil), h.log.fetches["s1"]...)
	h.log.mu.Unlock()
	if len(fetches) != 2 || fetches[0] != "s1-c0" || fetches[1] != "s1-c1" {
		t.Fatalf("unexpected fetch cursors %v", fetches)
	}
}

func TestClosedShardIsNeverFetchedAgain(t *testing.T) {
	h := newHarness("s1", "s2")
	h.store.items["a"] = changelog.Item{ID: "a", Value: ptr(1)}
	h.store.items["b"] = changelog.Item{ID: "b", Value: ptr(2)}
	h.log.script("s1", "s1-c0", changelog.Batch{
		Records: []changelog.Record{{Sequence: "1", Data: envelope("a")}},
	})
	h.log.script("s2", "s2-c0", changelog.Batch{
		Records: []changelog.Record{{Sequence: "1", Data: envelope("b")}},
		Next:    changelog.NextCursor("s2-c1"),
	})

	sub := h.registry.NewSubscriber(context.Background(), "x")
	h.registry.Register(sub)

	p := h.poller(t)
	for i := 0; i < 3; i++ {
		if err := p.cycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}

	if n := h.log.fetchCount("s1"); n != 1 {
		t.Fatalf("closed shard fetched %d times", n)
	}
	if n := h.log.fetchCount("s2"); n != 3 {
		t.Fatalf("open shard fetched %d times", n)
	}

	// The final batch of a closed shard is still delivered.
	first, second := next(t, sub), next(t, sub)
	if first.Data != `{"id":"a","value":1}` || second.Data != `{"id":"b","value":2}` {
		t.Fatalf("unexpected order %s, %s", first.Data, second.Data)
	}
	if got := p.Shards(); len(got) != 1 || got[0] != "s2" {
		t.Fatalf("unexpected shards %v", got)
	}
}

func TestRecordsDeliveredInShardOrder(t *testing.T) {
	h := newHarness("s1")
	for _, id := range []string{"a", "b", "c"} {
		h.store.items[id] = changelog.Item{ID: id}
	}
	h.log.script("s1", "s1-c0", changelog.Batch{
		Records: []changelog.Record{
			{Sequence: "1", Data: envelope("a")},
			{Sequence: "2", Data: envelope("b")},
			{Sequence: "3", Data: envelope("c")},
		},
		Next: changelog.NextCursor("s1-c1"),
	})

	sub := h.registry.NewSubscriber(context.Background(), "x")
	h.registry.Register(sub)

	if err := h.poller(t).cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		want := `{"id":"` + id + `","value":null}`
		if got := next(t, sub).Data; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestRunEndsOnFetchFailure(t *testing.T) {
	h := newHarness("s1")
	p := h.poller(t)
	h.log.fetchErr["s1"] = changelog.Connectivity("get records", errors.New("expired iterator"))

	err := p.Run(context.Background())
	if !changelog.IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
}

func TestRunEndsOnLookupFailure(t *testing.T) {
	h := newHarness("s1")
	h.log.script("s1", "s1-c0", changelog.Batch{
		Records: []changelog.Record{{Sequence: "1", Data: envelope("ghost")}},
		Next:    changelog.NextCursor("s1-c1"),
	})

	err := h.poller(t).Run(context.Background())
	if !changelog.IsLookup(err) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}

func TestRunWaitsIntervalBetweenCycles(t *testing.T) {
	h := newHarness("s1")
	p := h.poller(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for want := 1; want <= 3; want++ {
		if err := h.clock.WaitAdvance(time.Second, 2*time.Second, 1); err != nil {
			t.Fatalf("advance %d: %v", want, err)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	// one cycle before the first wait, one after each advance
	if n := h.log.fetchCount("s1"); n < 3 || n > 4 {
		t.Fatalf("expected 3 or 4 fetches, got %d", n)
	}
}

func TestRunKeepsCyclingWhenExhausted(t *testing.T) {
	h := newHarness("s1")
	h.log.script("s1", "s1-c0", changelog.Batch{})
	p := h.poller(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	if err := h.clock.WaitAdvance(time.Second, 2*time.Second, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := h.clock.WaitAdvance(time.Second, 2*time.Second, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := h.log.fetchCount("s1"); n != 1 {
		t.Fatalf("exhausted shard fetched %d times", n)
	}
}
