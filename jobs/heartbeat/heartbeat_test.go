package heartbeat

import (
	"context"
	"fmt"
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

func recv(t *testing.T, s *service.Subscriber) changelog.Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return changelog.Event{}
}

// recvPing skips broadcasts until a ping arrives.
func recvPing(t *testing.T, s *service.Subscriber) {
	t.Helper()
	for {
		if recv(t, s).IsPing() {
			return
		}
	}
}

func TestPingsImmediatelyThenEveryInterval(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	reg := service.NewRegistry(32, sequence.New(0), nil, logging.Discard())
	sub := reg.NewSubscriber(context.Background(), "x")
	reg.Register(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(reg, clk, 10*time.Second, logging.Discard()).Run(ctx)
		close(done)
	}()

	if ev := recv(t, sub); !ev.IsPing() {
		t.Fatalf("expected immediate ping, got %+v", ev)
	}

	for i := 0; i < 3; i++ {
		if err := clk.WaitAdvance(10*time.Second, 2*time.Second, 1); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if ev := recv(t, sub); !ev.IsPing() {
			t.Fatalf("tick %d: expected ping, got %+v", i, ev)
		}
	}

	cancel()
	<-done
}

func TestPingsInterleaveWithBroadcasts(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	reg := service.NewRegistry(1024, sequence.New(0), nil, logging.Discard())
	sub := reg.NewSubscriber(context.Background(), "x")
	reg.Register(sub)

	// watcher sees the same passes as sub and tells us when a ping landed
	watcher := reg.NewSubscriber(context.Background(), "watcher")
	reg.Register(watcher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(reg, clk, 10*time.Second, logging.Discard()).Run(ctx)
		close(done)
	}()
	recvPing(t, watcher)

	const n = 100
	for i := 0; i < n; i++ {
		reg.Broadcast(changelog.Event{Kind: changelog.KindBroadcast, Data: fmt.Sprint(i)})
		if i%25 == 0 {
			if err := clk.WaitAdvance(10*time.Second, 2*time.Second, 1); err != nil {
				t.Fatalf("advance at %d: %v", i, err)
			}
			recvPing(t, watcher)
		}
	}
	cancel()
	<-done
	reg.Unregister(sub.ID())
	reg.Unregister(watcher.ID())

	pings, data := 0, 0
	for ev := range sub.Events() {
		if ev.IsPing() {
			pings++
			continue
		}
		if ev.Data != fmt.Sprint(data) {
			t.Fatalf("broadcast out of order: expected %d, got %s", data, ev.Data)
		}
		data++
	}
	if data != n {
		t.Fatalf("expected %d broadcasts, got %d", n, data)
	}
	// the immediate ping plus one per advance
	if pings != 5 {
		t.Fatalf("expected 5 pings, got %d", pings)
	}
}

func TestStopsOnCancel(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	reg := service.NewRegistry(1, sequence.New(0), nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		New(reg, clk, time.Hour, logging.Discard()).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}
