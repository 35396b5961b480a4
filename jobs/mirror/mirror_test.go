package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	"go.uber.org/goleak"

	"ddbstream/domain/changelog"
	"ddbstream/infra/logging"
	"ddbstream/infra/sequence"
	"ddbstream/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func broadcast(data string) changelog.Event {
	return changelog.Event{Kind: changelog.KindBroadcast, Data: data}
}

func TestMirrorPublishesBroadcastsOnly(t *testing.T) {
	reg := service.NewRegistry(16, sequence.New(0), nil, logging.Discard())
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())

	published := make(chan string, 1)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		published <- string(val)
		return nil
	})

	m := New(reg, producer, "ddbstream-events", nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.Broadcast(changelog.Ping())
	reg.Broadcast(broadcast(`{"id":"a","value":42}`))

	select {
	case got := <-published:
		if got != `{"id":"a","value":42}` {
			t.Fatalf("unexpected payload %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}

	cancel()
	<-done
	if reg.Len() != 0 {
		t.Fatalf("mirror should unregister on stop, registry has %d", reg.Len())
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMirrorSurvivesPublishFailure(t *testing.T) {
	reg := service.NewRegistry(16, sequence.New(0), nil, logging.Discard())
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(errors.New("leader not available"))

	second := make(chan struct{})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func([]byte) error {
		close(second)
		return nil
	})

	m := New(reg, producer, "t", nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.Broadcast(broadcast(`{"id":"a","value":1}`))
	reg.Broadcast(broadcast(`{"id":"a","value":2}`))

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second publish never happened")
	}

	cancel()
	<-done
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMirrorRegistersAgainAfterEviction(t *testing.T) {
	reg := service.NewRegistry(1, sequence.New(0), nil, logging.Discard())
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())

	holding := make(chan struct{})
	release := make(chan struct{})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func([]byte) error {
		close(holding)
		<-release
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	m := New(reg, producer, "t", nil, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.Broadcast(broadcast(`{"id":"a","value":0}`))
	<-holding
	reg.Broadcast(broadcast(`{"id":"a","value":1}`))
	if p := reg.Broadcast(broadcast(`{"id":"a","value":2}`)); len(p.Evicted) != 1 {
		t.Fatalf("expected the mirror to be evicted, got %+v", p)
	}
	close(release)

	waitFor(t, func() bool { return reg.Len() == 1 })

	cancel()
	<-done
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMirrorStopsWhenRegistryCloses(t *testing.T) {
	reg := service.NewRegistry(16, sequence.New(0), nil, logging.Discard())
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	m := New(reg, producer, "ddbstream-events", nil, logging.Discard())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mirror kept running after the registry closed")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
