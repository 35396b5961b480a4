package service

import (
	"context"
	"log/slog"
	"sync"

	"ddbstream/domain/changelog"
	"ddbstream/infra/metrics"
	"ddbstream/infra/sequence"
)

// Subscriber is one open stream. The registry owns the sending side of
// its channel; whoever created it reads from Events until the channel is
// closed.
type Subscriber struct {
	id     uint64
	label  string
	ctx    context.Context
	ch     chan changelog.Event
	closed bool // guarded by Registry.mu
}

func (s *Subscriber) ID() uint64 { return s.id }

// Label is a human readable name (peer address, "mirror", ...) for logs.
func (s *Subscriber) Label() string { return s.label }

// Events yields queued events. It is closed when the registry drops the
// subscriber.
func (s *Subscriber) Events() <-chan changelog.Event { return s.ch }

// trySend never blocks. Called with Registry.mu held.
func (s *Subscriber) trySend(ev changelog.Event) bool {
	if s.closed || s.ctx.Err() != nil {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Pass is the outcome of one broadcast.
type Pass struct {
	Delivered int
	Evicted   []uint64
}

// Registry is the set of live subscribers. Every method takes the same
// mutex, so a broadcast pass never interleaves with a register or a
// removal.
type Registry struct {
	mu     sync.Mutex
	subs   []*Subscriber
	closed bool

	ids     *sequence.Sequencer
	buffer  int
	metrics *metrics.Collector
	log     *slog.Logger
}

// NewRegistry wires the registry. buffer is the per-subscriber channel
// capacity.
func NewRegistry(
	buffer int,
	ids *sequence.Sequencer,
	m *metrics.Collector,
	logger *slog.Logger,
) *Registry {
	if buffer < 1 {
		buffer = 1
	}
	return &Registry{
		ids:     ids,
		buffer:  buffer,
		metrics: m,
		log:     logger,
	}
}

// NewSubscriber builds a subscriber bound to ctx. It is not registered.
func (r *Registry) NewSubscriber(ctx context.Context, label string) *Subscriber {
	return &Subscriber{
		id:    r.ids.Next(),
		label: label,
		ctx:   ctx,
		ch:    make(chan changelog.Event, r.buffer),
	}
}

// -------------------- Membership --------------------

// Register appends sub. It takes part in every pass that starts after
// Register returns. After Close, sub is closed straight away.
func (r *Registry) Register(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		return
	}

	r.subs = append(r.subs, sub)
	r.metrics.SetSubscribers(len(r.subs))
	r.log.Debug("subscriber registered", "id", sub.id, "label", sub.label, "subscribers", len(r.subs))
}

// Unregister drops the subscriber with the given id, if still present.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := r.removeLocked([]uint64{id}); n > 0 {
		r.log.Debug("subscriber unregistered", "id", id, "subscribers", len(r.subs))
	}
}

// Close drops every subscriber and refuses new ones, so stream handlers
// return and the gRPC server can stop gracefully.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	ids := make([]uint64, 0, len(r.subs))
	for _, s := range r.subs {
		ids = append(ids, s.id)
	}
	r.removeLocked(ids)
	r.log.Info("registry closed", "dropped", len(ids))
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// -------------------- Broadcast --------------------

// Broadcast offers ev to every subscriber in registration order. Any
// subscriber that cannot take it (stream gone, closed, buffer full) is
// removed once the pass is over and its channel closed.
func (r *Registry) Broadcast(ev changelog.Event) Pass {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(ev)
}

func (r *Registry) broadcastLocked(ev changelog.Event) Pass {
	var p Pass
	for _, s := range r.subs {
		if s.trySend(ev) {
			p.Delivered++
			continue
		}
		p.Evicted = append(p.Evicted, s.id)
	}

	if len(p.Evicted) > 0 {
		r.removeLocked(p.Evicted)
		r.log.Info("subscribers evicted",
			"type", string(ev.Kind), "evicted", len(p.Evicted), "subscribers", len(r.subs))
	}
	r.metrics.ObservePass(string(ev.Kind), p.Delivered, len(p.Evicted))
	return p
}

// removeLocked filters ids out of the slice, keeping order, and closes the
// removed channels.
func (r *Registry) removeLocked(ids []uint64) int {
	drop := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := r.subs[:0]
	removed := 0
	for _, s := range r.subs {
		if _, ok := drop[s.id]; !ok {
			kept = append(kept, s)
			continue
		}
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
		removed++
	}
	for i := len(kept); i < len(r.subs); i++ {
		r.subs[i] = nil
	}
	r.subs = kept

	if removed > 0 {
		r.metrics.SetSubscribers(len(r.subs))
	}
	return removed
}
