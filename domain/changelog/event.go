package changelog

import (
	"encoding/json"
	"fmt"
)

// Kind is the type tag carried on the wire.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindPing      Kind = "ping"
)

// Event is what subscribers receive. Values are immutable once built.
type Event struct {
	Kind Kind
	Data string
}

// Ping returns the heartbeat event.
func Ping() Event {
	return Event{Kind: KindPing}
}

// Broadcast serializes item into a broadcast event.
func Broadcast(item Item) (Event, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return Event{}, Parse("encode item", fmt.Errorf("item %q: %w", item.ID, err))
	}
	return Event{Kind: KindBroadcast, Data: string(data)}, nil
}

// IsPing reports whether e is a heartbeat.
func (e Event) IsPing() bool { return e.Kind == KindPing }
