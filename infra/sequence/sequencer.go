package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing IDs. The registry uses it to give
// every subscriber a stable identity for removal after a broadcast pass.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first ID is start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next ID. Safe for concurrent use.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued ID.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
