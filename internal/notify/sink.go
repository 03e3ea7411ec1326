// Package notify publishes progress events (headers validated, blocks
// validated) to subscribers without letting a slow or absent subscriber
// stall the sync pipelines that generate them.
package notify

import "sync/atomic"

// Event is one published payload. Kind identifies which counter it reports
// against; Count is the number of items validated since the previous event
// of that kind.
type Event struct {
	Kind  string
	Count int64
}

const (
	KindHeaders = "sync/headers"
	KindBlocks  = "sync/blocks"
)

// Sink is a non-blocking bounded publisher. Publish never blocks the
// caller: once the channel is full, the oldest queued event is dropped to
// make room, and the drop is counted rather than silently lost.
type Sink struct {
	events chan Event

	headersValidated atomic.Int64
	blocksValidated  atomic.Int64
	dropped          atomic.Int64
}

// NewSink returns a Sink buffering up to capacity pending events.
func NewSink(capacity int) *Sink {
	if capacity <= 0 {
		capacity = 1
	}
	return &Sink{events: make(chan Event, capacity)}
}

// Events returns the channel subscribers read from.
func (s *Sink) Events() <-chan Event {
	return s.events
}

// HeadersValidated publishes a sync/headers event and adds count to the
// running total.
func (s *Sink) HeadersValidated(count int64) {
	s.headersValidated.Add(count)
	s.publish(Event{Kind: KindHeaders, Count: count})
}

// BlocksValidated publishes a sync/blocks event and adds count to the
// running total.
func (s *Sink) BlocksValidated(count int64) {
	s.blocksValidated.Add(count)
	s.publish(Event{Kind: KindBlocks, Count: count})
}

// publish mirrors the non-blocking send pattern used for returning results
// from a bounded worker pool: try the send, and if the channel is full,
// make room by discarding the oldest entry rather than blocking the
// producer or growing without bound.
func (s *Sink) publish(e Event) {
	for {
		select {
		case s.events <- e:
			return
		default:
		}
		select {
		case <-s.events:
			s.dropped.Add(1)
		default:
		}
	}
}

// HeadersValidatedTotal reports the cumulative header count across all
// published events, independent of whether any event was dropped.
func (s *Sink) HeadersValidatedTotal() int64 { return s.headersValidated.Load() }

// BlocksValidatedTotal reports the cumulative block count across all
// published events, independent of whether any event was dropped.
func (s *Sink) BlocksValidatedTotal() int64 { return s.blocksValidated.Load() }

// Dropped reports how many events were discarded because no subscriber
// drained the channel in time.
func (s *Sink) Dropped() int64 { return s.dropped.Load() }
