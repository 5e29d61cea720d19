package server

import (
	"slices"

	"github.com/tphakala/ftbuffer/pkg/fieldtrip"
)

// eventStore keeps the newest limit events of the current generation,
// addressed by absolute event index.
type eventStore struct {
	events []fieldtrip.Event
	base   uint32 // absolute index of events[0]
	limit  int
}

func newEventStore(limit int) *eventStore {
	return &eventStore{limit: limit}
}

// append adds evs and evicts from the front once over the limit.
func (s *eventStore) append(evs []fieldtrip.Event) {
	s.events = append(s.events, evs...)
	if over := len(s.events) - s.limit; over > 0 {
		s.events = slices.Delete(s.events, 0, over)
		s.base += uint32(over) //nolint:gosec // bounded by the event counter
	}
}

// get returns the retained events in r, or all of them when r is nil. ok is
// false when any part of r is not retained.
func (s *eventStore) get(r *fieldtrip.Range) (evs []fieldtrip.Event, ok bool) {
	if len(s.events) == 0 {
		return nil, false
	}
	if r == nil {
		return slices.Clone(s.events), true
	}
	end := uint64(s.base) + uint64(len(s.events))
	if r.First < s.base || uint64(r.Last) >= end {
		return nil, false
	}
	return slices.Clone(s.events[r.First-s.base : r.Last-s.base+1]), true
}

// flush drops every retained event. next is the index the next event gets.
func (s *eventStore) flush(next uint32) {
	s.events = nil
	s.base = next
}

func (s *eventStore) len() int {
	return len(s.events)
}
