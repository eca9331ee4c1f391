package machine

import (
	"sort"
	"time"

	"github.com/anggasct/hsm/pkg/core"
)

// DeferredEvent is an event parked on the state that deferred it
type DeferredEvent struct {
	Event    *core.Event
	State    string
	Deferred time.Time
	seq      uint64
}

// EventDeferrer keeps one FIFO queue per deferring state. A sequence number
// shared by all queues preserves the global submission order, which is the
// order events are replayed in.
//
// EventDeferrer is not safe for concurrent use; the Machine guards it.
type EventDeferrer struct {
	queues map[string][]*DeferredEvent
	next   uint64
}

// NewEventDeferrer creates an empty deferrer
func NewEventDeferrer() *EventDeferrer {
	return &EventDeferrer{
		queues: make(map[string][]*DeferredEvent),
	}
}

// DeferEvent appends event to the queue of state
func (ed *EventDeferrer) DeferEvent(state string, event *core.Event) *DeferredEvent {
	ed.next++
	d := &DeferredEvent{
		Event:    event,
		State:    state,
		Deferred: time.Now(),
		seq:      ed.next,
	}
	ed.queues[state] = append(ed.queues[state], d)
	return d
}

// Requeue parks an event again, possibly on another state, keeping its
// original position in the global order.
func (ed *EventDeferrer) Requeue(state string, d *DeferredEvent) {
	d.State = state
	q := ed.queues[state]
	i := sort.Search(len(q), func(i int) bool { return q[i].seq > d.seq })
	q = append(q, nil)
	copy(q[i+1:], q[i:])
	q[i] = d
	ed.queues[state] = q
}

// Take removes and returns the queue of state
func (ed *EventDeferrer) Take(state string) []*DeferredEvent {
	q := ed.queues[state]
	delete(ed.queues, state)
	return q
}

// Drain removes and returns every queued event in submission order
func (ed *EventDeferrer) Drain() []*DeferredEvent {
	var all []*DeferredEvent
	for state, q := range ed.queues {
		all = append(all, q...)
		delete(ed.queues, state)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	return all
}

// Events returns the events queued on state, oldest first
func (ed *EventDeferrer) Events(state string) []*core.Event {
	q := ed.queues[state]
	events := make([]*core.Event, 0, len(q))
	for _, d := range q {
		events = append(events, d.Event)
	}
	return events
}

// Count returns the number of queued events across all states
func (ed *EventDeferrer) Count() int {
	n := 0
	for _, q := range ed.queues {
		n += len(q)
	}
	return n
}

// Clear drops every queued event
func (ed *EventDeferrer) Clear() {
	ed.queues = make(map[string][]*DeferredEvent)
}
