package core

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable named token submitted to the machine. Its payload is
// copied on construction and on every read, so an Event can be shared across
// handler invocations. The copy is shallow: nested maps or slices stored as
// values are shared with the caller and with every reader.
type Event struct {
	id        string
	name      string
	data      map[string]any
	timestamp time.Time
}

// NewEvent creates an event with the given name and optional payload.
func NewEvent(name string, data map[string]any) (*Event, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidNameError{Subject: "event"}
	}
	return &Event{
		id:        uuid.New().String(),
		name:      name,
		data:      maps.Clone(data),
		timestamp: time.Now(),
	}, nil
}

// ID returns the unique identifier assigned at construction
func (e *Event) ID() string {
	return e.id
}

// Name returns the event name
func (e *Event) Name() string {
	return e.name
}

// Data returns a copy of the payload, or nil when the event carries none
func (e *Event) Data() map[string]any {
	return maps.Clone(e.data)
}

// Value returns a single payload entry. Reference values are not copied.
func (e *Event) Value(key string) (any, bool) {
	v, ok := e.data[key]
	return v, ok
}

// Timestamp returns the creation time of the event
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

func (e *Event) String() string {
	if len(e.data) == 0 {
		return e.name
	}
	return fmt.Sprintf("%s%v", e.name, e.data)
}
