package core

import (
	"strings"
)

// StateCallback is invoked when a state is entered or exited. Source is the
// state handling the event and target the transition destination.
type StateCallback func(source, target *State, data map[string]any) error

// HandlerOption configures a transition registered with AddHandlerForEvent
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	kind   TransitionKind
	action Action
	guard  Guard
}

// WithKind sets the requested transition kind (external by default)
func WithKind(kind TransitionKind) HandlerOption {
	return func(c *handlerConfig) {
		c.kind = kind
	}
}

// WithAction attaches an action to the transition
func WithAction(action Action) HandlerOption {
	return func(c *handlerConfig) {
		c.action = action
	}
}

// WithGuard attaches a guard to the transition
func WithGuard(guard Guard) HandlerOption {
	return func(c *handlerConfig) {
		c.guard = guard
	}
}

// State is a node of the hierarchy owning an event-handler table, a set of
// deferred event names and optional enter/exit callbacks.
//
// A State is not safe for concurrent use. Registration happens while the
// hierarchy is assembled; the owning machine seals every state when it starts.
type State struct {
	name   string
	parent Node

	handlers      map[string][]*Transition
	handlerOrder  []string
	deferred      map[string]struct{}
	deferredOrder []string

	onEnter StateCallback
	onExit  StateCallback
	sealed  bool
}

// NewState creates a state with the given name
func NewState(name string) (*State, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &InvalidNameError{Subject: "state"}
	}
	return &State{
		name:     name,
		handlers: make(map[string][]*Transition),
		deferred: make(map[string]struct{}),
	}, nil
}

// Name returns the state name
func (s *State) Name() string {
	return s.name
}

// ParentNode returns the enclosing node, or nil for the root
func (s *State) ParentNode() Node {
	return s.parent
}

// SetParentNode links the state under parent
func (s *State) SetParentNode(parent Node) {
	s.parent = parent
}

// DefaultSubstate returns nil; plain states have no substates.
func (s *State) DefaultSubstate() Node {
	return nil
}

// AsState returns s. Containers that embed a State expose it through the
// StateNode interface this way.
func (s *State) AsState() *State {
	return s
}

// OnEnter sets the enter callback
func (s *State) OnEnter(cb StateCallback) {
	s.onEnter = cb
}

// OnExit sets the exit callback
func (s *State) OnExit(cb StateCallback) {
	s.onExit = cb
}

// AddHandlerForEvent registers a candidate transition from s to target for
// the named event. Candidates are tried in registration order. A nil target
// registers an internal transition.
func (s *State) AddHandlerForEvent(event string, target *State, opts ...HandlerOption) error {
	if err := s.checkRegistration(event); err != nil {
		return err
	}
	if _, ok := s.deferred[event]; ok {
		return &ConflictingRegistrationError{State: s.name, Event: event, Existing: "deferral"}
	}

	cfg := handlerConfig{kind: TransitionExternal}
	for _, opt := range opts {
		opt(&cfg)
	}
	t, err := NewTransition(s, target, cfg.kind, cfg.action, cfg.guard)
	if err != nil {
		return err
	}

	if _, ok := s.handlers[event]; !ok {
		s.handlerOrder = append(s.handlerOrder, event)
	}
	s.handlers[event] = append(s.handlers[event], t)
	return nil
}

// DeferEvent marks the named event as deferred while s is active
func (s *State) DeferEvent(event string) error {
	if err := s.checkRegistration(event); err != nil {
		return err
	}
	if _, ok := s.handlers[event]; ok {
		return &ConflictingRegistrationError{State: s.name, Event: event, Existing: "handler"}
	}
	if _, ok := s.deferred[event]; ok {
		return nil
	}
	s.deferred[event] = struct{}{}
	s.deferredOrder = append(s.deferredOrder, event)
	return nil
}

func (s *State) checkRegistration(event string) error {
	if strings.TrimSpace(event) == "" {
		return &InvalidNameError{Subject: "event"}
	}
	if s.sealed {
		return &RegistrationClosedError{State: s.name, Event: event}
	}
	return nil
}

// Seal closes registration. It is idempotent.
func (s *State) Seal() {
	s.sealed = true
}

// Sealed reports whether registration is closed
func (s *State) Sealed() bool {
	return s.sealed
}

// CanHandleEvent reports whether at least one transition is registered for e
func (s *State) CanHandleEvent(e *Event) bool {
	if e == nil {
		return false
	}
	return len(s.handlers[e.Name()]) > 0
}

// CanDeferEvent reports whether s defers e
func (s *State) CanDeferEvent(e *Event) bool {
	if e == nil {
		return false
	}
	_, ok := s.deferred[e.Name()]
	return ok
}

// EventHandlersForEvent returns the candidate transitions for e in
// registration order. The returned slice is a copy.
func (s *State) EventHandlersForEvent(e *Event) []*Transition {
	if e == nil {
		return []*Transition{}
	}
	ts := s.handlers[e.Name()]
	out := make([]*Transition, len(ts))
	copy(out, ts)
	return out
}

// EventHandlers returns a copy of the whole handler table
func (s *State) EventHandlers() map[string][]*Transition {
	out := make(map[string][]*Transition, len(s.handlers))
	for name, ts := range s.handlers {
		out[name] = append([]*Transition(nil), ts...)
	}
	return out
}

// HandledEvents returns the names of handled events in registration order
func (s *State) HandledEvents() []string {
	return append([]string(nil), s.handlerOrder...)
}

// DeferredEvents returns the deferred event names in registration order
func (s *State) DeferredEvents() []string {
	return append([]string(nil), s.deferredOrder...)
}

// Enter runs the enter callback, if any
func (s *State) Enter(source, target *State, data map[string]any) error {
	if s.onEnter == nil {
		return nil
	}
	return s.onEnter(source, target, data)
}

// Exit runs the exit callback, if any
func (s *State) Exit(source, target *State, data map[string]any) error {
	if s.onExit == nil {
		return nil
	}
	return s.onExit(source, target, data)
}

func (s *State) String() string {
	return s.name
}
