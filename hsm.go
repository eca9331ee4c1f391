// Package hsm is a hierarchical state machine engine: a tree of nested
// states receives named events, and transitions that cross several levels of
// the hierarchy run guards, actions and enter/exit callbacks in statechart
// order.
//
// This package re-exports the types most programs need. The engine itself
// lives in pkg/core, composite states in pkg/states, the runtime container in
// pkg/machine, fluent builders in pkg/builders and chart loading in
// pkg/definition.
package hsm

import (
	"github.com/anggasct/hsm/pkg/builders"
	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/definition"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/anggasct/hsm/pkg/observers"
	"github.com/anggasct/hsm/pkg/states"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Core types
type (
	// Node is implemented by every participant in the hierarchy
	Node = core.Node

	// State owns an event-handler table, deferred events and enter/exit callbacks
	State = core.State

	// CompositeState is a state with ordered substates and a default substate
	CompositeState = states.CompositeState

	// Event is an immutable named token with an optional payload
	Event = core.Event

	// Transition is an immutable {source, destination, action, guard} record
	Transition = core.Transition

	// TransitionKind is External, Internal or Local
	TransitionKind = core.TransitionKind

	// Action runs when a transition is taken
	Action = core.Action

	// Guard decides whether a candidate transition may be taken
	Guard = core.Guard

	// StateCallback is an enter or exit callback
	StateCallback = core.StateCallback

	// HandlerOption configures AddHandlerForEvent
	HandlerOption = core.HandlerOption

	// Outcome reports what a dispatch did
	Outcome = core.Outcome

	// Hierarchy is the assembled, name-indexed node tree
	Hierarchy = core.Hierarchy

	// Engine dispatches events over a hierarchy
	Engine = core.Engine
)

// Runtime types
type (
	// Machine owns a hierarchy at runtime
	Machine = machine.Machine

	// Option configures a Machine
	Option = machine.Option

	// Observer receives machine notifications
	Observer = machine.Observer

	// ExtendedObserver receives every machine notification
	ExtendedObserver = machine.ExtendedObserver

	// BaseObserver implements ExtendedObserver with no-ops
	BaseObserver = machine.BaseObserver

	// Chart is a declarative machine definition
	Chart = definition.Chart

	// Registry binds chart callback names to functions
	Registry = definition.Registry
)

// Transition kinds
const (
	External = core.TransitionExternal
	Internal = core.TransitionInternal
	Local    = core.TransitionLocal
)

// Outcome kinds
const (
	Transitioned = core.OutcomeTransitioned
	Deferred     = core.OutcomeDeferred
	Unhandled    = core.OutcomeUnhandled
)

// Errors returned by the machine
var (
	ErrNotRunning     = machine.ErrNotRunning
	ErrAlreadyRunning = machine.ErrAlreadyRunning
)

// NewState creates a plain state
func NewState(name string) (*State, error) {
	return core.NewState(name)
}

// NewCompositeState creates a composite state
func NewCompositeState(name string) (*CompositeState, error) {
	return states.NewCompositeState(name)
}

// NewEvent creates an event
func NewEvent(name string, data map[string]any) (*Event, error) {
	return core.NewEvent(name, data)
}

// NewMachine assembles the hierarchy below root into a stopped machine
func NewMachine(root Node, opts ...Option) (*Machine, error) {
	return machine.New(root, opts...)
}

// NewBuilder creates a fluent builder whose root composite is called name
func NewBuilder(name string) *builders.StateMachineBuilder {
	return builders.NewStateMachineBuilder(name)
}

// NewRegistry creates an empty callback registry for charts
func NewRegistry() *Registry {
	return definition.NewRegistry()
}

// LoadChart loads a YAML or TOML chart from path
func LoadChart(path string) (*Chart, error) {
	return definition.LoadFile(path)
}

// WithKind sets the requested transition kind
func WithKind(kind TransitionKind) HandlerOption {
	return core.WithKind(kind)
}

// WithAction attaches a transition action
func WithAction(action Action) HandlerOption {
	return core.WithAction(action)
}

// WithGuard attaches a transition guard
func WithGuard(guard Guard) HandlerOption {
	return core.WithGuard(guard)
}

// WithName names the machine
func WithName(name string) Option {
	return machine.WithName(name)
}

// WithLogger sets the machine logger
func WithLogger(logger zerolog.Logger) Option {
	return machine.WithLogger(logger)
}

// WithObserver registers a machine observer
func WithObserver(observer Observer) Option {
	return machine.WithObserver(observer)
}

// WithReplayDeferred controls automatic replay of deferred events
func WithReplayDeferred(enabled bool) Option {
	return machine.WithReplayDeferred(enabled)
}

// NewLoggingObserver creates an observer writing structured logs to logger
func NewLoggingObserver(logger zerolog.Logger) *observers.LoggingObserver {
	return observers.NewLoggingObserver(logger)
}

// NewMetricsObserver creates an observer exporting Prometheus metrics on reg
func NewMetricsObserver(reg prometheus.Registerer) (*observers.MetricsObserver, error) {
	return observers.NewMetricsObserver(reg)
}
