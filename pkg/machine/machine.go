// Package machine owns a state hierarchy at runtime: it starts and stops the
// active configuration, serializes event submission, queues deferred events
// and reports activity to observers.
package machine

import (
	"fmt"
	"sync"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrNotRunning is returned when events are sent to a stopped machine
	ErrNotRunning = errors.New("machine is not running")
	// ErrAlreadyRunning is returned by Start on a running machine
	ErrAlreadyRunning = errors.New("machine is already running")
)

// Status is the lifecycle status of a Machine
type Status int

const (
	// StatusStopped is the status before Start and after Stop
	StatusStopped Status = iota
	// StatusRunning is the status between Start and Stop
	StatusRunning
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Option configures a Machine
type Option func(*Machine)

// WithName sets the machine name used in logs and observer notifications.
// It defaults to the root state name.
func WithName(name string) Option {
	return func(m *Machine) {
		m.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithObserver registers an observer
func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		m.observers.AddObserver(observer)
	}
}

// WithReplayDeferred controls whether queued deferred events are replayed
// after every transition (the default). When disabled they are only
// delivered again by Flush.
func WithReplayDeferred(enabled bool) Option {
	return func(m *Machine) {
		m.replay = enabled
	}
}

// Machine runs one hierarchy. All methods are safe for concurrent use;
// submissions are processed one at a time to completion.
type Machine struct {
	id     string
	name   string
	tree   *core.Hierarchy
	engine *core.Engine
	logger zerolog.Logger

	observers *ObserverManager
	deferrer  *EventDeferrer
	replay    bool

	status Status
	leaf   core.Node
	mutex  sync.Mutex
}

// New assembles the hierarchy below root and returns a stopped machine.
func New(root core.Node, opts ...Option) (*Machine, error) {
	tree, err := core.NewHierarchy(root)
	if err != nil {
		return nil, errors.Wrap(err, "assembling hierarchy")
	}
	m := &Machine{
		id:        uuid.New().String(),
		name:      root.Name(),
		tree:      tree,
		engine:    core.NewEngine(tree),
		logger:    zerolog.Nop(),
		observers: NewObserverManager(),
		deferrer:  NewEventDeferrer(),
		replay:    true,
		status:    StatusStopped,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("machine", m.name).Str("machine_id", m.id).Logger()
	return m, nil
}

// ID returns the unique identifier assigned by New
func (m *Machine) ID() string {
	return m.id
}

// Name returns the machine name
func (m *Machine) Name() string {
	return m.name
}

// Hierarchy returns the assembled hierarchy
func (m *Machine) Hierarchy() *core.Hierarchy {
	return m.tree
}

// Status returns the lifecycle status
func (m *Machine) Status() Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.status
}

// AddObserver registers an observer
func (m *Machine) AddObserver(observer Observer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.observers.AddObserver(observer)
}

// Start seals registration on every state and enters the root followed by
// its default substate chain. Enter callbacks receive a nil source and the
// initial leaf as target. Callback errors are returned combined, but the
// machine is running afterwards regardless.
func (m *Machine) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.status == StatusRunning {
		return ErrAlreadyRunning
	}

	m.tree.Seal()
	config := m.tree.InitialConfiguration()
	leaf := config[len(config)-1]
	target, _ := m.tree.State(leaf.Name())

	var errs error
	for _, n := range config {
		if s, ok := m.tree.State(n.Name()); ok {
			errs = errors.CombineErrors(errs, s.Enter(nil, target, nil))
		}
		m.observers.NotifyStateEnter(m.name, n.Name(), nil)
	}
	m.leaf = leaf
	m.status = StatusRunning

	m.logger.Info().Str("leaf", leaf.Name()).Msg("machine started")
	m.observers.NotifyMachineStarted(m.name)
	if errs != nil {
		m.logger.Error().Err(errs).Msg("enter callback failed during start")
		m.observers.NotifyError(m.name, errs, nil)
	}
	return errs
}

// Stop exits the active configuration from the leaf up to the root and drops
// every queued deferred event. Exit callbacks receive the active leaf as
// source and a nil target.
func (m *Machine) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.status != StatusRunning {
		return ErrNotRunning
	}

	source, _ := m.tree.State(m.leaf.Name())
	var errs error
	for _, n := range core.PathToRoot(m.leaf) {
		if s, ok := m.tree.State(n.Name()); ok {
			errs = errors.CombineErrors(errs, s.Exit(source, nil, nil))
		}
		m.observers.NotifyStateExit(m.name, n.Name(), nil)
	}

	if dropped := m.deferrer.Count(); dropped > 0 {
		m.logger.Warn().Int("dropped", dropped).Msg("dropping deferred events on stop")
	}
	m.deferrer.Clear()
	m.leaf = nil
	m.status = StatusStopped

	m.logger.Info().Msg("machine stopped")
	m.observers.NotifyMachineStopped(m.name)
	if errs != nil {
		m.logger.Error().Err(errs).Msg("exit callback failed during stop")
		m.observers.NotifyError(m.name, errs, nil)
	}
	return errs
}

// Send dispatches event to the active configuration and, after a completed
// transition, replays queued deferred events. The returned outcome describes
// event itself; callback errors from the event and from replayed events are
// combined into the returned error.
func (m *Machine) Send(event *core.Event) (*core.Outcome, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.status != StatusRunning {
		return nil, ErrNotRunning
	}

	out, err := m.dispatch(event, nil)
	if out != nil && out.Kind == core.OutcomeTransitioned && m.replay {
		_, rerr := m.replayDeferred()
		err = errors.CombineErrors(err, rerr)
	}
	return out, err
}

// SendNamed builds an event from name and data and sends it
func (m *Machine) SendNamed(name string, data map[string]any) (*core.Outcome, error) {
	event, err := core.NewEvent(name, data)
	if err != nil {
		return nil, err
	}
	return m.Send(event)
}

// Flush delivers the events queued on the named state again, oldest first.
// Events still deferred are queued again in their original order.
func (m *Machine) Flush(state string) ([]*core.Outcome, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.status != StatusRunning {
		return nil, ErrNotRunning
	}

	var (
		outcomes   []*core.Outcome
		errs       error
		progressed bool
	)
	for _, d := range m.deferrer.Take(state) {
		out, err := m.dispatch(d.Event, d)
		errs = errors.CombineErrors(errs, err)
		if out == nil {
			continue
		}
		outcomes = append(outcomes, out)
		progressed = progressed || out.Kind == core.OutcomeTransitioned
	}
	if progressed && m.replay {
		more, err := m.replayDeferred()
		outcomes = append(outcomes, more...)
		errs = errors.CombineErrors(errs, err)
	}
	return outcomes, errs
}

// replayDeferred re-dispatches every queued event in submission order, and
// repeats while a pass completes at least one transition.
func (m *Machine) replayDeferred() ([]*core.Outcome, error) {
	var (
		outcomes []*core.Outcome
		errs     error
	)
	for {
		pending := m.deferrer.Drain()
		if len(pending) == 0 {
			return outcomes, errs
		}
		m.logger.Debug().Int("pending", len(pending)).Msg("replaying deferred events")

		progressed := false
		for _, d := range pending {
			out, err := m.dispatch(d.Event, d)
			errs = errors.CombineErrors(errs, err)
			if out == nil {
				continue
			}
			outcomes = append(outcomes, out)
			progressed = progressed || out.Kind == core.OutcomeTransitioned
		}
		if !progressed {
			return outcomes, errs
		}
	}
}

// dispatch runs one event through the engine and applies the outcome. prior
// is the queue entry when the event is being replayed.
func (m *Machine) dispatch(event *core.Event, prior *DeferredEvent) (*core.Outcome, error) {
	out, err := m.engine.Dispatch(event, m.leaf)
	if out == nil {
		return nil, err
	}

	switch out.Kind {
	case core.OutcomeTransitioned:
		for _, n := range out.ExitSet {
			m.observers.NotifyStateExit(m.name, n.Name(), event)
		}
		for _, n := range out.EnterSet {
			m.observers.NotifyStateEnter(m.name, n.Name(), event)
		}
		m.leaf = out.Leaf
		m.logger.Debug().
			Str("event", event.Name()).
			Str("transition", out.Transition.Name()).
			Stringer("kind", out.TransitionKind).
			Strs("exited", out.Exited()).
			Strs("entered", out.Entered()).
			Msg("transition")
		m.observers.NotifyTransition(m.name, out)

	case core.OutcomeDeferred:
		state := out.Handler.Name()
		if prior != nil {
			m.deferrer.Requeue(state, prior)
		} else {
			m.deferrer.DeferEvent(state, event)
		}
		m.logger.Debug().Str("event", event.Name()).Str("state", state).Msg("event deferred")
		m.observers.NotifyEventDeferred(m.name, state, event)

	case core.OutcomeUnhandled:
		m.logger.Debug().
			Str("event", event.Name()).
			Str("state", out.Unhandled.State).
			Stringer("reason", out.Unhandled.Reason).
			Msg("event unhandled")
		m.observers.NotifyEventRejected(m.name, event, out.Unhandled.Reason)
	}

	if err != nil {
		m.logger.Error().Err(err).Str("event", event.Name()).Msg("callback failed during dispatch")
		m.observers.NotifyError(m.name, err, event)
	}
	return out, err
}

// ActiveLeaf returns the innermost active node, or nil when stopped
func (m *Machine) ActiveLeaf() core.Node {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.leaf
}

// ActiveStates returns the names of the active configuration, root first
func (m *Machine) ActiveStates() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.leaf == nil {
		return nil
	}
	path := core.PathFromRoot(m.leaf)
	names := make([]string, 0, len(path))
	for _, n := range path {
		names = append(names, n.Name())
	}
	return names
}

// IsActive reports whether the named state is part of the active configuration
func (m *Machine) IsActive(name string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for n := m.leaf; n != nil; n = n.ParentNode() {
		if n.Name() == name {
			return true
		}
	}
	return false
}

// DeferredEvents returns the events queued on the named state, oldest first
func (m *Machine) DeferredEvents(state string) []*core.Event {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.deferrer.Events(state)
}

// PendingDeferred returns the number of queued events across all states
func (m *Machine) PendingDeferred() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.deferrer.Count()
}
