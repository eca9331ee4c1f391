// Package builders provides fluent builders for assembling state hierarchies
// in code
package builders

import (
	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/anggasct/hsm/pkg/states"
	"github.com/cockroachdb/errors"
)

// StateMachineBuilder provides a fluent interface for building a hierarchy
// below a composite root named after the machine. Errors are collected while
// chaining and reported by Build.
type StateMachineBuilder struct {
	root        *states.CompositeState
	states      map[string]*core.State
	transitions []*TransitionBuilder
	options     []machine.Option
	built       bool
	err         error
}

// StateBuilder configures one state of the hierarchy
type StateBuilder struct {
	builder   *StateMachineBuilder
	state     *core.State
	composite *states.CompositeState
	parent    *StateBuilder
}

// TransitionBuilder configures one candidate transition. It is registered
// on its source state when the hierarchy is built.
type TransitionBuilder struct {
	from   *StateBuilder
	target string
	event  string
	kind   core.TransitionKind
	guard  core.Guard
	action core.Action
}

// NewStateMachineBuilder creates a builder whose root composite is called name
func NewStateMachineBuilder(name string) *StateMachineBuilder {
	b := &StateMachineBuilder{
		states:  make(map[string]*core.State),
		options: []machine.Option{machine.WithName(name)},
	}
	root, err := states.NewCompositeState(name)
	if err != nil {
		b.fail(errors.Wrap(err, "creating root"))
		return b
	}
	b.root = root
	b.states[name] = root.State
	return b
}

func (b *StateMachineBuilder) fail(err error) {
	b.err = errors.CombineErrors(b.err, err)
}

// Root returns the builder of the root composite
func (b *StateMachineBuilder) Root() *StateBuilder {
	sb := &StateBuilder{builder: b}
	if b.root != nil {
		sb.state = b.root.State
		sb.composite = b.root
	}
	return sb
}

// State adds a plain state directly below the root
func (b *StateMachineBuilder) State(name string) *StateBuilder {
	return b.Root().State(name)
}

// Composite adds a composite state directly below the root
func (b *StateMachineBuilder) Composite(name string) *StateBuilder {
	return b.Root().Composite(name)
}

// WithOptions appends machine options used by BuildMachine
func (b *StateMachineBuilder) WithOptions(opts ...machine.Option) *StateMachineBuilder {
	b.options = append(b.options, opts...)
	return b
}

// WithObserver registers an observer on the machine built by BuildMachine
func (b *StateMachineBuilder) WithObserver(observer machine.Observer) *StateMachineBuilder {
	return b.WithOptions(machine.WithObserver(observer))
}

// Build registers the declared transitions in declaration order and returns
// the root. A builder can be built once.
func (b *StateMachineBuilder) Build() (core.Node, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true
	if b.err != nil {
		return nil, b.err
	}
	for _, t := range b.transitions {
		if err := t.register(); err != nil {
			b.fail(err)
		}
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.root, nil
}

// BuildMachine builds the hierarchy and wraps it in a stopped machine
func (b *StateMachineBuilder) BuildMachine() (*machine.Machine, error) {
	root, err := b.Build()
	if err != nil {
		return nil, err
	}
	return machine.New(root, b.options...)
}

func (s *StateBuilder) add(name string, composite bool) *StateBuilder {
	b := s.builder
	child := &StateBuilder{builder: b, parent: s}
	if s.composite == nil {
		if s.state != nil {
			b.fail(errors.Newf("state %q is not composite: cannot add %q", s.state.Name(), name))
		}
		return child
	}
	if _, exists := b.states[name]; exists {
		b.fail(errors.Newf("duplicate state %q", name))
		return child
	}

	var node core.Node
	if composite {
		cs, err := states.NewCompositeState(name)
		if err != nil {
			b.fail(err)
			return child
		}
		child.state, child.composite, node = cs.State, cs, cs
	} else {
		st, err := core.NewState(name)
		if err != nil {
			b.fail(err)
			return child
		}
		child.state, node = st, st
	}
	if err := s.composite.AddSubstate(node); err != nil {
		b.fail(err)
		return child
	}
	b.states[name] = child.state
	return child
}

// State adds a plain substate and returns its builder
func (s *StateBuilder) State(name string) *StateBuilder {
	return s.add(name, false)
}

// Composite adds a composite substate and returns its builder
func (s *StateBuilder) Composite(name string) *StateBuilder {
	return s.add(name, true)
}

// Initial makes the state the default substate of its parent. Without it
// the first substate added is the default.
func (s *StateBuilder) Initial() *StateBuilder {
	if s.state == nil || s.parent == nil || s.parent.composite == nil {
		return s
	}
	if err := s.parent.composite.SetDefaultSubstate(s.node()); err != nil {
		s.builder.fail(err)
	}
	return s
}

func (s *StateBuilder) node() core.Node {
	if s.composite != nil {
		return s.composite
	}
	return s.state
}

// OnEntry sets the enter callback
func (s *StateBuilder) OnEntry(cb core.StateCallback) *StateBuilder {
	if s.state != nil {
		s.state.OnEnter(cb)
	}
	return s
}

// OnExit sets the exit callback
func (s *StateBuilder) OnExit(cb core.StateCallback) *StateBuilder {
	if s.state != nil {
		s.state.OnExit(cb)
	}
	return s
}

// Defer marks events as deferred while the state is active
func (s *StateBuilder) Defer(events ...string) *StateBuilder {
	if s.state == nil {
		return s
	}
	for _, event := range events {
		if err := s.state.DeferEvent(event); err != nil {
			s.builder.fail(err)
		}
	}
	return s
}

// To starts a transition from this state to the named target
func (s *StateBuilder) To(target string) *TransitionBuilder {
	t := &TransitionBuilder{from: s, target: target, kind: core.TransitionExternal}
	s.builder.transitions = append(s.builder.transitions, t)
	return t
}

// Internal starts an internal transition handling event
func (s *StateBuilder) Internal(event string) *TransitionBuilder {
	t := &TransitionBuilder{from: s, event: event, kind: core.TransitionInternal}
	s.builder.transitions = append(s.builder.transitions, t)
	return t
}

// End returns the builder of the enclosing state
func (s *StateBuilder) End() *StateBuilder {
	if s.parent == nil {
		return s
	}
	return s.parent
}

// Builder returns the machine builder
func (s *StateBuilder) Builder() *StateMachineBuilder {
	return s.builder
}

// On sets the triggering event
func (t *TransitionBuilder) On(event string) *TransitionBuilder {
	t.event = event
	return t
}

// When sets the guard
func (t *TransitionBuilder) When(guard core.Guard) *TransitionBuilder {
	t.guard = guard
	return t
}

// Do sets the action
func (t *TransitionBuilder) Do(action core.Action) *TransitionBuilder {
	t.action = action
	return t
}

// Local requests a local transition
func (t *TransitionBuilder) Local() *TransitionBuilder {
	t.kind = core.TransitionLocal
	return t
}

// To starts another transition from the same source
func (t *TransitionBuilder) To(target string) *TransitionBuilder {
	return t.from.To(target)
}

// Internal starts another internal transition on the same source
func (t *TransitionBuilder) Internal(event string) *TransitionBuilder {
	return t.from.Internal(event)
}

// End returns the builder of the source state
func (t *TransitionBuilder) End() *StateBuilder {
	return t.from
}

func (t *TransitionBuilder) register() error {
	source := t.from.state
	if source == nil {
		return nil
	}
	var target *core.State
	if t.kind != core.TransitionInternal {
		var ok bool
		if target, ok = t.from.builder.states[t.target]; !ok {
			return errors.Newf("transition %s -> %s: unknown target state", source.Name(), t.target)
		}
	}
	opts := []core.HandlerOption{core.WithKind(t.kind)}
	if t.guard != nil {
		opts = append(opts, core.WithGuard(t.guard))
	}
	if t.action != nil {
		opts = append(opts, core.WithAction(t.action))
	}
	if err := source.AddHandlerForEvent(t.event, target, opts...); err != nil {
		return errors.Wrapf(err, "transition from %s", source.Name())
	}
	return nil
}
