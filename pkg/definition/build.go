package definition

import (
	"sort"

	"github.com/anggasct/hsm/pkg/core"
	"github.com/anggasct/hsm/pkg/machine"
	"github.com/anggasct/hsm/pkg/states"
	"github.com/cockroachdb/errors"
)

// Build creates the state hierarchy described by the chart and returns its
// root. Callback names are resolved through reg, which may be nil when the
// chart references none.
func (c *Chart) Build(reg *Registry) (core.Node, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = NewRegistry()
	}

	b := &builder{
		reg:    reg,
		nodes:  make(map[string]core.Node),
		states: make(map[string]*core.State),
	}
	root, err := b.create(c.Root)
	if err != nil {
		return nil, err
	}
	for _, def := range c.States() {
		if err := b.bind(def); err != nil {
			return nil, errors.Wrapf(err, "state %q", def.Name)
		}
	}
	return root, nil
}

// NewMachine builds the chart and wraps it in a stopped machine named after
// the chart. Options given by the caller take precedence.
func (c *Chart) NewMachine(reg *Registry, opts ...machine.Option) (*machine.Machine, error) {
	root, err := c.Build(reg)
	if err != nil {
		return nil, err
	}
	if c.Name != "" {
		opts = append([]machine.Option{machine.WithName(c.Name)}, opts...)
	}
	return machine.New(root, opts...)
}

type builder struct {
	reg    *Registry
	nodes  map[string]core.Node
	states map[string]*core.State
}

func (b *builder) create(def *StateDef) (core.Node, error) {
	if len(def.States) == 0 {
		s, err := core.NewState(def.Name)
		if err != nil {
			return nil, err
		}
		b.nodes[def.Name] = s
		b.states[def.Name] = s
		return s, nil
	}

	cs, err := states.NewCompositeState(def.Name)
	if err != nil {
		return nil, err
	}
	b.nodes[def.Name] = cs
	b.states[def.Name] = cs.State
	for _, childDef := range def.States {
		child, err := b.create(childDef)
		if err != nil {
			return nil, err
		}
		if err := cs.AddSubstate(child); err != nil {
			return nil, err
		}
	}
	if def.Initial != "" {
		if err := cs.SetDefaultSubstate(b.nodes[def.Initial]); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

func (b *builder) bind(def *StateDef) error {
	s := b.states[def.Name]

	if def.Enter != "" {
		cb, ok := b.reg.Callback(def.Enter)
		if !ok {
			return errors.Newf("unknown enter callback %q", def.Enter)
		}
		s.OnEnter(cb)
	}
	if def.Exit != "" {
		cb, ok := b.reg.Callback(def.Exit)
		if !ok {
			return errors.Newf("unknown exit callback %q", def.Exit)
		}
		s.OnExit(cb)
	}

	events := make([]string, 0, len(def.On))
	for event := range def.On {
		events = append(events, event)
	}
	sort.Strings(events)
	for _, event := range events {
		for i, t := range def.On[event] {
			opts, target, err := b.options(t)
			if err != nil {
				return errors.Wrapf(err, "event %q transition %d", event, i)
			}
			if err := s.AddHandlerForEvent(event, target, opts...); err != nil {
				return err
			}
		}
	}

	for _, event := range def.Defer {
		if err := s.DeferEvent(event); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) options(t TransitionDef) ([]core.HandlerOption, *core.State, error) {
	kind, err := core.ParseTransitionKind(t.Kind)
	if err != nil {
		return nil, nil, err
	}
	opts := []core.HandlerOption{core.WithKind(kind)}

	if t.Guard != "" {
		g, ok := b.reg.Guard(t.Guard)
		if !ok {
			return nil, nil, errors.Newf("unknown guard %q", t.Guard)
		}
		opts = append(opts, core.WithGuard(g))
	}
	if t.Action != "" {
		a, ok := b.reg.Action(t.Action)
		if !ok {
			return nil, nil, errors.Newf("unknown action %q", t.Action)
		}
		opts = append(opts, core.WithAction(a))
	}

	var target *core.State
	if t.Target != "" {
		target = b.states[t.Target]
	}
	return opts, target, nil
}
