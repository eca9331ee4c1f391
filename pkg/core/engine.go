package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// OutcomeKind classifies the result of a dispatch
type OutcomeKind int

const (
	// OutcomeTransitioned means a transition was selected and executed
	OutcomeTransitioned OutcomeKind = iota
	// OutcomeDeferred means an active state deferred the event
	OutcomeDeferred
	// OutcomeUnhandled means nothing consumed the event
	OutcomeUnhandled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeTransitioned:
		return "transitioned"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeUnhandled:
		return "unhandled"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome reports what a single dispatch did.
type Outcome struct {
	Kind  OutcomeKind
	Event *Event
	// Handler is the state that handled or deferred the event. For an
	// unhandled event it is the state whose guards all failed, or nil.
	Handler *State
	// Transition and TransitionKind are set when Kind is OutcomeTransitioned.
	Transition     *Transition
	TransitionKind TransitionKind
	// ExitSet is ordered leaf to ancestor, EnterSet ancestor to leaf.
	ExitSet  []Node
	EnterSet []Node
	// Leaf is the active leaf after the dispatch.
	Leaf Node
	// Unhandled is set when Kind is OutcomeUnhandled.
	Unhandled *UnhandledEventError
}

// Exited returns the names of the exited nodes, leaf first
func (o *Outcome) Exited() []string {
	return nodeNames(o.ExitSet)
}

// Entered returns the names of the entered nodes, outermost first
func (o *Outcome) Entered() []string {
	return nodeNames(o.EnterSet)
}

func (o *Outcome) String() string {
	switch o.Kind {
	case OutcomeTransitioned:
		return fmt.Sprintf("%s: %s %s exit=%v enter=%v leaf=%s",
			o.Event.Name(), o.TransitionKind, o.Transition.Name(), o.Exited(), o.Entered(), o.Leaf.Name())
	case OutcomeDeferred:
		return fmt.Sprintf("%s: deferred by %s", o.Event.Name(), o.Handler.Name())
	default:
		return fmt.Sprintf("%s: unhandled (%s)", o.Event.Name(), o.Unhandled.Reason)
	}
}

// Engine dispatches events over one hierarchy. It holds no locks; callers
// serialize Dispatch calls.
type Engine struct {
	tree *Hierarchy
}

// NewEngine creates an engine over tree
func NewEngine(tree *Hierarchy) *Engine {
	return &Engine{tree: tree}
}

// Hierarchy returns the hierarchy the engine dispatches over
func (e *Engine) Hierarchy() *Hierarchy {
	return e.tree
}

// Dispatch delivers event to the active configuration ending at leaf.
//
// Starting at leaf and walking up, the first state that handles or defers the
// event decides the outcome; a state checks its handlers before its
// deferrals. When handlers exist but every guard fails the event is unhandled
// and no ancestor is consulted.
//
// Unhandled events are reported through Outcome, not as an error. The
// returned error carries failures of exit callbacks, the action and enter
// callbacks; the whole sequence runs even when one of them fails.
func (e *Engine) Dispatch(event *Event, leaf Node) (*Outcome, error) {
	if event == nil {
		return nil, errors.New("dispatch: nil event")
	}
	current, ok := e.tree.Resolve(leaf)
	if !ok {
		name := "<nil>"
		if leaf != nil {
			name = leaf.Name()
		}
		return nil, &HierarchyError{Node: name, Reason: "active leaf is not part of the hierarchy"}
	}

	data := event.Data()
	for n := current; n != nil; n = n.ParentNode() {
		s := stateOf(n)
		if s == nil {
			continue
		}
		if s.CanHandleEvent(event) {
			return e.handle(event, current, n, s, data)
		}
		if s.CanDeferEvent(event) {
			return &Outcome{
				Kind:    OutcomeDeferred,
				Event:   event,
				Handler: s,
				Leaf:    current,
			}, nil
		}
	}

	return &Outcome{
		Kind:  OutcomeUnhandled,
		Event: event,
		Leaf:  current,
		Unhandled: &UnhandledEventError{
			Event:  event.Name(),
			State:  current.Name(),
			Reason: ReasonNoHandler,
		},
	}, nil
}

func (e *Engine) handle(event *Event, current, source Node, s *State, data map[string]any) (*Outcome, error) {
	for _, t := range s.EventHandlersForEvent(event) {
		target := t.Destination()
		if target == nil {
			target = s
		}
		if !t.Allows(s, target, data) {
			continue
		}
		return e.execute(event, current, source, t, data)
	}
	return &Outcome{
		Kind:    OutcomeUnhandled,
		Event:   event,
		Handler: s,
		Leaf:    current,
		Unhandled: &UnhandledEventError{
			Event:  event.Name(),
			State:  s.Name(),
			Reason: ReasonGuardRejected,
		},
	}, nil
}

func (e *Engine) execute(event *Event, current, source Node, t *Transition, data map[string]any) (*Outcome, error) {
	kind := t.Classify()
	out := &Outcome{
		Kind:           OutcomeTransitioned,
		Event:          event,
		Handler:        t.Source(),
		Transition:     t,
		TransitionKind: kind,
		Leaf:           current,
	}

	switch kind {
	case TransitionInternal:
		if a := t.Action(); a != nil {
			return out, a(t.Source(), t.Source(), data)
		}
		return out, nil

	case TransitionExternal, TransitionLocal:
		destination, ok := e.tree.Resolve(t.Destination())
		if !ok {
			return nil, &HierarchyError{
				Node:   t.Destination().Name(),
				Reason: fmt.Sprintf("destination of %s is not part of the hierarchy", t.Name()),
			}
		}
		domain := e.domain(kind, source, destination)
		out.ExitSet = exitPath(current, domain)
		out.EnterSet = enterPath(domain, destination)
		if n := len(out.EnterSet); n > 0 {
			out.Leaf = out.EnterSet[n-1]
		} else {
			out.Leaf = destination
		}
		return out, e.run(t, out, data)

	default:
		return nil, errors.AssertionFailedf("unexpected transition kind %s", kind)
	}
}

// domain returns the node that stays active across the transition. Nodes
// strictly below it on either side are exited or entered.
func (e *Engine) domain(kind TransitionKind, source, destination Node) Node {
	if kind == TransitionLocal {
		if IsAncestor(destination, source) {
			return destination
		}
		return source
	}
	return transitionDomain(source, destination)
}

func (e *Engine) run(t *Transition, out *Outcome, data map[string]any) error {
	var errs error
	source, target := t.Source(), t.Destination()
	for _, n := range out.ExitSet {
		if s := stateOf(n); s != nil {
			errs = errors.CombineErrors(errs, s.Exit(source, target, data))
		}
	}
	if a := t.Action(); a != nil {
		errs = errors.CombineErrors(errs, a(source, target, data))
	}
	for _, n := range out.EnterSet {
		if s := stateOf(n); s != nil {
			errs = errors.CombineErrors(errs, s.Enter(source, target, data))
		}
	}
	return errs
}

// exitPath lists from up to, but excluding, domain. A nil domain exits
// everything up to and including the root.
func exitPath(from, domain Node) []Node {
	var path []Node
	for n := from; n != nil && !sameNode(n, domain); n = n.ParentNode() {
		path = append(path, n)
	}
	return path
}

// enterPath lists the nodes below domain down to destination, followed by the
// default substate chain of destination.
func enterPath(domain, destination Node) []Node {
	path := exitPath(destination, domain)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return append(path, defaultEntryChain(destination)...)
}

func nodeNames(nodes []Node) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name())
	}
	return names
}
