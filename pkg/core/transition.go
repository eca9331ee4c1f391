package core

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Action runs when a transition is taken. For internal transitions source and
// target are the same state.
type Action func(source, target *State, data map[string]any) error

// Guard decides whether a candidate transition may be taken
type Guard func(source, target *State, data map[string]any) bool

// TransitionKind selects how a transition traverses the hierarchy
type TransitionKind int

const (
	// TransitionExternal exits the source side up to the transition domain and
	// enters the destination side below it.
	TransitionExternal TransitionKind = iota
	// TransitionInternal exits and enters nothing; only the action runs.
	TransitionInternal
	// TransitionLocal keeps the outer endpoint active when one endpoint
	// contains the other.
	TransitionLocal
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionExternal:
		return "external"
	case TransitionInternal:
		return "internal"
	case TransitionLocal:
		return "local"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// ParseTransitionKind maps "external", "internal" and "local" (and the empty
// string, meaning external) to a TransitionKind.
func ParseTransitionKind(s string) (TransitionKind, error) {
	switch s {
	case "", "external":
		return TransitionExternal, nil
	case "internal":
		return TransitionInternal, nil
	case "local":
		return TransitionLocal, nil
	default:
		return TransitionExternal, errors.Newf("unknown transition kind %q", s)
	}
}

// Transition is an immutable record owned by the state that declares it. The
// source and destination are references into the hierarchy, not owned.
type Transition struct {
	source      *State
	destination *State
	kind        TransitionKind
	action      Action
	guard       Guard
}

// NewTransition creates a transition. A nil destination registers an internal
// transition regardless of kind; kind internal with a destination other than
// the source is rejected.
func NewTransition(source, destination *State, kind TransitionKind, action Action, guard Guard) (*Transition, error) {
	if source == nil {
		return nil, &InvalidTransitionError{
			Source:      "<nil>",
			Destination: nameOrNone(destination),
			Reason:      "source state is required",
		}
	}
	switch kind {
	case TransitionExternal, TransitionLocal:
	case TransitionInternal:
		if destination != nil && destination != source {
			return nil, &InvalidTransitionError{
				Source:      source.Name(),
				Destination: destination.Name(),
				Reason:      "internal transitions cannot have a destination",
			}
		}
		destination = nil
	default:
		return nil, &InvalidTransitionError{
			Source:      source.Name(),
			Destination: nameOrNone(destination),
			Reason:      fmt.Sprintf("unknown kind %s", kind),
		}
	}
	if destination == nil {
		kind = TransitionInternal
	}
	return &Transition{
		source:      source,
		destination: destination,
		kind:        kind,
		action:      action,
		guard:       guard,
	}, nil
}

// Name returns a diagnostic label such as "idle -> running"
func (t *Transition) Name() string {
	if t.destination == nil {
		return fmt.Sprintf("%s (internal)", t.source.Name())
	}
	return fmt.Sprintf("%s -> %s", t.source.Name(), t.destination.Name())
}

func (t *Transition) String() string {
	return t.Name()
}

// Source returns the declaring state
func (t *Transition) Source() *State {
	return t.source
}

// Destination returns the target state, or nil for an internal transition
func (t *Transition) Destination() *State {
	return t.destination
}

// RequestedKind returns the kind given at registration
func (t *Transition) RequestedKind() TransitionKind {
	return t.kind
}

// Action returns the transition action, possibly nil
func (t *Transition) Action() Action {
	return t.action
}

// Guard returns the transition guard, possibly nil
func (t *Transition) Guard() Guard {
	return t.guard
}

// IsInternal reports whether the transition has no destination
func (t *Transition) IsInternal() bool {
	return t.destination == nil
}

// Allows evaluates the guard against the given endpoints. An unset guard
// always passes.
func (t *Transition) Allows(source, target *State, data map[string]any) bool {
	if t.guard == nil {
		return true
	}
	return t.guard(source, target, data)
}

// Classify returns the effective kind of the transition given the current
// parent links. A local request only holds when one endpoint contains the
// other; unrelated endpoints fall back to external.
//
//	a { b { c } }   c -> a  local: a stays active, b and c are exited
//	                a -> c  local: a stays active, b and c are entered
//	                b -> b  local: degenerates to an external self-transition
func (t *Transition) Classify() TransitionKind {
	if t.destination == nil {
		return TransitionInternal
	}
	if t.kind != TransitionLocal {
		return TransitionExternal
	}
	src, dst := Node(t.source), Node(t.destination)
	if IsAncestor(dst, src) || IsAncestor(src, dst) {
		return TransitionLocal
	}
	return TransitionExternal
}

func nameOrNone(s *State) string {
	if s == nil {
		return "<none>"
	}
	return s.Name()
}
