package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testComposite is a minimal container used to assemble hierarchies inside
// this package.
type testComposite struct {
	*State
	children []Node
	initial  Node
}

func (c *testComposite) DefaultSubstate() Node { return c.initial }
func (c *testComposite) Substates() []Node     { return c.children }

func newTestComposite(t testing.TB, name string) *testComposite {
	t.Helper()
	s, err := NewState(name)
	require.NoError(t, err)
	return &testComposite{State: s}
}

func newTestState(t testing.TB, name string) *State {
	t.Helper()
	s, err := NewState(name)
	require.NoError(t, err)
	return s
}

func attach(parent *testComposite, children ...Node) {
	for _, child := range children {
		child.SetParentNode(parent)
		parent.children = append(parent.children, child)
		if parent.initial == nil {
			parent.initial = child
		}
	}
}

func newTestEvent(t testing.TB, name string) *Event {
	t.Helper()
	e, err := NewEvent(name, nil)
	require.NoError(t, err)
	return e
}

// buildTree assembles a hierarchy from an indented outline, two spaces per
// level. A node followed by deeper lines becomes a composite whose first
// child is its default substate.
//
//	root
//	  a
//	    b
//	  c
func buildTree(t testing.TB, outline string) (*Hierarchy, map[string]*State) {
	t.Helper()
	type line struct {
		depth int
		name  string
	}
	var lines []line
	for _, raw := range strings.Split(outline, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		indent := len(raw) - len(strings.TrimLeft(raw, " "))
		lines = append(lines, line{depth: indent / 2, name: strings.TrimSpace(raw)})
	}
	require.NotEmpty(t, lines)

	states := make(map[string]*State)
	var stack []*testComposite
	var root Node
	for i, l := range lines {
		var n Node
		if i+1 < len(lines) && lines[i+1].depth > l.depth {
			c := newTestComposite(t, l.name)
			states[l.name] = c.State
			n = c
		} else {
			s := newTestState(t, l.name)
			states[l.name] = s
			n = s
		}
		stack = stack[:min(len(stack), l.depth)]
		if l.depth == 0 {
			require.Nil(t, root, "outline has more than one root")
			root = n
		} else {
			require.Len(t, stack, l.depth, "bad indentation at %q", l.name)
			attach(stack[l.depth-1], n)
		}
		if c, ok := n.(*testComposite); ok {
			stack = append(stack, c)
		}
	}
	tree, err := NewHierarchy(root)
	require.NoError(t, err)
	return tree, states
}

// recorder collects callback invocations as readable lines
type recorder struct {
	calls []string
}

func stateName(s *State) string {
	if s == nil {
		return "-"
	}
	return s.Name()
}

func (r *recorder) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) instrument(states map[string]*State) {
	for _, s := range states {
		s := s
		s.OnEnter(func(source, target *State, _ map[string]any) error {
			r.record("enter %s (%s -> %s)", s.Name(), stateName(source), stateName(target))
			return nil
		})
		s.OnExit(func(source, target *State, _ map[string]any) error {
			r.record("exit %s (%s -> %s)", s.Name(), stateName(source), stateName(target))
			return nil
		})
	}
}

func (r *recorder) action(name string, err error) Action {
	return func(source, target *State, _ map[string]any) error {
		r.record("action %s (%s -> %s)", name, stateName(source), stateName(target))
		return err
	}
}

func (r *recorder) guard(result bool) Guard {
	return func(source, target *State, _ map[string]any) bool {
		r.record("guard (%s -> %s) %t", stateName(source), stateName(target), result)
		return result
	}
}

func (r *recorder) take() []string {
	calls := r.calls
	r.calls = nil
	return calls
}
