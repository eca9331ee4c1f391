package states

import (
	"fmt"

	"github.com/anggasct/hsm/pkg/core"
)

// CompositeState is a state that contains ordered substates and names one of
// them as the default entered when the composite itself is targeted.
type CompositeState struct {
	*core.State
	children     []core.Node
	index        map[string]core.Node
	defaultChild core.Node
}

// NewCompositeState creates an empty composite state
func NewCompositeState(name string) (*CompositeState, error) {
	s, err := core.NewState(name)
	if err != nil {
		return nil, err
	}
	return &CompositeState{
		State: s,
		index: make(map[string]core.Node),
	}, nil
}

// AddSubstate attaches child under s. The first substate added becomes the
// default unless SetDefaultSubstate picks another one.
func (s *CompositeState) AddSubstate(child core.Node) error {
	if child == nil {
		return &core.HierarchyError{Node: s.Name(), Reason: "nil substate"}
	}
	if child.Name() == s.Name() || core.IsAncestor(child, s) {
		return &core.HierarchyError{
			Node:   child.Name(),
			Reason: fmt.Sprintf("cannot nest '%s' inside its own descendant '%s'", child.Name(), s.Name()),
		}
	}
	if parent := child.ParentNode(); parent != nil {
		return &core.HierarchyError{
			Node:   child.Name(),
			Reason: fmt.Sprintf("already attached to '%s'", parent.Name()),
		}
	}
	if _, exists := s.index[child.Name()]; exists {
		return &core.HierarchyError{
			Node:   child.Name(),
			Reason: fmt.Sprintf("duplicate substate of '%s'", s.Name()),
		}
	}

	child.SetParentNode(s)
	s.children = append(s.children, child)
	s.index[child.Name()] = child
	if s.defaultChild == nil {
		s.defaultChild = child
	}
	return nil
}

// AddSubstates attaches each child in order, stopping at the first error
func (s *CompositeState) AddSubstates(children ...core.Node) error {
	for _, child := range children {
		if err := s.AddSubstate(child); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaultSubstate selects the substate entered by default. It must already
// be a direct child of s.
func (s *CompositeState) SetDefaultSubstate(child core.Node) error {
	if child == nil {
		s.defaultChild = nil
		return nil
	}
	existing, ok := s.index[child.Name()]
	if !ok {
		return &core.HierarchyError{
			Node:   s.Name(),
			Reason: fmt.Sprintf("'%s' is not a substate", child.Name()),
		}
	}
	s.defaultChild = existing
	return nil
}

// DefaultSubstate returns the substate entered by default, or nil
func (s *CompositeState) DefaultSubstate() core.Node {
	return s.defaultChild
}

// Substates returns the direct children in insertion order
func (s *CompositeState) Substates() []core.Node {
	out := make([]core.Node, len(s.children))
	copy(out, s.children)
	return out
}

// Substate returns the direct child with the given name
func (s *CompositeState) Substate(name string) (core.Node, bool) {
	n, ok := s.index[name]
	return n, ok
}
