package core

import (
	"fmt"
	"strings"
)

// Hierarchy owns every node of one machine in a name-indexed arena. It is
// assembled once from the root; assembly rejects duplicate names, parent
// cycles, mismatched parent links and default substates that are not direct
// children, so a Hierarchy that exists is always a well-formed tree.
type Hierarchy struct {
	root  Node
	nodes map[string]Node
	order []Node
}

// NewHierarchy walks the tree below root (through Container.Substates) and
// indexes every node by name.
func NewHierarchy(root Node) (*Hierarchy, error) {
	if root == nil {
		return nil, &HierarchyError{Node: "<nil>", Reason: "root node is nil"}
	}
	if root.ParentNode() != nil {
		return nil, &HierarchyError{
			Node:   root.Name(),
			Reason: fmt.Sprintf("root has parent '%s'", root.ParentNode().Name()),
		}
	}

	h := &Hierarchy{
		root:  root,
		nodes: make(map[string]Node),
	}
	if err := h.add(root); err != nil {
		return nil, err
	}
	for _, n := range h.order {
		if err := h.checkDefault(n); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hierarchy) add(n Node) error {
	if strings.TrimSpace(n.Name()) == "" {
		return &InvalidNameError{Subject: "state"}
	}
	if _, exists := h.nodes[n.Name()]; exists {
		return &HierarchyError{Node: n.Name(), Reason: "duplicate node name or parent cycle"}
	}
	h.nodes[n.Name()] = n
	h.order = append(h.order, n)

	c, ok := n.(Container)
	if !ok {
		return nil
	}
	for _, child := range c.Substates() {
		if child == nil {
			return &HierarchyError{Node: n.Name(), Reason: "nil substate"}
		}
		if !sameNode(child.ParentNode(), n) {
			return &HierarchyError{
				Node:   child.Name(),
				Reason: fmt.Sprintf("listed under '%s' but parent link points elsewhere", n.Name()),
			}
		}
		if err := h.add(child); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hierarchy) checkDefault(n Node) error {
	d := n.DefaultSubstate()
	if d == nil {
		return nil
	}
	if !sameNode(d.ParentNode(), n) {
		return &HierarchyError{
			Node:   n.Name(),
			Reason: fmt.Sprintf("default substate '%s' is not a direct child", d.Name()),
		}
	}
	if _, ok := h.nodes[d.Name()]; !ok {
		return &HierarchyError{
			Node:   n.Name(),
			Reason: fmt.Sprintf("default substate '%s' is not part of the hierarchy", d.Name()),
		}
	}
	return nil
}

// Root returns the hierarchy root
func (h *Hierarchy) Root() Node {
	return h.root
}

// Lookup returns the node registered under name
func (h *Hierarchy) Lookup(name string) (Node, bool) {
	n, ok := h.nodes[name]
	return n, ok
}

// State returns the State registered under name
func (h *Hierarchy) State(name string) (*State, bool) {
	n, ok := h.nodes[name]
	if !ok {
		return nil, false
	}
	s := stateOf(n)
	return s, s != nil
}

// Resolve maps any view of a node (for example the State embedded in a
// composite) to the node registered in the hierarchy. A State from outside
// the hierarchy does not resolve, even when its name is taken.
func (h *Hierarchy) Resolve(n Node) (Node, bool) {
	if n == nil {
		return nil, false
	}
	found, ok := h.Lookup(n.Name())
	if !ok {
		return nil, false
	}
	if s, fs := stateOf(n), stateOf(found); s != nil && fs != nil && s != fs {
		return nil, false
	}
	return found, true
}

// Nodes returns every node in pre-order, root first
func (h *Hierarchy) Nodes() []Node {
	out := make([]Node, len(h.order))
	copy(out, h.order)
	return out
}

// Len returns the number of nodes in the hierarchy
func (h *Hierarchy) Len() int {
	return len(h.order)
}

// Seal closes registration on every state of the hierarchy.
func (h *Hierarchy) Seal() {
	for _, n := range h.order {
		if s := stateOf(n); s != nil {
			s.Seal()
		}
	}
}

// InitialConfiguration returns the root followed by its default substate
// chain, i.e. the states entered when the machine starts.
func (h *Hierarchy) InitialConfiguration() []Node {
	return append([]Node{h.root}, defaultEntryChain(h.root)...)
}
