package core

// Node is implemented by every participant in the state hierarchy: plain
// states, composite states and any container the host plugs in. The engine's
// traversal code only relies on this interface.
type Node interface {
	// Name is the node identity, unique within a machine.
	Name() string
	// ParentNode returns the enclosing node, or nil for the root.
	ParentNode() Node
	// SetParentNode links the node under parent. It does not transfer
	// ownership; the Hierarchy owns every node.
	SetParentNode(parent Node)
	// DefaultSubstate returns the node entered when this node is the target
	// of a transition, or nil when entry stops here.
	DefaultSubstate() Node
}

// StateNode is a Node backed by a State, i.e. one that owns an event-handler
// table and enter/exit callbacks.
type StateNode interface {
	Node
	AsState() *State
}

// Container is a Node that exposes its direct children. Hierarchy assembly
// walks containers to discover every node.
type Container interface {
	Node
	Substates() []Node
}

// stateOf returns the State backing n, or nil when n carries no handler table.
func stateOf(n Node) *State {
	if sn, ok := n.(StateNode); ok {
		return sn.AsState()
	}
	return nil
}
