package core

// PathToRoot returns n followed by each of its ancestors, ending at the root.
func PathToRoot(n Node) []Node {
	var path []Node
	for cur := n; cur != nil; cur = cur.ParentNode() {
		path = append(path, cur)
	}
	return path
}

// PathFromRoot returns the chain of nodes from the root down to n.
func PathFromRoot(n Node) []Node {
	path := PathToRoot(n)
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// IsAncestor reports whether ancestor is a proper ancestor of n.
func IsAncestor(ancestor, n Node) bool {
	if ancestor == nil || n == nil {
		return false
	}
	for cur := n.ParentNode(); cur != nil; cur = cur.ParentNode() {
		if sameNode(cur, ancestor) {
			return true
		}
	}
	return false
}

// LeastCommonAncestor returns the deepest node that is an ancestor-or-self of
// both a and b, or nil when they live in different trees.
//
//	LeastCommonAncestor(s1, s2)  == s   (siblings under s)
//	LeastCommonAncestor(s1, s11) == s1  (s11 nested in s1)
//	LeastCommonAncestor(s1, s1)  == s1
func LeastCommonAncestor(a, b Node) Node {
	if a == nil || b == nil {
		return nil
	}
	pa := PathFromRoot(a)
	pb := PathFromRoot(b)
	var lca Node
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if !sameNode(pa[i], pb[i]) {
			break
		}
		lca = pa[i]
	}
	return lca
}

// transitionDomain returns the lowest node that strictly contains both a and
// b. A nil result means the domain lies above the root.
func transitionDomain(a, b Node) Node {
	lca := LeastCommonAncestor(a, b)
	if lca == nil {
		return nil
	}
	if sameNode(lca, a) || sameNode(lca, b) {
		return lca.ParentNode()
	}
	return lca
}

// defaultEntryChain follows DefaultSubstate links below n, excluding n.
func defaultEntryChain(n Node) []Node {
	var chain []Node
	seen := map[string]bool{n.Name(): true}
	for cur := n.DefaultSubstate(); cur != nil; cur = cur.DefaultSubstate() {
		if seen[cur.Name()] {
			break
		}
		seen[cur.Name()] = true
		chain = append(chain, cur)
	}
	return chain
}

// sameNode compares nodes by identity name, which is unique within a machine.
func sameNode(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name() == b.Name()
}
