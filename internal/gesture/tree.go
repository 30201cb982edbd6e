// Package gesture recognises timed button sequences.
//
// A Tree is a prefix tree compiled once from the configured sequences. A
// Matcher walks it as symbols arrive: a leaf commits at once, an interior
// node waits for a deadline so that a longer sequence sharing the prefix
// can still win.
package gesture

import (
	"sort"

	"gestured/internal/input"
)

// Spec binds one ordered sequence of symbol names to an action.
type Spec struct {
	Sequence []string
	Action   string
}

// Node is a position in the tree.
type Node struct {
	// Symbol is the edge from the parent. Unused on the root.
	Symbol input.Symbol
	// Action runs when a gesture ends here. Empty means pass-through.
	Action string
	// Depth is 0 for the root and 1 for its direct children.
	Depth int

	children map[input.Symbol]*Node
}

func newNode(sym input.Symbol, depth int) *Node {
	return &Node{Symbol: sym, Depth: depth, children: make(map[input.Symbol]*Node)}
}

// Child returns the child reached by sym, or nil.
func (n *Node) Child(sym input.Symbol) *Node {
	return n.children[sym]
}

// IsLeaf reports whether no configured sequence extends past n.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// IsRoot reports whether n is the root.
func (n *Node) IsRoot() bool {
	return n.Depth == 0
}

// sortedChildren returns children in symbol order.
func (n *Node) sortedChildren() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Tree is an immutable prefix tree of gestures.
type Tree struct {
	root  *Node
	nodes int
}

// Build compiles specs into a tree. Shared prefixes collapse into one node
// chain and a repeated sequence overwrites the earlier action. A name that
// is not a known symbol becomes an input.None edge; callers that want to
// reject such names validate before building.
func Build(specs []Spec) *Tree {
	t := &Tree{root: newNode(input.None, 0), nodes: 1}

	for _, spec := range specs {
		cur := t.root
		for _, name := range spec.Sequence {
			sym, _ := input.ParseSymbol(name)
			next := cur.children[sym]
			if next == nil {
				next = newNode(sym, cur.Depth+1)
				cur.children[sym] = next
				t.nodes++
			}
			cur = next
		}
		cur.Action = spec.Action
	}

	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Size returns the number of nodes including the root.
func (t *Tree) Size() int {
	return t.nodes
}

// Binding is a terminal node together with the path leading to it.
type Binding struct {
	Path   []input.Symbol
	Action string
	// Immediate is true when the node is a leaf and commits without delay.
	Immediate bool
}

// Name renders the path as "Next+Next".
func (b Binding) Name() string {
	return pathName(b.Path)
}

// Bindings lists every node that carries an action or is a leaf, in a
// deterministic depth-first order.
func (t *Tree) Bindings() []Binding {
	var out []Binding
	var walk func(n *Node, path []input.Symbol)
	walk = func(n *Node, path []input.Symbol) {
		if !n.IsRoot() && (n.Action != "" || n.IsLeaf()) {
			p := make([]input.Symbol, len(path))
			copy(p, path)
			out = append(out, Binding{Path: p, Action: n.Action, Immediate: n.IsLeaf()})
		}
		for _, c := range n.sortedChildren() {
			walk(c, append(path, c.Symbol))
		}
	}
	walk(t.root, nil)
	return out
}
