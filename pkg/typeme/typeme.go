// Package typeme provides the phonetic-category hierarchy used to score how
// similar two phoneme contexts are.
//
// A Tree is an arena of nodes addressed by [ID]. Each node knows its parent
// and children by index, so reparenting a subtree ([Tree.Adopt]) only
// rewrites indexes and depths. Leaves are phoneme labels (e.g. "AE"), inner
// nodes are categories (e.g. "front", "vowels").
//
// Similarity between two nodes is the depth of their deepest common ancestor,
// or -1 when one side is missing:
//
//	t := typeme.Phonetic()
//	iy, _ := t.Lookup("IY")
//	ae, _ := t.Lookup("AE")
//	t.Similarity(iy, ae) // 2: both are front vowels
package typeme

import (
	"errors"
	"fmt"
)

// ID addresses a node inside a Tree.
type ID int

// None is the ID used for "no node": an absent label or a label that is not
// part of the tree.
const None ID = -1

// Sentinel errors.
var (
	// ErrInvalidNode is returned when an ID does not address a node.
	ErrInvalidNode = errors.New("typeme: invalid node")

	// ErrCycle is returned when Adopt would make a node its own ancestor.
	ErrCycle = errors.New("typeme: adopt would create a cycle")
)

type node struct {
	name     string
	depth    int
	parent   ID
	children []ID
}

// Tree is a rooted phonetic-category hierarchy. The zero value is not usable;
// create one with New.
//
// A Tree is not safe for concurrent mutation. Once built it is read-only and
// may be shared freely.
type Tree struct {
	nodes []node

	// index holds the first pre-order match for each name. It is rebuilt
	// whenever the shape of the tree changes.
	index map[string]ID
}

// New creates a tree holding a single root node with the given name.
func New(root string) *Tree {
	t := &Tree{
		nodes: []node{{name: root, depth: 0, parent: None}},
	}
	t.reindex()
	return t
}

// Root returns the root node.
func (t *Tree) Root() ID {
	return 0
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) valid(id ID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Name returns the name of a node, or "" for None.
func (t *Tree) Name(id ID) string {
	if !t.valid(id) {
		return ""
	}
	return t.nodes[id].name
}

// Depth returns the depth of a node (root = 0), or -1 for None.
func (t *Tree) Depth(id ID) int {
	if !t.valid(id) {
		return -1
	}
	return t.nodes[id].depth
}

// Parent returns the parent of a node, or None at the root.
func (t *Tree) Parent(id ID) ID {
	if !t.valid(id) {
		return None
	}
	return t.nodes[id].parent
}

// Children returns a copy of the child list of a node.
func (t *Tree) Children(id ID) []ID {
	if !t.valid(id) {
		return nil
	}
	out := make([]ID, len(t.nodes[id].children))
	copy(out, t.nodes[id].children)
	return out
}

// Declare creates one child under parent for each name and returns their IDs
// in order.
func (t *Tree) Declare(parent ID, names ...string) ([]ID, error) {
	if !t.valid(parent) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNode, parent)
	}
	ids := make([]ID, 0, len(names))
	for _, name := range names {
		id := ID(len(t.nodes))
		t.nodes = append(t.nodes, node{
			name:   name,
			depth:  t.nodes[parent].depth + 1,
			parent: parent,
		})
		t.nodes[parent].children = append(t.nodes[parent].children, id)
		ids = append(ids, id)
	}
	t.reindex()
	return ids, nil
}

// Adopt reparents each child subtree under parent and recomputes the depth of
// every node in the moved subtrees. Children already under parent are left
// where they are.
func (t *Tree) Adopt(parent ID, children ...ID) error {
	if !t.valid(parent) {
		return fmt.Errorf("%w: %d", ErrInvalidNode, parent)
	}
	for _, c := range children {
		if !t.valid(c) {
			return fmt.Errorf("%w: %d", ErrInvalidNode, c)
		}
		if t.isAncestor(c, parent) {
			return fmt.Errorf("%w: %q under %q", ErrCycle, t.nodes[c].name, t.nodes[parent].name)
		}
	}
	for _, c := range children {
		old := t.nodes[c].parent
		if old == parent {
			continue
		}
		if old != None {
			t.nodes[old].children = remove(t.nodes[old].children, c)
		}
		t.nodes[c].parent = parent
		t.nodes[parent].children = append(t.nodes[parent].children, c)
		t.setDepth(c, t.nodes[parent].depth+1)
	}
	t.reindex()
	return nil
}

// isAncestor reports whether a is b or an ancestor of b.
func (t *Tree) isAncestor(a, b ID) bool {
	for n := b; n != None; n = t.nodes[n].parent {
		if n == a {
			return true
		}
	}
	return false
}

func (t *Tree) setDepth(id ID, depth int) {
	t.nodes[id].depth = depth
	for _, c := range t.nodes[id].children {
		t.setDepth(c, depth+1)
	}
}

func remove(ids []ID, id ID) []ID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Lookup finds the first node named name in a pre-order walk from the root.
// An empty name never matches.
func (t *Tree) Lookup(name string) (ID, bool) {
	if name == "" {
		return None, false
	}
	id, ok := t.index[name]
	if !ok {
		return None, false
	}
	return id, true
}

// LookupFrom searches start and its descendants for name, pre-order.
func (t *Tree) LookupFrom(start ID, name string) (ID, bool) {
	if !t.valid(start) || name == "" {
		return None, false
	}
	if t.nodes[start].name == name {
		return start, true
	}
	for _, c := range t.nodes[start].children {
		if id, ok := t.LookupFrom(c, name); ok {
			return id, true
		}
	}
	return None, false
}

// Resolve is Lookup that returns None for labels outside the tree.
func (t *Tree) Resolve(name string) ID {
	id, _ := t.Lookup(name)
	return id
}

func (t *Tree) reindex() {
	t.index = make(map[string]ID, len(t.nodes))
	t.walk(t.Root(), func(id ID) {
		if _, ok := t.index[t.nodes[id].name]; !ok {
			t.index[t.nodes[id].name] = id
		}
	})
}

func (t *Tree) walk(id ID, f func(ID)) {
	f(id)
	for _, c := range t.nodes[id].children {
		t.walk(c, f)
	}
}

// Walk calls f for every node in pre-order.
func (t *Tree) Walk(f func(id ID, name string, depth int)) {
	t.walk(t.Root(), func(id ID) {
		f(id, t.nodes[id].name, t.nodes[id].depth)
	})
}

// Similarity returns the depth of the deepest node shared by the root paths
// of a and b. It returns -1 if either node is None or the paths share no
// name at any depth.
//
// The deeper node is first lifted to the depth of the shallower one; both are
// then walked upward in lockstep and compared by name, so the first match is
// the deepest common ancestor.
func (t *Tree) Similarity(a, b ID) int {
	if !t.valid(a) || !t.valid(b) {
		return -1
	}
	depth := min(t.nodes[a].depth, t.nodes[b].depth)
	for t.nodes[a].depth > depth {
		a = t.nodes[a].parent
	}
	for t.nodes[b].depth > depth {
		b = t.nodes[b].parent
	}
	for ; depth >= 0; depth-- {
		if t.nodes[a].name == t.nodes[b].name {
			return depth
		}
		a = t.nodes[a].parent
		b = t.nodes[b].parent
	}
	return -1
}

// SimilarityOf resolves both labels and returns their Similarity.
func (t *Tree) SimilarityOf(a, b string) int {
	return t.Similarity(t.Resolve(a), t.Resolve(b))
}
