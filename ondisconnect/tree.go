// Package ondisconnect implements the SparseSnapshotTree spec.md §4.7
// describes: a sparse overlay of "replay this value if the connection
// drops" instructions, keyed by path, with re-expansion so a coarse
// remembered value and a finer one under it coexist correctly.
package ondisconnect

import (
	"sync"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/treedata"
)

// node is one sparse-tree node: either a stored replay value (Value !=
// nil, no children by construction) or an internal branch point.
type node struct {
	Value    *treedata.TSD
	Children map[treedata.Name]*node
}

func newNode() *node {
	return &node{Children: make(map[treedata.Name]*node)}
}

// SparseSnapshotTree is the onDisconnect replay store for one Repo.
type SparseSnapshotTree struct {
	mu   sync.Mutex
	root *node
}

// New returns an empty SparseSnapshotTree.
func New() *SparseSnapshotTree {
	return &SparseSnapshotTree{}
}

// Remember inserts value at path, per spec.md §4.7: if an ancestor along
// the way already carries a stored value, it is re-expanded into its
// immediate children first so the coarse and fine values coexist; storing
// directly at path replaces whatever was there (coarse value or subtree)
// wholesale.
func (t *SparseSnapshotTree) Remember(path treedata.Path, value *treedata.TSD) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = rememberAt(t.root, path, value)
}

func rememberAt(n *node, path treedata.Path, value *treedata.TSD) *node {
	head, rest, ok := path.Front()
	if !ok {
		return &node{Value: value, Children: make(map[treedata.Name]*node)}
	}
	if n == nil {
		n = newNode()
	} else if n.Value != nil {
		n = expand(n)
	}
	n.Children[head] = rememberAt(n.Children[head], rest, value)
	return n
}

// expand splits a node's stored coarse Value into one child node per
// immediate child, clearing the coarse Value.
func expand(n *node) *node {
	out := newNode()
	v := n.Value
	if v != nil && !v.IsLeaf() {
		for _, name := range v.SortedChildNames() {
			out.Children[name] = &node{Value: v.Child(name), Children: make(map[treedata.Name]*node)}
		}
	}
	return out
}

// Forget removes the stored value at path, re-expanding ancestor coarse
// values along the way exactly as Remember does. It reports whether the
// whole tree is empty afterwards, so the caller can prune its own
// bookkeeping.
func (t *SparseSnapshotTree) Forget(path treedata.Path) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var emptied bool
	t.root, emptied = forgetAt(t.root, path)
	return emptied
}

func forgetAt(n *node, path treedata.Path) (*node, bool) {
	if n == nil {
		return nil, true
	}
	head, rest, ok := path.Front()
	if !ok {
		return nil, true
	}
	if n.Value != nil {
		n = expand(n)
	}
	child, exists := n.Children[head]
	if !exists {
		return n, n.Value == nil && len(n.Children) == 0
	}
	newChild, childEmpty := forgetAt(child, rest)
	if childEmpty {
		delete(n.Children, head)
	} else {
		n.Children[head] = newChild
	}
	if n.Value == nil && len(n.Children) == 0 {
		return nil, true
	}
	return n, false
}

// RunOnDisconnectEvents walks the sparse tree, resolving each stored
// value's sentinels against serverTimeMs and applying it as a server
// overwrite at its path, aborting any transaction registered at that
// path, then clears the tree (spec.md §4.7).
func (t *SparseSnapshotTree) RunOnDisconnectEvents(
	serverTimeMs int64,
	applyServerOverwrite func(path treedata.Path, value *treedata.TSD),
	abortTransactions func(path treedata.Path),
) {
	t.mu.Lock()
	root := t.root
	t.root = nil
	t.mu.Unlock()

	walk(treedata.Path{}, root, serverTimeMs, applyServerOverwrite, abortTransactions)
}

func walk(
	path treedata.Path,
	n *node,
	serverTimeMs int64,
	applyServerOverwrite func(treedata.Path, *treedata.TSD),
	abortTransactions func(treedata.Path),
) {
	if n == nil {
		return
	}
	if n.Value != nil {
		resolved := conn.ResolveSentinels(n.Value, serverTimeMs)
		applyServerOverwrite(path, resolved)
		abortTransactions(path)
		return
	}
	for name, child := range n.Children {
		walk(path.Child(name), child, serverTimeMs, applyServerOverwrite, abortTransactions)
	}
}
