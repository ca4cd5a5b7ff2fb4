package txn

import (
	"sort"

	"github.com/treesync/synccore/treedata"
)

// TransactionsNode is one path's bundle of in-flight Transactions plus its
// child TransactionsNodes, per spec.md's GLOSSARY and §4.6's composite
// output / rerun algorithms. Parent context is passed as a Path parameter
// rather than stored as a back-pointer, per spec.md §9's cyclic-reference
// note.
type TransactionsNode struct {
	Path         treedata.Path
	Transactions []*Transaction
	Children     map[treedata.Name]*TransactionsNode
}

func newTransactionsNode(path treedata.Path) *TransactionsNode {
	return &TransactionsNode{Path: path, Children: make(map[treedata.Name]*TransactionsNode)}
}

// lastID returns the Order of this node's most recently numbered
// transaction, or -1 if it has none directly anchored here.
func (n *TransactionsNode) lastID() int64 {
	if len(n.Transactions) == 0 {
		return -1
	}
	return n.Transactions[len(n.Transactions)-1].Order
}

// CompositeOutput implements spec.md §4.6's composite-output algorithm:
// start from input, apply this node's last transaction's raw output, then
// overlay each child subtree whose lastID exceeds this node's own.
func (n *TransactionsNode) CompositeOutput(input *treedata.TSD) *treedata.TSD {
	out := input
	if len(n.Transactions) > 0 {
		out = n.Transactions[len(n.Transactions)-1].Output
	}
	mine := n.lastID()
	for name, child := range n.Children {
		if child.lastID() > mine {
			out = out.SetChild(name, child.CompositeOutput(out.Child(name)))
		}
	}
	return out
}

// allTransactions returns every Transaction in this node's subtree.
func (n *TransactionsNode) allTransactions() []*Transaction {
	out := append([]*Transaction{}, n.Transactions...)
	for _, c := range n.Children {
		out = append(out, c.allTransactions()...)
	}
	return out
}

// isReadyToSend reports whether every transaction in this node's subtree
// has progressed at least to StatusRun and none is already in flight
// (spec.md §4.6 step 3).
func (n *TransactionsNode) isReadyToSend() bool {
	for _, t := range n.Transactions {
		if t.Status == StatusNull || t.Status == StatusSent || t.Status == StatusSentNeedsAbort {
			return false
		}
	}
	for _, c := range n.Children {
		if !c.isReadyToSend() {
			return false
		}
	}
	return true
}

// hasRunnable reports whether this node's subtree has at least one
// transaction with something new to send.
func (n *TransactionsNode) hasRunnable() bool {
	for _, t := range n.Transactions {
		if t.Status == StatusRun {
			return true
		}
	}
	for _, c := range n.Children {
		if c.hasRunnable() {
			return true
		}
	}
	return false
}

func (n *TransactionsNode) isEmpty() bool {
	if len(n.Transactions) != 0 {
		return false
	}
	for _, c := range n.Children {
		if !c.isEmpty() {
			return false
		}
	}
	return true
}

// removeTransaction deletes t from this node's slice, if present.
func (n *TransactionsNode) removeTransaction(t *Transaction) {
	for i, x := range n.Transactions {
		if x == t {
			n.Transactions = append(n.Transactions[:i], n.Transactions[i+1:]...)
			return
		}
	}
}

func sortTransactions(ts []*Transaction) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Order < ts[j].Order })
}

// TransactionsTree is the root of the whole module's TransactionsNode
// tree, path-indexed the same way synctree.SyncPoint is.
type TransactionsTree struct {
	root *TransactionsNode
}

func newTransactionsTree() *TransactionsTree {
	return &TransactionsTree{root: newTransactionsNode(treedata.Path{})}
}

// nodeAt returns the TransactionsNode at path, creating it (and every
// ancestor along the way) if necessary.
func (tt *TransactionsTree) nodeAt(path treedata.Path) *TransactionsNode {
	n := tt.root
	cur := treedata.Path{}
	for _, seg := range path.Segments() {
		cur = cur.Child(seg)
		child, ok := n.Children[seg]
		if !ok {
			child = newTransactionsNode(cur)
			n.Children[seg] = child
		}
		n = child
	}
	return n
}

// nodesOnPath returns the chain of existing TransactionsNodes from the
// root down to (and including, if present) path -- used by Abort, which
// "walks all TransactionsNodes on the path" (spec.md §4.6).
func (tt *TransactionsTree) nodesOnPath(path treedata.Path) []*TransactionsNode {
	out := []*TransactionsNode{tt.root}
	n := tt.root
	for _, seg := range path.Segments() {
		child, ok := n.Children[seg]
		if !ok {
			break
		}
		out = append(out, child)
		n = child
	}
	return out
}

// prune removes empty TransactionsNodes along path, from the leaf upward,
// so the tree doesn't accumulate permanent garbage after every
// transaction completes.
func (tt *TransactionsTree) prune(path treedata.Path) {
	chain := tt.nodesOnPath(path)
	for i := len(chain) - 1; i > 0; i-- {
		node := chain[i]
		parent := chain[i-1]
		if !node.isEmpty() {
			break
		}
		name, _ := node.Path.Last()
		delete(parent.Children, name)
	}
}
