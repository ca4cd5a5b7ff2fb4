package txn

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/treesync/synccore/treedata"
)

// HashTSD renders node into a stable digest used as the compare-and-set
// precondition for a transaction's conditional put (spec.md §4.6 step 3).
// It does not need to be cryptographically strong, only stable across
// process restarts and sensitive to any change the server could have
// made — sha256 over a canonical traversal is a standard-library choice
// made deliberately: the pack's only content-hash library is the
// teacher's go-ethereum `crypto` package, which is keyed to
// Keccak256/secp256k1 key derivation and carries a cgo dependency on
// libsecp256k1 that has no purpose here; no other example repo hashes
// arbitrary tree values.
func HashTSD(node *treedata.TSD) string {
	h := sha256.New()
	writeCanonical(h, node)
	return hex.EncodeToString(h.Sum(nil))
}

func writeCanonical(h hash.Hash, node *treedata.TSD) {
	if node == nil {
		fmt.Fprint(h, "null")
		return
	}
	if node.IsLeaf() {
		fmt.Fprintf(h, "L(%v)", node.Value())
		writePriority(h, node.Priority())
		return
	}
	fmt.Fprint(h, "{")
	for _, n := range node.SortedChildNames() {
		fmt.Fprintf(h, "%s:", n)
		writeCanonical(h, node.Child(n))
	}
	fmt.Fprint(h, "}")
	writePriority(h, node.Priority())
}

func writePriority(h hash.Hash, p *treedata.TSD) {
	if p == nil {
		return
	}
	fmt.Fprint(h, "#")
	writeCanonical(h, p)
}
