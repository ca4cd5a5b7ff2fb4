package query

import (
	"sort"

	"github.com/treesync/synccore/treedata"
)

// Window filters node's children by f.IsValid and then applies the
// limit/reverse windowing rule from spec.md §4.1: if reverse, keep the last
// `limit` entries in sort order, else the first. Children are returned in
// ascending sort order under f's own order (orderBy, not name) regardless of
// Reverse — Reverse only affects which end of the sorted sequence survives
// the limit.
func (f Filter) Window(node *treedata.TSD) []treedata.Name {
	names := node.SortedChildNames()
	var valid []treedata.Name
	for _, n := range names {
		if f.IsValid(n, node.Child(n)) {
			valid = append(valid, n)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return f.CompareChildren(valid[i], node.Child(valid[i]), valid[j], node.Child(valid[j])) < 0
	})
	if f.Limit <= 0 || f.Limit >= len(valid) {
		return valid
	}
	if f.Reverse {
		return valid[len(valid)-f.Limit:]
	}
	return valid[:f.Limit]
}
