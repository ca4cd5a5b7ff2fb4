package conn

import "github.com/treesync/synccore/treedata"

// ServerValueTimestamp is the sentinel leaf value spec.md §6 calls
// "ServerValue.timestamp": a placeholder a caller writes in place of a
// real value, resolved to the Connection's current server time (in
// milliseconds since epoch) at write-creation time.
type ServerValueTimestamp struct{}

// IsServerValueTimestamp reports whether v is the ServerValue.timestamp
// sentinel.
func IsServerValueTimestamp(v any) bool {
	_, ok := v.(ServerValueTimestamp)
	return ok
}

// ResolveSentinels returns a copy of t with every ServerValue.timestamp
// leaf replaced by serverTimeMs. The original t is left untouched and
// should be retained by the caller (spec.md §6: "unresolved raw form is
// retained for onDisconnect replay").
func ResolveSentinels(t *treedata.TSD, serverTimeMs int64) *treedata.TSD {
	if t == nil {
		return nil
	}
	if t.IsLeaf() {
		if IsServerValueTimestamp(t.Value()) {
			return treedata.Leaf(serverTimeMs, resolvePriority(t.Priority(), serverTimeMs))
		}
		return treedata.Leaf(t.Value(), resolvePriority(t.Priority(), serverTimeMs))
	}
	children := make(map[treedata.Name]*treedata.TSD, t.NumChildren())
	for _, name := range t.SortedChildNames() {
		children[name] = ResolveSentinels(t.Child(name), serverTimeMs)
	}
	return treedata.Children(children, resolvePriority(t.Priority(), serverTimeMs))
}

func resolvePriority(p *treedata.TSD, serverTimeMs int64) *treedata.TSD {
	if p == nil {
		return nil
	}
	return ResolveSentinels(p, serverTimeMs)
}
