package repo

import (
	"context"

	"github.com/treesync/synccore/treedata"
)

// OnDisconnectSet arms a server-side onDisconnect overwrite at path, and
// remembers it locally so a connection drop this process never sees
// acknowledged can still be replayed against the local tree if needed,
// per spec.md §4.7.
func (r *Repo) OnDisconnectSet(path treedata.Path, value *treedata.TSD) error {
	r.odTree.Remember(path, value)
	return r.connection.OnDisconnectPut(context.Background(), path, value)
}

// OnDisconnectMerge arms a server-side onDisconnect merge at path.
func (r *Repo) OnDisconnectMerge(path treedata.Path, children map[treedata.Name]*treedata.TSD) error {
	for name, v := range children {
		r.odTree.Remember(path.Child(name), v)
	}
	return r.connection.OnDisconnectMerge(context.Background(), path, children)
}

// OnDisconnectCancel removes any armed onDisconnect entry at or beneath
// path.
func (r *Repo) OnDisconnectCancel(path treedata.Path) error {
	r.odTree.Forget(path)
	return r.connection.OnDisconnectCancel(context.Background(), path)
}
