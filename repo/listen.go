package repo

import (
	"context"

	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
)

// Listen registers cb for events of typ at path under filter, arming a
// server-side listen the first time any caller subscribes to this
// (path, filter) pair (spec.md §4.2, §6). Concurrent first-subscribers
// for the same pair share one in-flight Connection.Listen call.
func (r *Repo) Listen(path treedata.Path, filter query.Filter, typ synctree.EventType, cb synctree.Callback) (*synctree.Subscription, error) {
	sub, wasFirst := r.tree.AddListener(path, filter, typ, cb)
	if !wasFirst {
		return sub, nil
	}

	tag := r.allocateTag(path, filter)
	sfKey := tagMapKey(path, filter)
	_, err, _ := r.sf.Do(sfKey, func() (any, error) {
		_, lerr := r.connection.Listen(context.Background(), path, filterOrNil(filter), tag)
		return nil, lerr
	})
	if err != nil {
		sub.Unsubscribe()
		r.tree.PruneViewIfEmpty(path, filter)
		r.releaseTag(path, filter)
		return nil, err
	}

	r.metrics.activeListens.Inc()
	return sub, nil
}

// Unlisten removes sub's registration, tearing down the server-side
// listen and releasing its tag once no listener remains on (path,
// filter), per spec.md §4.2, §9.
func (r *Repo) Unlisten(sub *synctree.Subscription, path treedata.Path, filter query.Filter) error {
	nowEmpty := sub.Unsubscribe()
	if !nowEmpty {
		return nil
	}

	r.tree.PruneViewIfEmpty(path, filter)
	tag := r.tagFor(path, filter)
	r.releaseTag(path, filter)
	r.metrics.activeListens.Dec()

	return r.connection.Unlisten(context.Background(), path, filterOrNil(filter), tag)
}

// filterOrNil reports the default (unfiltered) query as a nil *Filter to
// the Connection, matching spec.md §6's "query?" optional argument.
func filterOrNil(filter query.Filter) *query.Filter {
	if filter.IsDefault() {
		return nil
	}
	f := filter
	return &f
}
