// Package synctree implements the client-side synchronization core:
// SyncPoint/View merging of server state with optimistic local writes,
// under a single-threaded scheduler (spec.md §4.2-§4.4).
package synctree

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/treedata"
)

// rawVersionCacheSize bounds the number of per-path raw (pre-filter)
// localVersion renderings cached between mutations. A raw rendering is
// shared by every View at that path, so the cache pays off whenever more
// than one Filter is registered at the same path.
const rawVersionCacheSize = 4096

// SyncTree is the root coordinator: one serverTree, one WriteLog, and the
// set of SyncPoints currently subscribed to. It is not safe for concurrent
// use from multiple goroutines directly — callers are expected to route
// all calls through a single sched.Scheduler (spec.md §5).
type SyncTree struct {
	mu         sync.Mutex
	sched      *sched.Scheduler
	serverTree *treedata.TSD
	writeLog   *WriteLog
	points     map[string]*SyncPoint
	rawCache   *lru.Cache
}

// New creates an empty SyncTree driven by s.
func New(s *sched.Scheduler) *SyncTree {
	cache, err := lru.New(rawVersionCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// rawVersionCacheSize never is.
		panic(err)
	}
	return &SyncTree{
		sched:    s,
		writeLog: NewWriteLog(),
		points:   make(map[string]*SyncPoint),
		rawCache: cache,
	}
}

// WriteLog exposes the tree's pending-write log (txn and repo need direct
// access to append/remove writes and read snapshots).
func (t *SyncTree) WriteLog() *WriteLog { return t.writeLog }

func (t *SyncTree) pointAtLocked(path treedata.Path) *SyncPoint {
	key := path.String()
	sp, ok := t.points[key]
	if !ok {
		sp = newSyncPoint(path)
		t.points[key] = sp
	}
	return sp
}

// AddListener registers cb for events of typ at path under filter,
// creating the SyncPoint/View if necessary. The second return reports
// whether this was the first listener registered anywhere on this View
// (the Repo uses this to decide whether a Connection.Listen call is due).
func (t *SyncTree) AddListener(path treedata.Path, filter query.Filter, typ EventType, cb Callback) (*Subscription, bool) {
	t.mu.Lock()
	sp := t.pointAtLocked(path)
	v, _ := sp.viewFor(filter, t.sched)
	serverTree := t.serverTree
	writes := t.writeLog.Snapshot()
	t.mu.Unlock()

	raw := ComputeLocalVersion(serverTree, path, writes, nil)
	v.Refresh(raw)

	return v.AddListener(typ, cb)
}

// PruneViewIfEmpty removes the View for filter at path once it has no
// listeners left, and removes the SyncPoint itself once it has no Views
// left. Callers invoke this after Subscription.Unsubscribe reports
// nowEmpty == true.
func (t *SyncTree) PruneViewIfEmpty(path treedata.Path, filter query.Filter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sp, ok := t.points[path.String()]
	if !ok {
		return
	}
	key := filter.Key()
	if v, ok := sp.view(key); ok && v.IsEmpty() {
		sp.removeView(key)
	}
	if sp.isEmpty() {
		delete(t.points, path.String())
	}
}

// ApplyServerOverwrite replaces the subtree at path wholesale in
// serverTree and refreshes the affected views, per spec.md §4.3. If
// filter is non-nil, only the matching View at path is refreshed
// directly (descendant and ancestor SyncPoints still refresh, since their
// renderings may embed the changed subtree).
func (t *SyncTree) ApplyServerOverwrite(path treedata.Path, filter *query.Filter, tsd *treedata.TSD) {
	t.mu.Lock()
	t.serverTree = treedata.SetAtPath(t.serverTree, path, tsd)
	t.rawCache.Purge()
	t.mu.Unlock()
	t.refresh(path, filter)
}

// ApplyServerMerge overwrites each named child of path in serverTree and
// refreshes affected views, per spec.md §4.3.
func (t *SyncTree) ApplyServerMerge(path treedata.Path, filter *query.Filter, changedChildren map[treedata.Name]*treedata.TSD) {
	t.mu.Lock()
	t.serverTree = treedata.MergeAtPath(t.serverTree, path, changedChildren)
	t.rawCache.Purge()
	t.mu.Unlock()
	t.refresh(path, filter)
}

// ApplyUserOverwrite appends a pending overwrite to the write log and
// recomputes localVersion on every SyncPoint whose subtree intersects
// path, per spec.md §4.3.
func (t *SyncTree) ApplyUserOverwrite(path treedata.Path, resolvedTsd *treedata.TSD, writeID int64, applyLocally bool) {
	t.writeLog.AddOverwrite(writeID, path, resolvedTsd, applyLocally)
	t.mu.Lock()
	t.rawCache.Purge()
	t.mu.Unlock()
	t.refresh(path, nil)
}

// ApplyUserMerge appends a pending merge to the write log under a single
// writeId, per spec.md §4.3.
func (t *SyncTree) ApplyUserMerge(path treedata.Path, resolvedChildren map[treedata.Name]*treedata.TSD, writeID int64, applyLocally bool) {
	t.writeLog.AddMerge(writeID, path, resolvedChildren, applyLocally)
	t.mu.Lock()
	t.rawCache.Purge()
	t.mu.Unlock()
	t.refresh(path, nil)
}

// ApplyAck resolves a pending write: whether success is true or false, the
// write is dropped from the log (on success its effect is expected to
// arrive via a subsequent server echo; on failure the render simply loses
// it), per spec.md §4.3 and test property 2.
func (t *SyncTree) ApplyAck(path treedata.Path, writeID int64, success bool) {
	_ = success
	if _, ok := t.writeLog.Remove(writeID); !ok {
		return
	}
	t.mu.Lock()
	t.rawCache.Purge()
	t.mu.Unlock()
	t.refresh(path, nil)
}

// ApplyListenRevoked emits a "cancel" event to the matching View's
// listeners and drops the view, per spec.md §4.3. filter nil denotes the
// default (unfiltered) query.
func (t *SyncTree) ApplyListenRevoked(path treedata.Path, filter *query.Filter) {
	t.mu.Lock()
	sp, ok := t.points[path.String()]
	t.mu.Unlock()
	if !ok {
		return
	}
	key := keyOf(filter)
	v, found := sp.view(key)
	if !found {
		return
	}
	v.EmitCancel()
	sp.removeView(key)
}

// LocalVersionAt renders the node at path from serverTree plus writes
// passing include (nil selects all ApplyLocally writes), for callers that
// need a one-off read without an active listener (the transaction engine's
// "read latest local TSD at p", spec.md §4.6 step 2).
func (t *SyncTree) LocalVersionAt(path treedata.Path, include func(*PendingWrite) bool) *treedata.TSD {
	t.mu.Lock()
	serverTree := t.serverTree
	writes := t.writeLog.Snapshot()
	t.mu.Unlock()
	return ComputeLocalVersion(serverTree, path, writes, include)
}

// refresh recomputes and re-emits for every View whose rendering could be
// affected by a change at path: the View at path itself (or just the
// matching filter's View, when filter is non-nil), every descendant
// SyncPoint's views, and every ancestor SyncPoint's views (an ancestor's
// rendering may embed the changed subtree as a windowed child).
func (t *SyncTree) refresh(path treedata.Path, filter *query.Filter) {
	t.mu.Lock()
	serverTree := t.serverTree
	writes := t.writeLog.Snapshot()

	var targets []*View
	for _, sp := range t.points {
		switch {
		case sp.path.Equal(path):
			if filter != nil {
				if v, ok := sp.view(filter.Key()); ok {
					targets = append(targets, v)
				}
			} else {
				targets = append(targets, sp.allViews()...)
			}
		case path.Contains(sp.path) || sp.path.Contains(path):
			targets = append(targets, sp.allViews()...)
		}
	}
	t.mu.Unlock()

	rawByPath := make(map[string]*treedata.TSD, len(targets))
	for _, v := range targets {
		key := v.Path().String()
		raw, cached := rawByPath[key]
		if !cached {
			if cv, ok := t.rawCache.Get(key); ok {
				raw = cv.(*treedata.TSD)
			} else {
				raw = ComputeLocalVersion(serverTree, v.Path(), writes, nil)
				t.rawCache.Add(key, raw)
			}
			rawByPath[key] = raw
		}
		v.Refresh(raw)
	}
}

func keyOf(filter *query.Filter) string {
	if filter == nil {
		return query.Filter{}.Key()
	}
	return filter.Key()
}
