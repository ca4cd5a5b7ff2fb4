package synctree

import (
	"sync"

	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/treedata"
)

// SyncPoint is the per-path bundle of filtered Views described in
// spec.md's GLOSSARY. Views are keyed by query.Filter.Key() so that
// structurally-identical filters share exactly one View, matching the
// "Filter -> View" bijection spec.md §4.3 assumes.
type SyncPoint struct {
	mu    sync.Mutex
	path  treedata.Path
	views map[string]*View
}

func newSyncPoint(path treedata.Path) *SyncPoint {
	return &SyncPoint{path: path, views: make(map[string]*View)}
}

// viewFor returns the View for filter, creating it if absent. The bool
// result reports whether a new View was created.
func (sp *SyncPoint) viewFor(filter query.Filter, s *sched.Scheduler) (*View, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	key := filter.Key()
	if v, ok := sp.views[key]; ok {
		return v, false
	}
	v := NewView(sp.path, filter, s)
	sp.views[key] = v
	return v, true
}

func (sp *SyncPoint) view(key string) (*View, bool) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	v, ok := sp.views[key]
	return v, ok
}

func (sp *SyncPoint) removeView(key string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	delete(sp.views, key)
}

func (sp *SyncPoint) allViews() []*View {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	out := make([]*View, 0, len(sp.views))
	for _, v := range sp.views {
		out = append(out, v)
	}
	return out
}

func (sp *SyncPoint) isEmpty() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.views) == 0
}
