package synctree

import (
	"sync"
	"sync/atomic"

	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/treedata"
)

// nextListenerID hands out process-wide unique listener ids for
// Subscription bookkeeping.
var nextListenerID uint64

// View is one filter×path rendering with its own listener set and local
// version (spec.md §4.2, GLOSSARY). Its localVersion is the raw node
// restricted to the filter's windowed children — a leaf value passes
// through unchanged since windowing only applies to children.
type View struct {
	mu     sync.Mutex
	path   treedata.Path
	filter query.Filter
	sched  *sched.Scheduler

	localVersion *treedata.TSD
	listeners    map[EventType]map[uint64]Callback
	total        int
}

// NewView creates an empty view (localVersion nil, no listeners) at path
// under filter, whose deferred listener-delivery runs on s.
func NewView(path treedata.Path, filter query.Filter, s *sched.Scheduler) *View {
	return &View{
		path:      path,
		filter:    filter,
		sched:     s,
		listeners: make(map[EventType]map[uint64]Callback),
	}
}

// Path returns the view's path.
func (v *View) Path() treedata.Path { return v.path }

// Filter returns the view's filter.
func (v *View) Filter() query.Filter { return v.filter }

// LocalVersion returns the view's current rendered value.
func (v *View) LocalVersion() *treedata.TSD {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.localVersion
}

// Subscription is returned by AddListener; Unsubscribe removes the
// registration.
type Subscription struct {
	view *View
	typ  EventType
	id   uint64
}

// Unsubscribe removes this listener, reporting whether the view now has no
// listeners of any type left (spec.md §4.2's "removeListener -> nowEmpty").
func (s *Subscription) Unsubscribe() bool {
	return s.view.removeListener(s.typ, s.id)
}

// AddListener registers cb for events of typ. If the view already has a
// rendered value, cb receives synthesized initial events (a "value"
// snapshot, or one "child_added" per current windowed child in sort
// order) delivered on a later scheduler turn, per spec.md §4.2 and §9's
// reentrancy note. The returned bool reports whether the view had no
// listeners at all before this call (callers use this to decide whether a
// Connection.Listen call is needed).
func (v *View) AddListener(typ EventType, cb Callback) (*Subscription, bool) {
	v.mu.Lock()
	wasFirst := v.total == 0
	id := atomic.AddUint64(&nextListenerID, 1)
	if v.listeners[typ] == nil {
		v.listeners[typ] = make(map[uint64]Callback)
	}
	v.listeners[typ][id] = cb
	v.total++
	raw := v.localVersion
	v.mu.Unlock()

	if raw != nil {
		v.postInitialEvents(typ, raw, cb)
	}

	return &Subscription{view: v, typ: typ, id: id}, wasFirst
}

func (v *View) postInitialEvents(typ EventType, raw *treedata.TSD, cb Callback) {
	v.sched.Post(func() {
		switch typ {
		case EventValue:
			cb(Event{Type: EventValue, Snapshot: raw})
		case EventChildAdded:
			for _, n := range v.windowedNames(raw) {
				cb(Event{Type: EventChildAdded, Name: n, Snapshot: raw.Child(n)})
			}
		}
	})
}

// IsEmpty reports whether the view currently has no listeners of any type.
func (v *View) IsEmpty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.total == 0
}

func (v *View) removeListener(typ EventType, id uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m := v.listeners[typ]; m != nil {
		if _, ok := m[id]; ok {
			delete(m, id)
			v.total--
		}
	}
	return v.total == 0
}

// EmitCancel delivers a "cancel" event to all listeners of that type
// (spec.md §4.2: server-initiated listen revocation).
func (v *View) EmitCancel() {
	v.mu.Lock()
	cbs := v.snapshotCallbacks(EventCancel)
	v.mu.Unlock()
	for _, cb := range cbs {
		cb(Event{Type: EventCancel})
	}
}

func (v *View) snapshotCallbacks(typ EventType) []Callback {
	m := v.listeners[typ]
	out := make([]Callback, 0, len(m))
	for _, cb := range m {
		out = append(out, cb)
	}
	return out
}

// windowedNames returns raw's child names restricted to the view's filter
// window, in ascending order under the filter's own orderBy (not name
// order, except when orderBy is ".key"). Leaves have no children.
func (v *View) windowedNames(raw *treedata.TSD) []treedata.Name {
	if raw == nil || raw.IsLeaf() {
		return nil
	}
	return v.filter.Window(raw)
}

// render projects raw (the full node at v.path) down to the filter's
// windowed children.
func (v *View) render(raw *treedata.TSD) *treedata.TSD {
	if raw == nil || raw.IsLeaf() {
		return raw
	}
	names := v.filter.Window(raw)
	children := make(map[treedata.Name]*treedata.TSD, len(names))
	for _, n := range names {
		children[n] = raw.Child(n)
	}
	return treedata.Children(children, raw.Priority())
}

// Refresh recomputes localVersion from raw (the unwindowed node at v.path)
// and emits the diff against the previous localVersion, in the apply order
// of spec.md §4.2: removed, then moved, then added, then changed, then
// value.
func (v *View) Refresh(raw *treedata.TSD) {
	newLocal := v.render(raw)

	v.mu.Lock()
	oldLocal := v.localVersion
	v.localVersion = newLocal
	removedCbs := v.snapshotCallbacks(EventChildRemoved)
	movedCbs := v.snapshotCallbacks(EventChildMoved)
	addedCbs := v.snapshotCallbacks(EventChildAdded)
	changedCbs := v.snapshotCallbacks(EventChildChanged)
	valueCbs := v.snapshotCallbacks(EventValue)
	v.mu.Unlock()

	if treedata.Equal(oldLocal, newLocal) {
		return
	}

	oldNames := v.windowedNames(oldLocal)
	newNames := v.windowedNames(newLocal)
	oldIdx := indexOf(oldNames)
	newIdx := indexOf(newNames)
	oldSet := toSet(oldNames)
	newSet := toSet(newNames)

	for _, n := range oldNames {
		if !newSet[n] {
			deliver(removedCbs, Event{Type: EventChildRemoved, Name: n, Snapshot: oldLocal.Child(n)})
		}
	}
	for _, n := range newNames {
		if oldSet[n] && oldIdx[n] != newIdx[n] {
			deliver(movedCbs, Event{Type: EventChildMoved, Name: n, Snapshot: newLocal.Child(n)})
		}
	}
	for _, n := range newNames {
		if !oldSet[n] {
			deliver(addedCbs, Event{Type: EventChildAdded, Name: n, Snapshot: newLocal.Child(n)})
		}
	}
	for _, n := range newNames {
		if oldSet[n] && !treedata.Equal(oldLocal.Child(n), newLocal.Child(n)) {
			deliver(changedCbs, Event{Type: EventChildChanged, Name: n, Snapshot: newLocal.Child(n)})
		}
	}
	deliver(valueCbs, Event{Type: EventValue, Snapshot: newLocal})
}

func deliver(cbs []Callback, ev Event) {
	for _, cb := range cbs {
		cb(ev)
	}
}

func indexOf(names []treedata.Name) map[treedata.Name]int {
	out := make(map[treedata.Name]int, len(names))
	for i, n := range names {
		out[n] = i
	}
	return out
}

func toSet(names []treedata.Name) map[treedata.Name]bool {
	out := make(map[treedata.Name]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
