package synctree

import (
	"sort"
	"sync"

	"github.com/treesync/synccore/treedata"
)

// WriteKind distinguishes the two write-log resolution rules of spec.md
// §4.4.
type WriteKind int

const (
	WriteOverwrite WriteKind = iota
	WriteMerge
)

// PendingWrite is one optimistic user write layered over serverVersion.
// Overwrite and MergeChildren are mutually exclusive, selected by Kind.
type PendingWrite struct {
	WriteID       int64
	Path          treedata.Path
	Kind          WriteKind
	Overwrite     *treedata.TSD
	MergeChildren map[treedata.Name]*treedata.TSD
	ApplyLocally  bool
}

// WriteLog holds all pending user writes for a SyncTree, ordered by
// writeId (spec.md §5: "writeId assignment is monotonic in the order user
// writes are created... local layering applies writes by writeId order").
type WriteLog struct {
	mu     sync.Mutex
	writes []*PendingWrite
}

// NewWriteLog returns an empty write log.
func NewWriteLog() *WriteLog {
	return &WriteLog{}
}

// AddOverwrite appends a pending overwrite, keeping the log sorted by
// WriteID.
func (wl *WriteLog) AddOverwrite(id int64, path treedata.Path, value *treedata.TSD, applyLocally bool) {
	wl.insert(&PendingWrite{WriteID: id, Path: path, Kind: WriteOverwrite, Overwrite: value, ApplyLocally: applyLocally})
}

// AddMerge appends a pending merge.
func (wl *WriteLog) AddMerge(id int64, path treedata.Path, children map[treedata.Name]*treedata.TSD, applyLocally bool) {
	wl.insert(&PendingWrite{WriteID: id, Path: path, Kind: WriteMerge, MergeChildren: children, ApplyLocally: applyLocally})
}

func (wl *WriteLog) insert(w *PendingWrite) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	wl.writes = append(wl.writes, w)
	sort.Slice(wl.writes, func(i, j int) bool { return wl.writes[i].WriteID < wl.writes[j].WriteID })
}

// Remove drops the write with the given id, returning it if present.
func (wl *WriteLog) Remove(id int64) (*PendingWrite, bool) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	for i, w := range wl.writes {
		if w.WriteID == id {
			wl.writes = append(wl.writes[:i], wl.writes[i+1:]...)
			return w, true
		}
	}
	return nil, false
}

// Get returns the write with the given id without removing it.
func (wl *WriteLog) Get(id int64) (*PendingWrite, bool) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	for _, w := range wl.writes {
		if w.WriteID == id {
			return w, true
		}
	}
	return nil, false
}

// Snapshot returns a copy of the current writes in ascending writeId order.
func (wl *WriteLog) Snapshot() []*PendingWrite {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	out := make([]*PendingWrite, len(wl.writes))
	copy(out, wl.writes)
	return out
}

// applyWrite folds w's effect into base, a node already rooted at
// viewPath, per spec.md §4.4's layering rule.
func applyWrite(base *treedata.TSD, viewPath treedata.Path, w *PendingWrite) *treedata.TSD {
	if rel, ok := w.Path.RelativeTo(viewPath); ok {
		// w.Path is viewPath itself or a descendant of it.
		switch w.Kind {
		case WriteOverwrite:
			return treedata.SetAtPath(base, rel, w.Overwrite)
		case WriteMerge:
			return treedata.MergeAtPath(base, rel, w.MergeChildren)
		}
	}
	if rel, ok := viewPath.RelativeTo(w.Path); ok && !rel.IsRoot() {
		// w.Path is a strict ancestor of viewPath.
		switch w.Kind {
		case WriteOverwrite:
			return treedata.GetAtPath(w.Overwrite, rel)
		case WriteMerge:
			head, rest, _ := rel.Front()
			child, exists := w.MergeChildren[head]
			if !exists {
				return base
			}
			return treedata.GetAtPath(child, rest)
		}
	}
	return base
}

// ComputeLocalVersion computes localVersion at viewPath from serverTree
// plus the given writes, applied in ascending writeId order, honoring
// ApplyLocally and the include predicate (nil means "include all").
func ComputeLocalVersion(serverTree *treedata.TSD, viewPath treedata.Path, writes []*PendingWrite, include func(*PendingWrite) bool) *treedata.TSD {
	base := treedata.GetAtPath(serverTree, viewPath)
	for _, w := range writes {
		if !w.ApplyLocally {
			continue
		}
		if include != nil && !include(w) {
			continue
		}
		base = applyWrite(base, viewPath, w)
	}
	return base
}
