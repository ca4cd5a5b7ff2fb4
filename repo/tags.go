package repo

import (
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/treedata"
)

// tagEntry is the reverse-lookup value for one listen tag.
type tagEntry struct {
	path   treedata.Path
	filter query.Filter
}

func tagMapKey(path treedata.Path, filter query.Filter) string {
	return path.String() + "\x00" + filter.Key()
}

// allocateTag returns the tag for (path, filter), creating one if this is
// the first registration for that pair (spec.md §6's listen(path,
// query?, tag?)).
func (r *Repo) allocateTag(path treedata.Path, filter query.Filter) int64 {
	r.tagsMu.Lock()
	defer r.tagsMu.Unlock()
	mk := tagMapKey(path, filter)
	if tag, ok := r.tagByKey[mk]; ok {
		return tag
	}
	r.nextTag++
	tag := r.nextTag
	r.tagByKey[mk] = tag
	r.keyByTag[tag] = tagEntry{path: path, filter: filter}
	return tag
}

// tagFor returns the currently allocated tag for (path, filter), or 0 if
// none is allocated.
func (r *Repo) tagFor(path treedata.Path, filter query.Filter) int64 {
	r.tagsMu.Lock()
	defer r.tagsMu.Unlock()
	return r.tagByKey[tagMapKey(path, filter)]
}

// releaseTag removes both directions of the tag<->(path,filter) bijection
// for (path, filter). spec.md §9 flags that the original never does this
// on revoke; this implementation always does, on both listener-driven
// unlisten and server-driven revoke.
func (r *Repo) releaseTag(path treedata.Path, filter query.Filter) {
	r.tagsMu.Lock()
	defer r.tagsMu.Unlock()
	mk := tagMapKey(path, filter)
	if tag, ok := r.tagByKey[mk]; ok {
		delete(r.tagByKey, mk)
		delete(r.keyByTag, tag)
	}
}

// releaseTagForFilter releases the tag entry addressed by an incoming
// actionListenRevoked message, whose filter may be nil (default query).
func (r *Repo) releaseTagForFilter(path treedata.Path, filter *query.Filter) {
	f := query.Filter{}
	if filter != nil {
		f = *filter
	}
	r.releaseTag(path, f)
}
