package synctree

import "github.com/treesync/synccore/treedata"

// EventType enumerates the listener event kinds of spec.md §4.2.
type EventType string

const (
	EventValue        EventType = "value"
	EventChildAdded    EventType = "child_added"
	EventChildRemoved  EventType = "child_removed"
	EventChildChanged  EventType = "child_changed"
	EventChildMoved    EventType = "child_moved"
	EventCancel        EventType = "cancel"
)

// Event is delivered to a View's listeners.
type Event struct {
	Type     EventType
	Name     treedata.Name // set for child_* events
	Snapshot *treedata.TSD // full node for "value"; child's node for child_*
}

// Callback receives Events for one (View, EventType) registration.
type Callback func(Event)
