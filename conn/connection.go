// Package conn defines the duplex Connection boundary the synchronization
// core talks to (spec.md §6), and the error kinds (spec.md §7) that cross
// it. The concrete transport (websocket, long-poll, in-memory test double)
// lives outside this module; synctree and txn depend only on this
// interface.
package conn

import (
	"context"

	"github.com/treesync/synccore/internal/event"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/treedata"
)

// Connection is the transport boundary consumed by the core (spec.md §6).
// All methods may suspend (spec.md §5's "suspension points"); the core
// never calls them while holding its own scheduler lock.
type Connection interface {
	Auth(ctx context.Context, token string) (authData any, err error)
	Unauth(ctx context.Context) error

	// Put performs a conditional write: if expectedHash is non-empty, the
	// server rejects with ServerError{Code: CodeDataStale} when the
	// server's current hash of path does not match.
	Put(ctx context.Context, path treedata.Path, data *treedata.TSD, expectedHash string) error
	Merge(ctx context.Context, path treedata.Path, children map[treedata.Name]*treedata.TSD) error

	Listen(ctx context.Context, path treedata.Path, filter *query.Filter, tag int64) (warnings []string, err error)
	Unlisten(ctx context.Context, path treedata.Path, filter *query.Filter, tag int64) error

	OnDisconnectPut(ctx context.Context, path treedata.Path, data *treedata.TSD) error
	OnDisconnectMerge(ctx context.Context, path treedata.Path, children map[treedata.Name]*treedata.TSD) error
	OnDisconnectCancel(ctx context.Context, path treedata.Path) error

	// Connected delivers true/false transitions of the underlying
	// transport; Repo subscribes to run onDisconnect replay and fail
	// in-flight writes on drop.
	Connected() *event.FeedOf[bool]

	// Messages delivers server-pushed actions in arrival order.
	Messages() <-chan Message

	// ServerTime returns the Connection's best current estimate of
	// server wall-clock time, in milliseconds since epoch, used for
	// push-ID generation and ServerValue.timestamp resolution.
	ServerTime() int64

	Close() error
}

// ActionKind enumerates the message-stream action types of spec.md §6.
type ActionKind int

const (
	ActionSet ActionKind = iota
	ActionMerge
	ActionAuthRevoked
	ActionListenRevoked
	ActionSecurityDebug
)

// Message is one entry from the Connection's message stream.
type Message struct {
	Kind ActionKind

	Path     treedata.Path
	Tag      *int64 // nil when the server addressed this by path+query rather than a listen tag
	Data     *treedata.TSD
	Children map[treedata.Name]*treedata.TSD
	Query    *query.Filter

	DebugMessage string // ActionSecurityDebug payload
}
