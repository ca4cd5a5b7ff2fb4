// Package repo coordinates a SyncTree, its write log, a transaction
// engine, and an onDisconnect sparse tree against one Connection — the
// top-level object an application actually constructs (spec.md §2's
// "client-side synchronization core", assembled).
package repo

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/internal/event"
	"github.com/treesync/synccore/internal/mclock"
	"github.com/treesync/synccore/internal/rlog"
	"github.com/treesync/synccore/ondisconnect"
	"github.com/treesync/synccore/pushid"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
	"github.com/treesync/synccore/txn"
)

// Repo is one synchronized connection to a server: a SyncTree fed by the
// Connection's push messages and drained by application writes, a
// Transaction engine sharing its write log, and an onDisconnect replay
// tree armed on every connectivity drop.
type Repo struct {
	id         uuid.UUID
	log        rlog.Logger
	scheduler  *sched.Scheduler
	connection conn.Connection

	tree      *synctree.SyncTree
	txnEngine *txn.Engine
	odTree    *ondisconnect.SparseSnapshotTree
	pushGen   *pushid.Generator
	metrics   *metrics

	nextWriteID int64

	tagsMu   sync.Mutex
	tagByKey map[string]int64
	keyByTag map[int64]tagEntry
	nextTag  int64

	sf singleflight.Group

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures optional Repo behavior.
type Option func(*repoConfig)

type repoConfig struct {
	registry prometheus.Registerer
	logger   rlog.Logger
}

// WithMetricsRegistry registers the Repo's Prometheus collectors into reg
// instead of leaving them unregistered.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(c *repoConfig) { c.registry = reg }
}

// WithLogger overrides the default root logger.
func WithLogger(l rlog.Logger) Option {
	return func(c *repoConfig) { c.logger = l }
}

// New constructs a Repo driving connection, with all core state serialized
// through its own Scheduler.
func New(connection conn.Connection, opts ...Option) *Repo {
	cfg := repoConfig{logger: rlog.Root()}
	for _, o := range opts {
		o(&cfg)
	}

	id := uuid.New()
	log := cfg.logger.With("repo", id.String())
	s := sched.New(mclock.System{})
	tree := synctree.New(s)

	r := &Repo{
		id:         id,
		log:        log,
		scheduler:  s,
		connection: connection,
		tree:       tree,
		odTree:     ondisconnect.New(),
		pushGen:    pushid.New(),
		metrics:    newMetrics(cfg.registry, "synccore"),
		tagByKey:   make(map[string]int64),
		keyByTag:   make(map[int64]tagEntry),
		closed:     make(chan struct{}),
	}
	r.txnEngine = txn.NewEngine(tree, connection, s, r.allocateWriteID)

	go r.pumpMessages()
	go r.pumpConnected()

	return r
}

// allocateWriteID hands out a globally monotonic writeId shared by
// ordinary user writes and the transaction engine (spec.md §5).
func (r *Repo) allocateWriteID() int64 {
	return atomic.AddInt64(&r.nextWriteID, 1)
}

// PushID generates a time-ordered key for push()-style appends, using the
// connection's current server time (spec.md §4.5, §6).
func (r *Repo) PushID() string {
	return r.pushGen.Next(r.connection.ServerTime())
}

// Connected exposes the underlying Connection's connect/disconnect feed to
// callers that want to react to transport state themselves, beyond the
// Repo's own onDisconnect replay.
func (r *Repo) Connected() *event.FeedOf[bool] {
	return r.connection.Connected()
}

// Auth authenticates the underlying Connection. Rapid reconnect churn can
// produce several concurrent callers presenting the same token; singleflight
// collapses them into one Connection.Auth call.
func (r *Repo) Auth(ctx context.Context, token string) (any, error) {
	v, err, _ := r.sf.Do("auth:"+token, func() (any, error) {
		return r.connection.Auth(ctx, token)
	})
	return v, err
}

// Unauth deauthenticates the underlying Connection.
func (r *Repo) Unauth(ctx context.Context) error {
	return r.connection.Unauth(ctx)
}

// Close tears down the Repo: closes the underlying connection, which
// cascades transport errors into every in-flight write and transaction.
func (r *Repo) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.closed)
		err = r.connection.Close()
		r.scheduler.Close()
	})
	return err
}

// pumpConnected watches the Connection's connected-state feed, arming
// onDisconnect replay on every drop.
func (r *Repo) pumpConnected() {
	ch := make(chan bool, 1)
	sub := r.connection.Connected().Subscribe(ch)
	defer sub.Unsubscribe()
	for {
		select {
		case <-r.closed:
			return
		case up, ok := <-ch:
			if !ok {
				return
			}
			if !up {
				r.scheduler.Do(r.runOnDisconnectEvents)
			}
		}
	}
}

// pumpMessages drains the Connection's server-push message stream and
// dispatches each onto the scheduler.
func (r *Repo) pumpMessages() {
	for {
		select {
		case <-r.closed:
			return
		case msg, ok := <-r.connection.Messages():
			if !ok {
				return
			}
			m := msg
			r.scheduler.Do(func() { r.dispatch(m) })
		}
	}
}

func (r *Repo) dispatch(msg conn.Message) {
	switch msg.Kind {
	case conn.ActionSet:
		path, filter := r.resolveRoute(msg)
		r.tree.ApplyServerOverwrite(path, filter, msg.Data)
	case conn.ActionMerge:
		path, filter := r.resolveRoute(msg)
		r.tree.ApplyServerMerge(path, filter, msg.Children)
	case conn.ActionListenRevoked:
		r.tree.ApplyListenRevoked(msg.Path, msg.Query)
		r.releaseTagForFilter(msg.Path, msg.Query)
	case conn.ActionAuthRevoked:
		r.log.Warn("auth revoked by server")
	case conn.ActionSecurityDebug:
		r.log.Debug("security-debug", "message", msg.DebugMessage)
	}
}

// resolveRoute maps an incoming message's tag (if any) back to its
// (path, filter); spec.md §9 flags the teacher's source for never
// clearing this bijection on revoke, which releaseTagForFilter fixes.
func (r *Repo) resolveRoute(msg conn.Message) (treedata.Path, *query.Filter) {
	if msg.Tag == nil {
		return msg.Path, msg.Query
	}
	r.tagsMu.Lock()
	e, ok := r.keyByTag[*msg.Tag]
	r.tagsMu.Unlock()
	if !ok {
		return msg.Path, msg.Query
	}
	f := e.filter
	return e.path, &f
}

func (r *Repo) runOnDisconnectEvents() {
	r.odTree.RunOnDisconnectEvents(r.connection.ServerTime(),
		func(path treedata.Path, value *treedata.TSD) {
			r.metrics.onDisconnectFired.Inc()
			r.tree.ApplyServerOverwrite(path, nil, value)
		},
		func(path treedata.Path) {
			// This callback already runs on the scheduler and Abort queues
			// its own job there, so it is handed off instead of called inline.
			go r.txnEngine.Abort(path, conn.ErrTransportDuringDisconnect)
		},
	)
}
