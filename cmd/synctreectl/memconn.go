package main

import (
	"context"
	"sync"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/internal/event"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/treedata"
)

// memConnection is a scriptable, in-process conn.Connection standing in
// for a real server: Put/Merge apply directly to an in-memory tree and
// echo back to any listens registered at an affected path, and Drop
// simulates a connectivity loss for exercising onDisconnect replay.
// It exists purely for manual inspection via this command, not as a
// transport this module ships.
type memConnection struct {
	mu        sync.Mutex
	tree      *treedata.TSD
	listens   map[int64]listenEntry
	messages  chan conn.Message
	connected event.FeedOf[bool]
	serverMs  int64
}

type listenEntry struct {
	path   treedata.Path
	filter *query.Filter
}

func newMemConnection() *memConnection {
	return &memConnection{
		listens:  make(map[int64]listenEntry),
		messages: make(chan conn.Message, 64),
		serverMs: 1_700_000_000_000,
	}
}

func (m *memConnection) Auth(context.Context, string) (any, error) { return nil, nil }
func (m *memConnection) Unauth(context.Context) error              { return nil }

func (m *memConnection) Put(ctx context.Context, path treedata.Path, data *treedata.TSD, expectedHash string) error {
	m.mu.Lock()
	m.tree = treedata.SetAtPath(m.tree, path, data)
	m.mu.Unlock()
	m.echo(path)
	return nil
}

func (m *memConnection) Merge(ctx context.Context, path treedata.Path, children map[treedata.Name]*treedata.TSD) error {
	m.mu.Lock()
	m.tree = treedata.MergeAtPath(m.tree, path, children)
	m.mu.Unlock()
	m.echo(path)
	return nil
}

func (m *memConnection) Listen(ctx context.Context, path treedata.Path, filter *query.Filter, tag int64) ([]string, error) {
	m.mu.Lock()
	m.listens[tag] = listenEntry{path: path, filter: filter}
	m.mu.Unlock()
	m.echo(path)
	return nil, nil
}

func (m *memConnection) Unlisten(ctx context.Context, path treedata.Path, filter *query.Filter, tag int64) error {
	m.mu.Lock()
	delete(m.listens, tag)
	m.mu.Unlock()
	return nil
}

func (m *memConnection) OnDisconnectPut(ctx context.Context, path treedata.Path, data *treedata.TSD) error {
	return nil
}
func (m *memConnection) OnDisconnectMerge(ctx context.Context, path treedata.Path, children map[treedata.Name]*treedata.TSD) error {
	return nil
}
func (m *memConnection) OnDisconnectCancel(ctx context.Context, path treedata.Path) error { return nil }

func (m *memConnection) Connected() *event.FeedOf[bool] { return &m.connected }
func (m *memConnection) Messages() <-chan conn.Message  { return m.messages }
func (m *memConnection) ServerTime() int64              { return m.serverMs }
func (m *memConnection) Close() error                   { close(m.messages); return nil }

// Drop simulates a connectivity loss, the demo tool's way of exercising
// the onDisconnect replay path.
func (m *memConnection) Drop() {
	m.connected.Send(false)
}

// echo pushes the current value at each listen's own path to every listen
// registered at, above or below path, mimicking a server broadcasting
// affected subtrees.
func (m *memConnection) echo(path treedata.Path) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.listens {
		if !l.path.Equal(path) && !path.Contains(l.path) && !l.path.Contains(path) {
			continue
		}
		value := treedata.GetAtPath(m.tree, l.path)
		m.messages <- conn.Message{
			Kind: conn.ActionSet,
			Path: l.path,
			Data: value,
		}
	}
}
