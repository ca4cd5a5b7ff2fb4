package repo

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/internal/event"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
)

// fakeConn is a controllable conn.Connection double: Put/Merge/Listen calls
// are recorded and dispatched to an optional hook, and server pushes and
// connectivity transitions are injected via messages/connected.
type fakeConn struct {
	messages  chan conn.Message
	connected event.FeedOf[bool]

	putCalls atomic.Int32
	onPut    func(path treedata.Path, data *treedata.TSD, hash string) error

	listenCalls atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{messages: make(chan conn.Message, 16)}
}

func (f *fakeConn) Auth(context.Context, string) (any, error) { return nil, nil }
func (f *fakeConn) Unauth(context.Context) error              { return nil }
func (f *fakeConn) Put(ctx context.Context, path treedata.Path, data *treedata.TSD, hash string) error {
	f.putCalls.Add(1)
	if f.onPut != nil {
		return f.onPut(path, data, hash)
	}
	return nil
}
func (f *fakeConn) Merge(context.Context, treedata.Path, map[treedata.Name]*treedata.TSD) error {
	return nil
}
func (f *fakeConn) Listen(context.Context, treedata.Path, *query.Filter, int64) ([]string, error) {
	f.listenCalls.Add(1)
	return nil, nil
}
func (f *fakeConn) Unlisten(context.Context, treedata.Path, *query.Filter, int64) error { return nil }
func (f *fakeConn) OnDisconnectPut(context.Context, treedata.Path, *treedata.TSD) error { return nil }
func (f *fakeConn) OnDisconnectMerge(context.Context, treedata.Path, map[treedata.Name]*treedata.TSD) error {
	return nil
}
func (f *fakeConn) OnDisconnectCancel(context.Context, treedata.Path) error { return nil }
func (f *fakeConn) Connected() *event.FeedOf[bool]                         { return &f.connected }
func (f *fakeConn) Messages() <-chan conn.Message                          { return f.messages }
func (f *fakeConn) ServerTime() int64                                      { return 1000 }
func (f *fakeConn) Close() error                                           { close(f.messages); return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// S1-shaped integration scenario, run through the assembled Repo rather
// than the SyncTree directly: listen, observe the server push, issue a
// local Set, and unlisten.
func TestRepoListenSetUnlisten(t *testing.T) {
	fc := newFakeConn()
	r := New(fc)
	defer r.Close()

	path, _ := treedata.ParsePath("a")

	var gotValue atomic.Value
	sub, err := r.Listen(path, query.Filter{}, synctree.EventValue, func(ev synctree.Event) {
		gotValue.Store(ev.Snapshot)
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	waitFor(t, func() bool { return fc.listenCalls.Load() == 1 })

	fc.messages <- conn.Message{
		Kind: conn.ActionSet,
		Path: path,
		Data: treedata.Children(map[treedata.Name]*treedata.TSD{"x": treedata.Leaf(int64(1), nil)}, nil),
	}
	waitFor(t, func() bool {
		v := gotValue.Load()
		return v != nil && v.(*treedata.TSD) != nil
	})

	if err := r.Set(path.Child("y"), treedata.Leaf(int64(2), nil)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	waitFor(t, func() bool { return fc.putCalls.Load() == 1 })

	if err := r.Unlisten(sub, path, query.Filter{}); err != nil {
		t.Fatalf("Unlisten: %v", err)
	}
}

// A connection drop replays armed onDisconnect entries into the local
// tree and aborts transactions at that path (spec.md §4.7, §5).
func TestRepoOnDisconnectReplaysOnDrop(t *testing.T) {
	fc := newFakeConn()
	r := New(fc)
	defer r.Close()

	path, _ := treedata.ParsePath("p")
	if err := r.OnDisconnectSet(path, treedata.Leaf(int64(42), nil)); err != nil {
		t.Fatalf("OnDisconnectSet: %v", err)
	}

	fc.connected.Send(false)

	waitFor(t, func() bool {
		v := r.tree.LocalVersionAt(path, nil)
		return v != nil && v.Value() == int64(42)
	})
}
