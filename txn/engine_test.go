package txn

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/internal/event"
	"github.com/treesync/synccore/internal/mclock"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
)

// fakeConn is a minimal conn.Connection double used only to drive the
// engine's Put calls in tests.
type fakeConn struct {
	tree     *synctree.SyncTree
	putCalls int32
	onPut    func(call int32, path treedata.Path, data *treedata.TSD, hash string) error
}

func (f *fakeConn) Auth(context.Context, string) (any, error) { return nil, nil }
func (f *fakeConn) Unauth(context.Context) error              { return nil }
func (f *fakeConn) Put(ctx context.Context, path treedata.Path, data *treedata.TSD, hash string) error {
	call := atomic.AddInt32(&f.putCalls, 1)
	return f.onPut(call, path, data, hash)
}
func (f *fakeConn) Merge(context.Context, treedata.Path, map[treedata.Name]*treedata.TSD) error {
	return nil
}
func (f *fakeConn) Listen(context.Context, treedata.Path, *query.Filter, int64) ([]string, error) {
	return nil, nil
}
func (f *fakeConn) Unlisten(context.Context, treedata.Path, *query.Filter, int64) error { return nil }
func (f *fakeConn) OnDisconnectPut(context.Context, treedata.Path, *treedata.TSD) error { return nil }
func (f *fakeConn) OnDisconnectMerge(context.Context, treedata.Path, map[treedata.Name]*treedata.TSD) error {
	return nil
}
func (f *fakeConn) OnDisconnectCancel(context.Context, treedata.Path) error { return nil }
func (f *fakeConn) Connected() *event.FeedOf[bool]                         { return &event.FeedOf[bool]{} }
func (f *fakeConn) Messages() <-chan conn.Message                          { return nil }
func (f *fakeConn) ServerTime() int64                                      { return 0 }
func (f *fakeConn) Close() error                                           { return nil }

// S3 Transaction with conflict (spec.md §8).
func TestTransactionRerunOnConflict(t *testing.T) {
	s := sched.New(mclock.System{})
	tree := synctree.New(s)
	path, _ := treedata.ParsePath("n")

	tree.ApplyServerOverwrite(path, nil, treedata.Leaf(int64(5), nil))

	var writeCounter int64
	nextWriteID := func() int64 {
		writeCounter++
		return writeCounter
	}

	fc := &fakeConn{tree: tree}
	fc.onPut = func(call int32, p treedata.Path, data *treedata.TSD, hash string) error {
		switch call {
		case 1:
			if hash != HashTSD(treedata.Leaf(int64(5), nil)) {
				t.Errorf("expected first put's precondition hash to match input 5, got digest for %v", data.Value())
			}
			// Simulate the server pushing a fresher value before
			// rejecting the stale put, mirroring a concurrent writer.
			tree.ApplyServerOverwrite(path, nil, treedata.Leaf(int64(7), nil))
			return &conn.ServerError{Code: conn.CodeDataStale}
		case 2:
			if data.Value() != int64(8) {
				t.Errorf("expected rerun to produce 8, got %v", data.Value())
			}
			return nil
		default:
			t.Fatalf("unexpected extra Put call #%d", call)
			return nil
		}
	}

	engine := NewEngine(tree, fc, s, nextWriteID)

	update := func(current *treedata.TSD) (*treedata.TSD, error) {
		var v int64
		if current != nil {
			v = current.Value().(int64)
		}
		return treedata.Leaf(v+1, nil), nil
	}

	txn := engine.Run(path, update)
	result, err := txn.Wait()
	if err != nil {
		t.Fatalf("unexpected transaction error: %v", err)
	}
	if result.Value() != int64(8) {
		t.Fatalf("expected final committed value 8, got %v", result.Value())
	}
	if int(atomic.LoadInt32(&fc.putCalls)) != 2 {
		t.Fatalf("expected exactly 2 put calls, got %d", fc.putCalls)
	}
}

func TestTransactionRetryCapExceeded(t *testing.T) {
	s := sched.New(mclock.System{})
	tree := synctree.New(s)
	path, _ := treedata.ParsePath("n")
	tree.ApplyServerOverwrite(path, nil, treedata.Leaf(int64(0), nil))

	var writeCounter int64
	nextWriteID := func() int64 { writeCounter++; return writeCounter }

	fc := &fakeConn{}
	fc.onPut = func(call int32, p treedata.Path, data *treedata.TSD, hash string) error {
		return &conn.ServerError{Code: conn.CodeDataStale}
	}
	engine := NewEngine(tree, fc, s, nextWriteID)

	txn := engine.Run(path, func(current *treedata.TSD) (*treedata.TSD, error) {
		return treedata.Leaf(int64(1), nil), nil
	})
	_, err := txn.Wait()
	if err != ErrMaxRetries {
		t.Fatalf("expected ErrMaxRetries, got %v", err)
	}
	if int(fc.putCalls) != MaxRetries {
		t.Fatalf("expected exactly %d put attempts, got %d", MaxRetries, fc.putCalls)
	}
}
