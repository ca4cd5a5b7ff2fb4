package txn

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/internal/rlog"
	"github.com/treesync/synccore/query"
	"github.com/treesync/synccore/sched"
	"github.com/treesync/synccore/synctree"
	"github.com/treesync/synccore/treedata"
)

// Engine runs the transaction lifecycle of spec.md §4.6 against a
// synctree.SyncTree and a conn.Connection. All exported methods schedule
// their work on the supplied sched.Scheduler and are safe to call from any
// goroutine; internal state is otherwise unsynchronized because it is
// only ever touched from the scheduler's single worker (spec.md §5).
type Engine struct {
	tree       *synctree.SyncTree
	connection conn.Connection
	scheduler  *sched.Scheduler
	nextWrite  func() int64

	tt        *TransactionsTree
	nextOrder int64
	subs      map[string]func()
	log       rlog.Logger
}

// NewEngine creates a transaction engine. nextWriteID must return a
// globally monotonic writeId shared with the rest of the Repo (spec.md
// §5: "writeId assignment is monotonic... independent of when their I/O
// completes"), since transaction writes share the same write log as
// ordinary user sets.
func NewEngine(tree *synctree.SyncTree, connection conn.Connection, scheduler *sched.Scheduler, nextWriteID func() int64) *Engine {
	return &Engine{
		tree:       tree,
		connection: connection,
		scheduler:  scheduler,
		nextWrite:  nextWriteID,
		tt:         newTransactionsTree(),
		subs:       make(map[string]func()),
		log:        rlog.Root().With("component", "txn"),
	}
}

// Run creates and begins a transaction at path (spec.md §4.6 steps 1-2),
// blocking until the first Run attempt has been pushed into the write
// log. Callers use Transaction.Wait to await final resolution.
func (e *Engine) Run(path treedata.Path, update UpdateFunc) *Transaction {
	t := newTransaction(path, update)
	e.scheduler.Do(func() {
		t.Order = e.nextOrder
		e.nextOrder++
		node := e.tt.nodeAt(path)
		node.Transactions = append(node.Transactions, t)
		sortTransactions(node.Transactions)
		e.ensureSubscribed(path)
		e.runOne(t)
	})
	return t
}

// ensureSubscribed makes sure the engine is listening at path so that
// server-side updates at a transaction's path feed future reruns (spec.md
// §4.6 step 1: "silently subscribe to unfiltered value at p").
func (e *Engine) ensureSubscribed(path treedata.Path) {
	key := path.String()
	if _, ok := e.subs[key]; ok {
		return
	}
	sub, _ := e.tree.AddListener(path, query.Filter{}, synctree.EventValue, func(synctree.Event) {})
	e.subs[key] = func() {
		sub.Unsubscribe()
		e.tree.PruneViewIfEmpty(path, query.Filter{})
	}
}

// runOne executes the Run step for t: drop any stale pending write from a
// prior attempt, read the fresh local value, invoke update, and push the
// result into the write log as a new pending write.
func (e *Engine) runOne(t *Transaction) {
	if t.hasPriorWrite {
		e.tree.ApplyAck(t.Path, t.priorWriteID, false)
	}

	current := e.tree.LocalVersionAt(t.Path, nil)
	newTsd, err := safeUpdate(t.Update, current)
	if err != nil {
		t.Status = StatusCompleted
		t.complete(nil, err)
		e.finish(t)
		return
	}
	if newTsd != nil {
		newTsd = newTsd.WithPriority(current.Priority())
	}

	wid := e.nextWrite()
	t.priorWriteID = wid
	t.hasPriorWrite = true
	t.Output = newTsd
	t.Status = StatusRun

	e.tree.ApplyUserOverwrite(t.Path, newTsd, wid, true)
	e.maybeSend()
}

func safeUpdate(update UpdateFunc, current *treedata.TSD) (out *treedata.TSD, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("txn: update function panicked: %v", r)
		}
	}()
	return update(current)
}

// maybeSend checks whether the whole transactions tree is ready to send
// (spec.md §4.6 step 3) and, if so, computes the composite output and
// issues the conditional put asynchronously. The put targets the deepest
// node that still holds every pending transaction, with the hash of the
// server value at that node's path as its precondition.
func (e *Engine) maybeSend() {
	root := e.tt.root
	if !root.isReadyToSend() || !root.hasRunnable() {
		return
	}
	for len(root.Transactions) == 0 && len(root.Children) == 1 {
		for _, only := range root.Children {
			root = only
		}
	}

	txns := root.allTransactions()
	writeIDs := make([]int64, len(txns))
	for i, t := range txns {
		t.Status = StatusSent
		t.RetryCount++
		writeIDs[i] = t.priorWriteID
	}

	input := e.tree.LocalVersionAt(root.Path, func(*synctree.PendingWrite) bool { return false })
	composite := root.CompositeOutput(input)
	digest := HashTSD(input)

	go e.send(txns, root.Path, composite, digest, writeIDs)
}

func (e *Engine) send(txns []*Transaction, path treedata.Path, composite *treedata.TSD, digest string, writeIDs []int64) {
	err := e.connection.Put(context.Background(), path, composite, digest)
	e.scheduler.Do(func() {
		switch {
		case err == nil:
			e.handleAckSuccess(txns, writeIDs)
		case conn.IsDataStale(err):
			e.handleStale(txns, writeIDs)
		default:
			e.handleError(txns, writeIDs, err)
		}
	})
}

// handleAckSuccess implements spec.md §4.6 step 4.
func (e *Engine) handleAckSuccess(txns []*Transaction, writeIDs []int64) {
	for i, t := range txns {
		e.tree.ApplyAck(t.Path, writeIDs[i], true)
		t.Status = StatusCompleted
		t.complete(t.Output, nil)
		e.finish(t)
	}
}

// handleStale implements spec.md §4.6 step 5.
func (e *Engine) handleStale(txns []*Transaction, writeIDs []int64) {
	var rerun []*Transaction
	for i, t := range txns {
		e.tree.ApplyAck(t.Path, writeIDs[i], false)
		switch {
		case t.Status == StatusSentNeedsAbort:
			t.Status = StatusCompleted
			t.complete(nil, t.AbortReason)
			e.finish(t)
		case t.RetryCount >= MaxRetries:
			t.Status = StatusCompleted
			t.complete(nil, ErrMaxRetries)
			e.finish(t)
		default:
			t.Status = StatusNull
			rerun = append(rerun, t)
		}
	}
	if len(rerun) > 0 {
		rerunID := uuid.New().String()
		e.log.Debug("transaction rerun", "rerun_id", rerunID, "count", len(rerun))
		for _, t := range rerun {
			e.runOne(t)
		}
	}
}

// handleError implements spec.md §4.6 step 6.
func (e *Engine) handleError(txns []*Transaction, writeIDs []int64, err error) {
	for i, t := range txns {
		e.tree.ApplyAck(t.Path, writeIDs[i], false)
		t.Status = StatusCompleted
		t.complete(nil, err)
		e.finish(t)
	}
}

// Abort implements spec.md §4.6's abort semantics: it walks every
// TransactionsNode on path and applies the status-dependent effect.
func (e *Engine) Abort(path treedata.Path, reason error) {
	e.scheduler.Do(func() {
		if reason == nil {
			reason = ErrAbortedBySet
		}
		for _, n := range e.tt.nodesOnPath(path) {
			for _, t := range append([]*Transaction{}, n.Transactions...) {
				switch t.Status {
				case StatusRun:
					e.tree.ApplyAck(t.Path, t.priorWriteID, false)
					t.Status = StatusCompleted
					t.complete(nil, ErrAbortedBySet)
					e.finish(t)
				case StatusSent:
					t.Status = StatusSentNeedsAbort
					t.AbortReason = reason
				case StatusSentNeedsAbort, StatusCompleted:
					// no-op, per spec.md §4.6.
				}
			}
		}
	})
}

// finish removes a completed transaction from the tree and prunes empty
// nodes and the engine's value subscription along its path.
func (e *Engine) finish(t *Transaction) {
	node := e.tt.nodeAt(t.Path)
	node.removeTransaction(t)
	e.tt.prune(t.Path)
	if len(node.Transactions) == 0 {
		key := t.Path.String()
		if unsub, ok := e.subs[key]; ok {
			unsub()
			delete(e.subs, key)
		}
	}
}
