// Package txn implements the optimistic transaction engine of spec.md
// §4.6: local read-modify-write attempts layered over synctree's write
// log, resolved with a compare-and-set put and rerun on server conflict.
package txn

import (
	"errors"
	"fmt"

	"github.com/treesync/synccore/treedata"
)

// MaxRetries bounds the number of server sends a single transaction will
// attempt before failing (spec.md §4.6 step 7, test property 6).
const MaxRetries = 25

// Status is a transaction's lifecycle state (spec.md §4.6).
type Status int

const (
	StatusNull Status = iota
	StatusRun
	StatusSent
	StatusSentNeedsAbort
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusNull:
		return "null"
	case StatusRun:
		return "run"
	case StatusSent:
		return "sent"
	case StatusSentNeedsAbort:
		return "sentNeedsAbort"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Sentinel transaction-abort errors (spec.md §7's TransactionAbort kind).
var (
	ErrAbortedBySet = errors.New("txn: aborted by an overlay write")
	ErrMaxRetries   = errors.New("txn: maximum retry count exceeded")
)

// UpdateFunc computes a transaction's new value from the current local
// value at its path. A nil return means "abort the write but keep
// listening" in Firebase-style transaction semantics; this engine treats
// a nil result the same as any other output (callers that want to abort
// should return an error instead).
type UpdateFunc func(current *treedata.TSD) (*treedata.TSD, error)

// Transaction is one read-modify-write attempt registered against a path.
// Exported fields are only safe to read once the transaction has
// completed (see Wait); while in flight, the engine's scheduler owns them.
type Transaction struct {
	Order      int64
	Path       treedata.Path
	Update     UpdateFunc
	Status     Status
	RetryCount int
	Output     *treedata.TSD
	AbortReason error

	priorWriteID  int64
	hasPriorWrite bool

	doneCh chan struct{}
	result *treedata.TSD
	err    error
	fired  bool
}

func newTransaction(path treedata.Path, update UpdateFunc) *Transaction {
	return &Transaction{Path: path, Update: update, doneCh: make(chan struct{})}
}

// complete fires the transaction's completion exactly once, per spec.md
// §9's "firing twice is a programming error" note.
func (t *Transaction) complete(result *treedata.TSD, err error) {
	if t.fired {
		panic(fmt.Sprintf("txn: transaction at %q completed twice", t.Path.String()))
	}
	t.fired = true
	t.result = result
	t.err = err
	close(t.doneCh)
}

// Wait blocks until the transaction reaches a terminal state and returns
// its resolved output (currentOutputResolved on success) or error.
func (t *Transaction) Wait() (*treedata.TSD, error) {
	<-t.doneCh
	return t.result, t.err
}

// Done returns a channel closed once the transaction has completed, for
// callers that want to select on it alongside other events.
func (t *Transaction) Done() <-chan struct{} {
	return t.doneCh
}
