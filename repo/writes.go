package repo

import (
	"context"

	"github.com/treesync/synccore/conn"
	"github.com/treesync/synccore/treedata"
	"github.com/treesync/synccore/txn"
)

// Set issues an optimistic overwrite at path: the write log and every
// affected View are updated synchronously (before Set returns, the Repo's
// local reads already reflect it), and the server Put is sent
// asynchronously, per spec.md §4.3, §6.
func (r *Repo) Set(path treedata.Path, value *treedata.TSD) error {
	resolved := conn.ResolveSentinels(value, r.connection.ServerTime())
	writeID := r.allocateWriteID()

	r.scheduler.Do(func() {
		r.tree.ApplyUserOverwrite(path, resolved, writeID, true)
	})
	r.metrics.writesIssued.Inc()

	go func() {
		err := r.connection.Put(context.Background(), path, resolved, "")
		r.scheduler.Do(func() { r.ackWrite(path, writeID, err) })
	}()
	return nil
}

// Merge issues an optimistic merge of children at path, analogous to Set.
func (r *Repo) Merge(path treedata.Path, children map[treedata.Name]*treedata.TSD) error {
	resolved := make(map[treedata.Name]*treedata.TSD, len(children))
	for name, v := range children {
		resolved[name] = conn.ResolveSentinels(v, r.connection.ServerTime())
	}
	writeID := r.allocateWriteID()

	r.scheduler.Do(func() {
		r.tree.ApplyUserMerge(path, resolved, writeID, true)
	})
	r.metrics.writesIssued.Inc()

	go func() {
		err := r.connection.Merge(context.Background(), path, resolved)
		r.scheduler.Do(func() { r.ackWrite(path, writeID, err) })
	}()
	return nil
}

func (r *Repo) ackWrite(path treedata.Path, writeID int64, err error) {
	success := err == nil
	if success {
		r.metrics.acksSuccess.Inc()
	} else {
		r.metrics.acksFailure.Inc()
		r.log.Warn("write failed", "path", path.String(), "writeId", writeID, "err", err)
	}
	r.tree.ApplyAck(path, writeID, success)
}

// Transaction runs update against path's current local value, retrying on
// server-detected staleness, per spec.md §4.6. The returned Transaction's
// Wait blocks until the engine either commits or exhausts its retries.
func (r *Repo) Transaction(path treedata.Path, update txn.UpdateFunc) *txn.Transaction {
	r.metrics.transactionsStart.Inc()
	t := r.txnEngine.Run(path, update)
	go func() {
		<-t.Done()
		if t.RetryCount > 0 {
			r.metrics.transactionsRerun.Add(float64(t.RetryCount))
		}
	}()
	return t
}
