// Package sched implements the "single-threaded cooperative scheduler"
// required by spec.md §5: every state transition the core makes — SyncTree
// mutation, write-log edits, transaction progress, event emission — runs on
// one logical worker, so no task ever observes a half-mutated structure.
// It is built directly on internal/execqueue (the teacher's sequential
// execution queue) and internal/mclock (for deferring work to a later
// scheduler turn).
package sched

import (
	"github.com/treesync/synccore/internal/execqueue"
	"github.com/treesync/synccore/internal/mclock"
)

// defaultCapacity bounds how many pending jobs the scheduler will buffer.
// Repos are long-lived single-tenant objects; this is generous headroom,
// not a tuned production value.
const defaultCapacity = 4096

// Scheduler serializes access to core state. All public methods are safe
// to call from any goroutine (e.g. a Connection callback firing on its own
// goroutine); the submitted function bodies themselves never run
// concurrently with one another.
type Scheduler struct {
	q     *execqueue.ExecQueue
	clock mclock.Clock
}

// New creates a Scheduler driven by clock (use mclock.System{} in
// production, a *mclock.Simulated in tests that need deterministic timing).
func New(clock mclock.Clock) *Scheduler {
	return &Scheduler{q: execqueue.NewExecQueue(defaultCapacity), clock: clock}
}

// Clock returns the clock driving this scheduler.
func (s *Scheduler) Clock() mclock.Clock { return s.clock }

// Post queues fn to run on the scheduler's worker goroutine without
// blocking the caller. Use this to deliver a View's initial listener
// events a tick after addListener returns (spec.md §4.2, §9): queuing from
// within the registering call guarantees the events are observed strictly
// after addListener's own synchronous effects.
func (s *Scheduler) Post(fn func()) {
	if !s.q.Queue(fn) {
		// The queue is closed or saturated; drop silently like a closed
		// event loop would. The caller is not told that fn was dropped.
	}
}

// Do queues fn and blocks until it has run, returning once the scheduler's
// worker has executed it. This is how external callers (Connection message
// delivery, application API calls) hand mutations to the single-threaded
// core safely.
func (s *Scheduler) Do(fn func()) {
	done := make(chan struct{})
	ok := s.q.Queue(func() {
		fn()
		close(done)
	})
	if !ok {
		return
	}
	<-done
}

// Close stops accepting new work; previously queued work still runs to
// completion.
func (s *Scheduler) Close() {
	s.q.Quit()
}
