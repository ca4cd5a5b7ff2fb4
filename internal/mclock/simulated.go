package mclock

import (
	"container/heap"
	"sync"
	"time"
)

// Simulated implements Clock for tests that need deterministic, manually
// advanced time instead of sleeping for real.
type Simulated struct {
	mu     sync.RWMutex
	now    AbsTime
	timers simTimerHeap
	cond   *sync.Cond
}

var _ Clock = (*Simulated)(nil)

func (s *Simulated) init() {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
}

// Run advances the clock by d, firing any timers that become due.
func (s *Simulated) Run(d time.Duration) {
	s.mu.Lock()
	s.init()
	end := s.now + AbsTime(d)
	var fired []*simTimer
	for len(s.timers) > 0 && s.timers[0].at <= end {
		t := heap.Pop(&s.timers).(*simTimer)
		fired = append(fired, t)
	}
	s.now = end
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, t := range fired {
		t.fire()
	}
}

// Now returns the current simulated time.
func (s *Simulated) Now() AbsTime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// ActiveTimers returns the number of timers not yet fired or stopped.
func (s *Simulated) ActiveTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// WaitForTimers blocks until at least n timers are pending.
func (s *Simulated) WaitForTimers(n int) {
	s.mu.Lock()
	s.init()
	for len(s.timers) < n {
		s.cond.Wait()
	}
	s.mu.Unlock()
}

// Sleep blocks the calling goroutine until the simulated clock advances by d.
func (s *Simulated) Sleep(d time.Duration) {
	<-s.After(d)
}

// After returns a channel that fires once the clock has advanced by d.
func (s *Simulated) After(d time.Duration) <-chan AbsTime {
	ch := make(chan AbsTime, 1)
	s.addTimer(d, func(at AbsTime) { ch <- at })
	return ch
}

// NewTimer returns a ChanTimer driven by the simulated clock.
func (s *Simulated) NewTimer(d time.Duration) ChanTimer {
	ch := make(chan AbsTime, 1)
	t := s.addTimer(d, func(at AbsTime) { ch <- at })
	t.ch = ch
	return t
}

// AfterFunc schedules fn to run once the clock advances by d and returns a
// handle that can be used to cancel it before it fires.
func (s *Simulated) AfterFunc(d time.Duration, fn func()) *simTimer {
	return s.addTimer(d, func(AbsTime) { fn() })
}

func (s *Simulated) addTimer(d time.Duration, fn func(AbsTime)) *simTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	t := &simTimer{s: s, at: s.now + AbsTime(d), fn: fn}
	heap.Push(&s.timers, t)
	s.cond.Broadcast()
	return t
}

func (s *Simulated) removeTimer(t *simTimer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, other := range s.timers {
		if other == t {
			heap.Remove(&s.timers, i)
			return true
		}
	}
	return false
}

type simTimer struct {
	s    *Simulated
	at   AbsTime
	fn   func(AbsTime)
	ch   chan AbsTime
	done bool
}

func (t *simTimer) fire() {
	t.done = true
	t.fn(t.at)
}

// Stop cancels the timer. It returns true iff the timer was still pending.
func (t *simTimer) Stop() bool {
	if t.done {
		return false
	}
	return t.s.removeTimer(t)
}

// Reset reschedules the timer to fire after d, relative to the clock's
// current time, cancelling any pending firing first.
func (t *simTimer) Reset(d time.Duration) {
	t.s.removeTimer(t)
	t.done = false
	t.s.mu.Lock()
	t.at = t.s.now + AbsTime(d)
	heap.Push(&t.s.timers, t)
	t.s.cond.Broadcast()
	t.s.mu.Unlock()
}

func (t *simTimer) C() <-chan AbsTime { return t.ch }

type simTimerHeap []*simTimer

func (h simTimerHeap) Len() int            { return len(h) }
func (h simTimerHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h simTimerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *simTimerHeap) Push(x interface{}) { *h = append(*h, x.(*simTimer)) }
func (h *simTimerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
