package mclock

import "time"

// Alarm sends a value on its channel when the clock reaches a scheduled
// deadline.
type Alarm struct {
	clock   Clock
	timer   ChanTimer
	ch      chan struct{}
	deadline AbsTime
	armed    bool
}

// NewAlarm creates an Alarm driven by clock.
func NewAlarm(clock Clock) *Alarm {
	return &Alarm{clock: clock, ch: make(chan struct{}, 1)}
}

// C returns the channel on which the alarm delivers its firing.
func (a *Alarm) C() <-chan struct{} {
	return a.ch
}

// Schedule arranges for the alarm to fire at the given absolute time. If a
// deadline is already scheduled for an earlier time, Schedule is a no-op;
// if one exists for a later time, it is replaced.
func (a *Alarm) Schedule(deadline AbsTime) {
	now := a.clock.Now()
	if a.armed && a.deadline > now && deadline >= a.deadline {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.deadline = deadline
	a.armed = true
	d := deadline - now
	if d < 0 {
		d = 0
	}
	// A simulated clock runs AfterFunc callbacks inside Run, so the firing
	// is already visible on C when Run returns.
	if sim, ok := a.clock.(*Simulated); ok {
		a.timer = sim.AfterFunc(time.Duration(d), func() {
			select {
			case a.ch <- struct{}{}:
			default:
			}
		})
		return
	}
	a.timer = a.clock.NewTimer(time.Duration(d))
	go a.wait(a.timer)
}

func (a *Alarm) wait(t ChanTimer) {
	if _, ok := <-t.C(); ok {
		select {
		case a.ch <- struct{}{}:
		default:
		}
	}
}

// Stop cancels any pending firing.
func (a *Alarm) Stop() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.armed = false
}
