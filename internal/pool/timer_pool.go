// Package pool keeps reusable timers for the short waits of the polling loops.
package pool

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer armed for d, reusing a pooled one when available.
//
// Return the timer with PutTimer once it is no longer read from.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer is ever put into the pool
		if t.Reset(d) {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// PutTimer stops t and returns it to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Poller paces a polling loop on a pooled timer. The interval is counted from
// the previous tick, so a slow poll does not cause a burst of catch-up ticks.
type Poller struct {
	interval time.Duration
	timer    *time.Timer
}

// NewPoller returns a Poller whose first tick comes one interval from now.
// Release it with Close.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: interval, timer: GetTimer(interval)}
}

// C returns the tick channel. Call Rearm after each receive.
func (p *Poller) C() <-chan time.Time { return p.timer.C }

// Rearm schedules the next tick one interval from now.
func (p *Poller) Rearm() { p.timer.Reset(p.interval) }

// Wait blocks until the next tick or until ctx is done, then re-arms.
// It returns ctx.Err() when the context ended the wait.
func (p *Poller) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.timer.C:
		p.Rearm()
		return nil
	}
}

// Close returns the timer to the pool. p must not be used afterwards.
func (p *Poller) Close() { PutTimer(p.timer) }
