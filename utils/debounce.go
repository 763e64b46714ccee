package utils

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of triggers into a single delayed
// invocation of the most recently scheduled action. Scheduling while a
// timer is armed cancels the pending invocation, so only the last
// trigger inside the window survives.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule arms the debounce timer for action, cancelling any armed,
// not-yet-fired action. After Stop it does nothing.
//
// The action runs under the debouncer's lock: a timer that has already
// fired when Stop wins the lock is suppressed, and Stop cannot return
// while an invocation is in flight. Actions must not call back into
// the debouncer.
func (d *Debouncer) Schedule(action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.stopped {
			return
		}
		action()
	})
}

// Stop cancels any pending invocation and retires the debouncer. The
// owning session must call it on teardown so no timer fires after the
// map view is gone.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
