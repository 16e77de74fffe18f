package suggest

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Handle is a scheduled call that has not necessarily run yet.
type Handle struct {
	timer *clock.Timer
}

// Cancel stops the call if it has not fired. It is safe on a nil Handle.
func (h *Handle) Cancel() bool {
	if h == nil || h.timer == nil {
		return false
	}
	return h.timer.Stop()
}

// Schedule runs fn once after delay on c.
func Schedule(c clock.Clock, delay time.Duration, fn func()) *Handle {
	return &Handle{timer: c.AfterFunc(delay, fn)}
}

// Debouncer runs only the most recent of a burst of Trigger calls, once the
// burst has been quiet for the configured delay.
type Debouncer struct {
	clock clock.Clock
	delay time.Duration

	mu      sync.Mutex
	gen     uint64
	pending *Handle
}

func NewDebouncer(c clock.Clock, delay time.Duration) *Debouncer {
	if c == nil {
		c = clock.New()
	}
	return &Debouncer{clock: c, delay: delay}
}

// Trigger cancels any pending call and schedules fn. A call whose timer had
// already fired when it was superseded is still dropped.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending.Cancel()
	d.gen++
	gen := d.gen
	d.pending = Schedule(d.clock, d.delay, func() {
		d.mu.Lock()
		current := gen == d.gen
		if current {
			d.pending = nil
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop cancels the pending call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending.Cancel()
	d.pending = nil
	d.gen++
}
