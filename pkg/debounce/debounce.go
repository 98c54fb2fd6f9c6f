// Package debounce coalesces bursts of calls into a single deferred execution.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays fn until no call has been made for the cooldown window.
//
// With immediate set, the first call of a burst runs fn right away and a
// trailing run happens only if more calls arrive during the cooldown.
type Debouncer struct {
	cooldown  time.Duration
	immediate bool
	fn        func()

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	pending    bool
}

// New returns a Debouncer running fn after cooldown.
func New(cooldown time.Duration, immediate bool, fn func()) *Debouncer {
	return &Debouncer{
		cooldown:  cooldown,
		immediate: immediate,
		fn:        fn,
	}
}

// Cooldown returns the configured window.
func (d *Debouncer) Cooldown() time.Duration {
	return d.cooldown
}

// Call requests an execution. Calls inside the window reset it.
func (d *Debouncer) Call() {
	d.mu.Lock()

	if d.timer == nil && d.immediate {
		d.schedule()
		d.mu.Unlock()
		d.fn()
		return
	}

	d.pending = true
	d.schedule()
	d.mu.Unlock()
}

// Cancel drops any pending execution.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
	d.pending = false
}

// Pending reports whether an execution is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil && d.pending
}

// schedule (re)arms the timer; must hold mu.
func (d *Debouncer) schedule() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	generation := d.generation
	d.timer = time.AfterFunc(d.cooldown, func() {
		d.fire(generation)
	})
}

func (d *Debouncer) fire(generation uint64) {
	d.mu.Lock()
	// a Call or Cancel raced with the timer
	if generation != d.generation {
		d.mu.Unlock()
		return
	}
	run := d.pending
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	if run {
		d.fn()
	}
}
