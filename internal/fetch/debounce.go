package fetch

import (
	"sync"
	"time"
)

// Debounced delays calls to fn until delay has passed without another call.
// Only the argument of the last call is delivered.
type Debounced[A any] struct {
	fn    func(A)
	delay time.Duration

	mu     sync.Mutex
	arg    A
	slot   timerSlot
	closed bool
}

// NewDebounced creates a Debounced. A non-positive delay means DefaultDelay.
func NewDebounced[A any](fn func(A), delay time.Duration) *Debounced[A] {
	return &Debounced[A]{
		fn:    fn,
		delay: durationOr(delay, DefaultDelay),
	}
}

// Call schedules fn(arg), replacing any call still waiting
func (d *Debounced[A]) Call(arg A) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.arg = arg
	d.slot.schedule(d.delay, d.fire)
}

// Cancel drops the waiting call, if any. Later calls still work.
func (d *Debounced[A]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slot.stop()
}

// Close drops the waiting call and ignores all later calls
func (d *Debounced[A]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.slot.stop()
}

func (d *Debounced[A]) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || !d.slot.claim(gen) {
		d.mu.Unlock()
		return
	}
	arg := d.arg
	var zero A
	d.arg = zero
	d.mu.Unlock()

	d.fn(arg)
}
