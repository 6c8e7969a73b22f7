package fetch

import (
	"context"
	"sync"
	"time"
)

// OnChange runs an effect once the values passed to Observe stop changing.
//
// The first Observe records a baseline. Each later Observe whose values
// differ from the previous call cancels any pending run and schedules the
// effect after the delay, so a burst of changes produces one run with the
// final values in effect. The effect reports its own errors; OnChange never
// retries.
type OnChange struct {
	effect func(ctx context.Context)
	delay  time.Duration

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	deps     []any
	observed bool
	slot     timerSlot
	closed   bool
}

// NewOnChange creates an OnChange. A non-positive delay means DefaultDelay.
// The context handed to effect is cancelled by Close.
func NewOnChange(effect func(ctx context.Context), delay time.Duration) *OnChange {
	base, cancel := context.WithCancel(context.Background())
	return &OnChange{
		effect: effect,
		delay:  durationOr(delay, DefaultDelay),
		base:   base,
		cancel: cancel,
	}
}

// Observe reports the current values of the watched state
func (o *OnChange) Observe(deps ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	if !o.observed {
		o.observed = true
		o.deps = append([]any(nil), deps...)
		return
	}
	if sameDeps(o.deps, deps) {
		return
	}

	o.deps = append([]any(nil), deps...)
	o.slot.schedule(o.delay, o.fire)
}

// Rebase records deps as the current values without scheduling a run, for
// state that changed at its source rather than by an edit. A pending run is
// kept.
func (o *OnChange) Rebase(deps ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.observed = true
	o.deps = append([]any(nil), deps...)
}

// Pending reports whether a run is scheduled
func (o *OnChange) Pending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slot.pending()
}

// Flush runs a scheduled effect now instead of waiting for the delay.
// It does nothing when no run is pending.
func (o *OnChange) Flush() {
	o.mu.Lock()
	if o.closed || !o.slot.pending() {
		o.mu.Unlock()
		return
	}
	o.slot.stop()
	o.mu.Unlock()

	o.effect(o.base)
}

// Close cancels any pending run and the context of a running one
func (o *OnChange) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	o.slot.stop()
	o.cancel()
}

func (o *OnChange) fire(gen uint64) {
	o.mu.Lock()
	if o.closed || !o.slot.claim(gen) {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.effect(o.base)
}
