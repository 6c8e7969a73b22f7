package fetch

import "time"

// DefaultDelay is the debounce delay used when none is configured
const DefaultDelay = 500 * time.Millisecond

// timerSlot owns at most one pending timer. Scheduling always stops the
// previous timer first. Every schedule bumps gen, so a callback that lost the
// race with stop can tell it has been superseded. Callers hold their own
// lock around every method.
type timerSlot struct {
	timer *time.Timer
	gen   uint64
}

// schedule replaces any pending timer with one that calls fn(gen) after d
func (s *timerSlot) schedule(d time.Duration, fn func(gen uint64)) {
	s.stop()
	gen := s.gen
	s.timer = time.AfterFunc(d, func() { fn(gen) })
}

// stop cancels the pending timer, if any, and invalidates its generation
func (s *timerSlot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// claim reports whether gen is the live timer and, if so, releases the slot
func (s *timerSlot) claim(gen uint64) bool {
	if s.timer == nil || gen != s.gen {
		return false
	}
	s.timer = nil
	return true
}

// pending reports whether a timer is waiting to fire
func (s *timerSlot) pending() bool {
	return s.timer != nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
