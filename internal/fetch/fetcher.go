// Package fetch provides debounced, cancel-safe data loading and autosave primitives.
//
// A Fetcher keeps the last successfully loaded value of a remote resource and
// refreshes it when its target changes, on a polling schedule, or on demand.
// OnChange runs an effect once the values it observes have settled, and
// Debounced delays a call until the caller stops repeating it.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed primitive
	ErrClosed = errors.New("fetch: closed")
	// ErrSuperseded is returned when a newer request replaced this one before it finished
	ErrSuperseded = errors.New("fetch: superseded by a newer request")
)

// GetFunc reads the resource at url
type GetFunc[T any] func(ctx context.Context, url string) (T, error)

// Options configures a Fetcher
type Options[T any] struct {
	DebounceDelay time.Duration // Quiet period after a target change; defaults to DefaultDelay
	RefreshTime   time.Duration // Polling interval; zero disables polling
	Callback      func(T)       // Called with every successfully loaded value
	Logger        *slog.Logger
}

// State is a snapshot of a Fetcher
type State[T any] struct {
	Loading bool
	Err     error
	Data    T
	Fetched bool // Data holds a loaded value
}

// Fetcher loads a resource identified by a URL and a dependency list.
//
// Changing the target cancels any pending fetch or poll and schedules a new
// fetch after the debounce delay. Every request carries a generation number;
// a response whose generation is no longer the latest is discarded, and the
// superseded request's context is cancelled. Failed fetches keep the
// previously loaded data.
type Fetcher[T any] struct {
	get    GetFunc[T]
	opts   Options[T]
	logger *slog.Logger

	// base is cancelled by Close and parents every scheduled request
	base   context.Context
	cancel context.CancelFunc

	// callbackMu serializes callbacks with Close
	callbackMu sync.Mutex

	mu        sync.Mutex
	url       string
	deps      []any
	primed    bool
	debounce  timerSlot
	poll      timerSlot
	reqID     uint64
	cancelReq context.CancelFunc
	state     State[T]
	closed    bool
}

// New creates a Fetcher. Nothing is fetched until Update sets a target.
func New[T any](get GetFunc[T], opts Options[T]) *Fetcher[T] {
	opts.DebounceDelay = durationOr(opts.DebounceDelay, DefaultDelay)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, cancel := context.WithCancel(context.Background())

	return &Fetcher[T]{
		get:    get,
		opts:   opts,
		logger: logger,
		base:   base,
		cancel: cancel,
		state:  State[T]{Loading: true},
	}
}

// Update sets the fetch target. An empty url means "do not fetch".
// The first call always schedules a fetch; later calls only when url or any
// dependency differs from the previous call.
func (f *Fetcher[T]) Update(url string, deps ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	if f.primed && f.url == url && sameDeps(f.deps, deps) {
		return
	}

	f.primed = true
	f.url = url
	f.deps = append([]any(nil), deps...)

	// The previous target's schedule and in-flight request are void
	f.debounce.stop()
	f.poll.stop()
	f.supersedeLocked()

	if url == "" {
		return
	}

	f.debounce.schedule(f.opts.DebounceDelay, func(gen uint64) {
		f.fire(&f.debounce, gen)
	})
}

// Refetch loads the current target immediately, bypassing the debounce delay.
// It returns the fetch error, or nil when there is no target.
func (f *Fetcher[T]) Refetch(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.debounce.stop()
	if f.url == "" {
		f.mu.Unlock()
		return nil
	}
	req := f.beginLocked(ctx)
	f.mu.Unlock()

	return f.finish(req)
}

// State returns a snapshot of the current state
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Close cancels pending timers and the in-flight request. No state changes,
// callbacks or requests happen after Close returns.
func (f *Fetcher[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.debounce.stop()
	f.poll.stop()
	f.supersedeLocked()
	f.cancel()
	f.mu.Unlock()

	// Wait out a callback that started before closed was set
	f.callbackMu.Lock()
	f.callbackMu.Unlock()
}

// fire runs a scheduled fetch if its timer is still the live one
func (f *Fetcher[T]) fire(slot *timerSlot, gen uint64) {
	f.mu.Lock()
	if f.closed || !slot.claim(gen) {
		f.mu.Unlock()
		return
	}
	req := f.beginLocked(f.base)
	f.mu.Unlock()

	if err := f.finish(req); err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, ErrClosed) {
		f.logger.Debug("scheduled fetch failed", "url", req.url, "error", err)
	}
}

// request is one GET of the current target
type request struct {
	id     uint64
	url    string
	ctx    context.Context
	cancel context.CancelFunc
}

// beginLocked registers a request for the current target. The target and
// the request id are read in the same critical section, so a concurrent
// Update always supersedes the request.
func (f *Fetcher[T]) beginLocked(ctx context.Context) request {
	// A running poll is replaced by this fetch's own schedule
	f.poll.stop()
	f.supersedeLocked()

	f.reqID++
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancelReq = cancel

	// Background polling must not flicker the loading flag
	if f.opts.RefreshTime <= 0 {
		f.state.Loading = true
	}
	f.state.Err = nil

	return request{id: f.reqID, url: f.url, ctx: reqCtx, cancel: cancel}
}

// finish performs req and stores its outcome if req is still the latest request
func (f *Fetcher[T]) finish(req request) error {
	data, err := f.get(req.ctx, req.url)
	req.cancel()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if req.id != f.reqID {
		f.mu.Unlock()
		return ErrSuperseded
	}

	f.cancelReq = nil
	f.state.Loading = false
	if err != nil {
		f.state.Err = err
	} else {
		f.state.Data = data
		f.state.Fetched = true
	}

	if f.opts.RefreshTime > 0 {
		f.poll.schedule(f.opts.RefreshTime, func(gen uint64) {
			f.fire(&f.poll, gen)
		})
	}
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if f.opts.Callback == nil {
		return nil
	}

	f.callbackMu.Lock()
	defer f.callbackMu.Unlock()

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}

	f.opts.Callback(data)
	return nil
}

// supersedeLocked invalidates the in-flight request, if any
func (f *Fetcher[T]) supersedeLocked() {
	f.reqID++
	if f.cancelReq != nil {
		f.cancelReq()
		f.cancelReq = nil
	}
}

// sameDeps compares dependency lists element-wise by value
func sameDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
