package reactive

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/vango-dev/reactor/internal/errors"
)

const (
	defaultMaxFlushIterations = 1000
	defaultDispatchBuffer     = 256
)

// ErrStale is the cancellation cause of async work whose owning effect
// re-ran or was destroyed. It is never routed to a boundary.
var ErrStale = stderrors.New("reactive: stale reaction")

// Runtime owns a reactive graph and its scheduler. Everything except
// Dispatch, Call and Future settlement must be called from the goroutine
// that drives the runtime (the one calling Run, Tick or FlushSync).
type Runtime struct {
	logger        *slog.Logger
	observers     []Observer
	onDiagnostic  func(*Diagnostic)
	maxFlush      int
	dev           bool
	dispatchLimit int

	nextID uint64

	// Active reaction state, saved and restored around every run.
	frame        trackFrame
	untracking   bool
	activeEffect *node

	writeVersion uint64
	readVersion  uint64
	epoch        uint64

	currentBatch  *Batch
	batches       []*Batch
	queuedRoots   []*node
	lastScheduled *node
	flushing      bool
	flushingSync  bool

	microtasks []func()
	roots      []*node

	dispatchCh chan func()
	mu         sync.Mutex
	posted     []func()
	wake       chan struct{}
}

// New creates a runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		logger:        slog.Default(),
		maxFlush:      defaultMaxFlushIterations,
		dispatchLimit: defaultDispatchBuffer,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.dispatchCh = make(chan func(), rt.dispatchLimit)
	return rt
}

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Dev reports whether development diagnostics are enabled.
func (rt *Runtime) Dev() bool { return rt.dev }

func (rt *Runtime) newID() uint64 {
	rt.nextID++
	return rt.nextID
}

// QueueMicrotask schedules fn to run after the current synchronous work,
// before control returns to the event loop.
func (rt *Runtime) QueueMicrotask(fn func()) {
	rt.microtasks = append(rt.microtasks, fn)
}

// runMicrotasks drains the microtask queue and the internal post queue
// until both are empty.
func (rt *Runtime) runMicrotasks() {
	for {
		rt.takePosted()
		if len(rt.microtasks) == 0 {
			return
		}
		tasks := rt.microtasks
		rt.microtasks = nil
		for _, fn := range tasks {
			fn()
		}
	}
}

// post queues fn from any goroutine. Unlike Dispatch it never drops work;
// it carries continuations the runtime itself is waiting for.
func (rt *Runtime) post(fn func()) {
	rt.mu.Lock()
	rt.posted = append(rt.posted, fn)
	rt.mu.Unlock()
	select {
	case rt.wake <- struct{}{}:
	default:
	}
}

// takePosted moves posted callbacks onto the microtask queue.
func (rt *Runtime) takePosted() {
	rt.mu.Lock()
	posted := rt.posted
	rt.posted = nil
	rt.mu.Unlock()
	rt.microtasks = append(rt.microtasks, posted...)
}

func (rt *Runtime) hasWork() bool {
	if len(rt.microtasks) > 0 || len(rt.queuedRoots) > 0 {
		return true
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.posted) > 0
}

// Dispatch queues fn to run on the runtime goroutine. It is safe to call
// from any goroutine. When the queue is full the callback is dropped and a
// W204 diagnostic is reported on the runtime goroutine.
//
// Example:
//
//	go func() {
//	    user, err := fetchUser(ctx, id)
//	    rt.Dispatch(func() {
//	        if err != nil {
//	            lastErr.Set(err)
//	            return
//	        }
//	        current.Set(user)
//	    })
//	}()
func (rt *Runtime) Dispatch(fn func()) {
	select {
	case rt.dispatchCh <- fn:
	default:
		// Reported on the runtime goroutine, like every other diagnostic.
		capacity := cap(rt.dispatchCh)
		rt.post(func() {
			rt.warn("W204", fmt.Sprintf("capacity %d", capacity))
		})
	}
}

// Call runs fn on the runtime goroutine, flushes the writes it made and
// returns fn's error, or the error of the flush.
func (rt *Runtime) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	rt.post(func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				if f, ok := r.(fatalError); ok {
					rt.resetScheduler()
					err = f.err
				} else {
					err = recoveredError(r)
				}
			}
			done <- err
		}()
		err = fn()
		if ferr := rt.FlushSync(nil); err == nil {
			err = ferr
		}
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the runtime until ctx is cancelled or an unhandled error
// escapes a flush. Dispatched callbacks, posted continuations and the
// microtasks they queue are processed on the calling goroutine.
func (rt *Runtime) Run(ctx context.Context) error {
	for {
		if err := rt.Tick(); err != nil {
			return err
		}
		select {
		case fn := <-rt.dispatchCh:
			rt.executeDispatch(fn)
		case <-rt.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// executeDispatch runs a dispatched function, recovering from panics the way
// an event handler would.
func (rt *Runtime) executeDispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(fatalError); ok {
				panic(f)
			}
			rt.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Tick processes everything that is ready without blocking: queued
// dispatches, posted continuations, microtasks and the flushes they
// trigger. It returns the error of an unhandled failure.
func (rt *Runtime) Tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(fatalError); ok {
				rt.resetScheduler()
			}
			err = recoveredError(r)
		}
	}()
	for {
		select {
		case fn := <-rt.dispatchCh:
			rt.executeDispatch(fn)
			continue
		default:
		}
		if !rt.hasWork() {
			return nil
		}
		rt.runMicrotasks()
		if len(rt.queuedRoots) > 0 {
			rt.flushEffects()
		}
	}
}

// fatalError carries an error no boundary handled up to the entry point
// that started the flush.
type fatalError struct {
	err error
}

func (f fatalError) Error() string { return f.err.Error() }
func (f fatalError) Unwrap() error { return f.err }

func recoveredError(r any) error {
	switch v := r.(type) {
	case fatalError:
		return v.err
	case error:
		return v
	default:
		return fmt.Errorf("reactive: panic: %v", v)
	}
}

// panicError converts a recovered value into an error.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("reactive: panic: %v", r)
}

// isMisuse reports whether r is a programmer-misuse diagnostic, which is
// never routed to a boundary.
func isMisuse(r any) bool {
	d, ok := r.(*errors.Error)
	return ok && d.Category == errors.CategoryMisuse
}
