package reactive

import (
	"context"
	"sync"
)

// Future is the result of work that finishes later, possibly on another
// goroutine. It settles exactly once.
type Future[T any] struct {
	mu       sync.Mutex
	done     chan struct{}
	settled  bool
	value    T
	err      error
	handlers []func(T, error)
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Reject(err)
	return f
}

// Go runs fn on a new goroutine and settles the future with its result.
//
// Example:
//
//	user := reactive.NewAsync(rt, func(ctx context.Context) *reactive.Future[User] {
//	    id := userID.Get()
//	    return reactive.Go(ctx, func(ctx context.Context) (User, error) {
//	        return api.User(ctx, id)
//	    })
//	})
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			f.Reject(err)
			return
		}
		f.Resolve(v)
	}()
	return f
}

// Resolve settles the future with v. It reports false if the future had
// already settled.
func (f *Future[T]) Resolve(v T) bool {
	return f.settle(v, nil)
}

// Reject settles the future with err.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.value, f.err = v, err
	handlers := f.handlers
	f.handlers = nil
	close(f.done)
	f.mu.Unlock()

	for _, h := range handlers {
		h(v, err)
	}
	return true
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result blocks until the future settles or ctx is done.
func (f *Future[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// then calls fn once the future settles, immediately if it already has.
// fn runs on the settling goroutine.
func (f *Future[T]) then(fn func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.handlers = append(f.handlers, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}
