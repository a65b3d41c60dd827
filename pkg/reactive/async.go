package reactive

import (
	"context"
	stderrors "errors"
)

// Async is a value produced by asynchronous work that depends on other
// signals. Each time a dependency changes, the work starts again and the
// previous run is cancelled with cause ErrStale.
//
// While a run is outstanding, the batch that started it holds back its
// effects, or, inside a boundary that is showing its placeholder, the
// boundary absorbs the wait instead.
type Async[T any] struct {
	rt      *Runtime
	n       *node
	effect  *node
	pending int
}

// NewAsync creates an async value owned by the active effect. fn runs
// tracked; the future it returns supplies the value.
func NewAsync[T any](rt *Runtime, fn func(ctx context.Context) *Future[T], opts ...SignalOption) *Async[T] {
	if rt.activeEffect == nil {
		rt.misuse("E107", "")
	}
	var zero T
	a := &Async[T]{rt: rt, n: rt.newSource(zero, applySignalOptions(opts))}
	a.effect = rt.createEffect(KindAsync.flags(), func() Cleanup {
		return a.start(fn)
	}, true)
	return a
}

func (a *Async[T]) start(fn func(ctx context.Context) *Future[T]) Cleanup {
	rt := a.rt
	e := rt.activeEffect

	ctx, cancel := context.WithCancelCause(context.Background())
	e.cancel = cancel
	fut := fn(ctx)
	if fut == nil {
		cancel(nil)
		return nil
	}

	b := e.b
	batch := rt.ensureBatch()
	absorbed := b != nil && b.isPending()
	if b != nil {
		b.updatePendingCount(1)
	}
	if !absorbed {
		batch.increment()
	}
	a.pending++

	settled := false
	finish := func(v T, err error) {
		if settled {
			return
		}
		settled = true
		a.pending--
		a.settle(e, batch, b, absorbed, v, err)
	}
	fut.then(func(v T, err error) {
		rt.post(func() { finish(v, err) })
	})

	return func() {
		cancel(ErrStale)
		if !settled {
			rt.QueueMicrotask(func() {
				var zero T
				finish(zero, ErrStale)
			})
		}
	}
}

// settle writes the outcome of a run inside the batch that started it and
// releases the run's hold on the batch and the boundary.
func (a *Async[T]) settle(e *node, batch *Batch, b *Boundary, absorbed bool, v T, err error) {
	rt := a.rt
	prev := rt.currentBatch
	alive := rt.hasBatch(batch)
	if alive {
		rt.currentBatch = batch
	}

	if !stderrors.Is(err, ErrStale) && e.f&flagDestroyed == 0 {
		if err != nil {
			rt.internalFail(a.n, err)
		} else {
			rt.internalSet(a.n, v, 1)
		}
	}
	if b != nil {
		b.updatePendingCount(-1)
	}
	if !absorbed && alive {
		batch.decrement()
	}
	if cur := rt.currentBatch; cur != nil {
		cur.flush()
	}
	if prev != nil && prev != rt.currentBatch && rt.hasBatch(prev) {
		rt.currentBatch = prev
	}
}

// Get returns the latest settled value and subscribes the running
// reaction. If the last run failed, Get panics with its error.
func (a *Async[T]) Get() T {
	a.rt.track(a.n)
	if a.n.f&flagError != 0 {
		panic(a.n.err)
	}
	return as[T](a.n.v)
}

// TryGet returns the latest settled value or the error of the last run.
func (a *Async[T]) TryGet() (T, error) {
	a.rt.track(a.n)
	if a.n.f&flagError != 0 {
		var zero T
		return zero, a.n.err
	}
	return as[T](a.n.v), nil
}

// Pending reports whether a run is outstanding. It is not reactive.
func (a *Async[T]) Pending() bool { return a.pending > 0 }

// Effect returns the async effect driving the value.
func (a *Async[T]) Effect() *Effect { return (*Effect)(a.effect) }
