package reactive

import (
	"fmt"

	"github.com/vango-dev/reactor/internal/errors"
)

// flushEffects processes batches until no roots are queued. Every pass is
// one iteration of the loop guard.
func (rt *Runtime) flushEffects() {
	wasFlushing := rt.flushing
	rt.flushing = true
	defer func() {
		rt.flushing = wasFlushing
		rt.lastScheduled = nil
	}()

	iterations, count := 0, 0
	for len(rt.queuedRoots) > 0 {
		b := rt.ensureBatch()
		iterations++
		if count++; count > rt.maxFlush {
			count = 0
			rt.loopGuard(b)
		}
		b.process()
	}
	for _, o := range rt.observers {
		o.FlushCompleted(iterations)
	}
}

// loopGuard reports E101 and hands it to the boundary of the effect that
// was scheduled last. Without one the error is fatal.
func (rt *Runtime) loopGuard(b *Batch) {
	d := errors.New("E101").
		WithDetail(fmt.Sprintf("more than %d consecutive flush iterations; an effect keeps writing state it depends on", rt.maxFlush))
	if rt.dev {
		var locs []errors.Location
		for _, s := range b.sites() {
			locs = append(locs, errors.Location{File: s.file, Line: s.line, Function: s.fn})
		}
		d.WithSites(locs)
	}
	rt.report(d)

	e := rt.lastScheduled
	if e == nil {
		panic(fatalError{err: d})
	}
	rt.invokeBoundary(d, e)
}

// flushQueued runs the dirty effects of a bucket in order. A user effect
// that writes state stops the pass; the rest are rescheduled so that they
// observe the write.
func (rt *Runtime) flushQueued(effects []*node) {
	for i, e := range effects {
		if e.f&(flagDestroyed|flagInert) != 0 || !rt.isDirty(e) {
			continue
		}
		wv := rt.writeVersion
		rt.updateEffect(e)

		if e.deps == nil && e.first == nil && e.nodesStart == nil && e.transition == nil {
			if e.teardown == nil {
				unlinkEffect(e)
				e.next, e.prev = nil, nil
			} else {
				e.efn = nil
			}
		}

		if rt.writeVersion > wv && e.f&flagUserEffect != 0 {
			for _, rest := range effects[i+1:] {
				rt.scheduleEffect(rest)
			}
			return
		}
	}
}

// FlushSync runs fn (if any) and then synchronously processes every queued
// microtask and batch until the runtime is idle. It returns the error of
// an unhandled failure; misuse diagnostics raised during the flush are
// returned as well.
func (rt *Runtime) FlushSync(fn func()) (err error) {
	if rt.flushing && rt.activeEffect != nil {
		rt.warn("W203", "")
	}
	wasSync := rt.flushingSync
	rt.flushingSync = true
	defer func() {
		rt.flushingSync = wasSync
		if r := recover(); r != nil {
			if _, ok := r.(fatalError); ok {
				rt.resetScheduler()
			}
			err = recoveredError(r)
		}
	}()

	if fn != nil {
		rt.flushEffects()
		fn()
	}
	for {
		rt.runMicrotasks()
		if len(rt.queuedRoots) == 0 {
			if b := rt.currentBatch; b != nil {
				b.flush()
			}
			if len(rt.queuedRoots) == 0 && !rt.hasWork() {
				rt.lastScheduled = nil
				return nil
			}
		}
		rt.flushEffects()
	}
}

// FlushSyncValue is FlushSync for a function with a result.
func FlushSyncValue[T any](rt *Runtime, fn func() T) (T, error) {
	var v T
	err := rt.FlushSync(func() { v = fn() })
	return v, err
}

// resetScheduler drops queued work after a fatal error.
func (rt *Runtime) resetScheduler() {
	rt.queuedRoots = nil
	rt.currentBatch = nil
	rt.batches = nil
	rt.lastScheduled = nil
	rt.flushing = false
}
