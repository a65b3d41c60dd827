package reactive

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestWritesInOneTurnShareABatch(t *testing.T) {
	rt := newTestRuntime()
	a := NewSource(rt, 0)
	b := NewSource(rt, 0)

	runs := 0
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = a.Get() + b.Get()
			runs++
			return nil
		})
	})

	a.Set(1)
	batch := rt.currentBatch
	b.Set(2)
	if rt.currentBatch != batch {
		t.Error("expected both writes to land in the same batch")
	}

	flush(t, rt)
	if runs != 2 {
		t.Errorf("expected a single re-run, got %d runs", runs-1)
	}
	if len(rt.batches) != 0 {
		t.Errorf("expected batch to retire, %d left", len(rt.batches))
	}
}

func TestFlushSyncRunsCallback(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 0)
	var seen []int
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			seen = append(seen, s.Get())
			return nil
		})
	})

	if err := rt.FlushSync(func() { s.Set(7) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 2 || seen[0] != 0 || seen[1] != 7 {
		t.Errorf("expected [0 7], got %v", seen)
	}
}

func TestFlushSyncValue(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 1)
	v, err := FlushSyncValue(rt, func() int {
		s.Set(3)
		return s.Peek() * 2
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 6 {
		t.Errorf("expected 6, got %d", v)
	}
}

func TestQueueMicrotaskOrder(t *testing.T) {
	rt := newTestRuntime()
	var order []int
	rt.QueueMicrotask(func() {
		order = append(order, 1)
		rt.QueueMicrotask(func() { order = append(order, 3) })
	})
	rt.QueueMicrotask(func() { order = append(order, 2) })

	flush(t, rt)
	if fmt.Sprint(order) != "[1 2 3]" {
		t.Errorf("expected [1 2 3], got %v", order)
	}
}

func TestUserEffectWriteIsSeenInSameFlush(t *testing.T) {
	rt := newTestRuntime()
	input := NewSource(rt, 1)
	derived := NewSource(rt, 0)

	var seen []int
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			derived.Set(input.Get() * 10)
			return nil
		})
		rt.Effect(func() Cleanup {
			seen = append(seen, derived.Get())
			return nil
		})
	})

	flush(t, rt)
	input.Set(2)
	flush(t, rt)

	if got := seen[len(seen)-1]; got != 20 {
		t.Errorf("expected last observed value 20, got %d (all: %v)", got, seen)
	}
}

func TestLoopGuardIsFatal(t *testing.T) {
	var codes []string
	rt := newTestRuntime(
		WithMaxFlushIterations(20),
		WithDiagnosticHandler(func(d *Diagnostic) { codes = append(codes, d.Code) }),
	)
	n := NewSource(rt, 0)
	runs := 0
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			runs++
			n.Set(n.Get() + 1)
			return nil
		})
	})

	err := rt.FlushSync(nil)
	var d *Diagnostic
	if !stderrors.As(err, &d) {
		t.Fatalf("expected a diagnostic error, got %v", err)
	}
	if d.Code != "E101" {
		t.Errorf("expected E101, got %s", d.Code)
	}
	if runs < 20 || runs > 22 {
		t.Errorf("expected the guard to trip after about 20 runs, got %d", runs)
	}
	if len(codes) != 1 || codes[0] != "E101" {
		t.Errorf("expected one E101 diagnostic, got %v", codes)
	}
	if len(rt.batches) != 0 || rt.currentBatch != nil {
		t.Error("expected scheduler state to be reset after a fatal error")
	}
}

func TestLoopGuardListsWriteSitesInDevMode(t *testing.T) {
	rt := newTestRuntime(WithMaxFlushIterations(10), WithDevMode(true))
	n := NewSource(rt, 0)
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			n.Set(n.Get() + 1)
			return nil
		})
	})

	err := rt.FlushSync(nil)
	var d *Diagnostic
	if !stderrors.As(err, &d) {
		t.Fatalf("expected a diagnostic error, got %v", err)
	}
	if len(d.Sites) != 1 {
		t.Fatalf("expected one write site, got %d", len(d.Sites))
	}
	if d.Sites[0].Line == 0 || d.Sites[0].File == "" {
		t.Errorf("expected a file and line, got %+v", d.Sites[0])
	}
}

func TestTimeTravelKeepsBatchesIsolated(t *testing.T) {
	rt := newTestRuntime()
	a := NewSource(rt, 1)
	x := NewSource(rt, 10)

	var futures []*Future[int]
	var logs []string
	rt.Root(func() {
		NewAsync(rt, func(ctx context.Context) *Future[int] {
			_ = a.Get()
			f := NewFuture[int]()
			futures = append(futures, f)
			return f
		})
		rt.RenderEffect(func() Cleanup {
			logs = append(logs, fmt.Sprintf("%d,%d", a.Get(), x.Get()))
			return nil
		})
	})
	futures[0].Resolve(0)
	flush(t, rt)

	// Batch A waits on the async value.
	a.Set(2)
	flush(t, rt)
	if len(rt.batches) != 1 {
		t.Fatalf("expected batch A to stay pending, got %d batches", len(rt.batches))
	}

	// Batch B commits on its own and must not see A's write.
	x.Set(20)
	flush(t, rt)

	if a.Peek() != 2 {
		t.Errorf("expected live value of a to be restored to 2, got %d", a.Peek())
	}

	futures[1].Resolve(1)
	flush(t, rt)

	want := []string{"1,10", "1,20", "2,20"}
	if fmt.Sprint(logs) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, logs)
	}
	if len(rt.batches) != 0 {
		t.Errorf("expected all batches to retire, %d left", len(rt.batches))
	}
}

type recordingObserver struct {
	NopObserver
	started, committed, deferred int
	effects                      map[EffectKind]int
	diagnostics                  []string
}

func (o *recordingObserver) BatchStarted(BatchInfo) { o.started++ }
func (o *recordingObserver) BatchCommitted(BatchInfo, time.Duration) {
	o.committed++
}
func (o *recordingObserver) BatchDeferred(BatchInfo) { o.deferred++ }
func (o *recordingObserver) EffectRan(kind EffectKind, _ uint64) {
	if o.effects == nil {
		o.effects = make(map[EffectKind]int)
	}
	o.effects[kind]++
}
func (o *recordingObserver) Diagnostic(d *Diagnostic) { o.diagnostics = append(o.diagnostics, d.Code) }

func TestObserverReceivesSchedulerEvents(t *testing.T) {
	obs := &recordingObserver{}
	rt := newTestRuntime(WithObserver(obs))
	s := NewSource(rt, 0)
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			_ = s.Get()
			return nil
		})
	})
	flush(t, rt)
	s.Set(1)
	flush(t, rt)

	if obs.started != 2 {
		t.Errorf("expected 2 batches started, got %d", obs.started)
	}
	if obs.committed != 2 {
		t.Errorf("expected 2 batches committed, got %d", obs.committed)
	}
	if obs.effects[KindUser] != 2 {
		t.Errorf("expected 2 user effect runs, got %d", obs.effects[KindUser])
	}
	if obs.effects[KindRoot] != 1 {
		t.Errorf("expected 1 root run, got %d", obs.effects[KindRoot])
	}
}

func TestFlushSyncInsideEffectWarns(t *testing.T) {
	obs := &recordingObserver{}
	rt := newTestRuntime(WithObserver(obs))
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			_ = rt.FlushSync(nil)
			return nil
		})
	})
	flush(t, rt)

	if len(obs.diagnostics) != 1 || obs.diagnostics[0] != "W203" {
		t.Errorf("expected W203, got %v", obs.diagnostics)
	}
}
