package reactive

import (
	"context"
	stderrors "errors"
	"testing"
	"time"
)

func TestDispatchDropsWhenFull(t *testing.T) {
	var codes []string
	rt := newTestRuntime(
		WithDispatchBuffer(1),
		WithDiagnosticHandler(func(d *Diagnostic) { codes = append(codes, d.Code) }),
	)
	ran := 0
	rt.Dispatch(func() { ran++ })
	rt.Dispatch(func() { ran++ })

	if len(codes) != 0 {
		t.Errorf("expected the warning to wait for the runtime goroutine, got %v", codes)
	}
	if err := rt.Tick(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ran != 1 {
		t.Errorf("expected one callback to survive, got %d", ran)
	}
	if len(codes) != 1 || codes[0] != "W204" {
		t.Errorf("expected one W204, got %v", codes)
	}
}

func TestTickRunsDispatchAndFlush(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 0)
	var seen []int
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			seen = append(seen, s.Get())
			return nil
		})
	})
	flush(t, rt)

	rt.Dispatch(func() { s.Set(3) })
	if err := rt.Tick(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(seen) != 2 || seen[1] != 3 {
		t.Errorf("expected [0 3], got %v", seen)
	}
}

func TestDispatchPanicIsRecovered(t *testing.T) {
	rt := newTestRuntime()
	after := false
	rt.Dispatch(func() { panic("handler bug") })
	rt.Dispatch(func() { after = true })

	if err := rt.Tick(); err != nil {
		t.Fatalf("expected the panic to be contained, got %v", err)
	}
	if !after {
		t.Error("expected later callbacks to still run")
	}
}

func TestRunAndCall(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 0)
	double := NewComputed(rt, func() int { return s.Get() * 2 })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	if err := rt.Call(callCtx, func() error {
		s.Set(21)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got int
	if err := rt.Call(callCtx, func() error {
		got = double.Get()
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	want := stderrors.New("rejected")
	if err := rt.Call(callCtx, func() error { return want }); !stderrors.Is(err, want) {
		t.Errorf("expected the callback error, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCallRespectsContext(t *testing.T) {
	rt := newTestRuntime()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rt.Call(ctx, func() error { return nil })
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled without a running loop, got %v", err)
	}
}

func TestCallReturnsFatalFlushError(t *testing.T) {
	rt := newTestRuntime(WithMaxFlushIterations(5))
	n := NewSource(rt, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	err := rt.Call(callCtx, func() error {
		rt.Root(func() {
			rt.Effect(func() Cleanup {
				n.Set(n.Get() + 1)
				return nil
			})
		})
		return nil
	})

	var d *Diagnostic
	if !stderrors.As(err, &d) || d.Code != "E101" {
		t.Errorf("expected E101, got %v", err)
	}
}

func TestAsyncWithGoroutineFuture(t *testing.T) {
	rt := newTestRuntime()
	id := NewSource(rt, 7)
	var value *Async[int]
	rt.Root(func() {
		value = NewAsync(rt, func(ctx context.Context) *Future[int] {
			n := id.Get()
			return Go(ctx, func(ctx context.Context) (int, error) {
				return n * 6, nil
			})
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		var got int
		var pending bool
		callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
		err := rt.Call(callCtx, func() error {
			pending = value.Pending()
			got, _ = value.TryGet()
			return nil
		})
		callCancel()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pending {
			if got != 42 {
				t.Errorf("expected 42, got %d", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("async value never settled")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInspect(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 0)
	rt.Root(func() {
		rt.Branch(func() Cleanup {
			rt.RenderEffect(func() Cleanup {
				_ = s.Get()
				return nil
			})
			return nil
		})
	})

	g := rt.Inspect()
	if len(g.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(g.Roots))
	}
	if g.Count() != 3 {
		t.Errorf("expected 3 effects, got %d", g.Count())
	}
	render := g.Roots[0].Children[0].Children[0]
	if render.Kind != "render" || render.Deps != 1 {
		t.Errorf("expected a render effect with one dependency, got %+v", render)
	}

	s.Set(1)
	g = rt.Inspect()
	if len(g.Batches) != 1 || !g.Batches[0].Current || g.Batches[0].Writes != 1 {
		t.Errorf("expected one current batch with one write, got %+v", g.Batches)
	}
	if g.QueuedRoots != 1 {
		t.Errorf("expected 1 queued root, got %d", g.QueuedRoots)
	}
}
