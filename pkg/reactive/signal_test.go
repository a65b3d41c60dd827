package reactive

import (
	stderrors "errors"
	"io"
	"log/slog"
	"math"
	"testing"
)

func newTestRuntime(opts ...Option) *Runtime {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func flush(t *testing.T, rt *Runtime) {
	t.Helper()
	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
}

func TestSourceGetSet(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 1)

	if got := s.Get(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}

	s.Set(2)
	if got := s.Peek(); got != 2 {
		t.Errorf("expected 2 after Set, got %d", got)
	}

	s.Update(func(n int) int { return n * 10 })
	if got := s.Get(); got != 20 {
		t.Errorf("expected 20 after Update, got %d", got)
	}
}

func TestSourceLabel(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, "x", WithLabel("name"))
	if s.Label() != "name" {
		t.Errorf("expected label name, got %q", s.Label())
	}
	if s.ID() == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestScenarioDoubleLogsOnceAfterFlush(t *testing.T) {
	rt := newTestRuntime()
	x := NewSource(rt, 1)
	double := NewComputed(rt, func() int { return x.Get() * 2 })

	var logs []int
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			logs = append(logs, double.Get())
			return nil
		})
	})
	flush(t, rt)
	logs = nil

	x.Set(2)
	if len(logs) != 0 {
		t.Errorf("expected no logs before flush, got %v", logs)
	}

	flush(t, rt)
	if len(logs) != 1 || logs[0] != 4 {
		t.Errorf("expected exactly [4], got %v", logs)
	}
}

func TestComputedIsLazy(t *testing.T) {
	rt := newTestRuntime()
	x := NewSource(rt, 1)
	runs := 0
	c := NewComputed(rt, func() int {
		runs++
		return x.Get() + 1
	})

	if runs != 0 {
		t.Errorf("computed should not run before it is read, ran %d times", runs)
	}

	if got := c.Get(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	_ = c.Get()
	if runs != 1 {
		t.Errorf("expected 1 run for two reads, got %d", runs)
	}

	x.Set(5)
	if got := c.Get(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestDiamondRunsEffectOnce(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 1)
	left := NewComputed(rt, func() int { return s.Get() + 1 })
	right := NewComputed(rt, func() int { return s.Get() * 2 })

	runs := 0
	var seen []int
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			runs++
			seen = append(seen, left.Get()+right.Get())
			return nil
		})
	})

	for i := 2; i <= 4; i++ {
		s.Set(i)
		flush(t, rt)
	}

	if runs != 4 {
		t.Errorf("expected 4 runs (1 initial + 3 writes), got %d", runs)
	}
	want := []int{4, 7, 10, 13}
	for i, v := range want {
		if seen[i] != v {
			t.Errorf("run %d: expected %d, got %d", i, v, seen[i])
		}
	}
}

func TestGlitchFreedom(t *testing.T) {
	rt := newTestRuntime()
	first := NewSource(rt, "a")
	last := NewSource(rt, "b")
	full := NewComputed(rt, func() string { return first.Get() + " " + last.Get() })

	var seen []string
	rt.Root(func() {
		rt.Effect(func() Cleanup {
			seen = append(seen, full.Get()+"|"+first.Get())
			return nil
		})
	})
	flush(t, rt)
	seen = nil

	first.Set("x")
	last.Set("y")
	first.Set("z")
	flush(t, rt)

	if len(seen) != 1 {
		t.Fatalf("expected one run, got %v", seen)
	}
	if seen[0] != "z y|z" {
		t.Errorf("expected final values \"z y|z\", got %q", seen[0])
	}
}

func TestComputedRecomputesAtMostOncePerFlush(t *testing.T) {
	rt := newTestRuntime()
	a := NewSource(rt, 1)
	b := NewSource(rt, 2)
	runs := 0
	sum := NewComputed(rt, func() int {
		runs++
		return a.Get() + b.Get()
	})

	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = sum.Get()
			return nil
		})
		rt.Effect(func() Cleanup {
			_ = sum.Get()
			return nil
		})
	})
	flush(t, rt)
	runs = 0

	a.Set(10)
	b.Set(20)
	flush(t, rt)

	if runs != 1 {
		t.Errorf("expected 1 recompute, got %d", runs)
	}
	if got := sum.Peek(); got != 30 {
		t.Errorf("expected 30, got %d", got)
	}
}

func TestEqualComputedValueStopsPropagation(t *testing.T) {
	rt := newTestRuntime()
	x := NewSource(rt, 1)
	parity := NewComputed(rt, func() int { return x.Get() % 2 })

	runs := 0
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = parity.Get()
			runs++
			return nil
		})
	})

	x.Set(3)
	flush(t, rt)
	if runs != 1 {
		t.Errorf("expected effect to skip when parity is unchanged, ran %d times", runs)
	}

	x.Set(4)
	flush(t, rt)
	if runs != 2 {
		t.Errorf("expected effect to run when parity changes, ran %d times", runs)
	}
}

func TestWithEquals(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 10, WithEquals(func(a, b int) bool { return a/10 == b/10 }))

	runs := 0
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = s.Get()
			runs++
			return nil
		})
	})

	s.Set(15)
	flush(t, rt)
	if runs != 1 {
		t.Errorf("expected equal value to be ignored, got %d runs", runs)
	}
	if s.Peek() != 10 {
		t.Errorf("expected value to stay 10, got %d", s.Peek())
	}

	s.Set(25)
	flush(t, rt)
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestEqualityFunctions(t *testing.T) {
	slice := []int{1}
	m := map[string]int{}
	nan := math.NaN()

	tests := []struct {
		name   string
		equals func(a, b any) bool
		a, b   any
		want   bool
	}{
		{"strict ints", strictEquals, 1, 1, true},
		{"strict different types", strictEquals, 1, int64(1), false},
		{"strict nil", strictEquals, nil, nil, true},
		{"strict same slice", strictEquals, slice, slice, true},
		{"strict copied slice", strictEquals, slice, []int{1}, false},
		{"strict same map", strictEquals, m, m, true},
		{"strict NaN", strictEquals, nan, nan, false},
		{"safe NaN", safeEquals, nan, nan, true},
		{"safe same slice", safeEquals, slice, slice, false},
		{"safe strings", safeEquals, "a", "a", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.equals(tt.a, tt.b); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestUntrack(t *testing.T) {
	rt := newTestRuntime()
	tracked := NewSource(rt, 1)
	untracked := NewSource(rt, 1)

	runs := 0
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = tracked.Get()
			_ = Untracked(rt, untracked.Get)
			runs++
			return nil
		})
	})

	untracked.Set(2)
	flush(t, rt)
	if runs != 1 {
		t.Errorf("expected untracked read not to subscribe, got %d runs", runs)
	}

	tracked.Set(2)
	flush(t, rt)
	if runs != 2 {
		t.Errorf("expected 2 runs, got %d", runs)
	}
}

func TestTracking(t *testing.T) {
	rt := newTestRuntime()
	if rt.Tracking() {
		t.Error("expected no tracking outside reactions")
	}

	var inside, insideUntrack bool
	rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			inside = rt.Tracking()
			rt.Untrack(func() { insideUntrack = rt.Tracking() })
			return nil
		})
	})

	if !inside {
		t.Error("expected tracking inside an effect")
	}
	if insideUntrack {
		t.Error("expected no tracking inside Untrack")
	}
}

func TestComputedDisconnectsWhenUnobserved(t *testing.T) {
	rt := newTestRuntime()
	x := NewSource(rt, 1)
	c := NewComputed(rt, func() int { return x.Get() * 3 })

	dispose := rt.Root(func() {
		rt.RenderEffect(func() Cleanup {
			_ = c.Get()
			return nil
		})
	})

	if len(x.n.reactions) != 1 {
		t.Fatalf("expected computed to subscribe while observed, got %d reactions", len(x.n.reactions))
	}

	dispose()
	if len(x.n.reactions) != 0 {
		t.Errorf("expected computed to disconnect, got %d reactions", len(x.n.reactions))
	}

	x.Set(4)
	if got := c.Get(); got != 12 {
		t.Errorf("expected disconnected computed to stay fresh, got %d", got)
	}
}

func TestComputedError(t *testing.T) {
	rt := newTestRuntime()
	boom := stderrors.New("boom")
	fail := NewSource(rt, true)
	c := NewComputed(rt, func() int {
		if fail.Get() {
			panic(boom)
		}
		return 1
	})

	if _, err := c.TryGet(); !stderrors.Is(err, boom) {
		t.Errorf("expected boom from TryGet, got %v", err)
	}

	func() {
		defer func() {
			if r := recover(); r != boom {
				t.Errorf("expected Get to panic with boom, got %v", r)
			}
		}()
		c.Get()
	}()

	fail.Set(false)
	v, err := c.TryGet()
	if err != nil || v != 1 {
		t.Errorf("expected recovery to 1, got %d, %v", v, err)
	}
}

func TestComputedErrorInEffectIsFatalWithoutBoundary(t *testing.T) {
	rt := newTestRuntime()
	boom := stderrors.New("boom")
	c := NewComputed(rt, func() int { panic(boom) })

	rt.Root(func() {
		rt.Effect(func() Cleanup {
			_ = c.Get()
			return nil
		})
	})

	err := rt.FlushSync(nil)
	if !stderrors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
