package reactive

import (
	"testing"

	"github.com/vango-dev/reactor/internal/errors"
)

func expectDiagnostic(t *testing.T, code string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		d, ok := r.(*Diagnostic)
		if !ok {
			t.Fatalf("expected %s panic, got %v", code, r)
		}
		if d.Code != code {
			t.Errorf("expected %s, got %s", code, d.Code)
		}
		if d.Category != errors.CategoryMisuse {
			t.Errorf("expected misuse category, got %v", d.Category)
		}
	}()
	fn()
}

func TestMisuseDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		code string
		fn   func(rt *Runtime)
	}{
		{
			name: "write inside computed",
			code: "E102",
			fn: func(rt *Runtime) {
				s := NewSource(rt, 0)
				NewComputed(rt, func() int {
					s.Set(1)
					return 0
				}).Get()
			},
		},
		{
			name: "write inside block",
			code: "E102",
			fn: func(rt *Runtime) {
				s := NewSource(rt, 0)
				rt.Root(func() {
					rt.Block(func() Cleanup {
						s.Set(1)
						return nil
					})
				})
			},
		},
		{
			name: "computed reads itself",
			code: "E103",
			fn: func(rt *Runtime) {
				var c *Computed[int]
				c = NewComputed(rt, func() int { return c.Get() + 1 })
				c.Get()
			},
		},
		{
			name: "effect under destroyed parent",
			code: "E108",
			fn: func(rt *Runtime) {
				rt.Root(func() {
					rt.Block(func() Cleanup {
						rt.DestroyEffect(rt.CurrentEffect())
						rt.RenderEffect(func() Cleanup { return nil })
						return nil
					})
				})
			},
		},
		{
			name: "effect outside root",
			code: "E104",
			fn: func(rt *Runtime) {
				rt.Effect(func() Cleanup { return nil })
			},
		},
		{
			name: "effect inside computed",
			code: "E105",
			fn: func(rt *Runtime) {
				rt.Root(func() {
					NewComputed(rt, func() int {
						rt.RenderEffect(func() Cleanup { return nil })
						return 0
					}).Get()
				})
			},
		},
		{
			name: "boundary kind through CreateEffect",
			code: "E110",
			fn: func(rt *Runtime) {
				rt.Root(func() {
					rt.CreateEffect(KindBoundary, func() Cleanup { return nil }, true)
				})
			},
		},
		{
			name: "async kind through CreateEffect",
			code: "E110",
			fn: func(rt *Runtime) {
				rt.Root(func() {
					rt.CreateEffect(KindAsync, func() Cleanup { return nil }, true)
				})
			},
		},
		{
			name: "onCleanup outside effect",
			code: "E109",
			fn: func(rt *Runtime) {
				rt.OnCleanup(func() {})
			},
		},
		{
			name: "transition outside effect",
			code: "E109",
			fn: func(rt *Runtime) {
				rt.Transition(&fakeTransition{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newTestRuntime()
			expectDiagnostic(t, tt.code, func() { tt.fn(rt) })
		})
	}
}

func TestBlockMayWriteSourcesItCreated(t *testing.T) {
	rt := newTestRuntime()
	var got int
	rt.Root(func() {
		rt.Block(func() Cleanup {
			local := NewSource(rt, 0)
			local.Set(5)
			got = local.Peek()
			return nil
		})
	})
	if got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestWriteInsideUntrackIsAllowed(t *testing.T) {
	rt := newTestRuntime()
	s := NewSource(rt, 0)
	c := NewComputed(rt, func() int {
		rt.Untrack(func() { s.Set(2) })
		return 1
	})
	if v := c.Get(); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
	if s.Peek() != 2 {
		t.Errorf("expected write to land, got %d", s.Peek())
	}
}

func TestMisuseIsReportedToHandler(t *testing.T) {
	var codes []string
	rt := newTestRuntime(WithDiagnosticHandler(func(d *Diagnostic) { codes = append(codes, d.Code) }))
	expectDiagnostic(t, "E109", func() { rt.OnCleanup(func() {}) })
	if len(codes) != 1 || codes[0] != "E109" {
		t.Errorf("expected handler to see E109, got %v", codes)
	}
}
