package reactive

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/vango-dev/reactor/pkg/render"
)

func insertText(anchor *render.Node, s string) *render.Node {
	n := anchor.Document().CreateText(s)
	anchor.Parent().InsertBefore(n, anchor)
	return n
}

type suspenseFixture struct {
	rt      *Runtime
	doc     *render.Document
	id      *Source[int]
	b       *Boundary
	futures []*Future[string]
	ctxs    []context.Context
}

func newSuspenseFixture(t *testing.T) *suspenseFixture {
	t.Helper()
	f := &suspenseFixture{rt: newTestRuntime(), doc: render.NewDocument()}
	rt := f.rt
	f.id = NewSource(rt, 1)

	rt.Mount(f.doc.Root(), func(anchor *render.Node) {
		f.b = NewBoundary(rt, anchor, BoundaryProps{
			Pending: func(a *render.Node) { insertText(a, "loading") },
		}, func(a *render.Node) {
			user := NewAsync(rt, func(ctx context.Context) *Future[string] {
				_ = f.id.Get()
				fut := NewFuture[string]()
				f.futures = append(f.futures, fut)
				f.ctxs = append(f.ctxs, ctx)
				return fut
			})
			text := insertText(a, "")
			rt.RenderEffect(func() Cleanup {
				text.SetText(user.Get())
				return nil
			})
		})
	})
	return f
}

func TestBoundaryShowsPendingUntilResolved(t *testing.T) {
	f := newSuspenseFixture(t)

	if got := f.doc.Text(); got != "loading" {
		t.Errorf("expected pending placeholder, got %q", got)
	}
	if !f.b.Pending() || f.b.PendingCount() != 1 {
		t.Errorf("expected boundary pending with count 1, got %v/%d", f.b.Pending(), f.b.PendingCount())
	}

	flush(t, f.rt)
	if got := f.doc.Text(); got != "loading" {
		t.Errorf("expected placeholder while unresolved, got %q", got)
	}

	f.futures[0].Resolve("ada")
	flush(t, f.rt)

	if got := f.doc.Text(); got != "ada" {
		t.Errorf("expected main content, got %q", got)
	}
	if f.b.Pending() {
		t.Error("expected boundary to leave pending state")
	}
}

func TestBoundaryCommitsMainContentInOneFrame(t *testing.T) {
	f := newSuspenseFixture(t)
	flush(t, f.rt)
	f.doc.TakePatches()

	f.futures[0].Resolve("ada")
	flush(t, f.rt)

	// The placeholder leaves and the resolved content arrives in the same
	// flush; no patch shows main content with an empty value.
	patches := f.doc.TakePatches()
	if render.Count(patches, render.PatchRemoveNode) != 1 {
		t.Errorf("expected the placeholder region to be removed in one patch, got %v", patches)
	}
	if render.Count(patches, render.PatchInsertNode) != 1 {
		t.Errorf("expected main content to be inserted in one patch, got %v", patches)
	}
}

func TestBoundaryPendingOnUpdate(t *testing.T) {
	f := newSuspenseFixture(t)
	f.futures[0].Resolve("ada")
	flush(t, f.rt)

	f.id.Set(2)
	flush(t, f.rt)
	if got := f.doc.Text(); got != "loading" {
		t.Errorf("expected placeholder after the triggering write, got %q", got)
	}

	f.futures[1].Resolve("bob")
	flush(t, f.rt)
	if got := f.doc.Text(); got != "bob" {
		t.Errorf("expected updated content, got %q", got)
	}
	if len(f.rt.batches) != 0 {
		t.Errorf("expected all batches to retire, %d left", len(f.rt.batches))
	}
}

func TestStaleAsyncIsCancelledAndDropped(t *testing.T) {
	f := newSuspenseFixture(t)
	f.futures[0].Resolve("ada")
	flush(t, f.rt)

	f.id.Set(2)
	flush(t, f.rt)
	f.id.Set(3)
	flush(t, f.rt)

	if len(f.futures) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(f.futures))
	}
	if cause := context.Cause(f.ctxs[1]); !stderrors.Is(cause, ErrStale) {
		t.Errorf("expected superseded run to be cancelled with ErrStale, got %v", cause)
	}

	f.futures[2].Resolve("carl")
	flush(t, f.rt)
	if got := f.doc.Text(); got != "carl" {
		t.Errorf("expected latest value, got %q", got)
	}

	// A late settlement of the stale run changes nothing.
	f.futures[1].Resolve("bob")
	flush(t, f.rt)
	if got := f.doc.Text(); got != "carl" {
		t.Errorf("expected stale result to be dropped, got %q", got)
	}
	if f.b.PendingCount() != 0 {
		t.Errorf("expected count 0, got %d", f.b.PendingCount())
	}
}

func TestAsyncRejectionReachesBoundary(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	boom := stderrors.New("boom")
	var fut *Future[int]
	var caught error

	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			Failed: func(a *render.Node, err error, reset func()) {
				caught = err
				insertText(a, "failed")
			},
		}, func(a *render.Node) {
			v := NewAsync(rt, func(ctx context.Context) *Future[int] {
				fut = NewFuture[int]()
				return fut
			})
			rt.RenderEffect(func() Cleanup {
				_ = v.Get()
				return nil
			})
		})
	})
	flush(t, rt)

	fut.Reject(boom)
	flush(t, rt)

	if !stderrors.Is(caught, boom) {
		t.Errorf("expected boom to reach the boundary, got %v", caught)
	}
	if got := doc.Text(); got != "failed" {
		t.Errorf("expected failed content, got %q", got)
	}
}

func TestAsyncOutsideEffect(t *testing.T) {
	rt := newTestRuntime()
	expectDiagnostic(t, "E107", func() {
		NewAsync(rt, func(ctx context.Context) *Future[int] { return Resolved(1) })
	})
}

type failingFixture struct {
	rt      *Runtime
	doc     *render.Document
	fail    *Source[bool]
	errs    []error
	reset   func()
	renders int
}

func newFailingFixture(t *testing.T, props func(f *failingFixture) BoundaryProps) *failingFixture {
	t.Helper()
	f := &failingFixture{rt: newTestRuntime(), doc: render.NewDocument()}
	rt := f.rt
	f.fail = NewSource(rt, true)

	rt.Mount(f.doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, props(f), func(a *render.Node) {
			f.renders++
			if f.fail.Peek() {
				panic(stderrors.New("render failed"))
			}
			insertText(a, "ok")
		})
	})
	return f
}

func TestBoundaryFailedContent(t *testing.T) {
	f := newFailingFixture(t, func(f *failingFixture) BoundaryProps {
		return BoundaryProps{
			OnError: func(err error, reset func()) {
				f.errs = append(f.errs, err)
				f.reset = reset
			},
			Failed: func(a *render.Node, err error, reset func()) {
				insertText(a, "failed: "+err.Error())
			},
		}
	})

	if len(f.errs) != 1 {
		t.Fatalf("expected onerror once, got %d", len(f.errs))
	}
	if got := f.doc.Text(); got != "" {
		t.Errorf("failed content should be built in a microtask, got %q", got)
	}

	flush(t, f.rt)
	if got := f.doc.Text(); got != "failed: render failed" {
		t.Errorf("expected failed content, got %q", got)
	}
}

func TestBoundaryResetIsIdempotent(t *testing.T) {
	var warnings []string
	f := newFailingFixture(t, func(f *failingFixture) BoundaryProps {
		return BoundaryProps{
			OnError: func(err error, reset func()) {
				f.errs = append(f.errs, err)
				f.reset = reset
			},
			Failed: func(a *render.Node, err error, reset func()) {
				insertText(a, "failed")
			},
		}
	})
	f.rt.onDiagnostic = func(d *Diagnostic) { warnings = append(warnings, d.Code) }
	flush(t, f.rt)

	f.fail.Set(false)
	f.reset()
	f.reset()
	flush(t, f.rt)

	if f.renders != 2 {
		t.Errorf("expected children to re-run once, got %d renders", f.renders)
	}
	if got := f.doc.Text(); got != "ok" {
		t.Errorf("expected main content after reset, got %q", got)
	}
	if len(warnings) != 1 || warnings[0] != "W201" {
		t.Errorf("expected one W201, got %v", warnings)
	}
}

func TestBoundaryResetInsideOnErrorIsMisuse(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	expectDiagnostic(t, "E106", func() {
		rt.Mount(doc.Root(), func(anchor *render.Node) {
			NewBoundary(rt, anchor, BoundaryProps{
				OnError: func(err error, reset func()) { reset() },
			}, func(a *render.Node) {
				panic(stderrors.New("render failed"))
			})
		})
	})
}

func TestBoundaryResetRestartsAsyncChildren(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	var futures []*Future[string]
	var retry func()

	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			Pending: func(a *render.Node) { insertText(a, "loading") },
			Failed: func(a *render.Node, err error, reset func()) {
				retry = reset
				insertText(a, "failed")
			},
		}, func(a *render.Node) {
			user := NewAsync(rt, func(ctx context.Context) *Future[string] {
				fut := NewFuture[string]()
				futures = append(futures, fut)
				return fut
			})
			text := insertText(a, "")
			rt.RenderEffect(func() Cleanup {
				text.SetText(user.Get())
				return nil
			})
		})
	})
	flush(t, rt)

	futures[0].Reject(stderrors.New("offline"))
	flush(t, rt)
	if got := doc.Text(); got != "failed" {
		t.Fatalf("expected failed content, got %q", got)
	}
	if retry == nil {
		t.Fatal("expected the failed snippet to receive reset")
	}

	// Reset from outside any reaction shows the placeholder again.
	if err := rt.FlushSync(retry); err != nil {
		t.Fatalf("unexpected error from reset: %v", err)
	}
	if len(futures) != 2 {
		t.Fatalf("expected the children to start a new request, got %d requests", len(futures))
	}
	if got := doc.Text(); got != "loading" {
		t.Errorf("expected pending placeholder after reset, got %q", got)
	}

	futures[1].Resolve("ada")
	flush(t, rt)
	if got := doc.Text(); got != "ada" {
		t.Errorf("expected main content after resolve, got %q", got)
	}
}

func TestBoundaryCatchesEffectErrorsAfterMount(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	s := NewSource(rt, 0)
	var caught error
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			OnError: func(err error, reset func()) { caught = err },
		}, func(a *render.Node) {
			rt.RenderEffect(func() Cleanup {
				if s.Get() > 0 {
					panic("negative balance")
				}
				return nil
			})
			insertText(a, "content")
		})
	})

	s.Set(1)
	flush(t, rt)

	if caught == nil || caught.Error() != "reactive: panic: negative balance" {
		t.Errorf("expected the panic as an error, got %v", caught)
	}
	if got := doc.Text(); got != "" {
		t.Errorf("expected content to be torn down, got %q", got)
	}
}

func TestErrorInOnErrorGoesToParentBoundary(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	var outerErr error
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			Failed: func(a *render.Node, err error, reset func()) {
				outerErr = err
				insertText(a, "outer failed")
			},
		}, func(a *render.Node) {
			insertText(a, "outer content")
			NewBoundary(rt, a, BoundaryProps{
				OnError: func(err error, reset func()) {
					panic(stderrors.New("handler failed"))
				},
			}, func(a *render.Node) {
				panic(stderrors.New("render failed"))
			})
		})
	})
	flush(t, rt)

	if outerErr == nil || outerErr.Error() != "handler failed" {
		t.Errorf("expected the handler error to reach the outer boundary, got %v", outerErr)
	}
	if got := doc.Text(); got != "outer failed" {
		t.Errorf("expected only the outer failed content, got %q", got)
	}
}

func TestBoundaryWithoutHandlersPassesErrorsThrough(t *testing.T) {
	rt := newTestRuntime()
	doc := render.NewDocument()
	var caught error
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			OnError: func(err error, reset func()) { caught = err },
		}, func(a *render.Node) {
			NewBoundary(rt, a, BoundaryProps{
				Pending: func(a *render.Node) {},
			}, func(a *render.Node) {
				panic(stderrors.New("render failed"))
			})
		})
	})

	if caught == nil {
		t.Error("expected the outer boundary to catch the error")
	}
}

func TestLoopGuardCaughtByBoundary(t *testing.T) {
	rt := newTestRuntime(WithMaxFlushIterations(10))
	doc := render.NewDocument()
	n := NewSource(rt, 0)
	var caught error
	rt.Mount(doc.Root(), func(anchor *render.Node) {
		NewBoundary(rt, anchor, BoundaryProps{
			Failed: func(a *render.Node, err error, reset func()) {
				caught = err
				insertText(a, "too many updates")
			},
		}, func(a *render.Node) {
			rt.Effect(func() Cleanup {
				n.Set(n.Get() + 1)
				return nil
			})
		})
	})

	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("expected the boundary to handle the loop, got %v", err)
	}
	var d *Diagnostic
	if !stderrors.As(caught, &d) || d.Code != "E101" {
		t.Errorf("expected E101 at the boundary, got %v", caught)
	}
	if got := doc.Text(); got != "too many updates" {
		t.Errorf("expected failed content, got %q", got)
	}
}
