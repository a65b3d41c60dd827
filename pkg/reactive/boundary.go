package reactive

import "github.com/vango-dev/reactor/pkg/render"

// BoundaryProps configures a boundary. A boundary needs OnError or Failed
// to handle errors; without both, errors pass through it.
type BoundaryProps struct {
	// OnError runs with reactive tracking suspended when content fails.
	// Calling reset (later, not from inside OnError) rebuilds the content.
	OnError func(err error, reset func())

	// Pending renders a placeholder while async work inside the boundary
	// is outstanding.
	Pending func(anchor *render.Node)

	// Failed renders fallback content after an error.
	Failed func(anchor *render.Node, err error, reset func())
}

// Boundary owns a subtree that can show a pending placeholder while async
// work in it is outstanding, and fallback content when it fails.
type Boundary struct {
	rt       *Runtime
	parent   *Boundary
	anchor   *render.Node
	props    BoundaryProps
	children func(anchor *render.Node)

	effect        *node
	main          *node
	pendingEffect *node
	failed        *node

	// offscreen holds the main content while the placeholder is shown.
	offscreen *render.Node

	count            int
	pending          bool
	constructing     bool
	creatingFallback bool

	// errored is set between an error and the next reset.
	errored bool
}

// NewBoundary creates a boundary in front of anchor and renders children
// inside it.
//
// Example:
//
//	reactive.NewBoundary(rt, anchor, reactive.BoundaryProps{
//	    Pending: func(a *render.Node) { a.Parent().InsertBefore(doc.CreateText("loading"), a) },
//	    Failed: func(a *render.Node, err error, reset func()) {
//	        a.Parent().InsertBefore(doc.CreateText("failed: "+err.Error()), a)
//	    },
//	}, func(a *render.Node) {
//	    user := reactive.NewAsync(rt, loadUser)
//	    ...
//	})
func NewBoundary(rt *Runtime, anchor *render.Node, props BoundaryProps, children func(anchor *render.Node)) *Boundary {
	b := &Boundary{
		rt:       rt,
		anchor:   anchor,
		props:    props,
		children: children,
		pending:  props.Pending != nil,
	}
	if parent := rt.activeEffect; parent != nil {
		b.parent = parent.b
	}

	b.effect = rt.createEffect(kindBoundaryFlags, func() Cleanup {
		b.effect = rt.activeEffect
		b.effect.b = b
		b.constructing = true
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.constructing = false
					if _, ok := r.(fatalError); ok || isMisuse(r) {
						panic(r)
					}
					b.error(panicError(r))
				}
			}()
			b.renderMain()
		}()
		b.constructing = false
		b.settleInitial()
		return nil
	}, true)
	return b
}

var kindBoundaryFlags = KindBoundary.flags()

// Pending reports whether the placeholder is showing.
func (b *Boundary) Pending() bool { return b.pending }

// PendingCount returns the number of outstanding async units counted by
// this boundary.
func (b *Boundary) PendingCount() int { return b.count }

// Effect returns the block effect of the boundary.
func (b *Boundary) Effect() *Effect { return (*Effect)(b.effect) }

// renderMain builds the children. With a placeholder, they are built
// offscreen and only moved in by settleInitial once nothing is pending.
func (b *Boundary) renderMain() {
	rt := b.rt
	var main *node
	if b.props.Pending == nil {
		main = rt.regionBefore(b.anchor, b.children)
	} else {
		main = rt.regionOffscreen(b.anchor.Document(), b.children)
	}
	// A nested error already switched the boundary to its failed state.
	if b.errored {
		rt.destroyEffect(main, true)
		return
	}
	b.main = main
	if b.props.Pending != nil {
		b.offscreen = main.nodesStart.Parent()
	}
}

func (b *Boundary) settleInitial() {
	if b.count > 0 {
		b.pending = true
		b.showPending()
		return
	}
	b.pending = false
	if b.offscreen != nil {
		if b.main != nil {
			moveRegion(b.main, b.anchor)
		}
		b.offscreen = nil
	}
}

// isPending reports whether async work started now is absorbed by a
// placeholder instead of holding back the batch.
func (b *Boundary) isPending() bool {
	for x := b; x != nil; x = x.parent {
		if x.props.Pending != nil {
			return x.pending
		}
	}
	return false
}

// run executes fn as the boundary's own effect, routing failures to the
// boundary chain starting at target.
func (b *Boundary) run(target *node, fn func()) {
	rt := b.rt
	prevEffect, prevFrame := rt.activeEffect, rt.frame
	rt.activeEffect = b.effect
	rt.frame = trackFrame{}
	defer func() {
		rt.activeEffect = prevEffect
		prevFrame.nested = true
		rt.frame = prevFrame
		if r := recover(); r != nil {
			if _, ok := r.(fatalError); ok || isMisuse(r) {
				panic(r)
			}
			rt.invokeBoundary(panicError(r), target)
		}
	}()
	fn()
}

func (b *Boundary) showPending() {
	rt := b.rt
	if main := b.main; main != nil && b.offscreen == nil && main.nodesStart != nil {
		b.offscreen = b.anchor.Document().CreateFragment()
		render.MoveRange(main.nodesStart, main.nodesEnd, b.offscreen, nil)
	}
	if b.pendingEffect == nil {
		b.pendingEffect = rt.regionBefore(b.anchor, b.props.Pending)
	}
}

// updatePendingCount adds d outstanding units. A boundary without a
// placeholder forwards the count to its parent.
func (b *Boundary) updatePendingCount(d int) {
	if b.props.Pending == nil {
		if b.parent != nil {
			b.parent.updatePendingCount(d)
		}
		return
	}
	prev := b.count
	b.count += d
	if b.count < 0 {
		b.count = 0
	}
	switch {
	case b.constructing:
	case prev == 0 && b.count > 0:
		b.pending = true
		if b.effect != nil && b.effect.f&flagDestroyed == 0 {
			b.run(b.effect, b.showPending)
		}
	case prev > 0 && b.count == 0:
		b.rt.ensureBatch().onCommit(b.restore)
	}
}

// restore removes the placeholder and brings the main content back.
func (b *Boundary) restore() {
	if b.count > 0 || b.effect == nil || b.effect.f&flagDestroyed != 0 {
		return
	}
	b.pending = false
	if p := b.pendingEffect; p != nil {
		b.pendingEffect = nil
		b.rt.pause(p, func() { b.rt.destroyEffect(p, true) })
	}
	if b.offscreen != nil {
		if b.main != nil {
			moveRegion(b.main, b.anchor)
		}
		b.offscreen = nil
	}
}

// handle runs the error path and returns the error raised while handling,
// if any.
func (b *Boundary) handle(err error) (unhandled error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(fatalError); ok || isMisuse(r) {
				panic(r)
			}
			unhandled = panicError(r)
		}
	}()
	b.error(err)
	return nil
}

// error tears down the content, calls OnError and schedules the failed
// content. It panics with err when the boundary cannot handle errors.
func (b *Boundary) error(err error) {
	rt := b.rt
	onError, failed := b.props.OnError, b.props.Failed
	if b.creatingFallback || (onError == nil && failed == nil) {
		panic(err)
	}

	for _, e := range []*node{b.main, b.pendingEffect, b.failed} {
		if e != nil {
			rt.destroyEffect(e, true)
		}
	}
	b.main, b.pendingEffect, b.failed = nil, nil, nil
	b.offscreen = nil
	b.pending = false
	b.errored = true

	didReset := false
	callingOnError := false
	reset := func() {
		if callingOnError {
			rt.misuse("E106", "")
		}
		if didReset {
			rt.warn("W201", "")
			return
		}
		didReset = true
		b.reset()
	}

	if onError != nil {
		func() {
			prevFrame := rt.frame
			rt.frame = trackFrame{}
			callingOnError = true
			defer func() {
				callingOnError = false
				prevFrame.nested = true
				rt.frame = prevFrame
				if r := recover(); r != nil {
					if _, ok := r.(fatalError); ok || isMisuse(r) {
						panic(r)
					}
					rt.invokeBoundary(panicError(r), b.effect.parent)
				}
			}()
			onError(err, reset)
		}()
	}

	if failed != nil {
		rt.QueueMicrotask(func() {
			if b.effect.f&flagDestroyed != 0 || didReset {
				return
			}
			rt.ensureBatch()
			b.creatingFallback = true
			defer func() { b.creatingFallback = false }()
			b.run(b.effect.parent, func() {
				b.failed = rt.regionBefore(b.anchor, func(anchor *render.Node) {
					failed(anchor, err, reset)
				})
			})
		})
	}
}

// reset replaces the failed content with a fresh run of the children.
func (b *Boundary) reset() {
	rt := b.rt
	if b.effect.f&flagDestroyed != 0 {
		return
	}
	rt.ensureBatch()
	if f := b.failed; f != nil {
		b.failed = nil
		rt.pause(f, func() { rt.destroyEffect(f, true) })
	}
	b.pending = b.props.Pending != nil
	b.errored = false
	b.run(b.effect, func() {
		func() {
			b.constructing = true
			defer func() { b.constructing = false }()
			b.renderMain()
		}()
		// The placeholder is created as a child of the boundary effect.
		if !b.errored {
			b.settleInitial()
		}
	})
}
