package reactive

import (
	stderrors "errors"

	"github.com/vango-dev/reactor/pkg/render"
)

// Cleanup is returned by an effect body. It runs before the body runs again
// and when the effect is destroyed.
type Cleanup func()

// Effect is a node of the effect tree.
type Effect node

func (e *Effect) node() *node { return (*node)(e) }

// ID returns the unique identifier of the effect.
func (e *Effect) ID() uint64 { return e.id }

// Kind returns the scheduling class of the effect.
func (e *Effect) Kind() EffectKind { return kindOf(e.f) }

// Destroyed reports whether the effect has been destroyed.
func (e *Effect) Destroyed() bool { return e.f&flagDestroyed != 0 }

// Inert reports whether the effect is paused.
func (e *Effect) Inert() bool { return e.f&flagInert != 0 }

// Parent returns the owning effect, or nil for a detached root.
func (e *Effect) Parent() *Effect { return (*Effect)(e.parent) }

// Nodes returns the host range owned by the effect, if any.
func (e *Effect) Nodes() (start, end *render.Node) { return e.nodesStart, e.nodesEnd }

func chain(a, b Cleanup) Cleanup {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func() {
		b()
		a()
	}
}

// createEffect creates an effect under the active effect. A sync effect runs
// immediately; otherwise it is scheduled into the current batch.
func (rt *Runtime) createEffect(flags uint32, fn func() Cleanup, sync bool) *node {
	parent := rt.activeEffect
	if r := rt.frame.reaction; r != nil && r.isDerived() {
		rt.misuse("E105", describe(r))
	}
	if parent == nil && flags&flagRootEffect == 0 {
		rt.misuse("E104", kindOf(flags).String()+" effect")
	}
	if parent != nil && parent.f&flagDestroyed != 0 {
		rt.misuse("E108", "")
	}

	e := &node{
		rt:     rt,
		id:     rt.newID(),
		f:      flags | flagDirty,
		efn:    fn,
		parent: parent,
	}
	if parent != nil {
		e.b = parent.b
		if parent.f&flagInert != 0 {
			e.f |= flagInert
		}
	}

	if sync {
		func() {
			defer func() {
				if r := recover(); r != nil {
					rt.destroyEffect(e, true)
					panic(r)
				}
			}()
			rt.updateEffect(e)
		}()
		e.f |= flagEffectRan
		// Its owner was torn down while it ran, e.g. by a boundary.
		if e.f&flagDestroyed != 0 {
			return e
		}
	} else if fn != nil {
		rt.scheduleEffect(e)
	}

	// A sync effect that read nothing and owns nothing will never run again.
	empty := sync && e.deps == nil && e.first == nil && e.nodesStart == nil &&
		e.teardown == nil && e.transition == nil && e.f&(flagPreserved|flagBranchEffect) == 0
	if !empty && parent != nil {
		pushEffect(e, parent)
	}
	if parent == nil {
		rt.roots = append(rt.roots, e)
	}
	return e
}

func pushEffect(e, parent *node) {
	last := parent.last
	if last == nil {
		parent.first = e
	} else {
		last.next = e
		e.prev = last
	}
	parent.last = e
}

func unlinkEffect(e *node) {
	parent := e.parent
	prev, next := e.prev, e.next
	if prev != nil {
		prev.next = next
	}
	if next != nil {
		next.prev = prev
	}
	if parent != nil {
		if parent.first == e {
			parent.first = next
		}
		if parent.last == e {
			parent.last = prev
		}
	}
}

// updateEffect runs e's body, replacing its children, teardown and
// dependencies.
func (rt *Runtime) updateEffect(e *node) {
	if e.f&flagDestroyed != 0 {
		return
	}
	setStatus(e, flagClean)

	prev := rt.activeEffect
	rt.activeEffect = e
	defer func() { rt.activeEffect = prev }()

	if e.f&flagBlockEffect != 0 {
		rt.destroyBlockChildren(e)
	} else {
		rt.destroyChildren(e, true)
	}
	rt.runTeardown(e)
	e.deriveds = e.deriveds[:0]

	func() {
		defer func() {
			if r := recover(); r != nil {
				rt.handleEffectPanic(e, r)
			}
		}()
		var t Cleanup
		rt.runTracked(e, func() { t = e.efn() })
		e.teardown = chain(e.teardown, t)
	}()

	e.ev = rt.writeVersion
	e.f |= flagEffectRan
	for _, o := range rt.observers {
		o.EffectRan(kindOf(e.f), e.id)
	}
}

// handleEffectPanic routes a panic raised by an effect body. Errors raised
// while a subtree is being created travel up the call stack until a
// boundary catches them; errors from later runs walk up the effect tree.
func (rt *Runtime) handleEffectPanic(e *node, r any) {
	if _, ok := r.(fatalError); ok || isMisuse(r) {
		panic(r)
	}
	err := panicError(r)
	if stderrors.Is(err, ErrStale) {
		return
	}
	if e.f&(flagEffectRan|flagUserEffect) == 0 {
		panic(r)
	}
	rt.invokeBoundary(err, e)
}

// invokeBoundary hands err to the nearest boundary above e that can handle
// it. An error raised while handling moves on to the next boundary up.
func (rt *Runtime) invokeBoundary(err error, e *node) {
	for ; e != nil; e = e.parent {
		if e.f&flagBoundaryEffect == 0 || e.b == nil {
			continue
		}
		next := e.b.handle(err)
		if next == nil {
			return
		}
		err = next
	}
	rt.logger.Error("unhandled effect error", "error", err)
	panic(fatalError{err: err})
}

func (rt *Runtime) runTeardown(e *node) {
	t := e.teardown
	if t == nil {
		return
	}
	e.teardown = nil

	prevFrame := rt.frame
	rt.frame = trackFrame{}
	defer func() {
		prevFrame.nested = true
		rt.frame = prevFrame
	}()
	t()
}

// destroyChildren destroys every child of e. Child roots are detached
// instead and keep running on their own.
func (rt *Runtime) destroyChildren(e *node, removeDOM bool) {
	child := e.first
	e.first, e.last = nil, nil
	for child != nil {
		next := child.next
		if child.f&flagRootEffect != 0 {
			child.parent = nil
			child.prev, child.next = nil, nil
			rt.roots = append(rt.roots, child)
		} else {
			rt.destroyEffect(child, removeDOM)
		}
		child = next
	}
}

// destroyBlockChildren destroys the non-branch children of a block. Its
// branches are managed by the block itself.
func (rt *Runtime) destroyBlockChildren(e *node) {
	for child := e.first; child != nil; {
		next := child.next
		if child.f&flagBranchEffect == 0 {
			rt.destroyEffect(child, true)
		}
		child = next
	}
}

func (rt *Runtime) destroyEffect(e *node, removeDOM bool) {
	if e.f&flagDestroyed != 0 {
		return
	}
	if e.cancel != nil {
		e.cancel(ErrStale)
		e.cancel = nil
	}

	removed := false
	if removeDOM && e.nodesStart != nil {
		render.RemoveRange(e.nodesStart, e.nodesEnd)
		removed = true
	}
	rt.destroyChildren(e, removeDOM && !removed)
	rt.removeReactions(e, 0, nil)
	e.deps = nil
	e.f |= flagDestroyed
	setStatus(e, flagClean)
	rt.runTeardown(e)

	if parent := e.parent; parent != nil && parent.first != nil {
		unlinkEffect(e)
	}
	if e.parent == nil {
		rt.removeRoot(e)
	}
	e.next, e.prev = nil, nil
	e.efn = nil
	e.transition = nil
	e.nodesStart, e.nodesEnd = nil, nil
}

func (rt *Runtime) removeRoot(e *node) {
	for i, r := range rt.roots {
		if r == e {
			rt.roots = append(rt.roots[:i], rt.roots[i+1:]...)
			return
		}
	}
}

// scheduleEffect queues the root above e, clearing the clean bit of every
// branch on the way so traversal descends to e.
func (rt *Runtime) scheduleEffect(e *node) {
	rt.lastScheduled = e
	for e.parent != nil {
		e = e.parent
		f := e.f
		if rt.flushing && e == rt.activeEffect && f&flagBlockEffect != 0 {
			return
		}
		if f&(flagRootEffect|flagBranchEffect) != 0 {
			if f&flagClean == 0 {
				return
			}
			e.f &^= flagClean
		}
	}
	rt.queuedRoots = append(rt.queuedRoots, e)
	rt.ensureBatch()
}

// Root creates a root effect that owns everything fn creates. The returned
// function destroys it.
func (rt *Runtime) Root(fn func()) (dispose func()) {
	e := rt.createEffect(flagRootEffect|flagPreserved, func() Cleanup {
		fn()
		return nil
	}, true)
	return func() { rt.destroyEffect(e, true) }
}

// Mount creates a root whose content lives in a region appended to target.
// fn receives the region's closing anchor and inserts content before it.
func (rt *Runtime) Mount(target *render.Node, fn func(anchor *render.Node)) (unmount func()) {
	return rt.Root(func() {
		rt.region(target, nil, fn)
	})
}

// Effect creates a user effect. It first runs in the next flush, after the
// render effects of that flush.
func (rt *Runtime) Effect(fn func() Cleanup) *Effect {
	return (*Effect)(rt.createEffect(flagEffect|flagUserEffect, fn, false))
}

// UserEffect is an alias of Effect.
func (rt *Runtime) UserEffect(fn func() Cleanup) *Effect {
	return rt.Effect(fn)
}

// RenderEffect creates an effect that runs now and before user effects on
// every flush. It is meant for host tree writes.
func (rt *Runtime) RenderEffect(fn func() Cleanup) *Effect {
	return (*Effect)(rt.createEffect(flagRenderEffect, fn, true))
}

// Block creates a structural effect. A block re-runs in place during
// traversal and keeps its branch children across runs.
func (rt *Runtime) Block(fn func() Cleanup) *Effect {
	return (*Effect)(rt.createEffect(flagBlockEffect, fn, true))
}

// Branch creates an untracked effect that owns a subtree.
func (rt *Runtime) Branch(fn func() Cleanup) *Effect {
	return (*Effect)(rt.createEffect(flagBranchEffect, fn, true))
}

// CreateEffect creates an effect of the given kind. Boundary and async
// effects carry state only NewBoundary and NewAsync set up; asking for
// them here is an E110 misuse.
func (rt *Runtime) CreateEffect(kind EffectKind, fn func() Cleanup, sync bool) *Effect {
	switch kind {
	case KindRoot:
		return (*Effect)(rt.createEffect(kind.flags(), fn, true))
	case KindBoundary, KindAsync:
		rt.misuse("E110", "kind "+kind.String())
	}
	return (*Effect)(rt.createEffect(kind.flags(), fn, sync))
}

// DestroyEffect destroys e, its children and its host nodes.
func (rt *Runtime) DestroyEffect(e *Effect) {
	if e == nil {
		return
	}
	rt.destroyEffect(e.node(), true)
}

// OnCleanup registers fn to run when the active effect re-runs or is
// destroyed.
func (rt *Runtime) OnCleanup(fn func()) {
	e := rt.activeEffect
	if e == nil {
		rt.misuse("E109", "OnCleanup")
	}
	e.teardown = chain(e.teardown, fn)
}

// CurrentEffect returns the running effect, or nil.
func (rt *Runtime) CurrentEffect() *Effect {
	return (*Effect)(rt.activeEffect)
}
