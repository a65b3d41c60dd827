package reactive

import "github.com/vango-dev/reactor/pkg/render"

// region creates a branch whose host nodes are delimited by two comments
// inserted into parent before ref. fn receives the closing comment and
// inserts its content before it, so everything the branch renders stays
// between the markers.
func (rt *Runtime) region(parent, ref *render.Node, fn func(anchor *render.Node)) *node {
	doc := parent.Document()
	start := doc.CreateComment("")
	end := doc.CreateComment("")
	parent.InsertBefore(start, ref)
	parent.InsertBefore(end, ref)

	return rt.createEffect(flagBranchEffect, func() Cleanup {
		e := rt.activeEffect
		e.nodesStart, e.nodesEnd = start, end
		if fn != nil {
			fn(end)
		}
		return nil
	}, true)
}

// regionBefore creates a region in front of anchor.
func (rt *Runtime) regionBefore(anchor *render.Node, fn func(anchor *render.Node)) *node {
	return rt.region(anchor.Parent(), anchor, fn)
}

// regionOffscreen creates a region in a detached fragment.
func (rt *Runtime) regionOffscreen(doc *render.Document, fn func(anchor *render.Node)) *node {
	return rt.region(doc.CreateFragment(), nil, fn)
}

// moveRegion moves the nodes of e in front of anchor.
func moveRegion(e *node, anchor *render.Node) {
	if e.nodesStart == nil || e.f&flagDestroyed != 0 {
		return
	}
	render.MoveRange(e.nodesStart, e.nodesEnd, anchor.Parent(), anchor)
}

// deferAppend reports whether structural changes made by the running block
// should wait for the batch to commit. The first run of a block renders in
// place.
func (rt *Runtime) deferAppend() bool {
	e := rt.activeEffect
	return e != nil && e.f&flagEffectRan != 0 && rt.currentBatch != nil
}

// ifBlock is the state of a conditional.
type ifBlock struct {
	rt     *Runtime
	anchor *render.Node
	cond   int8 // -1 before the first run

	// Indexed by condition: 0 is the else arm, 1 the then arm.
	arms      [2]func(anchor *render.Node)
	branches  [2]*node
	offscreen [2]bool

	registered *Batch
}

// If renders then while cond is true and otherwise while it is false, in
// front of anchor. Either arm may be nil. When a change happens inside a
// batch, the new arm is built offscreen and swapped in at commit.
//
// Example:
//
//	reactive.If(rt, anchor, func() bool { return loggedIn.Get() },
//	    func(a *render.Node) { a.Parent().InsertBefore(doc.CreateText("welcome"), a) },
//	    nil)
func If(rt *Runtime, anchor *render.Node, cond func() bool, then, otherwise func(anchor *render.Node)) *Effect {
	ib := &ifBlock{
		rt:     rt,
		anchor: anchor,
		cond:   -1,
		arms:   [2]func(*render.Node){otherwise, then},
	}
	e := rt.createEffect(flagBlockEffect, func() Cleanup {
		ib.update(cond())
		return nil
	}, true)
	return (*Effect)(e)
}

func (ib *ifBlock) update(c bool) {
	i := int8(0)
	if c {
		i = 1
	}
	if ib.cond == i {
		return
	}
	ib.cond = i
	rt := ib.rt
	deferred := rt.deferAppend()

	if br := ib.branches[i]; br == nil || br.f&flagDestroyed != 0 {
		ib.branches[i] = nil
		if arm := ib.arms[i]; arm != nil {
			if deferred {
				ib.branches[i] = rt.regionOffscreen(ib.anchor.Document(), arm)
				ib.offscreen[i] = true
			} else {
				ib.branches[i] = rt.regionBefore(ib.anchor, arm)
			}
		}
	}

	if !deferred {
		ib.commit()
		return
	}
	b := rt.currentBatch
	if active := ib.branches[i]; active != nil {
		delete(b.skipped, active)
	}
	if inactive := ib.branches[1-i]; inactive != nil {
		b.skipped[inactive] = true
	}
	if ib.registered != b {
		ib.registered = b
		b.onCommit(ib.commit)
	}
}

// commit shows the arm matching the current condition and pauses the other
// one, destroying it once its out-transitions are done.
func (ib *ifBlock) commit() {
	ib.registered = nil
	rt := ib.rt
	i := ib.cond

	if active := ib.branches[i]; active != nil {
		if ib.offscreen[i] {
			ib.offscreen[i] = false
			moveRegion(active, ib.anchor)
		}
		rt.resume(active)
	}

	j := 1 - i
	inactive := ib.branches[j]
	if inactive == nil || inactive.f&flagInert != 0 {
		return
	}
	rt.pause(inactive, func() {
		rt.destroyEffect(inactive, true)
		if ib.branches[j] == inactive {
			ib.branches[j] = nil
			ib.offscreen[j] = false
		}
	})
}
