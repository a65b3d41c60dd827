package reactive

import (
	"time"

	"github.com/google/uuid"
)

// Batch collects the writes of one turn and the effects they dirtied, and
// commits them together. A batch waiting on async work stays alive while
// newer batches run.
type Batch struct {
	rt      *Runtime
	id      uuid.UUID
	started time.Time

	// current holds the value each touched source has in this batch,
	// previous the value it had before the batch first wrote it.
	current  map[*node]any
	previous map[*node]any
	sources  []*node

	render        []*node
	user          []*node
	block         []*node
	async         []*node
	boundaryAsync []*node

	// Effects held back while async work is outstanding.
	dirty      []*node
	maybeDirty []*node

	pending   int
	callbacks []func()

	// skipped branches are about to be removed at commit and are not
	// traversed.
	skipped map[*node]bool
}

func newBatch(rt *Runtime) *Batch {
	return &Batch{
		rt:       rt,
		id:       uuid.New(),
		started:  time.Now(),
		current:  make(map[*node]any),
		previous: make(map[*node]any),
		skipped:  make(map[*node]bool),
	}
}

// ID returns the batch identifier used in logs, spans and devtools.
func (b *Batch) ID() uuid.UUID { return b.id }

// Pending returns the number of outstanding async units.
func (b *Batch) Pending() int { return b.pending }

func (b *Batch) info() BatchInfo {
	return BatchInfo{ID: b.id, Writes: len(b.sources), Pending: b.pending, Started: b.started}
}

// ensureBatch returns the current batch, creating it (and queueing its
// flush) when there is none.
func (rt *Runtime) ensureBatch() *Batch {
	if b := rt.currentBatch; b != nil {
		return b
	}
	b := newBatch(rt)
	rt.currentBatch = b
	rt.batches = append(rt.batches, b)
	rt.logger.Debug("batch started", "batch", b.id)
	for _, o := range rt.observers {
		o.BatchStarted(b.info())
	}
	if !rt.flushingSync {
		rt.QueueMicrotask(func() {
			// A synchronous flush may have taken over in the meantime.
			if rt.currentBatch != b {
				return
			}
			b.flush()
		})
	}
	return b
}

func (rt *Runtime) removeBatch(b *Batch) {
	for i, x := range rt.batches {
		if x == b {
			rt.batches = append(rt.batches[:i], rt.batches[i+1:]...)
			return
		}
	}
}

func (rt *Runtime) hasBatch(b *Batch) bool {
	for _, x := range rt.batches {
		if x == b {
			return true
		}
	}
	return false
}

// capture records a write of s in the batch.
func (b *Batch) capture(s *node, old, v any) {
	if _, ok := b.previous[s]; !ok {
		b.previous[s] = old
		b.sources = append(b.sources, s)
	}
	b.current[s] = v
}

// onCommit registers fn to run when the batch commits.
func (b *Batch) onCommit(fn func()) {
	b.callbacks = append(b.callbacks, fn)
}

// process traverses the queued roots and either commits the batch or, when
// async work is outstanding, holds its effects back.
func (b *Batch) process() {
	rt := b.rt
	roots := rt.queuedRoots
	rt.queuedRoots = nil

	func() {
		restore := b.apply()
		defer restore()

		for _, root := range roots {
			b.traverse(root)
		}

		if len(b.async) == 0 && b.pending == 0 {
			b.commit()
			render, user := b.render, b.user
			b.render, b.user, b.block = nil, nil, nil

			rt.currentBatch = nil
			rt.flushQueued(render)
			rt.flushQueued(user)

			// Effects that wrote state opened a new batch; this one is done.
			if rt.currentBatch == nil {
				rt.currentBatch = b
			} else {
				rt.removeBatch(b)
			}
			return
		}

		b.deferEffects(b.render)
		b.deferEffects(b.user)
		b.deferEffects(b.block)
		b.render, b.user, b.block = nil, nil, nil
		rt.logger.Debug("batch deferred", "batch", b.id, "pending", b.pending)
		for _, o := range rt.observers {
			o.BatchDeferred(b.info())
		}
	}()

	async, boundaryAsync := b.async, b.boundaryAsync
	b.async, b.boundaryAsync = nil, nil
	for _, e := range async {
		rt.updateEffect(e)
	}
	for _, e := range boundaryAsync {
		rt.updateEffect(e)
	}
}

// apply substitutes the values this batch sees while other batches are in
// flight: its own writes, and the pre-write values of everyone else's. The
// returned function restores the live values unless they were written again
// in the meantime.
func (b *Batch) apply() (restore func()) {
	rt := b.rt
	if len(rt.batches) < 2 {
		return func() {}
	}

	type saved struct {
		v  any
		wv uint64
	}
	snapshot := make(map[*node]saved)
	var order []*node

	for _, s := range b.sources {
		snapshot[s] = saved{v: s.v, wv: s.wv}
		order = append(order, s)
		s.v = b.current[s]
	}
	for _, other := range rt.batches {
		if other == b {
			continue
		}
		for _, s := range other.sources {
			if _, ok := snapshot[s]; ok {
				continue
			}
			snapshot[s] = saved{v: s.v, wv: s.wv}
			order = append(order, s)
			s.v = other.previous[s]
		}
	}
	if len(order) == 0 {
		return func() {}
	}

	rt.epoch++
	for _, s := range order {
		rt.invalidate(s)
	}
	return func() {
		for _, s := range order {
			if sv := snapshot[s]; s.wv <= sv.wv {
				s.v = sv.v
			}
			rt.invalidate(s)
		}
		rt.epoch++
	}
}

// traverse walks the subtree of root in creation order, collecting effects
// into buckets and updating dirty blocks in place.
func (b *Batch) traverse(root *node) {
	rt := b.rt
	root.f |= flagClean

	e := root.first
	for e != nil {
		f := e.f
		isBranch := f&(flagBranchEffect|flagRootEffect) != 0
		skip := (isBranch && f&flagClean != 0) || f&flagInert != 0 || b.skipped[e]

		if !skip && e.efn != nil {
			switch {
			case isBranch:
				e.f |= flagClean
			case f&flagUserEffect != 0:
				b.user = append(b.user, e)
			case f&flagRenderEffect != 0:
				b.render = append(b.render, e)
			case f&flagClean == 0:
				if f&flagAsyncEffect != 0 {
					if !rt.isDirty(e) {
						break
					}
					if e.b != nil && e.b.isPending() {
						b.boundaryAsync = append(b.boundaryAsync, e)
					} else {
						b.async = append(b.async, e)
					}
				} else if rt.isDirty(e) {
					if f&flagBlockEffect != 0 {
						b.block = append(b.block, e)
					}
					rt.updateEffect(e)
				}
			}

			if child := e.first; child != nil {
				e = child
				continue
			}
		}

		parent := e.parent
		e = e.next
		for e == nil && parent != nil && parent != root {
			e = parent.next
			parent = parent.parent
		}
	}
}

// deferEffects moves effects into the holding lists and marks them clean so
// they are not scheduled again until the batch resumes.
func (b *Batch) deferEffects(effects []*node) {
	for _, e := range effects {
		if e.f&flagDirty != 0 {
			b.dirty = append(b.dirty, e)
		} else {
			b.maybeDirty = append(b.maybeDirty, e)
		}
		setStatus(e, flagClean)
	}
}

// commit runs the commit callbacks in registration order. Callbacks
// registered by a callback run in the same commit.
func (b *Batch) commit() {
	for len(b.callbacks) > 0 {
		callbacks := b.callbacks
		b.callbacks = nil
		for _, fn := range callbacks {
			fn()
		}
	}
	clear(b.skipped)

	elapsed := time.Since(b.started)
	b.rt.logger.Debug("batch committed", "batch", b.id, "writes", len(b.sources), "elapsed", elapsed)
	for _, o := range b.rt.observers {
		o.BatchCommitted(b.info(), elapsed)
	}
}

func (b *Batch) increment() {
	b.pending++
}

// decrement settles one async unit. The last one reschedules the held-back
// effects; the caller flushes.
func (b *Batch) decrement() {
	rt := b.rt
	if b.pending--; b.pending > 0 {
		return
	}
	rt.currentBatch = b
	for _, e := range b.dirty {
		if e.f&flagDestroyed == 0 {
			setStatus(e, flagDirty)
			rt.scheduleEffect(e)
		}
	}
	for _, e := range b.maybeDirty {
		if e.f&flagDestroyed == 0 {
			setStatus(e, flagMaybeDirty)
			rt.scheduleEffect(e)
		}
	}
	b.dirty, b.maybeDirty = nil, nil
}

// flush processes whatever is queued with b as the current batch, then
// retires it if nothing is outstanding.
func (b *Batch) flush() {
	rt := b.rt
	rt.currentBatch = b
	if len(rt.queuedRoots) > 0 {
		rt.flushEffects()
	} else if b.pending == 0 && len(b.callbacks) > 0 {
		b.commit()
	}

	if rt.currentBatch != b {
		return
	}
	if b.pending == 0 {
		rt.removeBatch(b)
	}
	rt.currentBatch = nil
}

// sites lists the distinct dev-mode write locations of the batch.
func (b *Batch) sites() []site {
	var out []site
	for _, s := range b.sources {
		for _, st := range s.sites {
			dup := false
			for _, o := range out {
				if o.file == st.file && o.line == st.line {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, st)
			}
		}
	}
	return out
}
