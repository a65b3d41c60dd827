package reactive

// Computed is a memoized value derived from other signals.
//
// A computed is lazy: it recomputes only when read after one of its
// dependencies changed, and at most once per change. While something
// reactive reads it, it stays subscribed to its dependencies; otherwise it
// is disconnected and checks dependency versions on each read.
type Computed[T any] struct {
	n *node
}

// NewComputed creates a computed from fn. A computed created inside an
// effect is owned by it.
//
// Example:
//
//	count := reactive.NewSource(rt, 1)
//	double := reactive.NewComputed(rt, func() int { return count.Get() * 2 })
func NewComputed[T any](rt *Runtime, fn func() T, opts ...SignalOption) *Computed[T] {
	o := applySignalOptions(opts)
	d := &node{
		rt:     rt,
		id:     rt.newID(),
		f:      flagDerived | flagDirty | flagDisconnected,
		equals: o.equals,
		label:  o.label,
		fn:     func() any { return fn() },
	}
	if e := rt.activeEffect; e != nil {
		d.owner = e
		e.deriveds = append(e.deriveds, d)
	} else {
		d.f |= flagUnowned
	}
	return &Computed[T]{n: d}
}

// Get returns the current value, recomputing if needed. If the computation
// failed, Get panics with the error so that it reaches the nearest
// boundary of the reading effect.
func (c *Computed[T]) Get() T {
	c.n.rt.readDerived(c.n)
	if c.n.f&flagError != 0 {
		panic(c.n.err)
	}
	return as[T](c.n.v)
}

// TryGet returns the current value or the error the computation failed
// with.
func (c *Computed[T]) TryGet() (T, error) {
	c.n.rt.readDerived(c.n)
	if c.n.f&flagError != 0 {
		var zero T
		return zero, c.n.err
	}
	return as[T](c.n.v), nil
}

// Peek returns the current value without subscribing.
func (c *Computed[T]) Peek() T {
	var v T
	c.n.rt.Untrack(func() { v, _ = c.TryGet() })
	return v
}

// ID returns the unique identifier of the computed.
func (c *Computed[T]) ID() uint64 { return c.n.id }

func (rt *Runtime) readDerived(d *node) {
	if d.f&flagUpdating != 0 {
		rt.misuse("E103", describe(d)+" reads itself")
	}
	rt.track(d)

	// Readers that are themselves subscribed pull the computed into the
	// graph so writes reach it again.
	if r := rt.frame.reaction; r != nil && !rt.untracking {
		if r.isEffect() || r.f&flagDisconnected == 0 {
			rt.reconnect(d)
		}
	}
	if rt.isDirty(d) {
		rt.updateDerived(d)
	}
}

// updateDerived recomputes d and bumps its write version if the value (or
// error) changed.
func (rt *Runtime) updateDerived(d *node) {
	var (
		v   any
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				if isMisuse(r) {
					panic(r)
				}
				if f, ok := r.(fatalError); ok {
					panic(f)
				}
				err = panicError(r)
			}
		}()
		rt.runTracked(d, func() { v = d.fn() })
	}()

	if d.f&flagDisconnected != 0 {
		setStatus(d, flagMaybeDirty)
	} else {
		setStatus(d, flagClean)
	}
	d.ev = rt.writeVersion
	d.epoch = rt.epoch

	switch {
	case err != nil:
		if d.f&flagError != 0 && d.err == err {
			return
		}
		d.err = err
		d.f |= flagError
	case d.f&flagError != 0:
		d.err = nil
		d.f &^= flagError
		d.v = v
	case d.f&flagEffectRan != 0 && d.equals(d.v, v):
		return
	default:
		d.v = v
	}
	d.f |= flagEffectRan
	rt.writeVersion++
	d.wv = rt.writeVersion
}
