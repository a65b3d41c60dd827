package reactive

// Source is a writable reactive cell.
//
// Reading a Source inside an effect or computed subscribes the reader;
// writing it marks every dependent dirty and schedules the affected effects
// into the current batch.
type Source[T any] struct {
	n *node
}

// NewSource creates a source holding v.
func NewSource[T any](rt *Runtime, v T, opts ...SignalOption) *Source[T] {
	return &Source[T]{n: rt.newSource(v, applySignalOptions(opts))}
}

func (rt *Runtime) newSource(v any, o signalOptions) *node {
	s := &node{
		rt:     rt,
		id:     rt.newID(),
		f:      flagClean,
		v:      v,
		equals: o.equals,
		label:  o.label,
	}
	if rt.frame.reaction != nil {
		rt.frame.created = append(rt.frame.created, s)
	}
	return s
}

// Get returns the value and subscribes the running reaction.
func (s *Source[T]) Get() T {
	s.n.rt.track(s.n)
	return as[T](s.n.v)
}

// Peek returns the value without subscribing.
func (s *Source[T]) Peek() T {
	return as[T](s.n.v)
}

// Set writes v. Writes inside a computed (or a block effect body) panic
// with E102.
func (s *Source[T]) Set(v T) {
	rt := s.n.rt
	rt.checkMutation(s.n)
	rt.internalSet(s.n, v, 2)
}

// Update writes fn applied to the current value.
func (s *Source[T]) Update(fn func(T) T) {
	rt := s.n.rt
	rt.checkMutation(s.n)
	rt.internalSet(s.n, fn(as[T](s.n.v)), 2)
}

// ID returns the unique identifier of the source.
func (s *Source[T]) ID() uint64 { return s.n.id }

// Label returns the diagnostic label, if any.
func (s *Source[T]) Label() string { return s.n.label }

// checkMutation forbids writes from inside a computed body or a block
// effect, except to sources created during that same run.
func (rt *Runtime) checkMutation(s *node) {
	r := rt.frame.reaction
	if r == nil || rt.untracking {
		return
	}
	if r.f&(flagDerived|flagBlockEffect) == 0 {
		return
	}
	if contains(rt.frame.created, s) {
		return
	}
	label := s.label
	if label == "" {
		label = "source"
	}
	rt.misuse("E102", "write to "+label+" inside "+describe(r))
}

func describe(r *node) string {
	if r.isDerived() {
		if r.label != "" {
			return "computed " + r.label
		}
		return "a computed"
	}
	return "a " + kindOf(r.f).String() + " effect"
}

// internalSet performs a write without misuse checks. skip is the number of
// frames between the user's call and internalSet, for dev-mode call sites.
func (rt *Runtime) internalSet(s *node, v any, skip int) {
	if s.f&flagError == 0 && s.equals(s.v, v) {
		return
	}
	b := rt.ensureBatch()
	b.capture(s, s.v, v)

	s.v = v
	s.err = nil
	s.f &^= flagError
	rt.writeVersion++
	s.wv = rt.writeVersion
	if rt.dev {
		rt.recordSite(s, skip)
	}

	rt.markReactions(s, flagDirty)

	// The running effect may read s after this write; record it so the
	// effect re-runs if it ends up depending on s.
	if e := rt.activeEffect; e != nil && e == rt.frame.reaction &&
		e.f&flagClean != 0 && e.f&(flagBranchEffect|flagRootEffect) == 0 {
		rt.frame.untrackedWrites = append(rt.frame.untrackedWrites, s)
	}
}

// internalFail stores err as the value of s. Readers that use TryGet see
// it; Get re-panics it.
func (rt *Runtime) internalFail(s *node, err error) {
	if s.f&flagError != 0 && s.err == err {
		return
	}
	b := rt.ensureBatch()
	b.capture(s, s.v, s.v)
	s.err = err
	s.f |= flagError
	rt.writeVersion++
	s.wv = rt.writeVersion
	rt.markReactions(s, flagDirty)
}

// Untrack runs fn without subscribing the running reaction to anything fn
// reads.
func (rt *Runtime) Untrack(fn func()) {
	prev := rt.untracking
	rt.untracking = true
	defer func() { rt.untracking = prev }()
	fn()
}

// Untracked returns fn's result, read without tracking.
func Untracked[T any](rt *Runtime, fn func() T) T {
	var v T
	rt.Untrack(func() { v = fn() })
	return v
}

// Tracking reports whether reads are currently being tracked.
func (rt *Runtime) Tracking() bool {
	return rt.frame.reaction != nil && !rt.untracking
}
