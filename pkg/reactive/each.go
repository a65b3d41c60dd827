package reactive

import (
	"fmt"

	"github.com/vango-dev/reactor/pkg/render"
)

// EachOption configures Each.
type EachOption func(*eachOptions)

type eachOptions struct {
	fallback   func(anchor *render.Node)
	transition func() Transition
}

// EachFallback renders fn while the list is empty.
func EachFallback(fn func(anchor *render.Node)) EachOption {
	return func(o *eachOptions) { o.fallback = fn }
}

// EachTransition attaches a transition created by fn to every row. Removed
// rows are destroyed once their out-transition finishes.
func EachTransition(fn func() Transition) EachOption {
	return func(o *eachOptions) { o.transition = fn }
}

type eachItem[T any] struct {
	key  any
	e    *node
	v    *node
	i    *node
	prev *eachItem[T]
	next *eachItem[T]

	// linked is false while the row only exists offscreen.
	linked bool
}

type eachState[T any] struct {
	rt     *Runtime
	anchor *render.Node
	key    func(T) any
	row    func(anchor *render.Node, item *Source[T], index *Source[int])
	opts   eachOptions

	items map[any]*eachItem[T]
	first *eachItem[T]
	order []*eachItem[T]

	fallback          *node
	fallbackOffscreen bool

	registered *Batch
}

// Each renders one row per element of items in front of anchor. Rows are
// identified by key: when the list changes, existing rows are moved rather
// than recreated, and a row's item and index sources are updated in place.
// A nil key uses the element itself. Keys must be comparable.
//
// Example:
//
//	reactive.Each(rt, anchor, todos.Get, func(t Todo) any { return t.ID },
//	    func(a *render.Node, item *reactive.Source[Todo], _ *reactive.Source[int]) {
//	        text := doc.CreateText("")
//	        a.Parent().InsertBefore(text, a)
//	        rt.RenderEffect(func() reactive.Cleanup {
//	            text.SetText(item.Get().Title)
//	            return nil
//	        })
//	    })
func Each[T any](rt *Runtime, anchor *render.Node, items func() []T, key func(T) any,
	row func(anchor *render.Node, item *Source[T], index *Source[int]), opts ...EachOption) *Effect {
	s := &eachState[T]{
		rt:     rt,
		anchor: anchor,
		key:    key,
		row:    row,
		items:  make(map[any]*eachItem[T]),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	if s.key == nil {
		s.key = func(v T) any { return v }
	}
	e := rt.createEffect(flagBlockEffect, func() Cleanup {
		s.update(items())
		return nil
	}, true)
	return (*Effect)(e)
}

func (s *eachState[T]) update(values []T) {
	rt := s.rt
	order := make([]*eachItem[T], 0, len(values))
	keep := make(map[any]bool, len(values))

	rt.Untrack(func() {
		for i, v := range values {
			k := s.key(v)
			if keep[k] {
				rt.warn("W202", fmt.Sprintf("key %v at index %d", k, i))
				continue
			}
			keep[k] = true
			it := s.items[k]
			if it == nil {
				it = s.create(k, v, len(order))
				s.items[k] = it
			} else {
				rt.internalSet(it.v, v, 1)
				rt.internalSet(it.i, len(order), 1)
			}
			order = append(order, it)
		}
	})

	deferred := rt.deferAppend()
	if len(order) == 0 && s.opts.fallback != nil && (s.fallback == nil || s.fallback.f&flagDestroyed != 0) {
		if deferred {
			s.fallback = rt.regionOffscreen(s.anchor.Document(), s.opts.fallback)
			s.fallbackOffscreen = true
		} else {
			s.fallback = rt.regionBefore(s.anchor, s.opts.fallback)
			s.fallbackOffscreen = false
		}
	}
	s.order = order

	if !deferred {
		s.commit()
		return
	}
	b := rt.currentBatch
	for _, it := range order {
		delete(b.skipped, it.e)
	}
	for it := s.first; it != nil; it = it.next {
		if !keep[it.key] {
			b.skipped[it.e] = true
		}
	}
	if s.registered != b {
		s.registered = b
		b.onCommit(s.commit)
	}
}

// create builds a row offscreen. reconcile moves it into place.
func (s *eachState[T]) create(k any, v T, index int) *eachItem[T] {
	rt := s.rt
	it := &eachItem[T]{
		key: k,
		v:   rt.newSource(v, applySignalOptions(nil)),
		i:   rt.newSource(index, applySignalOptions(nil)),
	}
	item, idx := &Source[T]{n: it.v}, &Source[int]{n: it.i}
	it.e = rt.regionOffscreen(s.anchor.Document(), func(anchor *render.Node) {
		if s.opts.transition != nil {
			rt.Transition(s.opts.transition())
		}
		s.row(anchor, item, idx)
	})
	return it
}

func (s *eachState[T]) commit() {
	s.registered = nil
	rt := s.rt
	s.reconcile(s.order)

	// Rows created for an order that was superseded before commit.
	for k, it := range s.items {
		if !it.linked {
			rt.destroyEffect(it.e, true)
			delete(s.items, k)
		}
	}

	fb := s.fallback
	if fb == nil {
		return
	}
	if len(s.order) == 0 {
		if s.fallbackOffscreen {
			s.fallbackOffscreen = false
			moveRegion(fb, s.anchor)
		}
		rt.resume(fb)
		return
	}
	if fb.f&flagInert == 0 {
		rt.pause(fb, func() {
			rt.destroyEffect(fb, true)
			if s.fallback == fb {
				s.fallback = nil
			}
		})
	}
}

func (s *eachState[T]) link(prev, next *eachItem[T]) {
	if prev == nil {
		s.first = next
	} else {
		prev.next = next
	}
	if next != nil {
		next.prev = prev
	}
}

func (s *eachState[T]) unlink(it *eachItem[T]) {
	if it.prev == nil && s.first != it {
		return
	}
	s.link(it.prev, it.next)
	it.prev, it.next = nil, nil
}

// move places the nodes of it in front of next, or at the end of the list.
func (s *eachState[T]) move(it, next *eachItem[T]) {
	ref := s.anchor
	if next != nil {
		ref = next.e.nodesStart
	}
	render.MoveRange(it.e.nodesStart, it.e.nodesEnd, s.anchor.Parent(), ref)
}

// reconcile rearranges the rows to follow order in a single forward pass
// and pauses the rows that are no longer present.
//
// Rows passed over while looking for the next key are stashed. When a
// stashed row is wanted later, either the rows matched since the stash are
// moved in front of it or the row itself is moved, whichever moves fewer.
func (s *eachState[T]) reconcile(order []*eachItem[T]) {
	rt := s.rt
	current := s.first
	var (
		prev    *eachItem[T]
		seen    map[*eachItem[T]]bool
		matched []*eachItem[T]
		stashed []*eachItem[T]
	)

	for i := 0; i < len(order); i++ {
		item := order[i]

		if !item.linked {
			item.linked = true
			next := s.first
			if prev != nil {
				next = prev.next
			}
			s.link(prev, item)
			s.link(item, next)
			s.move(item, next)
			prev = item
			matched, stashed = nil, nil
			continue
		}

		if item.e.f&flagInert != 0 {
			rt.resume(item.e)
		}

		if item != current {
			if seen[item] {
				if len(matched) > 0 && len(matched) < len(stashed) {
					start := stashed[0]
					first, last := matched[0], matched[len(matched)-1]
					before := start.prev
					for _, m := range matched {
						s.move(m, start)
					}
					for _, st := range stashed {
						delete(seen, st)
					}
					s.link(first.prev, last.next)
					s.link(before, first)
					s.link(last, start)

					current = start
					prev = last
					i--
					matched, stashed = nil, nil
				} else {
					delete(seen, item)
					s.move(item, current)
					s.link(item.prev, item.next)
					next := s.first
					if prev != nil {
						next = prev.next
					}
					s.link(item, next)
					s.link(prev, item)
					prev = item
				}
				continue
			}

			matched, stashed = nil, nil
			for current != nil && current != item {
				if seen == nil {
					seen = make(map[*eachItem[T]]bool)
				}
				seen[current] = true
				stashed = append(stashed, current)
				current = current.next
			}
			if current == nil {
				continue
			}
		}

		matched = append(matched, item)
		prev = item
		current = item.next
	}

	keep := make(map[*eachItem[T]]bool, len(order))
	for _, it := range order {
		keep[it] = true
	}
	var doomed []*eachItem[T]
	for it := s.first; it != nil; it = it.next {
		if !keep[it] && it.e.f&flagInert == 0 {
			doomed = append(doomed, it)
		}
	}
	for _, it := range doomed {
		it := it
		rt.pause(it.e, func() {
			rt.destroyEffect(it.e, true)
			s.unlink(it)
			if s.items[it.key] == it {
				delete(s.items, it.key)
			}
		})
	}
}
