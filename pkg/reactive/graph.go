package reactive

import (
	"context"

	"github.com/vango-dev/reactor/pkg/render"
)

// node is the shared record behind sources, computeds and effects.
type node struct {
	rt *Runtime
	id uint64
	f  uint32

	// Signal fields.
	v         any
	err       error
	wv        uint64
	rv        uint64
	equals    func(a, b any) bool
	reactions []*node
	label     string
	sites     []site

	// Reaction fields.
	deps  []*node
	ev    uint64
	epoch uint64

	// Computed fields.
	fn    func() any
	owner *node

	// Effect fields.
	efn        func() Cleanup
	teardown   Cleanup
	parent     *node
	first      *node
	last       *node
	next       *node
	prev       *node
	nodesStart *render.Node
	nodesEnd   *render.Node
	b          *Boundary
	deriveds   []*node
	transition []Transition
	cancel     context.CancelCauseFunc
}

func (n *node) isDerived() bool { return n.f&flagDerived != 0 }
func (n *node) isEffect() bool  { return n.f&effectMask != 0 }

// trackFrame holds the dependency bookkeeping of the reaction currently
// running. Frames nest when a computed is evaluated inside another reaction.
type trackFrame struct {
	reaction *node
	newDeps  []*node
	skipped  int
	ver      uint64
	nested   bool

	// untrackedWrites are sources written by the running effect before it
	// read them.
	untrackedWrites []*node

	// sources created during this run may be written freely.
	created []*node
}

// track registers s as a dependency of the running reaction. Reads in the
// same order as the previous run reuse the existing dependency slots.
func (rt *Runtime) track(s *node) {
	fr := &rt.frame
	r := fr.reaction
	if r == nil || rt.untracking || r.f&flagUpdating == 0 {
		return
	}
	if s.rv == fr.ver {
		return
	}
	if fr.nested && fr.contains(r, s) {
		s.rv = fr.ver
		return
	}
	s.rv = fr.ver
	if fr.newDeps == nil && fr.skipped < len(r.deps) && r.deps[fr.skipped] == s {
		fr.skipped++
		return
	}
	fr.newDeps = append(fr.newDeps, s)
}

// contains scans the dependencies collected so far. Only needed once a
// nested run has overwritten read versions.
func (fr *trackFrame) contains(r, s *node) bool {
	for _, d := range r.deps[:fr.skipped] {
		if d == s {
			return true
		}
	}
	for _, d := range fr.newDeps {
		if d == s {
			return true
		}
	}
	return false
}

// runTracked runs body as the new run of reaction r, rebuilding r.deps from
// what body reads. Branch and root effects do not track.
func (rt *Runtime) runTracked(r *node, body func()) {
	prev := rt.frame
	prevUntracking := rt.untracking

	rt.readVersion++
	tracked := r
	if r.f&(flagBranchEffect|flagRootEffect) != 0 {
		tracked = nil
	}
	rt.frame = trackFrame{reaction: tracked, ver: rt.readVersion}
	rt.untracking = false
	r.f |= flagUpdating

	completed := false
	defer func() {
		// A failed run keeps what it read so a later write can retry it.
		if !completed && tracked != nil {
			rt.commitDeps(r)
		}
		r.f &^= flagUpdating
		prev.nested = true
		rt.frame = prev
		rt.untracking = prevUntracking
	}()

	body()
	completed = true

	if tracked == nil {
		return
	}
	rt.commitDeps(r)

	// A write that happened before the effect read the source could not
	// reach it; re-run if it is now a dependency.
	if writes := rt.frame.untrackedWrites; writes != nil && r.f&(flagDerived|flagDirty|flagMaybeDirty) == 0 {
		for _, s := range writes {
			rt.selfInvalidate(s, r)
		}
	}
}

func (rt *Runtime) commitDeps(r *node) {
	fr := &rt.frame
	deps := r.deps
	subscribe := !(r.isDerived() && r.f&flagDisconnected != 0)

	if fr.newDeps != nil {
		rt.removeReactions(r, fr.skipped, fr.newDeps)
		if fr.skipped > 0 {
			deps = append(deps[:fr.skipped:fr.skipped], fr.newDeps...)
		} else {
			deps = fr.newDeps
		}
		r.deps = deps
		if subscribe {
			for i := fr.skipped; i < len(deps); i++ {
				deps[i].reactions = append(deps[i].reactions, r)
			}
		}
	} else if fr.skipped < len(deps) {
		rt.removeReactions(r, fr.skipped, nil)
		r.deps = deps[:fr.skipped]
	}
}

// removeReactions unsubscribes r from r.deps[start:]. Computeds left with
// no reactions are disconnected unless they are about to be re-added.
func (rt *Runtime) removeReactions(r *node, start int, keep []*node) {
	for i := start; i < len(r.deps); i++ {
		dep := r.deps[i]
		if !removeReaction(dep, r) {
			continue
		}
		if dep.isDerived() && len(dep.reactions) == 0 && !contains(keep, dep) {
			rt.disconnect(dep)
		}
	}
}

// removeReaction deletes r from s.reactions by swap-and-pop.
func removeReaction(s, r *node) bool {
	for i, x := range s.reactions {
		if x == r {
			last := len(s.reactions) - 1
			s.reactions[i] = s.reactions[last]
			s.reactions[last] = nil
			s.reactions = s.reactions[:last]
			if len(s.reactions) == 0 {
				s.reactions = nil
			}
			return true
		}
	}
	return false
}

func contains(list []*node, n *node) bool {
	for _, x := range list {
		if x == n {
			return true
		}
	}
	return false
}

// disconnect detaches a computed nobody subscribes to. It keeps its value
// and is version-checked on every read until reconnected.
func (rt *Runtime) disconnect(d *node) {
	if d.f&flagDisconnected != 0 {
		return
	}
	d.f |= flagDisconnected
	setStatus(d, flagMaybeDirty)
	rt.removeReactions(d, 0, nil)
}

// reconnect re-subscribes a disconnected computed (and the disconnected
// computeds it depends on) so that writes reach it again.
func (rt *Runtime) reconnect(d *node) {
	if d.f&flagDisconnected == 0 {
		return
	}
	d.f &^= flagDisconnected
	for _, dep := range d.deps {
		dep.reactions = append(dep.reactions, d)
		if dep.isDerived() {
			rt.reconnect(dep)
		}
	}
	if d.f&flagDirty == 0 {
		setStatus(d, flagMaybeDirty)
	}
}

// markReactions propagates a change of s: direct dependents get status,
// dependents of computeds get maybe-dirty. Effects are scheduled.
func (rt *Runtime) markReactions(s *node, status uint32) {
	for _, r := range s.reactions {
		f := r.f
		notDirty := f&flagDirty == 0
		if notDirty {
			setStatus(r, status)
		}
		if f&flagDerived != 0 {
			if f&flagWasMarked == 0 {
				r.f |= flagWasMarked
				rt.markReactions(r, flagMaybeDirty)
			}
		} else if notDirty {
			rt.scheduleEffect(r)
		}
	}
}

// invalidate marks every computed downstream of s dirty without scheduling
// effects.
func (rt *Runtime) invalidate(s *node) {
	for _, r := range s.reactions {
		if r.isDerived() && r.f&flagDirty == 0 {
			setStatus(r, flagDirty)
			rt.invalidate(r)
		}
	}
}

// selfInvalidate re-schedules effect e if it (transitively) depends on s.
func (rt *Runtime) selfInvalidate(s, e *node) {
	for _, r := range s.reactions {
		if r.isDerived() {
			rt.selfInvalidate(r, e)
		} else if r == e {
			setStatus(r, flagDirty)
			rt.scheduleEffect(r)
		}
	}
}

// isDirty reports whether reaction r must re-run. Maybe-dirty reactions are
// resolved by bringing their computed dependencies up to date and comparing
// write versions.
func (rt *Runtime) isDirty(r *node) bool {
	f := r.f
	if f&flagDirty != 0 {
		return true
	}
	if f&flagMaybeDirty == 0 {
		return false
	}
	// Values were swapped under a disconnected computed since it last ran.
	if f&flagDisconnected != 0 && r.epoch != rt.epoch {
		return true
	}
	for _, dep := range r.deps {
		if dep.isDerived() && rt.isDirty(dep) {
			rt.updateDerived(dep)
		}
		if dep.wv > r.ev {
			return true
		}
	}
	if f&flagDisconnected == 0 {
		setStatus(r, flagClean)
	}
	return false
}
