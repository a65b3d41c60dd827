package reactive

import "github.com/vango-dev/reactor/pkg/render"

// Transition animates the host nodes of an effect in and out.
type Transition interface {
	// In runs when the effect is created or resumed. It cancels a running Out.
	In()
	// Out runs when the effect is paused; done must be called (on the
	// runtime goroutine) once the animation has finished.
	Out(done func())
	// Global transitions also run when an ancestor branch is paused.
	Global() bool
}

// Transition attaches t to the active effect and plays its intro.
func (rt *Runtime) Transition(t Transition) {
	e := rt.activeEffect
	if e == nil {
		rt.misuse("E109", "Transition")
	}
	e.transition = append(e.transition, t)
	t.In()
}

// PauseEffect marks e and its subtree inert: the scheduler skips them and
// their host elements become inert. onComplete runs once every local
// out-transition has finished, unless e was resumed or destroyed first.
// Pausing does not destroy e.
func (rt *Runtime) PauseEffect(e *Effect, onComplete func()) {
	rt.pause(e.node(), onComplete)
}

// ResumeEffect clears the inert state set by PauseEffect. Effects whose
// dependencies changed while paused are scheduled, not run immediately.
func (rt *Runtime) ResumeEffect(e *Effect) {
	rt.resume(e.node())
}

func (rt *Runtime) pause(e *node, onComplete func()) {
	if e.f&flagDestroyed != 0 {
		return
	}
	var transitions []Transition
	pauseChildren(e, &transitions, true)
	if e.nodesStart != nil {
		render.SetInert(e.nodesStart, e.nodesEnd, true)
	}

	finish := func() {
		if e.f&flagInert == 0 || e.f&flagDestroyed != 0 {
			return
		}
		if onComplete != nil {
			onComplete()
		}
	}
	remaining := len(transitions)
	if remaining == 0 {
		finish()
		return
	}
	for _, t := range transitions {
		called := false
		t.Out(func() {
			if called {
				return
			}
			called = true
			if remaining--; remaining == 0 {
				finish()
			}
		})
	}
}

func pauseChildren(e *node, transitions *[]Transition, local bool) {
	if e.f&flagInert != 0 {
		return
	}
	e.f |= flagInert
	for _, t := range e.transition {
		if local || t.Global() {
			*transitions = append(*transitions, t)
		}
	}
	for child := e.first; child != nil; child = child.next {
		transparent := child.f&(flagTransparent|flagBranchEffect) != 0
		pauseChildren(child, transitions, transparent && local)
	}
}

func (rt *Runtime) resume(e *node) {
	if e.f&flagDestroyed != 0 {
		return
	}
	resumeChildren(rt, e, true)
	if e.nodesStart != nil {
		render.SetInert(e.nodesStart, e.nodesEnd, false)
	}
}

func resumeChildren(rt *Runtime, e *node, local bool) {
	if e.f&flagInert == 0 {
		return
	}
	e.f &^= flagInert
	if e.f&flagClean == 0 {
		setStatus(e, flagDirty)
		rt.scheduleEffect(e)
	}
	for child := e.first; child != nil; child = child.next {
		transparent := child.f&(flagTransparent|flagBranchEffect) != 0
		resumeChildren(rt, child, transparent && local)
	}
	for _, t := range e.transition {
		if local || t.Global() {
			t.In()
		}
	}
}
