package reactive

import "time"

// EffectSnapshot describes one effect of the tree.
type EffectSnapshot struct {
	ID       uint64           `json:"id"`
	Kind     string           `json:"kind"`
	Status   string           `json:"status"`
	Inert    bool             `json:"inert,omitempty"`
	Deps     int              `json:"deps"`
	Deriveds int              `json:"deriveds,omitempty"`
	Host     bool             `json:"host,omitempty"`
	Children []EffectSnapshot `json:"children,omitempty"`
}

// BatchSnapshot describes a batch that has not finished.
type BatchSnapshot struct {
	ID      string    `json:"id"`
	Writes  int       `json:"writes"`
	Pending int       `json:"pending"`
	Started time.Time `json:"started"`
	Current bool      `json:"current,omitempty"`
}

// GraphSnapshot is a read-only copy of the runtime state.
type GraphSnapshot struct {
	Roots        []EffectSnapshot `json:"roots"`
	Batches      []BatchSnapshot  `json:"batches"`
	QueuedRoots  int              `json:"queuedRoots"`
	Microtasks   int              `json:"microtasks"`
	WriteVersion uint64           `json:"writeVersion"`
}

// Inspect returns a snapshot of the effect tree and the batches in flight.
func (rt *Runtime) Inspect() GraphSnapshot {
	g := GraphSnapshot{
		Roots:        make([]EffectSnapshot, 0, len(rt.roots)),
		Batches:      make([]BatchSnapshot, 0, len(rt.batches)),
		QueuedRoots:  len(rt.queuedRoots),
		Microtasks:   len(rt.microtasks),
		WriteVersion: rt.writeVersion,
	}
	for _, r := range rt.roots {
		g.Roots = append(g.Roots, snapshotEffect(r))
	}
	for _, b := range rt.batches {
		g.Batches = append(g.Batches, BatchSnapshot{
			ID:      b.id.String(),
			Writes:  len(b.sources),
			Pending: b.pending,
			Started: b.started,
			Current: b == rt.currentBatch,
		})
	}
	return g
}

func snapshotEffect(e *node) EffectSnapshot {
	s := EffectSnapshot{
		ID:       e.id,
		Kind:     kindOf(e.f).String(),
		Status:   statusString(e.f),
		Inert:    e.f&flagInert != 0,
		Deps:     len(e.deps),
		Deriveds: len(e.deriveds),
		Host:     e.nodesStart != nil,
	}
	for c := e.first; c != nil; c = c.next {
		s.Children = append(s.Children, snapshotEffect(c))
	}
	return s
}

// Count returns the number of effects in the snapshot.
func (g GraphSnapshot) Count() int {
	n := 0
	var walk func([]EffectSnapshot)
	walk = func(list []EffectSnapshot) {
		for _, e := range list {
			n++
			walk(e.Children)
		}
	}
	walk(g.Roots)
	return n
}
