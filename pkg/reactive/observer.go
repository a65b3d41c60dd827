package reactive

import (
	"time"

	"github.com/google/uuid"
)

// BatchInfo describes a batch to observers.
type BatchInfo struct {
	ID      uuid.UUID
	Writes  int
	Pending int
	Started time.Time
}

// Observer receives scheduler events. Methods are called on the runtime
// goroutine and must not block.
type Observer interface {
	BatchStarted(b BatchInfo)
	BatchCommitted(b BatchInfo, elapsed time.Duration)
	BatchDeferred(b BatchInfo)
	FlushCompleted(iterations int)
	EffectRan(kind EffectKind, id uint64)
	Diagnostic(d *Diagnostic)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// some of the methods.
type NopObserver struct{}

func (NopObserver) BatchStarted(BatchInfo)                  {}
func (NopObserver) BatchCommitted(BatchInfo, time.Duration) {}
func (NopObserver) BatchDeferred(BatchInfo)                 {}
func (NopObserver) FlushCompleted(int)                      {}
func (NopObserver) EffectRan(EffectKind, uint64)            {}
func (NopObserver) Diagnostic(*Diagnostic)                  {}

// MultiObserver fans events out to several observers.
type MultiObserver []Observer

func (m MultiObserver) BatchStarted(b BatchInfo) {
	for _, o := range m {
		o.BatchStarted(b)
	}
}

func (m MultiObserver) BatchCommitted(b BatchInfo, elapsed time.Duration) {
	for _, o := range m {
		o.BatchCommitted(b, elapsed)
	}
}

func (m MultiObserver) BatchDeferred(b BatchInfo) {
	for _, o := range m {
		o.BatchDeferred(b)
	}
}

func (m MultiObserver) FlushCompleted(iterations int) {
	for _, o := range m {
		o.FlushCompleted(iterations)
	}
}

func (m MultiObserver) EffectRan(kind EffectKind, id uint64) {
	for _, o := range m {
		o.EffectRan(kind, id)
	}
}

func (m MultiObserver) Diagnostic(d *Diagnostic) {
	for _, o := range m {
		o.Diagnostic(d)
	}
}
