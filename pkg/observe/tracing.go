package observe

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "reactor").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// RecordEffects adds an event per effect run. Disabled by default;
	// busy flushes run thousands of effects.
	RecordEffects bool
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithRecordEffects enables one span event per effect run.
func WithRecordEffects(record bool) TracingOption {
	return func(c *TracingConfig) {
		c.RecordEffects = record
	}
}

// WithTracingConfig applies the tracing section of a loaded config.
func WithTracingConfig(cfg config.TracingConfig) TracingOption {
	return func(c *TracingConfig) {
		if cfg.TracerName != "" {
			c.TracerName = cfg.TracerName
		}
	}
}

// Tracing is a reactive.Observer that traces every batch as a span.
type Tracing struct {
	tracer        trace.Tracer
	recordEffects bool

	spans map[uuid.UUID]*batchSpan
	// last is the most recently started batch that is still open.
	last uuid.UUID
}

type batchSpan struct {
	span      trace.Span
	effects   int
	flushes   int
	committed bool
}

// NewTracing returns a tracing observer.
func NewTracing(opts ...TracingOption) *Tracing {
	cfg := TracingConfig{TracerName: config.DefaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	var tracer trace.Tracer
	if cfg.Provider != nil {
		tracer = cfg.Provider.Tracer(cfg.TracerName)
	} else {
		tracer = otel.Tracer(cfg.TracerName)
	}
	return &Tracing{
		tracer:        tracer,
		recordEffects: cfg.RecordEffects,
		spans:         make(map[uuid.UUID]*batchSpan),
	}
}

func (t *Tracing) current() *batchSpan {
	return t.spans[t.last]
}

// BatchStarted implements reactive.Observer.
func (t *Tracing) BatchStarted(b reactive.BatchInfo) {
	_, span := t.tracer.Start(context.Background(), "reactor.batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(b.Started),
		trace.WithAttributes(attribute.String("reactor.batch_id", b.ID.String())),
	)
	t.spans[b.ID] = &batchSpan{span: span}
	t.last = b.ID
}

// BatchDeferred implements reactive.Observer.
func (t *Tracing) BatchDeferred(b reactive.BatchInfo) {
	if s := t.spans[b.ID]; s != nil {
		s.span.AddEvent("deferred", trace.WithAttributes(
			attribute.Int("reactor.pending", b.Pending),
		))
	}
}

// BatchCommitted implements reactive.Observer. The span stays open until
// the flush completes so that the effects run by the commit are counted.
func (t *Tracing) BatchCommitted(b reactive.BatchInfo, elapsed time.Duration) {
	s := t.spans[b.ID]
	if s == nil || s.committed {
		return
	}
	s.committed = true
	s.span.SetAttributes(
		attribute.Int("reactor.writes", b.Writes),
		attribute.Int64("reactor.commit_us", elapsed.Microseconds()),
	)
	s.span.SetStatus(codes.Ok, "")
}

// FlushCompleted implements reactive.Observer.
func (t *Tracing) FlushCompleted(iterations int) {
	if s := t.current(); s != nil {
		s.flushes++
		s.span.AddEvent("flush", trace.WithAttributes(attribute.Int("reactor.iterations", iterations)))
	}
	for id, s := range t.spans {
		if s.committed {
			t.end(id, s)
		}
	}
}

func (t *Tracing) end(id uuid.UUID, s *batchSpan) {
	s.span.SetAttributes(
		attribute.Int("reactor.effect_runs", s.effects),
		attribute.Int("reactor.flushes", s.flushes),
	)
	s.span.End()
	delete(t.spans, id)
}

// EffectRan implements reactive.Observer.
func (t *Tracing) EffectRan(kind reactive.EffectKind, id uint64) {
	s := t.current()
	if s == nil {
		return
	}
	s.effects++
	if t.recordEffects {
		s.span.AddEvent("effect", trace.WithAttributes(
			attribute.String("reactor.effect_kind", kind.String()),
			attribute.Int64("reactor.effect_id", int64(id)),
		))
	}
}

// Diagnostic implements reactive.Observer. Warnings become span events;
// errors also mark the span as failed.
func (t *Tracing) Diagnostic(d *reactive.Diagnostic) {
	s := t.current()
	if s == nil {
		return
	}
	s.span.AddEvent("diagnostic", trace.WithAttributes(
		attribute.String("reactor.code", d.Code),
		attribute.String("reactor.severity", string(d.Severity)),
	))
	if !d.IsWarning() {
		s.span.RecordError(d)
		s.span.SetStatus(codes.Error, d.Code+": "+d.Message)
	}
}

// Close ends the spans of batches that never committed, e.g. after a fatal
// error reset the scheduler.
func (t *Tracing) Close() {
	for id, s := range t.spans {
		if !s.committed {
			s.span.SetStatus(codes.Error, "batch abandoned")
		}
		t.end(id, s)
	}
}
