package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"

	"github.com/vango-dev/reactor/pkg/reactive"
)

type recordingProvider struct {
	embedded.TracerProvider
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return p.tracer
}

type recordingTracer struct {
	embedded.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{
		Span:  trace.SpanFromContext(ctx),
		name:  name,
		attrs: cfg.Attributes(),
	}
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type recordingSpan struct {
	trace.Span
	name   string
	attrs  []attribute.KeyValue
	events []string
	status codes.Code
	ended  bool
}

func (s *recordingSpan) End(...trace.SpanEndOption) { s.ended = true }
func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}
func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }
func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}
func (s *recordingSpan) RecordError(error, ...trace.EventOption) {}

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingSpanPerBatch(t *testing.T) {
	tracer := &recordingTracer{}
	tr := NewTracing(WithTracerProvider(&recordingProvider{tracer: tracer}))
	rt := newRuntime(reactive.WithObserver(tr))

	s := reactive.NewSource(rt, 0)
	rt.Root(func() {
		rt.Effect(func() reactive.Cleanup {
			_ = s.Get()
			return nil
		})
	})
	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Set(1)
	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tracer.spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(tracer.spans))
	}
	for i, span := range tracer.spans {
		if span.name != "reactor.batch" {
			t.Errorf("span %d: expected reactor.batch, got %s", i, span.name)
		}
		if !span.ended {
			t.Errorf("span %d: expected span to end at commit", i)
		}
		if span.status != codes.Ok {
			t.Errorf("span %d: expected ok status, got %v", i, span.status)
		}
		if _, ok := span.attr("reactor.batch_id"); !ok {
			t.Errorf("span %d: expected batch id attribute", i)
		}
	}
	if v, ok := tracer.spans[1].attr("reactor.writes"); !ok || v.AsInt64() != 1 {
		t.Errorf("expected 1 write on the second batch, got %v", v)
	}
	if len(tr.spans) != 0 {
		t.Errorf("expected no open spans, got %d", len(tr.spans))
	}
}

func TestTracingMarksFatalDiagnostics(t *testing.T) {
	tracer := &recordingTracer{}
	tr := NewTracing(WithTracerProvider(&recordingProvider{tracer: tracer}))
	rt := newRuntime(reactive.WithObserver(tr), reactive.WithMaxFlushIterations(5))

	n := reactive.NewSource(rt, 0)
	rt.Root(func() {
		rt.Effect(func() reactive.Cleanup {
			n.Set(n.Get() + 1)
			return nil
		})
	})
	if err := rt.FlushSync(nil); err == nil {
		t.Fatal("expected the loop guard to trip")
	}
	tr.Close()

	span := tracer.spans[len(tracer.spans)-1]
	if span.status != codes.Error {
		t.Errorf("expected error status, got %v", span.status)
	}
	if !span.ended {
		t.Error("expected Close to end abandoned spans")
	}
	found := false
	for _, e := range span.events {
		if e == "diagnostic" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a diagnostic event, got %v", span.events)
	}
}

func TestTracingEffectEvents(t *testing.T) {
	tracer := &recordingTracer{}
	tr := NewTracing(
		WithTracerProvider(&recordingProvider{tracer: tracer}),
		WithRecordEffects(true),
	)
	rt := newRuntime(reactive.WithObserver(tr))
	s := reactive.NewSource(rt, 0)
	rt.Root(func() {
		rt.Effect(func() reactive.Cleanup {
			_ = s.Get()
			return nil
		})
	})
	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Set(1)
	if err := rt.FlushSync(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	span := tracer.spans[1]
	effects := 0
	for _, e := range span.events {
		if e == "effect" {
			effects++
		}
	}
	if effects != 1 {
		t.Errorf("expected one effect event, got %d (%v)", effects, span.events)
	}
}
