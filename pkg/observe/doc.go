// Package observe provides scheduler observers for production runtimes.
//
// This package includes:
//   - Prometheus metrics for batches, flushes, effect runs and diagnostics
//   - OpenTelemetry tracing with one span per batch
//
// Both implement reactive.Observer and can be combined:
//
//	rt := reactive.New(
//	    reactive.WithObserver(observe.NewMetrics(observe.WithNamespace("myapp"))),
//	    reactive.WithObserver(observe.NewTracing()),
//	)
//
// # Prometheus Metrics
//
// Metrics collected (with the default namespace):
//   - reactor_batches_started_total
//   - reactor_batches_committed_total
//   - reactor_batches_deferred_total: deferrals caused by outstanding async work
//   - reactor_batches_in_flight: batches started but not yet committed
//   - reactor_pending_async: async reactions holding deferred batches
//   - reactor_batch_commit_seconds: time from batch start to commit
//   - reactor_flush_iterations: loop iterations per flush
//   - reactor_effect_runs_total: effect executions by kind
//   - reactor_diagnostics_total: diagnostics by code and severity
//
// Expose them with promhttp:
//
//	reg := prometheus.NewRegistry()
//	m := observe.NewMetrics(observe.WithRegistry(reg))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # OpenTelemetry Tracing
//
// Tracing starts a span when a batch opens and ends it when the flush
// that committed the batch completes. Deferrals and flushes are recorded as span events; an error
// diagnostic sets the span status.
//
// The tracer uses the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main():
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
package observe
