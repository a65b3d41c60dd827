package observe

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/pkg/reactive"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactor").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for commit duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the commit duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// WithMetricsConfig applies the metrics section of a loaded config.
func WithMetricsConfig(cfg config.MetricsConfig) MetricsOption {
	return func(c *MetricsConfig) {
		if cfg.Namespace != "" {
			c.Namespace = cfg.Namespace
		}
		c.Subsystem = cfg.Subsystem
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: config.DefaultNamespace,
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.Observer that records scheduler activity as
// Prometheus metrics.
type Metrics struct {
	reactive.NopObserver

	batchesStarted   prometheus.Counter
	batchesCommitted prometheus.Counter
	batchesDeferred  prometheus.Counter
	batchesInFlight  prometheus.Gauge
	pendingAsync     prometheus.Gauge
	commitDuration   prometheus.Histogram
	flushIterations  prometheus.Histogram
	effectRuns       *prometheus.CounterVec
	diagnostics      *prometheus.CounterVec

	// open maps each uncommitted batch to its outstanding async count.
	// Only touched on the runtime goroutine.
	open map[uuid.UUID]int
}

// NewMetrics registers the scheduler metrics and returns the observer.
// Registering twice with the same registry panics, as promauto does.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		batchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "batches_started_total",
			Help:        "Total number of batches opened",
			ConstLabels: cfg.ConstLabels,
		}),

		batchesCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "batches_committed_total",
			Help:        "Total number of batches committed",
			ConstLabels: cfg.ConstLabels,
		}),

		batchesDeferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "batches_deferred_total",
			Help:        "Total number of batch deferrals caused by outstanding async work",
			ConstLabels: cfg.ConstLabels,
		}),

		batchesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "batches_in_flight",
			Help:        "Number of batches started but not yet committed",
			ConstLabels: cfg.ConstLabels,
		}),

		pendingAsync: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "pending_async",
			Help:        "Async reactions outstanding across deferred batches",
			ConstLabels: cfg.ConstLabels,
		}),

		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "batch_commit_seconds",
			Help:        "Time from batch start to commit in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),

		flushIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "flush_iterations",
			Help:        "Scheduler loop iterations per flush",
			ConstLabels: cfg.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 50, 100, 500, 1000},
		}),

		effectRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "effect_runs_total",
			Help:        "Total number of effect executions by kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),

		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "diagnostics_total",
			Help:        "Total number of diagnostics by code and severity",
			ConstLabels: cfg.ConstLabels,
		}, []string{"code", "severity"}),

		open: make(map[uuid.UUID]int),
	}
}

// BatchStarted implements reactive.Observer.
func (m *Metrics) BatchStarted(b reactive.BatchInfo) {
	m.batchesStarted.Inc()
	m.open[b.ID] = 0
	m.updateOpen()
}

func (m *Metrics) updateOpen() {
	pending := 0
	for _, n := range m.open {
		pending += n
	}
	m.batchesInFlight.Set(float64(len(m.open)))
	m.pendingAsync.Set(float64(pending))
}

// BatchCommitted implements reactive.Observer.
func (m *Metrics) BatchCommitted(b reactive.BatchInfo, elapsed time.Duration) {
	m.batchesCommitted.Inc()
	m.commitDuration.Observe(elapsed.Seconds())
	delete(m.open, b.ID)
	m.updateOpen()
}

// BatchDeferred implements reactive.Observer.
func (m *Metrics) BatchDeferred(b reactive.BatchInfo) {
	m.batchesDeferred.Inc()
	m.open[b.ID] = b.Pending
	m.updateOpen()
}

// FlushCompleted implements reactive.Observer.
func (m *Metrics) FlushCompleted(iterations int) {
	if iterations > 0 {
		m.flushIterations.Observe(float64(iterations))
	}
}

// EffectRan implements reactive.Observer.
func (m *Metrics) EffectRan(kind reactive.EffectKind, _ uint64) {
	m.effectRuns.WithLabelValues(kind.String()).Inc()
}

// Diagnostic implements reactive.Observer.
func (m *Metrics) Diagnostic(d *reactive.Diagnostic) {
	m.diagnostics.WithLabelValues(d.Code, string(d.Severity)).Inc()
}
