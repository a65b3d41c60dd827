package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/reactor/pkg/reactive"
)

// Config configures the devtools server.
type Config struct {
	// Addr is the listen address (default: "localhost:7070").
	Addr string

	// Gatherer serves /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Stream receives scheduler events for /debug/stream. It must also be
	// registered on the runtime with reactive.WithObserver.
	Stream *Stream

	// InspectTimeout bounds how long a request waits for the runtime
	// goroutine. Default: 2s.
	InspectTimeout time.Duration

	Logger *slog.Logger
}

// Server exposes a running runtime over HTTP.
//
// Routes:
//   - GET /debug/graph: effect tree and batches as JSON
//   - GET /debug/batches: batches in flight as JSON
//   - GET /debug/stream: WebSocket feed of scheduler events
//   - GET /metrics: Prometheus metrics
//   - GET /healthz
type Server struct {
	rt     *reactive.Runtime
	config Config
	router chi.Router
}

// New creates a devtools server for rt.
func New(rt *reactive.Runtime, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:7070"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.InspectTimeout <= 0 {
		cfg.InspectTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = rt.Logger()
	}

	s := &Server{rt: rt, config: cfg}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/debug", func(r chi.Router) {
		r.Get("/graph", s.handleGraph)
		r.Get("/batches", s.handleBatches)
		if cfg.Stream != nil {
			r.Get("/stream", cfg.Stream.HandleWebSocket)
		}
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// inspect takes a snapshot on the runtime goroutine.
func (s *Server) inspect(ctx context.Context) (reactive.GraphSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.InspectTimeout)
	defer cancel()

	var g reactive.GraphSnapshot
	err := s.rt.Call(ctx, func() error {
		g = s.rt.Inspect()
		return nil
	})
	return g, err
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.inspect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, struct {
		reactive.GraphSnapshot
		Effects int `json:"effects"`
	}{g, g.Count()})
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	g, err := s.inspect(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, g.Batches)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	s.config.Logger.Warn("devtools inspect failed", "error", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully. The stream, if any, is run alongside.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if st := s.config.Stream; st != nil {
		go st.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("devtools listening", "addr", s.config.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
