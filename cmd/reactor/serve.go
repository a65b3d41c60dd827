package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/pkg/devtools"
	"github.com/vango-dev/reactor/pkg/observe"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/render"
)

func serveCmd() *cobra.Command {
	var (
		dir      string
		port     int
		host     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a demo app behind the devtools server",
		Long: `Run a ticking demo app on a live runtime and expose it through the
devtools server.

Routes:
  /debug/graph    effect tree and batches in flight
  /debug/batches  batches in flight
  /debug/stream   WebSocket feed of scheduler events
  /metrics        Prometheus metrics (when metrics are enabled)

Configuration is read from reactor.json, reactor.yaml or reactor.toml
in --config; defaults are used when none exists.

Examples:
  reactor serve
  reactor serve --config ./deploy --port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(dir)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Devtools.Port = port
			}
			if host != "" {
				cfg.Devtools.Host = host
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					info(cmd, "Shutting down...")
					cancel()
				case <-ctx.Done():
				}
			}()

			return runServe(ctx, cmd, cfg, interval)
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", ".", "Directory containing the reactor config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Devtools port (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Devtools host (default from config)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Demo app tick interval")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, interval time.Duration) error {
	logger := cfg.Logger(cmd.ErrOrStderr())

	stream := devtools.NewStream(0, logger)
	observers := reactive.MultiObserver{stream}

	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observers = append(observers, observe.NewMetrics(
			observe.WithRegistry(registry),
			observe.WithMetricsConfig(cfg.Metrics),
		))
	}
	var tracing *observe.Tracing
	if cfg.Tracing.Enabled {
		tracing = observe.NewTracing(observe.WithTracingConfig(cfg.Tracing))
		defer tracing.Close()
		observers = append(observers, tracing)
	}

	rt := reactive.New(
		reactive.WithConfig(cfg),
		reactive.WithLogger(logger),
		reactive.WithObserver(observers),
	)
	doc := render.NewDocument()
	tick := mountClock(rt, doc)

	srv := devtools.New(rt, devtools.Config{
		Addr:     cfg.DevtoolsAddress(),
		Gatherer: registry,
		Stream:   stream,
		Logger:   logger,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- rt.Run(ctx) }()
	go func() { errCh <- srv.ListenAndServe(ctx) }()

	success(cmd, "Devtools on http://%s/debug/graph", cfg.DevtoolsAddress())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rt.Dispatch(tick)
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("serve stopped", "error", err)
				return err
			}
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// mountClock mounts the serve demo app: a tick counter and a list that
// rotates on every tick. It returns the function that advances it.
func mountClock(rt *reactive.Runtime, doc *render.Document) func() {
	ticks := reactive.NewSource(rt, 0, reactive.WithLabel("ticks"))
	rows := reactive.NewComputed(rt, func() []string {
		n := ticks.Get()
		out := make([]string, 5)
		for i := range out {
			out[i] = "row " + strconv.Itoa((i+n)%len(out))
		}
		return out
	})

	rt.Mount(doc.Root(), func(anchor *render.Node) {
		h := doc.CreateElement("h1")
		anchor.Parent().InsertBefore(h, anchor)
		title := appendText(h, "")
		rt.RenderEffect(func() reactive.Cleanup {
			title.SetText(fmt.Sprintf("tick %d", ticks.Get()))
			return nil
		})

		ul := doc.CreateElement("ul")
		anchor.Parent().InsertBefore(ul, anchor)
		reactive.Each(rt, doc.Anchor(ul), rows.Get, nil,
			func(a *render.Node, item *reactive.Source[string], _ *reactive.Source[int]) {
				li := doc.CreateElement("li")
				a.Parent().InsertBefore(li, a)
				appendText(li, item.Peek())
			})

		rt.Effect(func() reactive.Cleanup {
			n := ticks.Get()
			rt.Logger().Debug("tick committed", slog.Int("ticks", n), slog.Int("patches", len(doc.TakePatches())))
			return nil
		})
	})

	return func() {
		ticks.Update(func(n int) int { return n + 1 })
	}
}
