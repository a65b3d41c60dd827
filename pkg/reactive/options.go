package reactive

import (
	"log/slog"

	"github.com/vango-dev/reactor/internal/config"
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

// WithObserver registers an observer of the scheduler. Multiple observers
// are called in registration order.
func WithObserver(o Observer) Option {
	return func(rt *Runtime) {
		if o != nil {
			rt.observers = append(rt.observers, o)
		}
	}
}

// WithDiagnosticHandler sets a callback that receives every diagnostic. The
// handler cannot change runtime behavior.
func WithDiagnosticHandler(fn func(*Diagnostic)) Option {
	return func(rt *Runtime) {
		rt.onDiagnostic = fn
	}
}

// WithMaxFlushIterations sets the loop guard ceiling. Default: 1000.
func WithMaxFlushIterations(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxFlush = n
		}
	}
}

// WithDevMode enables development diagnostics. Writes record their call
// site so the loop guard can report every contributing write.
func WithDevMode(dev bool) Option {
	return func(rt *Runtime) {
		rt.dev = dev
	}
}

// WithDispatchBuffer bounds the number of callbacks Dispatch will hold.
// Default: 256.
func WithDispatchBuffer(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.dispatchLimit = n
		}
	}
}

// WithConfig applies the scheduler and dev settings of a loaded config.
func WithConfig(cfg *config.Config) Option {
	return func(rt *Runtime) {
		if cfg == nil {
			return
		}
		WithMaxFlushIterations(cfg.Scheduler.MaxFlushIterations)(rt)
		WithDispatchBuffer(cfg.Scheduler.DispatchBuffer)(rt)
		rt.dev = cfg.Dev
	}
}

// SignalOption configures a Source or Computed.
type SignalOption func(*signalOptions)

type signalOptions struct {
	equals func(a, b any) bool
	label  string
}

// WithEquals sets a custom equality function. A write (or recomputation)
// that compares equal to the current value does not propagate.
//
// Example:
//
//	pos := reactive.NewSource(rt, Point{}, reactive.WithEquals(func(a, b Point) bool {
//	    return a.X == b.X && a.Y == b.Y
//	}))
func WithEquals[T any](fn func(a, b T) bool) SignalOption {
	return func(o *signalOptions) {
		o.equals = func(a, b any) bool { return fn(as[T](a), as[T](b)) }
	}
}

// WithSafeEquals treats NaN as equal to NaN and every reference-like value as
// changed. Use it for values that are mutated in place and written back.
func WithSafeEquals() SignalOption {
	return func(o *signalOptions) {
		o.equals = safeEquals
	}
}

// WithLabel names a signal for diagnostics and devtools.
func WithLabel(name string) SignalOption {
	return func(o *signalOptions) {
		o.label = name
	}
}

func applySignalOptions(opts []SignalOption) signalOptions {
	options := signalOptions{equals: strictEquals}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
