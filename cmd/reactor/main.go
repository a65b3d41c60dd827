package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ve *errors.Error
		if stderrors.As(err, &ve) {
			errors.PrintError(ve)
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reactor",
		Short: "Fine-grained reactive runtime",
		Long: `Reactor is a fine-grained reactive runtime for Go.

Sources, computeds and effects form a dependency graph; writes are
grouped into batches that commit to the host tree together. Features:

  • Glitch-free batched updates
  • Async boundaries with pending and failed content
  • Keyed list reconciliation with minimal moves
  • Prometheus metrics, OpenTelemetry spans and a devtools server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		versionCmd(),
		demoCmd(),
		benchCmd(),
		serveCmd(),
		explainCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", fmt.Sprintf(format, args...))
}

// cliLogger returns the logger used by one-shot commands: warnings and
// errors only.
func cliLogger(w io.Writer) *slog.Logger {
	cfg := config.New()
	cfg.Log.Level = "warn"
	return cfg.Logger(w)
}
