package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fincollect/internal/collector"
	"github.com/roach88/fincollect/internal/engine"
	"github.com/roach88/fincollect/internal/fetcher"
	"github.com/roach88/fincollect/internal/idalloc"
	"github.com/roach88/fincollect/internal/registry"
	"github.com/roach88/fincollect/internal/scheduler"
	"github.com/roach88/fincollect/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Fetcher overrides the HTTP fetcher built from config (for testing).
	Fetcher fetcher.Fetcher

	// Clock overrides the system clock (for testing).
	Clock engine.WallClock

	// RunTokens overrides the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunTokens engine.RunTokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the collector",
		Long: `Start the collector driver.

The collector restores its scheduler state, pause flag and active instruments
from the database (creating it if it doesn't exist), queues the configured
priority companies and then fetches the directory and instrument financials
on schedule until interrupted.

Example:
  fincollect run --config ./fincollect.yaml
  fincollect run --db /tmp/test.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollector(opts, cmd)
		},
	}

	return cmd
}

func runCollector(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	logLevel := cfg.Level()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer closeStore(st)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	reg := registry.New(logger)
	state, err := collector.Restore(ctx, st, reg, cfg.PriorityCompanies, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to restore collector state", err)
	}

	src := opts.Fetcher
	if src == nil {
		src = fetcher.NewHTTPFetcher(cfg.HTTPConfig(), nil, logger)
	}
	clock := opts.Clock
	if clock == nil {
		clock = engine.SystemClock{}
	}
	runTokens := opts.RunTokens
	if runTokens == nil {
		runTokens = engine.UUIDv7Generator{}
	}

	col := collector.New(st, reg, idalloc.New(st, idalloc.WithLogger(logger)), src,
		collector.WithClock(clock),
		collector.WithLogger(logger))
	sched := scheduler.New(reg, state, cfg.SchedulerConfig(), logger)
	eng := engine.New(sched, col,
		engine.WithClock(clock),
		engine.WithRunTokens(runTokens),
		engine.WithLogger(logger),
		engine.WithTickInterval(cfg.Schedule.TickInterval),
		engine.WithOperationTimeout(cfg.Schedule.OperationTimeout))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Collector started on %s (%d instruments, paused=%t).\n",
			cfg.Exchange, reg.Len(), state.IsPaused)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "collector error", err)
	}

	logger.Info("collector stopped gracefully")
	if opts.Format == "json" {
		return formatter.Success(map[string]any{"stopped": true, "instruments": reg.Len()})
	}
	return nil
}
