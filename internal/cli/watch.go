package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/harness"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	RunOptions
	Debounce time.Duration

	// AfterRun is called with every finished run (for testing).
	AfterRun func(*harness.RunSummary)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newWatchCommand(&WatchOptions{RunOptions: RunOptions{RootOptions: rootOpts}})
}

func newWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [filter]",
		Short: "Run scenarios and rerun them when the catalog changes",
		Long: `Run the selected scenarios once, then watch the catalog file and rerun the
selection every time it is saved. Rapid successive writes are coalesced.

A catalog that fails to load after an edit is reported and the previous
results stay on screen until the next successful save.

Press Ctrl-C to stop after the scenarios in flight; press it again to
abort them.

Example:
  convoprobe watch suite:smoke
  convoprobe watch --catalog ./scenarios.yaml --debounce 1s`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "all"
			if len(args) == 1 {
				filter = args[0]
			}
			return watchScenarios(cmd, opts, filter)
		},
	}

	addRunFlags(cmd, &opts.RunOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", catalog.DefaultDebounce, "quiet period after a catalog write before rerunning")

	return cmd
}

func watchScenarios(cmd *cobra.Command, opts *WatchOptions, filter string) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.Verbose, cmd.ErrOrStderr())

	cfg, err := opts.resolve(cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	idx, err := loadIndex(cfg.Catalog)
	if err != nil {
		return catalogFailure(formatter, err)
	}
	if _, err := idx.SelectString(filter); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFilter, "invalid filter", err)
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	p, err := openProbe(ctx, &opts.RunOptions, cfg, logger)
	if err != nil {
		return probeFailure(formatter, err)
	}
	defer p.Close()

	p.harness.OnProgress(func(pr harness.Progress) {
		fmt.Fprintln(formatter.GetErrWriter(), pr)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go handleInterrupts(ctx, sigChan, p.harness, cancel, func() { signal.Stop(sigChan) }, logger)

	runOnce := func(ctx context.Context, idx *catalog.Index) {
		sum, err := p.harness.SelectAndRun(ctx, idx, filter, cfg.Concurrency)
		if err != nil {
			logger.Error("run failed", "error", err)
			return
		}
		// Scenario failures are in the report; watch keeps going.
		_ = reportRun(formatter, sum, opts.FailOnWarn)
		if opts.AfterRun != nil {
			opts.AfterRun(sum)
		}
	}

	runOnce(ctx, idx)

	rerun := func(ctx context.Context) {
		idx, err := loadIndex(cfg.Catalog)
		if err != nil {
			fmt.Fprintf(formatter.GetErrWriter(), "catalog reload failed: %v\n", err)
			return
		}
		fmt.Fprintf(formatter.GetErrWriter(), "catalog changed, rerunning %s\n", filter)
		runOnce(ctx, idx)
	}

	w := catalog.NewWatcher(cfg.Catalog, rerun,
		catalog.WithDebounce(opts.Debounce),
		catalog.WithWatchLogger(logger),
	)
	if err := w.Run(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "watch failed", err)
	}
	return nil
}
