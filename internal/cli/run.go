package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/config"
	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/store"
	"github.com/roach88/convoprobe/internal/turn"
)

// RunOptions holds flags for the run and watch commands.
type RunOptions struct {
	*RootOptions
	Catalog       string
	Concurrency   int
	Database      string
	SingleTimeout time.Duration
	MultiTimeout  time.Duration
	FailOnWarn    bool

	// HarnessOptions are applied after the config-derived ones (for testing).
	HarnessOptions []harness.Option
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [filter]",
		Short: "Run catalog scenarios against the assistant",
		Long: `Run the selected scenarios against the assistant and report the results.

The filter selects scenarios:
  all                 every scenario (default)
  suite:<tag>         scenarios tagged with the suite
  action:<name>       scenarios whose primary intent routes to the action
  category:<name>     scenarios in the category
  <word>              a suite if one is tagged <word>, otherwise an action

Scenarios in a multi-turn category or suite run as one conversation with
history and a session id; all others send each message to the stateless
classifier.

Progress is written to stderr. The first Ctrl-C stops claiming new
scenarios and lets in-flight ones finish. A second Ctrl-C aborts the
in-flight scenarios, which are reported as failed; a third exits at once.

Exit codes:
  0 - All scenarios passed (warnings allowed unless --fail-on-warn)
  1 - A scenario failed, or the run was cancelled
  2 - Command error (bad config, unreadable catalog, unknown filter)

Example:
  convoprobe run
  convoprobe run suite:smoke --concurrency 8
  convoprobe run greeting --db ./history.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "all"
			if len(args) == 1 {
				filter = args[0]
			}
			return runScenarios(cmd, opts, filter)
		},
	}

	addRunFlags(cmd, opts)

	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *RunOptions) {
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to scenario catalog (overrides config)")
	cmd.Flags().IntVarP(&opts.Concurrency, "concurrency", "j", 0, fmt.Sprintf("scenarios in flight, 1-%d (overrides config)", harness.MaxConcurrency))
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (overrides config)")
	cmd.Flags().DurationVar(&opts.SingleTimeout, "timeout-single", 0, "per-call timeout for classification (overrides config)")
	cmd.Flags().DurationVar(&opts.MultiTimeout, "timeout-multi", 0, "per-call timeout for conversation turns (overrides config)")
	cmd.Flags().BoolVar(&opts.FailOnWarn, "fail-on-warn", false, "exit 1 when any scenario warns")
}

// resolve loads the config and applies the flags the user set.
func (o *RunOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig(o.RootOptions)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.Catalog = o.Catalog
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = o.Concurrency
	}
	if flags.Changed("db") {
		cfg.Database = o.Database
	}
	if flags.Changed("timeout-single") {
		cfg.Assistant.SingleTimeout = o.SingleTimeout
	}
	if flags.Changed("timeout-multi") {
		cfg.Assistant.MultiTimeout = o.MultiTimeout
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// probe is a harness wired to its assistant connection and history store.
type probe struct {
	cfg     config.Config
	harness *harness.Harness
	closers []func() error
	logger  *slog.Logger
}

func openProbe(ctx context.Context, opts *RunOptions, cfg config.Config, logger *slog.Logger) (*probe, error) {
	p := &probe{cfg: cfg, logger: logger}

	client, closeClient, err := connect(ctx, opts.RootOptions, cfg.Assistant)
	if err != nil {
		return nil, err
	}
	p.closers = append(p.closers, closeClient)

	hopts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithHistoryLimit(cfg.HistoryLimit),
		harness.WithSelector(harness.CategorySelector{
			Categories: cfg.MultiTurn.Categories,
			Suite:      cfg.MultiTurn.Suite,
		}),
		harness.WithTurnOptions(turn.WithTimeouts(cfg.Assistant.SingleTimeout, cfg.Assistant.MultiTimeout)),
	}

	if cfg.Database != "" {
		logger.Debug("opening history database", "path", cfg.Database)
		st, err := store.Open(cfg.Database)
		if err != nil {
			p.Close()
			return nil, errStore{err}
		}
		p.closers = append(p.closers, st.Close)
		hopts = append(hopts, harness.WithRecorder(st))
	}

	hopts = append(hopts, opts.HarnessOptions...)
	p.harness = harness.New(client, hopts...)
	return p, nil
}

// Close releases the store and the assistant connection.
func (p *probe) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			p.logger.Error("error closing resource", "error", err)
		}
	}
}

// errStore marks a failure to open the history database.
type errStore struct{ err error }

func (e errStore) Error() string { return "open history database: " + e.err.Error() }
func (e errStore) Unwrap() error { return e.err }

func runScenarios(cmd *cobra.Command, opts *RunOptions, filter string) error {
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

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	p, err := openProbe(ctx, opts, cfg, logger)
	if err != nil {
		return probeFailure(formatter, err)
	}
	defer p.Close()

	p.harness.OnProgress(func(pr harness.Progress) {
		fmt.Fprintln(formatter.GetErrWriter(), pr)
	})
	p.harness.OnScenarioComplete(func(r *harness.ScenarioResult) {
		formatter.VerboseLog("%s %s (%dms)", r.Status, r.Scenario.ID, r.ElapsedMs)
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go handleInterrupts(ctx, sigChan, p.harness, nil, func() { signal.Stop(sigChan) }, logger)

	sum, err := p.harness.SelectAndRun(ctx, idx, filter, cfg.Concurrency)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "run failed", err)
	}
	return reportRun(formatter, sum, opts.FailOnWarn)
}

// interruptible is the part of the harness a signal handler drives.
type interruptible interface {
	RequestCancel()
	Abort()
}

// handleInterrupts escalates on repeated signals. The first requests a
// cooperative cancel and calls onFirst. The second aborts in-flight
// scenarios and calls release, which should restore default signal
// handling so a third signal terminates the process. Returns when ctx is
// done or after the second signal.
func handleInterrupts(ctx context.Context, sigs <-chan os.Signal, h interruptible, onFirst, release func(), logger *slog.Logger) {
	select {
	case sig := <-sigs:
		logger.Warn("received signal, finishing in-flight scenarios", "signal", sig)
		h.RequestCancel()
		if onFirst != nil {
			onFirst()
		}
	case <-ctx.Done():
		return
	}

	select {
	case sig := <-sigs:
		logger.Warn("received second signal, aborting in-flight scenarios", "signal", sig)
		h.Abort()
		release()
	case <-ctx.Done():
	}
}

// reportRun writes the summary and turns its outcome into an exit code.
func reportRun(f *OutputFormatter, sum *harness.RunSummary, failOnWarn bool) error {
	outcome := runOutcome(sum, failOnWarn)

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: sum, RunID: sum.ID}
		if outcome != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeScenarioFails, Message: outcome.Message}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else if err := harness.WriteText(f.Writer, sum); err != nil {
		return err
	}

	if outcome != nil {
		return outcome
	}
	return nil
}

func runOutcome(sum *harness.RunSummary, failOnWarn bool) *ExitError {
	switch {
	case sum.FailCount > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", sum.FailCount))
	case sum.Cancelled:
		return NewExitError(ExitFailure, fmt.Sprintf("run cancelled after %d of %d scenarios", sum.Completed, sum.Total))
	case failOnWarn && sum.WarnCount > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) warned", sum.WarnCount))
	default:
		return nil
	}
}

func catalogFailure(f *OutputFormatter, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "catalog not found", err)
	}
	return f.Fail(ExitCommandError, ErrCodeCatalogParse, "failed to load catalog", err)
}

func probeFailure(f *OutputFormatter, err error) error {
	var se errStore
	if errors.As(err, &se) {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open history database", se.err)
	}
	return f.Fail(ExitCommandError, ErrCodeConnect, "failed to connect to assistant", err)
}
