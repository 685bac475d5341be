package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Scenario string
}

// RunDetail is the JSON output of history for a single run.
type RunDetail struct {
	Run       store.RunRecord        `json:"run"`
	Scenarios []store.ScenarioRecord `json:"scenarios"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show runs recorded in the history database.

Without arguments the most recent runs are listed. With a run id, that
run's scenario results are shown. With --scenario, the recent results of
one scenario across runs are shown, which helps spot flaky scenarios.

Example:
  convoprobe history --db ./history.db
  convoprobe history --db ./history.db --scenario booking-flow --limit 10
  convoprobe history --db ./history.db 01932c4e-7a1b-7c3d-9e2f-123456789abc`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (overrides config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of entries (defaults to history_limit)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show results of one scenario across runs")

	return cmd
}

func showHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.Database = opts.Database
	}
	if cfg.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "no history database configured (set --db or database)", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = cfg.HistoryLimit
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	switch {
	case len(args) == 1:
		run, err := st.GetRun(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "run not found", err)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
		}
		scenarios, err := st.RunResults(ctx, run.ID)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(RunDetail{Run: run, Scenarios: scenarios})
		}
		return writeRunDetail(formatter, run, scenarios)

	case opts.Scenario != "":
		records, err := st.ScenarioHistory(ctx, opts.Scenario, limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read scenario history", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(records)
		}
		return writeScenarioRecords(formatter, records)

	default:
		runs, err := st.RecentRuns(ctx, limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to read runs", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(runs)
		}
		return writeRuns(formatter, runs)
	}
}

func writeRuns(f *OutputFormatter, runs []store.RunRecord) error {
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSELECTION\tRESULT\tELAPSED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n", r.ID, r.StartedAt.Format(time.RFC3339), dash(r.Selection), runCounts(r), r.ElapsedMs)
	}
	return tw.Flush()
}

func runCounts(r store.RunRecord) string {
	s := fmt.Sprintf("%d/%d: %d pass, %d warn, %d fail", r.Completed, r.Total, r.PassCount, r.WarnCount, r.FailCount)
	if r.Cancelled {
		s += " (cancelled)"
	}
	return s
}

func writeRunDetail(f *OutputFormatter, run store.RunRecord, scenarios []store.ScenarioRecord) error {
	fmt.Fprintf(f.Writer, "Run %s at %s\n%s\n\n", run.ID, run.StartedAt.Format(time.RFC3339), runCounts(run))
	return writeScenarioRecords(f, scenarios)
}

func writeScenarioRecords(f *OutputFormatter, records []store.ScenarioRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(f.Writer, "No results recorded")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSCENARIO\tSTATUS\tMODE\tELAPSED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n", r.RunID, r.ScenarioID, strings.ToUpper(string(r.Status)), r.Mode, r.ElapsedMs)
	}
	return tw.Flush()
}
