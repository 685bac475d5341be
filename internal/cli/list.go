package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/harness"
	"github.com/roach88/convoprobe/internal/turn"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Catalog string
}

// ListEntry is one scenario in list output.
type ListEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Suite    string    `json:"suite,omitempty"`
	Action   string    `json:"action,omitempty"`
	Mode     turn.Mode `json:"mode"`
	Messages int       `json:"messages"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [filter]",
		Short: "List the scenarios a filter selects",
		Long: `List the scenarios a filter selects without contacting the assistant.

Each line shows the execution mode the run command would use. Filters are
the same as for run.

Example:
  convoprobe list
  convoprobe list suite:multi-turn
  convoprobe list action:static_reply --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "all"
			if len(args) == 1 {
				filter = args[0]
			}
			return listScenarios(cmd, opts, filter)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to scenario catalog (overrides config)")

	return cmd
}

func listScenarios(cmd *cobra.Command, opts *ListOptions, filter string) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog = opts.Catalog
	}

	idx, err := loadIndex(cfg.Catalog)
	if err != nil {
		return catalogFailure(formatter, err)
	}
	scenarios, err := idx.SelectString(filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeFilter, "invalid filter", err)
	}

	selector := harness.CategorySelector{
		Categories: cfg.MultiTurn.Categories,
		Suite:      cfg.MultiTurn.Suite,
	}
	entries := make([]ListEntry, len(scenarios))
	for i, s := range scenarios {
		entries[i] = ListEntry{
			ID:       s.ID,
			Name:     s.Name,
			Category: s.Category,
			Suite:    s.Suite,
			Action:   idx.ActionFor(s.ID),
			Mode:     selector.Mode(s),
			Messages: len(s.Messages),
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSUITE\tMODE\tACTION\tNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.Category, dash(e.Suite), e.Mode, dash(e.Action), e.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\n%d scenario(s)\n", len(entries))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
