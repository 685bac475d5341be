package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/config"
)

// Version is reported to the assistant's MCP server. Set by main.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Client overrides the assistant connection (for testing).
	// If nil, one is built from the config's assistant section.
	Client assistant.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the convoprobe CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convoprobe",
		Short: "Scenario test harness for conversational assistants",
		Long: `convoprobe sends canned guest conversations to an assistant and checks
every reply against the rules in a scenario catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultFile, "path to config file")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger writes text logs to w: Debug and up when verbose, Warn and up
// otherwise so progress output stays readable.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadIndex(path string) (*catalog.Index, error) {
	c, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	return catalog.NewIndex(c), nil
}

// connect returns the assistant client for cfg and a function releasing it.
func connect(ctx context.Context, opts *RootOptions, cfg config.Assistant) (assistant.Client, func() error, error) {
	noop := func() error { return nil }
	if opts.Client != nil {
		return opts.Client, noop, nil
	}

	switch cfg.Transport {
	case config.TransportMCP:
		c, err := assistant.DialMCP(ctx, cfg.MCPEndpoint, Version)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		c := assistant.NewHTTPClient(cfg.BaseURL)
		if cfg.ClassifyPath != "" {
			c.ClassifyPath = cfg.ClassifyPath
		}
		if cfg.ConversePath != "" {
			c.ConversePath = cfg.ConversePath
		}
		return c, noop, nil
	}
}
