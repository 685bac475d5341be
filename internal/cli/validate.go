package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/convoprobe/internal/catalog"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidationResult is the JSON output structure for validate command.
type ValidationResult struct {
	Catalog string                    `json:"catalog"`
	Valid   bool                      `json:"valid"`
	Errors  []catalog.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Check a scenario catalog without running it",
		Long: `Validate a scenario catalog against the catalog schema, then check what
the schema cannot express: unique scenario ids, turn indices within the
message list, known rule types with their required fields, expressions
that compile, and intent mappings that name real scenarios.

Without an argument the catalog from the config file is checked.

Exit codes:
  0 - Catalog is valid
  1 - Catalog has problems
  2 - Catalog could not be read`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(opts.RootOptions)
				if err != nil {
					return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
				}
				path = cfg.Catalog
			}
			return validateCatalog(formatter, path)
		},
	}

	return cmd
}

func validateCatalog(formatter *OutputFormatter, path string) error {
	formatter.VerboseLog("Validating %s", path)

	problems, err := catalog.ValidateFile(path)
	if err != nil {
		return catalogFailure(formatter, err)
	}
	if len(problems) > 0 {
		return outputValidationErrors(formatter, path, problems)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Catalog: path, Valid: true})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, path string, errs []catalog.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Catalog: path,
			Valid:   false,
			Errors:  errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeCatalogRules,
				Message: errs[0].Error(),
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "✗ %s: validation failed\n\n", path)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  - %s\n", e.Error())
	}
	fmt.Fprintln(formatter.Writer)

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
