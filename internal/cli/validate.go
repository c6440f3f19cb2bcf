package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult is the JSON payload of a successful validate.
type ValidationResult struct {
	Valid bool     `json:"valid"`
	Types []string `json:"types"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.cue>",
		Short: "Validate a CUE schema",
		Long: `Validate a CUE schema file without writing anything.

Every problem is reported, not just the first one. Exits 1 when the
schema is invalid and 2 when the file cannot be read.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	formatter.VerboseLog("Validating schema %s", path)
	set, errs := LoadSchema(path)
	if len(errs) > 0 {
		if code, message := errorParts(errs[0]); code == ErrCodeNotFound {
			return formatter.Fail(ExitCommandError, code, message, nil)
		}
		return outputSchemaErrors(formatter, "Validation failed", ExitFailure, errs)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Types: set.Names()})
	}
	fmt.Fprintf(formatter.Writer, "✓ Schema valid: %d type(s)\n", set.Len())
	return nil
}
