package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/realmbind/internal/config"
)

// NewConfigSchemaCommand creates the config-schema command.
func NewConfigSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "config-schema",
		Short:         "Print the JSON Schema of the config file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			data, err := config.JSONSchema()
			if err != nil {
				return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
			}
			if formatter.JSON() {
				return formatter.Success(json.RawMessage(data))
			}
			fmt.Fprintln(formatter.Writer, string(data))
			return nil
		},
	}
}
