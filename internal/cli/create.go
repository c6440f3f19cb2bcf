package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/realmbind/internal/realm"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <type> <values>",
		Short: "Create an object",
		Long: `Create an object in a write transaction.

values is a JSON object keyed by property name, or a JSON array in
property order. Omitted properties take their defaults. A nested
object assigned to a link creates the linked object, or updates the
existing one when its primary key matches. Dates are RFC 3339 strings.`,
		Example:       `  realmctl create Person '{"name": "Alice", "age": 30, "dogs": [{"name": "Rex"}]}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runCreate(opts *RootOptions, typeName, raw string, cmd *cobra.Command) (err error) {
	formatter := opts.formatter(cmd)
	s, err := openSession(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil && cerr != nil {
			err = s.fail(cerr)
		}
	}()

	set := s.realm.Schema()
	os, ok := set.Get(typeName)
	if !ok {
		return formatter.Fail(ExitFailure, ErrCodeType, fmt.Sprintf("unknown object type %q", typeName), nil)
	}
	values, err := parseValues(set, os, raw)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeBadInput, err.Error(), nil)
	}

	var h realm.Handle
	err = s.realm.Write(func() error {
		var err error
		h, err = s.realm.Create(typeName, values)
		return err
	})
	if err != nil {
		return s.fail(err)
	}

	rec, err := readRecord(h)
	if err != nil {
		return s.fail(err)
	}
	if formatter.JSON() {
		return formatter.Success(rec)
	}
	fmt.Fprintf(formatter.Writer, "✓ Created %s\n", rec)
	return nil
}
