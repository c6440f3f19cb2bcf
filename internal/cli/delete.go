package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteResult is the JSON payload of delete.
type DeleteResult struct {
	Type    string `json:"type"`
	Deleted int    `json:"deleted"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	q := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "delete <type>",
		Short: "Delete the objects of a type",
		Long: `Delete every object of a type, or only those matching --filter, in
one write transaction. Links to deleted objects become null and list
entries pointing at them are removed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, q, args[0], cmd)
		},
	}
	q.register(cmd, false)

	return cmd
}

func runDelete(opts *RootOptions, q *QueryOptions, typeName string, cmd *cobra.Command) (err error) {
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

	var n int
	err = s.realm.Write(func() error {
		res, err := q.results(s.realm, typeName)
		if err != nil {
			return err
		}
		if n, err = res.Length(); err != nil {
			return err
		}
		return s.realm.Delete(res)
	})
	if err != nil {
		return s.fail(err)
	}

	if formatter.JSON() {
		return formatter.Success(DeleteResult{Type: typeName, Deleted: n})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %d %s object(s)\n", n, typeName)
	return nil
}
