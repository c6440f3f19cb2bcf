package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/realmbind/internal/realm"
)

// QueryOptions holds the filter flags shared by objects and delete.
type QueryOptions struct {
	Filter string
	Args   []string
	Sort   []string
}

func (q *QueryOptions) register(cmd *cobra.Command, sort bool) {
	cmd.Flags().StringVarP(&q.Filter, "filter", "f", "", `predicate, e.g. 'age >= 21 && name =~ "^A"'`)
	cmd.Flags().StringArrayVar(&q.Args, "arg", nil, "positional predicate argument $N as JSON (repeatable)")
	if sort {
		cmd.Flags().StringArrayVarP(&q.Sort, "sort", "s", nil, `sort key, "-" prefix for descending (repeatable)`)
	}
}

// args decodes each --arg as JSON, falling back to the raw string.
func (q *QueryOptions) args() []any {
	out := make([]any, len(q.Args))
	for i, a := range q.Args {
		var v any
		if err := json.Unmarshal([]byte(a), &v); err != nil {
			v = a
		}
		out[i] = v
	}
	return out
}

// results returns the objects of typeName narrowed by the flags.
func (q *QueryOptions) results(r *realm.Realm, typeName string) (*realm.Results, error) {
	res, err := r.Objects(typeName)
	if err != nil {
		return nil, err
	}
	if q.Filter != "" {
		if res, err = res.Filtered(q.Filter, q.args()...); err != nil {
			return nil, err
		}
	}
	if len(q.Sort) > 0 {
		if res, err = res.Sorted(q.Sort...); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// NewObjectsCommand creates the objects command.
func NewObjectsCommand(rootOpts *RootOptions) *cobra.Command {
	q := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "objects <type>",
		Short: "List the objects of a type",
		Long: `List the objects of a type in the configured realm.

Objects are listed in creation order unless --sort is given. Links are
printed as Type#id.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runObjects(rootOpts, q, args[0], cmd)
		},
	}
	q.register(cmd, true)

	return cmd
}

func runObjects(opts *RootOptions, q *QueryOptions, typeName string, cmd *cobra.Command) (err error) {
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

	res, err := q.results(s.realm, typeName)
	if err != nil {
		return s.fail(err)
	}
	records := []*ObjectRecord{}
	for h, err := range res.All() {
		if err != nil {
			return s.fail(err)
		}
		rec, err := readRecord(h)
		if err != nil {
			return s.fail(err)
		}
		records = append(records, rec)
	}

	if formatter.JSON() {
		return formatter.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(formatter.Writer, "No %s objects\n", typeName)
		return nil
	}
	for _, rec := range records {
		fmt.Fprintln(formatter.Writer, rec)
	}
	return nil
}
