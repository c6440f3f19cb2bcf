package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/realmbind/internal/realm"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// KindInfo describes one property kind.
type KindInfo struct {
	Kind      schema.Kind `json:"kind"`
	GoType    string      `json:"go_type"`
	Converter bool        `json:"converter"`
}

var goTypes = map[schema.Kind]string{
	schema.Bool:   "bool",
	schema.Int:    "int64",
	schema.Float:  "float32",
	schema.Double: "float64",
	schema.String: "string",
	schema.Date:   "time.Time",
	schema.Data:   "[]byte",
	schema.Object: "realm.Handle",
	schema.List:   "*realm.List",
}

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "kinds",
		Short:         "List the property kinds a schema may declare",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKinds(rootOpts, cmd)
		},
	}
}

func runKinds(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	kinds := realm.Kinds()
	infos := make([]KindInfo, len(kinds))
	for i, k := range kinds {
		_, ok := realm.LookupConverter(wire.Kind(k))
		infos[i] = KindInfo{Kind: k, GoType: goTypes[k], Converter: ok}
	}

	if formatter.JSON() {
		return formatter.Success(infos)
	}
	for _, info := range infos {
		line := fmt.Sprintf("%-7s %s", info.Kind, info.GoType)
		if !info.Converter {
			line += " (no converter)"
		}
		fmt.Fprintln(formatter.Writer, line)
	}
	return nil
}
