package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/realmbind/internal/schema"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the normalized schema written by compile.
type CompilationResult struct {
	Hash  string                 `json:"hash" yaml:"hash"`
	Types []*schema.ObjectSchema `json:"types" yaml:"types"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema.cue>",
		Short: "Compile a CUE schema to normalized descriptors",
		Long: `Compile a CUE schema file into normalized object descriptors.

Type shorthands are expanded, every descriptor is validated and the
schema hash the engine uses to detect mismatches is computed. With
--output the result is written as JSON, or YAML when the file name
ends in .yaml or .yml.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	formatter.VerboseLog("Loading schema %s", path)
	set, errs := LoadSchema(path)
	if len(errs) > 0 {
		return outputSchemaErrors(formatter, "Compilation failed", ExitCommandError, errs)
	}

	hash, err := set.Hash()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("hashing schema: %v", err), nil)
	}
	result := &CompilationResult{Hash: hash, Types: set.All()}
	for _, t := range result.Types {
		formatter.VerboseLog("Compiled type: %s", t.Name)
	}

	if opts.Output != "" {
		if err := writeCompilation(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d type(s)\n\n", len(result.Types))
	writeTypes(formatter.Writer, result.Types)
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote schema to %s\n", opts.Output)
	}
	return nil
}

// writeTypes prints one block per type.
func writeTypes(w io.Writer, types []*schema.ObjectSchema) {
	for _, t := range types {
		if t.PrimaryKey != "" {
			fmt.Fprintf(w, "%s (primary key: %s)\n", t.Name, t.PrimaryKey)
		} else {
			fmt.Fprintln(w, t.Name)
		}
		for i := range t.Properties {
			fmt.Fprintf(w, "  %s\n", describeProperty(&t.Properties[i]))
		}
	}
}

func describeProperty(p *schema.Property) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", p.Name, p.String())
	if p.Indexed {
		b.WriteString(" indexed")
	}
	if p.Default != nil {
		fmt.Fprintf(&b, " = %v", p.Default)
	}
	return b.String()
}

func writeCompilation(result *CompilationResult, filename string) error {
	var (
		data []byte
		err  error
	)
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(result)
	default:
		data, err = json.MarshalIndent(result, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding schema: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

// outputSchemaErrors prints every schema problem and returns an ExitError
// with exitCode.
func outputSchemaErrors(formatter *OutputFormatter, title string, exitCode int, errs []error) error {
	if formatter.JSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := errorParts(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}
		if err := formatter.encode(CLIResponse{Status: "error", Error: &cliErrors[0], Data: cliErrors}); err != nil {
			return err
		}
		return NewExitError(exitCode, fmt.Sprintf("%s with %d error(s)", strings.ToLower(title), len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %s\n\n", title)
	for _, err := range errs {
		code, message := errorParts(err)
		if loadErr, ok := err.(*LoadError); ok && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)
	}
	return NewExitError(exitCode, fmt.Sprintf("%s with %d error(s)", strings.ToLower(title), len(errs)))
}
