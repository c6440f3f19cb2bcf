package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/realmbind/internal/schema"
)

// Error codes shared by every command. Schema validation problems keep
// their E2xx code from the schema package.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // CUE syntax or evaluation error
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeDecodeFailed = "E006" // CUE value does not describe a schema
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeConfig       = "E008" // Invalid config file
	ErrCodeBadInput     = "E009" // Unparseable command input
	ErrCodeTestFailed   = "E010" // One or more scenarios failed

	ErrCodeState       = "E301" // Realm closed or object deleted
	ErrCodeSchema      = "E302" // Schema rejected by the engine
	ErrCodeTransaction = "E303" // Write transaction refused
	ErrCodeType        = "E304" // Value rejected by the engine
	ErrCodeIndex       = "E305" // Index out of range
)

// LoadError is a problem found while loading a schema file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSchema reads and compiles a CUE schema file. On failure every
// problem is returned as a *LoadError.
func LoadSchema(path string) (*schema.Set, []error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema file: %v", err)}}
	}
	if info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a file: %s", path)}}
	}

	set, err := schema.LoadFile(path)
	if err != nil {
		return nil, convertSchemaError(err)
	}
	return set, nil
}

func convertSchemaError(err error) []error {
	var verrs schema.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]error, len(verrs))
		for i, ve := range verrs {
			out[i] = &LoadError{Code: ve.Code, Message: ve.Field + ": " + ve.Message}
		}
		return out
	}
	var cerr *schema.CompileError
	if errors.As(err, &cerr) {
		code := ErrCodeDecodeFailed
		if cerr.Field == "cue" {
			code = ErrCodeLoadFailed
		}
		return []error{&LoadError{Code: code, Message: cerr.Message, Pos: cerr.Pos}}
	}
	return []error{&LoadError{Code: ErrCodeGeneric, Message: err.Error()}}
}

// errorParts extracts code and message from an error returned by LoadSchema.
func errorParts(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
