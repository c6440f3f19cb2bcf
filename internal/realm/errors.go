package realm

import (
	"errors"
	"fmt"

	"github.com/roach88/realmbind/internal/engine"
)

// Error kinds. Match with errors.Is.
var (
	// ErrState: the realm or object is closed, cleared or deleted.
	ErrState = errors.New("state error")
	// ErrSchema: the schema is invalid or does not match the file.
	ErrSchema = errors.New("schema error")
	// ErrTransaction: mutation outside a write transaction, or a nested or
	// conflicting transaction.
	ErrTransaction = errors.New("transaction error")
	// ErrType: a value was rejected for a property's kind or nullability.
	ErrType = errors.New("type error")
	// ErrIndex: a collection index is out of range.
	ErrIndex = errors.New("index error")
)

// Error is returned by every realm operation that fails.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error
	// Op names the failing operation.
	Op string
	// Message describes the failure. Empty means Err's message.
	Message string
	// Err is the underlying cause, typically an *engine.Error or
	// schema.ValidationErrors.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("realm: %v: %s", e.Kind, msg)
	}
	return fmt.Sprintf("realm: %s: %v: %s", e.Op, e.Kind, msg)
}

// Is matches the error kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// engineKinds maps engine error codes onto error kinds.
var engineKinds = map[engine.ErrorCode]error{
	engine.ErrCodeUnknownRealm:        ErrState,
	engine.ErrCodeClosed:              ErrState,
	engine.ErrCodeInvalidObject:       ErrState,
	engine.ErrCodeNotInTransaction:    ErrTransaction,
	engine.ErrCodeNestedTransaction:   ErrTransaction,
	engine.ErrCodeBusy:                ErrTransaction,
	engine.ErrCodePersistence:         ErrTransaction,
	engine.ErrCodeSchemaMismatch:      ErrSchema,
	engine.ErrCodeIndexOutOfRange:     ErrIndex,
	engine.ErrCodeUnknownType:         ErrType,
	engine.ErrCodeUnknownProperty:     ErrType,
	engine.ErrCodeTypeMismatch:        ErrType,
	engine.ErrCodeNotNullable:         ErrType,
	engine.ErrCodeMissingValue:        ErrType,
	engine.ErrCodeDuplicatePrimaryKey: ErrType,
	engine.ErrCodeInvalidQuery:        ErrType,
}

// wrapEngine classifies an engine failure. Errors that are already *Error
// pass through unchanged.
func wrapEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return err
	}
	kind, ok := engineKinds[engine.CodeOf(err)]
	if !ok {
		kind = ErrType
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
