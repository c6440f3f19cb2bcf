package engine

import (
	"errors"
	"fmt"
)

// Error is a failure reported by an engine.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Realm identifies the realm the call was made on, if any.
	Realm RealmID
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	ErrCodeUnknownRealm        ErrorCode = "UNKNOWN_REALM"
	ErrCodeClosed              ErrorCode = "CLOSED"
	ErrCodeNotInTransaction    ErrorCode = "NOT_IN_TRANSACTION"
	ErrCodeNestedTransaction   ErrorCode = "NESTED_TRANSACTION"
	ErrCodeBusy                ErrorCode = "BUSY"
	ErrCodeUnknownType         ErrorCode = "UNKNOWN_TYPE"
	ErrCodeUnknownProperty     ErrorCode = "UNKNOWN_PROPERTY"
	ErrCodeInvalidObject       ErrorCode = "INVALID_OBJECT"
	ErrCodeTypeMismatch        ErrorCode = "TYPE_MISMATCH"
	ErrCodeNotNullable         ErrorCode = "NOT_NULLABLE"
	ErrCodeMissingValue        ErrorCode = "MISSING_VALUE"
	ErrCodeDuplicatePrimaryKey ErrorCode = "DUPLICATE_PRIMARY_KEY"
	ErrCodeIndexOutOfRange     ErrorCode = "INDEX_OUT_OF_RANGE"
	ErrCodeSchemaMismatch      ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeInvalidQuery        ErrorCode = "INVALID_QUERY"
	ErrCodePersistence         ErrorCode = "PERSISTENCE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Realm != "" {
		return fmt.Sprintf("%s: %s (realm=%s)", e.Code, e.Message, e.Realm)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf creates an *Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of an engine error, or "" for any other error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an engine error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
