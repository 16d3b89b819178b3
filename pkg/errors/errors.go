// Package errors defines the error taxonomy shared by the routing engine,
// the board loaders and the command line tools.
//
// Routing distinguishes three outcomes:
//   - configuration errors (bad layer index, via span outside the stack,
//     invalid design rules) are returned synchronously before the grid is
//     touched;
//   - unroutable nets and non-convergence are NOT errors, they are recorded
//     in the routing result;
//   - geometry inconsistencies are internal assertion failures and carry
//     ErrCodeInternal.
//
// Usage:
//
//	err := errors.New(errors.ErrCodeInvalidLayer, "unknown layer %q", name)
//	if errors.Is(err, errors.ErrCodeInvalidLayer) {
//	    // reject the job
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidLayer  Code = "INVALID_LAYER"
	ErrCodeInvalidVia    Code = "INVALID_VIA"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeParse         Code = "PARSE_ERROR"
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code, or "" for foreign errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConfig reports whether err is one of the fail-fast setup errors.
func IsConfig(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidConfig, ErrCodeInvalidLayer, ErrCodeInvalidVia, ErrCodeInvalidInput:
		return true
	}
	return false
}
