package logo

import (
	"errors"
	"fmt"
)

// Error definitions specific to Logo evaluation.
var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrCancelled       = errors.New("run cancelled")
)

// Error categories
const (
	ErrCategorySyntax  = "SYNTAX ERROR"
	ErrCategoryRuntime = "RUNTIME ERROR"
)

// Error is a structured evaluation failure. It always wraps one of the
// sentinel errors above so callers can use errors.Is.
type Error struct {
	Category string // SYNTAX ERROR or RUNTIME ERROR
	Command  string // Literal command word (optional)
	Line     int    // Source line, 0 if unknown
	Detail   string // Extra context (optional)
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Category
	if e.Line > 0 {
		msg += fmt.Sprintf(" IN LINE %d", e.Line)
	}
	msg += ": " + e.Err.Error()
	if e.Command != "" {
		msg += " " + e.Command
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category string, err error, command string, line int) *Error {
	return &Error{Category: category, Err: err, Command: command, Line: line}
}

// withDetail adds a short explanation to the error
func (e *Error) withDetail(format string, args ...interface{}) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}
