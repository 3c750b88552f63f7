package optimization

import (
	"errors"
	"fmt"

	"github.com/strataopt/strata/internal/search"
)

// ErrNoValidResult is returned when every evaluation in the budget failed,
// so the run produced no usable configuration. Callers can distinguish
// "found a bad model" (a report with a poor score) from "found nothing".
var ErrNoValidResult = errors.New("optimization: budget exhausted with no valid result")

// ErrCompleted is returned when Optimize is called on an optimizer that has
// already finished a run.
var ErrCompleted = errors.New("optimization: optimizer already completed")

// Error carries the operation that failed alongside the message, in the
// style used throughout the service.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E creates an operation-scoped error.
func E(op, message string) *Error {
	return &Error{Op: op, Message: message}
}

// Ef creates an operation-scoped error with a formatted message.
func Ef(op, format string, args ...any) *Error {
	return &Error{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches operation context to an underlying error. Returns nil for a
// nil error.
func Wrap(op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Message: message, Err: err}
}

// ObjectiveError wraps a failure of the caller-supplied objective for one
// specific configuration. The evaluation is recorded with the worst possible
// score and the search continues; a branch-specific failure must not abort
// the whole run.
type ObjectiveError struct {
	Config search.Configuration
	Err    error
}

func (e *ObjectiveError) Error() string {
	return fmt.Sprintf("objective failed for %s: %v", e.Config, e.Err)
}

func (e *ObjectiveError) Unwrap() error { return e.Err }
