package variable

import (
	"errors"
	"fmt"
)

// BreakGraphError is the recoverable control signal of call dispatch: the
// current call cannot be represented in the trace, so the caller must abandon
// tracing for this region and execute it directly. Any component that mutated
// shared trace state before deciding to break must restore its checkpoint
// before returning one of these.
type BreakGraphError struct {
	Reason string
	Cause  error
}

func (e *BreakGraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("break graph: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("break graph: %s", e.Reason)
}

func (e *BreakGraphError) Unwrap() error { return e.Cause }

// InternalError marks a programmer or integration mistake: a broken factory
// registry, a missing companion variable, guards requested on untraceable
// provenance. It is never raised for guest-program behavior and is never
// caught by guest-facing logic.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// Breakf builds a BreakGraphError with a formatted reason.
func Breakf(format string, a ...any) *BreakGraphError {
	return &BreakGraphError{Reason: fmt.Sprintf(format, a...)}
}

// Internalf builds an InternalError with a formatted message.
func Internalf(format string, a ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, a...)}
}

// Recoverable reports whether err is, or wraps, a break-graph condition.
// Internal errors are never recoverable.
func Recoverable(err error) bool {
	var bg *BreakGraphError
	return errors.As(err, &bg)
}
