// Package errors provides structured error types used across the application.
// We prefer these over raw fmt.Errorf strings to enable reliable checks with
// errors.Is / errors.As and to carry minimal context about the failure.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input provided by a caller: an empty
// batch, an unparseable request body, malformed rows.
type ValidationError struct {
	Op  string // where it happened (package.Function)
	Msg string // human friendly message (no PII)
	Err error  // underlying cause (optional)
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// ExternalAPIError represents failures in external geocoding services:
// transport errors, non-2xx responses, undecodable payloads. These are caught
// at the client boundary and surfaced as notes, never as row-aborting errors.
type ExternalAPIError struct {
	Op     string
	Msg    string
	Err    error
	System string // provider name, e.g. "nominatim" / "opencage"
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", sys, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", sys, e.Op, e.Msg)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

// IsExternal reports whether err wraps an ExternalAPIError.
func IsExternal(err error) bool {
	var ex *ExternalAPIError
	return errors.As(err, &ex)
}
