// internal/login/errors.go
package login

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode is a stable string identifier for reporting failures.
type ErrorCode string

const (
	ErrCodeDriverStart     ErrorCode = "DRIVER_START_FAILURE"
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeFormFillFailed  ErrorCode = "FORM_FILL_FAILED"
	ErrCodeSubmitFailed    ErrorCode = "SUBMIT_FAILED"
	ErrCodeNavigation      ErrorCode = "NAVIGATION_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeUnknown         ErrorCode = "UNKNOWN"
)

var (
	// ErrSubmitFailed is returned when no submission strategy could run.
	ErrSubmitFailed = errors.New("no submission strategy could run")
	// ErrAttemptInProgress guards the single-owner page invariant.
	ErrAttemptInProgress = errors.New("a login attempt is already running on this page")
	// ErrNavigation wraps driver navigation failures.
	ErrNavigation = errors.New("navigation failed")
)

// DriverStartError reports that the browser could not be started at all.
type DriverStartError struct {
	Cause error
}

func (e *DriverStartError) Error() string {
	return fmt.Sprintf("browser driver failed to start: %v", e.Cause)
}

func (e *DriverStartError) Unwrap() error { return e.Cause }

// ElementNotFoundError reports that no candidate selector of a mandatory
// field resolved within the locate budget.
type ElementNotFoundError struct {
	Field string
	Tried []Selector
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found (tried %d selectors)", e.Field, len(e.Tried))
}

func (e *ElementNotFoundError) Unwrap() error { return ErrNotFound }

// FormFillError reports that writing the form failed. Cause is the last
// transient failure when the retry budget ran out, or the fatal one.
type FormFillError struct {
	Action   string
	Attempts int
	Cause    error
}

func (e *FormFillError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("form fill %q failed after %d attempts: %v", e.Action, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("form fill %q failed: %v", e.Action, e.Cause)
}

func (e *FormFillError) Unwrap() error { return e.Cause }

// AbortedError is the only error AttemptLogin returns. It records the state
// the controller was in when the fatal condition occurred.
type AbortedError struct {
	State   State
	Cause   error
	Outcome Outcome
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("login aborted in state %s: %v", e.State, e.Cause)
}

func (e *AbortedError) Unwrap() error { return e.Cause }

// CodeOf maps an error chain to its reporting code.
func CodeOf(err error) ErrorCode {
	var (
		startErr *DriverStartError
		notFound *ElementNotFoundError
		fillErr  *FormFillError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &startErr):
		return ErrCodeDriverStart
	// Checked before ElementNotFound: a fill error may wrap a missing field.
	case errors.As(err, &fillErr):
		return ErrCodeFormFillFailed
	case errors.As(err, &notFound):
		return ErrCodeElementNotFound
	case errors.Is(err, ErrSubmitFailed):
		return ErrCodeSubmitFailed
	case errors.Is(err, ErrNavigation):
		return ErrCodeNavigation
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeUnknown
	}
}
