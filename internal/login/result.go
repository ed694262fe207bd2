// internal/login/result.go
package login

import "errors"

// ActionStatus classifies how a single driver action ended.
type ActionStatus int

const (
	StatusDone ActionStatus = iota
	// StatusTransient failures are retried by the Retrier.
	StatusTransient
	// StatusFatal failures end the attempt immediately.
	StatusFatal
)

func (s ActionStatus) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusTransient:
		return "transient"
	case StatusFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ActionResult is returned by every retriable action in place of a bare error.
type ActionResult struct {
	Status ActionStatus
	Err    error
}

// Done reports success.
func Done() ActionResult { return ActionResult{Status: StatusDone} }

// Transient reports a recoverable failure.
func Transient(err error) ActionResult { return ActionResult{Status: StatusTransient, Err: err} }

// Fatal reports an unrecoverable failure.
func Fatal(err error) ActionResult { return ActionResult{Status: StatusFatal, Err: err} }

// ResultOf classifies a driver error. Only ErrStaleHandle is transient.
func ResultOf(err error) ActionResult {
	switch {
	case err == nil:
		return Done()
	case errors.Is(err, ErrStaleHandle):
		return Transient(err)
	default:
		return Fatal(err)
	}
}
