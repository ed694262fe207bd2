// internal/login/retrier.go
package login

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Action performs one driver operation, re-resolving its element first.
type Action func(ctx context.Context) ActionResult

// Retrier re-runs an Action while it reports a transient failure.
type Retrier struct {
	MaxAttempts int
	Delay       time.Duration
	logger      *zap.Logger
}

// NewRetrier creates a Retrier. maxAttempts below one is treated as one.
func NewRetrier(maxAttempts int, delay time.Duration, logger *zap.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{MaxAttempts: maxAttempts, Delay: delay, logger: logger.Named("retrier")}
}

// Do runs action at most MaxAttempts times. Fatal results are returned
// immediately as *FormFillError; exhausting the budget on transient results
// returns *FormFillError wrapping the last transient cause.
func (r *Retrier) Do(ctx context.Context, name string, action Action) error {
	var last error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		res := action(ctx)
		switch res.Status {
		case StatusDone:
			if attempt > 1 {
				r.logger.Debug("Action recovered after retry.", zap.String("action", name), zap.Int("attempt", attempt))
			}
			return nil
		case StatusFatal:
			return &FormFillError{Action: name, Cause: res.Err}
		}

		last = res.Err
		r.logger.Debug("Transient action failure.",
			zap.String("action", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.MaxAttempts),
			zap.Error(res.Err))

		if attempt == r.MaxAttempts {
			break
		}
		if err := sleepCtx(ctx, r.Delay); err != nil {
			return &FormFillError{Action: name, Attempts: attempt, Cause: err}
		}
	}
	return &FormFillError{Action: name, Attempts: r.MaxAttempts, Cause: last}
}

// sleepCtx pauses for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
