// internal/login/locator.go
package login

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultLocatePoll = 200 * time.Millisecond

// Locator resolves semantic fields to live handles. It holds no handles of
// its own: every call resolves against the current document.
type Locator struct {
	driver Driver
	logger *zap.Logger
	// Budget bounds the total time Locate may poll.
	Budget time.Duration
	// Poll is the pause between full passes over the candidate list.
	Poll time.Duration
}

// NewLocator creates a Locator with the given overall wait budget.
func NewLocator(driver Driver, budget time.Duration, logger *zap.Logger) *Locator {
	return &Locator{
		driver: driver,
		logger: logger.Named("locator"),
		Budget: budget,
		Poll:   defaultLocatePoll,
	}
}

// Resolve makes exactly one pass over the candidates and returns the first
// live handle. It returns ErrNotFound without waiting if nothing matches.
func (l *Locator) Resolve(ctx context.Context, field FieldDescriptor) (Handle, Selector, error) {
	h, idx, err := FirstMatch(ctx, field.Candidates, func(ctx context.Context, sel Selector) (Handle, bool, error) {
		h, err := l.driver.FindElement(ctx, sel)
		switch {
		case err == nil:
			return h, true, nil
		case errors.Is(err, ErrNotFound):
			return nil, false, nil
		default:
			return nil, false, err
		}
	})
	if err != nil {
		return nil, Selector{}, err
	}
	if idx < 0 {
		return nil, Selector{}, ErrNotFound
	}
	return h, field.Candidates[idx], nil
}

// Locate polls Resolve until a handle is found or the budget is spent, in
// which case it fails with *ElementNotFoundError.
func (l *Locator) Locate(ctx context.Context, field FieldDescriptor) (Handle, error) {
	budget := l.Budget
	if budget <= 0 {
		budget = time.Second
	}
	locCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	poll := l.Poll
	if poll <= 0 {
		poll = defaultLocatePoll
	}

	for {
		h, sel, err := l.Resolve(locCtx, field)
		if err == nil {
			l.logger.Debug("Field resolved.", zap.String("field", field.Name), zap.Stringer("selector", sel))
			return h, nil
		}
		if !errors.Is(err, ErrNotFound) && locCtx.Err() == nil {
			return nil, err
		}
		// Cancellation by the caller is not a locate failure; an expired
		// deadline is.
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}

		timer := time.NewTimer(poll)
		select {
		case <-locCtx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, ctx.Err()
			}
			l.logger.Debug("Field not found within budget.", zap.String("field", field.Name), zap.Duration("budget", budget))
			return nil, &ElementNotFoundError{Field: field.Name, Tried: field.Candidates}
		case <-timer.C:
		}
	}
}
