// internal/login/controller.go
package login

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a Session Controller state.
type State int

const (
	StateInit State = iota
	StateNavigated
	StateFieldsLocated
	StateSubmitted
	StateClassified
	StateDoneSuccess
	StateDoneFailure
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateNavigated:
		return "Navigated"
	case StateFieldsLocated:
		return "FieldsLocated"
	case StateSubmitted:
		return "Submitted"
	case StateClassified:
		return "Classified"
	case StateDoneSuccess:
		return "Done(success)"
	case StateDoneFailure:
		return "Done(failure)"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDoneSuccess || s == StateDoneFailure || s == StateAborted
}

// Options configures a Controller.
type Options struct {
	TargetURL     string
	UsernameField FieldDescriptor
	PasswordField FieldDescriptor
	LocateBudget  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Submit        SubmitterConfig
	Classify      ClassifierConfig
}

// DefaultOptions returns the stock descriptors, retry budget and timeouts.
func DefaultOptions(targetURL string) Options {
	return Options{
		TargetURL:     targetURL,
		UsernameField: UsernameField,
		PasswordField: PasswordField,
		LocateBudget:  15 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    300 * time.Millisecond,
		Submit:        DefaultSubmitterConfig(),
		Classify:      DefaultClassifierConfig(),
	}
}

// Controller drives one login attempt at a time against a page it owns
// exclusively for the duration of AttemptLogin.
type Controller struct {
	driver     Driver
	opts       Options
	logger     *zap.Logger
	locator    *Locator
	submitter  *Submitter
	classifier *Classifier

	mu sync.Mutex
}

// NewController wires the locator, retrier, submitter and classifier.
func NewController(driver Driver, opts Options, logger *zap.Logger) *Controller {
	log := logger.Named("login")
	locator := NewLocator(driver, opts.LocateBudget, log)
	retrier := NewRetrier(opts.RetryAttempts, opts.RetryDelay, log)
	return &Controller{
		driver:     driver,
		opts:       opts,
		logger:     log,
		locator:    locator,
		submitter:  NewSubmitter(driver, locator, retrier, opts.Submit, opts.UsernameField, opts.PasswordField, log),
		classifier: NewClassifier(driver, locator, opts.Classify, opts.UsernameField, log),
	}
}

// attempt is the per-call mutable state; it never escapes AttemptLogin.
type attempt struct {
	id      string
	state   State
	started time.Time
	trail   *trail
	lastURL string
	out     Outcome
}

func (a *attempt) transition(to State) {
	a.trail.notef("state %s -> %s", a.state, to)
	a.state = to
}

// AttemptLogin navigates, fills, submits and classifies. A failed
// classification is a normal Outcome with Succeeded=false; only fatal
// conditions produce an error, always an *AbortedError.
func (c *Controller) AttemptLogin(ctx context.Context, creds Credentials, budget time.Duration) (Outcome, error) {
	if !c.mu.TryLock() {
		return Outcome{}, ErrAttemptInProgress
	}
	defer c.mu.Unlock()

	a := &attempt{
		id:      uuid.NewString(),
		state:   StateInit,
		started: time.Now(),
	}
	log := c.logger.With(zap.String("attempt_id", a.id))
	a.trail = newTrail(log)
	c.submitter.trail = a.trail
	c.classifier.trail = a.trail
	defer func() {
		c.submitter.trail = nil
		c.classifier.trail = nil
	}()

	if err := creds.Validate(); err != nil {
		return c.abort(ctx, a, fmt.Errorf("invalid credentials: %w", err))
	}

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	log.Info("Starting login attempt.", zap.String("url", c.opts.TargetURL), zap.Object("credentials", creds), zap.Duration("budget", budget))

	// Init -> Navigated
	if err := c.driver.Navigate(ctx, c.opts.TargetURL); err != nil {
		return c.abort(ctx, a, fmt.Errorf("%w: %s: %w", ErrNavigation, c.opts.TargetURL, err))
	}
	a.transition(StateNavigated)

	// Navigated -> FieldsLocated
	for _, field := range []FieldDescriptor{c.opts.UsernameField, c.opts.PasswordField} {
		if _, err := c.locator.Locate(ctx, field); err != nil {
			return c.abort(ctx, a, err)
		}
		a.trail.notef("field %q located", field.Name)
	}
	a.transition(StateFieldsLocated)

	// FieldsLocated -> Submitted
	sub, err := c.submitter.Run(ctx, creds)
	if err != nil {
		return c.abort(ctx, a, err)
	}
	a.out.Strategy = sub.Strategy
	a.transition(StateSubmitted)

	// Submitted -> Classified
	verdict := c.classifier.Classify(ctx, sub.InitialURL)
	// An interrupted classification proves nothing either way.
	if err := ctx.Err(); errors.Is(err, context.Canceled) {
		return c.abort(ctx, a, fmt.Errorf("classification interrupted: %w", err))
	}
	a.transition(StateClassified)

	a.out.Succeeded = verdict.Succeeded
	a.out.Heuristic = verdict.Heuristic
	if verdict.Succeeded {
		a.transition(StateDoneSuccess)
	} else {
		a.trail.notef("no heuristic confirmed success")
		a.transition(StateDoneFailure)
	}

	out := c.finish(ctx, a)
	log.Info("Login attempt finished.",
		zap.Stringer("state", out.State),
		zap.Bool("succeeded", out.Succeeded),
		zap.Stringer("heuristic", out.Heuristic),
		zap.Stringer("strategy", out.Strategy),
		zap.String("final_url", out.FinalURL),
		zap.Duration("duration", out.Duration))
	return out, nil
}

func (c *Controller) abort(ctx context.Context, a *attempt, cause error) (Outcome, error) {
	from := a.state
	a.trail.notef("fatal in state %s: %v", from, cause)
	a.transition(StateAborted)
	out := c.finish(ctx, a)
	c.logger.Warn("Login attempt aborted.",
		zap.String("attempt_id", a.id),
		zap.Stringer("state", from),
		zap.String("code", string(CodeOf(cause))),
		zap.Error(cause))
	return out, &AbortedError{State: from, Cause: cause, Outcome: out}
}

// finish freezes the attempt into an Outcome. The final URL read uses a
// short detached deadline so it still works after the budget expired.
func (c *Controller) finish(ctx context.Context, a *attempt) Outcome {
	urlCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if u, err := c.driver.CurrentURL(urlCtx); err == nil {
		a.lastURL = u
	} else {
		a.trail.notef("final URL unavailable: %v", err)
	}

	a.out.AttemptID = a.id
	a.out.State = a.state
	a.out.FinalURL = a.lastURL
	a.out.StartedAt = a.started
	a.out.Duration = time.Since(a.started)
	a.out.Diagnostics = a.trail.snapshot()
	return a.out.clone()
}
