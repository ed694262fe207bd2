// internal/login/classifier.go
package login

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Default markers. Logout affordances are matched by id first, then by
// visible label; content markers are the weakest positive signal.
var (
	DefaultLogoutMarkers = []Selector{
		{Kind: ByID, Value: "logout"},
		{Kind: ByText, Value: "Déconnexion"},
		{Kind: ByText, Value: "Se déconnecter"},
		{Kind: ByText, Value: "Logout"},
		{Kind: ByText, Value: "Log out"},
		{Kind: ByText, Value: "Sign out"},
	}
	DefaultContentMarkers = []Selector{
		{Kind: ByQuery, Value: ".user-menu, .logged-in, #menu-user"},
	}
)

// ClassifierConfig carries the per-heuristic timeouts and markers.
type ClassifierConfig struct {
	URLChangeTimeout time.Duration
	MarkerTimeout    time.Duration
	FormGoneTimeout  time.Duration
	LogoutMarkers    []Selector
	ContentMarkers   []Selector
}

// DefaultClassifierConfig returns the stock timeouts and markers.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		URLChangeTimeout: 10 * time.Second,
		MarkerTimeout:    2 * time.Second,
		FormGoneTimeout:  2 * time.Second,
		LogoutMarkers:    DefaultLogoutMarkers,
		ContentMarkers:   DefaultContentMarkers,
	}
}

// Verdict is the classifier's best-effort judgement. It is an inference
// from page state, not proof of an authenticated session.
type Verdict struct {
	Succeeded bool
	Heuristic Heuristic
}

// Classifier infers login success from observable page state.
type Classifier struct {
	driver   Driver
	locator  *Locator
	cfg      ClassifierConfig
	username FieldDescriptor
	logger   *zap.Logger
	trail    *trail
}

// NewClassifier builds a Classifier. username is the descriptor whose
// disappearance signals AbsenceOfLoginForm.
func NewClassifier(driver Driver, locator *Locator, cfg ClassifierConfig, username FieldDescriptor, logger *zap.Logger) *Classifier {
	return &Classifier{
		driver:   driver,
		locator:  locator,
		cfg:      cfg,
		username: username,
		logger:   logger.Named("classifier"),
	}
}

type heuristicStep struct {
	kind    Heuristic
	timeout time.Duration
	check   func(ctx context.Context, timeout time.Duration) bool
}

// Classify evaluates the heuristics in priority order and returns on the
// first positive. Driver errors inside a heuristic count as "no signal".
func (c *Classifier) Classify(ctx context.Context, initialURL string) Verdict {
	steps := []heuristicStep{
		{kind: UrlChanged, timeout: c.cfg.URLChangeTimeout, check: func(ctx context.Context, d time.Duration) bool {
			return c.urlChanged(ctx, initialURL, d)
		}},
		{kind: PresenceOfLogoutAffordance, timeout: c.cfg.MarkerTimeout, check: func(ctx context.Context, d time.Duration) bool {
			return c.anyPresent(ctx, c.cfg.LogoutMarkers, d)
		}},
		{kind: AbsenceOfLoginForm, timeout: c.cfg.FormGoneTimeout, check: c.loginFormGone},
		{kind: PresenceOfAuthenticatedContentMarker, timeout: c.cfg.MarkerTimeout, check: func(ctx context.Context, d time.Duration) bool {
			return c.anyPresent(ctx, c.cfg.ContentMarkers, d)
		}},
	}

	h, _, err := FirstMatch(ctx, steps, func(ctx context.Context, step heuristicStep) (Heuristic, bool, error) {
		if step.check(ctx, step.timeout) {
			c.trail.notef("heuristic %s matched", step.kind)
			return step.kind, true, nil
		}
		c.trail.notef("heuristic %s did not match", step.kind)
		return HeuristicNone, false, nil
	})
	if err != nil {
		c.logger.Debug("Classification cut short.", zap.Error(err))
		c.trail.notef("classification interrupted: %v", err)
		return Verdict{}
	}
	if h == HeuristicNone {
		return Verdict{}
	}
	return Verdict{Succeeded: true, Heuristic: h}
}

func (c *Classifier) urlChanged(ctx context.Context, initialURL string, timeout time.Duration) bool {
	_, err := c.driver.WaitFor(ctx, URLChanged(initialURL), timeout)
	if err != nil && !errors.Is(err, ErrTimeout) {
		c.logger.Debug("URL change check failed.", zap.Error(err))
	}
	return err == nil
}

func (c *Classifier) anyPresent(ctx context.Context, markers []Selector, timeout time.Duration) bool {
	if len(markers) == 0 {
		return false
	}
	per := timeout / time.Duration(len(markers))
	_, idx, _ := FirstMatch(ctx, markers, func(ctx context.Context, sel Selector) (struct{}, bool, error) {
		_, err := c.driver.WaitFor(ctx, ElementPresent(sel), per)
		return struct{}{}, err == nil, nil
	})
	return idx >= 0
}

// loginFormGone reports true only when the username field cannot be located
// at all for the whole window. A driver error is not evidence of absence.
func (c *Classifier) loginFormGone(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	poll := c.locator.Poll
	if poll <= 0 {
		poll = defaultLocatePoll
	}
	for {
		_, _, err := c.locator.Resolve(ctx, c.username)
		switch {
		case err == nil:
			if !time.Now().Before(deadline) {
				return false
			}
		case errors.Is(err, ErrNotFound):
			return true
		default:
			return false
		}
		if sleepCtx(ctx, poll) != nil {
			return false
		}
	}
}
