// internal/login/submitter.go
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EnterKey is the end-of-input keystroke understood by Handle.SendKeys.
const EnterKey = "\n"

// FormSubmitScript submits the form owning the password field, or the first
// form on the page, bypassing any UI interaction.
const FormSubmitScript = `(function () {
	var p = document.getElementById('password') || document.querySelector("input[name='password'], input[type='password']");
	var f = (p && p.form) ? p.form : document.querySelector('form');
	if (!f) { throw new Error('no form to submit'); }
	HTMLFormElement.prototype.submit.call(f);
	return true;
})()`

// DefaultSubmitButtons matches the usual submit-like controls.
var DefaultSubmitButtons = []Selector{
	{Kind: ByQuery, Value: "button[type='submit'], input[type='submit']"},
	{Kind: ByQuery, Value: "button[class*='login'], button[id*='login']"},
}

// SubmitterConfig carries the per-strategy timeouts.
type SubmitterConfig struct {
	EnterTimeout  time.Duration
	ButtonTimeout time.Duration
	ScriptTimeout time.Duration
	SettleDelay   time.Duration
	SubmitButtons []Selector
}

// DefaultSubmitterConfig mirrors the timings of a typical server-rendered
// login page.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{
		EnterTimeout:  3 * time.Second,
		ButtonTimeout: 2 * time.Second,
		ScriptTimeout: 3 * time.Second,
		SettleDelay:   time.Second,
		SubmitButtons: DefaultSubmitButtons,
	}
}

// Submission describes what the submitter did.
type Submission struct {
	InitialURL string
	Strategy   SubmitStrategy
}

// Submitter fills the credential fields and submits the form.
type Submitter struct {
	driver   Driver
	locator  *Locator
	retrier  *Retrier
	cfg      SubmitterConfig
	username FieldDescriptor
	password FieldDescriptor
	logger   *zap.Logger
	trail    *trail
}

// NewSubmitter wires a Submitter for the given field descriptors.
func NewSubmitter(driver Driver, locator *Locator, retrier *Retrier, cfg SubmitterConfig, username, password FieldDescriptor, logger *zap.Logger) *Submitter {
	if len(cfg.SubmitButtons) == 0 {
		cfg.SubmitButtons = DefaultSubmitButtons
	}
	return &Submitter{
		driver:   driver,
		locator:  locator,
		retrier:  retrier,
		cfg:      cfg,
		username: username,
		password: password,
		logger:   logger.Named("submitter"),
	}
}

// Run fills both fields, records the pre-submission URL and submits.
func (s *Submitter) Run(ctx context.Context, creds Credentials) (Submission, error) {
	if err := s.Fill(ctx, creds); err != nil {
		return Submission{}, err
	}

	initialURL, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return Submission{}, fmt.Errorf("could not read URL before submission: %w", err)
	}
	s.trail.notef("initial URL recorded: %s", initialURL)

	strategy, err := s.Submit(ctx)
	if err != nil {
		return Submission{InitialURL: initialURL}, err
	}

	if err := sleepCtx(ctx, s.cfg.SettleDelay); err != nil {
		return Submission{InitialURL: initialURL, Strategy: strategy}, err
	}
	return Submission{InitialURL: initialURL, Strategy: strategy}, nil
}

// Fill resolves both fields before writing either, so a form is never left
// half filled, then clears and types each value under the Retrier.
func (s *Submitter) Fill(ctx context.Context, creds Credentials) error {
	for _, field := range []FieldDescriptor{s.username, s.password} {
		if _, err := s.locator.Locate(ctx, field); err != nil {
			return &FormFillError{Action: "resolve " + field.Name, Cause: err}
		}
	}

	if err := s.retrier.Do(ctx, "fill "+s.username.Name, s.fillAction(s.username, creds.Username)); err != nil {
		return err
	}
	s.trail.notef("field %q filled", s.username.Name)

	if err := s.retrier.Do(ctx, "fill "+s.password.Name, s.fillAction(s.password, creds.Password)); err != nil {
		return err
	}
	s.trail.notef("field %q filled", s.password.Name)
	return nil
}

// fillAction re-resolves the field on every attempt; a field that vanished
// mid re-render counts as stale.
func (s *Submitter) fillAction(field FieldDescriptor, value string) Action {
	return func(ctx context.Context) ActionResult {
		h, _, err := s.locator.Resolve(ctx, field)
		if errors.Is(err, ErrNotFound) {
			return Transient(fmt.Errorf("field %q missing during fill: %w", field.Name, ErrStaleHandle))
		}
		if err != nil {
			return ResultOf(err)
		}
		if err := h.Clear(ctx); err != nil {
			return ResultOf(err)
		}
		return ResultOf(h.SendKeys(ctx, value))
	}
}

type submitStep struct {
	kind    SubmitStrategy
	timeout time.Duration
	run     func(ctx context.Context) error
}

// Submit runs the strategies in fixed order and stops at the first one that
// executes. A strategy whose target is missing, stale or slow falls through.
func (s *Submitter) Submit(ctx context.Context) (SubmitStrategy, error) {
	steps := []submitStep{
		{kind: SubmitViaEnterKey, timeout: s.cfg.EnterTimeout, run: s.submitViaEnter},
		{kind: SubmitViaSubmitButton, timeout: s.cfg.ButtonTimeout, run: s.submitViaButton},
		{kind: SubmitViaFormScript, timeout: s.cfg.ScriptTimeout, run: s.submitViaScript},
	}

	strategy, _, err := FirstMatch(ctx, steps, func(ctx context.Context, step submitStep) (SubmitStrategy, bool, error) {
		stepCtx, cancel := withOptionalTimeout(ctx, step.timeout)
		defer cancel()

		err := step.run(stepCtx)
		if err == nil {
			s.trail.notef("submitted via %s", step.kind)
			return step.kind, true, nil
		}
		if ctx.Err() != nil {
			return SubmitNone, false, ctx.Err()
		}
		s.trail.notef("%s could not run: %v", step.kind, err)
		return SubmitNone, false, nil
	})
	if err != nil {
		return SubmitNone, err
	}
	if strategy == SubmitNone {
		return SubmitNone, ErrSubmitFailed
	}
	return strategy, nil
}

func (s *Submitter) submitViaEnter(ctx context.Context) error {
	h, _, err := s.locator.Resolve(ctx, s.password)
	if err != nil {
		return err
	}
	return h.SendKeys(ctx, EnterKey)
}

func (s *Submitter) submitViaButton(ctx context.Context) error {
	per := s.cfg.ButtonTimeout / time.Duration(len(s.cfg.SubmitButtons))
	_, idx, err := FirstMatch(ctx, s.cfg.SubmitButtons, func(ctx context.Context, sel Selector) (struct{}, bool, error) {
		h, err := s.driver.WaitFor(ctx, ElementClickable(sel), per)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, false, ctx.Err()
			}
			return struct{}{}, false, nil
		}
		if err := h.Click(ctx); err != nil {
			s.logger.Debug("Submit control click failed.", zap.Stringer("selector", sel), zap.Error(err))
			return struct{}{}, false, nil
		}
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	if idx < 0 {
		return fmt.Errorf("no clickable submit control: %w", ErrNotFound)
	}
	return nil
}

func (s *Submitter) submitViaScript(ctx context.Context) error {
	return s.driver.ExecuteScript(ctx, FormSubmitScript)
}

// withOptionalTimeout leaves ctx untouched when d is not positive.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
