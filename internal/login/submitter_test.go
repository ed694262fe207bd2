// internal/login/submitter_test.go
package login_test

import (
	"context"
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-login/internal/login"
	"github.com/xkilldash9x/scalpel-login/internal/login/logintest"
)

// onlyUsername is a broken page whose password field never renders.
const onlyUsername = `<html><body><form><input id="username" name="username"></form></body></html>`

func newSubmitter(t *testing.T, d *logintest.DocumentDriver) *login.Submitter {
	t.Helper()
	logger := zaptest.NewLogger(t)
	o := fastOptions()
	locator := login.NewLocator(d, o.LocateBudget, logger)
	locator.Poll = o.RetryDelay
	retrier := login.NewRetrier(o.RetryAttempts, o.RetryDelay, logger)
	return login.NewSubmitter(d, locator, retrier, o.Submit, o.UsernameField, o.PasswordField, logger)
}

func TestSubmitter_Fill(t *testing.T) {
	ctx := context.Background()

	t.Run("fills both fields", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)

		require.NoError(t, s.Fill(ctx, testCreds))
		assert.Equal(t, "alice", d.Value("#username"))
		assert.Equal(t, "s3cret!", d.Value("#password"))
		assert.Equal(t, 0, d.Calls(logintest.OpSubmit))
	})

	t.Run("clears a prefilled value", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		d.Mutate(func(doc *goquery.Document) {
			doc.Find("#username").SetAttr("value", "previous-user")
		})
		s := newSubmitter(t, d)

		require.NoError(t, s.Fill(ctx, testCreds))
		assert.Equal(t, "alice", d.Value("#username"))
	})

	t.Run("recovers from two re-renders", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		d.StaleOnNextWrites(2)
		s := newSubmitter(t, d)

		require.NoError(t, s.Fill(ctx, testCreds))
		assert.Equal(t, "alice", d.Value("#username"))
		assert.Equal(t, "s3cret!", d.Value("#password"))
		// Two stale clears on the username, then one clean clear per field.
		assert.Equal(t, 4, d.Calls(logintest.OpClear))
	})

	t.Run("persistent staleness exhausts the retrier", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		d.StaleOnNextWrites(100)
		s := newSubmitter(t, d)

		err := s.Fill(ctx, testCreds)
		var fillErr *login.FormFillError
		require.True(t, errors.As(err, &fillErr))
		assert.Equal(t, 3, fillErr.Attempts)
		assert.ErrorIs(t, err, login.ErrStaleHandle)
		assert.Equal(t, 3, d.Calls(logintest.OpClear))
		assert.Equal(t, 0, d.Calls(logintest.OpSendKeys))
	})

	t.Run("missing password leaves the form untouched", func(t *testing.T) {
		d := newDriver(onlyUsername)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)

		err := s.Fill(ctx, testCreds)
		require.Error(t, err)
		assert.Equal(t, login.ErrCodeFormFillFailed, login.CodeOf(err))

		var nf *login.ElementNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "password", nf.Field)
		assert.Equal(t, 0, d.Calls(logintest.OpClear))
		assert.Equal(t, 0, d.Calls(logintest.OpSendKeys))
	})
}

func TestSubmitter_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("enter key wins when it works", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		var got map[string]string
		d.OnSubmit(func(values map[string]string) logintest.SubmitResult {
			got = values
			return logintest.SubmitResult{URL: homeURL, HTML: homePage}
		})
		s := newSubmitter(t, d)

		sub, err := s.Run(ctx, testCreds)
		require.NoError(t, err)
		assert.Equal(t, login.SubmitViaEnterKey, sub.Strategy)
		assert.Equal(t, loginURL, sub.InitialURL, "initial URL is captured before submission")
		assert.Equal(t, map[string]string{"username": "alice", "password": "s3cret!"}, got)
		assert.Equal(t, 1, d.Calls(logintest.OpSubmit))
		assert.Equal(t, 0, d.Calls(logintest.OpClick))
		assert.Equal(t, 0, d.Calls(logintest.OpScript))
	})

	t.Run("falls back to the submit button", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)
		require.NoError(t, s.Fill(ctx, testCreds))

		d.Hook = func(op string) error {
			if op == logintest.OpSendKeys {
				return errors.New("keyboard unavailable")
			}
			return nil
		}
		strategy, err := s.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, login.SubmitViaSubmitButton, strategy)
		assert.Equal(t, 1, d.Calls(logintest.OpSubmit))
		assert.Equal(t, 0, d.Calls(logintest.OpScript))
	})

	t.Run("script runs exactly once as the last resort", func(t *testing.T) {
		d := newDriver(loginPageNoButton)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)
		require.NoError(t, s.Fill(ctx, testCreds))

		d.Hook = func(op string) error {
			if op == logintest.OpSendKeys {
				return errors.New("keyboard unavailable")
			}
			return nil
		}
		strategy, err := s.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, login.SubmitViaFormScript, strategy)
		assert.Equal(t, 1, d.Calls(logintest.OpScript))
		assert.Equal(t, 1, d.Calls(logintest.OpSubmit))
		assert.Equal(t, 0, d.Calls(logintest.OpClick))
	})

	t.Run("nothing to submit", func(t *testing.T) {
		d := newDriver(welcomeNoForm)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)

		strategy, err := s.Submit(ctx)
		assert.ErrorIs(t, err, login.ErrSubmitFailed)
		assert.Equal(t, login.SubmitNone, strategy)
		assert.Equal(t, login.ErrCodeSubmitFailed, login.CodeOf(err))
		assert.Equal(t, 0, d.Calls(logintest.OpSubmit))
	})

	t.Run("cancellation stops the chain", func(t *testing.T) {
		d := newDriver(loginPage)
		require.NoError(t, d.Navigate(ctx, loginURL))
		s := newSubmitter(t, d)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Submit(cctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, d.Calls(logintest.OpSubmit))
	})
}
