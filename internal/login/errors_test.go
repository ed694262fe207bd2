// internal/login/errors_test.go
package login_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

func TestCodeOf(t *testing.T) {
	notFound := &login.ElementNotFoundError{Field: "username", Tried: login.UsernameField.Candidates}

	cases := []struct {
		name string
		err  error
		want login.ErrorCode
	}{
		{"nil", nil, ""},
		{"driver start", &login.DriverStartError{Cause: errors.New("no chrome")}, login.ErrCodeDriverStart},
		{"element not found", notFound, login.ErrCodeElementNotFound},
		{"aborted wraps element not found", &login.AbortedError{State: login.StateNavigated, Cause: notFound}, login.ErrCodeElementNotFound},
		{"fill wraps element not found", &login.FormFillError{Action: "resolve password", Cause: notFound}, login.ErrCodeFormFillFailed},
		{"submit", fmt.Errorf("submit: %w", login.ErrSubmitFailed), login.ErrCodeSubmitFailed},
		{"navigation", fmt.Errorf("%w: boom", login.ErrNavigation), login.ErrCodeNavigation},
		{"driver timeout", login.ErrTimeout, login.ErrCodeTimeout},
		{"budget expired", fmt.Errorf("locate: %w", context.DeadlineExceeded), login.ErrCodeTimeout},
		{"anything else", errors.New("???"), login.ErrCodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, login.CodeOf(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	fill := &login.FormFillError{Action: "fill username", Attempts: 3, Cause: login.ErrStaleHandle}
	assert.Equal(t, `form fill "fill username" failed after 3 attempts: stale element handle`, fill.Error())

	nf := &login.ElementNotFoundError{Field: "password", Tried: login.PasswordField.Candidates}
	assert.Equal(t, `field "password" not found (tried 2 selectors)`, nf.Error())
	assert.ErrorIs(t, nf, login.ErrNotFound)

	aborted := &login.AbortedError{State: login.StateFieldsLocated, Cause: login.ErrSubmitFailed}
	assert.Equal(t, "login aborted in state FieldsLocated: no submission strategy could run", aborted.Error())
}
