// internal/login/classifier_test.go
package login_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-login/internal/login"
	"github.com/xkilldash9x/scalpel-login/internal/login/logintest"
)

const formWithLogoutLabel = `<html><body>
<form><input id="username"><input id="password" type="password"></form>
<button class="menu">Se déconnecter</button>
</body></html>`

const formWithUserMenu = `<html><body>
<div class="user-menu">alice</div>
<form><input id="username"><input id="password" type="password"></form>
</body></html>`

func newClassifier(t *testing.T, d *logintest.DocumentDriver) *login.Classifier {
	t.Helper()
	logger := zaptest.NewLogger(t)
	o := fastOptions()
	locator := login.NewLocator(d, o.LocateBudget, logger)
	locator.Poll = o.RetryDelay
	return login.NewClassifier(d, locator, o.Classify, o.UsernameField, logger)
}

func TestClassifier(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		page      string
		url       string
		want      login.Heuristic
		succeeded bool
	}{
		{"url change outranks every other signal", homePage, homeURL, login.UrlChanged, true},
		{"logout label on the same url", formWithLogoutLabel, loginURL, login.PresenceOfLogoutAffordance, true},
		{"login form gone", welcomeNoForm, loginURL, login.AbsenceOfLoginForm, true},
		{"authenticated content marker", formWithUserMenu, loginURL, login.PresenceOfAuthenticatedContentMarker, true},
		{"login page unchanged", loginPage, loginURL, login.HeuristicNone, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := logintest.NewDocumentDriver(map[string]string{tc.url: tc.page})
			require.NoError(t, d.Navigate(ctx, tc.url))
			c := newClassifier(t, d)

			v := c.Classify(ctx, loginURL)
			assert.Equal(t, tc.succeeded, v.Succeeded)
			assert.Equal(t, tc.want, v.Heuristic)
		})
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	ctx := context.Background()
	for _, page := range []string{homePage, welcomeNoForm, loginPage, formWithUserMenu} {
		d := newDriver(page)
		require.NoError(t, d.Navigate(ctx, loginURL))
		c := newClassifier(t, d)

		first := c.Classify(ctx, loginURL)
		second := c.Classify(ctx, loginURL)
		assert.Equal(t, first, second)
	}
}

func TestClassifier_CancelledContextIsNegative(t *testing.T) {
	d := newDriver(homePage)
	require.NoError(t, d.Navigate(context.Background(), loginURL))
	c := newClassifier(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := c.Classify(ctx, loginURL)
	assert.False(t, v.Succeeded, "an interrupted classification never claims success")
}
