// internal/login/helpers_test.go
package login_test

import (
	"time"

	"github.com/xkilldash9x/scalpel-login/internal/login"
	"github.com/xkilldash9x/scalpel-login/internal/login/logintest"
)

const (
	loginURL = "https://portal.example.test/login"
	homeURL  = "https://portal.example.test/home"
)

const loginPage = `<html><head><title>Sign in</title></head><body>
<form id="login" action="/login" method="post">
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
  <button type="submit">Connexion</button>
</form>
</body></html>`

// loginPageNoButton has no submit-like control at all.
const loginPageNoButton = `<html><head><title>Sign in</title></head><body>
<form id="login" action="/login" method="post">
  <input id="username" name="username" type="text">
  <input id="password" name="password" type="password">
</form>
</body></html>`

// loginPageByName only exposes the fields through their name attribute.
const loginPageByName = `<html><body>
<form>
  <input name="username" type="text">
  <input name="password" type="password">
</form>
</body></html>`

const homePage = `<html><head><title>Home</title></head><body>
<nav><a id="logout" href="/logout">Déconnexion</a></nav>
<main>Emploi du temps</main>
</body></html>`

const welcomeNoForm = `<html><head><title>Sign in</title></head><body>
<p>Bienvenue</p>
</body></html>`

var testCreds = login.Credentials{Username: "alice", Password: "s3cret!"}

// fastOptions shrinks every wait so the suite stays quick.
func fastOptions() login.Options {
	o := login.DefaultOptions(loginURL)
	o.LocateBudget = 100 * time.Millisecond
	o.RetryDelay = time.Millisecond
	o.Submit = login.SubmitterConfig{
		EnterTimeout:  50 * time.Millisecond,
		ButtonTimeout: 50 * time.Millisecond,
		ScriptTimeout: 50 * time.Millisecond,
		SubmitButtons: login.DefaultSubmitButtons,
	}
	o.Classify = login.ClassifierConfig{
		URLChangeTimeout: 50 * time.Millisecond,
		MarkerTimeout:    40 * time.Millisecond,
		FormGoneTimeout:  40 * time.Millisecond,
		LogoutMarkers:    login.DefaultLogoutMarkers,
		ContentMarkers:   login.DefaultContentMarkers,
	}
	return o
}

func newDriver(page string) *logintest.DocumentDriver {
	return logintest.NewDocumentDriver(map[string]string{loginURL: page})
}
