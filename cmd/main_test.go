// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/xkilldash9x/scalpel-login/internal/observability"
)

// resetForTest isolates a test from the developer's config.yaml, .env and
// earlier logger state, and silences logging.
func resetForTest(t *testing.T) {
	t.Helper()

	t.Chdir(t.TempDir())
	cfgFile = ""
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	t.Setenv("SCALPEL_LOGIN_LOGGER_LEVEL", "fatal")
}

// fastEnv shrinks every wait of an attempt through the environment.
func fastEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"SCALPEL_LOGIN_LOGIN_LOCATE_TIMEOUT":     "200ms",
		"SCALPEL_LOGIN_LOGIN_RETRY_DELAY":        "1ms",
		"SCALPEL_LOGIN_LOGIN_ENTER_TIMEOUT":      "50ms",
		"SCALPEL_LOGIN_LOGIN_BUTTON_TIMEOUT":     "50ms",
		"SCALPEL_LOGIN_LOGIN_SCRIPT_TIMEOUT":     "50ms",
		"SCALPEL_LOGIN_LOGIN_SETTLE_DELAY":       "1ms",
		"SCALPEL_LOGIN_LOGIN_URL_CHANGE_TIMEOUT": "50ms",
		"SCALPEL_LOGIN_LOGIN_MARKER_TIMEOUT":     "40ms",
		"SCALPEL_LOGIN_LOGIN_FORM_GONE_TIMEOUT":  "40ms",
		"SCALPEL_LOGIN_BROWSER_CLOSE_DELAY":      "0s",
	} {
		t.Setenv(k, v)
	}
}

// executeCommand runs the command tree built from deps and returns what it
// printed.
func executeCommand(t *testing.T, deps loginDeps, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(deps)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
