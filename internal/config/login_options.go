// File: internal/config/login_options.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// Validate parses every override so a typo fails at startup rather than
// mid attempt.
func (s SelectorsConfig) Validate() error {
	lists := []struct {
		name string
		raw  []string
	}{
		{"username", s.Username},
		{"password", s.Password},
		{"submit_buttons", s.SubmitButtons},
		{"logout_markers", s.LogoutMarkers},
		{"content_markers", s.ContentMarkers},
	}
	for _, l := range lists {
		if _, err := parseSelectors(l.raw); err != nil {
			return fmt.Errorf("%s: %w", l.name, err)
		}
	}
	return nil
}

func parseSelectors(raw []string) ([]login.Selector, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]login.Selector, 0, len(raw))
	for _, r := range raw {
		sel, err := login.ParseSelector(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// orDefault returns the parsed override, or def when none is configured.
func orDefault(raw []string, def []login.Selector) []login.Selector {
	sels, err := parseSelectors(raw)
	if err != nil || len(sels) == 0 {
		return def
	}
	return sels
}

// LoginOptions translates the login and target sections into controller
// options.
func (c *Config) LoginOptions() login.Options {
	lc := c.LoginCfg
	opts := login.DefaultOptions(c.TargetCfg.URL)

	opts.UsernameField.Candidates = orDefault(lc.Selectors.Username, login.UsernameField.Candidates)
	opts.PasswordField.Candidates = orDefault(lc.Selectors.Password, login.PasswordField.Candidates)

	opts.LocateBudget = lc.LocateTimeout
	opts.RetryAttempts = lc.RetryAttempts
	opts.RetryDelay = lc.RetryDelay

	opts.Submit = login.SubmitterConfig{
		EnterTimeout:  lc.EnterTimeout,
		ButtonTimeout: lc.ButtonTimeout,
		ScriptTimeout: lc.ScriptTimeout,
		SettleDelay:   lc.SettleDelay,
		SubmitButtons: orDefault(lc.Selectors.SubmitButtons, login.DefaultSubmitButtons),
	}
	opts.Classify = login.ClassifierConfig{
		URLChangeTimeout: lc.URLChangeTimeout,
		MarkerTimeout:    lc.MarkerTimeout,
		FormGoneTimeout:  lc.FormGoneTimeout,
		LogoutMarkers:    orDefault(lc.Selectors.LogoutMarkers, login.DefaultLogoutMarkers),
		ContentMarkers:   orDefault(lc.Selectors.ContentMarkers, login.DefaultContentMarkers),
	}
	return opts
}

// ExpandPaths resolves a leading ~ in every file path setting.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.ArtifactsCfg.Screenshot, &c.ArtifactsCfg.RunLog, &c.LoggerCfg.LogFile, &c.BrowserCfg.ExecPath} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("could not expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none
// are given) into the process environment without overriding variables that
// are already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return fmt.Errorf("could not expand path %q: %w", p, err)
		}
		if err := godotenv.Load(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("could not load %s: %w", expanded, err)
		}
	}
	return nil
}
