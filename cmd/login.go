// -- cmd/login.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-login/internal/browser"
	"github.com/xkilldash9x/scalpel-login/internal/config"
	"github.com/xkilldash9x/scalpel-login/internal/login"
	"github.com/xkilldash9x/scalpel-login/internal/observability"
	"github.com/xkilldash9x/scalpel-login/internal/report"
)

// driverStarter launches a page driver and returns a function that tears
// it down.
type driverStarter func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (login.Driver, func(context.Context) error, error)

// loginDeps holds the collaborators runLogin needs, swapped out in tests.
type loginDeps struct {
	startDriver driverStarter
	newPrompter func() (prompter, error)
}

func defaultDeps() loginDeps {
	return loginDeps{
		startDriver: startChrome,
		newPrompter: newReadlinePrompter,
	}
}

// startChrome launches Chrome and opens the session the controller drives.
func startChrome(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (login.Driver, func(context.Context) error, error) {
	b, err := browser.Start(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	s, err := b.NewSession(ctx)
	if err != nil {
		_ = b.Close(context.WithoutCancel(ctx))
		return nil, nil, &login.DriverStartError{Cause: err}
	}
	return s, b.Close, nil
}

type loginFlags struct {
	username   string
	url        string
	headless   bool
	screenshot string
	runLog     string
	format     string
	output     string
}

// newLoginCmd creates and configures the `login` command.
func newLoginCmd(deps loginDeps) *cobra.Command {
	var flags loginFlags

	loginCmd := &cobra.Command{
		Use:   "login [url]",
		Short: "Open the login page, fill the credentials, submit and report the verdict",
		Long: `Navigates to the login page, locates the username and password fields,
fills them, submits the form and checks whether the login succeeded.

The password is read from SCALPEL_LOGIN_PASSWORD (or a .env file) and
prompted for without echo when unset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				flags.url = args[0]
			}
			if err := applyFlags(cmd, cfg, flags); err != nil {
				return err
			}
			output, err := homedir.Expand(flags.output)
			if err != nil {
				return fmt.Errorf("failed to expand path %q: %w", flags.output, err)
			}
			return runLogin(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, runOptions{
				format:      flags.format,
				output:      output,
				headlessSet: cmd.Flags().Changed("headless"),
			}, deps)
		},
	}

	loginCmd.Flags().StringVarP(&flags.username, "username", "u", "", "Username to log in with (overrides login.username)")
	loginCmd.Flags().StringVar(&flags.url, "url", "", "Login page URL (overrides target.url)")
	loginCmd.Flags().BoolVar(&flags.headless, "headless", true, "Run the browser without a window (overrides browser.headless)")
	loginCmd.Flags().StringVar(&flags.screenshot, "screenshot", "", "Save a PNG of the page here after a confirmed login")
	loginCmd.Flags().StringVar(&flags.runLog, "run-log", "", "Append a JSON line describing the attempt to this file")
	loginCmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Format of the report ('text' or 'json')")
	loginCmd.Flags().StringVarP(&flags.output, "output", "o", "stdout", "Write the report to this file instead of stdout")

	return loginCmd
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg config.Interface, flags loginFlags) error {
	if flags.url != "" {
		cfg.SetTargetURL(flags.url)
	}
	if cmd.Flags().Changed("username") {
		cfg.SetLoginUsername(flags.username)
	}
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(flags.headless)
	}
	for _, p := range []struct {
		value string
		set   func(string)
	}{
		{flags.screenshot, cfg.SetScreenshotPath},
		{flags.runLog, cfg.SetRunLogPath},
	} {
		if p.value == "" {
			continue
		}
		expanded, err := homedir.Expand(p.value)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", p.value, err)
		}
		p.set(expanded)
	}
	return nil
}

// runOptions carries the per-invocation choices that are not configuration.
type runOptions struct {
	format string
	output string
	// headlessSet suppresses the headless question when --headless was given.
	headlessSet bool
}

// runLogin contains the core, testable logic of the login command.
func runLogin(ctx context.Context, stdout io.Writer, logger *zap.Logger, cfg config.Interface, opts runOptions, deps loginDeps) error {
	reporter, err := report.New(opts.format, opts.output, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := reporter.Close(); cerr != nil {
			logger.Warn("Failed to close the report.", zap.Error(cerr))
		}
	}()

	creds, err := collectCredentials(cfg, deps, !opts.headlessSet)
	if err != nil {
		return err
	}

	driver, closeDriver, err := deps.startDriver(ctx, cfg.Browser(), logger)
	if err != nil {
		_ = reporter.Write(login.Outcome{}, err)
		return &reportedError{err: err}
	}
	defer func() {
		closeBrowser(ctx, cfg, deps, logger, stdout)
		if cerr := closeDriver(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("Browser did not shut down cleanly.", zap.Error(cerr))
		}
	}()

	controller := login.NewController(driver, cfg.LoginOptions(), logger)

	out, attemptErr := controller.AttemptLogin(ctx, creds, cfg.Login().Budget)
	if werr := reporter.Write(out, attemptErr); werr != nil {
		logger.Warn("Failed to print the report.", zap.Error(werr))
	}
	appendRunLog(cfg.Artifacts().RunLog, out, attemptErr, logger)

	if attemptErr != nil {
		return &reportedError{err: attemptErr}
	}
	if out.Succeeded && cfg.Artifacts().Screenshot != "" {
		saveScreenshot(ctx, driver, cfg.Artifacts().Screenshot, logger)
	}
	return nil
}

// collectCredentials fills in whatever the configuration left empty by
// asking the user. Headless mode is only asked about in a fully
// interactive run, when the username was not supplied either, and only
// when askHeadless is set.
func collectCredentials(cfg config.Interface, deps loginDeps, askHeadless bool) (login.Credentials, error) {
	creds := login.Credentials{Username: cfg.Login().Username, Password: cfg.Login().Password}
	if creds.Username != "" && creds.Password != "" {
		return creds, nil
	}

	p, err := deps.newPrompter()
	if err != nil {
		return creds, err
	}
	defer p.Close()

	interactive := creds.Username == ""
	if interactive {
		if creds.Username, err = p.Prompt("Username: "); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		if creds.Password, err = p.PromptPassword("Password: "); err != nil {
			return creds, err
		}
	}
	if interactive && askHeadless {
		headless, err := askYesNo(p, "Run the browser headless?")
		if err != nil {
			return creds, err
		}
		cfg.SetBrowserHeadless(headless)
	}
	return creds, nil
}

// closeBrowser lets a headed browser stay open until the user presses
// Enter; a headless one is closed after a short delay.
func closeBrowser(ctx context.Context, cfg config.Interface, deps loginDeps, logger *zap.Logger, stdout io.Writer) {
	bc := cfg.Browser()
	if bc.Headless || !bc.KeepOpen {
		if bc.CloseDelay <= 0 {
			return
		}
		t := time.NewTimer(bc.CloseDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		return
	}

	p, err := deps.newPrompter()
	if err != nil {
		logger.Warn("Cannot wait for confirmation; closing the browser.", zap.Error(err))
		return
	}
	defer p.Close()

	fmt.Fprintln(stdout, "The browser stays open for inspection.")
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Prompt("Press Enter to close the browser... ")
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

type screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

func saveScreenshot(ctx context.Context, driver login.Driver, path string, logger *zap.Logger) {
	s, ok := driver.(screenshotter)
	if !ok {
		logger.Warn("Driver cannot take screenshots.")
		return
	}
	png, err := s.Screenshot(ctx)
	if err != nil {
		logger.Warn("Screenshot failed.", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		logger.Warn("Failed to save screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("Screenshot saved.", zap.String("path", path))
}

func appendRunLog(path string, out login.Outcome, attemptErr error, logger *zap.Logger) {
	if path == "" {
		return
	}
	rl, err := report.OpenRunLog(path)
	if err != nil {
		logger.Warn("Run log unavailable.", zap.Error(err))
		return
	}
	if err := rl.Write(out, attemptErr); err != nil {
		logger.Warn("Failed to append to run log.", zap.Error(err))
	}
	if err := rl.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("Failed to close run log.", zap.Error(err))
	}
}
