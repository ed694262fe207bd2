// internal/browser/browser.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-login/internal/config"
	"github.com/xkilldash9x/scalpel-login/internal/login"
)

const (
	launchTimeout   = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Browser owns one Chrome process. The first session reuses the tab Chrome
// opens at startup; later sessions get their own tabs.
type Browser struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	cfg         config.BrowserConfig
	logger      *zap.Logger

	mu          sync.Mutex
	primaryUsed bool
	closeOnce   sync.Once
	closeErr    error
}

// ExecOptions translates the browser section into allocator options. The
// container-friendly flags are always present; headless mode also pins the
// window size so layouts match a desktop screen.
func ExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("enable-automation", true),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless, chromedp.DisableGPU)
		if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
			opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
		}
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	if cfg.IgnoreTLSErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("allow-insecure-localhost", true),
		)
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if found {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}

// Start launches Chrome and waits until its first tab is attached. Any
// failure is reported as *login.DriverStartError.
func Start(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, extra ...chromedp.ExecAllocatorOption) (*Browser, error) {
	log := logger.Named("browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, append(ExecOptions(cfg), extra...)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         browserCtx,
		cancel:      browserCancel,
		cfg:         cfg,
		logger:      log,
	}

	log.Info("Launching browser.", zap.Bool("headless", cfg.Headless), zap.String("exec_path", cfg.ExecPath))

	// The first Run allocates the process. It is bounded here rather than
	// through browserCtx, whose lifetime is the browser's.
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(launchTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("browser did not start within %v", launchTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, &login.DriverStartError{Cause: err}
	}

	log.Info("Browser started.")
	return b, nil
}

// NewSession returns a Session on a tab of this browser.
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	b.mu.Lock()
	primary := !b.primaryUsed
	b.primaryUsed = true
	b.mu.Unlock()

	if primary {
		return newSession(b.ctx, nil, b.cfg, b.logger), nil
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	openCtx, openCancel := CombineContext(tabCtx, ctx)
	defer openCancel()
	if err := chromedp.Run(openCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("could not open tab: %w", err)
	}
	return newSession(tabCtx, tabCancel, b.cfg, b.logger), nil
}

// Close shuts Chrome down, waiting at most until ctx ends. It is safe to
// call more than once.
func (b *Browser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.logger.Debug("Closing browser.")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		// chromedp.Cancel blocks until the process exits.
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(b.ctx) }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				b.closeErr = fmt.Errorf("browser shutdown: %w", err)
			}
		case <-shutdownCtx.Done():
			b.logger.Warn("Browser shutdown timed out. Proceeding forcefully.", zap.Duration("timeout", shutdownTimeout))
		}
		b.cancel()
		b.allocCancel()
		b.logger.Info("Browser closed.")
	})
	return b.closeErr
}
