// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/scalpel-login/internal/config"
	"github.com/xkilldash9x/scalpel-login/internal/login"
)

const (
	defaultNavigationTimeout = 30 * time.Second
	defaultPollInterval      = 100 * time.Millisecond
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Session drives one tab and implements login.Driver. It is meant for a
// single controller at a time.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger
	poll   time.Duration

	closeOnce sync.Once
}

var _ login.Driver = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Session{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session"),
		poll:   poll,
	}
}

// RunActions runs chromedp actions on this tab, bounded by both the tab's
// lifetime and ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		// Report the caller's context error in preference to chromedp's.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ctx.Err() != nil {
			return fmt.Errorf("session closed: %w", s.ctx.Err())
		}
	}
	return err
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.RunActions(navCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, timeout, err)
		}
		return err
	}
	return nil
}

// query maps a login.Selector onto a chromedp selector and query option.
func query(sel login.Selector) (string, chromedp.QueryOption) {
	switch sel.Kind {
	case login.ByID:
		return "[id=" + cssString(sel.Value) + "]", chromedp.ByQuery
	case login.ByName:
		return "[name=" + cssString(sel.Value) + "]", chromedp.ByQuery
	case login.ByText:
		return login.TextXPath(sel.Value), chromedp.BySearch
	default:
		return sel.Value, chromedp.ByQuery
	}
}

// FindElement makes one lookup without waiting for the element to appear.
func (s *Session) FindElement(ctx context.Context, sel login.Selector) (login.Handle, error) {
	q, by := query(sel)
	var nodes []*cdp.Node
	if err := s.RunActions(ctx, chromedp.Nodes(q, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, login.ErrNotFound
	}
	return &nodeHandle{s: s, id: nodes[0].BackendNodeID, sel: sel}, nil
}

// WaitFor polls cond at the configured interval. The condition is always
// checked once, so a non-positive timeout still observes the current page.
func (s *Session) WaitFor(ctx context.Context, cond login.Condition, timeout time.Duration) (login.Handle, error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Every(s.poll), 1)
	limiter.Allow() // spent by the first check
	for {
		h, ok, err := s.check(waitCtx, cond)
		if ok {
			return h, nil
		}
		if err != nil && waitCtx.Err() == nil {
			s.logger.Debug("Wait condition check failed.", zap.Error(err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if timeout <= 0 {
			return nil, login.ErrTimeout
		}
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, login.ErrTimeout
		}
	}
}

func (s *Session) check(ctx context.Context, cond login.Condition) (login.Handle, bool, error) {
	switch cond.Kind {
	case login.ConditionURLChanged:
		u, err := s.CurrentURL(ctx)
		return nil, err == nil && u != cond.From, err
	case login.ConditionElementClickable:
		h, err := s.FindElement(ctx, cond.Selector)
		if err != nil {
			return nil, false, err
		}
		ok, err := h.(*nodeHandle).clickable(ctx)
		return h, ok && err == nil, err
	default:
		h, err := s.FindElement(ctx, cond.Selector)
		return h, err == nil, err
	}
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := s.RunActions(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (s *Session) PageTitle(ctx context.Context) (string, error) {
	var title string
	if err := s.RunActions(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (s *Session) PageText(ctx context.Context) (string, error) {
	var text string
	err := s.RunActions(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return strings.TrimSpace(text), err
}

// ExecuteScript evaluates code and discards its result. A thrown exception
// is returned as the error.
func (s *Session) ExecuteScript(ctx context.Context, code string) error {
	return s.RunActions(ctx, chromedp.Evaluate(code, nil))
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.RunActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// Close closes the tab. Closing the primary tab is left to Browser.Close.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// cssString quotes v as a CSS string literal.
func cssString(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}
