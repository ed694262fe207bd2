// internal/browser/handle.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// Functions called with the element as `this`. Each returns false (or
// "stale") when the node has been detached from the document.
const (
	jsClear = `function() {
	if (!this.isConnected) { return false; }
	this.focus();
	this.value = '';
	this.dispatchEvent(new Event('input', { bubbles: true }));
	this.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`
	jsFocus = `function() {
	if (!this.isConnected) { return false; }
	this.focus();
	return true;
}`
	jsClick = `function() {
	if (!this.isConnected) { return false; }
	this.scrollIntoView({ block: 'center', inline: 'center' });
	this.click();
	return true;
}`
	jsClickable = `function() {
	if (!this.isConnected) { return 'stale'; }
	const style = window.getComputedStyle(this);
	const rect = this.getBoundingClientRect();
	if (this.disabled || style.visibility === 'hidden' || style.display === 'none' || rect.width === 0 || rect.height === 0) {
		return 'hidden';
	}
	return 'ok';
}`
)

// nodeHandle refers to a DOM node by its backend id, which survives for as
// long as the node itself does and is never reused for another node.
type nodeHandle struct {
	s   *Session
	id  cdp.BackendNodeID
	sel login.Selector
}

// callOn invokes fn on the node and decodes its return value into out.
func (h *nodeHandle) callOn(ctx context.Context, fn string, out any) error {
	return h.s.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return h.callOnExec(ctx, fn, out)
	}))
}

// callOnExec is callOn for code already running inside a chromedp action.
func (h *nodeHandle) callOnExec(ctx context.Context, fn string, out any) error {
	obj, err := dom.ResolveNode().WithBackendNodeID(h.id).Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", login.ErrStaleHandle, h.sel, err)
	}
	defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

	res, exc, err := runtime.CallFunctionOn(fn).
		WithObjectID(obj.ObjectID).
		WithReturnByValue(true).
		Do(ctx)
	if err != nil {
		return err
	}
	if exc != nil {
		return exc
	}
	return json.Unmarshal(res.Value, out)
}

// connected runs a boolean JS function and maps false to ErrStaleHandle.
func (h *nodeHandle) connected(ctx context.Context, fn string) error {
	var ok bool
	if err := h.callOn(ctx, fn, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", login.ErrStaleHandle, h.sel)
	}
	return nil
}

func (h *nodeHandle) Clear(ctx context.Context) error {
	return h.connected(ctx, jsClear)
}

// SendKeys focuses the node and inserts text. A trailing login.EnterKey is
// dispatched as a real Enter key press so implicit form submission happens.
func (h *nodeHandle) SendKeys(ctx context.Context, text string) error {
	typed, enter := strings.CutSuffix(text, login.EnterKey)
	return h.s.RunActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var ok bool
		if err := h.callOnExec(ctx, jsFocus, &ok); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", login.ErrStaleHandle, h.sel)
		}
		if typed != "" {
			if err := input.InsertText(typed).Do(ctx); err != nil {
				return fmt.Errorf("insert text: %w", err)
			}
		}
		if enter {
			return chromedp.KeyEvent(kb.Enter).Do(ctx)
		}
		return nil
	}))
}

func (h *nodeHandle) Click(ctx context.Context) error {
	return h.connected(ctx, jsClick)
}

func (h *nodeHandle) clickable(ctx context.Context) (bool, error) {
	var state string
	if err := h.callOn(ctx, jsClickable, &state); err != nil {
		return false, err
	}
	switch state {
	case "ok":
		return true, nil
	case "stale":
		return false, fmt.Errorf("%w: %s", login.ErrStaleHandle, h.sel)
	default:
		return false, nil
	}
}
