// Package logintest provides an in-memory login.Driver backed by parsed HTML
// documents, for exercising the login core without a browser.
package logintest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// Operation names counted by DocumentDriver.Calls.
const (
	OpNavigate = "navigate"
	OpFind     = "find"
	OpWait     = "wait"
	OpClear    = "clear"
	OpSendKeys = "sendkeys"
	OpClick    = "click"
	OpScript   = "script"
	OpSubmit   = "submit"
)

const pollInterval = 5 * time.Millisecond

// SubmitResult tells the driver what page follows a form submission. Empty
// fields keep the current URL or document.
type SubmitResult struct {
	URL  string
	HTML string
}

// SubmitHandler receives the submitted form values keyed by name (or id).
type SubmitHandler func(values map[string]string) SubmitResult

// DocumentDriver implements login.Driver over goquery documents. Replacing
// the document detaches every previously returned handle, which then
// reports login.ErrStaleHandle just like a re-rendered browser page.
type DocumentDriver struct {
	mu     sync.Mutex
	pages  map[string]string
	url    string
	doc    *goquery.Document
	calls  map[string]int
	submit SubmitHandler

	// staleWrites makes the next N writes re-render the document first.
	staleWrites int

	// Hook, when set, runs before every operation without the lock held.
	// Returning an error fails the operation with that error.
	Hook func(op string) error
}

var _ login.Driver = (*DocumentDriver)(nil)

// NewDocumentDriver serves pages keyed by URL.
func NewDocumentDriver(pages map[string]string) *DocumentDriver {
	return &DocumentDriver{
		pages: pages,
		calls: make(map[string]int),
	}
}

// OnSubmit installs the transition applied when a form is submitted.
func (d *DocumentDriver) OnSubmit(h SubmitHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submit = h
}

// StaleOnNextWrites makes the next n Clear/SendKeys calls find their handle
// detached by a re-render, as an async validation script would.
func (d *DocumentDriver) StaleOnNextWrites(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.staleWrites = n
}

// Mutate edits the live document in place.
func (d *DocumentDriver) Mutate(fn func(doc *goquery.Document)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc != nil {
		fn(d.doc)
	}
}

// Calls returns how many times op ran.
func (d *DocumentDriver) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Value returns the current value attribute of the first match of css.
func (d *DocumentDriver) Value(css string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return ""
	}
	v, _ := d.doc.Find(css).First().Attr("value")
	return v
}

func (d *DocumentDriver) enter(op string) error {
	if d.Hook != nil {
		if err := d.Hook(op); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.calls[op]++
	d.mu.Unlock()
	return nil
}

func (d *DocumentDriver) load(url, html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	d.url = url
	d.doc = doc
	return nil
}

// rerender reparses the current markup, detaching all handles while keeping
// entered values.
func (d *DocumentDriver) rerender() error {
	html, err := d.doc.Html()
	if err != nil {
		return err
	}
	return d.load(d.url, html)
}

func (d *DocumentDriver) Navigate(ctx context.Context, url string) error {
	if err := d.enter(OpNavigate); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	html, ok := d.pages[url]
	if !ok {
		return fmt.Errorf("no page registered for %s", url)
	}
	return d.load(url, html)
}

func query(sel login.Selector) string {
	switch sel.Kind {
	case login.ByID:
		return fmt.Sprintf("[id=%q]", sel.Value)
	case login.ByName:
		return fmt.Sprintf("[name=%q]", sel.Value)
	default:
		return sel.Value
	}
}

// findLocked must be called with d.mu held.
func (d *DocumentDriver) findLocked(sel login.Selector) (*goquery.Selection, error) {
	if d.doc == nil {
		return nil, login.ErrNotFound
	}
	var s *goquery.Selection
	if sel.Kind == login.ByText {
		// Text selectors go through the same XPath the browser evaluates.
		n, err := htmlquery.Query(d.doc.Nodes[0], login.TextXPath(sel.Value))
		if err != nil {
			return nil, fmt.Errorf("text selector %q: %w", sel.Value, err)
		}
		if n == nil {
			return nil, login.ErrNotFound
		}
		s = d.doc.FindNodes(n)
	} else {
		s = d.doc.Find(query(sel)).First()
	}
	if s.Length() == 0 {
		return nil, login.ErrNotFound
	}
	return s, nil
}

func (d *DocumentDriver) FindElement(ctx context.Context, sel login.Selector) (login.Handle, error) {
	if err := d.enter(OpFind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, err := d.findLocked(sel)
	if err != nil {
		return nil, err
	}
	return &handle{d: d, sel: s}, nil
}

func clickable(s *goquery.Selection) bool {
	if _, disabled := s.Attr("disabled"); disabled {
		return false
	}
	if _, hidden := s.Attr("hidden"); hidden {
		return false
	}
	style, _ := s.Attr("style")
	return !strings.Contains(strings.ReplaceAll(style, " ", ""), "display:none")
}

// check evaluates cond once; must be called with d.mu held.
func (d *DocumentDriver) check(cond login.Condition) (login.Handle, bool) {
	switch cond.Kind {
	case login.ConditionURLChanged:
		return nil, d.url != cond.From
	case login.ConditionElementClickable:
		s, err := d.findLocked(cond.Selector)
		if err != nil || !clickable(s) {
			return nil, false
		}
		return &handle{d: d, sel: s}, true
	default:
		s, err := d.findLocked(cond.Selector)
		if err != nil {
			return nil, false
		}
		return &handle{d: d, sel: s}, true
	}
}

func (d *DocumentDriver) WaitFor(ctx context.Context, cond login.Condition, timeout time.Duration) (login.Handle, error) {
	if err := d.enter(OpWait); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		h, ok := d.check(cond)
		d.mu.Unlock()
		if ok {
			return h, nil
		}
		if !time.Now().Before(deadline) {
			return nil, login.ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (d *DocumentDriver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *DocumentDriver) PageTitle(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(d.doc.Find("title").Text()), nil
}

func (d *DocumentDriver) PageText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(d.doc.Find("body").Text()), nil
}

// ExecuteScript understands login.FormSubmitScript only.
func (d *DocumentDriver) ExecuteScript(ctx context.Context, code string) error {
	if err := d.enter(OpScript); err != nil {
		return err
	}
	if code != login.FormSubmitScript {
		return errors.New("logintest: unsupported script")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return errors.New("no document")
	}
	form := d.doc.Find("#password, input[name='password'], input[type='password']").First().Closest("form")
	if form.Length() == 0 {
		form = d.doc.Find("form").First()
	}
	if form.Length() == 0 {
		return errors.New("no form to submit")
	}
	return d.submitLocked(form)
}

// submitLocked collects the form values and applies the submit handler.
func (d *DocumentDriver) submitLocked(form *goquery.Selection) error {
	d.calls[OpSubmit]++
	values := make(map[string]string)
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		key, ok := in.Attr("name")
		if !ok {
			key, ok = in.Attr("id")
		}
		if !ok {
			return
		}
		v, _ := in.Attr("value")
		values[key] = v
	})
	if d.submit == nil {
		return nil
	}
	next := d.submit(values)
	url := d.url
	if next.URL != "" {
		url = next.URL
	}
	if next.HTML == "" {
		d.url = url
		return nil
	}
	return d.load(url, next.HTML)
}

// handle is a reference to one node of a specific document.
type handle struct {
	d   *DocumentDriver
	sel *goquery.Selection
}

// attachedLocked reports whether the node still belongs to the live document.
func (h *handle) attachedLocked() bool {
	return h.d.doc != nil && h.d.doc.FindSelection(h.sel).Length() > 0
}

// beginWrite applies a pending re-render and checks attachment.
func (h *handle) beginWrite() error {
	if h.d.staleWrites > 0 {
		h.d.staleWrites--
		if err := h.d.rerender(); err != nil {
			return err
		}
	}
	if !h.attachedLocked() {
		return login.ErrStaleHandle
	}
	return nil
}

func (h *handle) Clear(ctx context.Context) error {
	if err := h.d.enter(OpClear); err != nil {
		return err
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if err := h.beginWrite(); err != nil {
		return err
	}
	h.sel.SetAttr("value", "")
	return nil
}

func (h *handle) SendKeys(ctx context.Context, text string) error {
	if err := h.d.enter(OpSendKeys); err != nil {
		return err
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if err := h.beginWrite(); err != nil {
		return err
	}
	typed, enter := strings.CutSuffix(text, login.EnterKey)
	if typed != "" {
		cur, _ := h.sel.Attr("value")
		h.sel.SetAttr("value", cur+typed)
	}
	if !enter {
		return nil
	}
	form := h.sel.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return h.d.submitLocked(form)
}

func (h *handle) Click(ctx context.Context) error {
	if err := h.d.enter(OpClick); err != nil {
		return err
	}
	h.d.mu.Lock()
	defer h.d.mu.Unlock()
	if !h.attachedLocked() {
		return login.ErrStaleHandle
	}
	typ, _ := h.sel.Attr("type")
	if goquery.NodeName(h.sel) == "button" && typ == "" {
		typ = "submit"
	}
	if typ != "submit" {
		return nil
	}
	form := h.sel.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return h.d.submitLocked(form)
}
