// internal/login/driver.go
package login

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors a Driver implementation reports. The login core only ever
// switches on these, never on implementation specific error strings.
var (
	// ErrNotFound means no element matched the selector in the current document.
	ErrNotFound = errors.New("element not found")
	// ErrTimeout means a WaitFor condition did not hold before its timeout.
	ErrTimeout = errors.New("condition timed out")
	// ErrStaleHandle means a previously resolved element is no longer attached
	// to the document. It is the only transient failure the Retrier recovers.
	ErrStaleHandle = errors.New("stale element handle")
)

// StrategyKind names how a Selector value identifies an element.
type StrategyKind string

const (
	ByID    StrategyKind = "id"
	ByName  StrategyKind = "name"
	ByQuery StrategyKind = "css"
	// ByText matches any element whose own text contains the value.
	ByText StrategyKind = "text"
)

// Selector is one (strategy, value) identification candidate.
type Selector struct {
	Kind  StrategyKind
	Value string
}

func (s Selector) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.Value)
}

// ParseSelector reads the "kind:value" notation used in configuration files.
// A value without a recognised kind prefix is treated as a CSS query.
func ParseSelector(raw string) (Selector, error) {
	if raw == "" {
		return Selector{}, errors.New("empty selector")
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != ':' {
			continue
		}
		kind := StrategyKind(raw[:i])
		switch kind {
		case ByID, ByName, ByQuery, ByText:
			if i+1 == len(raw) {
				return Selector{}, fmt.Errorf("selector %q has no value", raw)
			}
			return Selector{Kind: kind, Value: raw[i+1:]}, nil
		}
		break
	}
	return Selector{Kind: ByQuery, Value: raw}, nil
}

// TextXPath is the XPath expression drivers evaluate for a ByText selector:
// the first rendered element whose own text contains text.
func TextXPath(text string) string {
	return "//body//*[not(self::script) and not(self::style)][contains(text(), " + xpathLiteral(text) + ")]"
}

// xpathLiteral quotes v as an XPath 1.0 literal, which has no escape syntax.
func xpathLiteral(v string) string {
	switch {
	case !strings.Contains(v, `"`):
		return `"` + v + `"`
	case !strings.Contains(v, `'`):
		return `'` + v + `'`
	}
	parts := strings.Split(v, `"`)
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return "concat(" + strings.Join(parts, `, '"', `) + ")"
}

// Handle is a live reference to an element in the driven page. Every method
// returns ErrStaleHandle once the element has been detached by a re-render.
type Handle interface {
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Click(ctx context.Context) error
}

// ConditionKind enumerates what WaitFor can block on.
type ConditionKind int

const (
	ConditionElementPresent ConditionKind = iota
	ConditionElementClickable
	ConditionURLChanged
)

// Condition is a single WaitFor predicate.
type Condition struct {
	Kind     ConditionKind
	Selector Selector
	From     string
}

// ElementPresent holds once sel resolves.
func ElementPresent(sel Selector) Condition {
	return Condition{Kind: ConditionElementPresent, Selector: sel}
}

// ElementClickable holds once sel resolves to a visible, enabled element.
func ElementClickable(sel Selector) Condition {
	return Condition{Kind: ConditionElementClickable, Selector: sel}
}

// URLChanged holds once the page URL differs from from.
func URLChanged(from string) Condition {
	return Condition{Kind: ConditionURLChanged, From: from}
}

// Driver is the browser automation collaborator. Implementations own exactly
// one page and are not safe for concurrent writers.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	FindElement(ctx context.Context, sel Selector) (Handle, error)
	// WaitFor blocks until cond holds or timeout elapses (ErrTimeout). The
	// returned Handle is nil for ConditionURLChanged.
	WaitFor(ctx context.Context, cond Condition, timeout time.Duration) (Handle, error)
	CurrentURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	ExecuteScript(ctx context.Context, code string) error
}
