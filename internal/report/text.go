// internal/report/text.go
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// TextReporter prints a human-readable summary of each attempt.
type TextReporter struct {
	w io.Writer
}

// NewTextReporter writes to w. Close closes w when it is an io.Closer.
func NewTextReporter(w io.Writer) *TextReporter {
	return &TextReporter{w: w}
}

// Write prints the verdict. Success is only claimed when a heuristic
// observed it; every terminal state prints the URL the browser ended on.
func (r *TextReporter) Write(out login.Outcome, err error) error {
	out, aborted := resolve(out, err)

	var b strings.Builder
	switch {
	case aborted != nil:
		fmt.Fprintf(&b, "Login aborted in state %s [%s]: %v\n", aborted.State, login.CodeOf(aborted.Cause), aborted.Cause)
		fmt.Fprintf(&b, "Last known URL: %s\n", urlOrUnknown(out.FinalURL))
		if len(out.Diagnostics) > 0 {
			b.WriteString("Diagnostics:\n")
			for _, line := range out.Diagnostics {
				fmt.Fprintf(&b, "  - %s\n", line)
			}
		}
	case err != nil:
		// Errors that are not an abort happen before an attempt starts.
		fmt.Fprintf(&b, "Login could not be attempted [%s]: %v\n", login.CodeOf(err), err)
	case out.Succeeded:
		fmt.Fprintf(&b, "Login succeeded (confirmed by %s, submitted via %s).\n", out.Heuristic, out.Strategy)
		fmt.Fprintf(&b, "Current URL: %s\n", urlOrUnknown(out.FinalURL))
	default:
		fmt.Fprintf(&b, "Could not confirm that the login succeeded (submitted via %s).\n", out.Strategy)
		b.WriteString("Please verify manually in the browser.\n")
		fmt.Fprintf(&b, "Current URL: %s\n", urlOrUnknown(out.FinalURL))
	}
	if out.AttemptID != "" {
		fmt.Fprintf(&b, "Attempt %s finished in %s.\n", out.AttemptID, out.Duration.Round(time.Millisecond))
	}

	_, werr := io.WriteString(r.w, b.String())
	return werr
}

func (r *TextReporter) Close() error {
	return closeWriter(r.w)
}

func urlOrUnknown(u string) string {
	if u == "" {
		return "(unknown)"
	}
	return u
}
