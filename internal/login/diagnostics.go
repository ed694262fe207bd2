// internal/login/diagnostics.go
package login

import (
	"fmt"

	"go.uber.org/zap"
)

// trail collects the ordered observation strings of one attempt and mirrors
// each of them to the debug log.
type trail struct {
	logger  *zap.Logger
	entries []string
}

func newTrail(logger *zap.Logger) *trail {
	return &trail{logger: logger}
}

func (t *trail) notef(format string, args ...any) {
	if t == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	t.entries = append(t.entries, msg)
	t.logger.Debug(msg)
}

func (t *trail) snapshot() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.entries))
	copy(out, t.entries)
	return out
}
