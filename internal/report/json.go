// internal/report/json.go
package report

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one line of a run log.
type Record struct {
	AttemptID   string    `json:"attempt_id"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	State       string    `json:"state"`
	Succeeded   bool      `json:"succeeded"`
	Strategy    string    `json:"strategy"`
	Heuristic   string    `json:"heuristic"`
	FinalURL    string    `json:"final_url"`
	Code        string    `json:"code,omitempty"`
	Error       string    `json:"error,omitempty"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
}

// NewRecord flattens an attempt into a Record.
func NewRecord(out login.Outcome, err error) Record {
	out, _ = resolve(out, err)
	rec := Record{
		AttemptID:   out.AttemptID,
		StartedAt:   out.StartedAt.UTC(),
		DurationMS:  out.Duration.Milliseconds(),
		State:       out.State.String(),
		Succeeded:   out.Succeeded,
		Strategy:    out.Strategy.String(),
		Heuristic:   out.Heuristic.String(),
		FinalURL:    out.FinalURL,
		Diagnostics: out.Diagnostics,
	}
	if err != nil {
		rec.Code = string(login.CodeOf(err))
		rec.Error = err.Error()
	}
	return rec
}

// JSONReporter writes one JSON object per attempt, one per line.
type JSONReporter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *jsoniter.Encoder
}

func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w, enc: json.NewEncoder(w)}
}

func (r *JSONReporter) Write(out login.Outcome, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if encErr := r.enc.Encode(NewRecord(out, err)); encErr != nil {
		return fmt.Errorf("failed to write run log record: %w", encErr)
	}
	return nil
}

func (r *JSONReporter) Close() error {
	return closeWriter(r.w)
}

// OpenRunLog opens path for appending, creating it if needed, and returns a
// JSON-lines reporter over it.
func OpenRunLog(path string) (*JSONReporter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	return NewJSONReporter(f), nil
}

// ReadRunLog decodes every record in a run log.
func ReadRunLog(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	var records []Record
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return records, fmt.Errorf("malformed run log record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
