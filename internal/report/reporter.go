// internal/report/reporter.go
package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// Reporter writes the result of a login attempt to an output.
type Reporter interface {
	// Write records one attempt. err is the error AttemptLogin returned, if any.
	Write(out login.Outcome, err error) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("text" or "json") writing to outputPath,
// or to stdout when the path is empty or "stdout". Closing the reporter never
// closes stdout.
func New(format, outputPath string, stdout io.Writer) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case "text", "":
		return NewTextReporter(writer), nil
	case "json":
		return NewJSONReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// resolve returns the outcome to report. An aborted attempt carries its
// outcome inside the error as well; that copy wins when both are set.
func resolve(out login.Outcome, err error) (login.Outcome, *login.AbortedError) {
	var aborted *login.AbortedError
	if errors.As(err, &aborted) {
		return aborted.Outcome, aborted
	}
	return out, nil
}

func closeWriter(w io.Writer) error {
	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
