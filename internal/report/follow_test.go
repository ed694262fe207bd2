// internal/report/follow_test.go
package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-login/internal/login"
)

func appendRecord(t *testing.T, path string, out login.Outcome, err error) {
	t.Helper()
	rl, openErr := OpenRunLog(path)
	require.NoError(t, openErr)
	require.NoError(t, rl.Write(out, err))
	require.NoError(t, rl.Close())
}

func TestFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	appendRecord(t, path, login.Outcome{AttemptID: "first", State: login.StateDoneSuccess, Succeeded: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, FollowConfig{FromStart: true, Poll: true}, zaptest.NewLogger(t), func(r Record) error {
			got <- r
			return nil
		})
	}()

	select {
	case r := <-got:
		assert.Equal(t, "first", r.AttemptID)
	case <-time.After(5 * time.Second):
		t.Fatal("existing record was not replayed")
	}

	// Garbage between records is skipped.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("{not json}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	appendRecord(t, path, login.Outcome{AttemptID: "second", State: login.StateDoneFailure}, nil)

	select {
	case r := <-got:
		assert.Equal(t, "second", r.AttemptID)
		assert.Equal(t, "Done(failure)", r.State)
	case <-time.After(5 * time.Second):
		t.Fatal("appended record was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancellation")
	}
}

func TestFollow_MissingFile(t *testing.T) {
	err := Follow(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), FollowConfig{Poll: true}, zaptest.NewLogger(t), func(Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to tail run log")
}

func TestFollow_CallbackErrorStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	appendRecord(t, path, login.Outcome{AttemptID: "only"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stop := assert.AnError
	err := Follow(ctx, path, FollowConfig{FromStart: true, Poll: true}, zaptest.NewLogger(t), func(Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestSummary(t *testing.T) {
	ok := Summary(Record{
		StartedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		DurationMS: 2340,
		State:      "Done(success)",
		Succeeded:  true,
		Heuristic:  "UrlChanged",
		FinalURL:   "https://example.test/home",
	})
	assert.Contains(t, ok, "2.3s")
	assert.True(t, strings.HasSuffix(ok, "Done(success) via UrlChanged  https://example.test/home"), ok)

	aborted := Summary(Record{State: "Aborted", Code: "ELEMENT_NOT_FOUND"})
	assert.True(t, strings.HasSuffix(aborted, "Aborted [ELEMENT_NOT_FOUND]  (unknown)"), aborted)
}
