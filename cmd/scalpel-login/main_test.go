// File: cmd/scalpel-login/main_test.go
package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-login/cmd"
	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(&login.DriverStartError{Cause: errors.New("no chrome")}))
	assert.Equal(t, 1, exitCode(&login.AbortedError{State: login.StateNavigated, Cause: login.ErrNotFound}))
	assert.Equal(t, 1, exitCode(context.Canceled))
}

func TestMain_ExitStatus(t *testing.T) {
	defer resetMocks()

	for _, tc := range []struct {
		name string
		err  error
		want int
	}{
		{"verdict", nil, 0},
		{"aborted", &login.AbortedError{State: login.StateInit, Cause: errors.New("boom")}, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var gotCtx context.Context
			execute = func(ctx context.Context) error {
				gotCtx = ctx
				return tc.err
			}
			code := -1
			osExit = func(c int) { code = c }

			main()

			assert.Equal(t, tc.want, code)
			require.NotNil(t, gotCtx)
		})
	}
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("WritesPanicLog", func(t *testing.T) {
		var written string
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			assert.Equal(t, panicLogFile, name)
			written = string(data)
			return nil
		}
		code := -1
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("kaboom")
		}()

		assert.Equal(t, 1, code)
		assert.Contains(t, written, "panic: kaboom")
		assert.Contains(t, written, "goroutine")
	})

	t.Run("WriteFailure", func(t *testing.T) {
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		code := -1
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("kaboom")
		}()

		assert.Equal(t, 1, code)
	})

	t.Run("NoPanic", func(t *testing.T) {
		code := -1
		osExit = func(c int) { code = c }
		func() {
			defer handlePanic()
		}()
		assert.Equal(t, -1, code)
	})
}
