// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scalpel-login/internal/config"
	"github.com/xkilldash9x/scalpel-login/internal/login"
)

// -- Test Helper Functions --

// bufferSink collects console output in memory.
func bufferSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("should initialize console logger with colors", func(t *testing.T) {
		ResetForTest()
		buf, sink := bufferSink()

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}
		Initialize(cfg, sink)
		GetLogger().Named("locator").Info("This is a test message.")
		Sync()

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, colorGreen, "Info level should be colorized green")
		assert.Contains(t, output, colorReset)
		assert.Contains(t, output, "TestService.locator.")
	})

	t.Run("should initialize json logger", func(t *testing.T) {
		ResetForTest()
		buf, sink := bufferSink()

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}
		Initialize(cfg, sink)
		GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))
		Sync()

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("should respect the configured level", func(t *testing.T) {
		ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("dropped")
		Sync()
		assert.Empty(t, buf.String())
	})

	t.Run("should write to a log file if configured", func(t *testing.T) {
		ResetForTest()
		_, sink := bufferSink()
		logFile := filepath.Join(t.TempDir(), "login.log")

		cfg := config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		}
		Initialize(cfg, sink)
		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
		assert.Contains(t, string(content), `"level":"ERROR"`, "the file sink is always JSON")
	})

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", ServiceName: "First"}, sink)
		logger1 := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, sink)
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test")
		Sync()

		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})

	t.Run("credentials are logged without the password", func(t *testing.T) {
		ResetForTest()
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, sink)
		creds := login.Credentials{Username: "alice", Password: "hunter2"}
		GetLogger().Info("attempt", zap.Object("credentials", creds), zap.Stringer("creds", creds))
		Sync()

		assert.Contains(t, buf.String(), "alice")
		assert.NotContains(t, buf.String(), "hunter2")
	})
}

func TestGetLogger(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("should return a fallback logger if not initialized", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("should return the global logger after initialization", func(t *testing.T) {
		ResetForTest()
		_, sink := bufferSink()
		Initialize(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"}, sink)

		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestNew(t *testing.T) {
	buf, sink := bufferSink()
	logger := New(config.LoggerConfig{Level: "not-a-level", Format: "json"}, sink)

	logger.Debug("hidden")
	logger.Info("shown")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "hidden", "an unknown level falls back to info")
	assert.Contains(t, buf.String(), "shown")
}
