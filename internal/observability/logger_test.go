// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/remixer/internal/config"
)

// bufferSink is a WriteSyncer over a buffer so tests do not need to swap os.Stdout.
type bufferSink struct{ bytes.Buffer }

func (*bufferSink) Sync() error { return nil }

func initInto(t *testing.T, cfg config.LoggerConfig) *bufferSink {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)
	sink := &bufferSink{}
	Initialize(cfg, zapcore.AddSync(sink))
	return sink
}

func TestInitialize(t *testing.T) {
	t.Run("console output is colourised", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "remixer",
			Colors:      config.ColorConfig{Info: "green"},
		})
		GetLogger().Named("navigator").Info("session active")
		Sync()

		out := sink.String()
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "remixer.navigator.")
		assert.Contains(t, out, "session active")
	})

	t.Run("unknown colour falls back to plain level", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{
			Level:  "info",
			Format: "console",
			Colors: config.ColorConfig{Warn: "chartreuse"},
		})
		GetLogger().Warn("upload not confirmed")

		assert.Contains(t, sink.String(), "WARN")
		assert.NotContains(t, sink.String(), colorReset)
	})

	t.Run("json output", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})
		GetLogger().Warn("tier failed", zap.String("tier", "fetch"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "tier failed", entry["msg"])
		assert.Equal(t, "fetch", entry["tier"])
	})

	t.Run("level filters output", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{Level: "warn", Format: "json"})
		GetLogger().Info("hidden")
		assert.Empty(t, sink.String())
	})

	t.Run("invalid level defaults to info", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{Level: "loud", Format: "json"})
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, sink.String(), "hidden")
		assert.Contains(t, sink.String(), "shown")
	})

	t.Run("writes rotating file when configured", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "remixer.log")
		initInto(t, config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})
		GetLogger().Error("all download strategies failed")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "all download strategies failed")
		// the file sink is JSON regardless of the console format
		assert.True(t, strings.HasPrefix(strings.TrimSpace(string(content)), "{"))
	})

	t.Run("only the first initialization wins", func(t *testing.T) {
		sink := initInto(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"})
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, zapcore.AddSync(&bufferSink{}))

		GetLogger().Info("test")
		assert.Contains(t, sink.String(), "First")
		assert.NotContains(t, sink.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global after initialization", func(t *testing.T) {
		initInto(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Equal(t, globalLogger.Load(), GetLogger())
	})
}
