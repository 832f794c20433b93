package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Feature: observability, production logs are structured JSON
func TestProperty_LogsAreStructured(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every entry is a JSON object with level, timestamp and message", prop.ForAll(
		func(message string, level string) bool {
			var buf bytes.Buffer
			logger := NewJSON(&buf, zapcore.DebugLevel)

			switch level {
			case "debug":
				logger.Debug(message)
			case "info":
				logger.Info(message)
			case "warn":
				logger.Warn(message)
			default:
				logger.Error(message)
			}
			logger.Sync()

			line := strings.SplitN(buf.String(), "\n", 2)[0]
			var entry map[string]interface{}
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				t.Logf("FAIL: not JSON: %q", line)
				return false
			}

			if entry["level"] != level {
				return false
			}
			if _, ok := entry["timestamp"]; !ok {
				return false
			}
			return entry["message"] == message
		},
		gen.AnyString(),
		gen.OneConstOf("debug", "info", "warn", "error"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestNewJSONFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, zapcore.WarnLevel)

	logger.Info("dropped")
	logger.Warn("kept", zap.String("product_id", "p-1"))
	logger.Sync()

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info entry should be filtered at warn level")
	}
	if !strings.Contains(out, `"product_id":"p-1"`) {
		t.Errorf("expected structured field in output, got %s", out)
	}
}

func TestNewFallsBackOnUnknownLevel(t *testing.T) {
	logger, err := New("production", "not-a-level")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("production logger should log at info")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("production logger should not log debug by default")
	}
}
