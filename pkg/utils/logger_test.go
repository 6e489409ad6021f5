package utils

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefaultLogger(LevelInfo, &buf)

	log.Debug("remapped wire id %d", 42)
	log.Info("ingested %d records", 9)
	log.Warn("missing packet before index %d", 3)
	log.Error("snapshot (upid=%d) has no roots", 7)

	out := buf.String()
	assert.NotContains(t, out, "remapped wire id")
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "ingested 9 records")
	assert.Contains(t, out, "missing packet before index 3")
	assert.Contains(t, out, "snapshot (upid=7) has no roots")
}

func TestDefaultLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefaultLogger(LevelError, &buf)

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.SetLevel(LevelDebug)
	log.Debug("field intern %d resolved", 10)
	assert.Contains(t, buf.String(), "field intern 10 resolved")
}

func TestDefaultLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewDefaultLogger(LevelInfo, &buf)

	scoped := log.WithField("upid", 7).WithFields(map[string]interface{}{"ts": 1000})
	scoped.Info("finalized")

	out := buf.String()
	assert.Contains(t, out, "upid=7")
	assert.Contains(t, out, "ts=1000")
	assert.Contains(t, out, "finalized")

	// The parent logger stays unscoped.
	buf.Reset()
	log.Info("plain")
	assert.NotContains(t, buf.String(), "upid=7")
}

func TestDefaultLogger_NilOutputDefaultsToStdout(t *testing.T) {
	log := NewDefaultLogger(LevelError, nil)
	assert.NotNil(t, log.output)

	// Must not panic.
	log.Debug("suppressed")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLogLevel(tt.in), "ParseLogLevel(%q)", tt.in)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestNullLogger(t *testing.T) {
	var log Logger = &NullLogger{}

	// All calls are no-ops and chaining returns the same discard logger.
	log.Info("ignored %d", 1)
	assert.Same(t, log, log.WithField("upid", 7))
	assert.Same(t, log, log.WithFields(map[string]interface{}{"ts": 1000}))
}

func TestGlobalLogger(t *testing.T) {
	orig := GetGlobalLogger()
	defer SetGlobalLogger(orig)

	var buf bytes.Buffer
	SetGlobalLogger(NewDefaultLogger(LevelInfo, &buf))
	GetGlobalLogger().Info("analysis complete")

	assert.True(t, strings.Contains(buf.String(), "analysis complete"))
}
