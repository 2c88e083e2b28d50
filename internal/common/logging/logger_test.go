package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, InfoLevel, ParseLevel("chatty"))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	logger, err := NewZapLogger(LogConfig{Level: WarnLevel})
	require.NoError(t, err)

	SetGlobalLogger(logger)
	assert.Same(t, logger, GetGlobalLogger().(*ZapAdapter))
}

func TestZapAdapterWithFields(t *testing.T) {
	logger, err := NewZapLogger(DefaultLogConfig())
	require.NoError(t, err)

	child := logger.WithFields(Field{Key: "component", Value: "cache"})
	require.NotNil(t, child)
	assert.NotSame(t, logger, child)

	// Must not panic on any level.
	child.Debug("debug message")
	child.Info("info message", Field{Key: "k", Value: 1})
	child.Warn("warn message")
	child.Error("error message", errors.New("boom"))
}

func TestErrField(t *testing.T) {
	err := errors.New("boom")
	f := Err(err)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, err, f.Value)
}
