package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Development(t *testing.T) {
	l := NewLogger("development")
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Production(t *testing.T) {
	l := NewLogger("production")
	require.NotNil(t, l)
	// 本番設定ではDebugは出力されない
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_LevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	l := NewLogger("development")
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestSetAndGet(t *testing.T) {
	original := Get()
	t.Cleanup(func() { Set(original) })

	replacement := zap.NewNop()
	Set(replacement)
	assert.Same(t, replacement, Get())
}

func TestGlobalFunctions_DoNotPanic(t *testing.T) {
	original := Get()
	t.Cleanup(func() { Set(original) })
	Set(zap.NewNop())

	assert.NotPanics(t, func() {
		Debug("debug", zap.String("k", "v"))
		Info("info")
		Warn("warn")
		Error("error")
		With(zap.Int("n", 1)).Info("with")
	})
}
