package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/coop-ledger/logger"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.in), tt.in)
	}
}

func TestConfig_Keys(t *testing.T) {
	cfg := logger.Config("debug")

	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, "log_level", cfg.EncoderConfig.LevelKey)
	assert.Equal(t, "message", cfg.EncoderConfig.MessageKey)
	assert.Equal(t, "timestamp", cfg.EncoderConfig.TimeKey)
	assert.True(t, cfg.Level.Enabled(zapcore.DebugLevel))
}

func TestNew(t *testing.T) {
	log, err := logger.New("warn")
	require.NoError(t, err)

	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}
