package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewStructuredLoggerHonorsLevel(t *testing.T) {
	info := NewStructuredLogger("qmemd", "v1", "info")
	assert.True(t, info.Enabled(nil, slog.LevelInfo))
	assert.False(t, info.Enabled(nil, slog.LevelDebug))

	dbg := NewStructuredLogger("qmemd", "v1", "debug")
	assert.True(t, dbg.Enabled(nil, slog.LevelDebug))
}
