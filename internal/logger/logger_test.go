package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" Info ":  zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"dpanic":  zapcore.DPanicLevel,
		"panic":   zapcore.PanicLevel,
		"fatal\n": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	got, ok := ParseLogLevel("verbose")
	require.False(t, ok)
	require.Equal(t, zapcore.InfoLevel, got)
}

// TestNewWithOutput_FiltersByLevel checks the sink receives only enabled
// entries along with their key-value fields.
func TestNewWithOutput_FiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithOutput(zapcore.WarnLevel, zapcore.AddSync(&buf))
	ctx := WithName(ToContext(context.Background(), l), "engine")

	Info(ctx, "tick")
	WarnKV(ctx, "sensor read failed", "errors", 3)
	require.NoError(t, l.Sync())

	out := buf.String()
	require.NotContains(t, out, "tick")
	require.Contains(t, out, "sensor read failed")
	require.Contains(t, out, `"errors"`)
}
