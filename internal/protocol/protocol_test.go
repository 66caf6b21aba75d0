package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/domain/motion"
)

// TestParseCommand covers case sensitivity and trailing whitespace.
func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"CURSOR_MODE", CommandCursorMode, true},
		{"GESTURE_MODE\r\n", CommandGestureMode, true},
		{"IDLE_MODE \t", CommandIdleMode, true},
		{"CALIBRATE\n", CommandCalibrate, true},
		{"CALIBRATE_TILT", CommandCalibrateTilt, true},
		{"INIT_CHECK", CommandInitCheck, true},
		{"cursor_mode", CommandUnknown, false},
		{" CURSOR_MODE", CommandUnknown, false},
		{"", CommandUnknown, false},
		{"FOO", CommandUnknown, false},
	}

	for _, tt := range tests {
		got, ok := ParseCommand(tt.line)
		require.Equal(t, tt.ok, ok, "line %q", tt.line)
		require.Equal(t, tt.want, got, "line %q", tt.line)
	}
}

// TestMessageString checks the exact outbound line formats.
func TestMessageString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		msg  Message
		want string
	}{
		{CursorMessage(motion.CursorVector{Vx: 1.234, Vy: -100}), "CURSOR,1.23,-100.00"},
		{CursorMessage(motion.CursorVector{}), "CURSOR,0.00,0.00"},
		{CursorMessage(motion.CursorVector{Vx: -0.001}), "CURSOR,0.00,0.00"},
		{GestureMessage(motion.GestureCircle), "GESTURE,CIRCLE"},
		{ModeMessage(motion.ModeCursor), "MODE_CURSOR"},
		{ModeMessage(motion.ModeGesture), "MODE_GESTURE"},
		{ModeMessage(motion.ModeIdle), "MODE_IDLE"},
		{Message{Kind: KindCalibrationStart}, "CALIBRATION_START"},
		{Message{Kind: KindCalibrationProgress, Percent: 42}, "CALIBRATION_PROGRESS,42"},
		{
			Message{Kind: KindCalibrationComplete, Offsets: motion.Offsets{GxOffset: -12, GyOffset: 3, GzOffset: 0}},
			"CALIBRATION_COMPLETE,-12,3,0",
		},
		{Message{Kind: KindCalibrationFailed}, "CALIBRATION_FAILED"},
		{
			Message{Kind: KindTiltCalibrationComplete, Offsets: motion.Offsets{TiltPitchZero: 1.5, TiltRollZero: -2}},
			"TILT_CALIBRATION_COMPLETE,1.50,-2.00",
		},
		{Message{Kind: KindInitComplete}, "INIT_COMPLETE"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tt.msg.String())
	}
}

// TestParseMessage decodes lines produced by String.
func TestParseMessage(t *testing.T) {
	t.Parallel()

	msg, err := ParseMessage("CURSOR,12.50,-3.25\n")
	require.NoError(t, err)
	require.Equal(t, CursorMessage(motion.CursorVector{Vx: 12.5, Vy: -3.25}), msg)

	msg, err = ParseMessage("GESTURE,SHAKE")
	require.NoError(t, err)
	require.Equal(t, GestureMessage(motion.GestureShake), msg)

	msg, err = ParseMessage("MODE_GESTURE")
	require.NoError(t, err)
	require.Equal(t, ModeMessage(motion.ModeGesture), msg)

	msg, err = ParseMessage("CALIBRATION_COMPLETE,-12,3,0")
	require.NoError(t, err)
	require.Equal(t, int32(-12), msg.Offsets.GxOffset)

	msg, err = ParseMessage("CALIBRATION_PROGRESS,7")
	require.NoError(t, err)
	require.Equal(t, 7, msg.Percent)

	msg, err = ParseMessage("TILT_CALIBRATION_COMPLETE,1.50,-2.00")
	require.NoError(t, err)
	require.InDelta(t, -2.0, msg.Offsets.TiltRollZero, 1e-9)

	for _, bad := range []string{"", "CURSOR,1", "CURSOR,a,b", "GESTURE,WAVE", "MODE_TURBO", "HELLO", "CALIBRATION_COMPLETE,1,2"} {
		_, err = ParseMessage(bad)
		require.Error(t, err, "line %q", bad)
	}
}
