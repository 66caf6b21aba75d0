package device

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/protocol"
	repository "github.com/oshokin/airmouse/internal/repository/calibration"
)

const restingReplay = `loop: true
steps:
  - {az: 16384, gx: 100, gy: -50, gz: 7}
`

// writeSettings stores a replay-backed configuration in a temp dir.
func writeSettings(t *testing.T) (cfgPath, calibrationPath string) {
	t.Helper()

	dir := t.TempDir()
	replayPath := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(replayPath, []byte(restingReplay), 0o600))

	cfg := config.Default()
	cfg.Device.Sensor = config.SensorReplay
	cfg.Device.ReplayFile = replayPath
	cfg.Device.ListenAddress = "127.0.0.1:0"
	cfg.Device.CalibrationFile = filepath.Join(dir, "calibration.json")
	cfg.Detection.Calibration.SampleCount = 5
	cfg.Detection.Calibration.SampleDelay = 1

	cfgPath = filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	return cfgPath, cfg.Device.CalibrationFile
}

// TestRunCalibration_SavesOffsets calibrates from a replay script and persists the result.
func TestRunCalibration_SavesOffsets(t *testing.T) {
	t.Parallel()

	cfgPath, calibrationPath := writeSettings(t)

	var out bytes.Buffer

	err := RunCalibration(context.Background(), &CalibrationOptions{
		ConfigPath: cfgPath,
		Output:     &out,
	})
	require.NoError(t, err)
	require.Equal(t, "CALIBRATION_COMPLETE,100,-50,7\n", out.String())

	saved, err := repository.NewFileRepository(calibrationPath).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(100), saved.GxOffset)
	require.Equal(t, int32(-50), saved.GyOffset)
	require.Equal(t, int32(7), saved.GzOffset)
}

// TestRunCalibration_Tilt keeps the gyro offsets of a previous run.
func TestRunCalibration_Tilt(t *testing.T) {
	t.Parallel()

	cfgPath, calibrationPath := writeSettings(t)
	ctx := context.Background()

	require.NoError(t, RunCalibration(ctx, &CalibrationOptions{ConfigPath: cfgPath}))

	var out bytes.Buffer

	require.NoError(t, RunCalibration(ctx, &CalibrationOptions{ConfigPath: cfgPath, Tilt: true, Output: &out}))
	require.Equal(t, "TILT_CALIBRATION_COMPLETE,0.00,0.00\n", out.String())

	saved, err := repository.NewFileRepository(calibrationPath).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(100), saved.GxOffset)
}

// TestLoadSettings_Overrides applies command line flags over the file.
func TestLoadSettings_Overrides(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeSettings(t)

	settings, err := loadSettings(&Options{
		ConfigPath:    cfgPath,
		ListenAddress: "127.0.0.1:9999",
		ReplayFile:    "other.yaml",
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", settings.Device.ListenAddress)
	require.Equal(t, config.SensorReplay, settings.Device.Sensor)
	require.Equal(t, "other.yaml", settings.Device.ReplayFile)

	_, err = loadSettings(&Options{ConfigPath: cfgPath, ListenAddress: "not an address"})
	require.Error(t, err)
}

// TestModeCommand maps every mode to its protocol command.
func TestModeCommand(t *testing.T) {
	t.Parallel()

	require.Equal(t, protocol.CommandCursorMode, modeCommand(motion.ModeCursor))
	require.Equal(t, protocol.CommandGestureMode, modeCommand(motion.ModeGesture))
	require.Equal(t, protocol.CommandIdleMode, modeCommand(motion.ModeIdle))
}

// TestRun_RejectsUnknownMode fails before any server starts.
func TestRun_RejectsUnknownMode(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeSettings(t)

	err := Run(context.Background(), &Options{ConfigPath: cfgPath, Mode: "dance", AllowMultiple: true})
	require.ErrorIs(t, err, errUnknownMode)
}
