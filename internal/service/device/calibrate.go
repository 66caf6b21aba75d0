package device

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/airmouse/internal/calibration"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
	repository "github.com/oshokin/airmouse/internal/repository/calibration"
)

// CalibrationOptions controls a one-shot offline calibration.
type CalibrationOptions struct {
	ConfigPath string
	ReplayFile string
	// Tilt measures the pitch and roll zero instead of the gyro offsets.
	Tilt bool
	// Output receives the protocol completion line.
	Output io.Writer
}

// RunCalibration calibrates the sensor without starting the daemon and
// persists the result to the configured calibration file.
func RunCalibration(ctx context.Context, opts *CalibrationOptions) error {
	ctx = logger.WithName(ctx, "calibrate")

	settings, err := loadSettings(&Options{ConfigPath: opts.ConfigPath, ReplayFile: opts.ReplayFile})
	if err != nil {
		return err
	}

	source, err := openSource(settings.Device)
	if err != nil {
		return err
	}

	if closer, ok := source.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	repo := repository.NewFileRepository(settings.Device.CalibrationFile)

	prev, err := repo.Load(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.WarnKV(ctx, "Ignoring unreadable calibration file", "error", err)
	}

	calibrator := calibration.New(source, settings.Detection.Calibration)

	last := -1
	progress := func(percent int) {
		if percent/10 != last/10 {
			logger.InfoKV(ctx, "Calibrating", "percent", percent)
		}

		last = percent
	}

	var offsets motion.Offsets
	if opts.Tilt {
		offsets, err = calibrator.CalibrateTilt(ctx, prev, progress)
	} else {
		offsets, err = calibrator.Calibrate(ctx, prev, progress)
	}

	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	if err = repo.Save(ctx, offsets); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}

	logger.InfoKV(ctx, "Calibration saved", "path", settings.Device.CalibrationFile)

	if opts.Output == nil {
		return nil
	}

	msg := protocol.Message{Kind: protocol.KindCalibrationComplete, Offsets: offsets}
	if opts.Tilt {
		msg.Kind = protocol.KindTiltCalibrationComplete
	}

	_, err = fmt.Fprintln(opts.Output, msg.String())

	return err
}
