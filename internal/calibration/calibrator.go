package calibration

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/sensor"
)

// ErrNoStableSamples is returned when every sample was rejected; previous
// offsets stay in effect.
var ErrNoStableSamples = errors.New("no stable samples collected")

// Sleeper waits between samples. It must return early when ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Progress receives the completion percentage after each sample, 1..100.
type Progress func(percent int)

// Calibrator collects sample batches from a Source.
type Calibrator struct {
	source sensor.Source
	cfg    config.Calibration
	sleep  Sleeper
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithSleeper replaces the inter-sample delay implementation.
func WithSleeper(sleep Sleeper) Option {
	return func(c *Calibrator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a calibrator.
func New(source sensor.Source, cfg config.Calibration, opts ...Option) *Calibrator {
	c := &Calibrator{
		source: source,
		cfg:    cfg,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// batch accumulates the stable samples of one run.
type batch struct {
	count             int64
	gx, gy, gz        int64
	accelMag, gyroMag float64
	pitchSum, rollSum float64
}

// Calibrate measures gyro bias and resting magnitudes. The tilt zero pose of
// prev is preserved. On failure prev is returned unchanged.
func (c *Calibrator) Calibrate(ctx context.Context, prev motion.Offsets, progress Progress) (motion.Offsets, error) {
	b, err := c.collect(ctx, progress)
	if err != nil {
		return prev, err
	}

	next := prev
	next.GxOffset = int32(b.gx / b.count)
	next.GyOffset = int32(b.gy / b.count)
	next.GzOffset = int32(b.gz / b.count)
	next.RestingAccelMag = b.accelMag / float64(b.count)
	next.RestingGyroMag = b.gyroMag / float64(b.count)

	logger.InfoKV(ctx, "Calibration complete",
		"samples", b.count,
		"gx_offset", next.GxOffset,
		"gy_offset", next.GyOffset,
		"gz_offset", next.GzOffset)

	return next, nil
}

// CalibrateTilt records the current accelerometer pitch and roll as the
// neutral pose of the tilt cursor. Gyro offsets of prev are preserved.
func (c *Calibrator) CalibrateTilt(ctx context.Context, prev motion.Offsets, progress Progress) (motion.Offsets, error) {
	b, err := c.collect(ctx, progress)
	if err != nil {
		return prev, err
	}

	next := prev
	next.TiltPitchZero = b.pitchSum / float64(b.count)
	next.TiltRollZero = b.rollSum / float64(b.count)

	logger.InfoKV(ctx, "Tilt calibration complete",
		"samples", b.count,
		"pitch_zero", next.TiltPitchZero,
		"roll_zero", next.TiltRollZero)

	return next, nil
}

func (c *Calibrator) collect(ctx context.Context, progress Progress) (*batch, error) {
	var (
		b     batch
		total = c.cfg.SampleCount
	)

	for i := range total {
		raw, err := c.source.Read(ctx)

		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			logger.DebugKV(ctx, "Calibration sample rejected", "error", err)
		case !c.stable(raw):
			logger.DebugKV(ctx, "Calibration sample unstable", "sample", i)
		default:
			b.add(raw)
		}

		if progress != nil {
			progress((i + 1) * 100 / total)
		}

		if i+1 < total {
			if err = c.sleep(ctx, c.cfg.SampleDelay); err != nil {
				return nil, err
			}
		}
	}

	if b.count == 0 {
		return nil, ErrNoStableSamples
	}

	return &b, nil
}

func (c *Calibrator) stable(raw motion.RawSample) bool {
	if c.cfg.StabilityThreshold <= 0 {
		return true
	}

	return motion.Magnitude(raw.Gx, raw.Gy, raw.Gz) <= c.cfg.StabilityThreshold
}

func (b *batch) add(raw motion.RawSample) {
	pitch, roll := motion.TiltAngles(raw)

	b.count++
	b.gx += int64(raw.Gx)
	b.gy += int64(raw.Gy)
	b.gz += int64(raw.Gz)
	b.accelMag += motion.Magnitude(raw.Ax, raw.Ay, raw.Az)
	b.gyroMag += motion.Magnitude(raw.Gx, raw.Gy, raw.Gz)
	b.pitchSum += pitch
	b.rollSum += roll
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
