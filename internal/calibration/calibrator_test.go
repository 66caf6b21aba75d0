package calibration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/sensor"
)

var errBus = errors.New("bus glitch")

// scriptedSource returns samples in order, cycling when the script ends.
type scriptedSource struct {
	mu      sync.Mutex
	samples []motion.RawSample
	errs    map[int]error
	calls   int
}

func (s *scriptedSource) Read(_ context.Context) (motion.RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.calls
	s.calls++

	if err, ok := s.errs[i]; ok {
		return motion.RawSample{}, err
	}

	return s.samples[i%len(s.samples)], nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func testConfig(samples int) config.Calibration {
	return config.Calibration{
		SampleCount:        samples,
		SampleDelay:        10 * time.Millisecond,
		StabilityThreshold: 3000,
	}
}

// TestCalibrate_Idempotent computes identical offsets from identical batches.
func TestCalibrate_Idempotent(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{samples: []motion.RawSample{{Az: 16384, Gx: 50, Gy: -30, Gz: 10}}}
	sleeper := &recordingSleeper{}
	c := New(source, testConfig(100), WithSleeper(sleeper.sleep))

	first, err := c.Calibrate(context.Background(), motion.Offsets{}, nil)
	require.NoError(t, err)

	second, err := c.Calibrate(context.Background(), first, nil)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, int32(50), first.GxOffset)
	require.Equal(t, int32(-30), first.GyOffset)
	require.Equal(t, int32(10), first.GzOffset)
	require.InDelta(t, 16384.0, first.RestingAccelMag, 1e-9)

	// One delay between consecutive samples.
	require.Len(t, sleeper.delays, 2*99)
	require.Equal(t, 10*time.Millisecond, sleeper.delays[0])
}

// TestCalibrate_Truncates uses integer division toward zero for offsets.
func TestCalibrate_Truncates(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{samples: []motion.RawSample{
		{Gx: 1, Gy: -1},
		{Gx: 2, Gy: -2},
	}}
	c := New(source, testConfig(2), WithSleeper((&recordingSleeper{}).sleep))

	offsets, err := c.Calibrate(context.Background(), motion.Offsets{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(1), offsets.GxOffset)
	require.Equal(t, int32(-1), offsets.GyOffset)
}

// TestCalibrate_NoStableSamples leaves the previous offsets untouched.
func TestCalibrate_NoStableSamples(t *testing.T) {
	t.Parallel()

	prev := motion.Offsets{GxOffset: 7, GyOffset: 8, GzOffset: 9, TiltRollZero: 3}
	source := &scriptedSource{samples: []motion.RawSample{{Gx: 20000}}}
	c := New(source, testConfig(10), WithSleeper((&recordingSleeper{}).sleep))

	got, err := c.Calibrate(context.Background(), prev, nil)
	require.ErrorIs(t, err, ErrNoStableSamples)
	require.Equal(t, prev, got)
}

// TestCalibrate_RejectsUnstableAndFailedReads averages only accepted samples.
func TestCalibrate_RejectsUnstableAndFailedReads(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		samples: []motion.RawSample{
			{Gx: 100},
			{Gx: 9000},
			{Gx: 300},
			{Gx: 999},
		},
		errs: map[int]error{3: errBus},
	}
	c := New(source, testConfig(4), WithSleeper((&recordingSleeper{}).sleep))

	offsets, err := c.Calibrate(context.Background(), motion.Offsets{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(200), offsets.GxOffset)
}

// TestCalibrate_StabilityDisabled accepts every sample when the threshold is zero.
func TestCalibrate_StabilityDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(2)
	cfg.StabilityThreshold = 0

	source := &scriptedSource{samples: []motion.RawSample{{Gx: 20000}, {Gx: 10000}}}
	c := New(source, cfg, WithSleeper((&recordingSleeper{}).sleep))

	offsets, err := c.Calibrate(context.Background(), motion.Offsets{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(15000), offsets.GxOffset)
}

// TestCalibrate_Progress reports a monotonic percentage ending at 100.
func TestCalibrate_Progress(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{samples: []motion.RawSample{{}}}
	c := New(source, testConfig(4), WithSleeper((&recordingSleeper{}).sleep))

	var reported []int

	_, err := c.Calibrate(context.Background(), motion.Offsets{}, func(p int) {
		reported = append(reported, p)
	})
	require.NoError(t, err)
	require.Equal(t, []int{25, 50, 75, 100}, reported)
}

// TestCalibrate_Canceled stops when the context is canceled between samples.
func TestCalibrate_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	prev := motion.Offsets{GxOffset: 42}

	source := &scriptedSource{samples: []motion.RawSample{{}}}
	c := New(source, testConfig(10), WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	got, err := c.Calibrate(ctx, prev, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, prev, got)
}

// TestCalibrateTilt records the neutral pose and keeps gyro offsets.
func TestCalibrateTilt(t *testing.T) {
	t.Parallel()

	prev := motion.Offsets{GxOffset: 5}
	source := &scriptedSource{samples: []motion.RawSample{{Ay: 16384}}}
	c := New(source, testConfig(5), WithSleeper((&recordingSleeper{}).sleep))

	got, err := c.CalibrateTilt(context.Background(), prev, nil)
	require.NoError(t, err)
	require.Equal(t, int32(5), got.GxOffset)
	require.InDelta(t, 90.0, got.TiltRollZero, 1e-9)
	require.InDelta(t, 0.0, got.TiltPitchZero, 1e-9)
}

// TestCalibrate_WithReplaySource runs against the scripted sensor.
func TestCalibrate_WithReplaySource(t *testing.T) {
	t.Parallel()

	replay := sensor.NewReplay(sensor.ReplayScript{Loop: true, Steps: []sensor.ReplayStep{
		{Az: 16384, Gx: -40, Gy: 12, Gz: 3},
	}})
	c := New(replay, testConfig(20), WithSleeper((&recordingSleeper{}).sleep))

	got, err := c.Calibrate(context.Background(), motion.Offsets{}, nil)
	require.NoError(t, err)
	require.Equal(t, int32(-40), got.GxOffset)
	require.Equal(t, int32(12), got.GyOffset)
	require.Equal(t, int32(3), got.GzOffset)
	require.InDelta(t, 16384.0, got.RestingAccelMag, 1e-9)
	require.InDelta(t, motion.Magnitude(-40, 12, 3), got.RestingGyroMag, 1e-9)
}
