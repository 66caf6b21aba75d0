package engine

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/airmouse/internal/calibration"
	"github.com/oshokin/airmouse/internal/config"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/protocol"
	"github.com/oshokin/airmouse/internal/sensor"
)

type memorySink struct {
	mu    sync.Mutex
	lines []string
}

func (s *memorySink) Publish(_ context.Context, msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = append(s.lines, msg.String())

	return nil
}

func (s *memorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.lines...)
}

type memoryStore struct {
	saved []motion.Offsets
}

func (s *memoryStore) Save(_ context.Context, o motion.Offsets) error {
	s.saved = append(s.saved, o)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestController(t *testing.T, steps []sensor.ReplayStep, opts ...ControllerOption) (*Controller, *memorySink) {
	t.Helper()

	cfg := config.Default()
	cfg.Detection.Calibration.SampleCount = 4

	e, err := New(cfg.Detection, cfg.Cursor)
	require.NoError(t, err)

	source := sensor.NewReplay(sensor.ReplayScript{Loop: true, Steps: steps})
	sink := &memorySink{}
	calibrator := calibration.New(source, cfg.Detection.Calibration, calibration.WithSleeper(noSleep))

	return NewController(e, source, calibrator, sink, opts...), sink
}

// TestHandle_UnknownCommandIsNoop leaves mode and output untouched.
func TestHandle_UnknownCommandIsNoop(t *testing.T) {
	t.Parallel()

	c, sink := newTestController(t, []sensor.ReplayStep{{Az: gravity}})
	ctx := context.Background()

	messages, err := c.Handle(ctx, protocol.CommandUnknown)
	require.NoError(t, err)
	require.Empty(t, messages)
	require.Empty(t, sink.Lines())
	require.Equal(t, motion.ModeIdle, c.Status().Mode)
}

// TestHandle_ModeAndInit acknowledges mode switches and the init check.
func TestHandle_ModeAndInit(t *testing.T) {
	t.Parallel()

	c, sink := newTestController(t, []sensor.ReplayStep{{Az: gravity, Gx: 300}})
	ctx := context.Background()

	_, err := c.Handle(ctx, protocol.CommandInitCheck)
	require.NoError(t, err)

	_, err = c.Handle(ctx, protocol.CommandCursorMode)
	require.NoError(t, err)
	require.Equal(t, motion.ModeCursor, c.Status().Mode)

	c.Poll(ctx)

	_, err = c.Handle(ctx, protocol.CommandIdleMode)
	require.NoError(t, err)

	c.Poll(ctx)

	require.Equal(t, []string{"INIT_COMPLETE", "MODE_CURSOR", "CURSOR,2.00,0.00", "MODE_IDLE"}, sink.Lines())
	require.Equal(t, uint64(2), c.Status().Ticks)
}

// TestPoll_SensorErrorSkipsTick produces nothing for a failed read.
func TestPoll_SensorErrorSkipsTick(t *testing.T) {
	t.Parallel()

	c, sink := newTestController(t, []sensor.ReplayStep{{Fail: true}, {Az: gravity}})
	ctx := context.Background()

	_, err := c.Handle(ctx, protocol.CommandCursorMode)
	require.NoError(t, err)

	c.Poll(ctx)
	c.Poll(ctx)

	require.Equal(t, []string{"MODE_CURSOR", "CURSOR,0.00,0.00"}, sink.Lines())
	require.Equal(t, uint64(1), c.Status().SensorErrors)
	require.Equal(t, uint64(1), c.Status().Ticks)
}

// TestHandle_Calibrate reports progress, applies and stores the offsets.
func TestHandle_Calibrate(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	c, sink := newTestController(t, []sensor.ReplayStep{{Az: gravity, Gx: 40, Gy: -8, Gz: 2}}, WithStore(store))

	messages, err := c.Handle(context.Background(), protocol.CommandCalibrate)
	require.NoError(t, err)

	want := []string{
		"CALIBRATION_START",
		"CALIBRATION_PROGRESS,25",
		"CALIBRATION_PROGRESS,50",
		"CALIBRATION_PROGRESS,75",
		"CALIBRATION_PROGRESS,100",
		"CALIBRATION_COMPLETE,40,-8,2",
	}
	require.Equal(t, want, sink.Lines())
	require.Len(t, messages, len(want))

	status := c.Status()
	require.False(t, status.Calibrating)
	require.Equal(t, int32(40), status.Offsets.GxOffset)
	require.Len(t, store.saved, 1)
}

// TestHandle_CalibrateFailureKeepsOffsets reports failure and keeps the old calibration.
func TestHandle_CalibrateFailureKeepsOffsets(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	c, sink := newTestController(t, []sensor.ReplayStep{{Az: gravity, Gx: 20000}}, WithStore(store))

	_, err := c.Handle(context.Background(), protocol.CommandCalibrate)
	require.ErrorIs(t, err, calibration.ErrNoStableSamples)

	lines := sink.Lines()
	require.Equal(t, "CALIBRATION_FAILED", lines[len(lines)-1])
	require.Equal(t, motion.Offsets{}, c.Status().Offsets)
	require.Empty(t, store.saved)
}

// TestHandle_CalibrateTilt records the tilt zero pose.
func TestHandle_CalibrateTilt(t *testing.T) {
	t.Parallel()

	c, sink := newTestController(t, []sensor.ReplayStep{{Ay: gravity}})

	_, err := c.Handle(context.Background(), protocol.CommandCalibrateTilt)
	require.NoError(t, err)

	lines := sink.Lines()
	require.Equal(t, "TILT_CALIBRATION_COMPLETE,0.00,90.00", lines[len(lines)-1])
}

// TestRun_ServesRequestsBetweenTicks drives the loop with a fake clock.
func TestRun_ServesRequestsBetweenTicks(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c, sink := newTestController(t, []sensor.ReplayStep{
			{Az: gravity, Repeat: 5},
			{Az: gravity, Gy: 12000},
		})

		ctx, cancel := context.WithCancel(context.Background())
		requests := make(chan Request)
		done := make(chan error, 1)

		go func() { done <- c.Run(ctx, requests) }()

		reply, err := Submit(ctx, requests, protocol.CommandGestureMode)
		require.NoError(t, err)
		require.NoError(t, reply.Err)
		require.Equal(t, motion.ModeGesture, reply.Status.Mode)
		require.Equal(t, []protocol.Message{protocol.ModeMessage(motion.ModeGesture)}, reply.Messages)

		// Six ticks: five neutral samples then one UP.
		time.Sleep(6*20*time.Millisecond + time.Millisecond)
		synctest.Wait()

		require.Equal(t, []string{"MODE_GESTURE", "GESTURE,UP"}, sink.Lines())
		require.Equal(t, motion.GestureUp, c.Status().LastGesture)

		require.NoError(t, Enqueue(ctx, requests, protocol.CommandIdleMode))
		synctest.Wait()
		require.Equal(t, motion.ModeIdle, c.Status().Mode)

		cancel()
		require.NoError(t, <-done)
	})
}
