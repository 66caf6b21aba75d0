package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oshokin/airmouse/internal/calibration"
	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
	"github.com/oshokin/airmouse/internal/sensor"
)

// Sink receives every outbound message.
type Sink interface {
	Publish(ctx context.Context, msg protocol.Message) error
}

// OffsetsStore persists calibration results.
type OffsetsStore interface {
	Save(ctx context.Context, offsets motion.Offsets) error
}

// Request is a command enqueued by a transport. Reply, when set, receives
// exactly one Reply and must be buffered.
type Request struct {
	Command protocol.Command
	Reply   chan<- Reply
}

// Reply is the outcome of a handled command.
type Reply struct {
	Messages []protocol.Message
	Status   Status
	Err      error
}

// Status is an immutable snapshot published after every tick and command.
type Status struct {
	Mode          motion.Mode
	Offsets       motion.Offsets
	Calibrating   bool
	Ticks         uint64
	Gestures      uint64
	Suppressed    uint64
	SensorErrors  uint64
	LastGesture   motion.Gesture
	LastGestureAt time.Time
	UpdatedAt     time.Time
}

// Controller owns the Engine and serializes ticks and commands.
type Controller struct {
	engine     *Engine
	source     sensor.Source
	calibrator *calibration.Calibrator
	sink       Sink
	store      OffsetsStore

	interval time.Duration
	now      func() time.Time

	sensorErrors uint64
	calibrating  bool
	status       atomic.Pointer[Status]
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithStore persists offsets after every successful calibration.
func WithStore(store OffsetsStore) ControllerOption {
	return func(c *Controller) {
		c.store = store
	}
}

// WithInterval sets the tick period.
func WithInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock replaces time.Now for tick timestamps.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController wires the engine to its collaborators.
func NewController(
	engine *Engine,
	source sensor.Source,
	calibrator *calibration.Calibrator,
	sink Sink,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		engine:     engine,
		source:     source,
		calibrator: calibrator,
		sink:       sink,
		interval:   20 * time.Millisecond,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.publishStatus()

	return c
}

// Status returns the latest published snapshot. Safe for concurrent use.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Run ticks until ctx is done, handling queued requests between ticks.
func (c *Controller) Run(ctx context.Context, requests <-chan Request) error {
	ctx = logger.WithName(ctx, "controller")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Controller started", "interval", c.interval, "mode", c.engine.Mode())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Controller stopped")
			return nil
		case req := <-requests:
			messages, err := c.Handle(ctx, req.Command)
			if req.Reply != nil {
				req.Reply <- Reply{Messages: messages, Status: c.Status(), Err: err}
			}
		case <-ticker.C:
			c.Poll(ctx)
		}
	}
}

// Poll reads one sample and runs one classification pass.
// A failed read skips the tick.
func (c *Controller) Poll(ctx context.Context) {
	raw, err := c.source.Read(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.sensorErrors++
			logger.DebugKV(ctx, "Sensor read skipped", "error", err)
		}

		return
	}

	msg, ok := c.engine.Tick(raw, c.now())
	if ok {
		if msg.Kind == protocol.KindGesture {
			logger.InfoKV(ctx, "Gesture detected", "gesture", msg.Gesture)
		}

		c.publish(ctx, msg)
	}

	c.publishStatus()
}

// Handle executes one command and returns the lines it produced. Every line
// is also published to the sink.
func (c *Controller) Handle(ctx context.Context, cmd protocol.Command) ([]protocol.Message, error) {
	ctx = logger.WithKV(ctx, "command", cmd)

	var (
		messages []protocol.Message
		err      error
	)

	switch cmd {
	case protocol.CommandCursorMode:
		messages = c.switchMode(ctx, motion.ModeCursor)
	case protocol.CommandGestureMode:
		messages = c.switchMode(ctx, motion.ModeGesture)
	case protocol.CommandIdleMode:
		messages = c.switchMode(ctx, motion.ModeIdle)
	case protocol.CommandInitCheck:
		messages = c.reply(ctx, protocol.Message{Kind: protocol.KindInitComplete})
	case protocol.CommandCalibrate:
		messages, err = c.calibrate(ctx, false)
	case protocol.CommandCalibrateTilt:
		messages, err = c.calibrate(ctx, true)
	default:
		logger.DebugKV(ctx, "Ignoring unknown command")
	}

	c.publishStatus()

	return messages, err
}

func (c *Controller) switchMode(ctx context.Context, m motion.Mode) []protocol.Message {
	if prev := c.engine.Mode(); prev != m {
		logger.InfoKV(ctx, "Mode changed", "from", prev, "to", m)
	}

	c.engine.SetMode(m)

	return c.reply(ctx, protocol.ModeMessage(m))
}

// calibrate blocks the loop for the duration of the batch.
func (c *Controller) calibrate(ctx context.Context, tilt bool) ([]protocol.Message, error) {
	c.calibrating = true
	c.publishStatus()

	defer func() { c.calibrating = false }()

	messages := c.reply(ctx, protocol.Message{Kind: protocol.KindCalibrationStart})
	lastPercent := 0

	progress := func(percent int) {
		if percent == lastPercent {
			return
		}

		lastPercent = percent
		messages = append(messages,
			c.reply(ctx, protocol.Message{Kind: protocol.KindCalibrationProgress, Percent: percent})...)
	}

	run := c.calibrator.Calibrate
	if tilt {
		run = c.calibrator.CalibrateTilt
	}

	offsets, err := run(ctx, c.engine.Offsets(), progress)
	if err != nil {
		logger.WarnKV(ctx, "Calibration failed", "error", err)
		messages = append(messages, c.reply(ctx, protocol.Message{Kind: protocol.KindCalibrationFailed})...)

		return messages, fmt.Errorf("calibrate: %w", err)
	}

	c.engine.SetOffsets(offsets)

	if c.store != nil {
		if saveErr := c.store.Save(ctx, offsets); saveErr != nil {
			logger.WarnKV(ctx, "Failed to persist calibration", "error", saveErr)
		}
	}

	done := protocol.Message{Kind: protocol.KindCalibrationComplete, Offsets: offsets}
	if tilt {
		done.Kind = protocol.KindTiltCalibrationComplete
	}

	return append(messages, c.reply(ctx, done)...), nil
}

// reply publishes msg and returns it as a one-element slice.
func (c *Controller) reply(ctx context.Context, msg protocol.Message) []protocol.Message {
	c.publish(ctx, msg)

	return []protocol.Message{msg}
}

func (c *Controller) publish(ctx context.Context, msg protocol.Message) {
	if c.sink == nil {
		return
	}

	if err := c.sink.Publish(ctx, msg); err != nil {
		logger.WarnKV(ctx, "Failed to publish message", "message", msg.String(), "error", err)
	}
}

func (c *Controller) publishStatus() {
	stats := c.engine.Stats()

	c.status.Store(&Status{
		Mode:          c.engine.Mode(),
		Offsets:       c.engine.Offsets(),
		Calibrating:   c.calibrating,
		Ticks:         stats.Ticks,
		Gestures:      stats.Gestures,
		Suppressed:    stats.Suppressed,
		SensorErrors:  c.sensorErrors,
		LastGesture:   stats.LastGesture,
		LastGestureAt: stats.LastGestureAt,
		UpdatedAt:     c.now(),
	})
}

// Submit enqueues cmd and waits for its reply.
func Submit(ctx context.Context, requests chan<- Request, cmd protocol.Command) (Reply, error) {
	replies := make(chan Reply, 1)

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case requests <- Request{Command: cmd, Reply: replies}:
	}

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case reply := <-replies:
		return reply, nil
	}
}

// Enqueue sends cmd without waiting for its outcome.
func Enqueue(ctx context.Context, requests chan<- Request, cmd protocol.Command) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case requests <- Request{Command: cmd}:
		return nil
	}
}
