package device

import (
	"context"

	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/protocol"
	"github.com/oshokin/airmouse/internal/sink"
)

// service adapts the controller queue to the control API.
type service struct {
	requests   chan<- engine.Request
	controller *engine.Controller
	broker     *sink.Broker
}

// SetMode enqueues a mode command and waits for its acknowledgement.
func (s *service) SetMode(ctx context.Context, mode motion.Mode) (engine.Reply, error) {
	return engine.Submit(ctx, s.requests, modeCommand(mode))
}

// Calibrate enqueues a calibration and waits until it completes.
func (s *service) Calibrate(ctx context.Context, tilt bool) (engine.Reply, error) {
	cmd := protocol.CommandCalibrate
	if tilt {
		cmd = protocol.CommandCalibrateTilt
	}

	return engine.Submit(ctx, s.requests, cmd)
}

// Status returns the latest snapshot without touching the loop.
func (s *service) Status(context.Context) engine.Status {
	return s.controller.Status()
}

// Subscribe follows every published line.
func (s *service) Subscribe() (<-chan protocol.Message, func()) {
	return s.broker.Subscribe()
}
