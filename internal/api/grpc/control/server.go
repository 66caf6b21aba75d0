package control

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/logger"
	"github.com/oshokin/airmouse/internal/protocol"
)

// Calibration kinds accepted by Calibrate.
const (
	CalibrationGyro = "gyro"
	CalibrationTilt = "tilt"
)

// Service abstracts the device operations the transport layer depends on.
type Service interface {
	SetMode(ctx context.Context, mode motion.Mode) (engine.Reply, error)
	Calibrate(ctx context.Context, tilt bool) (engine.Reply, error)
	Status(ctx context.Context) engine.Status
	Subscribe() (<-chan protocol.Message, func())
}

// Server implements ControlServer.
type Server struct {
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{service: service}
}

// SetMode switches the engine mode.
func (s *Server) SetMode(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	mode, ok := motion.ParseMode(req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown mode %q", req.GetValue())
	}

	reply, err := s.service.SetMode(ctx, mode)
	if err != nil {
		return nil, contextStatus(err)
	}

	return encodeReply(reply)
}

// Calibrate runs a calibration batch and returns the resulting status.
func (s *Server) Calibrate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	var tilt bool

	switch req.GetValue() {
	case "", CalibrationGyro:
	case CalibrationTilt:
		tilt = true
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown calibration kind %q", req.GetValue())
	}

	reply, err := s.service.Calibrate(ctx, tilt)
	if err != nil {
		return nil, contextStatus(err)
	}

	if reply.Err != nil {
		return nil, status.Error(codes.FailedPrecondition, reply.Err.Error())
	}

	return encodeReply(reply)
}

// GetStatus returns the latest status snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encodeStatus(s.service.Status(ctx), nil)
}

// Watch streams published lines until the client goes away.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[wrapperspb.StringValue]) error {
	ctx := logger.WithName(stream.Context(), "watch")

	messages, cancel := s.service.Subscribe()
	defer cancel()

	logger.Debug(ctx, "Watch stream opened")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			if err := stream.Send(wrapperspb.String(msg.String())); err != nil {
				return err
			}
		}
	}
}

func contextStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

func encodeReply(reply engine.Reply) (*structpb.Struct, error) {
	lines := make([]string, 0, len(reply.Messages))
	for _, m := range reply.Messages {
		lines = append(lines, m.String())
	}

	return encodeStatus(reply.Status, lines)
}

// encodeStatus converts a status snapshot into a Struct. Counters become
// JSON numbers, times RFC 3339 strings.
func encodeStatus(st engine.Status, lines []string) (*structpb.Struct, error) {
	fields := map[string]any{
		"mode":          st.Mode.String(),
		"calibrating":   st.Calibrating,
		"ticks":         float64(st.Ticks),
		"gestures":      float64(st.Gestures),
		"suppressed":    float64(st.Suppressed),
		"sensor_errors": float64(st.SensorErrors),
		"offsets": map[string]any{
			"gx":                float64(st.Offsets.GxOffset),
			"gy":                float64(st.Offsets.GyOffset),
			"gz":                float64(st.Offsets.GzOffset),
			"resting_accel_mag": st.Offsets.RestingAccelMag,
			"resting_gyro_mag":  st.Offsets.RestingGyroMag,
			"tilt_pitch_zero":   st.Offsets.TiltPitchZero,
			"tilt_roll_zero":    st.Offsets.TiltRollZero,
		},
	}

	if st.LastGesture != motion.GestureNone {
		fields["last_gesture"] = st.LastGesture.String()
		fields["last_gesture_at"] = st.LastGestureAt.UTC().Format(time.RFC3339Nano)
	}

	if !st.UpdatedAt.IsZero() {
		fields["updated_at"] = st.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	if lines != nil {
		list := make([]any, 0, len(lines))
		for _, l := range lines {
			list = append(list, l)
		}

		fields["lines"] = list
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}

	return result, nil
}
