package control

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/airmouse/internal/domain/motion"
	"github.com/oshokin/airmouse/internal/engine"
	"github.com/oshokin/airmouse/internal/protocol"
	"github.com/oshokin/airmouse/internal/sink"
)

var errNoStable = errors.New("no stable samples collected")

// fakeService implements Service for unit testing the transport.
type fakeService struct {
	status engine.Status
	broker *sink.Broker

	calibrateErr error
}

func (f *fakeService) SetMode(_ context.Context, mode motion.Mode) (engine.Reply, error) {
	f.status.Mode = mode

	return engine.Reply{
		Messages: []protocol.Message{protocol.ModeMessage(mode)},
		Status:   f.status,
	}, nil
}

func (f *fakeService) Calibrate(_ context.Context, tilt bool) (engine.Reply, error) {
	if f.calibrateErr != nil {
		return engine.Reply{Status: f.status, Err: f.calibrateErr}, nil
	}

	done := protocol.Message{Kind: protocol.KindCalibrationComplete, Offsets: motion.Offsets{GxOffset: 12}}
	if tilt {
		done.Kind = protocol.KindTiltCalibrationComplete
	}

	f.status.Offsets.GxOffset = 12

	return engine.Reply{
		Messages: []protocol.Message{{Kind: protocol.KindCalibrationStart}, done},
		Status:   f.status,
	}, nil
}

func (f *fakeService) Status(context.Context) engine.Status { return f.status }

func (f *fakeService) Subscribe() (<-chan protocol.Message, func()) { return f.broker.Subscribe() }

func startServer(t *testing.T, service Service) *ControlClient {
	t.Helper()

	listener := bufconn.Listen(1 << 16)
	server := grpc.NewServer()
	RegisterControlServer(server, NewServer(service))

	go func() { _ = server.Serve(listener) }()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return NewControlClient(conn)
}

// TestSetMode_Roundtrip switches mode over the wire.
func TestSetMode_Roundtrip(t *testing.T) {
	t.Parallel()

	client := startServer(t, &fakeService{broker: sink.NewBroker(4)})
	ctx := context.Background()

	resp, err := client.SetMode(ctx, wrapperspb.String("gesture"))
	require.NoError(t, err)
	require.Equal(t, "gesture", resp.GetFields()["mode"].GetStringValue())

	lines := resp.GetFields()["lines"].GetListValue().GetValues()
	require.Len(t, lines, 1)
	require.Equal(t, "MODE_GESTURE", lines[0].GetStringValue())

	_, err = client.SetMode(ctx, wrapperspb.String("turbo"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestCalibrate_Kinds validates the kind and reports failures.
func TestCalibrate_Kinds(t *testing.T) {
	t.Parallel()

	service := &fakeService{broker: sink.NewBroker(4)}
	client := startServer(t, service)
	ctx := context.Background()

	resp, err := client.Calibrate(ctx, wrapperspb.String(""))
	require.NoError(t, err)

	offsets := resp.GetFields()["offsets"].GetStructValue().GetFields()
	require.InDelta(t, 12.0, offsets["gx"].GetNumberValue(), 1e-9)

	resp, err = client.Calibrate(ctx, wrapperspb.String(CalibrationTilt))
	require.NoError(t, err)

	lines := resp.GetFields()["lines"].GetListValue().GetValues()
	require.Equal(t, "TILT_CALIBRATION_COMPLETE,0.00,0.00", lines[1].GetStringValue())

	_, err = client.Calibrate(ctx, wrapperspb.String("magnetometer"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	service.calibrateErr = errNoStable
	_, err = client.Calibrate(ctx, wrapperspb.String(CalibrationGyro))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

// TestGetStatus encodes the snapshot.
func TestGetStatus(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service := &fakeService{
		broker: sink.NewBroker(4),
		status: engine.Status{
			Mode:          motion.ModeCursor,
			Ticks:         42,
			SensorErrors:  3,
			LastGesture:   motion.GestureShake,
			LastGestureAt: at,
		},
	}
	client := startServer(t, service)

	resp, err := client.GetStatus(context.Background(), new(emptypb.Empty))
	require.NoError(t, err)

	fields := resp.GetFields()
	require.Equal(t, "cursor", fields["mode"].GetStringValue())
	require.InDelta(t, 42.0, fields["ticks"].GetNumberValue(), 1e-9)
	require.InDelta(t, 3.0, fields["sensor_errors"].GetNumberValue(), 1e-9)
	require.Equal(t, "SHAKE", fields["last_gesture"].GetStringValue())
	require.Equal(t, "2026-03-01T12:00:00Z", fields["last_gesture_at"].GetStringValue())
	require.NotContains(t, fields, "lines")
}

// TestWatch_StreamsLines forwards broker messages to the stream.
func TestWatch_StreamsLines(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	broker := sink.NewBroker(4)
	client := startServer(t, &fakeService{broker: broker})

	stream, err := client.Watch(ctx, new(emptypb.Empty))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, broker.Publish(ctx, protocol.GestureMessage(motion.GestureLeft)))

	line, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, "GESTURE,LEFT", line.GetValue())

	cancel()

	require.Eventually(t, func() bool { return broker.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
