package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "airmouse.v1.ControlService"

// Full method names.
const (
	FullMethodSetMode   = "/" + ServiceName + "/SetMode"
	FullMethodCalibrate = "/" + ServiceName + "/Calibrate"
	FullMethodGetStatus = "/" + ServiceName + "/GetStatus"
	FullMethodWatch     = "/" + ServiceName + "/Watch"
)

// ControlServer is the server API of the control service.
type ControlServer interface {
	SetMode(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Calibrate(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	Watch(req *emptypb.Empty, stream grpc.ServerStreamingServer[wrapperspb.StringValue]) error
}

// ControlServiceDesc describes the control service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetMode", Handler: setModeHandler},
		{MethodName: "Calibrate", Handler: calibrateHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "airmouse/v1/control.proto",
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&ControlServiceDesc, srv)
}

func setModeHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControlServer).SetMode(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodSetMode}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).SetMode(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func calibrateHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControlServer).Calibrate(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodCalibrate}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).Calibrate(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(ControlServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(ControlServer).Watch(in, &grpc.GenericServerStream[emptypb.Empty, wrapperspb.StringValue]{
		ServerStream: stream,
	})
}

// ControlClient is the client API of the control service.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

// NewControlClient creates a client on top of an established connection.
func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// SetMode switches the engine mode ("idle", "cursor" or "gesture").
func (c *ControlClient) SetMode(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodSetMode, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Calibrate runs a gyro ("gyro" or empty) or tilt ("tilt") calibration.
func (c *ControlClient) Calibrate(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodCalibrate, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetStatus returns the latest engine status snapshot.
func (c *ControlClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethodGetStatus, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Watch streams every protocol line published by the device.
func (c *ControlClient) Watch(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[wrapperspb.StringValue], error) {
	stream, err := c.cc.NewStream(ctx, &ControlServiceDesc.Streams[0], FullMethodWatch, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, wrapperspb.StringValue]{ClientStream: stream}
	if err = x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}

	if err = x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
