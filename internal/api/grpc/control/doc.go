// Package control implements the gRPC control API of the device daemon.
//
// The service is described by a hand-written grpc.ServiceDesc whose messages
// are protobuf well-known types, so no generated stubs are required:
//
//	SetMode(StringValue) returns (Struct)
//	Calibrate(StringValue) returns (Struct)
//	GetStatus(Empty) returns (Struct)
//	Watch(Empty) returns (stream StringValue)
package control
