// Package statuspb defines the wire contract for the read-only status
// introspection service: a unary GetStatus snapshot and a streaming
// StreamCounters feed, both carrying the status dictionary as a
// google.protobuf.Struct rather than a purpose-built message, since the
// dictionary's keys are dynamic (hashpipe-status-buffer style) rather
// than a fixed schema.
//
// This package is hand-written rather than protoc-generated: the service
// has exactly two RPCs and both messages are well-known protobuf types,
// so there is no .proto-specific message schema to generate.
package statuspb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName              = "statuspb.StatusService"
	getStatusMethodName      = "/" + serviceName + "/GetStatus"
	streamCountersMethodName = "/" + serviceName + "/StreamCounters"
)

// StatusServiceClient is the client API for StatusService.
type StatusServiceClient interface {
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamCounters(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type statusServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatusServiceClient returns a client bound to cc.
func NewStatusServiceClient(cc grpc.ClientConnInterface) StatusServiceClient {
	return &statusServiceClient{cc: cc}
}

func (c *statusServiceClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatusMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statusServiceClient) StreamCounters(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &StatusService_ServiceDesc.Streams[0], streamCountersMethodName, opts...)
	if err != nil {
		return nil, err
	}
	clientStream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := clientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := clientStream.CloseSend(); err != nil {
		return nil, err
	}
	return clientStream, nil
}

// StatusServiceServer is the server API for StatusService. Implementations
// must embed UnimplementedStatusServiceServer for forward compatibility.
type StatusServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StreamCounters(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
	mustEmbedUnimplementedStatusServiceServer()
}

// UnimplementedStatusServiceServer must be embedded by value to have
// forward-compatible implementations.
type UnimplementedStatusServiceServer struct{}

func (UnimplementedStatusServiceServer) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, grpcstatus.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}

func (UnimplementedStatusServiceServer) StreamCounters(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error {
	return grpcstatus.Errorf(codes.Unimplemented, "method StreamCounters not implemented")
}

func (UnimplementedStatusServiceServer) mustEmbedUnimplementedStatusServiceServer() {}

// RegisterStatusServiceServer registers srv with s.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv StatusServiceServer) {
	s.RegisterService(&StatusService_ServiceDesc, srv)
}

func _StatusService_GetStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _StatusService_StreamCounters_Handler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StatusServiceServer).StreamCounters(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// StatusService_ServiceDesc is the grpc.ServiceDesc for StatusService.
var StatusService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    _StatusService_GetStatus_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamCounters",
			Handler:       _StatusService_StreamCounters_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "status.proto",
}
