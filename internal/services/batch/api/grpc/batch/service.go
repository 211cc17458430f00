package batch

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name, also used for health.
const ServiceName = "batch.v1.BatchMessagingService"

// Full method names.
const (
	PostMessageMethod    = "/" + ServiceName + "/PostMessage"
	ProcessMessageMethod = "/" + ServiceName + "/ProcessMessage"
	GetStateMethod       = "/" + ServiceName + "/GetState"
	ListActionsMethod    = "/" + ServiceName + "/ListActions"
)

// BatchMessagingServer is the server API for the batch messaging service.
type BatchMessagingServer interface {
	PostMessage(context.Context, *PostMessageRequest) (*PostMessageResponse, error)
	ProcessMessage(context.Context, *ProcessMessageRequest) (*ProcessMessageResponse, error)
	GetState(context.Context, *GetStateRequest) (*GetStateResponse, error)
	ListActions(context.Context, *ListActionsRequest) (*ListActionsResponse, error)
}

// RegisterServer registers srv on a gRPC server.
func RegisterServer(s grpc.ServiceRegistrar, srv BatchMessagingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the batch messaging service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BatchMessagingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PostMessage", Handler: postMessageHandler},
		{MethodName: "ProcessMessage", Handler: processMessageHandler},
		{MethodName: "GetState", Handler: getStateHandler},
		{MethodName: "ListActions", Handler: listActionsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "batch/v1/batch.cbor",
}

func postMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PostMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BatchMessagingServer).PostMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PostMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BatchMessagingServer).PostMessage(ctx, req.(*PostMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func processMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProcessMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BatchMessagingServer).ProcessMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BatchMessagingServer).ProcessMessage(ctx, req.(*ProcessMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getStateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BatchMessagingServer).GetState(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BatchMessagingServer).GetState(ctx, req.(*GetStateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listActionsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListActionsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BatchMessagingServer).ListActions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListActionsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BatchMessagingServer).ListActions(ctx, req.(*ListActionsRequest))
	}
	return interceptor(ctx, in, info, handler)
}
