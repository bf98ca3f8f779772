package chat_service_api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "airbot.chat.v1.ChatService"

const (
	ProcessMessageMethod = "/" + serviceName + "/ProcessMessage"
	RecordFeedbackMethod = "/" + serviceName + "/RecordFeedback"
)

// ChatServiceServer carries requests and replies as structpb.Struct so the
// service needs no generated message types.
type ChatServiceServer interface {
	ProcessMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RecordFeedback(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessMessage", Handler: processMessageHandler},
		{MethodName: "RecordFeedback", Handler: recordFeedbackHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func Register(r grpc.ServiceRegistrar, srv ChatServiceServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func processMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).ProcessMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).ProcessMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func recordFeedbackHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServiceServer).RecordFeedback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RecordFeedbackMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChatServiceServer).RecordFeedback(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls a ChatService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ProcessMessage(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ProcessMessageMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordFeedback(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, RecordFeedbackMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
