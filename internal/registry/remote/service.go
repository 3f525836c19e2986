package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// serviceName is the gRPC service path for the remote plugin transport.
// There's no .proto file behind this service: the request/response shape
// is a single compressed byte blob (wrapperspb.BytesValue, a stock
// generated protobuf message), so the method table below is written by
// hand the same way protoc-gen-go-grpc would emit it for that shape.
const serviceName = "histreamer.registry.remote.RemotePlugin"
const negotiateMethod = serviceName + "/Negotiate"

// Server is implemented by whatever hosts plugins on the remote side of
// the transport.
type Server interface {
	// Negotiate receives a plugin name (via context metadata, see
	// ContextWithPluginName) and a compressed codec-config payload, and
	// returns the remote plugin's compressed negotiated response.
	Negotiate(ctx context.Context, payload *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

func negotiateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Negotiate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: negotiateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Negotiate(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Negotiate", Handler: negotiateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/registry/remote/service.go",
}

// RegisterServer attaches srv to s under the remote plugin service name.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

// Client calls the remote plugin service.
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection.
func NewClient(cc *grpc.ClientConn) *Client { return &Client{cc: cc} }

// Negotiate sends a compressed codec-config payload to the remote side
// and returns its compressed response.
func (c *Client) Negotiate(ctx context.Context, payload *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, negotiateMethod, payload, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
