package plugin

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	hcplugin "github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const embedderService = "mnemo.plugin.Embedder"

// EmbedderGRPCPlugin implements hcplugin.GRPCPlugin so we can serve/consume an Embedder.
type EmbedderGRPCPlugin struct {
	hcplugin.NetRPCUnsupportedPlugin
	Impl Embedder
}

func (p *EmbedderGRPCPlugin) GRPCServer(broker *hcplugin.GRPCBroker, s *grpc.Server) error {
	RegisterEmbedderServer(s, p.Impl)
	return nil
}

func (p *EmbedderGRPCPlugin) GRPCClient(ctx context.Context, broker *hcplugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &EmbedderGRPCClient{conn: c}, nil
}

// embedderServer is the service contract. Texts travel as StringValue and
// vectors as little-endian float32 bytes.
type embedderServer interface {
	Embed(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Name(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

var embedderServiceDesc = grpc.ServiceDesc{
	ServiceName: embedderService,
	HandlerType: (*embedderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Embed", Handler: embedHandler},
		{MethodName: "Name", Handler: nameHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mnemo/plugin/embedder.proto",
}

// RegisterEmbedderServer serves impl on s.
func RegisterEmbedderServer(s grpc.ServiceRegistrar, impl Embedder) {
	s.RegisterService(&embedderServiceDesc, &EmbedderGRPCServer{Impl: impl})
}

func embedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(embedderServer).Embed(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + embedderService + "/Embed"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(embedderServer).Embed(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func nameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(embedderServer).Name(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + embedderService + "/Name"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(embedderServer).Name(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// EmbedderGRPCClient is an implementation of Embedder that talks over RPC.
type EmbedderGRPCClient struct {
	conn grpc.ClientConnInterface
}

func (c *EmbedderGRPCClient) Embed(ctx context.Context, text string) ([]float32, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, "/"+embedderService+"/Embed", wrapperspb.String(text), out); err != nil {
		return nil, err
	}
	return decodeVector(out.GetValue())
}

func (c *EmbedderGRPCClient) Name() string {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(context.Background(), "/"+embedderService+"/Name", &emptypb.Empty{}, out); err != nil {
		return "plugin"
	}
	return "plugin-" + out.GetValue()
}

// EmbedderGRPCServer is the gRPC server that calls the local implementation.
type EmbedderGRPCServer struct {
	Impl Embedder
}

func (s *EmbedderGRPCServer) Embed(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	vec, err := s.Impl.Embed(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	b, err := encodeVector(vec)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bytes(b), nil
}

func (s *EmbedderGRPCServer) Name(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.Impl.Name()), nil
}

func encodeVector(vec []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("failed to encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector payload of %d bytes is not a float32 sequence", len(b))
	}
	vec := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("failed to decode vector: %w", err)
	}
	return vec, nil
}
