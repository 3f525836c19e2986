package remote

import (
	"context"
	"fmt"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/jmylchreest/histreamer/internal/config"
)

const pluginNameMetadataKey = "histreamer-plugin-name"

// ContextWithPluginName attaches the target plugin name to an outgoing
// gRPC context.
func ContextWithPluginName(ctx context.Context, name string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, pluginNameMetadataKey, name)
}

// PluginNameFromContext recovers the plugin name a server handler was
// called for.
func PluginNameFromContext(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	vals := md.Get(pluginNameMetadataKey)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Transport is the client-side handle a remote-backed plugin uses to
// exchange codec-config bytes with a remote plugin host, compressing the
// payload per cfg.Compression (SPEC_FULL.md domain stack: brotli/xz/
// bzip2 shrinking MEDIA_CODEC_CONFIG blobs on the wire).
type Transport struct {
	client *Client
	comp   Compressor
}

// NewTransport builds a Transport over an already-dialed client
// connection, using cfg.Compression to pick the wire codec.
func NewTransport(client *Client, cfg config.RemotePluginConfig) (*Transport, error) {
	comp, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return &Transport{client: client, comp: comp}, nil
}

// Negotiate compresses localConfig, sends it to the remote plugin named
// pluginName, and decompresses the response.
func (t *Transport) Negotiate(ctx context.Context, pluginName string, localConfig []byte) ([]byte, error) {
	compressed, err := t.comp.Compress(localConfig)
	if err != nil {
		return nil, fmt.Errorf("remote.Transport.Negotiate: %w", err)
	}
	ctx = ContextWithPluginName(ctx, pluginName)
	resp, err := t.client.Negotiate(ctx, wrapperspb.Bytes(compressed))
	if err != nil {
		return nil, fmt.Errorf("remote.Transport.Negotiate: %w", err)
	}
	out, err := t.comp.Decompress(resp.GetValue())
	if err != nil {
		return nil, fmt.Errorf("remote.Transport.Negotiate: %w", err)
	}
	return out, nil
}

// PluginHost is the narrow surface a local plugin registry exposes to
// back a remote Server: given the plugin name a request named, return
// the codec-config bytes to hand back (e.g. the result of negotiating
// against a locally-created instance of that plugin).
type PluginHost interface {
	HandleRemoteConfig(pluginName string, config []byte) ([]byte, error)
}

// HostServer implements Server by delegating every request to a
// PluginHost, compressing the response per cfg.Compression the same way
// the client compressed the request.
type HostServer struct {
	host PluginHost
	comp Compressor
}

// NewHostServer builds a HostServer wrapping host.
func NewHostServer(host PluginHost, cfg config.RemotePluginConfig) (*HostServer, error) {
	comp, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return &HostServer{host: host, comp: comp}, nil
}

// Negotiate implements Server.
func (s *HostServer) Negotiate(ctx context.Context, payload *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	name, _ := PluginNameFromContext(ctx)
	in, err := s.comp.Decompress(payload.GetValue())
	if err != nil {
		return nil, fmt.Errorf("remote.HostServer.Negotiate: %w", err)
	}
	out, err := s.host.HandleRemoteConfig(name, in)
	if err != nil {
		return nil, fmt.Errorf("remote.HostServer.Negotiate: %w", err)
	}
	compressed, err := s.comp.Compress(out)
	if err != nil {
		return nil, fmt.Errorf("remote.HostServer.Negotiate: %w", err)
	}
	return wrapperspb.Bytes(compressed), nil
}
