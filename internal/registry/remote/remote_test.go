package remote

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jmylchreest/histreamer/internal/config"
)

// echoHost uppercases the codec-config bytes it's handed, just enough
// behavior to prove a round trip actually crossed the wire rather than
// short-circuiting locally.
type echoHost struct {
	gotPluginName string
}

func (h *echoHost) HandleRemoteConfig(pluginName string, cfg []byte) ([]byte, error) {
	h.gotPluginName = pluginName
	out := make([]byte, len(cfg))
	for i, b := range cfg {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out, nil
}

func startTestServer(t *testing.T, cfg config.RemotePluginConfig, host *echoHost) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hostServer, err := NewHostServer(host, cfg)
	require.NoError(t, err)

	srv := grpc.NewServer()
	RegisterServer(srv, hostServer)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return lis.Addr().String()
}

func TestTransportNegotiateRoundTrip(t *testing.T) {
	for _, scheme := range []string{"none", "brotli", "xz", "bzip2"} {
		t.Run(scheme, func(t *testing.T) {
			cfg := config.RemotePluginConfig{Compression: scheme}
			host := &echoHost{}
			addr := startTestServer(t, cfg, host)

			conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			require.NoError(t, err)
			t.Cleanup(func() { _ = conn.Close() })

			transport, err := NewTransport(NewClient(conn), cfg)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			out, err := transport.Negotiate(ctx, "mock-codec", []byte("sample-codec-config"))
			require.NoError(t, err)
			require.Equal(t, "SAMPLE-CODEC-CONFIG", string(out))
			require.Equal(t, "mock-codec", host.gotPluginName)
		})
	}
}

func TestNewCompressor_UnknownScheme(t *testing.T) {
	_, err := NewCompressor("lzma4000")
	require.Error(t, err)
}
