package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/mockplugin"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// TestCodecBackPressureRetriesUntilConsumed covers spec.md §8 S6: a codec
// that returns CODE_AGAIN from queue_input_buffer a fixed number of times
// must have handle-frame retry (parking on the back-pressure signal
// rather than busy-spinning or dropping the buffer) until the plugin
// finally accepts it, and the buffer must be consumed exactly once.
func TestCodecBackPressureRetriesUntilConsumed(t *testing.T) {
	reg := registry.New()
	mime := caps.New("application/octet-stream")

	reg.Register(plugin.Info{
		Name: "scripted", Type: plugin.TypeCodec,
		InCaps: []caps.Capability{mime}, OutCaps: []caps.Capability{mime},
	}, func() (any, error) { return mockplugin.NewScriptedCodec(3, 0), nil })

	reg.Register(plugin.Info{
		Name: "sink", Type: plugin.TypeAudioSink,
		InCaps: []caps.Capability{mime},
	}, func() (any, error) { return mockplugin.NewRecordingSink(0), nil })

	pl := pipeline.New(nil)
	dec := NewDecoder("dec", "decoder", reg, nil)
	sink := NewAudioSink("sink", "sink", reg, nil)
	require.NoError(t, pl.AddFilter(dec))
	require.NoError(t, pl.AddFilter(sink))
	require.NoError(t, dec.Init())
	require.NoError(t, sink.Init())
	require.NoError(t, pl.LinkPorts("dec", "out", "sink", "in"))

	_, err := dec.Negotiate("in", mime)
	require.NoError(t, err)
	require.NoError(t, dec.Configure(caps.NewMeta()))

	ctx := context.Background()
	require.NoError(t, pl.Prepare(ctx))
	require.NoError(t, pl.Start())
	defer pl.Stop()

	sc, ok := dec.Plugin().(*mockplugin.ScriptedCodec)
	require.True(t, ok)

	buf := buffer.New(buffer.MemoryVirtual, 64, buffer.MetaGeneric)
	buf.Memory.Write([]byte("hello"))
	require.NoError(t, dec.PushData("in", buf))
	buf.Release()

	require.Eventually(t, func() bool {
		return sc.InputConsumed() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 4, sc.InputCalls(), "three CodeAgain retries plus the accepted call")
	require.Equal(t, 1, sc.InputConsumed())
}
