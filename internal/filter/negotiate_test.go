package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// countingPlugin is a bare plugin.Codec double that only tracks how many
// times Reset and Deinit were called, used to assert the negotiation
// protocol's plugin-reuse policy (spec.md §8 S4).
type countingPlugin struct {
	resetCalls  int
	deinitCalls int
}

func (c *countingPlugin) Init() error    { return nil }
func (c *countingPlugin) Deinit() error  { c.deinitCalls++; return nil }
func (c *countingPlugin) Prepare() error { return nil }
func (c *countingPlugin) Start() error   { return nil }
func (c *countingPlugin) Stop() error    { return nil }
func (c *countingPlugin) Reset() error   { c.resetCalls++; return nil }

func (c *countingPlugin) GetParameter(tag string) (any, error) { return nil, nil }
func (c *countingPlugin) SetParameter(tag string, value any) error { return nil }

func (c *countingPlugin) Flush() error                            { return nil }
func (c *countingPlugin) SetDataCallback(plugin.DataCallback)     {}
func (c *countingPlugin) QueueInputBuffer(*buffer.Buffer, time.Duration) error  { return nil }
func (c *countingPlugin) QueueOutputBuffer(*buffer.Buffer, time.Duration) error { return nil }
func (c *countingPlugin) GetAllocator() plugin.Allocator          { return nil }

// TestAdoptPluginReusesSamePluginByReset covers spec.md §8 S4: renegotiating
// the same plugin name calls Reset on the already-owned instance instead
// of Deinit-ing it and creating a fresh one.
func TestAdoptPluginReusesSamePluginByReset(t *testing.T) {
	reg := registry.New()
	shared := &countingPlugin{}
	reg.Register(plugin.Info{
		Name: "counter", Type: plugin.TypeCodec,
		InCaps:  []caps.Capability{caps.New("application/octet-stream")},
		OutCaps: []caps.Capability{caps.New("application/octet-stream")},
	}, func() (any, error) { return shared, nil })

	b := NewBase("f1", "f1", "codec", reg, plugin.TypeCodec, nil)
	offer := caps.New("application/octet-stream")

	_, err := b.DoNegotiate(NegotiateParams{InPort: "in"}, offer)
	require.NoError(t, err)
	first := b.Plugin()
	require.NotNil(t, first)

	_, err = b.DoNegotiate(NegotiateParams{InPort: "in"}, offer)
	require.NoError(t, err)
	second := b.Plugin()

	assert.Same(t, first, second, "re-negotiating the same plugin name must reuse the instance")
	assert.Equal(t, 1, shared.resetCalls, "reuse path must call Reset once")
	assert.Equal(t, 0, shared.deinitCalls, "reuse path must never Deinit the reused instance")
}
