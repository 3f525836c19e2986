package histreamer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/internal/mockplugin"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// TestRecorderCapturesAndCompletes covers SPEC_FULL.md §4.9's capture ->
// encoder -> muxer -> output-sink path: a capture source with a small
// fixed payload must flow through to the muxer's length-prefixed output
// format and raise InfoRecordComplete once the source drains.
func TestRecorderCapturesAndCompletes(t *testing.T) {
	reg := registry.New()
	mockplugin.Register(reg)

	payload := []byte("captured-audio-samples")
	reg.Register(plugin.Info{
		Name: "captured", Type: plugin.TypeSource, Rank: 1,
		OutCaps: []caps.Capability{caps.New("application/octet-stream")},
	}, func() (any, error) { return mockplugin.NewMemorySource(payload), nil })

	out := mockplugin.NewBufferOutputSink()
	obs := &recordingObserver{}

	rec, err := NewRecorder(reg, RecorderOptions{
		CaptureCap: caps.New("audio/pcm"),
		TrackID:    0,
		Output:     out,
	}, obs)
	require.NoError(t, err)

	require.NoError(t, rec.Prepare(nil))
	require.Eventually(t, func() bool {
		return rec.State() == fsm.RecorderReady
	}, 2*time.Second, 5*time.Millisecond, "recorder never reached Ready")

	require.NoError(t, rec.Start())

	require.Eventually(t, func() bool {
		return rec.State() == fsm.RecorderStopped
	}, 2*time.Second, 5*time.Millisecond, "recorder never reached Stopped")

	require.True(t, obs.has(fsm.InfoRecordComplete), "observer never saw record completion")

	written := out.Bytes()
	require.GreaterOrEqual(t, len(written), 8, "muxer must have written at least a length-prefixed header")
	trackID := uint32(written[0])<<24 | uint32(written[1])<<16 | uint32(written[2])<<8 | uint32(written[3])
	length := uint32(written[4])<<24 | uint32(written[5])<<16 | uint32(written[6])<<8 | uint32(written[7])
	require.Equal(t, uint32(0), trackID)
	require.Len(t, written, 8+int(length), "sink must hold exactly one header+payload record")
}
