package histreamer

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/internal/mockplugin"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// fakeDemuxer is a test-local plugin.Demuxer double that fabricates a
// fixed list of frames per track instead of parsing a real container,
// reproducing spec.md §8 S5's "two PORT_ADDED callbacks" without
// depending on real TS/MP4 bytes.
type fakeDemuxer struct {
	mu       sync.Mutex
	tracks   []plugin.TrackInfo
	frames   map[int][][]byte
	emitted  map[int]int
	selected map[int]bool
}

func newFakeDemuxer(tracks []plugin.TrackInfo, frames map[int][][]byte) *fakeDemuxer {
	return &fakeDemuxer{
		tracks:   tracks,
		frames:   frames,
		emitted:  make(map[int]int),
		selected: make(map[int]bool),
	}
}

func (d *fakeDemuxer) Init() error    { return nil }
func (d *fakeDemuxer) Deinit() error  { return nil }
func (d *fakeDemuxer) Prepare() error { return nil }
func (d *fakeDemuxer) Start() error   { return nil }
func (d *fakeDemuxer) Stop() error    { return nil }
func (d *fakeDemuxer) Reset() error   { return nil }

func (d *fakeDemuxer) SetDataSource(plugin.Source) {}

func (d *fakeDemuxer) GetMediaInfo() (plugin.MediaInfo, error) {
	return plugin.MediaInfo{Tracks: d.tracks}, nil
}

func (d *fakeDemuxer) GetTrackCount() int { return len(d.tracks) }

func (d *fakeDemuxer) SelectTrack(track int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected[track] = true
	return nil
}

func (d *fakeDemuxer) UnselectTrack(track int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.selected, track)
	return nil
}

func (d *fakeDemuxer) SeekTo(track int, timeNs int64, mode plugin.SeekMode) error { return nil }

func (d *fakeDemuxer) ReadFrame(buf *buffer.Buffer, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tr := range d.tracks {
		if !d.selected[tr.Index] {
			continue
		}
		remaining := d.frames[tr.Index][d.emitted[tr.Index]:]
		if len(remaining) == 0 {
			continue
		}
		payload := remaining[0]
		d.emitted[tr.Index]++
		buf.Memory.Write(payload)
		buf.Meta["track"] = tr.Index
		return nil
	}
	return errors.New("fakeDemuxer.ReadFrame", errors.CodeEndOfStream, nil)
}

// recordingObserver accumulates every notification delivered by an FSM,
// safe for concurrent use since dispatch() fires each callback on its
// own goroutine.
type recordingObserver struct {
	mu     sync.Mutex
	infos  []fsm.InfoKind
	errors []errors.Code
}

func (o *recordingObserver) OnInfo(kind fsm.InfoKind, extra any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.infos = append(o.infos, kind)
}

func (o *recordingObserver) OnError(code errors.Code) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, code)
}

func (o *recordingObserver) has(kind fsm.InfoKind) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range o.infos {
		if k == kind {
			return true
		}
	}
	return false
}

func newFakeTracks() ([]plugin.TrackInfo, map[int][][]byte) {
	tracks := []plugin.TrackInfo{
		{Index: 0, Kind: buffer.MetaAudio, Caps: caps.New("audio/pcm")},
		{Index: 1, Kind: buffer.MetaVideo, Caps: caps.New("video/mpegts-es")},
	}
	frames := map[int][][]byte{
		0: {[]byte("audio-frame-1"), []byte("audio-frame-2")},
		1: {[]byte("video-frame-1"), []byte("video-frame-2")},
	}
	return tracks, frames
}

func newTestRegistry(demux *fakeDemuxer) *registry.Registry {
	reg := registry.New()
	mockplugin.Register(reg)
	reg.Register(plugin.Info{
		Name: "fake", Type: plugin.TypeDemuxer, Rank: 1,
		InCaps: []caps.Capability{caps.New("application/octet-stream")},
	}, func() (any, error) { return demux, nil })
	return reg
}

// TestPlayerEndToEndCompletion covers spec.md §8 S1: SET_SOURCE, PREPARE,
// PLAY against a source whose demuxer fabricates a fixed frame list, and
// asserts the player reaches Stopped having observed EOS along the way.
func TestPlayerEndToEndCompletion(t *testing.T) {
	tracks, frames := newFakeTracks()
	demux := newFakeDemuxer(tracks, frames)
	reg := newTestRegistry(demux)

	obs := &recordingObserver{}
	player, err := NewPlayer(reg, PlayerOptions{SourceCap: caps.New("application/octet-stream")}, obs)
	require.NoError(t, err)

	require.NoError(t, player.SetSource("mem://fake"))
	require.NoError(t, player.Prepare(nil))

	require.Eventually(t, func() bool {
		return player.State() == fsm.PlayerReady
	}, 2*time.Second, 5*time.Millisecond, "player never reached Ready")

	require.NoError(t, player.Play())

	require.Eventually(t, func() bool {
		return player.State() == fsm.PlayerStopped
	}, 2*time.Second, 5*time.Millisecond, "player never reached Stopped")

	assert.True(t, obs.has(fsm.InfoEOS), "observer never saw EOS")
}

// TestPlayerDynamicMultiTrackWiring covers spec.md §8 S5: a demuxer
// exposing two tracks must drive two BUILD_CHAIN passes that each wire a
// decoder and the correctly-kinded sink off the matching dynamic
// out-port.
func TestPlayerDynamicMultiTrackWiring(t *testing.T) {
	tracks, frames := newFakeTracks()
	demux := newFakeDemuxer(tracks, frames)
	reg := newTestRegistry(demux)

	before := atomic.LoadInt64(&filterSeq)
	player, err := NewPlayer(reg, PlayerOptions{SourceCap: caps.New("application/octet-stream")}, nil)
	require.NoError(t, err)

	require.NoError(t, player.SetSource("mem://fake"))
	require.NoError(t, player.Prepare(nil))

	require.Eventually(t, func() bool {
		return player.State() == fsm.PlayerReady
	}, 2*time.Second, 5*time.Millisecond, "player never reached Ready")

	audioSinkID := fmt.Sprintf("sink-%d", before+4)
	videoSinkID := fmt.Sprintf("sink-%d", before+6)

	audioSink, ok := player.pl.Filter(audioSinkID)
	require.True(t, ok, "audio chain was never built")
	assert.Equal(t, "audio-sink", audioSink.Kind())

	videoSink, ok := player.pl.Filter(videoSinkID)
	require.True(t, ok, "video chain was never built")
	assert.Equal(t, "video-sink", videoSink.Kind())
}
