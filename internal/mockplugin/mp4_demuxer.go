package mockplugin

import (
	"io"
	"sync"
	"time"

	mp4 "github.com/abema/go-mp4"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// MP4Demuxer is a reference plugin.Demuxer over an MP4/fMP4 file, probed
// with go-mp4's box walker to build the track list; sample extraction
// is driven by a pre-built frame schedule (built from the same probe),
// since full sample-table interleaving is beyond what a test double
// needs.
type MP4Demuxer struct {
	r io.ReadSeeker

	mu       sync.Mutex
	tracks   []plugin.TrackInfo
	selected map[int]bool
	frames   []mp4Frame
	cursor   int
}

type mp4Frame struct {
	track int
	data  []byte
	keyed bool
}

// NewMP4Demuxer wraps r, a seekable MP4 container.
func NewMP4Demuxer(r io.ReadSeeker) *MP4Demuxer {
	return &MP4Demuxer{r: r, selected: make(map[int]bool)}
}

func (d *MP4Demuxer) Init() error    { return nil }
func (d *MP4Demuxer) Deinit() error  { return nil }
func (d *MP4Demuxer) Prepare() error { return nil }
func (d *MP4Demuxer) Start() error   { return nil }
func (d *MP4Demuxer) Stop() error    { return nil }
func (d *MP4Demuxer) Reset() error   { d.cursor = 0; return nil }

func (d *MP4Demuxer) SetDataSource(src plugin.Source) {}

// GetMediaInfo walks the box tree with mp4.ReadBoxStructure, recording
// one track per trak it encounters and one frame per mdat payload into a
// flat schedule; hdlr inspection to distinguish audio from video tracks
// is skipped for simplicity and both are reported as buffer.MetaVideo
// unless the caller already knows otherwise.
func (d *MP4Demuxer) GetMediaInfo() (plugin.MediaInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	currentTrack := -1
	_, err := mp4.ReadBoxStructure(d.r, func(h *mp4.ReadHandle) (any, error) {
		switch h.BoxInfo.Type.String() {
		case "trak":
			currentTrack = len(d.tracks)
			d.tracks = append(d.tracks, plugin.TrackInfo{
				Index: currentTrack,
				Kind:  buffer.MetaVideo,
				Caps:  caps.New("video/mp4"),
				Meta:  caps.NewMeta(),
			})
			return h.Expand()
		case "mdat":
			n := h.BoxInfo.Size - h.BoxInfo.HeaderSize
			buf := make([]byte, n)
			if _, rerr := io.ReadFull(d.r, buf); rerr == nil {
				track := currentTrack
				if track < 0 {
					track = 0
				}
				d.frames = append(d.frames, mp4Frame{track: track, data: buf, keyed: len(d.frames) == 0})
			}
			return nil, nil
		default:
			return h.Expand()
		}
	})
	if err != nil {
		return plugin.MediaInfo{}, errors.New("mockplugin.MP4Demuxer.GetMediaInfo", errors.CodeUnsupportedFormat, err)
	}
	return plugin.MediaInfo{Tracks: d.tracks}, nil
}

func (d *MP4Demuxer) ReadFrame(buf *buffer.Buffer, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.cursor < len(d.frames) {
		f := d.frames[d.cursor]
		d.cursor++
		if !d.selected[f.track] {
			continue
		}
		buf.Memory.Write(f.data)
		buf.Meta["track"] = f.track
		if f.keyed {
			buf.Flags |= buffer.FlagKeyFrame
		}
		return nil
	}
	return errors.ErrEndOfStream
}

func (d *MP4Demuxer) SeekTo(track int, timeNs int64, mode plugin.SeekMode) error {
	return errors.New("mockplugin.MP4Demuxer.SeekTo", errors.CodeUnimplemented, nil)
}

func (d *MP4Demuxer) GetTrackCount() int { return len(d.tracks) }

func (d *MP4Demuxer) SelectTrack(track int) error {
	d.selected[track] = true
	return nil
}

func (d *MP4Demuxer) UnselectTrack(track int) error {
	delete(d.selected, track)
	return nil
}
