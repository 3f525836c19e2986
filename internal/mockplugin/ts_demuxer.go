package mockplugin

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/asticode/go-astits"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// TSDemuxer is a reference plugin.Demuxer over an MPEG-TS stream, parsed
// with go-astits. It reports one track per elementary stream named in
// the PMT and serves PES payloads as frames in the order they appear in
// the stream, skipping PIDs whose track is not selected.
type TSDemuxer struct {
	r      io.Reader
	cancel context.CancelFunc
	dmx    *astits.Demuxer

	mu       sync.Mutex
	tracks   []plugin.TrackInfo
	selected map[int]bool
	pidTrack map[uint16]int
}

// NewTSDemuxer wraps r, an MPEG-TS byte stream.
func NewTSDemuxer(r io.Reader) *TSDemuxer {
	return &TSDemuxer{r: r, selected: make(map[int]bool), pidTrack: make(map[uint16]int)}
}

func (d *TSDemuxer) Init() error  { return nil }
func (d *TSDemuxer) Deinit() error {
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}
func (d *TSDemuxer) Prepare() error { return nil }
func (d *TSDemuxer) Start() error   { return nil }
func (d *TSDemuxer) Stop() error    { return nil }
func (d *TSDemuxer) Reset() error   { return nil }

func (d *TSDemuxer) SetDataSource(src plugin.Source) {
	// TSDemuxer is constructed directly over an io.Reader (NewTSDemuxer);
	// a plugin.Source-based data source is not used by this reference
	// implementation.
}

// GetMediaInfo runs go-astits' NextData loop until it reads a PMT and
// builds the track list from that PMT; any data read before it is
// discarded.
func (d *TSDemuxer) GetMediaInfo() (plugin.MediaInfo, error) {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.dmx = astits.NewDemuxer(ctx, d.r)

	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.tracks) == 0 {
		data, err := d.dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets {
				break
			}
			return plugin.MediaInfo{}, errors.New("mockplugin.TSDemuxer.GetMediaInfo", errors.CodeUnsupportedFormat, err)
		}
		if data.PMT == nil {
			continue
		}
		for _, es := range data.PMT.ElementaryStreams {
			kind := buffer.MetaVideo
			switch es.StreamType {
			case astits.StreamTypeAACAudio, astits.StreamTypeMPEG1Audio, astits.StreamTypeAC3Audio:
				kind = buffer.MetaAudio
			}
			idx := len(d.tracks)
			d.pidTrack[es.ElementaryPID] = idx
			d.tracks = append(d.tracks, plugin.TrackInfo{
				Index: idx,
				Kind:  kind,
				Caps:  caps.New("video/mpegts-es"),
				Meta:  caps.NewMeta(),
			})
		}
	}
	return plugin.MediaInfo{Tracks: d.tracks}, nil
}

func (d *TSDemuxer) ReadFrame(buf *buffer.Buffer, timeout time.Duration) error {
	if d.dmx == nil {
		return errors.New("mockplugin.TSDemuxer.ReadFrame", errors.CodeInvalidState, nil)
	}
	for {
		data, err := d.dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets {
				return errors.ErrEndOfStream
			}
			return errors.New("mockplugin.TSDemuxer.ReadFrame", errors.CodeUnsupportedFormat, err)
		}
		if data.PES == nil || data.FirstPacket == nil {
			continue
		}
		pid := data.FirstPacket.Header.PID
		track, ok := d.pidTrack[pid]
		if !ok || !d.selected[track] {
			continue
		}
		buf.Memory.Write(data.PES.Data)
		buf.Meta["track"] = track
		return nil
	}
}

func (d *TSDemuxer) SeekTo(track int, timeNs int64, mode plugin.SeekMode) error {
	return errors.New("mockplugin.TSDemuxer.SeekTo", errors.CodeUnimplemented, nil)
}

func (d *TSDemuxer) GetTrackCount() int { return len(d.tracks) }

func (d *TSDemuxer) SelectTrack(track int) error {
	d.selected[track] = true
	return nil
}

func (d *TSDemuxer) UnselectTrack(track int) error {
	delete(d.selected, track)
	return nil
}
