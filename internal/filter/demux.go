package filter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/datapacker"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
	"github.com/jmylchreest/histreamer/internal/registry"
	"github.com/jmylchreest/histreamer/internal/task"
)

const demuxInPort = "in"

// packerSource adapts a push-mode DataPacker into the plugin.Source
// trait so a Demuxer plugin can Read from it exactly as it would from a
// pull-mode source, regardless of which discipline feeds this filter
// (spec.md §4.6 "DataPacker").
type packerSource struct {
	mu       sync.Mutex
	cond     *sync.Cond
	packer   *datapacker.Packer
	writeOff int64
	readOff  int64
	eos      bool
}

func newPackerSource() *packerSource {
	s := &packerSource{packer: datapacker.New()}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *packerSource) push(data []byte, eos bool) {
	s.mu.Lock()
	if len(data) > 0 {
		s.packer.Push(s.writeOff, data)
		s.writeOff += int64(len(data))
	}
	if eos {
		s.eos = true
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *packerSource) Init() error    { return nil }
func (s *packerSource) Deinit() error  { return nil }
func (s *packerSource) Prepare() error { return nil }
func (s *packerSource) Start() error   { return nil }
func (s *packerSource) Stop() error {
	s.mu.Lock()
	s.eos = true
	s.mu.Unlock()
	s.cond.Broadcast()
	return nil
}
func (s *packerSource) Reset() error {
	s.mu.Lock()
	s.packer.Flush()
	s.writeOff, s.readOff, s.eos = 0, 0, false
	s.mu.Unlock()
	return nil
}

func (s *packerSource) SetSource(string) error             { return nil }
func (s *packerSource) SetCallback(plugin.SourceCallback)  {}
func (s *packerSource) GetSize() (int64, error)             { return -1, nil }
func (s *packerSource) IsSeekable() bool                    { return false }
func (s *packerSource) SeekTo(int64) error                  { return errors.New("demux.source.SeekTo", errors.CodeUnimplemented, nil) }
func (s *packerSource) GetAllocator() plugin.Allocator       { return nil }

func (s *packerSource) Read(buf *buffer.Buffer, length int) error {
	dst := make([]byte, length)
	s.mu.Lock()
	for {
		if s.packer.IsDataAvailable(s.readOff, length) {
			s.packer.GetRange(s.readOff, length, dst)
			s.readOff += int64(length)
			s.mu.Unlock()
			buf.Memory.Write(dst)
			return nil
		}
		if s.eos {
			s.mu.Unlock()
			return errors.New("demux.source.Read", errors.CodeEndOfStream, nil)
		}
		s.cond.Wait()
	}
}

// Demux implements spec.md §4.5's Demux contract: it accumulates
// push-mode input through a DataPacker-backed source adapter, drives a
// negotiated Demuxer plugin's frame pump in its own Task, and emits one
// dynamic out-port per elementary track discovered in GetMediaInfo
// (spec.md §3 "Dynamic ports").
type Demux struct {
	*Base

	reg    *registry.Registry
	plug   plugin.Demuxer
	src    *packerSource
	pump   *task.Task
	tracks map[int]string // track index -> out-port name

	mediaInfo plugin.MediaInfo
}

// NewDemux creates a Demux filter that negotiates a Demuxer plugin from
// reg when its Negotiate is called with the upstream capability offer.
func NewDemux(id, name string, reg *registry.Registry, logger *slog.Logger) *Demux {
	b := NewBaseWithLogger(id, name, "demux", reg, plugin.TypeDemuxer, nil, logger)
	d := &Demux{Base: b, reg: reg, src: newPackerSource(), tracks: make(map[int]string)}
	d.AddInPort(demuxInPort, port.ModePush)
	return d
}

func (d *Demux) Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error) {
	return d.DoNegotiate(NegotiateParams{InPort: demuxInPort}, offer)
}

func (d *Demux) Configure(meta *caps.Meta) error {
	if plug, ok := d.Plugin().(plugin.Demuxer); ok && d.plug == nil {
		d.plug = plug
		d.plug.SetDataSource(d.src)
	}
	return d.Base.Configure("", meta)
}

func (d *Demux) Prepare(ctx context.Context) error {
	if d.plug == nil {
		return errors.New("demux.Prepare", errors.CodeWrongState, nil)
	}
	if err := d.plug.Prepare(); err != nil {
		return errors.New("demux.Prepare", errors.CodeUnknown, err)
	}
	info, err := d.plug.GetMediaInfo()
	if err != nil {
		return errors.New("demux.Prepare", errors.CodeUnknown, err)
	}
	d.mediaInfo = info
	for _, t := range info.Tracks {
		if err := d.plug.SelectTrack(t.Index); err != nil {
			continue
		}
		portName := fmt.Sprintf("track-%d", t.Index)
		d.tracks[t.Index] = portName
		d.AddOutPort(portName, port.ModePush, t.Caps)
	}
	d.pump = task.NewWithLogger(d.Name()+"-pump", d.pumpOnce, d.Logger())
	return d.Base.Prepare(ctx)
}

func (d *Demux) Start() error {
	if err := d.Base.Start(); err != nil {
		return err
	}
	if err := d.plug.Start(); err != nil {
		return errors.New("demux.Start", errors.CodeUnknown, err)
	}
	d.pump.Start()
	return nil
}

func (d *Demux) Stop() error {
	if d.pump != nil {
		d.pump.Stop()
	}
	if d.plug != nil {
		_ = d.plug.Stop()
	}
	return d.Base.Stop()
}

func (d *Demux) Pause() error {
	if d.pump != nil {
		d.pump.Pause()
	}
	return d.Base.Pause()
}

func (d *Demux) Resume() error {
	if err := d.Base.Resume(); err != nil {
		return err
	}
	if d.pump != nil {
		d.pump.Start()
	}
	return nil
}

func (d *Demux) FlushStart() error {
	if d.pump != nil {
		d.pump.Pause()
	}
	return d.Base.FlushStart()
}

func (d *Demux) FlushEnd() error {
	if err := d.Base.FlushEnd(); err != nil {
		return err
	}
	if d.pump != nil {
		d.pump.Start()
	}
	return nil
}

// PushData receives a byte-range buffer from the upstream Source filter
// and feeds the DataPacker driving the negotiated Demuxer plugin.
func (d *Demux) PushData(inPortName string, buf *buffer.Buffer) error {
	d.src.push(buf.Memory.Bytes(), buf.Flags.Has(buffer.FlagEOS))
	return nil
}

// SeekTo seeks every selected track to timeNs using mode (spec.md §4.8
// PLAYER_INTENT_SEEK).
func (d *Demux) SeekTo(timeNs int64, mode plugin.SeekMode) error {
	if d.plug == nil {
		return errors.New("demux.SeekTo", errors.CodeWrongState, nil)
	}
	for track := range d.tracks {
		if err := d.plug.SeekTo(track, timeNs, mode); err != nil {
			return err
		}
	}
	return nil
}

// pumpOnce reads one frame from the demuxer plugin and pushes it to the
// out-port matching its track.
func (d *Demux) pumpOnce() {
	buf := buffer.New(buffer.MemoryVirtual, 256*1024, buffer.MetaGeneric)
	defer buf.Release()

	err := d.plug.ReadFrame(buf, 200*time.Millisecond)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeTimedOut || errors.CodeOf(err) == errors.CodeAgain {
			return
		}
		if errors.CodeOf(err) == errors.CodeEndOfStream {
			buf.Flags |= buffer.FlagEOS
			for _, portName := range d.tracks {
				d.PushDownstream(portName, buf)
			}
			return
		}
		d.Logger().Warn("demux read frame failed", slog.Any("err", err))
		return
	}
	trackIdx, _ := buf.Meta["track"].(int)
	portName, ok := d.tracks[trackIdx]
	if !ok {
		return
	}
	if err := d.PushDownstream(portName, buf); err != nil {
		d.Logger().Debug("demux push failed", slog.Any("err", err))
	}
}
