package filter

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
	"github.com/jmylchreest/histreamer/internal/queue"
	"github.com/jmylchreest/histreamer/internal/registry"
	"github.com/jmylchreest/histreamer/internal/task"
)

const sinkInPort = "in"

// eosGracePeriod is how long a Sink waits after its last write before
// raising its completion event, giving the backing device time to drain
// (spec.md §4.5 "Sink").
const eosGracePeriod = 60 * time.Millisecond

// sinkWriter is the narrow surface Sink needs from either an AudioSink
// or a VideoSink plugin.
type sinkWriter interface {
	plugin.Lifecycle
	plugin.Parameterized
	Pause() error
	Resume() error
	Flush() error
	Write(buf *buffer.Buffer) error
	GetLatency() (time.Duration, error)
}

// Sink implements spec.md §4.5's audio/video Sink: it drains a bounded
// in-queue through a single writer Task, calling Write on the negotiated
// sink plugin, and raises EVENT_AUDIO_COMPLETE/EVENT_VIDEO_COMPLETE once
// an EOS buffer has drained and the grace period has elapsed.
type Sink struct {
	*Base

	reg      *registry.Registry
	kindMeta buffer.MetaType
	plug     sinkWriter

	inQueue *queue.BlockingQueue[*buffer.Buffer]
	writer  *task.Task

	sawEOS bool
}

// NewAudioSink creates a Sink filter negotiating a TypeAudioSink plugin.
func NewAudioSink(id, name string, reg *registry.Registry, logger *slog.Logger) *Sink {
	return newSink(id, name, "audio-sink", plugin.TypeAudioSink, buffer.MetaAudio, reg, logger)
}

// NewVideoSink creates a Sink filter negotiating a TypeVideoSink plugin.
func NewVideoSink(id, name string, reg *registry.Registry, logger *slog.Logger) *Sink {
	return newSink(id, name, "video-sink", plugin.TypeVideoSink, buffer.MetaVideo, reg, logger)
}

func newSink(id, name, kind string, pluginType plugin.Type, metaType buffer.MetaType, reg *registry.Registry, logger *slog.Logger) *Sink {
	b := NewBaseWithLogger(id, name, kind, reg, pluginType, []string{"volume", "sample-rate", "channels", "pixel-format"}, logger)
	s := &Sink{
		Base:     b,
		reg:      reg,
		kindMeta: metaType,
		inQueue:  queue.New[*buffer.Buffer](name+"-in", codecQueueDepth),
	}
	s.AddInPort(sinkInPort, port.ModePush)
	return s
}

func (s *Sink) Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error) {
	return s.DoNegotiate(NegotiateParams{InPort: sinkInPort}, offer)
}

func (s *Sink) Configure(meta *caps.Meta) error {
	if w, ok := s.Plugin().(sinkWriter); ok && s.plug == nil {
		s.plug = w
	}
	return s.Base.Configure("", meta)
}

func (s *Sink) Prepare(ctx context.Context) error {
	if s.plug == nil {
		return errors.New("sink.Prepare", errors.CodeWrongState, nil)
	}
	if err := s.plug.Prepare(); err != nil {
		return errors.New("sink.Prepare", errors.CodeUnknown, err)
	}
	s.inQueue.SetActive(true)
	s.writer = task.NewWithLogger(s.Name()+"-writer", s.writeOnce, s.Logger())
	return s.Base.Prepare(ctx)
}

func (s *Sink) Start() error {
	if err := s.Base.Start(); err != nil {
		return err
	}
	if err := s.plug.Start(); err != nil {
		return errors.New("sink.Start", errors.CodeUnknown, err)
	}
	s.writer.Start()
	return nil
}

func (s *Sink) Stop() error {
	if s.writer != nil {
		s.writer.Stop()
	}
	s.inQueue.SetActive(false)
	if s.plug != nil {
		_ = s.plug.Stop()
	}
	return s.Base.Stop()
}

func (s *Sink) Pause() error {
	if err := s.Base.Pause(); err != nil {
		return err
	}
	s.writer.Pause()
	return s.plug.Pause()
}

func (s *Sink) Resume() error {
	if err := s.Base.Resume(); err != nil {
		return err
	}
	if err := s.plug.Resume(); err != nil {
		return err
	}
	s.writer.Start()
	return nil
}

func (s *Sink) FlushStart() error {
	s.writer.Pause()
	if s.plug != nil {
		_ = s.plug.Flush()
	}
	s.inQueue.SetActive(false)
	s.inQueue.SetActive(true)
	s.sawEOS = false
	return s.Base.FlushStart()
}

func (s *Sink) FlushEnd() error {
	if err := s.Base.FlushEnd(); err != nil {
		return err
	}
	s.writer.Start()
	return nil
}

// PushData enqueues an inbound decoded buffer for the writer Task.
func (s *Sink) PushData(inPortName string, buf *buffer.Buffer) error {
	return s.inQueue.Push(buf.Retain())
}

func (s *Sink) writeOnce() {
	buf, ok := s.inQueue.PopTimeout(100 * time.Millisecond)
	if !ok {
		return
	}
	eos := buf.Flags.Has(buffer.FlagEOS)
	if buf.Size() > 0 {
		if err := s.plug.Write(buf); err != nil {
			s.Logger().Warn("sink write failed", slog.Any("err", err))
		}
	}
	buf.Release()
	if eos && !s.sawEOS {
		s.sawEOS = true
		go s.raiseCompleteAfterGrace()
	}
}

func (s *Sink) raiseCompleteAfterGrace() {
	time.Sleep(eosGracePeriod)
	kind := EventAudioComplete
	if s.kindMeta == buffer.MetaVideo {
		kind = EventVideoComplete
	}
	s.emit(Event{Kind: kind})
}
