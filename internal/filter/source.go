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
	"github.com/jmylchreest/histreamer/internal/registry"
	"github.com/jmylchreest/histreamer/internal/task"
)

// readChunkSize is the fixed size of each chunk a push-mode Source reads
// per iteration (spec.md §4.5 "Source").
const readChunkSize = 32 * 1024

const outPortName = "out"

// Source implements spec.md §4.5's Source contract: after Init, it
// publishes is_seekable; in push mode it owns a reader Task that reads a
// fixed chunk per iteration into a pooled buffer and pushes it to its
// single out-port.
type Source struct {
	*Base

	reg *registry.Registry

	uri    string
	plug   plugin.Source
	pool   *buffer.Pool
	reader *task.Task
}

// NewSource creates a Source filter backed by the highest-ranked
// registered source plugin.
func NewSource(id, name string, reg *registry.Registry, logger *slog.Logger) *Source {
	b := NewBaseWithLogger(id, name, "source", reg, plugin.TypeSource, nil, logger)
	s := &Source{Base: b, reg: reg}
	s.AddOutPort(outPortName, port.ModePush, caps.New("application/octet-stream"))
	return s
}

// SetSource configures the media source URI (spec.md §4.5, §6: file://,
// fd://, http(s)://, stream://, rtsp://).
func (s *Source) SetSource(uri string) error {
	s.uri = uri
	return nil
}

func (s *Source) Init() error {
	if err := s.Base.Init(); err != nil {
		return err
	}
	candidates := s.reg.ListPlugins(plugin.TypeSource)
	if len(candidates) == 0 {
		return errors.New("source.Init", errors.CodePluginNotFound, nil)
	}
	inst, err := s.reg.Create(plugin.TypeSource, candidates[0])
	if err != nil {
		return errors.New("source.Init", errors.CodePluginNotFound, err)
	}
	p, ok := inst.(plugin.Source)
	if !ok {
		return errors.New("source.Init", errors.CodeUnknown, nil)
	}
	s.plug = p
	return s.plug.Init()
}

func (s *Source) Prepare(ctx context.Context) error {
	if s.plug == nil {
		return errors.New("source.Prepare", errors.CodeWrongState, nil)
	}
	if err := s.plug.SetSource(s.uri); err != nil {
		return errors.New("source.Prepare", errors.CodeInvalidParameterValue, err)
	}
	if err := s.plug.Prepare(); err != nil {
		return errors.New("source.Prepare", errors.CodeUnknown, err)
	}
	s.pool = buffer.NewPoolWithLogger(4, buffer.MemoryVirtual, buffer.MetaGeneric, readChunkSize, s.Logger())
	s.reader = task.NewWithLogger(s.Name()+"-reader", s.readOnce, s.Logger())
	return s.Base.Prepare(ctx)
}

func (s *Source) Start() error {
	if err := s.Base.Start(); err != nil {
		return err
	}
	if err := s.plug.Start(); err != nil {
		return errors.New("source.Start", errors.CodeUnknown, err)
	}
	s.reader.Start()
	return nil
}

func (s *Source) Stop() error {
	if s.reader != nil {
		s.reader.Stop()
	}
	if s.pool != nil {
		s.pool.SetActive(false)
	}
	if s.plug != nil {
		_ = s.plug.Stop()
	}
	return s.Base.Stop()
}

func (s *Source) Pause() error {
	if s.reader != nil {
		s.reader.Pause()
	}
	return s.Base.Pause()
}

func (s *Source) Resume() error {
	if err := s.Base.Resume(); err != nil {
		return err
	}
	if s.reader != nil {
		s.reader.Start()
	}
	return nil
}

func (s *Source) FlushStart() error {
	if s.reader != nil {
		s.reader.Pause()
	}
	return s.Base.FlushStart()
}

func (s *Source) FlushEnd() error {
	if err := s.Base.FlushEnd(); err != nil {
		return err
	}
	if s.reader != nil {
		s.reader.Start()
	}
	return nil
}

// IsSeekable reports whether the underlying source plugin supports
// seeking.
func (s *Source) IsSeekable() bool {
	return s.plug != nil && s.plug.IsSeekable()
}

// SeekTo seeks the underlying source plugin to a byte offset.
func (s *Source) SeekTo(offset int64) error {
	if s.plug == nil {
		return errors.New("source.SeekTo", errors.CodeWrongState, nil)
	}
	return s.plug.SeekTo(offset)
}

// PullData services a downstream demuxer's pull-mode read (spec.md §4.5:
// a Demux wired for pull-mode drives its upstream Source directly rather
// than consuming push-mode buffers).
func (s *Source) PullData(buf *buffer.Buffer, length int) error {
	if s.plug == nil {
		return errors.New("source.PullData", errors.CodeWrongState, nil)
	}
	return s.plug.Read(buf, length)
}

func (s *Source) Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error) {
	return caps.Capability{}, errors.New("source.Negotiate", errors.CodeInvalidOperation, nil)
}

func (s *Source) Configure(meta *caps.Meta) error {
	return s.Base.Configure(outPortName, meta)
}

func (s *Source) PushData(inPortName string, buf *buffer.Buffer) error {
	return errors.New("source.PushData", errors.CodeInvalidOperation, nil)
}

// readOnce is the reader Task's handler: read one fixed chunk and push
// it downstream (spec.md §4.5 push-mode Source).
func (s *Source) readOnce() {
	buf, err := s.pool.Allocate(nil, -1)
	if err != nil {
		return
	}
	defer buf.Release()

	if err := s.plug.Read(buf, readChunkSize); err != nil {
		if errors.CodeOf(err) == errors.CodeEndOfStream {
			buf.Flags |= buffer.FlagEOS
		} else {
			s.Logger().Warn("source read failed", slog.Any("err", err))
			time.Sleep(5 * time.Millisecond)
			return
		}
	}
	if err := s.PushDownstream(outPortName, buf); err != nil {
		s.Logger().Debug("downstream push failed", slog.Any("err", err))
	}
}
