package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// Muxer implements the recorder path's container writer (SPEC_FULL.md
// §4.9): one dynamically-added in-port per encoded track, serialized
// through a negotiated Muxer plugin into an OutputSink. Unlike Source/
// Demux/Codec/Sink, a Muxer has no Task of its own: WriteSample is
// cheap and is invoked synchronously from PushData, matching the
// original engine's muxer filter which has no internal queue.
type Muxer struct {
	*Base

	reg  *registry.Registry
	plug plugin.Muxer
	sink plugin.OutputSink

	inPorts map[string]int // in-port name -> track id
	done    map[int]bool
}

// NewMuxer creates a Muxer filter negotiating a TypeMuxer plugin.
func NewMuxer(id, name string, reg *registry.Registry, logger *slog.Logger) *Muxer {
	b := NewBaseWithLogger(id, name, "muxer", reg, plugin.TypeMuxer, nil, logger)
	return &Muxer{Base: b, reg: reg, inPorts: make(map[string]int), done: make(map[int]bool)}
}

// SetOutputSink attaches the output destination (file, pipe, ...) the
// negotiated plugin serializes into.
func (m *Muxer) SetOutputSink(sink plugin.OutputSink) {
	m.sink = sink
	if m.plug != nil {
		m.plug.SetOutputSink(sink)
	}
}

// AddTrackPort adds a dynamic in-port for one encoded elementary
// stream and registers it with the negotiated muxer plugin (spec.md §3
// "Dynamic ports": a Muxer's in-ports are added as upstream Encoders
// announce their tracks, mirroring a Demux's dynamic out-ports).
func (m *Muxer) AddTrackPort(track int, c caps.Capability) (string, error) {
	if m.plug == nil {
		return "", errors.New("muxer.AddTrackPort", errors.CodeWrongState, nil)
	}
	portName := fmt.Sprintf("track-%d", track)
	m.AddInPort(portName, port.ModePush)
	m.inPorts[portName] = track
	if err := m.plug.AddTrack(track, c); err != nil {
		return "", errors.New("muxer.AddTrackPort", errors.CodeUnsupportedFormat, err)
	}
	return portName, nil
}

func (m *Muxer) Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error) {
	return m.DoNegotiate(NegotiateParams{InPort: inPortName}, offer)
}

func (m *Muxer) Configure(meta *caps.Meta) error {
	if plug, ok := m.Plugin().(plugin.Muxer); ok && m.plug == nil {
		m.plug = plug
		if m.sink != nil {
			m.plug.SetOutputSink(m.sink)
		}
	}
	return m.Base.Configure("", meta)
}

func (m *Muxer) Prepare(ctx context.Context) error {
	if m.plug == nil {
		return errors.New("muxer.Prepare", errors.CodeWrongState, nil)
	}
	if err := m.plug.Prepare(); err != nil {
		return errors.New("muxer.Prepare", errors.CodeUnknown, err)
	}
	if m.sink != nil {
		if err := m.sink.Init(); err != nil {
			return errors.New("muxer.Prepare", errors.CodeUnknown, err)
		}
	}
	return m.Base.Prepare(ctx)
}

func (m *Muxer) Start() error {
	if err := m.Base.Start(); err != nil {
		return err
	}
	if err := m.plug.Start(); err != nil {
		return errors.New("muxer.Start", errors.CodeUnknown, err)
	}
	if m.sink != nil {
		return m.sink.Start()
	}
	return nil
}

func (m *Muxer) Stop() error {
	if m.plug != nil {
		_ = m.plug.Stop()
	}
	if m.sink != nil {
		_ = m.sink.Stop()
		_ = m.sink.Deinit()
	}
	return m.Base.Stop()
}

// PushData writes an encoded sample for the track bound to inPortName.
// When the buffer carries FlagEOS for every registered track, the
// recorder FSM's finalize path (SPEC_FULL.md §4.9) is driven from the
// pipeline's event loop, not from here.
func (m *Muxer) PushData(inPortName string, buf *buffer.Buffer) error {
	track, ok := m.inPorts[inPortName]
	if !ok {
		return errors.New("muxer.PushData", errors.CodeNotExisted, nil)
	}
	if buf.Flags.Has(buffer.FlagEOS) {
		m.done[track] = true
		if m.allTracksDone() {
			m.emit(Event{Kind: EventRecordComplete})
		}
		return nil
	}
	if err := m.plug.WriteSample(track, buf); err != nil {
		return errors.New("muxer.PushData", errors.CodeUnknown, err)
	}
	return nil
}

func (m *Muxer) allTracksDone() bool {
	for _, done := range m.done {
		if !done {
			return false
		}
	}
	return len(m.done) == len(m.inPorts)
}
