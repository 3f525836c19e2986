package mockplugin

import (
	"encoding/binary"
	"sync"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// LengthPrefixedMuxer is a reference plugin.Muxer that serializes
// samples to its OutputSink as track-id + length-prefixed records, just
// enough structure for a recorder-path scenario test to read the bytes
// back and reconstruct per-track sample counts (SPEC_FULL.md §4.9).
type LengthPrefixedMuxer struct {
	mu     sync.Mutex
	tracks map[int]caps.Capability
	sink   plugin.OutputSink
}

// NewLengthPrefixedMuxer creates an empty muxer.
func NewLengthPrefixedMuxer() *LengthPrefixedMuxer {
	return &LengthPrefixedMuxer{tracks: make(map[int]caps.Capability)}
}

func (m *LengthPrefixedMuxer) Init() error    { return nil }
func (m *LengthPrefixedMuxer) Deinit() error  { return nil }
func (m *LengthPrefixedMuxer) Prepare() error { return nil }
func (m *LengthPrefixedMuxer) Start() error   { return nil }
func (m *LengthPrefixedMuxer) Stop() error    { return nil }
func (m *LengthPrefixedMuxer) Reset() error   { return nil }

func (m *LengthPrefixedMuxer) AddTrack(track int, c caps.Capability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[track] = c
	return nil
}

func (m *LengthPrefixedMuxer) SetOutputSink(sink plugin.OutputSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

func (m *LengthPrefixedMuxer) WriteSample(track int, buf *buffer.Buffer) error {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink == nil {
		return errors.New("mockplugin.LengthPrefixedMuxer.WriteSample", errors.CodeInvalidState, nil)
	}

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], uint32(track))
	binary.BigEndian.PutUint32(header[4:8], uint32(buf.Size()))
	if _, err := sink.Write(header); err != nil {
		return errors.New("mockplugin.LengthPrefixedMuxer.WriteSample", errors.CodeUnknown, err)
	}
	if _, err := sink.Write(buf.Memory.Bytes()); err != nil {
		return errors.New("mockplugin.LengthPrefixedMuxer.WriteSample", errors.CodeUnknown, err)
	}
	return nil
}
