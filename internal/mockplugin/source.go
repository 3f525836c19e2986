// Package mockplugin provides reference plugin implementations used by
// the engine's own test suite (spec.md §8 "Scenario tests"): an
// in-memory Source, container-aware Demuxers grounded on go-astits and
// go-mp4, a scriptable async Codec able to reproduce the CODE_AGAIN
// back-pressure scenario, and bare Sink/Muxer/OutputSink doubles.
package mockplugin

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// MemorySource serves bytes from an in-memory buffer, supporting seek.
// It is the reference plugin.Source implementation scenario tests attach
// to a filter.Source (spec.md §8 S1-S5).
type MemorySource struct {
	data   []byte
	pos    int64
	cb     plugin.SourceCallback
	closed bool
}

// NewMemorySource creates a Source over data.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data}
}

func (m *MemorySource) Init() error  { return nil }
func (m *MemorySource) Deinit() error { m.closed = true; return nil }
func (m *MemorySource) Prepare() error { return nil }
func (m *MemorySource) Start() error   { return nil }
func (m *MemorySource) Stop() error    { return nil }
func (m *MemorySource) Reset() error   { m.pos = 0; return nil }

// SetSource loads uri's bytes into memory. uri is treated as a local
// filesystem path, with an optional "file://" scheme stripped, since
// this reference plugin has no network-source implementation.
func (m *MemorySource) SetSource(uri string) error {
	if uri == "" {
		return nil
	}
	path := strings.TrimPrefix(uri, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New("mockplugin.MemorySource.SetSource", errors.CodeNotExisted, err)
	}
	m.data = data
	m.pos = 0
	return nil
}
func (m *MemorySource) SetCallback(cb plugin.SourceCallback) { m.cb = cb }

func (m *MemorySource) Read(buf *buffer.Buffer, length int) error {
	if m.pos >= int64(len(m.data)) {
		return errors.New("mockplugin.MemorySource.Read", errors.CodeEndOfStream, io.EOF)
	}
	end := m.pos + int64(length)
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	n := buf.Memory.Write(m.data[m.pos:end])
	m.pos += int64(n)
	if m.cb != nil {
		pct := int(100 * m.pos / int64(len(m.data)))
		m.cb.OnBufferingUpdate(pct)
	}
	return nil
}

func (m *MemorySource) GetSize() (int64, error) { return int64(len(m.data)), nil }
func (m *MemorySource) IsSeekable() bool        { return true }

func (m *MemorySource) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(m.data)) {
		return errors.New("mockplugin.MemorySource.SeekTo", errors.CodeInvalidParameterValue, nil)
	}
	m.pos = offset
	return nil
}

func (m *MemorySource) GetAllocator() plugin.Allocator { return nil }

// Reader exposes the unread tail as an io.Reader, used to hand the
// remaining bytes to a container-parsing Demuxer constructor.
func (m *MemorySource) Reader() io.Reader { return bytes.NewReader(m.data[m.pos:]) }
