package mockplugin

import (
	"bytes"
	"sync"
)

// BufferOutputSink is a reference plugin.OutputSink that accumulates
// written bytes in memory, letting a recorder-path scenario test read
// back exactly what the muxer produced.
type BufferOutputSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewBufferOutputSink creates an empty sink.
func NewBufferOutputSink() *BufferOutputSink { return &BufferOutputSink{} }

func (s *BufferOutputSink) Init() error    { return nil }
func (s *BufferOutputSink) Deinit() error  { return nil }
func (s *BufferOutputSink) Prepare() error { return nil }
func (s *BufferOutputSink) Start() error   { return nil }
func (s *BufferOutputSink) Stop() error    { return nil }
func (s *BufferOutputSink) Reset() error   { s.mu.Lock(); s.buf.Reset(); s.mu.Unlock(); return nil }

func (s *BufferOutputSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Bytes returns a copy of everything written so far.
func (s *BufferOutputSink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	return out
}
