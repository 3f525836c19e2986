package mockplugin

import (
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/errors"
)

// RecordingSink is a reference AudioSink/VideoSink double that appends
// every Write call's bytes to an in-memory log, so scenario tests can
// assert on exactly what reached the sink (spec.md §8 S1-S5).
type RecordingSink struct {
	mu      sync.Mutex
	params  map[string]any
	volume  float64
	writes  [][]byte
	paused  bool
	latency time.Duration
}

// NewRecordingSink creates a sink with the given reported GetLatency.
func NewRecordingSink(latency time.Duration) *RecordingSink {
	return &RecordingSink{params: make(map[string]any), volume: 1.0, latency: latency}
}

func (s *RecordingSink) Init() error    { return nil }
func (s *RecordingSink) Deinit() error  { return nil }
func (s *RecordingSink) Prepare() error { return nil }
func (s *RecordingSink) Start() error   { return nil }
func (s *RecordingSink) Stop() error    { return nil }
func (s *RecordingSink) Reset() error   { s.mu.Lock(); s.writes = nil; s.mu.Unlock(); return nil }

func (s *RecordingSink) GetParameter(tag string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.params[tag]
	if !ok {
		return nil, errors.New("mockplugin.RecordingSink.GetParameter", errors.CodeNotExisted, nil)
	}
	return v, nil
}

func (s *RecordingSink) SetParameter(tag string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[tag] = value
	return nil
}

func (s *RecordingSink) Pause() error  { s.mu.Lock(); s.paused = true; s.mu.Unlock(); return nil }
func (s *RecordingSink) Resume() error { s.mu.Lock(); s.paused = false; s.mu.Unlock(); return nil }
func (s *RecordingSink) Flush() error  { return s.Reset() }

func (s *RecordingSink) Write(buf *buffer.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, buf.Size())
	copy(b, buf.Memory.Bytes())
	s.writes = append(s.writes, b)
	return nil
}

func (s *RecordingSink) SetVolume(v float64) error { s.mu.Lock(); s.volume = v; s.mu.Unlock(); return nil }
func (s *RecordingSink) GetLatency() (time.Duration, error) { return s.latency, nil }

// Writes returns every buffer handed to Write so far, in order.
func (s *RecordingSink) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// Paused reports whether Pause was called more recently than Resume.
func (s *RecordingSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
