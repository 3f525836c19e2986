package cmd

import "os"

// fileOutputSink adapts an *os.File to plugin.OutputSink, so `record`
// can write a muxer's serialized output straight to disk instead of the
// in-memory internal/mockplugin.BufferOutputSink scenario tests use.
type fileOutputSink struct {
	f *os.File
}

func newFileOutputSink(path string) (*fileOutputSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &fileOutputSink{f: f}, nil
}

func (s *fileOutputSink) Init() error    { return nil }
func (s *fileOutputSink) Deinit() error  { return s.f.Close() }
func (s *fileOutputSink) Prepare() error { return nil }
func (s *fileOutputSink) Start() error   { return nil }
func (s *fileOutputSink) Stop() error    { return s.f.Sync() }
func (s *fileOutputSink) Reset() error   { return nil }

func (s *fileOutputSink) Write(p []byte) (int, error) { return s.f.Write(p) }
