package mockplugin

import (
	"bytes"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// Register populates reg with every reference plugin in this package,
// each under the name "mock" (the two demuxers under "mock-ts" and
// "mock-mp4"), so scenario tests can build a pipeline
// purely from registry.Create the same way production code would
// (spec.md §8).
func Register(reg *registry.Registry) {
	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeSource, Rank: 0,
		OutCaps: []caps.Capability{caps.New("application/octet-stream")},
	}, func() (any, error) {
		return NewMemorySource(nil), nil
	})

	reg.Register(plugin.Info{
		Name: "mock-ts", Type: plugin.TypeDemuxer, Rank: 0,
		InCaps:  []caps.Capability{caps.New("video/mpegts")},
		OutCaps: []caps.Capability{caps.New("video/mpegts-es")},
	}, func() (any, error) {
		return NewTSDemuxer(bytes.NewReader(nil)), nil
	})

	reg.Register(plugin.Info{
		Name: "mock-mp4", Type: plugin.TypeDemuxer, Rank: 0,
		InCaps:  []caps.Capability{caps.New("video/mp4")},
		OutCaps: []caps.Capability{caps.New("video/mp4-es")},
	}, func() (any, error) {
		return NewMP4Demuxer(bytes.NewReader(nil)), nil
	})

	// ScriptedCodec transforms opaquely, so the same entry serves both
	// directions a pipeline needs it for: decoding an elementary stream
	// down to raw samples (player path) and encoding raw samples up into
	// an elementary stream (recorder path, SPEC_FULL.md §4.9).
	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeCodec, Rank: 0,
		InCaps: []caps.Capability{
			caps.New("video/mp4-es"), caps.New("video/mpegts-es"),
			caps.New("audio/pcm"), caps.New("video/raw"),
		},
		OutCaps: []caps.Capability{
			caps.New("audio/pcm"), caps.New("video/raw"),
			caps.New("video/mp4-es"), caps.New("video/mpegts-es"),
		},
	}, func() (any, error) {
		return NewScriptedCodec(0, 0), nil
	})

	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeAudioSink, Rank: 0,
		InCaps: []caps.Capability{caps.New("audio/pcm")},
	}, func() (any, error) {
		return NewRecordingSink(0), nil
	})

	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeVideoSink, Rank: 0,
		InCaps: []caps.Capability{caps.New("video/raw")},
	}, func() (any, error) {
		return NewRecordingSink(0), nil
	})

	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeMuxer, Rank: 0,
		InCaps: []caps.Capability{caps.New("audio/pcm"), caps.New("video/raw")},
	}, func() (any, error) {
		return NewLengthPrefixedMuxer(), nil
	})

	reg.Register(plugin.Info{
		Name: "mock", Type: plugin.TypeOutputSink, Rank: 0,
	}, func() (any, error) {
		return NewBufferOutputSink(), nil
	})
}
