// Package plugin declares the cross-boundary trait set the pipeline core
// consumes (spec.md §6 "Consumed plugin traits"). Concrete plugin
// implementations (FFmpeg decoders, demuxers, HDI adapters, HTTP/HLS
// sources, sinks, muxers) are out of scope per spec.md §1; only the
// interfaces they must satisfy live here.
package plugin

import (
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
)

// Type identifies a plugin's role, matching PluginInfo.Type (spec.md §3).
type Type int

const (
	TypeSource Type = iota
	TypeDemuxer
	TypeCodec
	TypeAudioSink
	TypeVideoSink
	TypeMuxer
	TypeOutputSink
)

func (t Type) String() string {
	switch t {
	case TypeSource:
		return "source"
	case TypeDemuxer:
		return "demuxer"
	case TypeCodec:
		return "codec"
	case TypeAudioSink:
		return "audio-sink"
	case TypeVideoSink:
		return "video-sink"
	case TypeMuxer:
		return "muxer"
	case TypeOutputSink:
		return "output-sink"
	default:
		return "unknown"
	}
}

// Lifecycle is embedded by every plugin trait: init/deinit/prepare/
// start/stop/reset as described throughout spec.md §6.
type Lifecycle interface {
	Init() error
	Deinit() error
	Prepare() error
	Start() error
	Stop() error
	Reset() error
}

// Parameterized is embedded by plugins that expose tagged configuration
// (spec.md §4.3: get_parameter/set_parameter with per-tag type checks).
type Parameterized interface {
	GetParameter(tag string) (any, error)
	SetParameter(tag string, value any) error
}

// Info describes a plugin's identity and capabilities (spec.md §3
// "PluginInfo").
type Info struct {
	Name    string
	Type    Type
	InCaps  []caps.Capability
	OutCaps []caps.Capability
	Rank    int
	Extra   map[string]any // e.g. supported protocols
}

// SeekMode is the demuxer frame-alignment mode for seek_to (spec.md §6).
type SeekMode int

const (
	SeekPreviousSync SeekMode = iota
	SeekNextSync
	SeekClosestSync
)

// Source is the consumed trait for source plugins (spec.md §6).
type Source interface {
	Lifecycle
	SetSource(uri string) error
	SetCallback(cb SourceCallback)
	Read(buf *buffer.Buffer, length int) error
	GetSize() (int64, error)
	IsSeekable() bool
	SeekTo(offset int64) error
	GetAllocator() Allocator
}

// SourceCallback lets a Source report asynchronous events (buffering
// progress, connection loss) back to its owning filter.
type SourceCallback interface {
	OnBufferingUpdate(percent int)
}

// MediaInfo is the demuxer's parsed header summary (spec.md §6
// get_media_info).
type MediaInfo struct {
	DurationNs int64
	Tracks     []TrackInfo
}

// TrackInfo describes one elementary stream within a container.
type TrackInfo struct {
	Index int
	Kind  buffer.MetaType // audio or video
	Caps  caps.Capability
	Meta  *caps.Meta
}

// Demuxer is the consumed trait for demuxer plugins (spec.md §6).
type Demuxer interface {
	Lifecycle
	SetDataSource(src Source)
	GetMediaInfo() (MediaInfo, error)
	ReadFrame(buf *buffer.Buffer, timeout time.Duration) error
	SeekTo(track int, timeNs int64, mode SeekMode) error
	GetTrackCount() int
	SelectTrack(track int) error
	UnselectTrack(track int) error
}

// DataCallback is how an async Codec reports buffer completion back to
// its owning filter (spec.md §4.5, §6).
type DataCallback interface {
	OnInputBufferDone(buf *buffer.Buffer)
	OnOutputBufferDone(buf *buffer.Buffer)
}

// Codec is the consumed trait for codec (decoder/encoder) plugins
// (spec.md §6).
type Codec interface {
	Lifecycle
	Parameterized
	Flush() error
	SetDataCallback(cb DataCallback)
	QueueInputBuffer(buf *buffer.Buffer, timeout time.Duration) error
	QueueOutputBuffer(buf *buffer.Buffer, timeout time.Duration) error
	GetAllocator() Allocator
}

// AudioSink is the consumed trait for audio sink plugins (spec.md §6).
type AudioSink interface {
	Lifecycle
	Parameterized
	Pause() error
	Resume() error
	Flush() error
	Write(buf *buffer.Buffer) error
	SetVolume(v float64) error
	GetLatency() (time.Duration, error)
}

// VideoSink is the consumed trait for video sink plugins (spec.md §6).
type VideoSink interface {
	Lifecycle
	Parameterized
	Pause() error
	Resume() error
	Flush() error
	Write(buf *buffer.Buffer) error
	GetLatency() (time.Duration, error)
}

// Muxer is the consumed trait for the recorder path's muxer plugin
// (SPEC_FULL.md §4.9): multiple in-ports keyed by track id serialized to
// an OutputSink.
type Muxer interface {
	Lifecycle
	AddTrack(track int, c caps.Capability) error
	WriteSample(track int, buf *buffer.Buffer) error
	SetOutputSink(sink OutputSink)
}

// OutputSink owns the file-descriptor/output destination the muxer
// writes serialized bytes to.
type OutputSink interface {
	Lifecycle
	Write(p []byte) (int, error)
}

// Allocator is the minimal buffer-allocation surface a plugin may expose
// through GetAllocator, letting a filter allocate buffers matching the
// plugin's preferred memory type/capacity.
type Allocator interface {
	Allocate(capacity int) (*buffer.Buffer, error)
}
