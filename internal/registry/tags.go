package registry

import "fmt"

// TagDescriptor is one entry in the global tag descriptor table: a
// symbolic name, a default value used purely for type comparison, and a
// human-readable type name (spec.md §4.3, §6). set_parameter rejects any
// value whose runtime type does not match the descriptor's default type.
type TagDescriptor struct {
	Name     string
	Default  any
	TypeName string
}

// Recognized configuration tags (spec.md §6, selection).
const (
	TagMIME                 = "MIME"
	TagTrackID              = "TRACK_ID"
	TagRequiredOutBufferCnt = "REQUIRED_OUT_BUFFER_CNT"
	TagBufferAllocator      = "BUFFER_ALLOCATOR"
	TagBufferingSize        = "BUFFERING_SIZE"
	TagWaterlineHigh        = "WATERLINE_HIGH"
	TagWaterlineLow         = "WATERLINE_LOW"
	TagMediaDuration        = "MEDIA_DURATION"
	TagMediaFileSize        = "MEDIA_FILE_SIZE"
	TagMediaBitrate         = "MEDIA_BITRATE"
	TagMediaCodecConfig     = "MEDIA_CODEC_CONFIG"
	TagAudioChannels        = "AUDIO_CHANNELS"
	TagAudioSampleRate      = "AUDIO_SAMPLE_RATE"
	TagAudioSampleFormat    = "AUDIO_SAMPLE_FORMAT"
	TagAudioChannelLayout   = "AUDIO_CHANNEL_LAYOUT"
	TagAudioSamplePerFrame  = "AUDIO_SAMPLE_PER_FRAME"
	TagAudioAACProfile      = "AUDIO_AAC_PROFILE"
	TagAudioAACLevel        = "AUDIO_AAC_LEVEL"
	TagAudioAACStreamFormat = "AUDIO_AAC_STREAM_FORMAT"
	TagVideoWidth           = "VIDEO_WIDTH"
	TagVideoHeight          = "VIDEO_HEIGHT"
	TagVideoPixelFormat     = "VIDEO_PIXEL_FORMAT"
	TagVideoFrameRate       = "VIDEO_FRAME_RATE"
	TagVideoSurface         = "VIDEO_SURFACE"
	TagVideoMaxSurfaceNum   = "VIDEO_MAX_SURFACE_NUM"
)

// tagInfoMap is the global, process-wide, append-only tag descriptor
// table (spec.md §4.3, §9 "Global state"). It is populated once at
// package init and never mutated afterward.
var tagInfoMap = map[string]TagDescriptor{
	TagMIME:                 {"mime", "", "string"},
	TagTrackID:              {"track_id", uint32(0), "uint32"},
	TagRequiredOutBufferCnt: {"req_out_buf_cnt", uint32(0), "uint32"},
	TagBufferAllocator:      {"buf_allocator", nil, "Allocator"},
	TagBufferingSize:        {"bufing_size", uint32(0), "uint32"},
	TagWaterlineHigh:        {"waterline_h", uint32(0), "uint32"},
	TagWaterlineLow:         {"waterline_l", uint32(0), "uint32"},
	TagMediaDuration:        {"duration", int64(0), "int64"},
	TagMediaFileSize:        {"file_size", uint64(0), "uint64"},
	TagMediaBitrate:         {"bit_rate", int64(0), "int64"},
	TagMediaCodecConfig:     {"codec_config", []byte(nil), "[]byte"},
	TagAudioChannels:        {"channels", uint32(0), "uint32"},
	TagAudioSampleRate:      {"sample_rate", uint32(0), "uint32"},
	TagAudioSampleFormat:    {"sample_fmt", "", "string"},
	TagAudioChannelLayout:   {"channel_layout", "", "string"},
	TagAudioSamplePerFrame:  {"sample_per_frame", uint32(0), "uint32"},
	TagAudioAACProfile:      {"aac_profile", "", "string"},
	TagAudioAACLevel:        {"aac_level", uint32(0), "uint32"},
	TagAudioAACStreamFormat: {"aac_stm_fmt", "", "string"},
	TagVideoWidth:           {"vd_w", uint32(0), "uint32"},
	TagVideoHeight:          {"vd_h", uint32(0), "uint32"},
	TagVideoPixelFormat:     {"pixel_fmt", "", "string"},
	TagVideoFrameRate:       {"frm_rate", uint32(0), "uint32"},
	TagVideoSurface:         {"surface", nil, "Surface"},
	TagVideoMaxSurfaceNum:   {"surface_num", uint32(0), "uint32"},
}

// DescriptorFor looks up the descriptor for tag, ok=false if unrecognized.
func DescriptorFor(tag string) (TagDescriptor, bool) {
	d, ok := tagInfoMap[tag]
	return d, ok
}

// CheckType validates that value's runtime type matches tag's declared
// default type (spec.md §6: "Setting a tag whose declared type does not
// match the supplied value is rejected with ERROR_INVALID_PARAMETER_TYPE").
// An unrecognized tag or a nil-typed descriptor (opaque handles such as
// allocators/surfaces) always passes, since there is nothing to compare.
func CheckType(tag string, value any) error {
	d, ok := DescriptorFor(tag)
	if !ok {
		return nil
	}
	if d.Default == nil {
		return nil
	}
	wantType := fmt.Sprintf("%T", d.Default)
	gotType := fmt.Sprintf("%T", value)
	if wantType != gotType {
		return fmt.Errorf("tag %s expects %s, got %s", tag, wantType, gotType)
	}
	return nil
}
