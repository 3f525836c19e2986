package histreamer

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// RecorderOptions configures a Recorder's capture-side negotiation.
type RecorderOptions struct {
	// CaptureCap is the offer the capture source negotiates with the
	// encoder (e.g. caps.New("audio/pcm") or caps.New("video/raw")).
	CaptureCap caps.Capability
	// TrackID is the muxer track index this recorder's single branch
	// writes to (SPEC_FULL.md §4.9).
	TrackID int
	Output  plugin.OutputSink
	Logger  *slog.Logger
}

// Recorder wraps internal/fsm.Recorder together with the capture ->
// encoder -> muxer -> output-sink pipeline it owns.
type Recorder struct {
	*fsm.Recorder

	reg *registry.Registry
	pl  *pipeline.Pipeline
}

// Pipeline returns the underlying filter-graph pipeline, for
// introspection callers that need to walk its filters without driving
// capture themselves.
func (r *Recorder) Pipeline() *pipeline.Pipeline { return r.pl }

// NewRecorder builds a capture->encoder->muxer chain in a fresh
// pipeline (SPEC_FULL.md §4.9) and returns the FSM driving it. reg must
// already have a Source, Codec (encoder role), and Muxer plugin
// registered.
func NewRecorder(reg *registry.Registry, opts RecorderOptions, observer fsm.Observer) (*Recorder, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pl := pipeline.New(logger)

	captureID := nextFilterID("capture")
	encID := nextFilterID("encoder")
	muxID := nextFilterID("muxer")

	capture := filter.NewSource(captureID, "capture", reg, logger)
	enc := filter.NewEncoder(encID, "encoder", reg, logger)
	mux := filter.NewMuxer(muxID, "muxer", reg, logger)

	for _, f := range []filter.Filter{capture, enc, mux} {
		if err := pl.AddFilter(f); err != nil {
			return nil, err
		}
		if err := f.Init(); err != nil {
			return nil, fmt.Errorf("init %s: %w", f.Name(), err)
		}
	}

	if err := pl.LinkPorts(captureID, "out", encID, "in"); err != nil {
		return nil, err
	}

	captureCap := opts.CaptureCap
	if captureCap.MIME == "" {
		captureCap = caps.New("audio/pcm")
	}

	// The muxer's in-ports are added dynamically per track (spec.md §3
	// "Dynamic ports"), but AddTrackPort needs a plugin already adopted
	// to register the track against. Bootstrap that directly: Negotiate
	// picks and adopts a TypeMuxer plugin without requiring the track
	// port to exist yet (a terminal filter's DoNegotiate never cascades
	// further), then Configure adopts it onto the filter. The later
	// cascade from encoder->muxer (below) re-negotiates the same plugin
	// by name, which reuses it via Reset (spec.md §8 scenario S4) rather
	// than re-creating it.
	if _, err := mux.Negotiate("bootstrap", captureCap); err != nil {
		return nil, fmt.Errorf("bootstrap muxer plugin: %w", err)
	}
	if err := mux.Configure(caps.NewMeta()); err != nil {
		return nil, fmt.Errorf("configure muxer: %w", err)
	}
	mux.SetOutputSink(opts.Output)

	trackPort, err := mux.AddTrackPort(opts.TrackID, captureCap)
	if err != nil {
		return nil, fmt.Errorf("add track port: %w", err)
	}
	if err := pl.LinkPorts(encID, "out", muxID, trackPort); err != nil {
		return nil, err
	}

	// Negotiating from the capture source cascades source->encoder->muxer
	// in one pass now that every downstream port is linked.
	if _, err := pl.NegotiateFrom(captureID, "out", captureCap); err != nil {
		return nil, fmt.Errorf("negotiate capture->encoder->muxer: %w", err)
	}
	if err := pl.ConfigureFrom(captureID, caps.NewMeta()); err != nil {
		return nil, err
	}

	fr := fsm.NewRecorder(pl, captureID, muxID, observer, logger)

	return &Recorder{Recorder: fr, reg: reg, pl: pl}, nil
}
