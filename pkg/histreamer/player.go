// Package histreamer is the public façade over the engine's internal
// packages: building a Player or Recorder here wires a registry, a
// pipeline, and the filter chain the FSM drives, so callers never touch
// internal/pipeline or internal/filter directly (spec.md §6 "External
// interfaces").
package histreamer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// PlayerOptions configures a Player's source-side negotiation.
type PlayerOptions struct {
	// SourceCap is the offer the source's out-port negotiates with the
	// demuxer (e.g. caps.New("video/mpegts") or caps.New("video/mp4")).
	// Real deployments would sniff this from the URI; callers of this
	// façade supply it directly since sniffing is out of scope here.
	SourceCap caps.Capability
	Loop      bool
	Logger    *slog.Logger
}

// Player wraps internal/fsm.Player together with the pipeline and
// registry it owns, so Close releases everything in one call.
type Player struct {
	*fsm.Player

	reg *registry.Registry
	pl  *pipeline.Pipeline
}

// Pipeline returns the underlying filter-graph pipeline, for
// introspection callers (e.g. the HTTP graph endpoint) that need to
// walk its filters without driving playback themselves.
func (p *Player) Pipeline() *pipeline.Pipeline { return p.pl }

var filterSeq int64

func nextFilterID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, atomic.AddInt64(&filterSeq, 1))
}

// NewPlayer builds a source->demux chain in a fresh pipeline, registers
// a ChainBuilder that adds a decoder+sink pair per track the demuxer
// discovers, and returns the FSM driving it. reg must already have a
// Source and at least one Demuxer plugin registered (spec.md §4.3).
func NewPlayer(reg *registry.Registry, opts PlayerOptions, observer fsm.Observer) (*Player, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pl := pipeline.New(logger)

	srcID := nextFilterID("source")
	demuxID := nextFilterID("demux")

	src := filter.NewSource(srcID, "source", reg, logger)
	demux := filter.NewDemux(demuxID, "demux", reg, logger)

	if err := pl.AddFilter(src); err != nil {
		return nil, err
	}
	if err := pl.AddFilter(demux); err != nil {
		return nil, err
	}
	if err := src.Init(); err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	if err := demux.Init(); err != nil {
		return nil, fmt.Errorf("init demux: %w", err)
	}
	if err := pl.LinkPorts(srcID, "out", demuxID, "in"); err != nil {
		return nil, err
	}

	sourceCap := opts.SourceCap
	if sourceCap.MIME == "" {
		sourceCap = caps.New("application/octet-stream")
	}
	if _, err := pl.NegotiateFrom(srcID, "out", sourceCap); err != nil {
		return nil, fmt.Errorf("negotiate source->demux: %w", err)
	}
	if err := pl.ConfigureFrom(srcID, caps.NewMeta()); err != nil {
		return nil, fmt.Errorf("configure source->demux: %w", err)
	}

	build := func(pl *pipeline.Pipeline, demuxID string, track plugin.TrackInfo) error {
		return buildPlaybackChain(pl, reg, demuxID, track, logger)
	}

	fp := fsm.NewPlayer(pl, srcID, demuxID, build, observer, logger)
	fp.SetLoop(opts.Loop)

	return &Player{Player: fp, reg: reg, pl: pl}, nil
}

// buildPlaybackChain is the default ChainBuilder (spec.md §8 S5
// "Dynamic port wiring"): add a decoder wired to the named track's
// out-port, and an audio or video sink wired off the decoder, then
// negotiate/Init/Prepare the new branch since the pipeline's static
// Prepare pass already ran (see fsm.ChainBuilder's doc comment).
func buildPlaybackChain(pl *pipeline.Pipeline, reg *registry.Registry, demuxID string, track plugin.TrackInfo, logger *slog.Logger) error {
	demuxFilter, ok := pl.Filter(demuxID)
	if !ok {
		return fmt.Errorf("buildPlaybackChain: demux %q not found", demuxID)
	}
	portName := fmt.Sprintf("track-%d", track.Index)
	if _, ok := demuxFilter.OutPort(portName); !ok {
		return fmt.Errorf("buildPlaybackChain: demux has no out-port %q", portName)
	}

	decID := nextFilterID("decoder")
	dec := filter.NewDecoder(decID, "decoder-"+portName, reg, logger)
	if err := pl.AddFilter(dec); err != nil {
		return err
	}
	if err := dec.Init(); err != nil {
		return err
	}
	if err := pl.LinkPorts(demuxID, portName, decID, "in"); err != nil {
		return err
	}

	var sink filter.Filter
	sinkID := nextFilterID("sink")
	if track.Kind == buffer.MetaAudio {
		sink = filter.NewAudioSink(sinkID, "sink-"+portName, reg, logger)
	} else {
		sink = filter.NewVideoSink(sinkID, "sink-"+portName, reg, logger)
	}
	if err := pl.AddFilter(sink); err != nil {
		return err
	}
	if err := sink.Init(); err != nil {
		return err
	}
	if err := pl.LinkPorts(decID, "out", sinkID, "in"); err != nil {
		return err
	}

	if _, err := pl.NegotiateFrom(demuxID, portName, track.Caps); err != nil {
		return fmt.Errorf("negotiate %s->%s: %w", demuxID, decID, err)
	}
	if err := pl.ConfigureFrom(demuxID, caps.NewMeta()); err != nil {
		return err
	}

	if err := dec.Prepare(context.Background()); err != nil {
		return err
	}
	if err := sink.Prepare(context.Background()); err != nil {
		return err
	}
	return nil
}
