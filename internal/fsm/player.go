package fsm

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// PlayerState is one of the states in spec.md §4.8's Player transition
// table.
type PlayerState int

const (
	PlayerInit PlayerState = iota
	PlayerPreparing
	PlayerReady
	PlayerPlaying
	PlayerPaused
	PlayerSeeking
	PlayerStopped
	PlayerEos
)

func (s PlayerState) String() string {
	switch s {
	case PlayerPreparing:
		return "preparing"
	case PlayerReady:
		return "ready"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerSeeking:
		return "seeking"
	case PlayerStopped:
		return "stopped"
	case PlayerEos:
		return "eos"
	default:
		return "init"
	}
}

// ChainBuilder adds the decode/sink filters for a demuxer track and
// links them into pl, once per track discovered during Prepare (spec.md
// §4.8 "build upstream chain"). It is supplied by whatever composed the
// pipeline, since only the caller knows which codec/sink plugins to
// prefer for a given track kind. Because these filters are added after
// pl.Prepare has already run its static topology pass, the builder is
// responsible for negotiating and calling Init/Prepare (and Start, if
// the pipeline is already running) on whatever it adds.
type ChainBuilder func(pl *pipeline.Pipeline, demuxID string, track plugin.TrackInfo) error

// Player drives the Player FSM (spec.md §4.8) over a Pipeline it owns
// the observer registration for.
type Player struct {
	mu       sync.RWMutex
	state    PlayerState
	loop     bool
	lastErr  error

	pipeline *pipeline.Pipeline
	sourceID string
	demuxID  string
	build    ChainBuilder

	observer Observer
	eng      *engine
	logger   *slog.Logger
}

// NewPlayer creates a Player over pl, whose SET_SOURCE intent drives the
// filter named sourceID and whose discovered tracks are chained via
// build.
func NewPlayer(pl *pipeline.Pipeline, sourceID, demuxID string, build ChainBuilder, observer Observer, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		pipeline: pl,
		sourceID: sourceID,
		demuxID:  demuxID,
		build:    build,
		observer: observer,
		logger:   logger.With(slog.String("component", "fsm.player")),
	}
	p.eng = newEngine("player", 8, logger, p.handle)
	pl.SetObserver(pipeline.ObserverFunc(p.onPipelineEvent))
	return p
}

// State returns the player's current state.
func (p *Player) State() PlayerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetLoop controls whether NOTIFY_COMPLETE re-seeks to zero (true) or
// stops the pipeline (false), per spec.md §4.8's Playing/NOTIFY_COMPLETE
// row.
func (p *Player) SetLoop(loop bool) {
	p.mu.Lock()
	p.loop = loop
	p.mu.Unlock()
}

func (p *Player) SetSource(uri string) error    { return p.eng.sync("SET_SOURCE", uri) }
func (p *Player) Prepare(ctx context.Context) error { return p.eng.sync("PREPARE", ctx) }
func (p *Player) Play() error                   { return p.eng.sync("PLAY", nil) }
func (p *Player) Pause() error                  { return p.eng.sync("PAUSE", nil) }
func (p *Player) Resume() error                 { return p.eng.sync("RESUME", nil) }
func (p *Player) Stop() error                   { return p.eng.sync("STOP", nil) }
func (p *Player) Seek(timeMs int64) error       { return p.eng.sync("SEEK", timeMs) }

// Close tears down the FSM's intent worker. The pipeline itself is the
// caller's to dispose of.
func (p *Player) Close() { p.eng.stop() }

func (p *Player) setState(s PlayerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	dispatch(p.observer, func(o Observer) { o.OnInfo(InfoStateChange, s) })
}

func (p *Player) onPipelineEvent(filterID string, ev filter.Event) {
	switch ev.Kind {
	case filter.EventPortAdded:
		if filterID == p.demuxID {
			for _, pd := range ev.Ports {
				p.eng.async("BUILD_CHAIN", pd)
			}
		}
	case filter.EventReady:
		if filterID == p.demuxID {
			p.eng.async("NOTIFY_READY", nil)
		}
	case filter.EventAudioComplete, filter.EventVideoComplete:
		p.eng.async("NOTIFY_COMPLETE", nil)
	case filter.EventError:
		p.eng.async("NOTIFY_ERROR", ev.Err)
	}
}

// handle implements the transition table in spec.md §4.8. It always
// runs on the engine's single worker goroutine.
func (p *Player) handle(it intent) error {
	state := p.State()

	switch it.name {
	case "SET_SOURCE":
		if state != PlayerInit && state != PlayerStopped {
			return errors.ErrWrongState
		}
		uri, _ := it.arg.(string)
		src, ok := p.pipeline.Filter(p.sourceID)
		if !ok {
			return errors.New("fsm.Player.SET_SOURCE", errors.CodeNotExisted, nil)
		}
		type sourceSetter interface{ SetSource(uri string) error }
		if setter, ok := src.(sourceSetter); ok {
			if err := setter.SetSource(uri); err != nil {
				return err
			}
		}
		return nil

	case "PREPARE":
		if state != PlayerInit && state != PlayerStopped {
			return errors.ErrWrongState
		}
		p.setState(PlayerPreparing)
		go p.runPrepare()
		return nil

	case "BUILD_CHAIN":
		pd, _ := it.arg.(filter.PortDescriptor)
		if p.build != nil {
			if err := p.build(p.pipeline, p.demuxID, trackInfoFromPort(pd)); err != nil {
				p.logger.Warn("chain builder failed", slog.String("port", pd.Name), slog.Any("err", err))
			}
		}
		return nil

	case "NOTIFY_READY":
		if state != PlayerPreparing {
			return errors.ErrWrongState
		}
		p.setState(PlayerReady)
		return nil

	case "NOTIFY_ERROR":
		err, _ := it.arg.(error)
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		dispatch(p.observer, func(o Observer) { o.OnError(errors.CodeOf(err)) })
		if state == PlayerPreparing {
			p.setState(PlayerInit)
			return nil
		}
		return err

	case "PLAY":
		if state != PlayerReady && state != PlayerPaused {
			return errors.ErrWrongState
		}
		if err := p.pipeline.Start(); err != nil {
			return err
		}
		p.setState(PlayerPlaying)
		return nil

	case "PAUSE":
		if state != PlayerPlaying {
			return errors.ErrWrongState
		}
		if err := p.pipeline.Pause(); err != nil {
			return err
		}
		p.setState(PlayerPaused)
		return nil

	case "RESUME":
		if state != PlayerPaused {
			return errors.ErrWrongState
		}
		if err := p.pipeline.Resume(); err != nil {
			return err
		}
		p.setState(PlayerPlaying)
		return nil

	case "SEEK":
		if state != PlayerPlaying && state != PlayerPaused {
			return errors.ErrWrongState
		}
		prior := state
		p.setState(PlayerSeeking)
		if err := p.pipeline.FlushStart(); err != nil {
			return err
		}
		ms, _ := it.arg.(int64)
		if demuxFilter, ok := p.pipeline.Filter(p.demuxID); ok {
			if seeker, ok := demuxFilter.(demuxSeeker); ok {
				if err := seeker.SeekTo(ms*int64(1e6), plugin.SeekClosestSync); err != nil {
					return err
				}
			}
		}
		if err := p.pipeline.FlushEnd(); err != nil {
			return err
		}
		p.setState(prior)
		dispatch(p.observer, func(o Observer) { o.OnInfo(InfoSeekDone, ms) })
		return nil

	case "NOTIFY_COMPLETE":
		if state != PlayerPlaying {
			return nil
		}
		p.mu.RLock()
		loop := p.loop
		p.mu.RUnlock()
		dispatch(p.observer, func(o Observer) { o.OnInfo(InfoEOS, nil) })
		if loop {
			return p.handle(syncIntent("SEEK", int64(0)))
		}
		p.setState(PlayerEos)
		return p.handle(syncIntent("STOP", nil))

	case "STOP":
		if err := p.pipeline.Stop(); err != nil {
			return err
		}
		p.setState(PlayerStopped)
		return nil

	default:
		return errors.New("fsm.Player.handle", errors.CodeUnimplemented, nil)
	}
}

func (p *Player) runPrepare() {
	if err := p.pipeline.Prepare(context.Background()); err != nil {
		p.eng.async("NOTIFY_ERROR", err)
		return
	}
	p.eng.async("NOTIFY_READY", nil)
}

// trackInfoFromPort recovers the plugin.TrackInfo a demuxer's dynamic
// out-port was added for. Demux names out-ports "track-<index>" (spec.md
// §3 "Dynamic ports"); the media kind isn't carried on PortDescriptor, so
// it's inferred from the negotiated capability's MIME top-level type.
func trackInfoFromPort(pd filter.PortDescriptor) plugin.TrackInfo {
	idx := 0
	if n, err := strconv.Atoi(strings.TrimPrefix(pd.Name, "track-")); err == nil {
		idx = n
	}
	kind := buffer.MetaGeneric
	switch {
	case strings.HasPrefix(pd.Caps.MIME, "audio/"):
		kind = buffer.MetaAudio
	case strings.HasPrefix(pd.Caps.MIME, "video/"):
		kind = buffer.MetaVideo
	}
	return plugin.TrackInfo{Index: idx, Kind: kind, Caps: pd.Caps}
}

type demuxSeeker interface {
	SeekTo(timeNs int64, mode plugin.SeekMode) error
}
