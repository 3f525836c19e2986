package fsm

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// RecorderState is one of the states in SPEC_FULL.md §4.9's Recorder
// transition table (symmetric to the Player FSM).
type RecorderState int

const (
	RecorderInit RecorderState = iota
	RecorderPreparing
	RecorderReady
	RecorderRecording
	RecorderPaused
	RecorderStopped
)

func (s RecorderState) String() string {
	switch s {
	case RecorderPreparing:
		return "preparing"
	case RecorderReady:
		return "ready"
	case RecorderRecording:
		return "recording"
	case RecorderPaused:
		return "paused"
	case RecorderStopped:
		return "stopped"
	default:
		return "init"
	}
}

// Recorder drives the Recorder FSM (SPEC_FULL.md §4.9) over a capture
// (source) -> encoder -> muxer -> output-sink pipeline.
type Recorder struct {
	mu    sync.RWMutex
	state RecorderState

	pipeline *pipeline.Pipeline
	sourceID string
	muxerID  string

	observer Observer
	eng      *engine
	logger   *slog.Logger
}

// NewRecorder creates a Recorder over pl, whose SET_OUTPUT intent
// configures the filter named muxerID.
func NewRecorder(pl *pipeline.Pipeline, sourceID, muxerID string, observer Observer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		pipeline: pl,
		sourceID: sourceID,
		muxerID:  muxerID,
		observer: observer,
		logger:   logger.With(slog.String("component", "fsm.recorder")),
	}
	r.eng = newEngine("recorder", 8, logger, r.handle)
	pl.SetObserver(pipeline.ObserverFunc(r.onPipelineEvent))
	return r
}

func (r *Recorder) State() RecorderState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Recorder) SetOutput(sink plugin.OutputSink) error { return r.eng.sync("SET_OUTPUT", sink) }
func (r *Recorder) Prepare(ctx context.Context) error     { return r.eng.sync("PREPARE", ctx) }
func (r *Recorder) Start() error                          { return r.eng.sync("START", nil) }
func (r *Recorder) Pause() error                          { return r.eng.sync("PAUSE", nil) }
func (r *Recorder) Resume() error                         { return r.eng.sync("RESUME", nil) }
func (r *Recorder) Stop() error                            { return r.eng.sync("STOP", nil) }

// Close tears down the FSM's intent worker.
func (r *Recorder) Close() { r.eng.stop() }

// outputSinkSetter matches filter.Muxer's SetOutputSink method, kept as
// a narrow interface here to avoid a direct dependency on the concrete
// filter.Muxer type.
type outputSinkSetter interface {
	SetOutputSink(sink plugin.OutputSink)
}

func (r *Recorder) setState(s RecorderState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	dispatch(r.observer, func(o Observer) { o.OnInfo(InfoStateChange, s) })
}

func (r *Recorder) onPipelineEvent(filterID string, ev filter.Event) {
	switch ev.Kind {
	case filter.EventReady:
		if filterID == r.sourceID {
			r.eng.async("NOTIFY_READY", nil)
		}
	case filter.EventRecordComplete:
		r.eng.async("NOTIFY_COMPLETE", nil)
	case filter.EventError:
		r.eng.async("NOTIFY_ERROR", ev.Err)
	}
}

func (r *Recorder) handle(it intent) error {
	state := r.State()

	switch it.name {
	case "SET_OUTPUT":
		if state != RecorderInit {
			return errors.ErrWrongState
		}
		muxFilter, ok := r.pipeline.Filter(r.muxerID)
		if !ok {
			return errors.New("fsm.Recorder.SET_OUTPUT", errors.CodeNotExisted, nil)
		}
		setter, ok := muxFilter.(outputSinkSetter)
		if !ok {
			return errors.New("fsm.Recorder.SET_OUTPUT", errors.CodeInvalidOperation, nil)
		}
		sink, _ := it.arg.(plugin.OutputSink)
		setter.SetOutputSink(sink)
		return nil

	case "PREPARE":
		if state != RecorderInit {
			return errors.ErrWrongState
		}
		r.setState(RecorderPreparing)
		go r.runPrepare()
		return nil

	case "NOTIFY_READY":
		if state != RecorderPreparing {
			return errors.ErrWrongState
		}
		r.setState(RecorderReady)
		return nil

	case "NOTIFY_ERROR":
		err, _ := it.arg.(error)
		dispatch(r.observer, func(o Observer) { o.OnError(errors.CodeOf(err)) })
		if state == RecorderPreparing {
			r.setState(RecorderInit)
			return nil
		}
		return err

	case "START":
		if state != RecorderReady && state != RecorderPaused {
			return errors.ErrWrongState
		}
		if err := r.pipeline.Start(); err != nil {
			return err
		}
		r.setState(RecorderRecording)
		return nil

	case "PAUSE":
		if state != RecorderRecording {
			return errors.ErrWrongState
		}
		if err := r.pipeline.Pause(); err != nil {
			return err
		}
		r.setState(RecorderPaused)
		return nil

	case "RESUME":
		if state != RecorderPaused {
			return errors.ErrWrongState
		}
		if err := r.pipeline.Resume(); err != nil {
			return err
		}
		r.setState(RecorderRecording)
		return nil

	case "NOTIFY_COMPLETE":
		dispatch(r.observer, func(o Observer) { o.OnInfo(InfoRecordComplete, nil) })
		return r.handle(syncIntent("STOP", nil))

	case "STOP":
		if err := r.pipeline.Stop(); err != nil {
			return err
		}
		r.setState(RecorderStopped)
		return nil

	default:
		return errors.New("fsm.Recorder.handle", errors.CodeUnimplemented, nil)
	}
}

func (r *Recorder) runPrepare() {
	if err := r.pipeline.Prepare(context.Background()); err != nil {
		r.eng.async("NOTIFY_ERROR", err)
		return
	}
	r.eng.async("NOTIFY_READY", nil)
}
