package filter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
	"github.com/jmylchreest/histreamer/internal/queue"
	"github.com/jmylchreest/histreamer/internal/registry"
	"github.com/jmylchreest/histreamer/internal/task"
)

const (
	codecInPort  = "in"
	codecOutPort = "out"

	codecQueueDepth = 8
	codecPoolDepth  = 8
	codecBufCap     = 1 << 20
)

// Codec implements spec.md §4.5's Decoder (and, symmetrically, Encoder)
// async pump: three cooperating Tasks drive the negotiated Codec plugin
// without blocking on each other, matching the original engine's
// handle-frame / decode-frame / finish-frame split (grounded on
// original_source/engine/pipeline/filters/codec/async_mode.cpp).
//
//   - handleFrame pops an inbound buffer and calls QueueInputBuffer;
//     on CodeAgain it waits on needInput rather than busy-spinning, woken
//     by OnInputBufferDone or OnOutputBufferDone (spec.md §8 scenario S6 "Back-pressure
//     correctness").
//   - decodeFrame allocates an output buffer from outPool and calls
//     QueueOutputBuffer, handing the plugin somewhere to render into.
//   - finishFrame pops a completed buffer off the render queue (filled by
//     OnOutputBufferDone) and pushes it downstream.
type Codec struct {
	*Base

	reg  *registry.Registry
	plug plugin.Codec

	inQueue *queue.BlockingQueue[*buffer.Buffer]
	outPool *buffer.Pool
	render  *queue.BlockingQueue[*buffer.Buffer]

	handleFrameTask *task.Task
	decodeFrameTask *task.Task
	pushTask        *task.Task

	mu            sync.Mutex
	needInputCond *sync.Cond
	needInput     bool
}

// NewDecoder creates a Codec filter in the Decoder role (negotiates a
// TypeCodec plugin whose declared in_caps match the upstream's
// compressed format).
func NewDecoder(id, name string, reg *registry.Registry, logger *slog.Logger) *Codec {
	return newCodec(id, name, "decoder", reg, logger)
}

// NewEncoder creates a Codec filter in the Encoder role for the recorder
// path (SPEC_FULL.md §4.9); the engine-level plumbing is identical to
// the Decoder, only the negotiated plugin's in/out capability domains
// differ (raw samples in, compressed bitstream out).
func NewEncoder(id, name string, reg *registry.Registry, logger *slog.Logger) *Codec {
	return newCodec(id, name, "encoder", reg, logger)
}

func newCodec(id, name, kind string, reg *registry.Registry, logger *slog.Logger) *Codec {
	b := NewBaseWithLogger(id, name, kind, reg, plugin.TypeCodec, []string{"bitrate", "channels", "sample-rate", "pixel-format", "width", "height"}, logger)
	c := &Codec{
		Base:    b,
		reg:     reg,
		inQueue: queue.New[*buffer.Buffer](name+"-in", codecQueueDepth),
		render:  queue.New[*buffer.Buffer](name+"-render", codecQueueDepth),
	}
	c.needInputCond = sync.NewCond(&c.mu)
	c.AddInPort(codecInPort, port.ModePush)
	c.AddOutPort(codecOutPort, port.ModePush, caps.New("application/octet-stream"))
	return c
}

func (c *Codec) Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error) {
	return c.DoNegotiate(NegotiateParams{InPort: codecInPort, OutPort: codecOutPort}, offer)
}

func (c *Codec) Configure(meta *caps.Meta) error {
	if plug, ok := c.Plugin().(plugin.Codec); ok && c.plug == nil {
		c.plug = plug
		c.plug.SetDataCallback(c)
	}
	return c.Base.Configure(codecOutPort, meta)
}

func (c *Codec) Prepare(ctx context.Context) error {
	if c.plug == nil {
		return errors.New("codec.Prepare", errors.CodeWrongState, nil)
	}
	if err := c.plug.Prepare(); err != nil {
		return errors.New("codec.Prepare", errors.CodeUnknown, err)
	}
	c.outPool = buffer.NewPoolWithLogger(codecPoolDepth, buffer.MemoryVirtual, buffer.MetaGeneric, codecBufCap, c.Logger())
	c.inQueue.SetActive(true)
	c.render.SetActive(true)
	c.handleFrameTask = task.NewWithLogger(c.Name()+"-handle", c.handleFrame, c.Logger())
	c.decodeFrameTask = task.NewWithLogger(c.Name()+"-decode", c.decodeFrame, c.Logger())
	c.pushTask = task.NewWithLogger(c.Name()+"-push", c.finishFrame, c.Logger())
	return c.Base.Prepare(ctx)
}

func (c *Codec) Start() error {
	if err := c.Base.Start(); err != nil {
		return err
	}
	if err := c.plug.Start(); err != nil {
		return errors.New("codec.Start", errors.CodeUnknown, err)
	}
	c.handleFrameTask.Start()
	c.decodeFrameTask.Start()
	c.pushTask.Start()
	return nil
}

func (c *Codec) Stop() error {
	if c.handleFrameTask != nil {
		c.handleFrameTask.Stop()
	}
	if c.decodeFrameTask != nil {
		c.decodeFrameTask.Stop()
	}
	if c.pushTask != nil {
		c.pushTask.Stop()
	}
	c.inQueue.SetActive(false)
	c.render.SetActive(false)
	if c.outPool != nil {
		c.outPool.SetActive(false)
	}
	if c.plug != nil {
		_ = c.plug.Stop()
	}
	return c.Base.Stop()
}

func (c *Codec) Pause() error {
	c.handleFrameTask.Pause()
	c.decodeFrameTask.Pause()
	c.pushTask.Pause()
	return c.Base.Pause()
}

func (c *Codec) Resume() error {
	if err := c.Base.Resume(); err != nil {
		return err
	}
	c.handleFrameTask.Start()
	c.decodeFrameTask.Start()
	c.pushTask.Start()
	return nil
}

// FlushStart pauses the pump and flushes the plugin and internal queues
// (spec.md §4.5 "FlushStart/FlushEnd"); buffers in flight are dropped.
func (c *Codec) FlushStart() error {
	c.handleFrameTask.Pause()
	c.decodeFrameTask.Pause()
	c.pushTask.Pause()
	if c.plug != nil {
		_ = c.plug.Flush()
	}
	c.inQueue.SetActive(false)
	c.render.SetActive(false)
	c.inQueue.SetActive(true)
	c.render.SetActive(true)
	return c.Base.FlushStart()
}

func (c *Codec) FlushEnd() error {
	if err := c.Base.FlushEnd(); err != nil {
		return err
	}
	c.handleFrameTask.Start()
	c.decodeFrameTask.Start()
	c.pushTask.Start()
	return nil
}

// PushData enqueues an inbound compressed (or, for an Encoder, raw)
// buffer for handleFrame to drain.
func (c *Codec) PushData(inPortName string, buf *buffer.Buffer) error {
	return c.inQueue.Push(buf.Retain())
}

// handleFrame is the handleFrameTask body: pop one inbound buffer and
// hand it to the plugin, retrying on CodeAgain by waiting on needInput
// rather than busy-spinning (S6).
func (c *Codec) handleFrame() {
	buf, ok := c.inQueue.PopTimeout(100 * time.Millisecond)
	if !ok {
		return
	}
	defer buf.Release()

	// An EOS marker carries no payload for the plugin to decode; forward
	// it directly rather than routing it through QueueInputBuffer, since
	// the plugin trait has no concept of a control buffer.
	if buf.Flags.Has(buffer.FlagEOS) {
		c.pushEOS()
		return
	}

	for {
		err := c.plug.QueueInputBuffer(buf, 50*time.Millisecond)
		if err == nil {
			return
		}
		if errors.IsBackPressure(err) {
			c.waitNeedInput()
			continue
		}
		c.Logger().Warn("queue input buffer failed", slog.Any("err", err))
		return
	}
}

// pushEOS forwards an end-of-stream marker downstream without involving
// the plugin, so a Sink at the end of this chain still observes FlagEOS
// even though the Codec stage doesn't otherwise carry flags from its
// input buffers to its plugin-rendered output buffers.
func (c *Codec) pushEOS() {
	eos := buffer.New(buffer.MemoryVirtual, 0, buffer.MetaGeneric)
	eos.Flags |= buffer.FlagEOS
	if err := c.PushDownstream(codecOutPort, eos); err != nil {
		c.Logger().Debug("codec eos push failed", slog.Any("err", err))
	}
	eos.Release()
}

func (c *Codec) waitNeedInput() {
	c.mu.Lock()
	for !c.needInput {
		c.needInputCond.Wait()
	}
	c.needInput = false
	c.mu.Unlock()
}

// decodeFrame is the decodeFrameTask body: allocate an output buffer and
// offer it to the plugin to render into.
func (c *Codec) decodeFrame() {
	buf, err := c.outPool.Allocate(nil, 100*time.Millisecond)
	if err != nil {
		return
	}
	if err := c.plug.QueueOutputBuffer(buf, 50*time.Millisecond); err != nil {
		buf.Release()
		if !errors.IsBackPressure(err) {
			c.Logger().Warn("queue output buffer failed", slog.Any("err", err))
		}
	}
}

// finishFrame is the pushTask body: drain a completed output buffer from
// the render queue and push it downstream.
func (c *Codec) finishFrame() {
	buf, ok := c.render.PopTimeout(100 * time.Millisecond)
	if !ok {
		return
	}
	defer buf.Release()
	if err := c.PushDownstream(codecOutPort, buf); err != nil {
		c.Logger().Debug("codec push failed", slog.Any("err", err))
	}
}

// OnInputBufferDone implements plugin.DataCallback: the plugin has
// consumed (or released) an input buffer, so handleFrame may retry a
// previously-backpressured QueueInputBuffer call.
func (c *Codec) OnInputBufferDone(buf *buffer.Buffer) {
	buf.Release()
	c.mu.Lock()
	c.needInput = true
	c.mu.Unlock()
	c.needInputCond.Broadcast()
}

// OnOutputBufferDone implements plugin.DataCallback: the plugin has
// finished rendering into buf. Freeing an output slot also frees an
// input slot on most codec implementations, so this wakes handleFrame
// the same way OnInputBufferDone does (spec.md §8 scenario S6: "retry
// after each on_output_buffer_done callback").
func (c *Codec) OnOutputBufferDone(buf *buffer.Buffer) {
	if err := c.render.Push(buf); err != nil {
		buf.Release()
	}
	c.mu.Lock()
	c.needInput = true
	c.mu.Unlock()
	c.needInputCond.Broadcast()
}
