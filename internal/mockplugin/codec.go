package mockplugin

import (
	"sync"
	"time"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// ScriptedCodec is a reference plugin.Codec whose QueueInputBuffer and
// QueueOutputBuffer calls can be scripted to return errors.ErrAgain a
// fixed number of times before succeeding, reproducing the async
// back-pressure scenario (spec.md §8 S6) without a real decoder.
type ScriptedCodec struct {
	mu     sync.Mutex
	params map[string]any
	cb     plugin.DataCallback

	inputAgainBudget  int
	outputAgainBudget int

	inputCalls    int
	inputConsumed int
}

// NewScriptedCodec creates a codec that returns CodeAgain inputAgain
// times from QueueInputBuffer and outputAgain times from
// QueueOutputBuffer before accepting.
func NewScriptedCodec(inputAgain, outputAgain int) *ScriptedCodec {
	return &ScriptedCodec{
		params:            make(map[string]any),
		inputAgainBudget:  inputAgain,
		outputAgainBudget: outputAgain,
	}
}

func (c *ScriptedCodec) Init() error    { return nil }
func (c *ScriptedCodec) Deinit() error  { return nil }
func (c *ScriptedCodec) Prepare() error { return nil }
func (c *ScriptedCodec) Start() error   { return nil }
func (c *ScriptedCodec) Stop() error    { return nil }
func (c *ScriptedCodec) Reset() error   { return nil }
func (c *ScriptedCodec) Flush() error   { return nil }

func (c *ScriptedCodec) GetParameter(tag string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.params[tag]
	if !ok {
		return nil, errors.New("mockplugin.ScriptedCodec.GetParameter", errors.CodeNotExisted, nil)
	}
	return v, nil
}

func (c *ScriptedCodec) SetParameter(tag string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params[tag] = value
	return nil
}

func (c *ScriptedCodec) SetDataCallback(cb plugin.DataCallback) { c.cb = cb }

func (c *ScriptedCodec) QueueInputBuffer(buf *buffer.Buffer, timeout time.Duration) error {
	c.mu.Lock()
	c.inputCalls++
	if c.inputAgainBudget > 0 {
		c.inputAgainBudget--
		c.mu.Unlock()
		return errors.ErrAgain
	}
	c.inputConsumed++
	c.mu.Unlock()
	if c.cb != nil {
		c.cb.OnInputBufferDone(buf)
	}
	return nil
}

// InputCalls reports how many times QueueInputBuffer was invoked,
// including attempts that returned ErrAgain (spec.md §8 S6).
func (c *ScriptedCodec) InputCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputCalls
}

// InputConsumed reports how many input buffers were actually accepted
// (as opposed to retried), used to assert S6's "consumed exactly once".
func (c *ScriptedCodec) InputConsumed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputConsumed
}

func (c *ScriptedCodec) QueueOutputBuffer(buf *buffer.Buffer, timeout time.Duration) error {
	c.mu.Lock()
	if c.outputAgainBudget > 0 {
		c.outputAgainBudget--
		c.mu.Unlock()
		return errors.ErrAgain
	}
	c.mu.Unlock()
	buf.Memory.Write(make([]byte, 1)) // mark the buffer non-empty so downstream sees a real frame
	if c.cb != nil {
		c.cb.OnOutputBufferDone(buf)
	}
	return nil
}

func (c *ScriptedCodec) GetAllocator() plugin.Allocator { return nil }
