// Package filter implements FilterBase and the concrete filter contracts
// of spec.md §3 ("Filter") and §4.5: lifecycle, event routing, dynamic
// out-port emission, and the Source/Demuxer/Decoder/Sink/Encoder/Muxer
// specializations. Concrete filter kinds are modeled as small structs
// embedding Base and overriding only what they need (spec.md §9
// "Dynamic dispatch": a shared capability plus a small match, not an
// inheritance tree).
package filter

import (
	"context"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/port"
)

// State is a filter's lifecycle state (spec.md §3, §4.5).
type State int

const (
	StateCreated State = iota
	StateInitialized
	StatePreparing
	StateReady
	StateRunning
	StatePaused
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateFlushing:
		return "flushing"
	default:
		return "created"
	}
}

// EventKind enumerates the callbacks a filter can raise to the pipeline
// (spec.md §4.5, §4.7).
type EventKind int

const (
	EventPortAdded EventKind = iota
	EventPortRemoved
	EventError
	EventAudioComplete
	EventVideoComplete
	EventReady
	EventRecordComplete
)

// PortDescriptor describes a dynamically-added port, delivered with a
// PORT_ADDED event (spec.md §3 "Dynamic ports").
type PortDescriptor struct {
	Name      string
	Direction port.Direction
	Mode      port.WorkMode
	Caps      caps.Capability
}

// Event is what a filter raises to its pipeline's event receiver.
type Event struct {
	Kind     EventKind
	FilterID string
	Ports    []PortDescriptor
	Err      error
}

// EventReceiver is implemented by the Pipeline (spec.md §4.7
// "OnCallback"/"Event dispatch").
type EventReceiver interface {
	OnEvent(Event)
}

// PeerResolver lets a filter reach the filter on the other end of one of
// its ports without holding an owning pointer to it (spec.md §9 "Cyclic
// references"); implemented by Pipeline.
type PeerResolver interface {
	FilterByID(id string) (Filter, bool)
}

// Filter is the shared capability every concrete filter kind implements.
// Negotiate and Configure are defined on the in-port side: a filter's
// Negotiate(portName, offer) is called by whatever upstream filter owns
// the out-port connected to portName.
type Filter interface {
	ID() string
	Name() string
	Kind() string
	State() State

	SetEventReceiver(EventReceiver)
	SetPeerResolver(PeerResolver)

	InPorts() []*port.Port
	OutPorts() []*port.Port
	InPort(name string) (*port.Port, bool)
	OutPort(name string) (*port.Port, bool)

	Init() error
	Prepare(ctx context.Context) error
	Start() error
	Stop() error
	Pause() error
	Resume() error
	FlushStart() error
	FlushEnd() error

	Negotiate(inPortName string, offer caps.Capability) (caps.Capability, error)
	Configure(meta *caps.Meta) error

	// PushData delivers a buffer pushed into an in-port (used by push-mode
	// upstream producers, e.g. a Source pushing into a Demuxer).
	PushData(inPortName string, buf *buffer.Buffer) error
}
