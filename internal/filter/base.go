package filter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/histreamer/internal/buffer"
	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
	"github.com/jmylchreest/histreamer/internal/port"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// Base provides the default lifecycle, event routing, port bookkeeping,
// and negotiation/configure algorithm shared by every concrete filter
// (spec.md §4.5 "FilterBase"). Concrete filters embed Base and override
// only the methods spec.md calls out as per-kind (Prepare, PushData,
// Start, Stop, FlushStart/FlushEnd).
type Base struct {
	id   string
	name string
	kind string

	mu        sync.RWMutex
	state     State
	inPorts   map[string]*port.Port
	outPorts  map[string]*port.Port
	portOrder []string // insertion order, for deterministic iteration

	receiver EventReceiver
	resolver PeerResolver

	// Negotiation configuration: which plugin type this filter negotiates
	// (CodecPlugin for a Decoder, DemuxerPlugin for a Demux, etc.) and the
	// registry to search. PluginType may be unset for filters that don't
	// negotiate a plugin of their own (e.g. a pass-through Sink already
	// bound to a fixed plugin instance).
	registry   *registry.Registry
	pluginType plugin.Type

	pluginName     string
	pluginInstance any

	// allowedParams lists the tags this filter is permitted to forward
	// to plugin.SetParameter during Configure (spec.md §4.4: "extracts
	// only the tags listed in its allowed-parameter map").
	allowedParams []string

	logger *slog.Logger
}

// NewBase creates a Base filter identified by id/name/kind (kind is a
// short label like "source", "demux", "decoder", "sink" used in logs and
// in the pipeline-graph introspection endpoint).
func NewBase(id, name, kind string, reg *registry.Registry, pluginType plugin.Type, allowedParams []string) *Base {
	return NewBaseWithLogger(id, name, kind, reg, pluginType, allowedParams, nil)
}

// NewBaseWithLogger is NewBase with an explicit logger.
func NewBaseWithLogger(id, name, kind string, reg *registry.Registry, pluginType plugin.Type, allowedParams []string, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		id:            id,
		name:          name,
		kind:          kind,
		state:         StateCreated,
		inPorts:       make(map[string]*port.Port),
		outPorts:      make(map[string]*port.Port),
		registry:      reg,
		pluginType:    pluginType,
		allowedParams: allowedParams,
		logger:        logger.With(slog.String("component", "filter"), slog.String("filter", name)),
	}
}

func (b *Base) ID() string   { return b.id }
func (b *Base) Name() string { return b.name }
func (b *Base) Kind() string { return b.kind }

func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Base) SetEventReceiver(r EventReceiver) { b.receiver = r }
func (b *Base) SetPeerResolver(r PeerResolver)   { b.resolver = r }

func (b *Base) emit(ev Event) {
	ev.FilterID = b.id
	if b.receiver != nil {
		b.receiver.OnEvent(ev)
	}
}

// AddInPort declares a static or dynamic in-port.
func (b *Base) AddInPort(name string, mode port.WorkMode) *port.Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := port.New(b.id, name, port.DirectionIn, mode)
	b.inPorts[name] = p
	b.portOrder = append(b.portOrder, "in:"+name)
	return p
}

// AddOutPort declares a static out-port, or a dynamic one emitted after
// header parsing (spec.md §3 "Dynamic ports"); it raises PORT_ADDED so
// the pipeline can wire the next chain.
func (b *Base) AddOutPort(name string, mode port.WorkMode, c caps.Capability) *port.Port {
	b.mu.Lock()
	p := port.New(b.id, name, port.DirectionOut, mode)
	b.outPorts[name] = p
	b.portOrder = append(b.portOrder, "out:"+name)
	b.mu.Unlock()

	b.emit(Event{Kind: EventPortAdded, Ports: []PortDescriptor{{
		Name: name, Direction: port.DirectionOut, Mode: mode, Caps: c,
	}}})
	return p
}

// RemoveOutPort tears down a dynamic out-port and raises PORT_REMOVE.
func (b *Base) RemoveOutPort(name string) {
	b.mu.Lock()
	delete(b.outPorts, name)
	b.mu.Unlock()
	b.emit(Event{Kind: EventPortRemoved, Ports: []PortDescriptor{{Name: name}}})
}

func (b *Base) InPorts() []*port.Port {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*port.Port, 0, len(b.inPorts))
	for _, key := range b.portOrder {
		if len(key) > 3 && key[:3] == "in:" {
			if p, ok := b.inPorts[key[3:]]; ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func (b *Base) OutPorts() []*port.Port {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*port.Port, 0, len(b.outPorts))
	for _, key := range b.portOrder {
		if len(key) > 4 && key[:4] == "out:" {
			if p, ok := b.outPorts[key[4:]]; ok {
				out = append(out, p)
			}
		}
	}
	return out
}

func (b *Base) InPort(name string) (*port.Port, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.inPorts[name]
	return p, ok
}

func (b *Base) OutPort(name string) (*port.Port, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.outPorts[name]
	return p, ok
}

// Default lifecycle: iterate declared ports doing nothing but
// transitioning state, per spec.md §4.5 ("provides default
// implementations ... which iterate declared ports"). Concrete filters
// override whichever step needs real behavior.

func (b *Base) Init() error {
	b.setState(StateInitialized)
	return nil
}

func (b *Base) Prepare(ctx context.Context) error {
	b.setState(StatePreparing)
	b.setState(StateReady)
	b.emit(Event{Kind: EventReady})
	return nil
}

func (b *Base) Start() error {
	if b.State() != StateReady && b.State() != StatePaused {
		return errors.New("filter.Start", errors.CodeWrongState, nil)
	}
	b.setState(StateRunning)
	return nil
}

func (b *Base) Stop() error {
	b.setState(StateInitialized)
	return nil
}

func (b *Base) Pause() error {
	if b.State() != StateRunning {
		return errors.New("filter.Pause", errors.CodeWrongState, nil)
	}
	b.setState(StatePaused)
	return nil
}

func (b *Base) Resume() error {
	if b.State() != StatePaused {
		return errors.New("filter.Resume", errors.CodeWrongState, nil)
	}
	b.setState(StateRunning)
	return nil
}

func (b *Base) FlushStart() error {
	b.setState(StateFlushing)
	return nil
}

func (b *Base) FlushEnd() error {
	b.setState(StateRunning)
	return nil
}

// NegotiateOut forwards offer to the filter peered with one of our
// out-ports, recursing the negotiation protocol downstream (spec.md
// §4.4 point 2, "ask the downstream in-port to Negotiate(T)").
func (b *Base) NegotiateOut(outPortName string, offer caps.Capability) (caps.Capability, error) {
	p, ok := b.OutPort(outPortName)
	if !ok {
		return caps.Capability{}, errors.New("filter.NegotiateOut", errors.CodeNotExisted, nil)
	}
	if !p.Connected() {
		return caps.Capability{}, errors.New("filter.NegotiateOut", errors.CodeInvalidState, nil)
	}
	if b.resolver == nil {
		return caps.Capability{}, errors.New("filter.NegotiateOut", errors.CodeInvalidOperation, nil)
	}
	peer, ok := b.resolver.FilterByID(p.Peer.Filter)
	if !ok {
		return caps.Capability{}, errors.New("filter.NegotiateOut", errors.CodeNotExisted, nil)
	}
	accepted, err := peer.Negotiate(p.Peer.Port, offer)
	if err == nil {
		p.Negotiated = &accepted
	}
	return accepted, err
}

// PushDownstream resolves the filter peered with outPortName and calls
// PushData on it. It is a no-op, not an error, when the port is
// unconnected, so terminal-chain construction during negotiation does
// not require every out-port to be wired.
func (b *Base) PushDownstream(outPortName string, buf *buffer.Buffer) error {
	p, ok := b.OutPort(outPortName)
	if !ok {
		return errors.New("filter.PushDownstream", errors.CodeNotExisted, nil)
	}
	if !p.Connected() || b.resolver == nil {
		return nil
	}
	peer, ok := b.resolver.FilterByID(p.Peer.Filter)
	if !ok {
		return errors.New("filter.PushDownstream", errors.CodeNotExisted, nil)
	}
	return peer.PushData(p.Peer.Port, buf)
}

// Logger returns this filter's scoped logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// NegotiateParams bundles what DoNegotiate needs beyond the offer: the
// name of the in-port being negotiated and, for non-terminal filters,
// which out-port forwards the chosen capability downstream (empty for
// terminal filters such as sinks, which accept on their own behalf and
// do not forward).
type NegotiateParams struct {
	InPort  string
	OutPort string // "" for terminal filters
}

// DoNegotiate implements spec.md §4.4's negotiation algorithm in terms
// of this filter's configured plugin type and candidate registry. It is
// called by a concrete filter's Negotiate method.
//
// Resolution of an ambiguity in spec.md §4.4: the spec's literal
// "T = intersect(U, out_cap)" assumes U and a candidate plugin's out_cap
// share a MIME domain, which only holds for pass-through stages. For
// stages that change MIME domain (e.g. a decoder turning compressed
// audio into raw samples), intersect(U, out_cap) is always empty under
// our Capability algebra (different MIME => no intersection, spec.md
// §8 property 4), which would make negotiation always fail across a
// demux/decode or decode/sink boundary. We resolve this the way a
// faithful implementation must: when intersect fails specifically
// because the MIME domains differ, T falls back to out_cap itself (the
// plugin's declared output), and the narrowing intersect is still
// applied whenever U and out_cap do share a MIME (true pass-through /
// parameter-only negotiation). See DESIGN.md "Open Questions".
func (b *Base) DoNegotiate(params NegotiateParams, offer caps.Capability) (caps.Capability, error) {
	if b.registry == nil {
		return caps.Capability{}, errors.New("filter.Negotiate", errors.CodeInvalidOperation, nil)
	}
	candidates := b.registry.ListPlugins(b.pluginType)
	for _, name := range candidates {
		info, err := b.registry.PluginInfo(b.pluginType, name)
		if err != nil {
			continue
		}
		if !pluginAcceptsOffer(info, offer) {
			continue
		}
		outCaps := info.OutCaps
		if len(outCaps) == 0 {
			outCaps = []caps.Capability{offer}
		}
		for _, outCap := range outCaps {
			t, ok := caps.Intersect(offer, outCap)
			if !ok {
				if offer.MIME != outCap.MIME {
					t = outCap // cross-domain stage: forward the plugin's declared output
				} else {
					continue // same-domain but genuinely incompatible: skip
				}
			}
			var accepted caps.Capability
			if params.OutPort == "" {
				accepted = t
			} else {
				accepted, err = b.NegotiateOut(params.OutPort, t)
				if err != nil {
					continue
				}
			}
			if err := b.adoptPlugin(name, info); err != nil {
				continue
			}
			if p, ok := b.InPort(params.InPort); ok {
				p.Negotiated = &offer
			}
			return accepted, nil
		}
	}
	return caps.Capability{}, errors.New("filter.Negotiate", errors.CodeUnsupportedFormat, nil)
}

func pluginAcceptsOffer(info plugin.Info, offer caps.Capability) bool {
	if len(info.InCaps) == 0 {
		return true
	}
	for _, in := range info.InCaps {
		if offer.IsSubsetOf(in) {
			return true
		}
	}
	return false
}

// adoptPlugin implements spec.md §4.4 point 3 / §9 "Owner-of-plugin
// policy": reuse by Reset when the newly chosen plugin name matches the
// one already owned (S4 scenario); otherwise Deinit the old instance
// and Create a fresh one by name.
func (b *Base) adoptPlugin(name string, info plugin.Info) error {
	if b.pluginName == name && b.pluginInstance != nil {
		if l, ok := b.pluginInstance.(plugin.Lifecycle); ok {
			if err := l.Reset(); err == nil {
				return nil
			}
		}
	}
	if b.pluginInstance != nil {
		if l, ok := b.pluginInstance.(plugin.Lifecycle); ok {
			_ = l.Deinit()
		}
	}
	inst, err := b.registry.Create(b.pluginType, name)
	if err != nil {
		return err
	}
	b.pluginInstance = inst
	b.pluginName = name
	return nil
}

// Plugin returns the currently adopted plugin instance, or nil if none
// has been negotiated yet.
func (b *Base) Plugin() any { return b.pluginInstance }

// PluginName returns the name of the currently adopted plugin.
func (b *Base) PluginName() string { return b.pluginName }

// Configure implements spec.md §4.4's post-negotiation configuration
// propagation: merge upstreamMeta with this filter's negotiated-capability
// meta, extract only the allowed tags, forward them to the plugin, then
// propagate the merged meta to whatever filter is downstream of
// outPortName (if any).
func (b *Base) Configure(outPortName string, upstreamMeta *caps.Meta) error {
	var negotiatedMeta *caps.Meta
	for _, p := range b.InPorts() {
		if p.Negotiated != nil {
			negotiatedMeta = caps.FromCapability(*p.Negotiated)
			break
		}
	}
	merged := caps.NewMeta()
	if upstreamMeta != nil {
		merged = upstreamMeta.Clone()
	}
	if negotiatedMeta != nil {
		merged = merged.Merge(negotiatedMeta)
	}

	if param, ok := b.pluginInstance.(plugin.Parameterized); ok {
		for _, tag := range b.allowedParams {
			v, ok := merged.Get(tag)
			if !ok {
				continue
			}
			if err := registry.CheckType(tag, v); err != nil {
				return errors.New("filter.Configure", errors.CodeInvalidParameterType, err)
			}
			if err := param.SetParameter(tag, v); err != nil {
				return errors.New("filter.Configure", errors.CodeInvalidParameterValue, err)
			}
		}
	}

	if outPortName == "" {
		return nil
	}
	p, ok := b.OutPort(outPortName)
	if !ok || !p.Connected() || b.resolver == nil {
		return nil
	}
	peer, ok := b.resolver.FilterByID(p.Peer.Filter)
	if !ok {
		return nil
	}
	return peer.Configure(merged)
}
