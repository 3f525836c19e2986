// Package pipeline implements the filter-graph arena (spec.md §4.7
// "Pipeline"): it owns every filter added to it, wires ports by index
// rather than owning pointer (spec.md §9 "Cyclic references"), drives
// topology-ordered lifecycle transitions, and dispatches the events
// filters raise (PORT_ADDED, PORT_REMOVE, EVENT_ERROR, completion
// events) to whatever the caller registered as the Pipeline's own
// observer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/filter"
	"github.com/jmylchreest/histreamer/internal/port"
)

// Observer receives every event any filter in the pipeline raises
// (spec.md §4.7 "Event dispatch"). Handlers must not block.
type Observer interface {
	OnEvent(filterID string, ev filter.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(filterID string, ev filter.Event)

func (f ObserverFunc) OnEvent(filterID string, ev filter.Event) { f(filterID, ev) }

// Pipeline is the filter-graph arena. It implements filter.EventReceiver
// and filter.PeerResolver so filters never hold pointers to each other
// directly.
type Pipeline struct {
	id      uuid.UUID
	mu      sync.RWMutex
	filters map[string]filter.Filter
	order   []string // insertion order, used for topology-ordered lifecycle propagation

	observer Observer
	logger   *slog.Logger
}

// New creates an empty Pipeline, assigning it a random ID so an
// introspection endpoint can address it across its lifetime.
func New(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Pipeline{
		id:      id,
		filters: make(map[string]filter.Filter),
		logger:  logger.With(slog.String("component", "pipeline"), slog.String("pipeline_id", id.String())),
	}
}

// ID returns the pipeline's unique identifier.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// FilterIDs returns every registered filter's ID, in insertion order.
func (p *Pipeline) FilterIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// SetObserver installs the receiver for every event raised by any filter
// in this pipeline.
func (p *Pipeline) SetObserver(o Observer) { p.observer = o }

// AddFilter registers f with the pipeline, wiring it as f's event
// receiver and peer resolver (spec.md §4.7 "AddFilters").
func (p *Pipeline) AddFilter(f filter.Filter) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.filters[f.ID()]; exists {
		return errors.New("pipeline.AddFilter", errors.CodeInvalidOperation,
			fmt.Errorf("filter %q already added", f.ID()))
	}
	f.SetEventReceiver(p)
	f.SetPeerResolver(p)
	p.filters[f.ID()] = f
	p.order = append(p.order, f.ID())
	return nil
}

// FilterByID implements filter.PeerResolver.
func (p *Pipeline) FilterByID(id string) (filter.Filter, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.filters[id]
	return f, ok
}

// Filter returns the filter registered under id, if any.
func (p *Pipeline) Filter(id string) (filter.Filter, bool) {
	return p.FilterByID(id)
}

// LinkPorts connects an out-port on the upstream filter to an in-port on
// the downstream filter (spec.md §4.7 "LinkPorts"). Linking is symmetric
// bookkeeping only; negotiation happens later, driven by the upstream
// filter's Negotiate call against the downstream in-port.
func (p *Pipeline) LinkPorts(upstreamID, outPort, downstreamID, inPort string) error {
	p.mu.RLock()
	up, ok := p.filters[upstreamID]
	if !ok {
		p.mu.RUnlock()
		return errors.New("pipeline.LinkPorts", errors.CodeNotExisted, fmt.Errorf("unknown filter %q", upstreamID))
	}
	down, ok := p.filters[downstreamID]
	p.mu.RUnlock()
	if !ok {
		return errors.New("pipeline.LinkPorts", errors.CodeNotExisted, fmt.Errorf("unknown filter %q", downstreamID))
	}

	outP, ok := up.OutPort(outPort)
	if !ok {
		return errors.New("pipeline.LinkPorts", errors.CodeNotExisted, fmt.Errorf("%s has no out-port %q", upstreamID, outPort))
	}
	inP, ok := down.InPort(inPort)
	if !ok {
		return errors.New("pipeline.LinkPorts", errors.CodeNotExisted, fmt.Errorf("%s has no in-port %q", downstreamID, inPort))
	}
	outP.Link(port.ID{Filter: downstreamID, Port: inPort})
	inP.Link(port.ID{Filter: upstreamID, Port: outPort})
	return nil
}

// RemoveFilterChain unlinks and removes every filter named, in the order
// given (spec.md §4.7 "RemoveFilterChain"), used when a Demux's dynamic
// PORT_REMOVE callback tears down a track's downstream chain.
func (p *Pipeline) RemoveFilterChain(ids ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		f, ok := p.filters[id]
		if !ok {
			continue
		}
		for _, ip := range f.InPorts() {
			ip.Unlink()
		}
		for _, op := range f.OutPorts() {
			op.Unlink()
		}
		delete(p.filters, id)
		for i, oid := range p.order {
			if oid == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
}

// OnEvent implements filter.EventReceiver: EventError events are logged,
// and every event is forwarded to the pipeline's own observer. Dynamic
// port events (PORT_ADDED, PORT_REMOVE) get no bookkeeping here; acting
// on them is left to that observer.
func (p *Pipeline) OnEvent(ev filter.Event) {
	if ev.Kind == filter.EventError {
		p.logger.Warn("filter raised error", slog.String("filter", ev.FilterID), slog.Any("err", ev.Err))
	}
	if p.observer != nil {
		p.observer.OnEvent(ev.FilterID, ev)
	}
}

// leafFirstOrder returns filter IDs ordered so that filters with no
// unresolved out-port peers (sinks, muxers) precede their upstreams;
// callers needing the reverse (source-first, for Pause/Stop/FlushStart
// per spec.md §4.7) can just iterate the slice backwards.
func (p *Pipeline) leafFirstOrder() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	visited := make(map[string]bool, len(p.order))
	var out []string
	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		f, ok := p.filters[id]
		if !ok {
			return
		}
		for _, op := range f.OutPorts() {
			if op.Connected() {
				visit(op.Peer.Filter)
			}
		}
		out = append(out, id)
	}
	for _, id := range p.order {
		visit(id)
	}
	return out
}

// Prepare transitions every filter Ready, leaves (sinks/muxers) first so
// a downstream filter's negotiated plugin exists before an upstream
// filter's Negotiate call reaches it (spec.md §4.7).
func (p *Pipeline) Prepare(ctx context.Context) error {
	for _, id := range p.leafFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.Prepare(ctx); err != nil {
			return fmt.Errorf("prepare %s: %w", id, err)
		}
	}
	return nil
}

// Start transitions every filter Running, leaves first so a downstream
// consumer is ready to accept before an upstream producer starts
// pumping (spec.md §4.7).
func (p *Pipeline) Start() error {
	for _, id := range p.leafFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.Start(); err != nil {
			return fmt.Errorf("start %s: %w", id, err)
		}
	}
	return nil
}

// sourceFirstOrder is leafFirstOrder reversed.
func (p *Pipeline) sourceFirstOrder() []string {
	leaves := p.leafFirstOrder()
	out := make([]string, len(leaves))
	for i, id := range leaves {
		out[len(leaves)-1-i] = id
	}
	return out
}

// Stop transitions every filter back to Initialized, sources first so an
// upstream producer stops pumping before its downstream consumer tears
// down (spec.md §4.7).
func (p *Pipeline) Stop() error {
	var firstErr error
	for _, id := range p.sourceFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop %s: %w", id, err)
		}
	}
	return firstErr
}

// Pause pauses every filter's Task, sources first (spec.md §4.7).
func (p *Pipeline) Pause() error {
	var firstErr error
	for _, id := range p.sourceFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.Pause(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("pause %s: %w", id, err)
		}
	}
	return firstErr
}

// Resume resumes every filter's Task, leaves first so consumers are
// ready to accept before producers resume pumping.
func (p *Pipeline) Resume() error {
	for _, id := range p.leafFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.Resume(); err != nil {
			return fmt.Errorf("resume %s: %w", id, err)
		}
	}
	return nil
}

// FlushStart begins a seek flush, sources first (spec.md §4.7, §4.8
// PLAYER_INTENT_SEEK).
func (p *Pipeline) FlushStart() error {
	var firstErr error
	for _, id := range p.sourceFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.FlushStart(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush-start %s: %w", id, err)
		}
	}
	return firstErr
}

// FlushEnd ends a seek flush, leaves first (spec.md §4.7).
func (p *Pipeline) FlushEnd() error {
	for _, id := range p.leafFirstOrder() {
		f, ok := p.Filter(id)
		if !ok {
			continue
		}
		if err := f.FlushEnd(); err != nil {
			return fmt.Errorf("flush-end %s: %w", id, err)
		}
	}
	return nil
}

// NegotiateFrom drives the negotiation protocol starting at the named
// source filter's out-port, by convention named "out" (spec.md §4.4).
func (p *Pipeline) NegotiateFrom(sourceID, outPort string, offer caps.Capability) (caps.Capability, error) {
	f, ok := p.Filter(sourceID)
	if !ok {
		return caps.Capability{}, errors.New("pipeline.NegotiateFrom", errors.CodeNotExisted, nil)
	}
	type negotiator interface {
		NegotiateOut(outPortName string, offer caps.Capability) (caps.Capability, error)
	}
	n, ok := f.(negotiator)
	if !ok {
		return caps.Capability{}, errors.New("pipeline.NegotiateFrom", errors.CodeInvalidOperation, nil)
	}
	return n.NegotiateOut(outPort, offer)
}

// ConfigureFrom drives Configure propagation starting at sourceID
// (spec.md §4.4).
func (p *Pipeline) ConfigureFrom(sourceID string, meta *caps.Meta) error {
	f, ok := p.Filter(sourceID)
	if !ok {
		return errors.New("pipeline.ConfigureFrom", errors.CodeNotExisted, nil)
	}
	return f.Configure(meta)
}
