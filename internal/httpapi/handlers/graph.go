package handlers

import (
	"context"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/histreamer/internal/pipeline"
	"github.com/jmylchreest/histreamer/internal/port"
)

// PipelineSource is whatever owns a running pipeline and is willing to
// expose it for introspection (pkg/histreamer.Player and .Recorder both
// satisfy this).
type PipelineSource interface {
	Pipeline() *pipeline.Pipeline
}

// PortNode is one port's introspection view.
type PortNode struct {
	Name       string `json:"name" doc:"Port name, unique within its owning filter"`
	Mode       string `json:"mode" doc:"push or pull"`
	Connected  bool   `json:"connected"`
	PeerFilter string `json:"peer_filter,omitempty"`
	PeerPort   string `json:"peer_port,omitempty"`
}

// FilterNode is one filter's introspection view.
type FilterNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	State    string     `json:"state"`
	InPorts  []PortNode `json:"in_ports"`
	OutPorts []PortNode `json:"out_ports"`
}

// PipelineGraph is a full pipeline's introspection snapshot.
type PipelineGraph struct {
	ID      string       `json:"id"`
	Filters []FilterNode `json:"filters"`
}

// GraphHandler serves the current pipeline graph for every named
// pipeline source the caller has registered (e.g. "player", "recorder").
// Sources are registered and unregistered as playback/recording starts
// and stops, so the graph reflects whatever is actually running.
type GraphHandler struct {
	mu      sync.RWMutex
	sources map[string]PipelineSource
}

// NewGraphHandler creates an empty GraphHandler.
func NewGraphHandler() *GraphHandler {
	return &GraphHandler{sources: make(map[string]PipelineSource)}
}

// AddSource registers src under name, replacing any prior source with
// the same name.
func (h *GraphHandler) AddSource(name string, src PipelineSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sources[name] = src
}

// RemoveSource unregisters name, if present.
func (h *GraphHandler) RemoveSource(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sources, name)
}

// RegisterRoutes mounts the graph operations onto api.
func (h *GraphHandler) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listPipelineGraphs",
		Method:      "GET",
		Path:        "/pipeline/graph",
		Summary:     "List pipeline graphs",
		Description: "Returns the filter graph of every currently registered pipeline (player, recorder, ...)",
		Tags:        []string{"Pipeline"},
	}, h.listGraphs)
}

type listGraphsInput struct{}

type listGraphsOutput struct {
	Body map[string]PipelineGraph
}

func (h *GraphHandler) listGraphs(ctx context.Context, _ *listGraphsInput) (*listGraphsOutput, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]PipelineGraph, len(h.sources))
	for name, src := range h.sources {
		pl := src.Pipeline()
		if pl == nil {
			continue
		}
		out[name] = buildGraph(pl)
	}
	return &listGraphsOutput{Body: out}, nil
}

func buildGraph(pl *pipeline.Pipeline) PipelineGraph {
	ids := pl.FilterIDs()
	filters := make([]FilterNode, 0, len(ids))
	for _, id := range ids {
		f, ok := pl.Filter(id)
		if !ok {
			continue
		}
		node := FilterNode{
			ID:    f.ID(),
			Name:  f.Name(),
			Kind:  f.Kind(),
			State: f.State().String(),
		}
		for _, p := range f.InPorts() {
			node.InPorts = append(node.InPorts, portNode(p))
		}
		for _, p := range f.OutPorts() {
			node.OutPorts = append(node.OutPorts, portNode(p))
		}
		filters = append(filters, node)
	}
	return PipelineGraph{ID: pl.ID().String(), Filters: filters}
}

func portNode(p *port.Port) PortNode {
	n := PortNode{
		Name:      p.Self.Port,
		Mode:      p.Mode.String(),
		Connected: p.Connected(),
	}
	if p.Connected() {
		n.PeerFilter = p.Peer.Filter
		n.PeerPort = p.Peer.Port
	}
	return n
}
