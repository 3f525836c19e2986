// Package port implements the port identity and linkage model described
// in spec.md §3 ("Port") and §9 ("Cyclic references"): ports carry an
// owner-id + peer-id and are resolved through the pipeline arena on each
// use, rather than holding owning pointers to their peer.
package port

import "github.com/jmylchreest/histreamer/internal/caps"

// Direction is whether a Port accepts data (In) or emits it (Out).
type Direction int

const (
	DirectionIn Direction = iota
	DirectionOut
)

// WorkMode is a port's production/consumption discipline (spec.md §3,
// §4.5): push-mode ports are driven by their owning filter's Task;
// pull-mode ports are driven by an explicit downstream pull_data call.
type WorkMode int

const (
	ModePush WorkMode = iota
	ModePull
)

func (m WorkMode) String() string {
	if m == ModePull {
		return "pull"
	}
	return "push"
}

// ID identifies one port uniquely within a Pipeline arena: the owning
// filter's ID plus the port's own name.
type ID struct {
	Filter string
	Port   string
}

// IsZero reports whether id names no port (the zero value, used to mean
// "unconnected").
func (id ID) IsZero() bool { return id.Filter == "" && id.Port == "" }

// Port is a named attachment point on a filter. Invariant (spec.md §3):
// a connected port has exactly one peer.
type Port struct {
	Self      ID
	Direction Direction
	Mode      WorkMode
	Peer      ID // zero value: unconnected

	// Negotiated is the capability both sides agreed on after negotiation
	// (spec.md §4.4); nil until negotiation succeeds.
	Negotiated *caps.Capability
	// Meta is the merged configuration Meta propagated by Configure
	// (spec.md §4.4).
	Meta *caps.Meta
}

// New creates an unconnected port.
func New(owner, name string, dir Direction, mode WorkMode) *Port {
	return &Port{Self: ID{Filter: owner, Port: name}, Direction: dir, Mode: mode}
}

// Connected reports whether the port has a peer.
func (p *Port) Connected() bool { return !p.Peer.IsZero() }

// Link records that p's peer is other. Called symmetrically on both
// ports by the pipeline when establishing a link.
func (p *Port) Link(other ID) { p.Peer = other }

// Unlink clears the peer and negotiated state, used when tearing down a
// filter chain (spec.md §4.7 RemoveFilterChain).
func (p *Port) Unlink() {
	p.Peer = ID{}
	p.Negotiated = nil
	p.Meta = nil
}
