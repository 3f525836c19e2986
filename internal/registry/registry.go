// Package registry implements the plugin registry facade (spec.md §4.3):
// lookup plugins by type, list capabilities, instantiate fresh plugin
// instances by name. The registry and the filter factory are the only
// process-wide mutable state in the engine, and both are append-only
// after initialization (spec.md §5, §9).
package registry

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/histreamer/internal/errors"
	"github.com/jmylchreest/histreamer/internal/plugin"
)

// Factory creates a fresh plugin instance by name. The registry never
// hands out aliases to an existing instance: each call returns a new
// one (spec.md §9 "Owner-of-plugin policy").
type Factory func() (any, error)

type entry struct {
	info    plugin.Info
	factory Factory
}

// Registry is the plugin registry facade.
type Registry struct {
	mu      sync.RWMutex
	entries map[plugin.Type]map[string]entry
	idEntropy *ulid.MonotonicEntropy
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries:   make(map[plugin.Type]map[string]entry),
		idEntropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewInstanceID mints a new, lexically-sortable instance ID (spec.md §9
// "Owner-of-plugin policy": each Create call returns a fresh instance,
// so a running system can have many simultaneous instances of the same
// named plugin; this gives each one an ID for logs and introspection).
func (r *Registry) NewInstanceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), r.idEntropy).String()
}

// Register adds a plugin under info.Type/info.Name. Registering the
// same (type, name) pair twice replaces the prior entry; this is the
// only mutation path and is expected to happen solely during process
// startup (spec.md §9 "Global state").
func (r *Registry) Register(info plugin.Info, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[info.Type] == nil {
		r.entries[info.Type] = make(map[string]entry)
	}
	r.entries[info.Type][info.Name] = entry{info: info, factory: factory}
}

// ListPlugins returns every registered plugin name for typ, ordered by
// descending rank then by name (spec.md §4.4 negotiation tie-break: plugin
// order follows highest rank; on equal rank, first returned by the
// registry).
func (r *Registry) ListPlugins(typ plugin.Type) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byType := r.entries[typ]
	names := make([]string, 0, len(byType))
	for name := range byType {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := byType[names[i]].info.Rank, byType[names[j]].info.Rank
		if ri != rj {
			return ri > rj
		}
		return names[i] < names[j]
	})
	return names
}

// PluginInfo returns the registered Info for (typ, name).
func (r *Registry) PluginInfo(typ plugin.Type, name string) (plugin.Info, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[typ][name]
	if !ok {
		return plugin.Info{}, errors.New("registry.PluginInfo", errors.CodePluginNotFound,
			fmt.Errorf("no %s plugin named %q", typ, name))
	}
	return e.info, nil
}

// Create instantiates a fresh plugin by (typ, name). The returned value
// must be type-asserted by the caller to the trait it expects
// (plugin.Source, plugin.Demuxer, ...).
func (r *Registry) Create(typ plugin.Type, name string) (any, error) {
	r.mu.RLock()
	e, ok := r.entries[typ][name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New("registry.Create", errors.CodePluginNotFound,
			fmt.Errorf("no %s plugin named %q", typ, name))
	}
	inst, err := e.factory()
	if err != nil {
		return nil, err
	}
	slog.Default().Debug("created plugin instance",
		slog.String("type", typ.String()),
		slog.String("name", name),
		slog.String("instance_id", r.NewInstanceID()))
	return inst, nil
}
