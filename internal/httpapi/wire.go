package httpapi

import (
	"log/slog"

	"github.com/jmylchreest/histreamer/internal/config"
	"github.com/jmylchreest/histreamer/internal/httpapi/handlers"
)

// Introspection bundles a Server with the GraphHandler and EventsHub it
// hosts, so a caller holds one value through which it can both start
// the server and register/unregister live pipelines (AddSource /
// RemoveSource) and push FSM notifications (EventsHub, used as an
// fsm.Observer when constructing a Player or Recorder).
type Introspection struct {
	Server *Server
	Graph  *handlers.GraphHandler
	Events *handlers.EventsHub
}

// NewIntrospection builds a Server with /healthz, /pipeline/graph, and
// /pipeline/events all registered. stats may be nil if no housekeeping
// loop is running yet. Callers must start Events.Run() in its own
// goroutine before the first OnInfo/OnError call, and Events.Close()
// on shutdown.
func NewIntrospection(cfg config.HTTPConfig, logger *slog.Logger, version string, stats handlers.StatsProvider) *Introspection {
	if logger == nil {
		logger = slog.Default()
	}

	server := NewServer(cfg, logger, version)
	graph := handlers.NewGraphHandler()
	events := handlers.NewEventsHub(logger)

	handlers.NewHealthHandler(version, stats).RegisterRoutes(server.API())
	graph.RegisterRoutes(server.API())
	events.RegisterRoutes(server.Router())

	return &Introspection{Server: server, Graph: graph, Events: events}
}
