package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/histreamer/internal/observability"
)

// StatsProvider is the narrow surface a HealthHandler needs from the
// engine's housekeeping loop; satisfied by *observability.Housekeeper.
type StatsProvider interface {
	LastStats() observability.ProcessStats
}

// HealthHandler serves /healthz.
type HealthHandler struct {
	version   string
	startTime time.Time
	stats     StatsProvider
}

// NewHealthHandler creates a HealthHandler. stats may be nil, in which
// case the response omits process stats.
func NewHealthHandler(version string, stats StatsProvider) *HealthHandler {
	return &HealthHandler{version: version, startTime: time.Now(), stats: stats}
}

// RegisterRoutes mounts the health operation onto api.
func (h *HealthHandler) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Health check",
		Description: "Reports process liveness, uptime, and the last sampled resource stats",
		Tags:        []string{"System"},
	}, h.getHealth)
}

type healthInput struct{}

// HealthResponse is the /healthz response body.
type HealthResponse struct {
	Status        string                        `json:"status"`
	Version       string                        `json:"version"`
	UptimeSeconds float64                        `json:"uptime_seconds"`
	Stats         *observability.ProcessStats    `json:"stats,omitempty"`
}

type healthOutput struct {
	Body HealthResponse
}

func (h *HealthHandler) getHealth(ctx context.Context, _ *healthInput) (*healthOutput, error) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if h.stats != nil {
		stats := h.stats.LastStats()
		if !stats.SampledAt.IsZero() {
			resp.Stats = &stats
		}
	}
	return &healthOutput{Body: resp}, nil
}
