package observability

import (
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Housekeeper drives periodic engine maintenance off a single cron
// schedule (internal/config.EngineConfig.HousekeepingCron): one job,
// sampling process stats on a tick.
type Housekeeper struct {
	mu        sync.Mutex
	cron      *cron.Cron
	schedule  string
	logger    *slog.Logger
	sampler   *StatsSampler
	lastStats ProcessStats
}

// NewHousekeeper builds a Housekeeper that samples sampler on the given
// cron schedule. schedule accepts the same syntax robfig/cron does,
// including "@every 5s" descriptors.
func NewHousekeeper(schedule string, sampler *StatsSampler, logger *slog.Logger) *Housekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Housekeeper{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		schedule: schedule,
		logger:   logger.With(slog.String("component", "observability.housekeeping")),
		sampler:  sampler,
	}
}

// Start registers the sampling job and starts the cron engine. Returns
// an error if schedule doesn't parse.
func (h *Housekeeper) Start() error {
	_, err := h.cron.AddFunc(h.schedule, h.tick)
	if err != nil {
		return err
	}
	h.cron.Start()
	h.logger.Info("housekeeping started", slog.String("schedule", h.schedule))
	return nil
}

// Stop halts the cron engine, waiting for any in-flight tick to finish.
func (h *Housekeeper) Stop() {
	ctx := h.cron.Stop()
	<-ctx.Done()
	h.logger.Info("housekeeping stopped")
}

// LastStats returns the most recently sampled ProcessStats, for
// introspection endpoints that want a cheap cached read instead of
// triggering a fresh sample.
func (h *Housekeeper) LastStats() ProcessStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastStats
}

func (h *Housekeeper) tick() {
	stats, err := h.sampler.sample()
	if err != nil {
		h.logger.Debug("housekeeping sample failed", slog.Any("err", err))
		return
	}
	h.mu.Lock()
	h.lastStats = stats
	h.mu.Unlock()
	h.logger.Debug("sampled process stats",
		slog.Float64("cpu_percent", stats.CPUPercent),
		slog.Uint64("rss_bytes", stats.RSSBytes),
		slog.Int("goroutines", stats.NumGoroutine))
}
