package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats is a point-in-time snapshot of the engine process's
// resource usage, sampled for the /healthz introspection endpoint
// (SPEC_FULL.md domain stack: gopsutil-backed engine stats).
type ProcessStats struct {
	CPUPercent    float64
	RSSBytes      uint64
	NumGoroutine  int
	OpenFDs       int32
	SampledAt     time.Time
}

// StatsSampler periodically samples ProcessStats and hands them to a
// callback: a small interval-driven loop bound to a context, logged at
// debug level.
type StatsSampler struct {
	interval time.Duration
	proc     *process.Process
	logger   *slog.Logger
	onSample func(ProcessStats)
}

// NewStatsSampler creates a sampler for the current OS process.
func NewStatsSampler(interval time.Duration, logger *slog.Logger, onSample func(ProcessStats)) (*StatsSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsSampler{
		interval: interval,
		proc:     p,
		logger:   logger.With(slog.String("component", "observability.stats")),
		onSample: onSample,
	}, nil
}

// Run samples on a ticker until ctx is done.
func (s *StatsSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.sample()
			if err != nil {
				s.logger.Debug("stats sample failed", slog.Any("err", err))
				continue
			}
			if s.onSample != nil {
				s.onSample(stats)
			}
		}
	}
}

func (s *StatsSampler) sample() (ProcessStats, error) {
	cpuPct, err := s.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	fds, _ := s.proc.NumFDs()
	return ProcessStats{
		CPUPercent:   cpuPct,
		RSSBytes:     memInfo.RSS,
		NumGoroutine: runtime.NumGoroutine(),
		OpenFDs:      fds,
		SampledAt:    time.Now(),
	}, nil
}
