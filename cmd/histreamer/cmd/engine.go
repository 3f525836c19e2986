package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/config"
	"github.com/jmylchreest/histreamer/internal/httpapi"
	"github.com/jmylchreest/histreamer/internal/mockplugin"
	"github.com/jmylchreest/histreamer/internal/observability"
	"github.com/jmylchreest/histreamer/internal/registry"
)

// engine bundles the pieces every subcommand wires together: a plugin
// registry, the stats/housekeeping loop, and an optional introspection
// server.
type engine struct {
	cfg    *config.Config
	logger *slog.Logger
	reg    *registry.Registry

	sampler     *observability.StatsSampler
	housekeeper *observability.Housekeeper
	introspect  *httpapi.Introspection
}

// newEngine wires a fresh registry of reference plugins (this repo ships
// no production codec/demuxer implementations; see internal/mockplugin)
// plus the ambient stats/HTTP scaffolding every subcommand shares.
func newEngine(version string) (*engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	reg := registry.New()
	mockplugin.Register(reg)

	e := &engine{cfg: cfg, logger: logger, reg: reg}

	sampler, err := observability.NewStatsSampler(cfg.Metrics.SampleInterval, logger, nil)
	if err != nil {
		return nil, fmt.Errorf("creating stats sampler: %w", err)
	}
	e.sampler = sampler

	housekeeper := observability.NewHousekeeper(cfg.Engine.HousekeepingCron, sampler, logger)
	if err := housekeeper.Start(); err != nil {
		return nil, fmt.Errorf("starting housekeeper: %w", err)
	}
	e.housekeeper = housekeeper

	if cfg.HTTP.Enabled {
		e.introspect = httpapi.NewIntrospection(cfg.HTTP, logger, version, housekeeper)
		go e.introspect.Events.Run()
		go func() {
			if err := e.introspect.Server.Start(); err != nil {
				logger.Error("introspection server stopped", slog.Any("err", err))
			}
		}()
	}

	return e, nil
}

// Close stops the housekeeper and introspection server.
func (e *engine) Close() {
	e.housekeeper.Stop()
	if e.introspect != nil {
		e.introspect.Events.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.introspect.Server.Shutdown(ctx)
	}
}

// sniffCap picks the reference demuxer's expected container MIME type
// from the input's extension, since this CLI has no real media-sniffing
// source plugin to ask.
func sniffCap(path string) caps.Capability {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".m2ts":
		return caps.New("video/mpegts")
	default:
		return caps.New("video/mp4")
	}
}

// waitForInterrupt blocks until SIGINT/SIGTERM, logging the signal that
// woke it.
func waitForInterrupt(logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))
}
