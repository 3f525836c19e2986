package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/internal/httpapi/handlers"
	"github.com/jmylchreest/histreamer/pkg/histreamer"
)

var playLoop bool

var playCmd = &cobra.Command{
	Use:   "play <path>",
	Short: "Play a local media file through the filter-graph pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playLoop, "loop", false, "restart playback from the beginning on end-of-stream")
	rootCmd.AddCommand(playCmd)
}

func runPlay(_ *cobra.Command, args []string) error {
	path := args[0]
	logger := slog.Default().With(slog.String("command", "play"))

	e, err := newEngine("dev")
	if err != nil {
		return err
	}
	defer e.Close()

	observer := fsm.Observer(nil)
	var hub *handlers.EventsHub
	if e.introspect != nil {
		hub = e.introspect.Events
		observer = hub
	}

	player, err := histreamer.NewPlayer(e.reg, histreamer.PlayerOptions{
		SourceCap: sniffCap(path),
		Loop:      playLoop,
		Logger:    logger,
	}, observer)
	if err != nil {
		return fmt.Errorf("building player: %w", err)
	}
	defer player.Close()

	if e.introspect != nil {
		e.introspect.Graph.AddSource("player", player)
		defer e.introspect.Graph.RemoveSource("player")
	}

	if err := player.SetSource(path); err != nil {
		return fmt.Errorf("set source: %w", err)
	}
	if err := player.Prepare(context.Background()); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := player.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	logger.Info("playing", slog.String("path", path))
	waitForInterrupt(logger)

	return player.Stop()
}
