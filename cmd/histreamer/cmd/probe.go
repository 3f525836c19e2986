package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/histreamer/internal/mockplugin"
	"github.com/jmylchreest/histreamer/internal/registry"
	"github.com/jmylchreest/histreamer/pkg/histreamer"
)

var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Negotiate a pipeline against a file and print the discovered filter graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(_ *cobra.Command, args []string) error {
	path := args[0]
	logger := slog.Default().With(slog.String("command", "probe"))

	reg := registry.New()
	mockplugin.Register(reg)

	player, err := histreamer.NewPlayer(reg, histreamer.PlayerOptions{
		SourceCap: sniffCap(path),
		Logger:    logger,
	}, nil)
	if err != nil {
		return fmt.Errorf("building player: %w", err)
	}
	defer player.Close()

	if err := player.SetSource(path); err != nil {
		return fmt.Errorf("set source: %w", err)
	}
	if err := player.Prepare(context.Background()); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	pl := player.Pipeline()
	fmt.Printf("pipeline %s\n", pl.ID())
	for _, id := range pl.FilterIDs() {
		f, ok := pl.Filter(id)
		if !ok {
			continue
		}
		fmt.Printf("  %-24s kind=%-10s state=%s\n", f.ID(), f.Kind(), f.State())
	}

	return player.Stop()
}
