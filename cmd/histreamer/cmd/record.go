package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/histreamer/internal/caps"
	"github.com/jmylchreest/histreamer/internal/fsm"
	"github.com/jmylchreest/histreamer/pkg/histreamer"
)

var recordOut string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Capture from the reference capture source and mux it to a file",
	Args:  cobra.NoArgs,
	RunE:  runRecord,
}

func init() {
	recordCmd.Flags().StringVar(&recordOut, "out", "", "output file path (required)")
	_ = recordCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(_ *cobra.Command, _ []string) error {
	logger := slog.Default().With(slog.String("command", "record"))

	e, err := newEngine("dev")
	if err != nil {
		return err
	}
	defer e.Close()

	sink, err := newFileOutputSink(recordOut)
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	observer := fsm.Observer(nil)
	if e.introspect != nil {
		observer = e.introspect.Events
	}

	recorder, err := histreamer.NewRecorder(e.reg, histreamer.RecorderOptions{
		CaptureCap: caps.New("audio/pcm"),
		TrackID:    0,
		Output:     sink,
		Logger:     logger,
	}, observer)
	if err != nil {
		return fmt.Errorf("building recorder: %w", err)
	}
	defer recorder.Close()

	if e.introspect != nil {
		e.introspect.Graph.AddSource("recorder", recorder)
		defer e.introspect.Graph.RemoveSource("recorder")
	}

	if err := recorder.Prepare(context.Background()); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if err := recorder.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("recording", slog.String("out", recordOut))
	waitForInterrupt(logger)

	return recorder.Stop()
}
