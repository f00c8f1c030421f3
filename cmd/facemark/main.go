package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/detector"
	"github.com/esimov/facemark/internal/config"
	"github.com/esimov/facemark/internal/logging"
	"github.com/esimov/facemark/utils"
)

// Version indicates the current build version.
const Version = "1.0.0"

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "facemark",
	Short:         "Face detection with bounding box and keypoint overlays",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logging.Setup(cfg)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd.AddCommand(newStillCmd(), newServeCmd(), newVersionCmd())
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, utils.StatusLine(err.Error(), "✘", utils.ErrorMessage))
		os.Exit(1)
	}
}

// newSession opens the process wide detection session configured from cfg.
// A nil sched lets the session run its own scheduler.
func newSession(cfg *config.Config, sched facemark.Scheduler, logger zerolog.Logger) (*facemark.Session, error) {
	style, err := cfg.Style()
	if err != nil {
		return nil, err
	}

	return facemark.NewSession(facemark.Options{
		Build:     detector.Builder(detectorOptions(cfg, logger)),
		Scheduler: sched,
		Style:     &style,
		Logger:    &logger,
	})
}

func detectorOptions(cfg *config.Config, logger zerolog.Logger) detector.Options {
	return detector.Options{
		FaceCascade:  cfg.FaceCascade,
		PupilCascade: cfg.PupilCascade,
		LandmarkDir:  cfg.LandmarkCascadeDir,
		MinSize:      cfg.MinFaceSize,
		MaxSize:      cfg.MaxFaceSize,
		IoUThreshold: cfg.IoUThreshold,
		MaxWidth:     cfg.DetectMaxWidth,
		Logger:       &logger,
	}
}
