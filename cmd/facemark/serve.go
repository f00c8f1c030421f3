package main

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/esimov/facemark"
	"github.com/esimov/facemark/canvas"
	"github.com/esimov/facemark/imop"
	"github.com/esimov/facemark/internal/events"
	"github.com/esimov/facemark/internal/logging"
	"github.com/esimov/facemark/internal/server"
	"github.com/esimov/facemark/internal/webcam"
	"github.com/esimov/facemark/scheduler"
)

func newServeCmd() *cobra.Command {
	var idle bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live webcam detection loop behind an HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), idle)
		},
	}
	cmd.Flags().BoolVar(&idle, "idle", false, "Wait for POST /session/start instead of polling right away")

	return cmd
}

func runServe(ctx context.Context, idle bool) (err error) {
	logger := logging.NewComponentLogger("serve")

	logger.Info().
		Str("version", Version).
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("camera", cfg.CameraDevice).
		Bool("nats", cfg.NatsURL != "").
		Msg("Starting facemark")

	op, err := imop.ParseOp(cfg.OverlayComposite)
	if err != nil {
		return err
	}

	src, err := webcam.Open(cfg.CameraDevice, cfg.DisplayWidth, cfg.DisplayHeight, logging.NewComponentLogger("webcam"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	sched := scheduler.New(clock.New(), cfg.RefreshInterval)
	defer sched.Close()

	sess, err := newSession(cfg, sched, logging.NewComponentLogger("session"))
	if err != nil {
		return err
	}
	defer sess.Close()

	dims := src.DisplaySize()
	overlay := canvas.New(int(dims.Width), int(dims.Height))
	pub := server.NewPublisher(src, overlay, op, cfg.JPEGQuality, logging.NewComponentLogger("publisher"))
	sched.OnPaint(pub.Paint)

	cb := sessionCallbacks(logger)
	if cfg.NatsURL != "" {
		var nc *events.NATS
		if nc, err = events.Connect(cfg); err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, nc.Shutdown())
		}()
		tracker := events.NewTracker(nc, cfg.NatsSubject, nil, logging.NewComponentLogger("events"))
		cb = tracker.Wrap(cb)
	}

	srv := server.New(cfg, server.Deps{
		Session:   sess,
		Source:    src,
		Overlay:   overlay,
		Publisher: pub,
		Callbacks: cb,
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return src.Run(gctx)
	})
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received")

		sess.StopSession(nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if !idle {
		if err := sess.StartSession(gctx, src, overlay, cb); err != nil {
			logger.Error().Err(err).Msg("Failed to start the detection loop")
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

func sessionCallbacks(logger zerolog.Logger) facemark.Callbacks {
	return facemark.Callbacks{
		OnStarted: func() {
			logger.Info().Msg("Detection loop running")
		},
		OnDetectorLoaded: func(ready bool) {
			if ready {
				logger.Info().Msg("Face detector loaded")
			} else {
				logger.Info().Msg("Loading face detector")
			}
		},
		OnPassError: func(err error) {
			logger.Debug().Err(err).Msg("Detection pass failed")
		},
	}
}
