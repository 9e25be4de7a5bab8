package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/facescan/internal/config"
	"github.com/teslashibe/facescan/pkg/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		listen     string
		staticDir  string
		previewFPS int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan dashboard and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("static-dir") {
				cfg.StaticDir = staticDir
			}
			if cmd.Flags().Changed("preview-fps") {
				cfg.PreviewFPS = previewFPS
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), opts, cfg)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", config.DefaultListen, "Dashboard listen address")
	cmd.Flags().StringVar(&staticDir, "static-dir", config.DefaultStaticDir, "Directory served at /")
	cmd.Flags().IntVar(&previewFPS, "preview-fps", config.DefaultPreviewFPS, "Camera preview frames per second (0 disables)")
	return cmd
}

func runServe(ctx context.Context, opts *options, cfg config.Config) error {
	ctrl, mgr, err := opts.newSession()
	if err != nil {
		return err
	}

	srv := web.NewServer(ctrl, web.Config{
		Listen:     cfg.Listen,
		StaticDir:  cfg.StaticDir,
		PreviewFPS: cfg.PreviewFPS,
		Device:     mgr,
		Logger:     opts.logger,
	})
	ctrl.Subscribe(srv.PublishView)

	// A camera failure leaves the session in its error state; the
	// dashboard can retry through POST /api/camera.
	if err := ctrl.Mount(ctx); err != nil {
		opts.logger.Error("camera unavailable", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		ctrl.Close()
		return nil
	})
	return g.Wait()
}
