// Package web serves the scan dashboard: a JSON API, websocket streams for
// scan state and camera preview, Prometheus metrics and static files.
package web

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/hub"
	"github.com/teslashibe/facescan/pkg/scan"
)

// Scanner is the scan session the server drives. *scan.Controller
// implements it.
type Scanner interface {
	View() scan.View
	Mount(ctx context.Context) error
	StartScan() error
	Preview() ([]byte, error)
}

// Device is the capture configuration the server reports and edits.
// *camera.Manager implements it.
type Device interface {
	Config() camera.Config
	Active() bool
	ApplyPreset(name string) error
}

// Config holds server settings.
type Config struct {
	Listen    string
	StaticDir string

	// PreviewFPS is the camera stream rate; 0 disables the stream.
	PreviewFPS int

	// Device backs /api/camera. Nil disables the preset route.
	Device Device

	Logger *slog.Logger
}

// Server is the dashboard server.
type Server struct {
	app     *fiber.App
	cfg     Config
	scanner Scanner
	logger  *slog.Logger

	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// NewServer builds the fiber app and routes.
func NewServer(scanner Scanner, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		scanner:   scanner,
		logger:    cfg.Logger.With("component", "web"),
		statusHub: hub.New("scan", cfg.Logger),
		cameraHub: hub.New("camera", cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facescan",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/scan", s.handleGetScan)
	api.Post("/scan", s.handleStartScan)
	api.Get("/camera", s.handleCamera)
	api.Post("/camera", s.handleMountCamera)
	api.Put("/camera", s.handleApplyPreset)
	api.Get("/preview", s.handlePreview)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/scan", websocket.New(s.handleScanWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// PublishView broadcasts v to scan subscribers. It is a scan.Sink and does
// not block.
func (s *Server) PublishView(v scan.View) {
	if err := s.statusHub.BroadcastJSON(v); err != nil {
		s.logger.Error("encode view", "error", err)
	}
}

// Run listens on cfg.Listen and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs, the preview stream and the HTTP server on ln until
// ctx is done or one of them fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.statusHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.cameraHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.previewLoop(ctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("dashboard listening", "addr", ln.Addr().String())
		return s.app.Listener(ln)
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.app.ShutdownWithTimeout(5 * time.Second)
	})

	return g.Wait()
}

// previewLoop pushes preview frames to camera subscribers while any are
// connected.
func (s *Server) previewLoop(ctx context.Context) {
	if s.cfg.PreviewFPS <= 0 {
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.PreviewFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.cameraHub.ClientCount() == 0 {
			continue
		}
		frame, err := s.scanner.Preview()
		if err != nil {
			s.logger.Debug("preview unavailable", "error", err)
			continue
		}
		s.cameraHub.BroadcastBinary(frame)
	}
}
