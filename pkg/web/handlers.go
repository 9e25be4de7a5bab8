package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/hub"
	"github.com/teslashibe/facescan/pkg/scan"
)

// handleGetScan returns the current view.
func (s *Server) handleGetScan(c *fiber.Ctx) error {
	return c.JSON(s.scanner.View())
}

// handleStartScan starts a scan attempt.
func (s *Server) handleStartScan(c *fiber.Ctx) error {
	err := s.scanner.StartScan()
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(s.scanner.View())
	case errors.Is(err, scan.ErrScanInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, scan.ErrNotReady), errors.Is(err, scan.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// handleCamera reports the live capture configuration.
func (s *Server) handleCamera(c *fiber.Ctx) error {
	body := fiber.Map{"capabilities": camera.Capabilities()}
	if s.cfg.Device != nil {
		body["config"] = s.cfg.Device.Config()
		body["active"] = s.cfg.Device.Active()
	}
	return c.JSON(body)
}

// handleMountCamera starts the camera, or retries it after a device error.
func (s *Server) handleMountCamera(c *fiber.Ctx) error {
	err := s.scanner.Mount(c.UserContext())
	var devErr *camera.DeviceError
	switch {
	case err == nil:
		return c.JSON(s.scanner.View())
	case errors.Is(err, scan.ErrAlreadyMounted):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &devErr), errors.Is(err, scan.ErrClosed):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

type presetRequest struct {
	Preset string `json:"preset"`
}

// handleApplyPreset switches the capture preset. It takes effect on the
// next camera acquisition.
func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	if s.cfg.Device == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "no camera device"})
	}
	var req presetRequest
	if err := c.BodyParser(&req); err != nil || req.Preset == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "preset required"})
	}
	if err := s.cfg.Device.ApplyPreset(req.Preset); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, camera.ErrUnknownPreset) || errors.Is(err, camera.ErrInvalidConfig) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("camera preset applied", "preset", req.Preset)
	return c.JSON(fiber.Map{
		"config": s.cfg.Device.Config(),
		"active": s.cfg.Device.Active(),
	})
}

// handlePreview returns a single JPEG frame.
func (s *Server) handlePreview(c *fiber.Ctx) error {
	frame, err := s.scanner.Preview()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(frame)
}

// handleScanWS streams views, starting with the current one.
func (s *Server) handleScanWS(c *websocket.Conn) {
	var initial []hub.Message
	if msg, err := hub.EncodeJSON(s.scanner.View()); err == nil {
		initial = append(initial, msg)
	}
	hub.NewClient(s.statusHub, c, initial...).Run()
}

// handleCameraWS streams preview frames as binary messages.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
