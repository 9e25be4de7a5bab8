package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handle is an opaque reference to a live capture stream.
// It becomes invalid once released.
type Handle struct {
	id       string
	stream   Stream
	released bool
}

// ID returns the handle identifier used in logs.
func (h *Handle) ID() string {
	return h.id
}

// Manager owns the capture device. At most one handle is live at a time and
// the raw stream is only reachable through Manager methods.
type Manager struct {
	source Source
	logger *slog.Logger

	mu     sync.Mutex
	config Config
	live   *Handle
}

// NewManager creates a manager for source with the given configuration.
func NewManager(source Source, cfg Config, logger *slog.Logger) (*Manager, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source: source,
		config: cfg,
		logger: logger.With("component", "camera.manager"),
	}, nil
}

// Config returns the current camera configuration.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// SetConfig updates the configuration used by the next Acquire.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errs)
	}
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// ApplyPreset replaces the configuration with a named preset, keeping the
// device selection.
func (m *Manager) ApplyPreset(name string) error {
	preset := GetPreset(name)
	if preset == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	m.mu.Lock()
	preset.DeviceID = m.config.DeviceID
	m.mu.Unlock()
	return m.SetConfig(*preset)
}

// Active reports whether a handle is currently live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live != nil
}

// Acquire opens the capture device. The returned handle must be passed to
// Release. If ctx is cancelled while the device is opening, the stream is
// closed again and a *DeviceError is returned.
func (m *Manager) Acquire(ctx context.Context) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.config
	if err := ctx.Err(); err != nil {
		return nil, &DeviceError{DeviceID: cfg.DeviceID, Err: err}
	}
	if m.live != nil {
		return nil, &DeviceError{DeviceID: cfg.DeviceID, Err: ErrDeviceBusy}
	}

	stream, err := m.source.Open(cfg)
	if err != nil {
		return nil, &DeviceError{DeviceID: cfg.DeviceID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			m.logger.Warn("close after cancelled acquire failed", "error", cerr)
		}
		return nil, &DeviceError{DeviceID: cfg.DeviceID, Err: err}
	}

	h := &Handle{id: uuid.NewString(), stream: stream}
	m.live = h

	m.logger.Info("camera acquired",
		"handle", h.id,
		"device", cfg.DeviceID,
		"width", cfg.Width,
		"height", cfg.Height)
	return h, nil
}

// Release stops the stream behind h. Nil and already released handles are
// ignored.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if h.released {
		return
	}
	h.released = true
	if m.live == h {
		m.live = nil
	}

	if err := h.stream.Close(); err != nil {
		m.logger.Warn("camera close failed", "handle", h.id, "error", err)
		return
	}
	m.logger.Info("camera released", "handle", h.id)
}

// CaptureFrame snapshots the current frame at its native resolution and
// returns it JPEG-encoded.
func (m *Manager) CaptureFrame(h *Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h == nil || h.released || m.live != h {
		return nil, &CaptureError{Err: ErrInvalidHandle}
	}

	frame, err := h.stream.ReadFrame(m.config.Quality)
	if err != nil {
		return nil, &CaptureError{Err: err}
	}
	if frame.Width == 0 || frame.Height == 0 || len(frame.JPEG) == 0 {
		return nil, &CaptureError{Err: ErrNoFrame}
	}

	m.logger.Debug("frame captured",
		"handle", h.id,
		"width", frame.Width,
		"height", frame.Height,
		"bytes", len(frame.JPEG))
	return frame.JPEG, nil
}
