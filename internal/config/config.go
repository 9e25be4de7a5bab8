// Package config loads facescan settings from defaults, an optional file
// and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/segment"
)

// Defaults.
const (
	DefaultListen     = ":8080"
	DefaultStaticDir  = "./web"
	DefaultLogLevel   = "info"
	DefaultPreviewFPS = 5
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIBaseURL   = "FACESCAN_API_BASE_URL"
	EnvListen       = "FACESCAN_LISTEN"
	EnvStaticDir    = "FACESCAN_STATIC_DIR"
	EnvLogLevel     = "FACESCAN_LOG_LEVEL"
	EnvPreviewFPS   = "FACESCAN_PREVIEW_FPS"
	EnvCameraDevice = "FACESCAN_CAMERA_DEVICE"
)

// Config holds runtime parameters for every facescan command.
type Config struct {
	// APIBaseURL is the segmentation service base URL.
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url" toml:"api_base_url"`

	Listen     string `json:"listen" yaml:"listen" toml:"listen"`
	StaticDir  string `json:"static_dir" yaml:"static_dir" toml:"static_dir"`
	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	PreviewFPS int    `json:"preview_fps" yaml:"preview_fps" toml:"preview_fps"`

	// Preset, when set, replaces Camera with a named camera preset.
	Preset string        `json:"camera_preset" yaml:"camera_preset" toml:"camera_preset"`
	Camera camera.Config `json:"camera" yaml:"camera" toml:"camera"`

	// Demo swaps the camera and segmentation service for in-process fakes.
	Demo bool `json:"demo" yaml:"demo" toml:"demo"`
}

// Error reports an invalid setting.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL: segment.DefaultBaseURL,
		Listen:     DefaultListen,
		StaticDir:  DefaultStaticDir,
		LogLevel:   DefaultLogLevel,
		PreviewFPS: DefaultPreviewFPS,
		Camera:     camera.DefaultConfig(),
	}
}

// Load reads path over the defaults. The format follows the extension:
// .toml, .yaml/.yml or .json. Keys absent from the file keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config: empty path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("config: unsupported extension %q", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FACESCAN_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvStaticDir); v != "" {
		c.StaticDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPreviewFPS); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: EnvPreviewFPS, Message: "not an integer"}
		}
		c.PreviewFPS = n
	}
	if v := os.Getenv(EnvCameraDevice); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: EnvCameraDevice, Message: "not an integer"}
		}
		c.Camera.DeviceID = n
	}
	return nil
}

// ResolveCamera applies Preset to Camera, keeping the configured device.
func (c *Config) ResolveCamera() error {
	if c.Preset == "" {
		return nil
	}
	preset := camera.GetPreset(c.Preset)
	if preset == nil {
		return &Error{Field: "camera_preset", Message: fmt.Sprintf("unknown preset %q", c.Preset)}
	}
	preset.DeviceID = c.Camera.DeviceID
	c.Camera = *preset
	return nil
}

// Validate checks the settings. It returns the first *Error found.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &Error{Field: "api_base_url", Message: "must be an absolute http(s) URL"}
	}
	if c.Listen == "" {
		return &Error{Field: "listen", Message: "must not be empty"}
	}
	if c.PreviewFPS < 0 || c.PreviewFPS > 30 {
		return &Error{Field: "preview_fps", Message: "must be between 0 and 30"}
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &Error{Field: "camera", Message: strings.Join(errs, "; ")}
	}
	return nil
}
