// Package camera acquires the local capture device and snapshots still
// frames from it.
package camera

// Config holds the capture device parameters.
type Config struct {
	// DeviceID selects the user-facing camera (OpenCV device index).
	DeviceID int `json:"device_id" toml:"device_id" yaml:"device_id"`

	// === Resolution ===
	// Width and Height are the preferred frame size. The device may deliver
	// a different native size; captured frames always keep the native size.
	Width     int `json:"width" toml:"width" yaml:"width"`
	Height    int `json:"height" toml:"height" yaml:"height"`
	Framerate int `json:"framerate" toml:"framerate" yaml:"framerate"`

	// Quality is the JPEG quality used for snapshots (1-100).
	Quality int `json:"quality" toml:"quality" yaml:"quality"`
}

// Device capabilities accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxDeviceID  = 63
)

// DefaultConfig returns the 1280x720 configuration used for face scans.
func DefaultConfig() Config {
	return Config{
		DeviceID:  0,
		Width:     1280,
		Height:    720,
		Framerate: 30,
		Quality:   90,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceID < 0 || c.DeviceID > MaxDeviceID {
		errors = append(errors, "device_id must be between 0 and 63")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}

// Capabilities describes what the capture layer supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"encoding":      "image/jpeg",
		"audio":         false,
		"presets":       PresetNames(),
	}
}
