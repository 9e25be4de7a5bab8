package camera

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrPermissionDenied is returned when the process may not open the device.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrNoDevice is returned when no capture device is available.
	ErrNoDevice = errors.New("camera: no device")

	// ErrDeviceBusy is returned when a handle is already live.
	ErrDeviceBusy = errors.New("camera: device already acquired")

	// ErrNoFrame is returned when the stream has not produced a frame yet.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrInvalidHandle is returned for nil, released or foreign handles.
	ErrInvalidHandle = errors.New("camera: invalid handle")

	// ErrUnknownPreset is returned by ApplyPreset for unlisted names.
	ErrUnknownPreset = errors.New("camera: unknown preset")

	// ErrInvalidConfig is returned by SetConfig when validation fails.
	ErrInvalidConfig = errors.New("camera: invalid config")
)

// DeviceError reports a failure to acquire the capture device.
type DeviceError struct {
	DeviceID int
	Err      error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera: device %d: %v", e.DeviceID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// CaptureError reports a failure to snapshot a frame.
type CaptureError struct {
	Err error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("camera: capture: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}
