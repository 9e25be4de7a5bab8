// Package scan implements the scan session controller: an explicit state
// machine that sequences camera capture, segmentation and result display.
package scan

import (
	"errors"
	"fmt"
)

// State is the controller state.
type State int

// Controller states. CameraError is entered only by a failed Mount; Closed is
// terminal.
const (
	StateIdle State = iota
	StateCameraReady
	StateCameraError
	StateScanning
	StateComplete
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateCameraReady: "camera_ready",
	StateCameraError: "camera_error",
	StateScanning:    "scanning",
	StateComplete:    "complete",
	StateClosed:      "closed",
}

// String returns the snake_case state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st, name := range stateNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("scan: unknown state %q", b)
}

// Status texts shown to the user.
const (
	StatusReady       = "Ready to scan"
	StatusCameraError = "Camera error"
	StatusAnalyzing   = "Analyzing face"
	StatusComplete    = "Scan complete"
	StatusScanFailed  = "Scan failed"
	StatusErrorPrefix = "Error: "
)

// Errors returned by controller operations.
var (
	ErrScanInProgress = errors.New("scan: scan already in progress")
	ErrNotReady       = errors.New("scan: camera not ready")
	ErrAlreadyMounted = errors.New("scan: already mounted")
	ErrClosed         = errors.New("scan: controller closed")
)

// Status is the progress display. It is replaced on every transition; only
// the ticker patches Progress and EstimatedTime in place.
type Status struct {
	Text          string  `json:"status"`
	Progress      int     `json:"progress"`
	EstimatedTime float64 `json:"estimated_time"`
}

// Result holds what a successful scan produced. Fields are nil until a scan
// succeeds. DominantColor is never populated.
type Result struct {
	SegmentedFaceURL *string `json:"segmented_face_url"`
	SkinToneCategory *string `json:"skin_tone_category"`
	DominantColor    *string `json:"dominant_color"`
}

// View is the render-facing snapshot of the controller.
type View struct {
	State  State  `json:"state"`
	Status Status `json:"status"`
	Result Result `json:"result"`

	// CanScan is false whenever starting a scan would be rejected.
	CanScan bool `json:"can_scan"`

	// ShowResult is true once a finished scan has a face to display.
	ShowResult bool `json:"show_result"`

	AttemptID string `json:"attempt_id,omitempty"`
}
