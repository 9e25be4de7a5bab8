package segment

import (
	"errors"
	"fmt"

	"github.com/teslashibe/facescan/internal/metrics"
)

// UnknownError is the message used when the service reports a failure
// without error text.
const UnknownError = "unknown error"

// Sentinel errors for rejected input.
var (
	// ErrEmptyImage is returned for a zero-length image.
	ErrEmptyImage = errors.New("segment: empty image")

	// ErrUndecodableImage is returned when the bytes are not a known image format.
	ErrUndecodableImage = errors.New("segment: undecodable image")
)

// TransportError reports a network failure or a non-2xx response.
type TransportError struct {
	// StatusCode is zero when no response was received.
	StatusCode int

	// Body is the raw response body for non-2xx responses.
	Body string

	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("segment: HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("segment: transport: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// FailureMessage returns the text shown to the user.
func (e *TransportError) FailureMessage() string {
	if e.StatusCode != 0 {
		return "Error from server: " + e.Body
	}
	return e.Err.Error()
}

// ServiceError reports a well-formed response whose segmentation_status is
// false.
type ServiceError struct {
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return "segment: service: " + e.Message
}

// FailureMessage returns the text shown to the user.
func (e *ServiceError) FailureMessage() string {
	return e.Message
}

// MalformedResponseError reports a 2xx response that could not be decoded.
type MalformedResponseError struct {
	Err error
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("segment: malformed response: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// FailureMessage returns the text shown to the user.
func (e *MalformedResponseError) FailureMessage() string {
	return "malformed response: " + e.Err.Error()
}

// Message returns the human-readable failure message for any error returned
// by Segment.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var f interface{ FailureMessage() string }
	if errors.As(err, &f) {
		return f.FailureMessage()
	}
	return err.Error()
}

// Outcome classifies err into a metrics outcome label.
func Outcome(err error) string {
	var (
		service   *ServiceError
		malformed *MalformedResponseError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &service):
		return metrics.OutcomeServiceError
	case errors.As(err, &malformed):
		return metrics.OutcomeMalformed
	case errors.Is(err, ErrEmptyImage), errors.Is(err, ErrUndecodableImage):
		return metrics.OutcomeInvalidImage
	default:
		return metrics.OutcomeTransport
	}
}
