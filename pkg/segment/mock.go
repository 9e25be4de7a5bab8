package segment

import (
	"context"
	"sync"
	"time"
)

// Mock is a segmenter that returns a canned result without network access.
type Mock struct {
	mu     sync.Mutex
	result *Result
	err    error
	delay  time.Duration
	calls  int
}

// NewMock creates a mock returning result or err after delay.
func NewMock(result *Result, err error, delay time.Duration) *Mock {
	return &Mock{result: result, err: err, delay: delay}
}

// NewDemoMock returns a mock that reports a successful scan against baseURL.
func NewDemoMock(baseURL string) *Mock {
	return NewMock(&Result{
		FaceImageURL:       baseURL + FacesPath + "demo.jpg",
		FacePath:           "demo.jpg",
		SkinToneLabel:      "medium",
		SkinToneConfidence: 0.75,
	}, nil, 1500*time.Millisecond)
}

// Segment implements the segmenter contract.
func (m *Mock) Segment(ctx context.Context, img []byte) (*Result, error) {
	m.mu.Lock()
	m.calls++
	result, err, delay := m.result, m.err, m.delay
	m.mu.Unlock()

	if len(img) == 0 {
		return nil, ErrEmptyImage
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &TransportError{Err: ctx.Err()}
		}
	}

	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &ServiceError{Message: UnknownError}
	}
	out := *result
	return &out, nil
}

// Calls returns how many times Segment was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
