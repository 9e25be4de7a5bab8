package camera

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
)

var errStreamClosed = errors.New("camera: stream closed")

// MockSource is a Source producing solid-color synthetic frames.
// It backs tests and `facescan --demo`.
type MockSource struct {
	mu      sync.Mutex
	width   int
	height  int
	color   color.RGBA
	openErr error
	opened  int
	closed  int
}

// NewMockSource creates a mock that delivers width x height frames.
// Zero dimensions simulate a camera that has not produced a frame yet.
func NewMockSource(width, height int) *MockSource {
	return &MockSource{
		width:  width,
		height: height,
		color:  color.RGBA{R: 198, G: 160, B: 130, A: 255},
	}
}

// SetOpenError makes subsequent Open calls fail with err.
func (m *MockSource) SetOpenError(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// SetFrameSize changes the size of frames delivered from now on.
func (m *MockSource) SetFrameSize(width, height int) {
	m.mu.Lock()
	m.width, m.height = width, height
	m.mu.Unlock()
}

// Open implements Source.
func (m *MockSource) Open(cfg Config) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return &mockStream{src: m}, nil
}

// OpenStreams returns the number of streams opened and not yet closed.
func (m *MockSource) OpenStreams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened - m.closed
}

type mockStream struct {
	src    *MockSource
	closed bool
}

func (s *mockStream) ReadFrame(quality int) (Frame, error) {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()

	if s.closed {
		return Frame{}, errStreamClosed
	}
	if s.src.width == 0 || s.src.height == 0 {
		return Frame{}, nil
	}

	img := image.NewRGBA(image.Rect(0, 0, s.src.width, s.src.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: s.src.color}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Frame{}, err
	}
	return Frame{JPEG: buf.Bytes(), Width: s.src.width, Height: s.src.height}, nil
}

func (s *mockStream) Close() error {
	s.src.mu.Lock()
	defer s.src.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.src.closed++
	}
	return nil
}
