package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"

	"gocv.io/x/gocv"
)

// GoCVSource opens cameras through OpenCV's VideoCapture.
type GoCVSource struct{}

// Open opens the configured device and requests the preferred resolution.
func (GoCVSource) Open(cfg Config) (Stream, error) {
	if err := probeDevice(cfg.DeviceID); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrNoDevice
	}

	// Preferred, not required: the driver picks the closest mode it has.
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	return &gocvStream{vc: vc, mat: gocv.NewMat()}, nil
}

type gocvStream struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (s *gocvStream) ReadFrame(quality int) (Frame, error) {
	if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		return Frame{}, nil
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory that Close frees.
	data := append([]byte(nil), buf.GetBytes()...)

	return Frame{JPEG: data, Width: s.mat.Cols(), Height: s.mat.Rows()}, nil
}

func (s *gocvStream) Close() error {
	matErr := s.mat.Close()
	if err := s.vc.Close(); err != nil {
		return err
	}
	return matErr
}

// probeDevice distinguishes missing devices from permission problems on
// Linux, where OpenCV reports both as a plain open failure.
func probeDevice(id int) error {
	if runtime.GOOS != "linux" {
		return nil
	}

	path := fmt.Sprintf("/dev/video%d", id)
	f, err := os.Open(path)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNoDevice, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	default:
		return err
	}
}
