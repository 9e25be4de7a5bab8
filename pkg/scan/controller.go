package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/facescan/internal/log"
	"github.com/teslashibe/facescan/internal/metrics"
	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/segment"
)

// Device is the capture device as seen by the controller.
// *camera.Manager implements it.
type Device interface {
	Acquire(ctx context.Context) (*camera.Handle, error)
	Release(h *camera.Handle)
	CaptureFrame(h *camera.Handle) ([]byte, error)
}

// Segmenter uploads a frame for segmentation.
// *segment.Client implements it.
type Segmenter interface {
	Segment(ctx context.Context, img []byte) (*segment.Result, error)
}

// Sink receives every view change in order. Sinks run with the controller
// locked: they must not block and must not call back into the Controller.
type Sink func(View)

type subscriber struct {
	id int
	fn Sink
}

// Controller owns one scan session: the camera handle, the scan state and
// the progress ticker.
type Controller struct {
	device    Device
	segmenter Segmenter
	cfg       Config
	logger    *slog.Logger

	// ctx lives until Close and parents every ticker and attempt.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	mounting   bool
	status     Status
	result     Result
	handle     *camera.Handle
	attempt    uint64
	attemptID  string
	stopTicker context.CancelFunc
	done       chan struct{}
	subs       []subscriber
	nextSubID  int

	tickers sync.WaitGroup
}

// New creates an idle controller.
func New(device Device, segmenter Segmenter, cfg Config) *Controller {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		device:    device,
		segmenter: segmenter,
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "scan.controller"),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
		status:    Status{Text: StatusReady},
	}
}

// Subscribe registers sink and returns a function that removes it.
func (c *Controller) Subscribe(sink Sink) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subs = append(c.subs, subscriber{id: id, fn: sink})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Mount acquires the camera: Idle → CameraReady, or Idle → CameraError when
// the device cannot be acquired. From CameraError it retries the device.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateClosed:
		c.mu.Unlock()
		return ErrClosed
	case (c.state != StateIdle && c.state != StateCameraError) || c.mounting:
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounting = true
	c.mu.Unlock()

	h, err := c.device.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounting = false

	if c.state == StateClosed {
		// Closed while the device was opening.
		if err == nil {
			c.device.Release(h)
		}
		return ErrClosed
	}

	if err != nil {
		c.logger.Error("camera unavailable", "error", err)
		c.state = StateCameraError
		c.status = Status{Text: StatusCameraError}
		c.publishLocked()
		return fmt.Errorf("scan: mount: %w", err)
	}

	c.handle = h
	c.state = StateCameraReady
	c.status = Status{Text: StatusReady}
	metrics.SetCameraActive(true)
	c.publishLocked()
	return nil
}

// StartScan begins a scan attempt: CameraReady|Complete → Scanning.
// It returns ErrScanInProgress without side effects while a scan runs.
// The attempt continues in the background; use Wait to block on it.
func (c *Controller) StartScan() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateCameraReady, StateComplete:
	case StateScanning:
		return ErrScanInProgress
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotReady
	}

	c.attempt++
	gen := c.attempt
	c.attemptID = uuid.NewString()

	c.state = StateScanning
	c.result = Result{}
	c.status = Status{
		Text:          StatusAnalyzing,
		Progress:      0,
		EstimatedTime: c.cfg.estimatedTime(0),
	}

	tickCtx, stop := context.WithCancel(c.ctx)
	c.stopTicker = stop
	c.tickers.Add(1)
	go c.runTicker(tickCtx, gen)

	done := make(chan struct{})
	c.done = done
	attemptCtx := log.ContextAttrs(c.ctx, slog.String("attempt_id", c.attemptID))
	go c.runAttempt(attemptCtx, gen, c.handle, done)

	c.publishLocked()
	return nil
}

// Wait blocks until the most recent scan attempt has settled or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Preview captures a frame for live display while the camera is acquired.
func (c *Controller) Preview() ([]byte, error) {
	c.mu.Lock()
	h := c.handle
	closed := c.state == StateClosed
	c.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if h == nil {
		return nil, ErrNotReady
	}
	return c.device.CaptureFrame(h)
}

// Close tears the session down: the ticker stops, the camera is released
// and no sink is called afterwards. An in-flight attempt has its context
// cancelled and its result is dropped. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.stopTickerLocked()
	c.cancel()
	h := c.handle
	c.handle = nil
	c.subs = nil
	c.mu.Unlock()

	if h != nil {
		c.device.Release(h)
		metrics.SetCameraActive(false)
	}
	c.tickers.Wait()
	c.logger.Info("scan session closed")
}

func (c *Controller) runAttempt(ctx context.Context, gen uint64, h *camera.Handle, done chan struct{}) {
	defer close(done)
	start := time.Now()
	c.logger.InfoContext(ctx, "scan started")

	img, err := c.device.CaptureFrame(h)
	if err != nil {
		c.finish(ctx, gen, start, nil, err, true)
		return
	}

	res, err := c.segmenter.Segment(ctx, img)
	c.finish(ctx, gen, start, res, err, false)
}

// finish applies a settled attempt: Scanning → Complete.
func (c *Controller) finish(ctx context.Context, gen uint64, start time.Time, res *segment.Result, err error, captureFailed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateScanning || c.attempt != gen {
		c.logger.DebugContext(ctx, "dropping settled attempt", "state", c.state)
		metrics.ObserveScan(metrics.OutcomeAbandoned, time.Since(start))
		return
	}

	c.stopTickerLocked()
	c.state = StateComplete

	var outcome string
	switch {
	case captureFailed:
		outcome = metrics.OutcomeCaptureError
		c.status = Status{Text: StatusScanFailed, Progress: 100}
		c.logger.WarnContext(ctx, "frame capture failed", "error", err)
	case err != nil:
		outcome = segment.Outcome(err)
		c.status = Status{Text: StatusErrorPrefix + segment.Message(err), Progress: 100}
		c.logger.WarnContext(ctx, "scan failed", "error", err)
	case res == nil:
		err = &segment.MalformedResponseError{Err: errors.New("no result")}
		outcome = segment.Outcome(err)
		c.status = Status{Text: StatusErrorPrefix + segment.Message(err), Progress: 100}
		c.logger.WarnContext(ctx, "segmenter returned no result")
	default:
		outcome = metrics.OutcomeSuccess
		c.status = Status{Text: StatusComplete, Progress: 100}
		c.result = resultFrom(res)
		c.logger.InfoContext(ctx, "scan complete", "skin_tone", res.SkinToneLabel)
	}

	metrics.ObserveScan(outcome, time.Since(start))
	c.publishLocked()
}

func resultFrom(res *segment.Result) Result {
	var r Result
	if res.FaceImageURL != "" {
		url := res.FaceImageURL
		r.SegmentedFaceURL = &url
	}
	if res.SkinToneLabel != "" {
		label := res.SkinToneLabel
		r.SkinToneCategory = &label
	}
	return r
}

func (c *Controller) stopTickerLocked() {
	if c.stopTicker != nil {
		c.stopTicker()
		c.stopTicker = nil
	}
}

func (c *Controller) viewLocked() View {
	return View{
		State:      c.state,
		Status:     c.status,
		Result:     c.result,
		CanScan:    c.state == StateCameraReady || c.state == StateComplete,
		ShowResult: c.result.SegmentedFaceURL != nil && c.status.Progress == 100,
		AttemptID:  c.attemptID,
	}
}

func (c *Controller) publishLocked() {
	if c.state == StateClosed || len(c.subs) == 0 {
		return
	}
	v := c.viewLocked()
	for _, s := range c.subs {
		s.fn(v)
	}
}
