// Package segment talks to the remote face segmentation service.
package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for input validation
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/facescan/internal/metrics"
)

// Wire constants of the segmentation service.
const (
	SegmentPath  = "/api/segment-face"
	FacesPath    = "/segmented-faces/"
	FormField    = "image"
	FormFilename = "captured_image.jpg"
)

// Result is a successful segmentation.
type Result struct {
	// FaceImageURL is where the cropped face can be fetched.
	FaceImageURL string

	// FacePath is the service-relative path of the cropped face.
	FacePath string

	SkinToneLabel      string
	SkinToneConfidence float64
}

// response is the JSON body returned by the service.
type response struct {
	SegmentationStatus *bool   `json:"segmentation_status"`
	SegmentedFacePath  string  `json:"segmented_face_path"`
	SkinToneColor      string  `json:"skin_tone_color"`
	SkinToneConfidence float64 `json:"skin_tone_confidence"`
	Error              string  `json:"error"`
}

// Client sends captured frames to the segmentation service.
// Each Segment call issues exactly one request; there are no retries.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a segmentation client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("segment: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("segment: base url %q needs a scheme and host, e.g. %s", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.HTTPClient == nil {
		return nil, errors.New("segment: http client required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		logger:  cfg.Logger.With("component", "segment.client"),
	}, nil
}

// BaseURL returns the normalized service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FaceURL derives the display URL for a segmented face path.
func (c *Client) FaceURL(path string) string {
	return c.baseURL + FacesPath + strings.TrimPrefix(path, "/")
}

// Segment uploads one image and waits for the full response.
//
// On failure the error is one of *TransportError, *ServiceError,
// *MalformedResponseError, ErrEmptyImage or ErrUndecodableImage; Message
// turns any of them into display text.
func (c *Client) Segment(ctx context.Context, img []byte) (*Result, error) {
	start := time.Now()
	res, err := c.segment(ctx, img)
	latency := time.Since(start)

	metrics.ObserveSegment(Outcome(err), latency)
	if err != nil {
		c.logger.WarnContext(ctx, "segmentation failed",
			"error", err,
			"latency_ms", latency.Milliseconds())
		return nil, err
	}

	c.logger.InfoContext(ctx, "segmentation complete",
		"skin_tone", res.SkinToneLabel,
		"confidence", res.SkinToneConfidence,
		"latency_ms", latency.Milliseconds())
	return res, nil
}

func (c *Client) segment(ctx context.Context, img []byte) (*Result, error) {
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	body, contentType, err := buildBody(img)
	if err != nil {
		return nil, fmt.Errorf("segment: build body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+SegmentPath, body)
	if err != nil {
		return nil, fmt.Errorf("segment: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	return c.decode(raw)
}

func (c *Client) decode(raw []byte) (*Result, error) {
	var payload response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}
	if payload.SegmentationStatus == nil {
		return nil, &MalformedResponseError{Err: errors.New("missing segmentation_status")}
	}

	if !*payload.SegmentationStatus {
		msg := payload.Error
		if msg == "" {
			msg = UnknownError
		}
		return nil, &ServiceError{Message: msg}
	}

	if payload.SegmentedFacePath == "" {
		return nil, &MalformedResponseError{Err: errors.New("missing segmented_face_path")}
	}

	return &Result{
		FaceImageURL:       c.FaceURL(payload.SegmentedFacePath),
		FacePath:           payload.SegmentedFacePath,
		SkinToneLabel:      payload.SkinToneColor,
		SkinToneConfidence: payload.SkinToneConfidence,
	}, nil
}

// buildBody encodes img as the single multipart field the service expects.
func buildBody(img []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FormField, FormFilename))
	h.Set("Content-Type", "image/jpeg")

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
