package segment

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/facescan/internal/metrics"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 150, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client, server
}

func TestSegmentSuccess(t *testing.T) {
	img := testJPEG(t)

	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SegmentPath, r.URL.Path)

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Len(t, r.MultipartForm.File, 1, "exactly one upload field")

		file, header, err := r.FormFile(FormField)
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, FormFilename, header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))

		got, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, img, got)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"segmentation_status": true, "segmented_face_path": "abc.jpg", "skin_tone_color": "tan", "skin_tone_confidence": 0.8}`)
	})

	res, err := client.Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/segmented-faces/abc.jpg", res.FaceImageURL)
	assert.Equal(t, "abc.jpg", res.FacePath)
	assert.Equal(t, "tan", res.SkinToneLabel)
	assert.InDelta(t, 0.8, res.SkinToneConfidence, 1e-9)
}

func TestSegmentServiceFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"with message", `{"segmentation_status": false, "error": "no face detected"}`, "no face detected"},
		{"without message", `{"segmentation_status": false}`, UnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})

			res, err := client.Segment(context.Background(), testJPEG(t))
			assert.Nil(t, res)

			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.want, Message(err))
			assert.Equal(t, metrics.OutcomeServiceError, Outcome(err))
		})
	}
}

func TestSegmentNon2xxSurfacesBody(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "server overloaded")
	})

	_, err := client.Segment(context.Background(), testJPEG(t))

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, http.StatusServiceUnavailable, tErr.StatusCode)
	assert.Equal(t, "Error from server: server overloaded", Message(err))
	assert.Equal(t, int32(1), requests.Load(), "no retries")
}

func TestSegmentMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"missing status", `{"segmented_face_path": "abc.jpg"}`},
		{"success without path", `{"segmentation_status": true, "skin_tone_color": "tan"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})

			_, err := client.Segment(context.Background(), testJPEG(t))
			var mErr *MalformedResponseError
			require.ErrorAs(t, err, &mErr)
			assert.Contains(t, Message(err), "malformed response")
			assert.Equal(t, metrics.OutcomeMalformed, Outcome(err))
		})
	}
}

func TestSegmentRejectsBadImagesWithoutRequest(t *testing.T) {
	var requests atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	})

	_, err := client.Segment(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = client.Segment(context.Background(), []byte("definitely not a jpeg"))
	assert.ErrorIs(t, err, ErrUndecodableImage)
	assert.Equal(t, metrics.OutcomeInvalidImage, Outcome(err))

	assert.Equal(t, int32(0), requests.Load())
}

func TestSegmentTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(WithBaseURL(url))
	require.NoError(t, err)

	_, err = client.Segment(context.Background(), testJPEG(t))
	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Zero(t, tErr.StatusCode)
	assert.NotEmpty(t, Message(err))
	assert.Equal(t, metrics.OutcomeTransport, Outcome(err))
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	_, err := NewClient(WithBaseURL("localhost:3001"))
	assert.Error(t, err)

	c, err := NewClient(WithBaseURL("http://localhost:3001/"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3001", c.BaseURL())
	assert.Equal(t, "http://localhost:3001/segmented-faces/x.png", c.FaceURL("/x.png"))
}

func TestMockSegment(t *testing.T) {
	m := NewDemoMock("http://svc")
	m.delay = 0

	res, err := m.Segment(context.Background(), []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "http://svc/segmented-faces/demo.jpg", res.FaceImageURL)
	assert.Equal(t, 1, m.Calls())

	_, err = m.Segment(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
}
