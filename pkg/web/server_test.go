package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/facescan/pkg/camera"
	"github.com/teslashibe/facescan/pkg/scan"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeScanner struct {
	mu         sync.Mutex
	view       scan.View
	startErr   error
	frame      []byte
	previewErr error
	mountErr   error
	starts     int
	mounts     int
}

func (f *fakeScanner) Mount(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mounts++
	if f.mountErr != nil {
		return f.mountErr
	}
	f.view.State = scan.StateCameraReady
	f.view.Status = scan.Status{Text: scan.StatusReady}
	f.view.CanScan = true
	return nil
}

func (f *fakeScanner) View() scan.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeScanner) StartScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.view.State = scan.StateScanning
	f.view.Status = scan.Status{Text: scan.StatusAnalyzing, EstimatedTime: 5}
	return nil
}

func (f *fakeScanner) Preview() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, f.previewErr
}

func readyScanner() *fakeScanner {
	return &fakeScanner{
		view: scan.View{
			State:   scan.StateCameraReady,
			Status:  scan.Status{Text: scan.StatusReady},
			CanScan: true,
		},
		frame: []byte{0xff, 0xd8, 0xff, 0xd9},
	}
}

func newTestServer(scanner Scanner) *Server {
	srv, _ := newTestServerWithDevice(scanner)
	return srv
}

func newTestServerWithDevice(scanner Scanner) (*Server, *camera.Manager) {
	mgr, err := camera.NewManager(camera.NewMockSource(64, 48), camera.DefaultConfig(), discard)
	if err != nil {
		panic(err)
	}
	return NewServer(scanner, Config{
		Listen:     "127.0.0.1:0",
		PreviewFPS: 50,
		Device:     mgr,
		Logger:     discard,
	}), mgr
}

type cameraBody struct {
	Config       camera.Config  `json:"config"`
	Active       bool           `json:"active"`
	Capabilities map[string]any `json:"capabilities"`
}

func decodeView(t *testing.T, body io.Reader) scan.View {
	t.Helper()
	var v scan.View
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func TestGetScan(t *testing.T) {
	srv := newTestServer(readyScanner())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/scan", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	v := decodeView(t, resp.Body)
	assert.Equal(t, scan.StateCameraReady, v.State)
	assert.Equal(t, scan.StatusReady, v.Status.Text)
	assert.True(t, v.CanScan)
}

func TestStartScanStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"started", nil, http.StatusAccepted},
		{"in progress", scan.ErrScanInProgress, http.StatusConflict},
		{"not ready", scan.ErrNotReady, http.StatusServiceUnavailable},
		{"closed", scan.ErrClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := readyScanner()
			scanner.startErr = tt.err
			srv := newTestServer(scanner)

			resp, err := srv.App().Test(httptest.NewRequest(http.MethodPost, "/api/scan", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, 1, scanner.starts)
			if tt.err == nil {
				assert.Equal(t, scan.StateScanning, decodeView(t, resp.Body).State)
			}
		})
	}
}

func TestCamera(t *testing.T) {
	srv, mgr := newTestServerWithDevice(readyScanner())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/camera", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body cameraBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, camera.DefaultConfig(), body.Config)
	assert.False(t, body.Active)
	assert.Equal(t, "image/jpeg", body.Capabilities["encoding"])
	assert.Equal(t, false, body.Capabilities["audio"])

	h, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	defer mgr.Release(h)

	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/camera", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Active, "reports the live device")
}

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		width int
	}{
		{"known preset", `{"preset":"1080p"}`, http.StatusOK, 1920},
		{"unknown preset", `{"preset":"cinema"}`, http.StatusBadRequest, camera.DefaultConfig().Width},
		{"missing preset", `{}`, http.StatusBadRequest, camera.DefaultConfig().Width},
		{"bad json", `{`, http.StatusBadRequest, camera.DefaultConfig().Width},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, mgr := newTestServerWithDevice(readyScanner())

			req := httptest.NewRequest(http.MethodPut, "/api/camera", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := srv.App().Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.width, mgr.Config().Width, "next acquisition uses this config")
			if tt.code == http.StatusOK {
				var body cameraBody
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, 1920, body.Config.Width)
				assert.Equal(t, 1080, body.Config.Height)
			}
		})
	}
}

func TestApplyPresetWithoutDevice(t *testing.T) {
	srv := NewServer(readyScanner(), Config{Logger: discard})

	req := httptest.NewRequest(http.MethodPut, "/api/camera", strings.NewReader(`{"preset":"1080p"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestMountCameraStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"mounted", nil, http.StatusOK},
		{"already active", scan.ErrAlreadyMounted, http.StatusConflict},
		{"device error", fmt.Errorf("scan: mount: %w", &camera.DeviceError{Err: camera.ErrPermissionDenied}), http.StatusServiceUnavailable},
		{"closed", scan.ErrClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := &fakeScanner{view: scan.View{
				State:  scan.StateCameraError,
				Status: scan.Status{Text: scan.StatusCameraError},
			}}
			scanner.mountErr = tt.err
			srv := newTestServer(scanner)

			resp, err := srv.App().Test(httptest.NewRequest(http.MethodPost, "/api/camera", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, 1, scanner.mounts)
			if tt.err == nil {
				v := decodeView(t, resp.Body)
				assert.Equal(t, scan.StateCameraReady, v.State)
				assert.True(t, v.CanScan)
			}
		})
	}
}

func TestPreview(t *testing.T) {
	scanner := readyScanner()
	srv := newTestServer(scanner)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/preview", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, scanner.frame, body)

	scanner.previewErr = scan.ErrNotReady
	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/api/preview", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(readyScanner())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "facescan_camera_active")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	srv := newTestServer(readyScanner())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/ws/scan", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestStaticDashboard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>facescan</h1>"), 0o644))

	srv := NewServer(readyScanner(), Config{StaticDir: dir, Logger: discard})
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "facescan")
}

func TestDashboardPage(t *testing.T) {
	srv := NewServer(readyScanner(), Config{StaticDir: filepath.Join("..", "..", "web"), Logger: discard})

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page := string(body)
	for _, want := range []string{
		"Please stand still, facing forward",
		"Remove facial accessories",
		"Start Camera",
		"Start Scan",
		"Processing...",
		"Scan Again",
		"/api/camera",
		"show_result",
	} {
		assert.Contains(t, page, want)
	}
}

// serve starts srv on a loopback listener and returns its address.
func serve(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

func TestWatchRoundTrip(t *testing.T) {
	scanner := readyScanner()
	srv := newTestServer(scanner)
	addr := serve(t, srv)

	views := make(chan scan.View, 8)
	ctx, cancel := context.WithCancel(context.Background())
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- Watch(ctx, "ws://"+addr+"/ws/scan", func(v scan.View) { views <- v })
	}()

	select {
	case v := <-views:
		assert.Equal(t, scan.StateCameraReady, v.State, "current view sent on connect")
	case <-time.After(5 * time.Second):
		t.Fatal("no initial view")
	}

	url := "http://localhost:3001/segmented-faces/abc.jpg"
	tone := "tan"
	srv.PublishView(scan.View{
		State:      scan.StateComplete,
		Status:     scan.Status{Text: scan.StatusComplete, Progress: 100},
		Result:     scan.Result{SegmentedFaceURL: &url, SkinToneCategory: &tone},
		ShowResult: true,
	})

	select {
	case v := <-views:
		assert.Equal(t, scan.StateComplete, v.State)
		assert.Equal(t, 100, v.Status.Progress)
		require.NotNil(t, v.Result.SegmentedFaceURL)
		assert.Equal(t, url, *v.Result.SegmentedFaceURL)
	case <-time.After(5 * time.Second):
		t.Fatal("published view not received")
	}

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestCameraStream(t *testing.T) {
	scanner := readyScanner()
	srv := newTestServer(scanner)
	addr := serve(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/camera", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, scanner.frame, data)
}

func TestWatchDialFailure(t *testing.T) {
	err := Watch(context.Background(), "ws://127.0.0.1:1/ws/scan", func(scan.View) {})
	assert.Error(t, err)
}
