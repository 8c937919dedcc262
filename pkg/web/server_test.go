package web

import (
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-lockon/pkg/metrics"
	"github.com/teslashibe/go-lockon/pkg/state"
	"github.com/teslashibe/go-lockon/pkg/tracking"
	"github.com/teslashibe/go-lockon/pkg/tracking/detection"
)

type fakeTracker struct {
	mu        sync.Mutex
	selects   []image.Point
	resets    int
	quits     int
	overrides []detection.Range
	tuning    tracking.TuningParams
	err       error
}

func (f *fakeTracker) Select(p image.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selects = append(f.selects, p)
	return f.err
}

func (f *fakeTracker) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.err
}

func (f *fakeTracker) Quit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quits++
	return f.err
}

func (f *fakeTracker) Override(r detection.Range) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides = append(f.overrides, r)
	return f.err
}

func (f *fakeTracker) GetTuningParams() tracking.TuningParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tuning
}

func (f *fakeTracker) SetTuningParams(p tracking.TuningParams) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tuning.LockThreshold = p.LockThreshold
	f.tuning.Tolerance = p.Tolerance
}

func newTestServer(t *testing.T) (*Server, *state.Publisher, *fakeTracker) {
	t.Helper()
	pub := state.NewPublisher("test-session")
	tr := &fakeTracker{}
	return NewServer(DefaultConfig(), pub, tr, metrics.New()), pub, tr
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestGetState_Contract(t *testing.T) {
	s, pub, _ := newTestServer(t)
	pub.Publish(&state.Region{X: 100, Y: 100, W: 50, H: 50})

	code, body := do(t, s, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "test-session", got["session"])
	assert.Equal(t, map[string]any{"x": 125.0, "y": 125.0}, got["target"])
	assert.Equal(t, map[string]any{"x": 100.0, "y": 100.0, "w": 50.0, "h": 50.0}, got["selected_region"])
	assert.Nil(t, got["direction"])
	assert.Equal(t, false, got["shutdown"])
}

func TestSelect(t *testing.T) {
	s, _, tr := newTestServer(t)

	code, _ := do(t, s, http.MethodPost, "/api/select", `{"x":120,"y":130}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []image.Point{image.Pt(120, 130)}, tr.selects)
}

func TestSelect_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing y", `{"x":1}`},
		{"not json", `x=1`},
		{"empty object", `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _, tr := newTestServer(t)
			code, body := do(t, s, http.MethodPost, "/api/select", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Contains(t, string(body), `"error"`)
			assert.Empty(t, tr.selects)
		})
	}
}

func TestResetAndQuit(t *testing.T) {
	s, _, tr := newTestServer(t)

	code, _ := do(t, s, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusAccepted, code)
	code, _ = do(t, s, http.MethodPost, "/api/quit", "")
	assert.Equal(t, http.StatusAccepted, code)

	assert.Equal(t, 1, tr.resets)
	assert.Equal(t, 1, tr.quits)
}

func TestInboxFull(t *testing.T) {
	s, _, tr := newTestServer(t)
	tr.err = tracking.ErrInboxFull

	code, _ := do(t, s, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestShutdown(t *testing.T) {
	s, pub, _ := newTestServer(t)

	code, _ := do(t, s, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.True(t, pub.ShutdownRequested())

	_, body := do(t, s, http.MethodGet, "/api/state", "")
	assert.Contains(t, string(body), `"shutdown":true`)
}

func TestShutdown_Callback(t *testing.T) {
	s, pub, _ := newTestServer(t)
	var reasons []string
	s.OnShutdown = func(reason string) { reasons = append(reasons, reason) }

	code, _ := do(t, s, http.MethodPost, "/api/shutdown", "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, []string{"api"}, reasons)
	assert.False(t, pub.ShutdownRequested(), "flag is left to the supervisor")
}

func TestOverride_Clamped(t *testing.T) {
	s, _, tr := newTestServer(t)

	body := `{"lower":{"h":-10,"s":20,"v":30},"upper":{"h":250,"s":300,"v":40}}`
	code, resp := do(t, s, http.MethodPut, "/api/hsv", body)
	require.Equal(t, http.StatusAccepted, code)

	want := detection.Range{
		Lower: detection.HSV{H: 0, S: 20, V: 30},
		Upper: detection.HSV{H: 180, S: 255, V: 40},
	}
	require.Len(t, tr.overrides, 1)
	assert.Equal(t, want, tr.overrides[0])

	var echoed detection.Range
	require.NoError(t, json.Unmarshal(resp, &echoed))
	assert.Equal(t, want, echoed)
}

func TestDirection(t *testing.T) {
	s, pub, _ := newTestServer(t)

	code, _ := do(t, s, http.MethodPut, "/api/direction", `{"direction":"left"}`)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, pub.Snapshot().Direction)
	assert.Equal(t, state.Left, *pub.Snapshot().Direction)

	code, _ = do(t, s, http.MethodPut, "/api/direction", `{"direction":null}`)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, pub.Snapshot().Direction)

	code, _ = do(t, s, http.MethodPut, "/api/direction", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTuning(t *testing.T) {
	s, _, tr := newTestServer(t)

	code, body := do(t, s, http.MethodPut, "/api/tuning", `{"lock_threshold":150,"tolerance":{"h":5,"s":20,"v":20}}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 150.0, tr.tuning.LockThreshold)
	assert.Contains(t, string(body), `"lock_threshold":150`)

	code, _ = do(t, s, http.MethodPut, "/api/tuning", `{"tolerance":{"h":-1,"s":0,"v":0}}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodGet, "/api/tuning", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestNoTracker(t *testing.T) {
	s := NewServer(DefaultConfig(), state.NewPublisher(""), nil, nil)

	code, _ := do(t, s, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.metrics.ObserveFrame(3)

	code, body := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "lockon_frames_processed_total 1")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s, _, _ := newTestServer(t)

	code, _ := do(t, s, http.MethodGet, "/ws/state", "")
	assert.Equal(t, http.StatusUpgradeRequired, code)
}

func TestSendFrame_SkipsWithoutClients(t *testing.T) {
	s, _, _ := newTestServer(t)
	called := false
	s.SetFrameEncoder(func(detection.Frame) ([]byte, error) {
		called = true
		return nil, nil
	})

	s.SendFrame(nil)
	assert.False(t, called)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ShutdownGrace = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestOverride_InvertedRejected(t *testing.T) {
	s, _, tr := newTestServer(t)

	body := `{"lower":{"h":90,"s":0,"v":0},"upper":{"h":10,"s":255,"v":255}}`
	code, resp := do(t, s, http.MethodPut, "/api/hsv", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, string(resp), "inverted")
	assert.Empty(t, tr.overrides)
}
