package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/roverlink/roverlink/internal/api"
	"github.com/roverlink/roverlink/internal/auth"
	"github.com/roverlink/roverlink/internal/logring"
	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/internal/robot"
	"github.com/roverlink/roverlink/internal/video"
)

const testSecret = "s3cret"

// --- test helpers -----------------------------------------------------------

type deps struct {
	handler http.Handler
	cache   *video.Cache
	robots  *robot.Registry
	ring    *logring.Ring
}

func newAPI(t *testing.T) *deps {
	t.Helper()

	gate, err := auth.New("static", testSecret, "admin", "pw", 0)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	ring := logring.New(50)
	cache := video.New(0)
	robots := robot.New(ring)

	return &deps{
		handler: api.New(gate, cache, robots, metrics.New(), nil),
		cache:   cache,
		robots:  robots,
		ring:    ring,
	}
}

// cmdSink implements robot.Subscriber.
type cmdSink struct {
	cmds []robot.Command
}

func (s *cmdSink) SendCommand(cmd robot.Command) { s.cmds = append(s.cmds, cmd) }

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func postJSON(t *testing.T, h http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return do(t, h, req)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /auth/login ------------------------------------------------------------

func TestLogin_ValidCredentials(t *testing.T) {
	d := newAPI(t)
	rr := postJSON(t, d.handler, "/auth/login",
		map[string]string{"username": "admin", "password": "pw"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["access_token"] != testSecret {
		t.Errorf("access_token: got %q, want the shared secret", resp["access_token"])
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	d := newAPI(t)
	rr := postJSON(t, d.handler, "/auth/login",
		map[string]string{"username": "admin", "password": "wrong"})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "bad credentials" {
		t.Errorf("error: got %q, want bad credentials", resp["error"])
	}
}

func TestLogin_FormEncodedBody(t *testing.T) {
	d := newAPI(t)
	form := url.Values{"username": {"admin"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := do(t, d.handler, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
}

func TestLogin_MalformedBody(t *testing.T) {
	d := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")

	if rr := do(t, d.handler, req); rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

// --- token gate middleware --------------------------------------------------

func TestGatedEndpoint_NoToken(t *testing.T) {
	d := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot/A", nil)

	rr := do(t, d.handler, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "no token" {
		t.Errorf("error: got %q, want no token", resp["error"])
	}
}

func TestGatedEndpoint_BadToken(t *testing.T) {
	d := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot/A?token=wrong", nil)

	rr := do(t, d.handler, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want 401", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "bad token" {
		t.Errorf("error: got %q, want bad token", resp["error"])
	}
}

func TestGatedEndpoint_TokenViaCookie(t *testing.T) {
	d := newAPI(t)
	d.cache.Ingest("A", []byte("frame"))

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot/A", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: testSecret})

	if rr := do(t, d.handler, req); rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

// --- /api/snapshot/{stream} -------------------------------------------------

func TestSnapshot_ReturnsCachedFrame(t *testing.T) {
	d := newAPI(t)
	frame := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	d.cache.Ingest("A", frame)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot/A?token="+testSecret, nil)
	rr := do(t, d.handler, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type: got %q, want image/jpeg", ct)
	}
	if !bytes.Equal(rr.Body.Bytes(), frame) {
		t.Errorf("body: got %v, want %v", rr.Body.Bytes(), frame)
	}
}

func TestSnapshot_NoFrame(t *testing.T) {
	d := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/snapshot/empty?token="+testSecret, nil)

	rr := do(t, d.handler, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "no frame" {
		t.Errorf("error: got %q, want no frame", resp["error"])
	}
}

// --- /api/robot/{id}/control ------------------------------------------------

func TestRobotControl_Delivered(t *testing.T) {
	d := newAPI(t)
	sink := &cmdSink{}
	d.robots.Subscribe("r1", sink)

	rr := postJSON(t, d.handler, "/api/robot/r1/control?token="+testSecret,
		map[string]interface{}{"action": "forward", "speed": 150})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]bool
	decode(t, rr, &resp)
	if !resp["ok"] {
		t.Error("ok: got false, want true")
	}

	if len(sink.cmds) != 1 {
		t.Fatalf("commands: got %d, want 1", len(sink.cmds))
	}
	if sink.cmds[0].Speed != 100 {
		t.Errorf("speed: got %d, want 100 (clamped)", sink.cmds[0].Speed)
	}
}

func TestRobotControl_NoRobotConnected(t *testing.T) {
	d := newAPI(t)

	rr := postJSON(t, d.handler, "/api/robot/ghost/control?token="+testSecret,
		map[string]interface{}{"action": "forward", "speed": 10})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] != "no robot connected" {
		t.Errorf("error: got %q", resp["error"])
	}

	// Exactly one warn entry lands in the log ring.
	entries := d.ring.Entries()
	if len(entries) != 1 || entries[0].Level != logring.LevelWarn {
		t.Errorf("log entries: got %+v, want single warn", entries)
	}
}

func TestRobotControl_MissingSpeedDispatchesZero(t *testing.T) {
	d := newAPI(t)
	sink := &cmdSink{}
	d.robots.Subscribe("r1", sink)

	rr := postJSON(t, d.handler, "/api/robot/r1/control?token="+testSecret,
		map[string]interface{}{"action": "stop"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if sink.cmds[0].Speed != 0 {
		t.Errorf("speed: got %d, want 0", sink.cmds[0].Speed)
	}
}

// --- /api/health and /metrics -----------------------------------------------

func TestHealth_AlwaysOK(t *testing.T) {
	d := newAPI(t)
	rr := do(t, d.handler, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]bool
	decode(t, rr, &resp)
	if !resp["ok"] {
		t.Error("ok: got false, want true")
	}
}

func TestMetrics_Exposed(t *testing.T) {
	d := newAPI(t)
	rr := do(t, d.handler, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "roverlink_connections") {
		t.Errorf("body does not expose relay metrics: %s", rr.Body.String())
	}
}
