package hub

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roverlink/roverlink/internal/auth"
	"github.com/roverlink/roverlink/internal/logring"
	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/internal/robot"
	"github.com/roverlink/roverlink/internal/video"
)

// Connect-time parameter defaults.
const (
	DefaultStream  = "A"
	DefaultRobotID = "r1"
)

// Role names accepted on the persistent endpoint.
const (
	RoleIngest = "ingest"
	RoleView   = "view"
	RoleLogs   = "logs"
	RoleRobot  = "robot"
)

// discardReadLimit caps inbound traffic on roles that only receive.
const discardReadLimit = 4096

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins — callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the connection router. It owns the video cache, the robot channel
// registry, and the log ring, and attaches each authenticated connection to
// exactly one of them based on its declared role.
type Hub struct {
	gate   auth.Gate
	video  *video.Cache
	robots *robot.Registry
	logs   *logring.Ring
	met    *metrics.Registry

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// New creates a Hub routing into the given registries.
func New(gate auth.Gate, vid *video.Cache, robots *robot.Registry, logs *logring.Ring, met *metrics.Registry) *Hub {
	return &Hub{
		gate:    gate,
		video:   vid,
		robots:  robots,
		logs:    logs,
		met:     met,
		clients: make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes every live connection.
// The per-connection handlers then run their normal cleanup paths.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Count returns the number of currently connected clients across all roles.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection, runs the token gate, and routes by
// role. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role := q.Get("role")
	token := auth.ResolveToken(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	identity, ok := h.gate.Validate(token)
	if !ok {
		closeWith(conn, "bad token")
		return
	}

	switch role {
	case RoleIngest, RoleView, RoleLogs, RoleRobot:
	default:
		closeWith(conn, "unknown role")
		return
	}

	c := newClient(conn, h.met)
	h.register(c)
	h.met.ConnOpened(role)
	defer func() {
		h.unregister(c)
		h.met.ConnClosed(role)
		slog.Info("connection closed", "conn", c.id, "role", role)
	}()

	go c.writePump()
	slog.Info("connection routed",
		"conn", c.id, "role", role, "subject", identity.Subject)

	switch role {
	case RoleIngest:
		h.runIngest(c, paramOr(q.Get("stream"), DefaultStream))
	case RoleView:
		h.runView(c, paramOr(q.Get("stream"), DefaultStream))
	case RoleLogs:
		h.runLogs(c, q.Get("level"))
	case RoleRobot:
		h.runRobot(c, paramOr(q.Get("robot_id"), DefaultRobotID))
	}
}

// runIngest feeds binary frames into the video cache until the connection
// closes. Connect and disconnect are recorded in the log ring.
func (h *Hub) runIngest(c *client, stream string) {
	h.logs.Append(logring.LevelInfo, "ingest connected: stream="+stream)
	defer h.logs.Append(logring.LevelInfo, "ingest disconnected: stream="+stream)

	// Twice the frame cap: moderately oversize frames are dropped silently
	// by the cache, only absurdly large messages kill the connection.
	limit := int64(h.video.MaxFrameBytes()) * 2
	c.readLoop(limit, func(msgType int, data []byte) {
		if msgType != websocket.BinaryMessage {
			return
		}
		if h.video.Ingest(stream, data) {
			h.met.FrameIngested(len(data))
		} else {
			h.met.FrameDropped()
		}
	})
}

// runView attaches the client as a stream viewer; the cache delivers the
// cached frame (if any) during Subscribe.
func (h *Hub) runView(c *client, stream string) {
	h.video.Subscribe(stream, c)
	defer h.video.Unsubscribe(stream, c)
	c.readLoop(discardReadLimit, nil)
}

// runLogs attaches the client as a log subscriber; the ring delivers the
// filtered backlog during Subscribe. Unparseable levels fall back to info.
func (h *Hub) runLogs(c *client, level string) {
	min, ok := logring.ParseLevel(level)
	if !ok {
		min = logring.LevelInfo
	}
	h.logs.Subscribe(min, c)
	defer h.logs.Unsubscribe(c)
	c.readLoop(discardReadLimit, nil)
}

// runRobot attaches the client as a robot command subscriber. Inbound
// messages (hello/ack chatter from the robot client) are read and discarded.
func (h *Hub) runRobot(c *client, robotID string) {
	h.robots.Subscribe(robotID, c)
	defer h.robots.Unsubscribe(robotID, c)
	c.readLoop(discardReadLimit, nil)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c from the hub and closes its send channel. Callers
// must have detached c from its registry first: once the registry no longer
// holds the handle, nothing can race a send against the channel close.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// closeAll closes the underlying connections. Each connection's handler
// observes the close and runs its usual detach/unregister cleanup.
func (h *Hub) closeAll() {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.conn.Close()
	}
}

// closeWith rejects a freshly upgraded connection with close code 1008.
func closeWith(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)) //nolint:errcheck
	conn.Close()
}

func paramOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
