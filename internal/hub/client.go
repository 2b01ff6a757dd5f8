package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roverlink/roverlink/internal/logring"
	"github.com/roverlink/roverlink/internal/metrics"
	"github.com/roverlink/roverlink/internal/robot"
)

const (
	// writeTimeout is the deadline for a single write to a peer.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth. A full
	// buffer drops further messages, which bounds the backlog a slow
	// consumer can accumulate.
	sendBufSize = 16
)

// message pairs a payload with its WebSocket frame type.
type message struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

// client wraps one live connection. It implements video.Viewer,
// logring.Subscriber, and robot.Subscriber, so a single handle can be
// attached to whichever registry its role selects.
type client struct {
	id   string
	conn *websocket.Conn
	send chan message
	met  *metrics.Registry
}

func newClient(conn *websocket.Conn, met *metrics.Registry) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan message, sendBufSize),
		met:  met,
	}
}

// trySend queues a message for the write pump, dropping it if the client's
// buffer is full. This is the single deliver-or-drop primitive behind every
// fan-out path: a slow or dead peer never blocks delivery to others.
func (c *client) trySend(kind int, data []byte) {
	select {
	case c.send <- message{kind: kind, data: data}:
	default:
		c.met.SendDropped()
	}
}

// SendFrame implements video.Viewer. Frames are forwarded unmodified as
// binary messages.
func (c *client) SendFrame(frame []byte) {
	c.trySend(websocket.BinaryMessage, frame)
}

// SendEntry implements logring.Subscriber.
func (c *client) SendEntry(e logring.Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	c.trySend(websocket.TextMessage, b)
}

// SendCommand implements robot.Subscriber.
func (c *client) SendCommand(cmd robot.Command) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return
	}
	c.trySend(websocket.TextMessage, b)
}

// writePump drains the send channel and forwards messages to the peer,
// interleaving periodic pings. Runs in its own goroutine per client; exits
// when the send channel closes or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (client removed or hub shutting down).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads frames from the peer until the connection closes, passing
// each data message to onMessage (nil discards everything). It keeps the
// read deadline fresh on pongs and on inbound traffic, so a busy ingest
// stream stays alive even if pongs are delayed.
func (c *client) readLoop(limit int64, onMessage func(msgType int, data []byte)) {
	defer c.conn.Close()
	if limit > 0 {
		c.conn.SetReadLimit(limit)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if onMessage != nil {
			onMessage(msgType, data)
		}
	}
}
