package video

import "sync"

// DefaultMaxFrameBytes caps a single ingested frame at 2 MiB.
const DefaultMaxFrameBytes = 2 << 20

// Viewer receives raw frame payloads. SendFrame must not block; viewers are
// called while the cache's lock is held so that frames reach each viewer in
// ingest-arrival order.
type Viewer interface {
	SendFrame(frame []byte)
}

// Cache is a thread-safe latest-frame store keyed by stream id, with a
// viewer set per stream.
type Cache struct {
	mu       sync.RWMutex
	maxBytes int
	streams  map[string]*stream
}

type stream struct {
	latest  []byte
	viewers map[Viewer]struct{}
}

// New creates a Cache rejecting frames larger than maxFrameBytes.
// A non-positive cap falls back to DefaultMaxFrameBytes.
func New(maxFrameBytes int) *Cache {
	if maxFrameBytes <= 0 {
		maxFrameBytes = DefaultMaxFrameBytes
	}
	return &Cache{
		maxBytes: maxFrameBytes,
		streams:  make(map[string]*stream),
	}
}

// MaxFrameBytes returns the configured per-frame size cap.
func (c *Cache) MaxFrameBytes() int { return c.maxBytes }

// Ingest caches frame as the stream's latest and fans it out to every
// current viewer, best effort. Frames above the size cap are dropped
// silently; Ingest reports whether the frame was accepted. Callers must not
// modify frame after Ingest accepts it.
func (c *Cache) Ingest(streamID string, frame []byte) bool {
	if len(frame) > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stream(streamID)
	st.latest = frame
	for v := range st.viewers {
		v.SendFrame(frame)
	}
	return true
}

// Subscribe adds v to the stream's viewer set. If a frame is cached, v
// receives it immediately, before any later live frame.
func (c *Cache) Subscribe(streamID string, v Viewer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stream(streamID)
	st.viewers[v] = struct{}{}
	if st.latest != nil {
		v.SendFrame(st.latest)
	}
}

// Unsubscribe removes v from the stream's viewer set. Removing an unknown
// viewer is a no-op. The stream entry itself is never removed.
func (c *Cache) Unsubscribe(streamID string, v Viewer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.streams[streamID]; ok {
		delete(st.viewers, v)
	}
}

// Snapshot returns the cached frame for the stream and whether one exists.
func (c *Cache) Snapshot(streamID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.streams[streamID]
	if !ok || st.latest == nil {
		return nil, false
	}
	return st.latest, true
}

// Viewers returns the current viewer count for the stream.
func (c *Cache) Viewers(streamID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st, ok := c.streams[streamID]
	if !ok {
		return 0
	}
	return len(st.viewers)
}

// stream returns the entry for id, creating it if needed.
// Callers must hold c.mu.
func (c *Cache) stream(id string) *stream {
	st, ok := c.streams[id]
	if !ok {
		st = &stream{viewers: make(map[Viewer]struct{})}
		c.streams[id] = st
	}
	return st
}
