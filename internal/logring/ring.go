package logring

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when no explicit capacity
// is configured.
const DefaultCapacity = 500

// Level is an entry severity. Levels are ordered: a subscriber with a
// minimum level only receives entries at that level or above.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// String returns the wire name of the level.
func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// MarshalJSON encodes the level as its wire name.
func (l Level) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, l.String()), nil
}

// UnmarshalJSON decodes a wire name back into a Level.
func (l *Level) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("logring: level: %w", err)
	}
	lv, ok := ParseLevel(s)
	if !ok {
		return fmt.Errorf("logring: unknown level %q", s)
	}
	*l = lv
	return nil
}

// ParseLevel maps a wire name to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Entry is one immutable log record. TS is Unix milliseconds.
type Entry struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
	TS    int64  `json:"ts"`
}

// Subscriber receives entries that pass its severity filter. SendEntry must
// not block; subscribers are called while the ring's lock is held, which is
// what guarantees backlog-then-live ordering per subscriber.
type Subscriber interface {
	SendEntry(e Entry)
}

// Ring is a thread-safe bounded log buffer with filtered fan-out.
type Ring struct {
	mu      sync.Mutex
	cap     int
	entries []Entry
	subs    map[Subscriber]Level
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Ring keeping at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		cap:  capacity,
		subs: make(map[Subscriber]Level),
		now:  time.Now,
	}
}

// Append records a new entry, evicts the oldest entries beyond capacity,
// and fans the entry out to every subscriber whose filter admits it.
func (r *Ring) Append(level Level, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := Entry{Level: level, Text: text, TS: r.now().UnixMilli()}
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}

	for s, min := range r.subs {
		if e.Level >= min {
			s.SendEntry(e)
		}
	}
}

// Subscribe registers s with the given minimum level and delivers the
// matching backlog, oldest first, before Subscribe returns. Any entry
// appended after Subscribe returns is delivered live exactly once.
func (r *Ring) Subscribe(min Level, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs[s] = min
	for _, e := range r.entries {
		if e.Level >= min {
			s.SendEntry(e)
		}
	}
}

// Unsubscribe removes s. Removing an unknown subscriber is a no-op.
func (r *Ring) Unsubscribe(s Subscriber) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
