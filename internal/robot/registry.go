package robot

import (
	"fmt"
	"sync"

	"github.com/roverlink/roverlink/internal/logring"
)

// Speed bounds applied to every dispatched command.
const (
	MinSpeed = 0
	MaxSpeed = 100
)

// Command is the structured message delivered to robot subscribers.
type Command struct {
	RobotID string `json:"robot_id"`
	Action  string `json:"action"`
	Speed   int    `json:"speed"`
}

// Subscriber receives dispatched commands. SendCommand must not block.
type Subscriber interface {
	SendCommand(cmd Command)
}

// Registry is a thread-safe map from robot id to subscriber set. Robot
// entries are created implicitly on first subscribe and never removed;
// membership, not presence of the key, determines dispatch behavior.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[Subscriber]struct{}
	log  *logring.Ring
}

// New creates a Registry that records dispatch outcomes in log.
func New(log *logring.Ring) *Registry {
	return &Registry{
		subs: make(map[string]map[Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe adds s to the robot's subscriber set. Idempotent.
func (r *Registry) Subscribe(robotID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subs[robotID]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.subs[robotID] = set
	}
	set[s] = struct{}{}
}

// Unsubscribe removes s from the robot's subscriber set. Idempotent.
func (r *Registry) Unsubscribe(robotID string, s Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.subs[robotID]; ok {
		delete(set, s)
	}
}

// Subscribers returns the current subscriber count for the robot.
func (r *Registry) Subscribers(robotID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[robotID])
}

// Dispatch clamps speed into [MinSpeed, MaxSpeed], builds a Command, and
// sends it to every subscriber of robotID present at call time. It reports
// whether at least one subscriber was targeted; membership is a
// point-in-time snapshot, not a delivery guarantee. Each call appends one
// log entry: info on delivery, warn when no robot is online.
//
// Sends happen while the registry lock is held (they are non-blocking), so
// once Unsubscribe returns no further SendCommand can reach that
// subscriber.
func (r *Registry) Dispatch(robotID, action string, speed int) bool {
	if speed < MinSpeed {
		speed = MinSpeed
	} else if speed > MaxSpeed {
		speed = MaxSpeed
	}
	cmd := Command{RobotID: robotID, Action: action, Speed: speed}

	r.mu.RLock()
	delivered := len(r.subs[robotID]) > 0
	for s := range r.subs[robotID] {
		s.SendCommand(cmd)
	}
	r.mu.RUnlock()

	if !delivered {
		r.log.Append(logring.LevelWarn, "no robot online: "+robotID)
		return false
	}
	r.log.Append(logring.LevelInfo,
		fmt.Sprintf("cmd -> %s: %s @%d", robotID, action, speed))
	return true
}
