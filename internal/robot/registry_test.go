package robot

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/roverlink/roverlink/internal/logring"
)

// fakeSub collects every command it receives.
type fakeSub struct {
	cmds []Command
}

func (s *fakeSub) SendCommand(cmd Command) { s.cmds = append(s.cmds, cmd) }

func newRegistry() (*Registry, *logring.Ring) {
	ring := logring.New(10)
	return New(ring), ring
}

func TestDispatch_DeliversToAllSubscribers(t *testing.T) {
	reg, _ := newRegistry()
	s1, s2 := &fakeSub{}, &fakeSub{}
	reg.Subscribe("r1", s1)
	reg.Subscribe("r1", s2)

	if !reg.Dispatch("r1", "forward", 50) {
		t.Fatal("Dispatch: got NoSubscriber, want Delivered")
	}

	for i, s := range []*fakeSub{s1, s2} {
		if len(s.cmds) != 1 {
			t.Fatalf("subscriber %d: got %d commands, want 1", i, len(s.cmds))
		}
		cmd := s.cmds[0]
		if cmd.RobotID != "r1" || cmd.Action != "forward" || cmd.Speed != 50 {
			t.Errorf("subscriber %d: got %+v", i, cmd)
		}
	}
}

func TestDispatch_ClampsSpeedHigh(t *testing.T) {
	reg, _ := newRegistry()
	s := &fakeSub{}
	reg.Subscribe("r1", s)

	reg.Dispatch("r1", "forward", 150)

	if got := s.cmds[0].Speed; got != 100 {
		t.Errorf("speed: got %d, want 100", got)
	}
}

func TestDispatch_ClampsSpeedLow(t *testing.T) {
	reg, _ := newRegistry()
	s := &fakeSub{}
	reg.Subscribe("r1", s)

	reg.Dispatch("r1", "forward", -5)

	if got := s.cmds[0].Speed; got != 0 {
		t.Errorf("speed: got %d, want 0", got)
	}
}

func TestDispatch_NoSubscriber_WarnEntry(t *testing.T) {
	reg, ring := newRegistry()

	if reg.Dispatch("ghost", "forward", 10) {
		t.Fatal("Dispatch: got Delivered for robot with no subscribers")
	}

	entries := ring.Entries()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d, want 1", len(entries))
	}
	if entries[0].Level != logring.LevelWarn {
		t.Errorf("level: got %v, want warn", entries[0].Level)
	}
	if entries[0].Text != "no robot online: ghost" {
		t.Errorf("text: got %q", entries[0].Text)
	}
}

func TestDispatch_Delivered_InfoEntry(t *testing.T) {
	reg, ring := newRegistry()
	reg.Subscribe("r1", &fakeSub{})

	reg.Dispatch("r1", "left", 30)

	entries := ring.Entries()
	if len(entries) != 1 {
		t.Fatalf("log entries: got %d, want 1", len(entries))
	}
	if entries[0].Level != logring.LevelInfo {
		t.Errorf("level: got %v, want info", entries[0].Level)
	}
	if entries[0].Text != "cmd -> r1: left @30" {
		t.Errorf("text: got %q", entries[0].Text)
	}
}

func TestDispatch_IsolatedPerRobot(t *testing.T) {
	reg, _ := newRegistry()
	s1, s2 := &fakeSub{}, &fakeSub{}
	reg.Subscribe("r1", s1)
	reg.Subscribe("r2", s2)

	reg.Dispatch("r1", "stop", 0)

	if len(s1.cmds) != 1 {
		t.Errorf("r1 subscriber: got %d commands, want 1", len(s1.cmds))
	}
	if len(s2.cmds) != 0 {
		t.Errorf("r2 subscriber: got %d commands, want 0", len(s2.cmds))
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	reg, _ := newRegistry()
	s := &fakeSub{}

	reg.Subscribe("r1", s)
	reg.Unsubscribe("r1", s)
	reg.Unsubscribe("r1", s)        // already removed
	reg.Unsubscribe("missing", s)   // robot never existed

	reg.Dispatch("r1", "forward", 10)
	if len(s.cmds) != 0 {
		t.Errorf("unsubscribed: got %d commands, want 0", len(s.cmds))
	}
}

// detachingSub mimics a connection handler: after Unsubscribe returns it
// closes its send side, and any command arriving past that point would be a
// send on a closed channel.
type detachingSub struct {
	closed atomic.Bool
	late   atomic.Bool
}

func (s *detachingSub) SendCommand(Command) {
	if s.closed.Load() {
		s.late.Store(true)
	}
}

func TestDispatch_NoSendAfterUnsubscribeReturns(t *testing.T) {
	reg, _ := newRegistry()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				reg.Dispatch("r1", "forward", 10)
			}
		}
	}()

	subs := make([]*detachingSub, 0, 300)
	for i := 0; i < 300; i++ {
		s := &detachingSub{}
		subs = append(subs, s)
		reg.Subscribe("r1", s)
		reg.Unsubscribe("r1", s)
		s.closed.Store(true)
	}
	close(stop)
	wg.Wait()

	for i, s := range subs {
		if s.late.Load() {
			t.Fatalf("subscriber %d: SendCommand after Unsubscribe returned", i)
		}
	}
}

func TestRobotEntryPersistsAfterLastSubscriberLeaves(t *testing.T) {
	reg, _ := newRegistry()
	s := &fakeSub{}
	reg.Subscribe("r1", s)
	reg.Unsubscribe("r1", s)

	// The key stays; only membership matters.
	if n := reg.Subscribers("r1"); n != 0 {
		t.Errorf("Subscribers: got %d, want 0", n)
	}
	if reg.Dispatch("r1", "forward", 10) {
		t.Error("Dispatch: empty set must report NoSubscriber")
	}
}
