package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/route"
	"github.com/teslashibe/go-guide/pkg/session"
	"github.com/teslashibe/go-guide/pkg/triplog"
	"github.com/teslashibe/go-guide/pkg/vision"
)

var origin = direction.Point{Lat: 7.2900, Lng: 80.6400}

// fakeNarrator records queued text.
type fakeNarrator struct {
	mu     sync.Mutex
	texts  []string
	clears int
}

func (f *fakeNarrator) Enqueue(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNarrator) Clear() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return 0
}

func (f *fakeNarrator) Pending() int   { return 0 }
func (f *fakeNarrator) Enabled() bool  { return true }
func (f *fakeNarrator) Speaking() bool { return false }

func (f *fakeNarrator) said() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func (f *fakeNarrator) last() string {
	s := f.said()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

// fakeRobot is a settable robot transport.
type fakeRobot struct {
	mu      sync.Mutex
	pos     *direction.Point
	heading float64
	cmds    []direction.Command
}

func (r *fakeRobot) Position(context.Context) (direction.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos == nil {
		return direction.Point{}, control.ErrNoFix
	}
	return *r.pos, nil
}

func (r *fakeRobot) Heading(context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heading, nil
}

func (r *fakeRobot) Publish(_ context.Context, cmd direction.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *fakeRobot) set(p direction.Point) {
	r.mu.Lock()
	r.pos = &p
	r.mu.Unlock()
}

func (r *fakeRobot) commands() []direction.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]direction.Command, len(r.cmds))
	copy(out, r.cmds)
	return out
}

// recordingEvents captures published event types.
type recordingEvents struct {
	mu    sync.Mutex
	types []hub.EventType
}

func (e *recordingEvents) Publish(typ hub.EventType, _ interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, typ)
	return nil
}

func (e *recordingEvents) count(typ hub.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, t := range e.types {
		if t == typ {
			n++
		}
	}
	return n
}

type harness struct {
	m      *session.Manager
	narr   *fakeNarrator
	robot  *fakeRobot
	rec    *triplog.Memory
	events *recordingEvents
}

func newHarness(t *testing.T, pedestrianPeriod time.Duration, modify func(*session.Deps)) *harness {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.Pedestrian.Period = pedestrianPeriod
	cfg.Robot.Period = 10 * time.Millisecond
	cfg.CallTimeout = time.Second
	cfg.SampleInstructions = 3

	h := &harness{
		narr:   &fakeNarrator{},
		robot:  &fakeRobot{},
		rec:    triplog.NewMemory(),
		events: &recordingEvents{},
	}
	deps := session.Deps{
		Narrator: h.narr,
		Robot:    session.RobotIO{Position: h.robot, Heading: h.robot, Sink: h.robot},
		Recorder: h.rec,
		Events:   h.events,
	}
	if modify != nil {
		modify(&deps)
	}
	m, err := session.NewManager(cfg, deps)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	h.m = m
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewManager_RequiresNarrator(t *testing.T) {
	if _, err := session.NewManager(session.DefaultConfig(), session.Deps{}); err == nil {
		t.Error("expected error without narrator")
	}
}

func TestStartNavigation(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	dest := direction.Offset(origin, 300, 0)

	t.Run("rejects invalid destination", func(t *testing.T) {
		_, err := h.m.StartNavigation(t.Context(), session.StartRequest{Destination: direction.Point{Lat: 95}})
		if !errors.Is(err, route.ErrInvalidDestination) {
			t.Fatalf("expected ErrInvalidDestination, got %v", err)
		}
		if st := h.m.Status(); st.ID != nil || st.Guidance.State != guidance.Inactive {
			t.Errorf("failed start must not create a session: %+v", st)
		}
	})

	t.Run("sample instructions when none given", func(t *testing.T) {
		started, err := h.m.StartNavigation(t.Context(), session.StartRequest{Destination: dest, Current: &origin})
		if err != nil {
			t.Fatalf("StartNavigation: %v", err)
		}
		if started.Waypoints != 3 || started.Instructions != 3 {
			t.Errorf("started = %+v", started)
		}
		if h.narr.last() != started.Announcement || started.Announcement == "" {
			t.Errorf("opening not queued: %q vs %q", h.narr.said(), started.Announcement)
		}
		if !strings.Contains(started.Announcement, "3 steps") {
			t.Errorf("announcement %q should mention the step count", started.Announcement)
		}

		st := h.m.Status()
		if st.ID == nil || *st.ID != started.ID || st.Guidance.State != guidance.Active {
			t.Errorf("status = %+v", st)
		}
		if trips := h.rec.Trips(); len(trips) != 1 || trips[0].ID != started.ID || trips[0].Mode != triplog.ModePedestrian {
			t.Errorf("trips = %+v", trips)
		}
		if h.events.count(hub.EventStatus) == 0 {
			t.Error("expected a status event")
		}
	})
}

func TestUpdatePosition(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	if _, err := h.m.UpdatePosition(200, 0); !errors.Is(err, direction.ErrInvalidPoint) {
		t.Errorf("expected ErrInvalidPoint, got %v", err)
	}
	upd, err := h.m.UpdatePosition(origin.Lat, origin.Lng)
	if err != nil || upd.Active {
		t.Errorf("idle update = %+v, %v", upd, err)
	}

	started, err := h.m.StartNavigation(t.Context(), session.StartRequest{
		Destination:  direction.Offset(origin, 300, 0),
		Instructions: []string{"Walk <b>north</b>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if started.Current == nil || *started.Current != origin {
		t.Errorf("last pushed fix should be used as current location, got %v", started.Current)
	}

	upd, _ = h.m.UpdatePosition(origin.Lat+0.0001, origin.Lng)
	if !upd.Active {
		t.Error("update during navigation should report active")
	}
	if fixes := h.rec.Entries(started.ID, triplog.KindFix); len(fixes) != 1 {
		t.Errorf("recorded fixes = %d, want 1", len(fixes))
	}
}

func TestNavigation_ArrivesAndEnds(t *testing.T) {
	h := newHarness(t, 10*time.Millisecond, nil)
	dest := direction.Offset(origin, 300, 90)

	started, err := h.m.StartNavigation(t.Context(), session.StartRequest{
		Destination:  dest,
		Instructions: []string{"Walk east"},
		Current:      &origin,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.m.UpdatePosition(dest.Lat, dest.Lng); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "arrival outcome", func() bool { return h.rec.Outcome(started.ID) == "arrived" })

	said := h.narr.said()
	if said[len(said)-2] != guidance.MsgApproaching || said[len(said)-1] != guidance.MsgArrived {
		t.Errorf("narration = %q", said)
	}
	if st := h.m.Status(); st.Guidance.State != guidance.Completed {
		t.Errorf("state = %v, want completed", st.Guidance.State)
	}
	if _, _, err := h.m.ForceGuidanceTick(t.Context()); !errors.Is(err, session.ErrNotActive) {
		t.Errorf("force tick after arrival: expected ErrNotActive, got %v", err)
	}
}

func TestStopNavigation(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	if h.m.StopNavigation() {
		t.Error("stop without a session should report false")
	}
	if h.narr.last() != guidance.MsgStopped {
		t.Errorf("last = %q", h.narr.last())
	}

	started, err := h.m.StartNavigation(t.Context(), session.StartRequest{
		Destination: direction.Offset(origin, 300, 0),
		Current:     &origin,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !h.m.StopNavigation() {
		t.Error("stop of an active session should report true")
	}
	if h.narr.last() != guidance.MsgStopped {
		t.Errorf("last = %q", h.narr.last())
	}
	waitFor(t, "stopped outcome", func() bool { return h.rec.Outcome(started.ID) == "stopped" })
	if _, _, err := h.m.ForceGuidanceTick(t.Context()); !errors.Is(err, session.ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

func TestForceGuidanceTick(t *testing.T) {
	h := newHarness(t, time.Hour, nil)

	if _, _, err := h.m.ForceGuidanceTick(t.Context()); !errors.Is(err, session.ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	dest := direction.Offset(origin, 40, 0)
	if _, err := h.m.StartNavigation(t.Context(), session.StartRequest{
		Destination:  dest,
		Instructions: []string{"Walk north"},
		Current:      &origin,
	}); err != nil {
		t.Fatal(err)
	}

	a, spoke, err := h.m.ForceGuidanceTick(t.Context())
	if err != nil || !spoke {
		t.Fatalf("ForceGuidanceTick = %+v, %v, %v", a, spoke, err)
	}
	if a.Kind != guidance.KindProgress || h.narr.last() != a.Text {
		t.Errorf("announcement %+v, last %q", a, h.narr.last())
	}
}

func TestRobot(t *testing.T) {
	h := newHarness(t, time.Hour, nil)
	dest := direction.Offset(origin, 100, 90)
	h.robot.set(origin)

	t.Run("busy while running", func(t *testing.T) {
		if _, err := h.m.StartRobot(dest); err != nil {
			t.Fatalf("StartRobot: %v", err)
		}
		if h.narr.last() != session.MsgRobotStarted {
			t.Errorf("last = %q", h.narr.last())
		}
		if _, err := h.m.StartRobot(dest); !errors.Is(err, session.ErrRobotBusy) {
			t.Errorf("expected ErrRobotBusy, got %v", err)
		}
		waitFor(t, "first command", func() bool { return len(h.robot.commands()) > 0 })

		st := h.m.RobotStatus(t.Context())
		if st.ID == nil || st.Loop.Position == nil || st.Loop.Compass != "east" {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("stop publishes stopped", func(t *testing.T) {
		running, err := h.m.StopRobot(t.Context())
		if err != nil || !running {
			t.Fatalf("StopRobot = %v, %v", running, err)
		}
		cmds := h.robot.commands()
		if cmds[len(cmds)-1] != direction.Stopped {
			t.Errorf("commands = %v", cmds)
		}
		if h.narr.last() != session.MsgRobotStopped {
			t.Errorf("last = %q", h.narr.last())
		}
	})

	t.Run("arrival ends the session", func(t *testing.T) {
		h.robot.set(dest)
		started, err := h.m.StartRobot(dest)
		if err != nil {
			t.Fatalf("restart after stop: %v", err)
		}
		waitFor(t, "arrival", func() bool { return h.rec.Outcome(started.ID) == "arrived" })
		if h.narr.last() != session.MsgRobotArrived {
			t.Errorf("last = %q", h.narr.last())
		}
		if _, err := h.m.StartRobot(dest); err != nil {
			t.Errorf("start after arrival: %v", err)
		}
	})
}

func TestRobot_NotConfigured(t *testing.T) {
	h := newHarness(t, time.Hour, func(d *session.Deps) { d.Robot = session.RobotIO{} })
	if _, err := h.m.StartRobot(origin); !errors.Is(err, session.ErrNoRobot) {
		t.Errorf("expected ErrNoRobot, got %v", err)
	}
}

type stubCamera struct{ err error }

func (c stubCamera) CaptureFrame(context.Context) ([]byte, error) { return []byte{0xff, 0xd8}, c.err }

type stubDescriber struct{}

func (stubDescriber) Describe(context.Context, []byte) (string, error) {
	return "Clear path ahead.", nil
}

func TestLook(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t, time.Hour, nil)
		if _, err := h.m.Look(t.Context()); !errors.Is(err, session.ErrNoVision) {
			t.Errorf("expected ErrNoVision, got %v", err)
		}
		if h.narr.last() != vision.FallbackText {
			t.Errorf("last = %q", h.narr.last())
		}
	})

	t.Run("speaks description", func(t *testing.T) {
		h := newHarness(t, time.Hour, func(d *session.Deps) {
			d.Camera = stubCamera{}
			d.Describer = stubDescriber{}
		})
		text, err := h.m.Look(t.Context())
		if err != nil || text != "Clear path ahead." || h.narr.last() != text {
			t.Errorf("Look = %q, %v; last %q", text, err, h.narr.last())
		}
	})

	t.Run("capture failure falls back", func(t *testing.T) {
		h := newHarness(t, time.Hour, func(d *session.Deps) {
			d.Camera = stubCamera{err: errors.New("camera offline")}
			d.Describer = stubDescriber{}
		})
		if _, err := h.m.Look(t.Context()); err == nil {
			t.Error("expected error")
		}
		if h.narr.last() != vision.FallbackText {
			t.Errorf("last = %q", h.narr.last())
		}
	})
}
