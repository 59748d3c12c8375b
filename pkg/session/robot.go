package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/triplog"
)

// Spoken robot session messages.
const (
	MsgRobotStarted = "Robot navigation activated. Calculating path to destination."
	MsgRobotStopped = "Robot navigation stopped."
	MsgRobotArrived = "The robot has arrived at the destination."
)

// Robot is one steering session.
type Robot struct {
	ID        uuid.UUID
	StartedAt time.Time

	loop *control.RobotLoop
}

// RobotStarted is the result of StartRobot.
type RobotStarted struct {
	ID          uuid.UUID       `json:"id"`
	Destination direction.Point `json:"destination"`
}

// StartRobot starts steering toward dest. It fails with ErrRobotBusy while
// another robot session is still running.
func (m *Manager) StartRobot(dest direction.Point) (RobotStarted, error) {
	if !m.deps.Robot.ok() {
		return RobotStarted{}, ErrNoRobot
	}
	if err := dest.Validate(); err != nil {
		return RobotStarted{}, err
	}

	loop, err := control.NewRobotLoop(dest, m.deps.Robot.Position, m.deps.Robot.Heading, m.deps.Robot.Sink, m.cfg.Robot, m.deps.Logger)
	if err != nil {
		return RobotStarted{}, err
	}

	m.mu.Lock()
	if m.robot != nil {
		select {
		case <-m.robot.loop.Done():
		default:
			m.mu.Unlock()
			return RobotStarted{}, ErrRobotBusy
		}
	}
	now := m.now()
	r := &Robot{ID: uuid.New(), StartedAt: now, loop: loop}
	m.robot = r
	d := dest
	m.lastRobot = &d
	m.mu.Unlock()

	loop.OnCommand = func(cmd direction.Command, err error) {
		m.onCommand(r, cmd, err)
	}

	m.record("begin", func(ctx context.Context, rec triplog.Recorder) error {
		return rec.Begin(ctx, triplog.Trip{
			ID:          r.ID,
			Mode:        triplog.ModeRobot,
			Destination: dest,
			Waypoints:   1,
			StartedAt:   now,
		})
	})

	m.say(MsgRobotStarted)

	m.spawn(func() {
		loop.Run(m.ctx)
		outcome := "stopped"
		if loop.Status().Command == direction.Arrived {
			outcome = "arrived"
		}
		m.record("end", func(ctx context.Context, rec triplog.Recorder) error {
			return rec.End(ctx, r.ID, outcome, m.now())
		})
	})

	m.logger.Info("robot navigation started", "session", r.ID, "destination", dest.String())
	return RobotStarted{ID: r.ID, Destination: dest}, nil
}

func (m *Manager) onCommand(r *Robot, cmd direction.Command, err error) {
	ev := CommandEvent{Session: r.ID, Command: cmd}
	if err != nil {
		ev.Error = err.Error()
	} else {
		m.record("command", func(ctx context.Context, rec triplog.Recorder) error {
			st := r.loop.Status()
			return rec.Log(ctx, triplog.Entry{TripID: r.ID, Kind: triplog.KindCommand, At: m.now(), Position: st.Position, Text: cmd.String()})
		})
		if cmd == direction.Arrived {
			m.say(MsgRobotArrived)
		}
	}
	m.publish(hub.EventCommand, ev)
}

// StopRobot stops the robot loop, waits for it to exit, then tells the robot
// to stop and announces it. It reports whether a loop was running.
func (m *Manager) StopRobot(ctx context.Context) (bool, error) {
	m.mu.Lock()
	r := m.robot
	m.mu.Unlock()

	wasRunning := false
	if r != nil {
		select {
		case <-r.loop.Done():
		default:
			wasRunning = true
		}
		r.loop.Stop()
		select {
		case <-r.loop.Done():
		case <-ctx.Done():
			return wasRunning, ctx.Err()
		}
	}

	var err error
	if m.deps.Robot.Sink != nil {
		pctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		err = m.deps.Robot.Sink.Publish(pctx, direction.Stopped)
		cancel()
		if err != nil {
			m.logger.Warn("stop command failed", "error", err)
		}
		if r != nil {
			m.onCommand(r, direction.Stopped, err)
		}
	}

	m.say(MsgRobotStopped)
	m.logger.Info("robot navigation stopped", "was_running", wasRunning)
	return wasRunning, err
}

// RobotStatus is a snapshot of the robot side. Position and heading are read
// live so the status is useful between sessions.
type RobotStatus struct {
	ID        *uuid.UUID          `json:"id,omitempty"`
	StartedAt *time.Time          `json:"started_at,omitempty"`
	Loop      control.RobotStatus `json:"loop"`
}

// RobotStatus reads the current fix and combines it with the loop state.
func (m *Manager) RobotStatus(ctx context.Context) RobotStatus {
	m.mu.Lock()
	r := m.robot
	dest := m.lastRobot
	m.mu.Unlock()

	var st RobotStatus
	if r != nil {
		id, started := r.ID, r.StartedAt
		st.ID, st.StartedAt = &id, &started
		st.Loop = r.loop.Status()
	}
	if !m.deps.Robot.ok() {
		return st
	}

	cctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	if p, err := m.deps.Robot.Position.Position(cctx); err == nil && p.Validate() == nil {
		st.Loop.Position = &p
		if dest != nil {
			st.Loop.Destination = *dest
			st.Loop.Distance = direction.Distance(p, *dest)
			st.Loop.Bearing = direction.Bearing(p, *dest)
			st.Loop.Compass = direction.CompassLabel(st.Loop.Bearing, m.cfg.Robot.Resolution)
		}
	}
	if h, err := m.deps.Robot.Heading.Heading(cctx); err == nil {
		st.Loop.Heading = &h
	}
	return st
}
