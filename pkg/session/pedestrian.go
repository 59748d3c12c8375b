package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/narration"
	"github.com/teslashibe/go-guide/pkg/route"
	"github.com/teslashibe/go-guide/pkg/triplog"
)

// Pedestrian is one spoken-guidance session.
type Pedestrian struct {
	ID        uuid.UUID
	StartedAt time.Time

	engine *guidance.Engine
	loop   *control.PedestrianLoop
}

// StartRequest describes a pedestrian navigation request.
type StartRequest struct {
	Destination  direction.Point
	Instructions []string

	// Current is the walker's position; when nil the last pushed fix is used.
	Current *direction.Point
}

// Started is the result of StartNavigation.
type Started struct {
	ID           uuid.UUID        `json:"id"`
	Destination  direction.Point  `json:"destination"`
	Current      *direction.Point `json:"current_location,omitempty"`
	Instructions int              `json:"route_instructions_count"`
	Waypoints    int              `json:"waypoints_count"`
	Announcement string           `json:"announcement"`
}

// StartNavigation builds a route, starts guidance and its loop, and queues
// the opening announcement. A running session is replaced.
func (m *Manager) StartNavigation(ctx context.Context, req StartRequest) (Started, error) {
	if err := req.Destination.Validate(); err != nil {
		return Started{}, fmt.Errorf("%w: %v", route.ErrInvalidDestination, err)
	}

	now := m.now()
	current := req.Current
	if current != nil {
		if err := current.Validate(); err != nil {
			return Started{}, fmt.Errorf("session: current location: %w", err)
		}
		m.fixes.Set(*current, now)
	} else if p, _, ok := m.fixes.Last(); ok {
		current = &p
	}

	instructions := make([]string, 0, len(req.Instructions))
	for _, s := range req.Instructions {
		if s = route.CleanInstruction(s); s != "" {
			instructions = append(instructions, s)
		}
	}
	if len(instructions) == 0 && m.cfg.SampleInstructions > 0 {
		instructions = route.SampleInstructions(m.cfg.SampleInstructions)
		m.logger.Info("using sample instructions", "count", len(instructions))
	}

	r, err := route.FromInstructions(current, req.Destination, instructions)
	if err != nil {
		return Started{}, err
	}

	engine, err := guidance.New(m.cfg.Guidance,
		guidance.WithPlaceNamer(m.deps.Namer),
		guidance.WithClearer(m.deps.Narrator),
		guidance.WithLogger(m.deps.Logger),
	)
	if err != nil {
		return Started{}, err
	}

	opening, err := engine.Start(ctx, r, current, now)
	if err != nil {
		return Started{}, err
	}

	loop, err := control.NewPedestrianLoop(m.fixes, engine, m.deps.Narrator, m.cfg.Pedestrian, m.deps.Logger)
	if err != nil {
		return Started{}, err
	}

	p := &Pedestrian{ID: uuid.New(), StartedAt: now, engine: engine, loop: loop}
	loop.OnAnnouncement = func(a guidance.Announcement, err error) {
		m.onAnnouncement(p, a, err)
	}

	m.mu.Lock()
	prev := m.pedestrian
	m.pedestrian = p
	m.mu.Unlock()

	if prev != nil {
		prev.loop.Stop()
		prev.engine.Stop()
		m.logger.Info("navigation replaced", "previous", prev.ID)
	}

	m.record("begin", func(ctx context.Context, rec triplog.Recorder) error {
		return rec.Begin(ctx, triplog.Trip{
			ID:          p.ID,
			Mode:        triplog.ModePedestrian,
			Destination: req.Destination,
			Waypoints:   r.Len(),
			StartedAt:   now,
		})
	})

	m.onAnnouncement(p, opening, m.deps.Narrator.Enqueue(opening.Text))

	m.spawn(func() {
		loop.Run(m.ctx)
		outcome := "stopped"
		if engine.State() == guidance.Completed {
			outcome = "arrived"
		}
		m.record("end", func(ctx context.Context, rec triplog.Recorder) error {
			return rec.End(ctx, p.ID, outcome, m.now())
		})
		m.publishStatus()
	})

	m.logger.Info("navigation started",
		"session", p.ID,
		"destination", req.Destination.String(),
		"waypoints", r.Len(),
	)
	m.publishStatus()

	return Started{
		ID:           p.ID,
		Destination:  req.Destination,
		Current:      current,
		Instructions: len(instructions),
		Waypoints:    r.Len(),
		Announcement: opening.Text,
	}, nil
}

func (m *Manager) onAnnouncement(p *Pedestrian, a guidance.Announcement, err error) {
	ev := UtteranceEvent{Session: p.ID, Text: a.Text, Kind: a.Kind}
	if err != nil {
		ev.Error = err.Error()
	} else {
		m.record("utterance", func(ctx context.Context, rec triplog.Recorder) error {
			return rec.Log(ctx, triplog.Entry{TripID: p.ID, Kind: triplog.KindUtterance, At: m.now(), Text: a.Text})
		})
	}
	m.publish(hub.EventUtterance, ev)
}

// PositionUpdate is the result of UpdatePosition.
type PositionUpdate struct {
	Current direction.Point `json:"current_location"`
	Active  bool            `json:"navigation_active"`
}

// UpdatePosition stores a pushed fix for the pedestrian loop's next tick.
func (m *Manager) UpdatePosition(lat, lng float64) (PositionUpdate, error) {
	p := direction.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return PositionUpdate{}, err
	}
	now := m.now()
	m.fixes.Set(p, now)

	s := m.current()
	active := s != nil && s.engine.State() == guidance.Active
	if active {
		m.record("fix", func(ctx context.Context, rec triplog.Recorder) error {
			return rec.Log(ctx, triplog.Entry{TripID: s.ID, Kind: triplog.KindFix, At: now, Position: &p})
		})
	}
	return PositionUpdate{Current: p, Active: active}, nil
}

// StopNavigation ends the pedestrian session, clears queued narration and
// announces the stop. It reports whether guidance was active.
func (m *Manager) StopNavigation() bool {
	m.mu.Lock()
	p := m.pedestrian
	m.mu.Unlock()

	wasActive := false
	if p != nil {
		p.loop.Stop()
		wasActive = p.engine.Stop()
	} else {
		m.deps.Narrator.Clear()
	}
	m.say(guidance.MsgStopped)
	m.publishStatus()
	return wasActive
}

// ForceGuidanceTick evaluates the last fix immediately, ignoring announcement
// intervals, and queues whatever the engine says.
func (m *Manager) ForceGuidanceTick(ctx context.Context) (guidance.Announcement, bool, error) {
	p := m.current()
	if p == nil || p.engine.State() != guidance.Active {
		return guidance.Announcement{}, false, ErrNotActive
	}
	fix, _, ok := m.fixes.Last()
	if !ok {
		return guidance.Announcement{}, false, control.ErrNoFix
	}
	a, spoke := p.engine.ForceTick(ctx, fix, m.now())
	if !spoke {
		return a, false, nil
	}
	err := m.deps.Narrator.Enqueue(a.Text)
	m.onAnnouncement(p, a, err)
	return a, true, err
}

// NarrationStatus describes the narration channel.
type NarrationStatus struct {
	Enabled  bool             `json:"audio_enabled"`
	Pending  int              `json:"pending"`
	Speaking bool             `json:"speaking"`
	Current  string           `json:"current,omitempty"`
	Stats    *narration.Stats `json:"stats,omitempty"`
}

// narrationReporter is implemented by narrators that track activity, such as
// *narration.Channel.
type narrationReporter interface {
	Current() (narration.Utterance, bool)
	Stats() narration.Stats
}

func narrationStatus(n Narrator) NarrationStatus {
	st := NarrationStatus{Enabled: n.Enabled(), Pending: n.Pending(), Speaking: n.Speaking()}
	if r, ok := n.(narrationReporter); ok {
		if u, ok := r.Current(); ok {
			st.Current = u.Text
		}
		stats := r.Stats()
		st.Stats = &stats
	}
	return st
}

// Status is a snapshot of the pedestrian side.
type Status struct {
	ID        *uuid.UUID         `json:"id,omitempty"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	Guidance  guidance.Status    `json:"guidance"`
	Loop      *control.LoopStats `json:"loop,omitempty"`
	Narration NarrationStatus    `json:"narration"`
	LastFix   *direction.Point   `json:"current_location,omitempty"`
}

// Status returns the current pedestrian session state.
func (m *Manager) Status() Status {
	s := Status{
		Guidance:  guidance.Status{State: guidance.Inactive},
		Narration: narrationStatus(m.deps.Narrator),
	}
	if fix, _, ok := m.fixes.Last(); ok {
		s.LastFix = &fix
	}
	if p := m.current(); p != nil {
		id, started := p.ID, p.StartedAt
		stats := p.loop.Stats()
		s.ID, s.StartedAt, s.Loop = &id, &started, &stats
		s.Guidance = p.engine.Snapshot()
	}
	return s
}

func (m *Manager) current() *Pedestrian {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pedestrian
}

func (m *Manager) publishStatus() {
	if m.deps.Events == nil {
		return
	}
	m.publish(hub.EventStatus, m.Status())
}
