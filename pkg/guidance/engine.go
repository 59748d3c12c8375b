// Package guidance turns position fixes into spoken turn-by-turn narration.
//
// An Engine owns the progress of one navigation session along a route.
// Each Tick evaluates the latest fix against the active waypoint and returns
// at most one utterance, chosen by fixed priority: completion, waypoint
// reached, off route, then periodic progress.
package guidance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/route"
)

// ErrNoRoute is returned by Start without a route.
var ErrNoRoute = errors.New("guidance: route required")

// State is the engine lifecycle state.
type State int

const (
	Inactive State = iota
	Active
	Completed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Kind classifies an announcement.
type Kind int

const (
	KindStart Kind = iota + 1
	KindWaypoint
	KindApproaching
	KindArrived
	KindOffRoute
	KindProgress
)

var kindNames = map[Kind]string{
	KindStart:       "start",
	KindWaypoint:    "waypoint",
	KindApproaching: "approaching",
	KindArrived:     "arrived",
	KindOffRoute:    "off_route",
	KindProgress:    "progress",
}

// String returns the snake_case kind name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Announcement is one utterance produced by the engine.
type Announcement struct {
	Text string `json:"text"`
	Kind Kind   `json:"kind"`
}

// Droppable reports whether losing the announcement is harmless because a
// fresher one follows on a later tick.
func (a Announcement) Droppable() bool {
	return a.Kind == KindProgress
}

// PlaceNamer resolves a point to a speakable place name.
type PlaceNamer interface {
	PlaceName(ctx context.Context, p direction.Point) (string, error)
}

// Clearer discards queued narration.
type Clearer interface {
	Clear() int
}

// Progress is the mutable navigation state. Only the engine writes it.
type Progress struct {
	Route                 *route.Route
	CurrentIndex          int
	LastSpokenInstruction string
	LastAnnouncement      time.Time
	Active                bool
}

// Status is a point-in-time view of an engine.
type Status struct {
	State              State            `json:"state"`
	Active             bool             `json:"active"`
	Current            *direction.Point `json:"current,omitempty"`
	Destination        *direction.Point `json:"destination,omitempty"`
	WaypointIndex      int              `json:"waypoint_index"`
	WaypointCount      int              `json:"waypoint_count"`
	Waypoint           *route.Waypoint  `json:"waypoint,omitempty"`
	DistanceToWaypoint float64          `json:"distance_to_waypoint,omitempty"`
	LastSpoken         string           `json:"last_spoken,omitempty"`
	LastAnnouncement   time.Time        `json:"last_announcement,omitempty"`
}

// Engine tracks one session's progress. It is safe for concurrent use;
// calls are serialized.
type Engine struct {
	config  Config
	namer   PlaceNamer
	clearer Clearer
	logger  *slog.Logger

	mu       sync.Mutex
	progress Progress
	state    State
	current  *direction.Point
}

// Option configures an Engine.
type Option func(*Engine)

// WithPlaceNamer adds place names to spoken text.
func WithPlaceNamer(n PlaceNamer) Option {
	return func(e *Engine) { e.namer = n }
}

// WithClearer sets the narration queue cleared on arrival and stop.
func WithClearer(c Clearer) Option {
	return func(e *Engine) { e.clearer = c }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an inactive engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "guidance")
	return e, nil
}

// Start begins guidance along r and returns the situational announcement.
// current may be nil when no fix is known yet. On error nothing changes.
func (e *Engine) Start(ctx context.Context, r *route.Route, current *direction.Point, now time.Time) (Announcement, error) {
	if r == nil || r.Len() == 0 {
		return Announcement{}, ErrNoRoute
	}
	if err := r.Destination().Validate(); err != nil {
		return Announcement{}, fmt.Errorf("%w: %v", route.ErrInvalidDestination, err)
	}
	if current != nil {
		if err := current.Validate(); err != nil {
			return Announcement{}, fmt.Errorf("guidance: current position: %w", err)
		}
	}

	here := ""
	if current != nil {
		here = e.placeName(ctx, *current, true)
	}
	dest := e.placeName(ctx, r.Destination(), true)
	direct := r.Len() == 1 && r.At(0).Instruction == route.ArriveInstruction
	msg := Announcement{Text: startMessage(here, dest, r.Len(), direct), Kind: KindStart}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.progress = Progress{
		Route:            r,
		Active:           true,
		LastAnnouncement: now,
	}
	e.state = Active
	if current != nil {
		p := *current
		e.current = &p
	} else {
		e.current = nil
	}

	e.logger.Info("navigation started",
		"destination", r.Destination().String(),
		"waypoints", r.Len(),
	)
	return msg, nil
}

// Tick evaluates a fix and returns the announcement to speak, if any.
func (e *Engine) Tick(ctx context.Context, current direction.Point, now time.Time) (Announcement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick(ctx, current, now)
}

// ForceTick evaluates a fix as if every announcement interval had elapsed.
// If nothing is spoken the previous announcement time is kept.
func (e *Engine) ForceTick(ctx context.Context, current direction.Point, now time.Time) (Announcement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.progress.LastAnnouncement
	e.progress.LastAnnouncement = time.Time{}
	msg, ok := e.tick(ctx, current, now)
	if !ok {
		e.progress.LastAnnouncement = prev
	}
	return msg, ok
}

func (e *Engine) tick(ctx context.Context, current direction.Point, now time.Time) (Announcement, bool) {
	if current.Validate() != nil {
		return Announcement{}, false
	}
	p := current
	e.current = &p

	if !e.progress.Active {
		return Announcement{}, false
	}

	r := e.progress.Route

	// Completed
	if e.progress.CurrentIndex >= r.Len() {
		if e.clearer != nil {
			e.clearer.Clear()
		}
		e.progress.Active = false
		e.state = Completed
		e.logger.Info("navigation complete", "destination", r.Destination().String())
		return Announcement{Text: MsgArrived, Kind: KindArrived}, true
	}

	wp := r.At(e.progress.CurrentIndex)
	dist := direction.Distance(current, wp.Position)

	e.logger.Debug("tick",
		"position", current.String(),
		"waypoint", e.progress.CurrentIndex+1,
		"distance_m", dist,
	)

	// Waypoint reached
	if dist < e.config.WaypointRadius {
		e.progress.CurrentIndex++
		if e.progress.CurrentIndex >= r.Len() {
			e.progress.LastAnnouncement = now
			return Announcement{Text: MsgApproaching, Kind: KindApproaching}, true
		}

		next := r.At(e.progress.CurrentIndex)
		if next.Instruction == "" || next.Instruction == e.progress.LastSpokenInstruction {
			return Announcement{}, false
		}
		compass := direction.CompassLabel(direction.Bearing(current, next.Position), e.config.Resolution)
		e.progress.LastSpokenInstruction = next.Instruction
		e.progress.LastAnnouncement = now
		return Announcement{
			Text: waypointMessage(route.CleanInstruction(next.Instruction), compass),
			Kind: KindWaypoint,
		}, true
	}

	since := now.Sub(e.progress.LastAnnouncement)
	compass := direction.CompassLabel(direction.Bearing(current, wp.Position), e.config.Resolution)

	// Off route
	if dist > e.config.OffRouteDistance {
		if since <= e.config.OffRouteRepeat {
			return Announcement{}, false
		}
		e.progress.LastAnnouncement = now
		e.logger.Info("off route", "distance_m", dist, "waypoint", e.progress.CurrentIndex+1)
		return Announcement{
			Text: offRouteMessage(e.placeName(ctx, current, false), compass, dist),
			Kind: KindOffRoute,
		}, true
	}

	// Progress
	if since <= e.config.interval(dist) {
		return Announcement{}, false
	}
	e.progress.LastAnnouncement = now
	return Announcement{
		Text: progressMessage(
			e.placeName(ctx, current, false),
			route.CleanInstruction(wp.Instruction),
			compass, dist, e.config.NearDistance,
		),
		Kind: KindProgress,
	}, true
}

// Stop ends guidance and clears queued narration. It reports whether a
// session was active.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasActive := e.progress.Active
	e.progress.Active = false
	e.state = Inactive
	if e.clearer != nil {
		e.clearer.Clear()
	}
	if wasActive {
		e.logger.Info("navigation stopped")
	}
	return wasActive
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Progress returns a copy of the progress record.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Snapshot returns the current status.
func (e *Engine) Snapshot() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		State:            e.state,
		Active:           e.progress.Active,
		WaypointIndex:    e.progress.CurrentIndex,
		LastSpoken:       e.progress.LastSpokenInstruction,
		LastAnnouncement: e.progress.LastAnnouncement,
	}
	if e.current != nil {
		c := *e.current
		s.Current = &c
	}
	if r := e.progress.Route; r != nil {
		d := r.Destination()
		s.Destination = &d
		s.WaypointCount = r.Len()
		if e.progress.CurrentIndex < r.Len() {
			wp := r.At(e.progress.CurrentIndex)
			s.Waypoint = &wp
			if e.current != nil {
				s.DistanceToWaypoint = direction.Distance(*e.current, wp.Position)
			}
		}
	}
	return s
}

// placeName resolves p through the namer. When lookup is unavailable it
// returns the coordinate description if fallback is set, otherwise "".
func (e *Engine) placeName(ctx context.Context, p direction.Point, fallback bool) string {
	if e.namer != nil {
		nctx, cancel := context.WithTimeout(ctx, e.config.NameTimeout)
		name, err := e.namer.PlaceName(nctx, p)
		cancel()
		if err == nil && name != "" {
			return name
		}
		if err != nil {
			e.logger.Debug("place lookup failed", "error", err)
		}
	}
	if fallback {
		return direction.Describe(p)
	}
	return ""
}
