// Package triplog records guidance sessions: when they start and end, the
// fixes they consumed, and what they said or commanded.
package triplog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// Mode distinguishes pedestrian narration from robot steering.
type Mode string

const (
	ModePedestrian Mode = "pedestrian"
	ModeRobot      Mode = "robot"
)

// Kind classifies an Entry.
type Kind string

const (
	KindFix       Kind = "fix"
	KindUtterance Kind = "utterance"
	KindCommand   Kind = "command"
)

// Trip describes a session at start.
type Trip struct {
	ID          uuid.UUID       `json:"id"`
	Mode        Mode            `json:"mode"`
	Destination direction.Point `json:"destination"`
	Waypoints   int             `json:"waypoints"`
	StartedAt   time.Time       `json:"started_at"`
}

// Entry is one event within a trip.
type Entry struct {
	TripID   uuid.UUID
	Kind     Kind
	At       time.Time
	Position *direction.Point
	Text     string
}

// Recorder persists trips. Implementations must be safe for concurrent use.
type Recorder interface {
	Begin(ctx context.Context, trip Trip) error
	Log(ctx context.Context, e Entry) error
	End(ctx context.Context, id uuid.UUID, outcome string, at time.Time) error
}

// History lists past trips, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]TripSummary, error)
}

// DefaultRecent and MaxRecent bound the Recent limit.
const (
	DefaultRecent = 20
	MaxRecent     = 200
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecent
	case limit > MaxRecent:
		return MaxRecent
	}
	return limit
}

// TripSummary is a row of Recent.
type TripSummary struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Mode      string     `json:"mode" db:"mode"`
	DestLat   float64    `json:"dest_lat" db:"dest_lat"`
	DestLng   float64    `json:"dest_lng" db:"dest_lng"`
	Waypoints int        `json:"waypoints" db:"waypoints"`
	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	Outcome   *string    `json:"outcome,omitempty" db:"outcome"`
	Entries   int64      `json:"entries" db:"entries"`
}

// Nop discards everything.
type Nop struct{}

func (Nop) Begin(context.Context, Trip) error                       { return nil }
func (Nop) Log(context.Context, Entry) error                        { return nil }
func (Nop) End(context.Context, uuid.UUID, string, time.Time) error { return nil }

// Memory keeps trips in process.
type Memory struct {
	mu      sync.Mutex
	trips   []Trip
	entries []Entry
	ends    map[uuid.UUID]tripEnd
}

type tripEnd struct {
	outcome string
	at      time.Time
}

// NewMemory returns an empty in-process recorder.
func NewMemory() *Memory {
	return &Memory{ends: make(map[uuid.UUID]tripEnd)}
}

func (m *Memory) Begin(_ context.Context, trip Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append(m.trips, trip)
	return nil
}

func (m *Memory) Log(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) End(_ context.Context, id uuid.UUID, outcome string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ends[id]; !ok {
		m.ends[id] = tripEnd{outcome: outcome, at: at}
	}
	return nil
}

// Recent implements History.
func (m *Memory) Recent(_ context.Context, limit int) ([]TripSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[uuid.UUID]int64, len(m.trips))
	for _, e := range m.entries {
		counts[e.TripID]++
	}
	out := make([]TripSummary, 0, len(m.trips))
	for _, t := range m.trips {
		s := TripSummary{
			ID:        t.ID,
			Mode:      string(t.Mode),
			DestLat:   t.Destination.Lat,
			DestLng:   t.Destination.Lng,
			Waypoints: t.Waypoints,
			StartedAt: t.StartedAt,
			Entries:   counts[t.ID],
		}
		if end, ok := m.ends[t.ID]; ok {
			at, outcome := end.at, end.outcome
			s.EndedAt, s.Outcome = &at, &outcome
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// Trips returns a copy of the recorded trips.
func (m *Memory) Trips() []Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trip, len(m.trips))
	copy(out, m.trips)
	return out
}

// Entries returns recorded entries of the given kind for a trip.
func (m *Memory) Entries(id uuid.UUID, kind Kind) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.TripID == id && e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Outcome returns how a trip ended, or "" while it is open.
func (m *Memory) Outcome(id uuid.UUID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ends[id].outcome
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Memory)(nil)
	_ Recorder = (*Postgres)(nil)
	_ History  = (*Memory)(nil)
	_ History  = (*Postgres)(nil)
)
