// Package session owns the live navigation sessions behind the API: at most
// one pedestrian session and one robot session at a time, each addressed by
// a uuid handle and driven by its own control loop.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/triplog"
	"github.com/teslashibe/go-guide/pkg/vision"
)

var (
	// ErrNotActive is returned when an operation needs an active pedestrian session.
	ErrNotActive = errors.New("session: no active navigation")

	// ErrRobotBusy is returned by StartRobot while a robot session is running.
	ErrRobotBusy = errors.New("session: robot is already navigating")

	// ErrNoRobot is returned when no robot transport is configured.
	ErrNoRobot = errors.New("session: robot transport not configured")

	// ErrNoVision is returned by Look without a camera and describer.
	ErrNoVision = errors.New("session: vision not configured")
)

// Narrator is the narration channel as the manager uses it.
type Narrator interface {
	Enqueue(text string) error
	Pending() int
	Clear() int
	Enabled() bool
	Speaking() bool
}

// Publisher receives session events, typically a websocket hub.
type Publisher interface {
	Publish(typ hub.EventType, v interface{}) error
}

// RobotIO is the transport a robot session reads fixes from and steers through.
type RobotIO struct {
	Position control.PositionSource
	Heading  control.HeadingSource
	Sink     control.CommandSink
}

func (r RobotIO) ok() bool {
	return r.Position != nil && r.Heading != nil && r.Sink != nil
}

// Deps are the collaborators of a Manager. Only Narrator is required.
type Deps struct {
	Narrator  Narrator
	Namer     guidance.PlaceNamer
	Robot     RobotIO
	Camera    vision.Provider
	Describer vision.Describer
	Recorder  triplog.Recorder
	Events    Publisher
	Logger    *slog.Logger
}

// Config holds the settings for the sessions a Manager creates.
type Config struct {
	Guidance   guidance.Config
	Pedestrian control.PedestrianConfig
	Robot      control.RobotConfig

	// SampleInstructions is how many canned steps a route gets when the
	// client supplies none. Zero means a direct route.
	SampleInstructions int

	// CallTimeout bounds recorder writes, stop commands and status reads.
	CallTimeout time.Duration
}

// DefaultConfig returns the canonical session settings.
func DefaultConfig() Config {
	return Config{
		Guidance:           guidance.DefaultConfig(),
		Pedestrian:         control.DefaultPedestrianConfig(),
		Robot:              control.DefaultRobotConfig(),
		SampleInstructions: 5,
		CallTimeout:        control.DefaultCallTimeout,
	}
}

// Manager creates, drives and stops sessions. It is safe for concurrent use.
type Manager struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	now    func() time.Time

	// fixes holds the pedestrian's latest pushed position.
	fixes *FixStore

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	pedestrian *Pedestrian
	robot      *Robot
	lastRobot  *direction.Point
}

// NewManager validates cfg and returns an idle manager.
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if deps.Narrator == nil {
		return nil, errors.New("session: narrator required")
	}
	if err := errors.Join(cfg.Guidance.Validate(), cfg.Pedestrian.Validate(), cfg.Robot.Validate()); err != nil {
		return nil, err
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = control.DefaultCallTimeout
	}
	if deps.Recorder == nil {
		deps.Recorder = triplog.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "session"),
		now:    time.Now,
		fixes:  NewFixStore(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Close stops every session and waits for their loops to exit.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}

// spawn runs fn as a tracked background goroutine.
func (m *Manager) spawn(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

func (m *Manager) say(text string) {
	if err := m.deps.Narrator.Enqueue(text); err != nil {
		m.logger.Warn("narration refused", "text", text, "error", err)
		return
	}
	m.publish(hub.EventUtterance, UtteranceEvent{Text: text})
}

func (m *Manager) publish(typ hub.EventType, v interface{}) {
	if m.deps.Events == nil {
		return
	}
	if err := m.deps.Events.Publish(typ, v); err != nil {
		m.logger.Debug("publish event failed", "type", typ, "error", err)
	}
}

// record runs a recorder call with a bounded context. Failures are logged
// and never reach the caller.
func (m *Manager) record(what string, fn func(ctx context.Context, r triplog.Recorder) error) {
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.CallTimeout)
	defer cancel()
	if err := fn(ctx, m.deps.Recorder); err != nil {
		m.logger.Warn("trip log write failed", "what", what, "error", err)
	}
}

// UtteranceEvent is published for every text handed to narration.
type UtteranceEvent struct {
	Session uuid.UUID     `json:"session,omitempty"`
	Text    string        `json:"text"`
	Kind    guidance.Kind `json:"kind,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// CommandEvent is published for every robot publish attempt.
type CommandEvent struct {
	Session uuid.UUID         `json:"session"`
	Command direction.Command `json:"command"`
	Error   string            `json:"error,omitempty"`
}

// Look captures a camera frame, describes it and speaks the description.
// On failure the fallback sentence is spoken and the error returned.
func (m *Manager) Look(ctx context.Context) (string, error) {
	if m.deps.Camera == nil || m.deps.Describer == nil {
		m.say(vision.FallbackText)
		return "", ErrNoVision
	}
	text, err := vision.Look(ctx, m.deps.Camera, m.deps.Describer)
	if err != nil {
		m.logger.Warn("vision failed", "error", err)
		m.say(vision.FallbackText)
		return "", err
	}
	m.say(text)
	return text, nil
}
