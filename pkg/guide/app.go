// Package guide assembles the navigation server from configuration.
package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/internal/config"
	"github.com/teslashibe/go-guide/pkg/api"
	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/hub"
	"github.com/teslashibe/go-guide/pkg/link"
	"github.com/teslashibe/go-guide/pkg/narration"
	"github.com/teslashibe/go-guide/pkg/session"
	"github.com/teslashibe/go-guide/pkg/speech"
	"github.com/teslashibe/go-guide/pkg/triplog"
)

// shutdownTimeout bounds the HTTP drain on exit.
const shutdownTimeout = 5 * time.Second

// App is the assembled server.
type App struct {
	config config.Config
	logger *slog.Logger

	synth     speech.Synthesizer
	narrator  *narration.Channel
	events    *hub.Hub
	robots    *link.Hub
	recorder  triplog.Recorder
	postgres  *triplog.Postgres
	sessions  *session.Manager
	server    *api.Server
	listener  net.Listener
	closeOnce sync.Once
}

// New validates cfg and returns an uninitialized App.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{config: cfg, logger: logger}, nil
}

// Init builds every component. Call it after New and before Run. On error
// whatever was already opened is released.
func (a *App) Init(ctx context.Context) (err error) {
	cfg := a.config
	defer func() {
		if err == nil {
			return
		}
		if a.sessions != nil {
			a.sessions.Close()
			a.sessions = nil
		}
		if a.postgres != nil {
			a.postgres.Close()
			a.postgres = nil
		}
	}()

	synth, err := newSynthesizer(cfg.Speech, cfg.Narration, a.logger)
	if err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	a.synth = synth

	a.narrator = narration.New(synth,
		narration.WithCapacity(cfg.Narration.Capacity),
		narration.WithSynthesisTimeout(cfg.Narration.SynthesisTimeout),
		narration.WithGap(cfg.Narration.Gap),
		narration.WithVoice(speech.Voice{Name: cfg.Narration.Voice, Rate: cfg.Narration.Rate}),
		narration.WithLogger(a.logger),
	)
	a.narrator.SetEnabled(cfg.Narration.Enabled)
	a.narrator.OnSpoken = func(u narration.Utterance, err error) {
		if err != nil {
			a.logger.Warn("utterance failed", "text", u.Text, "error", err)
		}
	}

	a.events = hub.New("status", a.logger)

	if cfg.Robot.Source == config.SourceLink {
		a.robots = link.NewHub(cfg.Robot.MaxFixAge, a.logger)
		a.robots.OnFix(a.publishFix)
	}
	robotIO, err := a.newRobotIO(ctx)
	if err != nil {
		return fmt.Errorf("robot: %w", err)
	}

	a.recorder = triplog.Nop{}
	if cfg.Database.URL != "" {
		pg, err := triplog.Open(ctx, cfg.Database.URL, a.logger)
		if err != nil {
			return fmt.Errorf("trip log: %w", err)
		}
		a.postgres, a.recorder = pg, pg
	}

	camera, describer := newVision(cfg.Vision, a.logger)

	namer, geocoder, err := newPlaceNamer(cfg.Places, a.logger)
	if err != nil {
		return fmt.Errorf("places: %w", err)
	}

	a.sessions, err = session.NewManager(session.Config{
		Guidance:           cfg.Guidance,
		Pedestrian:         cfg.Pedestrian,
		Robot:              cfg.Robot.RobotConfig,
		SampleInstructions: cfg.Route.SampleInstructions,
		CallTimeout:        control.DefaultCallTimeout,
	}, session.Deps{
		Narrator:  a.narrator,
		Namer:     namer,
		Robot:     robotIO,
		Camera:    camera,
		Describer: describer,
		Recorder:  a.recorder,
		Events:    a.events,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	opts := []api.Option{api.WithEvents(a.events), api.WithLogger(a.logger)}
	if a.robots != nil {
		opts = append(opts, api.WithRobotLink(a.robots))
	}
	if camera != nil {
		opts = append(opts, api.WithCamera(camera))
	}
	if geocoder != nil {
		opts = append(opts, api.WithGeocoder(geocoder))
	}
	if a.postgres != nil {
		opts = append(opts, api.WithTripHistory(a.postgres))
	}
	apiCfg := api.Config{CORSOrigins: cfg.Server.CORSOrigins, JWTSecret: cfg.Server.JWTSecret}
	if cfg.Log.Level == "debug" {
		apiCfg.AccessLog = os.Stdout
	}
	a.server = api.New(apiCfg, a.sessions, opts...)

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	a.listener = ln

	a.logger.Info("initialized",
		"speech", synth.Name(),
		"robot_source", cfg.Robot.Source,
		"robot", robotIO.Sink != nil,
		"vision", camera != nil && describer != nil,
		"trip_log", a.postgres != nil,
	)
	return nil
}

// FixEvent is the payload of a hub.EventFix.
type FixEvent struct {
	Robot    string          `json:"robot"`
	Position direction.Point `json:"position"`
}

// publishFix mirrors robot link reports onto the status feed.
func (a *App) publishFix(robotID string, p direction.Point) {
	if err := a.events.Publish(hub.EventFix, FixEvent{Robot: robotID, Position: p}); err != nil {
		a.logger.Debug("fix event dropped", "robot", robotID, "error", err)
	}
}

// Addr is the bound listen address. Valid after Init.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Run serves until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("guide: Run before Init")
	}

	go a.events.Run(ctx)
	go a.narrator.Run(ctx)

	errc := make(chan error, 1)
	go func() { errc <- a.server.Serve(a.listener) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errc:
		return err
	}
}

// Shutdown drains HTTP, stops every session and closes the trip log.
func (a *App) Shutdown() {
	a.closeOnce.Do(func() {
		if a.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Warn("http shutdown", "error", err)
			}
			cancel()
		}
		if a.sessions != nil {
			a.sessions.Close()
		}
		if a.postgres != nil {
			a.postgres.Close()
		}
		a.logger.Info("shutdown complete")
	})
}

// Sessions exposes the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}
