package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// RobotStatus is a snapshot of a robot loop.
type RobotStatus struct {
	Navigating  bool              `json:"navigating"`
	Destination direction.Point   `json:"destination"`
	Position    *direction.Point  `json:"position,omitempty"`
	Heading     *float64          `json:"heading,omitempty"`
	Distance    float64           `json:"distance,omitempty"`
	Bearing     float64           `json:"bearing,omitempty"`
	Compass     string            `json:"compass,omitempty"`
	Command     direction.Command `json:"command,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at,omitempty"`
	Ticks       uint64            `json:"ticks"`
	Skipped     uint64            `json:"skipped"`
	Published   uint64            `json:"published"`
	Failed      uint64            `json:"failed"`
}

// RobotLoop steers a ground robot toward a single destination.
type RobotLoop struct {
	stopper

	dest     direction.Point
	position PositionSource
	heading  HeadingSource
	sink     CommandSink
	config   RobotConfig
	logger   *slog.Logger

	mu     sync.Mutex
	status RobotStatus

	// OnCommand is called after each publish attempt. Set before Run.
	OnCommand func(cmd direction.Command, err error)
}

// NewRobotLoop creates a loop toward dest. A nil logger uses slog.Default.
func NewRobotLoop(dest direction.Point, pos PositionSource, hdg HeadingSource, sink CommandSink, cfg RobotConfig, logger *slog.Logger) (*RobotLoop, error) {
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotLoop{
		stopper:  newStopper(),
		dest:     dest,
		position: pos,
		heading:  hdg,
		sink:     sink,
		config:   cfg,
		logger:   logger.With("component", "control.robot"),
		status:   RobotStatus{Destination: dest},
	}, nil
}

// Run steers until arrival, Stop, or ctx cancellation. Call it once.
// The loop never publishes a command on its way out.
func (l *RobotLoop) Run(ctx context.Context) {
	defer l.exit()
	l.setNavigating(true)
	defer l.setNavigating(false)

	l.logger.Info("robot loop started",
		"destination", l.dest.String(),
		"period", l.config.Period,
		"arrival_radius_m", l.config.ArrivalRadius,
		"tolerance_deg", l.config.HeadingTolerance,
	)
	l.run(ctx, l.config.Period, l.tick)
	l.logger.Info("robot loop stopped")
}

// Status returns a snapshot.
func (l *RobotLoop) Status() RobotStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.status
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	if s.Heading != nil {
		h := *s.Heading
		s.Heading = &h
	}
	return s
}

// Destination returns the target.
func (l *RobotLoop) Destination() direction.Point { return l.dest }

func (l *RobotLoop) tick(ctx context.Context) bool {
	l.mu.Lock()
	l.status.Ticks++
	l.mu.Unlock()

	pos, err := l.readPosition(ctx)
	if err != nil {
		l.skip("position", err)
		return true
	}
	hdg, err := l.readHeading(ctx)
	if err != nil {
		l.skip("heading", err)
		return true
	}

	dist := direction.Distance(pos, l.dest)
	brg := direction.Bearing(pos, l.dest)
	cmd := direction.Decide(hdg, brg, l.config.HeadingTolerance, dist, l.config.ArrivalRadius)

	l.logger.Debug("decision",
		"distance_m", dist,
		"bearing", brg,
		"heading", hdg,
		"command", cmd.String(),
	)

	pctx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
	err = l.sink.Publish(pctx, cmd)
	cancel()

	l.mu.Lock()
	l.status.Position = &pos
	l.status.Heading = &hdg
	l.status.Distance = dist
	l.status.Bearing = brg
	l.status.Compass = direction.CompassLabel(brg, l.config.Resolution)
	l.status.Command = cmd
	l.status.UpdatedAt = time.Now()
	if err != nil {
		l.status.Failed++
	} else {
		l.status.Published++
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Warn("publish failed", "command", cmd.String(), "error", err)
	}
	if l.OnCommand != nil {
		l.OnCommand(cmd, err)
	}

	if cmd == direction.Arrived {
		l.logger.Info("arrived", "distance_m", dist)
		return false
	}
	return true
}

func (l *RobotLoop) readPosition(ctx context.Context) (direction.Point, error) {
	cctx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
	defer cancel()
	p, err := l.position.Position(cctx)
	if err != nil {
		return direction.Point{}, err
	}
	return p, p.Validate()
}

func (l *RobotLoop) readHeading(ctx context.Context) (float64, error) {
	cctx, cancel := context.WithTimeout(ctx, l.config.CallTimeout)
	defer cancel()
	return l.heading.Heading(cctx)
}

func (l *RobotLoop) skip(what string, err error) {
	l.mu.Lock()
	l.status.Skipped++
	l.mu.Unlock()
	if errors.Is(err, ErrNoFix) {
		l.logger.Debug("skipping tick, no fix", "missing", what)
		return
	}
	l.logger.Warn("skipping tick", "missing", what, "error", err)
}

func (l *RobotLoop) setNavigating(v bool) {
	l.mu.Lock()
	l.status.Navigating = v
	l.mu.Unlock()
}
