// Package sim provides in-memory fix sources that move in response to the
// guidance they receive, for running the loops without hardware.
package sim

import (
	"context"
	"sync"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
)

// Robot is a ground robot that reports its own fix and obeys steering
// commands: forward moves Step meters along the heading, left and right
// rotate by Turn degrees.
type Robot struct {
	mu       sync.Mutex
	position direction.Point
	heading  float64
	step     float64
	turn     float64
	commands []direction.Command
}

// NewRobot places a robot at start facing heading degrees.
func NewRobot(start direction.Point, heading, step, turn float64) *Robot {
	return &Robot{position: start, heading: heading, step: step, turn: turn}
}

func (r *Robot) Position(context.Context) (direction.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position, nil
}

func (r *Robot) Heading(context.Context) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heading, nil
}

// Publish applies cmd to the robot's pose.
func (r *Robot) Publish(_ context.Context, cmd direction.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.commands = append(r.commands, cmd)
	switch cmd {
	case direction.Forward:
		r.position = direction.Offset(r.position, r.step, r.heading)
	case direction.Left:
		r.heading = wrap(r.heading - r.turn)
	case direction.Right:
		r.heading = wrap(r.heading + r.turn)
	}
	return nil
}

// Commands returns every command received so far.
func (r *Robot) Commands() []direction.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]direction.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

func wrap(deg float64) float64 {
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}

// Walker follows a list of targets at a fixed pace. Each Position call
// returns the current fix and then walks Pace meters toward the next target.
type Walker struct {
	mu      sync.Mutex
	at      direction.Point
	targets []direction.Point
	pace    float64
	fixes   int
}

// NewWalker starts a walker at start that visits targets in order.
func NewWalker(start direction.Point, pace float64, targets ...direction.Point) *Walker {
	t := make([]direction.Point, len(targets))
	copy(t, targets)
	return &Walker{at: start, targets: t, pace: pace}
}

func (w *Walker) Position(context.Context) (direction.Point, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fix := w.at
	w.fixes++
	w.advance()
	return fix, nil
}

func (w *Walker) advance() {
	remaining := w.pace
	for remaining > 0 && len(w.targets) > 0 {
		next := w.targets[0]
		d := direction.Distance(w.at, next)
		if d <= remaining {
			w.at = next
			w.targets = w.targets[1:]
			remaining -= d
			continue
		}
		w.at = direction.Offset(w.at, remaining, direction.Bearing(w.at, next))
		remaining = 0
	}
}

// Fixes reports how many positions have been read.
func (w *Walker) Fixes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fixes
}

var (
	_ control.PositionSource = (*Robot)(nil)
	_ control.HeadingSource  = (*Robot)(nil)
	_ control.CommandSink    = (*Robot)(nil)
	_ control.PositionSource = (*Walker)(nil)
)
