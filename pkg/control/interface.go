// Package control runs the periodic guidance loops.
//
// PedestrianLoop feeds position fixes to a guidance engine and queues the
// resulting narration. RobotLoop turns position and heading fixes into
// discrete steering commands. Both are ticker driven, own their state, and
// stop cooperatively.
package control

import (
	"context"
	"errors"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
	"github.com/teslashibe/go-guide/pkg/guidance"
)

// ErrNoFix reports that a source has no current reading.
var ErrNoFix = errors.New("control: no fix")

// PositionSource provides the latest position fix.
// It returns ErrNoFix when no position is known.
type PositionSource interface {
	Position(ctx context.Context) (direction.Point, error)
}

// HeadingSource provides the latest compass heading in degrees.
// It returns ErrNoFix when no heading is known.
type HeadingSource interface {
	Heading(ctx context.Context) (float64, error)
}

// CommandSink delivers steering commands to an actuator.
type CommandSink interface {
	Publish(ctx context.Context, cmd direction.Command) error
}

// Guide is the guidance engine as seen by the pedestrian loop.
type Guide interface {
	Tick(ctx context.Context, current direction.Point, now time.Time) (guidance.Announcement, bool)
}

// Narrator queues text for speech.
type Narrator interface {
	Enqueue(text string) error
	Pending() int
}

// Verify implementations at compile time.
var _ Guide = (*guidance.Engine)(nil)
