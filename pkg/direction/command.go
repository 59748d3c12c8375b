package direction

import (
	"fmt"
	"math"
)

// Command is the discrete steering instruction published to a ground robot.
type Command int

const (
	Forward Command = iota + 1
	Left
	Right
	Arrived
	Stopped
)

// String returns the wire name the robot firmware expects.
func (c Command) String() string {
	switch c {
	case Forward:
		return "forward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Arrived:
		return "arrived"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand is the inverse of Command.String.
func ParseCommand(s string) (Command, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "arrived":
		return Arrived, nil
	case "stopped":
		return Stopped, nil
	}
	return 0, fmt.Errorf("direction: unknown command %q", s)
}

// MarshalText lets commands travel as their wire names in JSON.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a wire name.
func (c *Command) UnmarshalText(b []byte) error {
	parsed, err := ParseCommand(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Decide turns heading and geometry into a steering command.
//
// Arrival wins regardless of heading. Otherwise the robot goes Forward only
// when |AngleDiff| is strictly below tolerance; a difference exactly equal to
// the tolerance turns toward the target.
func Decide(heading, targetBearing, tolerance, distance, arrivalRadius float64) Command {
	if distance < arrivalRadius {
		return Arrived
	}
	d := AngleDiff(heading, targetBearing)
	switch {
	case math.Abs(d) < tolerance:
		return Forward
	case d > 0:
		return Right
	default:
		return Left
	}
}
