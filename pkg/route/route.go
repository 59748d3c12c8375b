// Package route builds the immutable waypoint sequence a guidance session follows.
package route

import (
	"errors"
	"fmt"
	"strings"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// ArriveInstruction is used when a route is built without any instructions.
const ArriveInstruction = "Arrive at destination"

var (
	// ErrInvalidDestination is returned when the destination is missing or out of range.
	ErrInvalidDestination = errors.New("route: invalid destination")

	// ErrEmptyRoute is returned for a route without waypoints.
	ErrEmptyRoute = errors.New("route: no waypoints")
)

// Waypoint is an intermediate target with the instruction spoken on reaching the previous one.
type Waypoint struct {
	Position    direction.Point `json:"position"`
	Instruction string          `json:"instruction"`
	Index       int             `json:"index"`
}

// Route is an ordered waypoint sequence and its final destination.
// A Route is never modified after construction; accessors return copies.
type Route struct {
	waypoints   []Waypoint
	destination direction.Point
}

// New validates and freezes an explicit waypoint list.
// Waypoint indices are rewritten to their ordinal positions.
func New(destination direction.Point, waypoints []Waypoint) (*Route, error) {
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if len(waypoints) == 0 {
		return nil, ErrEmptyRoute
	}

	wps := make([]Waypoint, len(waypoints))
	for i, wp := range waypoints {
		if err := wp.Position.Validate(); err != nil {
			return nil, fmt.Errorf("route: waypoint %d: %w", i, err)
		}
		wp.Index = i
		wps[i] = wp
	}
	return &Route{waypoints: wps, destination: destination}, nil
}

// FromInstructions spreads one waypoint per instruction evenly along the
// straight line from start to destination; waypoint i sits at fraction
// (i+1)/n. Without instructions the route is a single waypoint at the
// destination. A nil start places every waypoint on the destination.
func FromInstructions(start *direction.Point, destination direction.Point, instructions []string) (*Route, error) {
	if err := destination.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDestination, err)
	}
	if start != nil {
		if err := start.Validate(); err != nil {
			return nil, fmt.Errorf("route: start: %w", err)
		}
	}

	if len(instructions) == 0 {
		return New(destination, []Waypoint{{Position: destination, Instruction: ArriveInstruction}})
	}

	n := float64(len(instructions))
	wps := make([]Waypoint, 0, len(instructions))
	for i, text := range instructions {
		pos := destination
		if start != nil && i < len(instructions)-1 {
			frac := float64(i+1) / n
			pos = direction.Point{
				Lat: start.Lat + (destination.Lat-start.Lat)*frac,
				Lng: start.Lng + (destination.Lng-start.Lng)*frac,
			}
		}
		wps = append(wps, Waypoint{Position: pos, Instruction: text})
	}
	return New(destination, wps)
}

// Len returns the number of waypoints.
func (r *Route) Len() int { return len(r.waypoints) }

// At returns waypoint i. It panics when i is out of range, like a slice index.
func (r *Route) At(i int) Waypoint { return r.waypoints[i] }

// Destination returns the final target.
func (r *Route) Destination() direction.Point { return r.destination }

// Waypoints returns a copy of the waypoint list.
func (r *Route) Waypoints() []Waypoint {
	out := make([]Waypoint, len(r.waypoints))
	copy(out, r.waypoints)
	return out
}

var instructionMarkup = strings.NewReplacer("<b>", "", "</b>", "", "<div>", " ", "</div>", " ")

// CleanInstruction strips the light HTML that directions services embed in
// step text and collapses the resulting whitespace.
func CleanInstruction(s string) string {
	return strings.Join(strings.Fields(instructionMarkup.Replace(s)), " ")
}
