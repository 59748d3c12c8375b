package guidance

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// Config holds the guidance thresholds. Distances are in meters.
type Config struct {
	// WaypointRadius is the distance under which a waypoint counts as reached.
	WaypointRadius float64 `yaml:"waypoint_radius"`

	// OffRouteDistance is the distance beyond which the walker is off route.
	OffRouteDistance float64 `yaml:"off_route_distance"`

	// OffRouteRepeat is the minimum time between off-route warnings.
	OffRouteRepeat time.Duration `yaml:"off_route_repeat"`

	// Progress announcements are spaced by distance to the waypoint:
	// below NearDistance every NearInterval, below MidDistance every
	// MidInterval, otherwise every FarInterval.
	NearDistance float64       `yaml:"near_distance"`
	MidDistance  float64       `yaml:"mid_distance"`
	NearInterval time.Duration `yaml:"near_interval"`
	MidInterval  time.Duration `yaml:"mid_interval"`
	FarInterval  time.Duration `yaml:"far_interval"`

	// Resolution of compass labels in spoken text.
	Resolution direction.Resolution `yaml:"compass_points"`

	// NameTimeout bounds each place-name lookup.
	NameTimeout time.Duration `yaml:"name_timeout"`
}

// DefaultConfig returns the canonical pedestrian thresholds.
func DefaultConfig() Config {
	return Config{
		WaypointRadius:   20,
		OffRouteDistance: 50,
		OffRouteRepeat:   10 * time.Second,
		NearDistance:     30,
		MidDistance:      100,
		NearInterval:     5 * time.Second,
		MidInterval:      8 * time.Second,
		FarInterval:      15 * time.Second,
		Resolution:       direction.Compass16,
		NameTimeout:      3 * time.Second,
	}
}

// Validate checks that thresholds are positive and ordered.
func (c Config) Validate() error {
	var errs []error
	if c.WaypointRadius <= 0 {
		errs = append(errs, fmt.Errorf("waypoint_radius must be positive, got %v", c.WaypointRadius))
	}
	if c.OffRouteDistance <= c.WaypointRadius {
		errs = append(errs, fmt.Errorf("off_route_distance (%v) must exceed waypoint_radius (%v)", c.OffRouteDistance, c.WaypointRadius))
	}
	if c.NearDistance <= 0 || c.MidDistance <= c.NearDistance {
		errs = append(errs, fmt.Errorf("near_distance (%v) and mid_distance (%v) must be positive and increasing", c.NearDistance, c.MidDistance))
	}
	if c.NearInterval <= 0 || c.MidInterval <= 0 || c.FarInterval <= 0 || c.OffRouteRepeat <= 0 {
		errs = append(errs, errors.New("announcement intervals must be positive"))
	}
	if c.Resolution != direction.Compass8 && c.Resolution != direction.Compass16 {
		errs = append(errs, fmt.Errorf("compass_points must be 8 or 16, got %d", c.Resolution))
	}
	if len(errs) > 0 {
		return fmt.Errorf("guidance: invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// interval returns the minimum gap between progress updates at distance d.
func (c Config) interval(d float64) time.Duration {
	switch {
	case d < c.NearDistance:
		return c.NearInterval
	case d < c.MidDistance:
		return c.MidInterval
	default:
		return c.FarInterval
	}
}
