package control

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-guide/pkg/direction"
)

// DefaultCallTimeout bounds each source read and command publish.
const DefaultCallTimeout = 5 * time.Second

// PedestrianConfig configures a PedestrianLoop.
type PedestrianConfig struct {
	Period      time.Duration `yaml:"period"`
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MaxPending skips enqueueing while the narration queue holds at
	// least this many items.
	MaxPending int `yaml:"max_pending"`
}

// DefaultPedestrianConfig returns the canonical pedestrian loop settings.
func DefaultPedestrianConfig() PedestrianConfig {
	return PedestrianConfig{
		Period:      8 * time.Second,
		CallTimeout: DefaultCallTimeout,
		MaxPending:  2,
	}
}

// Validate checks the pedestrian loop settings.
func (c PedestrianConfig) Validate() error {
	if c.Period <= 0 || c.CallTimeout <= 0 {
		return errors.New("control: pedestrian period and call timeout must be positive")
	}
	if c.MaxPending < 1 {
		return fmt.Errorf("control: max_pending must be at least 1, got %d", c.MaxPending)
	}
	return nil
}

// RobotConfig configures a RobotLoop. Distances are meters, angles degrees.
type RobotConfig struct {
	Period           time.Duration        `yaml:"period"`
	CallTimeout      time.Duration        `yaml:"call_timeout"`
	ArrivalRadius    float64              `yaml:"arrival_radius"`
	HeadingTolerance float64              `yaml:"heading_tolerance"`
	Resolution       direction.Resolution `yaml:"compass_points"`
}

// DefaultRobotConfig returns the canonical robot loop settings.
func DefaultRobotConfig() RobotConfig {
	return RobotConfig{
		Period:           2 * time.Second,
		CallTimeout:      DefaultCallTimeout,
		ArrivalRadius:    5,
		HeadingTolerance: 15,
		Resolution:       direction.Compass8,
	}
}

// Validate checks the robot loop settings.
func (c RobotConfig) Validate() error {
	if c.Period <= 0 || c.CallTimeout <= 0 {
		return errors.New("control: robot period and call timeout must be positive")
	}
	if c.ArrivalRadius <= 0 {
		return fmt.Errorf("control: arrival_radius must be positive, got %v", c.ArrivalRadius)
	}
	if c.HeadingTolerance <= 0 || c.HeadingTolerance >= 180 {
		return fmt.Errorf("control: heading_tolerance must be in (0,180), got %v", c.HeadingTolerance)
	}
	return nil
}
