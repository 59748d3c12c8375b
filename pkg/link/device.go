package link

import (
	"context"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
)

// Device adapts one robot on the hub to the control loop interfaces.
// Fixes older than the hub's max age are reported as absent.
type Device struct {
	hub *Hub
	id  string
}

// Device returns the adapter for robotID. The robot need not be connected yet.
func (h *Hub) Device(robotID string) *Device {
	return &Device{hub: h, id: robotID}
}

// ID returns the robot this device addresses.
func (d *Device) ID() string { return d.id }

// Position implements control.PositionSource.
func (d *Device) Position(ctx context.Context) (direction.Point, error) {
	if err := ctx.Err(); err != nil {
		return direction.Point{}, err
	}
	r := d.hub.GetRobot(d.id)
	if r == nil {
		return direction.Point{}, control.ErrNoFix
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.position == nil || d.hub.now().Sub(r.positionAt) > d.hub.maxAge {
		return direction.Point{}, control.ErrNoFix
	}
	return *r.position, nil
}

// Heading implements control.HeadingSource.
func (d *Device) Heading(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r := d.hub.GetRobot(d.id)
	if r == nil {
		return 0, control.ErrNoFix
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.heading == nil || d.hub.now().Sub(r.headingAt) > d.hub.maxAge {
		return 0, control.ErrNoFix
	}
	return *r.heading, nil
}

// Publish implements control.CommandSink.
func (d *Device) Publish(ctx context.Context, cmd direction.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.hub.SendCommand(ctx, d.id, cmd)
}

var (
	_ control.PositionSource = (*Device)(nil)
	_ control.HeadingSource  = (*Device)(nil)
	_ control.CommandSink    = (*Device)(nil)
)
