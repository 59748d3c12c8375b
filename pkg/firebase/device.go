package firebase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/teslashibe/go-guide/pkg/control"
	"github.com/teslashibe/go-guide/pkg/direction"
)

// Paths locates the device values in the database.
type Paths struct {
	GPS       string `yaml:"gps"`
	Heading   string `yaml:"heading"`
	Direction string `yaml:"direction"`
}

// DefaultPaths matches the ESP32 firmware layout: a GPS board (esp32A) and
// a compass and motor board (esp32B).
func DefaultPaths() Paths {
	return Paths{
		GPS:       "devices/esp32A/gps",
		Heading:   "devices/esp32B/heading",
		Direction: "devices/esp32B/navigation_direction",
	}
}

// Device exposes a robot's database entries as control sources and sink.
type Device struct {
	client *Client
	paths  Paths
	now    func() time.Time
}

// NewDevice binds paths on c. Empty paths take their defaults.
func NewDevice(c *Client, paths Paths) *Device {
	def := DefaultPaths()
	if paths.GPS == "" {
		paths.GPS = def.GPS
	}
	if paths.Heading == "" {
		paths.Heading = def.Heading
	}
	if paths.Direction == "" {
		paths.Direction = def.Direction
	}
	return &Device{client: c, paths: paths, now: time.Now}
}

// number decodes JSON numbers and numeric strings; firmware writes both.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

// Position implements control.PositionSource.
func (d *Device) Position(ctx context.Context) (direction.Point, error) {
	var gps struct {
		Lat *number `json:"lat"`
		Lng *number `json:"lng"`
	}
	if err := d.client.Get(ctx, d.paths.GPS, &gps); err != nil {
		if errors.Is(err, ErrNull) {
			return direction.Point{}, control.ErrNoFix
		}
		return direction.Point{}, err
	}
	if gps.Lat == nil || gps.Lng == nil {
		return direction.Point{}, control.ErrNoFix
	}
	p := direction.Point{Lat: float64(*gps.Lat), Lng: float64(*gps.Lng)}
	if err := p.Validate(); err != nil {
		return direction.Point{}, err
	}
	return p, nil
}

// Heading implements control.HeadingSource.
func (d *Device) Heading(ctx context.Context) (float64, error) {
	var h number
	if err := d.client.Get(ctx, d.paths.Heading, &h); err != nil {
		if errors.Is(err, ErrNull) {
			return 0, control.ErrNoFix
		}
		return 0, err
	}
	return float64(h), nil
}

// DirectionRecord is the value written for each command.
type DirectionRecord struct {
	Direction string `json:"direction"`
	Timestamp int64  `json:"timestamp"`
}

// Publish implements control.CommandSink.
func (d *Device) Publish(ctx context.Context, cmd direction.Command) error {
	return d.client.Put(ctx, d.paths.Direction, DirectionRecord{
		Direction: cmd.String(),
		Timestamp: d.now().UnixMilli(),
	})
}

var (
	_ control.PositionSource = (*Device)(nil)
	_ control.HeadingSource  = (*Device)(nil)
	_ control.CommandSink    = (*Device)(nil)
)
