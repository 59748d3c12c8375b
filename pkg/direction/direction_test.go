package direction_test

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-guide/pkg/direction"
)

const tolerance = 1e-6

var kandy = direction.Point{Lat: 7.2936, Lng: 80.6428}

func TestDistance(t *testing.T) {
	t.Run("zero for same point", func(t *testing.T) {
		if d := direction.Distance(kandy, kandy); d != 0 {
			t.Errorf("distance(a,a) = %v, want 0", d)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		b := direction.Point{Lat: 7.2900, Lng: 80.6400}
		ab := direction.Distance(kandy, b)
		ba := direction.Distance(b, kandy)
		if math.Abs(ab-ba) > tolerance {
			t.Errorf("distance not symmetric: %v vs %v", ab, ba)
		}
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := direction.Point{Lat: 0, Lng: 0}
		b := direction.Point{Lat: 1, Lng: 0}
		want := direction.EarthRadius * math.Pi / 180
		if got := direction.Distance(a, b); math.Abs(got-want) > 0.01 {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestBearing(t *testing.T) {
	origin := direction.Point{Lat: 0, Lng: 0}
	tests := []struct {
		name string
		to   direction.Point
		want float64
	}{
		{"north", direction.Point{Lat: 1, Lng: 0}, 0},
		{"east", direction.Point{Lat: 0, Lng: 1}, 90},
		{"south", direction.Point{Lat: -1, Lng: 0}, 180},
		{"west", direction.Point{Lat: 0, Lng: -1}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := direction.Bearing(origin, tt.to)
			if math.Abs(got-tt.want) > tolerance {
				t.Errorf("bearing = %v, want %v", got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("bearing %v outside [0,360)", got)
			}
		})
	}
}

func TestOffset_RoundTrip(t *testing.T) {
	for _, brg := range []float64{0, 45, 90, 200, 315} {
		p := direction.Offset(kandy, 100, brg)
		if d := direction.Distance(kandy, p); math.Abs(d-100) > 0.01 {
			t.Errorf("bearing %v: distance %v, want 100", brg, d)
		}
		if b := direction.Bearing(kandy, p); math.Abs(b-brg) > 0.01 {
			t.Errorf("bearing %v: got %v", brg, b)
		}
	}
}

func TestCompassLabel(t *testing.T) {
	tests := []struct {
		bearing float64
		res     direction.Resolution
		want    string
	}{
		{0, direction.Compass16, "north"},
		{90, direction.Compass16, "east"},
		{11.24, direction.Compass16, "north"},
		{11.26, direction.Compass16, "north-northeast"},
		{359, direction.Compass16, "north"},
		{202.5, direction.Compass16, "south-southwest"},
		{0, direction.Compass8, "north"},
		{44, direction.Compass8, "northeast"},
		{180, direction.Compass8, "south"},
		{337.6, direction.Compass8, "north"},
		{-90, direction.Compass8, "west"},
	}
	for _, tt := range tests {
		if got := direction.CompassLabel(tt.bearing, tt.res); got != tt.want {
			t.Errorf("CompassLabel(%v, %d) = %q, want %q", tt.bearing, tt.res, got, tt.want)
		}
	}
}

func TestAngleDiff(t *testing.T) {
	tests := []struct {
		heading, target, want float64
	}{
		{45, 52, 7},
		{350, 10, 20},
		{10, 350, -20},
		{0, 180, 180},
		{180, 0, 180},
		{90, 270, 180},
	}
	for _, tt := range tests {
		got := direction.AngleDiff(tt.heading, tt.target)
		if math.Abs(got-tt.want) > tolerance {
			t.Errorf("AngleDiff(%v, %v) = %v, want %v", tt.heading, tt.target, got, tt.want)
		}
		if got <= -180 || got > 180 {
			t.Errorf("AngleDiff(%v, %v) = %v outside (-180,180]", tt.heading, tt.target, got)
		}
	}
}

func TestDecide(t *testing.T) {
	t.Run("heading 45 scenarios", func(t *testing.T) {
		cases := map[float64]direction.Command{
			52: direction.Forward,
			70: direction.Right,
			20: direction.Left,
		}
		for target, want := range cases {
			if got := direction.Decide(45, target, 15, 100, 5); got != want {
				t.Errorf("target %v: got %v, want %v", target, got, want)
			}
		}
	})

	t.Run("arrival ignores heading", func(t *testing.T) {
		for _, heading := range []float64{0, 90, 181, 359} {
			if got := direction.Decide(heading, 0, 15, 3, 5); got != direction.Arrived {
				t.Errorf("heading %v: got %v, want arrived", heading, got)
			}
		}
	})

	t.Run("arrival radius is exclusive", func(t *testing.T) {
		if got := direction.Decide(0, 0, 15, 5, 5); got == direction.Arrived {
			t.Error("distance equal to radius must not be arrived")
		}
	})

	t.Run("tolerance boundary is never forward", func(t *testing.T) {
		if got := direction.Decide(0, 15, 15, 100, 5); got != direction.Right {
			t.Errorf("+tolerance: got %v, want right", got)
		}
		if got := direction.Decide(15, 0, 15, 100, 5); got != direction.Left {
			t.Errorf("-tolerance: got %v, want left", got)
		}
	})

	t.Run("wraps across north", func(t *testing.T) {
		if got := direction.Decide(355, 5, 15, 100, 5); got != direction.Forward {
			t.Errorf("got %v, want forward", got)
		}
	})
}

func TestCommand_Text(t *testing.T) {
	for _, c := range []direction.Command{direction.Forward, direction.Left, direction.Right, direction.Arrived, direction.Stopped} {
		parsed, err := direction.ParseCommand(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCommand(%q) = %v, %v", c.String(), parsed, err)
		}
	}
	if _, err := direction.ParseCommand("backward"); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestPoint_Validate(t *testing.T) {
	if err := kandy.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := []direction.Point{
		{Lat: 91, Lng: 0},
		{Lat: -91, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: math.NaN(), Lng: 0},
	}
	for _, p := range bad {
		if err := p.Validate(); !errors.Is(err, direction.ErrInvalidPoint) {
			t.Errorf("Validate(%v) = %v, want ErrInvalidPoint", p, err)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := direction.Describe(kandy); got != "location at 7.2936, 80.6428" {
		t.Errorf("Describe = %q", got)
	}
}
