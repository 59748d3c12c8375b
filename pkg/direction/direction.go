// Package direction provides the geometry behind guidance: great-circle
// distance, initial bearing, compass labels, and the discrete steering
// decision used by ground robots.
//
// Everything in this package is pure and deterministic. Callers supply the
// thresholds; nothing here reads configuration.
package direction

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// ErrInvalidPoint is returned by Point.Validate for out-of-range coordinates.
var ErrInvalidPoint = errors.New("direction: invalid coordinates")

// Point is a WGS84 position in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point lies within lat [-90,90] and lng [-180,180].
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return fmt.Errorf("%w: NaN in (%v, %v)", ErrInvalidPoint, p.Lat, p.Lng)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrInvalidPoint, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrInvalidPoint, p.Lng)
	}
	return nil
}

// String formats the point with four decimals, the precision used in spoken text.
func (p Point) String() string {
	return fmt.Sprintf("%.4f, %.4f", p.Lat, p.Lng)
}

// Describe is the spoken name for a point when no place name is known.
func Describe(p Point) string {
	return "location at " + p.String()
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// Distance returns the Haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadius * c
}

// Bearing returns the initial bearing from a to b in degrees, in [0, 360).
func Bearing(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLng := radians(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	return normalize360(degrees(math.Atan2(y, x)))
}

// normalize360 folds any angle into [0, 360).
func normalize360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// AngleDiff returns the signed turn from heading to target in degrees,
// normalized into (-180, 180]. Positive means turn right (clockwise).
func AngleDiff(heading, target float64) float64 {
	d := normalize360(target-heading+180) - 180
	if d == -180 {
		return 180
	}
	return d
}

// Offset returns the point reached by travelling distance meters from p along
// the given initial bearing on a great circle.
func Offset(p Point, distance, bearing float64) Point {
	lat1 := radians(p.Lat)
	lng1 := radians(p.Lng)
	brg := radians(bearing)
	ang := distance / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(ang) + math.Cos(lat1)*math.Sin(ang)*math.Cos(brg))
	lng2 := lng1 + math.Atan2(
		math.Sin(brg)*math.Sin(ang)*math.Cos(lat1),
		math.Cos(ang)-math.Sin(lat1)*math.Sin(lat2),
	)

	return Point{Lat: degrees(lat2), Lng: normalize360(degrees(lng2)+180) - 180}
}
