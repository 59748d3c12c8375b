package direction

import "math"

// Resolution selects how many named sectors CompassLabel uses.
type Resolution int

const (
	// Compass8 uses 45° sectors (north, northeast, ...). Robot narration.
	Compass8 Resolution = 8
	// Compass16 uses 22.5° sectors (north, north-northeast, ...). Pedestrian narration.
	Compass16 Resolution = 16
)

var compass8 = [...]string{
	"north", "northeast", "east", "southeast",
	"south", "southwest", "west", "northwest",
}

var compass16 = [...]string{
	"north", "north-northeast", "northeast", "east-northeast",
	"east", "east-southeast", "southeast", "south-southeast",
	"south", "south-southwest", "southwest", "west-southwest",
	"west", "west-northwest", "northwest", "north-northwest",
}

// CompassLabel maps a bearing to the nearest named direction.
// Unknown resolutions fall back to 16 points.
func CompassLabel(bearing float64, res Resolution) string {
	names := compass16[:]
	if res == Compass8 {
		names = compass8[:]
	}
	width := 360.0 / float64(len(names))
	idx := int(math.Round(normalize360(bearing)/width)) % len(names)
	return names[idx]
}
