package route

// sampleInstructions stand in for a directions service when a client starts
// navigation without supplying any steps.
var sampleInstructions = []string{
	"Head southeast on your current street",
	"Turn right at the next intersection",
	"Continue straight for 200 meters",
	"Turn left at the traffic light",
	"Walk straight past the bus stop",
	"Turn right onto the main road",
	"Continue for 150 meters",
	"Turn left at the roundabout",
	"Walk straight toward the destination",
	"Your destination will be on the right",
}

// SampleInstructions returns the first n canned instructions, clamped to [1, 10].
func SampleInstructions(n int) []string {
	if n < 1 {
		n = 1
	}
	if n > len(sampleInstructions) {
		n = len(sampleInstructions)
	}
	out := make([]string, n)
	copy(out, sampleInstructions[:n])
	return out
}
