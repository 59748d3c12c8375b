package guidance

import (
	"fmt"
	"strings"
)

// Fixed announcements.
const (
	MsgArrived     = "Congratulations! You have reached your destination. Navigation complete."
	MsgApproaching = "You are approaching your final destination!"
	MsgStopped     = "Navigation stopped."
)

func startMessage(here, dest string, steps int, direct bool) string {
	var b strings.Builder
	b.WriteString("Live navigation started! ")
	if here != "" {
		fmt.Fprintf(&b, "I can see you are currently at %s. ", here)
	}
	fmt.Fprintf(&b, "Your destination is %s. ", dest)
	if direct {
		b.WriteString("I will guide you directly to your destination. Please start walking and I will provide turn-by-turn directions based on your GPS location.")
	} else {
		fmt.Fprintf(&b, "The journey has %d steps. I will guide you turn by turn. Please start walking and I will provide detailed directions.", steps)
	}
	return b.String()
}

func waypointMessage(instruction, compass string) string {
	return fmt.Sprintf("Next instruction: %s. Head %s.", instruction, compass)
}

func offRouteMessage(here, compass string, dist float64) string {
	if here != "" {
		return fmt.Sprintf("You may be off route at %s. Head %s to get back on track. The waypoint is %.0f meters away.", here, compass, dist)
	}
	return fmt.Sprintf("You may be off route. Head %s to get back on track. The waypoint is %.0f meters away.", compass, dist)
}

func progressMessage(here, instruction, compass string, dist, near float64) string {
	if instruction != "" {
		if here != "" {
			return fmt.Sprintf("%s From %s, continue %s. %.0f meters ahead.", instruction, here, compass, dist)
		}
		return fmt.Sprintf("%s Continue %s. %.0f meters ahead.", instruction, compass, dist)
	}

	prefix := ""
	if here != "" {
		prefix = fmt.Sprintf("You are at %s. ", here)
	}
	if dist < near {
		return fmt.Sprintf("%sAlmost at waypoint. Continue %s. %.0f meters ahead.", prefix, compass, dist)
	}
	return fmt.Sprintf("%sContinue %s. Next waypoint is %.0f meters away.", prefix, compass, dist)
}
