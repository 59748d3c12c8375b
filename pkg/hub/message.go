// Package hub fans guidance events out to websocket subscribers using a
// channel-owned client set.
package hub

import (
	"encoding/json"
	"time"
)

// EventType names what an Event carries.
type EventType string

const (
	EventStatus    EventType = "status"    // session snapshot
	EventUtterance EventType = "utterance" // text handed to narration
	EventCommand   EventType = "command"   // steering command sent to a robot
	EventFix       EventType = "fix"       // position reported over the robot link
)

// Event is the JSON envelope written to subscribers.
type Event struct {
	Type EventType       `json:"type"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data into an event stamped now.
func NewEvent(typ EventType, data interface{}) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Time: time.Now(), Data: raw}, nil
}
