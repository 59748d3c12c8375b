// Package protocol defines the WebSocket messages exchanged with a robot
// over the guidance link.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Robot → server
	TypeGPS     MessageType = "gps"     // Position fix
	TypeHeading MessageType = "heading" // Compass heading

	// Server → robot
	TypeCommand MessageType = "command" // Steering command

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v.
func (m *Message) ParseData(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("protocol: %s message has no data", m.Type)
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: message without type")
	}
	return &msg, nil
}

// GPSData is a position fix in decimal degrees.
type GPSData struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// HeadingData is a compass heading, degrees clockwise from north.
type HeadingData struct {
	Degrees float64 `json:"degrees"`
}

// CommandData carries a steering command ("forward", "left", ...).
type CommandData struct {
	Direction string `json:"direction"`
}

// PongData answers a ping.
type PongData struct {
	PingTS    int64 `json:"ping_ts"`
	PongTS    int64 `json:"pong_ts"`
	LatencyMs int64 `json:"latency_ms"`
}

// NewCommandMessage creates a steering command message.
func NewCommandMessage(direction string) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{Direction: direction})
}

// NewPongMessage creates a pong response message
func NewPongMessage(pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}
