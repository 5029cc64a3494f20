package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadingKind says which reading a sensor message carries
type ReadingKind string

const (
	KindHealth ReadingKind = "health"
	KindSystem ReadingKind = "system"
)

// FrameType labels messages pushed to dashboards
type FrameType string

const (
	FrameHealthReading FrameType = "health_reading"
	FrameSystemReading FrameType = "system_reading"
	FrameAlert         FrameType = "alert"
)

// ReadingEnvelope is the payload published by on-board sensors.
// Timestamp is optional RFC3339; the receive time is used when it is empty.
type ReadingEnvelope struct {
	Kind      ReadingKind     `json:"kind"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// Frame is one message written to a dashboard WebSocket
type Frame struct {
	Type      FrameType `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseEnvelope decodes and validates a sensor payload
func ParseEnvelope(data []byte) (*ReadingEnvelope, error) {
	var env ReadingEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch env.Kind {
	case KindHealth, KindSystem:
	default:
		return nil, fmt.Errorf("unknown reading kind: %q", env.Kind)
	}

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("data is required")
	}
	return &env, nil
}

// Time returns the sensor timestamp, or fallback when none was sent
func (e *ReadingEnvelope) Time(fallback time.Time) (time.Time, error) {
	if e.Timestamp == "" {
		return fallback, nil
	}
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	return ts, nil
}

// EncodeFrame encodes a dashboard frame to JSON
func EncodeFrame(frame *Frame) ([]byte, error) {
	return json.Marshal(frame)
}
