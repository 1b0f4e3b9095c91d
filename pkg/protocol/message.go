// Package protocol defines the WebSocket message types exchanged between
// ingest clients (phones, dash units, the replay tool) and the server.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Client → Server messages
	TypeObservation MessageType = "observation" // Driver camera detector output
	TypeFrame       MessageType = "frame"       // Raw driver camera frame for server-side detection
	TypeObjects     MessageType = "objects"     // Road camera detector output
	TypeMotion      MessageType = "motion"      // Activity and speed sample
	TypeConfig      MessageType = "config"      // Analyzer preset change

	// Server → Client messages
	TypeState  MessageType = "state"  // Driver state change
	TypeHazard MessageType = "hazard" // Hazard state change
	TypeAlert  MessageType = "alert"  // Emitted alert
	TypeError  MessageType = "error"  // Rejected message

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
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
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Client → Server Message Types
// =============================================================================

// ObservationData carries one driver camera frame's detector output.
// Coordinates are normalized to the frame (0-1).
type ObservationData struct {
	FrameID uint64 `json:"frame_id,omitempty"`

	// TimeMs is the capture time in milliseconds on a monotonic clock
	// local to the client stream. Must not decrease.
	TimeMs int64 `json:"t_ms"`

	Width    int `json:"width,omitempty"`
	Height   int `json:"height,omitempty"`
	Rotation int `json:"rotation,omitempty"`

	Faces     []detection.Face        `json:"faces,omitempty"`
	Landmarks []detection.LandmarkSet `json:"landmarks,omitempty"`

	// Error reports a failed detector call on the client.
	Error string `json:"error,omitempty"`
}

// FrameData contains a raw driver camera frame
type FrameData struct {
	FrameID  uint64 `json:"frame_id,omitempty"`
	TimeMs   int64  `json:"t_ms"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Rotation int    `json:"rotation,omitempty"`
	Format   string `json:"format"` // "jpeg"
	Data     string `json:"data"`   // base64 encoded
}

// ObjectsData carries one road camera frame's object detections.
type ObjectsData struct {
	FrameID uint64                      `json:"frame_id,omitempty"`
	TimeMs  int64                       `json:"t_ms"`
	Objects []detection.ObjectDetection `json:"objects,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// MotionData contains an activity recognition and speed sample
type MotionData struct {
	TimeMs     int64    `json:"t_ms"`
	Activity   string   `json:"activity,omitempty"`   // "in_vehicle", "stationary", ...
	Confidence float64  `json:"confidence,omitempty"` // 0.0 to 1.0
	SpeedMps   *float64 `json:"speed_mps,omitempty"`
}

// ConfigData selects an analyzer preset for the connection
type ConfigData struct {
	Preset string `json:"preset"` // "default", "sensitive", "relaxed"
}

// =============================================================================
// Server → Client Message Types
// =============================================================================

// StateData reports a driver state change
type StateData struct {
	Source  string                 `json:"source"`
	FrameID uint64                 `json:"frame_id,omitempty"`
	State   drowsiness.DriverState `json:"state"`
}

// HazardData reports a hazard state change
type HazardData struct {
	Source  string       `json:"source"`
	FrameID uint64       `json:"frame_id,omitempty"`
	State   hazard.State `json:"state"`
}

// AlertData is an emitted alert
type AlertData = alert.Alert

// ErrorData describes a rejected message
type ErrorData struct {
	Message string `json:"message"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
