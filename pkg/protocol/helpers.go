package protocol

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewObservationMessage creates an observation message
func NewObservationMessage(obs ObservationData) (*Message, error) {
	return NewMessage(TypeObservation, obs)
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64, t time.Duration) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		FrameID: frameID,
		TimeMs:  t.Milliseconds(),
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
	})
}

// NewStateMessage creates a driver state message
func NewStateMessage(source string, frameID uint64, state drowsiness.DriverState) (*Message, error) {
	return NewMessage(TypeState, StateData{Source: source, FrameID: frameID, State: state})
}

// NewHazardMessage creates a hazard state message
func NewHazardMessage(source string, frameID uint64, state hazard.State) (*Message, error) {
	return NewMessage(TypeHazard, HazardData{Source: source, FrameID: frameID, State: state})
}

// NewAlertMessage creates an alert message
func NewAlertMessage(a AlertData) (*Message, error) {
	return NewMessage(TypeAlert, a)
}

// NewErrorMessage creates an error message
func NewErrorMessage(msg string) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: msg})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetObservationData extracts observation data from a message
func (m *Message) GetObservationData() (*ObservationData, error) {
	var data ObservationData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Observation converts the message into analyzer input.
func (o *ObservationData) Observation() drowsiness.Observation {
	obs := drowsiness.Observation{
		At:        time.Duration(o.TimeMs) * time.Millisecond,
		Width:     o.Width,
		Height:    o.Height,
		Rotation:  o.Rotation,
		Faces:     o.Faces,
		Landmarks: o.Landmarks,
	}
	if o.Error != "" {
		obs.Err = errors.New(o.Error)
	}
	return obs
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetObjectsData extracts road detections from a message
func (m *Message) GetObjectsData() (*ObjectsData, error) {
	var data ObjectsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetMotionData extracts a motion sample from a message
func (m *Message) GetMotionData() (*MotionData, error) {
	var data MotionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Sample converts the message into a motion gate sample.
func (d *MotionData) Sample() motion.Sample {
	s := motion.Sample{
		At:         time.Duration(d.TimeMs) * time.Millisecond,
		Activity:   motion.ParseActivity(d.Activity),
		Confidence: d.Confidence,
	}
	if d.SpeedMps != nil {
		s.SpeedMps = *d.SpeedMps
		s.HasSpeed = true
	}
	return s
}

// GetConfigData extracts a config change from a message
func (m *Message) GetConfigData() (*ConfigData, error) {
	var data ConfigData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetHazardData extracts hazard data from a message
func (m *Message) GetHazardData() (*HazardData, error) {
	var data HazardData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAlertData extracts an alert from a message
func (m *Message) GetAlertData() (*AlertData, error) {
	var data AlertData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error details from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
