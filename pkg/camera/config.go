// Package camera provides capture configuration and gocv-backed frame
// sources for the cabin and road cameras.
package camera

import "fmt"

// Camera roles.
const (
	RoleDriver = "driver" // Faces the driver
	RoleRoad   = "road"   // Faces the road ahead
)

// Config holds all parameters for one camera.
// Everything except Name and Role can be changed at runtime via the API.
type Config struct {
	// === Identity ===
	Name string `json:"name"` // Unique camera name
	Role string `json:"role"` // driver or road

	// Device is a capture index ("0"), a device path, a file or a stream URL.
	Device string `json:"device"`

	// === Format ===
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS
	Quality   int `json:"quality"`   // JPEG quality 1-100 for frames handed to detectors

	// === Orientation ===
	// Rotation in degrees clockwise applied before detection: 0, 90, 180 or 270.
	Rotation int `json:"rotation"`
	// Mirror flips frames horizontally after rotation.
	Mirror bool `json:"mirror"`
}

// Capture limits
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 60
)

// DefaultConfig returns the recommended driver camera configuration.
// 640x480 keeps face and eye inference well inside a frame interval.
func DefaultConfig() Config {
	return Config{
		Name:      "cabin",
		Role:      RoleDriver,
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 15,
		Quality:   85,
	}
}

// RoadConfig returns the recommended road camera configuration.
func RoadConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "road"
	cfg.Role = RoleRoad
	cfg.Device = "1"
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Framerate = 10
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Name == "" {
		errors = append(errors, "name is required")
	}
	if c.Role != RoleDriver && c.Role != RoleRoad {
		errors = append(errors, "role must be driver or road")
	}
	if c.Device == "" {
		errors = append(errors, "device is required")
	}

	// Format
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	// Orientation
	switch c.Rotation {
	case 0, 90, 180, 270:
	default:
		errors = append(errors, "rotation must be 0, 90, 180 or 270")
	}

	return errors
}

// Size returns the frame size after rotation.
func (c *Config) Size() (width, height int) {
	if c.Rotation == 90 || c.Rotation == 270 {
		return c.Height, c.Width
	}
	return c.Width, c.Height
}
