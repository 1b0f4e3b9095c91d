// Package motion decides whether the vehicle is being driven from activity
// recognition and speed samples.
package motion

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Activity is a coarse activity classification from the phone or vehicle.
type Activity int

const (
	Unknown Activity = iota
	Stationary
	Walking
	Running
	OnBicycle
	InVehicle
)

var activityNames = []string{"unknown", "stationary", "walking", "running", "on_bicycle", "in_vehicle"}

func (a Activity) String() string {
	if int(a) >= 0 && int(a) < len(activityNames) {
		return activityNames[a]
	}
	return fmt.Sprintf("activity(%d)", int(a))
}

// ParseActivity parses an activity name. Unrecognized names are Unknown.
func ParseActivity(s string) Activity {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range activityNames {
		if name == s {
			return Activity(i)
		}
	}
	return Unknown
}

// Sample is one motion observation.
type Sample struct {
	At         time.Duration // Monotonic time of the sample
	Activity   Activity
	Confidence float64 // Activity confidence (0-1)
	SpeedMps   float64
	HasSpeed   bool
}

// Config holds motion gate parameters
type Config struct {
	MinActivityConfidence float64       `json:"min_activity_confidence"`
	MinSpeedMps           float64       `json:"min_speed_mps"`
	OpenAfter             time.Duration `json:"open_after"`     // Moving this long opens the gate
	CloseAfter            time.Duration `json:"close_after"`    // Not moving this long closes it
	AssumeDriving         bool          `json:"assume_driving"` // Start open, for setups without a motion feed
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		MinActivityConfidence: 0.6,
		MinSpeedMps:           2.5,
		OpenAfter:             3 * time.Second,
		CloseAfter:            30 * time.Second,
	}
}

// Gate is a debounced driving/not-driving switch. It is safe for
// concurrent use: samples arrive from ingest connections while pipelines
// read Driving.
type Gate struct {
	mu           sync.Mutex
	cfg          Config
	driving      bool
	pending      bool
	pendingSince time.Duration
	hasPending   bool
}

// NewGate creates a gate. It starts closed unless cfg.AssumeDriving.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg, driving: cfg.AssumeDriving}
}

// moving classifies a sample. ok is false when the sample says nothing.
func (g *Gate) moving(s Sample) (moving, ok bool) {
	if s.HasSpeed && s.SpeedMps >= g.cfg.MinSpeedMps {
		return true, true
	}
	if s.Activity == InVehicle && s.Confidence >= g.cfg.MinActivityConfidence {
		return true, true
	}
	if s.Activity == Unknown && !s.HasSpeed {
		return false, false
	}
	if s.Activity == InVehicle {
		// Low confidence in-vehicle with no usable speed.
		return false, s.HasSpeed
	}
	return false, true
}

// Update feeds one sample and reports the gate state and whether it
// changed.
func (g *Gate) Update(s Sample) (driving, changed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	moving, ok := g.moving(s)
	if !ok {
		return g.driving, false
	}

	if moving == g.driving {
		g.hasPending = false
		return g.driving, false
	}

	if !g.hasPending || g.pending != moving || s.At < g.pendingSince {
		g.pending = moving
		g.pendingSince = s.At
		g.hasPending = true
	}

	wait := g.cfg.CloseAfter
	if moving {
		wait = g.cfg.OpenAfter
	}
	if s.At-g.pendingSince >= wait {
		g.driving = moving
		g.hasPending = false
		return g.driving, true
	}
	return g.driving, false
}

// Driving reports whether the gate is open.
func (g *Gate) Driving() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.driving
}

// Pending returns the state the gate is moving toward and since when.
func (g *Gate) Pending() (driving bool, since time.Duration, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending, g.pendingSince, g.hasPending
}
