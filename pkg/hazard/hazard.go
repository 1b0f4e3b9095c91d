// Package hazard raises road hazards from object detections on the rear
// camera stream.
package hazard

import (
	"fmt"

	"github.com/teslashibe/go-vigil/pkg/detection"
)

// Kind classifies a hazard. Higher values take precedence when several
// kinds are present at once.
type Kind int

const (
	KindNone Kind = iota
	KindVehicle
	KindAnimal
	KindPedestrian
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindVehicle:
		return "vehicle"
	case KindAnimal:
		return "animal"
	case KindPedestrian:
		return "pedestrian"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, c := range []Kind{KindNone, KindVehicle, KindAnimal, KindPedestrian} {
		if c.String() == string(text) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("hazard: unknown kind %q", text)
}

// Classify maps a detector class name to a hazard kind.
func Classify(className string) Kind {
	switch {
	case detection.IsPerson(className):
		return KindPedestrian
	case detection.IsAnimal(className):
		return KindAnimal
	case detection.IsVehicle(className):
		return KindVehicle
	}
	return KindNone
}

// State is the published hazard state. Confidence and Class are those of
// the detection that raised the hazard and do not change while it stays
// raised.
type State struct {
	Kind       Kind    `json:"kind"`
	Class      string  `json:"class,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Clear is the state with no hazard.
func Clear() State { return State{} }

// Present reports whether a hazard is raised.
func (s State) Present() bool { return s.Kind != KindNone }

func (s State) String() string {
	if !s.Present() {
		return "clear"
	}
	return fmt.Sprintf("%s(%s %.2f)", s.Kind, s.Class, s.Confidence)
}

// Config holds hazard filtering parameters
type Config struct {
	MinConfidence float64 `json:"min_confidence"` // Minimum detector confidence
	MinArea       float64 `json:"min_area"`       // Minimum box area as a fraction of the frame
	CorridorMin   float64 `json:"corridor_min"`   // Left edge of the central corridor (0-1)
	CorridorMax   float64 `json:"corridor_max"`   // Right edge of the central corridor (0-1)
	MinFrames     int     `json:"min_frames"`     // Consecutive frames before raising
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.5,
		MinArea:       0.02,
		CorridorMin:   0.2,
		CorridorMax:   0.8,
		MinFrames:     3,
	}
}

// Validate returns a list of validation errors (empty if valid)
func (c Config) Validate() []string {
	var errs []string
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, "min_confidence must be between 0 and 1")
	}
	if c.MinArea < 0 || c.MinArea > 1 {
		errs = append(errs, "min_area must be between 0 and 1")
	}
	if c.CorridorMin < 0 || c.CorridorMax > 1 || c.CorridorMin >= c.CorridorMax {
		errs = append(errs, "corridor must satisfy 0 <= min < max <= 1")
	}
	if c.MinFrames < 1 {
		errs = append(errs, "min_frames must be at least 1")
	}
	return errs
}

// Analyzer debounces hazards over consecutive frames. Like the driver
// analyzer it is owned by one stream and not safe for concurrent use.
type Analyzer struct {
	cfg     Config
	streaks map[Kind]int
	state   State
}

// NewAnalyzer creates a hazard analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg, streaks: make(map[Kind]int)}
}

// Candidate reports whether obj qualifies as a hazard this frame.
func (a *Analyzer) Candidate(obj detection.ObjectDetection) (Kind, bool) {
	kind := Classify(obj.ClassName)
	if kind == KindNone {
		return KindNone, false
	}
	if obj.Confidence < a.cfg.MinConfidence || obj.Area() < a.cfg.MinArea {
		return KindNone, false
	}
	if cx, _ := obj.Center(); cx < a.cfg.CorridorMin || cx > a.cfg.CorridorMax {
		return KindNone, false
	}
	return kind, true
}

// Evaluate processes one frame's objects.
func (a *Analyzer) Evaluate(objects []detection.ObjectDetection) State {
	best := make(map[Kind]detection.ObjectDetection)
	for _, obj := range objects {
		kind, ok := a.Candidate(obj)
		if !ok {
			continue
		}
		if cur, seen := best[kind]; !seen || obj.Confidence > cur.Confidence {
			best[kind] = obj
		}
	}

	for _, kind := range []Kind{KindVehicle, KindAnimal, KindPedestrian} {
		if _, ok := best[kind]; ok {
			a.streaks[kind]++
		} else {
			a.streaks[kind] = 0
		}
	}

	// Keep a raised hazard while its kind persists unless a more severe
	// kind has also qualified.
	next := Clear()
	for _, kind := range []Kind{KindPedestrian, KindAnimal, KindVehicle} {
		if a.streaks[kind] < a.cfg.MinFrames {
			continue
		}
		if a.state.Kind == kind {
			next = a.state
		} else {
			obj := best[kind]
			next = State{Kind: kind, Class: obj.ClassName, Confidence: obj.Confidence}
		}
		break
	}
	a.state = next
	return next
}

// State returns the current hazard state.
func (a *Analyzer) State() State { return a.state }

// Reset clears all streaks and the current hazard.
func (a *Analyzer) Reset() {
	clear(a.streaks)
	a.state = Clear()
}
