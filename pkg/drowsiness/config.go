package drowsiness

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-vigil/pkg/eye"
)

// Thresholds are the hysteresis bounds for one channel. Both eyes below
// ClosedBelow vote closed; either eye at or above OpenAtOrAbove votes open.
// Values in between vote neither.
type Thresholds struct {
	ClosedBelow   float64 `json:"closed_below"`
	OpenAtOrAbove float64 `json:"open_at_or_above"`
}

// Sources selects which measurement families the analyzer reads.
type Sources struct {
	Probability bool `json:"probability"` // Detector open probability
	Contour     bool `json:"contour"`     // Detector eye outline
	Landmarks   bool `json:"landmarks"`   // Secondary face mesh
}

// AllSources enables every channel.
func AllSources() Sources {
	return Sources{Probability: true, Contour: true, Landmarks: true}
}

// Any reports whether at least one source is enabled.
func (s Sources) Any() bool {
	return s.Probability || s.Contour || s.Landmarks
}

// Config holds all tunable parameters for drowsiness analysis
type Config struct {
	// Timing
	ClosedEyesThreshold time.Duration `json:"closed_eyes_threshold"` // Continuous closure before Drowsy

	// Smoothing
	SmoothingAlpha float64 `json:"smoothing_alpha"` // EMA weight of the newest sample

	// Channels
	Sources              Sources    `json:"sources"`
	PrimaryProbability   Thresholds `json:"primary_probability"`
	PrimaryRatio         Thresholds `json:"primary_ratio"`
	SecondaryProbability Thresholds `json:"secondary_probability"`
	SecondaryRatio       Thresholds `json:"secondary_ratio"`

	// Landmark ratio to probability mapping
	ClosedRatioRef float64 `json:"closed_ratio_ref"`
	OpenRatioRef   float64 `json:"open_ratio_ref"`

	// Contour estimation
	Contour eye.ContourParams `json:"contour"`
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		ClosedEyesThreshold: 1500 * time.Millisecond,

		SmoothingAlpha: 0.35,

		Sources:              AllSources(),
		PrimaryProbability:   Thresholds{ClosedBelow: 0.40, OpenAtOrAbove: 0.55},
		PrimaryRatio:         Thresholds{ClosedBelow: 0.18, OpenAtOrAbove: 0.26},
		SecondaryProbability: Thresholds{ClosedBelow: 0.30, OpenAtOrAbove: 0.60},
		SecondaryRatio:       Thresholds{ClosedBelow: eye.DefaultClosedRatio, OpenAtOrAbove: eye.DefaultOpenRatio},

		ClosedRatioRef: eye.DefaultClosedRatio,
		OpenRatioRef:   eye.DefaultOpenRatio,

		Contour: eye.DefaultContourParams(),
	}
}

// SensitiveConfig alerts sooner and reacts faster to closure.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.ClosedEyesThreshold = time.Second
	cfg.SmoothingAlpha = 0.5
	return cfg
}

// RelaxedConfig tolerates longer blinks and noisier input.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.ClosedEyesThreshold = 2500 * time.Millisecond
	cfg.SmoothingAlpha = 0.25
	return cfg
}

// PresetConfig returns the named preset: "default", "sensitive" or "relaxed".
func PresetConfig(name string) (Config, bool) {
	switch name {
	case "", "default":
		return DefaultConfig(), true
	case "sensitive":
		return SensitiveConfig(), true
	case "relaxed":
		return RelaxedConfig(), true
	}
	return Config{}, false
}

// Validate returns the first problem with cfg, or nil.
func (c Config) Validate() error {
	if c.ClosedEyesThreshold <= 0 {
		return &ConfigError{Field: "closed_eyes_threshold", Reason: "must be positive"}
	}
	if c.SmoothingAlpha <= 0 || c.SmoothingAlpha >= 1 {
		return &ConfigError{Field: "smoothing_alpha", Reason: fmt.Sprintf("%v not in (0,1)", c.SmoothingAlpha)}
	}
	if !c.Sources.Any() {
		return &ConfigError{Field: "sources", Reason: "no source enabled"}
	}
	for name, t := range map[string]Thresholds{
		"primary_probability":   c.PrimaryProbability,
		"primary_ratio":         c.PrimaryRatio,
		"secondary_probability": c.SecondaryProbability,
		"secondary_ratio":       c.SecondaryRatio,
	} {
		if t.ClosedBelow < 0 || t.OpenAtOrAbove > 1 {
			return &ConfigError{Field: name, Reason: "thresholds must lie in [0,1]"}
		}
		if t.ClosedBelow > t.OpenAtOrAbove {
			return &ConfigError{Field: name, Reason: "closed_below exceeds open_at_or_above"}
		}
	}
	if c.ClosedRatioRef >= c.OpenRatioRef {
		return &ConfigError{Field: "open_ratio_ref", Reason: "must exceed closed_ratio_ref"}
	}
	if c.Contour.MinPoints < 1 || c.Contour.MinVerticalSamples < 1 {
		return &ConfigError{Field: "contour", Reason: "minimum counts must be positive"}
	}
	return nil
}
