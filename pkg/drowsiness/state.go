// Package drowsiness turns per-frame eye measurements into a debounced
// driver state.
//
// Up to four eye-openness channels (detector probability, contour ratio,
// landmark-derived probability, landmark ratio) are smoothed, each casts
// independent closed/open votes, the votes are aggregated with a
// conservative tie-break, and a closed-eyes timer promotes the result to
// Drowsy once eyes stay closed past a threshold.
//
// An Analyzer is owned by a single frame stream. It is not safe for
// concurrent use and must be fed frames in arrival order.
package drowsiness

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind enumerates driver state variants.
type Kind int

const (
	KindInitializing Kind = iota
	KindNoFace
	KindAttentive
	KindDrowsy
	KindError
)

var kindNames = map[Kind]string{
	KindInitializing: "initializing",
	KindNoFace:       "no_face",
	KindAttentive:    "attentive",
	KindDrowsy:       "drowsy",
	KindError:        "error",
}

// String returns the wire name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// DriverState is the analyzer output. It is comparable: two Drowsy states
// with different durations are different values.
type DriverState struct {
	Kind     Kind
	ClosedMs int64  // Drowsy only
	Reason   string // Error only
}

// Initializing is the state before any frame was evaluated.
func Initializing() DriverState { return DriverState{Kind: KindInitializing} }

// NoFace means no face was found in the latest frame.
func NoFace() DriverState { return DriverState{Kind: KindNoFace} }

// Attentive means eyes are open, ambiguous, or not closed for long enough.
func Attentive() DriverState { return DriverState{Kind: KindAttentive} }

// Drowsy means eyes have been closed continuously for closed.
func Drowsy(closed time.Duration) DriverState {
	ms := closed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return DriverState{Kind: KindDrowsy, ClosedMs: ms}
}

// Error means the detector failed on the latest frame.
func Error(reason string) DriverState { return DriverState{Kind: KindError, Reason: reason} }

// IsDrowsy reports whether s is a Drowsy state.
func (s DriverState) IsDrowsy() bool { return s.Kind == KindDrowsy }

// ClosedDuration returns the closed duration carried by a Drowsy state.
func (s DriverState) ClosedDuration() time.Duration {
	return time.Duration(s.ClosedMs) * time.Millisecond
}

func (s DriverState) String() string {
	switch s.Kind {
	case KindDrowsy:
		return fmt.Sprintf("drowsy(%dms)", s.ClosedMs)
	case KindError:
		return fmt.Sprintf("error(%s)", s.Reason)
	default:
		return s.Kind.String()
	}
}

type stateJSON struct {
	State    string `json:"state"`
	ClosedMs int64  `json:"closed_ms,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// MarshalJSON encodes the state as {"state": "...", "closed_ms": n, "reason": "..."}.
func (s DriverState) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{State: s.Kind.String(), ClosedMs: s.ClosedMs, Reason: s.Reason})
}

// UnmarshalJSON decodes the MarshalJSON form.
func (s *DriverState) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	k, ok := ParseKind(raw.State)
	if !ok {
		return fmt.Errorf("drowsiness: unknown state %q", raw.State)
	}
	*s = DriverState{Kind: k, ClosedMs: raw.ClosedMs, Reason: raw.Reason}
	return nil
}
