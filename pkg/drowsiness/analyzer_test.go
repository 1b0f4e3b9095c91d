package drowsiness

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
)

const tick = 100 * time.Millisecond

func fixed(left, right float64) Provider {
	return ProviderFunc(func(Input) Reading { return Available(left, right) })
}

func absent() Provider {
	return ProviderFunc(func(Input) Reading { return Unavailable() })
}

func testFace() detection.Face {
	return detection.Face{Detection: detection.Detection{X: 0.3, Y: 0.3, W: 0.3, H: 0.3, Confidence: 0.9}}
}

func frame(at time.Duration) Observation {
	return Observation{At: at, Faces: []detection.Face{testFace()}}
}

func ptr(v float64) *float64 { return &v }

// newTestAnalyzer wires constant providers through the default thresholds.
func newTestAnalyzer(prob, contour Provider) *Analyzer {
	cfg := DefaultConfig()
	return NewAnalyzerWithChannels(cfg,
		NewChannel(ChannelPrimaryProbability, prob, cfg.PrimaryProbability, cfg.SmoothingAlpha),
		NewChannel(ChannelPrimaryRatio, contour, cfg.PrimaryRatio, cfg.SmoothingAlpha),
	)
}

func TestAnalyzer_InitialState(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	if a.State() != Initializing() {
		t.Errorf("Expected Initializing, got %v", a.State())
	}
}

func TestAnalyzer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothingAlpha = 0
	if _, err := NewAnalyzer(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestAnalyzer_OpenEvidenceDominates(t *testing.T) {
	a := newTestAnalyzer(fixed(0.9, 0.85), absent())

	for at := time.Duration(0); at <= 3*time.Second; at += tick {
		if got := a.Evaluate(frame(at)); got != Attentive() {
			t.Fatalf("t=%v: expected Attentive, got %v", at, got)
		}
	}
}

func TestAnalyzer_SustainedClosure(t *testing.T) {
	a := newTestAnalyzer(fixed(0.1, 0.05), fixed(0.1, 0.12))

	want := map[time.Duration]DriverState{
		1000 * time.Millisecond: Attentive(),
		1500 * time.Millisecond: Drowsy(1500 * time.Millisecond),
		2000 * time.Millisecond: Drowsy(2000 * time.Millisecond),
	}
	for at := time.Duration(0); at <= 2*time.Second; at += tick {
		got := a.Evaluate(frame(at))
		if w, ok := want[at]; ok && got != w {
			t.Errorf("t=%v: expected %v, got %v", at, w, got)
		}
	}
}

func TestAnalyzer_NoFace(t *testing.T) {
	a := newTestAnalyzer(fixed(0.1, 0.1), absent())

	for i := 0; i < 5; i++ {
		got := a.Evaluate(Observation{At: time.Duration(i) * tick})
		if got != NoFace() {
			t.Errorf("frame %d: expected NoFace, got %v", i, got)
		}
		if _, closing := a.debounce.ClosedSince(); closing {
			t.Errorf("frame %d: timer should stay reset", i)
		}
	}
}

func TestAnalyzer_ErrorResetsClosedRun(t *testing.T) {
	a := newTestAnalyzer(fixed(0.1, 0.1), fixed(0.1, 0.1))

	for at := time.Duration(0); at <= time.Second; at += tick {
		a.Evaluate(frame(at))
	}

	obs := frame(1100 * time.Millisecond)
	obs.Err = errors.New("detector crashed")
	if got := a.Evaluate(obs); got != Error("detector crashed") {
		t.Fatalf("Expected Error state, got %v", got)
	}

	// Accumulation restarts at 1200ms
	var got DriverState
	for at := 1200 * time.Millisecond; at <= 2600*time.Millisecond; at += tick {
		got = a.Evaluate(frame(at))
		if got != Attentive() {
			t.Fatalf("t=%v: expected Attentive after reset, got %v", at, got)
		}
	}
	if got = a.Evaluate(frame(2700 * time.Millisecond)); got != Drowsy(1500*time.Millisecond) {
		t.Errorf("Expected Drowsy(1500ms), got %v", got)
	}
}

func TestAnalyzer_ResetOnGap(t *testing.T) {
	gaps := []struct {
		name string
		obs  func(at time.Duration) Observation
		prob Provider
	}{
		{"open", frame, fixed(1, 1)},
		{"no face", func(at time.Duration) Observation { return Observation{At: at} }, nil},
		{"all unavailable", frame, absent()},
	}

	for _, g := range gaps {
		t.Run(g.name, func(t *testing.T) {
			var gap bool
			prob := ProviderFunc(func(in Input) Reading {
				if gap && g.prob != nil {
					return g.prob.Read(in)
				}
				return Available(0.1, 0.1)
			})
			a := newTestAnalyzer(prob, absent())

			for at := time.Duration(0); at < time.Second; at += tick {
				a.Evaluate(frame(at))
			}
			gap = true
			a.Evaluate(g.obs(time.Second))
			gap = false
			if _, closing := a.debounce.ClosedSince(); closing {
				t.Fatal("Expected timer reset after gap frame")
			}

			start := time.Duration(-1)
			for at := time.Second + tick; at <= 4*time.Second; at += tick {
				got := a.Evaluate(frame(at))
				if since, closing := a.debounce.ClosedSince(); closing && start < 0 {
					start = since
				}
				if got.IsDrowsy() {
					if start < 0 || at-start < 1500*time.Millisecond {
						t.Fatalf("Drowsy at %v before a fresh 1500ms run (start %v)", at, start)
					}
					return
				}
			}
			t.Error("Expected Drowsy after a fresh closed run")
		})
	}
}

func TestAnalyzer_AllUnavailableIsAttentive(t *testing.T) {
	a := newTestAnalyzer(absent(), absent())
	if got := a.Evaluate(frame(0)); got != Attentive() {
		t.Errorf("Expected Attentive, got %v", got)
	}
	if a.LastEvaluation().Tally.Available != 0 {
		t.Errorf("Expected no available channels, got %+v", a.LastEvaluation().Tally)
	}
}

func TestAnalyzer_TieIsAttentive(t *testing.T) {
	a := newTestAnalyzer(fixed(0.1, 0.1), fixed(0.3, 0.3))

	for at := time.Duration(0); at <= 3*time.Second; at += tick {
		if got := a.Evaluate(frame(at)); got != Attentive() {
			t.Fatalf("t=%v: expected Attentive on a split vote, got %v", at, got)
		}
	}
	tally := a.LastEvaluation().Tally
	if tally.Closed != 1 || tally.Open != 1 {
		t.Errorf("Expected 1 closed and 1 open vote, got %+v", tally)
	}
}

func TestAnalyzer_ZeroAreaFaceIsAttentive(t *testing.T) {
	a := newTestAnalyzer(ProbabilityProvider{}, absent())
	closed := testFace()
	closed.LeftEyeOpen = ptr(0.1)
	closed.RightEyeOpen = ptr(0.1)
	degenerate := detection.Face{
		Detection:    detection.Detection{X: 0.5, Y: 0.5},
		LeftEyeOpen:  ptr(0.1),
		RightEyeOpen: ptr(0.1),
	}

	// Closing starts on a real face, then the box collapses
	for at := time.Duration(0); at < time.Second; at += tick {
		a.Evaluate(Observation{At: at, Faces: []detection.Face{closed}})
	}
	if _, closing := a.debounce.ClosedSince(); !closing {
		t.Fatal("Expected a closed run in progress")
	}
	if got := a.Evaluate(Observation{At: time.Second, Faces: []detection.Face{degenerate}}); got != Attentive() {
		t.Fatalf("Expected Attentive for degenerate box, got %v", got)
	}
	if _, closing := a.debounce.ClosedSince(); closing {
		t.Error("Expected closed timer reset by a degenerate box")
	}
	if tally := a.LastEvaluation().Tally; tally.Available != 0 {
		t.Errorf("Expected no available channels, got %+v", tally)
	}

	// The timer restarts rather than resuming
	start := time.Second + tick
	for at := start; at < start+time.Second; at += tick {
		if got := a.Evaluate(Observation{At: at, Faces: []detection.Face{closed}}); got != Attentive() {
			t.Fatalf("t=%v: expected Attentive while the timer rebuilds, got %v", at, got)
		}
	}

	if got := a.Evaluate(Observation{}); got != NoFace() {
		t.Errorf("Expected NoFace with no faces at all, got %v", got)
	}
}

func TestAnalyzer_Reset(t *testing.T) {
	a := newTestAnalyzer(fixed(0.1, 0.1), absent())
	for at := time.Duration(0); at <= 2*time.Second; at += tick {
		a.Evaluate(frame(at))
	}
	a.Reset()
	if a.State() != Initializing() {
		t.Errorf("Expected Initializing after Reset, got %v", a.State())
	}
	if got := a.Evaluate(frame(3 * time.Second)); got != Attentive() {
		t.Errorf("Expected Attentive on first frame after Reset, got %v", got)
	}
}

// Detector-native inputs through the default channel set.

func ellipse(cx, cy, a, b float64) []eye.Point {
	const n = 16
	pts := make([]eye.Point, n)
	for i := range pts {
		theta := 2 * math.Pi * (float64(i) + 0.5) / n
		pts[i] = eye.Point{X: cx + a*math.Cos(theta), Y: cy + b*math.Sin(theta)}
	}
	return pts
}

// mesh returns a 468-point landmark set centered on the test face with
// both eyes at the given aspect ratio.
func mesh(ratio float64) detection.LandmarkSet {
	pts := make([]eye.Point, detection.MeshPoints)
	for i := range pts {
		pts[i] = eye.Point{X: 0.45, Y: 0.45}
	}
	place := func(e eye.LandmarkEye, cx, cy float64) {
		const w = 0.06
		h := 2 * ratio * w
		pts[e.Outer] = eye.Point{X: cx - w/2, Y: cy}
		pts[e.Inner] = eye.Point{X: cx + w/2, Y: cy}
		pts[e.Upper1] = eye.Point{X: cx - w/6, Y: cy - h/2}
		pts[e.Lower1] = eye.Point{X: cx - w/6, Y: cy + h/2}
		pts[e.Upper2] = eye.Point{X: cx + w/6, Y: cy - h/2}
		pts[e.Lower2] = eye.Point{X: cx + w/6, Y: cy + h/2}
	}
	place(eye.LeftEyeLandmarks, 0.52, 0.4)
	place(eye.RightEyeLandmarks, 0.38, 0.4)
	return detection.LandmarkSet{Points: pts}
}

func TestAnalyzer_DefaultChannels(t *testing.T) {
	closedFace := testFace()
	closedFace.LeftEyeOpen = ptr(0.1)
	closedFace.RightEyeOpen = ptr(0.1)
	closedFace.LeftEyeContour = ellipse(0.52, 0.4, 0.03, 0.003)
	closedFace.RightEyeContour = ellipse(0.38, 0.4, 0.03, 0.003)

	tests := []struct {
		name      string
		landmarks []detection.LandmarkSet
		wantTally Tally
		drowsy    bool
	}{
		{
			name:      "detector only",
			wantTally: Tally{Available: 2, Closed: 2},
			drowsy:    true,
		},
		{
			name:      "closed mesh agrees",
			landmarks: []detection.LandmarkSet{mesh(0.1)},
			wantTally: Tally{Available: 4, Closed: 4},
			drowsy:    true,
		},
		{
			name:      "open mesh outvotes",
			landmarks: []detection.LandmarkSet{mesh(0.4)},
			wantTally: Tally{Available: 4, Closed: 2, Open: 2},
			drowsy:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(DefaultConfig())
			if err != nil {
				t.Fatalf("NewAnalyzer: %v", err)
			}
			var got DriverState
			for at := time.Duration(0); at <= 2*time.Second; at += tick {
				got = a.Evaluate(Observation{
					At:        at,
					Faces:     []detection.Face{closedFace},
					Landmarks: tt.landmarks,
				})
			}
			if tally := a.LastEvaluation().Tally; tally != tt.wantTally {
				t.Errorf("Expected tally %+v, got %+v", tt.wantTally, tally)
			}
			if got.IsDrowsy() != tt.drowsy {
				t.Errorf("Expected drowsy=%v, got %v", tt.drowsy, got)
			}
		})
	}
}

func TestAnalyzer_LandmarksWithoutFace(t *testing.T) {
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	got := a.Evaluate(Observation{Landmarks: []detection.LandmarkSet{mesh(0.4)}})
	if got != Attentive() {
		t.Errorf("Expected Attentive from mesh alone, got %v", got)
	}
	if tally := a.LastEvaluation().Tally; tally.Available != 2 || tally.Open != 2 {
		t.Errorf("Expected two open landmark votes, got %+v", tally)
	}

	cfg := DefaultConfig()
	cfg.Sources.Landmarks = false
	a, _ = NewAnalyzer(cfg)
	if got := a.Evaluate(Observation{Landmarks: []detection.LandmarkSet{mesh(0.4)}}); got != NoFace() {
		t.Errorf("Expected NoFace with landmarks disabled, got %v", got)
	}
}

func TestAnalyzer_FlatContourUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = Sources{Contour: true}
	a, err := NewAnalyzer(cfg)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	face := testFace()
	face.LeftEyeContour = []eye.Point{{X: 0.5, Y: 0.4}, {X: 0.51, Y: 0.4}, {X: 0.52, Y: 0.4}, {X: 0.53, Y: 0.4}, {X: 0.54, Y: 0.4}}
	face.RightEyeContour = face.LeftEyeContour

	for at := time.Duration(0); at <= 2*time.Second; at += tick {
		if got := a.Evaluate(Observation{At: at, Faces: []detection.Face{face}}); got != Attentive() {
			t.Fatalf("t=%v: flat contour must not read as closed, got %v", at, got)
		}
	}
	if a.LastEvaluation().Tally.Available != 0 {
		t.Errorf("Expected contour channel unavailable, got %+v", a.LastEvaluation().Tally)
	}
}
