package drowsiness

import (
	"testing"
	"time"
)

func TestDebouncer_Threshold(t *testing.T) {
	const start = 5 * time.Second
	d := NewDebouncer(1500 * time.Millisecond)

	for elapsed := time.Duration(0); elapsed <= 3*time.Second; elapsed += 33 * time.Millisecond {
		got := d.Step(true, start+elapsed)
		if elapsed < 1500*time.Millisecond {
			if got != Attentive() {
				t.Fatalf("elapsed %v: expected Attentive, got %v", elapsed, got)
			}
			continue
		}
		if got != Drowsy(elapsed) {
			t.Fatalf("elapsed %v: expected Drowsy(%v), got %v", elapsed, elapsed, got)
		}
	}
}

func TestDebouncer_ExactThreshold(t *testing.T) {
	d := NewDebouncer(1500 * time.Millisecond)
	d.Step(true, 0)
	if got := d.Step(true, 1499*time.Millisecond); got != Attentive() {
		t.Errorf("Expected Attentive just below threshold, got %v", got)
	}
	if got := d.Step(true, 1500*time.Millisecond); got != Drowsy(1500*time.Millisecond) {
		t.Errorf("Expected Drowsy(1500ms) at threshold, got %v", got)
	}
}

func TestDebouncer_OpenResets(t *testing.T) {
	d := NewDebouncer(1500 * time.Millisecond)
	for at := time.Duration(0); at < 1400*time.Millisecond; at += 100 * time.Millisecond {
		d.Step(true, at)
	}
	if got := d.Step(false, 1400*time.Millisecond); got != Attentive() {
		t.Errorf("Expected Attentive on open frame, got %v", got)
	}
	if _, closing := d.ClosedSince(); closing {
		t.Error("Expected timer reset after open frame")
	}

	// A new run needs the full threshold again
	d.Step(true, 1500*time.Millisecond)
	if got := d.Step(true, 2900*time.Millisecond); got != Attentive() {
		t.Errorf("Expected Attentive 1400ms into new run, got %v", got)
	}
	if got := d.Step(true, 3000*time.Millisecond); !got.IsDrowsy() {
		t.Errorf("Expected Drowsy 1500ms into new run, got %v", got)
	}
}

func TestDebouncer_ClockGoesBack(t *testing.T) {
	d := NewDebouncer(time.Second)
	d.Step(true, 10*time.Second)
	if got := d.Step(true, 5*time.Second); got != Attentive() {
		t.Errorf("Expected restart on backwards clock, got %v", got)
	}
	if since, _ := d.ClosedSince(); since != 5*time.Second {
		t.Errorf("Expected run to restart at 5s, got %v", since)
	}
}
