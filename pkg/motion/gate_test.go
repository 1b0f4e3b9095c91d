package motion

import (
	"testing"
	"time"
)

func inVehicle(at time.Duration) Sample {
	return Sample{At: at, Activity: InVehicle, Confidence: 0.9}
}

func stationary(at time.Duration) Sample {
	return Sample{At: at, Activity: Stationary, Confidence: 0.9}
}

func TestParseActivity(t *testing.T) {
	tests := map[string]Activity{
		"in_vehicle":  InVehicle,
		" Walking ":   Walking,
		"on_bicycle":  OnBicycle,
		"teleporting": Unknown,
	}
	for in, want := range tests {
		if got := ParseActivity(in); got != want {
			t.Errorf("ParseActivity(%q) = %v, want %v", in, got, want)
		}
	}
	if InVehicle.String() != "in_vehicle" {
		t.Errorf("Unexpected name %q", InVehicle.String())
	}
}

func TestGate_Opens(t *testing.T) {
	g := NewGate(DefaultConfig())
	if g.Driving() {
		t.Fatal("Gate should start closed")
	}

	for at := time.Duration(0); at < 3*time.Second; at += time.Second {
		if driving, _ := g.Update(inVehicle(at)); driving {
			t.Fatalf("Gate opened early at %v", at)
		}
	}
	driving, changed := g.Update(inVehicle(3 * time.Second))
	if !driving || !changed {
		t.Errorf("Expected gate to open at 3s, got driving=%v changed=%v", driving, changed)
	}
}

func TestGate_SpeedAlone(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Update(Sample{At: 0, SpeedMps: 10, HasSpeed: true})
	if driving, _ := g.Update(Sample{At: 3 * time.Second, SpeedMps: 10, HasSpeed: true}); !driving {
		t.Error("Expected speed to open the gate")
	}
}

func TestGate_Closes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssumeDriving = true
	g := NewGate(cfg)

	g.Update(stationary(0))
	if driving, _ := g.Update(stationary(29 * time.Second)); !driving {
		t.Fatal("Gate closed before 30s")
	}
	if driving, changed := g.Update(stationary(30 * time.Second)); driving || !changed {
		t.Errorf("Expected gate to close at 30s, got driving=%v changed=%v", driving, changed)
	}
}

func TestGate_MovingInterruptsClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AssumeDriving = true
	g := NewGate(cfg)

	g.Update(stationary(0))
	g.Update(inVehicle(20 * time.Second))
	g.Update(stationary(25 * time.Second))
	if driving, _ := g.Update(stationary(40 * time.Second)); !driving {
		t.Error("Close timer should restart after a moving sample")
	}
	if driving, _ := g.Update(stationary(55 * time.Second)); driving {
		t.Error("Expected gate closed 30s after the restart")
	}
}

func TestGate_UnknownIsNeutral(t *testing.T) {
	g := NewGate(DefaultConfig())

	g.Update(inVehicle(0))
	g.Update(Sample{At: time.Second, Activity: Unknown})
	g.Update(Sample{At: 2 * time.Second, Activity: InVehicle, Confidence: 0.3})
	if _, since, ok := g.Pending(); !ok || since != 0 {
		t.Fatalf("Expected pending transition since 0, got ok=%v since=%v", ok, since)
	}
	if driving, _ := g.Update(inVehicle(3 * time.Second)); !driving {
		t.Error("Unknown samples should not break the pending transition")
	}
}

func TestGate_LowConfidenceWithSlowSpeed(t *testing.T) {
	g := NewGate(DefaultConfig())
	g.Update(inVehicle(0))
	g.Update(Sample{At: time.Second, Activity: InVehicle, Confidence: 0.3, SpeedMps: 0.5, HasSpeed: true})
	if _, _, ok := g.Pending(); ok {
		t.Error("Slow low-confidence sample should cancel the pending open")
	}
}
