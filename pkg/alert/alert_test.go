package alert

import (
	"testing"
	"time"

	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/motion"
)

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func kinds(alerts []Alert) []Kind {
	out := make([]Kind, len(alerts))
	for i, a := range alerts {
		out[i] = a.Kind
	}
	return out
}

func TestPolicy_DrowsyCooldown(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	drowsy := drowsiness.Drowsy(1500 * time.Millisecond)

	if got := p.Evaluate(t0, drowsy, hazard.Clear(), true); len(got) != 1 || got[0].ClosedMs != 1500 {
		t.Fatalf("Expected one drowsy alert, got %+v", got)
	}
	if got := p.Evaluate(t0.Add(4*time.Second), drowsiness.Drowsy(5500*time.Millisecond), hazard.Clear(), true); len(got) != 0 {
		t.Errorf("Expected cooldown to suppress, got %+v", got)
	}
	if got := p.Evaluate(t0.Add(5*time.Second), drowsiness.Drowsy(6500*time.Millisecond), hazard.Clear(), true); len(got) != 1 {
		t.Errorf("Expected alert after cooldown, got %+v", got)
	}
}

func TestPolicy_RequiresDriving(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	hz := hazard.State{Kind: hazard.KindPedestrian, Class: "person", Confidence: 0.8}
	if got := p.Evaluate(t0, drowsiness.Drowsy(2*time.Second), hz, false); len(got) != 0 {
		t.Errorf("Expected no alerts while parked, got %+v", got)
	}
}

func TestPolicy_HazardCooldownPerKind(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	car := hazard.State{Kind: hazard.KindVehicle, Class: "car", Confidence: 0.9}
	dog := hazard.State{Kind: hazard.KindAnimal, Class: "dog", Confidence: 0.7}

	if got := p.Evaluate(t0, drowsiness.Attentive(), car, true); len(got) != 1 || got[0].Hazard != hazard.KindVehicle {
		t.Fatalf("Expected vehicle alert, got %+v", got)
	} else if want := "vehicle ahead (car 90%)"; got[0].Detail != want {
		t.Errorf("Detail = %q, want %q", got[0].Detail, want)
	}
	if got := p.Evaluate(t0.Add(time.Second), drowsiness.Attentive(), dog, true); len(got) != 1 {
		t.Errorf("Other kinds have their own cooldown, got %+v", got)
	}
	if got := p.Evaluate(t0.Add(2*time.Second), drowsiness.Attentive(), car, true); len(got) != 0 {
		t.Errorf("Expected vehicle cooldown, got %+v", got)
	}
	if got := p.Evaluate(t0.Add(3*time.Second), drowsiness.Attentive(), car, true); len(got) != 1 {
		t.Errorf("Expected vehicle alert after cooldown, got %+v", got)
	}
}

func TestPolicy_WarningOncePerTransition(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	fail := drowsiness.Error("model crashed")

	if got := kinds(p.Evaluate(t0, fail, hazard.Clear(), false)); len(got) != 1 || got[0] != KindWarning {
		t.Fatalf("Expected warning, got %v", got)
	}
	if got := p.Evaluate(t0.Add(time.Second), fail, hazard.Clear(), false); len(got) != 0 {
		t.Errorf("Expected no repeat warning, got %+v", got)
	}
	p.Evaluate(t0.Add(2*time.Second), drowsiness.Attentive(), hazard.Clear(), false)
	if got := p.Evaluate(t0.Add(3*time.Second), fail, hazard.Clear(), false); len(got) != 1 {
		t.Errorf("Expected warning on new error transition, got %+v", got)
	}
}

func TestMonitor(t *testing.T) {
	var sunk []Alert
	gate := motion.NewGate(motion.Config{AssumeDriving: true})
	m := NewMonitor("cabin", DefaultConfig(), gate, func(a Alert) { sunk = append(sunk, a) })
	clock := t0
	m.now = func() time.Time { return clock }

	m.ObserveDriver(drowsiness.Attentive())
	got := m.ObserveHazard(hazard.State{Kind: hazard.KindPedestrian, Class: "person", Confidence: 0.7})
	if len(got) != 1 || got[0].Source != "cabin" || got[0].ID == "" {
		t.Fatalf("Expected one tagged hazard alert, got %+v", got)
	}

	clock = clock.Add(time.Second)
	got = m.ObserveDriver(drowsiness.Drowsy(2 * time.Second))
	if len(got) != 1 || got[0].Kind != KindDrowsy {
		t.Errorf("Expected drowsy alert with hazard in cooldown, got %v", kinds(got))
	}
	if len(sunk) != 2 {
		t.Errorf("Expected sink to receive 2 alerts, got %d", len(sunk))
	}
	if sunk[0].ID == sunk[1].ID {
		t.Error("Alert ids must be unique")
	}
}

func TestMonitor_NilGate(t *testing.T) {
	m := NewMonitor("cabin", DefaultConfig(), nil, nil)
	if got := m.ObserveDriver(drowsiness.Drowsy(2 * time.Second)); len(got) != 1 {
		t.Errorf("Expected nil gate to count as driving, got %+v", got)
	}
}
