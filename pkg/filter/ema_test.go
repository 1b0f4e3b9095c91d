package filter

import (
	"math"
	"testing"
	"time"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestEMA_FirstUpdatePassesThrough(t *testing.T) {
	e := NewEMA(0.35)
	if got := e.Update(0.8); got != 0.8 {
		t.Errorf("first update: got %v, want 0.8", got)
	}
}

func TestEMA_Update(t *testing.T) {
	e := NewEMA(0.35)
	e.Update(1.0)
	got := e.Update(0.0)
	if !floatEquals(got, 0.65) {
		t.Errorf("second update: got %v, want 0.65", got)
	}
	got = e.Update(1.0)
	want := 0.35*1.0 + 0.65*0.65
	if !floatEquals(got, want) {
		t.Errorf("third update: got %v, want %v", got, want)
	}
}

func TestEMA_ResetThenUpdateReturnsInput(t *testing.T) {
	histories := [][]float64{
		{},
		{0.1},
		{0.9, 0.2, 0.7},
		{-3, 100, 42},
	}
	for _, h := range histories {
		e := NewEMA(0.35)
		for _, x := range h {
			e.Update(x)
		}
		e.Reset()
		if got := e.Update(0.123); got != 0.123 {
			t.Errorf("history %v: got %v after reset, want 0.123", h, got)
		}
	}
}

func TestEMA_NeverOvershoots(t *testing.T) {
	pairs := []struct{ prev, x float64 }{
		{0, 1}, {1, 0}, {0.3, 0.31}, {-2, 5}, {0.5, 0.5},
	}
	for _, alpha := range []float64{0.01, 0.2, 0.35, 0.99} {
		for _, p := range pairs {
			e := NewEMA(alpha)
			e.Update(p.prev)
			got := e.Update(p.x)
			lo, hi := math.Min(p.prev, p.x), math.Max(p.prev, p.x)
			if got < lo-floatTolerance || got > hi+floatTolerance {
				t.Errorf("alpha=%v prev=%v x=%v: got %v outside [%v,%v]", alpha, p.prev, p.x, got, lo, hi)
			}
		}
	}
}

func TestNewEMA_InvalidAlpha(t *testing.T) {
	for _, alpha := range []float64{0, -1, 1, 1.5} {
		e := NewEMA(alpha)
		if e.Alpha() != DefaultAlpha {
			t.Errorf("alpha %v: got %v, want %v", alpha, e.Alpha(), DefaultAlpha)
		}
	}
}

func TestSmoothed_GapResets(t *testing.T) {
	s := NewSmoothed(0.35)
	s.Feed(1.0, true)
	s.Feed(1.0, true)

	if _, ok := s.Feed(0, false); ok {
		t.Fatal("missing sample should report no value")
	}
	if _, ok := s.Value(); ok {
		t.Fatal("value should be cleared after a gap")
	}

	got, ok := s.Feed(0.2, true)
	if !ok || got != 0.2 {
		t.Errorf("after gap: got (%v, %v), want (0.2, true)", got, ok)
	}
}

func TestFPSMeter(t *testing.T) {
	m := NewFPSMeter()
	if fps := m.Tick(0); fps != 0 {
		t.Errorf("first tick: got %v, want 0", fps)
	}
	fps := m.Tick(100 * time.Millisecond)
	if !floatEquals(fps, 10) {
		t.Errorf("second tick: got %v, want 10", fps)
	}
	fps = m.Tick(150 * time.Millisecond)
	if !floatEquals(fps, 0.2*20+0.8*10) {
		t.Errorf("third tick: got %v, want %v", fps, 0.2*20+0.8*10)
	}
	if got := m.Tick(150 * time.Millisecond); !floatEquals(got, fps) {
		t.Errorf("duplicate timestamp should not change fps: got %v, want %v", got, fps)
	}
}
