package filter

import "time"

// DefaultFPSAlpha is the smoothing factor used for frame-rate telemetry.
const DefaultFPSAlpha = 0.2

// FPSMeter estimates a smoothed frame rate from frame timestamps.
type FPSMeter struct {
	ema  *EMA
	last time.Duration
	has  bool
}

// NewFPSMeter creates a meter with DefaultFPSAlpha.
func NewFPSMeter() *FPSMeter {
	return &FPSMeter{ema: NewEMA(DefaultFPSAlpha)}
}

// Tick records a frame at the given monotonic timestamp and returns the
// smoothed rate. Non-increasing timestamps are ignored.
func (m *FPSMeter) Tick(at time.Duration) float64 {
	if !m.has {
		m.last = at
		m.has = true
		v, _ := m.ema.Value()
		return v
	}
	dt := at - m.last
	if dt <= 0 {
		v, _ := m.ema.Value()
		return v
	}
	m.last = at
	return m.ema.Update(float64(time.Second) / float64(dt))
}

// FPS returns the current smoothed rate (0 before two frames were seen).
func (m *FPSMeter) FPS() float64 {
	v, _ := m.ema.Value()
	return v
}

// Reset clears the meter.
func (m *FPSMeter) Reset() {
	m.ema.Reset()
	m.has = false
	m.last = 0
}
