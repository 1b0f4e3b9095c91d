// Package filter provides scalar signal conditioning used by the analyzers.
package filter

// EMA is an exponential moving average over a single scalar signal.
// The zero value is not usable; create one with NewEMA.
type EMA struct {
	alpha float64 // weight of the newest sample, in (0,1)
	value float64
	has   bool
}

// DefaultAlpha is the smoothing factor used when an invalid one is given.
const DefaultAlpha = 0.35

// NewEMA creates a filter with the given smoothing factor, which must lie
// in (0,1). Anything else falls back to DefaultAlpha.
func NewEMA(alpha float64) *EMA {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &EMA{alpha: alpha}
}

// Update feeds a sample and returns the smoothed value.
// The first sample after creation or Reset is returned unchanged.
func (e *EMA) Update(x float64) float64 {
	if !e.has {
		e.value = x
		e.has = true
		return x
	}
	e.value = e.alpha*x + (1-e.alpha)*e.value
	return e.value
}

// Reset discards all history.
func (e *EMA) Reset() {
	e.value = 0
	e.has = false
}

// Value returns the current smoothed value and whether one exists.
func (e *EMA) Value() (float64, bool) {
	return e.value, e.has
}

// Alpha returns the smoothing factor.
func (e *EMA) Alpha() float64 {
	return e.alpha
}

// Smoothed wraps an EMA for a signal that may be missing on some frames.
// A missing sample clears the history so stale values never bleed across gaps.
type Smoothed struct {
	ema *EMA
}

// NewSmoothed creates a gap-aware smoothed signal.
func NewSmoothed(alpha float64) *Smoothed {
	return &Smoothed{ema: NewEMA(alpha)}
}

// Feed updates the signal. When ok is false the history is reset and
// Feed reports no value.
func (s *Smoothed) Feed(x float64, ok bool) (float64, bool) {
	if !ok {
		s.ema.Reset()
		return 0, false
	}
	return s.ema.Update(x), true
}

// Reset clears the signal.
func (s *Smoothed) Reset() {
	s.ema.Reset()
}

// Value returns the last smoothed value, if any.
func (s *Smoothed) Value() (float64, bool) {
	return s.ema.Value()
}
