package drowsiness

import "time"

// Debouncer promotes sustained closure to Drowsy. Times are offsets on a
// monotonic clock; callers must not go backwards.
type Debouncer struct {
	threshold time.Duration
	since     time.Duration
	closing   bool
}

// NewDebouncer creates a debouncer with the given closure threshold.
func NewDebouncer(threshold time.Duration) *Debouncer {
	return &Debouncer{threshold: threshold}
}

// Step feeds one frame's aggregated decision observed at now.
func (d *Debouncer) Step(closed bool, now time.Duration) DriverState {
	if !closed {
		d.Reset()
		return Attentive()
	}
	if !d.closing || now < d.since {
		d.closing = true
		d.since = now
	}
	if elapsed := now - d.since; elapsed >= d.threshold {
		return Drowsy(elapsed)
	}
	return Attentive()
}

// ClosedSince returns when the current closure run started.
func (d *Debouncer) ClosedSince() (time.Duration, bool) {
	return d.since, d.closing
}

// Reset discards any closure run.
func (d *Debouncer) Reset() {
	d.closing = false
	d.since = 0
}
