package drowsiness

// Reading is one channel's (left, right) value for a frame. Each eye may be
// missing independently.
type Reading struct {
	left, right float64
	lok, rok    bool
}

// Available wraps a pair of values.
func Available(left, right float64) Reading {
	return Reading{left: left, right: right, lok: true, rok: true}
}

// Eyes builds a reading where either eye may be missing.
func Eyes(left float64, lok bool, right float64, rok bool) Reading {
	r := Reading{lok: lok, rok: rok}
	if lok {
		r.left = left
	}
	if rok {
		r.right = right
	}
	return r
}

// Unavailable is a reading for a frame where the channel produced nothing.
func Unavailable() Reading {
	return Reading{}
}

// Left returns the left eye value and whether it is present.
func (r Reading) Left() (float64, bool) {
	return r.left, r.lok
}

// Right returns the right eye value and whether it is present.
func (r Reading) Right() (float64, bool) {
	return r.right, r.rok
}

// Values returns the pair and whether both eyes are present.
func (r Reading) Values() (left, right float64, ok bool) {
	return r.left, r.right, r.IsAvailable()
}

// IsAvailable reports whether the reading holds values for both eyes.
func (r Reading) IsAvailable() bool {
	return r.lok && r.rok
}
