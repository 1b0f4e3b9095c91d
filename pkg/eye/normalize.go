package eye

// Reference ratios for mapping a landmark ratio to an open probability.
const (
	DefaultClosedRatio = 0.20
	DefaultOpenRatio   = 0.30
)

// OpenProbability maps an aspect ratio onto [0,1] with a smoothstep between
// closedRef (0) and openRef (1).
func OpenProbability(ratio, closedRef, openRef float64) float64 {
	span := openRef - closedRef
	if span <= 0 {
		if ratio >= openRef {
			return 1
		}
		return 0
	}
	t := clamp((ratio-closedRef)/span, 0, 1)
	return t * t * (3 - 2*t)
}
