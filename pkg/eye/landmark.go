package eye

// minHorizontal guards the landmark ratio against a collapsed eye width.
const minHorizontal = 1e-6

// LandmarkEye names the six mesh indices used for one eye.
type LandmarkEye struct {
	Outer, Inner   int
	Upper1, Lower1 int
	Upper2, Lower2 int
}

// Face mesh (468 point) indices for each eye.
var (
	LeftEyeLandmarks  = LandmarkEye{Outer: 33, Inner: 133, Upper1: 160, Lower1: 144, Upper2: 158, Lower2: 153}
	RightEyeLandmarks = LandmarkEye{Outer: 263, Inner: 362, Upper1: 385, Lower1: 380, Upper2: 387, Lower2: 373}
)

// MaxIndex returns the largest index referenced by e.
func (e LandmarkEye) MaxIndex() int {
	m := e.Outer
	for _, i := range []int{e.Inner, e.Upper1, e.Lower1, e.Upper2, e.Lower2} {
		if i > m {
			m = i
		}
	}
	return m
}

// LandmarkRatio computes the eye aspect ratio from fixed mesh landmarks:
// the mean of the two lid distances over twice the corner distance, clamped
// to [0,1].
// A collapsed eye width yields 0. Returns false if the mesh is too short
// to contain the requested indices.
func LandmarkRatio(points []Point, e LandmarkEye) (float64, bool) {
	if e.MaxIndex() >= len(points) {
		return 0, false
	}

	horizontal := Dist(points[e.Outer], points[e.Inner])
	if horizontal <= minHorizontal {
		return 0, true
	}

	v1 := Dist(points[e.Upper1], points[e.Lower1])
	v2 := Dist(points[e.Upper2], points[e.Lower2])
	vertical := (v1 + v2) / 2
	return clamp(vertical/(2*horizontal), 0, 1), true
}
