package eye

import "math"

// Contour ratio defaults.
const (
	DefaultMinContourPoints   = 4
	DefaultMinVerticalSamples = 3
	DefaultTrimRatio          = 0.2
)

// ContourParams tunes ContourRatio.
type ContourParams struct {
	MinPoints          int     // Minimum contour points
	MinVerticalSamples int     // Minimum matched upper/lower pairs
	TrimRatio          float64 // Fraction trimmed from each end of the vertical gaps
}

// DefaultContourParams returns the production parameters.
func DefaultContourParams() ContourParams {
	return ContourParams{
		MinPoints:          DefaultMinContourPoints,
		MinVerticalSamples: DefaultMinVerticalSamples,
		TrimRatio:          DefaultTrimRatio,
	}
}

// ContourRatio estimates the aspect ratio of an eye from the points of its
// outline. Points above the mean height form the upper lid; each is paired
// with the horizontally nearest lower-lid point. The vertical extent is a
// trimmed mean of the paired gaps, the horizontal extent is the x span.
//
// Returns false when the contour cannot support an estimate: too few points,
// too few pairs, or zero width.
func ContourRatio(points []Point, p ContourParams) (float64, bool) {
	if len(points) < p.MinPoints || len(points) == 0 {
		return 0, false
	}

	meanY := 0.0
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, pt := range points {
		meanY += pt.Y
		minX = math.Min(minX, pt.X)
		maxX = math.Max(maxX, pt.X)
	}
	meanY /= float64(len(points))

	var upper, lower []Point
	for _, pt := range points {
		if pt.Y < meanY {
			upper = append(upper, pt)
		} else {
			lower = append(lower, pt)
		}
	}
	if len(upper) == 0 || len(lower) == 0 {
		return 0, false
	}

	gaps := make([]float64, 0, len(upper))
	for _, u := range upper {
		best := lower[0]
		bestDX := math.Abs(u.X - best.X)
		for _, l := range lower[1:] {
			if dx := math.Abs(u.X - l.X); dx < bestDX {
				best, bestDX = l, dx
			}
		}
		gaps = append(gaps, math.Abs(best.Y-u.Y))
	}
	if len(gaps) < p.MinVerticalSamples {
		return 0, false
	}

	width := maxX - minX
	if width <= 0 {
		return 0, false
	}

	height, ok := TrimmedMean(gaps, p.TrimRatio)
	if !ok {
		return 0, false
	}
	return math.Max(height/width, 0), true
}
