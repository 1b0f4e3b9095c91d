package drowsiness

import (
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
)

// Input is the per-frame data handed to providers: the chosen face and the
// landmark set matched to it. Either may be nil.
type Input struct {
	Face      *detection.Face
	Landmarks *detection.LandmarkSet

	// Pixel scale for normalized coordinates. Geometric ratios are
	// computed in pixel space so that frame aspect does not skew them.
	Width, Height float64
}

func (in Input) scale(points []eye.Point) []eye.Point {
	sx, sy := in.Width, in.Height
	if sx <= 0 || sy <= 0 {
		sx, sy = 1, 1
	}
	out := make([]eye.Point, len(points))
	for i, p := range points {
		out[i] = p.Scale(sx, sy)
	}
	return out
}

// Provider extracts one raw (unsmoothed) eye signal from a frame.
type Provider interface {
	Read(in Input) Reading
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(in Input) Reading

// Read calls f.
func (f ProviderFunc) Read(in Input) Reading { return f(in) }

// ProbabilityProvider reads the detector's per-eye open probabilities.
type ProbabilityProvider struct{}

func (ProbabilityProvider) Read(in Input) Reading {
	if in.Face == nil {
		return Unavailable()
	}
	l, lok := probability(in.Face.LeftEyeOpen)
	r, rok := probability(in.Face.RightEyeOpen)
	return Eyes(l, lok, r, rok)
}

// ContourProvider computes aspect ratios from the detector's eye outlines.
type ContourProvider struct {
	Params eye.ContourParams
}

func (p ContourProvider) Read(in Input) Reading {
	if in.Face == nil {
		return Unavailable()
	}
	l, lok := eye.ContourRatio(in.scale(in.Face.LeftEyeContour), p.Params)
	r, rok := eye.ContourRatio(in.scale(in.Face.RightEyeContour), p.Params)
	return Eyes(l, lok, r, rok)
}

// LandmarkRatioProvider computes aspect ratios from the face mesh.
type LandmarkRatioProvider struct{}

func (LandmarkRatioProvider) Read(in Input) Reading {
	return landmarkRatios(in)
}

// LandmarkProbabilityProvider maps mesh aspect ratios to open
// probabilities between ClosedRef and OpenRef.
type LandmarkProbabilityProvider struct {
	ClosedRef, OpenRef float64
}

func (p LandmarkProbabilityProvider) Read(in Input) Reading {
	ratios := landmarkRatios(in)
	l, lok := ratios.Left()
	r, rok := ratios.Right()
	return Eyes(
		eye.OpenProbability(l, p.ClosedRef, p.OpenRef), lok,
		eye.OpenProbability(r, p.ClosedRef, p.OpenRef), rok,
	)
}

func landmarkRatios(in Input) Reading {
	if in.Landmarks == nil {
		return Unavailable()
	}
	pts := in.scale(in.Landmarks.Points)
	l, lok := eye.LandmarkRatio(pts, eye.LeftEyeLandmarks)
	r, rok := eye.LandmarkRatio(pts, eye.RightEyeLandmarks)
	return Eyes(l, lok, r, rok)
}

// probability accepts a detector open probability only within [0,1].
func probability(p *float64) (float64, bool) {
	if p == nil || *p < 0 || *p > 1 {
		return 0, false
	}
	return *p, true
}
