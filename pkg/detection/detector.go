// Package detection holds the face, landmark and road-object data model and
// the detector interfaces. OpenCV-backed detectors live in package opencv.
package detection

import "github.com/teslashibe/go-vigil/pkg/eye"

// Detection is a bounding box in normalized frame coordinates.
type Detection struct {
	X          float64 `json:"x"`          // Left edge (0-1)
	Y          float64 `json:"y"`          // Top edge (0-1)
	W          float64 `json:"w"`          // Width (0-1)
	H          float64 `json:"h"`          // Height (0-1)
	Confidence float64 `json:"confidence"` // Detection confidence (0-1)

	// Keypoints are optional detector landmarks (YuNet: right eye, left eye,
	// nose tip, right mouth corner, left mouth corner).
	Keypoints []eye.Point `json:"keypoints,omitempty"`
}

// Center returns the center point of the detection
func (d Detection) Center() (x, y float64) {
	return d.X + d.W/2, d.Y + d.H/2
}

// Area returns the area of the bounding box
func (d Detection) Area() float64 {
	return d.W * d.H
}

// Face is one face reported by the primary detector together with its
// per-eye measurements. Left and right refer to the subject's eyes.
type Face struct {
	Detection

	// Open probabilities in [0,1]; nil when the detector could not classify.
	LeftEyeOpen  *float64 `json:"left_eye_open,omitempty"`
	RightEyeOpen *float64 `json:"right_eye_open,omitempty"`

	// Ordered outline points in normalized frame coordinates.
	LeftEyeContour  []eye.Point `json:"left_eye_contour,omitempty"`
	RightEyeContour []eye.Point `json:"right_eye_contour,omitempty"`
}

// MeshPoints is the number of points in a face mesh.
const MeshPoints = 468

// LandmarkSet is a dense face mesh from the secondary landmark detector,
// in normalized frame coordinates.
type LandmarkSet struct {
	Points []eye.Point `json:"points"`
}

// Center returns the mean of the mesh points.
func (l LandmarkSet) Center() (x, y float64, ok bool) {
	if len(l.Points) == 0 {
		return 0, 0, false
	}
	for _, p := range l.Points {
		x += p.X
		y += p.Y
	}
	n := float64(len(l.Points))
	return x / n, y / n, true
}

// Detector is the interface for bounding-box face detection backends
type Detector interface {
	// Detect finds faces in the image and returns their positions
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources
	Close() error
}

// FaceDetector finds faces and measures their eyes.
type FaceDetector interface {
	DetectFaces(jpeg []byte) ([]Face, error)
	Close() error
}

// LandmarkDetector produces a face mesh for each supplied face.
type LandmarkDetector interface {
	DetectLandmarks(jpeg []byte, faces []Face) ([]LandmarkSet, error)
	Close() error
}

// ObjectDetector finds labelled objects, used for the road camera.
type ObjectDetector interface {
	Detect(jpeg []byte) ([]ObjectDetection, error)
	Close() error
}

// score ranks a detection: confidence * 0.7 + relative area * 0.3
func score(d Detection, maxArea float64) float64 {
	rel := 0.0
	if maxArea > 0 {
		rel = d.Area() / maxArea
	}
	return d.Confidence*0.7 + rel*0.3
}

// SelectBest picks the best detection from multiple candidates.
// Detections with zero area are ignored.
func SelectBest(dets []Detection) *Detection {
	maxArea := 0.0
	for _, d := range dets {
		if d.Area() > maxArea {
			maxArea = d.Area()
		}
	}

	bestScore := -1.0
	var best *Detection
	for i := range dets {
		if dets[i].Area() <= 0 {
			continue
		}
		if s := score(dets[i], maxArea); s > bestScore {
			bestScore = s
			best = &dets[i]
		}
	}
	return best
}

// SelectBestFace is SelectBest over faces.
func SelectBestFace(faces []Face) *Face {
	maxArea := 0.0
	for _, f := range faces {
		if f.Area() > maxArea {
			maxArea = f.Area()
		}
	}

	bestScore := -1.0
	var best *Face
	for i := range faces {
		if faces[i].Area() <= 0 {
			continue
		}
		if s := score(faces[i].Detection, maxArea); s > bestScore {
			bestScore = s
			best = &faces[i]
		}
	}
	return best
}

// NearestLandmarks returns the mesh whose center is closest to the face
// center, or nil if there is none.
func NearestLandmarks(face Face, sets []LandmarkSet) *LandmarkSet {
	fx, fy := face.Center()
	bestDist := -1.0
	var best *LandmarkSet
	for i := range sets {
		cx, cy, ok := sets[i].Center()
		if !ok {
			continue
		}
		d := eye.Dist(eye.Point{X: fx, Y: fy}, eye.Point{X: cx, Y: cy})
		if best == nil || d < bestDist {
			best, bestDist = &sets[i], d
		}
	}
	return best
}
