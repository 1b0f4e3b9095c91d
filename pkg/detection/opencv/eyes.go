package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
	"gocv.io/x/gocv"
)

// YuNet keypoint order puts the subject's right eye first.
const (
	keypointRightEye = 0
	keypointLeftEye  = 1
)

// EyeConfig configures per-eye measurement on top of face detection.
type EyeConfig struct {
	Face Config

	// CascadePath is an OpenCV Haar cascade for open eyes
	// (haarcascade_eye.xml). Empty disables open probabilities.
	CascadePath string

	// ROIScale is the side of the square eye region as a fraction of the
	// face width.
	ROIScale float64

	// MinContourArea rejects specks, as a fraction of the eye region area.
	MinContourArea float64

	// Probabilities reported when the cascade does or does not find an eye.
	OpenProbability   float64
	ClosedProbability float64
}

// DefaultEyeConfig returns production defaults.
func DefaultEyeConfig() EyeConfig {
	return EyeConfig{
		Face:              DefaultConfig(),
		CascadePath:       "models/haarcascade_eye.xml",
		ROIScale:          0.28,
		MinContourArea:    0.01,
		OpenProbability:   0.9,
		ClosedProbability: 0.1,
	}
}

// FaceEyeDetector detects faces with YuNet and measures each eye: the outline
// of the dark eye region (Otsu threshold + largest external contour) and an
// open probability from a Haar eye cascade.
type FaceEyeDetector struct {
	faces   *YuNetDetector
	cascade *gocv.CascadeClassifier
	config  EyeConfig
	mu      sync.Mutex // Protects the cascade
}

// NewFaceEyeDetector loads the face model and, if configured, the eye cascade.
func NewFaceEyeDetector(cfg EyeConfig) (*FaceEyeDetector, error) {
	faces, err := NewYuNet(cfg.Face)
	if err != nil {
		return nil, err
	}

	d := &FaceEyeDetector{faces: faces, config: cfg}
	if cfg.CascadePath != "" {
		if err := requireFile(cfg.CascadePath); err != nil {
			faces.Close()
			return nil, err
		}
		cascade := gocv.NewCascadeClassifier()
		if !cascade.Load(cfg.CascadePath) {
			cascade.Close()
			faces.Close()
			return nil, fmt.Errorf("%w: %s", detection.ErrModelLoad, cfg.CascadePath)
		}
		d.cascade = &cascade
	}
	return d, nil
}

// DetectFaces finds faces and measures their eyes.
func (d *FaceEyeDetector) DetectFaces(jpeg []byte) ([]detection.Face, error) {
	img, err := decodeJPEG(jpeg)
	defer img.Close()
	if err != nil {
		return nil, detection.WrapError("yunet-eyes", err)
	}

	dets := d.faces.detectMat(img)
	faces := make([]detection.Face, 0, len(dets))
	for _, det := range dets {
		face := detection.Face{Detection: det}
		if len(det.Keypoints) > keypointLeftEye {
			face.RightEyeContour, face.RightEyeOpen = d.measureEye(img, det, det.Keypoints[keypointRightEye])
			face.LeftEyeContour, face.LeftEyeOpen = d.measureEye(img, det, det.Keypoints[keypointLeftEye])
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// measureEye extracts the outline and open probability for the eye centered
// at center (normalized).
func (d *FaceEyeDetector) measureEye(img gocv.Mat, face detection.Detection, center eye.Point) ([]eye.Point, *float64) {
	imgW, imgH := img.Cols(), img.Rows()
	side := face.W * float64(imgW) * d.config.ROIScale
	rect := squareAround(center.X*float64(imgW), center.Y*float64(imgH), side, imgW, imgH)
	if rect.Dx() < 4 || rect.Dy() < 4 {
		return nil, nil
	}

	roi := img.Region(rect)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	contour := d.outline(gray, rect, imgW, imgH)
	return contour, d.openProbability(gray)
}

// outline returns the largest dark blob outline in normalized frame coordinates.
func (d *FaceEyeDetector) outline(gray gocv.Mat, rect image.Rectangle, imgW, imgH int) []eye.Point {
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	minArea := d.config.MinContourArea * float64(rect.Dx()*rect.Dy())
	best, bestArea := -1, minArea
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return nil
	}

	return toFramePoints(contours.At(best).ToPoints(), rect.Min, imgW, imgH)
}

// openProbability runs the eye cascade over the region. Nil when disabled.
func (d *FaceEyeDetector) openProbability(gray gocv.Mat) *float64 {
	if d.cascade == nil {
		return nil
	}
	d.mu.Lock()
	found := d.cascade.DetectMultiScale(gray)
	d.mu.Unlock()

	p := d.config.ClosedProbability
	if len(found) > 0 {
		p = d.config.OpenProbability
	}
	return &p
}

// Close releases the detector resources
func (d *FaceEyeDetector) Close() error {
	d.mu.Lock()
	if d.cascade != nil {
		d.cascade.Close()
		d.cascade = nil
	}
	d.mu.Unlock()
	return d.faces.Close()
}

// toFramePoints maps region-local pixel points to normalized frame points.
func toFramePoints(pts []image.Point, origin image.Point, imgW, imgH int) []eye.Point {
	out := make([]eye.Point, len(pts))
	for i, p := range pts {
		out[i] = eye.Point{
			X: float64(p.X+origin.X) / float64(imgW),
			Y: float64(p.Y+origin.Y) / float64(imgH),
		}
	}
	return out
}
