// Package opencv implements the detection interfaces with GoCV DNN models
// and Haar cascades.
package opencv

import (
	"image"
	"sync"

	"github.com/teslashibe/go-vigil/pkg/debug"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
	"gocv.io/x/gocv"
)

// YuNet output columns: box (4), five keypoints (10), score (1).
const (
	yunetKeypoints = 5
	yunetScoreCol  = 14
)

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the JPEG image
func (d *YuNetDetector) Detect(jpeg []byte) ([]detection.Detection, error) {
	img, err := decodeJPEG(jpeg)
	defer img.Close()
	if err != nil {
		return nil, detection.WrapError("yunet", err)
	}
	return d.detectMat(img), nil
}

// detectMat runs the detector on a decoded frame.
func (d *YuNetDetector) detectMat(img gocv.Mat) []detection.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(img, &faces)

	var detections []detection.Detection
	for r := 0; r < faces.Rows(); r++ {
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))

		kps := make([]eye.Point, yunetKeypoints)
		for k := range kps {
			kps[k] = eye.Point{
				X: float64(faces.GetFloatAt(r, 4+2*k)) / imgW,
				Y: float64(faces.GetFloatAt(r, 5+2*k)) / imgH,
			}
		}

		detections = append(detections, detection.Detection{
			X:          x / imgW,
			Y:          y / imgH,
			W:          w / imgW,
			H:          h / imgH,
			Confidence: float64(faces.GetFloatAt(r, yunetScoreCol)),
			Keypoints:  kps,
		})
	}

	if len(detections) > 0 {
		debug.Tracef("yunet found %d face(s)", len(detections))
	}
	return detections
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
