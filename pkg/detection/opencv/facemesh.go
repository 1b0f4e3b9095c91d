package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
	"gocv.io/x/gocv"
)

// FaceMeshConfig holds face mesh model configuration.
type FaceMeshConfig struct {
	ModelPath  string
	InputSize  int     // Square model input (192 for the MediaPipe landmark model)
	CropMargin float64 // Extra context around the face box, as a fraction of its size
}

// DefaultFaceMeshConfig returns production defaults.
func DefaultFaceMeshConfig() FaceMeshConfig {
	return FaceMeshConfig{
		ModelPath:  "models/face_landmark.onnx",
		InputSize:  192,
		CropMargin: 0.25,
	}
}

// FaceMeshDetector regresses a 468-point mesh for each face crop with an
// ONNX landmark model.
type FaceMeshDetector struct {
	net    gocv.Net
	config FaceMeshConfig
	mu     sync.Mutex
}

// NewFaceMesh loads the landmark model.
func NewFaceMesh(cfg FaceMeshConfig) (*FaceMeshDetector, error) {
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", detection.ErrModelLoad, cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &FaceMeshDetector{net: net, config: cfg}, nil
}

// DetectLandmarks returns one mesh per face, skipping faces whose crop is
// degenerate.
func (d *FaceMeshDetector) DetectLandmarks(jpeg []byte, faces []detection.Face) ([]detection.LandmarkSet, error) {
	if len(faces) == 0 {
		return nil, nil
	}

	img, err := decodeJPEG(jpeg)
	defer img.Close()
	if err != nil {
		return nil, detection.WrapError("facemesh", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var sets []detection.LandmarkSet
	for _, f := range faces {
		rect := pixelRect(f.Detection, img.Cols(), img.Rows(), d.config.CropMargin)
		if rect.Dx() < 8 || rect.Dy() < 8 {
			continue
		}
		pts, err := d.infer(img, rect)
		if err != nil {
			return sets, detection.WrapError("facemesh", err)
		}
		sets = append(sets, detection.LandmarkSet{Points: pts})
	}
	return sets, nil
}

func (d *FaceMeshDetector) infer(img gocv.Mat, rect image.Rectangle) ([]eye.Point, error) {
	crop := img.Region(rect)
	defer crop.Close()

	size := image.Pt(d.config.InputSize, d.config.InputSize)
	blob := gocv.BlobFromImage(crop, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return decodeMesh(data, d.config.InputSize, rect, img.Cols(), img.Rows())
}

// decodeMesh maps (x, y, z) triples in model input pixels back to
// normalized frame coordinates.
func decodeMesh(data []float32, inputSize int, rect image.Rectangle, imgW, imgH int) ([]eye.Point, error) {
	if len(data) < detection.MeshPoints*3 {
		return nil, fmt.Errorf("mesh output has %d values, want %d", len(data), detection.MeshPoints*3)
	}

	sx := float64(rect.Dx()) / float64(inputSize)
	sy := float64(rect.Dy()) / float64(inputSize)

	pts := make([]eye.Point, detection.MeshPoints)
	for i := range pts {
		x := float64(data[3*i])*sx + float64(rect.Min.X)
		y := float64(data[3*i+1])*sy + float64(rect.Min.Y)
		pts[i] = eye.Point{X: x / float64(imgW), Y: y / float64(imgH)}
	}
	return pts, nil
}

// Close releases the model.
func (d *FaceMeshDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
