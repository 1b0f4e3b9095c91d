package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-vigil/pkg/debug"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"gocv.io/x/gocv"
)

// YOLOConfig holds YOLO detector configuration
type YOLOConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int

	// Classes restricts output to these COCO names. Empty keeps all.
	Classes []string
}

// DefaultYOLOConfig returns road-camera defaults for YOLOv8n: people,
// vehicles and animals only.
func DefaultYOLOConfig() YOLOConfig {
	classes := []string{"person", "bicycle", "car", "motorcycle", "bus", "truck"}
	for _, name := range detection.COCOClasses {
		if detection.IsAnimal(name) {
			classes = append(classes, name)
		}
	}
	return YOLOConfig{
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.45,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
		Classes:          classes,
	}
}

// YOLODetector uses YOLOv8 for road object detection
type YOLODetector struct {
	net     gocv.Net
	config  YOLOConfig
	allowed map[int]bool
	mu      sync.Mutex
}

// NewYOLO creates a new YOLO object detector
func NewYOLO(cfg YOLOConfig) (*YOLODetector, error) {
	if err := requireFile(cfg.ModelPath); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, detection.WrapError("yolo", detection.ErrModelLoad)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLODetector{
		net:     net,
		config:  cfg,
		allowed: classFilter(cfg.Classes),
	}, nil
}

// classFilter maps class names to COCO ids. Nil means all classes.
func classFilter(names []string) map[int]bool {
	if len(names) == 0 {
		return nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	ids := make(map[int]bool)
	for id, name := range detection.COCOClasses {
		if want[name] {
			ids[id] = true
		}
	}
	return ids
}

// Detect finds objects in the JPEG image
func (d *YOLODetector) Detect(jpeg []byte) ([]detection.ObjectDetection, error) {
	img, err := decodeJPEG(jpeg)
	defer img.Close()
	if err != nil {
		return nil, detection.WrapError("yolo", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	size := image.Pt(d.config.InputWidth, d.config.InputHeight)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, detection.WrapError("yolo", err)
	}

	// Output is [1, 4+classes, anchors].
	dims := output.Size()
	if len(dims) < 3 {
		return nil, detection.WrapError("yolo", fmt.Errorf("unexpected output shape %v", dims))
	}
	cands := decodeYOLOv8(data, dims[1], dims[2], d.config, d.allowed)
	objects := d.suppress(cands)

	if len(objects) > 0 {
		debug.Tracef("yolo found %d object(s)", len(objects))
	}
	return objects, nil
}

// candidate is one pre-NMS box in model input pixels.
type candidate struct {
	box     image.Rectangle
	score   float32
	classID int
}

// decodeYOLOv8 reads the transposed YOLOv8 tensor (attrs x anchors) and
// keeps boxes whose best allowed class clears the confidence threshold.
func decodeYOLOv8(data []float32, attrs, anchors int, cfg YOLOConfig, allowed map[int]bool) []candidate {
	if attrs <= 4 || len(data) < attrs*anchors {
		return nil
	}

	var out []candidate
	for i := 0; i < anchors; i++ {
		best := float32(0)
		bestID := -1
		for c := 4; c < attrs; c++ {
			id := c - 4
			if allowed != nil && !allowed[id] {
				continue
			}
			if s := data[c*anchors+i]; s > best {
				best, bestID = s, id
			}
		}
		if bestID < 0 || best < cfg.ConfidenceThresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]
		out = append(out, candidate{
			box:     image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)),
			score:   best,
			classID: bestID,
		})
	}
	return out
}

// suppress applies NMS and normalizes boxes. The blob stretches the whole
// frame, so input-relative coordinates are frame-relative.
func (d *YOLODetector) suppress(cands []candidate) []detection.ObjectDetection {
	if len(cands) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}

	inW := float64(d.config.InputWidth)
	inH := float64(d.config.InputHeight)

	var objects []detection.ObjectDetection
	for _, idx := range gocv.NMSBoxes(boxes, scores, d.config.ConfidenceThresh, d.config.NMSThresh) {
		c := cands[idx]
		objects = append(objects, detection.ObjectDetection{
			Detection: detection.Detection{
				X:          float64(c.box.Min.X) / inW,
				Y:          float64(c.box.Min.Y) / inH,
				W:          float64(c.box.Dx()) / inW,
				H:          float64(c.box.Dy()) / inH,
				Confidence: float64(c.score),
			},
			ClassID:   c.classID,
			ClassName: detection.COCOClasses[c.classID],
		})
	}
	return objects
}

// Close releases the detector resources
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
