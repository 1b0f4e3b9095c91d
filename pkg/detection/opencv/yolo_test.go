package opencv

import (
	"image"
	"testing"

	"github.com/teslashibe/go-vigil/pkg/detection"
)

// tensor builds a [attrs x anchors] YOLOv8 output with the given anchors.
func tensor(attrs int, anchors [][]float32) []float32 {
	n := len(anchors)
	data := make([]float32, attrs*n)
	for i, a := range anchors {
		for c, v := range a {
			data[c*n+i] = v
		}
	}
	return data
}

func TestDecodeYOLOv8(t *testing.T) {
	const attrs = 4 + 80
	person := make([]float32, attrs)
	copy(person, []float32{100, 200, 40, 80})
	person[4+0] = 0.9

	weak := make([]float32, attrs)
	copy(weak, []float32{300, 300, 10, 10})
	weak[4+2] = 0.2

	chair := make([]float32, attrs)
	copy(chair, []float32{50, 50, 20, 20})
	chair[4+56] = 0.95

	cfg := DefaultYOLOConfig()
	cands := decodeYOLOv8(tensor(attrs, [][]float32{person, weak, chair}), attrs, 3, cfg, classFilter(cfg.Classes))

	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	c := cands[0]
	if c.classID != 0 {
		t.Errorf("classID: got %d, want 0", c.classID)
	}
	if want := image.Rect(80, 160, 120, 240); c.box != want {
		t.Errorf("box: got %v, want %v", c.box, want)
	}
}

func TestDecodeYOLOv8_AllClasses(t *testing.T) {
	const attrs = 4 + 80
	chair := make([]float32, attrs)
	copy(chair, []float32{50, 50, 20, 20})
	chair[4+56] = 0.95

	cands := decodeYOLOv8(tensor(attrs, [][]float32{chair}), attrs, 1, DefaultYOLOConfig(), nil)
	if len(cands) != 1 || detection.COCOClasses[cands[0].classID] != "chair" {
		t.Fatalf("expected a chair with no class filter, got %+v", cands)
	}
}

func TestDecodeYOLOv8_ShortTensor(t *testing.T) {
	if got := decodeYOLOv8(make([]float32, 10), 84, 8400, DefaultYOLOConfig(), nil); got != nil {
		t.Errorf("expected nil for short tensor, got %d candidates", len(got))
	}
}

func TestNewYOLO_MissingModel(t *testing.T) {
	cfg := DefaultYOLOConfig()
	cfg.ModelPath = "/nonexistent/yolov8n.onnx"
	if _, err := NewYOLO(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}
