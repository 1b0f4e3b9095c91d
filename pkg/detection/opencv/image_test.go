package opencv

import (
	"image"
	"math"
	"testing"

	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/eye"
)

func TestPixelRect(t *testing.T) {
	d := detection.Detection{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	got := pixelRect(d, 200, 100, 0)
	if want := image.Rect(50, 25, 150, 75); got != want {
		t.Errorf("no margin: got %v, want %v", got, want)
	}

	got = pixelRect(detection.Detection{X: 0.9, Y: 0.9, W: 0.2, H: 0.2}, 100, 100, 0.5)
	if got.Max.X > 100 || got.Max.Y > 100 {
		t.Errorf("rect not clipped: %v", got)
	}
}

func TestToFramePoints(t *testing.T) {
	pts := toFramePoints([]image.Point{{X: 0, Y: 0}, {X: 10, Y: 5}}, image.Pt(40, 20), 100, 50)
	want := []eye.Point{{X: 0.4, Y: 0.4}, {X: 0.5, Y: 0.5}}
	for i := range want {
		if math.Abs(pts[i].X-want[i].X) > 1e-9 || math.Abs(pts[i].Y-want[i].Y) > 1e-9 {
			t.Errorf("point %d: got %+v, want %+v", i, pts[i], want[i])
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}
