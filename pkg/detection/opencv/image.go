package opencv

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-vigil/pkg/detection"
)

// decodeJPEG decodes a JPEG into a BGR Mat. The caller closes the Mat.
func decodeJPEG(jpeg []byte) (gocv.Mat, error) {
	if len(jpeg) == 0 {
		return gocv.NewMat(), detection.ErrEmptyImage
	}
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		return img, detection.ErrEmptyImage
	}
	return img, nil
}

// requireFile checks that a model file exists.
func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", detection.ErrModelNotFound, path)
	}
	return nil
}

// pixelRect converts a normalized box to a pixel rectangle clipped to the
// image bounds, grown by margin (fraction of the box size) on every side.
func pixelRect(d detection.Detection, imgW, imgH int, margin float64) image.Rectangle {
	w := float64(imgW)
	h := float64(imgH)
	x0 := (d.X - d.W*margin) * w
	y0 := (d.Y - d.H*margin) * h
	x1 := (d.X + d.W*(1+margin)) * w
	y1 := (d.Y + d.H*(1+margin)) * h
	return image.Rect(int(x0), int(y0), int(x1), int(y1)).Intersect(image.Rect(0, 0, imgW, imgH))
}

// squareAround returns a square of the given side centered on (cx, cy) in
// pixels, clipped to the image.
func squareAround(cx, cy, side float64, imgW, imgH int) image.Rectangle {
	half := side / 2
	r := image.Rect(int(cx-half), int(cy-half), int(cx+half), int(cy+half))
	return r.Intersect(image.Rect(0, 0, imgW, imgH))
}
