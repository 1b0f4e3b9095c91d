package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrDeviceUnavailable is returned when a capture device cannot be opened
// or stops delivering frames.
var ErrDeviceUnavailable = errors.New("camera: device unavailable")

// Frame is one captured, oriented, JPEG encoded image.
type Frame struct {
	Camera   string
	Seq      uint64
	JPEG     []byte
	Width    int
	Height   int
	Rotation int
	Captured time.Time
}

// Source delivers frames. Read blocks until a frame is available.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// Capture reads frames from a gocv VideoCapture.
type Capture struct {
	cfg Config
	mu  sync.Mutex // Protects vc and the mats
	vc  *gocv.VideoCapture
	raw gocv.Mat
	out gocv.Mat
	seq uint64
}

// Open opens the device named in cfg.
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera %s: validation failed: %v", cfg.Name, errs)
	}

	var device any = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Capture{
		cfg: cfg,
		vc:  vc,
		raw: gocv.NewMat(),
		out: gocv.NewMat(),
	}, nil
}

// Config returns the configuration the capture was opened with.
func (c *Capture) Config() Config { return c.cfg }

// Read grabs, orients and encodes the next frame.
func (c *Capture) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return Frame{}, ErrDeviceUnavailable
	}
	if ok := c.vc.Read(&c.raw); !ok || c.raw.Empty() {
		return Frame{}, fmt.Errorf("%w: %s: read failed", ErrDeviceUnavailable, c.cfg.Name)
	}
	captured := time.Now()

	img := c.orient()
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), c.cfg.Quality})
	if err != nil {
		return Frame{}, fmt.Errorf("camera %s: encode: %w", c.cfg.Name, err)
	}
	defer buf.Close()

	// The buffer is owned by gocv; copy before returning.
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	c.seq++
	return Frame{
		Camera:   c.cfg.Name,
		Seq:      c.seq,
		JPEG:     data,
		Width:    img.Cols(),
		Height:   img.Rows(),
		Rotation: c.cfg.Rotation,
		Captured: captured,
	}, nil
}

// orient applies rotation and mirroring, returning the Mat to encode.
func (c *Capture) orient() gocv.Mat {
	src := c.raw
	switch c.cfg.Rotation {
	case 90:
		gocv.Rotate(src, &c.out, gocv.Rotate90Clockwise)
		src = c.out
	case 180:
		gocv.Rotate(src, &c.out, gocv.Rotate180Clockwise)
		src = c.out
	case 270:
		gocv.Rotate(src, &c.out, gocv.Rotate90CounterClockwise)
		src = c.out
	}
	if c.cfg.Mirror {
		dst := gocv.NewMat()
		gocv.Flip(src, &dst, 1)
		dst.CopyTo(&c.out)
		dst.Close()
		src = c.out
	}
	return src
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	c.raw.Close()
	c.out.Close()
	return err
}
