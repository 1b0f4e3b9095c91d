package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// DriverSnapshot is the latest result of a driver pipeline.
type DriverSnapshot struct {
	Camera     string                 `json:"camera"`
	State      drowsiness.DriverState `json:"state"`
	Evaluation drowsiness.Evaluation  `json:"evaluation"`
	Faces      int                    `json:"faces"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// DriverProcessor runs face and landmark detection and feeds the results
// to a drowsiness analyzer.
type DriverProcessor struct {
	camera    string
	faces     detection.FaceDetector
	landmarks detection.LandmarkDetector
	analyzer  *drowsiness.Analyzer
	publisher *drowsiness.Publisher[drowsiness.DriverState]
	logger    *slog.Logger

	mu       sync.RWMutex
	snapshot DriverSnapshot
	replaced bool // analyzer swapped since the last frame
}

// NewDriverProcessor wires detectors to an analyzer. landmarks may be nil.
// onState receives each state change on exec.
func NewDriverProcessor(
	cameraName string,
	faces detection.FaceDetector,
	landmarks detection.LandmarkDetector,
	analyzer *drowsiness.Analyzer,
	onState func(drowsiness.DriverState),
	exec drowsiness.Executor,
	logger *slog.Logger,
) *DriverProcessor {
	return &DriverProcessor{
		camera:    cameraName,
		faces:     faces,
		landmarks: landmarks,
		analyzer:  analyzer,
		publisher: drowsiness.NewPublisher(onState, exec),
		logger:    log.Or(logger).With("camera", cameraName),
		snapshot:  DriverSnapshot{Camera: cameraName, State: drowsiness.Initializing()},
	}
}

// Process implements Processor.
func (p *DriverProcessor) Process(_ context.Context, f camera.Frame, at time.Duration) {
	obs := drowsiness.Observation{
		At:       at,
		Width:    f.Width,
		Height:   f.Height,
		Rotation: f.Rotation,
	}

	faces, err := p.faces.DetectFaces(f.JPEG)
	if err != nil {
		telemetry.DetectorErrors.WithLabelValues(p.camera, "face").Inc()
		obs.Err = err
	} else {
		obs.Faces = faces
	}

	// The landmark source is optional; when it fails the frame is
	// evaluated without it.
	if err == nil && p.landmarks != nil && len(faces) > 0 {
		sets, lerr := p.landmarks.DetectLandmarks(f.JPEG, faces)
		if lerr != nil {
			telemetry.DetectorErrors.WithLabelValues(p.camera, "landmarks").Inc()
			p.logger.Debug("landmark detection failed", "error", lerr)
		} else {
			obs.Landmarks = sets
		}
	}

	p.evaluate(obs)
}

// Fail implements Processor. A camera that cannot deliver frames is
// reported like a failed detector.
func (p *DriverProcessor) Fail(_ context.Context, err error, at time.Duration) {
	p.evaluate(drowsiness.Observation{At: at, Err: err})
}

func (p *DriverProcessor) evaluate(obs drowsiness.Observation) {
	p.mu.Lock()
	analyzer := p.analyzer
	replaced := p.replaced
	p.replaced = false
	p.mu.Unlock()

	// A new analyzer starts a new state history, so its first state is
	// delivered even if it matches the last one.
	if replaced {
		p.publisher.Forget()
	}

	state := analyzer.Evaluate(obs)
	eval := analyzer.LastEvaluation()

	p.mu.Lock()
	p.snapshot = DriverSnapshot{
		Camera:     p.camera,
		State:      state,
		Evaluation: eval,
		Faces:      len(obs.Faces),
		UpdatedAt:  time.Now(),
	}
	p.mu.Unlock()

	if p.publisher.Publish(state) {
		telemetry.ObserveTransition(p.camera, state.Kind.String())
		p.logger.Debug("driver state", "state", state.String())
	}
}

// Config returns the active analyzer configuration.
func (p *DriverProcessor) Config() drowsiness.Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.analyzer.Config()
}

// Reconfigure replaces the analyzer. The closure run restarts; the frame in
// flight, if any, finishes on the old analyzer.
func (p *DriverProcessor) Reconfigure(cfg drowsiness.Config) error {
	analyzer, err := drowsiness.NewAnalyzer(cfg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.analyzer = analyzer
	p.replaced = true
	p.mu.Unlock()
	p.logger.Info("analyzer reconfigured", "threshold", cfg.ClosedEyesThreshold, "alpha", cfg.SmoothingAlpha)
	return nil
}

// Snapshot returns the latest result.
func (p *DriverProcessor) Snapshot() DriverSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}
