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
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// RoadSnapshot is the latest result of a road pipeline.
type RoadSnapshot struct {
	Camera    string                      `json:"camera"`
	State     hazard.State                `json:"state"`
	Objects   []detection.ObjectDetection `json:"objects"`
	Error     string                      `json:"error,omitempty"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// RoadProcessor runs object detection and feeds a hazard analyzer.
type RoadProcessor struct {
	camera    string
	objects   detection.ObjectDetector
	analyzer  *hazard.Analyzer
	publisher *drowsiness.Publisher[hazard.State]
	logger    *slog.Logger

	mu       sync.RWMutex
	snapshot RoadSnapshot
}

// NewRoadProcessor wires an object detector to a hazard analyzer.
func NewRoadProcessor(
	cameraName string,
	objects detection.ObjectDetector,
	analyzer *hazard.Analyzer,
	onState func(hazard.State),
	exec drowsiness.Executor,
	logger *slog.Logger,
) *RoadProcessor {
	return &RoadProcessor{
		camera:    cameraName,
		objects:   objects,
		analyzer:  analyzer,
		publisher: drowsiness.NewPublisher(onState, exec),
		logger:    log.Or(logger).With("camera", cameraName),
		snapshot:  RoadSnapshot{Camera: cameraName},
	}
}

// Process implements Processor.
func (p *RoadProcessor) Process(ctx context.Context, f camera.Frame, at time.Duration) {
	objs, err := p.objects.Detect(f.JPEG)
	if err != nil {
		telemetry.DetectorErrors.WithLabelValues(p.camera, "objects").Inc()
		p.Fail(ctx, err, at)
		return
	}
	p.update(p.analyzer.Evaluate(objs), objs, nil)
}

// Fail implements Processor. Hazards cannot be confirmed without frames,
// so any raised hazard is cleared.
func (p *RoadProcessor) Fail(_ context.Context, err error, _ time.Duration) {
	p.logger.Debug("road frame failed", "error", err)
	p.analyzer.Reset()
	p.update(hazard.Clear(), nil, err)
}

func (p *RoadProcessor) update(state hazard.State, objs []detection.ObjectDetection, err error) {
	snap := RoadSnapshot{Camera: p.camera, State: state, Objects: objs, UpdatedAt: time.Now()}
	if err != nil {
		snap.Error = err.Error()
	}
	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()

	if p.publisher.Publish(state) {
		telemetry.ObserveTransition(p.camera, "hazard_"+state.Kind.String())
		p.logger.Debug("hazard state", "state", state.String())
	}
}

// Snapshot returns the latest result.
func (p *RoadProcessor) Snapshot() RoadSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}
