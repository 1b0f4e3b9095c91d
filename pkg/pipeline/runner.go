// Package pipeline runs one camera through its detectors and analyzer.
//
// A capture goroutine reads frames into a one-slot mailbox that keeps only
// the newest frame; a single worker drains it. At most one frame is being
// evaluated at any time, and frames are evaluated in capture order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/filter"
	"github.com/teslashibe/go-vigil/pkg/telemetry"
)

// DefaultRetryDelay is the pause after a failed frame read.
const DefaultRetryDelay = 500 * time.Millisecond

// Processor evaluates frames for one camera. Calls are sequential.
type Processor interface {
	// Process evaluates a frame captured at the given monotonic offset.
	Process(ctx context.Context, f camera.Frame, at time.Duration)

	// Fail reports that no frame could be read.
	Fail(ctx context.Context, err error, at time.Duration)
}

// Stats is a snapshot of runner counters.
type Stats struct {
	Captured  uint64  `json:"captured"`
	Dropped   uint64  `json:"dropped"`
	Processed uint64  `json:"processed"`
	Errors    uint64  `json:"errors"`
	FPS       float64 `json:"fps"`
}

// item is a frame or a read failure waiting for the worker.
type item struct {
	frame camera.Frame
	err   error
	at    time.Duration
}

// Runner drives one Source through one Processor.
type Runner struct {
	name       string
	source     camera.Source
	processor  Processor
	logger     *slog.Logger
	retryDelay time.Duration

	mailbox chan item
	start   time.Time

	captured  atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	errors    atomic.Uint64

	mu  sync.Mutex // Protects fps
	fps *filter.FPSMeter
}

// NewRunner creates a runner. A nil logger uses the global logger.
func NewRunner(name string, src camera.Source, p Processor, logger *slog.Logger) *Runner {
	return &Runner{
		name:       name,
		source:     src,
		processor:  p,
		logger:     log.Or(logger).With("camera", name),
		retryDelay: DefaultRetryDelay,
		mailbox:    make(chan item, 1),
		fps:        filter.NewFPSMeter(),
	}
}

// Name returns the camera name.
func (r *Runner) Name() string { return r.name }

// Run captures and evaluates frames until ctx is cancelled. The source is
// closed on return.
func (r *Runner) Run(ctx context.Context) error {
	r.start = time.Now()
	r.logger.Info("pipeline started")
	defer r.logger.Info("pipeline stopped")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.capture(ctx)
	}()

	r.work(ctx)
	wg.Wait()

	if err := r.source.Close(); err != nil {
		r.logger.Warn("close source", "error", err)
	}
	return ctx.Err()
}

// elapsed converts a wall-clock capture time to a monotonic offset.
func (r *Runner) elapsed(t time.Time) time.Duration {
	if t.IsZero() {
		return time.Since(r.start)
	}
	if d := t.Sub(r.start); d > 0 {
		return d
	}
	return 0
}

func (r *Runner) capture(ctx context.Context) {
	for {
		f, err := r.source.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.errors.Add(1)
			telemetry.CaptureErrors.WithLabelValues(r.name).Inc()
			r.logger.Warn("read frame", "error", err)
			r.offer(item{err: err, at: time.Since(r.start)})
			if !sleep(ctx, r.retryDelay) {
				return
			}
			continue
		}

		r.captured.Add(1)
		telemetry.FramesTotal.WithLabelValues(r.name).Inc()
		r.offer(item{frame: f, at: r.elapsed(f.Captured)})
	}
}

// offer places it in the mailbox, replacing an unprocessed item.
func (r *Runner) offer(it item) {
	select {
	case r.mailbox <- it:
		return
	default:
	}
	select {
	case <-r.mailbox:
		r.dropped.Add(1)
		telemetry.FramesDropped.WithLabelValues(r.name).Inc()
	default:
	}
	select {
	case r.mailbox <- it:
	default:
		// Only this goroutine sends, so the slot was just emptied.
	}
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-r.mailbox:
			if it.err != nil {
				r.processor.Fail(ctx, it.err, it.at)
				continue
			}
			r.processor.Process(ctx, it.frame, it.at)
			r.processed.Add(1)

			r.mu.Lock()
			fps := r.fps.Tick(it.at)
			r.mu.Unlock()

			var latency time.Duration
			if !it.frame.Captured.IsZero() {
				latency = time.Since(it.frame.Captured)
			}
			telemetry.ObserveFrame(r.name, latency, fps)
		}
	}
}

// Stats returns current counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	fps := r.fps.FPS()
	r.mu.Unlock()
	return Stats{
		Captured:  r.captured.Load(),
		Dropped:   r.dropped.Load(),
		Processed: r.processed.Load(),
		Errors:    r.errors.Load(),
		FPS:       fps,
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsCanceled reports whether err came from context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
