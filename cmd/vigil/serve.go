package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/alert"
	"github.com/teslashibe/go-vigil/pkg/camera"
	"github.com/teslashibe/go-vigil/pkg/detection"
	"github.com/teslashibe/go-vigil/pkg/detection/opencv"
	"github.com/teslashibe/go-vigil/pkg/drowsiness"
	"github.com/teslashibe/go-vigil/pkg/hazard"
	"github.com/teslashibe/go-vigil/pkg/ingest"
	"github.com/teslashibe/go-vigil/pkg/motion"
	"github.com/teslashibe/go-vigil/pkg/pipeline"
	"github.com/teslashibe/go-vigil/pkg/triplog"
	"github.com/teslashibe/go-vigil/pkg/web"
)

func newServeCmd() *cobra.Command {
	var (
		staticDir string
		noCameras bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run camera pipelines, the ingest endpoint and the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noCameras {
				cfg.Cameras.Driver.Enabled = false
				cfg.Cameras.Road.Enabled = false
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, staticDir)
		},
	}

	cmd.Flags().StringVar(&staticDir, "static", "", "serve dashboard files from this directory")
	cmd.Flags().BoolVar(&noCameras, "no-cameras", false, "disable local cameras (ingest only)")
	return cmd
}

// app holds everything serve starts so it can be torn down in order
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	cameras  *camera.Manager
	gate     *motion.Gate
	trips    *triplog.Store
	recorder *triplog.Recorder
	hub      *ingest.Hub
	server   *web.Server

	runners   []*pipeline.Runner
	executors []*drowsiness.SerialExecutor
	closers   []func() error
}

func serve(ctx context.Context, cfg *config.Config, staticDir string) error {
	a := &app{
		cfg:    cfg,
		logger: log.With("component", "serve"),
		gate:   motion.NewGate(cfg.MotionConfig()),
	}
	defer a.close()

	a.logger.Info("starting vigil", "version", version, "addr", cfg.Server.Addr)

	if err := a.openTripLog(); err != nil {
		return err
	}

	cams := cfg.CameraConfigs()
	mgr, err := camera.NewManager(cams...)
	if err != nil {
		return fmt.Errorf("cameras: %w", err)
	}
	a.cameras = mgr

	if cfg.Server.Ingest {
		if err := a.startIngest(); err != nil {
			return err
		}
	}

	a.server = web.NewServer(web.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   staticDir,
		Version:     version,
		AccessLog:   cfg.Log.Level == "debug",
		Cameras:     a.cameras,
		Gate:        a.gate,
		Trips:       a.trips,
		Ingest:      a.hub,
	})

	if err := a.startPipelines(ctx, cams); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, r := range a.runners {
		wg.Add(1)
		go func(r *pipeline.Runner) {
			defer wg.Done()
			_ = r.Run(ctx)
		}(r)
	}

	err = a.server.Start(ctx, cfg.Server.Addr)
	if err != nil {
		a.logger.Error("server stopped", "error", err)
	}
	cancel()

	wg.Wait()
	a.logger.Info("shutdown complete")
	return err
}

func (a *app) openTripLog() error {
	if a.cfg.Store.Path == "" {
		a.logger.Info("trip log disabled")
		return nil
	}
	store, err := triplog.Open(a.cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("trip log: %w", err)
	}
	a.trips = store
	a.recorder = triplog.NewRecorder(store, nil)
	a.closers = append(a.closers, store.Close)
	a.logger.Info("trip log opened", "path", a.cfg.Store.Path)
	return nil
}

// sink delivers an alert to the dashboard and the trip log
func (a *app) sink(al alert.Alert) {
	a.server.PublishAlert(al)
	if a.recorder != nil {
		a.recorder.Sink()(al)
	}
}

func (a *app) startIngest() error {
	dc, err := a.cfg.DrowsinessConfig()
	if err != nil {
		return err
	}
	hub, err := ingest.NewHub(ingest.Config{
		Analyzer: dc,
		Hazard:   a.cfg.HazardConfig(),
		Motion:   a.cfg.MotionConfig(),
		Alert:    a.cfg.AlertConfig(),
	}, nil)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	// Server-side detection for remote monitors that send raw frames
	if faces, err := opencv.NewFaceEyeDetector(a.cfg.EyeDetectorConfig()); err != nil {
		a.logger.Warn("server-side detection unavailable", "error", err)
	} else {
		hub.SetFaceDetector(faces)
		a.closers = append(a.closers, faces.Close)
	}

	hub.OnState(func(id string, s drowsiness.DriverState) { a.server.PublishState(id, s) })
	hub.OnHazard(func(id string, s hazard.State) { a.server.PublishHazard(id, s) })
	hub.OnAlert(a.sink)
	hub.OnSession(
		func(id string) {
			if a.recorder != nil {
				if _, err := a.recorder.Begin(context.Background(), id); err != nil {
					a.logger.Warn("begin trip failed", "session", id, "error", err)
				}
			}
		},
		func(id string) {
			a.server.ForgetSource(id)
			if a.recorder != nil {
				a.recorder.End(context.Background(), id)
			}
		},
	)

	a.hub = hub
	return nil
}

func (a *app) startPipelines(ctx context.Context, cams []camera.Config) error {
	if len(cams) == 0 {
		a.logger.Info("no local cameras enabled")
		return nil
	}

	// One monitor covers the vehicle: the driver camera and the road camera
	// feed the same policy.
	source := "local"
	for _, c := range cams {
		if c.Role == camera.RoleDriver {
			source = c.Name
		}
	}
	monitor := alert.NewMonitor(source, a.cfg.AlertConfig(), a.gate, a.sink)
	if a.recorder != nil {
		if _, err := a.recorder.Begin(ctx, source); err != nil {
			return fmt.Errorf("trip log: %w", err)
		}
	}

	for _, c := range cams {
		var (
			proc pipeline.Processor
			err  error
		)
		switch c.Role {
		case camera.RoleDriver:
			proc, err = a.driverProcessor(c.Name, monitor)
		case camera.RoleRoad:
			proc, err = a.roadProcessor(c.Name, monitor)
		default:
			err = fmt.Errorf("unknown role %q", c.Role)
		}
		if err != nil {
			return fmt.Errorf("camera %s: %w", c.Name, err)
		}

		capture, err := camera.Open(c)
		if err != nil {
			return err
		}
		a.runners = append(a.runners, pipeline.NewRunner(c.Name, capture, proc, nil))
	}

	for _, r := range a.runners {
		a.server.AddRunner(r)
	}
	return nil
}

func (a *app) driverProcessor(name string, monitor *alert.Monitor) (pipeline.Processor, error) {
	dc, err := a.cfg.DrowsinessConfig()
	if err != nil {
		return nil, err
	}
	analyzer, err := drowsiness.NewAnalyzer(dc)
	if err != nil {
		return nil, err
	}

	faces, err := opencv.NewFaceEyeDetector(a.cfg.EyeDetectorConfig())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, faces.Close)

	var landmarks detection.LandmarkDetector
	if dc.Sources.Landmarks {
		mesh, err := opencv.NewFaceMesh(a.cfg.FaceMeshConfig())
		if err != nil {
			// The landmark channel reports unavailable without a model.
			a.logger.Warn("face mesh unavailable", "camera", name, "error", err)
		} else {
			landmarks = mesh
			a.closers = append(a.closers, mesh.Close)
		}
	}

	exec := a.executor()
	proc := pipeline.NewDriverProcessor(name, faces, landmarks, analyzer, func(s drowsiness.DriverState) {
		a.server.PublishState(name, s)
		monitor.ObserveDriver(s)
	}, exec, nil)
	a.server.AddDriver(name, proc)
	return proc, nil
}

func (a *app) roadProcessor(name string, monitor *alert.Monitor) (pipeline.Processor, error) {
	objects, err := opencv.NewYOLO(a.cfg.ObjectDetectorConfig())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, objects.Close)

	exec := a.executor()
	proc := pipeline.NewRoadProcessor(name, objects, hazard.NewAnalyzer(a.cfg.HazardConfig()), func(s hazard.State) {
		a.server.PublishHazard(name, s)
		monitor.ObserveHazard(s)
	}, exec, nil)
	a.server.AddRoad(name, proc)
	return proc, nil
}

func (a *app) executor() *drowsiness.SerialExecutor {
	exec := drowsiness.NewSerialExecutor(16)
	a.executors = append(a.executors, exec)
	return exec
}

// close releases resources in reverse order of acquisition
func (a *app) close() {
	for _, e := range a.executors {
		e.Close()
	}

	if a.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.recorder.EndAll(ctx)
		cancel()
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}
