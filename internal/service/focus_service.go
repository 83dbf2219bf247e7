package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	"github.com/teddyrendahl/psbeam/internal/camera"
	"github.com/teddyrendahl/psbeam/internal/config"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/focus"
	"github.com/teddyrendahl/psbeam/internal/motion"
	"github.com/teddyrendahl/psbeam/internal/observer"
	"github.com/teddyrendahl/psbeam/pkg/models"
)

// FocusService defines the interface for starting and inspecting focus runs
type FocusService interface {
	// StartRun validates a request, reserves the target axes and launches
	// the run in the background. The returned record is in the searching
	// state; poll GetRun or stream events for progress.
	StartRun(ctx context.Context, request models.FocusRequest) (*models.RunResponse, error)
	// GetRun returns the current record of one run.
	GetRun(id string) (*models.RunResponse, error)
	// ListRuns returns summaries of known runs, newest first.
	ListRuns() []models.RunSummary
	// Metrics reports service counters for the metrics endpoint.
	Metrics() map[string]interface{}
}

// focusService implements FocusService over one rig
type focusService struct {
	rig        *config.Rig
	publisher  *observer.EventPublisher
	metrics    *observer.MetricsObserver
	store      *runStore
	runTimeout time.Duration

	mu     sync.Mutex
	active map[string]string // axis name -> id of the run holding it
}

// NewFocusService creates a new focus service
func NewFocusService(
	rig *config.Rig,
	publisher *observer.EventPublisher,
	metrics *observer.MetricsObserver,
	runTimeout time.Duration,
	historyLimit int,
) FocusService {
	return &focusService{
		rig:        rig,
		publisher:  publisher,
		metrics:    metrics,
		store:      newRunStore(historyLimit),
		runTimeout: runTimeout,
		active:     make(map[string]string),
	}
}

// StartRun builds a controller for the request and runs it in the
// background. Every configuration problem surfaces here, before any
// axis moves; a started run only fails for hardware or timeout reasons.
func (s *focusService) StartRun(ctx context.Context, request models.FocusRequest) (*models.RunResponse, error) {
	source, cameraName, err := s.resolveCamera(request.Camera)
	if err != nil {
		return nil, err
	}

	spec, axes := s.targetSpec(request)
	target, err := spec.Resolve(s.rig)
	if err != nil {
		return nil, err
	}

	cfg, err := buildRunConfig(request)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	controller, err := focus.NewController(cfg, target, source, s.runHooks(id))
	if err != nil {
		return nil, err
	}

	if err := s.acquireAxes(id, axes); err != nil {
		return nil, err
	}

	record := models.RunResponse{
		ID:        id,
		State:     string(focus.StateSearching),
		Target:    target.Name(),
		Camera:    cameraName,
		Strategy:  string(cfg.Strategy),
		Metric:    string(cfg.Metric),
		StartedAt: time.Now().UTC(),
	}
	s.store.Put(record)

	go s.execute(controller, id, axes)

	return &record, nil
}

// execute drives one run to completion. The run outlives the HTTP
// request that started it, so it gets its own deadline instead of the
// request context. Axes are released before the record flips out of the
// searching state, so a run that reads as finished never blocks the
// next one.
func (s *focusService) execute(controller *focus.Controller, id string, axes []string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	result, err := controller.Focus(ctx)
	s.releaseAxes(axes)
	s.finishRecord(id, result, err)
}

// finishRecord stamps the run outcome onto the stored record.
func (s *focusService) finishRecord(id string, result *focus.Result, err error) {
	now := time.Now().UTC()
	s.store.Update(id, func(run *models.RunResponse) {
		run.FinishedAt = &now
		if err != nil {
			run.State = string(focus.StateAborted)
			run.Error = err.Error()
			return
		}
		run.State = string(focus.StateConverged)
		run.Best = &models.BestResult{
			Position: result.BestPosition,
			Score:    result.BestScore,
		}
		run.Confidence = result.Confidence
		run.Issues = result.Issues
	})
}

func (s *focusService) GetRun(id string) (*models.RunResponse, error) {
	run, ok := s.store.Get(id)
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("unknown run %q", id))
	}
	return &run, nil
}

func (s *focusService) ListRuns() []models.RunSummary {
	return s.store.List()
}

func (s *focusService) Metrics() map[string]interface{} {
	m := s.metrics.GetMetrics()

	s.mu.Lock()
	m["busy_axes"] = len(s.active)
	s.mu.Unlock()

	m["runs_recorded"] = s.store.Len()
	m["rig_actuators"] = s.rig.ActuatorCount()
	m["rig_cameras"] = s.rig.CameraCount()
	return m
}

// resolveCamera looks up the requested frame source, falling back to the
// rig default when none is named.
func (s *focusService) resolveCamera(name string) (camera.Source, string, error) {
	if name == "" {
		name = s.rig.DefaultCamera()
	}
	source, ok := s.rig.Camera(name)
	if !ok {
		return nil, "", apperrors.NewNotFound(fmt.Sprintf("unknown camera %q", name))
	}
	return source, name, nil
}

// targetSpec builds the motion target spec of a request, filling in the
// rig default axis when the request names none. The axis names are
// returned separately for busy tracking.
func (s *focusService) targetSpec(request models.FocusRequest) (motion.TargetSpec, []string) {
	spec := motion.TargetSpec{
		Actuator:  request.Actuator,
		Actuators: request.Actuators,
	}
	if spec.Actuator == "" && len(spec.Actuators) == 0 {
		spec.Actuator = s.rig.DefaultActuator()
	}

	axes := spec.Actuators
	if spec.Actuator != "" {
		axes = []string{spec.Actuator}
	}
	return spec, axes
}

// acquireAxes reserves every axis of a run, rejecting the whole request
// when any axis is already held. Reservation is all or nothing.
func (s *focusService) acquireAxes(runID string, axes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(axes))
	for _, name := range axes {
		if seen[name] {
			return apperrors.NewInvalidConfig(
				fmt.Sprintf("axis %q named more than once", name), nil)
		}
		seen[name] = true
		if holder, busy := s.active[name]; busy {
			return apperrors.NewConflict(
				fmt.Sprintf("axis %q is busy with run %s", name, holder))
		}
	}
	for _, name := range axes {
		s.active[name] = runID
	}
	return nil
}

func (s *focusService) releaseAxes(axes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range axes {
		delete(s.active, name)
	}
}

// runHooks bridges controller callbacks into the run record and the
// event publisher. Hooks run synchronously on the run goroutine, so
// subscribers see trials in order.
func (s *focusService) runHooks(id string) focus.Hooks {
	return focus.Hooks{
		OnRunStarted: func(info focus.RunInfo) {
			s.publisher.NotifyObservers(context.Background(), observer.FocusEvent{
				Type:      observer.RunStarted,
				RunID:     id,
				Timestamp: time.Now().UTC(),
				Target:    info.Target,
				Strategy:  string(info.Strategy),
			})
		},
		OnTrialStarted: func(number int, position []float64) {
			s.publisher.NotifyObservers(context.Background(), observer.FocusEvent{
				Type:      observer.TrialStarted,
				RunID:     id,
				Timestamp: time.Now().UTC(),
				Trial:     number,
				Position:  position,
			})
		},
		OnTrialCompleted: func(trial focus.TrialInfo) {
			s.store.Update(id, func(run *models.RunResponse) {
				run.Trials = append(run.Trials, models.TrialEntry{
					Number:    trial.Number,
					Position:  trial.Position,
					Score:     trial.Score,
					ElapsedMS: trial.Elapsed.Milliseconds(),
				})
			})
			s.publisher.NotifyObservers(context.Background(), observer.FocusEvent{
				Type:      observer.TrialCompleted,
				RunID:     id,
				Timestamp: time.Now().UTC(),
				Trial:     trial.Number,
				Position:  trial.Position,
				Score:     trial.Score,
				Elapsed:   trial.Elapsed,
			})
		},
		OnConverged: func(result focus.Result) {
			s.publisher.NotifyObservers(context.Background(), observer.FocusEvent{
				Type:      observer.RunConverged,
				RunID:     id,
				Timestamp: time.Now().UTC(),
				Position:  result.BestPosition,
				BestScore: result.BestScore,
				Trials:    result.Trials,
				Elapsed:   result.Elapsed,
			})
		},
		OnAborted: func(err error) {
			s.publisher.NotifyObservers(context.Background(), observer.FocusEvent{
				Type:      observer.RunAborted,
				RunID:     id,
				Timestamp: time.Now().UTC(),
				Error:     err.Error(),
			})
		},
	}
}

// buildRunConfig maps request overrides onto the default run
// configuration. Enum names are resolved here so an unknown strategy or
// metric fails the request up front.
func buildRunConfig(request models.FocusRequest) (focus.Config, error) {
	cfg := focus.DefaultConfig()

	if request.Strategy != "" {
		strategy, err := focus.ParseStrategy(request.Strategy)
		if err != nil {
			return cfg, err
		}
		cfg.Strategy = strategy
	}
	if request.Metric != "" {
		metric, err := analyzer.ParseMetric(request.Metric)
		if err != nil {
			return cfg, err
		}
		cfg.Metric = metric
	}
	if len(request.Positions) > 0 {
		axes := make([]focus.AxisRange, len(request.Positions))
		for i, r := range request.Positions {
			axes[i] = focus.AxisRange{Start: r.Start, Stop: r.Stop, Step: r.Step}
		}
		spec, err := focus.NewPositionSpec(axes...)
		if err != nil {
			return cfg, err
		}
		cfg.Positions = spec
	}

	if request.SampleCount != nil {
		cfg.SampleCount = *request.SampleCount
	}
	if request.ParallelScoring != nil {
		cfg.ParallelScoring = *request.ParallelScoring
	}
	if request.ResizeFactor != nil {
		cfg.ResizeFactor = *request.ResizeFactor
	}
	if request.BlurKernel != nil {
		cfg.BlurKernel = *request.BlurKernel
	}
	if request.BlurSigma != nil {
		cfg.BlurSigma = *request.BlurSigma
	}
	if request.ROI != "" {
		cfg.ROI = analyzer.ROIMode(request.ROI)
	}
	if request.ROIFraction != nil {
		cfg.ROIFraction = *request.ROIFraction
	}
	if request.Cleanup != "" {
		cfg.Cleanup = analyzer.CleanupOp(request.Cleanup)
	}
	if request.CleanupIterations != nil {
		cfg.CleanupIterations = *request.CleanupIterations
	}
	if request.CleanupKernelSize != nil {
		cfg.CleanupKernelSize = *request.CleanupKernelSize
	}
	if request.SobelKernelSize != nil {
		cfg.SobelKernelSize = *request.SobelKernelSize
	}
	if request.MaxIterations != nil {
		cfg.MaxIterations = *request.MaxIterations
	}
	if request.Tolerance != nil {
		cfg.Tolerance = *request.Tolerance
	}
	if request.ParkAtBest != nil {
		cfg.ParkAtBest = *request.ParkAtBest
	}

	return cfg, nil
}
