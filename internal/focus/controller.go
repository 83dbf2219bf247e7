package focus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	"github.com/teddyrendahl/psbeam/internal/camera"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/logger"
	"github.com/teddyrendahl/psbeam/internal/motion"
	"github.com/teddyrendahl/psbeam/pkg/validation"
)

// State describes where a controller is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateSearching State = "searching"
	StateConverged State = "converged"
	StateAborted   State = "aborted"
)

// Result is the outcome of a converged run. An aborted run produces no
// result; partial observations are deliberately discarded because the rig
// may not have reached the positions they claim.
type Result struct {
	BestPosition []float64             `json:"best_position"`
	BestScore    float64               `json:"best_score"`
	Trials       int                   `json:"trials"`
	Elapsed      time.Duration         `json:"elapsed"`
	Confidence   string                `json:"confidence"`
	Issues       []validation.RunIssue `json:"issues,omitempty"`
}

// Controller runs focus searches over one motion target and one camera
// source. A controller executes a single run at a time; starting a second
// run while one is in flight is a conflict.
type Controller struct {
	cfg       Config
	target    motion.Target
	hooks     Hooks
	validator *validation.RunValidator

	// scoreFn evaluates the averaged sharpness at the current position.
	// Held as a field so in-package tests can substitute landscapes.
	scoreFn func(ctx context.Context) (float64, error)

	mu    sync.Mutex
	state State

	// Per-run bookkeeping, touched only by the goroutine driving Focus.
	trials int
	scores []float64
	best   *TrialInfo
}

// NewController validates the full configuration, including arity against
// the motion target, before anything can move. A controller that
// constructs successfully will not fail mid-run for configuration reasons.
func NewController(cfg Config, target motion.Target, source camera.Source, hooks Hooks) (*Controller, error) {
	if target == nil {
		return nil, apperrors.NewInvalidConfig("focus controller requires a motion target", nil)
	}
	if source == nil {
		return nil, apperrors.NewInvalidConfig("focus controller requires a camera source", nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Strategy == StrategyScan && cfg.Positions.Arity() != target.Arity() {
		return nil, apperrors.NewInvalidConfig(
			"position spec arity does not match motion target arity", nil)
	}

	pre, err := analyzer.NewPreprocessor(cfg.preprocessorOptions())
	if err != nil {
		return nil, err
	}
	scorer, err := analyzer.NewScorer(cfg.Metric, cfg.SobelKernelSize)
	if err != nil {
		return nil, err
	}
	avg, err := NewAverager(source, pre, scorer, cfg.SampleCount, cfg.ParallelScoring)
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:       cfg,
		target:    target,
		hooks:     hooks,
		validator: validation.NewRunValidator(),
		scoreFn:   avg.Score,
		state:     StateIdle,
	}, nil
}

// State reports the controller lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Focus executes one search run: the strategy walks the target through
// candidate positions, every position is scored, and on success the
// target is parked at the best position found. The returned result names
// the best position and score; any motion, acquisition or scoring failure
// aborts the run and discards partial observations.
func (c *Controller) Focus(ctx context.Context) (*Result, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	start := time.Now()

	info := RunInfo{
		Target:   c.target.Name(),
		Strategy: c.cfg.Strategy,
		Metric:   c.cfg.Metric,
	}
	if c.cfg.Strategy == StrategyScan {
		info.PlannedCount = c.cfg.Positions.Count()
	}
	logger.WithFields(logrus.Fields{
		"target":   info.Target,
		"strategy": info.Strategy,
		"metric":   info.Metric,
		"planned":  info.PlannedCount,
	}).Info("Focus run started")
	c.hooks.runStarted(info)

	err := c.search(ctx)
	if err == nil && c.best == nil {
		err = apperrors.NewInternal("search finished without evaluating any position", nil)
	}
	if err == nil && c.cfg.ParkAtBest {
		err = c.park(ctx)
	}
	if err != nil {
		c.setState(StateAborted)
		logger.WithError(err).WithFields(logrus.Fields{
			"target": info.Target,
			"trials": c.trials,
		}).Error("Focus run aborted")
		c.hooks.aborted(err)
		return nil, err
	}

	result := c.buildResult(time.Since(start))
	c.setState(StateConverged)
	logger.WithFields(logrus.Fields{
		"target":        info.Target,
		"best_position": apperrors.FormatPosition(result.BestPosition),
		"best_score":    result.BestScore,
		"trials":        result.Trials,
		"confidence":    result.Confidence,
	}).Info("Focus run converged")
	c.hooks.converged(*result)
	return result, nil
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSearching {
		return apperrors.NewConflict("focus run already in progress")
	}
	c.state = StateSearching
	c.trials = 0
	c.scores = nil
	c.best = nil
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) search(ctx context.Context) error {
	switch c.cfg.Strategy {
	case StrategyScan:
		return c.runScan(ctx)
	case StrategyHillClimb:
		return c.runHillClimb(ctx)
	default:
		return apperrors.NewInvalidConfig("unknown search strategy "+string(c.cfg.Strategy), nil)
	}
}

// evaluate runs one trial: move the target, score the frame burst, and
// record the observation. Failures carry the trial number and position.
func (c *Controller) evaluate(ctx context.Context, position []float64) (float64, error) {
	c.trials++
	trial := c.trials
	pos := append([]float64(nil), position...)

	if err := ctx.Err(); err != nil {
		return 0, apperrors.NewCanceled("focus run interrupted", err).AtTrial(trial, pos)
	}

	c.hooks.trialStarted(trial, pos)
	started := time.Now()

	if err := c.target.Move(ctx, pos); err != nil {
		return 0, tagTrial(err, trial, pos)
	}
	score, err := c.scoreFn(ctx)
	if err != nil {
		return 0, tagTrial(err, trial, pos)
	}

	info := TrialInfo{
		Number:   trial,
		Position: pos,
		Score:    score,
		Elapsed:  time.Since(started),
	}
	c.observe(info)
	logger.WithFields(logrus.Fields{
		"trial":    trial,
		"position": apperrors.FormatPosition(pos),
		"score":    score,
	}).Debug("Focus trial completed")
	c.hooks.trialCompleted(info)
	return score, nil
}

// observe folds a completed trial into the run record. Strictly greater
// wins, so the earliest of tied best scores is kept.
func (c *Controller) observe(info TrialInfo) {
	c.scores = append(c.scores, info.Score)
	if c.best == nil || info.Score > c.best.Score {
		best := info
		c.best = &best
	}
}

// park moves the target back to the best observed position so a converged
// run leaves the rig in focus.
func (c *Controller) park(ctx context.Context) error {
	if err := c.target.Move(ctx, c.best.Position); err != nil {
		return tagTrial(err, c.best.Number, c.best.Position)
	}
	return nil
}

func (c *Controller) buildResult(elapsed time.Duration) *Result {
	issues := c.validator.AssessRun(validation.RunMetrics{
		Scores:           c.scores,
		BestTrial:        c.best.Number,
		BoundaryRelevant: c.cfg.Strategy == StrategyScan,
	})
	return &Result{
		BestPosition: append([]float64(nil), c.best.Position...),
		BestScore:    c.best.Score,
		Trials:       c.trials,
		Elapsed:      elapsed,
		Confidence:   c.validator.ConfidenceLevel(issues),
		Issues:       issues,
	}
}

// tagTrial stamps trial coordinates onto a failure, preserving the
// original kind when the error is already structured.
func tagTrial(err error, trial int, position []float64) error {
	if appErr, ok := apperrors.AsError(err); ok {
		return appErr.AtTrial(trial, position)
	}
	return apperrors.NewInternal("trial failed", err).AtTrial(trial, position)
}
