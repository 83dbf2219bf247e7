package focus

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	"github.com/teddyrendahl/psbeam/internal/logger"
)

// RunInfo describes a run at the moment it starts.
type RunInfo struct {
	Target       string          `json:"target"`
	Strategy     Strategy        `json:"strategy"`
	Metric       analyzer.Metric `json:"metric"`
	PlannedCount int             `json:"planned_count"` // 0 when the strategy decides as it goes
}

// TrialInfo describes one completed trial. Frames never travel through
// hooks; observers get positions and scores only.
type TrialInfo struct {
	Number   int           `json:"number"` // 1-based
	Position []float64     `json:"position"`
	Score    float64       `json:"score"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Hooks are optional observation points on the control loop. They are
// called synchronously from the run goroutine, in order. A panicking hook
// is logged and otherwise ignored; it never takes down the run.
type Hooks struct {
	OnRunStarted     func(info RunInfo)
	OnTrialStarted   func(number int, position []float64)
	OnTrialCompleted func(trial TrialInfo)
	OnConverged      func(result Result)
	OnAborted        func(err error)
}

// fire runs a hook body with panic isolation.
func fire(name string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"hook":  name,
				"panic": r,
			}).Error("Focus hook panicked")
		}
	}()
	fn()
}

func (h Hooks) runStarted(info RunInfo) {
	if h.OnRunStarted != nil {
		fire("run_started", func() { h.OnRunStarted(info) })
	}
}

func (h Hooks) trialStarted(number int, position []float64) {
	if h.OnTrialStarted != nil {
		fire("trial_started", func() { h.OnTrialStarted(number, position) })
	}
}

func (h Hooks) trialCompleted(trial TrialInfo) {
	if h.OnTrialCompleted != nil {
		fire("trial_completed", func() { h.OnTrialCompleted(trial) })
	}
}

func (h Hooks) converged(result Result) {
	if h.OnConverged != nil {
		fire("run_converged", func() { h.OnConverged(result) })
	}
}

func (h Hooks) aborted(err error) {
	if h.OnAborted != nil {
		fire("run_aborted", func() { h.OnAborted(err) })
	}
}
