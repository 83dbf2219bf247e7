// Package focus implements the autofocus control loop: a search strategy
// drives a motion target through candidate positions while averaged
// sharpness scores from the camera pick the best focus.
package focus

import (
	"strings"

	"github.com/teddyrendahl/psbeam/internal/analyzer"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// Strategy selects how the search walks the focus axis.
type Strategy string

const (
	// StrategyScan exhaustively visits every configured position.
	StrategyScan Strategy = "scan"
	// StrategyHillClimb runs a derivative-free optimizer seeded at the
	// current position.
	StrategyHillClimb Strategy = "hillclimb"
)

// ParseStrategy resolves a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(name)) {
	case StrategyScan:
		return StrategyScan, nil
	case StrategyHillClimb:
		return StrategyHillClimb, nil
	default:
		return "", apperrors.NewInvalidConfig("unknown search strategy "+name, nil)
	}
}

// Config collects every knob of a focus run. Validate is called once,
// before any hardware is touched; a config that passes never fails
// mid-run for configuration reasons.
type Config struct {
	// Preprocessing pipeline.
	ResizeFactor float64
	BlurKernel   [2]int
	BlurSigma    float64

	ROI         analyzer.ROIMode
	ROIFraction float64

	Cleanup           analyzer.CleanupOp
	CleanupIterations int
	CleanupKernelSize int

	// Scoring.
	Metric          analyzer.Metric
	SobelKernelSize int
	SampleCount     int
	// ParallelScoring scores the sampled frames concurrently. Frames are
	// still captured one at a time.
	ParallelScoring bool

	// Search.
	Strategy  Strategy
	Positions *PositionSpec // required for scan

	// Hill climb tuning.
	MaxIterations int
	Tolerance     float64

	// ParkAtBest moves the target back to the best position once the
	// search converges, leaving the rig in focus.
	ParkAtBest bool
}

// DefaultConfig mirrors the conventional beamline defaults: full
// resolution, 17x17 blur with derived sigma, three-sample averaging,
// Laplacian scoring, exhaustive scan.
func DefaultConfig() Config {
	return Config{
		ResizeFactor:      1.0,
		BlurKernel:        [2]int{17, 17},
		BlurSigma:         0,
		ROIFraction:       1.0,
		CleanupIterations: 1,
		CleanupKernelSize: 5,
		Metric:            analyzer.MetricLaplacian,
		SobelKernelSize:   5,
		SampleCount:       3,
		Strategy:          StrategyScan,
		MaxIterations:     100,
		Tolerance:         1e-3,
		ParkAtBest:        true,
	}
}

// Validate checks the whole config. Arity against the motion target is
// checked separately when the controller is built.
func (c Config) Validate() error {
	if err := c.preprocessorOptions().Validate(); err != nil {
		return err
	}
	if c.SampleCount < 1 {
		return apperrors.NewInvalidConfig("sample count must be at least 1", nil)
	}

	switch c.Metric {
	case analyzer.MetricLaplacian:
	case analyzer.MetricSobel:
		if c.SobelKernelSize != 3 && c.SobelKernelSize != 5 {
			return apperrors.NewInvalidConfig("sobel kernel size must be 3 or 5", nil)
		}
	default:
		return apperrors.NewUnknownMetric(string(c.Metric))
	}

	switch c.Strategy {
	case StrategyScan:
		if c.Positions == nil {
			return apperrors.NewInvalidConfig("scan strategy requires positions", nil)
		}
		if err := c.Positions.Validate(); err != nil {
			return err
		}
	case StrategyHillClimb:
		if c.MaxIterations < 1 {
			return apperrors.NewInvalidConfig("max iterations must be at least 1", nil)
		}
		if c.Tolerance <= 0 {
			return apperrors.NewInvalidConfig("tolerance must be positive", nil)
		}
	default:
		return apperrors.NewInvalidConfig("unknown search strategy "+string(c.Strategy), nil)
	}
	return nil
}

// preprocessorOptions maps the config onto the frame pipeline.
func (c Config) preprocessorOptions() analyzer.Options {
	return analyzer.Options{
		ResizeFactor:      c.ResizeFactor,
		BlurKernel:        c.BlurKernel,
		BlurSigma:         c.BlurSigma,
		ROI:               c.ROI,
		ROIFraction:       c.ROIFraction,
		Cleanup:           c.Cleanup,
		CleanupIterations: c.CleanupIterations,
		CleanupKernel:     analyzer.Kernel{Width: c.CleanupKernelSize, Height: c.CleanupKernelSize},
	}
}
