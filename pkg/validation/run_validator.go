package validation

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RunThresholds defines configurable thresholds for focus run assessment
type RunThresholds struct {
	// Peak prominence: ratio of the best score to the mean of the rest
	MinPeakProminence    float64
	StrongPeakProminence float64

	// Minimum best score to count as a structured scene at all
	MinScore float64

	// Minimum number of trials for a trustworthy sweep
	MinTrials int
}

// DefaultRunThresholds returns the default run assessment thresholds
func DefaultRunThresholds() RunThresholds {
	return RunThresholds{
		MinPeakProminence:    1.05,
		StrongPeakProminence: 1.5,
		MinScore:             1.0,
		MinTrials:            3,
	}
}

// RunValidator assesses how trustworthy a completed focus run is
type RunValidator struct {
	thresholds RunThresholds
}

// NewRunValidator creates a run validator with default thresholds
func NewRunValidator() *RunValidator {
	return &RunValidator{
		thresholds: DefaultRunThresholds(),
	}
}

// NewRunValidatorWithThresholds creates a run validator with custom thresholds
func NewRunValidatorWithThresholds(thresholds RunThresholds) *RunValidator {
	return &RunValidator{
		thresholds: thresholds,
	}
}

// RunIssue represents one finding about a completed run
type RunIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"` // "error", "warning", "info"
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// RunMetrics represents the observations needed to assess a run
type RunMetrics struct {
	// Scores holds every trial score in trial order
	Scores []float64
	// BestTrial is the 1-based trial number of the best score
	BestTrial int
	// BoundaryRelevant is true when the trial order maps to a spatial
	// sweep, so a best score at either end means the range was too narrow
	BoundaryRelevant bool
}

// AssessRun inspects a completed run and returns every issue found
func (rv *RunValidator) AssessRun(metrics RunMetrics) []RunIssue {
	var issues []RunIssue
	if len(metrics.Scores) == 0 {
		return issues
	}

	best := metrics.Scores[metrics.BestTrial-1]

	// 1. Featureless scene
	if best < rv.thresholds.MinScore {
		issues = append(issues, RunIssue{
			Type:        "low_score",
			Message:     "Sharpness stayed near zero for the whole run. Check that the beam is on the camera.",
			Severity:    "error",
			ActualValue: best,
			Threshold:   rv.thresholds.MinScore,
		})
	}

	// 2. Sweep length
	if len(metrics.Scores) < rv.thresholds.MinTrials {
		issues = append(issues, RunIssue{
			Type:        "few_trials",
			Message:     "Too few positions were tried to trust the result. Use a finer step or more iterations.",
			Severity:    "warning",
			ActualValue: float64(len(metrics.Scores)),
			Threshold:   float64(rv.thresholds.MinTrials),
		})
	}

	// 3. Peak prominence
	if prominence, ok := rv.peakProminence(metrics); ok {
		if prominence < rv.thresholds.MinPeakProminence {
			issues = append(issues, RunIssue{
				Type:        "flat_landscape",
				Message:     "Best focus barely stands out from the rest of the sweep. Widen the range or check the optics.",
				Severity:    "error",
				ActualValue: prominence,
				Threshold:   rv.thresholds.MinPeakProminence,
			})
		} else if prominence < rv.thresholds.StrongPeakProminence {
			issues = append(issues, RunIssue{
				Type:        "weak_peak",
				Message:     "Best focus stands out only weakly. Treat the result with care.",
				Severity:    "warning",
				ActualValue: prominence,
				Threshold:   rv.thresholds.StrongPeakProminence,
			})
		}
	}

	// 4. Edge peak
	if metrics.BoundaryRelevant && len(metrics.Scores) > 1 &&
		(metrics.BestTrial == 1 || metrics.BestTrial == len(metrics.Scores)) {
		issues = append(issues, RunIssue{
			Type:     "edge_peak",
			Message:  "Best focus sits at the edge of the scanned range. Widen the range and rerun.",
			Severity: "warning",
		})
	}

	return issues
}

// peakProminence computes best over the mean of the remaining scores.
// With a single trial, or a zero mean, prominence is undefined.
func (rv *RunValidator) peakProminence(metrics RunMetrics) (float64, bool) {
	if len(metrics.Scores) < 2 {
		return 0, false
	}
	best := metrics.Scores[metrics.BestTrial-1]
	others := make([]float64, 0, len(metrics.Scores)-1)
	for i, s := range metrics.Scores {
		if i != metrics.BestTrial-1 {
			others = append(others, s)
		}
	}
	mean := stat.Mean(others, nil)
	if mean <= 0 || math.IsNaN(mean) {
		return 0, false
	}
	return best / mean, true
}

// ConfidenceLevel condenses a set of issues into a single rating
func (rv *RunValidator) ConfidenceLevel(issues []RunIssue) string {
	if rv.HasCriticalIssues(issues) {
		return "low"
	}
	if len(issues) > 0 {
		return "medium"
	}
	return "high"
}

// ConvertIssuesToMessages converts run issues to simple message strings
func (rv *RunValidator) ConvertIssuesToMessages(issues []RunIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}

// HasCriticalIssues checks if there are any critical (error severity) issues
func (rv *RunValidator) HasCriticalIssues(issues []RunIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}
