// Package models holds the wire-level request and response types of the
// focus service API.
package models

import (
	"time"

	"github.com/teddyrendahl/psbeam/pkg/validation"
)

// AxisRange is one scan table entry: a half-open [start, stop) interval
// walked with the given step.
type AxisRange struct {
	Start float64 `json:"start"`
	Stop  float64 `json:"stop"`
	Step  float64 `json:"step"`
}

// FocusRequest starts a focus run. Every field is optional; omitted
// fields fall back to the rig defaults. Exactly one of Actuator and
// Actuators selects the motion target.
type FocusRequest struct {
	Camera    string   `json:"camera,omitempty"`
	Actuator  string   `json:"actuator,omitempty"`
	Actuators []string `json:"actuators,omitempty"`

	Strategy  string      `json:"strategy,omitempty"`
	Metric    string      `json:"metric,omitempty"`
	Positions []AxisRange `json:"positions,omitempty"`

	SampleCount     *int     `json:"sample_count,omitempty"`
	ParallelScoring *bool    `json:"parallel_scoring,omitempty"`
	ResizeFactor    *float64 `json:"resize_factor,omitempty"`
	BlurKernel      *[2]int  `json:"blur_kernel,omitempty"`
	BlurSigma       *float64 `json:"blur_sigma,omitempty"`

	ROI         string   `json:"roi,omitempty"`
	ROIFraction *float64 `json:"roi_fraction,omitempty"`

	Cleanup           string `json:"cleanup,omitempty"`
	CleanupIterations *int   `json:"cleanup_iterations,omitempty"`
	CleanupKernelSize *int   `json:"cleanup_kernel_size,omitempty"`

	SobelKernelSize *int     `json:"sobel_kernel_size,omitempty"`
	MaxIterations   *int     `json:"max_iterations,omitempty"`
	Tolerance       *float64 `json:"tolerance,omitempty"`
	ParkAtBest      *bool    `json:"park_at_best,omitempty"`
}

// BestResult names the sharpest position a run found
type BestResult struct {
	Position []float64 `json:"position"`
	Score    float64   `json:"score"`
}

// TrialEntry records one scored position of a run
type TrialEntry struct {
	Number    int       `json:"number"`
	Position  []float64 `json:"position"`
	Score     float64   `json:"score"`
	ElapsedMS int64     `json:"elapsed_ms"`
}

// RunResponse is the full record of a focus run
type RunResponse struct {
	ID         string                `json:"id"`
	State      string                `json:"state"`
	Target     string                `json:"target"`
	Camera     string                `json:"camera"`
	Strategy   string                `json:"strategy"`
	Metric     string                `json:"metric"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
	Trials     []TrialEntry          `json:"trials,omitempty"`
	Best       *BestResult           `json:"best,omitempty"`
	Confidence string                `json:"confidence,omitempty"`
	Issues     []validation.RunIssue `json:"issues,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// RunSummary is the list view of a focus run
type RunSummary struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Target    string      `json:"target"`
	Strategy  string      `json:"strategy"`
	StartedAt time.Time   `json:"started_at"`
	Trials    int         `json:"trials"`
	Best      *BestResult `json:"best,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
