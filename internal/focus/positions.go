package focus

import (
	"fmt"
	"math"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// AxisRange describes the candidate positions for one axis as a half-open
// interval: Start is included, Stop is not, Step is the stride between
// consecutive positions.
type AxisRange struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop"`
	Step  float64 `json:"step" yaml:"step"`
}

// Count reports how many positions the range produces.
func (r AxisRange) Count() int {
	n := math.Ceil((r.Stop - r.Start) / r.Step)
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return int(n)
}

// Validate rejects ranges that can never reach their stop value. A range
// that walks away from Stop, or a zero step, would otherwise only fail
// after the rig started moving.
func (r AxisRange) Validate() error {
	if r.Step == 0 {
		return apperrors.NewInvalidConfig("range step must be non-zero", nil)
	}
	if r.Count() < 1 {
		return apperrors.NewInvalidConfig(
			fmt.Sprintf("range [%v, %v) with step %v produces no positions", r.Start, r.Stop, r.Step), nil)
	}
	return nil
}

// position computes the i-th candidate directly from the range endpoints
// so long walks do not accumulate floating point drift.
func (r AxisRange) position(i int) float64 {
	return r.Start + float64(i)*r.Step
}

// PositionSpec is the scan table for a motion target: one range per axis,
// walked in lockstep. All ranges must produce the same number of
// positions; trial k takes the k-th value of every axis.
type PositionSpec struct {
	Axes []AxisRange `json:"axes" yaml:"axes"`
}

// NewPositionSpec builds and validates a lockstep scan table.
func NewPositionSpec(axes ...AxisRange) (*PositionSpec, error) {
	spec := &PositionSpec{Axes: axes}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate checks every axis range and the lockstep length agreement.
func (s *PositionSpec) Validate() error {
	if len(s.Axes) == 0 {
		return apperrors.NewInvalidConfig("position spec has no axes", nil)
	}
	count := -1
	for i, axis := range s.Axes {
		if err := axis.Validate(); err != nil {
			return err
		}
		if count == -1 {
			count = axis.Count()
			continue
		}
		if axis.Count() != count {
			return apperrors.NewInvalidConfig(
				fmt.Sprintf("axis %d produces %d positions, expected %d", i, axis.Count(), count), nil)
		}
	}
	return nil
}

// Count reports the number of lockstep trials the spec produces.
func (s *PositionSpec) Count() int {
	if len(s.Axes) == 0 {
		return 0
	}
	return s.Axes[0].Count()
}

// Arity reports the number of axes.
func (s *PositionSpec) Arity() int {
	return len(s.Axes)
}

// Enumerator returns a single-use iterator over the spec. Positions are
// produced on demand; a fresh enumerator is needed for every traversal.
func (s *PositionSpec) Enumerator() *PositionEnumerator {
	return &PositionEnumerator{spec: s, count: s.Count()}
}

// PositionEnumerator walks a PositionSpec once, front to back.
type PositionEnumerator struct {
	spec  *PositionSpec
	count int
	next  int
}

// Next returns the next lockstep position vector, or false when the
// sequence is exhausted. The returned slice is owned by the caller.
func (e *PositionEnumerator) Next() ([]float64, bool) {
	if e.next >= e.count {
		return nil, false
	}
	pos := make([]float64, len(e.spec.Axes))
	for i, axis := range e.spec.Axes {
		pos[i] = axis.position(e.next)
	}
	e.next++
	return pos, true
}

// Remaining reports how many positions the enumerator has not yet produced.
func (e *PositionEnumerator) Remaining() int {
	return e.count - e.next
}
