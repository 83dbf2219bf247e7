package focus

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// convergeWindow is how many optimizer iterations the best score must
// stay flat, within the configured tolerance, before the climb is
// declared converged.
const convergeWindow = 10

// runHillClimb seeds a derivative-free Nelder-Mead search at the target's
// current position and lets it walk toward the sharpest image. Scores are
// negated because the optimizer minimizes.
//
// The optimizer has no error channel, so the first collaborator failure
// is captured and every later probe returns +Inf without touching the
// rig; the captured failure is what the run reports.
func (c *Controller) runHillClimb(ctx context.Context) error {
	seed, err := c.target.Positions()
	if err != nil {
		if appErr, ok := apperrors.AsError(err); ok {
			return appErr
		}
		return apperrors.NewMotion("reading start position failed", err)
	}

	var evalErr error
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			score, err := c.evaluate(ctx, x)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return -score
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   c.cfg.Tolerance,
			Iterations: convergeWindow,
		},
		MajorIterations: c.cfg.MaxIterations,
	}

	_, optErr := optimize.Minimize(problem, append([]float64(nil), seed...), settings, &optimize.NelderMead{})
	if evalErr != nil {
		return evalErr
	}
	if optErr != nil {
		return apperrors.NewInternal("hill climb optimizer failed", optErr)
	}
	return nil
}
