// Package motion models the actuators a focus run drives: single axes,
// lockstep groups, and the concrete drivers behind them.
package motion

import "context"

// Actuator is one controllable axis. Implementations map positions in
// engineering units onto whatever the hardware understands.
//
// MoveTo requests a move and may return before the axis has physically
// arrived; WaitSettled blocks until any in-flight move has finished.
// Splitting the two lets a group issue every axis move before waiting on
// any of them.
type Actuator interface {
	// Name identifies the axis in rig configs, events and errors.
	Name() string
	// MoveTo requests a move to the target position.
	MoveTo(ctx context.Context, position float64) error
	// WaitSettled blocks until the last requested move has completed.
	WaitSettled(ctx context.Context) error
	// Position reads back the current axis position.
	Position() (float64, error)
}

// Registry resolves actuators by name. The rig configuration implements
// this for target resolution.
type Registry interface {
	Actuator(name string) (Actuator, bool)
}
