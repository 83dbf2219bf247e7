package motion

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// Target is the motion surface a focus search drives. It hides whether
// one axis or several move together; position vectors always carry one
// value per axis in configuration order.
type Target interface {
	// Name identifies the target, joining axis names for groups.
	Name() string
	// Arity is the number of axes and the required position vector length.
	Arity() int
	// Move issues the move on every axis before waiting on any of them,
	// then blocks until all axes have settled.
	Move(ctx context.Context, position []float64) error
	// Positions reads back the current position of every axis.
	Positions() ([]float64, error)
}

// Single adapts one actuator to the Target interface.
type Single struct {
	axis Actuator
}

// NewSingle wraps a single axis.
func NewSingle(axis Actuator) (*Single, error) {
	if axis == nil {
		return nil, apperrors.NewInvalidConfig("target requires an actuator", nil)
	}
	return &Single{axis: axis}, nil
}

func (s *Single) Name() string {
	return s.axis.Name()
}

func (s *Single) Arity() int {
	return 1
}

func (s *Single) Move(ctx context.Context, position []float64) error {
	if len(position) != 1 {
		return apperrors.NewInvalidConfig(
			fmt.Sprintf("target %s expects 1 coordinate, got %d", s.Name(), len(position)), nil)
	}
	if err := s.axis.MoveTo(ctx, position[0]); err != nil {
		return wrapMotion(s.axis.Name(), err)
	}
	if err := s.axis.WaitSettled(ctx); err != nil {
		return wrapMotion(s.axis.Name(), err)
	}
	return nil
}

func (s *Single) Positions() ([]float64, error) {
	pos, err := s.axis.Position()
	if err != nil {
		return nil, wrapMotion(s.axis.Name(), err)
	}
	return []float64{pos}, nil
}

// Group moves several axes in lockstep. Move issues every axis move
// up front so the axes travel concurrently, then settles them in order.
type Group struct {
	name string
	axes []Actuator
}

// NewGroup builds a lockstep group over the given axes.
func NewGroup(axes ...Actuator) (*Group, error) {
	if len(axes) == 0 {
		return nil, apperrors.NewInvalidConfig("group target requires at least one actuator", nil)
	}
	names := make([]string, len(axes))
	for i, axis := range axes {
		if axis == nil {
			return nil, apperrors.NewInvalidConfig("group target contains a nil actuator", nil)
		}
		names[i] = axis.Name()
	}
	return &Group{name: strings.Join(names, "+"), axes: axes}, nil
}

func (g *Group) Name() string {
	return g.name
}

func (g *Group) Arity() int {
	return len(g.axes)
}

func (g *Group) Move(ctx context.Context, position []float64) error {
	if len(position) != len(g.axes) {
		return apperrors.NewInvalidConfig(
			fmt.Sprintf("target %s expects %d coordinates, got %d", g.name, len(g.axes), len(position)), nil)
	}
	// All moves go out before any settle so the axes overlap their travel.
	for i, axis := range g.axes {
		if err := axis.MoveTo(ctx, position[i]); err != nil {
			return wrapMotion(axis.Name(), err)
		}
	}
	for _, axis := range g.axes {
		if err := axis.WaitSettled(ctx); err != nil {
			return wrapMotion(axis.Name(), err)
		}
	}
	return nil
}

func (g *Group) Positions() ([]float64, error) {
	positions := make([]float64, len(g.axes))
	for i, axis := range g.axes {
		pos, err := axis.Position()
		if err != nil {
			return nil, wrapMotion(axis.Name(), err)
		}
		positions[i] = pos
	}
	return positions, nil
}

// TargetSpec names the motion target of a focus run. Exactly one of the
// variants must be set; Resolve rejects ambiguous or empty specs before
// any axis is touched.
type TargetSpec struct {
	// Actuator names a single axis.
	Actuator string `json:"actuator,omitempty" yaml:"actuator,omitempty"`
	// Actuators names an ordered lockstep group.
	Actuators []string `json:"actuators,omitempty" yaml:"actuators,omitempty"`
	// Target carries an already-built target, for callers wiring
	// actuators programmatically.
	Target Target `json:"-" yaml:"-"`
}

// Resolve turns the spec into a concrete Target using the registry.
func (spec TargetSpec) Resolve(registry Registry) (Target, error) {
	set := 0
	if spec.Actuator != "" {
		set++
	}
	if len(spec.Actuators) > 0 {
		set++
	}
	if spec.Target != nil {
		set++
	}
	if set == 0 {
		return nil, apperrors.NewInvalidConfig("no motion target specified", nil)
	}
	if set > 1 {
		return nil, apperrors.NewInvalidConfig("motion target specified more than one way", nil)
	}

	switch {
	case spec.Target != nil:
		return spec.Target, nil
	case spec.Actuator != "":
		axis, ok := registry.Actuator(spec.Actuator)
		if !ok {
			return nil, apperrors.NewInvalidConfig(
				fmt.Sprintf("unknown actuator %q", spec.Actuator), nil)
		}
		return NewSingle(axis)
	default:
		axes := make([]Actuator, len(spec.Actuators))
		for i, name := range spec.Actuators {
			axis, ok := registry.Actuator(name)
			if !ok {
				return nil, apperrors.NewInvalidConfig(
					fmt.Sprintf("unknown actuator %q", name), nil)
			}
			axes[i] = axis
		}
		return NewGroup(axes...)
	}
}

// wrapMotion keeps already-classified errors intact and tags everything
// else as a motion failure on the named axis.
func wrapMotion(axis string, err error) error {
	if _, ok := apperrors.AsError(err); ok {
		return err
	}
	return apperrors.NewMotion(fmt.Sprintf("axis %s: %v", axis, err), err)
}
