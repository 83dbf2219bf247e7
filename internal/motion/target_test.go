package motion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// fakeAxis records calls into a log shared across a group so ordering
// between axes can be asserted.
type fakeAxis struct {
	name     string
	log      *[]string
	position float64
	moveErr  error
	waitErr  error
	posErr   error
}

func (f *fakeAxis) Name() string { return f.name }

func (f *fakeAxis) MoveTo(ctx context.Context, position float64) error {
	*f.log = append(*f.log, fmt.Sprintf("move %s %g", f.name, position))
	if f.moveErr != nil {
		return f.moveErr
	}
	f.position = position
	return nil
}

func (f *fakeAxis) WaitSettled(ctx context.Context) error {
	*f.log = append(*f.log, fmt.Sprintf("wait %s", f.name))
	return f.waitErr
}

func (f *fakeAxis) Position() (float64, error) {
	if f.posErr != nil {
		return 0, f.posErr
	}
	return f.position, nil
}

type fakeRegistry map[string]Actuator

func (r fakeRegistry) Actuator(name string) (Actuator, bool) {
	axis, ok := r[name]
	return axis, ok
}

func TestSingleMoveThenSettle(t *testing.T) {
	var log []string
	axis := &fakeAxis{name: "focus", log: &log}
	target, err := NewSingle(axis)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := target.Move(context.Background(), []float64{2.5}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []string{"move focus 2.5", "wait focus"}
	if len(log) != len(want) {
		t.Fatalf("Expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, log[i])
		}
	}

	positions, err := target.Positions()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(positions) != 1 || positions[0] != 2.5 {
		t.Errorf("Expected [2.5], got %v", positions)
	}
}

func TestSingleRejectsWrongArity(t *testing.T) {
	var log []string
	target, err := NewSingle(&fakeAxis{name: "focus", log: &log})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = target.Move(context.Background(), []float64{1, 2})
	if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config, got %v", err)
	}
	if len(log) != 0 {
		t.Errorf("Expected no axis calls, got %v", log)
	}
}

func TestGroupIssuesAllMovesBeforeAnySettle(t *testing.T) {
	var log []string
	a := &fakeAxis{name: "a", log: &log}
	b := &fakeAxis{name: "b", log: &log}
	c := &fakeAxis{name: "c", log: &log}
	group, err := NewGroup(a, b, c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := group.Move(context.Background(), []float64{1, 2, 3}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []string{"move a 1", "move b 2", "move c 3", "wait a", "wait b", "wait c"}
	if len(log) != len(want) {
		t.Fatalf("Expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("Expected %q at %d, got %q", want[i], i, log[i])
		}
	}
}

func TestGroupNameJoinsAxes(t *testing.T) {
	var log []string
	group, err := NewGroup(&fakeAxis{name: "tx", log: &log}, &fakeAxis{name: "ty", log: &log})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if group.Name() != "tx+ty" {
		t.Errorf("Expected tx+ty, got %s", group.Name())
	}
	if group.Arity() != 2 {
		t.Errorf("Expected arity 2, got %d", group.Arity())
	}
}

func TestGroupRejectsWrongArity(t *testing.T) {
	var log []string
	group, err := NewGroup(&fakeAxis{name: "a", log: &log}, &fakeAxis{name: "b", log: &log})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = group.Move(context.Background(), []float64{1})
	if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config, got %v", err)
	}
	if len(log) != 0 {
		t.Errorf("Expected no axis calls before validation, got %v", log)
	}
}

func TestGroupMoveFailureStopsRemainingMoves(t *testing.T) {
	var log []string
	a := &fakeAxis{name: "a", log: &log}
	b := &fakeAxis{name: "b", log: &log, moveErr: errors.New("stalled")}
	c := &fakeAxis{name: "c", log: &log}
	group, err := NewGroup(a, b, c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	err = group.Move(context.Background(), []float64{1, 2, 3})
	if !apperrors.IsKind(err, apperrors.KindMotion) {
		t.Errorf("Expected motion kind, got %v", err)
	}
	// c is never commanded once b fails.
	want := []string{"move a 1", "move b 2"}
	if len(log) != len(want) {
		t.Errorf("Expected %v, got %v", want, log)
	}
}

func TestGroupPositions(t *testing.T) {
	var log []string
	a := &fakeAxis{name: "a", log: &log, position: 1.5}
	b := &fakeAxis{name: "b", log: &log, position: -2}
	group, err := NewGroup(a, b)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	positions, err := group.Positions()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(positions) != 2 || positions[0] != 1.5 || positions[1] != -2 {
		t.Errorf("Expected [1.5 -2], got %v", positions)
	}
}

func TestNewGroupValidation(t *testing.T) {
	if _, err := NewGroup(); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config for empty group, got %v", err)
	}
	var log []string
	if _, err := NewGroup(&fakeAxis{name: "a", log: &log}, nil); !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config for nil axis, got %v", err)
	}
}

func TestTargetSpecResolve(t *testing.T) {
	var log []string
	registry := fakeRegistry{
		"focus": &fakeAxis{name: "focus", log: &log},
		"tilt":  &fakeAxis{name: "tilt", log: &log},
	}

	tests := []struct {
		name     string
		spec     TargetSpec
		wantName string
		wantErr  bool
	}{
		{"single", TargetSpec{Actuator: "focus"}, "focus", false},
		{"group", TargetSpec{Actuators: []string{"focus", "tilt"}}, "focus+tilt", false},
		{"empty", TargetSpec{}, "", true},
		{"ambiguous", TargetSpec{Actuator: "focus", Actuators: []string{"tilt"}}, "", true},
		{"unknown single", TargetSpec{Actuator: "zoom"}, "", true},
		{"unknown in group", TargetSpec{Actuators: []string{"focus", "zoom"}}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := tt.spec.Resolve(registry)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error")
				}
				if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
					t.Errorf("Expected invalid config kind, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if target.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, target.Name())
			}
		})
	}
}

func TestTargetSpecResolvePrebuiltTarget(t *testing.T) {
	var log []string
	prebuilt, err := NewSingle(&fakeAxis{name: "direct", log: &log})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	target, err := TargetSpec{Target: prebuilt}.Resolve(fakeRegistry{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if target != Target(prebuilt) {
		t.Error("Expected the prebuilt target back")
	}
}
