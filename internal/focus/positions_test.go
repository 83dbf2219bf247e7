package focus

import (
	"math"
	"testing"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

func TestAxisRangeCount(t *testing.T) {
	tests := []struct {
		name  string
		r     AxisRange
		count int
	}{
		{"exact multiple", AxisRange{Start: 1, Stop: 5, Step: 2}, 2},
		{"fractional step", AxisRange{Start: 1, Stop: 5, Step: 1.9}, 3},
		{"decimal fuzz", AxisRange{Start: 0, Stop: 0.3, Step: 0.1}, 3},
		{"descending", AxisRange{Start: 5, Stop: 1, Step: -2}, 2},
		{"single position", AxisRange{Start: 2, Stop: 2.5, Step: 1}, 1},
		{"walks away", AxisRange{Start: 1, Stop: 5, Step: -1}, 0},
		{"empty", AxisRange{Start: 3, Stop: 3, Step: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Count(); got != tt.count {
				t.Errorf("Count() = %d, want %d", got, tt.count)
			}
		})
	}
}

func TestAxisRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       AxisRange
		wantErr bool
	}{
		{"valid ascending", AxisRange{Start: 0, Stop: 10, Step: 0.5}, false},
		{"valid descending", AxisRange{Start: 10, Stop: 0, Step: -0.5}, false},
		{"zero step", AxisRange{Start: 0, Stop: 10, Step: 0}, true},
		{"wrong direction", AxisRange{Start: 0, Stop: 10, Step: -1}, true},
		{"start equals stop", AxisRange{Start: 4, Stop: 4, Step: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
					t.Errorf("expected invalid_config, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnumeratorSingleAxis(t *testing.T) {
	spec, err := NewPositionSpec(AxisRange{Start: 1, Stop: 5, Step: 2})
	if err != nil {
		t.Fatalf("NewPositionSpec: %v", err)
	}

	enum := spec.Enumerator()
	want := [][]float64{{1}, {3}}
	for i, expected := range want {
		pos, ok := enum.Next()
		if !ok {
			t.Fatalf("enumerator ended early at %d", i)
		}
		if len(pos) != 1 || pos[0] != expected[0] {
			t.Errorf("position %d = %v, want %v", i, pos, expected)
		}
	}
	if _, ok := enum.Next(); ok {
		t.Error("enumerator should be exhausted")
	}
	// Single use: stays exhausted.
	if _, ok := enum.Next(); ok {
		t.Error("exhausted enumerator produced a position")
	}
}

func TestEnumeratorDescending(t *testing.T) {
	spec, err := NewPositionSpec(AxisRange{Start: 5, Stop: 1, Step: -2})
	if err != nil {
		t.Fatalf("NewPositionSpec: %v", err)
	}

	var got []float64
	enum := spec.Enumerator()
	for {
		pos, ok := enum.Next()
		if !ok {
			break
		}
		got = append(got, pos[0])
	}
	want := []float64{5, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v positions, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnumeratorLockstep(t *testing.T) {
	spec, err := NewPositionSpec(
		AxisRange{Start: 0, Stop: 3, Step: 1},
		AxisRange{Start: 10, Stop: 4, Step: -2},
	)
	if err != nil {
		t.Fatalf("NewPositionSpec: %v", err)
	}
	if spec.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", spec.Count())
	}
	if spec.Arity() != 2 {
		t.Fatalf("Arity() = %d, want 2", spec.Arity())
	}

	want := [][]float64{{0, 10}, {1, 8}, {2, 6}}
	enum := spec.Enumerator()
	for i, expected := range want {
		pos, ok := enum.Next()
		if !ok {
			t.Fatalf("enumerator ended early at %d", i)
		}
		for axis := range expected {
			if math.Abs(pos[axis]-expected[axis]) > 1e-12 {
				t.Errorf("trial %d axis %d = %v, want %v", i, axis, pos[axis], expected[axis])
			}
		}
	}
	if _, ok := enum.Next(); ok {
		t.Error("enumerator should be exhausted")
	}
}

func TestEnumeratorRemaining(t *testing.T) {
	spec, err := NewPositionSpec(AxisRange{Start: 0, Stop: 4, Step: 1})
	if err != nil {
		t.Fatalf("NewPositionSpec: %v", err)
	}
	enum := spec.Enumerator()
	if enum.Remaining() != 4 {
		t.Fatalf("Remaining() = %d, want 4", enum.Remaining())
	}
	enum.Next()
	enum.Next()
	if enum.Remaining() != 2 {
		t.Errorf("Remaining() after two = %d, want 2", enum.Remaining())
	}
}

func TestPositionSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		axes    []AxisRange
		wantErr bool
	}{
		{"single axis", []AxisRange{{Start: 0, Stop: 5, Step: 1}}, false},
		{"matched counts", []AxisRange{{Start: 0, Stop: 4, Step: 1}, {Start: 8, Stop: 0, Step: -2}}, false},
		{"no axes", nil, true},
		{"mismatched counts", []AxisRange{{Start: 0, Stop: 4, Step: 1}, {Start: 0, Stop: 4, Step: 2}}, true},
		{"bad axis", []AxisRange{{Start: 0, Stop: 5, Step: 1}, {Start: 0, Stop: 5, Step: 0}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPositionSpec(tt.axes...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected a validation error")
				}
				if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
					t.Errorf("expected invalid_config, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnumeratorDoesNotAccumulateDrift(t *testing.T) {
	spec, err := NewPositionSpec(AxisRange{Start: 0, Stop: 10, Step: 0.1})
	if err != nil {
		t.Fatalf("NewPositionSpec: %v", err)
	}

	enum := spec.Enumerator()
	var last []float64
	for {
		pos, ok := enum.Next()
		if !ok {
			break
		}
		last = pos
	}
	// The final position must be start + (n-1)*step computed directly,
	// not the sum of a hundred additions.
	want := 0 + float64(spec.Count()-1)*0.1
	if math.Abs(last[0]-want) > 1e-12 {
		t.Errorf("final position = %v, want %v", last[0], want)
	}
}
