package factory

import (
	"context"
	"testing"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/motion"
)

func TestBuildActuatorSimulated(t *testing.T) {
	spec := ActuatorSpec{
		Name:        "focus",
		Type:        SimulatedActuator,
		Start:       2.5,
		SettleDelay: "1ms",
	}

	axis, err := BuildActuator(spec, nil)
	if err != nil {
		t.Fatalf("BuildActuator failed: %v", err)
	}
	if axis.Name() != "focus" {
		t.Errorf("Expected axis name 'focus', got %q", axis.Name())
	}

	pos, err := axis.Position()
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if pos != 2.5 {
		t.Errorf("Expected start position 2.5, got %v", pos)
	}
}

func TestBuildActuatorStepper(t *testing.T) {
	spec := ActuatorSpec{
		Name:         "focus",
		Type:         StepperActuator,
		StepPin:      17,
		DirPin:       27,
		StepsPerUnit: 200,
		StepDelay:    "1ms",
	}

	axis, err := BuildActuator(spec, motion.NewMockPinDriver())
	if err != nil {
		t.Fatalf("BuildActuator failed: %v", err)
	}
	if axis.Name() != "focus" {
		t.Errorf("Expected axis name 'focus', got %q", axis.Name())
	}
}

func TestBuildActuatorStepperRequiresGPIO(t *testing.T) {
	spec := ActuatorSpec{
		Name:         "focus",
		Type:         StepperActuator,
		StepPin:      17,
		DirPin:       27,
		StepsPerUnit: 200,
	}

	_, err := BuildActuator(spec, nil)
	if err == nil {
		t.Fatal("Expected error for stepper without GPIO driver")
	}
	if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
		t.Errorf("Expected invalid config error, got: %v", err)
	}
}

func TestBuildActuatorHTTP(t *testing.T) {
	spec := ActuatorSpec{
		Name:          "focus",
		Type:          HTTPActuator,
		BaseURL:       "http://controller.local",
		PollInterval:  "50ms",
		SettleTimeout: "2s",
	}

	axis, err := BuildActuator(spec, nil)
	if err != nil {
		t.Fatalf("BuildActuator failed: %v", err)
	}
	if axis.Name() != "focus" {
		t.Errorf("Expected axis name 'focus', got %q", axis.Name())
	}
}

func TestBuildActuatorInvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec ActuatorSpec
	}{
		{
			name: "unknown type",
			spec: ActuatorSpec{Name: "focus", Type: "servo"},
		},
		{
			name: "empty type",
			spec: ActuatorSpec{Name: "focus"},
		},
		{
			name: "bad settle delay",
			spec: ActuatorSpec{Name: "focus", Type: SimulatedActuator, SettleDelay: "fast"},
		},
		{
			name: "negative step delay",
			spec: ActuatorSpec{
				Name: "focus", Type: StepperActuator,
				StepPin: 17, DirPin: 27, StepsPerUnit: 200, StepDelay: "-1ms",
			},
		},
		{
			name: "http missing base url",
			spec: ActuatorSpec{Name: "focus", Type: HTTPActuator},
		},
		{
			name: "http malformed base url",
			spec: ActuatorSpec{Name: "focus", Type: HTTPActuator, BaseURL: "not-a-url"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpio := motion.NewMockPinDriver()
			_, err := BuildActuator(tt.spec, gpio)
			if err == nil {
				t.Fatal("Expected error for invalid actuator spec")
			}
			if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
				t.Errorf("Expected invalid config error, got: %v", err)
			}
		})
	}
}

func TestBuildCameraSimulated(t *testing.T) {
	spec := CameraSpec{
		Name:       "beamcam",
		Type:       SimulatedCamera,
		FocalPoint: []float64{5},
		Width:      32,
		Height:     32,
	}
	readPos := func() ([]float64, error) { return []float64{5}, nil }

	source, err := BuildCamera(spec, readPos)
	if err != nil {
		t.Fatalf("BuildCamera failed: %v", err)
	}
	if source.Name() != "beamcam" {
		t.Errorf("Expected camera name 'beamcam', got %q", source.Name())
	}

	frame, err := source.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	bounds := frame.Bounds()
	if bounds.Dx() != 32 || bounds.Dy() != 32 {
		t.Errorf("Expected 32x32 frame, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestBuildCameraHTTP(t *testing.T) {
	spec := CameraSpec{
		Name:          "beamcam",
		Type:          HTTPCamera,
		URL:           "http://camera.local/snapshot.jpg",
		FrameInterval: "100ms",
		Timeout:       "5s",
	}

	source, err := BuildCamera(spec, nil)
	if err != nil {
		t.Fatalf("BuildCamera failed: %v", err)
	}
	if source.Name() != "beamcam" {
		t.Errorf("Expected camera name 'beamcam', got %q", source.Name())
	}
}

func TestBuildCameraBlob(t *testing.T) {
	spec := CameraSpec{
		Name:        "replay",
		Type:        BlobCamera,
		AccountName: "beamframes",
		AccountKey:  "c2VjcmV0", // base64("secret")
		Container:   "shift-42",
		Prefix:      "focus/",
	}

	source, err := BuildCamera(spec, nil)
	if err != nil {
		t.Fatalf("BuildCamera failed: %v", err)
	}
	if source.Name() != "replay" {
		t.Errorf("Expected camera name 'replay', got %q", source.Name())
	}
}

func TestBuildCameraInvalidSpecs(t *testing.T) {
	tests := []struct {
		name string
		spec CameraSpec
	}{
		{
			name: "unknown type",
			spec: CameraSpec{Name: "beamcam", Type: "gige"},
		},
		{
			name: "http missing url",
			spec: CameraSpec{Name: "beamcam", Type: HTTPCamera},
		},
		{
			name: "http bad frame interval",
			spec: CameraSpec{
				Name: "beamcam", Type: HTTPCamera,
				URL: "http://camera.local/snapshot.jpg", FrameInterval: "soon",
			},
		},
		{
			name: "blob missing credentials",
			spec: CameraSpec{Name: "replay", Type: BlobCamera, Container: "shift-42"},
		},
		{
			name: "simulated missing focal point",
			spec: CameraSpec{Name: "beamcam", Type: SimulatedCamera},
		},
	}

	readPos := func() ([]float64, error) { return []float64{0}, nil }
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCamera(tt.spec, readPos)
			if err == nil {
				t.Fatal("Expected error for invalid camera spec")
			}
			if !apperrors.IsKind(err, apperrors.KindInvalidConfig) {
				t.Errorf("Expected invalid config error, got: %v", err)
			}
		})
	}
}
