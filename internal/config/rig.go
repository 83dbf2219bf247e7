package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teddyrendahl/psbeam/internal/camera"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/factory"
	"github.com/teddyrendahl/psbeam/internal/motion"
)

// RigConfig declares the axes and cameras of one rig. It is loaded from
// a YAML file so a deployment can describe its hardware without code
// changes.
type RigConfig struct {
	// MockGPIO substitutes an in-memory pin driver for stepper axes, so
	// rig files written for a Raspberry Pi still load on a laptop.
	MockGPIO  bool                   `json:"mock_gpio" yaml:"mock_gpio"`
	Actuators []factory.ActuatorSpec `json:"actuators" yaml:"actuators"`
	Cameras   []factory.CameraSpec   `json:"cameras" yaml:"cameras"`
	Defaults  RigDefaults            `json:"defaults" yaml:"defaults"`
}

// RigDefaults names the components a focus request gets when it does not
// pick any. Empty values fall back to the first declared component.
type RigDefaults struct {
	Camera   string `json:"camera,omitempty" yaml:"camera,omitempty"`
	Actuator string `json:"actuator,omitempty" yaml:"actuator,omitempty"`
}

// LoadRig reads a rig declaration from a YAML file.
func LoadRig(path string) (RigConfig, error) {
	var cfg RigConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, apperrors.NewInvalidConfig(fmt.Sprintf("reading rig file %s failed", path), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, apperrors.NewInvalidConfig(fmt.Sprintf("parsing rig file %s failed", path), err)
	}
	return cfg, nil
}

// DefaultRig is the rig used when no rig file is configured: one
// simulated axis watched by one simulated camera, enough to exercise
// the whole service without hardware.
func DefaultRig() RigConfig {
	return RigConfig{
		Actuators: []factory.ActuatorSpec{
			{Name: "focus", Type: factory.SimulatedActuator},
		},
		Cameras: []factory.CameraSpec{
			{
				Name:       "default",
				Type:       factory.SimulatedCamera,
				Track:      []string{"focus"},
				FocalPoint: []float64{5},
			},
		},
	}
}

// Rig holds the built components of one deployment. It implements
// motion.Registry so focus targets can be resolved by axis name.
type Rig struct {
	actuators map[string]motion.Actuator
	cameras   map[string]camera.Source
	defaults  RigDefaults
	gpio      motion.PinDriver
}

// BuildRig constructs every component a rig config declares. A GPIO
// driver is opened only when a stepper axis needs one.
func BuildRig(cfg RigConfig) (*Rig, error) {
	if len(cfg.Actuators) == 0 {
		return nil, apperrors.NewInvalidConfig("rig declares no actuators", nil)
	}
	if len(cfg.Cameras) == 0 {
		return nil, apperrors.NewInvalidConfig("rig declares no cameras", nil)
	}

	rig := &Rig{
		actuators: make(map[string]motion.Actuator),
		cameras:   make(map[string]camera.Source),
		defaults:  cfg.Defaults,
	}

	for _, spec := range cfg.Actuators {
		if spec.Name == "" {
			return nil, apperrors.NewInvalidConfig("actuator spec requires a name", nil)
		}
		if _, exists := rig.actuators[spec.Name]; exists {
			return nil, apperrors.NewInvalidConfig(
				fmt.Sprintf("duplicate actuator name %q", spec.Name), nil)
		}

		if spec.Type == factory.StepperActuator && rig.gpio == nil {
			gpio, err := motion.NewPinDriver(cfg.MockGPIO)
			if err != nil {
				rig.Close()
				return nil, apperrors.NewInvalidConfig("opening GPIO driver failed", err)
			}
			rig.gpio = gpio
		}

		axis, err := factory.BuildActuator(spec, rig.gpio)
		if err != nil {
			rig.Close()
			return nil, err
		}
		rig.actuators[spec.Name] = axis
	}

	for _, spec := range cfg.Cameras {
		if spec.Name == "" {
			rig.Close()
			return nil, apperrors.NewInvalidConfig("camera spec requires a name", nil)
		}
		if _, exists := rig.cameras[spec.Name]; exists {
			rig.Close()
			return nil, apperrors.NewInvalidConfig(
				fmt.Sprintf("duplicate camera name %q", spec.Name), nil)
		}

		var readPos camera.PositionFunc
		if spec.Type == factory.SimulatedCamera {
			fn, err := rig.positionReader(spec)
			if err != nil {
				rig.Close()
				return nil, err
			}
			readPos = fn
		}

		source, err := factory.BuildCamera(spec, readPos)
		if err != nil {
			rig.Close()
			return nil, err
		}
		rig.cameras[spec.Name] = source
	}

	if err := rig.checkDefaults(cfg); err != nil {
		rig.Close()
		return nil, err
	}
	return rig, nil
}

// positionReader resolves a simulated camera's tracked axes into a
// closure reading their positions. Track names are checked eagerly so a
// broken rig file fails at startup, not mid-run.
func (r *Rig) positionReader(spec factory.CameraSpec) (camera.PositionFunc, error) {
	if len(spec.Track) == 0 {
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("simulated camera %q must track at least one actuator", spec.Name), nil)
	}

	tracked := make([]motion.Actuator, 0, len(spec.Track))
	for _, name := range spec.Track {
		axis, ok := r.actuators[name]
		if !ok {
			return nil, apperrors.NewInvalidConfig(
				fmt.Sprintf("camera %q tracks unknown actuator %q", spec.Name, name), nil)
		}
		tracked = append(tracked, axis)
	}

	return func() ([]float64, error) {
		positions := make([]float64, len(tracked))
		for i, axis := range tracked {
			pos, err := axis.Position()
			if err != nil {
				return nil, err
			}
			positions[i] = pos
		}
		return positions, nil
	}, nil
}

func (r *Rig) checkDefaults(cfg RigConfig) error {
	if r.defaults.Actuator == "" {
		r.defaults.Actuator = cfg.Actuators[0].Name
	} else if _, ok := r.actuators[r.defaults.Actuator]; !ok {
		return apperrors.NewInvalidConfig(
			fmt.Sprintf("default actuator %q is not declared", r.defaults.Actuator), nil)
	}

	if r.defaults.Camera == "" {
		r.defaults.Camera = cfg.Cameras[0].Name
	} else if _, ok := r.cameras[r.defaults.Camera]; !ok {
		return apperrors.NewInvalidConfig(
			fmt.Sprintf("default camera %q is not declared", r.defaults.Camera), nil)
	}
	return nil
}

// Actuator resolves an axis by name. Implements motion.Registry.
func (r *Rig) Actuator(name string) (motion.Actuator, bool) {
	axis, ok := r.actuators[name]
	return axis, ok
}

// Camera resolves a frame source by name.
func (r *Rig) Camera(name string) (camera.Source, bool) {
	source, ok := r.cameras[name]
	return source, ok
}

// DefaultActuator returns the axis used when a request names none.
func (r *Rig) DefaultActuator() string {
	return r.defaults.Actuator
}

// DefaultCamera returns the frame source used when a request names none.
func (r *Rig) DefaultCamera() string {
	return r.defaults.Camera
}

// ActuatorCount reports how many axes the rig declares.
func (r *Rig) ActuatorCount() int {
	return len(r.actuators)
}

// CameraCount reports how many frame sources the rig declares.
func (r *Rig) CameraCount() int {
	return len(r.cameras)
}

// Close releases hardware resources. Safe to call on a partially built
// rig.
func (r *Rig) Close() error {
	if r.gpio != nil {
		return r.gpio.Close()
	}
	return nil
}
