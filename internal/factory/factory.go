// Package factory builds rig components from declarative specs, so rig
// files can name an actuator or camera type and get the matching driver.
package factory

import (
	"fmt"
	"time"

	"github.com/teddyrendahl/psbeam/internal/camera"
	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
	"github.com/teddyrendahl/psbeam/internal/motion"
	"github.com/teddyrendahl/psbeam/pkg/validation"
)

// ActuatorType represents the supported axis drivers
type ActuatorType string

const (
	// SimulatedActuator is an in-memory axis for development rigs
	SimulatedActuator ActuatorType = "simulated"
	// StepperActuator drives a stepper motor over GPIO pins
	StepperActuator ActuatorType = "stepper"
	// HTTPActuator talks to a motion controller's REST API
	HTTPActuator ActuatorType = "http"
)

// CameraType represents the supported frame sources
type CameraType string

const (
	// HTTPCamera polls a snapshot endpoint
	HTTPCamera CameraType = "http"
	// BlobCamera replays recorded frames from Azure blob storage
	BlobCamera CameraType = "blob"
	// SimulatedCamera renders synthetic beam frames
	SimulatedCamera CameraType = "simulated"
)

// ActuatorSpec declares one axis of the rig. Only the fields of the named
// type are read. Durations are strings like "50ms".
type ActuatorSpec struct {
	Name string       `json:"name" yaml:"name"`
	Type ActuatorType `json:"type" yaml:"type"`

	// simulated
	Start       float64  `json:"start,omitempty" yaml:"start,omitempty"`
	SettleDelay string   `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`

	// stepper
	StepPin          int     `json:"step_pin,omitempty" yaml:"step_pin,omitempty"`
	DirPin           int     `json:"dir_pin,omitempty" yaml:"dir_pin,omitempty"`
	EnablePin        int     `json:"enable_pin,omitempty" yaml:"enable_pin,omitempty"`
	StepsPerUnit     float64 `json:"steps_per_unit,omitempty" yaml:"steps_per_unit,omitempty"`
	StepDelay        string  `json:"step_delay,omitempty" yaml:"step_delay,omitempty"`
	DisableWhileIdle bool    `json:"disable_while_idle,omitempty" yaml:"disable_while_idle,omitempty"`

	// http
	BaseURL       string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	PollInterval  string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
	SettleTimeout string `json:"settle_timeout,omitempty" yaml:"settle_timeout,omitempty"`
}

// CameraSpec declares one frame source of the rig.
type CameraSpec struct {
	Name string     `json:"name" yaml:"name"`
	Type CameraType `json:"type" yaml:"type"`

	// http
	URL           string `json:"url,omitempty" yaml:"url,omitempty"`
	FrameInterval string `json:"frame_interval,omitempty" yaml:"frame_interval,omitempty"`
	Timeout       string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// blob
	AccountName string `json:"account_name,omitempty" yaml:"account_name,omitempty"`
	AccountKey  string `json:"account_key,omitempty" yaml:"account_key,omitempty"`
	Container   string `json:"container,omitempty" yaml:"container,omitempty"`
	Prefix      string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// simulated. Track names the actuators the camera watches; the rig
	// wires their positions into the renderer.
	Track       []string  `json:"track,omitempty" yaml:"track,omitempty"`
	FocalPoint  []float64 `json:"focal_point,omitempty" yaml:"focal_point,omitempty"`
	Width       int       `json:"width,omitempty" yaml:"width,omitempty"`
	Height      int       `json:"height,omitempty" yaml:"height,omitempty"`
	SpotSigma   float64   `json:"spot_sigma,omitempty" yaml:"spot_sigma,omitempty"`
	DefocusGain float64   `json:"defocus_gain,omitempty" yaml:"defocus_gain,omitempty"`
	Noise       float64   `json:"noise,omitempty" yaml:"noise,omitempty"`
	Seed        int64     `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// BuildActuator creates the axis driver a spec names. The GPIO driver is
// only needed for stepper axes; pass nil otherwise.
func BuildActuator(spec ActuatorSpec, gpio motion.PinDriver) (motion.Actuator, error) {
	switch spec.Type {
	case SimulatedActuator:
		settle, err := parseDuration("settle_delay", spec.SettleDelay)
		if err != nil {
			return nil, err
		}
		return motion.NewSimulatedAxis(motion.SimulatedConfig{
			Name:        spec.Name,
			Start:       spec.Start,
			SettleDelay: settle,
			Min:         spec.Min,
			Max:         spec.Max,
		})
	case StepperActuator:
		if gpio == nil {
			return nil, apperrors.NewInvalidConfig(
				fmt.Sprintf("stepper axis %q requires a GPIO driver", spec.Name), nil)
		}
		stepDelay, err := parseDuration("step_delay", spec.StepDelay)
		if err != nil {
			return nil, err
		}
		return motion.NewStepper(gpio, motion.StepperConfig{
			Name:             spec.Name,
			StepPin:          spec.StepPin,
			DirPin:           spec.DirPin,
			EnablePin:        spec.EnablePin,
			StepsPerUnit:     spec.StepsPerUnit,
			StepDelay:        stepDelay,
			DisableWhileIdle: spec.DisableWhileIdle,
		})
	case HTTPActuator:
		if err := validation.ValidateEndpoint(spec.BaseURL); err != nil {
			return nil, err
		}
		poll, err := parseDuration("poll_interval", spec.PollInterval)
		if err != nil {
			return nil, err
		}
		settleTimeout, err := parseDuration("settle_timeout", spec.SettleTimeout)
		if err != nil {
			return nil, err
		}
		return motion.NewHTTPActuator(motion.HTTPActuatorConfig{
			Name:          spec.Name,
			BaseURL:       spec.BaseURL,
			PollInterval:  poll,
			SettleTimeout: settleTimeout,
		})
	default:
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("unsupported actuator type %q for axis %q", spec.Type, spec.Name), nil)
	}
}

// BuildCamera creates the frame source a spec names. readPos is only used
// by simulated cameras; pass nil otherwise.
func BuildCamera(spec CameraSpec, readPos camera.PositionFunc) (camera.Source, error) {
	switch spec.Type {
	case HTTPCamera:
		if err := validation.ValidateEndpoint(spec.URL); err != nil {
			return nil, err
		}
		interval, err := parseDuration("frame_interval", spec.FrameInterval)
		if err != nil {
			return nil, err
		}
		timeout, err := parseDuration("timeout", spec.Timeout)
		if err != nil {
			return nil, err
		}
		return camera.NewHTTPSource(camera.HTTPConfig{
			Name:          spec.Name,
			URL:           spec.URL,
			FrameInterval: interval,
			Timeout:       timeout,
		})
	case BlobCamera:
		return camera.NewBlobSource(camera.BlobConfig{
			Name:        spec.Name,
			AccountName: spec.AccountName,
			AccountKey:  spec.AccountKey,
			Container:   spec.Container,
			Prefix:      spec.Prefix,
		})
	case SimulatedCamera:
		return camera.NewSimulated(camera.SimulatedConfig{
			Name:        spec.Name,
			FocalPoint:  spec.FocalPoint,
			Width:       spec.Width,
			Height:      spec.Height,
			SpotSigma:   spec.SpotSigma,
			DefocusGain: spec.DefocusGain,
			Noise:       spec.Noise,
			Seed:        spec.Seed,
		}, readPos)
	default:
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("unsupported camera type %q for camera %q", spec.Type, spec.Name), nil)
	}
}

// parseDuration converts a spec duration string, treating empty as zero
// so component defaults apply.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, apperrors.NewInvalidConfig(
			fmt.Sprintf("invalid %s duration %q", field, value), err)
	}
	if d < 0 {
		return 0, apperrors.NewInvalidConfig(
			fmt.Sprintf("%s must not be negative", field), nil)
	}
	return d, nil
}
