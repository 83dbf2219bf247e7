package motion

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// StepperConfig describes a stepper axis behind an A4988-style driver
// board. Positions are in engineering units; StepsPerUnit converts them
// to step counts.
type StepperConfig struct {
	Name      string
	StepPin   int
	DirPin    int
	EnablePin int // 0 = not wired. Active LOW (LOW = enabled).

	StepsPerUnit float64
	// StepDelay is the delay per half-cycle of the STEP pulse, so one
	// full step takes 2*StepDelay. Defaults to 1ms.
	StepDelay time.Duration
	// DisableWhileIdle drops holding torque after each settle so the
	// motor does not vibrate during frame captures.
	DisableWhileIdle bool
}

// Stepper drives one axis as step pulses on GPIO pins. MoveTo starts the
// pulse train in the background; WaitSettled joins it, so a group can
// overlap the travel of several axes.
type Stepper struct {
	cfg  StepperConfig
	gpio PinDriver

	mu    sync.Mutex
	steps int64 // current position in steps
	done  chan error
}

// NewStepper configures the pins and enables the driver board.
func NewStepper(gpio PinDriver, cfg StepperConfig) (*Stepper, error) {
	if cfg.Name == "" {
		return nil, apperrors.NewInvalidConfig("stepper axis requires a name", nil)
	}
	if gpio == nil {
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("axis %s: stepper requires a pin driver", cfg.Name), nil)
	}
	if cfg.StepsPerUnit <= 0 {
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("axis %s: steps per unit must be positive", cfg.Name), nil)
	}
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = time.Millisecond
	}

	if err := gpio.SetupOutput(cfg.StepPin); err != nil {
		return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: step pin setup failed", cfg.Name), err)
	}
	if err := gpio.SetupOutput(cfg.DirPin); err != nil {
		return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: dir pin setup failed", cfg.Name), err)
	}
	if cfg.EnablePin > 0 {
		if err := gpio.SetupOutput(cfg.EnablePin); err != nil {
			return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: enable pin setup failed", cfg.Name), err)
		}
		// Enabled by default; holding torque until the first settle.
		if err := gpio.Write(cfg.EnablePin, PinLow); err != nil {
			return nil, apperrors.NewMotion(fmt.Sprintf("axis %s: enabling driver failed", cfg.Name), err)
		}
	}

	return &Stepper{cfg: cfg, gpio: gpio}, nil
}

func (s *Stepper) Name() string {
	return s.cfg.Name
}

func (s *Stepper) MoveTo(ctx context.Context, position float64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCanceled("move interrupted", err)
	}

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return apperrors.NewMotion(
			fmt.Sprintf("axis %s: move already in flight", s.cfg.Name), nil)
	}
	target := int64(math.Round(position * s.cfg.StepsPerUnit))
	delta := target - s.steps
	ch := make(chan error, 1)
	s.done = ch
	s.mu.Unlock()

	if s.cfg.EnablePin > 0 && s.cfg.DisableWhileIdle {
		if err := s.gpio.Write(s.cfg.EnablePin, PinLow); err != nil {
			s.clearInFlight()
			return apperrors.NewMotion(fmt.Sprintf("axis %s: enabling driver failed", s.cfg.Name), err)
		}
	}

	go s.run(ctx, delta, ch)
	return nil
}

// run emits the pulse train and reports the move outcome on ch.
func (s *Stepper) run(ctx context.Context, delta int64, ch chan error) {
	dir := PinHigh
	steps := delta
	if delta < 0 {
		dir = PinLow
		steps = -delta
	}

	if err := s.gpio.Write(s.cfg.DirPin, dir); err != nil {
		ch <- apperrors.NewMotion(fmt.Sprintf("axis %s: dir pin write failed", s.cfg.Name), err)
		return
	}

	var moved int64
	for ; moved < steps; moved++ {
		if err := ctx.Err(); err != nil {
			s.commit(delta, moved)
			ch <- apperrors.NewCanceled(fmt.Sprintf("axis %s: move interrupted", s.cfg.Name), err)
			return
		}
		if err := s.pulse(); err != nil {
			s.commit(delta, moved)
			ch <- apperrors.NewMotion(fmt.Sprintf("axis %s: step pulse failed", s.cfg.Name), err)
			return
		}
	}

	s.commit(delta, moved)
	ch <- nil
}

func (s *Stepper) pulse() error {
	if err := s.gpio.Write(s.cfg.StepPin, PinHigh); err != nil {
		return err
	}
	time.Sleep(s.cfg.StepDelay)
	if err := s.gpio.Write(s.cfg.StepPin, PinLow); err != nil {
		return err
	}
	time.Sleep(s.cfg.StepDelay)
	return nil
}

// commit records how far the axis actually travelled.
func (s *Stepper) commit(delta, moved int64) {
	if delta < 0 {
		moved = -moved
	}
	s.mu.Lock()
	s.steps += moved
	s.mu.Unlock()
}

func (s *Stepper) clearInFlight() {
	s.mu.Lock()
	s.done = nil
	s.mu.Unlock()
}

func (s *Stepper) WaitSettled(ctx context.Context) error {
	s.mu.Lock()
	ch := s.done
	s.mu.Unlock()
	if ch == nil {
		return nil
	}

	var err error
	select {
	case <-ctx.Done():
		err = apperrors.NewCanceled(fmt.Sprintf("axis %s: settle interrupted", s.cfg.Name), ctx.Err())
	case err = <-ch:
	}

	s.mu.Lock()
	s.done = nil
	s.mu.Unlock()

	if err == nil && s.cfg.EnablePin > 0 && s.cfg.DisableWhileIdle {
		// Drop holding torque so motor hum does not blur the next frame.
		if werr := s.gpio.Write(s.cfg.EnablePin, PinHigh); werr != nil {
			return apperrors.NewMotion(fmt.Sprintf("axis %s: disabling driver failed", s.cfg.Name), werr)
		}
	}
	return err
}

func (s *Stepper) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.steps) / s.cfg.StepsPerUnit, nil
}
