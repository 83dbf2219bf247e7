package motion

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// SimulatedConfig configures a virtual axis for rigs without hardware.
type SimulatedConfig struct {
	Name string
	// Start is the initial position.
	Start float64
	// SettleDelay is how long WaitSettled blocks after a move, emulating
	// physical travel time.
	SettleDelay time.Duration
	// Min and Max bound the reachable range when set.
	Min *float64
	Max *float64
}

// Simulated is an in-memory axis. Moves land exactly on target after
// SettleDelay.
type Simulated struct {
	cfg SimulatedConfig

	mu       sync.Mutex
	position float64
	target   float64
}

// NewSimulatedAxis builds a virtual axis starting at cfg.Start.
func NewSimulatedAxis(cfg SimulatedConfig) (*Simulated, error) {
	if cfg.Name == "" {
		return nil, apperrors.NewInvalidConfig("simulated axis requires a name", nil)
	}
	if cfg.Min != nil && cfg.Max != nil && *cfg.Min > *cfg.Max {
		return nil, apperrors.NewInvalidConfig(
			fmt.Sprintf("axis %s: min %g exceeds max %g", cfg.Name, *cfg.Min, *cfg.Max), nil)
	}
	return &Simulated{cfg: cfg, position: cfg.Start, target: cfg.Start}, nil
}

func (s *Simulated) Name() string {
	return s.cfg.Name
}

func (s *Simulated) MoveTo(ctx context.Context, position float64) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewCanceled("move interrupted", err)
	}
	if s.cfg.Min != nil && position < *s.cfg.Min {
		return apperrors.NewMotion(
			fmt.Sprintf("axis %s: target %g below limit %g", s.cfg.Name, position, *s.cfg.Min), nil)
	}
	if s.cfg.Max != nil && position > *s.cfg.Max {
		return apperrors.NewMotion(
			fmt.Sprintf("axis %s: target %g above limit %g", s.cfg.Name, position, *s.cfg.Max), nil)
	}

	s.mu.Lock()
	s.target = position
	s.mu.Unlock()
	return nil
}

func (s *Simulated) WaitSettled(ctx context.Context) error {
	if s.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return apperrors.NewCanceled("settle interrupted", ctx.Err())
		case <-time.After(s.cfg.SettleDelay):
		}
	}

	s.mu.Lock()
	s.position = s.target
	s.mu.Unlock()
	return nil
}

func (s *Simulated) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}
