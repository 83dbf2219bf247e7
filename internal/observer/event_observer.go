package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/teddyrendahl/psbeam/internal/errors"
)

// FocusEvent represents one step of a focus run
type FocusEvent struct {
	Type      EventType     `json:"type"`
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Target    string        `json:"target,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	Trial     int           `json:"trial,omitempty"`
	Position  []float64     `json:"position,omitempty"`
	Score     float64       `json:"score,omitempty"`
	Trials    int           `json:"trials,omitempty"`
	BestScore float64       `json:"best_score,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// EventType represents the type of focus event
type EventType string

const (
	// RunStarted when a focus run begins
	RunStarted EventType = "run_started"
	// TrialStarted when the target starts moving to the next position
	TrialStarted EventType = "trial_started"
	// TrialCompleted when a position has been scored
	TrialCompleted EventType = "trial_completed"
	// RunConverged when a run finishes with a best position
	RunConverged EventType = "run_converged"
	// RunAborted when a run fails or is canceled
	RunAborted EventType = "run_aborted"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event FocusEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event FocusEvent)
}

// LoggingObserver logs focus events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles focus events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event FocusEvent) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"run_id":     event.RunID,
	}
	if event.Target != "" {
		fields["target"] = event.Target
	}
	if event.Trial > 0 {
		fields["trial"] = event.Trial
		fields["position"] = apperrors.FormatPosition(event.Position)
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}

	switch event.Type {
	case RunStarted:
		o.logger.WithFields(fields).Info("Focus run started")
	case TrialStarted:
		o.logger.WithFields(fields).Debug("Focus trial started")
	case TrialCompleted:
		fields["score"] = event.Score
		o.logger.WithFields(fields).Debug("Focus trial completed")
	case RunConverged:
		fields["best_score"] = event.BestScore
		fields["trials"] = event.Trials
		o.logger.WithFields(fields).Info("Focus run converged")
	case RunAborted:
		o.logger.WithFields(fields).Error("Focus run aborted")
	default:
		o.logger.WithFields(fields).Info("Focus event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from focus events
type MetricsObserver struct {
	mu            sync.RWMutex
	runsStarted   int64
	runsConverged int64
	runsAborted   int64
	trialsTotal   int64
	totalRunTime  time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles focus events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event FocusEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case RunStarted:
		o.runsStarted++
	case TrialCompleted:
		o.trialsTotal++
	case RunConverged:
		o.runsConverged++
		o.totalRunTime += event.Elapsed
	case RunAborted:
		o.runsAborted++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgRunTime := time.Duration(0)
	if o.runsConverged > 0 {
		avgRunTime = o.totalRunTime / time.Duration(o.runsConverged)
	}

	return map[string]interface{}{
		"runs_started":   o.runsStarted,
		"runs_converged": o.runsConverged,
		"runs_aborted":   o.runsAborted,
		"trials_total":   o.trialsTotal,
		"total_run_time": o.totalRunTime.String(),
		"avg_run_time":   avgRunTime.String(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run
// synchronously so event order is preserved for every subscriber; a
// panicking observer is isolated and logged.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event FocusEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
