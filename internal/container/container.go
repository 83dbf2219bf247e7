package container

import (
	"fmt"
	"net/http"

	"github.com/teddyrendahl/psbeam/internal/config"
	"github.com/teddyrendahl/psbeam/internal/logger"
	"github.com/teddyrendahl/psbeam/internal/observer"
	"github.com/teddyrendahl/psbeam/internal/service"
	"github.com/teddyrendahl/psbeam/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	rig          *config.Rig
	publisher    *observer.EventPublisher
	metrics      *observer.MetricsObserver
	broadcaster  *observer.Broadcaster
	focusService service.FocusService
	handler      http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	// Load the rig description. Without RIG_PATH the service comes up
	// on a simulated bench so it can be exercised without hardware.
	rigCfg := config.DefaultRig()
	if cfg.RigPath != "" {
		loaded, err := config.LoadRig(cfg.RigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rig config: %w", err)
		}
		rigCfg = loaded
	}

	rig, err := config.BuildRig(rigCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build rig: %w", err)
	}

	// Build dependency graph
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))

	metrics := observer.NewMetricsObserver()
	publisher.Subscribe(metrics)

	broadcaster := observer.NewBroadcaster()
	publisher.Subscribe(broadcaster)

	focusService := service.NewFocusService(rig, publisher, metrics, cfg.RunTimeout, cfg.HistoryLimit)
	handler := transport.NewHandler(focusService, broadcaster, cfg)

	return &Container{
		config:       cfg,
		rig:          rig,
		publisher:    publisher,
		metrics:      metrics,
		broadcaster:  broadcaster,
		focusService: focusService,
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close releases rig resources such as the GPIO driver.
func (c *Container) Close() error {
	return c.rig.Close()
}
