// Package app wires the project service stack together.
package app

import (
	"context"

	"github.com/terralayer/spatial_layer/internal/app/services/projects"
	"github.com/terralayer/spatial_layer/internal/app/storage"
	"github.com/terralayer/spatial_layer/internal/app/storage/memory"
	"github.com/terralayer/spatial_layer/internal/app/system"
	"github.com/terralayer/spatial_layer/internal/config"
	"github.com/terralayer/spatial_layer/pkg/logger"
)

// Stores groups the persistence dependencies of the application. Nil fields
// fall back to in-memory implementations.
type Stores struct {
	Projects storage.ProjectStore
}

// Application aggregates the services exposed over the HTTP API.
type Application struct {
	Projects *projects.Service

	manager *system.Manager
	log     *logger.Logger
}

// New constructs the application services on top of the given stores and
// registers the background services with the lifecycle manager.
func New(cfg *config.Config, log *logger.Logger, stores Stores) (*Application, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	if stores.Projects == nil {
		stores.Projects = memory.New()
	}

	a := &Application{
		Projects: projects.New(stores.Projects, log.WithField("service", "projects")),
		manager:  system.NewManager(),
		log:      log,
	}

	if cfg.Stats.Enabled {
		collector := projects.NewStatsCollector(stores.Projects, cfg.Stats.Schedule, log.WithField("service", "stats"))
		if err := a.manager.Register(collector); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Start launches the registered background services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.StartAll(ctx)
}

// Stop shuts the background services down in reverse start order.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.StopAll(ctx)
}
