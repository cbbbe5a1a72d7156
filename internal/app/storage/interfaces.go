// Package storage declares the persistence interfaces of the application
// core.
package storage

import (
	"context"
	"errors"

	"github.com/terralayer/spatial_layer/internal/app/domain/project"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("project not found")

// ProjectStore persists project records together with their extracted area
// of interest geometries.
type ProjectStore interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	GetProject(ctx context.Context, id string) (project.Project, error)
	ListProjects(ctx context.Context, filter project.Filter) ([]project.Project, error)
	DeleteProject(ctx context.Context, id string) error
	ProjectStats(ctx context.Context) (project.Stats, error)
}
