// Package projects implements the application service for spatial project
// management.
package projects

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/terralayer/spatial_layer/internal/app/domain/project"
	"github.com/terralayer/spatial_layer/internal/app/metrics"
	"github.com/terralayer/spatial_layer/internal/app/storage"
	"github.com/terralayer/spatial_layer/pkg/logger"
)

// ErrInvalidID is returned when a project identifier is not a valid UUID.
var ErrInvalidID = errors.New("invalid project ID format")

// Service manages project lifecycle operations.
type Service struct {
	store storage.ProjectStore
	log   *logger.Logger
}

// New constructs a project service.
func New(store storage.ProjectStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	return &Service{store: store, log: log}
}

// DateRangeInput is the wire form of a project date range.
type DateRangeInput struct {
	Lower string `json:"lower"`
	Upper string `json:"upper"`
}

// CreateInput carries the fields accepted when creating a project.
type CreateInput struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	DateRange      *DateRangeInput `json:"date_range"`
	AreaOfInterest json.RawMessage `json:"area_of_interest"`
}

// UpdateInput carries the optional fields accepted when updating a project.
// Nil fields are left untouched.
type UpdateInput struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	DateRange      *DateRangeInput `json:"date_range"`
	AreaOfInterest json.RawMessage `json:"area_of_interest"`
}

// Empty reports whether the update carries no fields at all.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Description == nil && u.DateRange == nil && len(u.AreaOfInterest) == 0
}

// Create validates the input and persists a new project.
func (s *Service) Create(ctx context.Context, input CreateInput) (project.Project, error) {
	name := strings.TrimSpace(input.Name)
	if err := project.ValidateName(name); err != nil {
		return project.Project{}, err
	}
	if err := project.ValidateDescription(input.Description); err != nil {
		return project.Project{}, err
	}
	if input.DateRange == nil {
		return project.Project{}, project.Invalid("date_range is required")
	}
	dateRange, err := project.NewDateRange(input.DateRange.Lower, input.DateRange.Upper)
	if err != nil {
		return project.Project{}, err
	}
	geometries, err := project.ParseAreaOfInterest(input.AreaOfInterest)
	if err != nil {
		return project.Project{}, err
	}

	p := project.Project{
		Name:           name,
		Description:    input.Description,
		DateRange:      dateRange,
		AreaOfInterest: input.AreaOfInterest,
	}
	for _, g := range geometries {
		p.Geometries = append(p.Geometries, project.EncodeGeometry(g))
	}

	created, err := s.store.CreateProject(ctx, p)
	metrics.RecordProjectOp("create", err)
	if err != nil {
		return project.Project{}, err
	}

	s.log.WithField("project_id", created.ID).
		WithField("name", created.Name).
		WithField("geometries", len(created.Geometries)).
		Info("project created")
	return created, nil
}

// Get retrieves a project by identifier.
func (s *Service) Get(ctx context.Context, id string) (project.Project, error) {
	if err := validateID(id); err != nil {
		return project.Project{}, err
	}
	p, err := s.store.GetProject(ctx, id)
	metrics.RecordProjectOp("get", err)
	return p, err
}

// List returns projects matching the filter.
func (s *Service) List(ctx context.Context, filter project.Filter) ([]project.Project, error) {
	list, err := s.store.ListProjects(ctx, filter)
	metrics.RecordProjectOp("list", err)
	return list, err
}

// Update applies the initialized fields of the input to an existing project.
func (s *Service) Update(ctx context.Context, id string, input UpdateInput) (project.Project, error) {
	if err := validateID(id); err != nil {
		return project.Project{}, err
	}
	if input.Empty() {
		return project.Project{}, project.Invalid("no fields to update")
	}

	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return project.Project{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := project.ValidateName(name); err != nil {
			return project.Project{}, err
		}
		p.Name = name
	}
	if input.Description != nil {
		if err := project.ValidateDescription(*input.Description); err != nil {
			return project.Project{}, err
		}
		p.Description = *input.Description
	}
	if input.DateRange != nil {
		dateRange, err := project.NewDateRange(input.DateRange.Lower, input.DateRange.Upper)
		if err != nil {
			return project.Project{}, err
		}
		p.DateRange = dateRange
	}
	if len(input.AreaOfInterest) > 0 {
		geometries, err := project.ParseAreaOfInterest(input.AreaOfInterest)
		if err != nil {
			return project.Project{}, err
		}
		p.AreaOfInterest = input.AreaOfInterest
		p.Geometries = nil
		for _, g := range geometries {
			p.Geometries = append(p.Geometries, project.EncodeGeometry(g))
		}
	}

	updated, err := s.store.UpdateProject(ctx, p)
	metrics.RecordProjectOp("update", err)
	if err != nil {
		return project.Project{}, err
	}

	s.log.WithField("project_id", updated.ID).Info("project updated")
	return updated, nil
}

// Delete removes a project by identifier.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := s.store.DeleteProject(ctx, id)
	metrics.RecordProjectOp("delete", err)
	if err != nil {
		return err
	}
	s.log.WithField("project_id", id).Info("project deleted")
	return nil
}

// Stats returns the spatial aggregates over all stored projects.
func (s *Service) Stats(ctx context.Context) (project.Stats, error) {
	return s.store.ProjectStats(ctx)
}

func validateID(id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return ErrInvalidID
	}
	return nil
}
