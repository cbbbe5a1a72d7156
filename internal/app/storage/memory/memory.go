// Package memory provides an in-memory ProjectStore. It is safe for
// concurrent use and is primarily intended for tests and local development.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/terralayer/spatial_layer/internal/app/domain/project"
	"github.com/terralayer/spatial_layer/internal/app/storage"
)

// Store is the in-memory implementation of storage.ProjectStore.
type Store struct {
	mu       sync.RWMutex
	projects map[string]project.Project
}

var _ storage.ProjectStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{projects: make(map[string]project.Project)}
}

func (s *Store) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.projects[p.ID] = cloneProject(p)
	return cloneProject(p), nil
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[p.ID]
	if !ok {
		return project.Project{}, storage.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.projects[p.ID] = cloneProject(p)
	return cloneProject(p), nil
}

func (s *Store) GetProject(_ context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, storage.ErrNotFound
	}
	return cloneProject(p), nil
}

func (s *Store) ListProjects(_ context.Context, filter project.Filter) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []project.Project
	for _, p := range s.projects {
		if !matches(p, filter) {
			continue
		}
		result = append(result, cloneProject(p))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

func (s *Store) ProjectStats(_ context.Context) (project.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats project.Stats
	for _, p := range s.projects {
		stats.Projects++
		for _, raw := range p.Geometries {
			stats.Geometries++
			g, err := geojson.UnmarshalGeometry(raw)
			if err != nil {
				continue
			}
			area := project.Area(g.Geometry())
			stats.TotalAreaSqM += area
			if area > stats.LargestAreaSqM {
				stats.LargestAreaSqM = area
			}
		}
	}
	return stats, nil
}

// matches applies the listing filter. The bounding box test uses geometry
// bounds, which is what the Postgres index scan does before refinement.
func matches(p project.Project, filter project.Filter) bool {
	if filter.Dates != nil && !p.DateRange.Overlaps(*filter.Dates) {
		return false
	}
	if filter.BBox == nil {
		return true
	}
	for _, raw := range p.Geometries {
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			continue
		}
		if project.IntersectsBox(g.Geometry(), *filter.BBox) {
			return true
		}
	}
	return false
}

func cloneProject(p project.Project) project.Project {
	out := p
	out.AreaOfInterest = cloneRaw(p.AreaOfInterest)
	if p.Geometries != nil {
		out.Geometries = make([]json.RawMessage, len(p.Geometries))
		for i, g := range p.Geometries {
			out.Geometries[i] = cloneRaw(g)
		}
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
