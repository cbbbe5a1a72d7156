// Package postgres implements the project store on a PostGIS-enabled
// PostgreSQL database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/terralayer/spatial_layer/internal/app/domain/project"
	"github.com/terralayer/spatial_layer/internal/app/storage"
)

// Store implements storage.ProjectStore backed by PostgreSQL/PostGIS.
type Store struct {
	db *sqlx.DB
}

var _ storage.ProjectStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Project{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, description, date_range, area_of_interest, created_at, updated_at)
		VALUES ($1, $2, $3, daterange($4::date, $5::date, $6), $7, $8, $9)
	`, p.ID, p.Name, toNullString(p.Description), p.DateRange.Lower, p.DateRange.Upper, p.DateRange.Bounds,
		[]byte(p.AreaOfInterest), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return project.Project{}, err
	}

	if err := insertGeometries(ctx, tx, p.ID, p.Geometries); err != nil {
		return project.Project{}, err
	}

	if err := tx.Commit(); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	existing, err := s.GetProject(ctx, p.ID)
	if err != nil {
		return project.Project{}, err
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return project.Project{}, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE projects
		SET name = $2, description = $3, date_range = daterange($4::date, $5::date, $6),
		    area_of_interest = $7, updated_at = $8
		WHERE id = $1
	`, p.ID, p.Name, toNullString(p.Description), p.DateRange.Lower, p.DateRange.Upper, p.DateRange.Bounds,
		[]byte(p.AreaOfInterest), p.UpdatedAt)
	if err != nil {
		return project.Project{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return project.Project{}, storage.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM project_aois WHERE project_id = $1`, p.ID); err != nil {
		return project.Project{}, err
	}
	if err := insertGeometries(ctx, tx, p.ID, p.Geometries); err != nil {
		return project.Project{}, err
	}

	if err := tx.Commit(); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description,
		       lower(date_range)::text, upper(date_range)::text,
		       lower_inc(date_range), upper_inc(date_range),
		       area_of_interest, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, id)

	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return project.Project{}, storage.ErrNotFound
		}
		return project.Project{}, err
	}

	geoms, err := s.loadGeometries(ctx, []string{p.ID})
	if err != nil {
		return project.Project{}, err
	}
	p.Geometries = geoms[p.ID]
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, filter project.Filter) ([]project.Project, error) {
	query := `
		SELECT id, name, description,
		       lower(date_range)::text, upper(date_range)::text,
		       lower_inc(date_range), upper_inc(date_range),
		       area_of_interest, created_at, updated_at
		FROM projects p
	`
	var (
		conds []string
		args  []interface{}
	)
	if filter.BBox != nil {
		args = append(args, filter.BBox.MinLon, filter.BBox.MinLat, filter.BBox.MaxLon, filter.BBox.MaxLat)
		conds = append(conds, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM project_aois a
			WHERE a.project_id = p.id
			  AND ST_Intersects(a.geom, ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326))
		)`, len(args)-3, len(args)-2, len(args)-1, len(args)))
	}
	if filter.Dates != nil {
		args = append(args, filter.Dates.Lower, filter.Dates.Upper, filter.Dates.Bounds)
		conds = append(conds, fmt.Sprintf(`p.date_range && daterange($%d::date, $%d::date, $%d)`,
			len(args)-2, len(args)-1, len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []project.Project
		ids    []string
	)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	geoms, err := s.loadGeometries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Geometries = geoms[result[i].ID]
	}
	return result, nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ProjectStats(ctx context.Context) (project.Stats, error) {
	var row struct {
		Projects   int64   `db:"projects"`
		Geometries int64   `db:"geometries"`
		TotalArea  float64 `db:"total_area"`
		Largest    float64 `db:"largest_area"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT (SELECT count(*) FROM projects) AS projects,
		       count(a.id) AS geometries,
		       COALESCE(sum(ST_Area(a.geom::geography)), 0) AS total_area,
		       COALESCE(max(ST_Area(a.geom::geography)), 0) AS largest_area
		FROM project_aois a
	`)
	if err != nil {
		return project.Stats{}, err
	}
	return project.Stats{
		Projects:       row.Projects,
		Geometries:     row.Geometries,
		TotalAreaSqM:   row.TotalArea,
		LargestAreaSqM: row.Largest,
	}, nil
}

func insertGeometries(ctx context.Context, tx *sqlx.Tx, projectID string, geometries []json.RawMessage) error {
	for _, raw := range geometries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project_aois (id, project_id, geom)
			VALUES ($1, $2, ST_SetSRID(ST_GeomFromGeoJSON($3), 4326))
		`, uuid.NewString(), projectID, string(raw))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadGeometries(ctx context.Context, projectIDs []string) (map[string][]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, ST_AsGeoJSON(geom)
		FROM project_aois
		WHERE project_id = ANY($1)
		ORDER BY project_id, id
	`, pq.Array(projectIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]json.RawMessage)
	for rows.Next() {
		var (
			projectID string
			geom      string
		)
		if err := rows.Scan(&projectID, &geom); err != nil {
			return nil, err
		}
		result[projectID] = append(result[projectID], json.RawMessage(geom))
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (project.Project, error) {
	var (
		p           project.Project
		description sql.NullString
		lower       sql.NullString
		upper       sql.NullString
		lowerInc    bool
		upperInc    bool
		aoiRaw      []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &description, &lower, &upper, &lowerInc, &upperInc,
		&aoiRaw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return project.Project{}, err
	}
	p.Description = description.String
	p.DateRange = project.DateRange{
		Lower:  lower.String,
		Upper:  upper.String,
		Bounds: boundsLiteral(lowerInc, upperInc),
	}
	p.AreaOfInterest = json.RawMessage(aoiRaw)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func boundsLiteral(lowerInc, upperInc bool) string {
	bounds := "("
	if lowerInc {
		bounds = "["
	}
	if upperInc {
		return bounds + "]"
	}
	return bounds + ")"
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
