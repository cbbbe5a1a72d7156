//go:build integration && postgres

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/terralayer/spatial_layer/internal/app/domain/project"
	"github.com/terralayer/spatial_layer/internal/app/storage"
	"github.com/terralayer/spatial_layer/internal/platform/migrations"
)

// Integration test against a PostGIS database to ensure migrations and the
// spatial queries work with real persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := New(db)
	aoi := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
	dates, err := project.NewDateRange("2024-01-01", "2024-06-30")
	if err != nil {
		t.Fatalf("date range: %v", err)
	}

	created, err := store.CreateProject(ctx, project.Project{
		Name:           "integration",
		Description:    "round trip",
		DateRange:      dates,
		AreaOfInterest: json.RawMessage(aoi),
		Geometries:     []json.RawMessage{json.RawMessage(aoi)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteProject(ctx, created.ID) })

	got, err := store.GetProject(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "integration" || got.DateRange.Lower != "2024-01-01" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.Geometries) != 1 {
		t.Fatalf("expected geometry read back, got %d", len(got.Geometries))
	}

	box, _ := project.ParseBoundingBox("-1,-1,2,2")
	list, err := store.ListProjects(ctx, project.Filter{BBox: &box})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, p := range list {
		if p.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("bbox listing should include the created project")
	}

	stats, err := store.ProjectStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Projects < 1 || stats.TotalAreaSqM <= 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := store.DeleteProject(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetProject(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
