package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	app "github.com/terralayer/spatial_layer/internal/app"
)

const testAOI = `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}`

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	application, err := app.New(nil, nil, app.Stores{})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	return NewHandler(application, nil)
}

func marshal(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(data)
}

func createProject(t *testing.T, handler http.Handler, name string) string {
	t.Helper()
	body := marshal(t, map[string]interface{}{
		"name":             name,
		"description":      "test project",
		"date_range":       map[string]string{"lower": "2024-01-01", "upper": "2024-06-30"},
		"area_of_interest": json.RawMessage(testAOI),
	})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/project/", body))
	if resp.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	detail := gjson.Get(resp.Body.String(), "detail").String()
	if !strings.HasPrefix(detail, "New project added: ") {
		t.Fatalf("unexpected detail: %q", detail)
	}
	return strings.TrimPrefix(detail, "New project added: ")
}

func TestHandlerProjectLifecycle(t *testing.T) {
	handler := newTestHandler(t)
	id := createProject(t, handler, "lifecycle")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/"+id, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if gjson.Get(body, "name").String() != "lifecycle" {
		t.Fatalf("unexpected name: %s", body)
	}
	if gjson.Get(body, "date_range.bounds").String() != "[)" {
		t.Fatalf("unexpected bounds: %s", body)
	}
	if gjson.Get(body, "area_of_interest.type").String() != "Polygon" {
		t.Fatalf("area_of_interest not echoed: %s", body)
	}
	if gjson.Get(body, "area_of_interest_geom.#").Int() != 1 {
		t.Fatalf("expected one derived geometry: %s", body)
	}

	update := marshal(t, map[string]string{"name": "renamed"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPut, "/project/"+id, update))
	if resp.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(gjson.Get(resp.Body.String(), "detail").String(), "updated") {
		t.Fatalf("unexpected update detail: %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/"+id, nil))
	if gjson.Get(resp.Body.String(), "name").String() != "renamed" {
		t.Fatalf("rename not visible: %s", resp.Body.String())
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/project/"+id, nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/"+id, nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestHandlerStatusMapping(t *testing.T) {
	handler := newTestHandler(t)

	// Invalid UUID in the path.
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/not-a-uuid", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad UUID, got %d", resp.Code)
	}

	// Unknown but well-formed UUID.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/7f6f5a52-43f7-4f83-9e1d-6e0e6a1f0000", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown project, got %d", resp.Code)
	}

	// Malformed JSON body.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/project/", strings.NewReader("{")))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", resp.Code)
	}

	// Validation failure.
	body := marshal(t, map[string]interface{}{
		"name":             "",
		"date_range":       map[string]string{"lower": "2024-01-01", "upper": "2024-06-30"},
		"area_of_interest": json.RawMessage(testAOI),
	})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/project/", body))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty name, got %d", resp.Code)
	}

	// Empty update payload.
	id := createProject(t, handler, "empty-update")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPut, "/project/"+id, strings.NewReader("{}")))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty update, got %d", resp.Code)
	}
}

func TestHandlerListFilters(t *testing.T) {
	handler := newTestHandler(t)
	createProject(t, handler, "first")
	createProject(t, handler, "second")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	if gjson.Get(resp.Body.String(), "#").Int() != 2 {
		t.Fatalf("expected 2 projects: %s", resp.Body.String())
	}

	// Both projects share the same AOI; a far-away bbox excludes them.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/?bbox=100,50,110,60", nil))
	if gjson.Get(resp.Body.String(), "#").Int() != 0 {
		t.Fatalf("expected empty result: %s", resp.Body.String())
	}

	// A bbox over the AOI keeps them.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/?bbox=0,0,5,5", nil))
	if gjson.Get(resp.Body.String(), "#").Int() != 2 {
		t.Fatalf("expected both projects: %s", resp.Body.String())
	}

	// Date window outside every project.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/?from=2030-01-01&to=2030-02-01", nil))
	if gjson.Get(resp.Body.String(), "#").Int() != 0 {
		t.Fatalf("expected empty result for future window: %s", resp.Body.String())
	}

	// Bad bbox is a validation error.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/?bbox=1,2,3", nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad bbox, got %d", resp.Code)
	}

	// from without to is rejected.
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/?from=2024-01-01", nil))
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for lone from, got %d", resp.Code)
	}
}

func TestHandlerStats(t *testing.T) {
	handler := newTestHandler(t)
	createProject(t, handler, "stats")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/projects/stats", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if gjson.Get(body, "projects").Int() != 1 {
		t.Fatalf("unexpected project count: %s", body)
	}
	if gjson.Get(body, "total_area_sq_m").Float() <= 0 {
		t.Fatalf("expected positive total area: %s", body)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHandlerHealth(t *testing.T) {
	application, err := app.New(nil, nil, app.Stores{})
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	handler := NewHandler(application, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 without pinger, got %d", resp.Code)
	}

	handler = NewHandler(application, pingFunc(func(context.Context) error { return nil }))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with healthy db, got %d", resp.Code)
	}
	if gjson.Get(resp.Body.String(), "database").String() != "ok" {
		t.Fatalf("unexpected health body: %s", resp.Body.String())
	}

	handler = NewHandler(application, pingFunc(func(context.Context) error { return errors.New("down") }))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with failing db, got %d", resp.Code)
	}
}

func TestHandlerMetricsUseRouteTemplate(t *testing.T) {
	handler := newTestHandler(t)

	ids := []string{
		"11111111-1111-4111-8111-111111111111",
		"22222222-2222-4222-8222-222222222222",
		"33333333-3333-4333-8333-333333333333",
	}
	for _, id := range ids {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/"+id, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unknown project, got %d", resp.Code)
		}
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := resp.Body.String()

	if !strings.Contains(body, `path="/project/{project_id}"`) {
		t.Fatalf("expected a route-templated series in metrics output")
	}
	for _, id := range ids {
		if strings.Contains(body, id) {
			t.Fatalf("raw project ID %s leaked into metric labels", id)
		}
	}
}

func TestHandlerMetricsEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "spatial_layer") {
		t.Fatalf("expected namespaced metrics in output")
	}
}
