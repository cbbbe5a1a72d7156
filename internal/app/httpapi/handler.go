// Package httpapi exposes the project services over REST.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/terralayer/spatial_layer/internal/app"
	"github.com/terralayer/spatial_layer/internal/app/domain/project"
	"github.com/terralayer/spatial_layer/internal/app/metrics"
	"github.com/terralayer/spatial_layer/internal/app/services/projects"
	"github.com/terralayer/spatial_layer/internal/app/storage"
)

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// handler bundles the HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	db  Pinger
}

// NewHandler returns a router exposing the project REST API. The pinger is
// optional; without it the health endpoint only reports process liveness.
func NewHandler(application *app.Application, db Pinger) http.Handler {
	h := &handler{app: application, db: db}

	r := mux.NewRouter()
	// Registered on the router so the instrumentation can label by route
	// template instead of raw path.
	r.Use(metrics.InstrumentHandler)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/project/", h.createProject).Methods(http.MethodPost)
	r.HandleFunc("/project/", h.listProjects).Methods(http.MethodGet)
	r.HandleFunc("/project/{project_id}", h.getProject).Methods(http.MethodGet)
	r.HandleFunc("/project/{project_id}", h.updateProject).Methods(http.MethodPut)
	r.HandleFunc("/project/{project_id}", h.deleteProject).Methods(http.MethodDelete)
	r.HandleFunc("/projects/stats", h.projectStats).Methods(http.MethodGet)
	r.HandleFunc("/system/info", h.systemInfo).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	status := http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	writeJSON(w, status, body)
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var input projects.CreateInput
	if err := decodeJSON(r.Body, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Projects.Create(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDetail(w, http.StatusOK, "New project added: %s", created.ID)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	list, err := h.app.Projects.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []project.Project{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Projects.Get(r.Context(), mux.Vars(r)["project_id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var input projects.UpdateInput
	if err := decodeJSON(r.Body, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Projects.Update(r.Context(), mux.Vars(r)["project_id"], input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDetail(w, http.StatusOK, "Project %s updated", updated.ID)
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["project_id"]
	if err := h.app.Projects.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeDetail(w, http.StatusOK, "Project %s deleted", id)
}

func (h *handler) projectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Projects.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// listFilter extracts the bbox and date range query parameters.
func listFilter(r *http.Request) (project.Filter, error) {
	var filter project.Filter
	q := r.URL.Query()

	if bbox := q.Get("bbox"); bbox != "" {
		box, err := project.ParseBoundingBox(bbox)
		if err != nil {
			return filter, err
		}
		filter.BBox = &box
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			return filter, project.Invalid("from and to must be provided together")
		}
		dates, err := project.NewDateRange(from, to)
		if err != nil {
			return filter, err
		}
		filter.Dates = &dates
	}
	return filter, nil
}

func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projects.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, errors.New("project not found"))
	case project.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

func writeDetail(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}
