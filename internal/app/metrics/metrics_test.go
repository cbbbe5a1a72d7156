package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProjectOp(t *testing.T) {
	before := testutil.ToFloat64(projectOps.WithLabelValues("create", "ok"))
	RecordProjectOp("create", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(projectOps.WithLabelValues("create", "ok")))

	beforeErr := testutil.ToFloat64(projectOps.WithLabelValues("create", "error"))
	RecordProjectOp("create", errors.New("boom"))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(projectOps.WithLabelValues("create", "error")))
}

func TestSetSpatialStats(t *testing.T) {
	SetSpatialStats(7, 12, 345.5)
	assert.Equal(t, 7.0, testutil.ToFloat64(projectCount))
	assert.Equal(t, 12.0, testutil.ToFloat64(geometryCount))
	assert.Equal(t, 345.5, testutil.ToFloat64(totalArea))
}

func TestInstrumentHandlerRecordsStatus(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/project/", "404"))

	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/project/", nil))

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/project/", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(httpInFlight))
}

func TestHandlerServesRegistry(t *testing.T) {
	SetSpatialStats(1, 1, 1)

	resp := httptest.NewRecorder()
	Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "spatial_layer_projects_stored_total")
}
