package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordImport(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordImport(true, 120, 2*time.Second)
	m.RecordImport(false, 30, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importsTotal.WithLabelValues("failure")))
	assert.Equal(t, 150.0, testutil.ToFloat64(m.importRowsTotal))
}

func TestRecordCacheLookup(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.RecordCacheLookup(true)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.optionCacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.optionCacheRequests.WithLabelValues("miss")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordImport(true, 1, time.Second)
		m.RecordCacheLookup(false)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.RecordImport(true, 5, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "labeler_import_rows_total 5")
	assert.Contains(t, rec.Body.String(), `labeler_imports_total{result="success"} 1`)
}
