package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddRows(10)
	m.AddRecords("pattern", 7)
	m.AddRecords("split", 0)
	m.AddUnmatched(3)
	m.AddDefaulted(1)
	m.IncFiltered("zero")
	m.IncFiltered("zero")
	m.ObserveDocument(OutcomeOK, 20*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "statement_rows_total 10")
	assert.Contains(t, body, `statement_records_total{source="pattern"} 7`)
	assert.NotContains(t, body, `source="split"`)
	assert.Contains(t, body, "statement_rows_unmatched_total 3")
	assert.Contains(t, body, "statement_amount_defaulted_total 1")
	assert.Contains(t, body, `statement_records_filtered_total{reason="zero"} 2`)
	assert.Contains(t, body, `statement_documents_total{outcome="ok"} 1`)
	assert.Contains(t, body, "statement_extract_duration_seconds_count 1")
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddRows(1)
		m.AddRecords("pattern", 1)
		m.IncFiltered("blank")
		m.ObserveDocument(OutcomeError, time.Second)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_FreshRegistry(t *testing.T) {
	a, b := New(nil), New(nil)
	a.AddRows(2)
	assert.Contains(t, scrape(t, a), "statement_rows_total 2")
	assert.Contains(t, scrape(t, b), "statement_rows_total 0")
}
