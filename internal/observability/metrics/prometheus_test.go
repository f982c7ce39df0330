package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-chartaudit/internal/extraction"
	"github.com/drfirst/go-chartaudit/pkg/circuitbreaker"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveAudit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveAudit(&extraction.Result{
		Status: extraction.StatusPendingCorrection,
		Communications: []extraction.Communication{
			{Sector: extraction.SectorResidents, Urgency: extraction.UrgencyHigh},
			{Sector: extraction.SectorResidents, Urgency: extraction.UrgencyHigh},
			{Sector: extraction.SectorSurgery, Urgency: extraction.UrgencyCritical},
		},
	}, 20*time.Millisecond)

	body := scrape(t, reg)
	assert.Contains(t, body, `chart_audits_total{status="Pendiente de corrección"} 1`)
	assert.Contains(t, body, `chart_audit_communications_total{sector="`+extraction.SectorResidents+`",urgency="ALTA"} 2`)
	assert.Contains(t, body, "chart_audit_duration_seconds_count 1")
}

func TestObserveBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBreaker("whatsapp", circuitbreaker.StateOpen)
	assert.Contains(t, scrape(t, reg), `circuit_breaker_state{name="whatsapp"} 1`)

	m.ObserveBreaker("whatsapp", circuitbreaker.StateClosed)
	assert.Contains(t, scrape(t, reg), `circuit_breaker_state{name="whatsapp"} 0`)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.PersistFailures.Inc()

	assert.Contains(t, scrape(t, reg), "chart_audit_persist_failures_total 1")
}
