package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServerMetrics(t *testing.T) {
	m := NewServerMetrics("test", prometheus.NewRegistry())

	m.Observe("/charge", http.StatusSeeOther, time.Now())
	m.Outcome("charge", "SUCCESSFUL")
	m.Outcome("charge", "SUCCESSFUL")
	m.GatewayCall("create_charge", errors.New("timeout"), time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/charge", "See Other")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChargeOutcomes.WithLabelValues("charge", "SUCCESSFUL")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `storefront_test_gateway_call_duration_ms_count{operation="create_charge",result="error"} 1`)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *ServerMetrics
	assert.NotPanics(t, func() {
		m.Observe("/", http.StatusOK, time.Now())
		m.Outcome("charge", "FAILED")
		m.GatewayCall("search_charges", nil, time.Now())
	})
}

func TestNewServerMetrics_HyphenatedService(t *testing.T) {
	m := NewServerMetrics("storefront-cli", prometheus.NewRegistry())
	m.Outcome("webhook", "FAILED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `storefront_storefront_cli_charge_outcomes_total{source="webhook",status="FAILED"} 1`)
}
