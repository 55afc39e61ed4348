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

func TestDuesMetrics_Counters(t *testing.T) {
	m := New()

	m.InvoiceIssued(2019, false)
	m.InvoiceIssued(2019, false)
	m.InvoiceIssued(2019, true)
	m.EmailSent(2019, "recommendation")
	m.EmailFailed(2020)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.invoicesIssued.WithLabelValues("2019", "invoice")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invoicesIssued.WithLabelValues("2019", "reversal")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.emailsSent.WithLabelValues("2019", "recommendation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.emailFailures.WithLabelValues("2020")))
}

func TestDuesMetrics_Handler(t *testing.T) {
	m := New()
	m.InvoiceIssued(2018, false)
	m.ObserveRequest(http.MethodGet, http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dues_invoices_issued_total{kind="invoice",year="2018"} 1`)
	assert.Contains(t, rec.Body.String(), "dues_http_request_duration_seconds_count")
}
