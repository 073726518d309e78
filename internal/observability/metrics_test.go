package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetricsEndpointExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.VoucherPosted("purchase-invoice")
	m.VoucherPosted("purchase-invoice")
	m.VoucherPosted("sales-delivery")
	m.LinesReversed(2)
	m.BackfillDocument("posted")
	m.BackfillDocument("skipped")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `hanbit_vouchers_posted_total{kind="purchase-invoice"} 2`)
	require.Contains(t, body, `hanbit_vouchers_posted_total{kind="sales-delivery"} 1`)
	require.Contains(t, body, "hanbit_voucher_lines_reversed_total 2")
	require.Contains(t, body, `hanbit_backfill_documents_total{outcome="posted"} 1`)
	require.Contains(t, body, `hanbit_backfill_documents_total{outcome="skipped"} 1`)
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Contains(t, rec.Body.String(), `hanbit_http_requests_total{code="418",route="unknown"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.VoucherPosted("purchase-invoice")
	m.LinesReversed(1)
	m.BackfillDocument("posted")

	passthrough := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	passthrough.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
