package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveRequest("checkout", http.MethodPost, http.StatusCreated, 12*time.Millisecond)
	m.ObserveRequest("checkout", http.MethodPost, http.StatusCreated, 30*time.Millisecond)
	m.ObserveBusinessError("insufficient_stock")
	m.ObserveJob("outbox_relay", 3, nil)
	m.ObserveJob("outbox_relay", 0, errors.New("db down"))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("checkout", "POST", "201")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.businessErrors.WithLabelValues("insufficient_stock")); got != 1 {
		t.Fatalf("expected 1 business error, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("outbox_relay", "error")); got != 1 {
		t.Fatalf("expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobProcessed.WithLabelValues("outbox_relay")); got != 3 {
		t.Fatalf("expected 3 processed, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveBusinessError("system_busy")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `settlement_business_errors_total{code="system_busy"} 1`) {
		t.Fatalf("expected business error series in output")
	}
}
