package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersTrackLabels(t *testing.T) {
	m := New()

	m.Update("message")
	m.Update("message")
	m.Route("add")
	m.Throttled("callback_query")
	m.StoreOp("insert_service", time.Now(), nil)
	m.StoreOp("insert_service", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(m.updates.WithLabelValues("message")); got != 2 {
		t.Fatalf("expected 2 message updates, got %v", got)
	}
	if got := testutil.ToFloat64(m.routes.WithLabelValues("add")); got != 1 {
		t.Fatalf("expected 1 add route, got %v", got)
	}
	if got := testutil.ToFloat64(m.throttled.WithLabelValues("callback_query")); got != 1 {
		t.Fatalf("expected 1 throttled callback, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeOps.WithLabelValues("insert_service", OutcomeOK)); got != 1 {
		t.Fatalf("expected 1 ok store op, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeOps.WithLabelValues("insert_service", OutcomeError)); got != 1 {
		t.Fatalf("expected 1 failed store op, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.Update("message")
	m.Route("start")
	m.Throttled("message")
	m.StoreOp("ping", time.Now(), nil)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Route("bookings")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected HTTP 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `timehub_handler_calls_total{route="bookings"} 1`) {
		t.Fatalf("expected route counter in exposition, got:\n%s", rr.Body.String())
	}
}
