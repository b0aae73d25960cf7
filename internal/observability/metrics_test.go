package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesSessionGauge(t *testing.T) {
	metrics := NewMetrics(func() int { return 3 })

	body := scrape(t, metrics)
	if !strings.Contains(body, "plati_session_stores 3") {
		t.Fatalf("expected session gauge, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics(nil)

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "plati_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "plati_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveUpstreamLabelsTransportErrors(t *testing.T) {
	metrics := NewMetrics(nil)
	metrics.ObserveUpstream(http.MethodGet, "/dealers", 200, 20*time.Millisecond)
	metrics.ObserveUpstream(http.MethodGet, "/dealers", 0, time.Second)

	body := scrape(t, metrics)
	if !strings.Contains(body, `plati_upstream_requests_total{code="200",method="GET",path="/dealers"} 1`) {
		t.Fatalf("expected upstream success sample, got: %s", body)
	}
	if !strings.Contains(body, `plati_upstream_requests_total{code="error",method="GET",path="/dealers"} 1`) {
		t.Fatalf("expected upstream error sample, got: %s", body)
	}
}

func TestPathTemplateFoldsIDs(t *testing.T) {
	if got := pathTemplate("/warranty/registrations/981"); got != "/warranty/registrations/:id" {
		t.Fatalf("unexpected template: %s", got)
	}
	if got := pathTemplate("/v2/inventory/get-all-stock"); got != "/v2/inventory/get-all-stock" {
		t.Fatalf("unexpected template: %s", got)
	}
}
