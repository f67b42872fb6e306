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

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

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

	metricsRR := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	metricsBody := metricsRR.Body.String()
	if !strings.Contains(metricsBody, "archivum_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "archivum_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestAuthzMetricsExposed(t *testing.T) {
	metrics := NewMetrics()
	authz := NewAuthzMetrics(metrics.Registerer())

	authz.CheckObserved("allowed")
	authz.CheckObserved("denied")
	authz.CacheHit()
	authz.CacheMiss()
	authz.InvalidationObserved()
	authz.CalculationObserved(5 * time.Millisecond)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rr.Body.String()
	for _, want := range []string{
		"archivum_authz_checks_total{outcome=\"allowed\"} 1",
		"archivum_authz_checks_total{outcome=\"denied\"} 1",
		"archivum_authz_cache_hits_total 1",
		"archivum_authz_cache_misses_total 1",
		"archivum_authz_invalidations_total 1",
		"archivum_authz_calculation_duration_seconds_count 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got: %s", want, body)
		}
	}
}

func TestNilAuthzMetricsIsSafe(t *testing.T) {
	var authz *AuthzMetrics
	authz.CheckObserved("allowed")
	authz.CacheHit()
	authz.CacheMiss()
	authz.InvalidationObserved()
	authz.CalculationObserved(time.Millisecond)
}
