package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthzMetrics tracks permission check outcomes and cache behaviour.
type AuthzMetrics struct {
	checksTotal   *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	invalidations prometheus.Counter
	calcDuration  prometheus.Histogram
}

// NewAuthzMetrics registers the authorization metrics on the given
// registerer.
func NewAuthzMetrics(reg prometheus.Registerer) *AuthzMetrics {
	m := &AuthzMetrics{
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archivum_authz_checks_total",
			Help: "Permission checks by outcome (allowed, denied, error).",
		}, []string{"outcome"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archivum_authz_cache_hits_total",
			Help: "Permission cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archivum_authz_cache_misses_total",
			Help: "Permission cache misses.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archivum_authz_invalidations_total",
			Help: "User cache invalidations.",
		}),
		calcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "archivum_authz_calculation_duration_seconds",
			Help:    "Effective permission calculation duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.checksTotal, m.cacheHits, m.cacheMisses, m.invalidations, m.calcDuration)
	}
	return m
}

// CheckObserved counts one permission check outcome.
func (m *AuthzMetrics) CheckObserved(outcome string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(outcome).Inc()
}

// CacheHit counts a permission cache hit.
func (m *AuthzMetrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// CacheMiss counts a permission cache miss.
func (m *AuthzMetrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// InvalidationObserved counts a user cache invalidation.
func (m *AuthzMetrics) InvalidationObserved() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

// CalculationObserved records one calculation duration.
func (m *AuthzMetrics) CalculationObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.calcDuration.Observe(d.Seconds())
}
