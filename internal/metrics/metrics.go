// Package metrics exposes Prometheus instrumentation for the draft service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every collector on a private registry.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	cacheLookups      *prometheus.CounterVec
	cacheCoalesced    *prometheus.CounterVec
	upstreamFetches   *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	recommendations   prometheus.Counter
	profileResolution *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	draftSessions     prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms (seconds).
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// NewManager creates a Manager with every collector registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "draftforme",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by cache and outcome (fresh, stale, miss, error)",
	}, []string{"cache", "outcome"})

	m.cacheCoalesced = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "cache",
		Name:      "coalesced_total",
		Help:      "Callers that shared an in-flight upstream fetch",
	}, []string{"cache"})

	m.upstreamFetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "fetches_total",
		Help:      "Upstream fetches by source and outcome",
	}, []string{"source", "outcome"})

	m.upstreamLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "upstream",
		Name:      "fetch_duration_seconds",
		Help:      "Upstream fetch latency",
		Buckets:   m.histogramBuckets,
	}, []string{"source"})

	m.recommendations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "recommendations_total",
		Help:      "Recommendation lists served",
	})

	m.profileResolution = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "profile",
		Name:      "resolutions_total",
		Help:      "Profile resolutions by mode (live, mock, not_found, error)",
	}, []string{"mode"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "status_code"})

	m.draftSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "draft",
		Name:      "sessions_active",
		Help:      "Open draft websocket sessions",
	})
}

// Registry returns the private registry.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheLookup implements cache.Observer.
func (m *Manager) CacheLookup(cache, outcome string) {
	m.cacheLookups.WithLabelValues(cache, outcome).Inc()
}

// CacheCoalesced implements cache.Observer.
func (m *Manager) CacheCoalesced(cache string) {
	m.cacheCoalesced.WithLabelValues(cache).Inc()
}

// ObserveUpstream records one upstream fetch.
func (m *Manager) ObserveUpstream(source string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamFetches.WithLabelValues(source, outcome).Inc()
	m.upstreamLatency.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func (m *Manager) RecommendationServed() {
	m.recommendations.Inc()
}

func (m *Manager) ProfileResolved(mode string) {
	m.profileResolution.WithLabelValues(mode).Inc()
}

// ObserveHTTP records one finished request.
func (m *Manager) ObserveHTTP(route, method, status string, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, status).Observe(d.Seconds())
}

func (m *Manager) SessionOpened() { m.draftSessions.Inc() }

func (m *Manager) SessionClosed() { m.draftSessions.Dec() }
