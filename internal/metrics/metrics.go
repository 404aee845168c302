// Package metrics exposes Prometheus metrics for the object API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FairForge/metaapi/internal/cache"
	"github.com/FairForge/metaapi/internal/importer"
)

// Metrics holds the collectors of one server on a private registry.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	LatencyHistogram *prometheus.HistogramVec
	RateLimitHits    *prometheus.CounterVec
	ImportObjects    *prometheus.CounterVec
	registry         *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaapi_requests_total",
				Help: "Total number of object API requests",
			},
			[]string{"type", "method", "status"},
		),
		LatencyHistogram: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metaapi_request_duration_seconds",
				Help:    "Object API request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type", "method"},
		),
		RateLimitHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaapi_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"actor"},
		),
		ImportObjects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaapi_import_objects_total",
				Help: "Objects processed by the import pipeline",
			},
			[]string{"type", "strategy", "outcome"},
		),
		registry: registry,
	}
	registry.MustRegister(m.RequestCounter, m.LatencyHistogram, m.RateLimitHits, m.ImportObjects)
	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished request. typeName is empty for
// requests outside the object endpoints.
func (m *Metrics) ObserveRequest(typeName, method string, status int, elapsed time.Duration) {
	if typeName == "" {
		typeName = "none"
	}
	m.RequestCounter.WithLabelValues(typeName, method, strconv.Itoa(status)).Inc()
	m.LatencyHistogram.WithLabelValues(typeName, method).Observe(elapsed.Seconds())
}

// IncrementRateLimitHit counts a rejected request.
func (m *Metrics) IncrementRateLimitHit(actor string) {
	m.RateLimitHits.WithLabelValues(actor).Inc()
}

// ObserveImport implements importer.Observer.
func (m *Metrics) ObserveImport(typeName string, strategy importer.Strategy, outcome string) {
	m.ImportObjects.WithLabelValues(typeName, string(strategy), outcome).Inc()
}

// WatchPaginationCache reports the cache counters on every scrape.
func (m *Metrics) WatchPaginationCache(c *cache.PaginationCache) {
	m.registry.MustRegister(&cacheCollector{
		stats: c.Stats,
		desc: prometheus.NewDesc(
			"metaapi_pagination_cache_total",
			"Pagination count cache lookups by result",
			[]string{"result"}, nil,
		),
	})
}

// Handler returns the Prometheus metrics handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type cacheCollector struct {
	stats func() cache.Stats
	desc  *prometheus.Desc
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(s.Hits), "hit")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(s.Misses), "miss")
}

var _ importer.Observer = (*Metrics)(nil)
