package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors pace exports.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	cacheRequests     *prometheus.CounterVec
	connectionsOpened prometheus.Counter
	connectionErrors  prometheus.Counter
	invalidations     prometheus.Counter
	logins            *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pace",
			Name:      "cache_requests_total",
			Help:      "Memo cache lookups by cache and result (hit or miss).",
		}, []string{"cache", "result"}),
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pace",
			Name:      "connections_opened_total",
			Help:      "Database handles opened.",
		}),
		connectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pace",
			Name:      "connection_errors_total",
			Help:      "Failed attempts to open a database handle.",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pace",
			Name:      "cache_invalidations_total",
			Help:      "Cache generation bumps (logouts and explicit resets).",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pace",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pace",
			Name:      "query_duration_seconds",
			Help:      "Database query latency by query kind and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.cacheRequests,
			m.connectionsOpened,
			m.connectionErrors,
			m.invalidations,
			m.logins,
			m.queryDuration,
		)
	}
	return m
}

// CacheLookup records a memo cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(cache, result).Inc()
}

// ConnectionOpened records a successful open.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
}

// ConnectionFailed records a failed open.
func (m *Metrics) ConnectionFailed() {
	if m == nil {
		return
	}
	m.connectionErrors.Inc()
}

// Invalidated records a cache generation bump.
func (m *Metrics) Invalidated() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveQuery records the duration of a database query.
func (m *Metrics) ObserveQuery(query string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.queryDuration.WithLabelValues(query, outcome).Observe(d.Seconds())
}
