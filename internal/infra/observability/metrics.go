package observability

import (
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the banking API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	transactionsTotal *prometheus.CounterVec
	loginsTotal       *prometheus.CounterVec
	storageErrors     *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bmbank_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		transactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmbank_transactions_total",
				Help: "Transaction lifecycle events by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		loginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmbank_logins_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmbank_storage_errors_total",
				Help: "Storage failures by operation.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmbank_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bmbank_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordTransaction counts a lifecycle event, e.g. ("WITHDRAW", "accepted").
func (m *Metrics) RecordTransaction(kind, outcome string) {
	m.transactionsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordLogin counts a login attempt, outcome "success" or "failure".
func (m *Metrics) RecordLogin(outcome string) {
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

// IncrStorageError increments the storage failure counter.
func (m *Metrics) IncrStorageError(operation string) {
	m.storageErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot returns current counter values for the operational summary
// endpoint. Prometheus counters are cumulative since process start.
func (m *Metrics) Snapshot() *domain.MetricsSnapshot {
	created := getCounterValue(m.transactionsTotal, domain.KindDeposit, "created") +
		getCounterValue(m.transactionsTotal, domain.KindWithdraw, "created")
	accepted := getCounterValue(m.transactionsTotal, domain.KindDeposit, "accepted") +
		getCounterValue(m.transactionsTotal, domain.KindWithdraw, "accepted")
	cancelled := getCounterValue(m.transactionsTotal, domain.KindDeposit, "cancel") +
		getCounterValue(m.transactionsTotal, domain.KindWithdraw, "cancel")
	loginOK := getCounterValue(m.loginsTotal, "success")
	loginFail := getCounterValue(m.loginsTotal, "failure")
	hits := getCounterValue(m.cacheHits, "stats")
	misses := getCounterValue(m.cacheMisses, "stats")

	cacheHitRate := float64(0)
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.MetricsSnapshot{
		TransactionsCreated:  int64(created),
		TransactionsAccepted: int64(accepted),
		TransactionsCancel:   int64(cancelled),
		LoginSuccesses:       int64(loginOK),
		LoginFailures:        int64(loginFail),
		CacheHitRate:         cacheHitRate,
		Period:               "since_start",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
