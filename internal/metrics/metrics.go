// Package metrics exposes Prometheus instrumentation for the confirmation
// core, registered against a caller-supplied registry so the core stays
// embeddable without forcing a particular metrics endpoint on its host.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/histogram the confirmation core emits. A nil
// *Metrics is valid and every method on it is a no-op, mirroring the
// teacher's metrics-enabled opt-out idiom.
type Metrics struct {
	prepared        *prometheus.CounterVec
	confirmed       prometheus.Counter
	cancelled       prometheus.Counter
	expired         prometheus.Counter
	executionFailed prometheus.Counter
	cacheOpDuration *prometheus.HistogramVec
}

// New registers the confirmation core's metrics against reg and returns a
// handle to them. Pass a fresh *prometheus.Registry per process, or the
// default registry via prometheus.DefaultRegisterer's wrapping Registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		prepared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confirmation_prepared_total",
			Help: "Number of actions prepared, labeled by risk_level.",
		}, []string{"risk_level"}),
		confirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_confirmed_total",
			Help: "Number of actions confirmed and executed.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_cancelled_total",
			Help: "Number of actions cancelled without execution.",
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_expired_total",
			Help: "Number of actions observed as expired on read.",
		}),
		executionFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confirmation_execution_failed_total",
			Help: "Number of confirmed actions whose executor returned an error.",
		}),
		cacheOpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confirmation_cache_op_duration_seconds",
			Help:    "Latency of cache.Provider operations, labeled by operation name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(m.prepared, m.confirmed, m.cancelled, m.expired, m.executionFailed, m.cacheOpDuration)
	return m
}

func (m *Metrics) ObservePrepared(riskLevel string) {
	if m == nil {
		return
	}
	m.prepared.WithLabelValues(riskLevel).Inc()
}

func (m *Metrics) ObserveConfirmed() {
	if m == nil {
		return
	}
	m.confirmed.Inc()
}

func (m *Metrics) ObserveCancelled() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
}

func (m *Metrics) ObserveExpired() {
	if m == nil {
		return
	}
	m.expired.Inc()
}

func (m *Metrics) ObserveExecutionFailed() {
	if m == nil {
		return
	}
	m.executionFailed.Inc()
}

// ObserveCacheOp records how long a named cache.Provider call took.
func (m *Metrics) ObserveCacheOp(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.cacheOpDuration.WithLabelValues(op).Observe(d.Seconds())
}
