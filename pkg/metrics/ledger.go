package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records serving-line activity: operation outcomes, plates
// handed out, and contention between stations.
type LedgerMetrics struct {
	operations   *prometheus.CounterVec
	platesServed prometheus.Counter
	conflicts    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})
	platesServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_plates_served_total",
		Help: "Plates served across all sessions.",
	})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_concurrency_conflicts_total",
		Help: "Mutations rejected because another station won the race.",
	}, []string{"op"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Duration of ledger operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(operations, platesServed, conflicts, duration)
	return &LedgerMetrics{
		operations:   operations,
		platesServed: platesServed,
		conflicts:    conflicts,
		duration:     duration,
	}
}

// IncOperation counts one ledger operation with its outcome label.
func (m *LedgerMetrics) IncOperation(op, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// AddPlatesServed adds successfully served plates to the running total.
func (m *LedgerMetrics) AddPlatesServed(count int) {
	if m == nil || m.platesServed == nil || count <= 0 {
		return
	}
	m.platesServed.Add(float64(count))
}

// IncConflict counts a lost optimistic-concurrency race for the operation.
func (m *LedgerMetrics) IncConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

// ObserveDuration records how long the named operation took.
func (m *LedgerMetrics) ObserveDuration(op string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
