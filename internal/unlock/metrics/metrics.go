package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the unlock engine. Unlocks are labeled
// by institution role because the landlord and fintech paths bill differently.
type Metrics struct {
	UnlocksTotal         *prometheus.CounterVec
	UnlockDenied         *prometheus.CounterVec
	RepeatUnlocks        prometheus.Counter
	UnlockDuration       prometheus.Histogram
	SearchLookupDuration prometheus.Histogram
}

// New creates a Metrics instance with all unlock module metrics registered.
func New() *Metrics {
	return &Metrics{
		UnlocksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credara_report_unlocks_total",
			Help: "Total successful report unlocks, labeled by institution role",
		}, []string{"role"}),
		UnlockDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credara_report_unlocks_denied_total",
			Help: "Unlock attempts denied by consumption rules, labeled by reason",
		}, []string{"reason"}),
		RepeatUnlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credara_report_unlocks_repeat_total",
			Help: "Unlock calls that hit an existing pair and returned without charging",
		}),
		UnlockDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credara_report_unlock_duration_seconds",
			Help:    "Duration of the unlock transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		SearchLookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credara_search_lookup_duration_seconds",
			Help:    "Duration of individual search including the unlocked-set check",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementUnlock records a successful unlock for the given institution role.
func (m *Metrics) IncrementUnlock(role string) {
	m.UnlocksTotal.WithLabelValues(role).Inc()
}

// IncrementDenied records an unlock denied by consumption rules.
func (m *Metrics) IncrementDenied(reason string) {
	m.UnlockDenied.WithLabelValues(reason).Inc()
}

// IncrementRepeat records an idempotent repeat unlock.
func (m *Metrics) IncrementRepeat() {
	m.RepeatUnlocks.Inc()
}

// ObserveUnlock records the duration of an unlock transaction.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUnlock(start time.Time) {
	m.UnlockDuration.Observe(time.Since(start).Seconds())
}

// ObserveSearchLookup records the duration of a search lookup.
func (m *Metrics) ObserveSearchLookup(start time.Time) {
	m.SearchLookupDuration.Observe(time.Since(start).Seconds())
}
