package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the admin pipeline. Mutations are
// counted per audit action so dashboards can break down admin activity.
type Metrics struct {
	MutationsTotal    *prometheus.CounterVec
	MutationDuration  prometheus.Histogram
	StatsDuration     prometheus.Histogram
	ListUsersDuration prometheus.Histogram
}

// New creates a Metrics instance with all admin module metrics registered.
func New() *Metrics {
	return &Metrics{
		MutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credara_admin_mutations_total",
			Help: "Total admin mutations applied, labeled by audit action",
		}, []string{"action"}),
		MutationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credara_admin_mutation_duration_seconds",
			Help:    "Duration of admin mutations including the audit append",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credara_admin_stats_duration_seconds",
			Help:    "Duration of the aggregate stats query fan-out",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ListUsersDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credara_admin_list_users_duration_seconds",
			Help:    "Duration of paginated user listing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementMutation records a committed admin mutation.
func (m *Metrics) IncrementMutation(action string) {
	m.MutationsTotal.WithLabelValues(action).Inc()
}

// ObserveMutation records the duration of an admin mutation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMutation(start time.Time) {
	m.MutationDuration.Observe(time.Since(start).Seconds())
}

// ObserveStats records the duration of a stats aggregation.
func (m *Metrics) ObserveStats(start time.Time) {
	m.StatsDuration.Observe(time.Since(start).Seconds())
}

// ObserveListUsers records the duration of a user listing.
func (m *Metrics) ObserveListUsers(start time.Time) {
	m.ListUsersDuration.Observe(time.Since(start).Seconds())
}
